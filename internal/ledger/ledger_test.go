package ledger

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/settleup/internal/money"
)

func c(s string) money.Cents { return money.MustParse(s) }

func TestCalculateBalances(t *testing.T) {
	tests := []struct {
		name        string
		expenses    []Expense
		settlements []Settlement
		want        Balances
	}{
		{
			name: "empty group",
			want: Balances{},
		},
		{
			name: "A pays 30 split three ways",
			expenses: []Expense{{
				PaidBy: "A", Amount: c("30"),
				Splits: []Split{{"A", c("10")}, {"B", c("10")}, {"C", c("10")}},
			}},
			want: Balances{"A": c("20"), "B": c("-10"), "C": c("-10")},
		},
		{
			name: "settled group keeps zero entries",
			expenses: []Expense{{
				PaidBy: "A", Amount: c("20"),
				Splits: []Split{{"A", c("10")}, {"B", c("10")}},
			}},
			settlements: []Settlement{{From: "B", To: "A", Amount: c("10")}},
			want:        Balances{"A": 0, "B": 0},
		},
		{
			name: "uneven split lands exactly",
			expenses: []Expense{{
				PaidBy: "B", Amount: c("100"),
				Splits: []Split{{"A", c("33.34")}, {"B", c("33.33")}, {"C", c("33.33")}},
			}},
			want: Balances{"A": c("-33.34"), "B": c("66.67"), "C": c("-33.33")},
		},
		{
			name: "splits without a user are skipped",
			expenses: []Expense{{
				PaidBy: "A", Amount: c("20"),
				Splits: []Split{{"", c("10")}, {"B", c("10")}},
			}},
			want: Balances{"A": c("20"), "B": c("-10")},
		},
		{
			name: "expense without payer is skipped",
			expenses: []Expense{{
				Amount: c("20"),
				Splits: []Split{{"A", c("10")}, {"B", c("10")}},
			}},
			want: Balances{},
		},
		{
			name: "overpayment flips direction",
			expenses: []Expense{{
				PaidBy: "A", Amount: c("20"),
				Splits: []Split{{"A", c("10")}, {"B", c("10")}},
			}},
			settlements: []Settlement{{From: "B", To: "A", Amount: c("15")}},
			want:        Balances{"A": c("-5"), "B": c("5")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateBalances(tt.expenses, tt.settlements)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanSettlements(t *testing.T) {
	tests := []struct {
		name     string
		balances Balances
		want     []Transfer
	}{
		{
			name:     "nothing to settle",
			balances: Balances{},
			want:     []Transfer{},
		},
		{
			name:     "all zero",
			balances: Balances{"A": 0, "B": 0},
			want:     []Transfer{},
		},
		{
			name:     "round trip",
			balances: Balances{"A": c("20"), "B": c("-10"), "C": c("-10")},
			want: []Transfer{
				{From: "B", To: "A", Amount: c("10")},
				{From: "C", To: "A", Amount: c("10")},
			},
		},
		{
			name:     "partial settlement clears the creditor in two transfers",
			balances: Balances{"A": c("50"), "B": c("-30"), "C": c("-20")},
			want: []Transfer{
				{From: "B", To: "A", Amount: c("30")},
				{From: "C", To: "A", Amount: c("20")},
			},
		},
		{
			name:     "one debtor pays several creditors, largest first",
			balances: Balances{"A": c("-60"), "B": c("15"), "C": c("45")},
			want: []Transfer{
				{From: "A", To: "C", Amount: c("45")},
				{From: "A", To: "B", Amount: c("15")},
			},
		},
		{
			name:     "both pointers advance together",
			balances: Balances{"A": c("10"), "B": c("-10"), "C": c("5"), "D": c("-5")},
			want: []Transfer{
				{From: "B", To: "A", Amount: c("10")},
				{From: "D", To: "C", Amount: c("5")},
			},
		},
		{
			name:     "one cent debts are real",
			balances: Balances{"A": c("0.01"), "B": c("-0.01")},
			want:     []Transfer{{From: "B", To: "A", Amount: c("0.01")}},
		},
		{
			name:     "creditors only",
			balances: Balances{"A": c("5")},
			want:     []Transfer{},
		},
		{
			name:     "inconsistent ledger leaves creditor residue silently",
			balances: Balances{"A": c("20"), "B": c("-10")},
			want:     []Transfer{{From: "B", To: "A", Amount: c("10")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanSettlements(tt.balances)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

// randomLedger builds a self-consistent ledger with even splits and random
// settlements.
func randomLedger(r *rand.Rand) ([]Expense, []Settlement) {
	users := make([]string, 2+r.Intn(6))
	for i := range users {
		users[i] = fmt.Sprintf("u%d", i)
	}

	var expenses []Expense
	for n := r.Intn(12); n > 0; n-- {
		total := money.Cents(1 + r.Int63n(50000))
		members := users[:1+r.Intn(len(users))]
		share := total.DivRound(int64(len(members)))

		splits := make([]Split, len(members))
		for i, m := range members {
			splits[i] = Split{UserID: m, Amount: share}
		}
		splits[0].Amount = total - share*money.Cents(len(members)-1)

		expenses = append(expenses, Expense{
			PaidBy: users[r.Intn(len(users))],
			Amount: total,
			Splits: splits,
		})
	}

	var settlements []Settlement
	for n := r.Intn(4); n > 0; n-- {
		from, to := users[r.Intn(len(users))], users[r.Intn(len(users))]
		if from == to {
			continue
		}
		settlements = append(settlements, Settlement{From: from, To: to, Amount: money.Cents(1 + r.Int63n(10000))})
	}
	return expenses, settlements
}

func TestLedgerProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		expenses, settlements := randomLedger(r)

		balances := CalculateBalances(expenses, settlements)
		require.Zero(t, balances.Total(), "balances must sum to zero")
		require.Equal(t, balances, CalculateBalances(expenses, settlements), "calculation must be repeatable")

		plan := PlanSettlements(balances)
		for _, tr := range plan {
			require.Positive(t, int64(tr.Amount))
			require.NotEqual(t, tr.From, tr.To)
		}
		require.LessOrEqual(t, len(plan), max(len(balances)-1, 0))

		for user, v := range balances.Apply(plan) {
			require.Zerof(t, v, "user %s not settled after plan", user)
		}
	}
}

func TestPlanSettlementsDeterministic(t *testing.T) {
	balances := Balances{"d": c("-10"), "b": c("-10"), "a": c("10"), "c": c("10")}
	first := PlanSettlements(balances)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, PlanSettlements(balances))
	}
	assert.Equal(t, []Transfer{
		{From: "b", To: "a", Amount: c("10")},
		{From: "d", To: "c", Amount: c("10")},
	}, first)
}
