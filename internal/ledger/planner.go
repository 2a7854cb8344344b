package ledger

import (
	"cmp"
	"slices"

	"github.com/fkhayef/settleup/internal/money"
)

// position is a debtor's remaining debt or a creditor's remaining receivable,
// always as a positive amount.
type position struct {
	user   string
	amount money.Cents
}

// PlanSettlements produces the transfers that bring every balance to zero.
//
// Debtors and creditors are each ordered by amount, largest first, ties
// broken by user id, then matched greedily: the current debtor pays the
// current creditor the smaller of the two remaining amounts, and whichever
// side reaches zero moves on. The result is in generation order and is never
// nil, so it renders as an empty JSON array for a settled group.
func PlanSettlements(balances Balances) []Transfer {
	var debtors, creditors []position
	for user, amount := range balances {
		switch {
		case amount < 0:
			debtors = append(debtors, position{user: user, amount: -amount})
		case amount > 0:
			creditors = append(creditors, position{user: user, amount: amount})
		}
	}
	sortPositions(debtors)
	sortPositions(creditors)

	transfers := make([]Transfer, 0, max(len(debtors), len(creditors)))

	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		amount := min(debtor.amount, creditor.amount)
		if amount > 0 {
			transfers = append(transfers, Transfer{
				From:   debtor.user,
				To:     creditor.user,
				Amount: amount,
			})
			debtor.amount -= amount
			creditor.amount -= amount
		}

		if debtor.amount <= 0 {
			i++
		}
		if creditor.amount <= 0 {
			j++
		}
	}

	return transfers
}

func sortPositions(ps []position) {
	slices.SortFunc(ps, func(a, b position) int {
		if c := cmp.Compare(b.amount, a.amount); c != 0 {
			return c
		}
		return cmp.Compare(a.user, b.user)
	})
}
