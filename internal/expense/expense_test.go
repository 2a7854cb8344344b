package expense

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/settleup/internal/database/databasetest"
	"github.com/fkhayef/settleup/internal/expense/split"
	"github.com/fkhayef/settleup/internal/group"
	"github.com/fkhayef/settleup/internal/ledger"
	"github.com/fkhayef/settleup/internal/money"
	"github.com/fkhayef/settleup/internal/notification"
	"github.com/fkhayef/settleup/internal/user"
	"github.com/fkhayef/settleup/pkg/middleware"
)

type fixture struct {
	db            *sql.DB
	svc           *Service
	notifications *notification.Service
	groupID       string
	alice         string
	bob           string
	charlie       string
	outsider      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := databasetest.New(t)
	f := &fixture{
		db:       db,
		alice:    databasetest.SeedUser(t, db, "alice"),
		bob:      databasetest.SeedUser(t, db, "bob"),
		charlie:  databasetest.SeedUser(t, db, "charlie"),
		outsider: databasetest.SeedUser(t, db, "outsider"),
	}

	groups := group.NewService(group.NewRepository(db), user.NewService(user.NewRepository(db)))
	g, _, err := groups.Create(context.Background(), f.alice, &group.CreateGroupRequest{
		Name:      "Trip",
		MemberIDs: []string{f.bob, f.charlie},
	})
	require.NoError(t, err)
	f.groupID = g.ID

	f.notifications = notification.NewService(notification.NewRepository(db))
	f.svc = NewService(NewRepository(db), split.NewSplitStrategyFactory(), groups, f.notifications)
	return f
}

func shares(splits []*Split) map[string]money.Cents {
	out := make(map[string]money.Cents, len(splits))
	for _, s := range splits {
		out[s.UserID] = s.Amount
	}
	return out
}

func TestCreateEvenOverWholeGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateExpense(ctx, f.bob, &CreateExpenseRequest{
		GroupID:     f.groupID,
		Description: "Dinner",
		Amount:      money.MustParse("100"),
	})
	require.NoError(t, err)

	assert.Equal(t, split.SplitTypeEven, res.Expense.SplitType)
	require.Len(t, res.Splits, 3)
	assert.Equal(t, f.alice, res.Splits[0].UserID, "first member carries the remainder")
	assert.Equal(t, money.MustParse("33.34"), res.Splits[0].Amount)
	assert.Equal(t, money.MustParse("33.33"), res.Splits[1].Amount)
	assert.Equal(t, money.MustParse("33.33"), res.Splits[2].Amount)

	got, err := f.svc.GetExpenseByID(ctx, f.charlie, res.Expense.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Expense.PayerUsername)
	assert.Equal(t, shares(res.Splits), shares(got.Splits))

	_, err = f.svc.GetExpenseByID(ctx, f.outsider, res.Expense.ID)
	assert.ErrorIs(t, err, group.ErrNotGroupMember)

	unread, err := f.notifications.GetUnreadCount(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	unread, err = f.notifications.GetUnreadCount(ctx, f.bob)
	require.NoError(t, err)
	assert.Zero(t, unread, "payer is not notified")
}

func TestCreateWithStrategies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exactA, exactB := money.MustParse("12.50"), money.MustParse("7.50")
	res, err := f.svc.CreateExpense(ctx, f.alice, &CreateExpenseRequest{
		GroupID:     f.groupID,
		Description: "Taxi",
		Amount:      money.MustParse("20"),
		SplitType:   "exact",
		Participants: []*SplitParticipant{
			{UserID: f.alice, Amount: &exactA},
			{UserID: f.bob, Amount: &exactB},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]money.Cents{f.alice: 1250, f.bob: 750}, shares(res.Splits))

	sixty, forty := decimal.NewFromInt(60), decimal.NewFromInt(40)
	res, err = f.svc.CreateExpense(ctx, f.alice, &CreateExpenseRequest{
		GroupID:     f.groupID,
		Description: "Hotel",
		Amount:      money.MustParse("250"),
		SplitType:   "PERCENTAGE",
		Participants: []*SplitParticipant{
			{UserID: f.bob, Percentage: &sixty},
			{UserID: f.charlie, Percentage: &forty},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]money.Cents{f.bob: 15000, f.charlie: 10000}, shares(res.Splits))

	res, err = f.svc.CreateExpense(ctx, f.alice, &CreateExpenseRequest{
		GroupID:      f.groupID,
		Description:  "Coffee",
		Amount:       money.MustParse("10"),
		Participants: []*SplitParticipant{{UserID: f.bob}, {UserID: f.charlie}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]money.Cents{f.bob: 500, f.charlie: 500}, shares(res.Splits))
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		payer string
		req   CreateExpenseRequest
		want  error
	}{
		{"payer outside group", f.outsider, CreateExpenseRequest{GroupID: f.groupID, Description: "x", Amount: 100}, group.ErrNotGroupMember},
		{"unknown group", f.alice, CreateExpenseRequest{GroupID: "missing", Description: "x", Amount: 100}, group.ErrGroupNotFound},
		{"participant outside group", f.alice, CreateExpenseRequest{GroupID: f.groupID, Description: "x", Amount: 100,
			Participants: []*SplitParticipant{{UserID: f.outsider}}}, ErrParticipantNotMember},
		{"blank description", f.alice, CreateExpenseRequest{GroupID: f.groupID, Description: " ", Amount: 100}, ErrInvalidDescription},
		{"zero amount", f.alice, CreateExpenseRequest{GroupID: f.groupID, Description: "x"}, split.ErrNonPositiveTotal},
		{"unknown split type", f.alice, CreateExpenseRequest{GroupID: f.groupID, Description: "x", Amount: 100, SplitType: "SHARES"}, split.ErrUnknownSplitType},
		{"exact without participants", f.alice, CreateExpenseRequest{GroupID: f.groupID, Description: "x", Amount: 100, SplitType: "EXACT"}, split.ErrNoParticipants},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateExpense(ctx, tt.payer, &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListLedgerByGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateExpense(ctx, f.alice, &CreateExpenseRequest{
		GroupID: f.groupID, Description: "Groceries", Amount: money.MustParse("30"),
	})
	require.NoError(t, err)

	// A legacy row with a split missing its user, and an expense with no
	// splits at all.
	_, err = f.db.Exec(`INSERT INTO expenses (id, group_id, payer_id, description, amount, split_type, created_at) VALUES ('legacy', $1, $2, 'old', 1000, 'EVEN', 9999999999999)`, f.groupID, f.bob)
	require.NoError(t, err)
	_, err = f.db.Exec(`INSERT INTO expense_splits (expense_id, split_index, user_id, amount) VALUES ('legacy', 0, NULL, 500), ('legacy', 1, $1, 500)`, f.charlie)
	require.NoError(t, err)
	_, err = f.db.Exec(`INSERT INTO expenses (id, group_id, payer_id, description, amount, split_type, created_at) VALUES ('bare', $1, $2, 'bare', 200, 'EVEN', 9999999999999)`, f.groupID, f.charlie)
	require.NoError(t, err)

	expenses, err := f.svc.ListLedgerByGroup(ctx, f.groupID)
	require.NoError(t, err)
	require.Len(t, expenses, 3)

	balances := ledger.CalculateBalances(expenses, nil)
	assert.Equal(t, ledger.Balances{
		f.alice:   money.MustParse("20"),
		f.bob:     money.MustParse("0"),
		f.charlie: money.MustParse("-13"),
	}, balances)

	page, total, err := f.svc.ListExpensesByGroupID(ctx, f.alice, f.groupID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)
}

func TestDeletePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	create := func(payer string) string {
		res, err := f.svc.CreateExpense(ctx, payer, &CreateExpenseRequest{GroupID: f.groupID, Description: "x", Amount: 300})
		require.NoError(t, err)
		return res.Expense.ID
	}

	byBob := create(f.bob)
	assert.ErrorIs(t, f.svc.DeleteExpense(ctx, f.charlie, byBob), ErrNotAuthorized)
	require.NoError(t, f.svc.DeleteExpense(ctx, f.bob, byBob))
	assert.ErrorIs(t, f.svc.DeleteExpense(ctx, f.bob, byBob), ErrExpenseNotFound)

	byCharlie := create(f.charlie)
	require.NoError(t, f.svc.DeleteExpense(ctx, f.alice, byCharlie), "group admin may delete")

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM expense_splits`).Scan(&n))
	assert.Zero(t, n)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc).Routes()

	do := func(method, path, userID string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/", f.alice, map[string]any{
		"group_id": f.groupID, "description": "Dinner", "amount": "100.00",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data ExpenseResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, money.MustParse("100"), created.Data.Amount)
	require.Len(t, created.Data.Splits, 3)
	assert.Contains(t, w.Body.String(), `"amount":33.34`)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/", f.alice, map[string]any{"description": "x", "amount": 1}).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/", f.alice,
		json.RawMessage(`{"group_id":"`+f.groupID+`","description":"Huge","amount":"184467440737095517.16"}`)).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/", f.alice, map[string]any{
		"group_id": f.groupID, "description": "x", "amount": 10, "split_type": "PERCENTAGE",
		"participants": []map[string]any{{"user_id": f.alice, "percentage": 50}},
	}).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/", f.outsider, map[string]any{
		"group_id": f.groupID, "description": "x", "amount": 10,
	}).Code)

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/"+created.Data.ID, f.bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/missing", f.bob, nil).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/group/"+f.groupID, f.bob, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodDelete, "/"+created.Data.ID, f.bob, nil).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/"+created.Data.ID, f.alice, nil).Code)
}
