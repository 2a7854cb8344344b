package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/settleup/internal/database/databasetest"
	"github.com/fkhayef/settleup/internal/group"
	"github.com/fkhayef/settleup/internal/ledger"
	"github.com/fkhayef/settleup/internal/money"
	"github.com/fkhayef/settleup/internal/notification"
	"github.com/fkhayef/settleup/internal/user"
	"github.com/fkhayef/settleup/pkg/middleware"
)

type fixture struct {
	svc           *Service
	notifications *notification.Service
	groupID       string
	alice         string
	bob           string
	outsider      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := databasetest.New(t)
	f := &fixture{
		alice:    databasetest.SeedUser(t, db, "alice"),
		bob:      databasetest.SeedUser(t, db, "bob"),
		outsider: databasetest.SeedUser(t, db, "outsider"),
	}

	groups := group.NewService(group.NewRepository(db), user.NewService(user.NewRepository(db)))
	g, _, err := groups.Create(context.Background(), f.alice, &group.CreateGroupRequest{
		Name:      "Flat",
		MemberIDs: []string{f.bob},
	})
	require.NoError(t, err)
	f.groupID = g.ID

	f.notifications = notification.NewService(notification.NewRepository(db))
	f.svc = NewService(NewRepository(db), groups, f.notifications)
	return f
}

func TestRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note := "rent"
	s, err := f.svc.Record(ctx, f.groupID, f.bob, f.alice, money.MustParse("12.50"), &note)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, err := f.svc.GetByID(ctx, f.alice, s.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Cents(1250), got.Amount)
	assert.Equal(t, "bob", got.FromUsername)
	assert.Equal(t, "alice", got.ToUsername)
	require.NotNil(t, got.Note)
	assert.Equal(t, "rent", *got.Note)
	assert.Equal(t, s.CreatedAt, got.CreatedAt)

	unread, err := f.notifications.GetUnreadCount(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	_, err = f.svc.Record(ctx, f.groupID, f.bob, f.bob, 100, nil)
	assert.ErrorIs(t, err, ErrCannotSettleSelf)
	_, err = f.svc.Record(ctx, f.groupID, f.bob, f.alice, 0, nil)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestReadAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.svc.Record(ctx, f.groupID, f.bob, f.alice, 500, nil)
	require.NoError(t, err)

	_, err = f.svc.GetByID(ctx, f.outsider, s.ID)
	assert.ErrorIs(t, err, group.ErrNotGroupMember)
	_, err = f.svc.GetByID(ctx, f.alice, "missing")
	assert.ErrorIs(t, err, ErrSettlementNotFound)
	_, _, err = f.svc.ListByGroup(ctx, f.outsider, f.groupID, 1, 20)
	assert.ErrorIs(t, err, group.ErrNotGroupMember)
}

func TestListLedgerByGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, f.groupID, f.bob, f.alice, 700, nil)
	require.NoError(t, err)
	_, err = f.svc.Record(ctx, f.groupID, f.alice, f.bob, 200, nil)
	require.NoError(t, err)

	settlements, err := f.svc.ListLedgerByGroup(ctx, f.groupID)
	require.NoError(t, err)
	require.Len(t, settlements, 2)

	assert.Equal(t, ledger.Balances{f.alice: -500, f.bob: 500}, ledger.CalculateBalances(nil, settlements))

	page, total, err := f.svc.ListByGroup(ctx, f.bob, f.groupID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, page, 1)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc).Routes()

	s, err := f.svc.Record(context.Background(), f.groupID, f.bob, f.alice, 999, nil)
	require.NoError(t, err)

	get := func(path, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := get("/"+s.ID, f.alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amount":9.99`)

	w = get("/group/"+f.groupID, f.bob)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []SettlementResponse `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 1)
	assert.Equal(t, 1, list.Meta.Total)

	assert.Equal(t, http.StatusForbidden, get("/"+s.ID, f.outsider).Code)
	assert.Equal(t, http.StatusNotFound, get("/missing", f.alice).Code)
	assert.Equal(t, http.StatusNotFound, get("/group/missing", f.alice).Code)
}
