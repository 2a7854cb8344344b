package group

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/settleup/internal/database/databasetest"
	"github.com/fkhayef/settleup/internal/user"
	"github.com/fkhayef/settleup/pkg/middleware"
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	alice   string
	bob     string
	charlie string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := databasetest.New(t)
	users := user.NewService(user.NewRepository(db))
	return &fixture{
		db:      db,
		svc:     NewService(NewRepository(db), users),
		alice:   databasetest.SeedUser(t, db, "alice"),
		bob:     databasetest.SeedUser(t, db, "bob"),
		charlie: databasetest.SeedUser(t, db, "charlie"),
	}
}

func memberIDs(members []*GroupMember) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids
}

func TestCreateOrdersCreatorFirstAndDeduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, members, err := f.svc.Create(ctx, f.bob, &CreateGroupRequest{
		Name:      "Trip",
		MemberIDs: []string{f.charlie, f.bob, f.alice, f.charlie, ""},
	})
	require.NoError(t, err)

	assert.Equal(t, f.bob, g.CreatedBy)
	assert.Equal(t, []string{f.bob, f.charlie, f.alice}, memberIDs(members))
	assert.Equal(t, MemberRoleAdmin, members[0].Role)
	assert.Equal(t, MemberRoleMember, members[1].Role)
	assert.Equal(t, "charlie", members[1].Username)

	ids, err := f.svc.MemberIDs(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.bob, f.charlie, f.alice}, ids)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.Create(ctx, f.alice, &CreateGroupRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, _, err = f.svc.Create(ctx, f.alice, &CreateGroupRequest{Name: "Trip", MemberIDs: []string{"ghost"}})
	assert.ErrorIs(t, err, ErrUserNotFound)

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM groups`).Scan(&n))
	assert.Zero(t, n, "failed create must not leave a group behind")
}

func TestMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, _, err := f.svc.Create(ctx, f.alice, &CreateGroupRequest{Name: "Flat", MemberIDs: []string{f.bob}})
	require.NoError(t, err)

	require.NoError(t, f.svc.RequireMember(ctx, g.ID, f.bob))
	assert.ErrorIs(t, f.svc.RequireMember(ctx, g.ID, f.charlie), ErrNotGroupMember)
	assert.ErrorIs(t, f.svc.RequireMember(ctx, "missing", f.alice), ErrGroupNotFound)

	_, err = f.svc.AddMember(ctx, f.bob, g.ID, f.charlie)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	m, err := f.svc.AddMember(ctx, f.alice, g.ID, f.charlie)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Seq)

	_, err = f.svc.AddMember(ctx, f.alice, g.ID, f.charlie)
	assert.ErrorIs(t, err, ErrMemberAlreadyExists)

	_, err = f.svc.AddMember(ctx, f.alice, g.ID, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, f.svc.RemoveMember(ctx, f.alice, g.ID, f.alice), ErrCannotRemoveSelf)
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, f.bob, g.ID, f.charlie), ErrNotAuthorized)
	require.NoError(t, f.svc.RemoveMember(ctx, f.alice, g.ID, f.charlie))
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, f.alice, g.ID, f.charlie), ErrMemberNotFound)

	admin, err := f.svc.IsAdmin(ctx, g.ID, f.alice)
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = f.svc.IsAdmin(ctx, g.ID, f.charlie)
	require.NoError(t, err)
	assert.False(t, admin)
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g1, _, err := f.svc.Create(ctx, f.alice, &CreateGroupRequest{Name: "One", MemberIDs: []string{f.bob}})
	require.NoError(t, err)
	_, _, err = f.svc.Create(ctx, f.alice, &CreateGroupRequest{Name: "Two"})
	require.NoError(t, err)

	groups, total, err := f.svc.ListByUserID(ctx, f.alice, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, groups, 2)

	ids, err := f.svc.ListIDsByUserID(ctx, f.bob)
	require.NoError(t, err)
	assert.Equal(t, []string{g1.ID}, ids)

	_, err = f.db.Exec(`INSERT INTO expenses (id, group_id, payer_id, description, amount, split_type, created_at) VALUES ('e1', $1, $2, 'x', 100, 'EVEN', 0)`, g1.ID, f.alice)
	require.NoError(t, err)
	_, err = f.db.Exec(`INSERT INTO expense_splits (expense_id, split_index, user_id, amount) VALUES ('e1', 0, $1, 100)`, f.alice)
	require.NoError(t, err)
	_, err = f.db.Exec(`INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount, created_at) VALUES ('s1', $1, $2, $3, 10, 0)`, g1.ID, f.bob, f.alice)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.bob, g1.ID), ErrNotAuthorized)
	require.NoError(t, f.svc.Delete(ctx, f.alice, g1.ID))

	for _, table := range []string{"expense_splits", "expenses", "settlements"} {
		var n int
		require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
	_, err = f.svc.GetByID(ctx, g1.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func do(h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
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

func TestHandler(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc).Routes()

	w := do(h, http.MethodPost, "/", f.alice, CreateGroupRequest{Name: "Trip", MemberIDs: []string{f.bob}})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data GroupResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID
	require.Len(t, created.Data.Members, 2)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/"+id, f.bob, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/"+id, f.charlie, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/missing", f.alice, nil).Code)

	w = do(h, http.MethodGet, "/?per_page=1", f.alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_pages":1`)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/"+id+"/members", f.alice, AddMemberRequest{}).Code)
	assert.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/"+id+"/members", f.alice, AddMemberRequest{UserID: f.charlie}).Code)
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/"+id+"/members", f.alice, AddMemberRequest{UserID: f.charlie}).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodDelete, "/"+id+"/members/"+f.alice, f.alice, nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodDelete, "/"+id+"/members/"+f.charlie, f.alice, nil).Code)

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodDelete, "/"+id, f.bob, nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodDelete, "/"+id, f.alice, nil).Code)
}
