// Package databasetest provides migrated SQLite databases for tests.
package databasetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/settleup/internal/database"
)

// New returns a fresh migrated database in the test's temp directory.
func New(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "settleup.db")

	require.NoError(t, database.Migrate(ctx, database.DriverSQLite, dsn))

	db, err := database.Open(ctx, database.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

// SeedUser inserts a user directly and returns its id.
func SeedUser(t *testing.T, db *sql.DB, username string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, username, email, created_at) VALUES ($1, $2, $3, $4)`,
		id, username, username+"@example.com", database.Millis(time.Now()),
	)
	require.NoError(t, err)
	return id
}
