package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fkhayef/settleup/internal/database"
)

// Repository handles user data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new user repository with database dependency injected
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, username, email, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, database.Millis(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailAlreadyInUse
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, username, email, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by their email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, username, email, created_at
		FROM users
		WHERE email = $1
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// Search matches query as a case-insensitive substring of email or username,
// leaving out excludeID.
func (r *Repository) Search(ctx context.Context, query, excludeID string, limit int) ([]*User, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, email, created_at
		FROM users
		WHERE (email LIKE $1 ESCAPE '!' OR LOWER(username) LIKE $1 ESCAPE '!')
		  AND id <> $2
		ORDER BY username, id
		LIMIT $3
	`, pattern, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		var (
			u         User
			createdAt int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.CreatedAt = database.FromMillis(createdAt)
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// scanUser returns nil, nil when the row does not exist.
func scanUser(row *sql.Row) (*User, error) {
	var (
		user      User
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = database.FromMillis(createdAt)
	return &user, nil
}

// isUniqueViolation matches both the postgres and the sqlite wording.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
