package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/settleup/internal/database"
	"github.com/fkhayef/settleup/internal/ledger"
	"github.com/fkhayef/settleup/internal/money"
)

// Repository handles settlement data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settlement repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new settlement
func (r *Repository) Create(ctx context.Context, s *Settlement) error {
	query := `
		INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.GroupID, s.FromUserID, s.ToUserID, int64(s.Amount), s.Note, database.Millis(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

const columns = `
	s.id, s.group_id, s.from_user_id, s.to_user_id, s.amount, s.note, s.created_at,
	COALESCE(fu.username, ''), COALESCE(tu.username, '')
`

const fromJoins = `
	FROM settlements s
	LEFT JOIN users fu ON fu.id = s.from_user_id
	LEFT JOIN users tu ON tu.id = s.to_user_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(row rowScanner) (*Settlement, error) {
	var (
		s         Settlement
		amount    int64
		createdAt int64
	)
	if err := row.Scan(
		&s.ID,
		&s.GroupID,
		&s.FromUserID,
		&s.ToUserID,
		&amount,
		&s.Note,
		&createdAt,
		&s.FromUsername,
		&s.ToUsername,
	); err != nil {
		return nil, err
	}
	s.Amount = money.Cents(amount)
	s.CreatedAt = database.FromMillis(createdAt)
	return &s, nil
}

// GetByID retrieves a settlement by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Settlement, error) {
	query := `SELECT ` + columns + fromJoins + ` WHERE s.id = $1`

	s, err := scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return s, nil
}

// ListByGroup retrieves a page of a group's settlements, newest first
func (r *Repository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]*Settlement, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlements WHERE group_id = $1`, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	query := `SELECT ` + columns + fromJoins + `
		WHERE s.group_id = $1
		ORDER BY s.created_at DESC, s.id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	settlements := []*Settlement{}
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list settlements: %w", err)
	}

	return settlements, total, nil
}

// ListLedgerByGroup loads the group's settlements for balance calculation.
func (r *Repository) ListLedgerByGroup(ctx context.Context, groupID string) ([]ledger.Settlement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT from_user_id, to_user_id, amount
		FROM settlements
		WHERE group_id = $1
		ORDER BY created_at, id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group settlements: %w", err)
	}
	defer rows.Close()

	var settlements []ledger.Settlement
	for rows.Next() {
		var (
			s      ledger.Settlement
			amount int64
		)
		if err := rows.Scan(&s.From, &s.To, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		s.Amount = money.Cents(amount)
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load group settlements: %w", err)
	}

	return settlements, nil
}
