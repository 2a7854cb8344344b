package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fkhayef/settleup/internal/database"
	"github.com/fkhayef/settleup/internal/ledger"
	"github.com/fkhayef/settleup/internal/money"
)

// Repository handles expense and split data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the expense and its splits in one transaction.
func (r *Repository) Create(ctx context.Context, e *Expense, splits []*Split) error {
	return database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO expenses (id, group_id, payer_id, description, amount, split_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, e.GroupID, e.PayerID, e.Description, int64(e.Amount), string(e.SplitType), database.Millis(e.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}

		for _, s := range splits {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO expense_splits (expense_id, split_index, user_id, amount)
				VALUES ($1, $2, $3, $4)
			`, e.ID, s.Index, s.UserID, int64(s.Amount))
			if err != nil {
				return fmt.Errorf("failed to create split: %w", err)
			}
		}
		return nil
	})
}

const expenseColumns = `e.id, e.group_id, e.payer_id, e.description, e.amount, e.split_type, e.created_at, COALESCE(u.username, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*Expense, error) {
	var (
		e         Expense
		amount    int64
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.GroupID, &e.PayerID, &e.Description, &amount, &e.SplitType, &createdAt, &e.PayerUsername); err != nil {
		return nil, err
	}
	e.Amount = money.Cents(amount)
	e.CreatedAt = database.FromMillis(createdAt)
	return &e, nil
}

// GetByID retrieves an expense by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		LEFT JOIN users u ON u.id = e.payer_id
		WHERE e.id = $1
	`

	e, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// GetSplits returns the expense's splits in index order. Rows without a
// user or amount are skipped.
func (r *Repository) GetSplits(ctx context.Context, expenseID string) ([]*Split, error) {
	query := `
		SELECT s.split_index, s.user_id, s.amount, COALESCE(u.username, '')
		FROM expense_splits s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.expense_id = $1
		ORDER BY s.split_index
	`

	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	splits := []*Split{}
	for rows.Next() {
		var (
			s      = Split{ExpenseID: expenseID}
			userID sql.NullString
			amount sql.NullInt64
		)
		if err := rows.Scan(&s.Index, &userID, &amount, &s.Username); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if !userID.Valid || userID.String == "" || !amount.Valid {
			slog.Warn("skipping incomplete split", "expense_id", expenseID, "index", s.Index)
			continue
		}
		s.UserID = userID.String
		s.Amount = money.Cents(amount.Int64)
		splits = append(splits, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}

	return splits, nil
}

// ListByGroup retrieves a page of a group's expenses, newest first
func (r *Repository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]*Expense, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE group_id = $1`, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		LEFT JOIN users u ON u.id = e.payer_id
		WHERE e.group_id = $1
		ORDER BY e.created_at DESC, e.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []*Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}

	return expenses, total, nil
}

// ListLedgerByGroup loads every expense of the group with its splits in the
// shape the balance calculation consumes.
func (r *Repository) ListLedgerByGroup(ctx context.Context, groupID string) ([]ledger.Expense, error) {
	query := `
		SELECT e.id, e.payer_id, e.amount, s.user_id, s.amount
		FROM expenses e
		LEFT JOIN expense_splits s ON s.expense_id = e.id
		WHERE e.group_id = $1
		ORDER BY e.created_at, e.id, s.split_index
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group expenses: %w", err)
	}
	defer rows.Close()

	var (
		expenses []ledger.Expense
		skipped  int
	)
	for rows.Next() {
		var (
			id, payerID string
			amount      int64
			splitUser   sql.NullString
			splitAmount sql.NullInt64
		)
		if err := rows.Scan(&id, &payerID, &amount, &splitUser, &splitAmount); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}

		if n := len(expenses); n == 0 || expenses[n-1].ID != id {
			expenses = append(expenses, ledger.Expense{ID: id, PaidBy: payerID, Amount: money.Cents(amount)})
		}

		// A LEFT JOIN row with no split at all has both columns NULL.
		if !splitUser.Valid && !splitAmount.Valid {
			continue
		}
		if !splitUser.Valid || !splitAmount.Valid {
			skipped++
			continue
		}

		last := &expenses[len(expenses)-1]
		last.Splits = append(last.Splits, ledger.Split{UserID: splitUser.String, Amount: money.Cents(splitAmount.Int64)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load group expenses: %w", err)
	}

	if skipped > 0 {
		slog.Warn("skipped incomplete splits", "group_id", groupID, "count", skipped)
	}
	return expenses, nil
}

// Delete removes an expense and its splits
func (r *Repository) Delete(ctx context.Context, id string) error {
	return database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete splits: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		return nil
	})
}
