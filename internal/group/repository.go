package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/settleup/internal/database"
)

// Repository handles group data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const memberColumns = `gm.group_id, gm.user_id, gm.role, gm.seq, gm.joined_at, u.username, u.email`

// Create inserts the group and its initial members in one transaction.
// members are stored in slice order.
func (r *Repository) Create(ctx context.Context, g *Group, members []*GroupMember) error {
	return database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO groups (id, name, description, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, g.ID, g.Name, g.Description, g.CreatedBy, database.Millis(g.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		for i, m := range members {
			m.Seq = i + 1
			if err := insertMember(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMember(ctx context.Context, tx *sql.Tx, m *GroupMember) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role, seq, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.GroupID, m.UserID, m.Role, m.Seq, database.Millis(m.JoinedAt))
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Group, error) {
	query := `
		SELECT id, name, description, created_by, created_at
		FROM groups
		WHERE id = $1
	`

	var (
		group     Group
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CreatedBy,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.CreatedAt = database.FromMillis(createdAt)

	return &group, nil
}

// ListByUserID retrieves all groups for a user
func (r *Repository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*Group, int, error) {
	// Get total count
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM group_members
		WHERE user_id = $1
	`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT g.id, g.name, g.description, g.created_by, g.created_at
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.created_at DESC, g.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*Group{}
	for rows.Next() {
		var (
			group     Group
			createdAt int64
		)
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Description,
			&group.CreatedBy,
			&createdAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		group.CreatedAt = database.FromMillis(createdAt)
		groups = append(groups, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}

	return groups, total, nil
}

// ListIDsByUserID returns the ids of every group the user belongs to.
func (r *Repository) ListIDsByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id FROM group_members WHERE user_id = $1 ORDER BY group_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetMember returns the membership row, or nil when the user is not a member.
func (r *Repository) GetMember(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1 AND gm.user_id = $2
	`

	member, err := scanMember(r.db.QueryRowContext(ctx, query, groupID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// GetMembers lists members in join order.
func (r *Repository) GetMembers(ctx context.Context, groupID string) ([]*GroupMember, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.seq, gm.user_id
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []*GroupMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}

	return members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*GroupMember, error) {
	var (
		member   GroupMember
		joinedAt int64
	)
	if err := row.Scan(
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.Seq,
		&joinedAt,
		&member.Username,
		&member.Email,
	); err != nil {
		return nil, err
	}
	member.JoinedAt = database.FromMillis(joinedAt)
	return &member, nil
}

// AddMember appends a member after the current last one.
func (r *Repository) AddMember(ctx context.Context, m *GroupMember) error {
	return database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		var last int
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(seq), 0) FROM group_members WHERE group_id = $1
		`, m.GroupID).Scan(&last)
		if err != nil {
			return fmt.Errorf("failed to read member order: %w", err)
		}

		m.Seq = last + 1
		return insertMember(ctx, tx, m)
	})
}

// RemoveMember removes a user from a group
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// Delete removes the group with its ledger history in one transaction.
func (r *Repository) Delete(ctx context.Context, id string) error {
	statements := []string{
		`DELETE FROM expense_splits WHERE expense_id IN (SELECT id FROM expenses WHERE group_id = $1)`,
		`DELETE FROM expenses WHERE group_id = $1`,
		`DELETE FROM settlements WHERE group_id = $1`,
		`DELETE FROM group_members WHERE group_id = $1`,
		`DELETE FROM groups WHERE id = $1`,
	}

	return database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete group: %w", err)
			}
		}
		return nil
	})
}
