package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/settleup/internal/expense/split"
	"github.com/fkhayef/settleup/internal/ledger"
	"github.com/fkhayef/settleup/internal/metrics"
	"github.com/fkhayef/settleup/internal/money"
)

// Common errors
var (
	ErrExpenseNotFound      = errors.New("expense not found")
	ErrInvalidDescription   = errors.New("description must be between 1 and 255 characters")
	ErrParticipantNotMember = errors.New("every participant must be a member of the group")
	ErrNotAuthorized        = errors.New("only the payer or the group admin can delete this expense")
)

// GroupDirectory is the part of the group service expenses rely on.
type GroupDirectory interface {
	RequireMember(ctx context.Context, groupID, userID string) error
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
}

// Notifier is told about each split user's new share.
type Notifier interface {
	NotifyExpenseAdded(ctx context.Context, recipientID, description string, share money.Cents, expenseID string) error
}

// Service handles expense business logic
type Service struct {
	repo         *Repository
	splitFactory *split.Factory
	groups       GroupDirectory
	notifier     Notifier
}

// NewService creates a new expense service. notifier may be nil.
func NewService(repo *Repository, splitFactory *split.Factory, groups GroupDirectory, notifier Notifier) *Service {
	return &Service{
		repo:         repo,
		splitFactory: splitFactory,
		groups:       groups,
		notifier:     notifier,
	}
}

// CreateExpense records an expense paid by payerID and splits it with the
// requested strategy. Without participants the whole group shares it evenly,
// in join order.
func (s *Service) CreateExpense(ctx context.Context, payerID string, req *CreateExpenseRequest) (*ExpenseWithSplits, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" || len([]rune(description)) > 255 {
		return nil, ErrInvalidDescription
	}

	strategy, err := s.splitFactory.CreateFromString(strings.ToUpper(req.SplitType))
	if err != nil {
		return nil, err
	}

	if err := s.groups.RequireMember(ctx, req.GroupID, payerID); err != nil {
		return nil, err
	}

	memberIDs, err := s.groups.MemberIDs(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	var inputs []split.SplitInput
	if len(req.Participants) == 0 && strategy.Type() == split.SplitTypeEven {
		inputs = make([]split.SplitInput, len(memberIDs))
		for i, id := range memberIDs {
			inputs[i] = split.SplitInput{UserID: id}
		}
	} else {
		members := make(map[string]bool, len(memberIDs))
		for _, id := range memberIDs {
			members[id] = true
		}

		inputs = make([]split.SplitInput, len(req.Participants))
		for i, p := range req.Participants {
			if p == nil || !members[p.UserID] {
				return nil, ErrParticipantNotMember
			}
			inputs[i] = p.ToSplitInput()
		}
	}

	outputs, err := strategy.Calculate(req.Amount, inputs)
	if err != nil {
		return nil, err
	}

	expense := &Expense{
		ID:          uuid.NewString(),
		GroupID:     req.GroupID,
		PayerID:     payerID,
		Description: description,
		Amount:      req.Amount,
		SplitType:   strategy.Type(),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}

	splits := make([]*Split, len(outputs))
	for i, o := range outputs {
		splits[i] = &Split{ExpenseID: expense.ID, Index: i, UserID: o.UserID, Amount: o.Amount}
	}

	if err := s.repo.Create(ctx, expense, splits); err != nil {
		slog.Error("failed to create expense", "group_id", req.GroupID, "payer_id", payerID, "error", err)
		return nil, err
	}
	metrics.ExpensesCreated.Inc()

	slog.Info("expense created",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"amount", expense.Amount.String(),
		"split_type", expense.SplitType,
	)

	s.notifySplits(ctx, expense, splits)

	return &ExpenseWithSplits{Expense: expense, Splits: splits}, nil
}

func (s *Service) notifySplits(ctx context.Context, e *Expense, splits []*Split) {
	if s.notifier == nil {
		return
	}
	for _, sp := range splits {
		if sp.UserID == e.PayerID || sp.Amount <= 0 {
			continue
		}
		if err := s.notifier.NotifyExpenseAdded(ctx, sp.UserID, e.Description, sp.Amount, e.ID); err != nil {
			slog.Warn("failed to notify split user", "expense_id", e.ID, "user_id", sp.UserID, "error", err)
		}
	}
}

// GetExpenseByID retrieves an expense with its splits for a group member.
func (s *Service) GetExpenseByID(ctx context.Context, callerID, id string) (*ExpenseWithSplits, error) {
	expense, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	if err := s.groups.RequireMember(ctx, expense.GroupID, callerID); err != nil {
		return nil, err
	}

	splits, err := s.repo.GetSplits(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExpenseWithSplits{Expense: expense, Splits: splits}, nil
}

// ListExpensesByGroupID retrieves expenses for a group, newest first
func (s *Service) ListExpensesByGroupID(ctx context.Context, callerID, groupID string, page, perPage int) ([]*Expense, int, error) {
	if err := s.groups.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByGroup(ctx, groupID, perPage, offset)
}

// ListLedgerByGroup returns the group's expenses for balance calculation.
func (s *Service) ListLedgerByGroup(ctx context.Context, groupID string) ([]ledger.Expense, error) {
	return s.repo.ListLedgerByGroup(ctx, groupID)
}

// DeleteExpense removes an expense. The payer and the group admin may do so.
func (s *Service) DeleteExpense(ctx context.Context, callerID, id string) error {
	expense, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if expense == nil {
		return ErrExpenseNotFound
	}

	if expense.PayerID != callerID {
		admin, err := s.groups.IsAdmin(ctx, expense.GroupID, callerID)
		if err != nil {
			return err
		}
		if !admin {
			return ErrNotAuthorized
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		slog.Error("failed to delete expense", "expense_id", id, "error", err)
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	slog.Info("expense deleted", "expense_id", id, "by", callerID)
	return nil
}
