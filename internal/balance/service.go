// Package balance serves group balances and settle-up plans and records
// payments against them.
package balance

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fkhayef/settleup/internal/group"
	"github.com/fkhayef/settleup/internal/ledger"
	"github.com/fkhayef/settleup/internal/metrics"
	"github.com/fkhayef/settleup/internal/money"
	"github.com/fkhayef/settleup/internal/settlement"
	"github.com/fkhayef/settleup/pkg/lock"
)

// Common errors
var (
	ErrMissingGroupID     = errors.New("group ID required")
	ErrMissingRecipient   = errors.New("recipient required")
	ErrRecipientNotMember = errors.New("recipient is not a member of this group")
	ErrExceedsOutstanding = errors.New("amount exceeds outstanding debt")
	ErrNoteTooLong        = errors.New("note must be at most 255 characters")
)

// GroupDirectory answers membership questions.
type GroupDirectory interface {
	RequireMember(ctx context.Context, groupID, userID string) error
	ListIDsByUserID(ctx context.Context, userID string) ([]string, error)
}

// ExpenseLedger loads a group's expenses.
type ExpenseLedger interface {
	ListLedgerByGroup(ctx context.Context, groupID string) ([]ledger.Expense, error)
}

// SettlementLedger loads and appends a group's settlements.
type SettlementLedger interface {
	ListLedgerByGroup(ctx context.Context, groupID string) ([]ledger.Settlement, error)
	Record(ctx context.Context, groupID, fromUserID, toUserID string, amount money.Cents, note *string) (*settlement.Settlement, error)
}

// Service computes balances from a fresh snapshot on every call.
type Service struct {
	groups      GroupDirectory
	expenses    ExpenseLedger
	settlements SettlementLedger
	locker      lock.Locker
}

// NewService creates a new balance service. A nil locker serialises settle
// actions within this process only.
func NewService(groups GroupDirectory, expenses ExpenseLedger, settlements SettlementLedger, locker lock.Locker) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{
		groups:      groups,
		expenses:    expenses,
		settlements: settlements,
		locker:      locker,
	}
}

func (s *Service) calculate(ctx context.Context, groupID string) (ledger.Balances, error) {
	expenses, err := s.expenses.ListLedgerByGroup(ctx, groupID)
	if err != nil {
		slog.Error("failed to load expenses", "group_id", groupID, "error", err)
		return nil, err
	}
	settlements, err := s.settlements.ListLedgerByGroup(ctx, groupID)
	if err != nil {
		slog.Error("failed to load settlements", "group_id", groupID, "error", err)
		return nil, err
	}
	return ledger.CalculateBalances(expenses, settlements), nil
}

// GroupBalances returns every user's net balance in the group.
func (s *Service) GroupBalances(ctx context.Context, callerID, groupID string) (ledger.Balances, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	if err := s.groups.RequireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	return s.calculate(ctx, groupID)
}

// SettlePlan returns the transfers that would settle the group.
func (s *Service) SettlePlan(ctx context.Context, callerID, groupID string) ([]ledger.Transfer, error) {
	balances, err := s.GroupBalances(ctx, callerID, groupID)
	if err != nil {
		return nil, err
	}

	plan := ledger.PlanSettlements(balances)
	metrics.PlanTransfers.Observe(float64(len(plan)))
	return plan, nil
}

// RecordSettlement records a payment of amount from actorID to req.To. The
// amount may not exceed what the actor owes the group when the call is made.
func (s *Service) RecordSettlement(ctx context.Context, actorID, groupID string, req *SettleRequest) error {
	if groupID == "" {
		return ErrMissingGroupID
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		return ErrMissingRecipient
	}
	if to == actorID {
		return settlement.ErrCannotSettleSelf
	}
	if req.Amount <= 0 {
		return settlement.ErrNonPositiveAmount
	}

	var note *string
	if req.Note != nil {
		if trimmed := strings.TrimSpace(*req.Note); trimmed != "" {
			if len([]rune(trimmed)) > 255 {
				return ErrNoteTooLong
			}
			note = &trimmed
		}
	}

	if err := s.groups.RequireMember(ctx, groupID, actorID); err != nil {
		return err
	}
	if err := s.groups.RequireMember(ctx, groupID, to); err != nil {
		if errors.Is(err, group.ErrNotGroupMember) {
			return ErrRecipientNotMember
		}
		return err
	}

	// Check and insert under the group lock so two concurrent payments
	// cannot both pass the outstanding check.
	return s.locker.WithLock(ctx, "settle:"+groupID, func() error {
		balances, err := s.calculate(ctx, groupID)
		if err != nil {
			return err
		}
		if owed := -balances[actorID]; req.Amount > owed {
			slog.Info("settlement rejected",
				"group_id", groupID,
				"from", actorID,
				"amount", req.Amount.String(),
				"outstanding", max(owed, 0).String(),
			)
			return ErrExceedsOutstanding
		}

		_, err = s.settlements.Record(ctx, groupID, actorID, to, req.Amount, note)
		return err
	})
}

// Dashboard sums the caller's balance over every group they belong to.
func (s *Service) Dashboard(ctx context.Context, userID string) (*DashboardResponse, error) {
	groupIDs, err := s.groups.ListIDsByUserID(ctx, userID)
	if err != nil {
		slog.Error("failed to list groups", "user_id", userID, "error", err)
		return nil, err
	}

	dash := &DashboardResponse{}
	for _, groupID := range groupIDs {
		balances, err := s.calculate(ctx, groupID)
		if err != nil {
			return nil, err
		}

		mine := balances[userID]
		dash.TotalBalance += mine
		switch {
		case mine > 0:
			dash.OwedToYou += mine
		case mine < 0:
			dash.YouOwe += mine.Abs()
		}
	}
	return dash, nil
}
