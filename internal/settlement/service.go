package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/settleup/internal/ledger"
	"github.com/fkhayef/settleup/internal/metrics"
	"github.com/fkhayef/settleup/internal/money"
)

// Common errors
var (
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrCannotSettleSelf   = errors.New("cannot record a payment to yourself")
	ErrNonPositiveAmount  = errors.New("amount must be greater than zero")
)

// GroupDirectory checks group membership.
type GroupDirectory interface {
	RequireMember(ctx context.Context, groupID, userID string) error
}

// Notifier is told when a payment is recorded.
type Notifier interface {
	NotifySettlementRecorded(ctx context.Context, recipientID, fromUserID string, amount money.Cents, settlementID string) error
}

// Service handles settlement business logic
type Service struct {
	repo     *Repository
	groups   GroupDirectory
	notifier Notifier
}

// NewService creates a new settlement service. notifier may be nil.
func NewService(repo *Repository, groups GroupDirectory, notifier Notifier) *Service {
	return &Service{repo: repo, groups: groups, notifier: notifier}
}

// Record stores a payment from one member to another. Callers validate the
// amount against the payer's outstanding debt first.
func (s *Service) Record(ctx context.Context, groupID, fromUserID, toUserID string, amount money.Cents, note *string) (*Settlement, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotSettleSelf
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	settlement := &Settlement{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		Note:       note,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.Create(ctx, settlement); err != nil {
		slog.Error("failed to record settlement", "group_id", groupID, "from", fromUserID, "to", toUserID, "error", err)
		return nil, err
	}
	metrics.SettlementsRecorded.Inc()

	slog.Info("settlement recorded",
		"settlement_id", settlement.ID,
		"group_id", groupID,
		"from", fromUserID,
		"to", toUserID,
		"amount", amount.String(),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifySettlementRecorded(ctx, toUserID, fromUserID, amount, settlement.ID); err != nil {
			slog.Warn("failed to notify settlement receiver", "settlement_id", settlement.ID, "error", err)
		}
	}

	return settlement, nil
}

// GetByID returns a settlement to a member of its group.
func (s *Service) GetByID(ctx context.Context, callerID, id string) (*Settlement, error) {
	settlement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, ErrSettlementNotFound
	}

	if err := s.groups.RequireMember(ctx, settlement.GroupID, callerID); err != nil {
		return nil, err
	}
	return settlement, nil
}

// ListByGroup lists a group's settlements, newest first.
func (s *Service) ListByGroup(ctx context.Context, callerID, groupID string, page, perPage int) ([]*Settlement, int, error) {
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

// ListLedgerByGroup returns the group's settlements for balance calculation.
func (s *Service) ListLedgerByGroup(ctx context.Context, groupID string) ([]ledger.Settlement, error) {
	return s.repo.ListLedgerByGroup(ctx, groupID)
}
