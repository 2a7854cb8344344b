package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/settleup/internal/money"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
)

// Service handles notification business logic
type Service struct {
	repo *Repository
}

// NewService creates a new notification service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) create(ctx context.Context, recipientID, message string, entityType EntityType, entityID string) error {
	return s.repo.Create(ctx, &Notification{
		ID:                uuid.NewString(),
		RecipientID:       recipientID,
		Message:           message,
		RelatedEntityType: &entityType,
		RelatedEntityID:   &entityID,
		CreatedAt:         time.Now().UTC().Truncate(time.Millisecond),
	})
}

// NotifyExpenseAdded tells a split user what they owe for a new expense.
func (s *Service) NotifyExpenseAdded(ctx context.Context, recipientID, description string, share money.Cents, expenseID string) error {
	message := fmt.Sprintf("You owe %s for %q", share, description)
	return s.create(ctx, recipientID, message, EntityExpense, expenseID)
}

// NotifySettlementRecorded tells the receiver that a payment was recorded.
func (s *Service) NotifySettlementRecorded(ctx context.Context, recipientID, fromUserID string, amount money.Cents, settlementID string) error {
	message := fmt.Sprintf("User %s recorded a payment of %s to you", fromUserID, amount)
	return s.create(ctx, recipientID, message, EntitySettlement, settlementID)
}

// ListByRecipientID retrieves all notifications for a user
func (s *Service) ListByRecipientID(ctx context.Context, recipientID string, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID string) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notification == nil {
		return ErrNotificationNotFound
	}
	if notification.RecipientID != userID {
		return ErrNotRecipient
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}
