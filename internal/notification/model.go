package notification

import "time"

// EntityType names the ledger record a notification points at.
type EntityType string

const (
	EntityExpense    EntityType = "EXPENSE"
	EntitySettlement EntityType = "SETTLEMENT"
)

// Notification represents a notification in the system
type Notification struct {
	ID                string      `json:"id"`
	RecipientID       string      `json:"recipient_id"`
	Message           string      `json:"message"`
	IsRead            bool        `json:"is_read"`
	RelatedEntityType *EntityType `json:"related_entity_type,omitempty"`
	RelatedEntityID   *string     `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}
