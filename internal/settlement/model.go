package settlement

import (
	"time"

	"github.com/fkhayef/settleup/internal/money"
)

// Settlement is a recorded payment from one group member to another.
// Settlements are append-only; a mistaken one is corrected by recording the
// reverse payment.
type Settlement struct {
	ID         string      `json:"id"`
	GroupID    string      `json:"group_id"`
	FromUserID string      `json:"from_user_id"`
	ToUserID   string      `json:"to_user_id"`
	Amount     money.Cents `json:"amount"`
	Note       *string     `json:"note,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`

	// Populated via JOIN
	FromUsername string `json:"from_username,omitempty"`
	ToUsername   string `json:"to_username,omitempty"`
}
