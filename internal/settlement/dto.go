package settlement

import (
	"time"

	"github.com/fkhayef/settleup/internal/money"
)

// SettlementResponse represents the response for a settlement
type SettlementResponse struct {
	ID           string      `json:"id"`
	GroupID      string      `json:"group_id"`
	FromUserID   string      `json:"from_user_id"`
	FromUsername string      `json:"from_username,omitempty"`
	ToUserID     string      `json:"to_user_id"`
	ToUsername   string      `json:"to_username,omitempty"`
	Amount       money.Cents `json:"amount" swaggertype:"number"`
	Note         *string     `json:"note,omitempty"`
	CreatedAt    string      `json:"created_at"`
}

// ToResponse converts a Settlement model to a SettlementResponse DTO
func (s *Settlement) ToResponse() *SettlementResponse {
	return &SettlementResponse{
		ID:           s.ID,
		GroupID:      s.GroupID,
		FromUserID:   s.FromUserID,
		FromUsername: s.FromUsername,
		ToUserID:     s.ToUserID,
		ToUsername:   s.ToUsername,
		Amount:       s.Amount,
		Note:         s.Note,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
	}
}
