package balance

import "github.com/fkhayef/settleup/internal/money"

// SettleRequest records a payment from the caller to another member
type SettleRequest struct {
	To     string      `json:"to"`
	Amount money.Cents `json:"amount" swaggertype:"number"`
	Note   *string     `json:"note,omitempty"`
}

// SettleResponse acknowledges a recorded payment
type SettleResponse struct {
	Success bool `json:"success"`
}

// DashboardResponse sums the caller's balance across all of their groups
type DashboardResponse struct {
	TotalBalance money.Cents `json:"total_balance" swaggertype:"number"`
	YouOwe       money.Cents `json:"you_owe" swaggertype:"number"`
	OwedToYou    money.Cents `json:"owed_to_you" swaggertype:"number"`
}
