package expense

import (
	"time"

	"github.com/fkhayef/settleup/internal/expense/split"
	"github.com/fkhayef/settleup/internal/money"
)

// CreateExpenseRequest represents the request to create an expense.
// Without participants an EVEN split covers every group member.
type CreateExpenseRequest struct {
	GroupID      string              `json:"group_id"`
	Description  string              `json:"description"`
	Amount       money.Cents         `json:"amount" swaggertype:"number"`
	SplitType    string              `json:"split_type,omitempty"`
	Participants []*SplitParticipant `json:"participants,omitempty"`
}

// ExpenseResponse represents the response for an expense
type ExpenseResponse struct {
	ID            string           `json:"id"`
	GroupID       string           `json:"group_id"`
	PayerID       string           `json:"payer_id"`
	PayerUsername string           `json:"payer_username,omitempty"`
	Description   string           `json:"description"`
	Amount        money.Cents      `json:"amount" swaggertype:"number"`
	SplitType     split.SplitType  `json:"split_type"`
	CreatedAt     string           `json:"created_at"`
	Splits        []*SplitResponse `json:"splits,omitempty"`
}

// SplitResponse represents the response for a split
type SplitResponse struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username,omitempty"`
	Amount   money.Cents `json:"amount" swaggertype:"number"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	return &ExpenseResponse{
		ID:            e.ID,
		GroupID:       e.GroupID,
		PayerID:       e.PayerID,
		PayerUsername: e.PayerUsername,
		Description:   e.Description,
		Amount:        e.Amount,
		SplitType:     e.SplitType,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

// ToResponse converts a Split model to a SplitResponse DTO
func (s *Split) ToResponse() *SplitResponse {
	return &SplitResponse{
		UserID:   s.UserID,
		Username: s.Username,
		Amount:   s.Amount,
	}
}

// ToResponse renders the expense with its splits in index order.
func (e *ExpenseWithSplits) ToResponse() *ExpenseResponse {
	resp := e.Expense.ToResponse()
	resp.Splits = make([]*SplitResponse, len(e.Splits))
	for i, s := range e.Splits {
		resp.Splits[i] = s.ToResponse()
	}
	return resp
}
