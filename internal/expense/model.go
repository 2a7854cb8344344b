package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/settleup/internal/expense/split"
	"github.com/fkhayef/settleup/internal/money"
)

// Expense represents an expense in the system
type Expense struct {
	ID          string          `json:"id"`
	GroupID     string          `json:"group_id"`
	PayerID     string          `json:"payer_id"`
	Description string          `json:"description"`
	Amount      money.Cents     `json:"amount"`
	SplitType   split.SplitType `json:"split_type"`
	CreatedAt   time.Time       `json:"created_at"`

	// Populated via JOIN
	PayerUsername string `json:"payer_username,omitempty"`
}

// Split is one participant's share of an expense. Index 0 carries any
// rounding remainder.
type Split struct {
	ExpenseID string      `json:"expense_id"`
	Index     int         `json:"index"`
	UserID    string      `json:"user_id"`
	Amount    money.Cents `json:"amount"`

	// Populated via JOIN
	Username string `json:"username,omitempty"`
}

// ExpenseWithSplits combines an expense with its calculated splits
type ExpenseWithSplits struct {
	Expense *Expense
	Splits  []*Split
}

// SplitParticipant is used when creating an expense with splits
type SplitParticipant struct {
	UserID     string           `json:"user_id"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"` // For PERCENTAGE split
	Amount     *money.Cents     `json:"amount,omitempty"`     // For EXACT split
}

// ToSplitInput converts to the split package's input type
func (p *SplitParticipant) ToSplitInput() split.SplitInput {
	return split.SplitInput{
		UserID:     p.UserID,
		Percentage: p.Percentage,
		Amount:     p.Amount,
	}
}
