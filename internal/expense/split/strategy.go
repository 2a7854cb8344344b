// Package split allocates an expense total across participants.
//
// Every strategy returns one output per participant, in input order, and the
// outputs always sum exactly to the total. Any rounding remainder is put on
// the first participant.
package split

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/settleup/internal/money"
)

// SplitType defines the type of split strategy
type SplitType string

const (
	SplitTypeEven       SplitType = "EVEN"
	SplitTypePercentage SplitType = "PERCENTAGE"
	SplitTypeExact      SplitType = "EXACT"
)

// SplitInput is one participant with the value their strategy needs.
type SplitInput struct {
	UserID     string           `json:"user_id"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"` // PERCENTAGE only
	Amount     *money.Cents     `json:"amount,omitempty"`     // EXACT only
}

// SplitOutput is the amount one participant owes.
type SplitOutput struct {
	UserID string      `json:"user_id"`
	Amount money.Cents `json:"amount"`
}

// Strategy is implemented by every split type.
type Strategy interface {
	// Calculate allocates total across participants.
	Calculate(total money.Cents, participants []SplitInput) ([]SplitOutput, error)

	// Type returns the type identifier for this strategy
	Type() SplitType

	// Validate checks the inputs without allocating.
	Validate(total money.Cents, participants []SplitInput) error
}

// Factory creates split strategies based on the requested type
type Factory struct{}

// NewSplitStrategyFactory creates a new factory instance
func NewSplitStrategyFactory() *Factory {
	return &Factory{}
}

// Create returns the strategy for splitType. An empty type means EVEN.
func (f *Factory) Create(splitType SplitType) (Strategy, error) {
	switch splitType {
	case SplitTypeEven, "":
		return &EvenStrategy{}, nil
	case SplitTypePercentage:
		return &PercentageStrategy{}, nil
	case SplitTypeExact:
		return &ExactStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSplitType, splitType)
	}
}

// CreateFromString creates a strategy from a string type (useful for API requests)
func (f *Factory) CreateFromString(splitType string) (Strategy, error) {
	return f.Create(SplitType(splitType))
}

var (
	ErrUnknownSplitType     = errors.New("unknown split type")
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrDuplicateParticipant = errors.New("participant listed more than once")
	ErrNonPositiveTotal     = errors.New("amount must be greater than zero")
	ErrInvalidPercentages   = errors.New("percentages must sum to 100")
	ErrInvalidExactAmounts  = errors.New("exact amounts must sum to total amount")
	ErrNegativeAmount       = errors.New("amounts cannot be negative")
	ErrMissingPercentage    = errors.New("percentage value required for all participants")
	ErrMissingExactAmount   = errors.New("exact amount required for all participants")
	ErrPercentageOutOfRange = errors.New("percentage must be between 0 and 100")
)

// validateCommon checks what every strategy requires.
func validateCommon(total money.Cents, participants []SplitInput) error {
	if total <= 0 {
		return ErrNonPositiveTotal
	}
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if _, dup := seen[p.UserID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.UserID)
		}
		seen[p.UserID] = struct{}{}
	}
	return nil
}

// settleRemainder moves whatever the outputs are short of (or over) the total
// onto the first output.
func settleRemainder(total money.Cents, outputs []SplitOutput) {
	var sum money.Cents
	for _, o := range outputs {
		sum += o.Amount
	}
	outputs[0].Amount += total - sum
}
