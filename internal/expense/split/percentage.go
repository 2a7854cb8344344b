package split

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/settleup/internal/money"
)

// =============================================================================
// PERCENTAGE SPLIT STRATEGY
// Divides the expense based on specified percentages for each participant
// =============================================================================

var hundredPercent = decimal.NewFromInt(100)

// PercentageStrategy implements the Strategy interface for percentage-based splits
type PercentageStrategy struct{}

// Type returns the split type identifier
func (s *PercentageStrategy) Type() SplitType {
	return SplitTypePercentage
}

// Validate checks if the inputs are valid for a percentage split
func (s *PercentageStrategy) Validate(total money.Cents, participants []SplitInput) error {
	if err := validateCommon(total, participants); err != nil {
		return err
	}

	sum := decimal.Zero
	for _, p := range participants {
		if p.Percentage == nil {
			return ErrMissingPercentage
		}
		if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundredPercent) {
			return ErrPercentageOutOfRange
		}
		sum = sum.Add(*p.Percentage)
	}

	if !sum.Equal(hundredPercent) {
		return ErrInvalidPercentages
	}

	return nil
}

// Calculate rounds each participant's percentage of the total to the cent and
// puts the rounding difference on the first participant.
func (s *PercentageStrategy) Calculate(total money.Cents, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(total, participants); err != nil {
		return nil, err
	}

	outputs := make([]SplitOutput, len(participants))
	for i, p := range participants {
		share := total.Decimal().Mul(*p.Percentage).Div(hundredPercent)
		outputs[i] = SplitOutput{UserID: p.UserID, Amount: money.FromDecimal(share)}
	}
	settleRemainder(total, outputs)

	return outputs, nil
}
