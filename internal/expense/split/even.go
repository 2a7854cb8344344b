package split

import "github.com/fkhayef/settleup/internal/money"

// =============================================================================
// EVEN SPLIT STRATEGY
// Every participant, payer included, owes the same rounded share
// =============================================================================

// EvenStrategy implements the Strategy interface for even splits
type EvenStrategy struct{}

// Type returns the split type identifier
func (s *EvenStrategy) Type() SplitType {
	return SplitTypeEven
}

// Validate checks if the inputs are valid for an even split
func (s *EvenStrategy) Validate(total money.Cents, participants []SplitInput) error {
	return validateCommon(total, participants)
}

// Calculate gives every participant total/n rounded to the cent, except the
// first, who gets total - share*(n-1) so the splits add up exactly.
// 100.00 across three people is [33.34, 33.33, 33.33].
func (s *EvenStrategy) Calculate(total money.Cents, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(total, participants); err != nil {
		return nil, err
	}

	n := len(participants)
	share := total.DivRound(int64(n))

	outputs := make([]SplitOutput, n)
	for i, p := range participants {
		outputs[i] = SplitOutput{UserID: p.UserID, Amount: share}
	}
	outputs[0].Amount = total - share*money.Cents(n-1)

	return outputs, nil
}
