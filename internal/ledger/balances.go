package ledger

// CalculateBalances folds a group's expenses and settlements into net
// balances.
//
// For each expense the payer is credited the full amount and every split
// user is debited their share. For each settlement the payer (From) is
// credited and the receiver (To) is debited. Record order does not matter.
//
// Splits without a user are skipped, as are expenses without a payer, so a
// partially malformed history still produces a balance view.
func CalculateBalances(expenses []Expense, settlements []Settlement) Balances {
	balances := make(Balances)

	for _, e := range expenses {
		if e.PaidBy == "" {
			continue
		}
		balances[e.PaidBy] += e.Amount

		for _, s := range e.Splits {
			if s.UserID == "" {
				continue
			}
			balances[s.UserID] -= s.Amount
		}
	}

	for _, s := range settlements {
		if s.From == "" || s.To == "" {
			continue
		}
		balances[s.From] += s.Amount
		balances[s.To] -= s.Amount
	}

	return balances
}
