// Package ledger turns a group's expense and settlement records into net
// balances and a settle-up plan.
//
// Everything here is a pure function over a snapshot of records: no storage,
// no caching, no shared state. Callers load a fresh snapshot per request and
// may call these functions from any number of goroutines.
package ledger

import "github.com/fkhayef/settleup/internal/money"

// Split is one user's share of an expense.
type Split struct {
	UserID string
	Amount money.Cents
}

// Expense is the part of an expense record that affects balances.
type Expense struct {
	ID     string
	PaidBy string
	Amount money.Cents
	Splits []Split
}

// Settlement is a completed payment from a debtor to a creditor.
type Settlement struct {
	From   string
	To     string
	Amount money.Cents
}

// Balances maps user id to net amount.
// Positive: the user is owed money. Negative: the user owes money.
type Balances map[string]money.Cents

// Transfer is a suggested payment in a settle-up plan.
type Transfer struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount money.Cents `json:"amount"`
}

// Total sums every balance. It is zero for a self-consistent ledger.
func (b Balances) Total() money.Cents {
	var total money.Cents
	for _, v := range b {
		total += v
	}
	return total
}

// Apply returns a copy of b with the transfers executed: the payer's debt
// shrinks and the payee's receivable shrinks by each amount.
func (b Balances) Apply(transfers []Transfer) Balances {
	out := make(Balances, len(b))
	for user, v := range b {
		out[user] = v
	}
	for _, t := range transfers {
		out[t.From] += t.Amount
		out[t.To] -= t.Amount
	}
	return out
}
