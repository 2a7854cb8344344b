// Package money holds the fixed-point currency type used by every ledger
// computation. Amounts are integer minor units; decimals only appear when
// parsing requests and rendering responses.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is an amount in currency minor units (1/100 of the major unit).
type Cents int64

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// maxMajor is the largest magnitude Parse and UnmarshalJSON accept, in major
// units. Sums of many such amounts still fit in int64.
var maxMajor = decimal.New(1, 13)

// FromDecimal converts a decimal amount to cents, rounding half away from
// zero at the cent boundary.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Round(2).Mul(hundred).IntPart())
}

// Parse reads a decimal string such as "25.5" or "-3.10".
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return bounded(d)
}

func bounded(d decimal.Decimal) (Cents, error) {
	if d.Abs().GreaterThan(maxMajor) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Cents {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with exactly two decimal places.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Abs returns the magnitude of c.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// DivRound divides c into n parts, rounding the quotient half away from zero.
func (c Cents) DivRound(n int64) Cents {
	if n <= 0 {
		panic("money: DivRound by non-positive divisor")
	}
	q, r := int64(c)/n, int64(c)%n
	if r < 0 {
		r = -r
	}
	if 2*r >= n {
		if c < 0 {
			q--
		} else {
			q++
		}
	}
	return Cents(q)
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (c *Cents) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	v, err := bounded(d)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
