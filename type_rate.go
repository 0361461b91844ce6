package tradecost

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Rate is a decimal ratio, 0.0025 means 0.25%. Rates computed by this
// package are rounded to four fractional digits; percentages are Rates
// expressed in percent units.
type Rate struct {
	value decimal.Decimal
}

func R[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T) Rate {
	return Rate{value: newDecimal(value)}
}

func (r Rate) Equal(s Rate) bool        { return r.value.Equal(s.value) }
func (r Rate) LessThan(s Rate) bool     { return r.value.LessThan(s.value) }
func (r Rate) GreaterThan(s Rate) bool  { return r.value.GreaterThan(s.value) }
func (r Rate) IsNegative() bool         { return r.value.IsNegative() }
func (r Rate) IsZero() bool             { return r.value.IsZero() }
func (r Rate) Mul(s Rate) Rate          { return Rate{value: r.value.Mul(s.value)} }
func (r Rate) Decimal() decimal.Decimal { return r.value }

// Round returns r rounded to four fractional digits.
func (r Rate) Round() Rate { return Rate{value: r.value.Round(ratePlaces)} }

// Percent returns r×100 rounded to four fractional digits.
func (r Rate) Percent() Rate { return Rate{value: r.value.Shift(2).Round(ratePlaces)} }

func (r Rate) String() string { return r.value.String() }

// PercentString formats a ratio as a percentage with two decimals.
func (r Rate) PercentString() string {
	return r.value.Shift(2).StringFixed(2) + "%"
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(r.value.String()), nil
}

func (r *Rate) UnmarshalJSON(b []byte) error {
	return r.value.UnmarshalJSON(b)
}

// Factor is a non-negative ratio that may be infinite, as the profit factor
// of a history without losses.
type Factor struct {
	value    decimal.Decimal
	infinite bool
}

// Inf returns the positive infinite Factor.
func Inf() Factor { return Factor{infinite: true} }

// F returns a finite factor rounded to four digits.
func F(d decimal.Decimal) Factor { return Factor{value: d.Round(ratePlaces)} }

func (f Factor) IsInf() bool              { return f.infinite }
func (f Factor) Decimal() decimal.Decimal { return f.value }

func (f Factor) Equal(g Factor) bool {
	if f.infinite || g.infinite {
		return f.infinite == g.infinite
	}
	return f.value.Equal(g.value)
}

func (f Factor) String() string {
	if f.infinite {
		return "+Inf"
	}
	return f.value.StringFixed(2)
}

// MarshalJSON writes a number, or the string "+Inf" since JSON has no infinity.
func (f Factor) MarshalJSON() ([]byte, error) {
	if f.infinite {
		return json.Marshal("+Inf")
	}
	return []byte(f.value.String()), nil
}
