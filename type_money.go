package tradecost

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces = 2 // amounts are kept to the cent
	ratePlaces  = 4 // rates, percentages and unit costs
)

// Money is an exact decimal amount in a currency, expressed in major units
// (euros, not cents).
//
// The empty currency is a wildcard: combining it with a currency yields that
// currency, so that zero values can start a sum. Combining two different
// currencies panics; functions of this package check currencies first and
// return ErrCurrencyMismatch instead.
type Money struct {
	value decimal.Decimal
	cur   string
	// unitCost is set on amounts written with ratePlaces digits instead of
	// moneyPlaces.
	unitCost bool
}

func M[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

func (m Money) Currency() string         { return m.cur }
func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) IsPositive() bool         { return m.value.IsPositive() }
func (m Money) IsNegative() bool         { return m.value.IsNegative() }
func (m Money) Equal(n Money) bool       { return m.cur == n.cur && m.value.Equal(n.value) }
func (m Money) Cmp(n Money) int          { return m.value.Cmp(n.value) }
func (m Money) LessThan(n Money) bool    { return m.Cmp(n) < 0 }
func (m Money) GreaterThan(n Money) bool { return m.Cmp(n) > 0 }

func (m Money) with(v decimal.Decimal) Money { return Money{value: v, cur: m.cur} }

func (m Money) Neg() Money              { return m.with(m.value.Neg()) }
func (m Money) Abs() Money              { return m.with(m.value.Abs()) }
func (m Money) Mul(q Quantity) Money    { return m.with(m.value.Mul(q.value)) }
func (m Money) Div(q Quantity) Money    { return m.with(m.value.Div(q.value)) }
func (m Money) MulRate(r Rate) Money    { return m.with(m.value.Mul(r.value)) }
func (m Money) Round() Money            { return m.with(m.value.Round(moneyPlaces)) }
func (m Money) RoundTo(p int32) Money   { return m.with(m.value.Round(p)) }
func (m Money) Ratio(n Money) Rate      { return Rate{value: m.value.Div(n.value)} } // n must not be zero
func (m Money) Add(n Money) Money       { return Money{value: m.value.Add(n.value), cur: combine(m, n)} }
func (m Money) Sub(n Money) Money       { return Money{value: m.value.Sub(n.value), cur: combine(m, n)} }
func (m Money) asUnitCost() Money       { m.unitCost = true; return m }
func (m Money) places() int32 {
	if m.unitCost {
		return ratePlaces
	}
	return moneyPlaces
}

// Max returns the largest of m and n.
func (m Money) Max(n Money) Money {
	c := combine(m, n)
	if n.GreaterThan(m) {
		m = n
	}
	return Money{value: m.value, cur: c}
}

// combine returns the currency of a binary operation.
func combine(a, b Money) string {
	switch {
	case a.cur == "":
		return b.cur
	case b.cur == "" || a.cur == b.cur:
		return a.cur
	}
	panic(fmt.Sprintf("%v: %s and %s", ErrCurrencyMismatch, a.cur, b.cur))
}

// commonCurrency returns the single non-empty currency among codes, or
// ErrCurrencyMismatch when two different ones are found.
func commonCurrency(codes ...string) (string, error) {
	var found string
	for _, c := range codes {
		switch {
		case c == "" || c == found:
		case found == "":
			found = c
		default:
			return "", fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, found, c)
		}
	}
	return found, nil
}

// String formats m for display, with the symbol of its currency: €1,234.50.
// Unknown currencies are written after the amount.
func (m Money) String() string {
	c := money.GetCurrency(m.cur)
	if c == nil {
		return strings.TrimSpace(m.value.StringFixed(moneyPlaces) + " " + m.cur)
	}
	units := m.value.Shift(int32(c.Fraction)).Round(0).IntPart()
	return c.Formatter().Format(units)
}

// SignedString is String with an explicit sign, and "-" for zero.
func (m Money) SignedString() string {
	switch {
	case m.IsZero():
		return "-"
	case m.IsPositive():
		return "+" + m.String()
	}
	return m.String()
}

// MarshalJSON writes {"currency": "EUR", "amount": 12.5}, the amount rounded
// to the cent (to four digits for unit costs).
func (m Money) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	return w.Optional("currency", m.cur).Append("amount", m.value.Round(m.places())).MarshalJSON()
}
