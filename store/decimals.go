package store

import "github.com/shopspring/decimal"

// decimals parses TEXT columns, keeping the first error.
type decimals struct{ err error }

func (d *decimals) parse(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}
