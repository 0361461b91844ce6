package tradecost

import (
	"testing"
	"time"
)

// EUR is a helper for test to create euro money from const
func EUR(v float64) Money { return M(v, "EUR") }

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// day returns a date in 2024, a convenience for scenarios.
func day(m, d int) Date { return NewDate(2024, time.Month(m), d) }

func buy(id int64, on Date, instrument string, qty, price, commission float64) Trade {
	return NewBuy(id, on, instrument, instrument, Q(qty), EUR(price), EUR(commission), EUR(0))
}

func sell(id int64, on Date, instrument string, qty, price, commission float64) Trade {
	return NewSell(id, on, instrument, instrument, Q(qty), EUR(price), EUR(commission), EUR(0))
}

// assertMoney fails the test if got is not want to the cent.
func assertMoney(t *testing.T, what string, got Money, want float64) {
	t.Helper()
	if !got.Decimal().Equal(EUR(want).Decimal()) {
		t.Errorf("%s = %s, want %v", what, got.Decimal(), want)
	}
}
