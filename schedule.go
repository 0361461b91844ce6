package tradecost

import (
	"fmt"
)

// Tier is one band of a commission grid: amounts in [Min, Max) pay Rate.
// A zero Max makes the tier open-ended; only the last tier of a side may be.
type Tier struct {
	Min  Money
	Max  Money
	Rate Rate
}

// OpenEnded reports whether the tier has no upper bound.
func (t Tier) OpenEnded() bool { return t.Max.IsZero() }

// contains reports whether amount falls in [Min, Max).
func (t Tier) contains(amount Money) bool {
	if amount.LessThan(t.Min) {
		return false
	}
	return t.OpenEnded() || amount.LessThan(t.Max)
}

func (t Tier) String() string {
	if t.OpenEnded() {
		return fmt.Sprintf("[%s, ∞) @ %s", t.Min.Decimal(), t.Rate)
	}
	return fmt.Sprintf("[%s, %s) @ %s", t.Min.Decimal(), t.Max.Decimal(), t.Rate)
}

// CustodyTerms is the monthly custody pricing of a broker. Portfolios worth
// no more than ExemptThreshold are not charged.
type CustodyTerms struct {
	ExemptThreshold Money
	Rate            Rate // monthly, applied to the value above the threshold
	MinimumFee      Money
}

// FeeSchedule is the pricing of a broker: commission grids per side, a
// minimum commission, a tax on fees, and custody terms.
type FeeSchedule struct {
	BrokerID      string
	Broker        string // display name, used to break ranking ties
	Currency      string
	BuyTiers      []Tier
	SellTiers     []Tier
	MinimumFee    Money
	TaxRate       Rate // applied to commission and custody fees
	Custody       CustodyTerms
	// EffectiveFrom is the first day the schedule applies, zero for always.
	// Custody months before its month cannot be priced with it.
	EffectiveFrom Date
}

// Tiers returns the commission grid for side.
func (s FeeSchedule) Tiers(side Side) []Tier {
	if side == Sell {
		return s.SellTiers
	}
	return s.BuyTiers
}

// Name returns the display name, or the id when there is none.
func (s FeeSchedule) Name() string {
	if s.Broker != "" {
		return s.Broker
	}
	return s.BrokerID
}

func (s FeeSchedule) invalid(format string, args ...any) error {
	return &InvalidScheduleError{ScheduleID: s.BrokerID, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structure of the schedule. Gaps between consecutive
// tiers are allowed here; they fail at lookup time.
func (s FeeSchedule) Validate() error {
	if s.BrokerID == "" {
		return s.invalid("missing broker id")
	}
	if s.MinimumFee.IsNegative() {
		return s.invalid("negative minimum fee %s", s.MinimumFee.Decimal())
	}
	if s.TaxRate.IsNegative() {
		return s.invalid("negative tax rate %s", s.TaxRate)
	}
	c := s.Custody
	if c.ExemptThreshold.IsNegative() || c.Rate.IsNegative() || c.MinimumFee.IsNegative() {
		return s.invalid("negative custody terms")
	}
	codes := []string{s.Currency, s.MinimumFee.Currency(), c.ExemptThreshold.Currency(), c.MinimumFee.Currency()}
	for _, side := range []Side{Buy, Sell} {
		tiers := s.Tiers(side)
		if len(tiers) == 0 {
			return s.invalid("no %s tiers", side)
		}
		for i, t := range tiers {
			codes = append(codes, t.Min.Currency(), t.Max.Currency())
			switch {
			case t.Min.IsNegative():
				return s.invalid("%s tier %d: negative lower bound %s", side, i, t.Min.Decimal())
			case t.Rate.IsNegative():
				return s.invalid("%s tier %d: negative rate %s", side, i, t.Rate)
			case t.OpenEnded() && i != len(tiers)-1:
				return s.invalid("%s tier %d: only the last tier may be open-ended", side, i)
			case !t.OpenEnded() && !t.Max.GreaterThan(t.Min):
				return s.invalid("%s tier %d: upper bound %s not above lower bound %s", side, i, t.Max.Decimal(), t.Min.Decimal())
			}
			if i > 0 && t.Min.LessThan(tiers[i-1].Max) {
				return s.invalid("%s tier %d: overlaps or is not sorted after tier %d", side, i, i-1)
			}
		}
	}
	if _, err := commonCurrency(codes...); err != nil {
		return s.invalid("%v", err)
	}
	return nil
}

// tier returns the tier of side containing amount.
func (s FeeSchedule) tier(side Side, amount Money) (Tier, error) {
	for _, t := range s.Tiers(side) {
		if t.contains(amount) {
			return t, nil
		}
	}
	return Tier{}, s.invalid("no %s tier for amount %s", side, amount.Decimal())
}

// zero returns a zero amount in the schedule currency.
func (s FeeSchedule) zero() Money { return M(0, s.Currency) }
