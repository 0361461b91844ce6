package tradecost

import (
	"cmp"
	"fmt"
	"slices"
)

// MonthlyValuation is the value of a portfolio held at a broker for a month.
type MonthlyValuation struct {
	Month Date // any day of the month
	Value Money
}

// CustodyFeeRecord is the custody charged by a broker for one month.
type CustodyFeeRecord struct {
	BrokerID       string
	Month          Date // first day of the month
	PortfolioValue Money
	FeeAmount      Money
	TaxAmount      Money
	TotalCharged   Money
}

// CustodyRecords prices the monthly valuations with schedule, one record per
// month, sorted by month. Two valuations for the same month is an error.
func CustodyRecords(valuations []MonthlyValuation, schedule FeeSchedule) ([]CustodyFeeRecord, error) {
	seen := make(map[Date]bool, len(valuations))
	records := make([]CustodyFeeRecord, 0, len(valuations))
	for _, v := range valuations {
		month := v.Month.StartOf(Monthly)
		if seen[month] {
			return nil, fmt.Errorf("broker %s: duplicate valuation for %s", schedule.BrokerID, month.Format("2006-01"))
		}
		seen[month] = true
		if !schedule.EffectiveFrom.IsZero() && month.Before(schedule.EffectiveFrom.StartOf(Monthly)) {
			return nil, fmt.Errorf("broker %s: custody for %s, effective from %s: %w", schedule.BrokerID, month.Format("2006-01"), schedule.EffectiveFrom, ErrNotEffective)
		}
		c, err := schedule.CustodyFee(v.Value)
		if err != nil {
			return nil, fmt.Errorf("custody for %s: %w", month.Format("2006-01"), err)
		}
		records = append(records, CustodyFeeRecord{
			BrokerID:       schedule.BrokerID,
			Month:          month,
			PortfolioValue: v.Value,
			FeeAmount:      c.Fee,
			TaxAmount:      c.Tax,
			TotalCharged:   c.Total,
		})
	}
	slices.SortFunc(records, func(a, b CustodyFeeRecord) int { return a.Month.Compare(b.Month) })
	return records, nil
}

// CustodyAlternative is the cost of the same months with another broker.
type CustodyAlternative struct {
	BrokerID string
	Broker   string
	Cost     Money
}

// CustodyOptimization compares the custody actually charged over some
// months with what other brokers would have charged.
type CustodyOptimization struct {
	BrokerID     string
	Months       int
	CurrentCost  Money
	Alternatives []CustodyAlternative // cheapest first
	// AnnualSavings is the yearly amount saved by moving to the cheapest
	// alternative. Zero or negative when the current broker is the cheapest.
	AnnualSavings Money
}

// Best returns the cheapest alternative, if any.
func (o CustodyOptimization) Best() (CustodyAlternative, bool) {
	if len(o.Alternatives) == 0 {
		return CustodyAlternative{}, false
	}
	return o.Alternatives[0], true
}

// OptimizeCustody re-prices the months of records, all from one broker, with
// each alternative schedule.
func OptimizeCustody(records []CustodyFeeRecord, alternatives []FeeSchedule) (CustodyOptimization, error) {
	var opt CustodyOptimization
	codes := make([]string, 0, len(records)+len(alternatives))
	for _, r := range records {
		if opt.BrokerID != "" && r.BrokerID != opt.BrokerID {
			return opt, fmt.Errorf("custody records mix brokers %s and %s", opt.BrokerID, r.BrokerID)
		}
		opt.BrokerID = r.BrokerID
		codes = append(codes, r.TotalCharged.Currency())
	}
	codes = append(codes, scheduleCurrencies(alternatives)...)
	currency, err := commonCurrency(codes...)
	if err != nil {
		return opt, err
	}

	opt.Months = len(records)
	opt.CurrentCost = M(0, currency)
	for _, r := range records {
		opt.CurrentCost = opt.CurrentCost.Add(r.TotalCharged)
	}
	opt.AnnualSavings = M(0, currency)
	if opt.Months == 0 {
		return opt, nil
	}

	for _, s := range alternatives {
		alt := CustodyAlternative{BrokerID: s.BrokerID, Broker: s.Name(), Cost: M(0, currency)}
		for _, r := range records {
			c, err := s.CustodyFee(r.PortfolioValue)
			if err != nil {
				return opt, err
			}
			alt.Cost = alt.Cost.Add(c.Total)
		}
		opt.Alternatives = append(opt.Alternatives, alt)
	}
	slices.SortFunc(opt.Alternatives, func(a, b CustodyAlternative) int {
		if c := a.Cost.Cmp(b.Cost); c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.Broker, b.Broker), cmp.Compare(a.BrokerID, b.BrokerID))
	})

	if best, ok := opt.Best(); ok {
		diff := opt.CurrentCost.Sub(best.Cost)
		opt.AnnualSavings = diff.Mul(Q(12)).Div(Q(opt.Months)).Round()
	}
	return opt, nil
}
