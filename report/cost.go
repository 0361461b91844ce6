package report

import (
	"github.com/etnz/tradecost"
)

// CostReport details what trading cost over a range, per period and per
// trade.
type CostReport struct {
	Period     Period                       `json:"period"`
	Bucket     string                       `json:"bucket"`
	Aggregates []tradecost.PeriodAggregate  `json:"aggregates"`
	Fees       []tradecost.FeeRecord        `json:"fees"`
	Custody    []tradecost.CustodyFeeRecord `json:"custody"`
	Integrity  []Integrity                  `json:"integrity,omitempty"`
}

// NewCostReport aggregates the costs of trades and custody per bucket over r
// (the whole ledger when r is zero), with the fee line of every trade.
func NewCostReport(trades []tradecost.Trade, custody []tradecost.CustodyFeeRecord, bucket tradecost.Period, r tradecost.Range) (*CostReport, error) {
	res := tradecost.Match(trades)
	aggs, err := tradecost.AggregateByPeriod(trades, inRange(res.RoundTrips(), r), custody, bucket, r)
	if err != nil {
		return nil, err
	}
	c := &CostReport{
		Period:     period(r),
		Bucket:     bucket.String(),
		Aggregates: nonNil(aggs),
		Fees:       []tradecost.FeeRecord{},
		Custody:    []tradecost.CustodyFeeRecord{},
		Integrity:  integrity(res),
	}
	if len(aggs) > 0 {
		c.Period = Period{From: aggs[0].Range.From, To: aggs[len(aggs)-1].Range.To}
	}
	for _, f := range tradecost.TradeFees(trades) {
		if r.IsZero() || r.Contains(f.Date) {
			c.Fees = append(c.Fees, f)
		}
	}
	for _, rec := range custody {
		if r.IsZero() || (!rec.Month.After(r.To) && !rec.Month.EndOf(tradecost.Monthly).Before(r.From)) {
			c.Custody = append(c.Custody, rec)
		}
	}
	return c, nil
}

// Comparison ranks brokers on the first year cost of one operation.
type Comparison struct {
	Side           tradecost.Side           `json:"side"`
	Amount         tradecost.Money          `json:"amount"`
	PortfolioValue tradecost.Money          `json:"portfolioValue"`
	Ranks          []tradecost.ScheduleRank `json:"ranks"`
}

// BrokerComparison projects a side operation of amount, followed by a year of
// custody on portfolioValue, with every schedule, cheapest first.
func BrokerComparison(side tradecost.Side, amount, portfolioValue tradecost.Money, schedules []tradecost.FeeSchedule) (*Comparison, error) {
	ranks, err := tradecost.CompareSchedules(side, amount, portfolioValue, schedules)
	if err != nil {
		return nil, err
	}
	return &Comparison{Side: side, Amount: amount, PortfolioValue: portfolioValue, Ranks: nonNil(ranks)}, nil
}
