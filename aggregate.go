package tradecost

import (
	"fmt"
	"slices"
)

// PeriodAggregate summarizes the trading activity of one period.
type PeriodAggregate struct {
	Key   string // 2024-03, 2024-Q1 or 2024
	Range Range

	TradingVolume    Money
	TotalCommissions Money
	TotalTaxes       Money
	TotalCustody     Money
	TotalCosts       Money // commissions + taxes + custody
	RealizedGain     Money
	RealizedLoss     Money // magnitude of the losses
	NetRealized      Money
	NumberOfTrades   int
	ClosedRoundTrips int

	WinRate           Rate
	ProfitFactor      Factor
	CostAsPctOfVolume Rate // percent
}

// MarshalJSON writes the aggregate with amounts as plain numbers.
func (a PeriodAggregate) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("period", a.Key)
	w.Append("from", a.Range.From)
	w.Append("to", a.Range.To)
	w.Optional("currency", a.TotalCosts.Currency())
	w.Append("tradingVolume", a.TradingVolume.Decimal())
	w.Append("totalCommissions", a.TotalCommissions.Decimal())
	w.Append("totalTaxes", a.TotalTaxes.Decimal())
	w.Append("totalCustody", a.TotalCustody.Decimal())
	w.Append("totalCosts", a.TotalCosts.Decimal())
	w.Append("realizedGain", a.RealizedGain.Decimal())
	w.Append("realizedLoss", a.RealizedLoss.Decimal())
	w.Append("netRealized", a.NetRealized.Decimal())
	w.Append("numberOfTrades", a.NumberOfTrades)
	w.Append("closedRoundTrips", a.ClosedRoundTrips)
	w.Append("winRate", a.WinRate)
	w.Append("profitFactor", a.ProfitFactor)
	w.Append("costAsPctOfVolume", a.CostAsPctOfVolume)
	return w.MarshalJSON()
}

// isBucket reports whether p can be used to aggregate.
func isBucket(p Period) bool { return p >= Monthly && p <= Yearly }

// AggregateByPeriod summarizes trades (by trade date), round trips (by sell
// date) and custody records (by month) per bucket over r.
//
// Every bucket overlapping r is returned, including the ones without any
// activity. Entities dated outside r are ignored. A zero r covers the dates
// of all entities.
func AggregateByPeriod(trades []Trade, roundTrips []RoundTrip, custody []CustodyFeeRecord, bucket Period, r Range) ([]PeriodAggregate, error) {
	if !isBucket(bucket) {
		return nil, fmt.Errorf("aggregate by %s: %w", bucket, ErrUnsupportedBucket)
	}
	currency, err := commonCurrency(entityCurrencies(trades, roundTrips, custody)...)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	effective := withoutReversals(trades)
	if r.IsZero() {
		var ok bool
		if r, ok = span(effective, roundTrips, custody); !ok {
			return nil, nil
		}
	}

	zero := M(0, currency)
	var aggs []PeriodAggregate
	index := make(map[string]int)
	for p := range r.Periods(bucket) {
		index[p.Key()] = len(aggs)
		aggs = append(aggs, PeriodAggregate{
			Key: p.Key(), Range: p,
			TradingVolume: zero, TotalCommissions: zero, TotalTaxes: zero, TotalCustody: zero,
			RealizedGain: zero, RealizedLoss: zero,
		})
	}
	at := func(d Date) *PeriodAggregate { return &aggs[index[bucket.Range(d).Key()]] }

	for _, t := range effective {
		if !r.Contains(t.Date) {
			continue
		}
		a := at(t.Date)
		a.TradingVolume = a.TradingVolume.Add(t.GrossAmount())
		a.TotalCommissions = a.TotalCommissions.Add(t.Commission)
		a.TotalTaxes = a.TotalTaxes.Add(t.Tax)
		a.NumberOfTrades++
	}
	wins := make([]int, len(aggs))
	for _, rt := range roundTrips {
		if !r.Contains(rt.SellDate) {
			continue
		}
		a := at(rt.SellDate)
		a.ClosedRoundTrips++
		switch {
		case rt.RealizedGainLoss.IsPositive():
			a.RealizedGain = a.RealizedGain.Add(rt.RealizedGainLoss)
			wins[index[a.Key]]++
		case rt.RealizedGainLoss.IsNegative():
			a.RealizedLoss = a.RealizedLoss.Add(rt.RealizedGainLoss.Abs())
		}
	}
	for _, c := range custody {
		if c.Month.After(r.To) || c.Month.EndOf(Monthly).Before(r.From) {
			continue
		}
		a := at(c.Month)
		a.TotalCustody = a.TotalCustody.Add(c.TotalCharged)
	}

	for i := range aggs {
		a := &aggs[i]
		a.TotalCosts = a.TotalCommissions.Add(a.TotalTaxes).Add(a.TotalCustody)
		a.NetRealized = a.RealizedGain.Sub(a.RealizedLoss)
		a.WinRate = ratio(wins[i], a.ClosedRoundTrips)
		a.ProfitFactor = profitFactor(a.RealizedGain, a.RealizedLoss)
		if a.TradingVolume.IsPositive() {
			a.CostAsPctOfVolume = a.TotalCosts.Ratio(a.TradingVolume).Percent()
		}
	}
	return aggs, nil
}

// ratio returns n/d rounded to four digits, 0 when d is 0.
func ratio(n, d int) Rate {
	if d == 0 {
		return Rate{}
	}
	return R(n).divInt(d)
}

func (r Rate) divInt(d int) Rate { return Rate{value: r.value.Div(newDecimal(d)).Round(ratePlaces)} }

// profitFactor returns gains/losses, where losses is a magnitude. A history
// with gains and no losses has an infinite profit factor, a history with
// neither has 0.
func profitFactor(gains, losses Money) Factor {
	if losses.IsZero() {
		if gains.IsPositive() {
			return Inf()
		}
		return F(newDecimal(0))
	}
	return F(gains.Decimal().Div(losses.Decimal()))
}

func entityCurrencies(trades []Trade, roundTrips []RoundTrip, custody []CustodyFeeRecord) []string {
	codes := make([]string, 0, len(trades)+len(roundTrips)+len(custody))
	for _, t := range trades {
		codes = append(codes, t.UnitPrice.Currency(), t.Commission.Currency(), t.Tax.Currency())
	}
	for _, rt := range roundTrips {
		codes = append(codes, rt.CostBasis.Currency(), rt.Proceeds.Currency())
	}
	for _, c := range custody {
		codes = append(codes, c.TotalCharged.Currency())
	}
	return codes
}

// span returns the range covering the dates of all entities.
func span(trades []Trade, roundTrips []RoundTrip, custody []CustodyFeeRecord) (Range, bool) {
	var dates []Date
	for _, t := range trades {
		dates = append(dates, t.Date)
	}
	for _, rt := range roundTrips {
		dates = append(dates, rt.SellDate)
	}
	for _, c := range custody {
		dates = append(dates, c.Month)
	}
	if len(dates) == 0 {
		return Range{}, false
	}
	return NewRange(slices.MinFunc(dates, Date.Compare), slices.MaxFunc(dates, Date.Compare)), true
}
