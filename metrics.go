package tradecost

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Profitability sums up a set of closed round trips.
type Profitability struct {
	Closed int
	Wins   int
	Losses int // break-even round trips are neither wins nor losses

	WinRate         Rate
	AvgWin          Money
	AvgLoss         Money // negative, or zero without losses
	ProfitFactor    Factor
	CostAdjustedROI Rate // realized over cost basis, in percent

	TotalGains    Money
	TotalLosses   Money // magnitude
	TotalRealized Money
	TotalCost     Money
}

// ProfitabilityMetrics computes win rate, average win and loss, profit
// factor and the return of the closed round trips net of all fees.
func ProfitabilityMetrics(roundTrips []RoundTrip) (Profitability, error) {
	currency, err := commonCurrency(entityCurrencies(nil, roundTrips, nil)...)
	if err != nil {
		return Profitability{}, fmt.Errorf("profitability: %w", err)
	}
	zero := M(0, currency)
	p := Profitability{
		Closed:     len(roundTrips),
		AvgWin:     zero,
		AvgLoss:    zero,
		TotalGains: zero, TotalLosses: zero, TotalRealized: zero, TotalCost: zero,
	}
	for _, rt := range roundTrips {
		p.TotalRealized = p.TotalRealized.Add(rt.RealizedGainLoss)
		p.TotalCost = p.TotalCost.Add(rt.CostBasis)
		switch {
		case rt.RealizedGainLoss.IsPositive():
			p.Wins++
			p.TotalGains = p.TotalGains.Add(rt.RealizedGainLoss)
		case rt.RealizedGainLoss.IsNegative():
			p.Losses++
			p.TotalLosses = p.TotalLosses.Add(rt.RealizedGainLoss.Abs())
		}
	}
	p.WinRate = ratio(p.Wins, p.Closed)
	if p.Wins > 0 {
		p.AvgWin = p.TotalGains.Div(Q(p.Wins)).Round()
	}
	if p.Losses > 0 {
		p.AvgLoss = p.TotalLosses.Div(Q(p.Losses)).Round().Neg()
	}
	p.ProfitFactor = profitFactor(p.TotalGains, p.TotalLosses)
	if p.TotalCost.IsPositive() {
		p.CostAdjustedROI = p.TotalRealized.Ratio(p.TotalCost).Percent()
	}
	return p, nil
}

// HoldingStats describes how long lots were held before being sold. Mean,
// median and standard deviation are weighted by matched quantity.
type HoldingStats struct {
	Count int
	// Mean is the mean holding period in days.
	Mean float64
	// Median is the holding period in days of the middle unit, the lower one
	// when the units split evenly.
	Median    float64
	StdDev    float64
	ShortTerm int // held less than LongTermDays
	LongTerm  int
}

// HoldingPeriodStats computes holding period statistics of round trips.
func HoldingPeriodStats(roundTrips []RoundTrip) HoldingStats {
	s := HoldingStats{Count: len(roundTrips)}
	if s.Count == 0 {
		return s
	}
	days := make([]float64, len(roundTrips))
	weights := make([]float64, len(roundTrips))
	for i, rt := range roundTrips {
		days[i] = float64(rt.HoldingDays)
		weights[i], _ = rt.Quantity.Decimal().Float64()
		if rt.IsLongTerm() {
			s.LongTerm++
		} else {
			s.ShortTerm++
		}
	}
	s.Mean = round2(stat.Mean(days, weights))
	if s.Count > 1 {
		s.StdDev = round2(stat.StdDev(days, weights))
	}
	stat.SortWeighted(days, weights)
	s.Median = stat.Quantile(0.5, stat.Empirical, days, weights)
	return s
}

// round2 rounds a statistic to two digits for display and stable output.
func round2(f float64) float64 {
	v, _ := newDecimal(f).Round(2).Float64()
	return v
}
