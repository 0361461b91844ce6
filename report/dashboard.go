package report

import (
	"context"
	"fmt"
	"time"

	"github.com/etnz/tradecost"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Input is what the dashboard is computed from: one consistent snapshot of
// the ledger and the broker data.
type Input struct {
	Trades  []tradecost.Trade
	Custody []tradecost.CustodyFeeRecord
	// Range restricts the dashboard. Zero covers the whole ledger.
	Range      tradecost.Range
	Thresholds tradecost.Thresholds
	// IndustryCostPct is the reference for the benchmark. Zero skips it.
	IndustryCostPct tradecost.Rate
}

// Dashboard is the overview of trading costs and results.
type Dashboard struct {
	Period        Period                      `json:"period"`
	Monthly       []tradecost.PeriodAggregate `json:"monthly"`
	Yearly        []tradecost.PeriodAggregate `json:"yearly"`
	Profitability tradecost.Profitability     `json:"profitability"`
	Holding       tradecost.HoldingStats      `json:"holdingPeriod"`
	Alerts        []tradecost.Alert           `json:"alerts"`
	Benchmark     *tradecost.Benchmark        `json:"benchmark,omitempty"`
	Positions     []tradecost.Position        `json:"positions"`
	Integrity     []Integrity                 `json:"integrity,omitempty"`
}

// NewDashboard matches the trades once, then computes the independent
// widgets concurrently over the same round trips. Instruments that cannot be
// matched are listed in Integrity and left out of the results.
func NewDashboard(ctx context.Context, in Input) (*Dashboard, error) {
	log := zerolog.Ctx(ctx)
	res := tradecost.Match(in.Trades)
	rts := inRange(res.RoundTrips(), in.Range)

	d := &Dashboard{
		Period:    period(in.Range),
		Positions: res.Positions(),
		Integrity: integrity(res),
	}
	th := in.Thresholds
	th.Range = in.Range

	g, ctx := errgroup.WithContext(ctx)
	widget := func(name string, fn func() error) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			if err := fn(); err != nil {
				return fmt.Errorf("dashboard %s: %w", name, err)
			}
			log.Debug().Str("widget", name).Dur("elapsed", time.Since(start)).Msg("widget computed")
			return nil
		})
	}
	widget("monthly", func() (err error) {
		d.Monthly, err = tradecost.AggregateByPeriod(in.Trades, rts, in.Custody, tradecost.Monthly, in.Range)
		return err
	})
	widget("yearly", func() (err error) {
		d.Yearly, err = tradecost.AggregateByPeriod(in.Trades, rts, in.Custody, tradecost.Yearly, in.Range)
		return err
	})
	widget("profitability", func() (err error) {
		d.Profitability, err = tradecost.ProfitabilityMetrics(rts)
		return err
	})
	widget("holding", func() error {
		d.Holding = tradecost.HoldingPeriodStats(rts)
		return nil
	})
	widget("alerts", func() (err error) {
		d.Alerts, err = tradecost.Alerts(in.Trades, rts, in.Custody, th)
		return err
	})
	if !in.IndustryCostPct.IsZero() {
		widget("benchmark", func() error {
			b, err := benchmark(in.Trades, in.Custody, in.Range, in.IndustryCostPct)
			d.Benchmark = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info().Int("roundTrips", len(rts)).Int("alerts", len(d.Alerts)).Int("failed", len(d.Integrity)).Msg("dashboard ready")
	return d, nil
}

// benchmark compares the costs over the whole range, nil when nothing was
// traded.
func benchmark(trades []tradecost.Trade, custody []tradecost.CustodyFeeRecord, r tradecost.Range, industry tradecost.Rate) (*tradecost.Benchmark, error) {
	total, err := tradecost.AggregateByPeriod(trades, nil, custody, tradecost.Yearly, r)
	if err != nil || len(total) == 0 {
		return nil, err
	}
	costs, volume := total[0].TotalCosts, total[0].TradingVolume
	for _, a := range total[1:] {
		costs, volume = costs.Add(a.TotalCosts), volume.Add(a.TradingVolume)
	}
	if !volume.IsPositive() {
		return nil, nil
	}
	b, err := tradecost.BenchmarkComparison(costs.Ratio(volume).Percent(), industry)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
