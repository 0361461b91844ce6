package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/tradecost"
	"github.com/etnz/tradecost/renderer"
	"github.com/etnz/tradecost/report"
	"github.com/google/subcommands"
)

// warnIntegrity reports the instruments that could not be matched.
func (a *App) warnIntegrity(res tradecost.MatchResult) {
	for _, m := range res.Failed() {
		a.Log.Warn().Str("instrument", m.InstrumentID).Err(m.Err).Msg("instrument excluded")
	}
}

type matchCmd struct {
	app *App
	rangeFlags
	formatFlag
}

func (*matchCmd) Name() string     { return "match" }
func (*matchCmd) Synopsis() string { return "list the round trips closed by FIFO lot matching" }
func (*matchCmd) Usage() string {
	return `tcx match [-s <date>] [-d <date>] [-period <period>] [-format <format>]

  Matches every sell against the oldest open lots of its instrument and lists
  the resulting round trips sold within the range.
`
}

func (c *matchCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.SetFlags(f)
	c.formatFlag.SetFlags(f)
}

func (c *matchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, asOf, err := c.Range()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	trades, err := c.app.snapshot(ctx, asOf)
	if err != nil {
		return fail("Error reading ledger", err)
	}
	res := tradecost.Match(trades)
	c.app.warnIntegrity(res)

	var rts []tradecost.RoundTrip
	for _, rt := range res.RoundTrips() {
		if r.IsZero() || r.Contains(rt.SellDate) {
			rts = append(rts, rt)
		}
	}
	return c.print(renderer.RoundTrips(rts), rts)
}

type positionsCmd struct {
	app  *App
	date string
	formatFlag
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "list open positions and their lots" }
func (*positionsCmd) Usage() string {
	return `tcx positions [-d <date>] [-format <format>]

  Lists what remains held on a date, lot by lot, at cost.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "0d", "Date of the positions")
	c.formatFlag.SetFlags(f)
}

func (c *positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := tradecost.ParseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	trades, err := c.app.snapshot(ctx, on)
	if err != nil {
		return fail("Error reading ledger", err)
	}
	res := tradecost.Match(trades)
	c.app.warnIntegrity(res)
	positions := res.Positions()
	return c.print(renderer.Positions(positions), positions)
}

type aggregateCmd struct {
	app    *App
	bucket string
	rangeFlags
	formatFlag
}

func (*aggregateCmd) Name() string     { return "aggregate" }
func (*aggregateCmd) Synopsis() string { return "sum up volume, costs and results per period" }
func (*aggregateCmd) Usage() string {
	return `tcx aggregate [-bucket <month|quarter|year>] [-s <date>] [-d <date>] [-period <period>] [-format <format>]

  Reports, for every period of the range, the traded volume, the
  commissions, taxes and custody paid, and the realized results, followed
  by the fee line of every trade.
`
}

func (c *aggregateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.bucket, "bucket", "month", "Aggregation period: month, quarter or year")
	c.rangeFlags.SetFlags(f)
	c.formatFlag.SetFlags(f)
}

func (c *aggregateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	bucket, err := tradecost.ParsePeriod(c.bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	r, asOf, err := c.Range()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	ledger, err := c.app.openLedger(ctx)
	if err != nil {
		return fail("Error opening ledger", err)
	}
	defer ledger.Close()
	trades, err := ledger.Snapshot(ctx, asOf)
	if err != nil {
		return fail("Error reading ledger", err)
	}
	custody, err := ledger.Custody(ctx, "", r)
	if err != nil {
		return fail("Error reading custody", err)
	}
	cost, err := report.NewCostReport(trades, custody, bucket, r)
	if err != nil {
		return fail("Error aggregating", err)
	}
	return c.print(renderer.CostReport(cost), cost)
}

type metricsCmd struct {
	app *App
	rangeFlags
	formatFlag
}

func (*metricsCmd) Name() string     { return "metrics" }
func (*metricsCmd) Synopsis() string { return "profitability and holding period statistics" }
func (*metricsCmd) Usage() string {
	return `tcx metrics [-s <date>] [-d <date>] [-period <period>] [-format <format>]

  Computes win rate, average win and loss, profit factor, cost adjusted
  return and holding period statistics of the round trips sold in the range.
`
}

func (c *metricsCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.SetFlags(f)
	c.formatFlag.SetFlags(f)
}

func (c *metricsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, asOf, err := c.Range()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	trades, err := c.app.snapshot(ctx, asOf)
	if err != nil {
		return fail("Error reading ledger", err)
	}
	res := tradecost.Match(trades)
	c.app.warnIntegrity(res)
	var rts []tradecost.RoundTrip
	for _, rt := range res.RoundTrips() {
		if r.IsZero() || r.Contains(rt.SellDate) {
			rts = append(rts, rt)
		}
	}
	p, err := tradecost.ProfitabilityMetrics(rts)
	if err != nil {
		return fail("Error computing metrics", err)
	}
	h := tradecost.HoldingPeriodStats(rts)
	out := struct {
		Profitability tradecost.Profitability `json:"profitability"`
		Holding       tradecost.HoldingStats  `json:"holdingPeriod"`
	}{p, h}
	return c.print(renderer.Profitability(p, h), out)
}

type alertsCmd struct {
	app *App
	rangeFlags
	formatFlag
}

func (*alertsCmd) Name() string     { return "alerts" }
func (*alertsCmd) Synopsis() string { return "detect costly trading patterns" }
func (*alertsCmd) Usage() string {
	return `tcx alerts [-s <date>] [-d <date>] [-period <period>] [-format <format>]

  Flags trades with high commissions, too many small trades, and custody
  that another broker of the schedules file would charge less.
`
}

func (c *alertsCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.SetFlags(f)
	c.formatFlag.SetFlags(f)
}

func (c *alertsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, asOf, err := c.Range()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	in, err := c.app.dashboardInput(ctx, r, asOf)
	if err != nil {
		return fail("Error reading ledger", err)
	}
	res := tradecost.Match(in.Trades)
	c.app.warnIntegrity(res)
	in.Thresholds.Range = r
	alerts, err := tradecost.Alerts(in.Trades, res.RoundTrips(), in.Custody, in.Thresholds)
	if err != nil {
		return fail("Error computing alerts", err)
	}
	return c.print(renderer.Alerts(alerts), alerts)
}

type taxCmd struct {
	app  *App
	year int
	formatFlag
}

func (*taxCmd) Name() string     { return "tax" }
func (*taxCmd) Synopsis() string { return "realized gains and losses of a calendar year" }
func (*taxCmd) Usage() string {
	return `tcx tax [-y <year>] [-format <format>]

  Lists the round trips sold during the year, per instrument, split between
  short-term and long-term holdings.
`
}

func (c *taxCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", tradecost.Today().Year()-1, "Tax year")
	c.formatFlag.SetFlags(f)
}

func (c *taxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	trades, err := c.app.snapshot(ctx, tradecost.NewDate(c.year, 12, 31))
	if err != nil {
		return fail("Error reading ledger", err)
	}
	tax, err := report.NewTaxReport(trades, c.year)
	if err != nil {
		return fail("Error computing tax report", err)
	}
	return c.print(renderer.TaxReport(tax), tax)
}

type dashboardCmd struct {
	app *App
	rangeFlags
	formatFlag
}

func (*dashboardCmd) Name() string     { return "dashboard" }
func (*dashboardCmd) Synopsis() string { return "overview of costs, results and alerts" }
func (*dashboardCmd) Usage() string {
	return `tcx dashboard [-s <date>] [-d <date>] [-period <period>] [-format <format>]

  Displays the yearly and monthly costs, the profitability, the alerts, the
  benchmark against the industry cost (TCX_INDUSTRY_COST_PCT) and the open
  positions.
`
}

func (c *dashboardCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.SetFlags(f)
	c.formatFlag.SetFlags(f)
}

func (c *dashboardCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, asOf, err := c.Range()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	in, err := c.app.dashboardInput(ctx, r, asOf)
	if err != nil {
		return fail("Error reading ledger", err)
	}
	d, err := report.NewDashboard(c.app.Log.WithContext(ctx), in)
	if err != nil {
		return fail("Error computing dashboard", err)
	}
	for _, i := range d.Integrity {
		c.app.Log.Warn().Str("instrument", i.InstrumentID).Str("kind", i.Kind).Msg("instrument excluded")
	}
	return c.print(renderer.Dashboard(d), d)
}

// dashboardInput reads one snapshot of the ledger and its custody records,
// with the thresholds of the configuration.
func (a *App) dashboardInput(ctx context.Context, r tradecost.Range, asOf tradecost.Date) (report.Input, error) {
	in := report.Input{Range: r, IndustryCostPct: a.Config.IndustryCostPct}
	ledger, err := a.openLedger(ctx)
	if err != nil {
		return in, err
	}
	defer ledger.Close()
	if in.Trades, err = ledger.Snapshot(ctx, asOf); err != nil {
		return in, err
	}
	if in.Custody, err = ledger.Custody(ctx, "", r); err != nil {
		return in, err
	}
	schedules, err := a.schedules()
	if err != nil {
		// Custody alerts need the schedules, the rest does not.
		a.Log.Warn().Err(err).Msg("no fee schedules, custody alerts disabled")
		schedules = nil
	}
	in.Thresholds = a.Config.Thresholds(schedules)
	return in, nil
}

// brokerIDs lists the ids of schedules, for messages.
func brokerIDs(schedules []tradecost.FeeSchedule) string {
	ids := make([]string, len(schedules))
	for i, s := range schedules {
		ids[i] = s.BrokerID
	}
	return strings.Join(ids, ", ")
}
