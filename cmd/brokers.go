package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/tradecost"
	"github.com/etnz/tradecost/config"
	"github.com/etnz/tradecost/renderer"
	"github.com/etnz/tradecost/report"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type commissionCmd struct {
	app    *App
	side   string
	amount string
	broker string
	formatFlag
}

func (*commissionCmd) Name() string     { return "commission" }
func (*commissionCmd) Synopsis() string { return "compute the commission of an operation" }
func (*commissionCmd) Usage() string {
	return `tcx commission -side <buy|sell> -amount <amount> [-broker <id>] [-format <format>]

  Computes the commission and the tax on the commission of a buy or a sell,
  with one broker or with every broker of the schedules file.
`
}

func (c *commissionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.side, "side", "buy", "Side of the operation: buy or sell")
	f.StringVar(&c.amount, "amount", "", "Gross amount of the operation")
	f.StringVar(&c.broker, "broker", "", "Broker id. Defaults to every broker.")
	c.formatFlag.SetFlags(f)
}

func (c *commissionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	side, err := tradecost.ParseSide(c.side)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	amount, err := c.app.amount(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	schedules, err := c.app.schedules()
	if err != nil {
		return fail("Error loading fee schedules", err)
	}
	if c.broker != "" {
		s, err := config.FindSchedule(schedules, c.broker)
		if err != nil {
			return fail("Error", err)
		}
		schedules = []tradecost.FeeSchedule{s}
	}

	fees := make([]tradecost.CommissionFee, len(schedules))
	out := make(map[string]tradecost.CommissionFee, len(schedules))
	for i, s := range schedules {
		if fees[i], err = s.Commission(side, amount); err != nil {
			return fail("Error computing commission", err)
		}
		out[s.BrokerID] = fees[i]
	}
	return c.print(renderer.Commission(side, amount, schedules, fees), out)
}

// valuations is a repeatable flag of monthly portfolio values, each written
// YYYY-MM:value.
type valuations []tradecost.MonthlyValuation

func (v *valuations) String() string {
	if v == nil {
		return ""
	}
	parts := make([]string, len(*v))
	for i, m := range *v {
		parts[i] = m.Month.Format("2006-01") + ":" + m.Value.Decimal().String()
	}
	return strings.Join(parts, ",")
}

// Set parses one month value. The value is in the currency of the
// configuration, set later by currency.
func (v *valuations) Set(s string) error {
	month, value, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("invalid valuation %q, want YYYY-MM:value", s)
	}
	d, err := tradecost.ParseDate(strings.TrimSpace(month) + "-01")
	if err != nil {
		return fmt.Errorf("invalid month %q: %w", month, err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", value, err)
	}
	*v = append(*v, tradecost.MonthlyValuation{Month: d, Value: tradecost.M(amount, "")})
	return nil
}

// in returns the valuations expressed in currency.
func (v valuations) in(currency string) []tradecost.MonthlyValuation {
	out := make([]tradecost.MonthlyValuation, len(v))
	for i, m := range v {
		out[i] = tradecost.MonthlyValuation{Month: m.Month, Value: tradecost.M(m.Value.Decimal(), currency)}
	}
	return out
}

type custodyCmd struct {
	app    *App
	broker string
	values valuations
	save   bool
	rangeFlags
	formatFlag
}

func (*custodyCmd) Name() string     { return "custody" }
func (*custodyCmd) Synopsis() string { return "compute monthly custody fees and cheaper alternatives" }
func (*custodyCmd) Usage() string {
	return `tcx custody [-broker <id>] [-v YYYY-MM:value]... [-save] [-s <date>] [-d <date>] [-period <period>] [-format <format>]

  With -v, prices the monthly portfolio values with the broker schedule, and
  stores the records with -save. Without -v, reads the stored records of the
  broker within the range.

  In both cases the months are re-priced with every other broker of the
  schedules file.
`
}

func (c *custodyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.broker, "broker", "", "Broker id. Defaults to TCX_BROKER.")
	f.Var(&c.values, "v", "Monthly portfolio value, YYYY-MM:value. Can be repeated.")
	f.BoolVar(&c.save, "save", false, "Store the computed custody records in the ledger")
	c.rangeFlags.SetFlags(f)
	c.formatFlag.SetFlags(f)
}

func (c *custodyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.save && len(c.values) == 0 {
		fmt.Fprintln(os.Stderr, "Error: -save requires at least one -v value")
		return subcommands.ExitUsageError
	}
	r, _, err := c.Range()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	schedule, err := c.app.schedule(c.broker)
	if err != nil {
		return fail("Error", err)
	}
	all, err := c.app.schedules()
	if err != nil {
		return fail("Error loading fee schedules", err)
	}

	ledger, err := c.app.openLedger(ctx)
	if err != nil {
		return fail("Error opening ledger", err)
	}
	defer ledger.Close()

	var records []tradecost.CustodyFeeRecord
	if len(c.values) > 0 {
		records, err = tradecost.CustodyRecords(c.values.in(schedule.Currency), schedule)
		if err != nil {
			return fail("Error computing custody", err)
		}
		if c.save {
			if err := ledger.SaveCustody(ctx, records); err != nil {
				return fail("Error saving custody", err)
			}
			c.app.Log.Info().Str("broker", schedule.BrokerID).Int("months", len(records)).Msg("custody records saved")
		}
	} else if records, err = ledger.Custody(ctx, schedule.BrokerID, r); err != nil {
		return fail("Error reading custody", err)
	}

	var others []tradecost.FeeSchedule
	for _, s := range all {
		if s.BrokerID != schedule.BrokerID {
			others = append(others, s)
		}
	}
	opt, err := tradecost.OptimizeCustody(records, others)
	if err != nil {
		return fail("Error comparing custody", err)
	}
	out := struct {
		Records      []tradecost.CustodyFeeRecord  `json:"records"`
		Optimization tradecost.CustodyOptimization `json:"optimization"`
	}{records, opt}
	return c.print(renderer.Custody(records, &opt), out)
}

type compareCmd struct {
	app    *App
	side   string
	amount string
	value  string
	formatFlag
}

func (*compareCmd) Name() string     { return "compare" }
func (*compareCmd) Synopsis() string { return "rank brokers by first year cost" }
func (*compareCmd) Usage() string {
	return `tcx compare -amount <amount> [-side <buy|sell>] [-value <portfolio value>] [-format <format>]

  Ranks every broker of the schedules file by the cost of the operation plus
  a year of custody on the portfolio value, cheapest first.
`
}

func (c *compareCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.side, "side", "buy", "Side of the operation: buy or sell")
	f.StringVar(&c.amount, "amount", "", "Gross amount of the operation")
	f.StringVar(&c.value, "value", "", "Projected portfolio value. Defaults to the amount.")
	c.formatFlag.SetFlags(f)
}

func (c *compareCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	side, err := tradecost.ParseSide(c.side)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	amount, err := c.app.amount(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	value := amount
	if c.value != "" {
		if value, err = c.app.amount(c.value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	schedules, err := c.app.schedules()
	if err != nil {
		return fail("Error loading fee schedules", err)
	}
	if len(schedules) == 0 {
		return fail("Error", fmt.Errorf("no broker in %s", c.app.Config.SchedulesPath))
	}
	cmp, err := report.BrokerComparison(side, amount, value, schedules)
	if err != nil {
		return fail("Error comparing brokers "+brokerIDs(schedules), err)
	}
	return c.print(renderer.Comparison(cmp), cmp)
}
