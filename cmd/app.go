// Package cmd implements the tcx command line: ledger maintenance, cost
// analysis and broker comparison.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/tradecost"
	"github.com/etnz/tradecost/config"
	"github.com/etnz/tradecost/renderer"
	"github.com/etnz/tradecost/report"
	"github.com/etnz/tradecost/store"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// App is the state shared by the commands: the configuration and the logger.
// As a CLI application it lives for a single command.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
}

// Commands returns all tcx commands, by group.
func (a *App) Commands() map[string][]subcommands.Command {
	return map[string][]subcommands.Command{
		"ledger": {
			&importCmd{app: a},
			&appendCmd{app: a},
			&reverseCmd{app: a},
		},
		"analysis": {
			&matchCmd{app: a},
			&positionsCmd{app: a},
			&aggregateCmd{app: a},
			&metricsCmd{app: a},
			&alertsCmd{app: a},
			&taxCmd{app: a},
			&dashboardCmd{app: a},
		},
		"brokers": {
			&commissionCmd{app: a},
			&custodyCmd{app: a},
			&compareCmd{app: a},
		},
		"help": {
			&topicCmd{},
		},
	}
}

// Register registers the commands in c.
func (a *App) Register(c *subcommands.Commander) {
	for group, cmds := range a.Commands() {
		for _, cmd := range cmds {
			c.Register(cmd, group)
		}
	}
}

// openLedger opens the configured ledger. The caller must close it.
func (a *App) openLedger(ctx context.Context) (*store.Ledger, error) {
	return store.Open(ctx, store.Config{Path: a.Config.DatabasePath}, a.Log)
}

// snapshot reads the trades dated up to asOf, all when asOf is zero.
func (a *App) snapshot(ctx context.Context, asOf tradecost.Date) ([]tradecost.Trade, error) {
	l, err := a.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	return l.Snapshot(ctx, asOf)
}

// schedules loads the configured fee schedules.
func (a *App) schedules() ([]tradecost.FeeSchedule, error) {
	return config.LoadSchedules(a.Config.SchedulesPath)
}

// schedule returns the schedule of broker, or of the configured broker when
// broker is empty.
func (a *App) schedule(broker string) (tradecost.FeeSchedule, error) {
	if broker == "" {
		broker = a.Config.Broker
	}
	if broker == "" {
		return tradecost.FeeSchedule{}, fmt.Errorf("no broker given, use -broker or TCX_BROKER")
	}
	all, err := a.schedules()
	if err != nil {
		return tradecost.FeeSchedule{}, err
	}
	return config.FindSchedule(all, broker)
}

// amount parses a decimal amount in the configured currency.
func (a *App) amount(s string) (tradecost.Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return tradecost.Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return tradecost.M(d, a.Config.Currency), nil
}

// rangeFlags are the flags selecting a reporting range.
type rangeFlags struct {
	period string
	start  string
	end    string
}

func (r *rangeFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.period, "period", "", "Predefined period ending on -d (month, quarter, year). Defaults to the whole ledger.")
	f.StringVar(&r.start, "s", "", "Start date of the reporting range. See the user manual for supported date formats.")
	f.StringVar(&r.end, "d", "", "End date of the reporting range. Defaults to today.")
}

// Range returns the selected range, zero for the whole ledger, and the date
// of the ledger snapshot it must be computed on.
func (r *rangeFlags) Range() (rng tradecost.Range, asOf tradecost.Date, err error) {
	if r.start != "" && r.period != "" {
		return rng, asOf, fmt.Errorf("-s and -period flags cannot be used together")
	}
	if r.start == "" && r.period == "" && r.end == "" {
		return rng, asOf, nil
	}
	asOf = tradecost.Today()
	if r.end != "" {
		if asOf, err = tradecost.ParseDate(r.end); err != nil {
			return rng, asOf, fmt.Errorf("invalid end date: %w", err)
		}
	}
	switch {
	case r.start != "":
		start, err := tradecost.ParseDate(r.start)
		if err != nil {
			return rng, asOf, fmt.Errorf("invalid start date: %w", err)
		}
		rng = tradecost.NewRange(start, asOf)
	case r.period != "":
		p, err := tradecost.ParsePeriod(r.period)
		if err != nil {
			return rng, asOf, err
		}
		rng = p.Range(asOf)
	}
	return rng, asOf, nil
}

// formatFlag selects how a result is printed.
type formatFlag struct{ format string }

func (o *formatFlag) SetFlags(f *flag.FlagSet) {
	f.StringVar(&o.format, "format", "md", "Output format: md (terminal), raw (markdown source), json or html")
}

// print writes the result: markdown rendered for the terminal by default,
// v as JSON, or markdown converted to HTML.
func (o *formatFlag) print(markdown string, v any) subcommands.ExitStatus {
	switch o.format {
	case "md", "":
		printMarkdown(markdown)
	case "raw":
		fmt.Print(markdown)
	case "json":
		if err := report.WriteJSON(os.Stdout, v); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	case "html":
		html, err := renderer.HTML(markdown)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Print(html)
	default:
		fmt.Fprintf(os.Stderr, "Unknown format %q\n", o.format)
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, or prints it as is when it
// cannot be rendered.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// fail reports err and returns the failure status.
func fail(format string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+": %v\n", err)
	return subcommands.ExitFailure
}
