package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/tradecost"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type importCmd struct {
	app  *App
	file string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import trades from a JSONL file into the ledger" }
func (*importCmd) Usage() string {
	return `tcx import [-f <file.jsonl>]

  Reads trade records, one JSON object per line, and appends them to the
  ledger in a single transaction: if any trade is invalid nothing is
  imported. Records without an id are numbered after the previous record.
  Reads the standard input when -f is not set.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "JSONL file to import, - or empty for the standard input")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var r io.Reader = os.Stdin
	if c.file != "" && c.file != "-" {
		file, err := os.Open(c.file)
		if err != nil {
			return fail("Error opening trades", err)
		}
		defer file.Close()
		r = file
	}
	trades, err := tradecost.DecodeTrades(r)
	if err != nil {
		return fail("Error decoding trades", err)
	}
	ledger, err := c.app.openLedger(ctx)
	if err != nil {
		return fail("Error opening ledger", err)
	}
	defer ledger.Close()

	stored, err := ledger.Import(ctx, trades)
	if err != nil {
		return fail("Error importing trades", err)
	}
	fmt.Printf("Imported %d trades into %s\n", len(stored), ledger.Path())
	return subcommands.ExitSuccess
}

type appendCmd struct {
	app        *App
	side       string
	instrument string
	symbol     string
	quantity   string
	price      string
	date       string
	commission string
	tax        string
	broker     string
	memo       string
}

func (*appendCmd) Name() string     { return "append" }
func (*appendCmd) Synopsis() string { return "record a buy or a sell in the ledger" }
func (*appendCmd) Usage() string {
	return `tcx append -side <buy|sell> -i <instrument> -q <quantity> -p <price> [-d <date>] [-commission <amount> -tax <amount> | -broker <id>]

  Appends a trade to the ledger. When the commission is not given it is
  computed with the fee schedule of the broker (-broker or TCX_BROKER).
`
}

func (c *appendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.side, "side", "buy", "Side of the trade: buy or sell")
	f.StringVar(&c.instrument, "i", "", "Instrument identifier (ISIN, ...)")
	f.StringVar(&c.symbol, "s", "", "Display ticker. Defaults to the instrument identifier.")
	f.StringVar(&c.quantity, "q", "", "Quantity traded")
	f.StringVar(&c.price, "p", "", "Unit price")
	f.StringVar(&c.date, "d", "0d", "Trade date. See the user manual for supported date formats.")
	f.StringVar(&c.commission, "commission", "", "Commission charged. Computed from the broker schedule when empty.")
	f.StringVar(&c.tax, "tax", "0", "Tax charged on the commission, when -commission is set")
	f.StringVar(&c.broker, "broker", "", "Broker whose schedule prices the trade")
	f.StringVar(&c.memo, "memo", "", "Optional note")
}

func (c *appendCmd) trade() (tradecost.Trade, error) {
	var t tradecost.Trade
	side, err := tradecost.ParseSide(c.side)
	if err != nil {
		return t, err
	}
	if c.instrument == "" {
		return t, fmt.Errorf("missing instrument (-i)")
	}
	on, err := tradecost.ParseDate(c.date)
	if err != nil {
		return t, err
	}
	q, err := decimal.NewFromString(c.quantity)
	if err != nil {
		return t, fmt.Errorf("invalid quantity %q: %w", c.quantity, err)
	}
	price, err := c.app.amount(c.price)
	if err != nil {
		return t, err
	}
	symbol := c.symbol
	if symbol == "" {
		symbol = c.instrument
	}
	t = tradecost.Trade{
		InstrumentID: c.instrument,
		Symbol:       symbol,
		Side:         side,
		Quantity:     tradecost.Q(q),
		UnitPrice:    price,
		Date:         on,
		Memo:         c.memo,
	}
	if c.commission != "" {
		if t.Commission, err = c.app.amount(c.commission); err != nil {
			return t, err
		}
		t.Tax, err = c.app.amount(c.tax)
		return t, err
	}
	schedule, err := c.app.schedule(c.broker)
	if err != nil {
		return t, err
	}
	fee, err := schedule.Commission(side, t.GrossAmount())
	if err != nil {
		return t, err
	}
	t.Commission, t.Tax = fee.Base, fee.Tax
	return t, nil
}

func (c *appendCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	t, err := c.trade()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	ledger, err := c.app.openLedger(ctx)
	if err != nil {
		return fail("Error opening ledger", err)
	}
	defer ledger.Close()

	stored, err := ledger.Append(ctx, t)
	if err != nil {
		return fail("Error appending trade", err)
	}
	fmt.Printf("Recorded trade %d: %s %s %s at %s (fees %s)\n", stored.ID, stored.Side, stored.Quantity, stored.Symbol, stored.UnitPrice, stored.Fees())
	return subcommands.ExitSuccess
}

type reverseCmd struct {
	app  *App
	id   int64
	date string
	memo string
}

func (*reverseCmd) Name() string     { return "reverse" }
func (*reverseCmd) Synopsis() string { return "cancel a trade by recording its reversal" }
func (*reverseCmd) Usage() string {
	return `tcx reverse -id <trade> [-d <date>] [-memo <text>]

  The ledger is append-only: a wrong trade is cancelled by a reversal. Both
  are then ignored by the matching, the fees and the alerts.
`
}

func (c *reverseCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Id of the trade to cancel")
	f.StringVar(&c.date, "d", "0d", "Date of the reversal")
	f.StringVar(&c.memo, "memo", "", "Reason of the reversal")
}

func (c *reverseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -id is required")
		return subcommands.ExitUsageError
	}
	on, err := tradecost.ParseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	ledger, err := c.app.openLedger(ctx)
	if err != nil {
		return fail("Error opening ledger", err)
	}
	defer ledger.Close()

	r, err := ledger.Reverse(ctx, c.id, on, c.memo)
	if err != nil {
		return fail("Error reversing trade", err)
	}
	fmt.Printf("Trade %d reversed by trade %d\n", c.id, r.ID)
	return subcommands.ExitSuccess
}
