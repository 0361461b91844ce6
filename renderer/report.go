package renderer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/tradecost"
	"github.com/etnz/tradecost/report"
	md "github.com/nao1215/markdown"
)

func title(name string, p report.Period) string {
	if p.From.IsZero() && p.To.IsZero() {
		return fmt.Sprintf("# %s\n\n", name)
	}
	return fmt.Sprintf("# %s from %s to %s\n\n", name, p.From, p.To)
}

// Dashboard renders the dashboard.
func Dashboard(d *report.Dashboard) string {
	var b strings.Builder
	b.WriteString(title("Trading Cost Dashboard", d.Period))

	if bm := d.Benchmark; bm != nil {
		fmt.Fprintf(&b, "Costs are **%s%%** of the traded volume, %s the industry's %s%% (efficiency score %s/100).\n\n",
			bm.OurCostPct.Decimal().StringFixed(2), comparative(bm.RelativePerformance),
			bm.IndustryPct.Decimal().StringFixed(2), bm.EfficiencyScore.StringFixed(0))
	}

	fmt.Fprint(&b, "## Alerts\n\n")
	alertList(&b, d.Alerts)

	fmt.Fprint(&b, "## Yearly\n\n")
	aggregates(&b, d.Yearly)

	fmt.Fprint(&b, "## Monthly\n\n")
	aggregates(&b, d.Monthly)

	fmt.Fprint(&b, "## Profitability\n\n")
	profitability(&b, d.Profitability, d.Holding)

	ConditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprint(w, "## Open Positions\n\n")
		table(w, "<Symbol", "Quantity", "Cost Basis", "Average Cost")
		for _, p := range d.Positions {
			row(w, p.Symbol, p.Quantity, p.CostBasis, p.AverageCost.Decimal().StringFixed(4))
		}
		fmt.Fprintln(w)
		return len(d.Positions) > 0
	})

	integrity(&b, d.Integrity)
	return b.String()
}

func comparative(relative string) string {
	switch relative {
	case tradecost.Better:
		return "below"
	case tradecost.Worse:
		return "well above"
	default:
		return "in line with"
	}
}

// TaxReport renders the realized gains of a year.
func TaxReport(r *report.TaxReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tax Report %d\n\n", r.Year)
	if len(r.RoundTrips) == 0 {
		fmt.Fprint(&b, "No position was closed this year.\n\n")
		integrity(&b, r.Integrity)
		return b.String()
	}

	fmt.Fprint(&b, "## Summary\n\n")
	table(&b, "<Symbol", "Round Trips", "Cost Basis", "Proceeds", "Short-Term", "Long-Term", "Realized")
	for _, l := range r.Lines {
		row(&b, l.Symbol, l.RoundTrips, l.CostBasis, l.Proceeds, l.ShortTerm.SignedString(), l.LongTerm.SignedString(), l.Realized.SignedString())
	}
	row(&b, "**Total**", len(r.RoundTrips), r.CostBasis, r.Proceeds,
		"**"+r.ShortTerm.SignedString()+"**", "**"+r.LongTerm.SignedString()+"**", "**"+r.Realized.SignedString()+"**")
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Holding period: mean %s, median %s, %d short-term and %d long-term.\n\n",
		days(r.Holding.Mean), days(r.Holding.Median), r.Holding.ShortTerm, r.Holding.LongTerm)

	fmt.Fprint(&b, "## Round Trips\n\n")
	roundTrips(&b, r.RoundTrips)

	integrity(&b, r.Integrity)
	return b.String()
}

// CostReport renders the costs per period and per trade.
func CostReport(r *report.CostReport) string {
	var b strings.Builder
	b.WriteString(title("Cost Report", r.Period))

	fmt.Fprintf(&b, "## Per %s\n\n", strings.TrimSuffix(r.Bucket, "ly"))
	aggregates(&b, r.Aggregates)

	ConditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprint(w, "## Trade Fees\n\n")
		table(w, "Trade", "<Date", "<Symbol", "<Side", "Commission", "Tax", "Total")
		for _, f := range r.Fees {
			row(w, f.TradeID, f.Date, f.Symbol, f.Side, f.Commission, f.Tax, f.Total)
		}
		fmt.Fprintln(w)
		return len(r.Fees) > 0
	})

	ConditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprint(w, "## Custody\n\n")
		custodyRecords(w, r.Custody)
		return len(r.Custody) > 0
	})

	integrity(&b, r.Integrity)
	return b.String()
}

// tableOptions keep headers and cells as written.
var tableOptions = md.TableOptions{AutoWrapText: false, AutoFormatHeaders: false}

// Comparison renders a broker ranking.
func Comparison(c *report.Comparison) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1("Broker Comparison")
	doc.PlainText(fmt.Sprintf("First year cost of a %s of %s, then holding %s.", c.Side, c.Amount, c.PortfolioValue))

	rows := make([][]string, 0, len(c.Ranks))
	for _, r := range c.Ranks {
		rows = append(rows, []string{
			fmt.Sprint(r.Rank), r.Broker, r.OperationCost.String(), r.AnnualCustody.String(),
			r.TotalFirstYearCost.String(), pct(r.BreakEvenPct), r.ExtraCostVsBest.String(),
		})
	}
	doc.CustomTable(md.TableSet{
		Header: []string{"Rank", "Broker", "Operation", "Annual Custody", "First Year", "Break-even", "Extra vs Best"},
		Rows:   rows,
	}, tableOptions)
	return doc.String()
}

// Commission renders the fee of a single operation with each schedule.
func Commission(side tradecost.Side, amount tradecost.Money, schedules []tradecost.FeeSchedule, fees []tradecost.CommissionFee) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H1(fmt.Sprintf("Commission on a %s of %s", side, amount))

	rows := make([][]string, 0, len(fees))
	for i, f := range fees {
		rows = append(rows, []string{
			schedules[i].Name(), f.Base.String(), f.Tax.String(), f.Total.String(), pct(f.Total.Ratio(amount).Percent()),
		})
	}
	doc.CustomTable(md.TableSet{
		Header: []string{"Broker", "Commission", "Tax", "Total", "% of Amount"},
		Rows:   rows,
	}, tableOptions)
	return doc.String()
}

func custodyRecords(w io.Writer, records []tradecost.CustodyFeeRecord) {
	table(w, "<Broker", "<Month", "Portfolio Value", "Fee", "Tax", "Charged")
	for _, r := range records {
		row(w, r.BrokerID, r.Month.Format("2006-01"), r.PortfolioValue, r.FeeAmount, r.TaxAmount, r.TotalCharged)
	}
	fmt.Fprintln(w)
}

// Custody renders custody records and, when there are alternatives, what
// the same months would have cost elsewhere.
func Custody(records []tradecost.CustodyFeeRecord, o *tradecost.CustodyOptimization) string {
	var b strings.Builder
	fmt.Fprint(&b, "# Custody\n\n")
	if len(records) == 0 {
		fmt.Fprint(&b, "No custody record.\n")
		return b.String()
	}
	custodyRecords(&b, records)
	if o == nil || len(o.Alternatives) == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "## Alternatives over %d months\n\n", o.Months)
	table(&b, "<Broker", "Cost", "Difference")
	row(&b, o.BrokerID+" (current)", o.CurrentCost, "")
	for _, a := range o.Alternatives {
		row(&b, a.Broker, a.Cost, a.Cost.Sub(o.CurrentCost).SignedString())
	}
	fmt.Fprintln(&b)
	if o.AnnualSavings.IsPositive() {
		best, _ := o.Best()
		fmt.Fprintf(&b, "Moving to %s would save about **%s** a year.\n", best.Broker, o.AnnualSavings)
	} else {
		fmt.Fprint(&b, "The current broker is the cheapest.\n")
	}
	return b.String()
}
