// Package renderer formats the cost engine results and reports as markdown,
// for the terminal or for HTML export.
package renderer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/tradecost"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// RoundTrips renders closed round trips, with totals.
func RoundTrips(rts []tradecost.RoundTrip) string {
	var b strings.Builder
	fmt.Fprint(&b, "# Round Trips\n\n")
	if len(rts) == 0 {
		fmt.Fprint(&b, "No closed position.\n")
		return b.String()
	}
	roundTrips(&b, rts)
	return b.String()
}

func roundTrips(w io.Writer, rts []tradecost.RoundTrip) {
	table(w, "<Symbol", "<Bought", "<Sold", "Quantity", "Cost Basis", "Proceeds", "Gain/Loss", "Days")
	var total tradecost.Money
	for _, rt := range rts {
		row(w, rt.Symbol, rt.BuyDate, rt.SellDate, rt.Quantity, rt.CostBasis, rt.Proceeds, rt.RealizedGainLoss.SignedString(), rt.HoldingDays)
		total = total.Add(rt.RealizedGainLoss)
	}
	row(w, "**Total**", "", "", "", "", "", "**"+total.SignedString()+"**", "")
	fmt.Fprintln(w)
}

// Positions renders the open positions and their lots.
func Positions(positions []tradecost.Position) string {
	var b strings.Builder
	fmt.Fprint(&b, "# Open Positions\n\n")
	if len(positions) == 0 {
		fmt.Fprint(&b, "No open position.\n")
		return b.String()
	}
	table(&b, "<Symbol", "<Instrument", "Quantity", "Cost Basis", "Average Cost", "Lots")
	for _, p := range positions {
		row(&b, p.Symbol, p.InstrumentID, p.Quantity, p.CostBasis, p.AverageCost.Decimal().StringFixed(4), len(p.Lots))
	}
	fmt.Fprintln(&b)
	for _, p := range positions {
		fmt.Fprintf(&b, "## %s\n\n", p.Symbol)
		table(&b, "Trade", "<Opened", "Quantity", "Cost")
		for _, l := range p.Lots {
			row(&b, l.TradeID, l.Date, l.Quantity, l.Cost)
		}
		fmt.Fprintln(&b)
	}
	return b.String()
}

// Aggregates renders period aggregates under title.
func Aggregates(title string, aggs []tradecost.PeriodAggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	aggregates(&b, aggs)
	return b.String()
}

func aggregates(w io.Writer, aggs []tradecost.PeriodAggregate) {
	if len(aggs) == 0 {
		fmt.Fprint(w, "No activity.\n\n")
		return
	}
	table(w, "<Period", "Volume", "Trades", "Commissions", "Taxes", "Custody", "Total Costs", "Cost %", "Net Realized", "Win Rate", "Profit Factor")
	for _, a := range aggs {
		row(w, a.Key, a.TradingVolume, a.NumberOfTrades, a.TotalCommissions, a.TotalTaxes, a.TotalCustody,
			a.TotalCosts, pct(a.CostAsPctOfVolume), a.NetRealized.SignedString(), pct(a.WinRate.Percent()), a.ProfitFactor)
	}
	fmt.Fprintln(w)
}

// Profitability renders the profitability metrics and holding statistics.
func Profitability(p tradecost.Profitability, h tradecost.HoldingStats) string {
	var b strings.Builder
	fmt.Fprint(&b, "# Profitability\n\n")
	profitability(&b, p, h)
	return b.String()
}

func profitability(w io.Writer, p tradecost.Profitability, h tradecost.HoldingStats) {
	table(w, "<Metric", "Value")
	row(w, "Closed round trips", p.Closed)
	row(w, "Wins / Losses", fmt.Sprintf("%d / %d", p.Wins, p.Losses))
	row(w, "Win rate", pct(p.WinRate.Percent()))
	row(w, "Average win", p.AvgWin)
	row(w, "Average loss", p.AvgLoss)
	row(w, "Profit factor", p.ProfitFactor)
	row(w, "Total realized", p.TotalRealized.SignedString())
	row(w, "Cost adjusted ROI", pct(p.CostAdjustedROI))
	row(w, "Mean holding period", days(h.Mean))
	row(w, "Median holding period", days(h.Median))
	row(w, "Short-term / Long-term", fmt.Sprintf("%d / %d", h.ShortTerm, h.LongTerm))
	fmt.Fprintln(w)
}

// Alerts renders cost alerts, most severe first.
func Alerts(alerts []tradecost.Alert) string {
	var b strings.Builder
	fmt.Fprint(&b, "# Cost Alerts\n\n")
	alertList(&b, alerts)
	return b.String()
}

func alertList(w io.Writer, alerts []tradecost.Alert) {
	if len(alerts) == 0 {
		fmt.Fprint(w, "No alert.\n\n")
		return
	}
	for _, a := range alerts {
		fmt.Fprintf(w, "- **%s** `%s` %s: %s\n", strings.ToUpper(a.Severity.String()), a.Code, a.Subject, a.Message)
		fmt.Fprintf(w, "  - %s (potential savings %s)\n", a.RecommendedAction, a.PotentialSavings)
	}
	fmt.Fprintln(w)
}

// HTML converts markdown to an HTML fragment, with GitHub flavored tables.
func HTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to html: %w", err)
	}
	return buf.String(), nil
}
