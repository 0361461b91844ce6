package renderer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/tradecost"
	"github.com/etnz/tradecost/report"
)

// ConditionalBlock let you fully write a block and decide at the end to print it or not.
// If the block function returns true, the content is printed to w, otherwise it is discarded.
func ConditionalBlock(w io.Writer, block func(io.Writer) bool) {
	bw := &bytes.Buffer{}
	if block(bw) {
		io.Copy(w, bw)
	}
}

// table writes a markdown table header. Columns starting with '<' are left
// aligned, the others right aligned.
func table(w io.Writer, columns ...string) {
	var head, sep strings.Builder
	for _, c := range columns {
		align := "---:|"
		if strings.HasPrefix(c, "<") {
			c, align = c[1:], ":---|"
		}
		fmt.Fprintf(&head, "| %s ", c)
		sep.WriteString(align)
	}
	fmt.Fprintf(w, "%s|\n|%s\n", head.String(), sep.String())
}

// row writes a markdown table row.
func row(w io.Writer, cells ...any) {
	for _, c := range cells {
		fmt.Fprintf(w, "| %v ", c)
	}
	fmt.Fprintln(w, "|")
}

func pct(r tradecost.Rate) string { return r.Decimal().StringFixed(2) + "%" }

func days(f float64) string { return fmt.Sprintf("%.1f d", f) }

// integrity writes the instruments left out of a report, if any.
func integrity(w io.Writer, list []report.Integrity) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Data Integrity\n\n")
		fmt.Fprint(w, "These instruments could not be matched and are excluded:\n\n")
		table(w, "<Instrument", "<Symbol", "Trade", "<Problem")
		for _, i := range list {
			row(w, i.InstrumentID, i.Symbol, i.TradeID, i.Error)
		}
		fmt.Fprintln(w)
		return len(list) > 0
	})
}
