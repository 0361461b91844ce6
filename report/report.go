// Package report assembles the outputs of the cost engine into reports: the
// dashboard, the yearly tax report, the cost report and the broker
// comparison. Reports are plain values, rendered by package renderer or
// exported as JSON.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/etnz/tradecost"
)

// Integrity is an instrument left out of a report because its trades could
// not be matched.
type Integrity struct {
	InstrumentID string `json:"instrumentId"`
	Symbol       string `json:"symbol,omitempty"`
	TradeID      int64  `json:"tradeId,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Error        string `json:"error"`
}

func integrity(res tradecost.MatchResult) []Integrity {
	var out []Integrity
	for _, m := range res.Failed() {
		i := Integrity{InstrumentID: m.InstrumentID, Symbol: m.Symbol, Error: m.Err.Error()}
		var e *tradecost.DataIntegrityError
		if errors.As(m.Err, &e) {
			i.TradeID, i.Kind = e.TradeID, e.Kind.String()
		}
		out = append(out, i)
	}
	return out
}

// Period is the date range a report covers.
type Period struct {
	From tradecost.Date `json:"from"`
	To   tradecost.Date `json:"to"`
}

func period(r tradecost.Range) Period { return Period{From: r.From, To: r.To} }

// inRange keeps the round trips sold in r, all of them for a zero r.
func inRange(rts []tradecost.RoundTrip, r tradecost.Range) []tradecost.RoundTrip {
	if r.IsZero() {
		return rts
	}
	var out []tradecost.RoundTrip
	for _, rt := range rts {
		if r.Contains(rt.SellDate) {
			out = append(out, rt)
		}
	}
	return out
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// WriteJSON writes v as indented JSON followed by a newline. The output of a
// given report is identical byte for byte across runs.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write json report: %w", err)
	}
	return nil
}
