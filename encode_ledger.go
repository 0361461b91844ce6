package tradecost

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// tradeRecord is the flat JSONL representation of a trade.
type tradeRecord struct {
	ID           int64           `json:"id"`
	InstrumentID string          `json:"instrumentId"`
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	TradeDate    Date            `json:"tradeDate"`
	Commission   decimal.Decimal `json:"commission"`
	Tax          decimal.Decimal `json:"tax"`
	Currency     string          `json:"currency"`
	Memo         string          `json:"memo,omitempty"`
	Reverses     int64           `json:"reverses,omitempty"`
}

func (r tradeRecord) trade() (Trade, error) {
	side, err := ParseSide(r.Side)
	if err != nil {
		return Trade{}, err
	}
	if r.TradeDate.IsZero() {
		return Trade{}, fmt.Errorf("trade %d has no tradeDate", r.ID)
	}
	return Trade{
		ID:           r.ID,
		InstrumentID: r.InstrumentID,
		Symbol:       r.Symbol,
		Side:         side,
		Quantity:     Q(r.Quantity),
		UnitPrice:    M(r.UnitPrice, r.Currency),
		Date:         r.TradeDate,
		Commission:   M(r.Commission, r.Currency),
		Tax:          M(r.Tax, r.Currency),
		Memo:         r.Memo,
		Reverses:     r.Reverses,
	}, nil
}

// DecodeTrades decodes trades from a stream of JSONL data, one trade per
// line, and returns them sorted by (date, id).
//
// Trades without an id get the next id after the largest one seen so far,
// which preserves the ingestion order of the file.
func DecodeTrades(r io.Reader) ([]Trade, error) {
	var trades []Trade
	var lastID int64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var rec tradeRecord
		if err := json.Unmarshal(lineBytes, &rec); err != nil {
			return nil, fmt.Errorf("line %d: could not decode trade %q: %w", line, string(lineBytes), err)
		}
		if rec.ID == 0 {
			rec.ID = lastID + 1
		}
		lastID = max(lastID, rec.ID)
		tx, err := rec.trade()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		trades = append(trades, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	SortTrades(trades)
	return trades, nil
}

// EncodeTrade writes a single trade in JSONL format.
func EncodeTrade(w io.Writer, t Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trade %d: %w", t.ID, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write trade %d: %w", t.ID, err)
	}
	return nil
}

// EncodeTrades writes trades in canonical (date, id) order in JSONL format.
func EncodeTrades(w io.Writer, trades []Trade) error {
	sorted := slices.Clone(trades)
	SortTrades(sorted)
	for _, t := range sorted {
		if err := EncodeTrade(w, t); err != nil {
			return err
		}
	}
	return nil
}

// SortTrades sorts trades chronologically, same-day trades in id order.
func SortTrades(trades []Trade) {
	slices.SortStableFunc(trades, compareTrades)
}

func compareTrades(a, b Trade) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
