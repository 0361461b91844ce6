package tradecost

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// RoundTrip is the closing of some quantity of a lot by a sell.
type RoundTrip struct {
	InstrumentID     string
	Symbol           string
	BuyTradeID       int64
	SellTradeID      int64
	BuyDate          Date
	SellDate         Date
	Quantity         Quantity
	CostBasis        Money // share of the buy amount and buy fees
	Proceeds         Money // share of the sell amount, net of sell fees
	RealizedGainLoss Money
	HoldingDays      int
}

// LongTermDays is the holding period from which a round trip is long-term.
const LongTermDays = 365

// IsLongTerm reports whether the lot was held at least LongTermDays.
func (r RoundTrip) IsLongTerm() bool { return r.HoldingDays >= LongTermDays }

// MarshalJSON writes the round trip with amounts as plain numbers.
func (r RoundTrip) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("instrumentId", r.InstrumentID)
	w.Append("symbol", r.Symbol)
	w.Append("buyTradeId", r.BuyTradeID)
	w.Append("sellTradeId", r.SellTradeID)
	w.Append("buyDate", r.BuyDate)
	w.Append("sellDate", r.SellDate)
	w.Append("matchedQuantity", r.Quantity)
	w.Optional("currency", r.CostBasis.Currency())
	w.Append("costBasis", r.CostBasis.Decimal())
	w.Append("proceeds", r.Proceeds.Decimal())
	w.Append("realizedGainLoss", r.RealizedGainLoss.Decimal())
	w.Append("holdingDays", r.HoldingDays)
	return w.MarshalJSON()
}

// Position is what remains held of an instrument after matching.
type Position struct {
	InstrumentID string
	Symbol       string
	Quantity     Quantity
	CostBasis    Money
	AverageCost  Money // weighted average unit cost, 4 fractional digits
	Lots         []OpenLot
}

// IsClosed reports whether nothing is held.
func (p Position) IsClosed() bool { return p.Quantity.IsZero() }

// MarshalJSON writes the position with amounts as plain numbers.
func (p Position) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("instrumentId", p.InstrumentID)
	w.Append("symbol", p.Symbol)
	w.Append("quantity", p.Quantity)
	w.Optional("currency", p.CostBasis.Currency())
	w.Append("costBasis", p.CostBasis.Decimal())
	w.Append("averageCost", p.AverageCost.Decimal())
	type jsonLot struct {
		TradeID  int64    `json:"tradeId"`
		Date     Date     `json:"openDate"`
		Quantity Quantity `json:"quantity"`
		Cost     Money    `json:"cost"`
	}
	lots := make([]jsonLot, len(p.Lots))
	for i, l := range p.Lots {
		lots[i] = jsonLot{l.TradeID, l.Date, l.Quantity, l.Cost}
	}
	w.Append("lots", lots)
	return w.MarshalJSON()
}

// InstrumentMatch is the outcome of matching the trades of one instrument.
// When Err is set the instrument could not be matched and the other fields
// are empty.
type InstrumentMatch struct {
	InstrumentID string
	Symbol       string
	RoundTrips   []RoundTrip
	Position     Position
	Err          error
}

// MatchInstrument matches the buys and sells of a single instrument in FIFO
// order: each sell closes the oldest open lots first.
//
// Trades are processed by (date, id). Reversal trades and the trades they
// cancel are removed first. A sell larger than the open position is a
// *DataIntegrityError of kind Oversell; nothing is clamped.
func MatchInstrument(trades []Trade) (InstrumentMatch, error) {
	if len(trades) == 0 {
		return InstrumentMatch{}, nil
	}
	instrument := trades[0].InstrumentID
	m := InstrumentMatch{InstrumentID: instrument}

	effective, err := prepareInstrument(instrument, trades)
	if err != nil {
		return m, err
	}

	var open lots
	for _, t := range effective {
		if m.Symbol == "" {
			m.Symbol = t.Symbol
		}
		switch t.Side {
		case Buy:
			open = append(open, newLot(t))
		case Sell:
			var closed []RoundTrip
			closed, open, err = sellLots(open, t)
			if err != nil {
				return InstrumentMatch{InstrumentID: instrument}, err
			}
			m.RoundTrips = append(m.RoundTrips, closed...)
		}
	}

	m.Position = Position{
		InstrumentID: instrument,
		Symbol:       m.Symbol,
		Quantity:     open.Quantity(),
		CostBasis:    open.Cost(),
		Lots:         open.open(),
	}
	if !m.Position.Quantity.IsZero() {
		m.Position.AverageCost = m.Position.CostBasis.Div(m.Position.Quantity).RoundTo(ratePlaces).asUnitCost()
	}
	return m, nil
}

// prepareInstrument checks the trades of instrument, applies reversals and
// returns the remaining trades sorted by (date, id).
func prepareInstrument(instrument string, trades []Trade) ([]Trade, error) {
	byID := make(map[int64]Trade, len(trades))
	codes := make([]string, 0, len(trades))
	for _, t := range trades {
		fail := func(kind IntegrityKind, format string, args ...any) error {
			return &DataIntegrityError{InstrumentID: instrument, TradeID: t.ID, Kind: kind, Detail: fmt.Sprintf(format, args...)}
		}
		if t.InstrumentID != instrument {
			return nil, fail(InstrumentMismatch, "belongs to instrument %s", t.InstrumentID)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fail(DuplicateTrade, "trade id used twice")
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		byID[t.ID] = t
		codes = append(codes, t.Currency())
	}
	if _, err := commonCurrency(codes...); err != nil {
		return nil, &DataIntegrityError{InstrumentID: instrument, Kind: CurrencyMismatch, Detail: err.Error()}
	}

	reversedBy := make(map[int64]int64)
	for _, r := range trades {
		if !r.IsReversal() {
			continue
		}
		fail := func(kind IntegrityKind, format string, args ...any) error {
			return &DataIntegrityError{InstrumentID: instrument, TradeID: r.ID, Kind: kind, Detail: fmt.Sprintf(format, args...)}
		}
		orig, ok := byID[r.Reverses]
		switch {
		case !ok:
			return nil, fail(InvalidReversal, "reverses unknown trade %d", r.Reverses)
		case orig.IsReversal():
			return nil, fail(InvalidReversal, "reverses trade %d which is itself a reversal", orig.ID)
		case orig.Side != r.Side || !orig.Quantity.Equal(r.Quantity):
			return nil, fail(InvalidReversal, "does not mirror trade %d (%s %s)", orig.ID, orig.Side, orig.Quantity)
		case r.Date.Before(orig.Date):
			return nil, fail(Chronology, "reversal dated %s before trade %d on %s", r.Date, orig.ID, orig.Date)
		}
		if other, done := reversedBy[orig.ID]; done {
			return nil, fail(InvalidReversal, "trade %d already reversed by %d", orig.ID, other)
		}
		reversedBy[orig.ID] = r.ID
	}

	effective := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if _, cancelled := reversedBy[t.ID]; cancelled || t.IsReversal() {
			continue
		}
		effective = append(effective, t)
	}
	SortTrades(effective)
	return effective, nil
}

// sellLots closes the oldest open lots with sell s.
//
// Gross amount and fees of the sell are split across the lots it closes in
// proportion to the quantity still to close, to the cent. The last slice
// takes the remainder so that the slices add up to the sell amounts exactly.
func sellLots(open lots, s Trade) ([]RoundTrip, lots, error) {
	if held := open.Quantity(); held.LessThan(s.Quantity) {
		return nil, open, &DataIntegrityError{
			InstrumentID: s.InstrumentID,
			TradeID:      s.ID,
			Kind:         Oversell,
			Shortfall:    s.Quantity.Sub(held),
			Detail:       fmt.Sprintf("selling %s with %s held", s.Quantity, held),
		}
	}

	grossLeft, feesLeft := s.GrossAmount(), s.Fees()
	var closed []RoundTrip
	for q := s.Quantity; q.IsPositive(); {
		c := q.Min(open[0].Quantity)
		var consumed lot
		consumed, open = open.consume(c)

		gross, fees := share(grossLeft, c, q), share(feesLeft, c, q)
		grossLeft, feesLeft = grossLeft.Sub(gross), feesLeft.Sub(fees)
		q = q.Sub(c)

		proceeds := gross.Sub(fees)
		closed = append(closed, RoundTrip{
			InstrumentID:     s.InstrumentID,
			Symbol:           s.Symbol,
			BuyTradeID:       consumed.TradeID,
			SellTradeID:      s.ID,
			BuyDate:          consumed.Date,
			SellDate:         s.Date,
			Quantity:         c,
			CostBasis:        consumed.Cost,
			Proceeds:         proceeds,
			RealizedGainLoss: proceeds.Sub(consumed.Cost),
			HoldingDays:      s.Date.DaysSince(consumed.Date),
		})
	}
	return closed, open, nil
}

// MatchResult holds the matching of every instrument of a ledger, sorted by
// instrument id.
type MatchResult struct {
	Instruments []InstrumentMatch
}

// Match matches every instrument independently. An instrument whose trades
// are inconsistent is reported in its InstrumentMatch.Err and does not
// prevent the others from being matched.
func Match(trades []Trade) MatchResult {
	groups := make(map[string][]Trade)
	for _, t := range trades {
		groups[t.InstrumentID] = append(groups[t.InstrumentID], t)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var res MatchResult
	for _, id := range ids {
		m, err := MatchInstrument(groups[id])
		if err != nil {
			m = InstrumentMatch{InstrumentID: id, Symbol: groups[id][0].Symbol, Err: err}
		}
		res.Instruments = append(res.Instruments, m)
	}
	return res
}

// RoundTrips returns the round trips of all successfully matched instruments,
// sorted by sell date, instrument, sell and buy trade.
func (r MatchResult) RoundTrips() []RoundTrip {
	var all []RoundTrip
	for _, m := range r.Instruments {
		all = append(all, m.RoundTrips...)
	}
	slices.SortStableFunc(all, func(a, b RoundTrip) int {
		return cmp.Or(
			a.SellDate.Compare(b.SellDate),
			cmp.Compare(a.InstrumentID, b.InstrumentID),
			cmp.Compare(a.SellTradeID, b.SellTradeID),
			cmp.Compare(a.BuyTradeID, b.BuyTradeID),
		)
	})
	return all
}

// Positions returns the open positions, closed ones excluded.
func (r MatchResult) Positions() []Position {
	var out []Position
	for _, m := range r.Instruments {
		if m.Err == nil && !m.Position.IsClosed() {
			out = append(out, m.Position)
		}
	}
	return out
}

// Failed returns the instruments that could not be matched.
func (r MatchResult) Failed() []InstrumentMatch {
	var out []InstrumentMatch
	for _, m := range r.Instruments {
		if m.Err != nil {
			out = append(out, m)
		}
	}
	return out
}

// Err joins the errors of all failed instruments, nil if none failed.
func (r MatchResult) Err() error {
	var errs []error
	for _, m := range r.Failed() {
		errs = append(errs, m.Err)
	}
	return errors.Join(errs...)
}
