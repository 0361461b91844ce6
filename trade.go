package tradecost

import (
	"fmt"
	"strings"
)

// Side is the direction of a trade.
type Side int

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide parses "buy" or "sell".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown trade side %q", s)
	}
}

func (s Side) MarshalJSON() ([]byte, error) { return []byte(`"` + s.String() + `"`), nil }

// Trade is an executed buy or sell of an instrument, as recorded in the ledger.
//
// Trades are immutable: a correction is recorded as a reversal of the wrong
// trade (Reverses set to its ID) followed by a new trade.
type Trade struct {
	ID           int64    // ingestion order, unique in the ledger
	InstrumentID string   // stable identifier of the instrument (ISIN, ...)
	Symbol       string   // display ticker
	Side         Side     //
	Quantity     Quantity // > 0
	UnitPrice    Money    // > 0, per unit
	Date         Date     // trade date
	Commission   Money    // >= 0
	Tax          Money    // >= 0
	Memo         string   // optional note
	Reverses     int64    // ID of the trade cancelled by this one, 0 if none
}

// NewBuy creates a new buy trade.
func NewBuy(id int64, day Date, instrument, symbol string, quantity Quantity, unitPrice, commission, tax Money) Trade {
	return Trade{ID: id, InstrumentID: instrument, Symbol: symbol, Side: Buy, Quantity: quantity,
		UnitPrice: unitPrice, Date: day, Commission: commission, Tax: tax}
}

// NewSell creates a new sell trade.
func NewSell(id int64, day Date, instrument, symbol string, quantity Quantity, unitPrice, commission, tax Money) Trade {
	return Trade{ID: id, InstrumentID: instrument, Symbol: symbol, Side: Sell, Quantity: quantity,
		UnitPrice: unitPrice, Date: day, Commission: commission, Tax: tax}
}

// Currency returns the currency of the trade amounts.
func (t Trade) Currency() string {
	c, _ := commonCurrency(t.UnitPrice.Currency(), t.Commission.Currency(), t.Tax.Currency())
	return c
}

// IsReversal reports whether t cancels another trade.
func (t Trade) IsReversal() bool { return t.Reverses != 0 }

// GrossAmount returns quantity × unit price, rounded to the cent.
func (t Trade) GrossAmount() Money { return t.UnitPrice.Mul(t.Quantity).Round() }

// Fees returns commission + tax.
func (t Trade) Fees() Money { return t.Commission.Add(t.Tax) }

// NetAmount is the cash that left the account for a buy (gross plus fees),
// or that entered it for a sell (gross minus fees).
func (t Trade) NetAmount() Money {
	if t.Side == Sell {
		return t.GrossAmount().Sub(t.Fees())
	}
	return t.GrossAmount().Add(t.Fees())
}

// Validate checks the intrinsic invariants of a trade: known side, positive
// quantity and price, non negative fees and a single currency.
func (t Trade) Validate() error {
	fail := func(kind IntegrityKind, detail string) error {
		return &DataIntegrityError{InstrumentID: t.InstrumentID, TradeID: t.ID, Kind: kind, Detail: detail}
	}
	if t.Side != Buy && t.Side != Sell {
		return fail(InvalidSide, fmt.Sprintf("unknown side %d", t.Side))
	}
	if !t.Quantity.IsPositive() {
		return fail(InvalidQuantity, fmt.Sprintf("quantity %s must be positive", t.Quantity))
	}
	if !t.UnitPrice.IsPositive() {
		return fail(InvalidPrice, fmt.Sprintf("unit price %s must be positive", t.UnitPrice.Decimal()))
	}
	if t.Commission.IsNegative() || t.Tax.IsNegative() {
		return fail(NegativeFee, fmt.Sprintf("commission %s and tax %s must not be negative", t.Commission.Decimal(), t.Tax.Decimal()))
	}
	if _, err := commonCurrency(t.UnitPrice.Currency(), t.Commission.Currency(), t.Tax.Currency()); err != nil {
		return fail(CurrencyMismatch, err.Error())
	}
	return nil
}

// MarshalJSON writes the canonical trade record, keys in a stable order.
func (t Trade) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", t.ID)
	w.Append("instrumentId", t.InstrumentID)
	w.Append("symbol", t.Symbol)
	w.Append("side", t.Side)
	w.Append("quantity", t.Quantity)
	w.Append("unitPrice", t.UnitPrice.Decimal())
	w.Append("tradeDate", t.Date)
	w.Append("commission", t.Commission.Decimal())
	w.Append("tax", t.Tax.Decimal())
	w.Optional("currency", t.Currency())
	w.Optional("memo", t.Memo)
	w.Optional("reverses", t.Reverses)
	return w.MarshalJSON()
}
