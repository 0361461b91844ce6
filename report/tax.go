package report

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/etnz/tradecost"
	"github.com/shopspring/decimal"
)

// TaxLine sums the round trips of one instrument.
type TaxLine struct {
	InstrumentID string
	Symbol       string
	RoundTrips   int
	Quantity     tradecost.Quantity
	CostBasis    tradecost.Money
	Proceeds     tradecost.Money
	ShortTerm    tradecost.Money // realized on lots held less than a year
	LongTerm     tradecost.Money
	Realized     tradecost.Money
}

// TaxReport lists the gains and losses realized in a calendar year.
type TaxReport struct {
	Year       int
	RoundTrips []tradecost.RoundTrip // sold in Year
	Lines      []TaxLine             // per instrument, by symbol
	CostBasis  tradecost.Money
	Proceeds   tradecost.Money
	ShortTerm  tradecost.Money
	LongTerm   tradecost.Money
	Realized   tradecost.Money
	Holding    tradecost.HoldingStats
	Integrity  []Integrity
}

// NewTaxReport matches the ledger and reports the round trips sold during
// year. Instruments that cannot be matched are listed in Integrity.
func NewTaxReport(trades []tradecost.Trade, year int) (*TaxReport, error) {
	res := tradecost.Match(trades)
	rts := inRange(res.RoundTrips(), tradecost.Yearly.Range(tradecost.NewDate(year, 1, 1)))

	// also checks that all round trips share a currency.
	p, err := tradecost.ProfitabilityMetrics(rts)
	if err != nil {
		return nil, err
	}
	zero := tradecost.M(0, p.TotalRealized.Currency())
	r := &TaxReport{
		Year:       year,
		RoundTrips: rts,
		CostBasis:  zero,
		Proceeds:   zero,
		ShortTerm:  zero,
		LongTerm:   zero,
		Realized:   p.TotalRealized,
		Holding:    tradecost.HoldingPeriodStats(rts),
		Integrity:  integrity(res),
	}

	lines := make(map[string]*TaxLine)
	for _, rt := range rts {
		l, ok := lines[rt.InstrumentID]
		if !ok {
			l = &TaxLine{
				InstrumentID: rt.InstrumentID,
				Symbol:       rt.Symbol,
				CostBasis:    zero, Proceeds: zero, ShortTerm: zero, LongTerm: zero, Realized: zero,
			}
			lines[rt.InstrumentID] = l
		}
		l.RoundTrips++
		l.Quantity = l.Quantity.Add(rt.Quantity)
		l.CostBasis = l.CostBasis.Add(rt.CostBasis)
		l.Proceeds = l.Proceeds.Add(rt.Proceeds)
		l.Realized = l.Realized.Add(rt.RealizedGainLoss)
		if rt.IsLongTerm() {
			l.LongTerm = l.LongTerm.Add(rt.RealizedGainLoss)
			r.LongTerm = r.LongTerm.Add(rt.RealizedGainLoss)
		} else {
			l.ShortTerm = l.ShortTerm.Add(rt.RealizedGainLoss)
			r.ShortTerm = r.ShortTerm.Add(rt.RealizedGainLoss)
		}
		r.CostBasis = r.CostBasis.Add(rt.CostBasis)
		r.Proceeds = r.Proceeds.Add(rt.Proceeds)
	}
	for _, l := range lines {
		r.Lines = append(r.Lines, *l)
	}
	slices.SortFunc(r.Lines, func(a, b TaxLine) int {
		return cmp.Or(cmp.Compare(a.Symbol, b.Symbol), cmp.Compare(a.InstrumentID, b.InstrumentID))
	})
	return r, nil
}

func (l TaxLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		InstrumentID string             `json:"instrumentId"`
		Symbol       string             `json:"symbol"`
		RoundTrips   int                `json:"roundTrips"`
		Quantity     tradecost.Quantity `json:"quantity"`
		Currency     string             `json:"currency,omitempty"`
		CostBasis    decimal.Decimal    `json:"costBasis"`
		Proceeds     decimal.Decimal    `json:"proceeds"`
		ShortTerm    decimal.Decimal    `json:"shortTerm"`
		LongTerm     decimal.Decimal    `json:"longTerm"`
		Realized     decimal.Decimal    `json:"realized"`
	}{
		l.InstrumentID, l.Symbol, l.RoundTrips, l.Quantity, l.Realized.Currency(),
		l.CostBasis.Decimal(), l.Proceeds.Decimal(), l.ShortTerm.Decimal(), l.LongTerm.Decimal(), l.Realized.Decimal(),
	})
}

func (r TaxReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Year       int                    `json:"year"`
		Currency   string                 `json:"currency,omitempty"`
		CostBasis  decimal.Decimal        `json:"costBasis"`
		Proceeds   decimal.Decimal        `json:"proceeds"`
		ShortTerm  decimal.Decimal        `json:"shortTerm"`
		LongTerm   decimal.Decimal        `json:"longTerm"`
		Realized   decimal.Decimal        `json:"realized"`
		Lines      []TaxLine              `json:"lines"`
		RoundTrips []tradecost.RoundTrip  `json:"roundTrips"`
		Holding    tradecost.HoldingStats `json:"holdingPeriod"`
		Integrity  []Integrity            `json:"integrity,omitempty"`
	}{
		r.Year, r.Realized.Currency(),
		r.CostBasis.Decimal(), r.Proceeds.Decimal(), r.ShortTerm.Decimal(), r.LongTerm.Decimal(), r.Realized.Decimal(),
		nonNil(r.Lines), nonNil(r.RoundTrips), r.Holding, r.Integrity,
	})
}
