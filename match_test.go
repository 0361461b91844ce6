package tradecost

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"testing"
)

func TestMatchInstrument_ScenarioA(t *testing.T) {
	m, err := MatchInstrument([]Trade{
		sell(2, day(3, 1), "X", 10, 120, 6),
		buy(1, day(1, 1), "X", 10, 100, 5),
	})
	if err != nil {
		t.Fatalf("MatchInstrument() unexpected error: %v", err)
	}
	if len(m.RoundTrips) != 1 {
		t.Fatalf("got %d round trips, want 1", len(m.RoundTrips))
	}
	rt := m.RoundTrips[0]
	assertMoney(t, "costBasis", rt.CostBasis, 1005)
	assertMoney(t, "proceeds", rt.Proceeds, 1194)
	assertMoney(t, "realizedGainLoss", rt.RealizedGainLoss, 189)
	if rt.HoldingDays != 60 {
		t.Errorf("holdingDays = %d, want 60", rt.HoldingDays)
	}
	if rt.BuyTradeID != 1 || rt.SellTradeID != 2 {
		t.Errorf("got pair (%d, %d), want (1, 2)", rt.BuyTradeID, rt.SellTradeID)
	}
	if !m.Position.IsClosed() {
		t.Errorf("position should be closed, got %s", m.Position.Quantity)
	}
}

func TestMatchInstrument_ScenarioB(t *testing.T) {
	m, err := MatchInstrument([]Trade{
		buy(1, day(1, 1), "X", 10, 100, 5),
		buy(2, day(1, 10), "X", 10, 110, 5),
		sell(3, day(1, 20), "X", 15, 130, 8),
	})
	if err != nil {
		t.Fatalf("MatchInstrument() unexpected error: %v", err)
	}
	if len(m.RoundTrips) != 2 {
		t.Fatalf("got %d round trips, want 2", len(m.RoundTrips))
	}
	first, second := m.RoundTrips[0], m.RoundTrips[1]

	if first.BuyTradeID != 1 || !first.Quantity.Equal(Q(10)) {
		t.Errorf("first round trip should consume lot 1 fully, got %+v", first)
	}
	assertMoney(t, "first costBasis", first.CostBasis, 1005)
	assertMoney(t, "first proceeds", first.Proceeds, 1294.67) // 1300 - 5.33
	assertMoney(t, "first gain", first.RealizedGainLoss, 289.67)

	if second.BuyTradeID != 2 || !second.Quantity.Equal(Q(5)) {
		t.Errorf("second round trip should consume 5 of lot 2, got %+v", second)
	}
	assertMoney(t, "second costBasis", second.CostBasis, 552.5)
	assertMoney(t, "second proceeds", second.Proceeds, 647.33) // 650 - 2.67
	assertMoney(t, "second gain", second.RealizedGainLoss, 94.83)

	// (15×130 − 8) − (1005 + 5×(110+0.5))
	total := first.RealizedGainLoss.Add(second.RealizedGainLoss)
	assertMoney(t, "total gain", total, 384.5)

	p := m.Position
	if !p.Quantity.Equal(Q(5)) {
		t.Errorf("open quantity = %s, want 5", p.Quantity)
	}
	assertMoney(t, "open cost", p.CostBasis, 552.5)
	assertMoney(t, "average cost", p.AverageCost, 110.5)
	if len(p.Lots) != 1 || p.Lots[0].TradeID != 2 {
		t.Errorf("remaining lots = %+v, want the rest of lot 2", p.Lots)
	}
}

func TestMatchInstrument_ScenarioC(t *testing.T) {
	_, err := MatchInstrument([]Trade{
		buy(1, day(1, 1), "X", 10, 100, 5),
		sell(2, day(2, 1), "X", 15, 120, 6),
	})
	var die *DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("MatchInstrument() error = %v, want a DataIntegrityError", err)
	}
	if die.Kind != Oversell || die.TradeID != 2 || die.InstrumentID != "X" {
		t.Errorf("unexpected error %+v", die)
	}
	if !die.Shortfall.Equal(Q(5)) {
		t.Errorf("shortfall = %s, want 5", die.Shortfall)
	}
}

func TestMatchInstrument_SameDayOrderedByID(t *testing.T) {
	// the sell has a lower id than the buy on the same day: it is processed
	// first and oversells.
	_, err := MatchInstrument([]Trade{
		buy(2, day(1, 1), "X", 10, 100, 0),
		sell(1, day(1, 1), "X", 10, 100, 0),
	})
	var die *DataIntegrityError
	if !errors.As(err, &die) || die.Kind != Oversell {
		t.Fatalf("MatchInstrument() error = %v, want an oversell", err)
	}

	m, err := MatchInstrument([]Trade{
		sell(2, day(1, 1), "X", 10, 100, 0),
		buy(1, day(1, 1), "X", 10, 100, 0),
	})
	if err != nil {
		t.Fatalf("MatchInstrument() unexpected error: %v", err)
	}
	if len(m.RoundTrips) != 1 || m.RoundTrips[0].HoldingDays != 0 {
		t.Errorf("unexpected round trips %+v", m.RoundTrips)
	}
}

func TestMatchInstrument_Invalid(t *testing.T) {
	negativeFee := buy(1, day(1, 1), "X", 10, 100, -1)
	zeroQty := buy(1, day(1, 1), "X", 0, 100, 1)
	zeroPrice := buy(1, day(1, 1), "X", 1, 0, 1)
	usd := NewBuy(2, day(1, 2), "X", "X", Q(1), USD(1), USD(0), USD(0))
	noSide := buy(1, day(1, 1), "X", 1, 1, 0)
	noSide.Side = 0

	tests := []struct {
		name   string
		trades []Trade
		kind   IntegrityKind
	}{
		{"negative fee", []Trade{negativeFee}, NegativeFee},
		{"zero quantity", []Trade{zeroQty}, InvalidQuantity},
		{"zero price", []Trade{zeroPrice}, InvalidPrice},
		{"duplicate id", []Trade{buy(1, day(1, 1), "X", 1, 1, 0), buy(1, day(1, 2), "X", 1, 1, 0)}, DuplicateTrade},
		{"mixed currencies", []Trade{buy(1, day(1, 1), "X", 1, 1, 0), usd}, CurrencyMismatch},
		{"unknown side", []Trade{noSide}, InvalidSide},
		{"other instrument", []Trade{buy(1, day(1, 1), "X", 1, 1, 0), buy(2, day(1, 2), "Y", 1, 1, 0)}, InstrumentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MatchInstrument(tt.trades)
			var die *DataIntegrityError
			if !errors.As(err, &die) {
				t.Fatalf("MatchInstrument() error = %v, want a DataIntegrityError", err)
			}
			if die.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", die.Kind, tt.kind)
			}
		})
	}
}

func reversalOf(id int64, t Trade, on Date) Trade {
	r := t
	r.ID = id
	r.Date = on
	r.Reverses = t.ID
	return r
}

func TestMatchInstrument_Reversal(t *testing.T) {
	wrong := buy(2, day(1, 5), "X", 50, 100, 5)
	m, err := MatchInstrument([]Trade{
		buy(1, day(1, 1), "X", 10, 100, 5),
		wrong,
		reversalOf(3, wrong, day(1, 6)),
		buy(4, day(1, 6), "X", 5, 100, 5),
		sell(5, day(2, 1), "X", 15, 120, 6),
	})
	if err != nil {
		t.Fatalf("MatchInstrument() unexpected error: %v", err)
	}
	for _, rt := range m.RoundTrips {
		if rt.BuyTradeID == 2 || rt.BuyTradeID == 3 {
			t.Errorf("reversed trade was matched: %+v", rt)
		}
	}
	if len(m.RoundTrips) != 2 || !m.Position.IsClosed() {
		t.Errorf("got %d round trips and %s open, want 2 and 0", len(m.RoundTrips), m.Position.Quantity)
	}
}

func TestMatchInstrument_InvalidReversal(t *testing.T) {
	orig := buy(1, day(1, 5), "X", 10, 100, 5)
	mismatched := reversalOf(2, orig, day(1, 6))
	mismatched.Quantity = Q(9)
	reReversal := reversalOf(3, reversalOf(2, orig, day(1, 6)), day(1, 7))

	tests := []struct {
		name   string
		trades []Trade
		kind   IntegrityKind
	}{
		{"unknown trade", []Trade{orig, {ID: 2, InstrumentID: "X", Side: Buy, Quantity: Q(10), UnitPrice: EUR(100), Date: day(1, 6), Reverses: 42}}, InvalidReversal},
		{"dated before", []Trade{orig, reversalOf(2, orig, day(1, 4))}, Chronology},
		{"different quantity", []Trade{orig, mismatched}, InvalidReversal},
		{"twice", []Trade{orig, reversalOf(2, orig, day(1, 6)), reversalOf(3, orig, day(1, 7))}, InvalidReversal},
		{"reversal of reversal", []Trade{orig, reversalOf(2, orig, day(1, 6)), reReversal}, InvalidReversal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MatchInstrument(tt.trades)
			var die *DataIntegrityError
			if !errors.As(err, &die) {
				t.Fatalf("MatchInstrument() error = %v, want a DataIntegrityError", err)
			}
			if die.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", die.Kind, tt.kind)
			}
		})
	}
}

func TestMatch_IsolatesFailures(t *testing.T) {
	res := Match([]Trade{
		buy(1, day(1, 1), "B", 10, 100, 5),
		sell(2, day(1, 2), "B", 20, 100, 5), // oversell
		buy(3, day(1, 1), "A", 10, 100, 5),
		sell(4, day(1, 3), "A", 4, 110, 1),
		buy(5, day(1, 1), "C", 1, 10, 0),
	})
	if len(res.Instruments) != 3 {
		t.Fatalf("got %d instruments, want 3", len(res.Instruments))
	}
	for i, id := range []string{"A", "B", "C"} {
		if res.Instruments[i].InstrumentID != id {
			t.Errorf("instrument %d = %s, want %s", i, res.Instruments[i].InstrumentID, id)
		}
	}
	failed := res.Failed()
	if len(failed) != 1 || failed[0].InstrumentID != "B" {
		t.Fatalf("Failed() = %+v, want only B", failed)
	}
	var die *DataIntegrityError
	if !errors.As(res.Err(), &die) || die.InstrumentID != "B" {
		t.Errorf("Err() = %v, want B's integrity error", res.Err())
	}
	if rts := res.RoundTrips(); len(rts) != 1 || rts[0].InstrumentID != "A" {
		t.Errorf("RoundTrips() = %+v, want A's only", rts)
	}
	positions := res.Positions()
	if len(positions) != 2 || positions[0].InstrumentID != "A" || positions[1].InstrumentID != "C" {
		t.Errorf("Positions() = %+v, want A and C", positions)
	}
}

func TestMatch_NoFailure(t *testing.T) {
	res := Match([]Trade{buy(1, day(1, 1), "A", 1, 1, 0)})
	if err := res.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

// randomLedger generates a valid sequence of buys and sells on instrument,
// never selling more than held.
func randomLedger(rng *rand.Rand, instrument string, n int) []Trade {
	var trades []Trade
	held := Q(0)
	on := day(1, 1)
	for i := range n {
		on = on.Add(rng.IntN(5))
		qty := Q(newDecimal(float64(rng.IntN(10000)+1) / 100))
		price := EUR(float64(rng.IntN(100000)+1) / 100)
		fee := EUR(float64(rng.IntN(1000)) / 100)
		tax := EUR(float64(rng.IntN(300)) / 100)
		id := int64(i + 1)
		if held.IsPositive() && rng.IntN(2) == 0 {
			qty = Q(held.Decimal().Mul(newDecimal(float64(rng.IntN(100)+1) / 100)).Round(2))
			if !qty.IsPositive() {
				qty = held
			}
			held = held.Sub(qty)
			trades = append(trades, NewSell(id, on, instrument, instrument, qty, price, fee, tax))
			continue
		}
		held = held.Add(qty)
		trades = append(trades, NewBuy(id, on, instrument, instrument, qty, price, fee, tax))
	}
	return trades
}

func TestMatchInstrument_SubCentSlices(t *testing.T) {
	// A lot of 0.05 sold unit by unit: each slice takes its share of what is
	// left, never more.
	trades := []Trade{buy(1, day(1, 1), "X", 7, 0.007, 0)}
	for i := range 7 {
		trades = append(trades, sell(int64(i+2), day(2, i+1), "X", 1, 1, 0))
	}
	m, err := MatchInstrument(trades)
	if err != nil {
		t.Fatalf("MatchInstrument() unexpected error: %v", err)
	}
	cost := EUR(0)
	for _, rt := range m.RoundTrips {
		if rt.CostBasis.IsNegative() {
			t.Errorf("sell %d: negative cost basis %s", rt.SellTradeID, rt.CostBasis.Decimal())
		}
		cost = cost.Add(rt.CostBasis)
	}
	assertMoney(t, "allocated cost", cost, 0.05)

	// A sell of 0.03 spread over five lots.
	trades = nil
	for i := range 5 {
		trades = append(trades, buy(int64(i+1), day(1, i+1), "X", 1, 1, 0))
	}
	trades = append(trades, sell(6, day(2, 1), "X", 5, 0.005, 0))
	if m, err = MatchInstrument(trades); err != nil {
		t.Fatalf("MatchInstrument() unexpected error: %v", err)
	}
	if len(m.RoundTrips) != 5 {
		t.Fatalf("got %d round trips, want 5", len(m.RoundTrips))
	}
	proceeds := EUR(0)
	for _, rt := range m.RoundTrips {
		if rt.Proceeds.IsNegative() {
			t.Errorf("lot %d: negative proceeds %s", rt.BuyTradeID, rt.Proceeds.Decimal())
		}
		proceeds = proceeds.Add(rt.Proceeds)
	}
	assertMoney(t, "allocated proceeds", proceeds, 0.03)
}

func TestMatchInstrument_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(20240101, 42))
	for run := range 200 {
		trades := randomLedger(rng, "X", 2+rng.IntN(40))
		m, err := MatchInstrument(trades)
		if err != nil {
			t.Fatalf("run %d: MatchInstrument() unexpected error: %v", run, err)
		}

		bought := Q(0)
		buyCost, proceeds := M(0, "EUR"), M(0, "EUR")
		for _, tr := range trades {
			if tr.Side == Buy {
				bought = bought.Add(tr.Quantity)
				buyCost = buyCost.Add(tr.GrossAmount().Add(tr.Fees()).Round())
			} else {
				proceeds = proceeds.Add(tr.NetAmount())
			}
		}

		matched, cost, realized := Q(0), M(0, "EUR"), M(0, "EUR")
		for _, rt := range m.RoundTrips {
			if !rt.RealizedGainLoss.Equal(rt.Proceeds.Sub(rt.CostBasis)) {
				t.Errorf("run %d: realized %s != proceeds %s - cost %s", run, rt.RealizedGainLoss.Decimal(), rt.Proceeds.Decimal(), rt.CostBasis.Decimal())
			}
			if rt.HoldingDays < 0 {
				t.Errorf("run %d: negative holding period %d", run, rt.HoldingDays)
			}
			if rt.CostBasis.IsNegative() {
				t.Errorf("run %d: negative cost basis %s", run, rt.CostBasis.Decimal())
			}
			if !rt.Proceeds.Equal(rt.Proceeds.Round()) || !rt.CostBasis.Equal(rt.CostBasis.Round()) {
				t.Errorf("run %d: unrounded slice %+v", run, rt)
			}
			matched = matched.Add(rt.Quantity)
			cost = cost.Add(rt.CostBasis)
			realized = realized.Add(rt.RealizedGainLoss)
		}

		// quantity conservation
		if got := matched.Add(m.Position.Quantity); !got.Equal(bought) {
			t.Errorf("run %d: matched %s + open %s != bought %s", run, matched, m.Position.Quantity, bought)
		}
		if m.Position.Quantity.IsNegative() {
			t.Errorf("run %d: negative open quantity %s", run, m.Position.Quantity)
		}
		// cost conservation
		if got := cost.Add(m.Position.CostBasis); !got.Equal(buyCost) {
			t.Errorf("run %d: matched cost %s + open cost %s != bought cost %s", run, cost.Decimal(), m.Position.CostBasis.Decimal(), buyCost.Decimal())
		}
		// proceeds are fully allocated
		if got := realized.Add(cost); !got.Equal(proceeds) {
			t.Errorf("run %d: realized + cost = %s, want sell proceeds %s", run, got.Decimal(), proceeds.Decimal())
		}
	}
}

func TestMatch_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	trades := append(randomLedger(rng, "X", 30), randomLedger(rng, "Y", 30)...)
	for i := range trades {
		trades[i].ID = int64(i + 1)
	}
	encode := func() []byte {
		res := Match(trades)
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		if err := enc.Encode(res.RoundTrips()); err != nil {
			t.Fatal(err)
		}
		if err := enc.Encode(res.Positions()); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}
	first, second := encode(), encode()
	if !bytes.Equal(first, second) {
		t.Error("matching the same ledger twice produced different output")
	}
}

func TestRoundTrip_MarshalJSON(t *testing.T) {
	m, err := MatchInstrument([]Trade{
		buy(1, day(1, 1), "X", 10, 100, 5),
		sell(2, day(3, 1), "X", 10, 120, 6),
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := json.Marshal(m.RoundTrips[0])
	if err != nil {
		t.Fatal(err)
	}
	want := `{"instrumentId":"X","symbol":"X","buyTradeId":1,"sellTradeId":2,"buyDate":"2024-01-01","sellDate":"2024-03-01","matchedQuantity":10,"currency":"EUR","costBasis":1005,"proceeds":1194,"realizedGainLoss":189,"holdingDays":60}`
	if string(got) != want {
		t.Errorf("json.Marshal() = %s, want %s", got, want)
	}
}
