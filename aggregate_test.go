package tradecost

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// activity is a small ledger over Q1 2024: two buys and a partial sell in
// January, a losing sell in March and custody charged in February.
func activity(t *testing.T) ([]Trade, []RoundTrip, []CustodyFeeRecord) {
	t.Helper()
	trades := []Trade{
		buy(1, day(1, 1), "X", 10, 100, 5),
		buy(2, day(1, 10), "X", 10, 110, 5),
		sell(3, day(1, 20), "X", 15, 130, 8),
		sell(4, day(3, 1), "X", 5, 100, 2),
	}
	res := Match(trades)
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}
	custody, err := CustodyRecords([]MonthlyValuation{{Month: day(2, 1), Value: EUR(60000)}}, testSchedule("b", "B"))
	if err != nil {
		t.Fatal(err)
	}
	return trades, res.RoundTrips(), custody
}

func TestAggregateByPeriod_Monthly(t *testing.T) {
	trades, rts, custody := activity(t)
	aggs, err := AggregateByPeriod(trades, rts, custody, Monthly, NewRange(day(1, 1), day(4, 30)))
	if err != nil {
		t.Fatalf("AggregateByPeriod() unexpected error: %v", err)
	}
	wantKeys := []string{"2024-01", "2024-02", "2024-03", "2024-04"}
	if len(aggs) != len(wantKeys) {
		t.Fatalf("got %d buckets, want %d", len(aggs), len(wantKeys))
	}
	for i, k := range wantKeys {
		if aggs[i].Key != k {
			t.Errorf("bucket %d = %s, want %s", i, aggs[i].Key, k)
		}
	}

	jan, feb, mar, apr := aggs[0], aggs[1], aggs[2], aggs[3]
	assertMoney(t, "jan volume", jan.TradingVolume, 4050)
	assertMoney(t, "jan commissions", jan.TotalCommissions, 18)
	assertMoney(t, "jan costs", jan.TotalCosts, 18)
	assertMoney(t, "jan gain", jan.RealizedGain, 384.5)
	assertMoney(t, "jan loss", jan.RealizedLoss, 0)
	if jan.NumberOfTrades != 3 || jan.ClosedRoundTrips != 2 {
		t.Errorf("jan counts = %d trades, %d closed, want 3 and 2", jan.NumberOfTrades, jan.ClosedRoundTrips)
	}
	if !jan.WinRate.Equal(R(1)) || !jan.ProfitFactor.IsInf() {
		t.Errorf("jan win rate %s profit factor %s, want 1 and +Inf", jan.WinRate, jan.ProfitFactor)
	}
	if want := R(0.4444); !jan.CostAsPctOfVolume.Equal(want) {
		t.Errorf("jan cost pct = %s, want %s", jan.CostAsPctOfVolume, want)
	}

	assertMoney(t, "feb custody", feb.TotalCustody, 2.42)
	assertMoney(t, "feb costs", feb.TotalCosts, 2.42)
	if !feb.CostAsPctOfVolume.IsZero() || feb.ProfitFactor.IsInf() || !feb.ProfitFactor.Decimal().IsZero() {
		t.Errorf("feb without volume nor round trips: %+v", feb)
	}

	assertMoney(t, "mar loss", mar.RealizedLoss, 54.5)
	assertMoney(t, "mar net", mar.NetRealized, -54.5)
	if !mar.WinRate.IsZero() || !mar.ProfitFactor.Decimal().IsZero() {
		t.Errorf("mar win rate %s profit factor %s, want 0 and 0", mar.WinRate, mar.ProfitFactor)
	}
	if want := R(0.4); !mar.CostAsPctOfVolume.Equal(want) {
		t.Errorf("mar cost pct = %s, want %s", mar.CostAsPctOfVolume, want)
	}

	if apr.NumberOfTrades != 0 || !apr.TotalCosts.IsZero() || apr.Range != Monthly.Range(day(4, 1)) {
		t.Errorf("apr should be an empty bucket, got %+v", apr)
	}
	if apr.TotalCosts.Currency() != "EUR" {
		t.Errorf("empty bucket currency = %q, want EUR", apr.TotalCosts.Currency())
	}
}

func TestAggregateByPeriod_Quarterly(t *testing.T) {
	trades, rts, custody := activity(t)
	aggs, err := AggregateByPeriod(trades, rts, custody, Quarterly, NewRange(day(1, 1), day(4, 30)))
	if err != nil {
		t.Fatalf("AggregateByPeriod() unexpected error: %v", err)
	}
	if len(aggs) != 2 || aggs[0].Key != "2024-Q1" || aggs[1].Key != "2024-Q2" {
		t.Fatalf("unexpected buckets %v", aggs)
	}
	q1 := aggs[0]
	assertMoney(t, "q1 volume", q1.TradingVolume, 4550)
	assertMoney(t, "q1 costs", q1.TotalCosts, 22.42)
	assertMoney(t, "q1 net", q1.NetRealized, 330)
	if want := F(decimal.RequireFromString("7.055")); !q1.ProfitFactor.Equal(want) {
		t.Errorf("q1 profit factor = %s, want %s", q1.ProfitFactor, want)
	}
	if want := R(0.6667); !q1.WinRate.Equal(want) {
		t.Errorf("q1 win rate = %s, want %s", q1.WinRate, want)
	}
	if want := R(0.4927); !q1.CostAsPctOfVolume.Equal(want) {
		t.Errorf("q1 cost pct = %s, want %s", q1.CostAsPctOfVolume, want)
	}
}

func TestAggregateByPeriod_RangeFilters(t *testing.T) {
	trades, rts, custody := activity(t)
	aggs, err := AggregateByPeriod(trades, rts, custody, Yearly, NewRange(day(1, 15), day(2, 29)))
	if err != nil {
		t.Fatalf("AggregateByPeriod() unexpected error: %v", err)
	}
	if len(aggs) != 1 || aggs[0].Key != "2024" {
		t.Fatalf("unexpected buckets %v", aggs)
	}
	y := aggs[0]
	if y.NumberOfTrades != 1 || y.ClosedRoundTrips != 2 {
		t.Errorf("got %d trades and %d round trips, want only the January 20 sell", y.NumberOfTrades, y.ClosedRoundTrips)
	}
	assertMoney(t, "custody", y.TotalCustody, 2.42)
}

func TestAggregateByPeriod_ZeroRange(t *testing.T) {
	trades, rts, custody := activity(t)
	aggs, err := AggregateByPeriod(trades, rts, custody, Monthly, Range{})
	if err != nil {
		t.Fatalf("AggregateByPeriod() unexpected error: %v", err)
	}
	if len(aggs) != 3 {
		t.Errorf("got %d buckets, want January to March", len(aggs))
	}
	if aggs, _ := AggregateByPeriod(nil, nil, nil, Monthly, Range{}); len(aggs) != 0 {
		t.Errorf("empty ledger gave %d buckets", len(aggs))
	}
}

func TestAggregateByPeriod_Errors(t *testing.T) {
	trades, rts, custody := activity(t)
	r := NewRange(day(1, 1), day(12, 31))
	for _, p := range []Period{0, Yearly + 1} {
		if _, err := AggregateByPeriod(trades, rts, custody, p, r); !errors.Is(err, ErrUnsupportedBucket) {
			t.Errorf("bucket %s: error = %v, want ErrUnsupportedBucket", p, err)
		}
	}
	usd := NewBuy(9, day(1, 1), "Y", "Y", Q(1), USD(1), USD(0), USD(0))
	if _, err := AggregateByPeriod(append(trades, usd), rts, custody, Monthly, r); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("mixed currencies: error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestAggregateByPeriod_Idempotent(t *testing.T) {
	trades, rts, custody := activity(t)
	run := func() []byte {
		aggs, err := AggregateByPeriod(trades, rts, custody, Monthly, NewRange(day(1, 1), day(12, 31)))
		if err != nil {
			t.Fatal(err)
		}
		data, err := json.Marshal(aggs)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	if a, b := run(), run(); !bytes.Equal(a, b) {
		t.Errorf("two runs differ:\n%s\n%s", a, b)
	}
}

func TestPeriodAggregate_MarshalJSON(t *testing.T) {
	trades, rts, custody := activity(t)
	aggs, err := AggregateByPeriod(trades, rts, custody, Monthly, NewRange(day(1, 1), day(1, 31)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := json.Marshal(aggs[0])
	if err != nil {
		t.Fatal(err)
	}
	want := `{"period":"2024-01","from":"2024-01-01","to":"2024-01-31","currency":"EUR","tradingVolume":4050,"totalCommissions":18,"totalTaxes":0,"totalCustody":0,"totalCosts":18,"realizedGain":384.5,"realizedLoss":0,"netRealized":384.5,"numberOfTrades":3,"closedRoundTrips":2,"winRate":1,"profitFactor":"+Inf","costAsPctOfVolume":0.4444}`
	if string(got) != want {
		t.Errorf("json.Marshal() =\n%s\nwant\n%s", got, want)
	}
}
