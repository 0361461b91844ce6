package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/etnz/tradecost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eur(v float64) tradecost.Money { return tradecost.M(v, "EUR") }

func date(y, m, d int) tradecost.Date { return tradecost.NewDate(y, time.Month(m), d) }

// ledger holds a short-term gain on A, a long-term loss on B and an oversold
// instrument C.
func ledger() []tradecost.Trade {
	return []tradecost.Trade{
		tradecost.NewBuy(3, date(2023, 2, 1), "B", "BBB", tradecost.Q(5), eur(50), eur(1), eur(0)),
		tradecost.NewSell(5, date(2024, 1, 5), "C", "CCC", tradecost.Q(1), eur(10), eur(0), eur(0)),
		tradecost.NewBuy(1, date(2024, 1, 10), "A", "AAA", tradecost.Q(10), eur(100), eur(2), eur(0)),
		tradecost.NewSell(4, date(2024, 2, 5), "B", "BBB", tradecost.Q(5), eur(40), eur(1), eur(0)),
		tradecost.NewSell(2, date(2024, 3, 10), "A", "AAA", tradecost.Q(10), eur(110), eur(2), eur(0)),
	}
}

func assertMoney(t *testing.T, want float64, got tradecost.Money, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(eur(want)), "got %s, want %v %v", got.Decimal(), want, msgAndArgs)
}

func TestNewTaxReport(t *testing.T) {
	r, err := NewTaxReport(ledger(), 2024)
	require.NoError(t, err)

	require.Len(t, r.RoundTrips, 2)
	require.Len(t, r.Lines, 2)
	assert.Equal(t, "AAA", r.Lines[0].Symbol)
	assertMoney(t, 96, r.Lines[0].ShortTerm, "AAA short term")
	assertMoney(t, 0, r.Lines[0].LongTerm, "AAA long term")
	assert.Equal(t, "BBB", r.Lines[1].Symbol)
	assertMoney(t, -52, r.Lines[1].LongTerm, "BBB long term")

	assertMoney(t, 1253, r.CostBasis)
	assertMoney(t, 1297, r.Proceeds)
	assertMoney(t, 96, r.ShortTerm)
	assertMoney(t, -52, r.LongTerm)
	assertMoney(t, 44, r.Realized)
	assert.Equal(t, 1, r.Holding.LongTerm)
	assert.Equal(t, 1, r.Holding.ShortTerm)

	require.Len(t, r.Integrity, 1)
	assert.Equal(t, "C", r.Integrity[0].InstrumentID)
	assert.Equal(t, "oversell", r.Integrity[0].Kind)
	assert.Equal(t, int64(5), r.Integrity[0].TradeID)

	empty, err := NewTaxReport(ledger(), 2023)
	require.NoError(t, err)
	assert.Empty(t, empty.RoundTrips)
	assert.True(t, empty.Realized.IsZero())
}

func TestNewDashboard(t *testing.T) {
	in := Input{
		Trades:          ledger(),
		Thresholds:      tradecost.DefaultThresholds(),
		IndustryCostPct: tradecost.R(0.5),
	}
	d, err := NewDashboard(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, d.Monthly, 14, "February 2023 to March 2024")
	assert.Len(t, d.Yearly, 2)
	assert.Equal(t, 2, d.Profitability.Closed)
	assert.Equal(t, 1, d.Profitability.Wins)
	assert.Equal(t, 2, d.Holding.Count)
	assert.Empty(t, d.Alerts)
	assert.Empty(t, d.Positions)
	require.Len(t, d.Integrity, 1)

	require.NotNil(t, d.Benchmark)
	assert.Equal(t, "0.2344", d.Benchmark.OurCostPct.String()) // 6 / 2560
	assert.Equal(t, tradecost.Better, d.Benchmark.RelativePerformance)
	assert.Equal(t, "100", d.Benchmark.EfficiencyScore.String())

	in.Range = tradecost.Quarterly.Range(date(2024, 1, 1))
	q1, err := NewDashboard(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, q1.Monthly, 3)
	assert.Equal(t, date(2024, 1, 1), q1.Period.From)
	assert.Equal(t, 2, q1.Profitability.Closed)

	in.Range = tradecost.Monthly.Range(date(2024, 1, 1))
	jan, err := NewDashboard(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, jan.Profitability.Closed)
}

func TestNewDashboard_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDashboard(ctx, Input{Trades: ledger()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDashboard_CurrencyMismatch(t *testing.T) {
	trades := append(ledger(), tradecost.NewBuy(9, date(2024, 1, 1), "D", "DDD", tradecost.Q(1), tradecost.M(1, "USD"), tradecost.M(0, "USD"), tradecost.M(0, "USD")))
	_, err := NewDashboard(context.Background(), Input{Trades: trades})
	assert.ErrorIs(t, err, tradecost.ErrCurrencyMismatch)
}

func TestNewCostReport(t *testing.T) {
	r, err := NewCostReport(ledger(), nil, tradecost.Monthly, tradecost.NewRange(date(2024, 1, 1), date(2024, 3, 31)))
	require.NoError(t, err)

	assert.Equal(t, "monthly", r.Bucket)
	require.Len(t, r.Aggregates, 3)
	assertMoney(t, 1010, r.Aggregates[0].TradingVolume, "January volume")
	assertMoney(t, 2, r.Aggregates[0].TotalCommissions, "January commissions")
	assert.Len(t, r.Fees, 4)
	assert.Equal(t, int64(5), r.Fees[0].TradeID)
	assert.Empty(t, r.Custody)

	_, err = NewCostReport(ledger(), nil, tradecost.Period(0), tradecost.Range{})
	assert.ErrorIs(t, err, tradecost.ErrUnsupportedBucket)
}

func schedule(id string, rate float64) tradecost.FeeSchedule {
	tier := []tradecost.Tier{{Min: eur(0), Max: eur(0), Rate: tradecost.R(rate)}}
	return tradecost.FeeSchedule{
		BrokerID:   id,
		Currency:   "EUR",
		BuyTiers:   tier,
		SellTiers:  tier,
		MinimumFee: eur(1),
		TaxRate:    tradecost.R(0),
		Custody:    tradecost.CustodyTerms{ExemptThreshold: eur(0), Rate: tradecost.R(0), MinimumFee: eur(0)},
	}
}

func TestBrokerComparison(t *testing.T) {
	c, err := BrokerComparison(tradecost.Buy, eur(10000), eur(50000), []tradecost.FeeSchedule{schedule("b", 0.002), schedule("a", 0.001)})
	require.NoError(t, err)
	require.Len(t, c.Ranks, 2)
	assert.Equal(t, "a", c.Ranks[0].BrokerID)
	assert.Equal(t, 2, c.Ranks[1].Rank)
	assertMoney(t, 10, c.Ranks[1].ExtraCostVsBest)

	_, err = BrokerComparison(tradecost.Buy, eur(0), eur(0), []tradecost.FeeSchedule{schedule("a", 0.001)})
	assert.ErrorIs(t, err, tradecost.ErrNonPositiveAmount)
}

func TestWriteJSON(t *testing.T) {
	r, err := NewTaxReport(ledger(), 2024)
	require.NoError(t, err)

	var first, second bytes.Buffer
	require.NoError(t, WriteJSON(&first, r))
	again, err := NewTaxReport(ledger(), 2024)
	require.NoError(t, err)
	require.NoError(t, WriteJSON(&second, again))

	assert.Equal(t, first.String(), second.String())
	assert.Contains(t, first.String(), `"realized": 44,`)
	assert.Contains(t, first.String(), `"kind": "oversell"`)
	assert.Contains(t, first.String(), "\n  \"lines\": [\n")
}
