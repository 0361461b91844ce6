package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/etnz/tradecost"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eur(v float64) tradecost.Money { return tradecost.M(v, "EUR") }

func day(m, d int) tradecost.Date { return tradecost.NewDate(2024, time.Month(m), d) }

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), Config{Path: Memory}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_AppendAndSnapshot(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	b, err := l.Append(ctx, tradecost.NewBuy(0, day(1, 10), "FR0000120271", "TTE", tradecost.Q(10), eur(100.5), eur(2.5), eur(0.53)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ID)

	s, err := l.Append(ctx, tradecost.NewSell(0, day(2, 1), "FR0000120271", "TTE", tradecost.Q(4), eur(110), eur(2), eur(0.42)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.ID)

	// Same day, earlier id first.
	_, err = l.Append(ctx, tradecost.NewBuy(0, day(1, 10), "US0378331005", "AAPL", tradecost.Q(1.5), eur(180), eur(1), eur(0)))
	require.NoError(t, err)

	trades, err := l.Snapshot(ctx, tradecost.Date{})
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, []int64{1, 3, 2}, []int64{trades[0].ID, trades[1].ID, trades[2].ID})

	got := trades[0]
	assert.Equal(t, "TTE", got.Symbol)
	assert.Equal(t, tradecost.Buy, got.Side)
	assert.Equal(t, day(1, 10), got.Date)
	assert.True(t, got.UnitPrice.Equal(eur(100.5)), "unit price %s", got.UnitPrice)
	assert.True(t, got.Tax.Equal(eur(0.53)), "tax %s", got.Tax)
	assert.Equal(t, "1.5", trades[1].Quantity.String())

	asOf, err := l.Snapshot(ctx, day(1, 31))
	require.NoError(t, err)
	assert.Len(t, asOf, 2)

	// A snapshot feeds the matcher directly.
	result := tradecost.Match(trades)
	require.NoError(t, result.Err())
	rts := result.RoundTrips()
	require.Len(t, rts, 1)
	assert.Equal(t, int64(1), rts[0].BuyTradeID)
}

func TestLedger_AppendInvalid(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	_, err := l.Append(ctx, tradecost.NewBuy(0, day(1, 1), "X", "X", tradecost.Q(0), eur(1), eur(0), eur(0)))
	var integrity *tradecost.DataIntegrityError
	require.True(t, errors.As(err, &integrity), "got %v", err)
	assert.Equal(t, tradecost.InvalidQuantity, integrity.Kind)

	_, err = l.Append(ctx, tradecost.NewBuy(7, day(1, 1), "X", "X", tradecost.Q(1), eur(1), eur(0), eur(0)))
	require.NoError(t, err)
	_, err = l.Append(ctx, tradecost.NewBuy(7, day(1, 2), "X", "X", tradecost.Q(1), eur(1), eur(0), eur(0)))
	require.True(t, errors.As(err, &integrity), "got %v", err)
	assert.Equal(t, tradecost.DuplicateTrade, integrity.Kind)

	next, err := l.Append(ctx, tradecost.NewBuy(0, day(1, 3), "X", "X", tradecost.Q(1), eur(1), eur(0), eur(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(8), next.ID)
}

func TestLedger_Reverse(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	b, err := l.Append(ctx, tradecost.NewBuy(0, day(1, 10), "X", "X", tradecost.Q(10), eur(100), eur(2), eur(0)))
	require.NoError(t, err)

	r, err := l.Reverse(ctx, b.ID, day(1, 11), "wrong account")
	require.NoError(t, err)
	assert.Equal(t, b.ID, r.Reverses)
	assert.Equal(t, "wrong account", r.Memo)
	assert.Equal(t, tradecost.Buy, r.Side)

	var integrity *tradecost.DataIntegrityError
	_, err = l.Reverse(ctx, b.ID, day(1, 12), "")
	require.True(t, errors.As(err, &integrity), "already reversed: got %v", err)
	assert.Equal(t, tradecost.InvalidReversal, integrity.Kind)

	_, err = l.Reverse(ctx, r.ID, day(1, 12), "")
	require.True(t, errors.As(err, &integrity), "reversal of a reversal: got %v", err)
	assert.Equal(t, tradecost.InvalidReversal, integrity.Kind)

	c, err := l.Append(ctx, tradecost.NewBuy(0, day(2, 1), "X", "X", tradecost.Q(1), eur(100), eur(0), eur(0)))
	require.NoError(t, err)
	_, err = l.Reverse(ctx, c.ID, day(1, 31), "")
	require.True(t, errors.As(err, &integrity), "dated before: got %v", err)
	assert.Equal(t, tradecost.Chronology, integrity.Kind)

	_, err = l.Reverse(ctx, 99, day(1, 31), "")
	assert.ErrorIs(t, err, ErrTradeNotFound)

	trades, err := l.Snapshot(ctx, tradecost.Date{})
	require.NoError(t, err)
	result := tradecost.Match(trades)
	require.NoError(t, result.Err())
	positions := result.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "1", positions[0].Quantity.String(), "reversed trade must not count")
}

func TestLedger_Import(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	_, err := l.Import(ctx, []tradecost.Trade{
		tradecost.NewBuy(0, day(1, 1), "X", "X", tradecost.Q(1), eur(1), eur(0), eur(0)),
		tradecost.NewBuy(0, day(1, 2), "X", "X", tradecost.Q(-1), eur(1), eur(0), eur(0)),
	})
	require.Error(t, err)
	trades, err := l.Snapshot(ctx, tradecost.Date{})
	require.NoError(t, err)
	assert.Empty(t, trades, "a failed import must not record anything")

	stored, err := l.Import(ctx, []tradecost.Trade{
		tradecost.NewBuy(0, day(1, 1), "X", "X", tradecost.Q(1), eur(1), eur(0), eur(0)),
		tradecost.NewSell(0, day(1, 2), "X", "X", tradecost.Q(1), eur(2), eur(0), eur(0)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored[1].ID)
}

func TestLedger_Custody(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	rec := func(broker string, m int, total float64) tradecost.CustodyFeeRecord {
		return tradecost.CustodyFeeRecord{
			BrokerID:       broker,
			Month:          day(m, 1),
			PortfolioValue: eur(60000),
			FeeAmount:      eur(total),
			TaxAmount:      eur(0),
			TotalCharged:   eur(total),
		}
	}
	require.NoError(t, l.SaveCustody(ctx, []tradecost.CustodyFeeRecord{rec("a", 1, 2), rec("a", 2, 3), rec("b", 1, 5)}))
	require.NoError(t, l.SaveCustody(ctx, []tradecost.CustodyFeeRecord{rec("a", 2, 4)}))

	all, err := l.Custody(ctx, "", tradecost.Range{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	a, err := l.Custody(ctx, "a", tradecost.Range{})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.True(t, a[1].TotalCharged.Equal(eur(4)), "upsert replaces the month: got %s", a[1].TotalCharged)
	assert.Equal(t, day(2, 1), a[1].Month)

	feb, err := l.Custody(ctx, "a", tradecost.Monthly.Range(day(2, 15)))
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, day(2, 1), feb[0].Month)

	assert.Error(t, l.SaveCustody(ctx, []tradecost.CustodyFeeRecord{rec("", 3, 1)}))
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ledger.db")

	l, err := Open(ctx, Config{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	_, err = l.Append(ctx, tradecost.NewBuy(0, day(1, 1), "X", "X", tradecost.Q(1), eur(1), eur(0), eur(0)))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(ctx, Config{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	defer l.Close()
	trades, err := l.Snapshot(ctx, tradecost.Date{})
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	_, err = Open(ctx, Config{}, zerolog.Nop())
	assert.Error(t, err)
}
