// Package store persists the trade ledger and the custody records in SQLite.
//
// The ledger is append-only: a wrong trade is cancelled by appending its
// reversal. Readers take a Snapshot, a consistent view of the ledger read in
// a single transaction, and hand it to the matcher.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/tradecost"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schema.sql
var schema string

// ErrTradeNotFound is returned when a trade id is not in the ledger.
var ErrTradeNotFound = errors.New("trade not found")

// Memory is the path of a private in-memory ledger.
const Memory = ":memory:"

// Config holds database configuration
type Config struct {
	Path string // database file, or Memory
}

// Ledger is the SQLite trade ledger.
type Ledger struct {
	conn *sql.DB
	path string
	log  zerolog.Logger
}

// Open opens (creating it if needed) the ledger at cfg.Path and migrates its
// schema.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Ledger, error) {
	path := cfg.Path
	if path == "" {
		return nil, fmt.Errorf("missing database path")
	}
	if path != Memory {
		// Ensure directory exists - resolve to absolute path to avoid relative path issues
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = abs
	}

	conn, err := sql.Open("sqlite", buildConnectionString(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	configureConnectionPool(conn, path)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ledger %s: %w", path, err)
	}

	l := &Ledger{conn: conn, path: path, log: log.With().Str("ledger", path).Logger()}
	if err := l.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	l.log.Debug().Msg("ledger opened")
	return l, nil
}

// buildConnectionString creates the SQLite connection string. The ledger
// holds real money history: full fsync, never shrink.
func buildConnectionString(path string) string {
	connStr := path + "?_pragma=foreign_keys(1)"
	if path == Memory {
		return connStr
	}
	connStr += "&_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(FULL)"
	connStr += "&_pragma=auto_vacuum(NONE)"
	connStr += "&_pragma=busy_timeout(5000)"
	return connStr
}

// configureConnectionPool sets up the connection pool. Each connection to
// ":memory:" is a distinct database, so an in-memory ledger uses only one.
func configureConnectionPool(conn *sql.DB, path string) {
	if path == Memory {
		conn.SetMaxOpenConns(1)
		return
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(10 * time.Minute)
}

func (l *Ledger) migrate(ctx context.Context) error {
	if _, err := l.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Path returns the database file path
func (l *Ledger) Path() string { return l.path }

// withTx runs fn in a transaction, committed when fn succeeds.
func (l *Ledger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const tradeColumns = `id, instrument_id, symbol, side, quantity, unit_price, currency, trade_date, commission, tax, memo, reverses`

func scanTrade(row scanner) (tradecost.Trade, error) {
	var (
		t                                         tradecost.Trade
		side, quantity, price, cur, date, fee, tx string
		reverses                                  sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.InstrumentID, &t.Symbol, &side, &quantity, &price, &cur, &date, &fee, &tx, &t.Memo, &reverses); err != nil {
		return t, err
	}
	var err error
	if t.Side, err = tradecost.ParseSide(side); err != nil {
		return t, fmt.Errorf("trade %d: %w", t.ID, err)
	}
	if t.Date, err = tradecost.ParseDate(date); err != nil {
		return t, fmt.Errorf("trade %d: %w", t.ID, err)
	}
	d := decimals{}
	t.Quantity = tradecost.Q(d.parse(quantity))
	t.UnitPrice = tradecost.M(d.parse(price), cur)
	t.Commission = tradecost.M(d.parse(fee), cur)
	t.Tax = tradecost.M(d.parse(tx), cur)
	if d.err != nil {
		return t, fmt.Errorf("trade %d: %w", t.ID, d.err)
	}
	t.Reverses = reverses.Int64
	return t, nil
}

// Append validates t and records it. A zero t.ID is assigned the next id in
// ingestion order. It returns the trade as stored.
func (l *Ledger) Append(ctx context.Context, t tradecost.Trade) (tradecost.Trade, error) {
	var stored []tradecost.Trade
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = appendTrades(ctx, tx, []tradecost.Trade{t})
		return err
	})
	if err != nil {
		return tradecost.Trade{}, err
	}
	l.log.Info().Int64("trade", stored[0].ID).Str("instrument", t.InstrumentID).Stringer("side", t.Side).Msg("trade appended")
	return stored[0], nil
}

// Import appends all trades in a single transaction: either all of them are
// recorded or none is.
func (l *Ledger) Import(ctx context.Context, trades []tradecost.Trade) ([]tradecost.Trade, error) {
	var stored []tradecost.Trade
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = appendTrades(ctx, tx, trades)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Int("trades", len(stored)).Msg("trades imported")
	return stored, nil
}

func appendTrades(ctx context.Context, tx *sql.Tx, trades []tradecost.Trade) ([]tradecost.Trade, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades (`+tradeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	stored := make([]tradecost.Trade, 0, len(trades))
	for _, t := range trades {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if t.ID != 0 {
			if _, err := getTrade(ctx, tx, t.ID); err == nil {
				return nil, &tradecost.DataIntegrityError{InstrumentID: t.InstrumentID, TradeID: t.ID, Kind: tradecost.DuplicateTrade}
			} else if !errors.Is(err, ErrTradeNotFound) {
				return nil, err
			}
		}
		if t.IsReversal() {
			if err := checkReversal(ctx, tx, t); err != nil {
				return nil, err
			}
		}
		var id, reverses any
		if t.ID != 0 {
			id = t.ID
		}
		if t.Reverses != 0 {
			reverses = t.Reverses
		}
		res, err := stmt.ExecContext(ctx, id, t.InstrumentID, t.Symbol, t.Side.String(),
			t.Quantity.String(), t.UnitPrice.Decimal().String(), t.Currency(), t.Date.String(),
			t.Commission.Decimal().String(), t.Tax.Decimal().String(), t.Memo, reverses)
		if err != nil {
			return nil, fmt.Errorf("failed to insert trade: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to read trade id: %w", err)
		}
		stored = append(stored, t)
	}
	return stored, nil
}

func getTrade(ctx context.Context, tx *sql.Tx, id int64) (tradecost.Trade, error) {
	t, err := scanTrade(tx.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %d", ErrTradeNotFound, id)
	}
	return t, err
}

// checkReversal verifies that r may cancel its target: the target exists, is
// not a reversal, is not already reversed, and r mirrors it no earlier than
// its date.
func checkReversal(ctx context.Context, tx *sql.Tx, r tradecost.Trade) error {
	fail := func(kind tradecost.IntegrityKind, detail string) error {
		return &tradecost.DataIntegrityError{InstrumentID: r.InstrumentID, TradeID: r.ID, Kind: kind, Detail: detail}
	}
	orig, err := getTrade(ctx, tx, r.Reverses)
	if errors.Is(err, ErrTradeNotFound) {
		return fail(tradecost.InvalidReversal, err.Error())
	}
	if err != nil {
		return err
	}
	switch {
	case orig.IsReversal():
		return fail(tradecost.InvalidReversal, fmt.Sprintf("trade %d is itself a reversal", orig.ID))
	case orig.InstrumentID != r.InstrumentID || orig.Side != r.Side || !orig.Quantity.Equal(r.Quantity):
		return fail(tradecost.InvalidReversal, fmt.Sprintf("does not mirror trade %d", orig.ID))
	case r.Date.Before(orig.Date):
		return fail(tradecost.Chronology, fmt.Sprintf("dated before trade %d (%s)", orig.ID, orig.Date))
	}
	var by int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM trades WHERE reverses = ?`, orig.ID).Scan(&by)
	switch {
	case err == nil:
		return fail(tradecost.InvalidReversal, fmt.Sprintf("trade %d is already reversed by trade %d", orig.ID, by))
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to look up reversals of trade %d: %w", orig.ID, err)
	}
	return nil
}

// Reverse appends the reversal of trade id, dated on.
func (l *Ledger) Reverse(ctx context.Context, id int64, on tradecost.Date, memo string) (tradecost.Trade, error) {
	var stored []tradecost.Trade
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		orig, err := getTrade(ctx, tx, id)
		if err != nil {
			return err
		}
		r := orig
		r.ID, r.Date, r.Memo, r.Reverses = 0, on, memo, orig.ID
		stored, err = appendTrades(ctx, tx, []tradecost.Trade{r})
		return err
	})
	if err != nil {
		return tradecost.Trade{}, err
	}
	l.log.Info().Int64("trade", id).Int64("reversal", stored[0].ID).Msg("trade reversed")
	return stored[0], nil
}

// Snapshot returns the trades dated on or before asOf (all trades for a zero
// date), sorted by date then id. It is read in a single transaction, so it
// is consistent even while other processes append.
func (l *Ledger) Snapshot(ctx context.Context, asOf tradecost.Date) ([]tradecost.Trade, error) {
	var trades []tradecost.Trade
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + tradeColumns + ` FROM trades`
		var args []any
		if !asOf.IsZero() {
			query += ` WHERE trade_date <= ?`
			args = append(args, asOf.String())
		}
		rows, err := tx.QueryContext(ctx, query+` ORDER BY trade_date, id`, args...)
		if err != nil {
			return fmt.Errorf("failed to query trades: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTrade(rows)
			if err != nil {
				return fmt.Errorf("failed to scan trade: %w", err)
			}
			trades = append(trades, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	l.log.Debug().Int("trades", len(trades)).Stringer("asOf", asOf).Msg("snapshot")
	return trades, nil
}

// SaveCustody records custody fee records, replacing any existing record of
// the same broker and month.
func (l *Ledger) SaveCustody(ctx context.Context, records []tradecost.CustodyFeeRecord) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO custody_records (broker_id, month, currency, portfolio_value, fee_amount, tax_amount, total_charged)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (broker_id, month) DO UPDATE SET
				currency = excluded.currency,
				portfolio_value = excluded.portfolio_value,
				fee_amount = excluded.fee_amount,
				tax_amount = excluded.tax_amount,
				total_charged = excluded.total_charged`)
		if err != nil {
			return fmt.Errorf("failed to prepare custody upsert: %w", err)
		}
		defer stmt.Close()
		for _, r := range records {
			if r.BrokerID == "" {
				return fmt.Errorf("custody record for %s: missing broker id", r.Month)
			}
			_, err := stmt.ExecContext(ctx, r.BrokerID, r.Month.StartOf(tradecost.Monthly).String(), r.TotalCharged.Currency(),
				r.PortfolioValue.Decimal().String(), r.FeeAmount.Decimal().String(),
				r.TaxAmount.Decimal().String(), r.TotalCharged.Decimal().String())
			if err != nil {
				return fmt.Errorf("failed to save custody of %s for %s: %w", r.BrokerID, r.Month, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.log.Info().Int("records", len(records)).Msg("custody saved")
	return nil
}

// Custody returns the custody records of brokerID (all brokers when empty)
// whose month overlaps r (all months for a zero range), sorted by broker and
// month.
func (l *Ledger) Custody(ctx context.Context, brokerID string, r tradecost.Range) ([]tradecost.CustodyFeeRecord, error) {
	var (
		where []string
		args  []any
	)
	if brokerID != "" {
		where = append(where, "broker_id = ?")
		args = append(args, brokerID)
	}
	if !r.IsZero() {
		where = append(where, "month >= ? AND month <= ?")
		args = append(args, r.From.StartOf(tradecost.Monthly).String(), r.To.String())
	}
	query := `SELECT broker_id, month, currency, portfolio_value, fee_amount, tax_amount, total_charged FROM custody_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := l.conn.QueryContext(ctx, query+" ORDER BY broker_id, month", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query custody records: %w", err)
	}
	defer rows.Close()

	var records []tradecost.CustodyFeeRecord
	for rows.Next() {
		var broker, month, cur, value, fee, tax, total string
		if err := rows.Scan(&broker, &month, &cur, &value, &fee, &tax, &total); err != nil {
			return nil, fmt.Errorf("failed to scan custody record: %w", err)
		}
		m, err := tradecost.ParseDate(month)
		if err != nil {
			return nil, fmt.Errorf("custody record of %s: %w", broker, err)
		}
		d := decimals{}
		rec := tradecost.CustodyFeeRecord{
			BrokerID:       broker,
			Month:          m,
			PortfolioValue: tradecost.M(d.parse(value), cur),
			FeeAmount:      tradecost.M(d.parse(fee), cur),
			TaxAmount:      tradecost.M(d.parse(tax), cur),
			TotalCharged:   tradecost.M(d.parse(total), cur),
		}
		if d.err != nil {
			return nil, fmt.Errorf("custody record of %s for %s: %w", broker, month, d.err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
