// Package store persists prices and resolution mappings in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"etfhistory/internal/provider/mapping"
	"etfhistory/internal/record"
	"etfhistory/internal/series"
)

const schema = `
CREATE TABLE IF NOT EXISTS prices (
	ticker     TEXT NOT NULL,
	date       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	close      TEXT NOT NULL,
	sector     TEXT NOT NULL DEFAULT '',
	currency   TEXT NOT NULL DEFAULT 'EUR',
	updated_at TEXT NOT NULL,
	PRIMARY KEY (ticker, date)
);
CREATE TABLE IF NOT EXISTS mappings (
	ident      TEXT PRIMARY KEY,
	yahoo      TEXT NOT NULL DEFAULT '',
	hist_url   TEXT NOT NULL DEFAULT '',
	sector     TEXT NOT NULL DEFAULT '',
	currency   TEXT NOT NULL DEFAULT '',
	exchange   TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);`

// DB wraps the database connection.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates the file and its directory when missing and applies the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// one writer at a time
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path, now: time.Now}
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Migrate applies the schema. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Write upserts rows on (ticker, date): running the same batch twice leaves
// one row per key holding the latest values.
func (db *DB) Write(ctx context.Context, rows []record.Row) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO prices (ticker, date, name, close, sector, currency, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			name = excluded.name,
			close = excluded.close,
			sector = excluded.sector,
			currency = excluded.currency,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := db.now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Ticker, r.Date.Format(series.DateLayout), r.Name, r.Close.String(), r.Sector, r.Currency, now); err != nil {
			return fmt.Errorf("upsert %s %s: %w", r.Ticker, r.Date.Format(series.DateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Prices returns the stored rows of ticker in date order.
func (db *DB) Prices(ctx context.Context, ticker string) ([]record.Row, error) {
	rs, err := db.conn.QueryContext(ctx,
		`SELECT name, ticker, date, close, sector, currency FROM prices WHERE ticker = ? ORDER BY date`, ticker)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rs.Close()

	var out []record.Row
	for rs.Next() {
		var (
			r           record.Row
			date, close string
		)
		if err := rs.Scan(&r.Name, &r.Ticker, &date, &close, &r.Sector, &r.Currency); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		if r.Date, err = time.Parse(series.DateLayout, date); err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		if r.Close, err = decimal.NewFromString(close); err != nil {
			return nil, fmt.Errorf("stored close %q: %w", close, err)
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

// Lookup implements mapping.Source.
func (db *DB) Lookup(ctx context.Context, key string) (mapping.Entry, bool, error) {
	e := mapping.Entry{Key: normKey(key)}
	err := db.conn.QueryRowContext(ctx,
		`SELECT yahoo, hist_url, sector, currency, exchange FROM mappings WHERE ident = ?`, e.Key).
		Scan(&e.Yahoo, &e.HistURL, &e.Sector, &e.Currency, &e.Exchange)
	if errors.Is(err, sql.ErrNoRows) {
		return mapping.Entry{}, false, nil
	}
	if err != nil {
		return mapping.Entry{}, false, fmt.Errorf("lookup mapping %s: %w", e.Key, err)
	}
	return e, true, nil
}

// SaveMapping stores or replaces the entry for e.Key.
func (db *DB) SaveMapping(ctx context.Context, e mapping.Entry) error {
	e.Key = normKey(e.Key)
	if e.Key == "" {
		return errors.New("save mapping: empty key")
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO mappings (ident, yahoo, hist_url, sector, currency, exchange, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ident) DO UPDATE SET
			yahoo = excluded.yahoo,
			hist_url = excluded.hist_url,
			sector = excluded.sector,
			currency = excluded.currency,
			exchange = excluded.exchange,
			updated_at = excluded.updated_at`,
		e.Key, e.Yahoo, e.HistURL, e.Sector, e.Currency, e.Exchange, db.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save mapping %s: %w", e.Key, err)
	}
	return nil
}

func normKey(k string) string { return strings.ToUpper(strings.TrimSpace(k)) }
