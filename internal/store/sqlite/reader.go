package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"screening-systemv1/internal/marketdata"
	"screening-systemv1/internal/model"
)

// Reader is a QuoteSource over the quotes table.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Symbols returns every symbol with at least one quote, sorted.
func (r *Reader) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM quotes ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Quotes reads the history of symbol ordered by date ascending. A symbol
// with no rows is marketdata.ErrUnknownSymbol.
func (r *Reader) Quotes(ctx context.Context, symbol string) (*model.QuoteSeries, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, COALESCE(volume, 0)
		FROM quotes
		WHERE symbol = ?
		ORDER BY ts ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query quotes %s: %w", symbol, err)
	}
	defer rows.Close()

	series := &model.QuoteSeries{Symbol: symbol}
	for rows.Next() {
		var q model.Quote
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &q.Open, &q.High, &q.Low, &q.Close, &q.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan quotes %s: %w", symbol, err)
		}
		q.Date = time.Unix(tsUnix, 0).UTC()
		series.Quotes = append(series.Quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite read quotes %s: %w", symbol, err)
	}
	if len(series.Quotes) == 0 {
		return nil, fmt.Errorf("%w %q", marketdata.ErrUnknownSymbol, symbol)
	}
	return series, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
