package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the indicator engine from concrete storage
// implementations (files, Redis, SQLite, CSV).

// QuoteSource supplies per-symbol quote history.
type QuoteSource interface {
	// Symbols returns the symbol ids in a stable order.
	Symbols(ctx context.Context) ([]string, error)

	// Quotes returns the full history of symbol, ordered by date.
	Quotes(ctx context.Context, symbol string) (*QuoteSeries, error)
}

// ResultStore persists indicator results keyed by (unique name, symbol).
type ResultStore interface {
	// Load returns the stored result, or nil, nil if no entry exists.
	// Any other failure is returned as an error.
	Load(ctx context.Context, name, symbol string) (*Result, error)

	// Save replaces the entry atomically.
	Save(ctx context.Context, name, symbol string, res *Result) error
}
