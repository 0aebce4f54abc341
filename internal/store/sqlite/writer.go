package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"screening-systemv1/internal/model"
)

const defaultBatchSize = 500

// dsn enables WAL with a busy timeout so the reader and writer can share the file.
func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

// Writer imports quote history into SQLite with batched transactions.
type Writer struct {
	db     *sql.DB
	logger *zap.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// NewWriter opens (creating if needed) the quote database and its schema.
func NewWriter(path string, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	logger.Info("sqlite quote database opened", zap.String("path", path))
	return &Writer{db: db, logger: logger}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quotes (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume REAL,
			PRIMARY KEY (symbol, ts)
		);
	`)
	return err
}

// WriteQuotes upserts the series, committing every defaultBatchSize rows.
func (w *Writer) WriteQuotes(ctx context.Context, series *model.QuoteSeries) error {
	if err := series.Validate(); err != nil {
		return err
	}
	for start := 0; start < len(series.Quotes); start += defaultBatchSize {
		end := start + defaultBatchSize
		if end > len(series.Quotes) {
			end = len(series.Quotes)
		}
		if err := w.insertBatch(ctx, series.Symbol, series.Quotes[start:end]); err != nil {
			return fmt.Errorf("sqlite insert %s: %w", series.Symbol, err)
		}
	}
	w.logger.Debug("quotes committed", zap.String("symbol", series.Symbol), zap.Int("rows", len(series.Quotes)))
	return nil
}

// insertBatch inserts a batch of quotes in a single transaction.
func (w *Writer) insertBatch(ctx context.Context, symbol string, quotes []model.Quote) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO quotes (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, q := range quotes {
		_, err := stmt.ExecContext(ctx, symbol, q.Date.Unix(), q.Open, q.High, q.Low, q.Close, q.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
