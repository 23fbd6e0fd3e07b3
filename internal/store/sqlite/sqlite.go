// Package sqlite implements the durable signal and candle stores on SQLite,
// the storage engine the three bot processes share on disk.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_signals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	action TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	leverage REAL NOT NULL DEFAULT 1.0,
	executed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS hourly_candles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL UNIQUE,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL
);
`

// DB wraps the shared SQLite handle used by both stores.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// The three processes share one file; SQLite serializes writers, so a
	// single connection per process keeps lock contention predictable.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// SignalStore returns the signal store view of the database.
func (d *DB) SignalStore() *SignalStore {
	return &SignalStore{db: d.db}
}

// CandleStore returns the candle store view of the database.
func (d *DB) CandleStore() *CandleStore {
	return &CandleStore{db: d.db}
}
