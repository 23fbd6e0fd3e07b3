package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ibs-bot/internal/store"
	"ibs-bot/pkg/types"
)

// CandleStore is the SQLite implementation of store.CandleStore.
type CandleStore struct {
	db *sql.DB
}

// Insert appends a finished candle. A duplicate timestamp maps to
// store.ErrDuplicateKey so the aggregator can treat it as a no-op.
func (s *CandleStore) Insert(ctx context.Context, c *types.Candle) error {
	if c == nil {
		return store.ErrInvalidInput
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hourly_candles (timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Timestamp.UTC().Format(time.RFC3339),
		c.Open, c.High, c.Low, c.Close, c.Volume,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert candle: %w", err)
	}
	return nil
}

// NextAfter returns the earliest candle with id greater than lastID.
func (s *CandleStore) NextAfter(ctx context.Context, lastID int64) (*types.Candle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, open, high, low, close, volume
		FROM hourly_candles
		WHERE id > ?
		ORDER BY id ASC
		LIMIT 1`, lastID)

	c, err := scanCandle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next candle: %w", err)
	}
	return c, nil
}

// RecentCandles returns up to limit candles ordered by descending id. A
// non-positive limit returns everything.
func (s *CandleStore) RecentCandles(ctx context.Context, limit int) ([]*types.Candle, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, open, high, low, close, volume
		FROM hourly_candles
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent candles: %w", err)
	}
	defer rows.Close()

	var result []*types.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// PruneOlderThan deletes candles with timestamps before cutoff.
func (s *CandleStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM hourly_candles WHERE timestamp < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune candles: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandle(row rowScanner) (*types.Candle, error) {
	var (
		c  types.Candle
		ts string
	)
	if err := row.Scan(&c.ID, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse candle timestamp %q: %w", ts, err)
	}
	c.Timestamp = parsed
	return &c, nil
}

// isUniqueViolation detects SQLite unique-constraint failures without tying
// the store to a driver-specific error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ store.CandleStore = (*CandleStore)(nil)
