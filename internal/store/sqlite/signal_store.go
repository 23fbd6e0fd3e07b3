package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ibs-bot/internal/store"
	"ibs-bot/pkg/types"
)

// SignalStore is the SQLite implementation of store.SignalStore.
type SignalStore struct {
	db *sql.DB
}

// Insert appends a new pending signal and returns its assigned id.
func (s *SignalStore) Insert(ctx context.Context, sig *types.Signal) (int64, error) {
	if sig == nil {
		return 0, store.ErrInvalidInput
	}
	if err := sig.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	createdAt := sig.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_signals (timestamp, action, symbol, side, price, leverage, executed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		sig.Timestamp.UTC().Format(time.RFC3339),
		string(sig.Action),
		sig.Symbol,
		string(sig.Side),
		sig.Price,
		sig.Leverage,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert signal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read signal id: %w", err)
	}
	return id, nil
}

// PendingSignals returns all pending signals ordered by ascending id.
func (s *SignalStore) PendingSignals(ctx context.Context) ([]*types.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, action, symbol, side, price, leverage, executed, created_at
		FROM trade_signals
		WHERE executed = 0
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// MarkExecuted transitions a pending signal to executed. The WHERE clause on
// the pending status makes the transition atomic and idempotent: once a
// signal is terminal the update matches nothing.
func (s *SignalStore) MarkExecuted(ctx context.Context, id int64) error {
	return s.transition(ctx, id, types.StatusExecuted)
}

// MarkFailed transitions a pending signal to failed.
func (s *SignalStore) MarkFailed(ctx context.Context, id int64) error {
	return s.transition(ctx, id, types.StatusFailed)
}

func (s *SignalStore) transition(ctx context.Context, id int64, to types.SignalStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_signals SET executed = ? WHERE id = ? AND executed = 0`,
		int(to), id)
	if err != nil {
		return fmt.Errorf("failed to update signal %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: either the signal is already terminal (no-op) or the
	// id does not exist at all.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_signals WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check signal %d: %w", id, err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return nil
}

// HasPendingOpen reports whether an unexecuted open signal exists for symbol.
func (s *SignalStore) HasPendingOpen(ctx context.Context, symbol string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM trade_signals
		WHERE action = 'open' AND symbol = ? AND executed = 0`, symbol).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count pending open signals: %w", err)
	}
	return count > 0, nil
}

// ConsumePendingOpen marks any pending open signals for symbol as executed.
func (s *SignalStore) ConsumePendingOpen(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trade_signals SET executed = 1
		WHERE action = 'open' AND symbol = ? AND executed = 0`, symbol)
	if err != nil {
		return fmt.Errorf("failed to consume pending open signals: %w", err)
	}
	return nil
}

// RecentSignals returns up to limit signals ordered by descending id. A
// non-positive limit returns everything.
func (s *SignalStore) RecentSignals(ctx context.Context, limit int) ([]*types.Signal, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, action, symbol, side, price, leverage, executed, created_at
		FROM trade_signals
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// PruneOlderThan deletes signals created before cutoff.
func (s *SignalStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM trade_signals WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune signals: %w", err)
	}
	return res.RowsAffected()
}

func scanSignals(rows *sql.Rows) ([]*types.Signal, error) {
	var result []*types.Signal
	for rows.Next() {
		var (
			sig                   types.Signal
			action, side, ts, cat string
			executed              int
		)
		if err := rows.Scan(&sig.ID, &ts, &action, &sig.Symbol, &side, &sig.Price, &sig.Leverage, &executed, &cat); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sig.Action = types.Action(action)
		sig.Side = types.Side(side)
		sig.Status = types.SignalStatus(executed)
		var err error
		if sig.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("failed to parse signal timestamp %q: %w", ts, err)
		}
		if sig.CreatedAt, err = time.Parse(time.RFC3339, cat); err != nil {
			return nil, fmt.Errorf("failed to parse signal created_at %q: %w", cat, err)
		}
		result = append(result, &sig)
	}
	return result, rows.Err()
}

var _ store.SignalStore = (*SignalStore)(nil)
