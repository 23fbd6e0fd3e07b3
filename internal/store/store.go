// Package store defines the durable signal and candle stores shared by the
// acquisition, decision and execution processes. The tables double as an
// ordered handoff queue between producers and consumers: ordered append,
// idempotent consumption.
package store

import (
	"context"
	"time"

	"ibs-bot/pkg/types"
)

// SignalStore persists trade signals and their execution status.
//
// Status transitions must be atomic and idempotent: a signal that is already
// executed or failed is never moved again, and marking it a second time is a
// no-op. This is the only durable invariant that requires a transactional
// guarantee.
type SignalStore interface {
	// Insert appends a new pending signal and returns its assigned id.
	Insert(ctx context.Context, sig *types.Signal) (int64, error)

	// PendingSignals returns all pending signals ordered by ascending id.
	PendingSignals(ctx context.Context) ([]*types.Signal, error)

	// MarkExecuted transitions a pending signal to executed. Calling it on
	// an already-terminal signal is a no-op; an unknown id is ErrNotFound.
	MarkExecuted(ctx context.Context, id int64) error

	// MarkFailed transitions a pending signal to failed with the same
	// idempotency rules as MarkExecuted.
	MarkFailed(ctx context.Context, id int64) error

	// HasPendingOpen reports whether an unexecuted open signal exists for
	// the symbol.
	HasPendingOpen(ctx context.Context, symbol string) (bool, error)

	// ConsumePendingOpen marks any pending open signals for the symbol as
	// executed. The decision process calls it when closing a trade so a
	// stale open intent can never fire after its position is gone.
	ConsumePendingOpen(ctx context.Context, symbol string) error

	// RecentSignals returns up to limit signals ordered by descending id.
	RecentSignals(ctx context.Context, limit int) ([]*types.Signal, error)

	// PruneOlderThan deletes signals created before cutoff and returns the
	// number of rows removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CandleStore persists finished aggregate candles.
type CandleStore interface {
	// Insert appends a finished candle. A candle with a duplicate timestamp
	// returns ErrDuplicateKey; the aggregator treats that as a no-op.
	Insert(ctx context.Context, c *types.Candle) error

	// NextAfter returns the earliest candle with id greater than lastID,
	// or ErrNotFound when none exists yet.
	NextAfter(ctx context.Context, lastID int64) (*types.Candle, error)

	// RecentCandles returns up to limit candles ordered by descending id.
	RecentCandles(ctx context.Context, limit int) ([]*types.Candle, error)

	// PruneOlderThan deletes candles with timestamps before cutoff and
	// returns the number of rows removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
