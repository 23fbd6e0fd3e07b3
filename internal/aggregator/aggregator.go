// Package aggregator resamples a stream of fine-grained candles into the
// strategy's coarser timeframe and persists each finished bar.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ibs-bot/internal/store"
	"ibs-bot/pkg/types"
)

// Logger is the subset of the file logger the aggregator writes to.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Aggregator maintains at most one in-progress coarse candle, keyed by its
// window-end timestamp. Candle timestamps are close times: a candle closing
// exactly on a window boundary is the last candle of that window.
type Aggregator struct {
	candles store.CandleStore
	window  time.Duration
	log     Logger
	current *types.Candle
}

// New creates an aggregator targeting the given window (e.g. time.Hour).
func New(candles store.CandleStore, window time.Duration, log Logger) *Aggregator {
	return &Aggregator{
		candles: candles,
		window:  window,
		log:     log,
	}
}

// Ingest folds one finished fine-grained candle into the running coarse
// candle, flushing the coarse candle to the store once its window completes.
// Malformed candles are logged and skipped; ingestion continues.
func (a *Aggregator) Ingest(ctx context.Context, fine *types.Candle) error {
	if err := fine.Validate(); err != nil {
		a.log.Warning("skipping malformed candle at %s: %v", fine.Timestamp, err)
		return nil
	}

	end := a.windowEnd(fine.Timestamp)

	// A candle from a later window means the running one is complete,
	// even if its closing candle never arrived (feed gap).
	if a.current != nil && end.After(a.current.Timestamp) {
		if err := a.flush(ctx); err != nil {
			return err
		}
	}

	if a.current == nil {
		a.current = &types.Candle{
			Timestamp: end,
			Open:      fine.Open,
			High:      fine.High,
			Low:       fine.Low,
			Close:     fine.Close,
			Volume:    fine.Volume,
		}
	} else {
		if fine.High > a.current.High {
			a.current.High = fine.High
		}
		if fine.Low < a.current.Low {
			a.current.Low = fine.Low
		}
		a.current.Close = fine.Close
		a.current.Volume += fine.Volume
	}

	if fine.Timestamp.Equal(a.current.Timestamp) {
		return a.flush(ctx)
	}
	return nil
}

// Current returns a copy of the in-progress candle, or nil when none is
// open.
func (a *Aggregator) Current() *types.Candle {
	if a.current == nil {
		return nil
	}
	cp := *a.current
	return &cp
}

func (a *Aggregator) flush(ctx context.Context) error {
	candle := a.current
	a.current = nil

	err := a.candles.Insert(ctx, candle)
	if errors.Is(err, store.ErrDuplicateKey) {
		// Another writer (or a replay after restart) already stored this
		// window. Not an error.
		a.log.Info("candle %s already stored, skipping", candle.Timestamp)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store candle %s: %w", candle.Timestamp, err)
	}

	a.log.Info("stored candle %s o=%.4f h=%.4f l=%.4f c=%.4f v=%.4f",
		candle.Timestamp.Format(time.RFC3339), candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
	return nil
}

// windowEnd returns the close time of the window containing a candle that
// closes at t. A close exactly on a boundary belongs to the window ending
// there.
func (a *Aggregator) windowEnd(t time.Time) time.Time {
	end := t.Truncate(a.window)
	if end.Before(t) {
		end = end.Add(a.window)
	}
	return end
}
