package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ibs-bot/internal/exchange"
	"ibs-bot/internal/monitoring"
	"ibs-bot/internal/store"
	"ibs-bot/pkg/types"
)

// Logger is the subset of the file logger the trader writes to.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Trade(format string, args ...interface{})
}

// Executor runs one pass over pending signals. The trader invokes it
// synchronously after every signal it writes.
type Executor interface {
	RunOnce(ctx context.Context) error
}

// Config carries the strategy tunables.
type Config struct {
	Symbol string

	// EntryThreshold opens a trade when IBS falls below it.
	EntryThreshold float64

	// MaxLeverage and LeverageExponent shape the leverage curve.
	MaxLeverage      float64
	LeverageExponent float64

	// HoldWindow is the minimum time a trade stays open, normally one
	// aggregation window.
	HoldWindow time.Duration

	// PollInterval is how often Run checks for a new candle.
	PollInterval time.Duration
}

// Trader polls the candle store for unseen candles and writes open/close
// signals. It tracks at most one open trade.
type Trader struct {
	signals  store.SignalStore
	candles  store.CandleStore
	gateway  exchange.Gateway
	executor Executor
	cfg      Config
	log      Logger

	lastCandleID int64
	openedAt     time.Time
	tradeOpen    bool
}

// New creates a trader. Call Reconcile before Run so the tracked-trade flag
// reflects exchange truth after a restart.
func New(signals store.SignalStore, candles store.CandleStore, gateway exchange.Gateway, exec Executor, cfg Config, log Logger) *Trader {
	return &Trader{
		signals:  signals,
		candles:  candles,
		gateway:  gateway,
		executor: exec,
		cfg:      cfg,
		log:      log,
	}
}

// Reconcile rebuilds the tracked-trade flag from the live position. The
// exchange is the source of truth for "is a trade open"; local state is
// only a cache of it.
func (t *Trader) Reconcile(ctx context.Context) error {
	account, err := t.gateway.AccountState(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile against exchange: %w", err)
	}

	position := account.PositionSize(t.cfg.Symbol)
	if position != 0 {
		// The open time is lost across restarts; restarting the hold
		// clock is the conservative choice.
		t.tradeOpen = true
		t.openedAt = time.Now().UTC()
		t.log.Info("reconciled: live position %.8f found, tracking trade as open", position)
		return nil
	}

	t.tradeOpen = false
	t.log.Info("reconciled: no live position")
	return nil
}

// Step processes at most one unseen candle. It returns store.ErrNotFound
// when no new candle is available.
func (t *Trader) Step(ctx context.Context) error {
	candle, err := t.candles.NextAfter(ctx, t.lastCandleID)
	if err != nil {
		return err
	}
	t.lastCandleID = candle.ID

	if err := candle.Validate(); err != nil {
		t.log.Warning("skipping malformed candle %d: %v", candle.ID, err)
		return nil
	}

	ibs := IBS(candle)
	monitoring.UpdateIBS(t.cfg.Symbol, ibs)
	t.log.Info("candle %d %s close=%.4f ibs=%.4f", candle.ID, candle.Timestamp.Format(time.RFC3339), candle.Close, ibs)

	if !t.tradeOpen {
		return t.maybeOpen(ctx, candle, ibs)
	}
	return t.maybeClose(ctx, candle)
}

// Run polls for new candles until ctx is done.
func (t *Trader) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for {
			err := t.Step(ctx)
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				t.log.Error("decision step failed: %v", err)
				monitoring.RecordError("decision_step")
				break
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Trader) maybeOpen(ctx context.Context, candle *types.Candle, ibs float64) error {
	if ibs >= t.cfg.EntryThreshold {
		return nil
	}

	// One outstanding open intent at a time per instrument.
	pending, err := t.signals.HasPendingOpen(ctx, t.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("failed to check pending opens: %w", err)
	}
	if pending {
		t.log.Info("open signal already pending, skipping entry")
		return nil
	}

	leverage := Leverage(ibs, t.cfg.MaxLeverage, t.cfg.LeverageExponent)

	id, err := t.signals.Insert(ctx, &types.Signal{
		Timestamp: candle.Timestamp,
		Action:    types.ActionOpen,
		Symbol:    t.cfg.Symbol,
		Side:      types.SideLong,
		Price:     candle.Close,
		Leverage:  leverage,
	})
	if err != nil {
		return fmt.Errorf("failed to write open signal: %w", err)
	}

	t.log.Trade("open signal %d written: ibs=%.4f lev=%.2f price=%.4f", id, ibs, leverage, candle.Close)
	t.tradeOpen = true
	t.openedAt = candle.Timestamp

	if err := t.executor.RunOnce(ctx); err != nil {
		t.log.Error("execution pass after open signal failed: %v", err)
	}
	return nil
}

func (t *Trader) maybeClose(ctx context.Context, candle *types.Candle) error {
	if candle.Timestamp.Before(t.openedAt.Add(t.cfg.HoldWindow)) {
		return nil
	}

	id, err := t.signals.Insert(ctx, &types.Signal{
		Timestamp: candle.Timestamp,
		Action:    types.ActionClose,
		Symbol:    t.cfg.Symbol,
		Side:      types.SideShort,
		Price:     candle.Close,
		Leverage:  1,
	})
	if err != nil {
		return fmt.Errorf("failed to write close signal: %w", err)
	}

	// Any open intent that never executed is superseded by the close.
	if err := t.signals.ConsumePendingOpen(ctx, t.cfg.Symbol); err != nil {
		t.log.Warning("failed to consume pending open signals: %v", err)
	}

	t.log.Trade("close signal %d written at price=%.4f", id, candle.Close)
	t.tradeOpen = false

	if err := t.executor.RunOnce(ctx); err != nil {
		t.log.Error("execution pass after close signal failed: %v", err)
	}
	return nil
}
