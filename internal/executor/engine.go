// Package executor drives durable trade signals to a terminal state against
// the exchange. It is the only component that places orders; everything it
// needs from the venue goes through the exchange.Gateway surface.
package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"ibs-bot/internal/exchange"
	"ibs-bot/internal/monitoring"
	"ibs-bot/internal/notifications"
	"ibs-bot/internal/store"
	"ibs-bot/pkg/types"
)

// Logger is the subset of the file logger the engine writes to.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Trade(format string, args ...interface{})
}

// Config carries the engine's fixed tunables.
type Config struct {
	Symbol string

	// BufferFactor shrinks the computed open size to absorb margin and
	// price drift between sizing and placement. Must be below 1.0.
	BufferFactor float64

	// MaxRequotes bounds how many times a resting order is re-priced
	// before the chase gives up.
	MaxRequotes int

	// RequoteInterval is the fixed sleep between order status polls.
	RequoteInterval time.Duration

	// FillTolerance is the relative position-delta window (e.g. 0.10)
	// accepted as fill evidence when the order status is unavailable.
	FillTolerance float64
}

// DefaultConfig returns the tunables used in production.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:          symbol,
		BufferFactor:    0.98,
		MaxRequotes:     5,
		RequoteInterval: 2 * time.Second,
		FillTolerance:   0.10,
	}
}

// Engine executes pending signals strictly in arrival order.
type Engine struct {
	signals  store.SignalStore
	gateway  exchange.Gateway
	cfg      Config
	log      Logger
	notifier notifications.Notifier
}

// New creates an execution engine. Alerts are discarded until SetNotifier is
// called.
func New(signals store.SignalStore, gateway exchange.Gateway, cfg Config, log Logger) *Engine {
	return &Engine{
		signals:  signals,
		gateway:  gateway,
		cfg:      cfg,
		log:      log,
		notifier: notifications.Nop{},
	}
}

// SetNotifier routes terminal signal outcomes to n. Delivery failures are
// logged and never affect signal status.
func (e *Engine) SetNotifier(n notifications.Notifier) {
	if n != nil {
		e.notifier = n
	}
}

// RunOnce fetches all pending signals and processes them one at a time in
// ascending id order. A failure on one signal never blocks the next; each
// signal either reaches a terminal status or is deliberately left pending.
func (e *Engine) RunOnce(ctx context.Context) error {
	pending, err := e.signals.PendingSignals(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending signals: %w", err)
	}

	for _, sig := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.process(ctx, sig)
	}
	return nil
}

// Run polls for pending signals at the given interval until ctx is done.
func (e *Engine) Run(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := e.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Error("signal pass failed: %v", err)
			monitoring.RecordError("signal_pass")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) process(ctx context.Context, sig *types.Signal) {
	switch sig.Action {
	case types.ActionOpen:
		e.executeOpen(ctx, sig)
	case types.ActionClose:
		e.executeClose(ctx, sig)
	default:
		// Never guess what an unrecognized action means. Leave the
		// signal pending so the defect is visible, not buried.
		e.log.Error("signal %d has unrecognized action %q, leaving pending", sig.ID, sig.Action)
		monitoring.RecordError("unknown_action")
	}
}

// executeOpen sizes a new position from withdrawable margin and chases a
// limit order at the mid price.
func (e *Engine) executeOpen(ctx context.Context, sig *types.Signal) {
	e.log.Trade("executing open signal %d: %s %s lev=%.2f", sig.ID, sig.Side, e.cfg.Symbol, sig.Leverage)

	// Best effort: the exchange applies what it can and margin checks
	// happen at placement.
	if err := e.gateway.SetLeverage(ctx, e.cfg.Symbol, sig.Leverage); err != nil {
		e.log.Warning("failed to set leverage for signal %d: %v", sig.ID, err)
		monitoring.RecordError("set_leverage")
	}

	account, err := e.gateway.AccountState(ctx)
	if err != nil {
		e.fail(ctx, sig, fmt.Errorf("failed to read account state: %w", err))
		return
	}

	mid, err := e.gateway.MidPrice(ctx, e.cfg.Symbol)
	if err != nil {
		e.fail(ctx, sig, fmt.Errorf("failed to read mid price: %w", err))
		return
	}
	monitoring.UpdatePrice(e.cfg.Symbol, mid)

	inst, err := e.gateway.Instrument(ctx, e.cfg.Symbol)
	if err != nil {
		e.fail(ctx, sig, fmt.Errorf("failed to read instrument rules: %w", err))
		return
	}

	size := floorToDecimals(account.Withdrawable*sig.Leverage/mid*e.cfg.BufferFactor, inst.SizeDecimals)
	if size <= 0 || size < inst.MinOrderSize {
		e.fail(ctx, sig, fmt.Errorf("insufficient margin: computed size %.8f from withdrawable %.2f", size, account.Withdrawable))
		return
	}

	price := roundToTick(mid, inst.TickSize)
	preTrade := account.PositionSize(e.cfg.Symbol)

	result := e.chase(ctx, chaseRequest{
		side:       sig.Side,
		size:       size,
		price:      price,
		reduceOnly: false,
		preTrade:   preTrade,
		tickSize:   inst.TickSize,
	})
	e.finish(ctx, sig, result)
}

// executeClose flattens the live position with a reduce-only chase. A flat
// position is success: the desired end state already holds.
func (e *Engine) executeClose(ctx context.Context, sig *types.Signal) {
	e.log.Trade("executing close signal %d: %s", sig.ID, e.cfg.Symbol)

	account, err := e.gateway.AccountState(ctx)
	if err != nil {
		e.fail(ctx, sig, fmt.Errorf("failed to read account state: %w", err))
		return
	}

	position := account.PositionSize(e.cfg.Symbol)
	if position == 0 {
		e.log.Info("signal %d: position already flat, nothing to close", sig.ID)
		e.markExecuted(ctx, sig)
		return
	}

	inst, err := e.gateway.Instrument(ctx, e.cfg.Symbol)
	if err != nil {
		e.fail(ctx, sig, fmt.Errorf("failed to read instrument rules: %w", err))
		return
	}

	size := floorToDecimals(math.Abs(position), inst.SizeDecimals)
	if size <= 0 {
		// Dust below size precision cannot be closed with an order.
		e.log.Info("signal %d: position %.10f below size precision, treating as flat", sig.ID, position)
		e.markExecuted(ctx, sig)
		return
	}

	side := types.SideShort
	if position < 0 {
		side = types.SideLong
	}

	mid, err := e.gateway.MidPrice(ctx, e.cfg.Symbol)
	if err != nil {
		e.fail(ctx, sig, fmt.Errorf("failed to read mid price: %w", err))
		return
	}
	monitoring.UpdatePrice(e.cfg.Symbol, mid)

	result := e.chase(ctx, chaseRequest{
		side:       side,
		size:       size,
		price:      roundToTick(mid, inst.TickSize),
		reduceOnly: true,
		preTrade:   position,
		tickSize:   inst.TickSize,
	})
	e.finish(ctx, sig, result)
}

// finish maps a chase result onto the signal's terminal status.
func (e *Engine) finish(ctx context.Context, sig *types.Signal, result ChaseResult) {
	if result.Success() {
		e.log.Trade("signal %d done: %s", sig.ID, result)
		monitoring.RecordFill(result.String())
		e.markExecuted(ctx, sig)
		return
	}
	e.fail(ctx, sig, fmt.Errorf("chase terminated without fill"))
}

func (e *Engine) markExecuted(ctx context.Context, sig *types.Signal) {
	if err := e.signals.MarkExecuted(ctx, sig.ID); err != nil {
		e.log.Error("failed to mark signal %d executed: %v", sig.ID, err)
		monitoring.RecordError("store_transition")
		return
	}
	monitoring.RecordSignal(string(sig.Action), "executed")
	e.notify("trade", fmt.Sprintf("Signal %d executed: %s %s", sig.ID, sig.Action, sig.Symbol))
}

func (e *Engine) fail(ctx context.Context, sig *types.Signal, cause error) {
	e.log.Error("signal %d failed: %v", sig.ID, cause)
	if err := e.signals.MarkFailed(ctx, sig.ID); err != nil {
		e.log.Error("failed to mark signal %d failed: %v", sig.ID, err)
		monitoring.RecordError("store_transition")
		return
	}
	monitoring.RecordSignal(string(sig.Action), "failed")
	e.notify("error", fmt.Sprintf("Signal %d failed: %s %s: %v", sig.ID, sig.Action, sig.Symbol, cause))
}

func (e *Engine) notify(level, message string) {
	if err := e.notifier.SendAlert(level, message); err != nil {
		e.log.Warning("failed to send alert: %v", err)
	}
}

// floorToDecimals rounds v down to the given number of decimal places. The
// epsilon guards against float artifacts flooring one step too far.
func floorToDecimals(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Floor(v*pow+1e-9) / pow
}

// roundToTick rounds price to the nearest tick.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}
