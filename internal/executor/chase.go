package executor

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"ibs-bot/internal/exchange"
	"ibs-bot/internal/monitoring"
	"ibs-bot/pkg/types"
)

// ChaseResult is the terminal state of one chase invocation.
type ChaseResult int

const (
	// ChaseFailed means no fill happened and no order is known to rest.
	ChaseFailed ChaseResult = iota
	// ChaseFilled means the exchange confirmed the fill directly.
	ChaseFilled
	// ChaseFilledFallback means the fill was inferred from trade history
	// or the position delta after the status query went dark.
	ChaseFilledFallback
	// ChaseRestingExhausted means the re-quote budget ran out with the
	// order still live on the book. Treated as success by the caller so
	// the signal is never re-submitted.
	ChaseRestingExhausted
)

// Success reports whether the caller should mark the signal executed.
func (r ChaseResult) Success() bool {
	return r != ChaseFailed
}

func (r ChaseResult) String() string {
	switch r {
	case ChaseFilled:
		return "filled"
	case ChaseFilledFallback:
		return "filled_fallback"
	case ChaseRestingExhausted:
		return "resting_exhausted"
	default:
		return "failed"
	}
}

type chaseRequest struct {
	side       types.Side
	size       float64
	price      float64
	reduceOnly bool
	preTrade   float64 // signed position size before placement
	tickSize   float64
}

// chase places a GTC limit order and keeps it priced at the market until it
// fills, is cancelled, or the re-quote budget runs out. Each invocation uses
// a fresh client order id so the attempt is trackable even before the
// exchange indexes its own order id.
func (e *Engine) chase(ctx context.Context, req chaseRequest) ChaseResult {
	cloid := uuid.NewString()

	ack, err := e.gateway.PlaceLimitOrder(ctx, exchange.LimitOrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          req.side,
		Size:          req.size,
		Price:         req.price,
		ReduceOnly:    req.reduceOnly,
		ClientOrderID: cloid,
	})
	if err != nil {
		e.log.Error("order placement failed: %v", err)
		monitoring.RecordError("order_placement")
		return ChaseFailed
	}

	e.log.Trade("placed %s %s size=%v price=%v cloid=%s", req.side, e.cfg.Symbol, req.size, req.price, cloid)

	if ack.Status == exchange.OrderFilled {
		return ChaseFilled
	}
	if ack.Status == exchange.OrderRejected {
		e.log.Error("order rejected at placement, cloid=%s", cloid)
		return ChaseFailed
	}

	ref := ack.Ref
	price := req.price

	for attempt := 0; attempt <= e.cfg.MaxRequotes; attempt++ {
		if !sleepCtx(ctx, e.cfg.RequoteInterval) {
			// Shutdown mid-chase: the order stays on the book and the
			// signal stays pending for the next pass.
			e.log.Warning("chase interrupted, order %s left resting", cloid)
			return ChaseFailed
		}

		state, err := e.gateway.OrderStatus(ctx, ref)
		if err != nil {
			result, stillResting := e.resolveWithoutStatus(ctx, ref, req)
			if stillResting && attempt < e.cfg.MaxRequotes {
				// The status endpoint failed but the order is visibly
				// live; keep polling instead of giving up early.
				e.log.Warning("order %s confirmed resting despite status failure, continuing chase", cloid)
				continue
			}
			return result
		}

		switch state.Status {
		case exchange.OrderFilled:
			return ChaseFilled

		case exchange.OrderCancelled, exchange.OrderRejected:
			// External cancellation is not retried within this call.
			e.log.Warning("order %s reached %s externally", cloid, state.Status)
			return ChaseFailed

		default:
			// Resting (or a state we do not model, treated the same).
			if attempt == e.cfg.MaxRequotes {
				e.log.Trade("re-quote budget exhausted, order %s left resting at %v", cloid, price)
				return ChaseRestingExhausted
			}

			mid, err := e.gateway.MidPrice(ctx, e.cfg.Symbol)
			if err != nil {
				// Keep the current quote; the next iteration polls again.
				e.log.Warning("mid price unavailable during re-quote: %v", err)
				continue
			}

			newPrice := roundToTick(mid, req.tickSize)
			if newPrice == price {
				continue
			}

			if _, err := e.gateway.AmendOrder(ctx, ref, newPrice); err != nil {
				e.log.Error("failed to amend order %s: %v", cloid, err)
				monitoring.RecordError("order_amend")
				return ChaseFailed
			}
			e.log.Trade("re-quoted order %s: %v -> %v", cloid, price, newPrice)
			monitoring.RecordRequote()
			price = newPrice
		}
	}

	return ChaseRestingExhausted
}

// resolveWithoutStatus decides the chase outcome when the status query is
// unreliable, layering fill evidence: recent fills by client order id, then
// the position delta against the expected post-fill size, then the open
// order book. No evidence at all means the order is presumed lost. The second
// return value reports that the order was seen live on the book, letting the
// caller keep chasing while re-quote budget remains.
func (e *Engine) resolveWithoutStatus(ctx context.Context, ref exchange.OrderRef, req chaseRequest) (ChaseResult, bool) {
	e.log.Warning("order status unavailable for %s, checking fill evidence", ref.ClientOrderID)

	fills, err := e.gateway.RecentFills(ctx, e.cfg.Symbol)
	if err == nil {
		for _, fill := range fills {
			if fill.ClientOrderID == ref.ClientOrderID || (ref.OrderID != "" && fill.OrderID == ref.OrderID) {
				e.log.Trade("fill found in trade history for %s", ref.ClientOrderID)
				return ChaseFilledFallback, false
			}
		}
	} else {
		e.log.Warning("failed to scan recent fills: %v", err)
	}

	account, err := e.gateway.AccountState(ctx)
	if err == nil && e.positionConsistentWithFill(account.PositionSize(e.cfg.Symbol), req) {
		e.log.Trade("position delta consistent with fill for %s", ref.ClientOrderID)
		return ChaseFilledFallback, false
	}
	if err != nil {
		e.log.Warning("failed to read position for fill check: %v", err)
	}

	open, err := e.gateway.OpenOrders(ctx, e.cfg.Symbol)
	if err == nil {
		for _, state := range open {
			if state.Ref.ClientOrderID == ref.ClientOrderID || (ref.OrderID != "" && state.Ref.OrderID == ref.OrderID) {
				// Still on the book, just unresolvable by id right now.
				return ChaseRestingExhausted, true
			}
		}
	}

	e.log.Error("no fill or open-order evidence for %s, presuming lost", ref.ClientOrderID)
	return ChaseFailed, false
}

// positionConsistentWithFill checks the live position against the expected
// post-fill position within the configured tolerance of the trade size.
func (e *Engine) positionConsistentWithFill(current float64, req chaseRequest) bool {
	delta := req.size
	if req.side == types.SideShort {
		delta = -req.size
	}
	expected := req.preTrade + delta
	return math.Abs(current-expected) <= e.cfg.FillTolerance*req.size
}

// sleepCtx sleeps for d, returning false if ctx finished first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
