// Package exchange defines the capability surface the execution engine needs
// from the remote exchange. Implementations live in venue-specific
// subpackages; the engine only ever sees these types.
package exchange

import (
	"context"
	"time"

	"ibs-bot/pkg/types"
)

// OrderStatus is the venue-neutral state of an order.
type OrderStatus string

const (
	// OrderResting means the order is live on the book, not yet filled.
	OrderResting OrderStatus = "resting"
	// OrderFilled means the order is completely filled.
	OrderFilled OrderStatus = "filled"
	// OrderCancelled means the order was cancelled before filling.
	OrderCancelled OrderStatus = "cancelled"
	// OrderRejected means the exchange refused the order.
	OrderRejected OrderStatus = "rejected"
	// OrderUnknown means the venue reported a state we do not model.
	OrderUnknown OrderStatus = "unknown"
)

// OrderRef identifies an order by exchange id and client correlation id.
// The client id is generated per placement attempt and survives even when
// the exchange has not yet indexed its own id.
type OrderRef struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
}

// LimitOrderRequest describes a GTC limit order placement.
type LimitOrderRequest struct {
	Symbol        string
	Side          types.Side
	Size          float64
	Price         float64
	ReduceOnly    bool
	ClientOrderID string
}

// OrderAck is the placement or amend acknowledgement.
type OrderAck struct {
	Ref    OrderRef
	Status OrderStatus
}

// OrderState is the result of an order-status or open-orders query.
type OrderState struct {
	Ref        OrderRef
	Status     OrderStatus
	Price      float64
	Size       float64
	FilledSize float64
}

// Fill is a single execution from the account's recent trade history.
type Fill struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          types.Side
	Size          float64
	Price         float64
	Time          time.Time
}

// Position is the account's current exposure in one instrument.
// Size is signed: positive for long, negative for short.
type Position struct {
	Symbol     string
	Size       float64
	EntryPrice float64
}

// AccountState is a snapshot of margin and open positions.
type AccountState struct {
	Withdrawable float64
	Positions    []Position
}

// PositionSize returns the signed size held in symbol, zero when flat.
func (a *AccountState) PositionSize(symbol string) float64 {
	for _, p := range a.Positions {
		if p.Symbol == symbol {
			return p.Size
		}
	}
	return 0
}

// Instrument carries the precision rules orders must obey.
type Instrument struct {
	Symbol       string
	SizeDecimals int     // decimal places allowed in order size
	TickSize     float64 // smallest price increment
	MinOrderSize float64
}

// Gateway is the thin capability surface over the remote exchange. Every
// call is a synchronous remote operation with its own latency and failure
// modes; callers decide what a failure means.
type Gateway interface {
	// MidPrice returns the current mid price for symbol.
	MidPrice(ctx context.Context, symbol string) (float64, error)

	// AccountState returns withdrawable margin and open positions.
	AccountState(ctx context.Context) (*AccountState, error)

	// Instrument returns the precision rules for symbol.
	Instrument(ctx context.Context, symbol string) (*Instrument, error)

	// SetLeverage sets the account leverage on symbol.
	SetLeverage(ctx context.Context, symbol string, leverage float64) error

	// PlaceLimitOrder submits a GTC limit order.
	PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (*OrderAck, error)

	// AmendOrder re-prices a resting order identified by ref.
	AmendOrder(ctx context.Context, ref OrderRef, price float64) (*OrderAck, error)

	// OrderStatus looks up an order by ref across the venue's live and
	// historical views.
	OrderStatus(ctx context.Context, ref OrderRef) (*OrderState, error)

	// OpenOrders lists the account's resting orders on symbol.
	OpenOrders(ctx context.Context, symbol string) ([]OrderState, error)

	// RecentFills lists the account's recent executions on symbol,
	// newest first.
	RecentFills(ctx context.Context, symbol string) ([]Fill, error)
}
