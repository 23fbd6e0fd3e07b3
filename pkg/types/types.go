package types

import (
	"fmt"
	"math"
	"time"
)

// Action is the intent carried by a trade signal.
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// Side is the direction of a trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the side that closes a position held on s.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// SignalStatus tracks the execution lifecycle of a signal.
// A signal transitions pending -> executed or pending -> failed exactly once.
type SignalStatus int

const (
	StatusPending  SignalStatus = 0
	StatusExecuted SignalStatus = 1
	StatusFailed   SignalStatus = 2
)

// String returns a human-readable status name.
func (s SignalStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuted:
		return "executed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Signal is a durable trade intent produced by the decision process and
// consumed at most once by the execution engine.
type Signal struct {
	ID        int64        `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Action    Action       `json:"action"`
	Symbol    string       `json:"symbol"`
	Side      Side         `json:"side"`
	Price     float64      `json:"price"`
	Leverage  float64      `json:"leverage"` // meaningful for open signals only
	Status    SignalStatus `json:"executed"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validate checks a signal for structural defects before it is stored.
func (s *Signal) Validate() error {
	if s.Action != ActionOpen && s.Action != ActionClose {
		return fmt.Errorf("invalid action %q", s.Action)
	}
	if s.Side != SideLong && s.Side != SideShort {
		return fmt.Errorf("invalid side %q", s.Side)
	}
	if s.Symbol == "" {
		return fmt.Errorf("missing symbol")
	}
	if !isFinite(s.Price) || s.Price <= 0 {
		return fmt.Errorf("invalid price %v", s.Price)
	}
	if s.Action == ActionOpen && (s.Leverage < 1 || !isFinite(s.Leverage)) {
		return fmt.Errorf("invalid leverage %v", s.Leverage)
	}
	return nil
}

// Candle is a finished OHLCV bar keyed by its closing timestamp.
type Candle struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate rejects candles with a broken range or non-finite fields.
func (c *Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if !isFinite(v) {
			return fmt.Errorf("non-finite candle field")
		}
	}
	if c.High < c.Low {
		return fmt.Errorf("invalid candle: high (%v) < low (%v)", c.High, c.Low)
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("missing candle timestamp")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
