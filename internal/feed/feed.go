// Package feed streams finished kline candles from the exchange's public
// websocket and hands them to a consumer, reconnecting on any failure.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"ibs-bot/pkg/types"
)

// Logger is the subset of the file logger the feed writes to.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Handler consumes one finished fine-grained candle.
type Handler func(ctx context.Context, candle *types.Candle) error

// Config describes the stream to subscribe to.
type Config struct {
	URL      string // e.g. wss://stream.bybit.com/v5/public/linear
	Symbol   string
	Interval string // kline interval in the venue's notation, e.g. "1"

	// ReconnectDelay is the pause before redialing after a failure.
	ReconnectDelay time.Duration

	// PingInterval keeps the connection alive; the venue drops silent
	// connections.
	PingInterval time.Duration
}

// DefaultConfig returns the stream settings used in production.
func DefaultConfig(url, symbol string) Config {
	return Config{
		URL:            url,
		Symbol:         symbol,
		Interval:       "1",
		ReconnectDelay: 5 * time.Second,
		PingInterval:   20 * time.Second,
	}
}

// Feed is a reconnecting kline subscriber.
type Feed struct {
	cfg Config
	log Logger
}

// New creates a feed.
func New(cfg Config, log Logger) *Feed {
	return &Feed{cfg: cfg, log: log}
}

type subscribeMessage struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type klineMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start   int64  `json:"start"`
		End     int64  `json:"end"`
		Open    string `json:"open"`
		High    string `json:"high"`
		Low     string `json:"low"`
		Close   string `json:"close"`
		Volume  string `json:"volume"`
		Confirm bool   `json:"confirm"`
	} `json:"data"`
}

// Run streams candles to handler until ctx is done. Connection failures are
// logged and retried forever; only ctx cancellation stops the feed.
func (f *Feed) Run(ctx context.Context, handler Handler) error {
	for {
		if err := f.streamOnce(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Error("stream failed: %v, reconnecting in %s", err, f.cfg.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

func (f *Feed) streamOnce(ctx context.Context, handler Handler) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer conn.Close()

	topic := fmt.Sprintf("kline.%s.%s", f.cfg.Interval, f.cfg.Symbol)
	sub := subscribeMessage{Op: "subscribe", Args: []string{topic}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	f.log.Info("subscribed to %s", topic)

	// Close the connection when ctx finishes so the blocking read below
	// unblocks, and keep the venue's idle timeout at bay.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.keepAlive(pingCtx, conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read stream message: %w", err)
		}

		candle, ok := parseCandle(message, topic)
		if !ok {
			continue
		}

		if err := handler(ctx, candle); err != nil {
			f.log.Error("candle handler failed: %v", err)
		}
	}
}

func (f *Feed) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteJSON(subscribeMessage{Op: "ping"}); err != nil {
				f.log.Warning("failed to ping stream: %v", err)
				conn.Close()
				return
			}
		}
	}
}

// parseCandle extracts a finished candle from a stream message. Unconfirmed
// (still-forming) klines and unrelated messages return ok=false. The candle
// timestamp is the kline's close time.
func parseCandle(message []byte, topic string) (*types.Candle, bool) {
	var msg klineMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, false
	}
	if msg.Topic != topic || len(msg.Data) == 0 {
		return nil, false
	}

	k := msg.Data[len(msg.Data)-1]
	if !k.Confirm {
		return nil, false
	}

	// A malformed numeric field invalidates the whole kline; a silent zero
	// here would poison the aggregated bar's range.
	fields := [5]float64{}
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		fields[i] = v
	}

	candle := &types.Candle{
		Timestamp: time.UnixMilli(k.End).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}
	if err := candle.Validate(); err != nil {
		return nil, false
	}
	return candle, true
}
