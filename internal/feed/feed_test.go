package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = "kline.1.BTCUSDT"

func TestParseConfirmedCandle(t *testing.T) {
	message := []byte(`{
		"topic": "kline.1.BTCUSDT",
		"data": [{
			"start": 1764669540000,
			"end": 1764669600000,
			"open": "50000.5",
			"high": "50100",
			"low": "49950",
			"close": "50080.5",
			"volume": "12.5",
			"confirm": true
		}]
	}`)

	candle, ok := parseCandle(message, topic)
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1764669600000).UTC(), candle.Timestamp)
	assert.Equal(t, 50000.5, candle.Open)
	assert.Equal(t, 50100.0, candle.High)
	assert.Equal(t, 49950.0, candle.Low)
	assert.Equal(t, 50080.5, candle.Close)
	assert.Equal(t, 12.5, candle.Volume)
}

func TestParseSkipsUnconfirmedKline(t *testing.T) {
	message := []byte(`{
		"topic": "kline.1.BTCUSDT",
		"data": [{
			"start": 1764669540000,
			"end": 1764669600000,
			"open": "50000",
			"high": "50100",
			"low": "49950",
			"close": "50080",
			"volume": "12.5",
			"confirm": false
		}]
	}`)

	_, ok := parseCandle(message, topic)
	assert.False(t, ok, "a still-forming kline must not be emitted")
}

func TestParseSkipsOtherTopics(t *testing.T) {
	message := []byte(`{"topic": "tickers.BTCUSDT", "data": []}`)
	_, ok := parseCandle(message, topic)
	assert.False(t, ok)
}

func TestParseSkipsControlMessages(t *testing.T) {
	for _, message := range []string{
		`{"success":true,"op":"subscribe"}`,
		`{"op":"pong"}`,
		`not json at all`,
	} {
		_, ok := parseCandle([]byte(message), topic)
		assert.False(t, ok, "message %q must be ignored", message)
	}
}

func TestParseSkipsMalformedNumericField(t *testing.T) {
	// An unparseable price must drop the kline entirely; defaulting the
	// field to zero would fold a bogus low into the hourly bar.
	message := []byte(`{
		"topic": "kline.1.BTCUSDT",
		"data": [{
			"start": 1764669540000,
			"end": 1764669600000,
			"open": "50000",
			"high": "50100",
			"low": "not-a-number",
			"close": "50080",
			"volume": "12.5",
			"confirm": true
		}]
	}`)

	_, ok := parseCandle(message, topic)
	assert.False(t, ok)
}

func TestParseSkipsBrokenRange(t *testing.T) {
	// high < low is a data error, not a candle.
	message := []byte(`{
		"topic": "kline.1.BTCUSDT",
		"data": [{
			"start": 1764669540000,
			"end": 1764669600000,
			"open": "50000",
			"high": "49000",
			"low": "50000",
			"close": "49500",
			"volume": "1",
			"confirm": true
		}]
	}`)

	_, ok := parseCandle(message, topic)
	assert.False(t, ok)
}
