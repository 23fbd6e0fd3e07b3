package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibs-bot/internal/exchange"
	"ibs-bot/internal/store/memory"
	"ibs-bot/pkg/types"
)

func newChaseEngine(gw *fakeGateway) (*Engine, *memory.SignalStore) {
	signals := memory.NewSignalStore()
	return New(signals, gw, testConfig(), nopLogger{}), signals
}

func TestChaseFilledOnFirstPoll(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFilled, result)
	assert.True(t, result.Success())
	assert.Empty(t, gw.amendPrices)
}

func TestChaseExternalCancellationFails(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{status: exchange.OrderCancelled}}
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFailed, result)
	assert.False(t, result.Success())
}

func TestChaseRequotesTowardMarket(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{
		{status: exchange.OrderResting},
		{status: exchange.OrderFilled},
	}
	engine, _ := newChaseEngine(gw)

	// Market moved since placement; the resting order must follow.
	gw.mid = 50100

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFilled, result)
	require.Len(t, gw.amendPrices, 1)
	assert.Equal(t, 50100.0, gw.amendPrices[0])
}

func TestChaseSkipsAmendWhenPriceUnchanged(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{
		{status: exchange.OrderResting},
		{status: exchange.OrderFilled},
	}
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFilled, result)
	assert.Empty(t, gw.amendPrices, "identical price must not be re-submitted")
}

func TestChaseRestingExhausted(t *testing.T) {
	gw := newFakeGateway()
	// Always resting; with MaxRequotes=2 the loop polls three times.
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseRestingExhausted, result)
	assert.True(t, result.Success(), "a live resting order is not a failure")
	assert.Equal(t, 3, gw.statusCalls)
}

func TestChaseAmendErrorFails(t *testing.T) {
	gw := newFakeGateway()
	gw.amendErr = fmt.Errorf("order amend rejected")
	engine, _ := newChaseEngine(gw)

	gw.mid = 50100

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFailed, result)
}

func TestChaseFillDetectedInTradeHistory(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{err: fmt.Errorf("status lookup timed out")}}
	// The venue executed the order and recorded the trade, but the
	// status endpoint never indexed the id.
	gw.fillOnPlace = true
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFilledFallback, result)
}

func TestChasePositionDeltaFallback(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{err: fmt.Errorf("status lookup timed out")}}
	// Position moves from 0 to +0.0098 against a requested 0.01: inside
	// the 10% tolerance window.
	after := 0.0098
	gw.positionAfterPlace = &after
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5, preTrade: 0,
	})

	assert.Equal(t, ChaseFilledFallback, result)
}

func TestChasePositionDeltaOutsideTolerance(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{err: fmt.Errorf("status lookup timed out")}}
	// Only half the requested size showed up: not fill evidence.
	after := 0.005
	gw.positionAfterPlace = &after
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5, preTrade: 0,
	})

	assert.Equal(t, ChaseFailed, result)
}

func TestChaseStatusErrorButOrderStillOnBook(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{err: fmt.Errorf("status lookup timed out")}}
	gw.restOnBook = true
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideShort, size: 0.02, price: 50000, tickSize: 0.5,
	})

	// The order is visibly resting, so the engine must not declare it
	// lost even though it cannot resolve the status by id.
	assert.Equal(t, ChaseRestingExhausted, result)
}

func TestChaseRecoversFromTransientStatusError(t *testing.T) {
	gw := newFakeGateway()
	// One status lookup fails while the order is visibly on the book; the
	// next poll resolves to a fill. The chase must survive the glitch
	// rather than terminate with budget remaining.
	gw.statusScript = []statusResult{
		{err: fmt.Errorf("status lookup timed out")},
		{status: exchange.OrderFilled},
	}
	gw.restOnBook = true
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFilled, result)
	assert.Equal(t, 2, gw.statusCalls)
}

func TestChaseNoEvidenceAnywherePresumedLost(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{err: fmt.Errorf("status lookup timed out")}}
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideLong, size: 0.01, price: 50000, tickSize: 0.5,
	})

	assert.Equal(t, ChaseFailed, result)
}

func TestChaseShortPositionDeltaFallback(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{err: fmt.Errorf("status lookup timed out")}}
	after := -0.0101
	gw.positionAfterPlace = &after
	engine, _ := newChaseEngine(gw)

	result := engine.chase(context.Background(), chaseRequest{
		side: types.SideShort, size: 0.01, price: 50000, tickSize: 0.5, preTrade: 0,
	})

	assert.Equal(t, ChaseFilledFallback, result)
}

func TestRestingExhaustedMarksSignalExecuted(t *testing.T) {
	gw := newFakeGateway()
	// Order rests forever; the budget runs out with it live.
	signals := memory.NewSignalStore()
	id, err := signals.Insert(context.Background(), &types.Signal{
		Timestamp: time.Now().UTC(),
		Action:    types.ActionOpen,
		Symbol:    testSymbol,
		Side:      types.SideLong,
		Price:     50000,
		Leverage:  2,
	})
	require.NoError(t, err)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	assert.Equal(t, types.StatusExecuted, signalStatus(t, signals, id))
}

func TestFloorToDecimals(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		want     float64
	}{
		{0.0195804, 3, 0.019},
		{0.098, 3, 0.098},
		{1.9999, 0, 1},
		{0.1, 3, 0.1},
		{2.675, 2, 2.67},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, floorToDecimals(tt.value, tt.decimals), 1e-12,
			"floorToDecimals(%v, %d)", tt.value, tt.decimals)
	}
}

func TestRoundToTick(t *testing.T) {
	assert.Equal(t, 50000.0, roundToTick(50000.2, 0.5))
	assert.Equal(t, 50000.5, roundToTick(50000.3, 0.5))
	assert.Equal(t, 50000.3, roundToTick(50000.3, 0))
}
