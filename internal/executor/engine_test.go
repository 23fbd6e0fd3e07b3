package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibs-bot/internal/exchange"
	"ibs-bot/internal/store/memory"
	"ibs-bot/pkg/types"
)

const testSymbol = "BTCUSDT"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{})   {}
func (nopLogger) Trade(string, ...interface{})   {}

type recordedAlert struct {
	level   string
	message string
}

// recordingNotifier captures alerts instead of delivering them.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (n *recordingNotifier) SendAlert(level, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, recordedAlert{level: level, message: message})
	return nil
}

type statusResult struct {
	status exchange.OrderStatus
	err    error
}

// fakeGateway scripts venue behavior for one chase and records every order
// interaction.
type fakeGateway struct {
	mu sync.Mutex

	withdrawable float64
	position     float64
	mid          float64
	instrument   exchange.Instrument

	placeErr error
	amendErr error

	// statusScript is consumed one entry per OrderStatus call; the last
	// entry repeats once the script runs out.
	statusScript []statusResult

	fills      []exchange.Fill
	openOrders []exchange.OrderState

	// positionAfterPlace, when set, replaces position once an order has
	// been placed. Models a fill the venue never confirms.
	positionAfterPlace *float64

	// fillOnPlace publishes a matching trade-history entry as soon as an
	// order is placed. restOnBook makes OpenOrders report the placed
	// order as live.
	fillOnPlace bool
	restOnBook  bool

	placed      []exchange.LimitOrderRequest
	amendPrices []float64
	leverage    float64
	statusCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		withdrawable: 1000,
		mid:          50000,
		instrument: exchange.Instrument{
			Symbol:       testSymbol,
			SizeDecimals: 3,
			TickSize:     0.5,
			MinOrderSize: 0.001,
		},
	}
}

func (g *fakeGateway) MidPrice(context.Context, string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mid, nil
}

func (g *fakeGateway) AccountState(context.Context) (*exchange.AccountState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := &exchange.AccountState{Withdrawable: g.withdrawable}
	if g.position != 0 {
		state.Positions = []exchange.Position{{Symbol: testSymbol, Size: g.position}}
	}
	return state, nil
}

func (g *fakeGateway) Instrument(context.Context, string) (*exchange.Instrument, error) {
	inst := g.instrument
	return &inst, nil
}

func (g *fakeGateway) SetLeverage(_ context.Context, _ string, leverage float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leverage = leverage
	return nil
}

func (g *fakeGateway) PlaceLimitOrder(_ context.Context, req exchange.LimitOrderRequest) (*exchange.OrderAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	g.placed = append(g.placed, req)
	if g.positionAfterPlace != nil {
		g.position = *g.positionAfterPlace
	}
	if g.fillOnPlace {
		g.fills = append(g.fills, exchange.Fill{
			OrderID:       fmt.Sprintf("ord-%d", len(g.placed)),
			ClientOrderID: req.ClientOrderID,
			Symbol:        req.Symbol,
			Side:          req.Side,
			Size:          req.Size,
			Price:         req.Price,
			Time:          time.Now(),
		})
	}
	if g.restOnBook {
		g.openOrders = append(g.openOrders, exchange.OrderState{
			Ref: exchange.OrderRef{
				OrderID:       fmt.Sprintf("ord-%d", len(g.placed)),
				ClientOrderID: req.ClientOrderID,
				Symbol:        req.Symbol,
			},
			Status: exchange.OrderResting,
			Price:  req.Price,
			Size:   req.Size,
		})
	}
	return &exchange.OrderAck{
		Ref: exchange.OrderRef{
			OrderID:       fmt.Sprintf("ord-%d", len(g.placed)),
			ClientOrderID: req.ClientOrderID,
			Symbol:        req.Symbol,
		},
		Status: exchange.OrderResting,
	}, nil
}

func (g *fakeGateway) AmendOrder(_ context.Context, ref exchange.OrderRef, price float64) (*exchange.OrderAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.amendErr != nil {
		return nil, g.amendErr
	}
	g.amendPrices = append(g.amendPrices, price)
	return &exchange.OrderAck{Ref: ref, Status: exchange.OrderResting}, nil
}

func (g *fakeGateway) OrderStatus(_ context.Context, ref exchange.OrderRef) (*exchange.OrderState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if len(g.statusScript) == 0 {
		return &exchange.OrderState{Ref: ref, Status: exchange.OrderResting}, nil
	}
	idx := g.statusCalls - 1
	if idx >= len(g.statusScript) {
		idx = len(g.statusScript) - 1
	}
	res := g.statusScript[idx]
	if res.err != nil {
		return nil, res.err
	}
	return &exchange.OrderState{Ref: ref, Status: res.status}, nil
}

func (g *fakeGateway) OpenOrders(context.Context, string) ([]exchange.OrderState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.openOrders, nil
}

func (g *fakeGateway) RecentFills(context.Context, string) ([]exchange.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fills, nil
}

var _ exchange.Gateway = (*fakeGateway)(nil)

func testConfig() Config {
	return Config{
		Symbol:          testSymbol,
		BufferFactor:    0.98,
		MaxRequotes:     2,
		RequoteInterval: time.Millisecond,
		FillTolerance:   0.10,
	}
}

func insertSignal(t *testing.T, signals *memory.SignalStore, action types.Action, side types.Side, leverage float64) int64 {
	t.Helper()
	id, err := signals.Insert(context.Background(), &types.Signal{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Symbol:    testSymbol,
		Side:      side,
		Price:     50000,
		Leverage:  leverage,
	})
	require.NoError(t, err)
	return id
}

func signalStatus(t *testing.T, signals *memory.SignalStore, id int64) types.SignalStatus {
	t.Helper()
	recent, err := signals.RecentSignals(context.Background(), 0)
	require.NoError(t, err)
	for _, sig := range recent {
		if sig.ID == id {
			return sig.Status
		}
	}
	t.Fatalf("signal %d not found", id)
	return 0
}

func TestOpenSignalSizing(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionOpen, types.SideLong, 5)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Len(t, gw.placed, 1)
	order := gw.placed[0]
	// 1000 * 5 / 50000 * 0.98 = 0.098, already at 3 decimals
	assert.InDelta(t, 0.098, order.Size, 1e-9)
	assert.Equal(t, 50000.0, order.Price)
	assert.Equal(t, types.SideLong, order.Side)
	assert.False(t, order.ReduceOnly)
	assert.NotEmpty(t, order.ClientOrderID)
	assert.Equal(t, 5.0, gw.leverage)
	assert.Equal(t, types.StatusExecuted, signalStatus(t, signals, id))
}

func TestOpenSignalSizeRoundsDown(t *testing.T) {
	gw := newFakeGateway()
	gw.withdrawable = 333
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}

	signals := memory.NewSignalStore()
	insertSignal(t, signals, types.ActionOpen, types.SideLong, 3)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Len(t, gw.placed, 1)
	// 333 * 3 / 50000 * 0.98 = 0.0195804 -> floored to 0.019
	assert.InDelta(t, 0.019, gw.placed[0].Size, 1e-9)
}

func TestOpenSignalInsufficientMargin(t *testing.T) {
	gw := newFakeGateway()
	gw.withdrawable = 0.01

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionOpen, types.SideLong, 1)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	assert.Empty(t, gw.placed)
	assert.Equal(t, types.StatusFailed, signalStatus(t, signals, id))
}

func TestOpenSignalPlacementErrorFails(t *testing.T) {
	gw := newFakeGateway()
	gw.placeErr = fmt.Errorf("venue unavailable")

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionOpen, types.SideShort, 2)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	assert.Equal(t, types.StatusFailed, signalStatus(t, signals, id))
}

func TestCloseSignalFlatPositionIsSuccess(t *testing.T) {
	gw := newFakeGateway()
	gw.position = 0

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionClose, types.SideShort, 1)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	assert.Empty(t, gw.placed, "no order should be placed when already flat")
	assert.Equal(t, types.StatusExecuted, signalStatus(t, signals, id))
}

func TestCloseSignalPlacesReduceOnlyOpposite(t *testing.T) {
	gw := newFakeGateway()
	gw.position = 0.25
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionClose, types.SideShort, 1)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Len(t, gw.placed, 1)
	order := gw.placed[0]
	assert.Equal(t, types.SideShort, order.Side, "long position closes with a sell")
	assert.True(t, order.ReduceOnly)
	assert.InDelta(t, 0.25, order.Size, 1e-9)
	assert.Equal(t, types.StatusExecuted, signalStatus(t, signals, id))
}

func TestCloseShortPositionBuysBack(t *testing.T) {
	gw := newFakeGateway()
	gw.position = -0.1
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}

	signals := memory.NewSignalStore()
	insertSignal(t, signals, types.ActionClose, types.SideLong, 1)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Len(t, gw.placed, 1)
	assert.Equal(t, types.SideLong, gw.placed[0].Side)
	assert.InDelta(t, 0.1, gw.placed[0].Size, 1e-9)
}

func TestTerminalSignalIsNeverRevisited(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionOpen, types.SideLong, 2)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))
	require.Len(t, gw.placed, 1)
	require.Equal(t, types.StatusExecuted, signalStatus(t, signals, id))

	// Second pass sees no pending work.
	require.NoError(t, engine.RunOnce(context.Background()))
	assert.Len(t, gw.placed, 1, "terminal signal must not produce another order")
}

func TestExecutedSignalSendsAlert(t *testing.T) {
	gw := newFakeGateway()
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionOpen, types.SideLong, 2)

	notifier := &recordingNotifier{}
	engine := New(signals, gw, testConfig(), nopLogger{})
	engine.SetNotifier(notifier)
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Equal(t, types.StatusExecuted, signalStatus(t, signals, id))
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "trade", notifier.alerts[0].level)
	assert.Contains(t, notifier.alerts[0].message, "executed")
}

func TestFailedSignalSendsAlert(t *testing.T) {
	gw := newFakeGateway()
	gw.placeErr = fmt.Errorf("venue unavailable")

	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionOpen, types.SideLong, 2)

	notifier := &recordingNotifier{}
	engine := New(signals, gw, testConfig(), nopLogger{})
	engine.SetNotifier(notifier)
	require.NoError(t, engine.RunOnce(context.Background()))

	require.Equal(t, types.StatusFailed, signalStatus(t, signals, id))
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "error", notifier.alerts[0].level)
	assert.Contains(t, notifier.alerts[0].message, "failed")
}

func TestUnknownActionLeftPending(t *testing.T) {
	gw := newFakeGateway()
	signals := memory.NewSignalStore()
	id := insertSignal(t, signals, types.ActionOpen, types.SideLong, 2)

	engine := New(signals, gw, testConfig(), nopLogger{})
	// Feed the dispatcher a signal carrying an action it does not
	// recognize, as a corrupted row would.
	engine.process(context.Background(), &types.Signal{ID: id, Action: "liquidate", Symbol: testSymbol})

	assert.Empty(t, gw.placed)
	assert.Equal(t, types.StatusPending, signalStatus(t, signals, id))
}

func TestSignalsProcessedInArrivalOrder(t *testing.T) {
	gw := newFakeGateway()
	gw.position = 0.5
	gw.statusScript = []statusResult{{status: exchange.OrderFilled}}

	signals := memory.NewSignalStore()
	first := insertSignal(t, signals, types.ActionClose, types.SideShort, 1)
	second := insertSignal(t, signals, types.ActionClose, types.SideShort, 1)

	engine := New(signals, gw, testConfig(), nopLogger{})
	require.NoError(t, engine.RunOnce(context.Background()))

	assert.Equal(t, types.StatusExecuted, signalStatus(t, signals, first))
	assert.Equal(t, types.StatusExecuted, signalStatus(t, signals, second))
	assert.True(t, first < second)
}
