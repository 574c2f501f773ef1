package strategy_test

import (
	"context"
	"testing"
	"time"

	"position-monitor/config"
	"position-monitor/internal/dto"
	"position-monitor/internal/model"
	"position-monitor/internal/service"
	"position-monitor/internal/strategy"
	"position-monitor/pkg/logger"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longPosition(id uint, symbol string) model.Position {
	return model.Position{
		ID:         id,
		Name:       symbol,
		Direction:  string(dto.DirectionLong),
		Percent:    50,
		Leverage:   10,
		EntryPrice: 100,
		TakeProfit: 120,
		StopLoss:   90,
		IsActive:   true,
	}
}

func newMonitor(cfg config.Monitor, store *fakeStore, quotes *fakeQuotes, notifier *fakeNotifier) *strategy.PositionMonitorStrategy {
	return strategy.NewPositionMonitorStrategy(cfg, logger.NewNop(), store, quotes, notifier, service.NewTradingService())
}

var defaultMonitorCfg = config.Monitor{MaxConcurrentFetch: 5, ConditionalClose: true}

func decodeOutput(t *testing.T, result strategy.JobResult) dto.MonitorCycleOutput {
	t.Helper()
	var out dto.MonitorCycleOutput
	require.NoError(t, jsoniter.Unmarshal([]byte(result.Output), &out))
	return out
}

func TestPositionMonitor_ClosesTakeProfitEndToEnd(t *testing.T) {
	store := newFakeStore(longPosition(1, "BTCUSDT"))
	quotes := newFakeQuotes(map[string]float64{"BTCUSDT": 125})
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, quotes, notifier)

	result, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_SUCCESS), result.ExitCode)

	p, err := store.GetPosition(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	require.NotNil(t, p.CloseReason)
	assert.Equal(t, "tp", *p.CloseReason)
	require.NotNil(t, p.FinalPnL)
	assert.Equal(t, 125.0, *p.FinalPnL)
	assert.NotNil(t, p.ClosedAt)

	require.Equal(t, 1, notifier.count())
	event := notifier.events[0]
	assert.Equal(t, uint(1), event.PositionID)
	assert.Equal(t, dto.CloseReasonTakeProfit, event.Reason)
	assert.Equal(t, 125.0, event.Price)
	assert.Equal(t, 125.0, event.FinalPnL)

	out := decodeOutput(t, result)
	assert.Equal(t, uint64(1), out.Cycle)
	require.Len(t, out.Closed, 1)
	assert.Equal(t, dto.CloseReasonTakeProfit, out.Closed[0].Reason)

	// The next cycle finds nothing active and sends nothing.
	result, err = monitor.Execute(context.Background(), strategy.JobRun{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_SKIPPED), result.ExitCode)
	assert.Equal(t, 1, notifier.count())
}

func TestPositionMonitor_StopLoss(t *testing.T) {
	short := model.Position{
		ID: 3, Name: "ETHUSDT", Direction: string(dto.DirectionShort),
		Percent: 100, Leverage: 5, EntryPrice: 100, TakeProfit: 80, StopLoss: 110, IsActive: true,
	}
	store := newFakeStore(short)
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, newFakeQuotes(map[string]float64{"ETHUSDT": 110}), notifier)

	_, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, dto.CloseReasonStopLoss, notifier.events[0].Reason)
	assert.Equal(t, -50.0, notifier.events[0].FinalPnL)
}

func TestPositionMonitor_ProcessPositionIsIdempotent(t *testing.T) {
	closed := longPosition(1, "BTCUSDT")
	closed.IsActive = false
	store := newFakeStore(closed)
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, newFakeQuotes(nil), notifier)
	quote := dto.QuoteResult{Symbol: "BTCUSDT", Price: 125, Found: true}

	for i := 0; i < 2; i++ {
		event, err := monitor.ProcessPosition(context.Background(), closed, quote)
		require.NoError(t, err)
		assert.Nil(t, event)
	}
	assert.Zero(t, store.closeCalls)
	assert.Zero(t, notifier.count())

	// A stale active snapshot of an already closed row is not closed again.
	stale := longPosition(2, "ETHUSDT")
	store = newFakeStore(stale)
	monitor = newMonitor(defaultMonitorCfg, store, newFakeQuotes(nil), notifier)
	first, err := monitor.ProcessPosition(context.Background(), stale, quote)
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := monitor.ProcessPosition(context.Background(), stale, quote)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, 1, notifier.count())
}

func TestPositionMonitor_QuoteFailureIsolatedToSymbol(t *testing.T) {
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "DOGEUSDT"}
	var positions []model.Position
	prices := map[string]float64{}
	for i, s := range symbols {
		positions = append(positions, longPosition(uint(i+1), s))
		prices[s] = 130
	}

	store := newFakeStore(positions...)
	quotes := newFakeQuotes(prices)
	quotes.errs["BTCUSDT"] = errBoom
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, quotes, notifier)

	result, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_PARTIAL_SUCCESS), result.ExitCode)
	assert.Equal(t, 4, notifier.count())

	btc, err := store.GetPosition(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, btc.IsActive)

	for id := uint(2); id <= 5; id++ {
		p, err := store.GetPosition(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, p.IsActive, "position %d", id)
	}

	out := decodeOutput(t, result)
	assert.Equal(t, 4, out.QuotesFound)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "BTCUSDT", out.Errors[0].Symbol)
}

func TestPositionMonitor_StoreFailureDoesNotStopCycle(t *testing.T) {
	store := newFakeStore(longPosition(1, "BTCUSDT"), longPosition(2, "ETHUSDT"))
	store.closeErr[1] = errBoom
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, newFakeQuotes(map[string]float64{"BTCUSDT": 125, "ETHUSDT": 125}), notifier)

	result, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_PARTIAL_SUCCESS), result.ExitCode)

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, uint(2), notifier.events[0].PositionID)

	out := decodeOutput(t, result)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, uint(1), out.Errors[0].PositionID)
	assert.Contains(t, out.Errors[0].Error, dto.ErrStoreWriteFailed.Error())

	_, err = monitor.ProcessPosition(context.Background(), longPosition(1, "BTCUSDT"), dto.QuoteResult{Symbol: "BTCUSDT", Price: 125, Found: true})
	assert.ErrorIs(t, err, dto.ErrStoreWriteFailed)
}

func TestPositionMonitor_InvalidDataIsSkipped(t *testing.T) {
	broken := longPosition(1, "BTCUSDT")
	broken.Leverage = 0
	store := newFakeStore(broken, longPosition(2, "ETHUSDT"))
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, newFakeQuotes(map[string]float64{"BTCUSDT": 125, "ETHUSDT": 125}), notifier)

	_, err := monitor.ProcessPosition(context.Background(), broken, dto.QuoteResult{Symbol: "BTCUSDT", Price: 125, Found: true})
	assert.ErrorIs(t, err, dto.ErrInvalidInput)

	result, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_PARTIAL_SUCCESS), result.ExitCode)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, uint(2), notifier.events[0].PositionID)

	p, err := store.GetPosition(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, p.IsActive)
}

func TestPositionMonitor_NoThresholdCrossed(t *testing.T) {
	store := newFakeStore(longPosition(1, "BTCUSDT"))
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, newFakeQuotes(map[string]float64{"BTCUSDT": 105}), notifier)

	result, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_SUCCESS), result.ExitCode)
	assert.Zero(t, notifier.count())
	assert.Zero(t, store.closeCalls)
}

func TestPositionMonitor_FetchesEachSymbolOnce(t *testing.T) {
	store := newFakeStore(longPosition(1, "BTCUSDT"), longPosition(2, "BTCUSDT"), longPosition(3, "ETHUSDT"))
	quotes := newFakeQuotes(map[string]float64{"BTCUSDT": 125, "ETHUSDT": 100})
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, quotes, notifier)

	_, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, quotes.calls["BTCUSDT"])
	assert.Equal(t, 1, quotes.calls["ETHUSDT"])
	assert.Equal(t, 2, notifier.count())
}

func TestPositionMonitor_FetchPoolIsBounded(t *testing.T) {
	quotes := newFakeQuotes(map[string]float64{})
	quotes.delay = 20 * time.Millisecond
	monitor := newMonitor(config.Monitor{MaxConcurrentFetch: 2, ConditionalClose: true}, newFakeStore(), quotes, &fakeNotifier{})

	results := monitor.FetchQuotes(context.Background(), []string{"A", "B", "C", "D", "E", "F"})
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, quotes.maxSeen, 2)
	for _, q := range results {
		assert.False(t, q.Found)
	}
}

func TestPositionMonitor_UnconditionalClose(t *testing.T) {
	store := newFakeStore(longPosition(1, "BTCUSDT"))
	notifier := &fakeNotifier{}
	monitor := newMonitor(config.Monitor{MaxConcurrentFetch: 1}, store, newFakeQuotes(map[string]float64{"BTCUSDT": 80}), notifier)

	_, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, store.updateCalls)
	assert.Zero(t, store.closeCalls)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, dto.CloseReasonStopLoss, notifier.events[0].Reason)
}

func TestPositionMonitor_ListFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errBoom
	monitor := newMonitor(defaultMonitorCfg, store, newFakeQuotes(nil), &fakeNotifier{})

	result, err := monitor.Execute(context.Background(), strategy.JobRun{ID: 1})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_FAILED), result.ExitCode)
}

func TestPositionMonitor_ExpiredCycleReportsUnevaluatedPositions(t *testing.T) {
	store := newFakeStore(longPosition(1, "BTCUSDT"), longPosition(2, "ETHUSDT"))
	notifier := &fakeNotifier{}
	monitor := newMonitor(defaultMonitorCfg, store, newFakeQuotes(map[string]float64{"BTCUSDT": 125, "ETHUSDT": 100}), notifier)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := monitor.Execute(ctx, strategy.JobRun{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(strategy.JOB_EXIT_CODE_PARTIAL_SUCCESS), result.ExitCode)

	out := decodeOutput(t, result)
	assert.Empty(t, out.Closed)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, uint(1), out.Errors[0].PositionID)
	assert.Contains(t, out.Errors[0].Error, "not evaluated: context canceled")
	assert.Equal(t, uint(2), out.Errors[1].PositionID)

	position, err := store.GetPosition(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, position.IsActive)
	assert.Zero(t, notifier.count())
}
