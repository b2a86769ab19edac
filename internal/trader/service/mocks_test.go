package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/internal/trader/broker"
	"golang-earnings-trader/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

// fakePositions is an in-memory PositionsRepository with injectable failures.
type fakePositions struct {
	mu        sync.Mutex
	positions []entity.Position
	addErr    error
	loadErr   error
}

func (f *fakePositions) Load() ([]entity.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]entity.Position, len(f.positions))
	copy(out, f.positions)
	return out, nil
}

func (f *fakePositions) Save(positions []entity.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = positions
	return nil
}

func (f *fakePositions) Add(position entity.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.positions = append(f.positions, position)
	return nil
}

func (f *fakePositions) Remove(ticker string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.positions[:0]
	for _, p := range f.positions {
		if p.Ticker != ticker {
			kept = append(kept, p)
		}
	}
	f.positions = kept
	return nil
}

func (f *fakePositions) UpdateStop(ticker string, newStop float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.positions {
		if f.positions[i].Ticker == ticker {
			f.positions[i].CurrentStop = newStop
			return nil
		}
	}
	return errors.New("position not found")
}

func (f *fakePositions) IncrementDayCounts() ([]entity.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.positions {
		f.positions[i].DayCount++
	}
	out := make([]entity.Position, len(f.positions))
	copy(out, f.positions)
	return out, nil
}

type placedOrder struct {
	ticker   string
	side     entity.OrderSide
	quantity int
	price    float64
	stop     float64
}

// fakeBroker records every order and can be told to reject everything.
type fakeBroker struct {
	mu     sync.Mutex
	orders []placedOrder
	reject bool
}

func (f *fakeBroker) Place(_ context.Context, order broker.Order) (entity.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return entity.OrderResult{
			Ticker: order.Ticker,
			Side:   order.Side,
			Error:  "order rejected",
		}, errors.New("order rejected")
	}
	f.orders = append(f.orders, placedOrder{
		ticker:   order.Ticker,
		side:     order.Side,
		quantity: order.Quantity,
		price:    order.Price,
		stop:     order.StopPrice,
	})
	return entity.OrderResult{
		Ticker:    order.Ticker,
		Side:      order.Side,
		Quantity:  order.Quantity,
		FillPrice: order.Price,
		Success:   true,
	}, nil
}

// fakeNotifier records alert texts.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) SendMessage(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, text)
	return nil
}

// fakeDailyLog records cycle writes and can fail on demand.
type fakeDailyLog struct {
	mu       sync.Mutex
	writes   map[string]interface{}
	writeErr error
}

func newFakeDailyLog() *fakeDailyLog {
	return &fakeDailyLog{writes: make(map[string]interface{})}
}

func (f *fakeDailyLog) Read() (entity.DailyLog, error) {
	return entity.DailyLog{}, nil
}

func (f *fakeDailyLog) Write(cycle string, results interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes[cycle] = results
	return nil
}

func (f *fakeDailyLog) Reset() error { return nil }

// fakeEarnings serves canned calendar and surprise data.
type fakeEarnings struct {
	calendar     []string
	calendarErr  error
	details      []entity.EarningsCalendarEntry
	detailsErr   error
	surprises    map[string]entity.EarningsSurprise
	surpriseErrs map[string]error
}

func (f *fakeEarnings) GetSurprise(_ context.Context, ticker, _ string) (entity.EarningsSurprise, error) {
	if err, ok := f.surpriseErrs[ticker]; ok {
		return entity.EarningsSurprise{}, err
	}
	return f.surprises[ticker], nil
}

func (f *fakeEarnings) GetCalendar(_ context.Context, _, _ string) ([]string, error) {
	return f.calendar, f.calendarErr
}

func (f *fakeEarnings) GetCalendarDetails(_ context.Context, _ string) ([]entity.EarningsCalendarEntry, error) {
	return f.details, f.detailsErr
}

// fakeMarketData serves canned per-ticker numbers; a ticker missing from a
// map yields an error for that call.
type fakeMarketData struct {
	prices  map[string]float64
	atrs    map[string]float64
	moves   map[string]float64
	runups  map[string]float64
	sectors map[string]float64
}

func (f *fakeMarketData) lookup(m map[string]float64, ticker string) (float64, error) {
	v, ok := m[ticker]
	if !ok {
		return 0, errors.New("no data for " + ticker)
	}
	return v, nil
}

func (f *fakeMarketData) GetCurrentPrice(_ context.Context, ticker string) (float64, error) {
	return f.lookup(f.prices, ticker)
}

func (f *fakeMarketData) GetATR(_ context.Context, ticker string, _ int) (float64, error) {
	return f.lookup(f.atrs, ticker)
}

func (f *fakeMarketData) GetAfterHoursMove(_ context.Context, ticker, _ string) (float64, error) {
	return f.lookup(f.moves, ticker)
}

func (f *fakeMarketData) GetPremarketMove(_ context.Context, ticker, _ string) (float64, error) {
	return f.lookup(f.moves, ticker)
}

func (f *fakeMarketData) GetPriorRunup(_ context.Context, ticker string, _ int) (float64, error) {
	return f.lookup(f.runups, ticker)
}

func (f *fakeMarketData) GetDailyMove(_ context.Context, ticker, _ string) (float64, error) {
	return f.lookup(f.sectors, ticker)
}

// fakeSector maps every ticker to a fixed exchange and sector move.
type fakeSector struct {
	exchanges  map[string]string
	sectorMove float64
}

func (f *fakeSector) GetSectorETF(_ context.Context, _ string) string { return "SPY" }

func (f *fakeSector) GetSectorMove(_ context.Context, _, _ string) (float64, error) {
	return f.sectorMove, nil
}

func (f *fakeSector) GetExchange(_ context.Context, ticker string) string {
	return f.exchanges[ticker]
}

// fakeExecution records the batches handed to it.
type fakeExecution struct {
	mu      sync.Mutex
	signals [][]entity.EntrySignal
	actions [][]entity.PositionAction
}

func (f *fakeExecution) ExecuteSignals(_ context.Context, signals []entity.EntrySignal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signals)
}

func (f *fakeExecution) ExecuteActions(_ context.Context, actions []entity.PositionAction, _ map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, actions)
}
