package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/logger"
	"golang-earnings-trader/pkg/utils"
)

type cycleFixture struct {
	cfg        *config.Config
	positions  *fakePositions
	dailyLog   *fakeDailyLog
	earnings   *fakeEarnings
	marketData *fakeMarketData
	sector     *fakeSector
	execution  *fakeExecution
	svc        *cycleService
}

func newCycleFixture(t *testing.T) *cycleFixture {
	t.Helper()
	f := &cycleFixture{
		cfg:        testConfig(),
		positions:  &fakePositions{},
		dailyLog:   newFakeDailyLog(),
		earnings:   &fakeEarnings{},
		marketData: &fakeMarketData{},
		sector:     &fakeSector{sectorMove: 0.002},
		execution:  &fakeExecution{},
	}
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	f.svc = &cycleService{
		cfg:        f.cfg,
		log:        log,
		positions:  f.positions,
		dailyLog:   f.dailyLog,
		earnings:   f.earnings,
		marketData: f.marketData,
		sector:     f.sector,
		execution:  f.execution,
		now: func() time.Time {
			// A Thursday, so the next trading day is Friday.
			return time.Date(2026, 1, 15, 16, 15, 0, 0, time.UTC)
		},
	}
	return f
}

func passingSurprise() entity.EarningsSurprise {
	return entity.EarningsSurprise{EPSBeatPct: 0.10, RevBeatPct: 0.02}
}

func (f *cycleFixture) seedPassingTicker(ticker string, price, atr float64) {
	if f.earnings.surprises == nil {
		f.earnings.surprises = map[string]entity.EarningsSurprise{}
	}
	f.earnings.surprises[ticker] = passingSurprise()
	if f.marketData.prices == nil {
		f.marketData.prices = map[string]float64{}
		f.marketData.atrs = map[string]float64{}
		f.marketData.moves = map[string]float64{}
		f.marketData.runups = map[string]float64{}
	}
	f.marketData.prices[ticker] = price
	f.marketData.atrs[ticker] = atr
	f.marketData.moves[ticker] = 0.05
	f.marketData.runups[ticker] = 0.04
}

func TestRunAMCScanEvaluatesAndExecutes(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.calendar = []string{"AAPL"}
	f.seedPassingTicker("AAPL", 150.25, 2.5)

	require.NoError(t, f.svc.RunAMCScan(context.Background()))

	require.Len(t, f.execution.signals, 1)
	batch := f.execution.signals[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "AAPL", batch[0].Ticker)
	assert.True(t, batch[0].ShouldEnter)
	require.NotNil(t, batch[0].InitialStop)
	assert.InDelta(t, 146.50, *batch[0].InitialStop, 1e-9)

	logged, ok := f.dailyLog.writes[common.CycleAMCScan]
	require.True(t, ok, "scan results should land in the daily log")
	assert.Len(t, logged.([]entity.EntrySignal), 1)
}

func TestRunScanCalendarFailureAborts(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.calendarErr = errors.New("fmp unavailable")

	err := f.svc.RunAMCScan(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.execution.signals)
	assert.Empty(t, f.dailyLog.writes)
}

func TestRunScanEmptyCalendarLogsEmptyBatch(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.calendar = nil

	require.NoError(t, f.svc.RunBMOScan(context.Background()))

	require.Len(t, f.execution.signals, 1)
	assert.Empty(t, f.execution.signals[0])
	logged, ok := f.dailyLog.writes[common.CycleBMOScan]
	require.True(t, ok)
	assert.Empty(t, logged.([]entity.EntrySignal))
}

func TestRunScanSkipsTickerWithMissingData(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.calendar = []string{"AAPL", "GHOST"}
	f.seedPassingTicker("AAPL", 150.25, 2.5)
	// GHOST has a surprise but no market data, so its fetch fails.
	f.earnings.surprises["GHOST"] = passingSurprise()

	require.NoError(t, f.svc.RunAMCScan(context.Background()))

	require.Len(t, f.execution.signals, 1)
	batch := f.execution.signals[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "AAPL", batch[0].Ticker)
}

func TestRunScanSkipsNonAllowedExchange(t *testing.T) {
	f := newCycleFixture(t)
	f.cfg.Trading.AllowedExchanges = []string{"NASDAQ", "NYSE"}
	f.earnings.calendar = []string{"AAPL", "PINK"}
	f.seedPassingTicker("AAPL", 150.25, 2.5)
	f.seedPassingTicker("PINK", 10.00, 0.5)
	f.sector.exchanges = map[string]string{"AAPL": "NASDAQ", "PINK": "OTC"}

	require.NoError(t, f.svc.RunAMCScan(context.Background()))

	require.Len(t, f.execution.signals, 1)
	batch := f.execution.signals[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "AAPL", batch[0].Ticker)
}

func TestRunScanDailyLogFailureDoesNotBlockExecution(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.calendar = []string{"AAPL"}
	f.seedPassingTicker("AAPL", 150.25, 2.5)
	f.dailyLog.writeErr = errors.New("disk full")

	require.NoError(t, f.svc.RunAMCScan(context.Background()))
	require.Len(t, f.execution.signals, 1)
	require.Len(t, f.execution.signals[0], 1)
}

func TestRunPositionUpdateIncrementsThenEvaluates(t *testing.T) {
	f := newCycleFixture(t)
	f.positions.positions = []entity.Position{
		{Ticker: "NVDA", EntryPrice: 400.00, CurrentStop: 394.00, DayCount: 6, Quantity: 2},
	}
	f.marketData = &fakeMarketData{
		prices: map[string]float64{"NVDA": 410.00},
		atrs:   map[string]float64{"NVDA": 3.0},
	}
	f.svc.marketData = f.marketData

	require.NoError(t, f.svc.RunPositionUpdate(context.Background()))

	// The day count bump persists before evaluation.
	stored, err := f.positions.Load()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 7, stored[0].DayCount)

	require.Len(t, f.execution.actions, 1)
	batch := f.execution.actions[0]
	require.Len(t, batch, 1)
	assert.Equal(t, entity.ActionUpdateStop, batch[0].Action)
	require.NotNil(t, batch[0].NewStop)
	assert.InDelta(t, 405.50, *batch[0].NewStop, 1e-9)

	logged, ok := f.dailyLog.writes[common.CyclePositionUpdate]
	require.True(t, ok)
	result := logged.(positionUpdateResult)
	assert.Len(t, result.Actions, 1)
	assert.Len(t, result.Positions, 1)
}

func TestRunPositionUpdateNoPositionsIsQuiet(t *testing.T) {
	f := newCycleFixture(t)

	require.NoError(t, f.svc.RunPositionUpdate(context.Background()))
	assert.Empty(t, f.execution.actions)
	assert.Empty(t, f.dailyLog.writes)
}

func TestRunPositionUpdateMissingPriceStillEvaluatesBatch(t *testing.T) {
	f := newCycleFixture(t)
	f.positions.positions = []entity.Position{
		{Ticker: "NVDA", EntryPrice: 400.00, CurrentStop: 394.00, DayCount: 2, Quantity: 2},
		{Ticker: "AAPL", EntryPrice: 150.25, CurrentStop: 146.50, DayCount: 2, Quantity: 6},
	}
	f.marketData = &fakeMarketData{
		prices: map[string]float64{"AAPL": 151.00},
		atrs:   map[string]float64{"AAPL": 2.5},
	}
	f.svc.marketData = f.marketData

	require.NoError(t, f.svc.RunPositionUpdate(context.Background()))

	require.Len(t, f.execution.actions, 1)
	batch := f.execution.actions[0]
	require.Len(t, batch, 2)
	byTicker := map[string]entity.PositionAction{}
	for _, act := range batch {
		byTicker[act.Ticker] = act
	}
	assert.Equal(t, entity.ReasonPriceUnavailable, byTicker["NVDA"].Reason)
	assert.Equal(t, entity.ActionHold, byTicker["NVDA"].Action)
	assert.NotEqual(t, entity.ReasonPriceUnavailable, byTicker["AAPL"].Reason)
}

func TestRunCalendarPreviewWritesEntries(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.details = []entity.EarningsCalendarEntry{
		{Ticker: "AMD", Date: "2026-01-16", Timing: common.TimingAMC, EPSEstimate: utils.ToPointer(0.92)},
	}

	require.NoError(t, f.svc.RunCalendarPreview(context.Background()))

	logged, ok := f.dailyLog.writes[common.CycleCalendarPreview]
	require.True(t, ok)
	assert.Len(t, logged.([]entity.EarningsCalendarEntry), 1)
}

func TestRunCalendarPreviewEmptyLeavesSlotUntouched(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.details = nil

	require.NoError(t, f.svc.RunCalendarPreview(context.Background()))
	_, ok := f.dailyLog.writes[common.CycleCalendarPreview]
	assert.False(t, ok, "an empty preview must not overwrite the slot")
}

func TestRunCalendarPreviewFetchFailureAborts(t *testing.T) {
	f := newCycleFixture(t)
	f.earnings.detailsErr = errors.New("fmp unavailable")

	require.Error(t, f.svc.RunCalendarPreview(context.Background()))
	assert.Empty(t, f.dailyLog.writes)
}
