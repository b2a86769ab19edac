package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/internal/trader/decision"
	"golang-earnings-trader/internal/trader/repository"
	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/logger"
	"golang-earnings-trader/pkg/utils"
)

// CycleService runs the four daily cycles. Each invocation is discrete and
// non-reentrant; the scheduler guarantees cycles never overlap. Within every
// cycle, order placement and store mutation finalize before the daily log
// write, and a daily log failure never rolls back or blocks them.
type CycleService interface {
	RunBMOScan(ctx context.Context) error
	RunAMCScan(ctx context.Context) error
	RunPositionUpdate(ctx context.Context) error
	RunCalendarPreview(ctx context.Context) error
}

type cycleService struct {
	cfg        *config.Config
	log        *logger.Logger
	positions  repository.PositionsRepository
	dailyLog   repository.DailyLogRepository
	earnings   repository.EarningsRepository
	marketData repository.MarketDataRepository
	sector     repository.SectorRepository
	execution  ExecutionService
	now        func() time.Time
}

// NewCycleService creates the cycle orchestrator.
func NewCycleService(
	cfg *config.Config,
	log *logger.Logger,
	positions repository.PositionsRepository,
	dailyLog repository.DailyLogRepository,
	earnings repository.EarningsRepository,
	marketData repository.MarketDataRepository,
	sector repository.SectorRepository,
	execution ExecutionService,
) CycleService {
	return &cycleService{
		cfg:        cfg,
		log:        log,
		positions:  positions,
		dailyLog:   dailyLog,
		earnings:   earnings,
		marketData: marketData,
		sector:     sector,
		execution:  execution,
		now:        utils.TimeNowEastern,
	}
}

// RunBMOScan scans tickers reporting before today's open, using the
// pre-market move as the reaction input.
func (s *cycleService) RunBMOScan(ctx context.Context) error {
	return s.runScan(ctx, common.CycleBMOScan, common.TimingBMO)
}

// RunAMCScan scans tickers reporting after today's close, using the
// after-hours move as the reaction input.
func (s *cycleService) RunAMCScan(ctx context.Context) error {
	return s.runScan(ctx, common.CycleAMCScan, common.TimingAMC)
}

func (s *cycleService) runScan(ctx context.Context, cycle, timing string) error {
	today := s.now().Format(utils.DateLayout)
	s.log.InfoContext(ctx, "Starting scan cycle",
		logger.StringField("cycle", cycle),
		logger.StringField("date", today))

	tickers, err := s.earnings.GetCalendar(ctx, today, timing)
	if err != nil {
		return fmt.Errorf("fetch earnings calendar: %w", err)
	}

	openPositions, err := s.positions.Load()
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	inputs := s.gatherEntryInputs(ctx, tickers, today, timing, openPositions)

	signals := make([]entity.EntrySignal, 0, len(inputs))
	for _, in := range inputs {
		sig := decision.EvaluateEntry(in, &s.cfg.Trading)
		signals = append(signals, sig)
		s.log.InfoContext(ctx, "Evaluated entry signal",
			logger.StringField("ticker", sig.Ticker),
			logger.BoolField("should_enter", sig.ShouldEnter),
			logger.Field("filters", sig.Filters))
	}

	s.execution.ExecuteSignals(ctx, signals)

	// Telemetry last, best-effort: a log failure must not disturb the
	// trading actions already applied.
	if err := s.dailyLog.Write(cycle, signals); err != nil {
		s.log.Warn("Failed to persist scan results to daily log",
			logger.StringField("cycle", cycle), logger.ErrorField(err))
	}
	return nil
}

// gatherEntryInputs fetches per-ticker inputs on a bounded worker pool. The
// fetches are independent and read-only; aggregation happens back on the
// calling goroutine. A ticker whose data cannot be gathered is skipped, never
// fatal to the batch.
func (s *cycleService) gatherEntryInputs(ctx context.Context, tickers []string, date, timing string, openPositions []entity.Position) []decision.EntryInput {
	results := make([]*decision.EntryInput, len(tickers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Scan.MaxConcurrentFetches)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		wg.Add(1)
		sem <- struct{}{}
		utils.GoSafe(func() {
			defer wg.Done()
			defer func() { <-sem }()
			if in, ok := s.gatherEntryInput(ctx, ticker, date, timing, openPositions); ok {
				results[i] = &in
			}
		})
	}
	wg.Wait()

	inputs := make([]decision.EntryInput, 0, len(tickers))
	for _, in := range results {
		if in != nil {
			inputs = append(inputs, *in)
		}
	}
	return inputs
}

func (s *cycleService) gatherEntryInput(ctx context.Context, ticker, date, timing string, openPositions []entity.Position) (decision.EntryInput, bool) {
	if len(s.cfg.Trading.AllowedExchanges) > 0 {
		exchange := s.sector.GetExchange(ctx, ticker)
		if !contains(s.cfg.Trading.AllowedExchanges, exchange) {
			s.log.DebugContext(ctx, "Skipping ticker on non-allowed exchange",
				logger.StringField("ticker", ticker),
				logger.StringField("exchange", exchange))
			return decision.EntryInput{}, false
		}
	}

	surprise, err := s.earnings.GetSurprise(ctx, ticker, date)
	if err != nil {
		if errors.Is(err, repository.ErrNoEarningsData) {
			s.log.DebugContext(ctx, "No earnings data, skipping ticker",
				logger.StringField("ticker", ticker))
		} else {
			s.log.ErrorContext(ctx, "Failed to fetch earnings surprise",
				logger.StringField("ticker", ticker), logger.ErrorField(err))
		}
		return decision.EntryInput{}, false
	}

	var move float64
	if timing == common.TimingBMO {
		move, err = s.marketData.GetPremarketMove(ctx, ticker, date)
	} else {
		move, err = s.marketData.GetAfterHoursMove(ctx, ticker, date)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch reaction move",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
		return decision.EntryInput{}, false
	}

	priorRunup, err := s.marketData.GetPriorRunup(ctx, ticker, s.cfg.Trading.LookbackDays)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch prior run-up",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
		return decision.EntryInput{}, false
	}

	sectorMove, err := s.sector.GetSectorMove(ctx, ticker, date)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch sector move",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
		return decision.EntryInput{}, false
	}

	atr, err := s.marketData.GetATR(ctx, ticker, s.cfg.Trading.ATRPeriod)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch ATR",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
		return decision.EntryInput{}, false
	}

	price, err := s.marketData.GetCurrentPrice(ctx, ticker)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to fetch current price",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
		return decision.EntryInput{}, false
	}

	return decision.EntryInput{
		Ticker:        ticker,
		Surprise:      surprise,
		AHMove:        move,
		PriorRunup:    priorRunup,
		SectorMove:    sectorMove,
		ATR:           atr,
		CurrentPrice:  price,
		OpenPositions: openPositions,
	}, true
}

// positionUpdateResult is the daily log payload for the update cycle: the
// action batch plus the post-execution position snapshot for display.
type positionUpdateResult struct {
	Actions   []entity.PositionAction `json:"actions"`
	Positions []entity.Position       `json:"positions"`
}

// RunPositionUpdate evaluates every open position and applies the resulting
// sells and stop updates.
func (s *cycleService) RunPositionUpdate(ctx context.Context) error {
	s.log.InfoContext(ctx, "Starting position update cycle")

	// Day counts are bumped and persisted before evaluation so a crash
	// mid-cycle never double-counts a day.
	positions, err := s.positions.IncrementDayCounts()
	if err != nil {
		return fmt.Errorf("increment day counts: %w", err)
	}
	if len(positions) == 0 {
		s.log.InfoContext(ctx, "No open positions to manage")
		return nil
	}

	prices, atrs := s.gatherPositionData(ctx, positions)

	actions := decision.EvaluatePositions(positions, prices, atrs, &s.cfg.Trading)
	for _, act := range actions {
		s.log.InfoContext(ctx, "Evaluated position action",
			logger.StringField("ticker", act.Ticker),
			logger.StringField("action", string(act.Action)),
			logger.StringField("reason", act.Reason))
	}

	s.execution.ExecuteActions(ctx, actions, prices)

	remaining, err := s.positions.Load()
	if err != nil {
		s.log.Warn("Failed to load positions for daily log snapshot", logger.ErrorField(err))
	}
	if err := s.dailyLog.Write(common.CyclePositionUpdate, positionUpdateResult{
		Actions:   actions,
		Positions: remaining,
	}); err != nil {
		s.log.Warn("Failed to persist position update to daily log", logger.ErrorField(err))
	}
	return nil
}

// gatherPositionData fetches current price and ATR for every open position
// on a bounded worker pool. A failed ticker is simply absent from the maps,
// which the evaluator turns into a hold with ReasonPriceUnavailable.
func (s *cycleService) gatherPositionData(ctx context.Context, positions []entity.Position) (map[string]float64, map[string]float64) {
	type tickerData struct {
		price, atr float64
		ok         bool
		atrOK      bool
	}
	results := make([]tickerData, len(positions))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.Scan.MaxConcurrentFetches)
	for i, pos := range positions {
		i, ticker := i, pos.Ticker
		wg.Add(1)
		sem <- struct{}{}
		utils.GoSafe(func() {
			defer wg.Done()
			defer func() { <-sem }()

			price, err := s.marketData.GetCurrentPrice(ctx, ticker)
			if err != nil {
				s.log.ErrorContext(ctx, "Failed to fetch price for position",
					logger.StringField("ticker", ticker), logger.ErrorField(err))
				return
			}
			results[i] = tickerData{price: price, ok: true}

			atr, err := s.marketData.GetATR(ctx, ticker, s.cfg.Trading.ATRPeriod)
			if err != nil {
				s.log.ErrorContext(ctx, "Failed to fetch ATR for position",
					logger.StringField("ticker", ticker), logger.ErrorField(err))
				return
			}
			results[i].atr = atr
			results[i].atrOK = true
		})
	}
	wg.Wait()

	prices := make(map[string]float64, len(positions))
	atrs := make(map[string]float64, len(positions))
	for i, pos := range positions {
		if results[i].ok {
			prices[pos.Ticker] = results[i].price
		}
		if results[i].atrOK {
			atrs[pos.Ticker] = results[i].atr
		}
	}
	return prices, atrs
}

// RunCalendarPreview records the tickers reporting the next trading day. An
// empty calendar leaves the preview slot in its prior state rather than
// overwriting it with an empty result.
func (s *cycleService) RunCalendarPreview(ctx context.Context) error {
	nextDay := utils.NextTradingDay(s.now()).Format(utils.DateLayout)
	s.log.InfoContext(ctx, "Starting calendar preview cycle",
		logger.StringField("date", nextDay))

	entries, err := s.earnings.GetCalendarDetails(ctx, nextDay)
	if err != nil {
		return fmt.Errorf("fetch calendar details: %w", err)
	}
	if len(entries) == 0 {
		s.log.InfoContext(ctx, "No earnings scheduled for next trading day, preview left untouched")
		return nil
	}

	if err := s.dailyLog.Write(common.CycleCalendarPreview, entries); err != nil {
		s.log.Warn("Failed to persist calendar preview to daily log", logger.ErrorField(err))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
