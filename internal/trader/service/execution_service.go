package service

import (
	"context"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/internal/trader/broker"
	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/internal/trader/repository"
	"golang-earnings-trader/pkg/logger"
	"golang-earnings-trader/pkg/telegram"
	"golang-earnings-trader/pkg/utils"
)

// ExecutionService applies the evaluators' verdicts: it places orders,
// mutates the position store, and fires alerts. Order placement and store
// mutation always finalize before any caller-side telemetry write, and a
// failed order never mutates the store for that ticker.
type ExecutionService interface {
	ExecuteSignals(ctx context.Context, signals []entity.EntrySignal)
	ExecuteActions(ctx context.Context, actions []entity.PositionAction, currentPrices map[string]float64)
}

type executionService struct {
	cfg       *config.Config
	log       *logger.Logger
	positions repository.PositionsRepository
	broker    broker.Broker
	notifier  telegram.Notifier
}

// NewExecutionService creates the execution service.
func NewExecutionService(cfg *config.Config, log *logger.Logger, positions repository.PositionsRepository, b broker.Broker, notifier telegram.Notifier) ExecutionService {
	return &executionService{
		cfg:       cfg,
		log:       log,
		positions: positions,
		broker:    b,
		notifier:  notifier,
	}
}

// ExecuteSignals opens a position for every accepted entry signal.
func (s *executionService) ExecuteSignals(ctx context.Context, signals []entity.EntrySignal) {
	for _, sig := range signals {
		if !sig.ShouldEnter {
			s.log.DebugContext(ctx, "Skipping rejected signal",
				logger.StringField("ticker", sig.Ticker),
				logger.Field("filters", sig.Filters))
			continue
		}
		if sig.EntryPrice == nil || sig.InitialStop == nil {
			s.log.ErrorContext(ctx, "Accepted signal missing prices, skipping",
				logger.StringField("ticker", sig.Ticker))
			continue
		}

		price := *sig.EntryPrice
		quantity := int(s.cfg.Trading.PositionSizeUSD / price)
		if quantity < 1 {
			quantity = 1
		}

		result, err := s.broker.Place(ctx, broker.Order{
			Ticker:    sig.Ticker,
			Side:      entity.OrderSideBuy,
			Quantity:  quantity,
			Price:     price,
			StopPrice: *sig.InitialStop,
		})
		if err != nil || !result.Success {
			s.log.ErrorContext(ctx, "Buy order failed, position not opened",
				logger.StringField("ticker", sig.Ticker),
				logger.ErrorField(err),
				logger.StringField("order_error", result.Error))
			continue
		}

		position := entity.Position{
			Ticker:      sig.Ticker,
			EntryPrice:  result.FillPrice,
			CurrentStop: *sig.InitialStop,
			EntryDate:   utils.TimeNowEastern().Format(utils.DateLayout),
			DayCount:    0,
			Quantity:    quantity,
		}
		if err := s.positions.Add(position); err != nil {
			// Duplicate or store failure after a successful fill is an
			// operator problem, not something to mask.
			s.log.ErrorContext(ctx, "Failed to record opened position",
				logger.StringField("ticker", sig.Ticker),
				logger.ErrorField(err))
			continue
		}

		s.log.InfoContext(ctx, "Opened position",
			logger.StringField("ticker", sig.Ticker),
			logger.Float64Field("entry_price", result.FillPrice),
			logger.Float64Field("initial_stop", *sig.InitialStop),
			logger.IntField("quantity", quantity))

		s.notify(telegram.FormatEntryAlert(sig.Ticker, quantity, result.FillPrice, *sig.InitialStop))
	}
}

// ExecuteActions applies sell and stop-update actions to open positions.
// currentPrices supplies the reference fill price for sell orders.
func (s *executionService) ExecuteActions(ctx context.Context, actions []entity.PositionAction, currentPrices map[string]float64) {
	for _, act := range actions {
		switch act.Action {
		case entity.ActionSell:
			s.executeSell(ctx, act, currentPrices[act.Ticker])
		case entity.ActionUpdateStop:
			if act.NewStop == nil {
				s.log.ErrorContext(ctx, "Stop update action missing new stop",
					logger.StringField("ticker", act.Ticker))
				continue
			}
			if err := s.positions.UpdateStop(act.Ticker, *act.NewStop); err != nil {
				s.log.ErrorContext(ctx, "Failed to update stop",
					logger.StringField("ticker", act.Ticker),
					logger.ErrorField(err))
				continue
			}
			s.log.InfoContext(ctx, "Updated trailing stop",
				logger.StringField("ticker", act.Ticker),
				logger.Float64Field("new_stop", *act.NewStop))
		default:
			// Holds carry no side effects.
		}
	}
}

func (s *executionService) executeSell(ctx context.Context, act entity.PositionAction, price float64) {
	quantity := 0
	if positions, err := s.positions.Load(); err == nil {
		for _, p := range positions {
			if p.Ticker == act.Ticker {
				quantity = p.Quantity
				break
			}
		}
	}

	result, err := s.broker.Place(ctx, broker.Order{
		Ticker:   act.Ticker,
		Side:     entity.OrderSideSell,
		Quantity: quantity,
		Price:    price,
	})
	if err != nil || !result.Success {
		s.log.ErrorContext(ctx, "Sell order failed, position kept",
			logger.StringField("ticker", act.Ticker),
			logger.ErrorField(err),
			logger.StringField("order_error", result.Error))
		return
	}

	if err := s.positions.Remove(act.Ticker); err != nil {
		s.log.ErrorContext(ctx, "Failed to remove closed position",
			logger.StringField("ticker", act.Ticker),
			logger.ErrorField(err))
		return
	}

	s.log.InfoContext(ctx, "Closed position",
		logger.StringField("ticker", act.Ticker),
		logger.Float64Field("fill_price", result.FillPrice),
		logger.StringField("reason", act.Reason))

	s.notify(telegram.FormatExitAlert(act.Ticker, quantity, result.FillPrice, act.Reason))
}

// notify fires an alert without letting its failure affect anything else.
func (s *executionService) notify(text string) {
	if err := s.notifier.SendMessage(text); err != nil {
		s.log.Warn("Alert notification failed", logger.ErrorField(err))
	}
}
