package broker

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/logger"
)

// alpacaBroker places real orders through the Alpaca trading API. Entries are
// bracket market orders carrying the initial stop so the venue enforces the
// protective stop even if this process dies.
type alpacaBroker struct {
	client *alpaca.Client
	log    *logger.Logger
}

// NewAlpacaBroker creates the live broker.
func NewAlpacaBroker(cfg *config.Alpaca, log *logger.Logger) Broker {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return &alpacaBroker{client: client, log: log}
}

// buildOrderRequest maps an order onto the Alpaca request shape. Buys with a
// protective stop become OTO orders so the venue holds the stop leg.
func buildOrderRequest(order Order) alpaca.PlaceOrderRequest {
	qty := decimal.NewFromInt(int64(order.Quantity))
	req := alpaca.PlaceOrderRequest{
		Symbol:      order.Ticker,
		Qty:         &qty,
		Side:        alpaca.Side(order.Side),
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	}

	if order.Side == entity.OrderSideBuy && order.StopPrice > 0 {
		stop := decimal.NewFromFloat(math.Round(order.StopPrice*100) / 100)
		req.OrderClass = alpaca.OTO
		req.StopLoss = &alpaca.StopLoss{StopPrice: &stop}
	}
	return req
}

// Place submits a market order and reports the fill.
func (b *alpacaBroker) Place(_ context.Context, order Order) (entity.OrderResult, error) {
	result := entity.OrderResult{
		Ticker:    order.Ticker,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Mode:      common.ModeLive,
	}

	placed, err := b.client.PlaceOrder(buildOrderRequest(order))
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("alpaca place order %s %s: %w", order.Side, order.Ticker, err)
	}

	result.Success = true
	result.FillPrice = order.Price
	if placed.FilledAvgPrice != nil {
		result.FillPrice, _ = placed.FilledAvgPrice.Float64()
	}

	b.log.Info("Alpaca order accepted",
		logger.StringField("ticker", order.Ticker),
		logger.StringField("side", string(order.Side)),
		logger.StringField("order_id", placed.ID),
		logger.StringField("status", string(placed.Status)))
	return result, nil
}
