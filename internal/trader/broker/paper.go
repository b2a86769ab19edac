package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/logger"
)

// paperBroker simulates immediate fills at the requested price and appends
// every result to a JSONL trades log. The log is append-only history, unlike
// the snapshot-replaced position store.
type paperBroker struct {
	tradesLogPath string
	log           *logger.Logger
}

// NewPaperBroker creates the simulated broker used in paper mode.
func NewPaperBroker(tradesLogPath string, log *logger.Logger) Broker {
	return &paperBroker{tradesLogPath: tradesLogPath, log: log}
}

// Place simulates a fill and records it.
func (b *paperBroker) Place(_ context.Context, order Order) (entity.OrderResult, error) {
	result := entity.OrderResult{
		Ticker:    order.Ticker,
		Side:      order.Side,
		Quantity:  order.Quantity,
		FillPrice: order.Price,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Mode:      common.ModePaper,
		Success:   true,
	}

	b.log.Info("[PAPER] order filled",
		logger.StringField("ticker", order.Ticker),
		logger.StringField("side", string(order.Side)),
		logger.IntField("quantity", order.Quantity),
		logger.Float64Field("fill_price", order.Price))

	if err := b.appendTradeLog(result); err != nil {
		// The fill already happened as far as the simulation is concerned;
		// a logging failure is reported but does not fail the order.
		b.log.Error("Failed to append trade log", logger.ErrorField(err))
	}
	return result, nil
}

func (b *paperBroker) appendTradeLog(result entity.OrderResult) error {
	if err := os.MkdirAll(filepath.Dir(b.tradesLogPath), 0o755); err != nil {
		return fmt.Errorf("create trades log directory: %w", err)
	}

	f, err := os.OpenFile(b.tradesLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trades log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode trade log entry: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write trade log entry: %w", err)
	}
	return nil
}
