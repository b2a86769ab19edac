// Package broker holds the order placement collaborators. The core treats
// any non-success result as not having mutated position state.
package broker

import (
	"context"

	"golang-earnings-trader/internal/entity"
)

// Order is a request to buy or sell a quantity of shares. Price is the
// reference price for the fill; for entries, StopPrice carries the initial
// protective stop so brokers that support bracket orders can attach it.
type Order struct {
	Ticker    string
	Side      entity.OrderSide
	Quantity  int
	Price     float64
	StopPrice float64
}

// Broker places orders against a paper or live venue.
type Broker interface {
	Place(ctx context.Context, order Order) (entity.OrderResult, error)
}
