package entity

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderResult is the outcome of one order placement. A non-success result
// must never mutate position state for that ticker.
type OrderResult struct {
	Ticker    string    `json:"ticker"`
	Side      OrderSide `json:"side"`
	Quantity  int       `json:"quantity"`
	FillPrice float64   `json:"fill_price"`
	Timestamp string    `json:"timestamp"` // ISO 8601 UTC
	Mode      string    `json:"mode"`      // paper or live
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}
