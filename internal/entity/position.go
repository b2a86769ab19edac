package entity

// Position is an open trade. At most one open position exists per ticker,
// and CurrentStop never decreases over the life of the position.
type Position struct {
	Ticker      string  `json:"ticker"`
	EntryPrice  float64 `json:"entry_price"`
	CurrentStop float64 `json:"current_stop"`
	EntryDate   string  `json:"entry_date"` // YYYY-MM-DD
	DayCount    int     `json:"day_count"`  // trading-day cycles survived
	Quantity    int     `json:"quantity"`   // shares, set at buy time
}
