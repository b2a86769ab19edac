package entity

// Entry filter names, in evaluation order.
const (
	FilterEPSBeat    = "eps_beat"
	FilterRevBeat    = "rev_beat"
	FilterAHMove     = "ah_move"
	FilterPriorRunup = "prior_runup"
	FilterSectorETF  = "sector_etf"
	FilterGuidance   = "guidance"
	FilterCapacity   = "capacity"
	FilterATRValid   = "atr_valid"
)

// FilterResult records one filter's verdict. A slice of these preserves
// evaluation order, which a map would not.
type FilterResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// EntrySignal is the verdict for a single candidate ticker. Filters always
// contains every filter regardless of which ones failed, so a dashboard can
// show the full breakdown. EntryPrice and InitialStop are set only when
// ShouldEnter is true.
type EntrySignal struct {
	Ticker      string         `json:"ticker"`
	ShouldEnter bool           `json:"should_enter"`
	Filters     []FilterResult `json:"filters"`
	EntryPrice  *float64       `json:"entry_price,omitempty"`
	InitialStop *float64       `json:"initial_stop,omitempty"`
}

// FilterPassed reports whether the named filter passed. Unknown names report false.
func (s EntrySignal) FilterPassed(name string) bool {
	for _, f := range s.Filters {
		if f.Name == name {
			return f.Passed
		}
	}
	return false
}

// ActionType enumerates the verdicts for an open position.
type ActionType string

const (
	ActionHold       ActionType = "hold"
	ActionSell       ActionType = "sell"
	ActionUpdateStop ActionType = "update_stop"
)

// Position action reason codes.
const (
	ReasonStopHit             = "stop_hit"
	ReasonMaxDaysReached      = "max_days_reached"
	ReasonTrailingStopUpdated = "trailing_stop_updated"
	ReasonPriceUnavailable    = "price_unavailable"
	ReasonNoAction            = "no_action"
)

// PositionAction is the verdict for a single open position. NewStop is set
// only when Action is ActionUpdateStop; Reason is always set.
type PositionAction struct {
	Ticker  string     `json:"ticker"`
	Action  ActionType `json:"action"`
	NewStop *float64   `json:"new_stop,omitempty"`
	Reason  string     `json:"reason"`
}
