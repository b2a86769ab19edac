package entity

// EarningsSurprise holds a ticker's most recent reported earnings against
// estimates. Beat percentages are fractional: 0.08 means an 8% beat.
// GuidanceWeak is nil when the report carries no guidance data.
type EarningsSurprise struct {
	Ticker       string  `json:"ticker"`
	EPSActual    float64 `json:"eps_actual"`
	EPSEstimate  float64 `json:"eps_estimate"`
	EPSBeatPct   float64 `json:"eps_beat_pct"`
	RevActual    float64 `json:"rev_actual"`
	RevEstimate  float64 `json:"rev_estimate"`
	RevBeatPct   float64 `json:"rev_beat_pct"`
	GuidanceWeak *bool   `json:"guidance_weak,omitempty"`
}

// EarningsCalendarEntry is one row of an earnings calendar for a date.
type EarningsCalendarEntry struct {
	Ticker      string   `json:"ticker"`
	Date        string   `json:"date"`
	Timing      string   `json:"timing"` // bmo, amc, or unknown
	EPSEstimate *float64 `json:"eps_estimate,omitempty"`
	RevEstimate *float64 `json:"rev_estimate,omitempty"`
}
