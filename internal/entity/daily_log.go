package entity

import "time"

// CycleResult is one cycle's accumulated output for the day.
type CycleResult struct {
	Timestamp time.Time   `json:"timestamp"`
	Results   interface{} `json:"results"`
}

// DailyLog is a single day's accumulated cycle outputs, keyed by cycle name.
// A slot absent from Cycles is pending. The log is display-only telemetry and
// never feeds back into trading decisions.
type DailyLog struct {
	Date   string                 `json:"date"`
	Cycles map[string]CycleResult `json:"cycles"`
}
