package common

// Daily log cycle slot names.
const (
	CycleBMOScan         = "bmo_scan"
	CycleAMCScan         = "amc_scan"
	CyclePositionUpdate  = "position_update"
	CycleCalendarPreview = "calendar_preview"
)

// Earnings release timing values.
const (
	TimingBMO     = "bmo"
	TimingAMC     = "amc"
	TimingUnknown = "unknown"
)

// Trading modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)
