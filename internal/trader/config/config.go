package config

import (
	"fmt"

	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/config"
)

// Trading holds the entry filter thresholds and position management limits.
// It is built once at startup and passed by reference into every evaluator
// call; nothing mutates it after Load.
type Trading struct {
	Mode              string   `mapstructure:"mode"`
	MinEPSBeatPct     float64  `mapstructure:"min_eps_beat_pct"`
	MinAHMovePct      float64  `mapstructure:"min_ah_move_pct"`
	MaxPriorRunupPct  float64  `mapstructure:"max_prior_runup_pct"`
	SectorETFMin      float64  `mapstructure:"sector_etf_min"`
	ATRStopMultiplier float64  `mapstructure:"atr_stop_multiplier"`
	HoldDays          int      `mapstructure:"hold_days"`
	MaxPositions      int      `mapstructure:"max_positions"`
	LookbackDays      int      `mapstructure:"lookback_days"`
	ATRPeriod         int      `mapstructure:"atr_period"`
	PositionSizeUSD   float64  `mapstructure:"position_size_usd"`
	AllowedExchanges  []string `mapstructure:"allowed_exchanges"`
}

// Schedule holds the cron specs for the four daily cycles, evaluated in the
// exchange time zone.
type Schedule struct {
	TimeZone        string `mapstructure:"time_zone"`
	BMOScan         string `mapstructure:"bmo_scan"`
	AMCScan         string `mapstructure:"amc_scan"`
	PositionUpdate  string `mapstructure:"position_update"`
	CalendarPreview string `mapstructure:"calendar_preview"`
}

// Store holds the file paths for persisted state.
type Store struct {
	PositionsFile string `mapstructure:"positions_file"`
	DailyLogFile  string `mapstructure:"daily_log_file"`
	TradesLogFile string `mapstructure:"trades_log_file"`
}

// FMP holds the configuration for the Financial Modeling Prep API.
type FMP struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// MarketData holds the configuration for the chart data API.
type MarketData struct {
	BaseURL             string `mapstructure:"base_url"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Alpaca holds the configuration for the Alpaca broker.
type Alpaca struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Scan holds scan cycle tuning knobs.
type Scan struct {
	MaxConcurrentFetches int `mapstructure:"max_concurrent_fetches"`
}

// Config holds the full configuration for the trader service.
type Config struct {
	App        config.App    `mapstructure:"app"`
	Logger     config.Logger `mapstructure:"logger"`
	Trading    Trading       `mapstructure:"trading"`
	Schedule   Schedule      `mapstructure:"schedule"`
	Store      Store         `mapstructure:"store"`
	FMP        FMP           `mapstructure:"fmp"`
	MarketData MarketData    `mapstructure:"market_data"`
	Alpaca     Alpaca        `mapstructure:"alpaca"`
	Telegram   Telegram      `mapstructure:"telegram"`
	Scan       Scan          `mapstructure:"scan"`
}

// Load loads the trader configuration from the given path and validates it.
// Validation failures here are the only fatal errors in the system; nothing
// encountered mid-cycle is allowed to kill the process.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the required thresholds and schedule slots.
func (c *Config) Validate() error {
	t := c.Trading
	switch {
	case t.Mode != common.ModePaper && t.Mode != common.ModeLive:
		return fmt.Errorf("trading.mode must be %q or %q, got %q", common.ModePaper, common.ModeLive, t.Mode)
	case t.MinEPSBeatPct <= 0:
		return fmt.Errorf("trading.min_eps_beat_pct must be positive")
	case t.MinAHMovePct <= 0:
		return fmt.Errorf("trading.min_ah_move_pct must be positive")
	case t.MaxPriorRunupPct <= 0:
		return fmt.Errorf("trading.max_prior_runup_pct must be positive")
	case t.ATRStopMultiplier <= 0:
		return fmt.Errorf("trading.atr_stop_multiplier must be positive")
	case t.HoldDays <= 0:
		return fmt.Errorf("trading.hold_days must be positive")
	case t.MaxPositions <= 0:
		return fmt.Errorf("trading.max_positions must be positive")
	case t.LookbackDays <= 0:
		return fmt.Errorf("trading.lookback_days must be positive")
	case t.ATRPeriod <= 0:
		return fmt.Errorf("trading.atr_period must be positive")
	case t.PositionSizeUSD <= 0:
		return fmt.Errorf("trading.position_size_usd must be positive")
	}

	if c.Store.PositionsFile == "" || c.Store.DailyLogFile == "" || c.Store.TradesLogFile == "" {
		return fmt.Errorf("store file paths must all be set")
	}

	s := c.Schedule
	if s.TimeZone == "" || s.BMOScan == "" || s.AMCScan == "" || s.PositionUpdate == "" || s.CalendarPreview == "" {
		return fmt.Errorf("schedule.time_zone and all four cycle specs must be set")
	}

	// The repositories size their rate limiters as time.Minute / n, so a
	// zero here would divide by zero at startup.
	if c.FMP.MaxRequestPerMinute <= 0 {
		return fmt.Errorf("fmp.max_request_per_minute must be positive")
	}
	if c.MarketData.MaxRequestPerMinute <= 0 {
		return fmt.Errorf("market_data.max_request_per_minute must be positive")
	}

	if c.Scan.MaxConcurrentFetches <= 0 {
		c.Scan.MaxConcurrentFetches = 4
	}
	return nil
}
