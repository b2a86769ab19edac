package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/pkg/logger"
	"golang-earnings-trader/pkg/utils"
)

// MarketDataRepository provides prices, volatility and move fractions for a
// single ticker. Every method may fail per-ticker and must be caught
// independently by the caller.
type MarketDataRepository interface {
	GetCurrentPrice(ctx context.Context, ticker string) (float64, error)
	GetATR(ctx context.Context, ticker string, period int) (float64, error)
	GetAfterHoursMove(ctx context.Context, ticker, date string) (float64, error)
	GetPremarketMove(ctx context.Context, ticker, date string) (float64, error)
	GetPriorRunup(ctx context.Context, ticker string, days int) (float64, error)
	GetDailyMove(ctx context.Context, ticker, date string) (float64, error)
}

type marketDataRepository struct {
	cfg            *config.MarketData
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	location       *time.Location
}

// NewMarketDataRepository creates a market data provider backed by a
// Yahoo-style chart API.
func NewMarketDataRepository(cfg *config.MarketData, log *logger.Logger) (MarketDataRepository, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load exchange location: %w", err)
	}
	secondsPerRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &marketDataRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		location:       loc,
	}, nil
}

// bar is one OHLC sample on the exchange clock.
type bar struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetCurrentPrice returns the latest daily close.
func (r *marketDataRepository) GetCurrentPrice(ctx context.Context, ticker string) (float64, error) {
	bars, err := r.getBars(ctx, ticker, "5d", "1d", false)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no price data for %s", ticker)
	}
	return bars[len(bars)-1].Close, nil
}

// GetATR returns the most recent Average True Range using Wilder smoothing.
func (r *marketDataRepository) GetATR(ctx context.Context, ticker string, period int) (float64, error) {
	bars, err := r.getBars(ctx, ticker, "3mo", "1d", false)
	if err != nil {
		return 0, err
	}
	return computeATR(bars, period)
}

// GetAfterHoursMove returns the fractional move of the last post-close print
// against the regular-session close on the given date.
func (r *marketDataRepository) GetAfterHoursMove(ctx context.Context, ticker, date string) (float64, error) {
	bars, err := r.getBars(ctx, ticker, "5d", "1m", true)
	if err != nil {
		return 0, err
	}

	regular := lastCloseInSession(bars, date, "09:30", "15:59", r.location)
	afterHours := lastCloseInSession(bars, date, "16:01", "20:00", r.location)
	if regular == 0 || afterHours == 0 {
		return 0, fmt.Errorf("insufficient session data for %s on %s", ticker, date)
	}
	return afterHours/regular - 1.0, nil
}

// GetPremarketMove returns the fractional move of the last pre-market print
// on the given date against the prior regular-session close.
func (r *marketDataRepository) GetPremarketMove(ctx context.Context, ticker, date string) (float64, error) {
	bars, err := r.getBars(ctx, ticker, "5d", "1m", true)
	if err != nil {
		return 0, err
	}

	priorClose := lastCloseBefore(bars, date, "09:30", "15:59", r.location)
	premarket := lastCloseInSession(bars, date, "04:00", "09:29", r.location)
	if priorClose == 0 || premarket == 0 {
		return 0, fmt.Errorf("insufficient pre-market data for %s on %s", ticker, date)
	}
	return premarket/priorClose - 1.0, nil
}

// GetPriorRunup returns the fractional close-to-close change over the prior
// N trading days.
func (r *marketDataRepository) GetPriorRunup(ctx context.Context, ticker string, days int) (float64, error) {
	bars, err := r.getBars(ctx, ticker, "3mo", "1d", false)
	if err != nil {
		return 0, err
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	if len(bars) < 2 {
		return 0, fmt.Errorf("not enough price history for %s", ticker)
	}
	return bars[len(bars)-1].Close/bars[0].Close - 1.0, nil
}

// GetDailyMove returns the fractional close-to-close change for the given
// symbol on the given date.
func (r *marketDataRepository) GetDailyMove(ctx context.Context, ticker, date string) (float64, error) {
	bars, err := r.getBars(ctx, ticker, "1mo", "1d", false)
	if err != nil {
		return 0, err
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Time.Format(utils.DateLayout) == date {
			prev := bars[i-1].Close
			if prev == 0 {
				break
			}
			return bars[i].Close/prev - 1.0, nil
		}
	}
	return 0, fmt.Errorf("no daily data for %s on %s", ticker, date)
}

func (r *marketDataRepository) getBars(ctx context.Context, ticker, rng, interval string, prePost bool) ([]bar, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("market data request limit: %w", err)
	}

	params := url.Values{}
	params.Set("range", rng)
	params.Set("interval", interval)
	if prePost {
		params.Set("includePrePost", "true")
	}
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", r.cfg.BaseURL, url.PathEscape(strings.ToUpper(ticker)), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("market data response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data API status %d for %s", resp.StatusCode, ticker)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode chart for %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", ticker, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no chart data for %s", ticker)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Halted or missing samples come back as nulls; skip them.
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		b := bar{
			Time:  time.Unix(ts, 0).In(r.location),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			b.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			b.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			b.Low = *quote.Low[i]
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// computeATR computes the Average True Range over the bars using Wilder
// smoothing (exponential with alpha = 1/period, seeded by the first true
// range).
func computeATR(bars []bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("atr period must be positive")
	}
	if len(bars) < 2 {
		return 0, fmt.Errorf("not enough bars for atr")
	}

	alpha := 1.0 / float64(period)
	var atr float64
	for i := 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1].Close)
		if i == 1 {
			atr = tr
			continue
		}
		atr += alpha * (tr - atr)
	}
	return atr, nil
}

func trueRange(b bar, prevClose float64) float64 {
	tr := b.High - b.Low
	if hc := abs(b.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := abs(b.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// lastCloseInSession returns the close of the last bar on the given date
// within [from, to] wall-clock bounds, or 0 when the window is empty.
func lastCloseInSession(bars []bar, date, from, to string, loc *time.Location) float64 {
	var last float64
	for _, b := range bars {
		local := b.Time.In(loc)
		if local.Format(utils.DateLayout) != date {
			continue
		}
		hhmm := local.Format("15:04")
		if hhmm >= from && hhmm <= to {
			last = b.Close
		}
	}
	return last
}

// lastCloseBefore returns the close of the last regular-session bar on any
// date strictly before the given one, or 0 when none exists.
func lastCloseBefore(bars []bar, date, from, to string, loc *time.Location) float64 {
	var last float64
	for _, b := range bars {
		local := b.Time.In(loc)
		day := local.Format(utils.DateLayout)
		if day >= date {
			continue
		}
		hhmm := local.Format("15:04")
		if hhmm >= from && hhmm <= to {
			last = b.Close
		}
	}
	return last
}
