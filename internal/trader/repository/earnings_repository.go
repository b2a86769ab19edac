package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"golang-earnings-trader/internal/entity"
	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/logger"
	"golang-earnings-trader/pkg/utils"
)

// ErrNoEarningsData marks the absence of earnings rows for a ticker/date,
// as opposed to a transient transport failure.
var ErrNoEarningsData = errors.New("no earnings data")

// EarningsRepository provides earnings surprises and the earnings calendar.
// Every method may fail per-ticker; callers must never let one failure abort
// a whole scan batch.
type EarningsRepository interface {
	GetSurprise(ctx context.Context, ticker, date string) (entity.EarningsSurprise, error)
	GetCalendar(ctx context.Context, date, timing string) ([]string, error)
	GetCalendarDetails(ctx context.Context, date string) ([]entity.EarningsCalendarEntry, error)
}

type earningsRepository struct {
	cfg            *config.FMP
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
}

// NewEarningsRepository creates an earnings data provider backed by the
// Financial Modeling Prep stable API.
func NewEarningsRepository(cfg *config.FMP, log *logger.Logger) EarningsRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &earningsRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

type fmpEarningsRow struct {
	Date             string   `json:"date"`
	EPSActual        *float64 `json:"epsActual"`
	EPSEstimated     *float64 `json:"epsEstimated"`
	RevenueActual    *float64 `json:"revenueActual"`
	RevenueEstimated *float64 `json:"revenueEstimated"`
	GuidanceEPS      *float64 `json:"guidanceEps"`
}

type fmpCalendarRow struct {
	Symbol           string   `json:"symbol"`
	Time             string   `json:"time"`
	EPSEstimated     *float64 `json:"epsEstimated"`
	RevenueEstimated *float64 `json:"revenueEstimated"`
}

// GetSurprise returns the most recent (or date-specific) earnings surprise
// for a ticker. Returns ErrNoEarningsData when the API has no rows, which is
// distinguishable from transport errors.
func (r *earningsRepository) GetSurprise(ctx context.Context, ticker, date string) (entity.EarningsSurprise, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(ticker))
	params.Set("limit", "10")

	var rows []fmpEarningsRow
	if err := r.getJSON(ctx, "/earnings", params, &rows); err != nil {
		return entity.EarningsSurprise{}, err
	}
	if len(rows) == 0 {
		return entity.EarningsSurprise{}, fmt.Errorf("%w: %s", ErrNoEarningsData, ticker)
	}

	if date != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if strings.HasPrefix(row.Date, date) {
				filtered = append(filtered, row)
			}
		}
		if len(filtered) == 0 {
			return entity.EarningsSurprise{}, fmt.Errorf("%w: %s on %s", ErrNoEarningsData, ticker, date)
		}
		rows = filtered
	}

	row := rows[0]
	epsActual := deref(row.EPSActual)
	epsEstimate := deref(row.EPSEstimated)
	revActual := deref(row.RevenueActual)
	revEstimate := deref(row.RevenueEstimated)

	var guidanceWeak *bool
	if row.GuidanceEPS != nil {
		guidanceWeak = utils.ToPointer(*row.GuidanceEPS < epsEstimate)
	}

	return entity.EarningsSurprise{
		Ticker:       strings.ToUpper(ticker),
		EPSActual:    epsActual,
		EPSEstimate:  epsEstimate,
		EPSBeatPct:   beatPct(epsActual, epsEstimate),
		RevActual:    revActual,
		RevEstimate:  revEstimate,
		RevBeatPct:   beatPct(revActual, revEstimate),
		GuidanceWeak: guidanceWeak,
	}, nil
}

// GetCalendar returns the tickers reporting on the given date, filtered by
// timing: "amc" matches after-close and unspecified rows, "bmo" matches
// before-open rows exactly, "all" matches everything.
func (r *earningsRepository) GetCalendar(ctx context.Context, date, timing string) ([]string, error) {
	rows, err := r.calendarRows(ctx, date)
	if err != nil {
		return nil, err
	}

	var tickers []string
	for _, row := range rows {
		if row.Symbol == "" || !timingMatches(timing, row.Time) {
			continue
		}
		tickers = append(tickers, row.Symbol)
	}

	r.log.InfoContext(ctx, "Fetched earnings calendar",
		logger.StringField("date", date),
		logger.StringField("timing", timing),
		logger.IntField("tickers", len(tickers)))
	return tickers, nil
}

// GetCalendarDetails returns calendar entries with estimates for every ticker
// reporting on the given date.
func (r *earningsRepository) GetCalendarDetails(ctx context.Context, date string) ([]entity.EarningsCalendarEntry, error) {
	rows, err := r.calendarRows(ctx, date)
	if err != nil {
		return nil, err
	}

	var entries []entity.EarningsCalendarEntry
	for _, row := range rows {
		if row.Symbol == "" {
			continue
		}
		entries = append(entries, entity.EarningsCalendarEntry{
			Ticker:      strings.ToUpper(row.Symbol),
			Date:        date,
			Timing:      normalizeTiming(row.Time),
			EPSEstimate: row.EPSEstimated,
			RevEstimate: row.RevenueEstimated,
		})
	}
	return entries, nil
}

func (r *earningsRepository) calendarRows(ctx context.Context, date string) ([]fmpCalendarRow, error) {
	params := url.Values{}
	params.Set("from", date)
	params.Set("to", date)

	var rows []fmpCalendarRow
	if err := r.getJSON(ctx, "/earnings-calendar", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *earningsRepository) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("earnings request limit: %w", err)
	}

	params.Set("apikey", r.cfg.APIKey)
	reqURL := r.cfg.BaseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("earnings request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("earnings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("earnings API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.Unmarshal(body, out)
}

// beatPct is (actual - estimate) / |estimate|, zero when the estimate is zero.
func beatPct(actual, estimate float64) float64 {
	if estimate == 0 {
		return 0
	}
	pct := (actual - estimate) / estimate
	if estimate < 0 {
		pct = -pct
	}
	return pct
}

func timingMatches(want, got string) bool {
	got = strings.ToLower(got)
	switch want {
	case "all":
		return true
	case common.TimingAMC:
		return got == common.TimingAMC || got == ""
	default:
		return got == want
	}
}

func normalizeTiming(raw string) string {
	switch strings.ToLower(raw) {
	case common.TimingBMO:
		return common.TimingBMO
	case common.TimingAMC, "":
		return common.TimingAMC
	default:
		return common.TimingUnknown
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
