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

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/pkg/logger"
)

// sectorETFMap maps company sectors to their SPDR sector ETF.
var sectorETFMap = map[string]string{
	"Technology":             "XLK",
	"Financial Services":     "XLF",
	"Energy":                 "XLE",
	"Healthcare":             "XLV",
	"Health Care":            "XLV",
	"Industrials":            "XLI",
	"Consumer Cyclical":      "XLY",
	"Consumer Defensive":     "XLP",
	"Utilities":              "XLU",
	"Real Estate":            "XLRE",
	"Basic Materials":        "XLB",
	"Communication Services": "XLC",
}

const fallbackETF = "SPY"

// SectorRepository maps tickers to their sector benchmark and reports the
// benchmark's daily move. Unknown sectors fall back to SPY.
type SectorRepository interface {
	GetSectorETF(ctx context.Context, ticker string) string
	GetSectorMove(ctx context.Context, ticker, date string) (float64, error)
	GetExchange(ctx context.Context, ticker string) string
}

type sectorRepository struct {
	cfg            *config.FMP
	log            *logger.Logger
	marketData     MarketDataRepository
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	profileCache   *cache.Cache
}

type companyProfile struct {
	Sector   string
	Exchange string
}

type fmpProfileRow struct {
	Sector            string `json:"sector"`
	ExchangeShortName string `json:"exchangeShortName"`
}

// NewSectorRepository creates a sector data provider. Company profiles change
// rarely, so lookups are cached for a day.
func NewSectorRepository(cfg *config.FMP, marketData MarketDataRepository, log *logger.Logger) SectorRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &sectorRepository{
		cfg:        cfg,
		log:        log,
		marketData: marketData,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		profileCache:   cache.New(24*time.Hour, 1*time.Hour),
	}
}

// GetSectorETF returns the sector benchmark symbol for a ticker, falling back
// to SPY when the sector is unknown or the profile lookup fails.
func (r *sectorRepository) GetSectorETF(ctx context.Context, ticker string) string {
	profile, err := r.getProfile(ctx, ticker)
	if err != nil {
		r.log.WarnContext(ctx, "Could not resolve sector, using fallback ETF",
			logger.StringField("ticker", ticker),
			logger.StringField("etf", fallbackETF),
			logger.ErrorField(err))
		return fallbackETF
	}

	etf, ok := sectorETFMap[profile.Sector]
	if !ok {
		if profile.Sector != "" {
			r.log.WarnContext(ctx, "Unknown sector, using fallback ETF",
				logger.StringField("ticker", ticker),
				logger.StringField("sector", profile.Sector))
		}
		return fallbackETF
	}
	return etf
}

// GetSectorMove returns the sector ETF's fractional close-to-close change on
// the given date.
func (r *sectorRepository) GetSectorMove(ctx context.Context, ticker, date string) (float64, error) {
	etf := r.GetSectorETF(ctx, ticker)
	return r.marketData.GetDailyMove(ctx, etf, date)
}

// GetExchange returns the exchange code for a ticker, empty when unknown.
func (r *sectorRepository) GetExchange(ctx context.Context, ticker string) string {
	profile, err := r.getProfile(ctx, ticker)
	if err != nil {
		r.log.WarnContext(ctx, "Could not resolve exchange",
			logger.StringField("ticker", ticker), logger.ErrorField(err))
		return ""
	}
	return profile.Exchange
}

func (r *sectorRepository) getProfile(ctx context.Context, ticker string) (companyProfile, error) {
	ticker = strings.ToUpper(ticker)
	if cached, ok := r.profileCache.Get(ticker); ok {
		return cached.(companyProfile), nil
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return companyProfile{}, fmt.Errorf("profile request limit: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("apikey", r.cfg.APIKey)
	reqURL := r.cfg.BaseURL + "/profile?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return companyProfile{}, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return companyProfile{}, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return companyProfile{}, fmt.Errorf("profile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return companyProfile{}, fmt.Errorf("profile API status %d for %s", resp.StatusCode, ticker)
	}

	var rows []fmpProfileRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return companyProfile{}, fmt.Errorf("decode profile for %s: %w", ticker, err)
	}
	if len(rows) == 0 {
		return companyProfile{}, fmt.Errorf("no profile data for %s", ticker)
	}

	profile := companyProfile{
		Sector:   rows[0].Sector,
		Exchange: rows[0].ExchangeShortName,
	}
	r.profileCache.Set(ticker, profile, cache.DefaultExpiration)
	return profile, nil
}
