package fmp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/pkg/config"
	"github.com/profitmonk/high-intent-signals/pkg/httputil"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
	"github.com/profitmonk/high-intent-signals/pkg/redis"
)

var (
	// ErrNoAPIKey is returned when FMP_API_KEY is unset
	ErrNoAPIKey = errors.New("fmp: API key not configured")
	// ErrRateLimited is returned on HTTP 429 after retries
	ErrRateLimited = errors.New("fmp: rate limit exceeded")
	// ErrNoData is returned when the vendor has no rows for a ticker/range
	ErrNoData = errors.New("fmp: no price data")
)

// Client handles communication with Financial Modeling Prep
// ⭐ SSOT: FMP API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	cache      *redis.Cache
	cacheTTL   time.Duration
}

// NewClient creates a new FMP client.
// 프로세스 내 요청 간격은 x/time/rate 로 제한 (분당 RequestsPerMinute)
func NewClient(httpClient *httputil.Client, cfg config.FMPConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 300
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "fmp"),
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 5),
		cacheTTL:   ttl,
	}
}

// WithCache enables the Redis response cache
func (c *Client) WithCache(cache *redis.Cache) *Client {
	c.cache = cache
	return c
}

// HistoricalPrices fetches daily bars for ticker in [from, to], ascending.
func (c *Client) HistoricalPrices(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	fromStr := from.Format(contracts.DateLayout)
	toStr := to.Format(contracts.DateLayout)

	// 1. Redis 캐시
	var resp HistoricalResponse
	if c.cache != nil {
		found, err := c.cache.Get(ctx, redis.HistoricalPriceKey(ticker, fromStr, toStr), &resp)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Price cache read failed")
		}
		if found {
			return c.toBars(ticker, resp)
		}
	}

	// 2. API 호출
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fmp limiter: %w", err)
	}

	params := url.Values{}
	params.Set("from", fromStr)
	params.Set("to", toStr)
	params.Set("apikey", c.apiKey)
	fullURL := fmt.Sprintf("%s/historical-price-full/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%s: %w", ticker, ErrRateLimited)
		}
		return nil, fmt.Errorf("fetch historical prices %s: %w", ticker, err)
	}

	// 3. 캐시 저장 (실패는 경고만)
	if c.cache != nil && len(resp.Historical) > 0 {
		if err := c.cache.Set(ctx, redis.HistoricalPriceKey(ticker, fromStr, toStr), resp, c.cacheTTL); err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Price cache write failed")
		}
	}

	return c.toBars(ticker, resp)
}

func (c *Client) toBars(ticker string, resp HistoricalResponse) ([]contracts.Bar, error) {
	bars := resp.Bars()
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(bars),
	}).Debug("Fetched historical prices")
	return bars, nil
}
