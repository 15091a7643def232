package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/s0_data"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
	"github.com/profitmonk/high-intent-signals/pkg/metrics"
)

// PriceFetcher is the vendor side of the collector (fmp.Client)
type PriceFetcher interface {
	HistoricalPrices(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error)
}

// latestDater is implemented by repositories that support incremental refresh
type latestDater interface {
	LatestDate(ctx context.Context, ticker string) (time.Time, bool, error)
}

// Collector fetches daily bars for signal tickers and stores them.
// ⭐ SSOT: 가격 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	fetcher PriceFetcher
	repo    contracts.PriceRepository // optional
	cache   *s0_data.FileCache        // optional
	metrics *metrics.Metrics          // optional
	logger  *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers     int  // Number of concurrent workers
	Incremental bool // repo 에 저장된 마지막 날짜 이후만 요청
}

// NewCollector creates a new Collector instance. repo and cache may be nil.
func NewCollector(fetcher PriceFetcher, repo contracts.PriceRepository, cache *s0_data.FileCache, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{
		fetcher: fetcher,
		repo:    repo,
		cache:   cache,
		logger:  log.WithField("module", "collector"),
	}
}

// WithMetrics counts fetch outcomes
func (c *Collector) WithMetrics(m *metrics.Metrics) *Collector {
	c.metrics = m
	return c
}

// FetchResult represents the result of a fetch operation
type FetchResult struct {
	Ticker     string
	PriceCount int
	Skipped    bool // incremental: already up to date
	Error      error
}

// Summary counts results
type Summary struct {
	Success int
	Skipped int
	Failed  int
}

// Summarize counts successes, skips and failures
func Summarize(results []FetchResult) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Error != nil:
			s.Failed++
		case r.Skipped:
			s.Skipped++
		default:
			s.Success++
		}
	}
	return s
}

// FetchPrices fetches bars for every ticker in [from, to].
// Per-ticker failures are reported in the results, not as an error.
func (c *Collector) FetchPrices(ctx context.Context, tickers []string, from, to time.Time, cfg Config) ([]FetchResult, error) {
	if c.fetcher == nil {
		return nil, fmt.Errorf("collector: no price fetcher")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	unique := dedupe(tickers)

	c.logger.WithFields(map[string]interface{}{
		"ticker_count": len(unique),
		"from":         from.Format(contracts.DateLayout),
		"to":           to.Format(contracts.DateLayout),
		"workers":      cfg.Workers,
	}).Info("Starting price collection")

	// 1. Create worker pool
	results := make([]FetchResult, 0, len(unique))
	resultCh := make(chan FetchResult, len(unique))
	tickerCh := make(chan string, len(unique))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.priceWorker(ctx, workerID, tickerCh, resultCh, from, to, cfg)
		}(i)
	}

	// 2. Send tickers to workers
	for _, t := range unique {
		tickerCh <- t
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// 3. Collect results
	for result := range resultCh {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Ticker < results[j].Ticker })

	s := Summarize(results)
	c.logger.WithFields(map[string]interface{}{
		"success": s.Success,
		"skipped": s.Skipped,
		"failed":  s.Failed,
		"total":   len(results),
	}).Info("Price collection completed")

	return results, ctx.Err()
}

// priceWorker processes price fetching for tickers
func (c *Collector) priceWorker(ctx context.Context, workerID int, tickerCh <-chan string, resultCh chan<- FetchResult, from, to time.Time, cfg Config) {
	for ticker := range tickerCh {
		if ctx.Err() != nil {
			resultCh <- FetchResult{Ticker: ticker, Error: ctx.Err()}
			continue
		}
		result := c.fetchOne(ctx, workerID, ticker, from, to, cfg)
		c.metrics.ObserveFetch(fetchStatus(result))
		resultCh <- result
	}
}

func (c *Collector) fetchOne(ctx context.Context, workerID int, ticker string, from, to time.Time, cfg Config) FetchResult {
	log := c.logger.WithFields(map[string]interface{}{
		"worker": workerID,
		"ticker": ticker,
	})

	start := from
	if cfg.Incremental {
		if ld, ok := c.repo.(latestDater); ok {
			latest, found, err := ld.LatestDate(ctx, ticker)
			if err != nil {
				log.WithError(err).Warn("Latest date lookup failed, fetching full range")
			} else if found {
				if !latest.Before(contracts.Day(to)) {
					return FetchResult{Ticker: ticker, Skipped: true}
				}
				start = latest.AddDate(0, 0, 1)
			}
		}
	}

	bars, err := c.fetcher.HistoricalPrices(ctx, ticker, start, to)
	if err != nil {
		log.WithError(err).Error("Failed to fetch prices")
		return FetchResult{Ticker: ticker, Error: err}
	}

	if c.repo != nil {
		if err := c.repo.SaveBatch(ctx, ticker, bars); err != nil {
			log.WithError(err).Error("Failed to save prices")
			return FetchResult{Ticker: ticker, PriceCount: len(bars), Error: err}
		}
	}

	if c.cache != nil {
		if _, err := c.cache.Save(ticker, bars); err != nil {
			log.WithError(err).Error("Failed to write price cache")
			return FetchResult{Ticker: ticker, PriceCount: len(bars), Error: err}
		}
	}

	log.WithField("count", len(bars)).Debug("Fetched prices")
	return FetchResult{Ticker: ticker, PriceCount: len(bars)}
}

func fetchStatus(r FetchResult) string {
	switch {
	case r.Error != nil:
		return metrics.StatusFailed
	case r.Skipped:
		return metrics.StatusSkipped
	}
	return metrics.StatusSuccess
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
