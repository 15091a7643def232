package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/brain"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/external/fmp"
	"github.com/profitmonk/high-intent-signals/internal/s0_data"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/collector"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/quality"
	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
	"github.com/profitmonk/high-intent-signals/pkg/config"
	"github.com/profitmonk/high-intent-signals/pkg/database"
	"github.com/profitmonk/high-intent-signals/pkg/httputil"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
	"github.com/profitmonk/high-intent-signals/pkg/metrics"
	"github.com/profitmonk/high-intent-signals/pkg/redis"
)

// depsOptions selects optional infrastructure
type depsOptions struct {
	requireDB bool // DATABASE_URL 필수 (fetcher, --save, scheduler)
	useDB     bool // 설정돼 있으면 연결
	quiet     bool // 콘솔 출력 커맨드: info 로그 숨김
}

// deps holds every wired component for one command invocation
type deps struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics

	db        *database.DB      // nil without DATABASE_URL
	redis     *redis.Client     // no-op when REDIS_ENABLED=false
	cache     *s0_data.FileCache
	prices    *s0_data.PriceRepository // nil without db
	auditRepo *audit.Repository        // nil without db
	collector *collector.Collector     // nil without FMP_API_KEY

	orchestrator *brain.Orchestrator
}

// newDeps loads config and wires storage, vendor client and orchestrator
func newDeps(ctx context.Context, opts depsOptions) (*deps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.LogLevel = "debug"
	} else if opts.quiet && cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}

	// 2. Initialize logger
	d := &deps{cfg: cfg, log: logger.New(cfg)}
	if cfg.MetricsEnabled {
		d.metrics = metrics.New()
	}

	// 3. Connect to database (optional)
	if opts.requireDB {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, err
		}
	}
	if (opts.useDB || opts.requireDB) && cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		d.db = db
		d.prices = s0_data.NewPriceRepository(db.Pool)
		d.auditRepo = audit.NewRepository(db.Pool)
	}

	// 4. Redis (optional)
	d.redis, err = redis.New(cfg)
	if err != nil {
		d.log.WithError(err).Warn("Redis unavailable, continuing without cache")
		d.redis = redis.Disabled()
	}

	// 5. Price cache + vendor collector
	d.cache = s0_data.NewFileCache(filepath.Join(cfg.DataDir, "cache"), d.log)
	if cfg.FMP.APIKey != "" {
		httpClient := httputil.New(d.log).
			WithRateLimiter(redis.NewRateLimiter(d.redis, "ratelimit"), redis.FMPRateLimit(cfg.FMP.RequestsPerMinute))
		fmpClient := fmp.NewClient(httpClient, cfg.FMP, d.log).
			WithCache(redis.NewCache(d.redis, "fmp"))

		// nil 포인터를 인터페이스에 넣지 않도록
		var repo contracts.PriceRepository
		if d.prices != nil {
			repo = d.prices
		}
		d.collector = collector.NewCollector(fmpClient, repo, d.cache, d.log).WithMetrics(d.metrics)
	}

	// 6. Orchestrator
	orchOpts := []brain.Option{
		brain.WithMetrics(d.metrics),
		brain.WithQualityGate(quality.NewQualityGate(quality.DefaultConfig()), cfg.Simulation.StrictQuality),
	}
	if d.prices != nil {
		orchOpts = append(orchOpts, brain.WithPriceRepository(d.prices), brain.WithAuditRepository(d.auditRepo))
	}
	d.orchestrator = brain.NewOrchestrator(cfg.DataDir, d.cache, d.log, orchOpts...)

	return d, nil
}

// presets loads the YAML strategy presets
func (d *deps) presets() (map[string]*strategyconfig.Config, error) {
	presets, err := strategyconfig.LoadDir(d.cfg.Simulation.StrategyDir)
	if err != nil {
		return nil, fmt.Errorf("load strategies from %s: %w", d.cfg.Simulation.StrategyDir, err)
	}
	return presets, nil
}

// Close releases connections
func (d *deps) Close() {
	if d.redis != nil {
		d.redis.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}
