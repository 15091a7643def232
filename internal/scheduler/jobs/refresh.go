package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/brain"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/collector"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// IndexFile lists every exported strategy
const IndexFile = "index.json"

// Orchestrator runs backtests on prepared datasets (brain.Orchestrator)
type Orchestrator interface {
	Prepare(ctx context.Context, dataset string) (*brain.Inputs, error)
	Invalidate()
	RunBacktest(ctx context.Context, req brain.Request) (*brain.BacktestOutcome, error)
}

// PriceCollector fetches vendor prices (collector.Collector)
type PriceCollector interface {
	FetchPrices(ctx context.Context, tickers []string, from, to time.Time, cfg collector.Config) ([]collector.FetchResult, error)
}

// RefreshConfig configures the portfolio refresh job
type RefreshConfig struct {
	Schedule     string // cron spec (seconds first)
	OutputDir    string // <strategy_id>.json + index.json
	Save         bool   // audit.simulation_runs 에 저장
	Workers      int    // collector workers
	LookbackDays int    // 가격 재수집 구간 (repo 없을 때)
}

// PortfolioRefreshJob refreshes prices, reruns every preset and rewrites the exports
// ⭐ SSOT: 주간 포트폴리오 갱신은 이 Job에서만
type PortfolioRefreshJob struct {
	orchestrator Orchestrator
	collector    PriceCollector // optional
	presets      []*strategyconfig.Config
	config       RefreshConfig
	logger       *logger.Logger
}

// NewPortfolioRefreshJob creates a new refresh job. col may be nil (no price fetch).
func NewPortfolioRefreshJob(o Orchestrator, col PriceCollector, presets map[string]*strategyconfig.Config, cfg RefreshConfig, log *logger.Logger) *PortfolioRefreshJob {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 30 18 * * FRI"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 14
	}

	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ordered := make([]*strategyconfig.Config, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, presets[id])
	}

	return &PortfolioRefreshJob{
		orchestrator: o,
		collector:    col,
		presets:      ordered,
		config:       cfg,
		logger:       log.WithField("job", "portfolio_refresh"),
	}
}

// Name returns the job name
func (j *PortfolioRefreshJob) Name() string {
	return "portfolio_refresh"
}

// Schedule returns the cron schedule (weekly after the Friday close by default)
func (j *PortfolioRefreshJob) Schedule() string {
	return j.config.Schedule
}

// IndexEntry is one strategy row in index.json
type IndexEntry struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Dataset     string  `json:"dataset"`
	File        string  `json:"file"`
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	TotalTrades int     `json:"total_trades"`
	Holdings    int     `json:"current_holdings"`
}

// Index is the content of index.json
type Index struct {
	Strategies []IndexEntry `json:"strategies"`
}

// Run executes the refresh
func (j *PortfolioRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled portfolio refresh")

	// 1. 가격 갱신
	if j.collector != nil {
		if err := j.refreshPrices(ctx); err != nil {
			return err
		}
	}

	// 2. 새 가격으로 다시 로드
	j.orchestrator.Invalidate()

	// 3. 전략별 백테스트 + export
	index := Index{Strategies: make([]IndexEntry, 0, len(j.presets))}
	var errs []error
	for _, preset := range j.presets {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := j.runStrategy(ctx, preset)
		if err != nil {
			j.logger.WithError(err).WithField("strategy", preset.Meta.StrategyID).Error("Strategy refresh failed")
			errs = append(errs, fmt.Errorf("%s: %w", preset.Meta.StrategyID, err))
			continue
		}
		index.Strategies = append(index.Strategies, entry)
	}

	if err := audit.WriteFile(filepath.Join(j.config.OutputDir, IndexFile), index); err != nil {
		errs = append(errs, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"strategies": len(index.Strategies),
		"failed":     len(errs),
	}).Info("Portfolio refresh completed")

	return errors.Join(errs...)
}

func (j *PortfolioRefreshJob) refreshPrices(ctx context.Context) error {
	to := contracts.Day(time.Now())
	from := to.AddDate(0, 0, -j.config.LookbackDays)

	for _, dataset := range j.datasets() {
		in, err := j.orchestrator.Prepare(ctx, dataset)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", dataset, err)
		}

		results, err := j.collector.FetchPrices(ctx, s2_signals.Tickers(in.Signals), from, to, collector.Config{
			Workers:     j.config.Workers,
			Incremental: true,
		})
		if err != nil {
			return fmt.Errorf("fetch prices %s: %w", dataset, err)
		}

		s := collector.Summarize(results)
		j.logger.WithFields(map[string]interface{}{
			"dataset": dataset,
			"success": s.Success,
			"skipped": s.Skipped,
			"failed":  s.Failed,
		}).Info("Prices refreshed")

		if len(results) > 0 && s.Failed == len(results) {
			return fmt.Errorf("fetch prices %s: all %d tickers failed", dataset, s.Failed)
		}
	}
	return nil
}

func (j *PortfolioRefreshJob) runStrategy(ctx context.Context, preset *strategyconfig.Config) (IndexEntry, error) {
	out, err := j.orchestrator.RunBacktest(ctx, brain.Request{Strategy: preset, Save: j.config.Save})
	if err != nil {
		return IndexEntry{}, err
	}

	file := preset.Meta.StrategyID + ".json"
	if err := audit.WriteFile(filepath.Join(j.config.OutputDir, file), out.Export); err != nil {
		return IndexEntry{}, err
	}

	m := out.Export.SummaryMetrics
	return IndexEntry{
		ID:          preset.Meta.StrategyID,
		Name:        preset.Meta.Name,
		Dataset:     preset.Signals.Dataset,
		File:        file,
		TotalReturn: m.TotalReturn,
		CAGR:        m.CAGR,
		MaxDrawdown: m.MaxDrawdown,
		SharpeRatio: m.SharpeRatio,
		TotalTrades: m.TotalTrades,
		Holdings:    len(out.Export.CurrentHoldings),
	}, nil
}

// datasets returns the distinct datasets used by the presets
func (j *PortfolioRefreshJob) datasets() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range j.presets {
		if _, ok := seen[p.Signals.Dataset]; ok {
			continue
		}
		seen[p.Signals.Dataset] = struct{}{}
		out = append(out, p.Signals.Dataset)
	}
	sort.Strings(out)
	return out
}
