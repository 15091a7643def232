package brain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
	"github.com/profitmonk/high-intent-signals/internal/s0_data"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/quality"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
	"github.com/profitmonk/high-intent-signals/pkg/metrics"
)

var (
	// ErrQualityGate is returned when price coverage is below the gate thresholds
	ErrQualityGate = errors.New("price quality gate failed")
	// ErrNoAuditRepository is returned when a run asks to be saved without a database
	ErrNoAuditRepository = errors.New("audit repository not configured")
)

// Orchestrator wires dataset loading, price loading and the simulation engines.
// Stages: S0 signals → S1 prices + quality gate → S2 simulate → S3 audit/export
// ⭐ SSOT: 실행 파이프라인 조율은 여기서만
type Orchestrator struct {
	dataDir   string
	cache     *s0_data.FileCache
	prices    *s0_data.PriceRepository // optional: DB 가격 우선
	gate      *quality.QualityGate
	strictQA  bool
	auditRepo *audit.Repository // optional
	metrics   *metrics.Metrics  // optional
	logger    *logger.Logger

	mu     sync.Mutex
	inputs map[string]*Inputs // dataset → 로드된 입력
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPriceRepository loads prices from Postgres instead of the file cache
func WithPriceRepository(repo *s0_data.PriceRepository) Option {
	return func(o *Orchestrator) { o.prices = repo }
}

// WithAuditRepository enables run persistence
func WithAuditRepository(repo *audit.Repository) Option {
	return func(o *Orchestrator) { o.auditRepo = repo }
}

// WithMetrics records run counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithQualityGate overrides the gate; strict makes a failed gate abort the run
func WithQualityGate(gate *quality.QualityGate, strict bool) Option {
	return func(o *Orchestrator) {
		if gate != nil {
			o.gate = gate
		}
		o.strictQA = strict
	}
}

// NewOrchestrator creates an orchestrator reading datasets from dataDir
// and cached vendor prices from cache
func NewOrchestrator(dataDir string, cache *s0_data.FileCache, log *logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		dataDir: dataDir,
		cache:   cache,
		gate:    quality.NewQualityGate(quality.DefaultConfig()),
		logger:  log.WithField("module", "brain"),
		inputs:  make(map[string]*Inputs),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Inputs is a loaded dataset ready for simulation. Read-only once built.
type Inputs struct {
	Dataset string
	Signals []contracts.Signal
	Stats   s2_signals.LoadStats
	Oracle  *s0_data.MemoryOracle
	Missing []string
	Quality *quality.Snapshot
}

// Calendar returns the session calendar implied by the loaded prices
func (in *Inputs) Calendar() backtest.Calendar {
	sessions := in.Oracle.Sessions()
	if len(sessions) == 0 {
		return backtest.WeekdayCalendar{}
	}
	return backtest.NewSessionCalendar(sessions)
}

// Prepare runs S0 and S1 for dataset, reusing a previous load
func (o *Orchestrator) Prepare(ctx context.Context, dataset string) (*Inputs, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if in, ok := o.inputs[dataset]; ok {
		return in, nil
	}

	in, err := o.load(ctx, dataset)
	if err != nil {
		return nil, err
	}
	o.inputs[dataset] = in
	return in, nil
}

// Invalidate drops loaded inputs so the next run re-reads signals and prices
func (o *Orchestrator) Invalidate() {
	o.mu.Lock()
	o.inputs = make(map[string]*Inputs)
	o.mu.Unlock()
}

func (o *Orchestrator) load(ctx context.Context, dataset string) (*Inputs, error) {
	// S0: 시그널 로드
	path, err := s2_signals.ResolveDataset(o.dataDir, dataset)
	if err != nil {
		return nil, err
	}
	src := s2_signals.NewFileSource(path, o.logger)
	signals, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("S0 signals: %w", err)
	}

	in := &Inputs{Dataset: dataset, Signals: signals, Stats: src.Stats()}

	// S1: 가격 로드
	tickers := s2_signals.Tickers(signals)
	if o.prices != nil {
		from, _ := quality.Window(signals)
		in.Oracle, in.Missing, err = o.prices.LoadOracle(ctx, tickers, from, time.Now())
		if err != nil {
			return nil, fmt.Errorf("S1 prices: %w", err)
		}
	} else {
		if o.cache == nil {
			return nil, fmt.Errorf("S1 prices: no price source configured")
		}
		in.Oracle, in.Missing = o.cache.Load(tickers)
	}

	// S1: 품질 게이트
	in.Quality = o.gate.Check(signals, in.Oracle)
	log := o.logger.WithFields(map[string]interface{}{
		"dataset":       dataset,
		"signals":       len(signals),
		"tickers":       len(tickers),
		"missing":       len(in.Missing),
		"quality_score": in.Quality.QualityScore,
		"passed":        in.Quality.Passed,
	})
	if !in.Quality.Passed {
		log.WithField("failures", in.Quality.Failures).Warn("Price quality gate failed")
		if o.strictQA {
			return nil, fmt.Errorf("%s: %w", dataset, ErrQualityGate)
		}
	} else {
		log.Info("Dataset prepared")
	}

	return in, nil
}

// BacktestOutcome is the result of RunBacktest
type BacktestOutcome struct {
	RunID    uuid.UUID                `json:"run_id"`
	Saved    bool                     `json:"saved"`
	Result   *backtest.Result         `json:"result"`
	Export   *audit.PortfolioExport   `json:"-"`
	Quality  *quality.Snapshot        `json:"quality"`
	Warnings []strategyconfig.Warning `json:"warnings,omitempty"`
	Duration time.Duration            `json:"-"`
}

// MonteCarloOutcome is the result of RunMonteCarlo
type MonteCarloOutcome struct {
	RunID    uuid.UUID           `json:"run_id"`
	Saved    bool                `json:"saved"`
	Summary  *montecarlo.Summary `json:"summary"`
	Quality  *quality.Snapshot   `json:"quality"`
	Duration time.Duration       `json:"-"`
}

// Request describes one run
type Request struct {
	Strategy *strategyconfig.Config
	Save     bool // audit.simulation_runs 에 저장
	Workers  int  // Monte Carlo only
	Progress montecarlo.ProgressFunc
}

func (r Request) meta(hash string) audit.Meta {
	return audit.Meta{
		Strategy:     r.Strategy.Meta.StrategyID,
		StrategyHash: hash,
		Dataset:      r.Strategy.Signals.Dataset,
	}
}

// RunBacktest executes one deterministic backtest for a strategy preset
func (o *Orchestrator) RunBacktest(ctx context.Context, req Request) (*BacktestOutcome, error) {
	start := time.Now()
	out, err := o.runBacktest(ctx, req)
	o.observe(audit.KindBacktest, err, time.Since(start))
	if out != nil {
		out.Duration = time.Since(start)
	}
	return out, err
}

func (o *Orchestrator) runBacktest(ctx context.Context, req Request) (*BacktestOutcome, error) {
	if req.Strategy == nil {
		return nil, fmt.Errorf("backtest: no strategy")
	}
	hash, cfg, err := o.compile(req.Strategy)
	if err != nil {
		return nil, err
	}

	in, err := o.Prepare(ctx, req.Strategy.Signals.Dataset)
	if err != nil {
		return nil, err
	}

	// S2: 시뮬레이션
	engine, err := backtest.NewEngine(cfg, backtest.WithLogger(o.logger), backtest.WithCalendar(in.Calendar()))
	if err != nil {
		return nil, err
	}
	result, err := engine.Run(ctx, in.Signals, in.Oracle)
	if err != nil {
		return nil, fmt.Errorf("S2 backtest: %w", err)
	}
	o.recordDiagnostics(result)

	meta := req.meta(hash)
	out := &BacktestOutcome{
		Result:   result,
		Export:   audit.BuildExport(result, meta),
		Quality:  in.Quality,
		Warnings: strategyconfig.Warn(req.Strategy),
	}

	// S3: 저장
	if req.Save {
		run, err := audit.NewBacktestRun(result, meta)
		if err != nil {
			return nil, err
		}
		if err := o.save(ctx, run); err != nil {
			return nil, err
		}
		out.RunID, out.Saved = run.ID, true
	}

	o.logger.WithFields(map[string]interface{}{
		"strategy":     meta.Strategy,
		"dataset":      meta.Dataset,
		"total_return": fmt.Sprintf("%.2f%%", result.SummaryMetrics.TotalReturn*100),
		"trades":       result.SummaryMetrics.TotalTrades,
		"dropped":      result.Diagnostics.Dropped(),
		"saved":        out.Saved,
	}).Info("Backtest completed")

	return out, nil
}

// RunMonteCarlo executes the start-date sweep for a strategy preset
func (o *Orchestrator) RunMonteCarlo(ctx context.Context, req Request) (*MonteCarloOutcome, error) {
	start := time.Now()
	out, err := o.runMonteCarlo(ctx, req)
	o.observe(audit.KindMonteCarlo, err, time.Since(start))
	if out != nil {
		out.Duration = time.Since(start)
	}
	return out, err
}

func (o *Orchestrator) runMonteCarlo(ctx context.Context, req Request) (*MonteCarloOutcome, error) {
	if req.Strategy == nil {
		return nil, fmt.Errorf("monte carlo: no strategy")
	}
	hash, base, err := o.compile(req.Strategy)
	if err != nil {
		return nil, err
	}
	mcCfg, err := req.Strategy.ToMonteCarloConfig(req.Workers)
	if err != nil {
		return nil, err
	}

	in, err := o.Prepare(ctx, req.Strategy.Signals.Dataset)
	if err != nil {
		return nil, err
	}

	opts := []montecarlo.Option{
		montecarlo.WithLogger(o.logger),
		montecarlo.WithCalendar(in.Calendar()),
	}
	if req.Progress != nil {
		opts = append(opts, montecarlo.WithProgress(req.Progress))
	}
	harness, err := montecarlo.New(base, mcCfg, opts...)
	if err != nil {
		return nil, err
	}

	summary, err := harness.Run(ctx, in.Signals, in.Oracle)
	if err != nil {
		return nil, fmt.Errorf("S2 monte carlo: %w", err)
	}

	out := &MonteCarloOutcome{Summary: summary, Quality: in.Quality}
	if req.Save {
		run, err := audit.NewMonteCarloRun(summary, req.meta(hash))
		if err != nil {
			return nil, err
		}
		if err := o.save(ctx, run); err != nil {
			return nil, err
		}
		out.RunID, out.Saved = run.ID, true
	}
	return out, nil
}

// CompareStop runs the preset twice on the same inputs, as configured and with
// the stop disabled, and pairs the trades signal by signal
func (o *Orchestrator) CompareStop(ctx context.Context, strategy *strategyconfig.Config) (*audit.StopImpact, error) {
	if strategy == nil {
		return nil, fmt.Errorf("compare stop: no strategy")
	}
	_, withCfg, err := o.compile(strategy)
	if err != nil {
		return nil, err
	}
	withoutCfg := withCfg
	withoutCfg.StopLossPct = audit.NoStopLossPct

	in, err := o.Prepare(ctx, strategy.Signals.Dataset)
	if err != nil {
		return nil, err
	}

	// 두 실행은 같은 입력을 읽기만 하므로 동시에 수행
	results := make([]*backtest.Result, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range []backtest.Config{withCfg, withoutCfg} {
		i, cfg := i, cfg
		g.Go(func() error {
			engine, err := backtest.NewEngine(cfg, backtest.WithLogger(o.logger), backtest.WithCalendar(in.Calendar()))
			if err != nil {
				return err
			}
			result, err := engine.Run(gctx, in.Signals, in.Oracle)
			if err != nil {
				return fmt.Errorf("S2 backtest (stop_loss_pct=%.2f): %w", cfg.StopLossPct, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	impact := audit.CompareStop(results[0], results[1])
	impact.Dataset = strategy.Signals.Dataset

	o.logger.WithFields(map[string]interface{}{
		"dataset":     impact.Dataset,
		"stop_loss":   fmt.Sprintf("%.0f%%", impact.StopLossPct*100),
		"compared":    impact.Compared,
		"triggered":   impact.Triggered,
		"improvement": fmt.Sprintf("%+.2f%%", impact.Improvement*100),
	}).Info("Stop loss comparison completed")

	return &impact, nil
}

// compile validates a preset and converts it to engine parameters
func (o *Orchestrator) compile(s *strategyconfig.Config) (string, backtest.Config, error) {
	if err := strategyconfig.Validate(s); err != nil {
		return "", backtest.Config{}, err
	}
	hash, err := strategyconfig.Hash(s)
	if err != nil {
		return "", backtest.Config{}, err
	}
	cfg, err := s.ToBacktestConfig()
	if err != nil {
		return "", backtest.Config{}, err
	}
	return hash, cfg, nil
}

func (o *Orchestrator) save(ctx context.Context, run *audit.Run) error {
	if o.auditRepo == nil {
		return ErrNoAuditRepository
	}
	if err := o.auditRepo.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("S3 audit: %w", err)
	}
	return nil
}

// GetRun loads a persisted run
func (o *Orchestrator) GetRun(ctx context.Context, id uuid.UUID) (*audit.Run, error) {
	if o.auditRepo == nil {
		return nil, ErrNoAuditRepository
	}
	return o.auditRepo.GetRun(ctx, id)
}

// ListRuns lists persisted runs, newest first
func (o *Orchestrator) ListRuns(ctx context.Context, kind audit.Kind, limit int) ([]audit.Run, error) {
	if o.auditRepo == nil {
		return nil, ErrNoAuditRepository
	}
	return o.auditRepo.ListRuns(ctx, kind, limit)
}

func (o *Orchestrator) recordDiagnostics(result *backtest.Result) {
	if o.metrics == nil {
		return
	}
	drops := make(map[string]int, len(result.Diagnostics.DropCounts))
	for reason, n := range result.Diagnostics.DropCounts {
		drops[string(reason)] = n
	}
	trades := make(map[string]int, len(result.SummaryMetrics.ExitReasons))
	for reason, n := range result.SummaryMetrics.ExitReasons {
		trades[string(reason)] = n
	}
	o.metrics.AddDrops(drops)
	o.metrics.AddTrades(trades)
	o.metrics.AddDataGaps(len(result.Diagnostics.DataGaps))
}

func (o *Orchestrator) observe(kind audit.Kind, err error, d time.Duration) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusFailed
	}
	o.metrics.ObserveRun(string(kind), status, d)
}
