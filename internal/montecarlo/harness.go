package montecarlo

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// Config holds the harness parameters
// ⭐ SSOT: Monte Carlo 파라미터 (재현성을 위해 Summary에 그대로 기록)
type Config struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Seed        int64     `json:"seed"`
	MinGapWeeks int       `json:"min_gap_weeks"`
	MaxGapWeeks int       `json:"max_gap_weeks"`
	Workers     int       `json:"-"` // 결과에 영향 없음
}

// DefaultConfig returns 6-8 week spacing with seed 42 over 2023-2025
func DefaultConfig() Config {
	return Config{
		From:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Seed:        42,
		MinGapWeeks: 6,
		MaxGapWeeks: 8,
		Workers:     runtime.NumCPU(),
	}
}

// Progress is reported after each start date finishes
type Progress struct {
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	StartDate time.Time `json:"start_date"`
	Skipped   bool      `json:"skipped"`
	Err       error     `json:"-"`
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Outcome is one start date's result
type Outcome struct {
	StartDate time.Time
	Result    *backtest.Result
	Skipped   bool // SignalDate >= start 인 시그널 없음
	Err       error
}

// Harness replays the backtest from many start dates
type Harness struct {
	base     backtest.Config
	cfg      Config
	calendar backtest.Calendar
	logger   *logger.Logger
	progress ProgressFunc
}

// Option configures a Harness
type Option func(*Harness)

// WithLogger sets the harness logger
func WithLogger(l *logger.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCalendar sets the calendar used by every run
func WithCalendar(c backtest.Calendar) Option {
	return func(h *Harness) { h.calendar = c }
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(h *Harness) { h.progress = fn }
}

// New validates both configs. A *backtest.ConfigError aborts before any run.
func New(base backtest.Config, cfg Config, opts ...Option) (*Harness, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinGapWeeks <= 0 || cfg.MaxGapWeeks < cfg.MinGapWeeks {
		return nil, &backtest.ConfigError{Field: "min_gap_weeks", Message: "gap range must satisfy 0 < min <= max"}
	}
	if cfg.From.IsZero() || cfg.To.IsZero() || cfg.To.Before(cfg.From) {
		return nil, &backtest.ConfigError{Field: "to", Message: "date range must be set and to >= from"}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	h := &Harness{
		base:   base,
		cfg:    cfg,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Run executes one backtest per start date and aggregates the outcomes.
// Individual run failures are recorded, never returned.
func (h *Harness) Run(ctx context.Context, signals []contracts.Signal, oracle contracts.PriceOracle) (*Summary, error) {
	if !contracts.SignalsSorted(signals) {
		return nil, &backtest.ConfigError{Field: "signals", Message: "must be sorted ascending by signal_date"}
	}

	starts, err := GenerateStartDates(h.cfg.From, h.cfg.To, h.cfg.Seed, h.cfg.MinGapWeeks, h.cfg.MaxGapWeeks)
	if err != nil {
		return nil, fmt.Errorf("generate start dates: %w", err)
	}

	h.logger.WithFields(map[string]interface{}{
		"start_dates": len(starts),
		"seed":        h.cfg.Seed,
		"workers":     h.cfg.Workers,
		"signals":     len(signals),
	}).Info("Starting Monte Carlo")

	outcomes := make([]Outcome, len(starts))
	var (
		mu        sync.Mutex
		completed int
	)
	report := func(o Outcome) {
		if h.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		completed++
		h.progress(Progress{
			Completed: completed,
			Total:     len(starts),
			StartDate: o.StartDate,
			Skipped:   o.Skipped,
			Err:       o.Err,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Workers)

	for i, start := range starts {
		if gctx.Err() != nil {
			break
		}
		i, start := i, start
		g.Go(func() error {
			outcomes[i] = h.runOne(gctx, start, signals, oracle)
			report(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("monte carlo canceled: %w", err)
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].StartDate.Before(outcomes[j].StartDate)
	})

	summary := Summarize(outcomes, h.base, h.cfg)

	h.logger.WithFields(map[string]interface{}{
		"runs":                summary.Runs,
		"skipped":             summary.Skipped,
		"failed":              summary.Failed,
		"profitable_fraction": fmt.Sprintf("%.1f%%", summary.ProfitableFraction*100),
		"median_return":       fmt.Sprintf("%.2f%%", summary.Metrics.TotalReturn.Median*100),
	}).Info("Monte Carlo completed")

	return summary, nil
}

// runOne builds a fresh engine for start so no state crosses runs
func (h *Harness) runOne(ctx context.Context, start time.Time, signals []contracts.Signal, oracle contracts.PriceOracle) Outcome {
	out := Outcome{StartDate: start}

	filtered := contracts.SignalsFrom(signals, start)
	if len(filtered) == 0 {
		out.Skipped = true
		h.logger.WithField("start_date", start.Format(contracts.DateLayout)).Debug("Skipping start date with no signals")
		return out
	}

	cfg := h.base
	cfg.StartDate = start

	engine, err := backtest.NewEngine(cfg,
		backtest.WithCalendar(h.calendar),
		backtest.WithLogger(h.logger.WithField("start_date", start.Format(contracts.DateLayout))),
	)
	if err != nil {
		out.Err = err
		return out
	}

	res, err := engine.Run(ctx, filtered, oracle)
	if err != nil {
		out.Err = err
		h.logger.WithError(err).WithField("start_date", start.Format(contracts.DateLayout)).Warn("Monte Carlo run failed")
		return out
	}
	out.Result = res
	return out
}
