package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// stopTolerance absorbs float error in EntryPrice × (1 − StopLossPct)
const stopTolerance = 1e-9

// Engine runs backtest simulations
// ⭐ SSOT: 백테스팅 실행은 여기서만
// Engine은 상태가 없으므로 여러 goroutine에서 동시에 Run 호출 가능
type Engine struct {
	cfg      Config
	calendar Calendar
	logger   *logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCalendar overrides the default weekday calendar
func WithCalendar(c Calendar) Option {
	return func(e *Engine) {
		if c != nil {
			e.calendar = c
		}
	}
}

// NewEngine validates cfg and creates an engine. Returns *ConfigError on invalid cfg.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.MaxGapLookbackDays == 0 {
		cfg.MaxGapLookbackDays = DefaultConfig().MaxGapLookbackDays
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.StartDate.IsZero() {
		cfg.StartDate = contracts.Day(cfg.StartDate)
	}
	if !cfg.EndDate.IsZero() {
		cfg.EndDate = contracts.Day(cfg.EndDate)
	}

	e := &Engine{
		cfg:      cfg,
		calendar: WeekdayCalendar{},
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the validated configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// pendingEntry is a signal waiting for its entry day
type pendingEntry struct {
	signal contracts.Signal
	entry  time.Time
}

// run holds the state of one simulation
type run struct {
	cfg    Config
	cal    Calendar
	oracle contracts.PriceOracle
	ledger *Ledger
	log    *logger.Logger

	curve []EquityPoint
	diag  Diagnostics
	gaps  map[string]struct{} // ticker|date, 같은 날 같은 종목 gap은 한 번만 기록
}

// Run simulates signals against oracle. signals must be sorted by SignalDate.
func (e *Engine) Run(ctx context.Context, signals []contracts.Signal, oracle contracts.PriceOracle) (*Result, error) {
	if !contracts.SignalsSorted(signals) {
		return nil, &ConfigError{Field: "signals", Message: "must be sorted ascending by signal_date"}
	}
	if oracle == nil {
		return nil, &ConfigError{Field: "oracle", Message: "is required"}
	}

	r := &run{
		cfg:    e.cfg,
		cal:    e.calendar,
		oracle: oracle,
		ledger: NewLedger(e.cfg),
		log:    e.logger,
		diag: Diagnostics{
			SignalsSeen: len(signals),
			DropCounts:  make(map[DropReason]int),
			Drops:       []Drop{},
			DataGaps:    []DataGapError{},
			Undefined:   []string{},
		},
		gaps: make(map[string]struct{}),
	}

	// 진입일 = SignalDate 다음 거래일 (금요일 시그널 → 월요일 시가)
	pending := make([]pendingEntry, len(signals))
	for i, sig := range signals {
		pending[i] = pendingEntry{signal: sig, entry: r.cal.Next(sig.SignalDate)}
	}

	start, final, ok := e.window(pending, oracle)
	result := &Result{Config: e.cfg}
	if !ok {
		e.logger.Warn("Backtest has no trading days in window")
		result.Diagnostics = r.diag
		r.finish(result, e.cfg)
		return result, nil
	}
	result.StartDate = contracts.NewDate(start)
	result.EndDate = contracts.NewDate(final)

	e.logger.WithFields(map[string]interface{}{
		"start_date":      start.Format(contracts.DateLayout),
		"end_date":        final.Format(contracts.DateLayout),
		"signals":         len(signals),
		"initial_capital": e.cfg.InitialCapital,
		"holding_days":    e.cfg.HoldingPeriodDays,
		"stop_loss_pct":   e.cfg.StopLossPct,
	}).Debug("Starting backtest")

	// 시작일 이전/종료일 이후 진입 시그널은 먼저 집계
	byDay := make(map[time.Time][]pendingEntry)
	for _, p := range pending {
		switch {
		case p.entry.Before(start):
			r.diag.addDrop(p.signal, contracts.NewDate(p.entry), DropBeforeStart)
		case p.entry.After(final):
			r.diag.addDrop(p.signal, contracts.NewDate(p.entry), DropAfterEnd)
		default:
			byDay[p.entry] = append(byDay[p.entry], p)
		}
	}

	for day := start; !day.After(final); day = r.cal.Next(day) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest canceled at %s: %w", day.Format(contracts.DateLayout), err)
		}

		isFinal := day.Equal(final)

		// 1. 청산 평가 (당일 진입 전)
		if err := r.evaluateExits(day); err != nil {
			return nil, err
		}

		// 2. 신규 진입
		r.admitEntries(day, byDay[day], isFinal)

		// 3. 평가
		r.mark(day)

		// 4. 시뮬레이션 종료
		if isFinal {
			for _, pos := range r.ledger.OpenPositions() {
				if err := r.ledger.Close(pos, pos.LastPrice, contracts.ExitEndOfSim, day); err != nil {
					return nil, fmt.Errorf("end of simulation: %w", err)
				}
				result.OpenAtEnd++
			}
		}
	}

	result.Diagnostics = r.diag
	r.finish(result, e.cfg)

	e.logger.WithFields(map[string]interface{}{
		"start_date":   result.StartDate.String(),
		"trades":       len(result.Trades),
		"dropped":      result.Diagnostics.Dropped(),
		"data_gaps":    len(result.Diagnostics.DataGaps),
		"total_return": fmt.Sprintf("%.2f%%", result.SummaryMetrics.TotalReturn*100),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.SummaryMetrics.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}

// window resolves the first and final trading days of the run
func (e *Engine) window(pending []pendingEntry, oracle contracts.PriceOracle) (time.Time, time.Time, bool) {
	start := e.cfg.StartDate
	if start.IsZero() {
		if len(pending) == 0 {
			return time.Time{}, time.Time{}, false
		}
		start = pending[0].entry
		for _, p := range pending[1:] {
			if p.entry.Before(start) {
				start = p.entry
			}
		}
	}
	start = onOrAfter(e.calendar, start)

	end := e.cfg.EndDate
	if end.IsZero() {
		if len(pending) == 0 {
			return time.Time{}, time.Time{}, false
		}
		last := pending[0].entry
		for _, p := range pending[1:] {
			if p.entry.After(last) {
				last = p.entry
			}
		}
		end = last.AddDate(0, 0, e.cfg.HoldingPeriodDays)

		if ranger, ok := oracle.(contracts.DateRanger); ok {
			if _, lastData, ok := ranger.DateRange(); ok && lastData.Before(end) {
				end = contracts.Day(lastData)
			}
		}
	}
	final := onOrBefore(e.calendar, end)

	if final.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, final, true
}

// evaluateExits closes positions that hit the stop or completed the holding period
func (r *run) evaluateExits(day time.Time) error {
	for _, pos := range r.ledger.OpenPositions() {
		if !pos.EntryDate.Before(day) {
			continue
		}

		bar, ok := r.oracle.Get(pos.Ticker, day)
		if ok {
			// 손절: 저가 기준, 손절가로 체결 (갭 하락이어도 손절가)
			stop := pos.StopPrice(r.cfg.StopLossPct)
			if bar.Low <= stop+stopTolerance {
				if err := r.ledger.Close(pos, stop, contracts.ExitStopLoss, day); err != nil {
					return fmt.Errorf("stop loss exit: %w", err)
				}
				continue
			}
		}

		if pos.DaysHeld(day) < r.cfg.HoldingPeriodDays {
			continue
		}

		price := bar.Close
		if !ok {
			price = r.fallbackPrice(pos, day)
		}
		if err := r.ledger.Close(pos, price, contracts.ExitTime, day); err != nil {
			return fmt.Errorf("time exit: %w", err)
		}
	}
	return nil
}

// admitEntries processes the signals whose entry day is today
func (r *run) admitEntries(day time.Time, entries []pendingEntry, isFinal bool) {
	// 동일일 우선순위: score desc, ticker asc, signal date asc
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].signal, entries[j].signal
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.SignalDate.Before(b.SignalDate)
	})

	date := contracts.NewDate(day)
	for _, p := range entries {
		sig := p.signal
		reason := DropNone

		switch {
		case sig.Score < r.cfg.ScoreMin || sig.Score > r.cfg.ScoreMax:
			reason = DropScore
		case isFinal:
			reason = DropFinalDay
		default:
			price := 0.0
			if bar, ok := r.oracle.Get(sig.Ticker, day); ok {
				price = bar.Open
			}
			var pos *contracts.Position
			pos, reason = r.ledger.Admit(sig, day, price)
			if pos != nil {
				r.diag.Admitted++
				r.log.WithFields(map[string]interface{}{
					"ticker": pos.Ticker,
					"date":   date.String(),
					"shares": pos.Shares,
					"price":  pos.EntryPrice,
				}).Debug("Position opened")
			}
		}

		if reason != DropNone {
			r.diag.addDrop(sig, date, reason)
			r.log.WithFields(map[string]interface{}{
				"ticker": sig.Ticker,
				"date":   date.String(),
				"score":  sig.Score,
				"reason": string(reason),
			}).Debug("Signal dropped")
		}
	}
}

// mark prices every open position through the ledger and appends the equity point
func (r *run) mark(day time.Time) {
	for _, pos := range r.ledger.OpenPositions() {
		if bar, ok := r.oracle.Get(pos.Ticker, day); ok {
			r.ledger.Mark(pos, bar.Close)
			continue
		}
		r.ledger.Mark(pos, r.fallbackPrice(pos, day))
	}

	r.curve = append(r.curve, EquityPoint{
		Date:          contracts.NewDate(day),
		Value:         r.ledger.PortfolioValue(),
		Cash:          r.ledger.Cash(),
		OpenPositions: r.ledger.OpenCount(),
	})
}

// fallbackPrice resolves a missing bar: nearest prior close within the lookback, else LastPrice.
// Records the gap once per ticker and day.
func (r *run) fallbackPrice(pos *contracts.Position, day time.Time) float64 {
	gap := DataGapError{Ticker: pos.Ticker, Date: contracts.NewDate(day), FallbackPrice: pos.LastPrice}

	for k := 1; k <= r.cfg.MaxGapLookbackDays; k++ {
		d := day.AddDate(0, 0, -k)
		if d.Before(pos.EntryDate) {
			break
		}
		if bar, ok := r.oracle.Get(pos.Ticker, d); ok {
			gap.FallbackDate = contracts.NewDate(d)
			gap.FallbackPrice = bar.Close
			break
		}
	}

	key := pos.Ticker + "|" + gap.Date.String()
	if _, seen := r.gaps[key]; !seen {
		r.gaps[key] = struct{}{}
		r.diag.DataGaps = append(r.diag.DataGaps, gap)
		r.log.WithError(&gap).Warn("Price data gap")
	}

	return gap.FallbackPrice
}

// finish converts ledger state into the result and computes metrics
func (r *run) finish(result *Result, cfg Config) {
	closed := r.ledger.Closed()
	result.Trades = make([]Trade, 0, len(closed))
	for _, pos := range closed {
		result.Trades = append(result.Trades, TradeFromPosition(pos))
	}

	result.EquityCurve = r.curve
	if result.EquityCurve == nil {
		result.EquityCurve = []EquityPoint{}
	}
	result.DrawdownSeries = DrawdownSeries(r.curve, cfg.InitialCapital)
	result.MonthlyReturns = MonthlyReturns(r.curve, cfg.InitialCapital)
	if result.MonthlyReturns == nil {
		result.MonthlyReturns = []MonthlyReturn{}
	}

	metrics, undefined := ComputeMetrics(r.curve, result.Trades, cfg.InitialCapital, cfg.RiskFreeRate)
	result.SummaryMetrics = metrics
	result.Diagnostics.Undefined = append(result.Diagnostics.Undefined, undefined...)
}
