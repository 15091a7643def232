package montecarlo

import (
	"slices"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/risk"
)

// Summary aggregates every start date's outcome.
// Carries no timestamps so repeated runs marshal identically.
type Summary struct {
	Params     Config           `json:"params"`
	Strategy   backtest.Config  `json:"strategy"`
	StartDates []contracts.Date `json:"start_dates"`

	Runs    int `json:"runs"` // 완료된 run 수
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	Metrics            MetricStats `json:"metrics"`
	ProfitableFraction float64     `json:"profitable_fraction"`
	Robustness         Robustness  `json:"robustness"`
	Individual         []RunRow    `json:"individual_runs"`
}

// MetricStats holds one distribution per summary metric
type MetricStats struct {
	TotalReturn  risk.Distribution `json:"total_return"`
	CAGR         risk.Distribution `json:"cagr"`
	MaxDrawdown  risk.Distribution `json:"max_drawdown"`
	SharpeRatio  risk.Distribution `json:"sharpe_ratio"`
	SortinoRatio risk.Distribution `json:"sortino_ratio"`
	WinRate      risk.Distribution `json:"win_rate"`
	ProfitFactor risk.Distribution `json:"profit_factor"` // sentinel 제외
	TotalTrades  risk.Distribution `json:"total_trades"`
	FinalValue   risk.Distribution `json:"final_value"`
}

// Consistency grades return dispersion by coefficient of variation
type Consistency string

const (
	ConsistencyHigh   Consistency = "HIGH"   // CV < 0.5
	ConsistencyMedium Consistency = "MEDIUM" // CV < 1.0
	ConsistencyLow    Consistency = "LOW"
	ConsistencyNA     Consistency = "N/A" // 평균 수익률 <= 0
)

// Robustness summarizes how sensitive the strategy is to the start date
type Robustness struct {
	ProfitableRuns      int         `json:"profitable_runs"`
	ReturnCV            float64     `json:"return_cv"`
	Consistency         Consistency `json:"consistency"`
	WorstReturn         float64     `json:"worst_return"`
	WorstCaseProfitable bool        `json:"worst_case_profitable"`
	ReturnDrawdownRatio float64     `json:"return_drawdown_ratio"` // mean CAGR / mean MaxDD, 0 if undefined
}

// RunRow is one line of the individual-runs table
type RunRow struct {
	StartDate           contracts.Date `json:"start_date"`
	EndDate             contracts.Date `json:"end_date"`
	Skipped             bool           `json:"skipped,omitempty"`
	Error               string         `json:"error,omitempty"`
	TotalReturn         float64        `json:"total_return"`
	CAGR                float64        `json:"cagr"`
	MaxDrawdown         float64        `json:"max_drawdown"`
	SharpeRatio         float64        `json:"sharpe_ratio"`
	SortinoRatio        float64        `json:"sortino_ratio"`
	WinRate             float64        `json:"win_rate"`
	ProfitFactor        float64        `json:"profit_factor"`
	ProfitFactorDefined bool           `json:"profit_factor_defined"`
	AvgWinPct           float64        `json:"avg_win_pct"`
	AvgLossPct          float64        `json:"avg_loss_pct"`
	TotalTrades         int            `json:"total_trades"`
	FinalValue          float64        `json:"final_value"`
	StopLossCount       int            `json:"stop_loss_count"`
	TimeExitCount       int            `json:"time_exit_count"`
	EndOfSimCount       int            `json:"end_of_sim_count"`
	Dropped             int            `json:"dropped"`
}

// completed reports whether the row holds a finished simulation
func (r RunRow) completed() bool {
	return !r.Skipped && r.Error == ""
}

// RowFromOutcome flattens one outcome into a table row
func RowFromOutcome(o Outcome) RunRow {
	row := RunRow{StartDate: contracts.NewDate(o.StartDate), Skipped: o.Skipped}
	if o.Err != nil {
		row.Error = o.Err.Error()
	}
	if o.Result == nil {
		return row
	}

	m := o.Result.SummaryMetrics
	row.EndDate = o.Result.EndDate
	row.TotalReturn = m.TotalReturn
	row.CAGR = m.CAGR
	row.MaxDrawdown = m.MaxDrawdown
	row.SharpeRatio = m.SharpeRatio
	row.SortinoRatio = m.SortinoRatio
	row.WinRate = m.WinRate
	row.ProfitFactor = m.ProfitFactor
	row.ProfitFactorDefined = !slices.Contains(o.Result.Diagnostics.Undefined, "profit_factor")
	row.AvgWinPct = m.AvgWinPct
	row.AvgLossPct = m.AvgLossPct
	row.TotalTrades = m.TotalTrades
	row.FinalValue = m.FinalValue
	row.StopLossCount = m.ExitReasons[contracts.ExitStopLoss]
	row.TimeExitCount = m.ExitReasons[contracts.ExitTime]
	row.EndOfSimCount = m.ExitReasons[contracts.ExitEndOfSim]
	row.Dropped = o.Result.Diagnostics.Dropped()
	return row
}

// Summarize aggregates outcomes (already sorted by start date)
func Summarize(outcomes []Outcome, strategy backtest.Config, params Config) *Summary {
	s := &Summary{
		Params:     params,
		Strategy:   strategy,
		StartDates: make([]contracts.Date, 0, len(outcomes)),
		Individual: make([]RunRow, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		s.StartDates = append(s.StartDates, contracts.NewDate(o.StartDate))
		row := RowFromOutcome(o)
		s.Individual = append(s.Individual, row)
		switch {
		case row.Skipped:
			s.Skipped++
		case row.Error != "":
			s.Failed++
		}
	}

	s.Metrics, s.Robustness = aggregate(s.Individual)
	s.Runs = s.Metrics.TotalReturn.Count
	if s.Runs > 0 {
		s.ProfitableFraction = float64(s.Robustness.ProfitableRuns) / float64(s.Runs)
	}
	return s
}

func aggregate(rows []RunRow) (MetricStats, Robustness) {
	var totalReturn, cagr, maxDD, sharpe, sortino, winRate, pf, trades, finalValue []float64
	var rob Robustness

	for _, r := range rows {
		if !r.completed() {
			continue
		}
		totalReturn = append(totalReturn, r.TotalReturn)
		cagr = append(cagr, r.CAGR)
		maxDD = append(maxDD, r.MaxDrawdown)
		sharpe = append(sharpe, r.SharpeRatio)
		sortino = append(sortino, r.SortinoRatio)
		winRate = append(winRate, r.WinRate)
		trades = append(trades, float64(r.TotalTrades))
		finalValue = append(finalValue, r.FinalValue)
		if r.ProfitFactorDefined {
			pf = append(pf, r.ProfitFactor)
		}
		if r.TotalReturn > 0 {
			rob.ProfitableRuns++
		}
	}

	stats := MetricStats{
		TotalReturn:  risk.Describe(totalReturn),
		CAGR:         risk.Describe(cagr),
		MaxDrawdown:  risk.Describe(maxDD),
		SharpeRatio:  risk.Describe(sharpe),
		SortinoRatio: risk.Describe(sortino),
		WinRate:      risk.Describe(winRate),
		ProfitFactor: risk.Describe(pf),
		TotalTrades:  risk.Describe(trades),
		FinalValue:   risk.Describe(finalValue),
	}

	rob.Consistency = ConsistencyNA
	if stats.TotalReturn.Mean > 0 {
		rob.ReturnCV = stats.TotalReturn.CV()
		switch {
		case rob.ReturnCV < 0.5:
			rob.Consistency = ConsistencyHigh
		case rob.ReturnCV < 1.0:
			rob.Consistency = ConsistencyMedium
		default:
			rob.Consistency = ConsistencyLow
		}
	}
	if stats.TotalReturn.Count > 0 {
		rob.WorstReturn = stats.TotalReturn.Min
		rob.WorstCaseProfitable = stats.TotalReturn.Min > 0
	}
	if stats.CAGR.Mean > 0 && stats.MaxDrawdown.Mean > 0 {
		rob.ReturnDrawdownRatio = stats.CAGR.Mean / stats.MaxDrawdown.Mean
	}

	return stats, rob
}
