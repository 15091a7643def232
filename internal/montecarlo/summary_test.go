package montecarlo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

func fakeResult(totalReturn, cagr, maxDD, pf float64, pfUndefined bool) *backtest.Result {
	res := &backtest.Result{
		SummaryMetrics: backtest.Metrics{
			TotalReturn:  totalReturn,
			CAGR:         cagr,
			MaxDrawdown:  maxDD,
			ProfitFactor: pf,
			FinalValue:   100_000 * (1 + totalReturn),
			TotalTrades:  4,
			ExitReasons: map[contracts.ExitReason]int{
				contracts.ExitStopLoss: 1,
				contracts.ExitTime:     3,
			},
		},
	}
	if pfUndefined {
		res.Diagnostics.Undefined = []string{"profit_factor"}
	}
	return res
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{StartDate: day("2023-01-01"), Result: fakeResult(0.10, 0.10, 0.05, 2.0, false)},
		{StartDate: day("2023-02-15"), Result: fakeResult(0.30, 0.30, 0.15, backtest.ProfitFactorNoLoss, true)},
		{StartDate: day("2023-04-01"), Skipped: true},
		{StartDate: day("2023-05-20"), Err: errors.New("boom")},
		{StartDate: day("2023-07-01"), Result: fakeResult(-0.10, -0.10, 0.20, 0.5, false)},
	}

	s := Summarize(outcomes, backtest.DefaultConfig(), DefaultConfig())

	assert.Equal(t, 3, s.Runs)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Len(t, s.StartDates, 5)
	require.Len(t, s.Individual, 5)
	assert.Equal(t, "boom", s.Individual[3].Error)
	assert.True(t, s.Individual[2].Skipped)

	row := s.Individual[0]
	assert.Equal(t, 1, row.StopLossCount)
	assert.Equal(t, 3, row.TimeExitCount)
	assert.True(t, row.ProfitFactorDefined)
	assert.False(t, s.Individual[1].ProfitFactorDefined)

	// sentinel profit factor 는 분포에서 제외
	assert.Equal(t, 2, s.Metrics.ProfitFactor.Count)
	assert.InDelta(t, 1.25, s.Metrics.ProfitFactor.Mean, 1e-12)
	assert.Equal(t, 3, s.Metrics.TotalReturn.Count)

	assert.InDelta(t, 2.0/3.0, s.ProfitableFraction, 1e-12)
	assert.Equal(t, 2, s.Robustness.ProfitableRuns)
	assert.InDelta(t, 0.1, s.Metrics.TotalReturn.Mean, 1e-12)
	assert.InDelta(t, 0.1, s.Metrics.TotalReturn.Median, 1e-12)
	assert.InDelta(t, 0.2, s.Metrics.TotalReturn.Std, 1e-12)
	assert.InDelta(t, 2.0, s.Robustness.ReturnCV, 1e-9)
	assert.Equal(t, ConsistencyLow, s.Robustness.Consistency)
	assert.InDelta(t, -0.10, s.Robustness.WorstReturn, 1e-12)
	assert.False(t, s.Robustness.WorstCaseProfitable)
	assert.InDelta(t, 0.1/(0.4/3.0), s.Robustness.ReturnDrawdownRatio, 1e-9)
}

func TestSummarize_Consistency(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		want    Consistency
	}{
		{"tight", []float64{0.10, 0.11, 0.12}, ConsistencyHigh},
		{"medium", []float64{0.04, 0.10, 0.16}, ConsistencyMedium},
		{"losing", []float64{-0.05, -0.10, 0.05}, ConsistencyNA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var outcomes []Outcome
			for i, r := range tt.returns {
				outcomes = append(outcomes, Outcome{
					StartDate: day("2023-01-01").AddDate(0, 0, 7*i),
					Result:    fakeResult(r, r, 0.1, 1.5, false),
				})
			}
			s := Summarize(outcomes, backtest.DefaultConfig(), DefaultConfig())
			assert.Equal(t, tt.want, s.Robustness.Consistency)
		})
	}
}

func TestSummarize_AllSkipped(t *testing.T) {
	s := Summarize([]Outcome{
		{StartDate: day("2024-01-01"), Skipped: true},
		{StartDate: day("2024-02-15"), Skipped: true},
	}, backtest.DefaultConfig(), DefaultConfig())

	assert.Equal(t, 0, s.Runs)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 0.0, s.ProfitableFraction)
	assert.Equal(t, ConsistencyNA, s.Robustness.Consistency)
	assert.Equal(t, 0, s.Metrics.TotalReturn.Count)
}
