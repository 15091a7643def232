package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

func curveOf(dates []string, values []float64) []EquityPoint {
	out := make([]EquityPoint, len(values))
	for i := range values {
		out[i] = EquityPoint{Date: contracts.NewDate(day(dates[i])), Value: values[i]}
	}
	return out
}

func TestComputeMetrics_WinRateExact(t *testing.T) {
	pcts := []float64{0.10, -0.05, 0, 0.02, -0.30, 0.5, 0.0001}
	trades := make([]Trade, len(pcts))
	wins := 0
	for i, p := range pcts {
		trades[i] = Trade{PnLPct: p, PnL: p * 1000, ExitReason: contracts.ExitTime}
		if p > 0 {
			wins++
		}
	}

	m, _ := ComputeMetrics(nil, trades, 100_000, 0)

	assert.Equal(t, float64(wins)/float64(len(trades)), m.WinRate)
	assert.Equal(t, 4, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.Equal(t, len(pcts), m.ExitReasons[contracts.ExitTime])
}

func TestComputeMetrics_ProfitFactor(t *testing.T) {
	tests := []struct {
		name          string
		pnls          []float64
		want          float64
		wantUndefined bool
	}{
		{"gains and losses", []float64{300, -100, 100}, 4, false},
		{"no losses", []float64{300, 100}, ProfitFactorNoLoss, true},
		{"no trades", nil, 0, true},
		{"only flat", []float64{0, 0}, 0, true},
		{"only losses", []float64{-10}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trades []Trade
			for _, p := range tt.pnls {
				trades = append(trades, Trade{PnL: p, PnLPct: p / 1000})
			}

			m, undefined := ComputeMetrics(nil, trades, 100_000, 0)

			assert.InDelta(t, tt.want, m.ProfitFactor, 1e-12)
			if tt.wantUndefined {
				assert.Contains(t, undefined, "profit_factor")
			} else {
				assert.NotContains(t, undefined, "profit_factor")
			}
		})
	}
}

func TestComputeMetrics_ReturnsAndDrawdown(t *testing.T) {
	curve := curveOf(
		[]string{"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05", "2024-01-02"},
		[]float64{110_000, 99_000, 121_000, 115_000, 125_000},
	)

	m, undefined := ComputeMetrics(curve, nil, 100_000, 0)

	assert.InDelta(t, 0.25, m.TotalReturn, 1e-12)
	assert.InDelta(t, 0.1, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, math.Pow(1.25, 365.0/365.0)-1, m.CAGR, 1e-12)
	assert.Equal(t, 125_000.0, m.FinalValue)
	assert.Equal(t, 5, m.TradingDays)
	assert.NotContains(t, undefined, "sharpe_ratio")
	assert.NotContains(t, undefined, "sortino_ratio")
	assert.Greater(t, m.SharpeRatio, 0.0)
	assert.Greater(t, m.Volatility, 0.0)
}

func TestComputeMetrics_Sharpe(t *testing.T) {
	// 일간 수익률: +10%, -10%, +10%
	curve := curveOf(
		[]string{"2023-01-02", "2023-01-03", "2023-01-04"},
		[]float64{110, 99, 108.9},
	)

	m, _ := ComputeMetrics(curve, nil, 100, 0)

	mean := (0.1 - 0.1 + 0.1) / 3
	std := math.Sqrt((2*math.Pow(0.1-mean, 2) + math.Pow(-0.1-mean, 2)) / 2)
	assert.InDelta(t, mean/std*math.Sqrt(252), m.SharpeRatio, 1e-9)

	downside := math.Sqrt(math.Pow(-0.1, 2) / 3)
	assert.InDelta(t, mean/downside*math.Sqrt(252), m.SortinoRatio, 1e-9)
}

func TestComputeMetrics_Sentinels(t *testing.T) {
	t.Run("flat curve", func(t *testing.T) {
		curve := curveOf([]string{"2023-01-02", "2023-01-03"}, []float64{100, 100})
		m, undefined := ComputeMetrics(curve, nil, 100, 0)

		assert.Equal(t, 0.0, m.SharpeRatio)
		assert.Equal(t, 0.0, m.SortinoRatio)
		assert.Contains(t, undefined, "sharpe_ratio")
		assert.Contains(t, undefined, "sortino_ratio")
	})

	t.Run("only gains", func(t *testing.T) {
		curve := curveOf([]string{"2023-01-02", "2023-01-03", "2023-01-04"}, []float64{101, 103, 104})
		m, undefined := ComputeMetrics(curve, nil, 100, 0)

		assert.Equal(t, SortinoNoDownside, m.SortinoRatio)
		assert.Contains(t, undefined, "sortino_ratio")
	})

	t.Run("single day", func(t *testing.T) {
		curve := curveOf([]string{"2023-01-02"}, []float64{90})
		m, undefined := ComputeMetrics(curve, nil, 100, 0)

		assert.Equal(t, 0.0, m.CAGR)
		assert.Contains(t, undefined, "cagr")
	})

	t.Run("wiped out", func(t *testing.T) {
		curve := curveOf([]string{"2023-01-02", "2023-06-02"}, []float64{50, 0})
		m, _ := ComputeMetrics(curve, nil, 100, 0)

		assert.Equal(t, -1.0, m.CAGR)
		assert.Equal(t, 1.0, m.MaxDrawdown)
	})

	for _, v := range []float64{0, 1} {
		m, _ := ComputeMetrics(curveOf([]string{"2023-01-02", "2023-01-03"}, []float64{100 * v, 0}), nil, 100, 0)
		for _, x := range []float64{m.SharpeRatio, m.SortinoRatio, m.CAGR, m.Volatility, m.MaxDrawdown} {
			assert.False(t, math.IsNaN(x) || math.IsInf(x, 0))
		}
	}
}

func TestComputeMetrics_TradeStats(t *testing.T) {
	trades := []Trade{
		{PnL: 100, PnLPct: 0.2, HoldingDays: 400, ExitReason: contracts.ExitTime},
		{PnL: 50, PnLPct: 0.1, HoldingDays: 100, ExitReason: contracts.ExitTime},
		{PnL: -25, PnLPct: -0.25, HoldingDays: 30, ExitReason: contracts.ExitStopLoss},
		{PnL: -10, PnLPct: -0.05, HoldingDays: 20, ExitReason: contracts.ExitEndOfSim},
	}

	m, _ := ComputeMetrics(nil, trades, 1000, 0)

	assert.InDelta(t, 0.15, m.AvgWinPct, 1e-12)
	assert.InDelta(t, -0.15, m.AvgLossPct, 1e-12)
	assert.InDelta(t, 137.5, m.AvgHoldingDays, 1e-12)
	assert.Equal(t, 1, m.LongTermTrades)
	assert.InDelta(t, 0.25, m.LongTermShare, 1e-12)
	assert.InDelta(t, 150.0/35.0, m.ProfitFactor, 1e-12)
	assert.Equal(t, 1, m.ExitReasons[contracts.ExitStopLoss])
	assert.Equal(t, 1, m.ExitReasons[contracts.ExitEndOfSim])
}

func TestMonthlyReturns(t *testing.T) {
	curve := curveOf(
		[]string{"2023-01-30", "2023-01-31", "2023-02-01", "2023-02-28", "2023-03-01"},
		[]float64{101, 110, 108, 99, 118.8},
	)

	got := MonthlyReturns(curve, 100)

	require.Len(t, got, 3)
	assert.Equal(t, "2023-01", got[0].Month)
	assert.InDelta(t, 0.10, got[0].Return, 1e-12)
	assert.InDelta(t, -0.10, got[1].Return, 1e-12)
	assert.InDelta(t, 0.20, got[2].Return, 1e-12)
}

func TestDrawdownSeries_PeakSeededWithCapital(t *testing.T) {
	curve := curveOf([]string{"2023-01-02", "2023-01-03", "2023-01-04"}, []float64{90, 120, 108})

	got := DrawdownSeries(curve, 100)

	require.Len(t, got, 3)
	assert.InDelta(t, 0.10, got[0].Drawdown, 1e-12)
	assert.Equal(t, 0.0, got[1].Drawdown)
	assert.InDelta(t, 0.10, got[2].Drawdown, 1e-12)
}
