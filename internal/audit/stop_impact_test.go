package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

func impactTrade(ticker, signal, entry, exit string, pnlPct float64, reason contracts.ExitReason) backtest.Trade {
	parse := func(s string) contracts.Date {
		t, _ := time.Parse(contracts.DateLayout, s)
		return contracts.NewDate(t)
	}
	ed, xd := parse(entry), parse(exit)
	return backtest.Trade{
		Ticker:      ticker,
		SignalDate:  parse(signal),
		EntryDate:   ed,
		ExitDate:    xd,
		PnLPct:      pnlPct,
		HoldingDays: int(xd.Sub(ed.Time).Hours() / 24),
		ExitReason:  reason,
		Score:       6,
	}
}

func TestCompareStop(t *testing.T) {
	cfg := backtest.DefaultConfig()
	withStop := &backtest.Result{Config: cfg, Trades: []backtest.Trade{
		impactTrade("AAA", "2023-01-06", "2023-01-09", "2023-01-20", -0.25, contracts.ExitStopLoss),
		impactTrade("BBB", "2023-01-06", "2023-01-09", "2023-04-10", 0.10, contracts.ExitTime),
		impactTrade("CCC", "2023-01-13", "2023-01-16", "2023-02-01", -0.25, contracts.ExitStopLoss),
		impactTrade("DDD", "2023-02-03", "2023-02-06", "2023-05-08", 0.05, contracts.ExitTime), // 기준 실행에 없음
	}}
	noStop := cfg
	noStop.StopLossPct = NoStopLossPct
	withoutStop := &backtest.Result{Config: noStop, Trades: []backtest.Trade{
		impactTrade("CCC", "2023-01-13", "2023-01-16", "2023-04-17", 0.40, contracts.ExitTime),
		impactTrade("AAA", "2023-01-06", "2023-01-09", "2023-04-10", -0.60, contracts.ExitTime),
		impactTrade("BBB", "2023-01-06", "2023-01-09", "2023-04-10", 0.10, contracts.ExitTime),
	}}

	impact := CompareStop(withStop, withoutStop)

	assert.Equal(t, 0.25, impact.StopLossPct)
	assert.Equal(t, 3, impact.Compared)
	assert.Equal(t, 1, impact.Unmatched)
	require.Len(t, impact.Rows, 3)

	// 시그널일, 종목 순
	assert.Equal(t, []string{"AAA", "BBB", "CCC"},
		[]string{impact.Rows[0].Ticker, impact.Rows[1].Ticker, impact.Rows[2].Ticker})

	tests := []struct {
		ticker    string
		triggered bool
		with      float64
		without   float64
		stopDate  string
	}{
		{"AAA", true, -0.25, -0.60, "2023-01-20"},
		{"BBB", false, 0.10, 0.10, ""},
		{"CCC", true, -0.25, 0.40, "2023-02-01"},
	}
	for i, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			row := impact.Rows[i]
			assert.Equal(t, tt.ticker, row.Ticker)
			assert.Equal(t, tt.triggered, row.StopTriggered)
			assert.InDelta(t, tt.with, row.ReturnWithStop, 1e-12)
			assert.InDelta(t, tt.without, row.ReturnWithoutStop, 1e-12)
			if tt.stopDate == "" {
				assert.True(t, row.StopDate.IsZero())
			} else {
				assert.Equal(t, tt.stopDate, row.StopDate.String())
			}
		})
	}

	assert.Equal(t, 2, impact.Triggered)
	assert.InDelta(t, 2.0/3.0, impact.TriggeredPct, 1e-12)
	assert.Equal(t, 1, impact.Helped)
	assert.Equal(t, 1, impact.Hurt)
	assert.InDelta(t, (11.0+16.0)/2, impact.AvgDaysStopped, 1e-12)
	assert.InDelta(t, -0.25, impact.StoppedAvg, 1e-12)
	assert.InDelta(t, (-0.60+0.40)/2, impact.StoppedWouldAvg, 1e-12)
	assert.False(t, impact.StopHelped(), "stopped trades would have averaged better if held")

	assert.InDelta(t, (-0.25+0.10-0.25)/3, impact.WithStop.AvgReturn, 1e-12)
	assert.InDelta(t, (-0.60+0.10+0.40)/3, impact.WithoutStop.AvgReturn, 1e-12)
	assert.InDelta(t, impact.WithStop.AvgReturn-impact.WithoutStop.AvgReturn, impact.Improvement, 1e-12)
	assert.InDelta(t, 1.0/3.0, impact.WithStop.WinRate, 1e-12)
	assert.InDelta(t, 2.0/3.0, impact.WithoutStop.WinRate, 1e-12)
	assert.Equal(t, 0.40, impact.WithoutStop.Best)
	assert.Equal(t, -0.60, impact.WithoutStop.Worst)
}

func TestCompareStop_PyramidedSignalsPairInEntryOrder(t *testing.T) {
	cfg := backtest.DefaultConfig()
	withStop := &backtest.Result{Config: cfg, Trades: []backtest.Trade{
		impactTrade("AAA", "2023-01-06", "2023-01-10", "2023-04-10", 0.02, contracts.ExitTime),
		impactTrade("AAA", "2023-01-06", "2023-01-09", "2023-01-20", -0.25, contracts.ExitStopLoss),
	}}
	withoutStop := &backtest.Result{Config: cfg, Trades: []backtest.Trade{
		impactTrade("AAA", "2023-01-06", "2023-01-09", "2023-04-10", -0.30, contracts.ExitTime),
		impactTrade("AAA", "2023-01-06", "2023-01-10", "2023-04-10", 0.02, contracts.ExitTime),
	}}

	impact := CompareStop(withStop, withoutStop)
	require.Len(t, impact.Rows, 2)
	assert.Equal(t, 0, impact.Unmatched)

	assert.Equal(t, "2023-01-09", impact.Rows[0].EntryDate.String())
	assert.InDelta(t, -0.30, impact.Rows[0].ReturnWithoutStop, 1e-12)
	assert.Equal(t, "2023-01-10", impact.Rows[1].EntryDate.String())
	assert.InDelta(t, 0.02, impact.Rows[1].ReturnWithoutStop, 1e-12)
	assert.Equal(t, 1, impact.Helped)
}

func TestCompareStop_Empty(t *testing.T) {
	cfg := backtest.DefaultConfig()
	impact := CompareStop(&backtest.Result{Config: cfg}, &backtest.Result{Config: cfg})
	assert.Equal(t, 0, impact.Compared)
	assert.Equal(t, 0, impact.Triggered)
	assert.Equal(t, ReturnStats{}, impact.WithStop)
	assert.False(t, impact.StopHelped())
}
