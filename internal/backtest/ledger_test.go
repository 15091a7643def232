package backtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

func TestLedger_AdmitAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionPct = 0.1
	ledger := NewLedger(cfg)

	pos, reason := ledger.Admit(contracts.Signal{Ticker: "AAPL", Score: 6}, day("2023-01-09"), 33)
	require.Equal(t, DropNone, reason)
	require.NotNil(t, pos)

	// floor(10,000 / 33) = 303
	assert.Equal(t, int64(303), pos.Shares)
	assert.InDelta(t, 9999, pos.CostBasis, 1e-9)
	assert.InDelta(t, 100_000-9999, ledger.Cash(), 1e-9)
	assert.Equal(t, 1, ledger.OpenCount())
	assert.InDelta(t, 100_000, ledger.PortfolioValue(), 1e-9)

	ledger.Mark(pos, 40)
	ledger.Mark(pos, 0) // 가격 없음: 마지막 평가 유지
	assert.InDelta(t, 100_000-9999+303*40, ledger.PortfolioValue(), 1e-9)

	require.NoError(t, ledger.Close(pos, 40, contracts.ExitTime, day("2023-01-20")))
	assert.Equal(t, 0, ledger.OpenCount())
	assert.InDelta(t, 100_000-9999+303*40, ledger.Cash(), 1e-9)
	assert.Len(t, ledger.Closed(), 1)

	err := ledger.Close(pos, 41, contracts.ExitTime, day("2023-01-23"))
	assert.ErrorIs(t, err, contracts.ErrPositionClosed)
}

func TestLedger_Refusals(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositions = 2
	cfg.MaxPositionPct = 0.5

	ledger := NewLedger(cfg)
	d := day("2023-01-09")

	_, reason := ledger.Admit(contracts.Signal{Ticker: "A"}, d, 10)
	require.Equal(t, DropNone, reason)

	_, reason = ledger.Admit(contracts.Signal{Ticker: "A"}, d, 10)
	assert.Equal(t, DropDuplicate, reason)

	_, reason = ledger.Admit(contracts.Signal{Ticker: "B"}, d, 0)
	assert.Equal(t, DropNoPrice, reason)

	_, reason = ledger.Admit(contracts.Signal{Ticker: "B"}, d, 10)
	require.Equal(t, DropNone, reason)

	_, reason = ledger.Admit(contracts.Signal{Ticker: "C"}, d, 10)
	assert.Equal(t, DropSlots, reason)
	assert.True(t, reason.IsCapacity())
}

func TestLedger_Pyramiding(t *testing.T) {
	cfg := testConfig()
	cfg.AllowPyramiding = true
	cfg.MaxPositionPct = 0.25
	ledger := NewLedger(cfg)

	first, _ := ledger.Admit(contracts.Signal{Ticker: "A", SignalDate: day("2023-01-06")}, day("2023-01-09"), 10)
	second, reason := ledger.Admit(contracts.Signal{Ticker: "A", SignalDate: day("2023-01-13")}, day("2023-01-16"), 10)
	require.Equal(t, DropNone, reason)

	open := ledger.OpenPositions()
	require.Len(t, open, 2)
	assert.Same(t, first, open[0])
	assert.Same(t, second, open[1])

	require.NoError(t, ledger.Close(first, 12, contracts.ExitTime, day("2023-01-20")))
	assert.True(t, ledger.Holds("A"))
	assert.Equal(t, 1, ledger.OpenCount())
}

func TestLedger_ZeroSharesAndCash(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionPct = 1
	cfg.CashBufferPct = 0.5
	ledger := NewLedger(cfg)

	_, reason := ledger.Admit(contracts.Signal{Ticker: "BRK"}, day("2023-01-09"), 60_000)
	assert.Equal(t, DropZeroShares, reason)

	_, reason = ledger.Admit(contracts.Signal{Ticker: "A"}, day("2023-01-09"), 1)
	require.Equal(t, DropNone, reason)
	assert.InDelta(t, 50_000, ledger.Cash(), 1e-9)

	_, reason = ledger.Admit(contracts.Signal{Ticker: "B"}, day("2023-01-09"), 1)
	assert.Equal(t, DropCash, reason)
	assert.ErrorIs(t, reason.Err(), ErrCapacityExceeded)
}

func TestLedger_OpenPositionsOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionPct = 0.1
	ledger := NewLedger(cfg)

	ledger.Admit(contracts.Signal{Ticker: "ZZZ"}, day("2023-01-09"), 10)
	ledger.Admit(contracts.Signal{Ticker: "MMM"}, day("2023-01-10"), 10)
	ledger.Admit(contracts.Signal{Ticker: "AAA"}, day("2023-01-10"), 10)

	var got []string
	for _, p := range ledger.OpenPositions() {
		got = append(got, p.Ticker)
	}
	assert.Equal(t, []string{"ZZZ", "AAA", "MMM"}, got)
}

func TestLedger_PortfolioValueSumsInEntryOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositions = 50
	cfg.MaxPositionPct = 0.015
	cfg.CashBufferPct = 0.05

	build := func() (*Ledger, float64) {
		ledger := NewLedger(cfg)
		var opened []*contracts.Position
		for i := 0; i < 45; i++ {
			sig := contracts.Signal{Ticker: fmt.Sprintf("T%02d", i), Score: 5}
			pos, reason := ledger.Admit(sig, day("2023-01-09"), 7.3+float64(i)*1.37)
			require.Equal(t, DropNone, reason)
			ledger.Mark(pos, pos.EntryPrice*(1+float64(i%7)*0.0131))
			opened = append(opened, pos)
		}
		want := ledger.Cash()
		for _, p := range opened {
			want += p.MarketValue()
		}
		return ledger, want
	}

	ledger, want := build()
	assert.Equal(t, want, ledger.PortfolioValue())
	assert.Equal(t, ledger.Cash()-cfg.CashBufferPct*want, ledger.availableAt(ledger.PortfolioValue()))

	for i := 0; i < 20; i++ {
		again, _ := build()
		require.Equal(t, ledger.PortfolioValue(), again.PortfolioValue())
	}
}
