package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPosition_Close(t *testing.T) {
	sig := Signal{Ticker: "AAPL", SignalDate: day("2023-01-06"), Score: 5}
	pos := NewPosition(sig, day("2023-01-09"), 50, 20)

	require.True(t, pos.IsOpen())
	assert.Equal(t, 1000.0, pos.CostBasis)

	proceeds, err := pos.Close(day("2023-01-19"), 55, ExitTime)
	require.NoError(t, err)

	assert.Equal(t, 1100.0, proceeds)
	assert.Equal(t, PositionClosed, pos.Status)
	assert.Equal(t, 100.0, pos.PnL)
	assert.InDelta(t, 0.10, pos.PnLPct, 1e-12)
	assert.Equal(t, 10, pos.HoldingDays)
	assert.Equal(t, ExitTime, pos.ExitReason)
}

func TestPosition_CloseTwice(t *testing.T) {
	pos := NewPosition(Signal{Ticker: "MSFT"}, day("2023-01-09"), 10, 1)

	_, err := pos.Close(day("2023-01-10"), 11, ExitStopLoss)
	require.NoError(t, err)

	_, err = pos.Close(day("2023-01-11"), 12, ExitTime)
	assert.ErrorIs(t, err, ErrPositionClosed)
	assert.Equal(t, 11.0, pos.ExitPrice)
}

func TestPosition_CloseSameDay(t *testing.T) {
	pos := NewPosition(Signal{Ticker: "MSFT"}, day("2023-01-09"), 10, 1)

	_, err := pos.Close(day("2023-01-09"), 11, ExitEndOfSim)
	assert.ErrorIs(t, err, ErrExitBeforeEntry)
	assert.True(t, pos.IsOpen())
}

func TestPosition_StopPrice(t *testing.T) {
	pos := NewPosition(Signal{Ticker: "X"}, day("2023-01-09"), 100, 1)
	assert.InDelta(t, 40.0, pos.StopPrice(0.60), 1e-9)
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2023-01-01", "2023-01-01", 0},
		{"2023-01-06", "2023-01-09", 3},
		{"2023-02-27", "2023-03-01", 2},
		{"2024-01-01", "2025-01-01", 366},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(day(tt.a), day(tt.b)))
		})
	}
}

func TestParseDay_RFC3339(t *testing.T) {
	got, err := ParseDay("2023-03-15T16:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, day("2023-03-15"), got)

	_, err = ParseDay("15/03/2023")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}

	out, err := json.Marshal(wrapper{D: NewDate(time.Date(2023, 3, 15, 21, 0, 0, 0, time.UTC))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2023-03-15"}`, string(out))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-02-29"}`), &w))
	assert.Equal(t, day("2024-02-29"), w.D.Time)

	assert.Error(t, json.Unmarshal([]byte(`{"d":20240229}`), &w))
}
