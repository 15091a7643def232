package s2_signals

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

const feed = `[
  {"ticker": "msft", "signal_date": "2023-01-13", "score": 6, "signal_types": ["ath_breakout", "volume_spike"], "price": 240.5},
  {"ticker": "AAPL", "date": "2023-01-06T00:00:00", "total_score": 5, "signal_types": "momentum + sma_crossover + insider_buy", "signal_price": 130},
  {"ticker": "NVDA", "signal_date": "2023-01-06", "score": 7, "metrics": {"volume_ratio": 3.2}},
  {"ticker": "", "signal_date": "2023-01-06", "score": 5},
  {"ticker": "BAD1", "signal_date": "2023/01/06", "score": 5},
  {"ticker": "BAD2", "signal_date": "2023-01-06"},
  {"ticker": "BAD3", "signal_date": "2023-01-06", "score": 500},
  {"ticker": "BAD4", "signal_date": "2023-01-06", "score": 5, "price": -1},
  "not an object"
]`

func TestDecode(t *testing.T) {
	signals, stats, err := Decode(strings.NewReader(feed))
	require.NoError(t, err)

	assert.Equal(t, 9, stats.Total)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 6, stats.Invalid)
	assert.Equal(t, map[string]int{"insider_buy": 1}, stats.UnknownTypes)

	require.Len(t, signals, 3)
	// 날짜 → 티커 순 정렬
	assert.Equal(t, "AAPL", signals[0].Ticker)
	assert.Equal(t, "NVDA", signals[1].Ticker)
	assert.Equal(t, "MSFT", signals[2].Ticker)
	assert.True(t, contracts.SignalsSorted(signals))

	aapl := signals[0]
	assert.Equal(t, day("2023-01-06"), aapl.SignalDate)
	assert.Equal(t, 5, aapl.Score)
	assert.Equal(t, []contracts.SignalType{contracts.SignalMomentum, contracts.SignalSMACrossover}, aapl.SignalTypes)
	assert.Equal(t, 130.0, aapl.Price)

	assert.Equal(t, 3.2, signals[1].Metrics["volume_ratio"])
	assert.Nil(t, signals[1].SignalTypes)

	msft := signals[2]
	assert.True(t, msft.HasType(contracts.SignalATHBreakout))
	assert.Equal(t, 240.5, msft.Price)
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := Decode(strings.NewReader(`{"ticker": "AAPL"}`))
	assert.Error(t, err)
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Datasets["1b"])
	require.NoError(t, os.WriteFile(path, []byte(feed), 0o644))

	resolved, err := ResolveDataset(dir, "1b")
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	src := NewFileSource(resolved, nil)
	signals, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 3)
	assert.Equal(t, 6, src.Stats().Invalid)

	_, err = NewFileSource(filepath.Join(dir, "missing.json"), nil).Load(context.Background())
	assert.Error(t, err)
}

func TestResolveDataset(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"1b", "signals_history_1b_2023.json"},
		{"micro-small", "signals_history_micro_small.json"},
		{"small-cap", "signals_history_small_cap.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ResolveDataset("data", tt.name)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join("data", tt.file), p)
		})
	}

	_, err := ResolveDataset("data", "mega-cap")
	assert.True(t, errors.Is(err, ErrUnknownDataset))
	assert.Equal(t, []string{"1b", "micro-small", "small-cap"}, DatasetNames())
}

func TestTickersAndFilter(t *testing.T) {
	signals := []contracts.Signal{
		{Ticker: "B", Score: 4},
		{Ticker: "A", Score: 5},
		{Ticker: "B", Score: 7},
		{Ticker: "C", Score: 8},
	}
	assert.Equal(t, []string{"A", "B", "C"}, Tickers(signals))

	filtered := FilterScore(signals, 5, 7)
	require.Len(t, filtered, 2)
	assert.Equal(t, "A", filtered[0].Ticker)
	assert.Equal(t, 7, filtered[1].Score)
}
