package fmp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/pkg/config"
	"github.com/profitmonk/high-intent-signals/pkg/httputil"
	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

const historicalBody = `{
  "symbol": "AAPL",
  "historical": [
    {"date": "2024-01-03", "open": 11, "high": 12, "low": 10, "close": 11.5, "volume": 1.5E6},
    {"date": "2024-01-02", "open": 10, "high": 11, "low": 9.5, "close": 10.5, "volume": 1000000},
    {"date": "bad-date", "open": 1, "high": 1, "low": 1, "close": 1, "volume": 1},
    {"date": "2024-01-01", "open": 0, "high": 0, "low": 0, "close": 0, "volume": 0}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	hc := httputil.New(logger.Nop()).WithRetry(1, time.Millisecond)
	return NewClient(hc, config.FMPConfig{
		APIKey:            "test-key",
		BaseURL:           server.URL,
		RequestsPerMinute: 6000,
	}, logger.Nop())
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestHistoricalPrices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/historical-price-full/AAPL", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("to"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(historicalBody))
	})

	bars, err := client.HistoricalPrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// 오름차순, 잘못된 행 제거
	assert.Equal(t, day("2024-01-02"), bars[0].Date)
	assert.Equal(t, day("2024-01-03"), bars[1].Date)
	assert.Equal(t, int64(1500000), bars[1].Volume)
	assert.Equal(t, 11.5, bars[1].Close)
}

func TestHistoricalPrices_Errors(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		client := NewClient(httputil.New(nil), config.FMPConfig{BaseURL: "http://unused"}, nil)
		_, err := client.HistoricalPrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))
		assert.True(t, errors.Is(err, ErrNoAPIKey))
	})

	t.Run("rate limited", func(t *testing.T) {
		var calls int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := client.HistoricalPrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))
		assert.True(t, errors.Is(err, ErrRateLimited))
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("empty response", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})
		_, err := client.HistoricalPrices(context.Background(), "ZZZZ", day("2024-01-01"), day("2024-01-31"))
		assert.True(t, errors.Is(err, ErrNoData))
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := client.HistoricalPrices(context.Background(), "AAPL", day("2024-01-01"), day("2024-01-31"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, httputil.ErrStatus))
	})
}

func TestDecodeHistorical(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"envelope", historicalBody, 2},
		{"bare list", `[{"date":"2024-01-02","open":1,"high":2,"low":1,"close":2,"volume":10}]`, 1},
		{"empty object", `{}`, 0},
		{"empty list", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeHistorical([]byte(tt.input))
			require.NoError(t, err)
			assert.Len(t, resp.Bars(), tt.want)
		})
	}

	_, err := DecodeHistorical([]byte(`{"historical": 5}`))
	assert.Error(t, err)
}

func TestFromBarsRoundTrip(t *testing.T) {
	resp, err := DecodeHistorical([]byte(historicalBody))
	require.NoError(t, err)
	bars := resp.Bars()

	out := FromBars("AAPL", bars)
	assert.Equal(t, "AAPL", out.Symbol)
	require.Len(t, out.Historical, 2)
	assert.Equal(t, "2024-01-03", out.Historical[0].Date)
	assert.Equal(t, bars, out.Bars())
}
