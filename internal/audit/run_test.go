package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
	"github.com/profitmonk/high-intent-signals/pkg/config"
	"github.com/profitmonk/high-intent-signals/pkg/database"
)

func TestNewBacktestRun(t *testing.T) {
	run, err := NewBacktestRun(sampleResult(), Meta{Strategy: "hold_3m", Dataset: "1b"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, KindBacktest, run.Kind)

	var params backtest.Config
	require.NoError(t, json.Unmarshal(run.Params, &params))
	assert.Equal(t, 90, params.HoldingPeriodDays)

	var m backtest.Metrics
	require.NoError(t, json.Unmarshal(run.Summary, &m))
	assert.Equal(t, 3, m.TotalTrades)

	_, err = NewBacktestRun(nil, Meta{})
	assert.Error(t, err)
}

func TestNewMonteCarloRun(t *testing.T) {
	summary := &montecarlo.Summary{
		Params:   montecarlo.DefaultConfig(),
		Strategy: backtest.DefaultConfig(),
		Runs:     4,
		Skipped:  1,
	}
	run, err := NewMonteCarloRun(summary, Meta{Strategy: "monte_carlo_default"})
	require.NoError(t, err)
	assert.Equal(t, KindMonteCarlo, run.Kind)

	var head map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(run.Summary, &head))
	assert.JSONEq(t, `4`, string(head["runs"]))
	assert.NotContains(t, head, "individual_runs")

	var payload montecarlo.Summary
	require.NoError(t, json.Unmarshal(run.Payload, &payload))
	assert.Equal(t, 1, payload.Skipped)
}

func TestRepository_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1}})
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.EnsureSchema(ctx))

	run, err := NewBacktestRun(sampleResult(), Meta{Strategy: "zz_test", Dataset: "1b"})
	require.NoError(t, err)
	defer db.Pool.Exec(context.Background(), `DELETE FROM audit.simulation_runs WHERE run_id = $1`, run.ID)

	repo := NewRepository(db.Pool)
	require.NoError(t, repo.SaveRun(ctx, run))
	require.NoError(t, repo.SaveRun(ctx, run)) // upsert

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Strategy, got.Strategy)
	assert.JSONEq(t, string(run.Summary), string(got.Summary))

	runs, err := repo.ListRuns(ctx, KindBacktest, 100)
	require.NoError(t, err)
	found := false
	for _, r := range runs {
		if r.ID == run.ID {
			found = true
			assert.Empty(t, r.Payload)
		}
	}
	assert.True(t, found)

	_, err = repo.GetRun(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrRunNotFound))
}
