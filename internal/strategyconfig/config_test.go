package strategyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
)

const presetYAML = `
meta:
  strategy_id: moderate_12m
  name: "Moderate (5-7) 12M"
  version: "1"
signals:
  dataset: micro-small
  score_min: 5
  score_max: 7
portfolio:
  initial_capital: 50000
  max_position_pct: 0.04
  max_positions: 40
  cash_buffer_pct: 0.0
exit:
  holding_period_days: 365
  stop_loss_pct: 0.25
simulation:
  start_date: "2023-02-01"
  risk_free_rate: 0.04
  max_gap_lookback_days: 5
monte_carlo:
  from: "2023-01-01"
  to: "2024-12-31"
  seed: 7
  min_gap_weeks: 4
  max_gap_weeks: 6
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(presetYAML))
	require.NoError(t, err)

	assert.Equal(t, "moderate_12m", cfg.Meta.StrategyID)
	assert.Equal(t, "micro-small", cfg.Signals.Dataset)
	assert.Equal(t, 7, cfg.Signals.ScoreMax)
	assert.Equal(t, 50000.0, cfg.Portfolio.InitialCapital)

	bt, err := cfg.ToBacktestConfig()
	require.NoError(t, err)
	assert.Equal(t, 365, bt.HoldingPeriodDays)
	assert.Equal(t, 0.25, bt.StopLossPct)
	assert.Equal(t, 0.04, bt.RiskFreeRate)
	assert.Equal(t, 5, bt.MaxGapLookbackDays)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), bt.StartDate)
	assert.True(t, bt.EndDate.IsZero())

	mc, err := cfg.ToMonteCarloConfig(3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), mc.Seed)
	assert.Equal(t, 4, mc.MinGapWeeks)
	assert.Equal(t, 6, mc.MaxGapWeeks)
	assert.Equal(t, 3, mc.Workers)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), mc.To)
}

func TestParse_DefaultsFillOmittedBlocks(t *testing.T) {
	cfg, err := Parse([]byte("meta:\n  strategy_id: minimal\n"))
	require.NoError(t, err)

	bt, err := cfg.ToBacktestConfig()
	require.NoError(t, err)
	def := backtest.DefaultConfig()
	assert.Equal(t, def.HoldingPeriodDays, bt.HoldingPeriodDays)
	assert.Equal(t, def.StopLossPct, bt.StopLossPct)
	assert.Equal(t, def.MaxPositions, bt.MaxPositions)
	assert.Equal(t, "1b", cfg.Signals.Dataset)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte("meta:\n  strategy_id: x\nexit:\n  stop_los_pct: 0.2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_los_pct")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"bad dataset", func(c *Config) { c.Signals.Dataset = "mega" }, "signals.dataset"},
		{"score range", func(c *Config) { c.Signals.ScoreMin = 8; c.Signals.ScoreMax = 7 }, "signals"},
		{"capital", func(c *Config) { c.Portfolio.InitialCapital = 0 }, "portfolio.initial_capital"},
		{"position pct", func(c *Config) { c.Portfolio.MaxPositionPct = 1.5 }, "portfolio.max_position_pct"},
		{"positions", func(c *Config) { c.Portfolio.MaxPositions = 0 }, "portfolio.max_positions"},
		{"buffer", func(c *Config) { c.Portfolio.CashBufferPct = -0.1 }, "portfolio.cash_buffer_pct"},
		{"holding", func(c *Config) { c.Exit.HoldingPeriodDays = 0 }, "exit.holding_period_days"},
		{"stop zero", func(c *Config) { c.Exit.StopLossPct = 0 }, "exit.stop_loss_pct"},
		{"stop one", func(c *Config) { c.Exit.StopLossPct = 1 }, "exit.stop_loss_pct"},
		{"start date", func(c *Config) { c.Simulation.StartDate = "01/02/2023" }, "simulation.start_date"},
		{"mc order", func(c *Config) { c.MonteCarlo.From = "2025-01-01"; c.MonteCarlo.To = "2024-01-01" }, "monte_carlo"},
		{"mc gaps", func(c *Config) { c.MonteCarlo.MinGapWeeks = 9 }, "monte_carlo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Meta.StrategyID = "test"
			tt.mutate(cfg)

			err := Validate(cfg)
			var ve ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestHash(t *testing.T) {
	a, err := Parse([]byte(presetYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(presetYAML))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	b.Exit.StopLossPct = 0.30
	hc, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)

	snap, err := NewSnapshot(a, []byte(presetYAML))
	require.NoError(t, err)
	assert.Equal(t, ha, snap.ConfigHash)
	assert.Equal(t, "moderate_12m", snap.StrategyID)
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Portfolio.MaxPositions = 50
	cfg.Portfolio.MaxPositionPct = 0.04
	cfg.Exit.StopLossPct = 0.6
	cfg.Exit.HoldingPeriodDays = 395

	codes := []string{}
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []string{"OVERCOMMITTED", "WIDE_STOP"}, codes)
}

func TestLoadDir_Presets(t *testing.T) {
	dir := filepath.Join("..", "..", "config", "strategy")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skip("preset directory not found")
	}

	presets, err := LoadDir(dir)
	require.NoError(t, err)
	require.Contains(t, presets, "monte_carlo_default")

	mcDefault := presets["monte_carlo_default"]
	assert.Equal(t, 365, mcDefault.Exit.HoldingPeriodDays)
	assert.Equal(t, 0.60, mcDefault.Exit.StopLossPct)
	assert.Equal(t, 5, mcDefault.Signals.ScoreMin)
	assert.Equal(t, 7, mcDefault.Signals.ScoreMax)

	for id, cfg := range presets {
		_, err := cfg.ToBacktestConfig()
		assert.NoError(t, err, id)
	}
}

func TestLoadDir_Duplicate(t *testing.T) {
	dir := t.TempDir()
	body := "meta:\n  strategy_id: same\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(body), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "duplicate"))
}
