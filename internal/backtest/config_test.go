package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"zero stop loss", func(c *Config) { c.StopLossPct = 0 }, "stop_loss_pct"},
		{"stop loss above one", func(c *Config) { c.StopLossPct = 1.01 }, "stop_loss_pct"},
		{"full stop loss allowed", func(c *Config) { c.StopLossPct = 1 }, ""},
		{"zero positions", func(c *Config) { c.MaxPositions = 0 }, "max_positions"},
		{"negative capital", func(c *Config) { c.InitialCapital = -1 }, "initial_capital"},
		{"zero holding", func(c *Config) { c.HoldingPeriodDays = 0 }, "holding_period_days"},
		{"inverted score range", func(c *Config) { c.ScoreMin, c.ScoreMax = 8, 5 }, "score_min"},
		{"position pct zero", func(c *Config) { c.MaxPositionPct = 0 }, "max_position_pct"},
		{"buffer of one", func(c *Config) { c.CashBufferPct = 1 }, "cash_buffer_pct"},
		{"end before start", func(c *Config) {
			c.StartDate = day("2023-06-01")
			c.EndDate = day("2023-01-01")
		}, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPositions = -1

	engine, err := NewEngine(cfg)
	assert.Nil(t, engine)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewEngine_DefaultsLookback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxGapLookbackDays = 0

	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, engine.Config().MaxGapLookbackDays)
}
