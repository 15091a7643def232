package backtest

import (
	"time"
)

// Config holds per-run simulation parameters
// ⭐ SSOT: 시뮬레이션 파라미터는 여기서만 정의/검증
type Config struct {
	InitialCapital    float64 `json:"initial_capital" yaml:"initial_capital"`
	HoldingPeriodDays int     `json:"holding_period_days" yaml:"holding_period_days"` // 달력일 기준
	StopLossPct       float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`             // 0 < p <= 1
	ScoreMin          int     `json:"score_min" yaml:"score_min"`
	ScoreMax          int     `json:"score_max" yaml:"score_max"`
	MaxPositionPct    float64 `json:"max_position_pct" yaml:"max_position_pct"` // 포트폴리오 가치 대비
	MaxPositions      int     `json:"max_positions" yaml:"max_positions"`
	CashBufferPct     float64 `json:"cash_buffer_pct" yaml:"cash_buffer_pct"` // 진입 시에만 적용

	StartDate time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"` // zero: 첫 시그널 진입일
	EndDate   time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`     // zero: 마지막 진입일 + 보유기간

	RiskFreeRate       float64 `json:"risk_free_rate" yaml:"risk_free_rate"` // 연율
	AllowPyramiding    bool    `json:"allow_pyramiding" yaml:"allow_pyramiding"`
	MaxGapLookbackDays int     `json:"max_gap_lookback_days" yaml:"max_gap_lookback_days"`
}

// DefaultConfig returns the baseline strategy parameters
func DefaultConfig() Config {
	return Config{
		InitialCapital:     100_000,
		HoldingPeriodDays:  90,
		StopLossPct:        0.25,
		ScoreMin:           5,
		ScoreMax:           99,
		MaxPositionPct:     0.05,
		MaxPositions:       50,
		CashBufferPct:      0.05,
		MaxGapLookbackDays: 10,
	}
}

// Validate checks every field and returns the first *ConfigError found
func (c Config) Validate() error {
	switch {
	case c.InitialCapital <= 0:
		return &ConfigError{Field: "initial_capital", Message: "must be > 0"}
	case c.HoldingPeriodDays <= 0:
		return &ConfigError{Field: "holding_period_days", Message: "must be > 0"}
	case c.StopLossPct <= 0 || c.StopLossPct > 1:
		return &ConfigError{Field: "stop_loss_pct", Message: "must be in (0, 1]"}
	case c.ScoreMin > c.ScoreMax:
		return &ConfigError{Field: "score_min", Message: "must be <= score_max"}
	case c.MaxPositionPct <= 0 || c.MaxPositionPct > 1:
		return &ConfigError{Field: "max_position_pct", Message: "must be in (0, 1]"}
	case c.MaxPositions <= 0:
		return &ConfigError{Field: "max_positions", Message: "must be > 0"}
	case c.CashBufferPct < 0 || c.CashBufferPct >= 1:
		return &ConfigError{Field: "cash_buffer_pct", Message: "must be in [0, 1)"}
	case c.RiskFreeRate < 0:
		return &ConfigError{Field: "risk_free_rate", Message: "must be >= 0"}
	case c.MaxGapLookbackDays < 0:
		return &ConfigError{Field: "max_gap_lookback_days", Message: "must be >= 0"}
	case !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate):
		return &ConfigError{Field: "end_date", Message: "must not precede start_date"}
	}
	return nil
}
