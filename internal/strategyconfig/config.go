package strategyconfig

import "time"

// Config is one named strategy preset
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Signals    Signals    `yaml:"signals" json:"signals"`
	Portfolio  Portfolio  `yaml:"portfolio" json:"portfolio"`
	Exit       Exit       `yaml:"exit" json:"exit"`
	Simulation Simulation `yaml:"simulation" json:"simulation"`
	MonteCarlo MonteCarlo `yaml:"monte_carlo" json:"monte_carlo"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id"`
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Signals 시그널 필터
type Signals struct {
	Dataset  string `yaml:"dataset" json:"dataset"` // 1b | micro-small | small-cap
	ScoreMin int    `yaml:"score_min" json:"score_min"`
	ScoreMax int    `yaml:"score_max" json:"score_max"`
}

// Portfolio 포지션 사이징
type Portfolio struct {
	InitialCapital  float64 `yaml:"initial_capital" json:"initial_capital"`
	MaxPositionPct  float64 `yaml:"max_position_pct" json:"max_position_pct"`
	MaxPositions    int     `yaml:"max_positions" json:"max_positions"`
	CashBufferPct   float64 `yaml:"cash_buffer_pct" json:"cash_buffer_pct"`
	AllowPyramiding bool    `yaml:"allow_pyramiding" json:"allow_pyramiding"`
}

// Exit 청산 규칙
type Exit struct {
	HoldingPeriodDays int     `yaml:"holding_period_days" json:"holding_period_days"` // 달력일
	StopLossPct       float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
}

// Simulation 단일 백테스트 창 (비어 있으면 데이터에서 결정)
type Simulation struct {
	StartDate          string  `yaml:"start_date,omitempty" json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate            string  `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	RiskFreeRate       float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	MaxGapLookbackDays int     `yaml:"max_gap_lookback_days" json:"max_gap_lookback_days"`
}

// MonteCarlo 시작일 샘플링
type MonteCarlo struct {
	From        string `yaml:"from" json:"from"`
	To          string `yaml:"to" json:"to"`
	Seed        int64  `yaml:"seed" json:"seed"`
	MinGapWeeks int    `yaml:"min_gap_weeks" json:"min_gap_weeks"`
	MaxGapWeeks int    `yaml:"max_gap_weeks" json:"max_gap_weeks"`
}

// Snapshot pins a preset for reproducibility
type Snapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}
