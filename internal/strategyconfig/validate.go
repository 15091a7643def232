package strategyconfig

import (
	"fmt"
	"regexp"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
)

var strategyIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if !strategyIDPattern.MatchString(cfg.Meta.StrategyID) {
		return ValidationError{"meta.strategy_id", "required, lowercase [a-z0-9_-]"}
	}

	// === Signals ===
	if _, ok := s2_signals.Datasets[cfg.Signals.Dataset]; !ok {
		return ValidationError{"signals.dataset", fmt.Sprintf("must be one of %v", s2_signals.DatasetNames())}
	}
	if cfg.Signals.ScoreMin > cfg.Signals.ScoreMax {
		return ValidationError{"signals", "score_min must be <= score_max"}
	}

	// === Portfolio ===
	if cfg.Portfolio.InitialCapital <= 0 {
		return ValidationError{"portfolio.initial_capital", "must be > 0"}
	}
	if cfg.Portfolio.MaxPositionPct <= 0 || cfg.Portfolio.MaxPositionPct > 1 {
		return ValidationError{"portfolio.max_position_pct", "must be in (0, 1]"}
	}
	if cfg.Portfolio.MaxPositions <= 0 {
		return ValidationError{"portfolio.max_positions", "must be > 0"}
	}
	if err := validatePctRange(cfg.Portfolio.CashBufferPct, "portfolio.cash_buffer_pct"); err != nil {
		return err
	}

	// === Exit ===
	if cfg.Exit.HoldingPeriodDays <= 0 {
		return ValidationError{"exit.holding_period_days", "must be > 0"}
	}
	if cfg.Exit.StopLossPct <= 0 || cfg.Exit.StopLossPct >= 1 {
		return ValidationError{"exit.stop_loss_pct", "must be in (0, 1)"}
	}

	// === Simulation ===
	if _, err := parseOptionalDay(cfg.Simulation.StartDate); err != nil {
		return ValidationError{"simulation.start_date", "must be YYYY-MM-DD"}
	}
	if _, err := parseOptionalDay(cfg.Simulation.EndDate); err != nil {
		return ValidationError{"simulation.end_date", "must be YYYY-MM-DD"}
	}
	if cfg.Simulation.MaxGapLookbackDays < 0 {
		return ValidationError{"simulation.max_gap_lookback_days", "must be >= 0"}
	}

	// === MonteCarlo ===
	from, err := contracts.ParseDay(cfg.MonteCarlo.From)
	if err != nil {
		return ValidationError{"monte_carlo.from", "must be YYYY-MM-DD"}
	}
	to, err := contracts.ParseDay(cfg.MonteCarlo.To)
	if err != nil {
		return ValidationError{"monte_carlo.to", "must be YYYY-MM-DD"}
	}
	if to.Before(from) {
		return ValidationError{"monte_carlo", "to must be >= from"}
	}
	if cfg.MonteCarlo.MinGapWeeks <= 0 || cfg.MonteCarlo.MaxGapWeeks < cfg.MonteCarlo.MinGapWeeks {
		return ValidationError{"monte_carlo", "gap weeks must satisfy 0 < min <= max"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 슬롯 × 비중 > 100% → 현금 부족으로 드롭 발생
	if float64(cfg.Portfolio.MaxPositions)*cfg.Portfolio.MaxPositionPct > 1.0+1e-9 {
		warnings = append(warnings, Warning{
			Code:    "OVERCOMMITTED",
			Message: "max_positions × max_position_pct > 100%: later signals will drop for cash",
		})
	}

	// 넓은 손절은 사실상 손절 없음
	if cfg.Exit.StopLossPct >= 0.5 {
		warnings = append(warnings, Warning{
			Code:    "WIDE_STOP",
			Message: "stop_loss_pct >= 50%: stop rarely triggers",
		})
	}

	// 1년 이하 보유 → 단기 양도세
	if cfg.Exit.HoldingPeriodDays <= 365 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_TERM_GAINS",
			Message: "holding_period_days <= 365: gains are short-term",
		})
	}

	return warnings
}

// validatePctRange는 퍼센트 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
