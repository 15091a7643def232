package backtest

import (
	"errors"
	"fmt"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrDataGap is wrapped by every DataGapError
	ErrDataGap = errors.New("missing price data")
	// ErrCapacityExceeded marks ledger refusals for slots or cash
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// ConfigError reports an invalid configuration field. Fatal: no run starts.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// DataGapError records a missing bar on a day an exit or mark needed one.
// Recovered via the nearest prior close, or the position's last mark.
type DataGapError struct {
	Ticker        string         `json:"ticker"`
	Date          contracts.Date `json:"date"`
	FallbackDate  contracts.Date `json:"fallback_date"` // zero when LastPrice was used
	FallbackPrice float64        `json:"fallback_price"`
}

func (e *DataGapError) Error() string {
	src := "last mark"
	if !e.FallbackDate.IsZero() {
		src = e.FallbackDate.Format(contracts.DateLayout)
	}
	return fmt.Sprintf("%s has no bar on %s, using %.4f from %s",
		e.Ticker, e.Date.Format(contracts.DateLayout), e.FallbackPrice, src)
}

func (e *DataGapError) Unwrap() error {
	return ErrDataGap
}

// DropReason explains why a signal did not become a position
type DropReason string

const (
	DropNone        DropReason = ""
	DropScore       DropReason = "score"        // score 범위 밖
	DropFinalDay    DropReason = "final_day"    // 마지막 날에는 신규 진입 없음
	DropDuplicate   DropReason = "duplicate"    // 동일 종목 보유 중
	DropSlots       DropReason = "slots"        // MaxPositions 도달
	DropNoPrice     DropReason = "no_price"     // 진입일 시가 없음
	DropCash        DropReason = "cash"         // 버퍼 차감 후 가용 현금 없음
	DropZeroShares  DropReason = "zero_shares"  // floor(size/open) == 0
	DropBeforeStart DropReason = "before_start" // 진입일이 시작일 이전
	DropAfterEnd    DropReason = "after_end"    // 진입일이 종료일 이후
)

// IsCapacity reports whether the drop was caused by slot or cash exhaustion
func (r DropReason) IsCapacity() bool {
	return r == DropSlots || r == DropCash || r == DropZeroShares
}

// Err converts a drop into an error; capacity drops wrap ErrCapacityExceeded.
func (r DropReason) Err() error {
	switch {
	case r == DropNone:
		return nil
	case r.IsCapacity():
		return fmt.Errorf("%s: %w", r, ErrCapacityExceeded)
	default:
		return fmt.Errorf("signal dropped: %s", r)
	}
}

// Drop is one signal that was not admitted
type Drop struct {
	Ticker string         `json:"ticker"`
	Date   contracts.Date `json:"date"`
	Score  int            `json:"score"`
	Reason DropReason     `json:"reason"`
}

// ComputationUndefined is the value reported for a metric whose denominator is zero.
// The metric name is listed in Diagnostics.Undefined.
const ComputationUndefined = 0.0
