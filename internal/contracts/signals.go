package contracts

import (
	"sort"
	"time"
)

// SignalType enumerates the technical patterns a detector can tag a signal with
type SignalType string

const (
	SignalATHBreakout  SignalType = "ath_breakout"  // 52주/사상 최고가 돌파
	SignalVolumeSpike  SignalType = "volume_spike"  // 거래량 급증
	SignalSMACrossover SignalType = "sma_crossover" // 이동평균 골든크로스
	SignalMomentum     SignalType = "momentum"      // 주간 수익률 모멘텀
)

// AllSignalTypes returns every known signal type in canonical order
func AllSignalTypes() []SignalType {
	return []SignalType{SignalATHBreakout, SignalVolumeSpike, SignalSMACrossover, SignalMomentum}
}

// IsValid reports whether t is a known signal type
func (t SignalType) IsValid() bool {
	switch t {
	case SignalATHBreakout, SignalVolumeSpike, SignalSMACrossover, SignalMomentum:
		return true
	}
	return false
}

// Signal is a scored record flagging a ticker on a given date
// ⭐ SSOT: Signal Feed → Backtest Engine 입력 계약 (엔진은 절대 수정하지 않음)
type Signal struct {
	Ticker      string             `json:"ticker"`
	SignalDate  time.Time          `json:"signal_date"`
	Score       int                `json:"score"`
	SignalTypes []SignalType       `json:"signal_types"`
	Metrics     map[string]float64 `json:"metrics,omitempty"` // volume_ratio, weekly_return 등 원본 탐지 지표
	Price       float64            `json:"price,omitempty"`   // 시그널 당일 종가 (참고용)
}

// HasType reports whether the signal carries the given tag
func (s *Signal) HasType(t SignalType) bool {
	for _, st := range s.SignalTypes {
		if st == t {
			return true
		}
	}
	return false
}

// SortSignals orders signals by signal date, then ticker.
// Stable so equal keys keep feed order.
func SortSignals(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		if !signals[i].SignalDate.Equal(signals[j].SignalDate) {
			return signals[i].SignalDate.Before(signals[j].SignalDate)
		}
		return signals[i].Ticker < signals[j].Ticker
	})
}

// SignalsSorted reports whether signals are ascending by signal date
func SignalsSorted(signals []Signal) bool {
	for i := 1; i < len(signals); i++ {
		if signals[i].SignalDate.Before(signals[i-1].SignalDate) {
			return false
		}
	}
	return true
}

// SignalsFrom returns the signals dated on or after start.
// Input must be sorted; the returned slice shares the backing array.
func SignalsFrom(signals []Signal, start time.Time) []Signal {
	idx := sort.Search(len(signals), func(i int) bool {
		return !signals[i].SignalDate.Before(start)
	})
	return signals[idx:]
}
