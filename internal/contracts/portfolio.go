package contracts

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPositionClosed is returned when closing a position twice
	ErrPositionClosed = errors.New("position already closed")
	// ErrExitBeforeEntry is returned when the exit date is not after the entry date
	ErrExitBeforeEntry = errors.New("exit date must be after entry date")
)

// PositionStatus is the lifecycle state of a position
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// ExitReason 청산 사유
type ExitReason string

const (
	ExitTime     ExitReason = "TIME"       // 보유기간 만료, 당일 종가
	ExitStopLoss ExitReason = "STOP_LOSS"  // 저가가 손절가 이하, 손절가 체결
	ExitEndOfSim ExitReason = "END_OF_SIM" // 시뮬레이션 종료일 종가
)

// Position is a holding owned by the ledger while open
// ⭐ SSOT: OPEN → CLOSED 전이는 Close()로 단 한 번만
type Position struct {
	Ticker     string         `json:"ticker"`
	SignalDate time.Time      `json:"signal_date"`
	Score      int            `json:"score"`
	EntryDate  time.Time      `json:"entry_date"`
	EntryPrice float64        `json:"entry_price"`
	Shares     int64          `json:"shares"`
	CostBasis  float64        `json:"cost_basis"`
	Status     PositionStatus `json:"status"`

	// 진입 시점 포트폴리오 가치 (CostBasis <= MaxPositionPct × 이 값)
	EntryPortfolioValue float64 `json:"entry_portfolio_value"`

	// 보유 중 최신 평가가격 (직전 종가)
	LastPrice float64 `json:"last_price"`

	// 청산 후 채워짐
	ExitDate    time.Time  `json:"exit_date,omitempty"`
	ExitPrice   float64    `json:"exit_price,omitempty"`
	ExitReason  ExitReason `json:"exit_reason,omitempty"`
	PnL         float64    `json:"pnl"`
	PnLPct      float64    `json:"pnl_pct"`
	HoldingDays int        `json:"holding_days"`
}

// NewPosition opens a position from a signal filled at price on entryDate
func NewPosition(sig Signal, entryDate time.Time, price float64, shares int64) *Position {
	return &Position{
		Ticker:     sig.Ticker,
		SignalDate: sig.SignalDate,
		Score:      sig.Score,
		EntryDate:  Day(entryDate),
		EntryPrice: price,
		Shares:     shares,
		CostBasis:  float64(shares) * price,
		Status:     PositionOpen,
		LastPrice:  price,
	}
}

// IsOpen reports whether the position is still held
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// MarketValue returns shares × LastPrice
func (p *Position) MarketValue() float64 {
	return float64(p.Shares) * p.LastPrice
}

// StopPrice returns the stop-loss trigger for the given fraction
func (p *Position) StopPrice(stopLossPct float64) float64 {
	return p.EntryPrice * (1 - stopLossPct)
}

// DaysHeld returns calendar days elapsed since entry as of date
func (p *Position) DaysHeld(date time.Time) int {
	return DaysBetween(p.EntryDate, date)
}

// Close transitions the position to CLOSED and fills the exit fields.
// Returns the proceeds (shares × exitPrice).
func (p *Position) Close(date time.Time, exitPrice float64, reason ExitReason) (float64, error) {
	if p.Status == PositionClosed {
		return 0, fmt.Errorf("%s entered %s: %w", p.Ticker, p.EntryDate.Format(DateLayout), ErrPositionClosed)
	}
	date = Day(date)
	if !date.After(p.EntryDate) {
		return 0, fmt.Errorf("%s exit %s <= entry %s: %w",
			p.Ticker, date.Format(DateLayout), p.EntryDate.Format(DateLayout), ErrExitBeforeEntry)
	}

	proceeds := float64(p.Shares) * exitPrice
	p.Status = PositionClosed
	p.ExitDate = date
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.LastPrice = exitPrice
	p.PnL = proceeds - p.CostBasis
	if p.EntryPrice > 0 {
		p.PnLPct = (exitPrice - p.EntryPrice) / p.EntryPrice
	}
	p.HoldingDays = DaysBetween(p.EntryDate, date)

	return proceeds, nil
}
