package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// Ledger owns cash and open positions for one run
// ⭐ SSOT: 현금/포지션 변경은 Ledger를 통해서만 (cash >= 0, slots <= MaxPositions)
type Ledger struct {
	cfg    Config
	cash   float64
	open   []*contracts.Position // 진입 순서 (합산 순서 고정)
	held   map[string]int        // ticker → 보유 포지션 수
	closed []*contracts.Position
}

// NewLedger creates a ledger funded with cfg.InitialCapital
func NewLedger(cfg Config) *Ledger {
	return &Ledger{
		cfg:  cfg,
		cash: cfg.InitialCapital,
		held: make(map[string]int),
	}
}

// Cash returns uninvested cash
func (l *Ledger) Cash() float64 {
	return l.cash
}

// OpenCount returns the number of open positions
func (l *Ledger) OpenCount() int {
	return len(l.open)
}

// PortfolioValue returns cash plus every open position at its last mark.
// Positions are summed in entry order so identical runs produce identical floats.
func (l *Ledger) PortfolioValue() float64 {
	value := l.cash
	for _, p := range l.open {
		value += p.MarketValue()
	}
	return value
}

// availableAt returns the cash an entry may spend after honoring the buffer
func (l *Ledger) availableAt(pv float64) float64 {
	return l.cash - l.cfg.CashBufferPct*pv
}

// Holds reports whether ticker has an open position
func (l *Ledger) Holds(ticker string) bool {
	return l.held[ticker] > 0
}

// Admit opens a position for sig at price on date.
// price <= 0 means no bar was available. Returns the drop reason on refusal.
func (l *Ledger) Admit(sig contracts.Signal, date time.Time, price float64) (*contracts.Position, DropReason) {
	if !l.cfg.AllowPyramiding && l.Holds(sig.Ticker) {
		return nil, DropDuplicate
	}
	if len(l.open) >= l.cfg.MaxPositions {
		return nil, DropSlots
	}
	if price <= 0 {
		return nil, DropNoPrice
	}

	pv := l.PortfolioValue()
	available := l.availableAt(pv)
	if available <= 0 {
		return nil, DropCash
	}

	size := math.Min(l.cfg.MaxPositionPct*pv, available)
	shares := int64(math.Floor(size / price))
	// floor 후 부동소수 오차로 size를 넘지 않도록
	for shares > 0 && float64(shares)*price > size {
		shares--
	}
	if shares <= 0 {
		return nil, DropZeroShares
	}

	pos := contracts.NewPosition(sig, date, price, shares)
	pos.EntryPortfolioValue = pv
	l.cash -= pos.CostBasis
	l.open = append(l.open, pos)
	l.held[sig.Ticker]++

	return pos, DropNone
}

// Close exits pos at exitPrice and credits the proceeds
func (l *Ledger) Close(pos *contracts.Position, exitPrice float64, reason contracts.ExitReason, date time.Time) error {
	idx := -1
	for i, p := range l.open {
		if p == pos {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("close %s: not held by ledger: %w", pos.Ticker, contracts.ErrPositionClosed)
	}

	proceeds, err := pos.Close(date, exitPrice, reason)
	if err != nil {
		return fmt.Errorf("close %s: %w", pos.Ticker, err)
	}

	l.cash += proceeds
	l.open = append(l.open[:idx], l.open[idx+1:]...)
	if l.held[pos.Ticker]--; l.held[pos.Ticker] == 0 {
		delete(l.held, pos.Ticker)
	}
	l.closed = append(l.closed, pos)

	return nil
}

// Mark sets the latest price of an open position
func (l *Ledger) Mark(pos *contracts.Position, price float64) {
	if price > 0 {
		pos.LastPrice = price
	}
}

// OpenPositions returns open positions ordered by entry date, ticker, signal date
func (l *Ledger) OpenPositions() []*contracts.Position {
	out := make([]*contracts.Position, len(l.open))
	copy(out, l.open)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.SignalDate.Before(b.SignalDate)
	})
	return out
}

// Closed returns positions in the order they were closed
func (l *Ledger) Closed() []*contracts.Position {
	return l.closed
}
