package s0_data

import (
	"sort"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// MemoryOracle serves daily bars from memory.
// ⭐ SSOT: 백테스트/몬테카를로가 공유하는 가격 소스 (로드 후 불변 → 동시 읽기 안전)
type MemoryOracle struct {
	bars     map[string]map[time.Time]contracts.Bar
	tickers  []string
	sessions []time.Time
	first    time.Time
	last     time.Time
}

// NewMemoryOracle indexes bars by ticker and date.
// Invalid bars are skipped; a later duplicate for the same day wins.
func NewMemoryOracle(series map[string][]contracts.Bar) *MemoryOracle {
	o := &MemoryOracle{
		bars: make(map[string]map[time.Time]contracts.Bar, len(series)),
	}

	days := make(map[time.Time]struct{})
	for ticker, list := range series {
		idx := make(map[time.Time]contracts.Bar, len(list))
		for _, b := range list {
			if !b.IsValid() {
				continue
			}
			b.Date = contracts.Day(b.Date)
			idx[b.Date] = b
			days[b.Date] = struct{}{}
		}
		if len(idx) == 0 {
			continue
		}
		o.bars[ticker] = idx
		o.tickers = append(o.tickers, ticker)
	}
	sort.Strings(o.tickers)

	o.sessions = make([]time.Time, 0, len(days))
	for d := range days {
		o.sessions = append(o.sessions, d)
	}
	sort.Slice(o.sessions, func(i, j int) bool { return o.sessions[i].Before(o.sessions[j]) })
	if len(o.sessions) > 0 {
		o.first = o.sessions[0]
		o.last = o.sessions[len(o.sessions)-1]
	}

	return o
}

// Get implements contracts.PriceOracle
func (o *MemoryOracle) Get(ticker string, date time.Time) (contracts.Bar, bool) {
	idx, ok := o.bars[ticker]
	if !ok {
		return contracts.Bar{}, false
	}
	b, ok := idx[contracts.Day(date)]
	return b, ok
}

// DateRange implements contracts.DateRanger
func (o *MemoryOracle) DateRange() (time.Time, time.Time, bool) {
	if len(o.sessions) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return o.first, o.last, true
}

// Sessions returns every date that has at least one bar, ascending.
// backtest.NewSessionCalendar 입력으로 사용
func (o *MemoryOracle) Sessions() []time.Time {
	out := make([]time.Time, len(o.sessions))
	copy(out, o.sessions)
	return out
}

// Tickers returns the loaded tickers, sorted
func (o *MemoryOracle) Tickers() []string {
	out := make([]string, len(o.tickers))
	copy(out, o.tickers)
	return out
}

// Series returns the bars of one ticker in date order
func (o *MemoryOracle) Series(ticker string) []contracts.Bar {
	idx := o.bars[ticker]
	out := make([]contracts.Bar, 0, len(idx))
	for _, b := range idx {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// BarCount returns the total number of indexed bars
func (o *MemoryOracle) BarCount() int {
	n := 0
	for _, idx := range o.bars {
		n += len(idx)
	}
	return n
}
