package audit

import (
	"sort"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// NoStopLossPct disables the stop: the trigger price is zero and valid bars never reach it
const NoStopLossPct = 1.0

// StopImpactRow compares one signal's trade with and without the stop
type StopImpactRow struct {
	Ticker            string         `json:"ticker"`
	SignalDate        contracts.Date `json:"signal_date"`
	EntryDate         contracts.Date `json:"entry_date"`
	Score             int            `json:"score"`
	StopTriggered     bool           `json:"stop_triggered"`
	StopDate          contracts.Date `json:"stop_date"`
	DaysHeld          int            `json:"days_held"`
	ReturnWithStop    float64        `json:"return_with_stop"`
	ReturnWithoutStop float64        `json:"return_without_stop"`
}

// ReturnStats summarizes per-trade returns (fractions)
type ReturnStats struct {
	AvgReturn float64 `json:"avg_return"`
	WinRate   float64 `json:"win_rate"`
	Best      float64 `json:"best"`
	Worst     float64 `json:"worst"`
}

// StopImpact is the signal-level effect of the stop loss on one dataset
type StopImpact struct {
	Dataset     string  `json:"dataset,omitempty"`
	StopLossPct float64 `json:"stop_loss_pct"`
	Compared    int     `json:"compared"`  // 두 실행 모두에서 진입한 시그널
	Unmatched   int     `json:"unmatched"` // 한쪽 실행에서만 진입한 시그널

	WithoutStop ReturnStats `json:"without_stop"`
	WithStop    ReturnStats `json:"with_stop"`
	Improvement float64     `json:"improvement"` // WithStop.AvgReturn - WithoutStop.AvgReturn

	Triggered       int     `json:"triggered"`
	TriggeredPct    float64 `json:"triggered_pct"`
	AvgDaysStopped  float64 `json:"avg_days_stopped"`
	StoppedAvg      float64 `json:"stopped_avg_return"`
	StoppedWouldAvg float64 `json:"stopped_would_have_avg"`
	Helped          int     `json:"helped"` // 손절이 더 나았던 시그널
	Hurt            int     `json:"hurt"`   // 보유가 더 나았던 시그널

	Rows []StopImpactRow `json:"rows"`
}

// StopHelped reports whether stopped trades would have done worse if held
func (s StopImpact) StopHelped() bool {
	return s.StoppedWouldAvg < s.StoppedAvg
}

type tradeKey struct {
	ticker string
	signal contracts.Date
}

// CompareStop pairs the trades of a run with the stop against the same run with
// the stop disabled, matching by ticker and signal date in entry order.
// Signals admitted in only one run are counted as unmatched.
func CompareStop(withStop, withoutStop *backtest.Result) StopImpact {
	impact := StopImpact{StopLossPct: withStop.Config.StopLossPct}

	baseline := make(map[tradeKey][]backtest.Trade)
	for _, t := range withoutStop.Trades {
		k := tradeKey{t.Ticker, t.SignalDate}
		baseline[k] = append(baseline[k], t)
	}
	// 같은 키 안에서는 진입 순서로 짝지음
	for k, ts := range baseline {
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].EntryDate.Before(ts[j].EntryDate.Time) })
		baseline[k] = ts
	}

	stopped := make([]backtest.Trade, len(withStop.Trades))
	copy(stopped, withStop.Trades)
	sort.SliceStable(stopped, func(i, j int) bool { return stopped[i].EntryDate.Before(stopped[j].EntryDate.Time) })

	for _, t := range stopped {
		k := tradeKey{t.Ticker, t.SignalDate}
		candidates := baseline[k]
		if len(candidates) == 0 {
			impact.Unmatched++
			continue
		}
		held := candidates[0]
		baseline[k] = candidates[1:]

		row := StopImpactRow{
			Ticker:            t.Ticker,
			SignalDate:        t.SignalDate,
			EntryDate:         t.EntryDate,
			Score:             t.Score,
			StopTriggered:     t.ExitReason == contracts.ExitStopLoss,
			DaysHeld:          t.HoldingDays,
			ReturnWithStop:    t.PnLPct,
			ReturnWithoutStop: held.PnLPct,
		}
		if row.StopTriggered {
			row.StopDate = t.ExitDate
		}
		impact.Rows = append(impact.Rows, row)
	}
	for _, rest := range baseline {
		impact.Unmatched += len(rest)
	}

	sort.SliceStable(impact.Rows, func(i, j int) bool {
		a, b := impact.Rows[i], impact.Rows[j]
		if !a.SignalDate.Equal(b.SignalDate.Time) {
			return a.SignalDate.Before(b.SignalDate.Time)
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.EntryDate.Before(b.EntryDate.Time)
	})

	impact.summarize()
	return impact
}

func (s *StopImpact) summarize() {
	s.Compared = len(s.Rows)
	if s.Compared == 0 {
		return
	}

	with := make([]float64, 0, s.Compared)
	without := make([]float64, 0, s.Compared)
	var days, stoppedSum, wouldSum float64
	for _, r := range s.Rows {
		with = append(with, r.ReturnWithStop)
		without = append(without, r.ReturnWithoutStop)
		if !r.StopTriggered {
			continue
		}
		s.Triggered++
		days += float64(r.DaysHeld)
		stoppedSum += r.ReturnWithStop
		wouldSum += r.ReturnWithoutStop
		switch {
		case r.ReturnWithStop > r.ReturnWithoutStop:
			s.Helped++
		case r.ReturnWithStop < r.ReturnWithoutStop:
			s.Hurt++
		}
	}

	s.WithStop = returnStats(with)
	s.WithoutStop = returnStats(without)
	s.Improvement = s.WithStop.AvgReturn - s.WithoutStop.AvgReturn
	s.TriggeredPct = float64(s.Triggered) / float64(s.Compared)
	if s.Triggered > 0 {
		n := float64(s.Triggered)
		s.AvgDaysStopped = days / n
		s.StoppedAvg = stoppedSum / n
		s.StoppedWouldAvg = wouldSum / n
	}
}

func returnStats(returns []float64) ReturnStats {
	if len(returns) == 0 {
		return ReturnStats{}
	}
	st := ReturnStats{Best: returns[0], Worst: returns[0]}
	sum, wins := 0.0, 0
	for _, r := range returns {
		sum += r
		if r > 0 {
			wins++
		}
		if r > st.Best {
			st.Best = r
		}
		if r < st.Worst {
			st.Worst = r
		}
	}
	st.AvgReturn = sum / float64(len(returns))
	st.WinRate = float64(wins) / float64(len(returns))
	return st
}
