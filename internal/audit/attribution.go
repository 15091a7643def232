package audit

import (
	"fmt"
	"sort"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
)

// Attribution is the P&L contribution of one group of trades
type Attribution struct {
	Group        string  `json:"group"` // score 또는 exit_reason
	Key          string  `json:"key"`
	Trades       int     `json:"trades"`
	WinRate      float64 `json:"win_rate"`
	AvgPnLPct    float64 `json:"avg_pnl_pct"`
	TotalPnL     float64 `json:"total_pnl"`
	Contribution float64 `json:"contribution"` // 전체 손익 대비 비중
}

// Attribution groups
const (
	GroupScore      = "score"
	GroupExitReason = "exit_reason"
)

// AttributeByScore splits realized P&L by signal score
func AttributeByScore(trades []backtest.Trade) []Attribution {
	return attribute(trades, GroupScore, func(t backtest.Trade) string {
		return fmt.Sprintf("%02d", t.Score)
	})
}

// AttributeByExitReason splits realized P&L by how positions were closed
func AttributeByExitReason(trades []backtest.Trade) []Attribution {
	return attribute(trades, GroupExitReason, func(t backtest.Trade) string {
		return string(t.ExitReason)
	})
}

func attribute(trades []backtest.Trade, group string, keyFn func(backtest.Trade) string) []Attribution {
	byKey := make(map[string]*Attribution)
	sumPct := make(map[string]float64)
	wins := make(map[string]int)
	total := 0.0

	for _, t := range trades {
		k := keyFn(t)
		a, ok := byKey[k]
		if !ok {
			a = &Attribution{Group: group, Key: k}
			byKey[k] = a
		}
		a.Trades++
		a.TotalPnL += t.PnL
		sumPct[k] += t.PnLPct
		if t.PnL > 0 {
			wins[k]++
		}
		total += t.PnL
	}

	attrs := make([]Attribution, 0, len(byKey))
	for k, a := range byKey {
		a.WinRate = float64(wins[k]) / float64(a.Trades)
		a.AvgPnLPct = sumPct[k] / float64(a.Trades)
		if total != 0 {
			a.Contribution = a.TotalPnL / total
		}
		attrs = append(attrs, *a)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	return attrs
}

// TopContributors returns the groups with the largest P&L first
func TopContributors(attrs []Attribution, limit int) []Attribution {
	return ranked(attrs, limit, func(a, b Attribution) bool { return a.TotalPnL > b.TotalPnL })
}

// BottomContributors returns the groups with the worst P&L first
func BottomContributors(attrs []Attribution, limit int) []Attribution {
	return ranked(attrs, limit, func(a, b Attribution) bool { return a.TotalPnL < b.TotalPnL })
}

func ranked(attrs []Attribution, limit int, less func(a, b Attribution) bool) []Attribution {
	sorted := make([]Attribution, len(attrs))
	copy(sorted, attrs)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	if limit < 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}
