package backtest

import (
	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// Result is the serializable output of one run.
// Carries no wall-clock timestamps so identical inputs marshal byte-identically.
type Result struct {
	Config         Config          `json:"config"`
	StartDate      contracts.Date  `json:"start_date"`
	EndDate        contracts.Date  `json:"end_date"`
	Trades         []Trade         `json:"trades"`
	EquityCurve    []EquityPoint   `json:"equity_curve"`
	DrawdownSeries []DrawdownPoint `json:"drawdown_series"`
	MonthlyReturns []MonthlyReturn `json:"monthly_returns"`
	SummaryMetrics Metrics         `json:"summary_metrics"`
	Diagnostics    Diagnostics     `json:"diagnostics"`
	OpenAtEnd      int             `json:"open_at_end"` // END_OF_SIM으로 청산된 포지션 수
}

// Trade is one closed position
type Trade struct {
	Ticker              string               `json:"ticker"`
	SignalDate          contracts.Date       `json:"signal_date"`
	EntryDate           contracts.Date       `json:"entry_date"`
	EntryPrice          float64              `json:"entry_price"`
	ExitDate            contracts.Date       `json:"exit_date"`
	ExitPrice           float64              `json:"exit_price"`
	Shares              int64                `json:"shares"`
	CostBasis           float64              `json:"cost_basis"`
	EntryPortfolioValue float64              `json:"entry_portfolio_value"`
	PnL                 float64              `json:"pnl"`
	PnLPct              float64              `json:"pnl_pct"`
	HoldingDays         int                  `json:"holding_days"`
	ExitReason          contracts.ExitReason `json:"exit_reason"`
	Score               int                  `json:"score"`
}

// TradeFromPosition converts a closed position into a Trade record
func TradeFromPosition(p *contracts.Position) Trade {
	return Trade{
		Ticker:              p.Ticker,
		SignalDate:          contracts.NewDate(p.SignalDate),
		EntryDate:           contracts.NewDate(p.EntryDate),
		EntryPrice:          p.EntryPrice,
		ExitDate:            contracts.NewDate(p.ExitDate),
		ExitPrice:           p.ExitPrice,
		Shares:              p.Shares,
		CostBasis:           p.CostBasis,
		EntryPortfolioValue: p.EntryPortfolioValue,
		PnL:                 p.PnL,
		PnLPct:              p.PnLPct,
		HoldingDays:         p.HoldingDays,
		ExitReason:          p.ExitReason,
		Score:               p.Score,
	}
}

// EquityPoint is the end-of-day portfolio mark
type EquityPoint struct {
	Date          contracts.Date `json:"date"`
	Value         float64        `json:"value"`
	Cash          float64        `json:"cash"`
	OpenPositions int            `json:"open_positions"`
}

// DrawdownPoint is the decline from the running peak on one day
type DrawdownPoint struct {
	Date     contracts.Date `json:"date"`
	Drawdown float64        `json:"drawdown"`
}

// MonthlyReturn is the return of one calendar month (YYYY-MM)
type MonthlyReturn struct {
	Month  string  `json:"month"`
	Return float64 `json:"return"`
}

// Diagnostics collects the non-fatal events of a run
type Diagnostics struct {
	SignalsSeen int                `json:"signals_seen"`
	Admitted    int                `json:"admitted"`
	DropCounts  map[DropReason]int `json:"drop_counts"`
	Drops       []Drop             `json:"drops"`
	DataGaps    []DataGapError     `json:"data_gaps"`
	Undefined   []string           `json:"undefined"` // 분모 0으로 sentinel 처리된 지표
}

// Dropped returns the total number of dropped signals
func (d *Diagnostics) Dropped() int {
	n := 0
	for _, c := range d.DropCounts {
		n += c
	}
	return n
}

func (d *Diagnostics) addDrop(sig contracts.Signal, date contracts.Date, reason DropReason) {
	d.DropCounts[reason]++
	d.Drops = append(d.Drops, Drop{Ticker: sig.Ticker, Date: date, Score: sig.Score, Reason: reason})
}

// Holdings returns the trades still held when the run ended
func (r *Result) Holdings() []Trade {
	var out []Trade
	for _, t := range r.Trades {
		if t.ExitReason == contracts.ExitEndOfSim {
			out = append(out, t)
		}
	}
	return out
}
