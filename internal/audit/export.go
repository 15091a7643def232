package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// PortfolioExport is the static-site payload for one strategy.
// 사이트가 읽는 필드명 그대로 유지
type PortfolioExport struct {
	Dataset          string                   `json:"dataset"`
	Strategy         string                   `json:"strategy"`
	StrategyHash     string                   `json:"strategy_hash,omitempty"`
	SimulationConfig ExportConfig             `json:"simulation_config"`
	SummaryMetrics   ExportMetrics            `json:"summary_metrics"`
	EquityCurve      []ExportPoint            `json:"equity_curve"`
	DrawdownSeries   []ExportDrawdown         `json:"drawdown_series"`
	CurrentHoldings  []Holding                `json:"current_holdings"`
	ClosedPositions  []ClosedPosition         `json:"closed_positions"`
	MonthlyReturns   []backtest.MonthlyReturn `json:"monthly_returns"`
	Attribution      []Attribution            `json:"attribution"`
}

// ExportConfig echoes the parameters the site displays
type ExportConfig struct {
	InitialCapital    float64 `json:"initial_capital"`
	HoldingPeriodDays int     `json:"holding_period_days"`
	StopLossPct       float64 `json:"stop_loss_pct"`
	MaxPositionPct    float64 `json:"max_position_pct"`
	MaxPositions      int     `json:"max_positions"`
	MinScore          int     `json:"min_score"`
	MaxScore          int     `json:"max_score"`
	StrategyName      string  `json:"strategy_name"`
}

// ExportMetrics is the rounded metrics block
type ExportMetrics struct {
	FinalValue    float64 `json:"final_value"`
	TotalReturn   float64 `json:"total_return"`
	CAGR          float64 `json:"cagr"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	SortinoRatio  float64 `json:"sortino_ratio"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	LongTermPct   float64 `json:"long_term_pct"`
}

// ExportPoint is one equity curve point
type ExportPoint struct {
	Date  contracts.Date `json:"date"`
	Value float64        `json:"value"`
}

// ExportDrawdown is one drawdown point
type ExportDrawdown struct {
	Date     contracts.Date `json:"date"`
	Drawdown float64        `json:"drawdown"`
}

// Holding is a position still open when the simulation ended, marked at its last price
type Holding struct {
	Ticker       string         `json:"ticker"`
	EntryDate    contracts.Date `json:"entry_date"`
	EntryPrice   float64        `json:"entry_price"`
	CurrentPrice float64        `json:"current_price"`
	Shares       int64          `json:"shares"`
	CostBasis    float64        `json:"cost_basis"`
	CurrentValue float64        `json:"current_value"`
	PnLPct       float64        `json:"pnl_pct"` // 퍼센트 단위
	Score        int            `json:"score"`
}

// ClosedPosition is a trade closed by a strategy rule
type ClosedPosition struct {
	Ticker      string               `json:"ticker"`
	EntryDate   contracts.Date       `json:"entry_date"`
	ExitDate    contracts.Date       `json:"exit_date"`
	EntryPrice  float64              `json:"entry_price"`
	ExitPrice   float64              `json:"exit_price"`
	PnLPct      float64              `json:"pnl_pct"` // 퍼센트 단위
	HoldingDays int                  `json:"holding_days"`
	ExitReason  contracts.ExitReason `json:"exit_reason"`
	Score       int                  `json:"score"`
}

// BuildExport converts a result into the site payload.
// END_OF_SIM trades are reported as holdings, everything else as closed positions.
func BuildExport(result *backtest.Result, meta Meta) *PortfolioExport {
	cfg := result.Config
	m := result.SummaryMetrics

	exp := &PortfolioExport{
		Dataset:      meta.Dataset,
		Strategy:     meta.Strategy,
		StrategyHash: meta.StrategyHash,
		SimulationConfig: ExportConfig{
			InitialCapital:    cfg.InitialCapital,
			HoldingPeriodDays: cfg.HoldingPeriodDays,
			StopLossPct:       cfg.StopLossPct,
			MaxPositionPct:    cfg.MaxPositionPct,
			MaxPositions:      cfg.MaxPositions,
			MinScore:          cfg.ScoreMin,
			MaxScore:          cfg.ScoreMax,
			StrategyName:      meta.Strategy,
		},
		SummaryMetrics: ExportMetrics{
			FinalValue:    round(m.FinalValue, 2),
			TotalReturn:   round(m.TotalReturn, 4),
			CAGR:          round(m.CAGR, 4),
			MaxDrawdown:   round(m.MaxDrawdown, 4),
			SharpeRatio:   round(m.SharpeRatio, 2),
			SortinoRatio:  round(m.SortinoRatio, 2),
			WinRate:       round(m.WinRate, 4),
			ProfitFactor:  round(m.ProfitFactor, 2),
			TotalTrades:   m.TotalTrades,
			WinningTrades: m.WinningTrades,
			LosingTrades:  m.LosingTrades,
			LongTermPct:   round(m.LongTermShare, 4),
		},
		EquityCurve:     make([]ExportPoint, 0, len(result.EquityCurve)),
		DrawdownSeries:  make([]ExportDrawdown, 0, len(result.DrawdownSeries)),
		CurrentHoldings: make([]Holding, 0),
		ClosedPositions: make([]ClosedPosition, 0, len(result.Trades)),
		MonthlyReturns:  make([]backtest.MonthlyReturn, 0, len(result.MonthlyReturns)),
	}

	for _, p := range result.EquityCurve {
		exp.EquityCurve = append(exp.EquityCurve, ExportPoint{Date: p.Date, Value: round(p.Value, 2)})
	}
	for _, d := range result.DrawdownSeries {
		exp.DrawdownSeries = append(exp.DrawdownSeries, ExportDrawdown{Date: d.Date, Drawdown: round(d.Drawdown, 4)})
	}
	for _, mr := range result.MonthlyReturns {
		exp.MonthlyReturns = append(exp.MonthlyReturns, backtest.MonthlyReturn{Month: mr.Month, Return: round(mr.Return, 4)})
	}

	for _, t := range result.Trades {
		if t.ExitReason == contracts.ExitEndOfSim {
			exp.CurrentHoldings = append(exp.CurrentHoldings, Holding{
				Ticker:       t.Ticker,
				EntryDate:    t.EntryDate,
				EntryPrice:   round(t.EntryPrice, 2),
				CurrentPrice: round(t.ExitPrice, 2),
				Shares:       t.Shares,
				CostBasis:    round(t.CostBasis, 2),
				CurrentValue: round(float64(t.Shares)*t.ExitPrice, 2),
				PnLPct:       round(t.PnLPct*100, 2),
				Score:        t.Score,
			})
			continue
		}
		exp.ClosedPositions = append(exp.ClosedPositions, ClosedPosition{
			Ticker:      t.Ticker,
			EntryDate:   t.EntryDate,
			ExitDate:    t.ExitDate,
			EntryPrice:  round(t.EntryPrice, 2),
			ExitPrice:   round(t.ExitPrice, 2),
			PnLPct:      round(t.PnLPct*100, 2),
			HoldingDays: t.HoldingDays,
			ExitReason:  t.ExitReason,
			Score:       t.Score,
		})
	}

	exp.Attribution = append(AttributeByScore(result.Trades), AttributeByExitReason(result.Trades)...)
	return exp
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteFile writes v as indented JSON to path, creating parent directories
func WriteFile(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
