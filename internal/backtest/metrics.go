package backtest

import (
	"math"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/risk"
)

const (
	// TradingDaysPerYear annualizes daily ratios
	TradingDaysPerYear = 252

	// ProfitFactorNoLoss is reported when there are gains and no losses
	ProfitFactorNoLoss = 99.99
	// SortinoNoDownside is reported when there is no downside deviation and mean excess return > 0
	SortinoNoDownside = 99.99

	// LongTermHoldingDays 장기 보유 기준 (초과 시 장기)
	LongTermHoldingDays = 365
)

// Metrics is the summary of one run
type Metrics struct {
	FinalValue   float64 `json:"final_value"`
	TotalReturn  float64 `json:"total_return"`
	CAGR         float64 `json:"cagr"`
	MaxDrawdown  float64 `json:"max_drawdown"` // 양수 비율
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	Volatility   float64 `json:"volatility"` // 연환산
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`

	// 거래 통계
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	AvgWinPct      float64 `json:"avg_win_pct"`
	AvgLossPct     float64 `json:"avg_loss_pct"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
	LongTermTrades int     `json:"long_term_trades"`
	LongTermShare  float64 `json:"long_term_share"`

	ExitReasons map[contracts.ExitReason]int `json:"exit_reasons"`

	// 일간 손실 위험 (95%)
	DailyVaR95  float64 `json:"daily_var_95"`
	DailyCVaR95 float64 `json:"daily_cvar_95"`

	TradingDays int `json:"trading_days"`
}

// ComputeMetrics derives summary metrics from a finished run.
// Pure: returns the metrics plus the names of metrics resolved to a sentinel.
func ComputeMetrics(curve []EquityPoint, trades []Trade, initialCapital, riskFreeRate float64) (Metrics, []string) {
	var undefined []string
	m := Metrics{
		FinalValue:  initialCapital,
		ExitReasons: make(map[contracts.ExitReason]int),
		TradingDays: len(curve),
	}

	if len(curve) > 0 {
		m.FinalValue = curve[len(curve)-1].Value
	}
	if initialCapital > 0 {
		m.TotalReturn = m.FinalValue/initialCapital - 1
	}

	// CAGR
	switch {
	case len(curve) == 0 || contracts.DaysBetween(curve[0].Date.Time, curve[len(curve)-1].Date.Time) <= 0:
		m.CAGR = ComputationUndefined
		undefined = append(undefined, "cagr")
	case m.FinalValue <= 0:
		m.CAGR = -1
	default:
		days := contracts.DaysBetween(curve[0].Date.Time, curve[len(curve)-1].Date.Time)
		m.CAGR = math.Pow(m.FinalValue/initialCapital, 365.0/float64(days)) - 1
	}

	m.MaxDrawdown = maxDrawdown(curve, initialCapital)

	// Sharpe / Sortino / Volatility: 일간 수익률 기준
	returns := DailyReturns(curve, initialCapital)
	rfDaily := riskFreeRate / TradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfDaily
	}
	annualizer := math.Sqrt(TradingDaysPerYear)
	meanExcess := risk.Mean(excess)

	m.Volatility = risk.StdDev(returns) * annualizer

	if std := risk.StdDev(excess); std > 0 {
		m.SharpeRatio = meanExcess / std * annualizer
	} else {
		m.SharpeRatio = ComputationUndefined
		undefined = append(undefined, "sharpe_ratio")
	}

	if dd := risk.DownsideDeviation(excess, 0); dd > 0 {
		m.SortinoRatio = meanExcess / dd * annualizer
	} else {
		if meanExcess > 0 {
			m.SortinoRatio = SortinoNoDownside
		} else {
			m.SortinoRatio = ComputationUndefined
		}
		undefined = append(undefined, "sortino_ratio")
	}

	v := risk.CalculateVaR(returns, 0.95)
	m.DailyVaR95, m.DailyCVaR95 = v.VaR, v.CVaR

	// 거래 통계
	m.TotalTrades = len(trades)
	var gains, losses, winPctSum, lossPctSum, holdingSum float64
	for _, t := range trades {
		m.ExitReasons[t.ExitReason]++
		holdingSum += float64(t.HoldingDays)
		if t.HoldingDays > LongTermHoldingDays {
			m.LongTermTrades++
		}

		switch {
		case t.PnLPct > 0:
			m.WinningTrades++
			winPctSum += t.PnLPct
		case t.PnLPct < 0:
			m.LosingTrades++
			lossPctSum += t.PnLPct
		}

		if t.PnL > 0 {
			gains += t.PnL
		} else if t.PnL < 0 {
			losses += -t.PnL
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
		m.AvgHoldingDays = holdingSum / float64(m.TotalTrades)
		m.LongTermShare = float64(m.LongTermTrades) / float64(m.TotalTrades)
	} else {
		m.WinRate = ComputationUndefined
		undefined = append(undefined, "win_rate")
	}
	if m.WinningTrades > 0 {
		m.AvgWinPct = winPctSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLossPct = lossPctSum / float64(m.LosingTrades)
	}

	switch {
	case losses > 0:
		m.ProfitFactor = gains / losses
	case gains > 0:
		m.ProfitFactor = ProfitFactorNoLoss
		undefined = append(undefined, "profit_factor")
	default:
		m.ProfitFactor = ComputationUndefined
		undefined = append(undefined, "profit_factor")
	}

	return m, undefined
}

// DailyReturns returns one simple return per mark; the first is measured against initialCapital.
// Marks following a non-positive value yield 0.
func DailyReturns(curve []EquityPoint, initialCapital float64) []float64 {
	returns := make([]float64, 0, len(curve))
	prev := initialCapital
	for _, p := range curve {
		if prev > 0 {
			returns = append(returns, p.Value/prev-1)
		} else {
			returns = append(returns, 0)
		}
		prev = p.Value
	}
	return returns
}

// DrawdownSeries returns the decline from the running peak for every mark.
// The peak starts at initialCapital.
func DrawdownSeries(curve []EquityPoint, initialCapital float64) []DrawdownPoint {
	out := make([]DrawdownPoint, 0, len(curve))
	peak := initialCapital
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - p.Value) / peak
		}
		out = append(out, DrawdownPoint{Date: p.Date, Drawdown: dd})
	}
	return out
}

func maxDrawdown(curve []EquityPoint, initialCapital float64) float64 {
	maxDD := 0.0
	for _, p := range DrawdownSeries(curve, initialCapital) {
		if p.Drawdown > maxDD {
			maxDD = p.Drawdown
		}
	}
	return maxDD
}

// MonthlyReturns compares each month's last mark with the previous month's last mark.
// The first month is measured against initialCapital.
func MonthlyReturns(curve []EquityPoint, initialCapital float64) []MonthlyReturn {
	var out []MonthlyReturn
	prev := initialCapital
	for i, p := range curve {
		month := p.Date.Format("2006-01")
		if i+1 < len(curve) && curve[i+1].Date.Format("2006-01") == month {
			continue
		}
		ret := 0.0
		if prev > 0 {
			ret = p.Value/prev - 1
		}
		out = append(out, MonthlyReturn{Month: month, Return: ret})
		prev = p.Value
	}
	return out
}
