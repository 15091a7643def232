package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/brain"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "포트폴리오 백테스트",
	Long: `시그널 피드를 일 단위로 재생하며 포트폴리오를 시뮬레이션합니다.

규칙:
- 시그널 다음 거래일 시가에 진입 (점수 내림차순, 슬롯/현금 한도)
- 저가가 손절가 이하 → 손절가로 청산 (STOP_LOSS)
- 보유일(달력일) 경과 → 당일 종가로 청산 (TIME)
- 종료일 보유분 → 종가로 청산 (END_OF_SIM)

Example:
  go run ./cmd/hisig backtest run
  go run ./cmd/hisig backtest run --strategy hold_12m --output data/portfolio/hold_12m.json
  go run ./cmd/hisig backtest run --dataset small-cap --stop-loss 0.5 --holding-period 180`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		RunE:  runBacktest,
	}

	// Flags
	backtestFlags  strategyFlags
	backtestOutput string
	backtestRaw    bool
	backtestSave   bool
	backtestTrades int
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestFlags.register(backtestRunCmd, false)
	backtestRunCmd.Flags().StringVar(&backtestOutput, "output", "", "write JSON to this path ('-' for stdout)")
	backtestRunCmd.Flags().BoolVar(&backtestRaw, "raw", false, "write the full result instead of the portfolio export")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the run to Postgres (requires DATABASE_URL)")
	backtestRunCmd.Flags().IntVar(&backtestTrades, "trades", 10, "number of best/worst trades to print")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDeps(ctx, depsOptions{requireDB: backtestSave, useDB: true, quiet: true})
	if err != nil {
		return err
	}
	defer d.Close()

	strategy, err := backtestFlags.resolve(cmd, false, d.cfg.Simulation.StrategyDir, d.cfg.Simulation.DefaultDataset)
	if err != nil {
		return err
	}

	out, err := d.orchestrator.RunBacktest(ctx, brain.Request{Strategy: strategy, Save: backtestSave})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	if backtestOutput == "-" {
		return audit.WriteJSON(os.Stdout, backtestPayload(out))
	}

	p := printer{w: os.Stdout}
	printBacktestResult(p, strategy.Meta.Name, out, backtestTrades)

	if backtestOutput != "" {
		if err := audit.WriteFile(backtestOutput, backtestPayload(out)); err != nil {
			return err
		}
		p.Success("Wrote " + backtestOutput)
	}
	if out.Saved {
		p.Success("Saved run " + out.RunID.String())
	}
	return nil
}

func backtestPayload(out *brain.BacktestOutcome) interface{} {
	if backtestRaw {
		return out.Result
	}
	return out.Export
}

func printBacktestResult(p printer, name string, out *brain.BacktestOutcome, topN int) {
	r := out.Result
	m := r.SummaryMetrics
	cfg := r.Config

	p.Header("Backtest: " + name)
	p.KeyValue("Dataset", out.Export.Dataset, 18)
	p.KeyValue("Period", fmt.Sprintf("%s ~ %s (%d trading days)", r.StartDate, r.EndDate, m.TradingDays), 18)
	p.KeyValue("Score range", fmt.Sprintf("%d-%d", cfg.ScoreMin, cfg.ScoreMax), 18)
	p.KeyValue("Sizing", fmt.Sprintf("%.0f%% × %d slots, buffer %.0f%%", cfg.MaxPositionPct*100, cfg.MaxPositions, cfg.CashBufferPct*100), 18)
	p.KeyValue("Exit", fmt.Sprintf("%d days / stop -%.0f%%", cfg.HoldingPeriodDays, cfg.StopLossPct*100), 18)
	p.Separator()

	// Performance
	fmt.Fprintln(p.w, "💰 Performance")
	p.KeyValue("Initial Capital", formatMoney(cfg.InitialCapital), 18)
	p.KeyValue("Final Value", formatMoney(m.FinalValue), 18)
	p.KeyValue("Total Return", formatPct(m.TotalReturn), 18)
	p.KeyValue("CAGR", formatPct(m.CAGR), 18)
	p.KeyValue("Volatility", fmt.Sprintf("%.2f%%", m.Volatility*100), 18)
	fmt.Fprintln(p.w)

	// Risk
	fmt.Fprintln(p.w, "📉 Risk Metrics")
	p.KeyValue("Sharpe Ratio", fmt.Sprintf("%.2f", m.SharpeRatio), 18)
	p.KeyValue("Sortino Ratio", fmt.Sprintf("%.2f", m.SortinoRatio), 18)
	p.KeyValue("Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100), 18)
	p.KeyValue("Daily VaR 95%", fmt.Sprintf("%.2f%%", m.DailyVaR95*100), 18)
	fmt.Fprintln(p.w)

	// Trading
	fmt.Fprintln(p.w, "💹 Trading Metrics")
	p.KeyValue("Total Trades", fmt.Sprintf("%d", m.TotalTrades), 18)
	p.KeyValue("Win Rate", fmt.Sprintf("%.1f%% (%d W / %d L)", m.WinRate*100, m.WinningTrades, m.LosingTrades), 18)
	p.KeyValue("Avg Win / Loss", fmt.Sprintf("%s / %s", formatPct(m.AvgWinPct), formatPct(m.AvgLossPct)), 18)
	p.KeyValue("Profit Factor", fmt.Sprintf("%.2f", m.ProfitFactor), 18)
	p.KeyValue("Avg Holding", fmt.Sprintf("%.0f days (%.0f%% > 1y)", m.AvgHoldingDays, m.LongTermShare*100), 18)
	p.KeyValue("Exits", fmt.Sprintf("TIME %d / STOP %d / END %d",
		m.ExitReasons[contracts.ExitTime], m.ExitReasons[contracts.ExitStopLoss], m.ExitReasons[contracts.ExitEndOfSim]), 18)
	p.KeyValue("Dropped Signals", fmt.Sprintf("%d of %d", r.Diagnostics.Dropped(), r.Diagnostics.SignalsSeen), 18)
	if n := len(r.Diagnostics.DataGaps); n > 0 {
		p.KeyValue("Data Gaps", fmt.Sprintf("%d (filled from prior closes)", n), 18)
	}
	fmt.Fprintln(p.w)

	printTrades(p, r.Trades, topN)

	if len(out.Export.CurrentHoldings) > 0 {
		fmt.Fprintf(p.w, "📌 Holdings at end (%d)\n", len(out.Export.CurrentHoldings))
		widths := []int{8, 12, 10, 10, 10}
		p.TableHeader([]string{"Ticker", "Entry", "Entry $", "Last $", "P&L"}, widths)
		for _, h := range out.Export.CurrentHoldings {
			p.TableRow([]string{h.Ticker, h.EntryDate.String(),
				fmt.Sprintf("%.2f", h.EntryPrice), fmt.Sprintf("%.2f", h.CurrentPrice),
				fmt.Sprintf("%+.1f%%", h.PnLPct)}, widths)
		}
		fmt.Fprintln(p.w)
	}

	if q := out.Quality; q != nil && !q.Passed {
		p.Warning(fmt.Sprintf("Price quality gate failed (score %.2f, %d tickers missing)", q.QualityScore, len(q.MissingTickers)))
	}
	for _, w := range out.Warnings {
		p.Warning(w.Message)
	}
	for _, name := range r.Diagnostics.Undefined {
		p.Warning(name + " undefined, reported as sentinel")
	}
}

// printTrades prints the best and worst closed trades by P&L %
func printTrades(p printer, trades []backtest.Trade, n int) {
	if n <= 0 || len(trades) == 0 {
		return
	}
	sorted := make([]backtest.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PnLPct > sorted[j].PnLPct })

	if n > len(sorted) {
		n = len(sorted)
	}
	widths := []int{8, 12, 12, 10, 11, 6}
	columns := []string{"Ticker", "Entry", "Exit", "P&L", "Reason", "Score"}
	row := func(t backtest.Trade) []string {
		return []string{t.Ticker, t.EntryDate.String(), t.ExitDate.String(),
			formatPct(t.PnLPct), string(t.ExitReason), fmt.Sprintf("%d", t.Score)}
	}

	fmt.Fprintln(p.w, "🏆 Best Trades")
	p.TableHeader(columns, widths)
	for _, t := range sorted[:n] {
		p.TableRow(row(t), widths)
	}
	fmt.Fprintln(p.w)

	fmt.Fprintln(p.w, "🔻 Worst Trades")
	p.TableHeader(columns, widths)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		p.TableRow(row(sorted[i]), widths)
	}
	fmt.Fprintln(p.w)
}
