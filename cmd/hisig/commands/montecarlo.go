package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/brain"
	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
	"github.com/profitmonk/high-intent-signals/internal/risk"
)

// montecarloCmd represents the montecarlo command
var montecarloCmd = &cobra.Command{
	Use:     "montecarlo",
	Aliases: []string{"mc"},
	Short:   "Monte Carlo 시작일 검증",
	Long: `시작일을 바꿔가며 같은 전략을 반복 실행하고 결과 분포를 요약합니다.

시작일 생성:
- from 부터 [min-gap, max-gap] 주 간격으로 무작위 (seed 고정 → 재현 가능)
- 각 시작일 이후 시그널만 사용
- 각 run 은 독립 포트폴리오 (병렬 실행)

Example:
  go run ./cmd/hisig montecarlo run
  go run ./cmd/hisig montecarlo run --strategy monte_carlo_default --seed 7 --workers 8
  go run ./cmd/hisig mc run --from 2023-01-01 --to 2024-12-31 --min-gap 4 --max-gap 6`,
}

var (
	montecarloRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Monte Carlo 실행",
		RunE:  runMonteCarlo,
	}

	// Flags
	mcFlags   strategyFlags
	mcWorkers int
	mcOutput  string
	mcSave    bool
	mcQuiet   bool
)

func init() {
	rootCmd.AddCommand(montecarloCmd)
	montecarloCmd.AddCommand(montecarloRunCmd)

	mcFlags.register(montecarloRunCmd, true)
	montecarloRunCmd.Flags().IntVar(&mcWorkers, "workers", 0, "parallel runs (0 = MC_WORKERS)")
	montecarloRunCmd.Flags().StringVar(&mcOutput, "output", "", "write the summary JSON to this path ('-' for stdout)")
	montecarloRunCmd.Flags().BoolVar(&mcSave, "save", false, "persist the run to Postgres (requires DATABASE_URL)")
	montecarloRunCmd.Flags().BoolVar(&mcQuiet, "no-progress", false, "do not print progress")
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDeps(ctx, depsOptions{requireDB: mcSave, useDB: true, quiet: true})
	if err != nil {
		return err
	}
	defer d.Close()

	strategy, err := mcFlags.resolve(cmd, true, d.cfg.Simulation.StrategyDir, d.cfg.Simulation.DefaultDataset)
	if err != nil {
		return err
	}

	workers := mcWorkers
	if workers <= 0 {
		workers = d.cfg.Simulation.Workers
	}

	p := printer{w: os.Stderr}
	req := brain.Request{Strategy: strategy, Save: mcSave, Workers: workers}
	if !mcQuiet {
		req.Progress = func(pr montecarlo.Progress) {
			status := "done"
			switch {
			case pr.Err != nil:
				status = "failed: " + pr.Err.Error()
			case pr.Skipped:
				status = "skipped"
			}
			fmt.Fprintf(p.w, "\r   [%d/%d] %s %s", pr.Completed, pr.Total, pr.StartDate.Format("2006-01-02"), status)
			if pr.Completed == pr.Total {
				fmt.Fprintln(p.w)
			}
		}
	}

	out, err := d.orchestrator.RunMonteCarlo(ctx, req)
	if err != nil {
		return fmt.Errorf("monte carlo failed: %w", err)
	}

	if mcOutput == "-" {
		return audit.WriteJSON(os.Stdout, out.Summary)
	}

	stdout := printer{w: os.Stdout}
	printMonteCarloSummary(stdout, strategy.Meta.Name, out)

	if mcOutput != "" {
		if err := audit.WriteFile(mcOutput, out.Summary); err != nil {
			return err
		}
		stdout.Success("Wrote " + mcOutput)
	}
	if out.Saved {
		stdout.Success("Saved run " + out.RunID.String())
	}
	return nil
}

func printMonteCarloSummary(p printer, name string, out *brain.MonteCarloOutcome) {
	s := out.Summary
	params := s.Params

	p.Header("Monte Carlo: " + name)
	p.KeyValue("Start range", fmt.Sprintf("%s ~ %s", params.From.Format("2006-01-02"), params.To.Format("2006-01-02")), 14)
	p.KeyValue("Gap", fmt.Sprintf("%d-%d weeks, seed %d", params.MinGapWeeks, params.MaxGapWeeks, params.Seed), 14)
	p.KeyValue("Runs", fmt.Sprintf("%d completed / %d skipped / %d failed", s.Runs, s.Skipped, s.Failed), 14)
	p.KeyValue("Duration", out.Duration.Round(time.Millisecond).String(), 14)
	p.Separator()

	// Distribution
	fmt.Fprintln(p.w, "📊 Distribution")
	widths := []int{14, 10, 10, 10, 10, 10, 10}
	p.TableHeader([]string{"Metric", "Mean", "Std", "Median", "P10", "P90", "Worst"}, widths)
	pctRow := func(label string, d risk.Distribution, worst float64) {
		p.TableRow([]string{label, formatPct(d.Mean), fmt.Sprintf("%.2f%%", d.Std*100), formatPct(d.Median),
			formatPct(d.P10), formatPct(d.P90), formatPct(worst)}, widths)
	}
	numRow := func(label string, d risk.Distribution, worst float64) {
		p.TableRow([]string{label, fmt.Sprintf("%.2f", d.Mean), fmt.Sprintf("%.2f", d.Std), fmt.Sprintf("%.2f", d.Median),
			fmt.Sprintf("%.2f", d.P10), fmt.Sprintf("%.2f", d.P90), fmt.Sprintf("%.2f", worst)}, widths)
	}
	m := s.Metrics
	pctRow("Total Return", m.TotalReturn, m.TotalReturn.Min)
	pctRow("CAGR", m.CAGR, m.CAGR.Min)
	pctRow("Max Drawdown", m.MaxDrawdown, m.MaxDrawdown.Max)
	numRow("Sharpe", m.SharpeRatio, m.SharpeRatio.Min)
	numRow("Sortino", m.SortinoRatio, m.SortinoRatio.Min)
	pctRow("Win Rate", m.WinRate, m.WinRate.Min)
	numRow("Profit Factor", m.ProfitFactor, m.ProfitFactor.Min)
	numRow("Trades", m.TotalTrades, m.TotalTrades.Min)
	fmt.Fprintln(p.w)

	// Robustness
	rb := s.Robustness
	fmt.Fprintln(p.w, "🛡️  Robustness")
	p.KeyValue("Profitable", fmt.Sprintf("%d of %d (%.0f%%)", rb.ProfitableRuns, s.Runs, s.ProfitableFraction*100), 20)
	p.KeyValue("Consistency", fmt.Sprintf("%s (CV %.2f)", rb.Consistency, rb.ReturnCV), 20)
	p.KeyValue("Worst Return", formatPct(rb.WorstReturn), 20)
	p.KeyValue("Return / Drawdown", fmt.Sprintf("%.2f", rb.ReturnDrawdownRatio), 20)
	if !rb.WorstCaseProfitable {
		p.Warning("Worst start date lost money")
	}
	fmt.Fprintln(p.w)

	// Individual runs
	fmt.Fprintln(p.w, "📋 Individual Runs")
	rowWidths := []int{12, 12, 10, 10, 10, 8, 7}
	p.TableHeader([]string{"Start", "End", "Return", "CAGR", "MaxDD", "Sharpe", "Trades"}, rowWidths)
	for _, row := range s.Individual {
		switch {
		case row.Error != "":
			p.TableRow([]string{row.StartDate.String(), "-", "failed", "", "", "", ""}, rowWidths)
		case row.Skipped:
			p.TableRow([]string{row.StartDate.String(), "-", "skipped", "", "", "", ""}, rowWidths)
		default:
			p.TableRow([]string{row.StartDate.String(), row.EndDate.String(), formatPct(row.TotalReturn), formatPct(row.CAGR),
				fmt.Sprintf("%.2f%%", row.MaxDrawdown*100), fmt.Sprintf("%.2f", row.SharpeRatio), fmt.Sprintf("%d", row.TotalTrades)}, rowWidths)
		}
	}
	fmt.Fprintln(p.w)

	if q := out.Quality; q != nil && !q.Passed {
		p.Warning(fmt.Sprintf("Price quality gate failed (score %.2f, %d tickers missing)", q.QualityScore, len(q.MissingTickers)))
	}
}
