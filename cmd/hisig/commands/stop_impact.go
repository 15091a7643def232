package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
)

var (
	compareStopCmd = &cobra.Command{
		Use:   "compare-stop",
		Short: "손절 유무 비교 (시그널 단위)",
		Long: `같은 프리셋을 손절 적용/미적용(stop_loss_pct=1)으로 두 번 실행하고
시그널별 수익률을 비교합니다.

Example:
  go run ./cmd/hisig backtest compare-stop --stop-loss 0.25
  go run ./cmd/hisig backtest compare-stop --datasets all --holding-period 365`,
		RunE: runCompareStop,
	}

	compareFlags    strategyFlags
	compareDatasets []string
	compareOutput   string
)

func init() {
	backtestCmd.AddCommand(compareStopCmd)

	compareFlags.register(compareStopCmd, false)
	compareStopCmd.Flags().StringSliceVar(&compareDatasets, "datasets", nil, "datasets to compare ('all' for every dataset; default: the preset's)")
	compareStopCmd.Flags().StringVar(&compareOutput, "output", "", "write the comparison JSON to this path ('-' for stdout)")
}

func runCompareStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDeps(ctx, depsOptions{useDB: true, quiet: true})
	if err != nil {
		return err
	}
	defer d.Close()

	strategy, err := compareFlags.resolve(cmd, false, d.cfg.Simulation.StrategyDir, d.cfg.Simulation.DefaultDataset)
	if err != nil {
		return err
	}
	datasets, err := stopDatasets(compareDatasets, strategy.Signals.Dataset)
	if err != nil {
		return err
	}

	p := printer{w: os.Stdout}
	if compareOutput == "-" {
		p.w = os.Stderr
	}

	var impacts []*audit.StopImpact
	for _, ds := range datasets {
		ds := ds
		run := strategyconfig.Overrides{Dataset: &ds}.Apply(strategy)

		impact, err := d.orchestrator.CompareStop(ctx, run)
		if errors.Is(err, fs.ErrNotExist) {
			p.Warning(fmt.Sprintf("Skipping %s (signal feed not found)", ds))
			continue
		}
		if err != nil {
			return fmt.Errorf("compare stop %s: %w", ds, err)
		}
		printStopImpact(p, impact)
		impacts = append(impacts, impact)
	}
	if len(impacts) == 0 {
		return fmt.Errorf("compare stop: no dataset could be loaded")
	}
	if len(impacts) > 1 {
		printStopSummary(p, impacts)
	}

	switch compareOutput {
	case "":
	case "-":
		return audit.WriteJSON(os.Stdout, impacts)
	default:
		if err := audit.WriteFile(compareOutput, impacts); err != nil {
			return err
		}
		p.Success("Wrote " + compareOutput)
	}
	return nil
}

// stopDatasets expands the --datasets flag; empty means the preset's dataset
func stopDatasets(requested []string, preset string) ([]string, error) {
	if len(requested) == 0 {
		return []string{preset}, nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range requested {
		if name == "all" {
			return s2_signals.DatasetNames(), nil
		}
		if _, ok := s2_signals.Datasets[name]; !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", s2_signals.ErrUnknownDataset, name, s2_signals.DatasetNames())
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

func printStopImpact(p printer, s *audit.StopImpact) {
	p.Header(fmt.Sprintf("Stop Loss Impact: %s (-%.0f%%)", s.Dataset, s.StopLossPct*100))
	p.KeyValue("Signals compared", fmt.Sprintf("%d", s.Compared), 18)
	if s.Unmatched > 0 {
		p.KeyValue("Unmatched", fmt.Sprintf("%d (admitted in one run only)", s.Unmatched), 18)
	}
	fmt.Fprintln(p.w)

	widths := []int{16, 14, 14, 10}
	p.TableHeader([]string{"Metric", "Without Stop", "With Stop", "Diff"}, widths)
	p.TableRow([]string{"Avg Return", formatPct(s.WithoutStop.AvgReturn), formatPct(s.WithStop.AvgReturn), formatPct(s.Improvement)}, widths)
	p.TableRow([]string{"Win Rate", fmt.Sprintf("%.1f%%", s.WithoutStop.WinRate*100), fmt.Sprintf("%.1f%%", s.WithStop.WinRate*100), ""}, widths)
	p.TableRow([]string{"Best", formatPct(s.WithoutStop.Best), formatPct(s.WithStop.Best), ""}, widths)
	p.TableRow([]string{"Worst", formatPct(s.WithoutStop.Worst), formatPct(s.WithStop.Worst), ""}, widths)
	fmt.Fprintln(p.w)

	fmt.Fprintln(p.w, "🛑 Stop Triggered")
	p.KeyValue("Count", fmt.Sprintf("%d (%.1f%% of signals)", s.Triggered, s.TriggeredPct*100), 18)
	if s.Triggered == 0 {
		return
	}
	p.KeyValue("Avg days held", fmt.Sprintf("%.0f", s.AvgDaysStopped), 18)
	p.KeyValue("Return at stop", formatPct(s.StoppedAvg), 18)
	p.KeyValue("Would have been", formatPct(s.StoppedWouldAvg), 18)
	p.KeyValue("Helped / Hurt", fmt.Sprintf("%d / %d", s.Helped, s.Hurt), 18)
	if s.StopHelped() {
		p.Success(fmt.Sprintf("Stop helped: saved %s per stopped trade", formatPct(s.StoppedAvg-s.StoppedWouldAvg)))
	} else {
		p.Warning(fmt.Sprintf("Stop hurt: cost %s per stopped trade", formatPct(s.StoppedWouldAvg-s.StoppedAvg)))
	}
}

func printStopSummary(p printer, impacts []*audit.StopImpact) {
	p.Header("Summary Comparison")
	widths := []int{14, 12, 12, 10, 10}
	p.TableHeader([]string{"Dataset", "Without", "With Stop", "Diff", "Stopped"}, widths)
	for _, s := range impacts {
		p.TableRow([]string{s.Dataset, formatPct(s.WithoutStop.AvgReturn), formatPct(s.WithStop.AvgReturn),
			formatPct(s.Improvement), fmt.Sprintf("%d", s.Triggered)}, widths)
	}
	fmt.Fprintln(p.w)
}
