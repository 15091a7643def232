package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/profitmonk/high-intent-signals/internal/strategyconfig"
)

// strategyFlags are the per-run parameters shared by backtest and montecarlo.
// 명시적으로 지정한 플래그만 프리셋 값을 덮어씀
type strategyFlags struct {
	strategy       string
	dataset        string
	minScore       int
	maxScore       int
	capital        float64
	maxPositionPct float64
	maxPositions   int
	cashBuffer     float64
	holdingPeriod  int
	stopLoss       float64

	// backtest: 시뮬레이션 창 / montecarlo: 시작일 샘플링 구간
	from string
	to   string

	// Monte Carlo only
	seed   int64
	minGap int
	maxGap int
}

func (f *strategyFlags) register(cmd *cobra.Command, monteCarlo bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.strategy, "strategy", "", "YAML preset path or preset id under STRATEGY_DIR")
	fs.StringVar(&f.dataset, "dataset", "", "signal dataset (1b | micro-small | small-cap)")
	fs.IntVar(&f.minScore, "min-score", 0, "minimum signal score (inclusive)")
	fs.IntVar(&f.maxScore, "max-score", 0, "maximum signal score (inclusive)")
	fs.Float64Var(&f.capital, "capital", 0, "initial capital")
	fs.Float64Var(&f.maxPositionPct, "max-position-pct", 0, "max position size as a fraction of portfolio value")
	fs.IntVar(&f.maxPositions, "max-positions", 0, "max concurrent positions")
	fs.Float64Var(&f.cashBuffer, "cash-buffer", 0, "cash kept uninvested as a fraction of portfolio value")
	fs.IntVar(&f.holdingPeriod, "holding-period", 0, "holding period in calendar days")
	fs.Float64Var(&f.stopLoss, "stop-loss", 0, "stop loss as a fraction below entry (0.6 = -60%)")

	if monteCarlo {
		fs.StringVar(&f.from, "from", "", "first start date (YYYY-MM-DD)")
		fs.StringVar(&f.to, "to", "", "last start date (YYYY-MM-DD)")
		fs.Int64Var(&f.seed, "seed", 0, "random seed for start dates")
		fs.IntVar(&f.minGap, "min-gap", 0, "minimum weeks between start dates")
		fs.IntVar(&f.maxGap, "max-gap", 0, "maximum weeks between start dates")
	} else {
		fs.StringVar(&f.from, "from", "", "simulation start date (YYYY-MM-DD)")
		fs.StringVar(&f.to, "to", "", "simulation end date (YYYY-MM-DD)")
	}
}

// overrides collects the flags the user actually set
func (f *strategyFlags) overrides(cmd *cobra.Command, monteCarlo bool) strategyconfig.Overrides {
	changed := cmd.Flags().Changed
	var o strategyconfig.Overrides

	if changed("dataset") {
		o.Dataset = &f.dataset
	}
	if changed("min-score") {
		o.ScoreMin = &f.minScore
	}
	if changed("max-score") {
		o.ScoreMax = &f.maxScore
	}
	if changed("capital") {
		o.InitialCapital = &f.capital
	}
	if changed("max-position-pct") {
		o.MaxPositionPct = &f.maxPositionPct
	}
	if changed("max-positions") {
		o.MaxPositions = &f.maxPositions
	}
	if changed("cash-buffer") {
		o.CashBufferPct = &f.cashBuffer
	}
	if changed("holding-period") {
		o.HoldingDays = &f.holdingPeriod
	}
	if changed("stop-loss") {
		o.StopLossPct = &f.stopLoss
	}

	if monteCarlo {
		if changed("from") {
			o.From = &f.from
		}
		if changed("to") {
			o.To = &f.to
		}
		if changed("seed") {
			o.Seed = &f.seed
		}
		if changed("min-gap") {
			o.MinGapWeeks = &f.minGap
		}
		if changed("max-gap") {
			o.MaxGapWeeks = &f.maxGap
		}
	} else {
		if changed("from") {
			o.StartDate = &f.from
		}
		if changed("to") {
			o.EndDate = &f.to
		}
	}
	return o
}

// resolve loads the preset (or defaults) and applies the set flags
func (f *strategyFlags) resolve(cmd *cobra.Command, monteCarlo bool, strategyDir, defaultDataset string) (*strategyconfig.Config, error) {
	var base *strategyconfig.Config

	if f.strategy == "" {
		base = strategyconfig.Default()
		base.Meta.StrategyID = "cli"
		base.Meta.Name = "CLI"
		if defaultDataset != "" {
			base.Signals.Dataset = defaultDataset
		}
	} else {
		path := presetPath(f.strategy, strategyDir)
		cfg, _, err := strategyconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load strategy %s: %w", path, err)
		}
		base = cfg
	}

	cfg := f.overrides(cmd, monteCarlo).Apply(base)
	if err := strategyconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// presetPath accepts a file path or a bare preset id
func presetPath(strategy, strategyDir string) string {
	if strings.HasSuffix(strategy, ".yaml") || strings.HasSuffix(strategy, ".yml") {
		return strategy
	}
	if _, err := os.Stat(strategy); err == nil {
		return strategy
	}
	return filepath.Join(strategyDir, strategy+".yaml")
}
