package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dataDir string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hisig",
	Short: "High-intent signal portfolio backtester",
	Long: `hisig - 시그널 기반 포트폴리오 백테스트 / Monte Carlo 검증 CLI

시그널 피드(JSON)와 일봉 가격으로 포트폴리오를 시뮬레이션하고,
시작일을 바꿔가며 Monte Carlo 로 전략의 견고성을 검증합니다.

Usage:
  go run ./cmd/hisig [command]

Examples:
  go run ./cmd/hisig backtest run --strategy config/strategy/hold_12m.yaml
  go run ./cmd/hisig montecarlo run --dataset small-cap --seed 7
  go run ./cmd/hisig fetcher prices --dataset 1b
  go run ./cmd/hisig api
  go run ./cmd/hisig test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "signal/price data directory (default: DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
