package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/collector"
	"github.com/profitmonk/high-intent-signals/internal/s0_data/quality"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
)

// fetcherCmd represents the fetcher command
var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "가격 데이터 수집 도구",
	Long: `FMP API 에서 시그널 종목의 일봉을 수집합니다.

이 명령어는:
- 데이터셋 시그널의 종목 목록 추출
- FMP historical-price-full 요청 (redis 레이트 리밋 / 캐시)
- data/cache 에 JSON 저장, DATABASE_URL 이 있으면 data.daily_prices 에 upsert

Example:
  go run ./cmd/hisig fetcher prices --dataset 1b
  go run ./cmd/hisig fetcher prices --dataset small-cap --from 2023-01-01 --workers 10
  go run ./cmd/hisig fetcher prices --incremental`,
}

var (
	fetcherPricesCmd = &cobra.Command{
		Use:   "prices",
		Short: "일봉 수집 실행",
		RunE:  runFetchPrices,
	}

	// Fetcher flags
	fetchDataset     string
	fetchFrom        string
	fetchTo          string
	fetchWorkers     int
	fetchIncremental bool
)

func init() {
	rootCmd.AddCommand(fetcherCmd)
	fetcherCmd.AddCommand(fetcherPricesCmd)

	fetcherPricesCmd.Flags().StringVar(&fetchDataset, "dataset", "", "signal dataset (default: DEFAULT_DATASET)")
	fetcherPricesCmd.Flags().StringVar(&fetchFrom, "from", "", "first date YYYY-MM-DD (default: first signal)")
	fetcherPricesCmd.Flags().StringVar(&fetchTo, "to", "", "last date YYYY-MM-DD (default: today)")
	fetcherPricesCmd.Flags().IntVar(&fetchWorkers, "workers", 5, "concurrent requests")
	fetcherPricesCmd.Flags().BoolVar(&fetchIncremental, "incremental", false, "only fetch after the latest stored date (requires DATABASE_URL)")
}

func runFetchPrices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDeps(ctx, depsOptions{requireDB: fetchIncremental, useDB: true})
	if err != nil {
		return err
	}
	defer d.Close()

	if d.collector == nil {
		return fmt.Errorf("price collection requires FMP_API_KEY")
	}

	dataset := fetchDataset
	if dataset == "" {
		dataset = d.cfg.Simulation.DefaultDataset
	}

	in, err := d.orchestrator.Prepare(ctx, dataset)
	if err != nil {
		return err
	}

	from, _ := quality.Window(in.Signals)
	to := contracts.Day(time.Now())
	if fetchFrom != "" {
		if from, err = contracts.ParseDay(fetchFrom); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if fetchTo != "" {
		if to, err = contracts.ParseDay(fetchTo); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	tickers := s2_signals.Tickers(in.Signals)
	fmt.Printf("📥 Fetching %d tickers (%s ~ %s)\n", len(tickers), from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))

	results, err := d.collector.FetchPrices(ctx, tickers, from, to, collector.Config{
		Workers:     fetchWorkers,
		Incremental: fetchIncremental,
	})
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}

	p := printer{w: os.Stdout}
	printFetchResults(p, results)

	if s := collector.Summarize(results); s.Failed > 0 {
		return fmt.Errorf("%d of %d tickers failed", s.Failed, len(results))
	}
	return nil
}

func printFetchResults(p printer, results []collector.FetchResult) {
	s := collector.Summarize(results)

	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(p.w, "   ❌ %-8s %v\n", r.Ticker, r.Error)
		}
	}
	p.Separator()
	p.KeyValue("Success", fmt.Sprintf("%d", s.Success), 8)
	p.KeyValue("Skipped", fmt.Sprintf("%d", s.Skipped), 8)
	p.KeyValue("Failed", fmt.Sprintf("%d", s.Failed), 8)

	bars := 0
	for _, r := range results {
		bars += r.PriceCount
	}
	p.KeyValue("Bars", formatNumber(int64(bars)), 8)
}
