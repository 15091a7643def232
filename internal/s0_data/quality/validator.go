package quality

import (
	"fmt"
	"sort"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// Coverage keys
const (
	CoverageTicker = "ticker" // 가격 파일이 있는 종목 비율
	CoverageEntry  = "entry"  // 진입일 바가 있는 시그널 비율
	CoverageVolume = "volume" // 진입 바 중 거래량 > 0 비율
)

// Oracle is the price view the gate needs (s0_data.MemoryOracle)
type Oracle interface {
	contracts.PriceOracle
	Tickers() []string
}

// QualityGate checks that a price set covers a signal feed before simulation
type QualityGate struct {
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinTickerCoverage float64 `yaml:"min_ticker_coverage"` // 0.90
	MinEntryCoverage  float64 `yaml:"min_entry_coverage"`  // 0.90
	EntryLookahead    int     `yaml:"entry_lookahead"`     // 진입 바 탐색 일수 (주말/휴일)
}

// DefaultConfig returns the thresholds used by the CLI
func DefaultConfig() Config {
	return Config{
		MinTickerCoverage: 0.90,
		MinEntryCoverage:  0.90,
		EntryLookahead:    5,
	}
}

// Snapshot is the result of one gate check
type Snapshot struct {
	Signals        int                `json:"signals"`
	Tickers        int                `json:"tickers"`
	Coverage       map[string]float64 `json:"coverage"`
	QualityScore   float64            `json:"quality_score"`
	Passed         bool               `json:"passed"`
	MissingTickers []string           `json:"missing_tickers,omitempty"`
	Failures       []string           `json:"failures,omitempty"`
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	if config.EntryLookahead <= 0 {
		config.EntryLookahead = DefaultConfig().EntryLookahead
	}
	return &QualityGate{config: config}
}

// Check validates price coverage for signals
// ⭐ SSOT: 시뮬레이션 전 가격 커버리지 검증
func (g *QualityGate) Check(signals []contracts.Signal, oracle Oracle) *Snapshot {
	snapshot := &Snapshot{
		Signals:  len(signals),
		Coverage: make(map[string]float64),
	}

	// 1. 종목 커버리지
	have := make(map[string]struct{})
	for _, t := range oracle.Tickers() {
		have[t] = struct{}{}
	}
	wanted := make(map[string]struct{})
	for _, s := range signals {
		wanted[s.Ticker] = struct{}{}
	}
	snapshot.Tickers = len(wanted)

	covered := 0
	for t := range wanted {
		if _, ok := have[t]; ok {
			covered++
		} else {
			snapshot.MissingTickers = append(snapshot.MissingTickers, t)
		}
	}
	sort.Strings(snapshot.MissingTickers)
	snapshot.Coverage[CoverageTicker] = ratio(covered, len(wanted))

	// 2. 진입/거래량 커버리지
	entries, withVolume := 0, 0
	for _, s := range signals {
		bar, ok := g.entryBar(oracle, s)
		if !ok {
			continue
		}
		entries++
		if bar.Volume > 0 {
			withVolume++
		}
	}
	snapshot.Coverage[CoverageEntry] = ratio(entries, len(signals))
	snapshot.Coverage[CoverageVolume] = ratio(withVolume, entries)

	// 3. 품질 점수 + 임계값
	snapshot.QualityScore = calculateScore(snapshot.Coverage)
	if c := snapshot.Coverage[CoverageTicker]; c < g.config.MinTickerCoverage {
		snapshot.Failures = append(snapshot.Failures,
			fmt.Sprintf("ticker coverage %.2f < %.2f", c, g.config.MinTickerCoverage))
	}
	if c := snapshot.Coverage[CoverageEntry]; c < g.config.MinEntryCoverage {
		snapshot.Failures = append(snapshot.Failures,
			fmt.Sprintf("entry coverage %.2f < %.2f", c, g.config.MinEntryCoverage))
	}
	snapshot.Passed = len(snapshot.Failures) == 0

	return snapshot
}

// entryBar finds the first bar strictly after the signal date within the lookahead
func (g *QualityGate) entryBar(oracle Oracle, s contracts.Signal) (contracts.Bar, bool) {
	d := contracts.Day(s.SignalDate)
	for i := 1; i <= g.config.EntryLookahead; i++ {
		if bar, ok := oracle.Get(s.Ticker, d.AddDate(0, 0, i)); ok {
			return bar, true
		}
	}
	return contracts.Bar{}, false
}

// calculateScore calculates overall quality score using weighted average
func calculateScore(coverage map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		CoverageTicker: 0.40,
		CoverageEntry:  0.50,
		CoverageVolume: 0.10,
	}

	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	score := 0.0
	for _, k := range keys {
		score += coverage[k] * weights[k]
	}
	return score
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 1.0
	}
	return float64(n) / float64(d)
}

// Window reports the date span of signals (for logging)
func Window(signals []contracts.Signal) (time.Time, time.Time) {
	if len(signals) == 0 {
		return time.Time{}, time.Time{}
	}
	first, last := signals[0].SignalDate, signals[0].SignalDate
	for _, s := range signals[1:] {
		if s.SignalDate.Before(first) {
			first = s.SignalDate
		}
		if s.SignalDate.After(last) {
			last = s.SignalDate
		}
	}
	return contracts.Day(first), contracts.Day(last)
}
