package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/contracts"
	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
)

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, data, nil
}

// Parse decodes and validates a preset
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDir reads every *.yaml preset in dir keyed by strategy_id
func LoadDir(dir string) (map[string]*Config, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make(map[string]*Config, len(paths))
	for _, p := range paths {
		cfg, _, err := Load(p)
		if err != nil {
			return nil, err
		}
		if _, dup := out[cfg.Meta.StrategyID]; dup {
			return nil, ValidationError{"meta.strategy_id", fmt.Sprintf("duplicate %q in %s", cfg.Meta.StrategyID, filepath.Base(p))}
		}
		out[cfg.Meta.StrategyID] = cfg
	}
	return out, nil
}

// Default mirrors backtest.DefaultConfig and montecarlo.DefaultConfig
func Default() *Config {
	bt := backtest.DefaultConfig()
	mc := montecarlo.DefaultConfig()
	return &Config{
		Meta: Meta{Version: "1"},
		Signals: Signals{
			Dataset:  "1b",
			ScoreMin: bt.ScoreMin,
			ScoreMax: bt.ScoreMax,
		},
		Portfolio: Portfolio{
			InitialCapital: bt.InitialCapital,
			MaxPositionPct: bt.MaxPositionPct,
			MaxPositions:   bt.MaxPositions,
			CashBufferPct:  bt.CashBufferPct,
		},
		Exit: Exit{
			HoldingPeriodDays: bt.HoldingPeriodDays,
			StopLossPct:       bt.StopLossPct,
		},
		Simulation: Simulation{
			RiskFreeRate:       bt.RiskFreeRate,
			MaxGapLookbackDays: bt.MaxGapLookbackDays,
		},
		MonteCarlo: MonteCarlo{
			From:        mc.From.Format(contracts.DateLayout),
			To:          mc.To.Format(contracts.DateLayout),
			Seed:        mc.Seed,
			MinGapWeeks: mc.MinGapWeeks,
			MaxGapWeeks: mc.MaxGapWeeks,
		},
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewSnapshot creates a snapshot for audit
func NewSnapshot(cfg *Config, yamlData []byte) (*Snapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		StrategyID: cfg.Meta.StrategyID,
		CreatedAt:  time.Now(),
	}, nil
}

// ToBacktestConfig converts the preset to engine parameters
func (c *Config) ToBacktestConfig() (backtest.Config, error) {
	bt := backtest.Config{
		InitialCapital:     c.Portfolio.InitialCapital,
		HoldingPeriodDays:  c.Exit.HoldingPeriodDays,
		StopLossPct:        c.Exit.StopLossPct,
		ScoreMin:           c.Signals.ScoreMin,
		ScoreMax:           c.Signals.ScoreMax,
		MaxPositionPct:     c.Portfolio.MaxPositionPct,
		MaxPositions:       c.Portfolio.MaxPositions,
		CashBufferPct:      c.Portfolio.CashBufferPct,
		RiskFreeRate:       c.Simulation.RiskFreeRate,
		AllowPyramiding:    c.Portfolio.AllowPyramiding,
		MaxGapLookbackDays: c.Simulation.MaxGapLookbackDays,
	}

	var err error
	if bt.StartDate, err = parseOptionalDay(c.Simulation.StartDate); err != nil {
		return backtest.Config{}, ValidationError{"simulation.start_date", err.Error()}
	}
	if bt.EndDate, err = parseOptionalDay(c.Simulation.EndDate); err != nil {
		return backtest.Config{}, ValidationError{"simulation.end_date", err.Error()}
	}

	if err := bt.Validate(); err != nil {
		return backtest.Config{}, err
	}
	return bt, nil
}

// ToMonteCarloConfig converts the preset's sampling block. workers <= 0 keeps the default.
func (c *Config) ToMonteCarloConfig(workers int) (montecarlo.Config, error) {
	mc := montecarlo.DefaultConfig()
	from, err := contracts.ParseDay(c.MonteCarlo.From)
	if err != nil {
		return montecarlo.Config{}, ValidationError{"monte_carlo.from", err.Error()}
	}
	to, err := contracts.ParseDay(c.MonteCarlo.To)
	if err != nil {
		return montecarlo.Config{}, ValidationError{"monte_carlo.to", err.Error()}
	}

	mc.From = from
	mc.To = to
	mc.Seed = c.MonteCarlo.Seed
	mc.MinGapWeeks = c.MonteCarlo.MinGapWeeks
	mc.MaxGapWeeks = c.MonteCarlo.MaxGapWeeks
	if workers > 0 {
		mc.Workers = workers
	}
	return mc, nil
}

func parseOptionalDay(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return contracts.ParseDay(s)
}
