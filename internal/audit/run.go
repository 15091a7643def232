package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/profitmonk/high-intent-signals/internal/backtest"
	"github.com/profitmonk/high-intent-signals/internal/montecarlo"
)

// Kind identifies which engine produced a run
type Kind string

const (
	KindBacktest   Kind = "backtest"
	KindMonteCarlo Kind = "montecarlo"
)

// Run is one persisted simulation.
// Params/Summary/Payload are stored as JSONB so the schema does not track engine types.
type Run struct {
	ID           uuid.UUID       `json:"run_id"`
	Kind         Kind            `json:"kind"`
	Strategy     string          `json:"strategy"`
	StrategyHash string          `json:"strategy_hash"`
	Dataset      string          `json:"dataset"`
	Params       json.RawMessage `json:"params"`
	Summary      json.RawMessage `json:"summary"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Meta labels a run with the preset it came from
type Meta struct {
	Strategy     string
	StrategyHash string
	Dataset      string
}

// NewBacktestRun wraps a backtest result for persistence
func NewBacktestRun(result *backtest.Result, meta Meta) (*Run, error) {
	if result == nil {
		return nil, fmt.Errorf("nil backtest result")
	}
	return newRun(KindBacktest, meta, result.Config, result.SummaryMetrics, result)
}

// NewMonteCarloRun wraps a Monte Carlo summary for persistence.
// The summary doubles as the payload; individual runs live inside it.
func NewMonteCarloRun(summary *montecarlo.Summary, meta Meta) (*Run, error) {
	if summary == nil {
		return nil, fmt.Errorf("nil monte carlo summary")
	}
	params := struct {
		Strategy backtest.Config   `json:"strategy"`
		Params   montecarlo.Config `json:"params"`
	}{summary.Strategy, summary.Params}

	head := struct {
		Runs               int                    `json:"runs"`
		Skipped            int                    `json:"skipped"`
		Failed             int                    `json:"failed"`
		ProfitableFraction float64                `json:"profitable_fraction"`
		Robustness         montecarlo.Robustness  `json:"robustness"`
		Metrics            montecarlo.MetricStats `json:"metrics"`
	}{summary.Runs, summary.Skipped, summary.Failed, summary.ProfitableFraction, summary.Robustness, summary.Metrics}

	return newRun(KindMonteCarlo, meta, params, head, summary)
}

func newRun(kind Kind, meta Meta, params, summary, payload interface{}) (*Run, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	s, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Run{
		ID:           uuid.New(),
		Kind:         kind,
		Strategy:     meta.Strategy,
		StrategyHash: meta.StrategyHash,
		Dataset:      meta.Dataset,
		Params:       p,
		Summary:      s,
		Payload:      body,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
