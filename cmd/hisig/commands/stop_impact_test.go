package commands

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/internal/audit"
	"github.com/profitmonk/high-intent-signals/internal/s2_signals"
)

func TestStopDatasets(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		want      []string
		wantErr   bool
	}{
		{"default to preset", nil, []string{"micro-small"}, false},
		{"all", []string{"all"}, []string{"1b", "micro-small", "small-cap"}, false},
		{"explicit keeps order", []string{"small-cap", "1b"}, []string{"small-cap", "1b"}, false},
		{"duplicates dropped", []string{"1b", "1b"}, []string{"1b"}, false},
		{"unknown", []string{"mega"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stopDatasets(tt.requested, "micro-small")
			if tt.wantErr {
				assert.True(t, errors.Is(err, s2_signals.ErrUnknownDataset))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintStopImpact(t *testing.T) {
	impact := &audit.StopImpact{
		Dataset:         "small-cap",
		StopLossPct:     0.25,
		Compared:        40,
		WithoutStop:     audit.ReturnStats{AvgReturn: 0.12, WinRate: 0.55},
		WithStop:        audit.ReturnStats{AvgReturn: 0.15, WinRate: 0.5},
		Improvement:     0.03,
		Triggered:       8,
		TriggeredPct:    0.2,
		AvgDaysStopped:  41,
		StoppedAvg:      -0.25,
		StoppedWouldAvg: -0.4,
		Helped:          6,
		Hurt:            2,
	}

	var buf bytes.Buffer
	p := printer{w: &buf}
	printStopImpact(p, impact)
	printStopSummary(p, []*audit.StopImpact{impact, {Dataset: "1b", StopLossPct: 0.25}})

	out := buf.String()
	assert.Contains(t, out, "Stop Loss Impact: small-cap (-25%)")
	assert.Contains(t, out, "+12.00%")
	assert.Contains(t, out, "+15.00%")
	assert.Contains(t, out, "8 (20.0% of signals)")
	assert.Contains(t, out, "6 / 2")
	assert.Contains(t, out, "Stop helped: saved +15.00% per stopped trade")
	assert.Contains(t, out, "Summary Comparison")
	assert.NotContains(t, out, "Unmatched")
}
