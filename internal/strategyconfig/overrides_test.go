package strategyconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrides_Apply(t *testing.T) {
	base := Default()
	base.Meta.StrategyID = "hold_3m"

	stop := 0.6
	hold := 365
	minScore := 5
	maxScore := 7
	seed := int64(7)
	from := "2024-01-01"

	out := Overrides{
		StopLossPct: &stop,
		HoldingDays: &hold,
		ScoreMin:    &minScore,
		ScoreMax:    &maxScore,
		Seed:        &seed,
		From:        &from,
	}.Apply(base)

	require.NotSame(t, base, out)
	assert.Equal(t, "hold_3m", out.Meta.StrategyID)
	assert.Equal(t, 0.6, out.Exit.StopLossPct)
	assert.Equal(t, 365, out.Exit.HoldingPeriodDays)
	assert.Equal(t, 5, out.Signals.ScoreMin)
	assert.Equal(t, 7, out.Signals.ScoreMax)
	assert.Equal(t, int64(7), out.MonteCarlo.Seed)
	assert.Equal(t, "2024-01-01", out.MonteCarlo.From)

	// 원본 불변
	assert.Equal(t, Default().Exit.StopLossPct, base.Exit.StopLossPct)
	assert.Equal(t, Default().MonteCarlo.From, base.MonteCarlo.From)

	h1, err := Hash(base)
	require.NoError(t, err)
	h2, err := Hash(out)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestOverrides_Empty(t *testing.T) {
	assert.True(t, Overrides{}.IsEmpty())

	n := 3
	assert.False(t, Overrides{MaxPositions: &n}.IsEmpty())

	base := Default()
	out := Overrides{}.Apply(base)
	assert.Equal(t, *base, *out)
}
