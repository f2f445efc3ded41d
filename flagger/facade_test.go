package flagger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumThreshold1DSmoothedFlagsSpike(t *testing.T) {
	x := make([]float32, 40)
	for i := range x {
		x[i] = 1
	}
	x[20] = 500
	flags := make([]bool, 40)
	smoothed := make([]float32, 40)
	diff := make([]float32, 40)

	f := NewFlagger(Config{CutoffThreshold: 6, StatsKind: StatsWinsorized, DetectorKind: SumThreshold})
	n, err := f.SumThreshold1DSmoothed(x, smoothed, diff, flags, 1.0)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.True(t, flags[20])
}

func TestSumThreshold1DWithHistoryGatesAfterWarmup(t *testing.T) {
	f := NewFlagger(Config{CutoffThreshold: 6, StatsKind: StatsWinsorized, DetectorKind: SumThreshold, HistorySensitivity: 10.0})
	h := NewHistory()

	quiet := make([]float32, 20)
	for i := range quiet {
		quiet[i] = 1
	}

	for i := 0; i < MinHistorySize; i++ {
		flags := make([]bool, len(quiet))
		_, err := f.SumThreshold1DWithHistory(quiet, flags, 1.0, h)
		require.NoError(t, err)
		for _, fl := range flags {
			assert.False(t, fl)
		}
	}

	loud := make([]float32, 20)
	for i := range loud {
		loud[i] = 500
	}
	flags := make([]bool, len(loud))
	n, err := f.SumThreshold1DWithHistory(loud, flags, 1.0, h)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	for _, fl := range flags {
		assert.True(t, fl)
	}
}

func TestSumThreshold2DWithHistoryUnflaggedUntouched(t *testing.T) {
	f := NewFlagger(Config{CutoffThreshold: 6, StatsKind: StatsWinsorized, DetectorKind: SumThreshold, HistorySensitivity: 10.0})
	h := NewHistory()

	grid := NewGrid2D(8, 8)
	for ch := 0; ch < 8; ch++ {
		for tt := 0; tt < 8; tt++ {
			grid.Set(ch, tt, 1)
		}
	}
	flags := NewFlagGrid2D(8, 8)
	integrated := make([]float32, 8)

	n, err := f.SumThreshold2DWithHistory(grid, flags, integrated, 1.0, h)
	require.NoError(t, err)
	assert.Zero(t, n)
	for _, fl := range flags.Data {
		assert.False(t, fl)
	}
}
