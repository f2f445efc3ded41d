package flagger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMeanStddevAllFlagged(t *testing.T) {
	x := []float32{1, 2, 3}
	mask := []bool{true, true, true}
	m, s := meanStddev(x, mask)
	assert.Zero(t, m)
	assert.Zero(t, s)
}

func TestMedianAllFlaggedSignalsNotOk(t *testing.T) {
	x := []float32{1, 2, 3}
	mask := []bool{true, true, true}
	_, ok := median(x, mask, nil)
	assert.False(t, ok, "median of a fully-flagged series must report not-ok rather than a sentinel value")
}

// S3 from spec.md §8: winsorised mean of [1..10] with index 9 pre-flagged.
// spec.md §8's own worked value (4.888888888) does not match a bit-for-bit
// port of original_source/LOFAR-source/Flagger.cc:254-259: with the 9
// unflagged values [1..9], lowIndex=floor(0.1*9)=0 and
// highIndex=ceil(0.9*9)-1=8, giving lowValue=1, highValue=9 --
// neither end gets clamped, so the mean is the unwinsorised 45/9=5. See
// DESIGN.md's Open Questions for the reconciliation.
func TestWinsorisedMeanScenarioS3(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	mask := make([]bool, 10)
	mask[9] = true

	m, _, _ := winsorisedStats(x, mask, nil)
	assert.InDelta(t, 5.0, float64(m), 1e-5)
}

// Invariant 8 (spec.md §8): winsorised statistics equal normal statistics
// when the unflagged count is below 10 (so the 10% trim is 0 elements).
func TestWinsorisedEqualsNormalBelowTen(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 9).Draw(t, "n")
		x := make([]float32, n)
		for i := range x {
			x[i] = float32(rapid.Float64Range(-1000, 1000).Draw(t, "v"))
		}

		normMean, normStd := meanStddev(x, nil)
		normMedian, ok := median(x, nil, nil)
		require.True(t, ok)

		winMean, winMedian, winStd := winsorisedStats(x, nil, nil)

		assert.InDelta(t, float64(normMean), float64(winMean), 1e-2)
		assert.Equal(t, normMedian, winMedian)
		// The Winsorised stddev carries the 1.54 Gaussian-equivalence factor
		// even when no trimming happened, so it is NOT expected to equal the
		// normal stddev — only the trim boundaries (and hence mean/median)
		// coincide when n < 10.
		_ = normStd
		_ = winStd
	})
}

func TestQuickselectMatchesSortedOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(t, "n")
		data := make([]float32, n)
		for i := range data {
			data[i] = float32(rapid.Float64Range(-1e6, 1e6).Draw(t, "v"))
		}
		k := rapid.IntRange(0, n-1).Draw(t, "k")

		cp := append([]float32(nil), data...)
		got := quickselect(cp, k)

		sorted := append([]float32(nil), data...)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		assert.Equal(t, sorted[k], got)
	})
}

func TestCalculateStatisticsIllegalKind(t *testing.T) {
	_, _, _, err := calculateStatistics(statsKindInvalid, []float32{1, 2, 3}, nil, nil)
	require.Error(t, err)
	var illegal *IllegalStatsKind
	assert.ErrorAs(t, err, &illegal)
}

func TestMeanStddevZeroSeries(t *testing.T) {
	x := make([]float32, 8)
	m, s := meanStddev(x, nil)
	assert.Zero(t, m)
	assert.Zero(t, s)
	assert.False(t, math.IsNaN(float64(m)))
}
