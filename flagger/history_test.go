package flagger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// Invariant 5: the history gate never fires before count >= MinHistorySize.
func TestInvariantNoGateDuringWarmup(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := NewHistory()
		steps := rapid.IntRange(1, MinHistorySize-1).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			v := float32(rapid.Float64Range(-1e6, 1e6).Draw(t, "v"))
			gated := h.AddGated(v, 10.0)
			assert.False(t, gated)
		}
		assert.Equal(t, steps, h.Count())
	})
}

// S5 from spec.md §8: 32 identical values of 1.0, then 2.0.
func TestScenarioS5(t *testing.T) {
	h := NewHistory()
	for i := 0; i < MinHistorySize; i++ {
		gated := h.AddGated(1.0, 10.0)
		assert.False(t, gated)
	}
	assert.Equal(t, float32(1.0), h.Mean())
	assert.Equal(t, float32(0.0), h.Stddev())

	// mean=1, stddev=0 => threshold = 1 + 10*0 = 1. 2.0 > 1 => gated, and the
	// history records the threshold (1.0), not the raw value, so it does not
	// get poisoned by the one-off excursion.
	gated := h.AddGated(2.0, 10.0)
	assert.True(t, gated)
	assert.Equal(t, float32(1.0), h.Mean())
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	h := NewHistory()
	for i := 0; i < HistorySize; i++ {
		h.Add(1.0)
	}
	assert.Equal(t, HistorySize, h.Count())
	assert.Equal(t, float32(1.0), h.Mean())

	h.Add(1.0 + float32(HistorySize)) // evicts one of the 1.0s
	assert.Equal(t, HistorySize, h.Count())
	expected := (float32(HistorySize-1)*1.0 + (1.0 + float32(HistorySize))) / float32(HistorySize)
	assert.InDelta(t, float64(expected), float64(h.Mean()), 1e-2)
}

func TestHistoryEmptyIsZero(t *testing.T) {
	h := NewHistory()
	assert.Zero(t, h.Mean())
	assert.Zero(t, h.Stddev())
	assert.Zero(t, h.Count())
}
