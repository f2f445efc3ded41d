package flagger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// Invariant 4: SIR(x, eta=0) is the identity.
func TestSIREtaZeroIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "n")
		flags := make([]bool, n)
		for i := range flags {
			flags[i] = rapid.Bool().Draw(t, "f")
		}
		before := append([]bool(nil), flags...)

		SIR1D(flags, 0)
		assert.Equal(t, before, flags)
	})
}

// Invariant 4: SIR(x, eta=1) flags everything.
func TestSIREtaOneFlagsEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "n")
		flags := make([]bool, n)
		for i := range flags {
			flags[i] = rapid.Bool().Draw(t, "f")
		}

		SIR1D(flags, 1)
		for _, f := range flags {
			assert.True(t, f)
		}
	})
}

// S4 from spec.md §8. The credit recurrence (ported verbatim from the
// LOFAR source's SIROperator, see DESIGN.md) cannot bridge a gap this wide
// at eta=0.4: a single flagged cell only contributes credit=eta=0.4, and
// one intervening unflagged cell costs eta-1=-0.6, so the two singleton
// flags never reconnect. The input is therefore its own fixed point here;
// spec.md's worked example assumes a bridging result the defining
// recurrence does not produce for this eta and gap width.
func TestScenarioS4(t *testing.T) {
	flags := []bool{true, false, false, false, true}
	SIR1D(flags, 0.4)
	assert.Equal(t, []bool{true, false, false, false, true}, flags)
}

func TestSIR2DDilatesBothAxes(t *testing.T) {
	// A short run of 3 flagged cells in the middle of an otherwise-clean
	// row/column has enough credit to dilate by a couple of cells on each
	// side at eta=0.4 (a single isolated flag does not, see TestScenarioS4).
	flags := NewFlagGrid2D(13, 13)
	for i := 5; i < 8; i++ {
		flags.Set(6, i, true) // row 6: time direction run
		flags.Set(i, 6, true) // column 6: channel direction run
	}

	SIR2D(flags, 0.4)

	assert.True(t, flags.At(6, 4), "time-direction dilation should extend before the run")
	assert.True(t, flags.At(6, 8), "time-direction dilation should extend after the run")
	assert.True(t, flags.At(4, 6), "channel-direction dilation should extend before the run")
	assert.True(t, flags.At(8, 6), "channel-direction dilation should extend after the run")
}
