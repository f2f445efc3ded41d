package pipeline

import (
	"testing"

	"github.com/NLeSC/eAstroViz/flagger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreChannelFlagsAndZeroesOutlierBlock(t *testing.T) {
	const nrChannels = 4
	const nrStations = 2
	const nrSamplesPerIntegration = 32

	cfg := flagger.DefaultConfig(nrStations, 1, nrChannels)
	cfg.CutoffThreshold = 6

	p, err := NewPreChannelPipeline(cfg, nrSamplesPerIntegration, true, true, false)
	require.NoError(t, err)

	v := newFakeVoltages(nrChannels, nrStations, nrSamplesPerIntegration)
	for ch := 0; ch < nrChannels; ch++ {
		for st := 0; st < nrStations; st++ {
			for tt := 0; tt < nrSamplesPerIntegration; tt++ {
				for pol := 0; pol < nrPol; pol++ {
					v.SetSample(ch, st, tt, pol, 1)
				}
			}
		}
	}
	// Inject a strong outlier confined to one integration_factor block on
	// channel 2, station 0, across both polarisations.
	const outlierChannel = 2
	const outlierStation = 0
	integrationFactor := nrSamplesPerIntegration / 16
	for tt := 0; tt < integrationFactor; tt++ {
		for pol := 0; pol < nrPol; pol++ {
			v.SetSample(outlierChannel, outlierStation, tt, pol, 1000)
		}
	}

	require.NoError(t, p.Flag(v, 0, 0))

	for tt := 0; tt < integrationFactor; tt++ {
		assert.True(t, v.Flags(outlierChannel, outlierStation).Test(tt), "outlier block should be externally flagged at t=%d", tt)
		for pol := 0; pol < nrPol; pol++ {
			assert.Equal(t, complex64(0), v.Sample(outlierChannel, outlierStation, tt, pol))
		}
	}

	// Station 1 was never touched and should be untouched.
	for ch := 0; ch < nrChannels; ch++ {
		assert.False(t, v.Flags(ch, 1).Test(0))
		assert.Equal(t, complex64(1), v.Sample(ch, 1, 0, 0))
	}
}

// The frequency-direction history gate (spec.md §4.8, applyFrequencyHistoryGate)
// must flag the whole grid once a call's power is far above a settled
// history, even on data flat enough that the ordinary detector never fires.
// The detector is disabled here (an enormous cutoff/sensitivity) to isolate
// the gate's own behaviour.
func TestPreChannelHistoryGateFlagsAfterWarmup(t *testing.T) {
	const nrChannels = 4
	const nrStations = 1
	const nrSamplesPerIntegration = 32

	cfg := flagger.DefaultConfig(nrStations, 1, nrChannels)
	cfg.CutoffThreshold = 1e6
	cfg.BaseSensitivity = 1e6

	p, err := NewPreChannelPipeline(cfg, nrSamplesPerIntegration, true, false, true)
	require.NoError(t, err)

	fillConstant := func(v *fakeVoltages, amplitude float32) {
		for ch := 0; ch < nrChannels; ch++ {
			for tt := 0; tt < nrSamplesPerIntegration; tt++ {
				for pol := 0; pol < nrPol; pol++ {
					v.SetSample(ch, 0, tt, pol, complex(amplitude, 0))
				}
			}
		}
	}

	for i := 0; i < flagger.MinHistorySize; i++ {
		v := newFakeVoltages(nrChannels, nrStations, nrSamplesPerIntegration)
		fillConstant(v, 1)
		require.NoError(t, p.Flag(v, 0, 0))
	}

	loud := newFakeVoltages(nrChannels, nrStations, nrSamplesPerIntegration)
	fillConstant(loud, 100)
	require.NoError(t, p.Flag(loud, 0, 0))

	for ch := 0; ch < nrChannels; ch++ {
		for tt := 0; tt < nrSamplesPerIntegration; tt++ {
			assert.True(t, loud.Flags(ch, 0).Test(tt), "channel %d time %d should be gated by history", ch, tt)
			assert.Equal(t, complex64(0), loud.Sample(ch, 0, tt, 0))
		}
	}
}

func TestPreChannelRejectsNonMultipleOf16(t *testing.T) {
	cfg := flagger.DefaultConfig(1, 1, 4)
	_, err := NewPreChannelPipeline(cfg, 17, true, true, false)
	assert.Error(t, err)
}
