package pipeline

import (
	"math"
	"sort"

	"github.com/NLeSC/eAstroViz/flagger"
	"github.com/NLeSC/eAstroViz/internal/rfilog"
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTSize is the fixed single-channel transform size of spec.md §4.9.
const FFTSize = 256

// ReplacementPolicy selects how a flagged FFT bin or time slot is
// overwritten (spec.md §4.9).
type ReplacementPolicy int

const (
	ReplaceZero ReplacementPolicy = iota
	ReplaceMean
	ReplaceRandom
	ReplaceMedian
)

// PreFFTPipeline is the pre-correlation, single-channel, FFT round-trip
// pipeline (spec.md §4.9), required when nr_channels == 1. Every instance
// owns its own FFT plan, created once at construction and never shared
// (spec.md §5).
type PreFFTPipeline struct {
	cfg                     flagger.Config
	integrationFactor       int
	nrSamplesPerIntegration int
	bandpass                BandpassTable
	correctBandpass         bool
	replacement             ReplacementPolicy
	useHistory              bool

	fft *fourier.CmplxFFT

	freqFlagger *flagger.Flagger
	timeFlagger *flagger.Flagger

	fftIn  [nrPol][]complex128
	fftOut [nrPol][]complex128
	bins   [nrPol][]complex128

	freqPowers [nrPol][]float32
	freqFlags  [nrPol][]bool

	timePowers [nrPol][]float32
	timeFlags  [nrPol][]bool

	statsScratch []float32
	cplxScratch  []complex64

	freqHistory []*flagger.History // [station*nrSubbands + subband]
	timeHistory []*flagger.History
}

// NewPreFFTPipeline constructs the pipeline. nrSamplesPerIntegration must be
// a multiple of FFTSize (spec.md §4.9).
func NewPreFFTPipeline(cfg flagger.Config, nrSamplesPerIntegration int, bandpass BandpassTable, correctBandpass bool, replacement ReplacementPolicy, useHistory bool) (*PreFFTPipeline, error) {
	if nrSamplesPerIntegration%FFTSize != 0 {
		return nil, &flagger.FftUnavailable{Reason: "nr_samples_per_integration is not a multiple of FFTSize"}
	}

	p := &PreFFTPipeline{
		cfg:                     cfg,
		integrationFactor:       nrSamplesPerIntegration / FFTSize,
		nrSamplesPerIntegration: nrSamplesPerIntegration,
		bandpass:                bandpass,
		correctBandpass:         correctBandpass,
		replacement:             replacement,
		useHistory:              useHistory,
		fft:                     fourier.NewCmplxFFT(FFTSize),
		freqFlagger:             flagger.NewFlagger(cfg),
		timeFlagger:             flagger.NewFlagger(cfg),
	}

	for pol := 0; pol < nrPol; pol++ {
		p.fftIn[pol] = make([]complex128, FFTSize)
		p.fftOut[pol] = make([]complex128, FFTSize)
		p.bins[pol] = make([]complex128, FFTSize)
		p.freqPowers[pol] = make([]float32, FFTSize)
		p.freqFlags[pol] = make([]bool, FFTSize)
		p.timePowers[pol] = make([]float32, FFTSize)
		p.timeFlags[pol] = make([]bool, FFTSize)
	}
	p.statsScratch = make([]float32, FFTSize)
	p.cplxScratch = make([]complex64, FFTSize)

	if useHistory {
		n := cfg.NrStations * cfg.NrSubbands
		p.freqHistory = make([]*flagger.History, n)
		p.timeHistory = make([]*flagger.History, n)
		for i := 0; i < n; i++ {
			p.freqHistory[i] = flagger.NewHistory()
			p.timeHistory[i] = flagger.NewHistory()
		}
	}

	rfilog.Logger.Debug("pre-fft pipeline constructed", "integrationFactor", p.integrationFactor)
	return p, nil
}

// fftShift maps natural FFT output index i to the shifted index with DC in
// the centre (spec.md's GLOSSARY "FFT shift").
func fftShift(i, n int) int { return ((n / 2) + i) % n }

// Flag runs one (global_time, subband) call over all stations.
func (p *PreFFTPipeline) Flag(filtered FilteredVoltages, globalTime, subband int) error {
	for station := 0; station < filtered.NrStations(); station++ {
		if err := p.frequencyStep(filtered, station, subband); err != nil {
			return err
		}
		if err := p.timeStep(filtered, station, subband); err != nil {
			return err
		}
	}
	return nil
}

func (p *PreFFTPipeline) frequencyStep(filtered FilteredVoltages, station, subband int) error {
	var correction []float32
	if p.correctBandpass && p.bandpass != nil {
		correction = p.bandpass.CorrectionFactors()
	}

	for pol := 0; pol < nrPol; pol++ {
		powers := p.freqPowers[pol]
		for i := range powers {
			powers[i] = 0
		}
		flags := p.freqFlags[pol]
		for i := range flags {
			flags[i] = false
		}

		for block := 0; block < p.integrationFactor; block++ {
			base := block * FFTSize
			for i := 0; i < FFTSize; i++ {
				p.fftIn[pol][i] = complex128(filtered.Sample(0, station, base+i, pol))
			}
			p.fft.Coefficients(p.fftOut[pol], p.fftIn[pol])

			for i := 0; i < FFTSize; i++ {
				shifted := fftShift(i, FFTSize)
				pw := power(complex64(p.fftOut[pol][i]))
				if correction != nil {
					pw *= correction[shifted]
				}
				powers[shifted] += pw
			}
		}

		n, err := p.freqFlagger.Detect1D(powers, flags, p.cfg.BaseSensitivity)
		if err != nil {
			return err
		}
		if n > 0 {
			if _, err := p.freqFlagger.Detect1D(powers, flags, p.cfg.BaseSensitivity); err != nil {
				return err
			}
		}
	}

	unioned := p.freqFlags[0]
	for pol := 1; pol < nrPol; pol++ {
		for i := range unioned {
			unioned[i] = unioned[i] || p.freqFlags[pol][i]
		}
	}
	p.freqFlagger.SIR1D(unioned)

	if p.useHistory {
		p.gateFrequencyHistory(station, subband, unioned)
	}

	return p.applyFrequencyFlags(filtered, station, unioned, correction)
}

func (p *PreFFTPipeline) gateFrequencyHistory(station, subband int, flags []bool) {
	idx := station*p.cfg.NrSubbands + subband
	if idx < 0 || idx >= len(p.freqHistory) {
		rfilog.Logger.Warn("pre-fft frequency history: subband out of range", "station", station, "subband", subband)
		return
	}
	_, median, _, err := p.freqFlagger.CalculateStatistics(p.freqPowers[0], flags)
	if err != nil {
		return
	}
	if p.freqHistory[idx].AddGated(median, p.cfg.HistorySensitivity) {
		for i := range flags {
			flags[i] = true
		}
	}
}

// applyFrequencyFlags re-transforms every block, overwrites flagged bins
// with a policy-chosen replacement, and inverse-transforms back, dividing
// by FFTSize to compensate the FFT-then-IFFT gain (spec.md §4.9).
func (p *PreFFTPipeline) applyFrequencyFlags(filtered FilteredVoltages, station int, flags []bool, correction []float32) error {
	for pol := 0; pol < nrPol; pol++ {
		for block := 0; block < p.integrationFactor; block++ {
			base := block * FFTSize
			for i := 0; i < FFTSize; i++ {
				p.fftIn[pol][i] = complex128(filtered.Sample(0, station, base+i, pol))
			}
			p.fft.Coefficients(p.fftOut[pol], p.fftIn[pol])

			replacement := p.computeBlockReplacement(p.fftOut[pol], flags)

			for i := 0; i < FFTSize; i++ {
				shifted := fftShift(i, FFTSize)
				if !flags[shifted] {
					p.bins[pol][i] = p.fftOut[pol][i]
					continue
				}
				v := replacement
				if correction != nil && correction[shifted] != 0 {
					v = complex64(complex(real(v)/correction[shifted], imag(v)/correction[shifted]))
				}
				p.bins[pol][i] = complex128(v)
			}

			p.fft.Sequence(p.fftOut[pol], p.bins[pol])
			for i := 0; i < FFTSize; i++ {
				out := complex64(p.fftOut[pol][i]) / complex64(complex(float32(FFTSize), 0))
				filtered.SetSample(0, station, base+i, pol, out)
			}
		}
	}
	return nil
}

// computeBlockReplacement implements the replacement-value policy of
// spec.md §4.9 over this block's unflagged bins (natural FFT order, using
// flags in FFT-shifted order).
func (p *PreFFTPipeline) computeBlockReplacement(bins []complex128, flags []bool) complex64 {
	unflagged := p.cplxScratch[:0]
	for i := 0; i < FFTSize; i++ {
		if !flags[fftShift(i, FFTSize)] {
			unflagged = append(unflagged, complex64(bins[i]))
		}
	}
	if len(unflagged) == 0 {
		return 0
	}

	switch p.replacement {
	case ReplaceZero:
		return 0
	case ReplaceMean:
		var sum float32
		for _, v := range unflagged {
			sum += power(v)
		}
		meanPower := sum / float32(len(unflagged))
		return complex(float32(math.Sqrt(float64(meanPower))), 0)
	case ReplaceRandom:
		return unflagged[0]
	case ReplaceMedian:
		return medianByPower(unflagged)
	default:
		return 0
	}
}

// medianByPower returns the complex value whose power ranks at the middle
// of vals. vals is not mutated; a bounded-size (<=FFTSize) scratch index
// sort is used, matching spec.md §5's allowance for small bounded temporaries
// on the hot path.
func medianByPower(vals []complex64) complex64 {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return power(vals[idx[a]]) < power(vals[idx[b]]) })
	return vals[idx[len(idx)/2]]
}

func (p *PreFFTPipeline) timeStep(filtered FilteredVoltages, station, subband int) error {
	for pol := 0; pol < nrPol; pol++ {
		powers := p.timePowers[pol]
		flags := p.timeFlags[pol]
		for i := range flags {
			flags[i] = false
		}

		for slot := 0; slot < FFTSize; slot++ {
			start := slot * p.integrationFactor
			var sum float32
			for t := start; t < start+p.integrationFactor; t++ {
				sum += power(filtered.Sample(0, station, t, pol))
			}
			powers[slot] = sum
		}

		n, err := p.timeFlagger.Detect1D(powers, flags, p.cfg.BaseSensitivity)
		if err != nil {
			return err
		}
		if n > 0 {
			if _, err := p.timeFlagger.Detect1D(powers, flags, p.cfg.BaseSensitivity); err != nil {
				return err
			}
		}
	}

	unioned := p.timeFlags[0]
	for pol := 1; pol < nrPol; pol++ {
		for i := range unioned {
			unioned[i] = unioned[i] || p.timeFlags[pol][i]
		}
	}
	p.timeFlagger.SIR1D(unioned)

	if p.useHistory {
		p.gateTimeHistory(station, subband, unioned)
	}

	allFlagged := true
	for _, f := range unioned {
		if !f {
			allFlagged = false
			break
		}
	}

	return p.applyTimeFlags(filtered, station, subband, unioned, allFlagged)
}

func (p *PreFFTPipeline) gateTimeHistory(station, subband int, flags []bool) {
	idx := station*p.cfg.NrSubbands + subband
	if idx < 0 || idx >= len(p.timeHistory) {
		rfilog.Logger.Warn("pre-fft time history: subband out of range", "station", station, "subband", subband)
		return
	}
	wm0 := flagger.WinsorisedMean(p.timePowers[0], flags, p.statsScratch)
	wm1 := flagger.WinsorisedMean(p.timePowers[1], flags, p.statsScratch)
	value := (wm0+wm1)/2 / float32(p.integrationFactor)
	if p.timeHistory[idx].AddGated(value, p.cfg.HistorySensitivity) {
		for i := range flags {
			flags[i] = true
		}
	}
}

// applyTimeFlags writes back replacement samples for every flagged time
// slot.
func (p *PreFFTPipeline) applyTimeFlags(filtered FilteredVoltages, station, subband int, flags []bool, allFlagged bool) error {
	for slot, flagged := range flags {
		if !flagged {
			continue
		}
		start := slot * p.integrationFactor
		end := start + p.integrationFactor
		filtered.Flags(0, station).IncludeRange(start, end)

		for pol := 0; pol < nrPol; pol++ {
			v := p.timeReplacement(filtered, station, subband, pol, flags, allFlagged)
			for t := start; t < end; t++ {
				filtered.SetSample(0, station, t, pol, v)
			}
		}
	}
	return nil
}

// timeReplacement mirrors original_source/PreCorrelationNoChannelsFlagger.cc's
// computeReplacementValueTime: when every slot is flagged it falls straight
// back to a history-derived value (or zero, without history); otherwise it
// computes the policy's replacement and, for every policy but Zero, passes
// it through replacementValueTimeSanityCheck (matching the original: that
// check runs for ordinary partial-flag blocks too, not only the all-flagged
// case).
func (p *PreFFTPipeline) timeReplacement(filtered FilteredVoltages, station, subband, pol int, flags []bool, allFlagged bool) complex64 {
	if allFlagged {
		if p.useHistory {
			return p.historyTimeReplacement(station, subband)
		}
		return 0
	}
	if p.replacement == ReplaceZero {
		return 0
	}

	var v complex64
	switch p.replacement {
	case ReplaceMean:
		v = p.meanTimeReplacement(pol, flags)
	case ReplaceRandom:
		v = p.firstUnflaggedTimeSample(filtered, station, pol, flags)
	case ReplaceMedian:
		v = p.medianTimeReplacement(filtered, station, pol, flags)
	}
	return p.sanityCheckTime(station, subband, v)
}

// meanTimeReplacement averages power across every raw sample of every
// unflagged slot (original_source lines 526-532: itsPowers[pol][i] is
// already the per-slot sum over integrationFactor raw samples, and the
// divisor is unflaggedSlots*integrationFactor, not unflaggedSlots alone).
func (p *PreFFTPipeline) meanTimeReplacement(pol int, flags []bool) complex64 {
	var sum float32
	unflaggedSlots := 0
	for slot, flagged := range flags {
		if flagged {
			continue
		}
		sum += p.timePowers[pol][slot]
		unflaggedSlots++
	}
	if unflaggedSlots == 0 {
		return 0
	}
	meanPower := sum / float32(unflaggedSlots*p.integrationFactor)
	return complex(float32(math.Sqrt(float64(meanPower))), 0)
}

func (p *PreFFTPipeline) firstUnflaggedTimeSample(filtered FilteredVoltages, station, pol int, flags []bool) complex64 {
	for slot, flagged := range flags {
		if flagged {
			continue
		}
		t := slot * p.integrationFactor
		return filtered.Sample(0, station, t, pol)
	}
	return 0
}

// medianTimeReplacement takes the median, by power, of the raw samples
// within the first unflagged block (original_source lines 566-580: the
// median is computed within one representative block, not across every
// unflagged slot).
func (p *PreFFTPipeline) medianTimeReplacement(filtered FilteredVoltages, station, pol int, flags []bool) complex64 {
	for slot, flagged := range flags {
		if flagged {
			continue
		}
		start := slot * p.integrationFactor
		samples := p.cplxScratch[:0]
		for s := 0; s < p.integrationFactor; s++ {
			samples = append(samples, filtered.Sample(0, station, start+s, pol))
		}
		return medianByPower(samples)
	}
	return 0
}

func (p *PreFFTPipeline) historyTimeReplacement(station, subband int) complex64 {
	idx := station*p.cfg.NrSubbands + subband
	if idx < 0 || idx >= len(p.timeHistory) {
		return 0
	}
	return complex(float32(math.Sqrt(float64(p.timeHistory[idx].Mean()))), 0)
}

// sanityCheckTime mirrors replacementValueTimeSanityCheck: with history
// enabled, any replacement whose power exceeds the historical mean power is
// itself replaced by the history-derived value.
func (p *PreFFTPipeline) sanityCheckTime(station, subband int, v complex64) complex64 {
	if !p.useHistory {
		return v
	}
	idx := station*p.cfg.NrSubbands + subband
	if idx < 0 || idx >= len(p.timeHistory) {
		return v
	}
	if power(v) > p.timeHistory[idx].Mean() {
		return p.historyTimeReplacement(station, subband)
	}
	return v
}

