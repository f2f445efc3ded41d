package pipeline

import (
	"github.com/NLeSC/eAstroViz/flagger"
	"github.com/NLeSC/eAstroViz/internal/rfilog"
)

// nrPolPairs is N_POL x N_POL, the four visibility components per baseline
// per channel (spec.md §1).
const nrPolPairs = 4

// BrokenStation is one entry of DetectBrokenStations' report: the station
// index plus the values the decision was made from (spec.md's supplemented
// features, original keeps these around for its commented-out reporting).
type BrokenStation struct {
	Station     int
	SummedPower float32
	Threshold   float32
}

// PostCorrelationPipeline is the post-correlation pipeline (spec.md §4.10):
// per-baseline flagging over visibilities, plus a broken-station detector
// driven by the summed per-station baseline power.
type PostCorrelationPipeline struct {
	cfg         flagger.Config
	correlator  Correlator
	subbandList []int
	useHistory  bool

	flagger *flagger.Flagger

	powers [nrPolPairs][]float32
	flags  [nrPolPairs][]bool

	statsScratch []float32

	history []*flagger.History // [baseline*len(subbandList) + subbandListIndex]

	summedBaselinePower []float32 // [station], accumulated across Flag calls for DetectBrokenStations
}

// NewPostCorrelationPipeline constructs the pipeline. subbandList is the
// fixed set of subbands this instance ever receives in Flag calls; a call
// naming a subband outside the list skips the history gate with a logged
// warning rather than indexing out of range (spec.md's supplemented
// features, ported from PostCorrelationFlagger::getSubbandIndex).
func NewPostCorrelationPipeline(cfg flagger.Config, correlator Correlator, subbandList []int, useHistory bool) *PostCorrelationPipeline {
	p := &PostCorrelationPipeline{
		cfg:                 cfg,
		correlator:          correlator,
		subbandList:         subbandList,
		useHistory:          useHistory,
		flagger:             flagger.NewFlagger(cfg),
		summedBaselinePower: make([]float32, cfg.NrStations),
	}
	for i := 0; i < nrPolPairs; i++ {
		p.powers[i] = make([]float32, cfg.NrChannels)
		p.flags[i] = make([]bool, cfg.NrChannels)
	}
	p.statsScratch = make([]float32, cfg.NrChannels*nrPolPairs)

	if useHistory {
		n := len(subbandList)
		nrBaselines := cfg.NrStations * (cfg.NrStations + 1) / 2
		p.history = make([]*flagger.History, nrBaselines*n)
		for i := range p.history {
			p.history[i] = flagger.NewHistory()
		}
	}

	rfilog.Logger.Debug("post-correlation pipeline constructed", "nrStations", cfg.NrStations)
	return p
}

func (p *PostCorrelationPipeline) subbandIndex(subband int) (int, bool) {
	for i, sb := range p.subbandList {
		if sb == subband {
			return i, true
		}
	}
	return 0, false
}

// Flag runs one (global_time, subband) call over every non-autocorrelation
// baseline (spec.md §4.10).
func (p *PostCorrelationPipeline) Flag(correlated CorrelatedVisibilities, globalTime, subband int) error {
	for i := 0; i < p.cfg.NrStations; i++ {
		for j := i; j < p.cfg.NrStations; j++ {
			baseline := p.correlator.Baseline(i, j)
			if p.correlator.BaselineIsAutocorrelation(baseline) {
				continue
			}
			if err := p.flagBaseline(correlated, baseline, i, j, subband); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *PostCorrelationPipeline) flagBaseline(correlated CorrelatedVisibilities, baseline, stationI, stationJ, subband int) error {
	nrChannels := correlated.NrChannels()

	k := 0
	for pol1 := 0; pol1 < 2; pol1++ {
		for pol2 := 0; pol2 < 2; pol2++ {
			powers := p.powers[k][:nrChannels]
			flags := p.flags[k][:nrChannels]
			for i := range flags {
				flags[i] = false
			}
			for ch := 0; ch < nrChannels; ch++ {
				powers[ch] = power(correlated.Visibility(baseline, ch, pol1, pol2))
			}

			n, err := p.flagger.Detect1D(powers, flags, p.cfg.BaseSensitivity)
			if err != nil {
				return err
			}
			if n > 0 {
				if _, err := p.flagger.Detect1D(powers, flags, p.cfg.BaseSensitivity); err != nil {
					return err
				}
			}
			k++
		}
	}

	unioned := p.flags[0][:nrChannels]
	for k := 1; k < nrPolPairs; k++ {
		flags := p.flags[k][:nrChannels]
		for ch := 0; ch < nrChannels; ch++ {
			unioned[ch] = unioned[ch] || flags[ch]
		}
	}

	p.flagger.SIR1D(unioned)

	p.accumulateBaselinePower(stationI, stationJ, nrChannels)

	if p.useHistory {
		p.gateHistory(baseline, subband, nrChannels, unioned)
	}

	for ch, flagged := range unioned {
		if flagged {
			correlated.SetValidSamples(baseline, ch, 0)
		}
	}
	return nil
}

// accumulateBaselinePower tracks the total power this baseline contributed
// to each of its two (necessarily distinct, non-autocorrelation) stations,
// feeding DetectBrokenStations.
func (p *PostCorrelationPipeline) accumulateBaselinePower(stationI, stationJ, nrChannels int) {
	var total float32
	for k := 0; k < nrPolPairs; k++ {
		for ch := 0; ch < nrChannels; ch++ {
			total += p.powers[k][ch]
		}
	}
	p.summedBaselinePower[stationI] += total
	p.summedBaselinePower[stationJ] += total
}

// gateHistory applies the history gate of spec.md §4.10 item 5: the sum of
// the Winsorised means of the unflagged bins over all four polarisation
// components, divided once by (4 x nr_channels).
func (p *PostCorrelationPipeline) gateHistory(baseline, subband, nrChannels int, flags []bool) {
	sbIdx, ok := p.subbandIndex(subband)
	if !ok {
		rfilog.Logger.Warn("post-correlation history: subband not in configured list", "subband", subband)
		return
	}
	idx := baseline*len(p.subbandList) + sbIdx
	if idx < 0 || idx >= len(p.history) {
		return
	}

	var sum float32
	for k := 0; k < nrPolPairs; k++ {
		sum += flagger.WinsorisedMean(p.powers[k][:nrChannels], flags, p.statsScratch)
	}
	value := sum / float32(4*nrChannels)

	if p.history[idx].AddGated(value, p.cfg.HistorySensitivity) {
		for i := range flags {
			flags[i] = true
		}
	}
}

// DetectBrokenStations computes, per station, the sum of summed_baseline_powers
// over every non-autocorrelation baseline touching it (both directions),
// then flags stations whose total exceeds mean + cutoff*stddev across all
// stations (spec.md §4.10).
func (p *PostCorrelationPipeline) DetectBrokenStations() ([]BrokenStation, error) {
	mean, _, stddev, err := p.flagger.CalculateStatistics(p.summedBaselinePower, nil)
	if err != nil {
		return nil, err
	}
	threshold := mean + p.cfg.CutoffThreshold*stddev

	var broken []BrokenStation
	for station, summed := range p.summedBaselinePower {
		if summed > threshold {
			broken = append(broken, BrokenStation{Station: station, SummedPower: summed, Threshold: threshold})
		}
	}
	return broken, nil
}
