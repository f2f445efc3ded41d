package pipeline

import (
	"github.com/NLeSC/eAstroViz/flagger"
	"github.com/NLeSC/eAstroViz/internal/rfilog"
)

const nrPol = 2 // spec.md §1: fixed N_POL = 2

// PreChannelPipeline is the pre-correlation pipeline with channels
// (spec.md §4.8): per station, integrate powers in the frequency
// direction, flag, zero contaminated samples, then repeat in the time
// direction over the already-cleaned data.
type PreChannelPipeline struct {
	cfg                     flagger.Config
	nrSamplesPerIntegration int
	integrationFactor       int
	nrBlocks                int

	flagFrequency bool
	flagTime      bool
	useHistory    bool

	freqFlagger *flagger.Flagger
	timeFlagger *flagger.Flagger

	// Scratch, reused call over call (spec.md §3's "scratch reused between
	// calls"). Indexed [pol].
	freqPowers [nrPol]*flagger.Grid2D
	freqFlags  [nrPol]*flagger.FlagGrid2D
	timePowers [nrPol][]float32
	timeFlags  [nrPol][]bool

	// Per (station,subband) history; present but inert unless useHistory is
	// set, per spec.md §4.8's "an implementer MUST expose the code path".
	history []*flagger.History // [station*nrSubbands + subband]
}

// NewPreChannelPipeline constructs the pipeline. nrSamplesPerIntegration
// must be a multiple of 16 (spec.md §4.8); the default integration factor
// follows the rule in §4.8: fully integrate when nrChannels>=256, else
// 1/16th.
func NewPreChannelPipeline(cfg flagger.Config, nrSamplesPerIntegration int, flagFrequency, flagTime, useHistory bool) (*PreChannelPipeline, error) {
	if nrSamplesPerIntegration%16 != 0 {
		return nil, &flagger.ShapeMismatch{Expected: 16, Got: nrSamplesPerIntegration % 16}
	}

	integrationFactor := nrSamplesPerIntegration / 16
	if cfg.NrChannels >= 256 {
		integrationFactor = nrSamplesPerIntegration
	}
	nrBlocks := nrSamplesPerIntegration / integrationFactor

	p := &PreChannelPipeline{
		cfg:                     cfg,
		nrSamplesPerIntegration: nrSamplesPerIntegration,
		integrationFactor:       integrationFactor,
		nrBlocks:                nrBlocks,
		flagFrequency:           flagFrequency,
		flagTime:                flagTime,
		useHistory:              useHistory,
		freqFlagger:             flagger.NewFlagger(cfg),
		timeFlagger:             flagger.NewFlagger(cfg),
	}

	for pol := 0; pol < nrPol; pol++ {
		p.freqPowers[pol] = flagger.NewGrid2D(cfg.NrChannels, nrBlocks)
		p.freqFlags[pol] = flagger.NewFlagGrid2D(cfg.NrChannels, nrBlocks)
		p.timePowers[pol] = make([]float32, nrSamplesPerIntegration)
		p.timeFlags[pol] = make([]bool, nrSamplesPerIntegration)
	}

	if useHistory {
		p.history = make([]*flagger.History, cfg.NrStations*cfg.NrSubbands)
		for i := range p.history {
			p.history[i] = flagger.NewHistory()
		}
	}

	rfilog.Logger.Debug("pre-channel pipeline constructed",
		"nrSamplesPerIntegration", nrSamplesPerIntegration,
		"integrationFactor", integrationFactor,
		"nrBlocks", nrBlocks)

	return p, nil
}

// Flag runs one (global_time, subband) call over all stations (spec.md
// §6's pre_channel.flag entry point). Order matters: frequency flagging
// runs first and zeroes samples so time-direction integration is not
// corrupted by already-known RFI (spec.md §4.8).
func (p *PreChannelPipeline) Flag(filtered FilteredVoltages, globalTime, subband int) error {
	for station := 0; station < filtered.NrStations(); station++ {
		if p.flagFrequency {
			if err := p.flagFrequencyDirection(filtered, station, subband); err != nil {
				return err
			}
		}
		if p.flagTime {
			if err := p.flagTimeDirection(filtered, station); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *PreChannelPipeline) flagFrequencyDirection(filtered FilteredVoltages, station, subband int) error {
	for pol := 0; pol < nrPol; pol++ {
		p.freqPowers[pol].Reset()
		p.freqFlags[pol].Reset()
		p.integratePowersFrequency(filtered, station, pol)

		if _, err := p.freqFlagger.Detect2D(p.freqPowers[pol], p.freqFlags[pol], p.cfg.BaseSensitivity); err != nil {
			return err
		}
	}

	unioned := p.freqFlags[0]
	for pol := 1; pol < nrPol; pol++ {
		for i := range unioned.Data {
			unioned.Data[i] = unioned.Data[i] || p.freqFlags[pol].Data[i]
		}
	}

	if p.useHistory {
		p.applyFrequencyHistoryGate(station, subband, unioned)
	}

	p.storeAndWipeFrequency(filtered, station, unioned)
	return nil
}

// integratePowersFrequency fills freqPowers[pol] with the per-(channel,block)
// mean power across the integrationFactor raw samples in that block,
// skipping externally-flagged samples and dividing by the count actually
// summed (spec.md §4.8 item 1).
func (p *PreChannelPipeline) integratePowersFrequency(filtered FilteredVoltages, station, pol int) {
	grid := p.freqPowers[pol]
	for ch := 0; ch < p.cfg.NrChannels; ch++ {
		flags := filtered.Flags(ch, station)
		for block := 0; block < p.nrBlocks; block++ {
			start := block * p.integrationFactor
			var sum float32
			count := 0
			for t := start; t < start+p.integrationFactor; t++ {
				if flags.Test(t) {
					continue
				}
				sum += power(filtered.Sample(ch, station, t, pol))
				count++
			}
			if count > 0 {
				grid.Set(ch, block, sum/float32(count))
			}
		}
	}
}

func (p *PreChannelPipeline) applyFrequencyHistoryGate(station, subband int, flags *flagger.FlagGrid2D) {
	idx := station*p.cfg.NrSubbands + subband
	if idx < 0 || idx >= len(p.history) {
		return
	}
	_, median, _, err := p.freqFlagger.CalculateStatistics(p.freqPowers[0].Data, flags.Data)
	if err != nil {
		return
	}
	if p.history[idx].AddGated(median, p.cfg.HistorySensitivity) {
		for i := range flags.Data {
			flags.Data[i] = true
		}
	}
}

// storeAndWipeFrequency writes flagged blocks back into the external
// sparse flag set (every raw time in that block, for that channel) and
// zeroes the underlying voltage samples for all polarisations.
func (p *PreChannelPipeline) storeAndWipeFrequency(filtered FilteredVoltages, station int, flags *flagger.FlagGrid2D) {
	for ch := 0; ch < p.cfg.NrChannels; ch++ {
		sts := filtered.Flags(ch, station)
		for block := 0; block < p.nrBlocks; block++ {
			if !flags.At(ch, block) {
				continue
			}
			start := block * p.integrationFactor
			end := start + p.integrationFactor
			sts.IncludeRange(start, end)
			for t := start; t < end; t++ {
				for pol := 0; pol < nrPol; pol++ {
					filtered.SetSample(ch, station, t, pol, 0)
				}
			}
		}
	}
}

func (p *PreChannelPipeline) flagTimeDirection(filtered FilteredVoltages, station int) error {
	for pol := 0; pol < nrPol; pol++ {
		for i := range p.timeFlags[pol] {
			p.timeFlags[pol][i] = false
		}
		p.integratePowersTime(filtered, station, pol)

		if _, err := p.timeFlagger.Detect1D(p.timePowers[pol], p.timeFlags[pol], p.cfg.BaseSensitivity); err != nil {
			return err
		}
	}

	unioned := p.timeFlags[0]
	for pol := 1; pol < nrPol; pol++ {
		for i := range unioned {
			unioned[i] = unioned[i] || p.timeFlags[pol][i]
		}
	}

	p.applyTimeFlags(filtered, station, unioned)
	return nil
}

// integratePowersTime fills timePowers[pol] with the per-time power
// integrated across channels, skipping externally flagged samples (spec.md
// §4.8 item 2).
func (p *PreChannelPipeline) integratePowersTime(filtered FilteredVoltages, station, pol int) {
	for t := 0; t < p.nrSamplesPerIntegration; t++ {
		var sum float32
		count := 0
		for ch := 0; ch < p.cfg.NrChannels; ch++ {
			if filtered.Flags(ch, station).Test(t) {
				continue
			}
			sum += power(filtered.Sample(ch, station, t, pol))
			count++
		}
		if count > 0 {
			p.timePowers[pol][t] = sum / float32(count)
		} else {
			p.timePowers[pol][t] = 0
		}
	}
}

func (p *PreChannelPipeline) applyTimeFlags(filtered FilteredVoltages, station int, flags []bool) {
	for t, flagged := range flags {
		if !flagged {
			continue
		}
		for ch := 0; ch < p.cfg.NrChannels; ch++ {
			filtered.Flags(ch, station).Include(t)
			for pol := 0; pol < nrPol; pol++ {
				filtered.SetSample(ch, station, t, pol, 0)
			}
		}
	}
}
