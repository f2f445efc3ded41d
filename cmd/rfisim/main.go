/*-------------------------------------------------------------------
 *
 * Name:        main
 *
 * Purpose:     Demo/smoke-test tool: generate synthetic voltages or
 *              visibilities, run one of the three flagging pipelines over
 *              them, and report how much got flagged.
 *
 *--------------------------------------------------------------------*/

package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/NLeSC/eAstroViz/flagger"
	"github.com/NLeSC/eAstroViz/internal/rfilog"
	"github.com/NLeSC/eAstroViz/pipeline"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Flagger flagger.Config `yaml:"flagger"`
	Stage   string         `yaml:"stage"` // "channel", "fft", or "post"
}

func main() {
	var stage = pflag.StringP("stage", "s", "channel", "Which pipeline to run: channel, fft, or post.")
	var configFile = pflag.StringP("config-file", "c", "", "Optional YAML config file with a flagger section.")
	var nrStations = pflag.IntP("nr-stations", "n", 4, "Number of stations.")
	var nrSubbands = pflag.IntP("nr-subbands", "b", 1, "Number of subbands.")
	var nrChannels = pflag.IntP("nr-channels", "N", 16, "Number of channels (the fft stage always uses 1).")
	var cutoff = pflag.Float64P("cutoff", "t", 6.0, "Cutoff threshold (sigma).")
	var detectorKind = pflag.StringP("detector", "d", "SUM_THRESHOLD", "THRESHOLD or SUM_THRESHOLD.")
	var statsKind = pflag.StringP("stats", "k", "WINSORIZED", "NORMAL or WINSORIZED.")
	var seed = pflag.Int64P("seed", "r", 1, "Random seed for the synthetic RFI injection.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "rfisim - exercises the eAstroViz RFI flagging core end to end.\n")
		fmt.Fprintf(os.Stderr, "\nUsage: rfisim [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	cfg := flagger.DefaultConfig(*nrStations, *nrSubbands, *nrChannels)
	cfg.CutoffThreshold = float32(*cutoff)
	cfg.DetectorKind = flagger.ParseDetectorKind(*detectorKind)
	cfg.StatsKind = flagger.ParseStatsKind(*statsKind)

	chosenStage := *stage

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			rfilog.Logger.Fatal("reading config file", "err", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			rfilog.Logger.Fatal("parsing config file", "err", err)
		}
		cfg = fc.Flagger
		cfg.Resolve()
		if fc.Stage != "" {
			chosenStage = fc.Stage
		}
	}

	rng := rand.New(rand.NewSource(*seed))

	switch chosenStage {
	case "channel":
		runChannelDemo(cfg, rng)
	case "fft":
		runFFTDemo(cfg, rng)
	case "post":
		runPostDemo(cfg, rng)
	default:
		rfilog.Logger.Fatal("unknown stage", "stage", chosenStage)
	}
}

type simVoltages struct {
	nrChannels, nrStations, nrSamples int
	data                              []complex64
	flags                             [][]*simSparseSet
}

type simSparseSet struct{ flagged map[int]bool }

func newSimSparseSet() *simSparseSet { return &simSparseSet{flagged: map[int]bool{}} }
func (s *simSparseSet) Test(t int) bool { return s.flagged[t] }
func (s *simSparseSet) Include(t int)   { s.flagged[t] = true }
func (s *simSparseSet) IncludeRange(lo, hi int) {
	for t := lo; t < hi; t++ {
		s.flagged[t] = true
	}
}

func newSimVoltages(nrChannels, nrStations, nrSamples int) *simVoltages {
	v := &simVoltages{
		nrChannels: nrChannels, nrStations: nrStations, nrSamples: nrSamples,
		data:  make([]complex64, nrChannels*nrStations*nrSamples*2),
		flags: make([][]*simSparseSet, nrChannels),
	}
	for ch := range v.flags {
		v.flags[ch] = make([]*simSparseSet, nrStations)
		for st := range v.flags[ch] {
			v.flags[ch][st] = newSimSparseSet()
		}
	}
	return v
}

func (v *simVoltages) index(channel, station, time, pol int) int {
	return ((channel*v.nrStations+station)*v.nrSamples+time)*2 + pol
}
func (v *simVoltages) NrChannels() int { return v.nrChannels }
func (v *simVoltages) NrStations() int { return v.nrStations }
func (v *simVoltages) NrSamples() int  { return v.nrSamples }
func (v *simVoltages) Sample(channel, station, time, pol int) complex64 {
	return v.data[v.index(channel, station, time, pol)]
}
func (v *simVoltages) SetSample(channel, station, time, pol int, val complex64) {
	v.data[v.index(channel, station, time, pol)] = val
}
func (v *simVoltages) Flags(channel, station int) pipeline.SparseTimeSet {
	return v.flags[channel][station]
}

func fillNoise(v *simVoltages, rng *rand.Rand) {
	for ch := 0; ch < v.nrChannels; ch++ {
		for st := 0; st < v.nrStations; st++ {
			for t := 0; t < v.nrSamples; t++ {
				for pol := 0; pol < 2; pol++ {
					val := complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
					v.SetSample(ch, st, t, pol, val)
				}
			}
		}
	}
}

func injectSpike(v *simVoltages, channel, station, start, length int, amplitude float32) {
	for t := start; t < start+length && t < v.nrSamples; t++ {
		for pol := 0; pol < 2; pol++ {
			v.SetSample(channel, station, t, pol, complex(amplitude, 0))
		}
	}
}

func countFlaggedTimes(v *simVoltages) int {
	n := 0
	for ch := range v.flags {
		for st := range v.flags[ch] {
			n += len(v.flags[ch][st].flagged)
		}
	}
	return n
}

func runChannelDemo(cfg flagger.Config, rng *rand.Rand) {
	const nrSamplesPerIntegration = 512
	v := newSimVoltages(cfg.NrChannels, cfg.NrStations, nrSamplesPerIntegration)
	fillNoise(v, rng)
	injectSpike(v, cfg.NrChannels/2, 0, 32, 32, 200)

	p, err := pipeline.NewPreChannelPipeline(cfg, nrSamplesPerIntegration, true, true, false)
	if err != nil {
		rfilog.Logger.Fatal("constructing pre-channel pipeline", "err", err)
	}
	if err := p.Flag(v, 0, 0); err != nil {
		rfilog.Logger.Fatal("flagging", "err", err)
	}
	fmt.Printf("pre-channel: flagged %d (channel,time) cells\n", countFlaggedTimes(v))
}

func runFFTDemo(cfg flagger.Config, rng *rand.Rand) {
	cfg.NrChannels = 1
	const integrationFactor = 4
	nrSamples := pipeline.FFTSize * integrationFactor
	v := newSimVoltages(1, cfg.NrStations, nrSamples)
	fillNoise(v, rng)

	for t := 0; t < nrSamples; t++ {
		angle := 2 * math.Pi * 30 * float64(t) / float64(pipeline.FFTSize)
		existing := v.Sample(0, 0, t, 0)
		v.SetSample(0, 0, t, 0, existing+complex(float32(80*math.Cos(angle)), float32(80*math.Sin(angle))))
	}

	p, err := pipeline.NewPreFFTPipeline(cfg, nrSamples, nil, false, pipeline.ReplaceMedian, false)
	if err != nil {
		rfilog.Logger.Fatal("constructing pre-fft pipeline", "err", err)
	}
	if err := p.Flag(v, 0, 0); err != nil {
		rfilog.Logger.Fatal("flagging", "err", err)
	}
	fmt.Printf("pre-fft: flagged %d (channel,time) cells\n", countFlaggedTimes(v))
}

type simCorrelator struct{ nrStations int }

func (c *simCorrelator) Baseline(i, j int) int { return i*c.nrStations - i*(i-1)/2 + (j - i) }
func (c *simCorrelator) BaselineIsAutocorrelation(b int) bool {
	for i := 0; i < c.nrStations; i++ {
		if c.Baseline(i, i) == b {
			return true
		}
	}
	return false
}

type simVisibilities struct {
	nrBaselines, nrChannels int
	data                    []complex64
	validSamples            []int
}

func newSimVisibilities(nrBaselines, nrChannels int) *simVisibilities {
	v := &simVisibilities{nrBaselines: nrBaselines, nrChannels: nrChannels,
		data: make([]complex64, nrBaselines*nrChannels*4), validSamples: make([]int, nrBaselines*nrChannels)}
	for i := range v.validSamples {
		v.validSamples[i] = 1
	}
	return v
}
func (v *simVisibilities) index(baseline, channel, pol1, pol2 int) int {
	return ((baseline*v.nrChannels+channel)*2+pol1)*2 + pol2
}
func (v *simVisibilities) NrBaselines() int { return v.nrBaselines }
func (v *simVisibilities) NrChannels() int  { return v.nrChannels }
func (v *simVisibilities) Visibility(baseline, channel, pol1, pol2 int) complex64 {
	return v.data[v.index(baseline, channel, pol1, pol2)]
}
func (v *simVisibilities) SetSample(baseline, channel, pol1, pol2 int, val complex64) {
	v.data[v.index(baseline, channel, pol1, pol2)] = val
}
func (v *simVisibilities) SetValidSamples(baseline, channel int, n int) {
	v.validSamples[baseline*v.nrChannels+channel] = n
}

func runPostDemo(cfg flagger.Config, rng *rand.Rand) {
	corr := &simCorrelator{nrStations: cfg.NrStations}
	nrBaselines := cfg.NrStations * (cfg.NrStations + 1) / 2
	vis := newSimVisibilities(nrBaselines, cfg.NrChannels)

	for b := 0; b < nrBaselines; b++ {
		for ch := 0; ch < cfg.NrChannels; ch++ {
			for p1 := 0; p1 < 2; p1++ {
				for p2 := 0; p2 < 2; p2++ {
					vis.SetSample(b, ch, p1, p2, complex(float32(rng.NormFloat64()), float32(rng.NormFloat64())))
				}
			}
		}
	}
	spikeBaseline := corr.Baseline(0, 1)
	vis.SetSample(spikeBaseline, cfg.NrChannels/2, 0, 0, complex(500, 0))

	p := pipeline.NewPostCorrelationPipeline(cfg, corr, []int{0}, false)
	if err := p.Flag(vis, 0, 0); err != nil {
		rfilog.Logger.Fatal("flagging", "err", err)
	}

	flagged := 0
	for _, n := range vis.validSamples {
		if n == 0 {
			flagged++
		}
	}
	fmt.Printf("post-correlation: flagged %d (baseline,channel) cells\n", flagged)

	broken, err := p.DetectBrokenStations()
	if err != nil {
		rfilog.Logger.Fatal("detecting broken stations", "err", err)
	}
	fmt.Printf("broken stations: %+v\n", broken)
}
