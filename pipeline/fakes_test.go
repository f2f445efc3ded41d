package pipeline

// Minimal in-memory collaborators used only by this package's tests; the
// real implementations (ingest, polyphase filter bank, correlator) live
// outside this core (spec.md §1).

type fakeSparseSet struct {
	flagged map[int]bool
}

func newFakeSparseSet() *fakeSparseSet { return &fakeSparseSet{flagged: map[int]bool{}} }

func (s *fakeSparseSet) Test(t int) bool { return s.flagged[t] }
func (s *fakeSparseSet) Include(t int)   { s.flagged[t] = true }
func (s *fakeSparseSet) IncludeRange(lo, hi int) {
	for t := lo; t < hi; t++ {
		s.flagged[t] = true
	}
}

type fakeVoltages struct {
	nrChannels, nrStations, nrSamples int
	data                              []complex64 // [channel][station][time][pol], pol innermost
	flags                             [][]*fakeSparseSet
}

func newFakeVoltages(nrChannels, nrStations, nrSamples int) *fakeVoltages {
	v := &fakeVoltages{
		nrChannels: nrChannels,
		nrStations: nrStations,
		nrSamples:  nrSamples,
		data:       make([]complex64, nrChannels*nrStations*nrSamples*nrPol),
		flags:      make([][]*fakeSparseSet, nrChannels),
	}
	for ch := range v.flags {
		v.flags[ch] = make([]*fakeSparseSet, nrStations)
		for st := range v.flags[ch] {
			v.flags[ch][st] = newFakeSparseSet()
		}
	}
	return v
}

func (v *fakeVoltages) index(channel, station, time, pol int) int {
	return ((channel*v.nrStations+station)*v.nrSamples+time)*nrPol + pol
}

func (v *fakeVoltages) NrChannels() int { return v.nrChannels }
func (v *fakeVoltages) NrStations() int { return v.nrStations }
func (v *fakeVoltages) NrSamples() int  { return v.nrSamples }

func (v *fakeVoltages) Sample(channel, station, time, pol int) complex64 {
	return v.data[v.index(channel, station, time, pol)]
}
func (v *fakeVoltages) SetSample(channel, station, time, pol int, val complex64) {
	v.data[v.index(channel, station, time, pol)] = val
}
func (v *fakeVoltages) Flags(channel, station int) SparseTimeSet {
	return v.flags[channel][station]
}

type fakeVisibilities struct {
	nrBaselines, nrChannels int
	data                    []complex64 // [baseline][channel][pol1][pol2]
	validSamples            [][]int     // [baseline][channel]
}

func newFakeVisibilities(nrBaselines, nrChannels int) *fakeVisibilities {
	return &fakeVisibilities{
		nrBaselines:  nrBaselines,
		nrChannels:   nrChannels,
		data:         make([]complex64, nrBaselines*nrChannels*4),
		validSamples: make([][]int, nrBaselines),
	}
}

func (v *fakeVisibilities) index(baseline, channel, pol1, pol2 int) int {
	return ((baseline*v.nrChannels+channel)*2+pol1)*2 + pol2
}

func (v *fakeVisibilities) NrBaselines() int { return v.nrBaselines }
func (v *fakeVisibilities) NrChannels() int  { return v.nrChannels }

func (v *fakeVisibilities) Visibility(baseline, channel, pol1, pol2 int) complex64 {
	return v.data[v.index(baseline, channel, pol1, pol2)]
}
func (v *fakeVisibilities) SetSample(baseline, channel, pol1, pol2 int, val complex64) {
	v.data[v.index(baseline, channel, pol1, pol2)] = val
}
func (v *fakeVisibilities) SetValidSamples(baseline, channel int, n int) {
	if v.validSamples[baseline] == nil {
		v.validSamples[baseline] = make([]int, v.nrChannels)
		for i := range v.validSamples[baseline] {
			v.validSamples[baseline][i] = 1
		}
	}
	v.validSamples[baseline][channel] = n
}

// fakeCorrelator assigns baseline indices in standard upper-triangular
// order: baseline(i,j) for i<=j counts all pairs with a smaller first index
// before it.
type fakeCorrelator struct {
	nrStations int
}

func (c *fakeCorrelator) Baseline(i, j int) int {
	return i*c.nrStations - i*(i-1)/2 + (j - i)
}

func (c *fakeCorrelator) BaselineIsAutocorrelation(b int) bool {
	for i := 0; i < c.nrStations; i++ {
		if c.Baseline(i, i) == b {
			return true
		}
	}
	return false
}

type fakeBandpass struct {
	factors []float32
}

func (b *fakeBandpass) CorrectionFactors() []float32 { return b.factors }
