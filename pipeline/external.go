// Package pipeline composes the flagger primitives into the three
// pipelines of spec.md §4.8-§4.10: pre-correlation with channels,
// pre-correlation single-channel FFT round-trip, and post-correlation.
// The collaborator interfaces below are the boundary spec.md §6 describes
// as "consumed by the core" — raw-file ingestion, the polyphase filter
// bank, and the correlator itself are out of scope (spec.md §1) and are
// only specified through these contracts.
package pipeline

// SparseTimeSet is a per-(channel,station) sparse set of externally
// flagged time indices, read and written in place by the pre-correlation
// pipelines (spec.md §6).
type SparseTimeSet interface {
	Test(t int) bool
	Include(t int)
	IncludeRange(lo, hi int)
}

// FilteredVoltages is the borrowed, mutable buffer of filtered voltage
// samples the pre-correlation pipelines operate on: complex samples
// indexed [channel][station][time][pol], plus a per-(channel,station)
// sparse external flag set (spec.md §3, §6).
type FilteredVoltages interface {
	NrChannels() int
	NrStations() int
	NrSamples() int

	Sample(channel, station, time, pol int) complex64
	SetSample(channel, station, time, pol int, v complex64)

	Flags(channel, station int) SparseTimeSet
}

// CorrelatedVisibilities is the borrowed, read-only buffer of
// cross-correlated visibilities the post-correlation pipeline operates on:
// complex [baseline][channel][pol1][pol2] (N_POL x N_POL = 4 components),
// plus a setter that lets the core invalidate a channel by reporting 0
// valid samples (spec.md §3, §6).
type CorrelatedVisibilities interface {
	NrBaselines() int
	NrChannels() int

	Visibility(baseline, channel, pol1, pol2 int) complex64
	SetValidSamples(baseline, channel int, n int)
}

// Correlator supplies the baseline-index arithmetic and the
// autocorrelation predicate the post-correlation pipeline needs but does
// not own (spec.md §6).
type Correlator interface {
	Baseline(i, j int) int // i <= j
	BaselineIsAutocorrelation(b int) bool
}

// BandpassTable is the read-only, potentially shared (spec.md §5) set of
// per-real-frequency-bin correction factors the FFT pipeline optionally
// applies.
type BandpassTable interface {
	CorrectionFactors() []float32 // length == FFT size
}

// power is the shared fcomplex -> float32 power conversion of spec.md
// §3's inline Flagger::power helper.
func power(c complex64) float32 {
	re := real(c)
	im := imag(c)
	return re*re + im*im
}
