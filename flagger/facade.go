package flagger

// Flagger is the façade of spec §4.7: an immutable Config plus the scratch
// buffers its primitives need, dispatching StatsKind and DetectorKind via a
// tagged-enum switch at the innermost call site rather than virtual
// dispatch (see DESIGN.md's composition note). The pre-correlation
// pipelines hold one Flagger per flagging direction (frequency, time); the
// post-correlation pipeline holds a single one.
type Flagger struct {
	Config Config

	statsScratch []float32 // reused by calculateStatistics/median/winsorisedStats
}

// NewFlagger constructs a façade for cfg. Construction never fails: the
// only construction-time failure mode in this core (FftUnavailable) lives
// in the FFT pipeline, not here.
func NewFlagger(cfg Config) *Flagger {
	return &Flagger{Config: cfg}
}

func (f *Flagger) ensureScratch(n int) []float32 {
	if cap(f.statsScratch) < n {
		f.statsScratch = make([]float32, n)
	}
	return f.statsScratch
}

// CalculateStatistics dispatches on f.Config.StatsKind (spec §4.1).
func (f *Flagger) CalculateStatistics(x []float32, mask []bool) (mean, median, stddev float32, err error) {
	return calculateStatistics(f.Config.StatsKind, x, mask, f.ensureScratch(len(x)))
}

// Detect1D dispatches on f.Config.DetectorKind (spec §4.3/§4.4), returning
// the count of newly flagged cells.
func (f *Flagger) Detect1D(powers []float32, flags []bool, sensitivity float32) (int, error) {
	switch f.Config.DetectorKind {
	case Threshold:
		return thresholdFlagger1D(f.Config.StatsKind, f.Config.CutoffThreshold, powers, flags, f.ensureScratch(len(powers)))
	case SumThreshold:
		return sumThreshold1DOuter(f.Config.StatsKind, f.Config.CutoffThreshold, powers, flags, sensitivity, f.ensureScratch(len(powers)))
	default:
		return 0, &IllegalDetectorKind{Kind: f.Config.DetectorKind}
	}
}

// Detect2D is the 2-D analogue of Detect1D.
func (f *Flagger) Detect2D(powers *Grid2D, flags *FlagGrid2D, sensitivity float32) (int, error) {
	switch f.Config.DetectorKind {
	case Threshold:
		return thresholdFlagger2D(f.Config.StatsKind, f.Config.CutoffThreshold, powers, flags, f.ensureScratch(len(powers.Data)))
	case SumThreshold:
		return sumThreshold2DOuter(f.Config.StatsKind, f.Config.CutoffThreshold, powers, flags, sensitivity, f.ensureScratch(len(powers.Data)))
	default:
		return 0, &IllegalDetectorKind{Kind: f.Config.DetectorKind}
	}
}

// SIR1D dilates flags in place using f.Config.SIREta and returns the total
// flagged count (spec §4.5).
func (f *Flagger) SIR1D(flags []bool) int { return SIR1D(flags, f.Config.SIREta) }

// SIR2D is the 2-D analogue.
func (f *Flagger) SIR2D(flags *FlagGrid2D) int { return SIR2D(flags, f.Config.SIREta) }

// SumThreshold1DSmoothed is the §4.7 combinator: an initial SumThreshold
// pass on x, a Gaussian-smoothed residual pass (sigma=0.5), and a final
// more-sensitive pass on x. smoothed and diff are caller-owned scratch of
// len(x) each, reused call over call.
func (f *Flagger) SumThreshold1DSmoothed(x []float32, smoothed, diff []float32, flags []bool, sensitivity float32) (int, error) {
	total := 0

	n, err := f.Detect1D(x, flags, 1.0*sensitivity)
	if err != nil {
		return 0, err
	}
	total += n

	gaussianConv1d(x, smoothed, 0.5)
	for i := range diff {
		diff[i] = x[i] - smoothed[i]
	}

	n, err = f.Detect1D(diff, flags, 1.0*sensitivity)
	if err != nil {
		return 0, err
	}
	total += n

	n, err = f.Detect1D(x, flags, 0.8*sensitivity)
	if err != nil {
		return 0, err
	}
	total += n

	return total, nil
}

// SumThreshold1DWithHistory runs two SumThreshold passes (the second with
// statistics corrected by the first pass's flags), gates the resulting
// median through history, and marks the whole series flagged when the
// history gate fires (spec §4.7).
func (f *Flagger) SumThreshold1DWithHistory(powers []float32, flags []bool, sensitivity float32, history *History) (int, error) {
	total := 0

	n, err := f.Detect1D(powers, flags, sensitivity)
	if err != nil {
		return 0, err
	}
	total += n

	n, err = f.Detect1D(powers, flags, sensitivity)
	if err != nil {
		return 0, err
	}
	total += n

	_, median, _, err := f.CalculateStatistics(powers, flags)
	if err != nil {
		return 0, err
	}

	if history.AddGated(median, f.Config.HistorySensitivity) {
		for i := range flags {
			if !flags[i] {
				flags[i] = true
				total++
			}
		}
	}

	return total, nil
}

// SumThreshold2DWithHistory is the 2-D analogue (spec §4.7): a 2-D
// SumThreshold pass, then an integrated (OR-across-time) 1-D pass on
// integratedPowers for maximal signal-to-noise, broadcast back to the 2-D
// mask, then a history gate on the integrated median.
func (f *Flagger) SumThreshold2DWithHistory(powers *Grid2D, flags *FlagGrid2D, integratedPowers []float32, sensitivity float32, history *History) (int, error) {
	startCount := flags.CountFlagged()

	if _, err := f.Detect2D(powers, flags, sensitivity); err != nil {
		return 0, err
	}

	integratedFlags := integratedFlagsOr(flags)

	if _, err := f.Detect1D(integratedPowers, integratedFlags, sensitivity); err != nil {
		return 0, err
	}

	apply1DflagsTo2D(flags, integratedFlags)

	_, median, _, err := f.CalculateStatistics(integratedPowers, integratedFlags)
	if err != nil {
		return 0, err
	}

	if history.AddGated(median, f.Config.HistorySensitivity) {
		for i := range flags.Data {
			flags.Data[i] = true
		}
	}

	return flags.CountFlagged() - startCount, nil
}
