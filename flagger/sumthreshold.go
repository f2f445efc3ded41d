package flagger

import "math"

// calcThresholdI computes T(window) = threshold1 * p^log2(window) / window
// (spec §4.3). p<=0 falls back to the paper's default of 1.5, the same
// fallback the original applies.
func calcThresholdI(threshold1 float32, window int, p float32) float32 {
	if p <= 0 {
		p = 1.5
	}
	log2w := math.Log(float64(window)) / math.Log(2)
	return float32(float64(threshold1) * math.Pow(float64(p), log2w) / float64(window))
}

// sumThreshold1D is the inner SumThreshold pass (spec §4.3): for each
// window starting at base=1 (the asymmetric off-by-one is intentional, see
// spec §9's Open Question, preserved for numerical compatibility with
// archived data products), sum the window with already-flagged cells
// substituted by threshold, and flag the whole window if the sum reaches
// window*threshold. Returns the count of newly flagged cells.
func sumThreshold1D(powers []float32, flags []bool, window int, threshold float32) int {
	extraFlagged := 0
	n := len(powers)

	for base := 1; base+window < n; base++ {
		var sum float32
		for pos := base; pos < base+window; pos++ {
			if flags[pos] {
				sum += threshold
			} else {
				sum += powers[pos]
			}
		}

		if sum >= float32(window)*threshold {
			for pos := base; pos < base+window; pos++ {
				if !flags[pos] {
					flags[pos] = true
					extraFlagged++
				}
			}
		}
	}

	return extraFlagged
}

// sumThreshold2DHorizontal sweeps in the time direction at each channel
// (skipping channel 0, per spec §4.3's "starting at channel 1").
func sumThreshold2DHorizontal(powers *Grid2D, flags *FlagGrid2D, window int, threshold float32) int {
	extraFlagged := 0
	for ch := 1; ch < powers.Rows; ch++ {
		extraFlagged += sumThreshold1D(powers.Row(ch), flags.Row(ch), window, threshold)
	}
	return extraFlagged
}

// sumThreshold2DVertical sweeps in the frequency direction at each time
// block, again starting the window base at channel 1.
func sumThreshold2DVertical(powers *Grid2D, flags *FlagGrid2D, window int, threshold float32) int {
	extraFlagged := 0
	nCh := powers.Rows
	nT := powers.Cols

	col := make([]float32, nCh)
	colFlags := make([]bool, nCh)
	for t := 0; t < nT; t++ {
		for ch := 0; ch < nCh; ch++ {
			col[ch] = powers.At(ch, t)
			colFlags[ch] = flags.At(ch, t)
		}
		extraFlagged += sumThreshold1D(col, colFlags, window, threshold)
		for ch := 0; ch < nCh; ch++ {
			flags.Set(ch, t, colFlags[ch])
		}
	}
	return extraFlagged
}

// sumThreshold1DOuter runs the 7-iteration doubling-window outer loop of
// spec §4.3 over a 1-D series, statistics computed once up front.
func sumThreshold1DOuter(kind StatsKind, cutoff float32, powers []float32, flags []bool, sensitivity float32, scratch []float32) (int, error) {
	_, median, stddev, err := calculateStatistics(kind, powers, flags, scratch)
	if err != nil {
		return 0, err
	}

	factor := sensitivity
	if stddev != 0 {
		factor = stddev * sensitivity
	}

	extraFlagged := 0
	window := 1
	for iter := 0; iter < MaxSumThresholdIt; iter++ {
		thresholdI := median + calcThresholdI(cutoff, window, DefaultRho)*factor
		extraFlagged += sumThreshold1D(powers, flags, window, thresholdI)
		window *= 2
	}
	return extraFlagged, nil
}

// sumThreshold2DOuter is the 2-D analogue: each iteration runs both the
// horizontal and vertical sweep before doubling the window.
func sumThreshold2DOuter(kind StatsKind, cutoff float32, powers *Grid2D, flags *FlagGrid2D, sensitivity float32, scratch []float32) (int, error) {
	_, median, stddev, err := calculateStatistics(kind, powers.Data, flags.Data, scratch)
	if err != nil {
		return 0, err
	}

	factor := sensitivity
	if stddev != 0 {
		factor = stddev * sensitivity
	}

	extraFlagged := 0
	window := 1
	for iter := 0; iter < MaxSumThresholdIt; iter++ {
		thresholdI := median + calcThresholdI(cutoff, window, DefaultRho)*factor
		extraFlagged += sumThreshold2DHorizontal(powers, flags, window, thresholdI)
		extraFlagged += sumThreshold2DVertical(powers, flags, window, thresholdI)
		window *= 2
	}
	return extraFlagged, nil
}

// apply1DflagsTo2D broadcasts a per-channel integrated flag vector across
// every time block of that channel (spec §4.7's "broadcast 1-D flags back
// to 2-D").
func apply1DflagsTo2D(flags *FlagGrid2D, integratedFlags []bool) {
	for ch := 0; ch < flags.Rows; ch++ {
		if integratedFlags[ch] {
			for t := 0; t < flags.Cols; t++ {
				flags.Set(ch, t, true)
			}
		}
	}
}

// integratedFlagsOr derives a per-channel flag as the OR across all time
// blocks of that channel (spec §4.7: "derive integrated flags as OR across
// time").
func integratedFlagsOr(flags *FlagGrid2D) []bool {
	out := make([]bool, flags.Rows)
	for ch := 0; ch < flags.Rows; ch++ {
		for t := 0; t < flags.Cols; t++ {
			if flags.At(ch, t) {
				out[ch] = true
				break
			}
		}
	}
	return out
}
