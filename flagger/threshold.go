package flagger

// thresholdFlagger1D implements the simple single-pass detector of spec
// §4.4: threshold = median + cutoff*stddev, flag every unflagged sample
// exceeding it.
func thresholdFlagger1D(kind StatsKind, cutoff float32, powers []float32, flags []bool, scratch []float32) (int, error) {
	_, median, stddev, err := calculateStatistics(kind, powers, flags, scratch)
	if err != nil {
		return 0, err
	}

	threshold := median + cutoff*stddev
	extraFlagged := 0
	for i, p := range powers {
		if p > threshold && !flags[i] {
			flags[i] = true
			extraFlagged++
		}
	}
	return extraFlagged, nil
}

// thresholdFlagger2D is the 2-D variant; per spec §4.4/§4.3 it also starts
// at channel 1, matching the asymmetry of the SumThreshold sweeps.
func thresholdFlagger2D(kind StatsKind, cutoff float32, powers *Grid2D, flags *FlagGrid2D, scratch []float32) (int, error) {
	_, median, stddev, err := calculateStatistics(kind, powers.Data, flags.Data, scratch)
	if err != nil {
		return 0, err
	}

	threshold := median + cutoff*stddev
	extraFlagged := 0
	for ch := 1; ch < powers.Rows; ch++ {
		for t := 0; t < powers.Cols; t++ {
			if powers.At(ch, t) > threshold && !flags.At(ch, t) {
				flags.Set(ch, t, true)
				extraFlagged++
			}
		}
	}
	return extraFlagged, nil
}
