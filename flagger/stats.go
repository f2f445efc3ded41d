package flagger

import "math"

// unflagged copies the unflagged entries of x (mask nil or false) into dst,
// reusing dst's backing array when it is large enough, and returns the
// slice of valid entries. This is the Go analogue of the original's
// "copy unflagged into a scratch vector" step that precedes every
// statistic (see Flagger::calculateMean/calculateMedian in the source).
func unflagged(x []float32, mask []bool, dst []float32) []float32 {
	if cap(dst) < len(x) {
		dst = make([]float32, len(x))
	}
	dst = dst[:0]
	if mask == nil {
		return append(dst, x...)
	}
	for i, v := range x {
		if !mask[i] {
			dst = append(dst, v)
		}
	}
	return dst
}

// mean returns the mean of the unflagged entries of x, or 0 if all flagged.
func mean(x []float32, mask []bool) float32 {
	var sum float32
	count := 0
	for i, v := range x {
		if mask != nil && mask[i] {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float32(count)
}

// meanStddev returns (mean, population stddev) of the unflagged entries of
// x, or (0, 0) if all flagged.
func meanStddev(x []float32, mask []bool) (float32, float32) {
	m := mean(x, mask)
	var sum float32
	count := 0
	for i, v := range x {
		if mask != nil && mask[i] {
			continue
		}
		d := v - m
		sum += d * d
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return m, float32(math.Sqrt(float64(sum / float32(count))))
}

// quickselect partially reorders data in place so that data[k] holds the
// value that would appear at index k in sorted order (the others are
// unordered but correctly partitioned around it). Average-case O(n), same
// complexity contract as std::nth_element in the source.
func quickselect(data []float32, k int) float32 {
	lo, hi := 0, len(data)-1
	for lo < hi {
		pivot := data[(lo+hi)/2]
		i, j := lo, hi
		for i <= j {
			for data[i] < pivot {
				i++
			}
			for data[j] > pivot {
				j--
			}
			if i <= j {
				data[i], data[j] = data[j], data[i]
				i++
				j--
			}
		}
		if k <= j {
			hi = j
		} else if k >= i {
			lo = i
		} else {
			break
		}
	}
	return data[k]
}

// median returns the order-statistic at floor(count/2) among the unflagged
// entries of x via quickselect (never a full sort), and ok=false if every
// entry is flagged. scratch is reused to avoid a per-call allocation.
func median(x []float32, mask []bool, scratch []float32) (value float32, ok bool) {
	data := unflagged(x, mask, scratch)
	if len(data) == 0 {
		return 0, false
	}
	return quickselect(data, len(data)/2), true
}

// winsorisedMean computes lo = sorted[floor(0.1*count)], hi =
// sorted[ceil(0.9*count)-1], then the mean of x clamped into [lo, hi].
// data is mutated (quickselect reorders it) — callers pass a scratch copy.
func winsorisedMean(data []float32) float32 {
	n := len(data)
	if n == 0 {
		return 0
	}
	lowIndex := int(math.Floor(0.1 * float64(n)))
	highIndex := int(math.Ceil(0.9 * float64(n)))
	if highIndex > 0 {
		highIndex--
	}
	lowValue := quickselect(data, lowIndex)
	highValue := quickselect(data, highIndex)

	var sum float32
	for _, v := range data {
		switch {
		case v < lowValue:
			sum += lowValue
		case v > highValue:
			sum += highValue
		default:
			sum += v
		}
	}
	return sum / float32(n)
}

// winsorisedStats returns (mean, median, stddev) per spec §4.1: median is
// the unclamped order statistic, mean is the Winsorised mean, and stddev
// applies the 1.54 Gaussian-equivalence correction to the Winsorised
// variance (an empirical constant from the original, retained bit-for-bit).
func winsorisedStats(x []float32, mask []bool, scratch []float32) (m, med, sd float32) {
	data := unflagged(x, mask, scratch)
	n := len(data)
	if n == 0 {
		return 0, 0, 0
	}

	med = quickselect(data, n/2)

	lowIndex := int(math.Floor(0.1 * float64(n)))
	highIndex := int(math.Ceil(0.9 * float64(n)))
	if highIndex > 0 {
		highIndex--
	}
	lowValue := quickselect(data, lowIndex)
	highValue := quickselect(data, highIndex)

	var sum float32
	for _, v := range data {
		switch {
		case v < lowValue:
			sum += lowValue
		case v > highValue:
			sum += highValue
		default:
			sum += v
		}
	}
	m = sum / float32(n)

	var varSum float32
	for _, v := range data {
		var clamped float32
		switch {
		case v < lowValue:
			clamped = lowValue
		case v > highValue:
			clamped = highValue
		default:
			clamped = v
		}
		d := clamped - m
		varSum += d * d
	}
	sd = float32(math.Sqrt(float64(winsorizedVarianceCorrection * varSum / float32(n))))
	return m, med, sd
}

// WinsorisedMean exposes the Winsorised mean directly, for the two call
// sites in the pipelines (§4.9, §4.10) that hardcode Winsorised statistics
// for a history gate regardless of the configured StatsKind. scratch is
// reused across calls.
func WinsorisedMean(x []float32, mask []bool, scratch []float32) float32 {
	data := unflagged(x, mask, scratch)
	return winsorisedMean(data)
}

// calculateStatistics is the top-level façade of §4.1: dispatches on kind,
// returning an error for anything outside {StatsNormal, StatsWinsorized}.
// scratch is a caller-owned buffer reused across calls to avoid allocation.
func calculateStatistics(kind StatsKind, x []float32, mask []bool, scratch []float32) (m, med, sd float32, err error) {
	switch kind {
	case StatsNormal:
		m, sd = meanStddev(x, mask)
		medv, ok := median(x, mask, scratch)
		if ok {
			med = medv
		}
		return m, med, sd, nil
	case StatsWinsorized:
		m, med, sd = winsorisedStats(x, mask, scratch)
		return m, med, sd, nil
	default:
		return 0, 0, 0, &IllegalStatsKind{Kind: kind}
	}
}
