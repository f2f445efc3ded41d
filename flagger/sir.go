package flagger

/*------------------------------------------------------------------
 * SIR1D runs the Scale-Invariant-Rank dilation of spec §4.5: a
 * forward-then-backward credit-accumulation sweep. eta=0 is the identity
 * (no credit ever goes positive from an unflagged run); eta=1 flags
 * everything (every cell, flagged or not, contributes non-negative
 * credit). Returns the total number of flagged cells after dilation, not
 * just the newly-flagged count, matching the original's SIROperator.
 *----------------------------------------------------------------*/
func SIR1D(flags []bool, eta float32) int {
	n := len(flags)
	temp := make([]bool, n)

	var credit float32
	for i := 0; i < n; i++ {
		w := eta - 1
		if flags[i] {
			w = eta
		}
		if credit < 0 {
			credit = 0
		}
		credit += w
		temp[i] = credit >= 0
	}

	credit = 0
	for i := n - 1; i >= 0; i-- {
		w := eta - 1
		if flags[i] {
			w = eta
		}
		if credit < 0 {
			credit = 0
		}
		credit += w
		flags[i] = credit >= 0 || temp[i]
	}

	return CountFlagged1D(flags)
}

// SIR2D applies SIR1D along the time axis per channel, then along the
// channel axis per time block (spec §4.5's 2-D variant).
func SIR2D(flags *FlagGrid2D, eta float32) int {
	rowBuf := make([]bool, flags.Cols)
	for ch := 0; ch < flags.Rows; ch++ {
		copy(rowBuf, flags.Row(ch))
		SIR1D(rowBuf, eta)
		copy(flags.Row(ch), rowBuf)
	}

	colBuf := make([]bool, flags.Rows)
	for t := 0; t < flags.Cols; t++ {
		for ch := 0; ch < flags.Rows; ch++ {
			colBuf[ch] = flags.At(ch, t)
		}
		SIR1D(colBuf, eta)
		for ch := 0; ch < flags.Rows; ch++ {
			flags.Set(ch, t, colBuf[ch])
		}
	}

	return flags.CountFlagged()
}
