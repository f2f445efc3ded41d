package flagger

// Grid2D is a channel/time-block power grid stored as one contiguous,
// row-major buffer rather than a slice-of-slices. A single allocation keeps
// the inner detector loops (§4.3, §4.4) cache-friendly and lets scratch
// grids be reused call over call instead of rebuilt.
type Grid2D struct {
	Data       []float32
	Rows, Cols int // Rows = channels, Cols = time blocks
}

// NewGrid2D allocates a zeroed rows x cols grid.
func NewGrid2D(rows, cols int) *Grid2D {
	return &Grid2D{Data: make([]float32, rows*cols), Rows: rows, Cols: cols}
}

func (g *Grid2D) At(r, c int) float32 { return g.Data[r*g.Cols+c] }

func (g *Grid2D) Set(r, c int, v float32) { g.Data[r*g.Cols+c] = v }

// Row returns the slice backing row r, so callers can pass it directly to
// the 1-D primitives without copying.
func (g *Grid2D) Row(r int) []float32 { return g.Data[r*g.Cols : (r+1)*g.Cols] }

// Reset zeroes the grid in place (scratch reuse between calls, per §3
// "all power / flag grids are scratch reused between calls").
func (g *Grid2D) Reset() {
	for i := range g.Data {
		g.Data[i] = 0
	}
}

// FlagGrid2D mirrors Grid2D's layout for the paired boolean mask.
type FlagGrid2D struct {
	Data       []bool
	Rows, Cols int
}

func NewFlagGrid2D(rows, cols int) *FlagGrid2D {
	return &FlagGrid2D{Data: make([]bool, rows*cols), Rows: rows, Cols: cols}
}

func (g *FlagGrid2D) At(r, c int) bool { return g.Data[r*g.Cols+c] }

func (g *FlagGrid2D) Set(r, c int, v bool) { g.Data[r*g.Cols+c] = v }

func (g *FlagGrid2D) Row(r int) []bool { return g.Data[r*g.Cols : (r+1)*g.Cols] }

func (g *FlagGrid2D) Reset() {
	for i := range g.Data {
		g.Data[i] = false
	}
}

// CountFlagged returns the number of set flags.
func (g *FlagGrid2D) CountFlagged() int {
	n := 0
	for _, f := range g.Data {
		if f {
			n++
		}
	}
	return n
}

// CountFlagged1D returns the number of set flags in a 1-D mask.
func CountFlagged1D(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// checkShape returns a *ShapeMismatch when x and mask lengths disagree.
func checkShape(x []float32, mask []bool) error {
	if mask != nil && len(mask) != len(x) {
		return &ShapeMismatch{Expected: len(x), Got: len(mask)}
	}
	return nil
}
