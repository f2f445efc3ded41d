package flagger

import "fmt"

// ShapeMismatch is returned when a power/flag pair disagree in length, or a
// 2-D grid is not rectangular.
type ShapeMismatch struct {
	Expected, Got int
}

func (e *ShapeMismatch) Error() string {
	return fmt.Sprintf("flagger: shape mismatch, expected %d, got %d", e.Expected, e.Got)
}

// IllegalStatsKind is returned by the façade when StatsKind holds a value
// outside {StatsNormal, StatsWinsorized}.
type IllegalStatsKind struct {
	Kind StatsKind
}

func (e *IllegalStatsKind) Error() string {
	return fmt.Sprintf("flagger: illegal stats kind %v", e.Kind)
}

// IllegalDetectorKind is returned by the façade when DetectorKind holds a
// value outside {Threshold, SumThreshold}.
type IllegalDetectorKind struct {
	Kind DetectorKind
}

func (e *IllegalDetectorKind) Error() string {
	return fmt.Sprintf("flagger: illegal detector kind %v", e.Kind)
}

// FftUnavailable is returned at FFT-pipeline construction time when the
// requested transform size cannot be serviced.
type FftUnavailable struct {
	Reason string
}

func (e *FftUnavailable) Error() string {
	return fmt.Sprintf("flagger: FFT unavailable: %s", e.Reason)
}
