package flagger

import (
	"math"

	"github.com/NLeSC/eAstroViz/internal/rfilog"
)

// History is a fixed-capacity ring of the most recent HistorySize values
// for one (station,subband[,channel]) or (baseline,subband) observable,
// tracking a running sum so mean() is O(1) (spec §3, §4.6).
type History struct {
	values     [HistorySize]float32
	writeIndex int
	count      int
	sum        float32
}

// NewHistory returns an empty ring.
func NewHistory() *History { return &History{} }

// Add pushes v into the ring, evicting the oldest value once full.
func (h *History) Add(v float32) {
	if h.count == HistorySize {
		h.sum -= h.values[h.writeIndex]
	} else {
		h.count++
	}
	h.values[h.writeIndex] = v
	h.sum += v
	h.writeIndex = (h.writeIndex + 1) % HistorySize
}

// Count returns how many values are currently populated (<= HistorySize).
func (h *History) Count() int { return h.count }

// Mean returns sum/count, or 0 if empty.
func (h *History) Mean() float32 {
	if h.count == 0 {
		return 0
	}
	return h.sum / float32(h.count)
}

// Stddev returns the population stddev over the populated prefix, or 0 if
// empty.
func (h *History) Stddev() float32 {
	if h.count == 0 {
		return 0
	}
	m := h.Mean()
	var sum float32
	for i := 0; i < h.count; i++ {
		d := h.values[i] - m
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum / float32(h.count))))
}

// AddGated implements spec §4.6's add_gated: during warm-up (count <
// MinHistorySize) the value is always added and the gate reports false.
// Once warmed up, a value exceeding mean+sensitivity*stddev is gated: the
// threshold (not the offending value) is recorded, so a single bad second
// cannot poison future statistics, and the gate reports true.
//
// When stddev is 0 (e.g. the first MinHistorySize values were identical),
// the threshold equals the mean, so any v > mean is gated — this is the
// literal, intentional behaviour documented in spec §8 scenario S5.
func (h *History) AddGated(value float32, sensitivity float32) bool {
	if h.count < MinHistorySize {
		h.Add(value)
		return false
	}

	mean := h.Mean()
	stddev := h.Stddev()
	threshold := mean + sensitivity*stddev

	gated := value > threshold
	if gated {
		rfilog.Logger.Debug("history gate flagged interval", "value", value, "mean", mean, "stddev", stddev, "threshold", threshold)
		h.Add(threshold)
	} else {
		h.Add(value)
	}
	return gated
}
