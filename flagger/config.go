package flagger

import (
	"github.com/NLeSC/eAstroViz/internal/rfilog"
)

// Fixed constants from the original LOFAR flagger (§9 Open Questions:
// retain bit-for-bit).
const (
	HistorySize       = 256  // History.C
	MinHistorySize    = 32   // History.MIN_HISTORY_SIZE
	MaxSumThresholdIt = 7    // max_iters
	DefaultRho        = 1.5  // SumThreshold rho-factor p
	DefaultSIREta     = 0.4  // SIR eta
	HistorySensitivity = 10.0 // history_sensitivity, in units of sigma
	winsorizedVarianceCorrection = 1.54
)

// StatsKind selects the statistics estimator used by the façade (spec §4.1).
type StatsKind int

const (
	StatsNormal StatsKind = iota
	StatsWinsorized
	statsKindInvalid // sentinel used only to construct an illegal value in tests
)

func (k StatsKind) String() string {
	switch k {
	case StatsNormal:
		return "NORMAL"
	case StatsWinsorized:
		return "WINSORIZED"
	default:
		return "ILLEGAL_STATS_KIND"
	}
}

// ParseStatsKind maps a configuration string (spec §6) to a StatsKind,
// falling back to WINSORIZED with a logged warning on unknown input.
func ParseStatsKind(s string) StatsKind {
	switch s {
	case "NORMAL":
		return StatsNormal
	case "WINSORIZED":
		return StatsWinsorized
	default:
		rfilog.Logger.Warn("unknown flagger statistics type, using default", "got", s, "default", "WINSORIZED")
		return StatsWinsorized
	}
}

// DetectorKind selects between the simple threshold detector and
// SumThreshold (spec §4.3, §4.4).
type DetectorKind int

const (
	SumThreshold DetectorKind = iota
	Threshold
	detectorKindInvalid
)

func (k DetectorKind) String() string {
	switch k {
	case SumThreshold:
		return "SUM_THRESHOLD"
	case Threshold:
		return "THRESHOLD"
	default:
		return "ILLEGAL_DETECTOR_KIND"
	}
}

// ParseDetectorKind maps a configuration string to a DetectorKind, falling
// back to SUM_THRESHOLD with a logged warning.
func ParseDetectorKind(s string) DetectorKind {
	switch s {
	case "THRESHOLD":
		return Threshold
	case "SUM_THRESHOLD":
		return SumThreshold
	default:
		rfilog.Logger.Warn("unknown flagger type, using default", "got", s, "default", "SUM_THRESHOLD")
		return SumThreshold
	}
}

// Config holds the immutable parameters a Flagger (and the pipelines built
// on top of it) are constructed with. Spec §3's FlaggerConfig.
type Config struct {
	NrStations int `yaml:"nr_stations"`
	NrSubbands int `yaml:"nr_subbands"`
	NrChannels int `yaml:"nr_channels"`

	CutoffThreshold   float32 `yaml:"cutoff_threshold"`   // default 6-7
	BaseSensitivity   float32 `yaml:"base_sensitivity"`   // DefaultConfig sets 1.0; no pipeline substitutes a value of its own (the FFT pipeline does not switch to 0.6)
	DetectorKind      DetectorKind
	StatsKind         StatsKind
	HistorySensitivity float32 `yaml:"history_sensitivity"` // default 10.0
	SIREta            float32 `yaml:"sir_eta"`              // default 0.4

	// Raw string forms, for YAML decoding; resolved into DetectorKind/StatsKind
	// by Resolve(). Kept separate from the typed fields so zero-value Config
	// literals built in Go (not from YAML) can set the typed fields directly.
	DetectorKindName string `yaml:"detector_kind"`
	StatsKindName    string `yaml:"stats_kind"`
}

// DefaultConfig returns a Config with the reference implementation's
// defaults (spec §3).
func DefaultConfig(nrStations, nrSubbands, nrChannels int) Config {
	return Config{
		NrStations:         nrStations,
		NrSubbands:         nrSubbands,
		NrChannels:         nrChannels,
		CutoffThreshold:    6.0,
		BaseSensitivity:    1.0,
		DetectorKind:       SumThreshold,
		StatsKind:          StatsWinsorized,
		HistorySensitivity: HistorySensitivity,
		SIREta:             DefaultSIREta,
	}
}

// Resolve fills DetectorKind/StatsKind from the YAML-decoded name fields
// when those names are non-empty, applying the logged-warning fallback of
// ParseDetectorKind/ParseStatsKind. Call this once after yaml.Unmarshal.
func (c *Config) Resolve() {
	if c.DetectorKindName != "" {
		c.DetectorKind = ParseDetectorKind(c.DetectorKindName)
	}
	if c.StatsKindName != "" {
		c.StatsKind = ParseStatsKind(c.StatsKindName)
	}
	if c.SIREta == 0 {
		c.SIREta = DefaultSIREta
	}
	if c.HistorySensitivity == 0 {
		c.HistorySensitivity = HistorySensitivity
	}
}
