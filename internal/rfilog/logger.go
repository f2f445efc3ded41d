// Package rfilog provides the single structured logger shared by the
// flagger façade and the three pipelines. It exists so that construction
// errors and the "unknown config value, falling back" warnings documented
// in spec.md §6/§7 go through one configurable sink instead of fmt.Println,
// matching how the teacher wires a single logger through its components.
package rfilog

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the package-level sink. Callers may reassign it (e.g. to
// redirect to a file, or raise the level for CN debugging) before
// constructing any pipeline.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "eastroviz",
})
