package pipeline

import (
	"encoding/binary"
	"io"
)

// DebugDumper writes the three binary scratch files documented in spec.md
// §6: a fixed header, then one record per (time,station,subband) call.
// This is diagnostic only, never part of the flagging contract, and is
// nil by default -- the original's static file handles become a
// caller-supplied collaborator (DESIGN NOTES §9).
type DebugDumper struct {
	w       io.Writer
	fftSize int
	nrPol   int
}

// NewDebugDumper writes the header immediately and returns a dumper ready
// for WriteRecord calls.
func NewDebugDumper(w io.Writer, nrStations, nrSubbands, fftSize, nrPol int) (*DebugDumper, error) {
	header := []uint32{uint32(nrStations), uint32(nrSubbands), uint32(fftSize), uint32(nrPol)}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return &DebugDumper{w: w, fftSize: fftSize, nrPol: nrPol}, nil
}

// WriteRecord appends one {time,station,subband,[(f32) x F x nrPol]} record.
// data must hold exactly fftSize*nrPol float32 values, polarisation-major.
func (d *DebugDumper) WriteRecord(time, station, subband uint32, data []float32) error {
	if len(data) != d.fftSize*d.nrPol {
		return &shapeMismatchError{expected: d.fftSize * d.nrPol, got: len(data)}
	}
	for _, v := range []uint32{time, station, subband} {
		if err := binary.Write(d.w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return binary.Write(d.w, binary.LittleEndian, data)
}

type shapeMismatchError struct{ expected, got int }

func (e *shapeMismatchError) Error() string {
	return "pipeline: debug record has wrong length"
}
