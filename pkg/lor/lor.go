// Package lor defines the line of response, the elementary PET event:
// two detection points on opposite sides of the scanner, their
// timestamps, and a per-event correction weight.
package lor

import (
	"petrec/pkg/geom"
	"petrec/pkg/units"
)

// LOR is a single coincidence event. It is an immutable value type;
// corrections produce modified copies rather than mutating shared
// state.
type LOR struct {
	// P1 and P2 are the detection points.
	P1, P2 geom.Point

	// T1 and T2 are the detection times of the two photons. Only their
	// difference matters to the reconstruction.
	T1, T2 units.Time

	// AdditiveCorrection weights the event in the MLEM update. It
	// defaults to 1.0 and folds in scatter and random corrections.
	AdditiveCorrection units.Ratio
}

// New builds a fully specified event.
func New(t1, t2 units.Time, p1, p2 geom.Point, correction units.Ratio) LOR {
	return LOR{P1: p1, P2: p2, T1: t1, T2: t2, AdditiveCorrection: correction}
}

// FromPoints builds an event with no timing information and the default
// correction weight.
func FromPoints(p1, p2 geom.Point) LOR {
	return New(0, 0, p1, p2, 1)
}

// DT returns the time difference T2 - T1. A positive value means the
// second photon arrived later, placing the annihilation closer to P1.
func (l LOR) DT() units.Time {
	return l.T2 - l.T1
}
