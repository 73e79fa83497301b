package lorogram

import (
	"errors"
	"fmt"
	"math"

	"petrec/pkg/lor"
	"petrec/pkg/units"
)

// Prompt classifies a coincidence for histogram filling.
type Prompt int

const (
	// True events come straight from a single annihilation.
	True Prompt = iota

	// Scatter events had at least one photon scatter before detection.
	Scatter

	// Random coincidences pair photons from unrelated annihilations.
	Random
)

// String names the prompt kind for logs and errors.
func (p Prompt) String() string {
	switch p {
	case True:
		return "true"
	case Scatter:
		return "scatter"
	case Random:
		return "random"
	}
	return fmt.Sprintf("prompt(%d)", int(p))
}

// ErrRandomPrompts rejects random coincidences: the correction model
// only distinguishes trues from scatters.
var ErrRandomPrompts = errors.New("lorogram: random prompts are not supported")

// MaxDistrust is the correction returned for bins holding scatter
// evidence but no trues. It is finite so downstream arithmetic stays
// NaN free; dividing an event's correction weight by it sends the
// event's contribution to zero.
const MaxDistrust units.Ratio = math.MaxFloat32

// Spec dimensions the five histogram axes: azimuthal angle, axial
// midpoint, axial separation, distance from the scanner axis, and
// time difference. Both histograms of a Scattergram are always built
// from one Spec, so an event's bin is the same in both.
type Spec struct {
	PhiBins int

	ZBins int
	// ZLength is the full axial extent, centred on zero.
	ZLength units.Length

	DZBins int
	DZMax  units.Length

	RBins int
	RMax  units.Length

	DTBins int
	// DTMax bounds the time difference symmetrically.
	DTMax units.Time
}

// Scattergram estimates per-LOR scatter corrections from a pair of
// histograms filled with labelled events. After filling it is
// read-only and safe for concurrent queries.
type Scattergram struct {
	trues    *histogram
	scatters *histogram
}

// NewScattergram builds the empty histograms for a Spec.
func NewScattergram(spec Spec) (*Scattergram, error) {
	phi, err := NewCyclic(0, units.Tau.Radians(), spec.PhiBins)
	if err != nil {
		return nil, fmt.Errorf("phi axis: %w", err)
	}
	z, err := NewUniform(-spec.ZLength.MM()/2, spec.ZLength.MM()/2, spec.ZBins)
	if err != nil {
		return nil, fmt.Errorf("z axis: %w", err)
	}
	dz, err := NewUniform(0, spec.DZMax.MM(), spec.DZBins)
	if err != nil {
		return nil, fmt.Errorf("dz axis: %w", err)
	}
	r, err := NewUniform(0, spec.RMax.MM(), spec.RBins)
	if err != nil {
		return nil, fmt.Errorf("r axis: %w", err)
	}
	dt, err := NewUniform(-spec.DTMax.PS(), spec.DTMax.PS(), spec.DTBins)
	if err != nil {
		return nil, fmt.Errorf("dt axis: %w", err)
	}

	axes := []Axis{phi, z, dz, r, dt}
	return &Scattergram{
		trues:    newHistogram(axes...),
		scatters: newHistogram(axes...),
	}, nil
}

// Fill records one labelled event. Events whose features fall outside
// the histogram ranges are dropped silently; random coincidences are
// rejected with ErrRandomPrompts.
func (s *Scattergram) Fill(kind Prompt, l lor.LOR) error {
	c := lorCoords(l)
	switch kind {
	case True:
		s.trues.fill(c[:])
	case Scatter:
		s.scatters.fill(c[:])
	case Random:
		return ErrRandomPrompts
	default:
		return fmt.Errorf("lorogram: unknown prompt kind %d", int(kind))
	}
	return nil
}

// Value returns the multiplicative scatter estimate for the LOR's bin,
// (scatters+trues)/trues. A bin with no evidence at all returns 1.0,
// as do events outside the histogram ranges; a bin with scatters but
// no trues returns MaxDistrust.
func (s *Scattergram) Value(l lor.LOR) units.Ratio {
	_, trues, scatters := s.lookup(l)
	switch {
	case trues > 0:
		return units.Ratio((scatters + trues) / trues)
	case scatters > 0:
		return MaxDistrust
	default:
		return 1
	}
}

// Triplet returns the estimate together with the raw counts, so
// callers can tell an empty bin from a scatters-only bin. Unlike
// Value, the ratio reported for a bin without trues is 1.0; the
// counts carry the distrust information.
func (s *Scattergram) Triplet(l lor.LOR) (units.Ratio, float64, float64) {
	return s.lookup(l)
}

func (s *Scattergram) lookup(l lor.LOR) (units.Ratio, float64, float64) {
	c := lorCoords(l)
	trues := float64(s.trues.count(c[:]))
	scatters := float64(s.scatters.count(c[:]))
	if trues > 0 {
		return units.Ratio((scatters + trues) / trues), trues, scatters
	}
	return 1, trues, scatters
}

// Correct folds the scatter estimate into each event's additive
// correction by dividing, turning the correction into the fraction of
// the bin's counts believed to be trues. Events in fully distrusted
// bins end up contributing almost nothing.
func (s *Scattergram) Correct(lors []lor.LOR) {
	for i := range lors {
		lors[i].AdditiveCorrection /= s.Value(lors[i])
	}
}
