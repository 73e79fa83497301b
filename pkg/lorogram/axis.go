// Package lorogram bins lines of response into multi-dimensional
// histograms over geometric features and derives per-event scatter
// corrections from a pair of such histograms. Axes map coordinates to
// bins and know nothing about what is being counted; the feature
// functions that produce the coordinates live in features.go.
package lorogram

import (
	"fmt"
	"math"
)

// Axis maps a raw coordinate to one of a fixed number of bins.
type Axis interface {
	// Bins returns the number of bins.
	Bins() int

	// Bin returns the bin holding x, or false when x is out of range.
	Bin(x float64) (int, bool)
}

// Uniform divides the half-open interval [lo, hi) into equally sized
// bins. Coordinates outside the interval belong to no bin.
type Uniform struct {
	lo, hi float64
	n      int
}

// NewUniform builds a uniform axis.
func NewUniform(lo, hi float64, bins int) (*Uniform, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("lorogram: bins must be positive, got %d", bins)
	}
	if hi <= lo {
		return nil, fmt.Errorf("lorogram: axis range [%g, %g) is empty", lo, hi)
	}
	return &Uniform{lo: lo, hi: hi, n: bins}, nil
}

// Bins returns the number of bins.
func (u *Uniform) Bins() int { return u.n }

// Bin returns the bin holding x.
func (u *Uniform) Bin(x float64) (int, bool) {
	if math.IsNaN(x) || x < u.lo || x >= u.hi {
		return 0, false
	}
	b := int(float64(u.n) * (x - u.lo) / (u.hi - u.lo))
	if b >= u.n {
		b = u.n - 1
	}
	return b, true
}

// Cyclic wraps coordinates modulo a period before binning. Every
// finite coordinate lands in a bin; it is used for the azimuthal
// angle.
type Cyclic struct {
	lo, period float64
	n          int
}

// NewCyclic builds a cyclic axis covering [lo, lo+period).
func NewCyclic(lo, period float64, bins int) (*Cyclic, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("lorogram: bins must be positive, got %d", bins)
	}
	if period <= 0 {
		return nil, fmt.Errorf("lorogram: period must be positive, got %g", period)
	}
	return &Cyclic{lo: lo, period: period, n: bins}, nil
}

// Bins returns the number of bins.
func (c *Cyclic) Bins() int { return c.n }

// Bin returns the bin holding x after wrapping it into the period.
func (c *Cyclic) Bin(x float64) (int, bool) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	w := math.Mod(x-c.lo, c.period)
	if w < 0 {
		w += c.period
	}
	b := int(float64(c.n) * w / c.period)
	if b >= c.n {
		b = c.n - 1
	}
	return b, true
}

// histogram counts fills over the cartesian product of its axes.
type histogram struct {
	axes   []Axis
	counts []uint64
}

func newHistogram(axes ...Axis) *histogram {
	size := 1
	for _, a := range axes {
		size *= a.Bins()
	}
	return &histogram{axes: axes, counts: make([]uint64, size)}
}

// index computes the flat bin index, or false when any coordinate
// falls outside its axis.
func (h *histogram) index(coords []float64) (int, bool) {
	idx := 0
	for i, a := range h.axes {
		b, ok := a.Bin(coords[i])
		if !ok {
			return 0, false
		}
		idx = idx*a.Bins() + b
	}
	return idx, true
}

// fill records one event; out-of-range events are dropped.
func (h *histogram) fill(coords []float64) {
	if idx, ok := h.index(coords); ok {
		h.counts[idx]++
	}
}

// count returns the number of events in the bin holding coords, zero
// for out-of-range coordinates.
func (h *histogram) count(coords []float64) uint64 {
	if idx, ok := h.index(coords); ok {
		return h.counts[idx]
	}
	return 0
}
