package projector

import (
	"math"

	"petrec/pkg/units"
)

// TOF configures time-of-flight weighting.
type TOF struct {
	// Sigma is the coincidence timing resolution of the scanner.
	Sigma units.Time

	// Cutoff drops voxels farther than Cutoff sigmas (in position
	// space) from the timing-implied annihilation point. Zero selects
	// DefaultTOFCutoff.
	Cutoff units.Ratio
}

// DefaultTOFCutoff is used when a TOF configuration leaves the cutoff
// unset.
const DefaultTOFCutoff units.Ratio = 3

// gauss is the position-space kernel derived from a TOF configuration.
// A timing spread sigma_t maps to c*sigma_t/2 along the line, because
// the time difference moves the implied point by half the light path.
type gauss struct {
	sigma  float64 // mm
	cutoff float64 // mm
	norm   float64
}

func newGauss(t TOF) *gauss {
	sigma := units.C.Mul(t.Sigma).MM() / 2
	return &gauss{
		sigma:  sigma,
		cutoff: float64(t.Cutoff) * sigma,
		norm:   1 / (sigma * math.Sqrt(2*math.Pi)),
	}
}

// weight evaluates the kernel at a signed distance from the implied
// annihilation point. ok is false beyond the cutoff; such voxels are
// omitted from the row entirely rather than kept with weight zero.
func (g *gauss) weight(x float64) (w float64, ok bool) {
	if math.Abs(x) > g.cutoff {
		return 0, false
	}
	return g.norm * math.Exp(-x*x/(2*g.sigma*g.sigma)), true
}
