package projector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"petrec/pkg/lor"
	"petrec/pkg/units"
	"petrec/pkg/voxel"
)

// Siddon is the exact ray-tracing projector. It parametrizes the ray
// as p1 + a*(p2-p1) with a in [0,1], clips the parameter range to the
// grid box, and walks from boundary to boundary recording one entry
// per crossed voxel.
type Siddon struct {
	fov voxel.FOV
	tof *gauss
}

// NewSiddon builds a projector for the given grid. tof may be nil for
// a non-TOF reconstruction.
func NewSiddon(fov voxel.FOV, tof *TOF) (*Siddon, error) {
	s := &Siddon{fov: fov}
	if tof != nil {
		t := *tof
		if t.Sigma <= 0 {
			return nil, fmt.Errorf("tof sigma must be positive, got %g ps", t.Sigma.PS())
		}
		if t.Cutoff <= 0 {
			t.Cutoff = DefaultTOFCutoff
		}
		s.tof = newGauss(t)
	}
	return s, nil
}

// NewRow allocates a buffer with capacity for the longest possible
// row: a ray crosses at most nx+ny+nz voxels.
func (s *Siddon) NewRow() SystemMatrixRow {
	n := s.fov.N()
	return make(SystemMatrixRow, 0, n[0]+n[1]+n[2]+2)
}

// FillRow computes the system-matrix row for l. The walk always
// advances the axis whose next boundary crossing is nearest, with x
// winning ties over y and y over z, so rays grazing a shared voxel
// face neither double-count nor skip voxels.
func (s *Siddon) FillRow(l lor.LOR, row *SystemMatrixRow) {
	*row = (*row)[:0]

	p1 := l.P1.Vec()
	d := r3.Sub(l.P2.Vec(), p1)
	length := r3.Norm(d)
	if length == 0 {
		return
	}

	pc := [3]float64{p1.X, p1.Y, p1.Z}
	dc := [3]float64{d.X, d.Y, d.Z}
	half := s.fov.HalfMM()
	vox := s.fov.VoxMM()
	n := s.fov.N()

	// Clip the parameter range to the box
	amin, amax := 0.0, 1.0
	for i := 0; i < 3; i++ {
		if dc[i] == 0 {
			// Parallel to this pair of faces: inside or miss
			if pc[i] < -half[i] || pc[i] >= half[i] {
				return
			}
			continue
		}
		a0 := (-half[i] - pc[i]) / dc[i]
		a1 := (half[i] - pc[i]) / dc[i]
		if a0 > a1 {
			a0, a1 = a1, a0
		}
		amin = math.Max(amin, a0)
		amax = math.Min(amax, a1)
	}
	if amin >= amax {
		return
	}

	// Entry voxel and the per-axis crossing schedule: next[i] is the
	// parameter of the next boundary along axis i, da[i] the parameter
	// width of one voxel
	var idx, step [3]int
	var next, da [3]float64
	for i := 0; i < 3; i++ {
		x := pc[i] + amin*dc[i] + half[i]
		j := int(x / vox[i])
		if j < 0 {
			j = 0
		}
		if j >= n[i] {
			j = n[i] - 1
		}
		idx[i] = j
		switch {
		case dc[i] > 0:
			step[i] = 1
			da[i] = vox[i] / dc[i]
			next[i] = amin + (float64(j+1)*vox[i]-x)/dc[i]
		case dc[i] < 0:
			step[i] = -1
			da[i] = -vox[i] / dc[i]
			next[i] = amin + (float64(j)*vox[i]-x)/dc[i]
		default:
			step[i] = 0
			next[i] = math.Inf(1)
			da[i] = math.Inf(1)
		}
	}

	// Signed position of the timing-implied annihilation point along
	// the ray, measured from the LOR midpoint towards P2. A positive
	// time difference places it nearer P1.
	tofPos := 0.0
	if s.tof != nil {
		tofPos = -0.5 * units.C.Mul(l.DT()).MM()
	}

	a := amin
	for {
		k := 0
		if next[1] < next[k] {
			k = 1
		}
		if next[2] < next[k] {
			k = 2
		}
		end := math.Min(next[k], amax)
		if w := (end - a) * length; w > 0 {
			weight := w
			keep := true
			if s.tof != nil {
				mid := ((a+end)/2 - 0.5) * length
				var g float64
				g, keep = s.tof.weight(mid - tofPos)
				weight *= g
			}
			if keep {
				*row = append(*row, Element{Index: s.fov.Index(idx[0], idx[1], idx[2]), Weight: weight})
			}
		}
		if next[k] >= amax {
			return
		}
		a = next[k]
		idx[k] += step[k]
		if idx[k] < 0 || idx[k] >= n[k] {
			return
		}
		next[k] += da[k]
	}
}
