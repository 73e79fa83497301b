// Package projector computes system-matrix rows: for one line of
// response, the voxels it crosses and the length of ray inside each.
// The Siddon implementation follows the exact radiological path method
// (Siddon, "Fast calculation of the exact radiological path for a
// three-dimensional CT array", Med. Phys. 12, 1985), extended with
// optional time-of-flight weighting.
package projector

import "petrec/pkg/lor"

// Element is one voxel's contribution to a row: the flat voxel index
// and its weight, the ray length inside the voxel in millimetres,
// scaled by the TOF kernel when TOF is enabled.
type Element struct {
	Index  int
	Weight float64
}

// SystemMatrixRow holds one LOR's sparse row, ordered along the ray
// from P1 to P2 with no duplicate voxels. Rows are reusable buffers:
// FillRow overwrites the contents and never reallocates once the
// capacity covers the grid diagonal, so each worker can keep one row
// for its whole lifetime.
type SystemMatrixRow []Element

// WeightSum returns the total weight. For a non-TOF row this equals
// the length of the ray segment inside the field of view.
func (r SystemMatrixRow) WeightSum() float64 {
	sum := 0.0
	for _, e := range r {
		sum += e.Weight
	}
	return sum
}

// Projector fills system-matrix rows for LORs over a fixed grid.
// Implementations are chosen at construction time; the driver holds
// one projector per reconstruction and one row buffer per worker.
type Projector interface {
	// NewRow allocates a row buffer sized for the grid.
	NewRow() SystemMatrixRow

	// FillRow overwrites row with the system-matrix entries for l.
	// Events that miss the grid or have coincident endpoints leave
	// the row empty.
	FillRow(l lor.LOR, row *SystemMatrixRow)
}
