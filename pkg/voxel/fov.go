// Package voxel defines the reconstruction grid and the images sampled
// on it. The field of view is a box centred on the origin, divided into
// a regular grid of voxels; images are flat float64 arrays over that
// grid with x varying fastest and z slowest.
package voxel

import (
	"fmt"
	"math"

	"petrec/pkg/geom"
	"petrec/pkg/units"
)

// FOV describes the imaged region: a box centred on the coordinate
// origin together with the number of voxels along each axis. It is
// immutable after construction; all derived quantities are computed
// once by NewFOV.
type FOV struct {
	n    [3]int
	half [3]float64 // mm
	vox  [3]float64 // mm
}

// NewFOV validates the grid geometry and derives the half widths and
// voxel sizes. Voxel counts must be positive and the box must have
// positive extent along every axis.
func NewFOV(size [3]units.Length, n [3]int) (FOV, error) {
	var f FOV
	for i := 0; i < 3; i++ {
		if n[i] <= 0 {
			return FOV{}, fmt.Errorf("voxel count along %c must be positive, got %d", 'x'+i, n[i])
		}
		if size[i] <= 0 {
			return FOV{}, fmt.Errorf("fov size along %c must be positive, got %g mm", 'x'+i, size[i].MM())
		}
		f.n[i] = n[i]
		f.half[i] = size[i].MM() / 2
		f.vox[i] = size[i].MM() / float64(n[i])
	}
	return f, nil
}

// N returns the voxel counts along x, y and z.
func (f FOV) N() [3]int { return f.n }

// Len returns the total number of voxels in the grid.
func (f FOV) Len() int { return f.n[0] * f.n[1] * f.n[2] }

// Size returns the full box extent along each axis.
func (f FOV) Size() [3]units.Length {
	return [3]units.Length{
		units.MM(2 * f.half[0]),
		units.MM(2 * f.half[1]),
		units.MM(2 * f.half[2]),
	}
}

// HalfWidth returns the distance from the origin to the box face along
// each axis.
func (f FOV) HalfWidth() [3]units.Length {
	return [3]units.Length{units.MM(f.half[0]), units.MM(f.half[1]), units.MM(f.half[2])}
}

// VoxelSize returns the edge lengths of a single voxel.
func (f FOV) VoxelSize() [3]units.Length {
	return [3]units.Length{units.MM(f.vox[0]), units.MM(f.vox[1]), units.MM(f.vox[2])}
}

// HalfMM and VoxMM expose the raw millimetre geometry for numeric
// kernels that work on unwrapped floats.
func (f FOV) HalfMM() [3]float64 { return f.half }

// VoxMM returns the raw voxel edge lengths in millimetres.
func (f FOV) VoxMM() [3]float64 { return f.vox }

// Index maps grid coordinates to the flat array index. x varies
// fastest, z slowest; this is the single layout used everywhere,
// including the raw file formats.
func (f FOV) Index(ix, iy, iz int) int {
	return (iz*f.n[1]+iy)*f.n[0] + ix
}

// Coords is the inverse of Index.
func (f FOV) Coords(idx int) (ix, iy, iz int) {
	ix = idx % f.n[0]
	iy = (idx / f.n[0]) % f.n[1]
	iz = idx / (f.n[0] * f.n[1])
	return ix, iy, iz
}

// VoxelIndex returns the flat index of the voxel containing p, or false
// when p lies outside the field of view. Points exactly on the lower
// face of a voxel belong to that voxel; points on the outer box
// boundary at the positive side are outside.
func (f FOV) VoxelIndex(p geom.Point) (int, bool) {
	v := p.Vec()
	c := [3]float64{v.X, v.Y, v.Z}
	var idx [3]int
	for i := 0; i < 3; i++ {
		x := c[i] + f.half[i]
		if x < 0 || x >= 2*f.half[i] {
			return 0, false
		}
		j := int(x / f.vox[i])
		if j >= f.n[i] {
			j = f.n[i] - 1
		}
		idx[i] = j
	}
	return f.Index(idx[0], idx[1], idx[2]), true
}

// Center returns the physical centre of the voxel at the given grid
// coordinates.
func (f FOV) Center(ix, iy, iz int) geom.Point {
	return geom.PtMM(
		(float64(ix)+0.5)*f.vox[0]-f.half[0],
		(float64(iy)+0.5)*f.vox[1]-f.half[1],
		(float64(iz)+0.5)*f.vox[2]-f.half[2],
	)
}

// Equal reports whether two FOVs describe the same grid. Sizes are
// compared with a small tolerance so geometry loaded back from files
// matches geometry built from configuration.
func (f FOV) Equal(other FOV) bool {
	const tol = 1e-9
	for i := 0; i < 3; i++ {
		if f.n[i] != other.n[i] {
			return false
		}
		if math.Abs(f.half[i]-other.half[i]) > tol {
			return false
		}
	}
	return true
}

// String renders the grid for log lines and error messages.
func (f FOV) String() string {
	return fmt.Sprintf("%dx%dx%d voxels over %gx%gx%g mm",
		f.n[0], f.n[1], f.n[2], 2*f.half[0], 2*f.half[1], 2*f.half[2])
}
