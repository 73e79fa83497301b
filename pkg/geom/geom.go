// Package geom provides the small amount of 3D geometry the projector
// and the scatter histograms need: positions in scanner space with
// dimensioned components, convertible to raw gonum vectors for the
// numeric kernels.
package geom

import (
	"gonum.org/v1/gonum/spatial/r3"

	"petrec/pkg/units"
)

// Point is a position in scanner space. The coordinate origin sits at
// the centre of the field of view with z along the scanner axis.
type Point struct {
	X, Y, Z units.Length
}

// Pt builds a point from three lengths.
func Pt(x, y, z units.Length) Point {
	return Point{X: x, Y: y, Z: z}
}

// PtMM builds a point from raw millimetre values.
func PtMM(x, y, z float64) Point {
	return Point{X: units.MM(x), Y: units.MM(y), Z: units.MM(z)}
}

// Vec returns the point as a raw vector in millimetres.
func (p Point) Vec() r3.Vec {
	return r3.Vec{X: p.X.MM(), Y: p.Y.MM(), Z: p.Z.MM()}
}

// FromVec wraps a raw millimetre vector back into a point.
func FromVec(v r3.Vec) Point {
	return PtMM(v.X, v.Y, v.Z)
}

// Mid returns the midpoint of two points.
func Mid(a, b Point) Point {
	return FromVec(r3.Scale(0.5, r3.Add(a.Vec(), b.Vec())))
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) units.Length {
	return units.MM(r3.Norm(r3.Sub(b.Vec(), a.Vec())))
}
