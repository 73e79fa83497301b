package lorogram

import (
	"math"

	"petrec/pkg/lor"
	"petrec/pkg/units"
)

// Feature functions reduce a LOR to the scalar coordinates the scatter
// histograms bin over. They are pure and testable on their own; none
// of them knows about bins or ranges.

// Phi returns the azimuthal angle of the LOR's transverse projection
// in [0, tau). The angle is shifted by half a turn when the signed
// displacement from the scanner axis is negative, which makes it
// independent of the order of the detection points and distinguishes
// parallel LORs passing on opposite sides of the axis.
func Phi(l lor.LOR) units.Angle {
	dx := (l.P2.X - l.P1.X).MM()
	dy := (l.P2.Y - l.P1.Y).MM()
	phi := math.Atan2(dy, dx)
	if signedDistanceFromZAxis(l) < 0 {
		phi += math.Pi
	}
	w := math.Mod(phi, units.Tau.Radians())
	if w < 0 {
		w += units.Tau.Radians()
	}
	return units.Angle(w)
}

// ZMidpoint returns the axial coordinate of the point halfway between
// the detection points.
func ZMidpoint(l lor.LOR) units.Length {
	return (l.P1.Z + l.P2.Z) / 2
}

// DeltaZ returns the axial separation of the detection points.
func DeltaZ(l lor.LOR) units.Length {
	return units.Length(math.Abs((l.P1.Z - l.P2.Z).MM()))
}

// DistanceFromZAxis returns the distance of closest approach between
// the LOR and the scanner axis.
func DistanceFromZAxis(l lor.LOR) units.Length {
	return units.Length(math.Abs(signedDistanceFromZAxis(l)))
}

// signedDistanceFromZAxis computes the closest-approach distance with
// a sign identifying the side of the axis the LOR passes on. LORs
// parallel to the scanner axis have no transverse direction and yield
// NaN, which no axis accepts.
func signedDistanceFromZAxis(l lor.LOR) float64 {
	dx := (l.P2.X - l.P1.X).MM()
	dy := (l.P2.Y - l.P1.Y).MM()
	x1 := l.P1.X.MM()
	y1 := l.P1.Y.MM()
	return (dx*y1 - dy*x1) / math.Hypot(dx, dy)
}

// lorCoords lays the features out in the axis order used by the
// scattergram histograms.
func lorCoords(l lor.LOR) [5]float64 {
	return [5]float64{
		Phi(l).Radians(),
		ZMidpoint(l).MM(),
		DeltaZ(l).MM(),
		DistanceFromZAxis(l).MM(),
		l.DT().PS(),
	}
}
