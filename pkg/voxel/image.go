package voxel

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Image is a scalar field sampled on an FOV grid. It owns its data
// exclusively: the driver never shares one backing array between two
// images, so a returned Image is a stable snapshot.
type Image struct {
	fov  FOV
	data []float64
}

// New wraps existing data in an image, checking that the length matches
// the grid.
func New(fov FOV, data []float64) (*Image, error) {
	if len(data) != fov.Len() {
		return nil, fmt.Errorf("image data has %d values, %s wants %d", len(data), fov, fov.Len())
	}
	return &Image{fov: fov, data: data}, nil
}

// Zeros returns a zero-filled image on the grid.
func Zeros(fov FOV) *Image {
	return &Image{fov: fov, data: make([]float64, fov.Len())}
}

// Ones returns an image filled with 1.0, the canonical initial MLEM
// estimate and the default sensitivity.
func Ones(fov FOV) *Image {
	im := Zeros(fov)
	for i := range im.data {
		im.data[i] = 1
	}
	return im
}

// FOV returns the grid the image is sampled on.
func (im *Image) FOV() FOV { return im.fov }

// Data exposes the flat backing array in the repo-wide index order
// (x fastest, z slowest). Callers that mutate it own the image.
func (im *Image) Data() []float64 { return im.data }

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	data := make([]float64, len(im.data))
	copy(data, im.data)
	return &Image{fov: im.fov, data: data}
}

// At returns the value at the given grid coordinates.
func (im *Image) At(ix, iy, iz int) float64 {
	return im.data[im.fov.Index(ix, iy, iz)]
}

// Set assigns the value at the given grid coordinates.
func (im *Image) Set(ix, iy, iz int, v float64) {
	im.data[im.fov.Index(ix, iy, iz)] = v
}

// Total returns the sum over all voxels, the image's total activity.
func (im *Image) Total() float64 {
	return floats.Sum(im.data)
}

// Mean returns the mean voxel value.
func (im *Image) Mean() float64 {
	return floats.Sum(im.data) / float64(len(im.data))
}

// MinMax returns the smallest and largest voxel values.
func (im *Image) MinMax() (float64, float64) {
	return floats.Min(im.data), floats.Max(im.data)
}
