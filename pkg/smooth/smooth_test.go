package smooth

import (
	"math"
	"testing"

	"petrec/pkg/units"
	"petrec/pkg/voxel"
)

func testFOV(t *testing.T) voxel.FOV {
	t.Helper()
	size := [3]units.Length{units.MM(150), units.MM(150), units.MM(150)}
	fov, err := voxel.NewFOV(size, [3]int{15, 15, 15})
	if err != nil {
		t.Fatalf("Failed to create FOV: %v", err)
	}
	return fov
}

func TestNewValidation(t *testing.T) {
	fov := testFOV(t)

	if _, err := New(0, fov); err == nil {
		t.Error("Expected error for zero fwhm, got nil")
	}
	if _, err := New(units.MM(-4), fov); err == nil {
		t.Error("Expected error for negative fwhm, got nil")
	}

	f, err := New(units.MM(8), fov)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}
	if !f.FOV().Equal(fov) {
		t.Error("Filter does not report the grid it was built for")
	}
}

func TestKernelShape(t *testing.T) {
	fov := testFOV(t)
	f, err := New(units.MM(8), fov)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	for axis, k := range f.kernels {
		if len(k)%2 == 0 {
			t.Errorf("Axis %d kernel has even length %d", axis, len(k))
		}
		sum := 0.0
		for _, v := range k {
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("Axis %d kernel sums to %v, want 1", axis, sum)
		}
		mid := len(k) / 2
		for j := 1; j <= mid; j++ {
			if k[mid-j] != k[mid+j] {
				t.Errorf("Axis %d kernel asymmetric at offset %d", axis, j)
			}
		}
	}
}

func TestApplyPreservesInteriorActivity(t *testing.T) {
	fov := testFOV(t)
	f, err := New(units.MM(8), fov)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	// A point source in the middle of the grid. The kernel support is
	// two voxels here, far from any face.
	im := voxel.Zeros(fov)
	center := fov.Index(7, 7, 7)
	im.Data()[center] = 100

	f.Apply(im)

	if math.Abs(im.Total()-100) > 1e-9 {
		t.Errorf("Interior activity not preserved: total %v, want 100", im.Total())
	}
	if peak := im.Data()[center]; peak >= 100 || peak <= 0 {
		t.Errorf("Peak after smoothing is %v, want between 0 and 100", peak)
	}

	// The spread must be symmetric around the source.
	left := im.Data()[fov.Index(6, 7, 7)]
	right := im.Data()[fov.Index(8, 7, 7)]
	up := im.Data()[fov.Index(7, 7, 8)]
	if left <= 0 || left != right || left != up {
		t.Errorf("Asymmetric spread: left %v, right %v, up %v", left, right, up)
	}
}

func TestApplyUniformImage(t *testing.T) {
	fov := testFOV(t)
	f, err := New(units.MM(8), fov)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	im := voxel.Ones(fov)
	f.Apply(im)

	// Away from the faces the normalized kernel sees only ones.
	if got := im.Data()[fov.Index(7, 7, 7)]; math.Abs(got-1) > 1e-12 {
		t.Errorf("Interior voxel of uniform image changed to %v", got)
	}
	// At a corner part of the kernel hangs off the grid.
	if got := im.Data()[fov.Index(0, 0, 0)]; got >= 1 {
		t.Errorf("Corner voxel of uniform image is %v, want less than 1", got)
	}
}
