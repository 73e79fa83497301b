package voxel

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"petrec/pkg/geom"
	"petrec/pkg/units"
)

// testFOV builds the standard grid used throughout the tests: a 180 mm
// cube divided into 60 voxels per axis (3 mm voxels).
func testFOV(t *testing.T) FOV {
	t.Helper()
	fov, err := NewFOV([3]units.Length{units.MM(180), units.MM(180), units.MM(180)}, [3]int{60, 60, 60})
	if err != nil {
		t.Fatalf("NewFOV failed: %v", err)
	}
	return fov
}

// TestNewFOVValidation verifies that degenerate geometry is rejected
func TestNewFOVValidation(t *testing.T) {
	tests := []struct {
		name string
		size [3]units.Length
		n    [3]int
	}{
		{"zero voxel count", [3]units.Length{180, 180, 180}, [3]int{60, 0, 60}},
		{"negative voxel count", [3]units.Length{180, 180, 180}, [3]int{60, 60, -1}},
		{"zero size", [3]units.Length{180, 0, 180}, [3]int{60, 60, 60}},
		{"negative size", [3]units.Length{-180, 180, 180}, [3]int{60, 60, 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFOV(tt.size, tt.n); err == nil {
				t.Errorf("Expected error for %s, got none", tt.name)
			}
		})
	}
}

// TestFOVDerivedGeometry checks half widths and voxel sizes
func TestFOVDerivedGeometry(t *testing.T) {
	fov := testFOV(t)

	if got := fov.VoxelSize()[0].MM(); got != 3.0 {
		t.Errorf("Expected 3 mm voxels, got %v", got)
	}
	if got := fov.HalfWidth()[2].MM(); got != 90.0 {
		t.Errorf("Expected 90 mm half width, got %v", got)
	}
	if fov.Len() != 60*60*60 {
		t.Errorf("Expected %d voxels, got %d", 60*60*60, fov.Len())
	}
}

// TestIndexConvention verifies that x varies fastest and z slowest
func TestIndexConvention(t *testing.T) {
	fov, err := NewFOV([3]units.Length{40, 40, 40}, [3]int{4, 5, 6})
	if err != nil {
		t.Fatalf("NewFOV failed: %v", err)
	}

	if got := fov.Index(0, 0, 0); got != 0 {
		t.Errorf("Expected index 0 at origin corner, got %d", got)
	}
	if got := fov.Index(1, 0, 0); got != 1 {
		t.Errorf("Expected x step to move the index by 1, got %d", got)
	}
	if got := fov.Index(0, 1, 0); got != 4 {
		t.Errorf("Expected y step to move the index by nx=4, got %d", got)
	}
	if got := fov.Index(0, 0, 1); got != 20 {
		t.Errorf("Expected z step to move the index by nx*ny=20, got %d", got)
	}

	// Coords must invert Index over the whole grid
	for idx := 0; idx < fov.Len(); idx++ {
		ix, iy, iz := fov.Coords(idx)
		if back := fov.Index(ix, iy, iz); back != idx {
			t.Fatalf("Expected Coords/Index round trip for %d, got %d", idx, back)
		}
	}
}

// TestVoxelIndex checks point-to-voxel mapping including the boundary
// conventions
func TestVoxelIndex(t *testing.T) {
	fov := testFOV(t)

	tests := []struct {
		name   string
		p      geom.Point
		wantOK bool
		want   [3]int
	}{
		{"origin lands in upper half row", geom.PtMM(0, 0, 0), true, [3]int{30, 30, 30}},
		{"centre of first voxel", geom.PtMM(-88.5, -88.5, -88.5), true, [3]int{0, 0, 0}},
		{"lower face is inside", geom.PtMM(-90, 0, 0), true, [3]int{0, 30, 30}},
		{"upper face is outside", geom.PtMM(90, 0, 0), false, [3]int{}},
		{"beyond the box", geom.PtMM(0, 200, 0), false, [3]int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := fov.VoxelIndex(tt.p)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			want := fov.Index(tt.want[0], tt.want[1], tt.want[2])
			if idx != want {
				t.Errorf("Expected index %d %v, got %d", want, tt.want, idx)
			}
		})
	}
}

// TestCenter verifies voxel centres against hand-computed positions
func TestCenter(t *testing.T) {
	fov := testFOV(t)

	c := fov.Center(0, 0, 0)
	if c.X.MM() != -88.5 || c.Y.MM() != -88.5 || c.Z.MM() != -88.5 {
		t.Errorf("Expected (-88.5,-88.5,-88.5), got %+v", c)
	}

	// The centre voxel's centre has to map back to itself
	idx, ok := fov.VoxelIndex(fov.Center(30, 30, 30))
	if !ok || idx != fov.Index(30, 30, 30) {
		t.Errorf("Expected centre to map back to its own voxel, got %d (ok=%v)", idx, ok)
	}
}

// TestFOVEqual checks grid comparison
func TestFOVEqual(t *testing.T) {
	a := testFOV(t)
	b := testFOV(t)
	if !a.Equal(b) {
		t.Error("Expected identical grids to be equal")
	}

	c, _ := NewFOV([3]units.Length{180, 180, 180}, [3]int{60, 60, 59})
	if a.Equal(c) {
		t.Error("Expected grids with different voxel counts to differ")
	}

	d, _ := NewFOV([3]units.Length{180, 180, 190}, [3]int{60, 60, 60})
	if a.Equal(d) {
		t.Error("Expected grids with different extents to differ")
	}
}

// TestImageConstruction verifies ones/zeros/new and the length check
func TestImageConstruction(t *testing.T) {
	fov, err := NewFOV([3]units.Length{20, 20, 20}, [3]int{2, 2, 2})
	if err != nil {
		t.Fatalf("NewFOV failed: %v", err)
	}

	ones := Ones(fov)
	if ones.Total() != 8 {
		t.Errorf("Expected total 8 for ones image, got %v", ones.Total())
	}

	if _, err := New(fov, make([]float64, 7)); err == nil {
		t.Error("Expected error for wrong data length, got none")
	}

	im, err := New(fov, make([]float64, 8))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	im.Set(1, 0, 1, 2.5)
	if im.At(1, 0, 1) != 2.5 {
		t.Errorf("Expected 2.5 at (1,0,1), got %v", im.At(1, 0, 1))
	}
	if im.Data()[fov.Index(1, 0, 1)] != 2.5 {
		t.Error("Expected At and Data to agree on the layout")
	}
}

// TestImageClone verifies that clones do not share backing data
func TestImageClone(t *testing.T) {
	fov, _ := NewFOV([3]units.Length{20, 20, 20}, [3]int{2, 2, 2})
	im := Ones(fov)
	cl := im.Clone()
	cl.Set(0, 0, 0, 99)
	if im.At(0, 0, 0) != 1 {
		t.Error("Expected clone mutation to leave the original untouched")
	}
}

// TestImageStats checks the summary statistics
func TestImageStats(t *testing.T) {
	fov, _ := NewFOV([3]units.Length{20, 20, 10}, [3]int{2, 2, 1})
	im, _ := New(fov, []float64{1, 2, 3, 4})
	if im.Total() != 10 {
		t.Errorf("Expected total 10, got %v", im.Total())
	}
	if im.Mean() != 2.5 {
		t.Errorf("Expected mean 2.5, got %v", im.Mean())
	}
	lo, hi := im.MinMax()
	if lo != 1 || hi != 4 {
		t.Errorf("Expected min 1 and max 4, got %v and %v", lo, hi)
	}
}

// TestRawRoundTrip writes an image to disk and loads it back
func TestRawRoundTrip(t *testing.T) {
	fov, _ := NewFOV([3]units.Length{30, 30, 30}, [3]int{3, 3, 3})
	im := Zeros(fov)
	for i := range im.Data() {
		im.Data()[i] = float64(i) / 4
	}

	path := filepath.Join(t.TempDir(), "image.raw")
	if err := im.WriteRawFile(path); err != nil {
		t.Fatalf("WriteRawFile failed: %v", err)
	}

	back, err := FromRawFile(path, fov)
	if err != nil {
		t.Fatalf("FromRawFile failed: %v", err)
	}
	for i := range im.Data() {
		// Values pass through float32 on disk
		want := float64(float32(im.Data()[i]))
		if math.Abs(back.Data()[i]-want) > 1e-12 {
			t.Fatalf("Expected %v at voxel %d, got %v", want, i, back.Data()[i])
		}
	}
}

// TestFromRawBytesLengthMismatch verifies the descriptive size error
func TestFromRawBytesLengthMismatch(t *testing.T) {
	fov, _ := NewFOV([3]units.Length{30, 30, 30}, [3]int{3, 3, 3})

	_, err := FromRawBytes(make([]byte, 4*26), fov)
	if err == nil {
		t.Fatal("Expected error for short payload, got none")
	}
	if !strings.Contains(err.Error(), "104 bytes") || !strings.Contains(err.Error(), "108") {
		t.Errorf("Expected the error to name actual and expected sizes, got %q", err)
	}
}

// TestFromRawFileMissing verifies the error path for absent files
func TestFromRawFileMissing(t *testing.T) {
	fov, _ := NewFOV([3]units.Length{30, 30, 30}, [3]int{3, 3, 3})
	if _, err := FromRawFile(filepath.Join(t.TempDir(), "nope.raw"), fov); err == nil {
		t.Error("Expected error for missing file, got none")
	}
}
