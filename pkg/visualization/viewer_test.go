package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"petrec/pkg/units"
	"petrec/pkg/voxel"
)

// gradientImage builds a small volume whose value grows with the voxel
// coordinates, so every rendering has a nonuniform range.
func gradientImage(t *testing.T, n int) *voxel.Image {
	t.Helper()
	size := [3]units.Length{units.MM(float64(10 * n)), units.MM(float64(10 * n)), units.MM(float64(10 * n))}
	fov, err := voxel.NewFOV(size, [3]int{n, n, n})
	if err != nil {
		t.Fatalf("Failed to create FOV: %v", err)
	}
	im := voxel.Zeros(fov)
	for iz := 0; iz < n; iz++ {
		for iy := 0; iy < n; iy++ {
			for ix := 0; ix < n; ix++ {
				im.Set(ix, iy, iz, float64(ix+iy+iz))
			}
		}
	}
	return im
}

func decodePNG(t *testing.T, path string) (width, height int) {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode %s as PNG: %v", path, err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestExtractSlice(t *testing.T) {
	im := gradientImage(t, 8)
	viewer := NewViewer(im)

	for _, axis := range []string{"x", "y", "z"} {
		img, err := viewer.ExtractSlice(axis, 4)
		if err != nil {
			t.Fatalf("Failed to extract %s slice: %v", axis, err)
		}
		b := img.Bounds()
		if b.Dx() != 8 || b.Dy() != 8 {
			t.Errorf("Axis %s: expected an 8x8 slice, got %dx%d", axis, b.Dx(), b.Dy())
		}
	}

	// The gradient makes the far corner of a z slice the brightest.
	img, err := viewer.ExtractSlice("z", 7)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	gray, _, _, _ := img.At(0, 0).RGBA()
	bright, _, _, _ := img.At(7, 7).RGBA()
	if bright <= gray {
		t.Errorf("Expected pixel (7,7) brighter than (0,0), got %d vs %d", bright, gray)
	}
}

func TestExtractSliceValidation(t *testing.T) {
	viewer := NewViewer(gradientImage(t, 4))

	if _, err := viewer.ExtractSlice("w", 0); err == nil {
		t.Error("Expected error for an invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for a negative position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", 4); err == nil {
		t.Error("Expected error for a position beyond the grid, got nil")
	}
}

func TestSliceGridGeometry(t *testing.T) {
	im := gradientImage(t, 4)
	grid := sliceGrid{im: im, axis: 2, position: 1}

	c, r := grid.Dims()
	if c != 4 || r != 4 {
		t.Fatalf("Expected 4x4 grid, got %dx%d", c, r)
	}

	// 40 mm grid: first voxel center sits at -15 mm.
	if got := grid.X(0); got != -15 {
		t.Errorf("Expected first column at -15 mm, got %v", got)
	}
	if got := grid.Y(3); got != 15 {
		t.Errorf("Expected last row at 15 mm, got %v", got)
	}
	if got := grid.Z(2, 3); got != im.At(2, 3, 1) {
		t.Errorf("Grid value (2,3) is %v, want the voxel value %v", got, im.At(2, 3, 1))
	}
}

func TestSaveSliceAndHeatmap(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	viewer := NewViewer(gradientImage(t, 8))
	dir := t.TempDir()

	img, err := viewer.ExtractSlice("z", 4)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	slicePath := filepath.Join(dir, "slice.png")
	if err := viewer.SaveSlice(img, slicePath); err != nil {
		t.Fatalf("Failed to save slice: %v", err)
	}
	if w, h := decodePNG(t, slicePath); w != 8 || h != 8 {
		t.Errorf("Expected an 8x8 PNG, got %dx%d", w, h)
	}

	heatPath := filepath.Join(dir, "heat.png")
	if err := viewer.SaveHeatmap("z", 4, heatPath); err != nil {
		t.Fatalf("Failed to save heatmap: %v", err)
	}
	if w, h := decodePNG(t, heatPath); w == 0 || h == 0 {
		t.Error("Heatmap PNG is empty")
	}

	if err := viewer.SaveHeatmap("q", 4, heatPath); err == nil {
		t.Error("Expected error for an invalid axis, got nil")
	}
}

func TestSaveSliceSequence(t *testing.T) {
	// Skip this test in short mode
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	viewer := NewViewer(gradientImage(t, 4))
	dir := filepath.Join(t.TempDir(), "slices")

	if err := viewer.SaveSliceSequence("z", dir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read output directory: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Expected 4 slices, got %d", len(entries))
	}
	if entries[0].Name() != "slice_z_000.png" {
		t.Errorf("Unexpected first slice name %s", entries[0].Name())
	}
}

func TestSaveConvergence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convergence.png")

	if err := SaveConvergence([]float64{120, 98, 91, 88.5}, path); err != nil {
		t.Fatalf("Failed to save convergence plot: %v", err)
	}
	if w, h := decodePNG(t, path); w == 0 || h == 0 {
		t.Error("Convergence PNG is empty")
	}

	if err := SaveConvergence(nil, path); err == nil {
		t.Error("Expected error for empty values, got nil")
	}
}
