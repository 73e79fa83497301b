// Package visualization renders reconstructed images as grayscale
// slices, heatmaps, and convergence plots.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"petrec/pkg/voxel"
)

// Viewer renders planes of one reconstructed image.
type Viewer struct {
	im *voxel.Image
}

// NewViewer creates a viewer over an image.
func NewViewer(im *voxel.Image) *Viewer {
	return &Viewer{im: im}
}

// axisIndex resolves an axis name to its index.
func axisIndex(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return 0, nil
	case "y", "Y":
		return 1, nil
	case "z", "Z":
		return 2, nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// checkPosition validates a voxel position along an axis.
func (v *Viewer) checkPosition(ax, position int) error {
	n := v.im.FOV().N()
	if position < 0 || position >= n[ax] {
		return fmt.Errorf("position %d outside axis with %d voxels", position, n[ax])
	}
	return nil
}

// ExtractSlice extracts a 2D plane of the volume perpendicular to the
// specified axis, as a 16-bit grayscale image normalized to the
// volume maximum.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	ax, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	if err := v.checkPosition(ax, position); err != nil {
		return nil, err
	}

	n := v.im.FOV().N()
	_, max := v.im.MinMax()
	scale := 0.0
	if max > 0 {
		scale = 65535 / max
	}
	gray := func(val float64) color.Gray16 {
		return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, val*scale)))}
	}

	var img *image.Gray16
	switch ax {
	case 0:
		// YZ plane
		img = image.NewGray16(image.Rect(0, 0, n[1], n[2]))
		for iz := 0; iz < n[2]; iz++ {
			for iy := 0; iy < n[1]; iy++ {
				img.SetGray16(iy, iz, gray(v.im.At(position, iy, iz)))
			}
		}
	case 1:
		// XZ plane
		img = image.NewGray16(image.Rect(0, 0, n[0], n[2]))
		for iz := 0; iz < n[2]; iz++ {
			for ix := 0; ix < n[0]; ix++ {
				img.SetGray16(ix, iz, gray(v.im.At(ix, position, iz)))
			}
		}
	default:
		// XY plane
		img = image.NewGray16(image.Rect(0, 0, n[0], n[1]))
		for iy := 0; iy < n[1]; iy++ {
			for ix := 0; ix < n[0]; ix++ {
				img.SetGray16(ix, iy, gray(v.im.At(ix, iy, position)))
			}
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// sliceGrid adapts one plane of the volume to the plotter grid
// interface, with both axes in millimetres.
type sliceGrid struct {
	im       *voxel.Image
	axis     int
	position int
}

func (g sliceGrid) Dims() (c, r int) {
	n := g.im.FOV().N()
	switch g.axis {
	case 0:
		return n[1], n[2]
	case 1:
		return n[0], n[2]
	default:
		return n[0], n[1]
	}
}

func (g sliceGrid) Z(c, r int) float64 {
	switch g.axis {
	case 0:
		return g.im.At(g.position, c, r)
	case 1:
		return g.im.At(c, g.position, r)
	default:
		return g.im.At(c, r, g.position)
	}
}

func (g sliceGrid) X(c int) float64 {
	fov := g.im.FOV()
	if g.axis == 0 {
		return fov.Center(0, c, 0).Y.MM()
	}
	return fov.Center(c, 0, 0).X.MM()
}

func (g sliceGrid) Y(r int) float64 {
	fov := g.im.FOV()
	if g.axis == 2 {
		return fov.Center(0, r, 0).Y.MM()
	}
	return fov.Center(0, 0, r).Z.MM()
}

// SaveHeatmap renders one plane as a heatmap PNG with spatial axes.
func (v *Viewer) SaveHeatmap(axis string, position int, filename string) error {
	ax, err := axisIndex(axis)
	if err != nil {
		return err
	}
	if err := v.checkPosition(ax, position); err != nil {
		return err
	}

	grid := sliceGrid{im: v.im, axis: ax, position: position}
	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s = %d", strings.ToLower(axis), position)
	labels := [3][2]string{{"y [mm]", "z [mm]"}, {"x [mm]", "z [mm]"}, {"x [mm]", "y [mm]"}}
	p.X.Label.Text = labels[ax][0]
	p.Y.Label.Text = labels[ax][1]
	p.Add(heat)

	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}

// SaveSliceSequence renders every plane along the specified axis into
// outputDir as heatmap PNGs.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	ax, err := axisIndex(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	n := v.im.FOV().N()
	for pos := 0; pos < n[ax]; pos++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", strings.ToLower(axis), pos))
		if err := v.SaveHeatmap(axis, pos, filename); err != nil {
			return err
		}
	}
	return nil
}

// SaveConvergence plots a per-update scalar, such as the total image
// activity, against the update number.
func SaveConvergence(values []float64, filename string) error {
	if len(values) == 0 {
		return fmt.Errorf("no values to plot")
	}

	pts := make(plotter.XYs, len(values))
	for i, val := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = val
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Convergence"
	p.X.Label.Text = "update"
	p.Y.Label.Text = "total activity"
	p.Add(plotter.NewGrid(), line)

	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
