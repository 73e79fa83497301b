// Package fom computes figures of merit for reconstructed images.
// Contrast recovery and background variability follow the NEMA NU 2
// image quality analysis: each region mean is compared against a set
// of background regions placed in uniform activity.
package fom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"petrec/pkg/geom"
	"petrec/pkg/units"
	"petrec/pkg/voxel"
)

// ROI selects voxels by their center point.
type ROI interface {
	Contains(p geom.Point) bool
}

// Sphere is a spherical region.
type Sphere struct {
	Center geom.Point
	Radius units.Length
}

// Contains reports whether p lies inside the sphere.
func (s Sphere) Contains(p geom.Point) bool {
	return geom.Distance(p, s.Center) <= s.Radius
}

// CylinderX is an infinite cylinder along the x axis.
type CylinderX struct {
	Y, Z   units.Length
	Radius units.Length
}

// Contains reports whether p lies inside the cylinder.
func (c CylinderX) Contains(p geom.Point) bool {
	return math.Hypot((p.Y-c.Y).MM(), (p.Z-c.Z).MM()) <= c.Radius.MM()
}

// CylinderY is an infinite cylinder along the y axis.
type CylinderY struct {
	X, Z   units.Length
	Radius units.Length
}

// Contains reports whether p lies inside the cylinder.
func (c CylinderY) Contains(p geom.Point) bool {
	return math.Hypot((p.X-c.X).MM(), (p.Z-c.Z).MM()) <= c.Radius.MM()
}

// CylinderZ is an infinite cylinder along the z axis.
type CylinderZ struct {
	X, Y   units.Length
	Radius units.Length
}

// Contains reports whether p lies inside the cylinder.
func (c CylinderZ) Contains(p geom.Point) bool {
	return math.Hypot((p.X-c.X).MM(), (p.Y-c.Y).MM()) <= c.Radius.MM()
}

// Region is a named ROI with its true activity. Zero activity marks a
// cold region.
type Region struct {
	Name     string
	ROI      ROI
	Activity float64
}

// Config describes a phantom analysis.
type Config struct {
	// Regions are the hot and cold features to score.
	Regions []Region

	// Background holds at least two regions placed in the uniform
	// background of the phantom.
	Background []ROI

	// BackgroundActivity is the true activity of the background.
	BackgroundActivity float64
}

// Result scores one region.
type Result struct {
	Name string

	// Mean is the reconstructed activity averaged over the region.
	Mean float64

	// CRC is the contrast recovery coefficient in percent. A perfect
	// reconstruction scores 100 for hot and cold regions alike.
	CRC float64

	// SNR is the region contrast over the background noise.
	SNR float64
}

// Report holds the figures of merit of one image.
type Report struct {
	// BackgroundMean averages the per-region background means.
	BackgroundMean float64

	// BackgroundVariability is the relative spread of the background
	// region means, in percent.
	BackgroundVariability float64

	Regions []Result
}

// Evaluate scores an image against a phantom description.
func Evaluate(im *voxel.Image, cfg Config) (Report, error) {
	if len(cfg.Background) < 2 {
		return Report{}, fmt.Errorf("need at least two background regions, got %d", len(cfg.Background))
	}

	bgMeans := make([]float64, len(cfg.Background))
	for i, roi := range cfg.Background {
		m, n := roiMean(im, roi)
		if n == 0 {
			return Report{}, fmt.Errorf("background region %d selects no voxels", i)
		}
		bgMeans[i] = m
	}
	bgMean := stat.Mean(bgMeans, nil)
	bgSD := stat.StdDev(bgMeans, nil)
	if bgMean == 0 {
		return Report{}, fmt.Errorf("background mean is zero, contrast is undefined")
	}

	report := Report{
		BackgroundMean:        bgMean,
		BackgroundVariability: 100 * bgSD / bgMean,
	}

	for _, region := range cfg.Regions {
		if region.Activity < 0 {
			return Report{}, fmt.Errorf("region %s: negative activity %g", region.Name, region.Activity)
		}
		m, n := roiMean(im, region.ROI)
		if n == 0 {
			return Report{}, fmt.Errorf("region %s selects no voxels", region.Name)
		}

		var crc float64
		if region.Activity == 0 {
			crc = 100 * (1 - m/bgMean)
		} else {
			if cfg.BackgroundActivity <= 0 {
				return Report{}, fmt.Errorf("region %s is hot but the background activity is %g",
					region.Name, cfg.BackgroundActivity)
			}
			contrast := region.Activity/cfg.BackgroundActivity - 1
			if contrast == 0 {
				return Report{}, fmt.Errorf("region %s has background activity, crc is undefined", region.Name)
			}
			crc = 100 * (m/bgMean - 1) / contrast
		}

		report.Regions = append(report.Regions, Result{
			Name: region.Name,
			Mean: m,
			CRC:  crc,
			SNR:  (m - bgMean) / bgSD,
		})
	}
	return report, nil
}

// roiMean averages the image over the voxels whose centers fall inside
// the region.
func roiMean(im *voxel.Image, roi ROI) (mean float64, voxels int) {
	fov := im.FOV()
	n := fov.N()
	data := im.Data()

	sum := 0.0
	for iz := 0; iz < n[2]; iz++ {
		for iy := 0; iy < n[1]; iy++ {
			for ix := 0; ix < n[0]; ix++ {
				if roi.Contains(fov.Center(ix, iy, iz)) {
					sum += data[fov.Index(ix, iy, iz)]
					voxels++
				}
			}
		}
	}
	if voxels == 0 {
		return 0, 0
	}
	return sum / float64(voxels), voxels
}
