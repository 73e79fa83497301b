// Package config provides configuration loading and management for
// petrec. It handles loading configuration from YAML files, applying
// environment overrides, and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"petrec/pkg/fom"
	"petrec/pkg/geom"
	"petrec/pkg/lorogram"
	"petrec/pkg/projector"
	"petrec/pkg/units"
	"petrec/pkg/voxel"
)

// SphereSpec places one spherical region of a phantom description.
type SphereSpec struct {
	Name   string       `yaml:"name"`
	X      units.Length `yaml:"x"`
	Y      units.Length `yaml:"y"`
	Z      units.Length `yaml:"z"`
	Radius units.Length `yaml:"radius"`

	// Activity is the true activity of the region; zero marks it cold.
	Activity float64 `yaml:"activity"`
}

// Config represents the application configuration loaded from YAML.
// Dimensioned values accept a unit suffix, e.g. "180 mm" or "200 ps".
type Config struct {
	// Input parameters
	Input struct {
		// File is the event data to reconstruct, as a local path or an
		// s3:// URI.
		File string `yaml:"file" env:"PETREC_INPUT"`

		// Prompts optionally points at classified prompts used to build
		// the scatter correction.
		Prompts string `yaml:"prompts" env:"PETREC_PROMPTS"`

		// Sensitivity optionally points at a raw sensitivity image
		// sampled on the reconstruction grid.
		Sensitivity string `yaml:"sensitivity" env:"PETREC_SENSITIVITY"`
	} `yaml:"input"`

	// Iteration parameters
	Iterations struct {
		// Number of passes over all subsets
		Number int `yaml:"number"`

		// Subsets per iteration; 1 gives plain MLEM
		Subsets int `yaml:"subsets"`
	} `yaml:"iterations"`

	// Field of view parameters
	FOV struct {
		// NVoxels is the grid resolution along x, y, z
		NVoxels [3]int `yaml:"nVoxels"`

		// Size is the full physical extent along x, y, z
		Size [3]units.Length `yaml:"size"`
	} `yaml:"fov"`

	// Time of flight parameters
	TOF struct {
		// Enabled turns on TOF weighting of the projections
		Enabled bool `yaml:"enabled"`

		// Sigma is the coincidence timing resolution
		Sigma units.Time `yaml:"sigma"`

		// Cutoff drops voxels beyond this many sigma from the
		// timing-implied position
		Cutoff units.Ratio `yaml:"cutoff"`
	} `yaml:"tof"`

	// Scatter correction parameters
	Scatter struct {
		// Enabled turns on the scattergram correction; it requires
		// input.prompts
		Enabled bool `yaml:"enabled"`

		PhiBins int `yaml:"phiBins"`

		ZBins   int          `yaml:"zBins"`
		ZLength units.Length `yaml:"zLength"`

		DZBins int          `yaml:"dzBins"`
		DZMax  units.Length `yaml:"dzMax"`

		RBins int          `yaml:"rBins"`
		RMax  units.Length `yaml:"rMax"`

		DTBins int        `yaml:"dtBins"`
		DTMax  units.Time `yaml:"dtMax"`
	} `yaml:"scatter"`

	// Smoothing parameters
	Smoothing struct {
		// FWHM of the Gaussian applied after every iteration; zero
		// disables the filter
		FWHM units.Length `yaml:"fwhm"`
	} `yaml:"smoothing"`

	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines project events in
		// parallel
		Workers int `yaml:"workers" env:"PETREC_WORKERS"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives the reconstructed images
		Dir string `yaml:"dir" env:"PETREC_OUTPUT_DIR"`

		// Prefix names the per-iteration image files
		Prefix string `yaml:"prefix"`

		// Runlog is a SQLite database recording runs; empty disables it
		Runlog string `yaml:"runlog" env:"PETREC_RUNLOG"`

		// SaveSlices additionally renders PNG slices of each image
		SaveSlices bool `yaml:"saveSlices"`
	} `yaml:"output"`

	// Figure of merit parameters
	FOM struct {
		// Enabled scores the final image against the phantom below
		Enabled bool `yaml:"enabled"`

		// Regions are the hot and cold features of the phantom
		Regions []SphereSpec `yaml:"regions"`

		// Background regions sample the uniform part of the phantom
		Background []SphereSpec `yaml:"background"`

		// BackgroundActivity is the true background activity
		BackgroundActivity float64 `yaml:"backgroundActivity"`
	} `yaml:"fom"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default iteration parameters
	cfg.Iterations.Number = 5
	cfg.Iterations.Subsets = 1

	// Set default field of view parameters
	cfg.FOV.NVoxels = [3]int{60, 60, 60}
	cfg.FOV.Size = [3]units.Length{units.MM(180), units.MM(180), units.MM(180)}

	// Set default TOF parameters
	cfg.TOF.Enabled = false
	cfg.TOF.Sigma = units.PS(200)
	cfg.TOF.Cutoff = projector.DefaultTOFCutoff

	// Set default scatter correction parameters
	cfg.Scatter.Enabled = false
	cfg.Scatter.PhiBins = 30
	cfg.Scatter.ZBins = 30
	cfg.Scatter.ZLength = units.MM(200)
	cfg.Scatter.DZBins = 30
	cfg.Scatter.DZMax = units.MM(200)
	cfg.Scatter.RBins = 30
	cfg.Scatter.RMax = units.MM(150)
	cfg.Scatter.DTBins = 30
	cfg.Scatter.DTMax = units.PS(500)

	// Set default processing parameters
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.Dir = "out"
	cfg.Output.Prefix = "img"
	cfg.Output.SaveSlices = false

	return cfg
}

// LoadConfig loads configuration from a YAML file and applies
// environment overrides on top.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Environment variables win over the file
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the parts of the configuration that the domain
// constructors cannot check themselves.
func (c *Config) Validate() error {
	if c.Iterations.Number <= 0 {
		return fmt.Errorf("iterations.number must be positive, got %d", c.Iterations.Number)
	}
	if c.Iterations.Subsets <= 0 {
		return fmt.Errorf("iterations.subsets must be positive, got %d", c.Iterations.Subsets)
	}
	if c.TOF.Enabled && c.TOF.Sigma <= 0 {
		return fmt.Errorf("tof.sigma must be positive, got %g ps", c.TOF.Sigma.PS())
	}
	if c.Scatter.Enabled && c.Input.Prompts == "" {
		return fmt.Errorf("scatter correction is enabled but input.prompts is empty")
	}
	if c.Smoothing.FWHM < 0 {
		return fmt.Errorf("smoothing.fwhm must not be negative, got %g mm", c.Smoothing.FWHM.MM())
	}
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers)
	}
	if c.FOM.Enabled && len(c.FOM.Background) < 2 {
		return fmt.Errorf("fom needs at least two background regions, got %d", len(c.FOM.Background))
	}
	return nil
}

// Grid builds the reconstruction grid described by the configuration.
func (c *Config) Grid() (voxel.FOV, error) {
	return voxel.NewFOV(c.FOV.Size, c.FOV.NVoxels)
}

// TOFParams returns the TOF weighting parameters, or nil when TOF is
// disabled.
func (c *Config) TOFParams() *projector.TOF {
	if !c.TOF.Enabled {
		return nil
	}
	return &projector.TOF{Sigma: c.TOF.Sigma, Cutoff: c.TOF.Cutoff}
}

// ScatterSpec returns the scattergram axes described by the
// configuration.
func (c *Config) ScatterSpec() lorogram.Spec {
	return lorogram.Spec{
		PhiBins: c.Scatter.PhiBins,
		ZBins:   c.Scatter.ZBins,
		ZLength: c.Scatter.ZLength,
		DZBins:  c.Scatter.DZBins,
		DZMax:   c.Scatter.DZMax,
		RBins:   c.Scatter.RBins,
		RMax:    c.Scatter.RMax,
		DTBins:  c.Scatter.DTBins,
		DTMax:   c.Scatter.DTMax,
	}
}

// FOMConfig translates the phantom description into an analysis
// configuration.
func (c *Config) FOMConfig() fom.Config {
	cfg := fom.Config{BackgroundActivity: c.FOM.BackgroundActivity}
	for _, s := range c.FOM.Regions {
		cfg.Regions = append(cfg.Regions, fom.Region{
			Name:     s.Name,
			ROI:      fom.Sphere{Center: geom.Pt(s.X, s.Y, s.Z), Radius: s.Radius},
			Activity: s.Activity,
		})
	}
	for _, s := range c.FOM.Background {
		cfg.Background = append(cfg.Background, fom.Sphere{
			Center: geom.Pt(s.X, s.Y, s.Z),
			Radius: s.Radius,
		})
	}
	return cfg
}
