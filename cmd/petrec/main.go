package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"petrec/internal/blob"
	"petrec/internal/lorio"
	"petrec/internal/runlog"
	"petrec/pkg/config"
	"petrec/pkg/fom"
	"petrec/pkg/lorogram"
	"petrec/pkg/mlem"
	"petrec/pkg/smooth"
	"petrec/pkg/visualization"
	"petrec/pkg/voxel"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "petrec.yaml", "Configuration file (YAML)")
	inputFile := flag.String("input", "", "Event file to reconstruct, a path or s3:// URI (overrides the config)")
	outputDir := flag.String("output", "", "Output directory (overrides the config)")
	iterations := flag.Int("iterations", 0, "Number of iterations (overrides the config)")
	subsets := flag.Int("subsets", 0, "Number of OSEM subsets (overrides the config)")
	workers := flag.Int("workers", 0, "Number of projection workers (overrides the config)")
	saveSlices := flag.Bool("slices", false, "Render slice heatmaps of the final image")
	writeConfig := flag.String("write-config", "", "Write the default configuration to the given path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command line flags win over the file and the environment
	if *inputFile != "" {
		cfg.Input.File = *inputFile
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *iterations > 0 {
		cfg.Iterations.Number = *iterations
	}
	if *subsets > 0 {
		cfg.Iterations.Subsets = *subsets
	}
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if *saveSlices {
		cfg.Output.SaveSlices = true
	}

	// Validate inputs
	if cfg.Input.File == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("ITERATIVE PET IMAGE RECONSTRUCTION (MLEM/OSEM)")
	fmt.Println("================================")

	ctx := context.Background()

	fov, err := cfg.Grid()
	if err != nil {
		log.Fatalf("Invalid field of view: %v", err)
	}
	fmt.Printf("Field of view: %s\n", fov)

	events, err := loadEvents(ctx, cfg.Input.File)
	if err != nil {
		log.Fatalf("Failed to load events: %v", err)
	}
	lors := lorio.LORs(events)
	fmt.Printf("Loaded %d events from %s\n", len(lors), cfg.Input.File)

	// Fold the scatter correction into the events before reconstruction
	if cfg.Scatter.Enabled {
		fmt.Println("Building scatter correction from classified prompts...")
		prompts, err := loadEvents(ctx, cfg.Input.Prompts)
		if err != nil {
			log.Fatalf("Failed to load prompts: %v", err)
		}
		sgram, err := lorogram.NewScattergram(cfg.ScatterSpec())
		if err != nil {
			log.Fatalf("Failed to build scattergram: %v", err)
		}
		randoms := 0
		for _, ev := range prompts {
			if ev.Kind == lorogram.Random {
				randoms++
				continue
			}
			if err := sgram.Fill(ev.Kind, ev.LOR); err != nil {
				log.Fatalf("Failed to fill scattergram: %v", err)
			}
		}
		if randoms > 0 {
			log.Printf("Warning: ignored %d random prompts", randoms)
		}
		sgram.Correct(lors)
		fmt.Printf("Scatter correction built from %d prompts\n", len(prompts)-randoms)
	}

	var sensitivity *voxel.Image
	if cfg.Input.Sensitivity != "" {
		data, err := fetchBlob(ctx, cfg.Input.Sensitivity)
		if err != nil {
			log.Fatalf("Failed to load sensitivity image: %v", err)
		}
		sensitivity, err = voxel.FromRawBytes(data, fov)
		if err != nil {
			log.Fatalf("Invalid sensitivity image: %v", err)
		}
	}

	var filter *smooth.Filter
	if cfg.Smoothing.FWHM > 0 {
		filter, err = smooth.New(cfg.Smoothing.FWHM, fov)
		if err != nil {
			log.Fatalf("Invalid smoothing filter: %v", err)
		}
	}

	var journal *runlog.Log
	var runID int64
	if cfg.Output.Runlog != "" {
		journal, err = runlog.Open(cfg.Output.Runlog)
		if err != nil {
			log.Fatalf("Failed to open run log: %v", err)
		}
		defer journal.Close()

		runID, err = journal.StartRun(runlog.RunMeta{
			Input:      cfg.Input.File,
			Events:     len(lors),
			Iterations: cfg.Iterations.Number,
			Subsets:    cfg.Iterations.Subsets,
			TOF:        cfg.TOF.Enabled,
			Scatter:    cfg.Scatter.Enabled,
		})
		if err != nil {
			log.Fatalf("Failed to journal the run: %v", err)
		}
	}

	rec, err := mlem.New(mlem.Params{
		LORs:        lors,
		FOV:         fov,
		Iterations:  cfg.Iterations.Number,
		Subsets:     cfg.Iterations.Subsets,
		Workers:     cfg.Processing.Workers,
		TOF:         cfg.TOFParams(),
		Sensitivity: sensitivity,
		Filter:      filter,
	})
	if err != nil {
		log.Fatalf("Failed to set up the reconstruction: %v", err)
	}

	fmt.Printf("Starting reconstruction: %d iterations, %d subsets, %d workers...\n",
		cfg.Iterations.Number, cfg.Iterations.Subsets, cfg.Processing.Workers)
	startTime := time.Now()

	var totals []float64
	var lastImagePath string
	for {
		stepStart := time.Now()
		im, st, ok := rec.Step()
		if !ok {
			break
		}
		stepSeconds := time.Since(stepStart).Seconds()

		total := im.Total()
		totals = append(totals, total)
		fmt.Printf("Iteration %d subset %d: total activity %.6g, %d events skipped (%.2fs)\n",
			st.Iteration, st.Subset, total, st.Skipped, stepSeconds)

		imagePath := ""
		if st.Subset == st.Subsets-1 {
			name := fmt.Sprintf("%s_%02d.raw", cfg.Output.Prefix, st.Iteration)
			imagePath = joinLocation(cfg.Output.Dir, name)
			if err := saveImage(ctx, im, imagePath); err != nil {
				log.Fatalf("Failed to save image: %v", err)
			}
			lastImagePath = imagePath
		}

		if journal != nil {
			err := journal.RecordStep(runID, runlog.StepRecord{
				Iteration: st.Iteration,
				Subset:    st.Subset,
				Skipped:   st.Skipped,
				Seconds:   stepSeconds,
				Image:     imagePath,
			})
			if err != nil {
				log.Printf("Warning: failed to journal step: %v", err)
			}
		}
	}

	final := rec.Image()
	fmt.Printf("\nReconstruction completed in %.2f seconds!\n", time.Since(startTime).Seconds())
	fmt.Printf("Final image saved to: %s\n", lastImagePath)

	if cfg.FOM.Enabled {
		report, err := fom.Evaluate(final, cfg.FOMConfig())
		if err != nil {
			log.Fatalf("Failed to evaluate figures of merit: %v", err)
		}

		fmt.Printf("\nFigures of merit:\n")
		fmt.Printf("=================\n")
		fmt.Printf("Background mean: %.4f\n", report.BackgroundMean)
		fmt.Printf("Background variability: %.2f%%\n", report.BackgroundVariability)
		for _, r := range report.Regions {
			fmt.Printf("%-12s mean %.4f  CRC %6.2f%%  SNR %6.2f\n", r.Name, r.Mean, r.CRC, r.SNR)
		}
	}

	if cfg.Output.SaveSlices {
		if strings.HasPrefix(cfg.Output.Dir, "s3://") {
			log.Printf("Warning: slice rendering requires a local output directory, skipping")
			return
		}

		fmt.Println("\nRendering slice heatmaps along all axes...")
		viewer := visualization.NewViewer(final)
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(cfg.Output.Dir, "slices", axis)
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}

		if err := visualization.SaveConvergence(totals, filepath.Join(cfg.Output.Dir, "convergence.png")); err != nil {
			log.Printf("Warning: Failed to save convergence plot: %v", err)
		}
		fmt.Println("Rendering completed!")
	}
}

// loadEvents fetches and decodes an event file, local or remote.
func loadEvents(ctx context.Context, location string) ([]lorio.Event, error) {
	data, err := fetchBlob(ctx, location)
	if err != nil {
		return nil, err
	}
	return lorio.Decode(data)
}

// fetchBlob reads a whole blob from wherever the location points.
func fetchBlob(ctx context.Context, location string) ([]byte, error) {
	store, key, err := blob.Resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, key)
}

// saveImage writes an image as raw float32 voxels to a local path or
// an s3:// location.
func saveImage(ctx context.Context, im *voxel.Image, location string) error {
	var buf bytes.Buffer
	if err := im.WriteRaw(&buf); err != nil {
		return err
	}
	store, key, err := blob.Resolve(ctx, location)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, buf.Bytes())
}

// joinLocation appends a name to a directory or URI prefix without
// mangling the scheme.
func joinLocation(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
