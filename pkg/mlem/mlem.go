// Package mlem implements maximum-likelihood expectation maximization
// for PET image reconstruction, including its ordered-subsets variant
// (OSEM). The update rule follows Shepp and Vardi's "Maximum
// Likelihood Reconstruction for Emission Tomography" (IEEE Trans. Med.
// Imaging 1, 1982): each event is forward projected through the
// current estimate, the measured-to-projected ratios are smeared back
// along the rays, and the estimate is rescaled voxel by voxel under
// the sensitivity normalization.
package mlem

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"petrec/pkg/lor"
	"petrec/pkg/projector"
	"petrec/pkg/smooth"
	"petrec/pkg/voxel"
)

// Status reports a completed subset update.
type Status struct {
	// Iteration and Subset locate the update; both count from zero.
	Iteration int
	Subset    int

	// Subsets echoes the configured subset count.
	Subsets int

	// Skipped counts the events of this subset that contributed
	// nothing: rays missing the grid, coincident endpoints, or a
	// non-positive forward projection.
	Skipped int
}

// ProgressFunc receives a Status after every subset update.
type ProgressFunc func(Status)

// Params configures a reconstruction run.
type Params struct {
	// LORs holds the measured events. The driver reads it but never
	// mutates it; fold scatter corrections in beforehand.
	LORs []lor.LOR

	// FOV is the reconstruction grid.
	FOV voxel.FOV

	// Iterations is the number of passes over all subsets.
	Iterations int

	// Subsets splits the events for OSEM; 1 gives plain MLEM. Event i
	// belongs to subset i mod Subsets for the whole run.
	Subsets int

	// Workers sets the size of the worker pool for the projection
	// loops. Values below 1 mean a single worker.
	Workers int

	// TOF enables time-of-flight weighting when non-nil.
	TOF *projector.TOF

	// Sensitivity normalizes the update. When nil, a uniform
	// sensitivity of one is used. The image is treated as read-only
	// and its geometry must match FOV exactly.
	Sensitivity *voxel.Image

	// Filter, when non-nil, smooths the estimate at the end of every
	// full iteration. It must be built for the same grid as FOV.
	Filter *smooth.Filter

	// Progress, when non-nil, is called after every subset update.
	Progress ProgressFunc
}

// Reconstruction is a pull-driven OSEM run. Every Step call performs
// exactly one subset update and hands back the new estimate; no work
// happens between calls, so the caller decides how far to iterate.
type Reconstruction struct {
	params  Params
	proj    projector.Projector
	est     *voxel.Image
	sens    []float64
	subsets [][]int
	step    int
	total   int
	workers int
}

// New validates the configuration and prepares a run starting from a
// uniform estimate of ones.
func New(params Params) (*Reconstruction, error) {
	if params.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", params.Iterations)
	}
	if params.Subsets <= 0 {
		return nil, fmt.Errorf("subsets must be positive, got %d", params.Subsets)
	}
	if len(params.LORs) == 0 {
		return nil, fmt.Errorf("no events to reconstruct from")
	}
	if params.Subsets > len(params.LORs) {
		return nil, fmt.Errorf("more subsets (%d) than events (%d)", params.Subsets, len(params.LORs))
	}
	if params.Sensitivity != nil && !params.Sensitivity.FOV().Equal(params.FOV) {
		return nil, fmt.Errorf("sensitivity image geometry mismatch: expected %s, got %s",
			params.FOV, params.Sensitivity.FOV())
	}
	if params.Filter != nil && !params.Filter.FOV().Equal(params.FOV) {
		return nil, fmt.Errorf("smoothing filter geometry mismatch: expected %s, got %s",
			params.FOV, params.Filter.FOV())
	}

	proj, err := projector.NewSiddon(params.FOV, params.TOF)
	if err != nil {
		return nil, err
	}

	workers := params.Workers
	if workers < 1 {
		workers = 1
	}

	// An event's subset is fixed by its position in the input, so a
	// given data set always partitions the same way.
	subsets := make([][]int, params.Subsets)
	for i := range params.LORs {
		s := i % params.Subsets
		subsets[s] = append(subsets[s], i)
	}

	var sens []float64
	if params.Sensitivity != nil {
		sens = params.Sensitivity.Data()
	} else {
		sens = voxel.Ones(params.FOV).Data()
	}

	return &Reconstruction{
		params:  params,
		proj:    proj,
		est:     voxel.Ones(params.FOV),
		sens:    sens,
		subsets: subsets,
		total:   params.Iterations * params.Subsets,
		workers: workers,
	}, nil
}

// Image returns the current estimate. Updates never write into a
// previously returned image; each Step builds a fresh one.
func (r *Reconstruction) Image() *voxel.Image { return r.est }

// Steps returns the total number of subset updates the run performs.
func (r *Reconstruction) Steps() int { return r.total }

// Step performs the next subset update and returns the new estimate
// together with its status. Once the configured number of updates has
// been delivered it returns ok=false.
func (r *Reconstruction) Step() (*voxel.Image, Status, bool) {
	if r.step >= r.total {
		return nil, Status{}, false
	}
	iteration := r.step / r.params.Subsets
	subset := r.step % r.params.Subsets
	r.step++

	skipped := r.update(subset)

	if r.params.Filter != nil && subset == r.params.Subsets-1 {
		r.params.Filter.Apply(r.est)
	}

	st := Status{
		Iteration: iteration,
		Subset:    subset,
		Subsets:   r.params.Subsets,
		Skipped:   skipped,
	}
	if r.params.Progress != nil {
		r.params.Progress(st)
	}
	return r.est, st, true
}

// update runs one subset through the worker pool and replaces the
// estimate.
func (r *Reconstruction) update(subset int) int {
	events := r.subsets[subset]
	est := r.est.Data()
	nvox := len(est)

	// Fan out contiguous chunks over the pool. Each worker owns a row
	// buffer and a private back-projection accumulator, so the hot
	// loop takes no locks.
	perWorker := (len(events) + r.workers - 1) / r.workers
	accs := make([][]float64, r.workers)
	skips := make([]int, r.workers)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			start := workerID * perWorker
			if start >= len(events) {
				return
			}
			end := start + perWorker
			if end > len(events) {
				end = len(events)
			}

			acc := make([]float64, nvox)
			accs[workerID] = acc
			row := r.proj.NewRow()

			for _, ei := range events[start:end] {
				l := r.params.LORs[ei]
				r.proj.FillRow(l, &row)

				forward := 0.0
				for _, e := range row {
					forward += e.Weight * est[e.Index]
				}
				if forward <= 0 {
					skips[workerID]++
					continue
				}

				ratio := float64(l.AdditiveCorrection) / forward
				for _, e := range row {
					acc[e.Index] += e.Weight * ratio
				}
			}
		}(w)
	}
	wg.Wait()

	// Merge the private accumulators in worker order so that identical
	// runs produce bit-for-bit identical images.
	merged := make([]float64, nvox)
	for _, acc := range accs {
		if acc != nil {
			floats.Add(merged, acc)
		}
	}

	// Rescale into a fresh image. Voxels the scanner cannot see keep
	// their current value.
	next := voxel.Zeros(r.est.FOV())
	nd := next.Data()
	for v := range nd {
		if r.sens[v] > 0 {
			nd[v] = est[v] * merged[v] / r.sens[v]
		} else {
			nd[v] = est[v]
		}
	}
	r.est = next

	skipped := 0
	for _, s := range skips {
		skipped += s
	}
	return skipped
}
