package runlog

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "journal", "runs.db"))
	if err != nil {
		t.Fatalf("Failed to open run log: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestStartRunAndSteps(t *testing.T) {
	log := openTestLog(t)

	meta := RunMeta{
		Input:      "lors.bin",
		Events:     100000,
		Iterations: 4,
		Subsets:    2,
		TOF:        true,
		Scatter:    false,
	}
	runID, err := log.StartRun(meta)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	want := []StepRecord{
		{Iteration: 0, Subset: 0, Skipped: 3, Seconds: 1.25, Image: "out/img_00.raw"},
		{Iteration: 0, Subset: 1, Skipped: 1, Seconds: 1.19, Image: ""},
		{Iteration: 1, Subset: 0, Skipped: 3, Seconds: 1.21, Image: "out/img_01.raw"},
	}
	for _, s := range want {
		if err := log.RecordStep(runID, s); err != nil {
			t.Fatalf("Failed to record step %+v: %v", s, err)
		}
	}

	steps, err := log.Steps(runID)
	if err != nil {
		t.Fatalf("Failed to query steps: %v", err)
	}
	if len(steps) != len(want) {
		t.Fatalf("Expected %d steps, got %d", len(want), len(steps))
	}
	for i, s := range steps {
		if s != want[i] {
			t.Errorf("Step %d: expected %+v, got %+v", i, want[i], s)
		}
	}
}

func TestRuns(t *testing.T) {
	log := openTestLog(t)

	first, err := log.StartRun(RunMeta{Input: "a.bin", Events: 10, Iterations: 1, Subsets: 1})
	if err != nil {
		t.Fatalf("Failed to start first run: %v", err)
	}
	second, err := log.StartRun(RunMeta{Input: "b.bin", Events: 20, Iterations: 2, Subsets: 2, Scatter: true})
	if err != nil {
		t.Fatalf("Failed to start second run: %v", err)
	}
	if first == second {
		t.Fatalf("Expected distinct run ids, got %d twice", first)
	}

	runs, err := log.Runs()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != first || runs[1].ID != second {
		t.Errorf("Runs out of start order: %d, %d", runs[0].ID, runs[1].ID)
	}
	if runs[1].Input != "b.bin" || runs[1].Events != 20 || !runs[1].Scatter {
		t.Errorf("Second run metadata did not survive: %+v", runs[1])
	}
	if time.Since(runs[0].StartedAt) > time.Hour {
		t.Errorf("Implausible run start time %v", runs[0].StartedAt)
	}
}

func TestStepsScopedToRun(t *testing.T) {
	log := openTestLog(t)

	a, err := log.StartRun(RunMeta{Input: "a.bin", Events: 1, Iterations: 1, Subsets: 1})
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	b, err := log.StartRun(RunMeta{Input: "b.bin", Events: 1, Iterations: 1, Subsets: 1})
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	if err := log.RecordStep(a, StepRecord{Iteration: 0, Subset: 0}); err != nil {
		t.Fatalf("Failed to record step: %v", err)
	}

	steps, err := log.Steps(b)
	if err != nil {
		t.Fatalf("Failed to query steps: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("Expected no steps for run %d, got %d", b, len(steps))
	}
}

func TestOpenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open run log: %v", err)
	}
	runID, err := log.StartRun(RunMeta{Input: "a.bin", Events: 5, Iterations: 1, Subsets: 1})
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Failed to close run log: %v", err)
	}

	// Reopening must find the journaled run.
	log, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen run log: %v", err)
	}
	defer log.Close()

	runs, err := log.Runs()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Errorf("Expected the journaled run to survive reopening, got %+v", runs)
	}
}
