// Package runlog journals reconstruction runs in a SQLite database so
// that parameter sweeps can be compared afterwards.
package runlog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Log records runs and their per-subset updates.
type Log struct {
	db *sql.DB
}

// RunMeta describes one reconstruction run.
type RunMeta struct {
	Input      string
	Events     int
	Iterations int
	Subsets    int
	TOF        bool
	Scatter    bool
}

// RunInfo is a journaled run.
type RunInfo struct {
	ID        int64
	StartedAt time.Time
	RunMeta
}

// StepRecord is one subset update of a run.
type StepRecord struct {
	Iteration int
	Subset    int
	Skipped   int
	Seconds   float64

	// Image is where the update's image was written, empty when it was
	// not saved.
	Image string
}

// Open creates or opens the journal at path.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY,
		started_at TEXT NOT NULL,
		input TEXT NOT NULL,
		events INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		subsets INTEGER NOT NULL,
		tof INTEGER NOT NULL,
		scatter INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS steps (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		iteration INTEGER NOT NULL,
		subset INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		seconds REAL NOT NULL,
		image TEXT NOT NULL,
		PRIMARY KEY (run_id, iteration, subset)
	)`); err != nil {
		return nil, fmt.Errorf("create steps table: %w", err)
	}
	return &Log{db: db}, nil
}

// StartRun journals a new run and returns its id.
func (l *Log) StartRun(meta RunMeta) (int64, error) {
	res, err := l.db.Exec(
		`INSERT INTO runs(started_at, input, events, iterations, subsets, tof, scatter)
		 VALUES(?,?,?,?,?,?,?)`,
		time.Now().UTC().Format(time.RFC3339), meta.Input, meta.Events,
		meta.Iterations, meta.Subsets, meta.TOF, meta.Scatter,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// RecordStep journals one subset update of a run.
func (l *Log) RecordStep(runID int64, step StepRecord) error {
	if _, err := l.db.Exec(
		`INSERT INTO steps(run_id, iteration, subset, skipped, seconds, image)
		 VALUES(?,?,?,?,?,?)`,
		runID, step.Iteration, step.Subset, step.Skipped, step.Seconds, step.Image,
	); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// Runs lists the journaled runs in start order.
func (l *Log) Runs() ([]RunInfo, error) {
	rows, err := l.db.Query(
		`SELECT id, started_at, input, events, iterations, subsets, tof, scatter
		 FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Input, &r.Events,
			&r.Iterations, &r.Subsets, &r.TOF, &r.Scatter); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("parse run start time: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the journaled updates of a run in execution order.
func (l *Log) Steps(runID int64) ([]StepRecord, error) {
	rows, err := l.db.Query(
		`SELECT iteration, subset, skipped, seconds, image FROM steps
		 WHERE run_id = ? ORDER BY iteration, subset`, runID)
	if err != nil {
		return nil, fmt.Errorf("select steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []StepRecord
	for rows.Next() {
		var s StepRecord
		if err := rows.Scan(&s.Iteration, &s.Subset, &s.Skipped, &s.Seconds, &s.Image); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// Close releases the database.
func (l *Log) Close() error { return l.db.Close() }
