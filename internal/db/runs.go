package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("render run not found")

// RenderRun is one persisted render call.
type RenderRun struct {
	RunID        string    `json:"run_id"`
	Mode         string    `json:"mode"` // "live" or "batch"
	Label        string    `json:"label"`
	Detections   int       `json:"detections"`
	BrightCells  int       `json:"bright_cells"`
	Blank        bool      `json:"blank"`
	MeanX        float64   `json:"mean_x"`
	MeanY        float64   `json:"mean_y"`
	SpreadX      float64   `json:"spread_x"`
	SpreadY      float64   `json:"spread_y"`
	WorkingPath  string    `json:"working_path"`
	UpscaledPath string    `json:"upscaled_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordRun inserts run. An empty RunID gets a fresh UUID and a zero
// CreatedAt is set to now; both are written back into run.
func (db *DB) RecordRun(run *RenderRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO render_runs (
			run_id, mode, label, detections, bright_cells, blank,
			mean_x, mean_y, spread_x, spread_y,
			working_path, upscaled_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Mode, run.Label, run.Detections, run.BrightCells, run.Blank,
		run.MeanX, run.MeanY, run.SpreadX, run.SpreadY,
		run.WorkingPath, run.UpscaledPath, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert render run: %w", err)
	}
	return nil
}

const runColumns = `run_id, mode, label, detections, bright_cells, blank,
	mean_x, mean_y, spread_x, spread_y, working_path, upscaled_path, created_at`

// ListRuns returns the newest runs first. limit <= 0 means 100.
func (db *DB) ListRuns(limit int) ([]RenderRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM render_runs
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list render runs: %w", err)
	}
	defer rows.Close()

	var runs []RenderRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches a run by id.
func (db *DB) GetRun(runID string) (*RenderRun, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM render_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RenderRun, error) {
	var (
		run              RenderRun
		meanX, meanY     sql.NullFloat64
		spreadX, spreadY sql.NullFloat64
		createdAt        int64
	)
	err := s.Scan(
		&run.RunID, &run.Mode, &run.Label, &run.Detections, &run.BrightCells, &run.Blank,
		&meanX, &meanY, &spreadX, &spreadY,
		&run.WorkingPath, &run.UpscaledPath, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("scan render run: %w", err)
	}
	run.MeanX, run.MeanY = meanX.Float64, meanY.Float64
	run.SpreadX, run.SpreadY = spreadX.Float64, spreadY.Float64
	run.CreatedAt = time.Unix(0, createdAt)
	return run, nil
}
