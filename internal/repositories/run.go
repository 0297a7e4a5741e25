package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

const runColumns = `id, task, destination, status, added_count, failed_count, error, started_at, finished_at`

// RunRepository persists sync and export runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a new running run, assigning an ID and start time when they are unset.
func (r *RunRepository) Start(run *models.Run) error {
	if run.Task == "" || run.Destination == "" {
		return fmt.Errorf("%w: run requires a task and a destination", shared.ErrInvalidInput)
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = models.RunRunning

	query := `
		INSERT INTO sync_runs (id, task, destination, status, added_count, failed_count, error, started_at)
		VALUES (?, ?, ?, ?, 0, 0, '', ?)
	`
	if _, err := r.db.Exec(query, run.ID, run.Task, run.Destination, run.Status, run.StartedAt); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish records the terminal state of a run along with its failed tracks.
//
// Any failures previously stored for the run are replaced.
func (r *RunRepository) Finish(run *models.Run) error {
	if run.Status == models.RunRunning || run.Status == "" {
		return fmt.Errorf("%w: run %s has no terminal status", shared.ErrInvalidInput, run.ID)
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	return withTx(r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE sync_runs
			SET status = ?, added_count = ?, failed_count = ?, error = ?, finished_at = ?
			WHERE id = ?
		`
		result, err := tx.Exec(query, run.Status, run.Added, run.Failed, run.Error, *run.FinishedAt, run.ID)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID)
		}

		if _, err := tx.Exec(`DELETE FROM sync_run_failures WHERE run_id = ?`, run.ID); err != nil {
			return fmt.Errorf("failed to clear run failures: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO sync_run_failures (run_id, position, name, artists) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare failure insert: %w", err)
		}
		defer stmt.Close()

		for i, track := range run.Failures {
			if _, err := stmt.Exec(run.ID, i, track.Name, joinArtists(track.Artists)); err != nil {
				return fmt.Errorf("failed to insert run failure: %w", err)
			}
		}
		return nil
	})
}

// Get retrieves a run by ID together with its failed tracks.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	failures, err := r.failures(id)
	if err != nil {
		return nil, err
	}
	run.Failures = failures
	return run, nil
}

// List retrieves the most recent runs, newest first. A non-positive limit returns every run.
func (r *RunRepository) List(limit int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Delete removes a run and its failures.
func (r *RunRepository) Delete(id string) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM sync_run_failures WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete run failures: %w", err)
		}

		result, err := tx.Exec(`DELETE FROM sync_runs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
		}
		return nil
	})
}

func (r *RunRepository) failures(runID string) ([]models.Track, error) {
	rows, err := r.db.Query(`SELECT name, artists FROM sync_run_failures WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run failures: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		var name, artists string
		if err := rows.Scan(&name, &artists); err != nil {
			return nil, fmt.Errorf("failed to scan run failure: %w", err)
		}
		tracks = append(tracks, models.Track{Name: name, Artists: splitArtists(artists)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// scanRun scans a single row into a [models.Run]
func scanRun(s scanner) (*models.Run, error) {
	var (
		run        models.Run
		status     string
		finishedAt sql.NullTime
	)

	err := s.Scan(
		&run.ID, &run.Task, &run.Destination, &status,
		&run.Added, &run.Failed, &run.Error, &run.StartedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
