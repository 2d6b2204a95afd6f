package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"topodisc/internal/discover"
)

// Compile-time interface guard.
var _ discover.Recorder = (*RunRepo)(nil)

// RunRepo persists discovery run history.
type RunRepo struct {
	store *SQLiteStore
}

// NewRunRepo creates the repository and applies its migrations.
func NewRunRepo(ctx context.Context, store *SQLiteStore) (*RunRepo, error) {
	if err := store.Migrate(ctx, "runs", runMigrations); err != nil {
		return nil, fmt.Errorf("migrate runs: %w", err)
	}
	return &RunRepo{store: store}, nil
}

var runMigrations = []Migration{
	{
		Version:     1,
		Description: "create runs and run_devices tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS runs (
					id            TEXT PRIMARY KEY,
					testbed_file  TEXT    NOT NULL,
					started_at    DATETIME NOT NULL,
					ended_at      DATETIME NOT NULL,
					status        TEXT    NOT NULL,
					rounds        INTEGER NOT NULL,
					links_added   INTEGER NOT NULL
				)
			`); err != nil {
				return err
			}
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS run_devices (
					run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
					device  TEXT NOT NULL,
					PRIMARY KEY (run_id, device)
				)
			`)
			return err
		},
	},
}

// RecordRun implements discover.Recorder.
func (r *RunRepo) RecordRun(ctx context.Context, run *discover.RunRecord) error {
	return r.store.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, testbed_file, started_at, ended_at, status, rounds, links_added)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.TestbedFile,
			run.StartedAt.Format(time.RFC3339), run.EndedAt.Format(time.RFC3339),
			run.Status, run.Rounds, run.LinksAdded,
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", run.ID, err)
		}
		for _, device := range run.DevicesAdded {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO run_devices (run_id, device) VALUES (?, ?)",
				run.ID, device,
			); err != nil {
				return fmt.Errorf("insert run device %s/%s: %w", run.ID, device, err)
			}
		}
		return nil
	})
}

// LastRun returns the most recently started run, or nil when the history is
// empty.
func (r *RunRepo) LastRun(ctx context.Context) (*discover.RunRecord, error) {
	row := r.store.DB().QueryRowContext(ctx, `
		SELECT id, testbed_file, started_at, ended_at, status, rounds, links_added
		FROM runs ORDER BY started_at DESC LIMIT 1`)

	var (
		run                runRow
		startedAt, endedAt string
	)
	err := row.Scan(&run.id, &run.testbedFile, &startedAt, &endedAt,
		&run.status, &run.rounds, &run.linksAdded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}

	out := &discover.RunRecord{
		ID:          run.id,
		TestbedFile: run.testbedFile,
		Status:      run.status,
		Rounds:      run.rounds,
		LinksAdded:  run.linksAdded,
	}
	if out.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if out.EndedAt, err = time.Parse(time.RFC3339, endedAt); err != nil {
		return nil, fmt.Errorf("parse ended_at: %w", err)
	}

	rows, err := r.store.DB().QueryContext(ctx,
		"SELECT device FROM run_devices WHERE run_id = ? ORDER BY device", out.ID)
	if err != nil {
		return nil, fmt.Errorf("query run devices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var device string
		if err := rows.Scan(&device); err != nil {
			return nil, fmt.Errorf("scan run device: %w", err)
		}
		out.DevicesAdded = append(out.DevicesAdded, device)
	}
	return out, rows.Err()
}

type runRow struct {
	id, testbedFile, status string
	rounds, linksAdded      int
}
