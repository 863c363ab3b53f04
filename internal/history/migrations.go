package history

import (
	"database/sql"
	"fmt"
)

type migration struct {
	Version int
	Name    string
	Up      string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "Create runs, groups and trials tables",
		Up: `
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				started_at DATETIME NOT NULL,
				finished_at DATETIME NOT NULL,
				interrupted INTEGER NOT NULL DEFAULT 0,
				environments INTEGER NOT NULL,
				endpoints INTEGER NOT NULL,
				repetitions INTEGER NOT NULL,
				concurrency INTEGER NOT NULL,
				completed INTEGER NOT NULL,
				aborted INTEGER NOT NULL,
				skipped INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS run_groups (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				environment TEXT NOT NULL,
				endpoint TEXT NOT NULL,
				trials INTEGER NOT NULL,
				completed INTEGER NOT NULL,
				aborted INTEGER NOT NULL,
				skipped INTEGER NOT NULL,
				mean_rps REAL NOT NULL,
				std_dev_rps REAL NOT NULL,
				cv_percent_rps REAL NOT NULL,
				stability_rps TEXT NOT NULL,
				mean_latency_ms REAL NOT NULL,
				cv_percent_latency REAL NOT NULL,
				mean_p95_latency_ms REAL NOT NULL,
				mean_error_rate REAL NOT NULL,
				PRIMARY KEY (run_id, environment, endpoint)
			);

			CREATE TABLE IF NOT EXISTS trials (
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				environment TEXT NOT NULL,
				endpoint TEXT NOT NULL,
				repetition INTEGER NOT NULL,
				status TEXT NOT NULL,
				skip_reason TEXT NOT NULL DEFAULT '',
				total_requests INTEGER NOT NULL,
				successful INTEGER NOT NULL,
				rps REAL NOT NULL,
				avg_latency_ms REAL NOT NULL,
				p95_latency_ms REAL NOT NULL,
				p99_latency_ms REAL NOT NULL,
				error_rate REAL NOT NULL,
				PRIMARY KEY (run_id, environment, endpoint, repetition)
			);
		`,
	},
	{
		Version: 2,
		Name:    "Add indexes for run listing and per-environment lookups",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_groups_environment ON run_groups(environment, endpoint);
		`,
	},
}

// migrate applies every migration newer than the recorded schema version.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if _, err := db.Exec(m.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	return version, nil
}
