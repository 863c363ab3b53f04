package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"envbench/internal/orchestrator"
	"envbench/internal/trial"
)

// Run is one stored run as listed by ListRuns.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Interrupted  bool
	Environments int
	Endpoints    int
	Repetitions  int
	Concurrency  int
	Completed    int
	Aborted      int
	Skipped      int
}

// Group is a stored group summary.
type Group struct {
	Environment      string
	Endpoint         string
	Trials           int
	Completed        int
	Aborted          int
	Skipped          int
	MeanRPS          float64
	StdDevRPS        float64
	CVPercentRPS     float64
	StabilityRPS     string
	MeanLatencyMs    float64
	CVPercentLatency float64
	MeanP95LatencyMs float64
	MeanErrorRate    float64
}

// Store persists finished runs to SQLite. It records the report when the
// run finishes; failures are logged and do not affect the run.
type Store struct {
	orchestrator.BaseObserver

	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path and migrates it. Use
// ":memory:" for a throwaway store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection so that :memory: databases are shared by all queries
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) RunFinished(report *orchestrator.Report) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.SaveRun(ctx, report); err != nil {
		s.logger.Warn("failed to save run history", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// SaveRun stores the run, its groups and its trials in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *orchestrator.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	counts := report.Counts()
	endpoints := 0
	if len(report.Environments) > 0 {
		endpoints = len(report.Groups) / len(report.Environments)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, interrupted, environments, endpoints, repetitions, concurrency, completed, aborted, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.StartedAt.UTC(), report.FinishedAt.UTC(), report.Interrupted,
		len(report.Environments), endpoints, report.Parameters.Repetitions, report.Parameters.Concurrency,
		counts[trial.StatusCompleted], counts[trial.StatusAborted], counts[trial.StatusSkipped])
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, g := range report.Groups {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_groups
			(run_id, environment, endpoint, trials, completed, aborted, skipped, mean_rps, std_dev_rps,
			 cv_percent_rps, stability_rps, mean_latency_ms, cv_percent_latency, mean_p95_latency_ms, mean_error_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, g.Environment, g.Endpoint, g.Trials, g.Completed, g.Aborted, g.Skipped,
			g.MeanRPS, g.StdDevRPS, g.CVPercentRPS, string(g.StabilityRPS), g.MeanLatencyMs,
			g.CVPercentLatency, g.MeanP95LatencyMs, g.MeanErrorRate)
		if err != nil {
			return fmt.Errorf("failed to insert group %s/%s: %w", g.Environment, g.Endpoint, err)
		}
	}

	for _, t := range report.Trials {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trials
			(run_id, environment, endpoint, repetition, status, skip_reason, total_requests, successful,
			 rps, avg_latency_ms, p95_latency_ms, p99_latency_ms, error_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, t.Environment, t.Endpoint, t.Repetition, string(t.Status), t.SkipReason,
			t.TotalRequests, t.Successful, t.RPS, t.AvgLatencyMs, t.P95LatencyMs, t.P99LatencyMs, t.ErrorRate)
		if err != nil {
			return fmt.Errorf("failed to insert trial %s/%s/%d: %w", t.Environment, t.Endpoint, t.Repetition, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, interrupted, environments, endpoints, repetitions,
		       concurrency, completed, aborted, skipped
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Interrupted, &r.Environments,
			&r.Endpoints, &r.Repetitions, &r.Concurrency, &r.Completed, &r.Aborted, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Groups returns the group summaries of a run in stored order.
func (s *Store) Groups(ctx context.Context, runID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT environment, endpoint, trials, completed, aborted, skipped, mean_rps, std_dev_rps,
		       cv_percent_rps, stability_rps, mean_latency_ms, cv_percent_latency,
		       mean_p95_latency_ms, mean_error_rate
		FROM run_groups
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Environment, &g.Endpoint, &g.Trials, &g.Completed, &g.Aborted, &g.Skipped,
			&g.MeanRPS, &g.StdDevRPS, &g.CVPercentRPS, &g.StabilityRPS, &g.MeanLatencyMs,
			&g.CVPercentLatency, &g.MeanP95LatencyMs, &g.MeanErrorRate); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// FindRun resolves a full run id or a unique prefix of one.
func (s *Store) FindRun(ctx context.Context, prefix string) (string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM runs WHERE id LIKE ? || '%' LIMIT 2", prefix)
	if err != nil {
		return "", fmt.Errorf("failed to find run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no run matches %q", prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("run id %q is ambiguous", prefix)
	}
}
