package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/orchestrator"
	"envbench/internal/stats"
	"envbench/internal/trial"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(id string, started time.Time) *orchestrator.Report {
	return &orchestrator.Report{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Parameters: orchestrator.RunParameters{Repetitions: 2, Concurrency: 10},
		Environments: []*orchestrator.EnvironmentState{
			{Name: "host"}, {Name: "docker"},
		},
		Trials: []*trial.Result{
			{Environment: "host", Endpoint: "health", Repetition: 1, Status: trial.StatusCompleted, Metrics: trial.Metrics{TotalRequests: 100, Successful: 100, RPS: 500}},
			{Environment: "host", Endpoint: "health", Repetition: 2, Status: trial.StatusCompleted, Metrics: trial.Metrics{TotalRequests: 100, Successful: 99, RPS: 480}},
			{Environment: "docker", Endpoint: "health", Repetition: 1, Status: trial.StatusAborted, Aborted: true, Metrics: trial.Metrics{TotalRequests: 100}},
			{Environment: "docker", Endpoint: "health", Repetition: 2, Status: trial.StatusSkipped, SkipReason: "aborted"},
		},
		Groups: []orchestrator.GroupSummary{
			{Environment: "host", Endpoint: "health", Trials: 2, Completed: 2, MeanRPS: 490, StdDevRPS: 10, CVPercentRPS: 2.04, StabilityRPS: stats.StabilityExcellent},
			{Environment: "docker", Endpoint: "health", Trials: 2, Aborted: 1, Skipped: 1},
		},
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	first, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path, nil)
	require.NoError(t, err)
	defer second.Close()

	version, err := schemaVersion(second.db)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)
}

func TestSaveAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, sampleReport("older", base)))
	require.NoError(t, store.SaveRun(ctx, sampleReport("newer", base.Add(time.Hour))))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].ID)
	assert.Equal(t, "older", runs[1].ID)

	r := runs[1]
	assert.True(t, r.StartedAt.Equal(base))
	assert.Equal(t, 2, r.Environments)
	assert.Equal(t, 1, r.Endpoints)
	assert.Equal(t, 2, r.Repetitions)
	assert.Equal(t, 2, r.Completed)
	assert.Equal(t, 1, r.Aborted)
	assert.Equal(t, 1, r.Skipped)
	assert.False(t, r.Interrupted)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGroupsKeepReportOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, sampleReport("run-1", time.Now())))

	groups, err := store.Groups(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "host", groups[0].Environment)
	assert.InDelta(t, 490, groups[0].MeanRPS, 1e-9)
	assert.Equal(t, string(stats.StabilityExcellent), groups[0].StabilityRPS)
	assert.Equal(t, "docker", groups[1].Environment)
	assert.Equal(t, 1, groups[1].Skipped)
}

func TestSaveRunTwiceFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	report := sampleReport("dup", time.Now())

	require.NoError(t, store.SaveRun(ctx, report))
	require.Error(t, store.SaveRun(ctx, report))

	groups, err := store.Groups(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, groups, 2, "failed save must not leave partial rows")
}

func TestFindRunByPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, sampleReport("abc-111", time.Now())))
	require.NoError(t, store.SaveRun(ctx, sampleReport("abc-222", time.Now())))

	id, err := store.FindRun(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, "abc-111", id)

	_, err = store.FindRun(ctx, "abc")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = store.FindRun(ctx, "zzz")
	assert.ErrorContains(t, err, "no run")
}

func TestRunFinishedStoresReport(t *testing.T) {
	store := openTestStore(t)
	store.RunFinished(sampleReport("observed", time.Now()))

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "observed", runs[0].ID)
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *Store
	assert.NotPanics(t, func() {
		store.RunFinished(sampleReport("x", time.Now()))
	})
	assert.NoError(t, store.Close())
}
