package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/client"
	"envbench/internal/config"
	"envbench/internal/orchestrator"
	"envbench/internal/trial"
)

func sampleTrial(env string, status trial.Status) *trial.Result {
	r := &trial.Result{
		Environment: env,
		Endpoint:    "root",
		Repetition:  1,
		Status:      status,
		Duration:    time.Second,
	}
	if status != trial.StatusSkipped {
		r.Requests = []client.RequestSample{
			{Outcome: client.OutcomeSuccess, Completed: true, StatusCode: 200, Latency: 5 * time.Millisecond},
			{Outcome: client.OutcomeTimeout},
		}
	}
	trial.Summarize(r)
	return r
}

func writerReport() *orchestrator.Report {
	report := testReport()
	report.StartedAt = time.Now().Add(-time.Minute)
	report.FinishedAt = time.Now()
	report.Trials = []*trial.Result{
		sampleTrial("bare", trial.StatusCompleted),
		sampleTrial("docker", trial.StatusSkipped),
	}
	return report
}

func TestWriterExportsTrialsAndResults(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Output:      config.OutputConfig{ResultsDir: dir},
		Comparisons: []config.ComparisonConfig{{Baseline: "bare", Candidate: "docker"}},
	}
	w := NewWriter(cfg)
	report := writerReport()

	w.RunStarted(report)
	trialPath, err := w.ExportTrial(report.Trials[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1", "trials", "bare_root_1.json"), trialPath)

	path, err := w.ExportReport(report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1", "results.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var results Results
	require.NoError(t, json.Unmarshal(data, &results))

	assert.Equal(t, "run-1", results.Meta.RunID)
	assert.Equal(t, 2, results.Summary.TotalTrials)
	assert.Equal(t, 1, results.Summary.SkippedTrials)
	assert.Len(t, results.Groups, 6)
	assert.Len(t, results.Comparisons, 3)
	assert.NotEmpty(t, results.Bottlenecks)
	require.Len(t, results.Trials, 2)
	assert.Empty(t, results.Trials[0].Requests, "request samples are dropped without request_detail")
	assert.Equal(t, 2, results.Trials[0].TotalRequests)
	assert.Equal(t, 0.5, results.Trials[0].ErrorRate)
}

func TestWriterKeepsRequestDetail(t *testing.T) {
	cfg := &config.Config{Output: config.OutputConfig{ResultsDir: t.TempDir(), RequestDetail: true}}
	w := NewWriter(cfg)

	results := w.Build(writerReport())
	assert.Len(t, results.Trials[0].Requests, 2)
}

func TestWriterDoesNotMutateReport(t *testing.T) {
	cfg := &config.Config{Output: config.OutputConfig{ResultsDir: t.TempDir()}}
	report := writerReport()

	NewWriter(cfg).Build(report)
	assert.Len(t, report.Trials[0].Requests, 2)
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "api_v1_users", fileSafe("api/v1 users"))
	assert.Equal(t, "bare-metal.1", fileSafe("bare-metal.1"))
}
