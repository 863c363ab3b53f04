package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"envbench/internal/cli"
	"envbench/internal/config"
	"envbench/internal/orchestrator"
	"envbench/internal/trial"
)

const resultsFile = "results.json"

// Results is the document written to results.json at the end of a run.
type Results struct {
	Meta         ResultMeta                       `json:"meta"`
	Summary      RunSummary                       `json:"summary"`
	Environments []*orchestrator.EnvironmentState `json:"environments"`
	Groups       []orchestrator.GroupSummary      `json:"groups"`
	Comparisons  []Comparison                     `json:"comparisons,omitempty"`
	Bottlenecks  []Bottleneck                     `json:"bottlenecks,omitempty"`
	Trials       []*trial.Result                  `json:"trials"`
}

type ResultMeta struct {
	RunID       string                     `json:"run_id"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
	Interrupted bool                       `json:"interrupted"`
	Parameters  orchestrator.RunParameters `json:"parameters"`
}

type RunSummary struct {
	TotalTrials     int   `json:"total_trials"`
	CompletedTrials int   `json:"completed_trials"`
	AbortedTrials   int   `json:"aborted_trials"`
	SkippedTrials   int   `json:"skipped_trials"`
	TotalDurationMs int64 `json:"total_duration_ms"`
}

// Writer exports each finished trial to its own file as the run progresses,
// then the full report to results.json. Files go to <results_dir>/<run id>.
type Writer struct {
	orchestrator.BaseObserver

	resultsDir    string
	requestDetail bool
	comparisons   []config.ComparisonConfig

	runDir string
}

func NewWriter(cfg *config.Config) *Writer {
	return &Writer{
		resultsDir:    cfg.Output.ResultsDir,
		requestDetail: cfg.Output.RequestDetail,
		comparisons:   cfg.Comparisons,
	}
}

func (w *Writer) RunStarted(report *orchestrator.Report) {
	w.runDir = filepath.Join(w.resultsDir, report.RunID)
}

func (w *Writer) TrialFinished(result *trial.Result) {
	if result.Status == trial.StatusSkipped {
		return
	}
	if _, err := w.ExportTrial(result); err != nil {
		cli.Warnf("Failed to export trial %s/%s #%d: %v", result.Environment, result.Endpoint, result.Repetition, err)
	}
}

func (w *Writer) RunFinished(report *orchestrator.Report) {
	path, err := w.ExportReport(report)
	if err != nil {
		cli.Failf("Failed to export results: %v", err)
		return
	}
	cli.Infof("Results: %s", path)
}

// ExportTrial writes one trial to trials/<environment>_<endpoint>_<repetition>.json.
func (w *Writer) ExportTrial(result *trial.Result) (string, error) {
	dir := filepath.Join(w.dir(), "trials")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create results dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%d.json", fileSafe(result.Environment), fileSafe(result.Endpoint), result.Repetition)
	path := filepath.Join(dir, name)
	return path, writeJSON(path, w.trimmed(result))
}

func (w *Writer) ExportReport(report *orchestrator.Report) (string, error) {
	if w.runDir == "" && report.RunID != "" {
		w.runDir = filepath.Join(w.resultsDir, report.RunID)
	}
	if err := os.MkdirAll(w.dir(), 0o750); err != nil {
		return "", fmt.Errorf("failed to create results dir: %w", err)
	}

	path := filepath.Join(w.dir(), resultsFile)
	return path, writeJSON(path, w.Build(report))
}

// Build assembles the results document from report without recomputing
// any trial or group statistic.
func (w *Writer) Build(report *orchestrator.Report) *Results {
	counts := report.Counts()
	results := &Results{
		Meta: ResultMeta{
			RunID:       report.RunID,
			StartedAt:   report.StartedAt,
			FinishedAt:  report.FinishedAt,
			Interrupted: report.Interrupted,
			Parameters:  report.Parameters,
		},
		Summary: RunSummary{
			TotalTrials:     len(report.Trials),
			CompletedTrials: counts[trial.StatusCompleted],
			AbortedTrials:   counts[trial.StatusAborted],
			SkippedTrials:   counts[trial.StatusSkipped],
			TotalDurationMs: report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		},
		Environments: report.Environments,
		Groups:       report.Groups,
		Bottlenecks:  Bottlenecks(report),
		Trials:       make([]*trial.Result, 0, len(report.Trials)),
	}
	for _, pair := range w.comparisons {
		results.Comparisons = append(results.Comparisons, Compare(report, pair.Baseline, pair.Candidate)...)
	}
	for _, t := range report.Trials {
		results.Trials = append(results.Trials, w.trimmed(t))
	}
	return results
}

// trimmed drops per-request samples unless request detail was asked for.
func (w *Writer) trimmed(result *trial.Result) *trial.Result {
	if w.requestDetail || len(result.Requests) == 0 {
		return result
	}
	c := *result
	c.Requests = nil
	return &c
}

func (w *Writer) dir() string {
	if w.runDir != "" {
		return w.runDir
	}
	return w.resultsDir
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func fileSafe(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
