package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"envbench/internal/config"
	"envbench/internal/trial"
)

// RunParameters records the settings a report was produced with.
type RunParameters struct {
	Repetitions    int     `json:"repetitions"`
	Concurrency    int     `json:"concurrency"`
	RequestTimeout string  `json:"request_timeout"`
	TrialDeadline  string  `json:"trial_deadline"`
	Cooldown       string  `json:"cooldown"`
	AbortThreshold int     `json:"abort_threshold"`
	RateLimit      float64 `json:"rate_limit,omitempty"`
	Warmup         int     `json:"warmup,omitempty"`
}

// Report is the output of a run: one trial record per configured
// (environment, endpoint, repetition) slot in execution order, and one
// group summary per (environment, endpoint) pair.
type Report struct {
	RunID        string              `json:"run_id"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	Interrupted  bool                `json:"interrupted"`
	Parameters   RunParameters       `json:"parameters"`
	Environments []*EnvironmentState `json:"environments"`
	Trials       []*trial.Result     `json:"trials"`
	Groups       []GroupSummary      `json:"groups"`
}

func newReport(cfg *config.Config) *Report {
	slots := len(cfg.Environments) * len(cfg.Endpoints) * cfg.Run.RepetitionCount()
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Parameters: RunParameters{
			Repetitions:    cfg.Run.RepetitionCount(),
			Concurrency:    cfg.Run.Concurrency,
			RequestTimeout: cfg.Run.RequestTimeoutDuration.String(),
			TrialDeadline:  cfg.Run.TrialDeadlineDuration.String(),
			Cooldown:       cfg.Run.CooldownDuration.String(),
			AbortThreshold: cfg.Run.AbortAfter(),
			RateLimit:      cfg.Run.RateLimit,
			Warmup:         cfg.Run.Warmup,
		},
		Environments: make([]*EnvironmentState, 0, len(cfg.Environments)),
		Trials:       make([]*trial.Result, 0, slots),
		Groups:       make([]GroupSummary, 0, len(cfg.Environments)*len(cfg.Endpoints)),
	}
}

func (r *Report) Group(environment, endpoint string) (GroupSummary, bool) {
	for _, g := range r.Groups {
		if g.Environment == environment && g.Endpoint == endpoint {
			return g, true
		}
	}
	return GroupSummary{}, false
}

func (r *Report) Environment(name string) (*EnvironmentState, bool) {
	for _, e := range r.Environments {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// TrialsFor returns the trials of one group in repetition order.
func (r *Report) TrialsFor(environment, endpoint string) []*trial.Result {
	var out []*trial.Result
	for _, t := range r.Trials {
		if t.Environment == environment && t.Endpoint == endpoint {
			out = append(out, t)
		}
	}
	return out
}

// Counts returns the number of trials per status.
func (r *Report) Counts() map[trial.Status]int {
	counts := make(map[trial.Status]int, 3)
	for _, t := range r.Trials {
		counts[t.Status]++
	}
	return counts
}
