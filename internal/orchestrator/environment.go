package orchestrator

import (
	"context"
	"net/http"
	"time"

	"envbench/internal/client"
	"envbench/internal/config"
)

type Reachability string

const (
	ReachabilityUnknown     Reachability = "unknown"
	ReachabilityReachable   Reachability = "reachable"
	ReachabilityUnreachable Reachability = "unreachable"
)

const (
	ReasonUnreachable = "environment unreachable"
	ReasonAborted     = "environment unreachable: trial aborted after consecutive connection errors"
	ReasonInterrupted = "interrupted"
)

// EnvironmentState tracks the reachability of one environment during a run.
// It moves from unknown to reachable or unreachable after the probe, and
// from reachable to unreachable when a trial aborts.
type EnvironmentState struct {
	Name         string              `json:"name"`
	Label        string              `json:"label"`
	BaseURL      string              `json:"base_url"`
	Reachability Reachability        `json:"reachability"`
	Reason       string              `json:"reason,omitempty"`
	Probe        *client.ProbeResult `json:"probe,omitempty"`
}

func newEnvironmentState(env config.Environment) *EnvironmentState {
	return &EnvironmentState{
		Name:         env.Name,
		Label:        env.DisplayName(),
		BaseURL:      env.BaseURL,
		Reachability: ReachabilityUnknown,
	}
}

func (s *EnvironmentState) probe(ctx context.Context, httpClient *http.Client, health config.HealthConfig) {
	result := client.Probe(ctx, httpClient, client.JoinURL(s.BaseURL, health.Path), health.TimeoutDuration)
	s.Probe = &result
	if result.Reachable {
		s.Reachability = ReachabilityReachable
		return
	}
	s.Reachability = ReachabilityUnreachable
	s.Reason = ReasonUnreachable
	if result.Error != "" {
		s.Reason += ": " + result.Error
	}
}

func (s *EnvironmentState) markAborted() {
	s.Reachability = ReachabilityUnreachable
	s.Reason = ReasonAborted
}

// Usable reports whether trials may still run against the environment.
func (s *EnvironmentState) Usable() bool {
	return s.Reachability == ReachabilityReachable
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
