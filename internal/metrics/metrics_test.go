package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/client"
	"envbench/internal/orchestrator"
	"envbench/internal/trial"
)

func TestRequestCompletedCountsByOutcome(t *testing.T) {
	r := NewRecorder()
	spec := trial.Spec{Environment: "host", Endpoint: "health"}

	r.RequestCompleted(spec, client.RequestSample{Outcome: client.OutcomeSuccess, Completed: true, Latency: time.Millisecond})
	r.RequestCompleted(spec, client.RequestSample{Outcome: client.OutcomeSuccess, Completed: true, Latency: 2 * time.Millisecond})
	r.RequestCompleted(spec, client.RequestSample{Outcome: client.OutcomeTimeout})

	assert.InDelta(t, 2, testutil.ToFloat64(r.requests.WithLabelValues("host", "health", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.requests.WithLabelValues("host", "health", "timeout")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestTrialLifecycle(t *testing.T) {
	r := NewRecorder()

	r.TrialStarted(trial.Spec{Environment: "host", Endpoint: "health"})
	assert.InDelta(t, 1, testutil.ToFloat64(r.running), 0)

	r.TrialFinished(&trial.Result{
		Environment: "host",
		Endpoint:    "health",
		Status:      trial.StatusCompleted,
		Metrics:     trial.Metrics{RPS: 250, DurationSeconds: 0.4},
	})
	assert.InDelta(t, 0, testutil.ToFloat64(r.running), 0)
	assert.InDelta(t, 250, testutil.ToFloat64(r.trialRPS.WithLabelValues("host", "health")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.trials.WithLabelValues("host", "health", "completed")), 0)

	r.TrialFinished(&trial.Result{Environment: "docker", Endpoint: "health", Status: trial.StatusSkipped})
	assert.InDelta(t, 1, testutil.ToFloat64(r.trials.WithLabelValues("docker", "health", "skipped")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.trialDuration))
}

func TestEnvironmentProbed(t *testing.T) {
	r := NewRecorder()
	r.EnvironmentProbed(orchestrator.EnvironmentState{Name: "host", Reachability: orchestrator.ReachabilityReachable})
	r.EnvironmentProbed(orchestrator.EnvironmentState{Name: "docker", Reachability: orchestrator.ReachabilityUnreachable})

	assert.InDelta(t, 1, testutil.ToFloat64(r.reachable.WithLabelValues("host")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(r.reachable.WithLabelValues("docker")), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.RequestCompleted(trial.Spec{Environment: "host", Endpoint: "health"}, client.RequestSample{Outcome: client.OutcomeHTTPError, Completed: true})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `envbench_requests_total{endpoint="health",environment="host",outcome="http_error"} 1`)
}
