package trial

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/client"
)

// fakeDispatcher sleeps for latency and tracks the number of requests in flight.
type fakeDispatcher struct {
	latency  time.Duration
	outcome  client.Outcome
	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, _ string) client.RequestSample {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	start := time.Now()
	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return client.RequestSample{Start: start, Latency: time.Since(start), Outcome: client.OutcomeTimeout, Err: ctx.Err().Error()}
	}

	s := client.RequestSample{Start: start, Latency: time.Since(start), Outcome: f.outcome}
	if f.outcome == client.OutcomeSuccess {
		s.Completed = true
		s.StatusCode = http.StatusOK
		s.Bytes = 1024
	}
	return s
}

func baseSpec() Spec {
	return Spec{
		Environment:    "bare",
		Endpoint:       "root",
		URL:            "http://example.invalid/",
		Requests:       100,
		Concurrency:    10,
		Deadline:       10 * time.Second,
		AbortThreshold: 5,
	}
}

func TestConcurrencyBound(t *testing.T) {
	d := &fakeDispatcher{latency: 5 * time.Millisecond}
	spec := baseSpec()
	spec.Concurrency = 7

	res := NewRunner(d, nil).Run(context.Background(), spec)

	assert.LessOrEqual(t, d.peak.Load(), int64(7))
	assert.Equal(t, int64(100), d.calls.Load())
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestAllSuccessScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dispatcher, err := client.NewDispatcher(client.NewHTTPClient(10), 5*time.Second)
	require.NoError(t, err)

	spec := baseSpec()
	spec.URL = srv.URL
	res := NewRunner(dispatcher, nil).Run(context.Background(), spec)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 100, res.TotalRequests)
	assert.Equal(t, 100, res.Successful)
	assert.Zero(t, res.ErrorRate)

	assert.GreaterOrEqual(t, res.P50LatencyMs, 10.0)
	assert.LessOrEqual(t, res.P50LatencyMs, res.P95LatencyMs)
	assert.LessOrEqual(t, res.P95LatencyMs, res.P99LatencyMs)
	assert.LessOrEqual(t, res.P99LatencyMs, res.MaxLatencyMs)
	assert.GreaterOrEqual(t, res.P50LatencyMs, res.MinLatencyMs)

	// at most concurrency / latency requests per second
	assert.Greater(t, res.RPS, 0.0)
	assert.LessOrEqual(t, res.RPS, 10/0.010*1.05)
	assert.InDelta(t, float64(res.Successful), res.RPS*res.DurationSeconds, 0.5)
}

func TestAbortAfterConsecutiveConnectionErrors(t *testing.T) {
	d := &fakeDispatcher{outcome: client.OutcomeConnectionError}
	spec := baseSpec()
	spec.Concurrency = 1

	res := NewRunner(d, nil).Run(context.Background(), spec)

	assert.True(t, res.Aborted)
	assert.Equal(t, StatusAborted, res.Status)
	assert.GreaterOrEqual(t, res.ConnectionErrors, 5)
	assert.Less(t, res.TotalRequests, spec.Requests)
	assert.LessOrEqual(t, res.Successful+res.Failed, spec.Requests)
}

func TestAbortDisabledWithZeroThreshold(t *testing.T) {
	d := &fakeDispatcher{outcome: client.OutcomeConnectionError}
	spec := baseSpec()
	spec.Requests = 20
	spec.AbortThreshold = 0

	res := NewRunner(d, nil).Run(context.Background(), spec)

	assert.False(t, res.Aborted)
	assert.Equal(t, 20, res.ConnectionErrors)
	assert.Equal(t, 1.0, res.ErrorRate)
}

func TestHTTPErrorsDoNotAbort(t *testing.T) {
	d := &fakeDispatcher{outcome: client.OutcomeHTTPError}
	spec := baseSpec()
	spec.Requests = 20

	res := NewRunner(d, nil).Run(context.Background(), spec)

	assert.False(t, res.Aborted)
	assert.Equal(t, 20, res.HTTPErrors)
	assert.Zero(t, res.RPS)
}

func TestDeadlineRecordsEveryRequest(t *testing.T) {
	d := &fakeDispatcher{latency: 50 * time.Millisecond}
	spec := baseSpec()
	spec.Requests = 50
	spec.Concurrency = 2
	spec.Deadline = 120 * time.Millisecond

	res := NewRunner(d, nil).Run(context.Background(), spec)

	assert.Equal(t, StatusCompleted, res.Status)
	require.Len(t, res.Requests, 50)
	assert.Equal(t, 50, res.Successful+res.Failed)
	assert.Positive(t, res.Timeouts)
	assert.Positive(t, res.Successful)
	assert.InDelta(t, float64(res.Timeouts)/50, res.ErrorRate, 1e-9)
	assert.Less(t, res.DurationSeconds, 1.0)
}

func TestCancelledParentContext(t *testing.T) {
	d := &fakeDispatcher{latency: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewRunner(d, nil).Run(ctx, baseSpec())

	require.Len(t, res.Requests, 100)
	assert.Equal(t, 100, res.Timeouts)
	assert.Equal(t, reasonCancelled, res.Requests[0].Err)
	assert.True(t, res.Interrupted)
	assert.False(t, res.Aborted)
}

func TestCompletedTrialIsNotInterrupted(t *testing.T) {
	res := NewRunner(&fakeDispatcher{}, nil).Run(context.Background(), baseSpec())
	assert.False(t, res.Interrupted)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestDeadlineIsNotInterruption(t *testing.T) {
	spec := baseSpec()
	spec.Deadline = 20 * time.Millisecond
	res := NewRunner(&fakeDispatcher{latency: 50 * time.Millisecond}, nil).Run(context.Background(), spec)
	assert.False(t, res.Interrupted)
	assert.Positive(t, res.Timeouts)
}

func TestRateLimitPacesRequests(t *testing.T) {
	d := &fakeDispatcher{}
	spec := baseSpec()
	spec.Requests = 6
	spec.RateLimit = 50

	start := time.Now()
	res := NewRunner(d, nil).Run(context.Background(), spec)

	assert.Equal(t, 6, res.Successful)
	// first token is immediate, the next five arrive every 20ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestOnSampleSeesEverySample(t *testing.T) {
	d := &fakeDispatcher{latency: time.Millisecond}
	var seen atomic.Int64
	spec := baseSpec()
	spec.OnSample = func(client.RequestSample) { seen.Add(1) }

	NewRunner(d, nil).Run(context.Background(), spec)
	assert.Equal(t, int64(100), seen.Load())
}

func TestZeroRequests(t *testing.T) {
	spec := baseSpec()
	spec.Requests = 0
	res := NewRunner(&fakeDispatcher{}, nil).Run(context.Background(), spec)
	assert.Zero(t, res.TotalRequests)
	assert.False(t, res.HasData())
}

func TestWarmup(t *testing.T) {
	d := &fakeDispatcher{}
	ok := NewRunner(d, nil).Warmup(context.Background(), "http://example.invalid", 12, 4)
	assert.Equal(t, 12, ok)
	assert.Equal(t, int64(12), d.calls.Load())
	assert.LessOrEqual(t, d.peak.Load(), int64(4))
}

func TestSummarizeIsOrderIndependent(t *testing.T) {
	samples := []client.RequestSample{
		{Outcome: client.OutcomeSuccess, Latency: 30 * time.Millisecond, Bytes: 100},
		{Outcome: client.OutcomeTimeout},
		{Outcome: client.OutcomeSuccess, Latency: 10 * time.Millisecond, Bytes: 100},
		{Outcome: client.OutcomeHTTPError, StatusCode: 500},
		{Outcome: client.OutcomeSuccess, Latency: 20 * time.Millisecond, Bytes: 100},
	}
	reversed := make([]client.RequestSample, len(samples))
	for i, s := range samples {
		reversed[len(samples)-1-i] = s
	}

	a := &Result{Requests: samples, Duration: 2 * time.Second}
	b := &Result{Requests: reversed, Duration: 2 * time.Second}
	Summarize(a)
	Summarize(b)

	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, 3, a.Successful)
	assert.Equal(t, 2, a.Failed)
	assert.Equal(t, 1.5, a.RPS)
	assert.Equal(t, 0.4, a.ErrorRate)
	assert.Equal(t, 20.0, a.AvgLatencyMs)
	assert.Equal(t, 20.0, a.P50LatencyMs)
	assert.Equal(t, 30.0, a.P99LatencyMs)
	assert.InDelta(t, 300*8/(2*1024*1024.0), a.ThroughputMbps, 1e-12)
}

func TestSkippedHasNoData(t *testing.T) {
	r := Skipped(baseSpec(), "environment unreachable")
	Summarize(r)
	assert.Equal(t, StatusSkipped, r.Status)
	assert.False(t, r.HasData())
	assert.Zero(t, r.ResourceSamples)
	assert.False(t, math.IsNaN(r.RPS))
}
