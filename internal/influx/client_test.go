package influx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/client"
	"envbench/internal/orchestrator"
	"envbench/internal/resources"
	"envbench/internal/trial"
)

type fakeWriter struct {
	mu     sync.Mutex
	points []point
	err    error
	closed bool
}

func (f *fakeWriter) write(_ context.Context, points []point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeWriter) close() error {
	f.closed = true
	return nil
}

func (f *fakeWriter) count(measurement string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.points {
		if p.measurement == measurement {
			n++
		}
	}
	return n
}

func completedTrial(requests int) *trial.Result {
	start := time.Now()
	r := &trial.Result{
		Environment: "host",
		Endpoint:    "health",
		Repetition:  1,
		Status:      trial.StatusCompleted,
		StartedAt:   start,
	}
	for range requests {
		r.Requests = append(r.Requests, client.RequestSample{
			Start:     start,
			Latency:   2 * time.Millisecond,
			Completed: true,
			Outcome:   client.OutcomeSuccess,
		})
	}
	r.Resources = []resources.Sample{{Timestamp: start, CPUPercent: 10}, {Timestamp: start.Add(time.Second), CPUPercent: 20}}
	trial.Summarize(r)
	return r
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	assert.NotPanics(t, func() {
		c.RunStarted(&orchestrator.Report{RunID: "x"})
		c.TrialFinished(completedTrial(3))
		c.GroupFinished(orchestrator.GroupSummary{})
		c.Wait()
		c.Close()
	})
	assert.Zero(t, c.Failed())
}

func TestTrialFinishedWritesAllPointsAtFullSampleRate(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(context.Background(), w, 100, nil)

	c.RunStarted(&orchestrator.Report{RunID: "run-1", StartedAt: time.Now()})
	c.TrialFinished(completedTrial(10))
	c.GroupFinished(orchestrator.GroupSummary{Environment: "host", Endpoint: "health"})
	c.Close()

	assert.Equal(t, 1, w.count("run_meta"))
	assert.Equal(t, 1, w.count("trial"))
	assert.Equal(t, 2, w.count("resource_sample"))
	assert.Equal(t, 10, w.count("request_latency"))
	assert.Equal(t, 1, w.count("group_summary"))
	assert.True(t, w.closed)

	for _, p := range w.points {
		assert.Equal(t, "run-1", p.tags["run_id"], p.measurement)
	}
}

func TestZeroSampleRateSkipsRequestPoints(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(context.Background(), w, 0, nil)

	c.TrialFinished(completedTrial(50))
	c.Wait()

	assert.Zero(t, w.count("request_latency"))
	assert.Equal(t, 1, w.count("trial"))
}

func TestRequestPointsAreBatched(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(context.Background(), w, 100, nil)

	c.TrialFinished(completedTrial(writeBatchSize + 10))
	c.Wait()

	assert.Equal(t, writeBatchSize+10, w.count("request_latency"))
}

func TestRequestPointTimestampsAreDistinct(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(context.Background(), w, 100, nil)

	c.TrialFinished(completedTrial(5))
	c.Wait()

	seen := map[time.Time]bool{}
	for _, p := range w.points {
		if p.measurement != "request_latency" {
			continue
		}
		require.False(t, seen[p.ts], "duplicate timestamp %v", p.ts)
		seen[p.ts] = true
	}
	assert.Len(t, seen, 5)
}

func TestWriteFailuresAreCounted(t *testing.T) {
	w := &fakeWriter{err: errors.New("unavailable")}
	c := newClient(context.Background(), w, 100, nil)

	c.TrialFinished(completedTrial(1))
	c.Wait()

	assert.Equal(t, int64(2), c.Failed())
}

func TestSampleRateIsClamped(t *testing.T) {
	assert.Equal(t, 1.0, newClient(context.Background(), &fakeWriter{}, 250, nil).sampleRate)
	assert.Equal(t, 0.0, newClient(context.Background(), &fakeWriter{}, -5, nil).sampleRate)
	assert.InDelta(t, 0.1, newClient(context.Background(), &fakeWriter{}, 10, nil).sampleRate, 1e-9)
}
