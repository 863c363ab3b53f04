package resources

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeSource) Read(context.Context) (Reading, error) {
	n := f.calls.Add(1)
	if f.fail {
		return Reading{}, errors.New("boom")
	}
	return Reading{
		CPUPercent:    float64(n * 10),
		MemoryBytes:   uint64(n) * bytesPerMB,
		MemoryPercent: 50,
		NetBytesSent:  uint64(n * 100),
		NetBytesRecv:  uint64(n * 1000),
	}, nil
}

func TestSamplerCollectsChronologicalSamples(t *testing.T) {
	src := &fakeSource{}
	s := NewSampler(src, 10*time.Millisecond, time.Second, nil)
	s.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	samples := s.Stop()

	require.GreaterOrEqual(t, len(samples), 3)
	for i := 1; i < len(samples); i++ {
		assert.False(t, samples[i].Timestamp.Before(samples[i-1].Timestamp))
	}
	assert.Equal(t, int(src.calls.Load()), len(samples))
}

func TestSamplerFlushesFinalSampleOnStop(t *testing.T) {
	src := &fakeSource{}
	s := NewSampler(src, time.Hour, time.Second, nil)
	s.Start(context.Background())
	time.Sleep(10 * time.Millisecond)

	samples := s.Stop()
	// one immediate sample and one flushed on stop
	require.Len(t, samples, 2)
	assert.Equal(t, 20.0, samples[1].CPUPercent)
}

func TestSamplerStopIsIdempotent(t *testing.T) {
	s := NewSampler(&fakeSource{}, time.Hour, 0, nil)
	assert.Nil(t, s.Stop())

	s.Start(context.Background())
	require.NotEmpty(t, s.Stop())
	assert.Nil(t, s.Stop())

	s.Start(context.Background())
	assert.Nil(t, s.Stop())
}

func TestSamplerCancelledContextStillFlushes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSampler(&fakeSource{}, time.Hour, 0, nil)
	s.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	cancel()

	done := make(chan []Sample)
	go func() { done <- s.Stop() }()
	select {
	case samples := <-done:
		// the immediate sample plus the final flush on Stop
		assert.Len(t, samples, 2)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

func TestSamplerIgnoresSourceErrors(t *testing.T) {
	s := NewSampler(&fakeSource{fail: true}, 5*time.Millisecond, 0, nil)
	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Stop())
}

func TestAggregate(t *testing.T) {
	samples := []Sample{
		{CPUPercent: 10, MemoryMB: 100, NetBytesSent: 1000, NetBytesRecv: 5000},
		{CPUPercent: 30, MemoryMB: 300, NetBytesSent: 1500, NetBytesRecv: 9000},
		{CPUPercent: 20, MemoryMB: 200, NetBytesSent: 3000, NetBytesRecv: 9500},
	}
	st := Aggregate(samples)

	assert.Equal(t, 3, st.Samples)
	assert.Equal(t, 10.0, st.CPUMin)
	assert.Equal(t, 30.0, st.CPUMax)
	assert.InDelta(t, 20.0, st.CPUAvg, 1e-9)
	assert.InDelta(t, 200.0, st.MemoryAvgMB, 1e-9)
	assert.Equal(t, uint64(2000), st.NetBytesSent)
	assert.Equal(t, uint64(4500), st.NetBytesRecv)
	assert.Empty(t, st.Warnings)
}

func TestAggregateLowSamples(t *testing.T) {
	st := Aggregate([]Sample{{CPUPercent: 5, NetBytesSent: 10}, {CPUPercent: 7, NetBytesSent: 4}})
	assert.Equal(t, []string{"low samples"}, st.Warnings)
	assert.Zero(t, st.NetBytesSent)

	assert.Equal(t, []string{"no samples"}, Aggregate(nil).Warnings)
}
