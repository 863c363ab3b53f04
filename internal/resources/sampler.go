package resources

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval    = time.Second
	minReliableSamples = 3
	minBufferSamples   = 64
	bytesPerMB         = 1024 * 1024
)

// Sample is one timestamped host observation.
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	NetBytesSent  uint64    `json:"net_bytes_sent"`
	NetBytesRecv  uint64    `json:"net_bytes_recv"`
}

// Sampler records host metrics on its own goroutine at a fixed interval
// for the lifetime of one trial.
type Sampler struct {
	source   Source
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	samples   []Sample
	errors    int
	running   bool
	stopped   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewSampler creates a sampler whose buffer is sized for expected, the
// expected length of the trial.
func NewSampler(source Source, interval, expected time.Duration, logger *zap.Logger) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	capacity := max(int(expected/interval)+2, minBufferSamples)

	return &Sampler{
		source:   source,
		interval: interval,
		logger:   logger,
		samples:  make([]Sample, 0, capacity),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop signals the sampling goroutine, waits for it to flush a final
// sample and hands off the buffer. The sampler cannot be restarted.
func (s *Sampler) Stop() []Sample {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh

	s.mu.Lock()
	defer s.mu.Unlock()
	samples := s.samples
	s.samples = nil
	if s.errors > 0 {
		s.logger.Warn("resource sampling errors", zap.Int("errors", s.errors), zap.Int("samples", len(samples)))
	}
	return samples
}

func (s *Sampler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.take(ctx)
	for {
		select {
		case <-s.stopCh:
			s.take(context.Background()) //nolint:contextcheck // final flush must run after ctx is cancelled
			return
		case <-ctx.Done():
			// keep the final flush of the stop path; only Stop ends sampling
			<-s.stopCh
			s.take(context.Background()) //nolint:contextcheck // ctx is already cancelled
			return
		case <-ticker.C:
			s.take(ctx)
		}
	}
}

func (s *Sampler) take(ctx context.Context) {
	reading, err := s.source.Read(ctx)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		s.logger.Debug("resource sample failed", zap.Error(err))
		return
	}
	s.samples = append(s.samples, Sample{
		Timestamp:     now,
		CPUPercent:    reading.CPUPercent,
		MemoryMB:      float64(reading.MemoryBytes) / bytesPerMB,
		MemoryPercent: reading.MemoryPercent,
		NetBytesSent:  reading.NetBytesSent,
		NetBytesRecv:  reading.NetBytesRecv,
	})
}

type Stats struct {
	Samples      int      `json:"samples"`
	CPUMin       float64  `json:"cpu_min_percent"`
	CPUAvg       float64  `json:"cpu_avg_percent"`
	CPUMax       float64  `json:"cpu_max_percent"`
	MemoryMinMB  float64  `json:"memory_min_mb"`
	MemoryAvgMB  float64  `json:"memory_avg_mb"`
	MemoryMaxMB  float64  `json:"memory_max_mb"`
	NetBytesSent uint64   `json:"net_bytes_sent"`
	NetBytesRecv uint64   `json:"net_bytes_recv"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Aggregate summarizes chronologically ordered samples. Network values are
// the counter deltas between the first and the last sample.
func Aggregate(samples []Sample) Stats {
	result := Stats{Samples: len(samples)}
	if len(samples) == 0 {
		result.Warnings = []string{"no samples"}
		return result
	}

	first := samples[0]
	result.CPUMin, result.CPUMax = first.CPUPercent, first.CPUPercent
	result.MemoryMinMB, result.MemoryMaxMB = first.MemoryMB, first.MemoryMB

	var totalCPU, totalMem float64
	for _, s := range samples {
		result.CPUMin = min(result.CPUMin, s.CPUPercent)
		result.CPUMax = max(result.CPUMax, s.CPUPercent)
		result.MemoryMinMB = min(result.MemoryMinMB, s.MemoryMB)
		result.MemoryMaxMB = max(result.MemoryMaxMB, s.MemoryMB)
		totalCPU += s.CPUPercent
		totalMem += s.MemoryMB
	}
	result.CPUAvg = totalCPU / float64(len(samples))
	result.MemoryAvgMB = totalMem / float64(len(samples))

	last := samples[len(samples)-1]
	result.NetBytesSent = counterDelta(first.NetBytesSent, last.NetBytesSent)
	result.NetBytesRecv = counterDelta(first.NetBytesRecv, last.NetBytesRecv)

	if len(samples) < minReliableSamples {
		result.Warnings = append(result.Warnings, "low samples")
	}
	return result
}

// counterDelta treats a decreasing counter as a reset.
func counterDelta(from, to uint64) uint64 {
	if to < from {
		return 0
	}
	return to - from
}
