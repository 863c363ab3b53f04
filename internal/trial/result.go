package trial

import (
	"time"

	"envbench/internal/client"
	"envbench/internal/resources"
	"envbench/internal/stats"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusSkipped   Status = "skipped"
)

const bitsPerMegabit = 1024 * 1024

// Result is one (environment, endpoint, repetition) execution. The derived
// Metrics are filled by Summarize and never change afterwards.
type Result struct {
	Environment string    `json:"environment"`
	Endpoint    string    `json:"endpoint"`
	Repetition  int       `json:"repetition"`
	URL         string    `json:"url"`
	Status      Status    `json:"status"`
	Aborted     bool      `json:"aborted"`
	// Interrupted is set when the caller's context was cancelled before
	// every request resolved. The samples are kept but do not describe a
	// full trial.
	Interrupted bool      `json:"interrupted,omitempty"`
	SkipReason  string    `json:"skip_reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`

	Duration  time.Duration          `json:"-"`
	Requests  []client.RequestSample `json:"requests,omitempty"`
	Resources []resources.Sample     `json:"resources,omitempty"`

	Metrics
}

type Metrics struct {
	TotalRequests    int `json:"total_requests"`
	Successful       int `json:"successful"`
	Failed           int `json:"failed"`
	Timeouts         int `json:"timeouts"`
	ConnectionErrors int `json:"connection_errors"`
	HTTPErrors       int `json:"http_errors"`

	RPS             float64 `json:"rps"`
	DurationSeconds float64 `json:"duration_seconds"`
	ErrorRate       float64 `json:"error_rate"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	MinLatencyMs    float64 `json:"min_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms"`
	P50LatencyMs    float64 `json:"p50_latency_ms"`
	P95LatencyMs    float64 `json:"p95_latency_ms"`
	P99LatencyMs    float64 `json:"p99_latency_ms"`

	BytesReceived  int64   `json:"bytes_received"`
	ThroughputMbps float64 `json:"throughput_mbps"`

	ResourceSamples  int      `json:"resource_samples"`
	AvgCPUPercent    float64  `json:"avg_cpu_percent"`
	MaxCPUPercent    float64  `json:"max_cpu_percent"`
	AvgMemoryMB      float64  `json:"avg_memory_mb"`
	MaxMemoryMB      float64  `json:"max_memory_mb"`
	NetBytesSent     uint64   `json:"net_bytes_sent"`
	NetBytesRecv     uint64   `json:"net_bytes_recv"`
	ResourceWarnings []string `json:"resource_warnings,omitempty"`
}

// HasData reports whether the trial dispatched anything.
func (r *Result) HasData() bool {
	return r.Status != StatusSkipped && r.TotalRequests > 0
}

// Skipped builds the placeholder recorded for a slot that was never run.
func Skipped(spec Spec, reason string) *Result {
	return &Result{
		Environment: spec.Environment,
		Endpoint:    spec.Endpoint,
		Repetition:  spec.Repetition,
		URL:         spec.URL,
		Status:      StatusSkipped,
		SkipReason:  reason,
		StartedAt:   time.Now(),
	}
}

// Summarize fills the derived fields of r from its samples and duration.
// The computation does not depend on the order of r.Requests.
func Summarize(r *Result) {
	var m Metrics
	latencies := make([]time.Duration, 0, len(r.Requests))

	for i := range r.Requests {
		s := &r.Requests[i]
		m.TotalRequests++
		m.BytesReceived += s.Bytes
		switch s.Outcome {
		case client.OutcomeSuccess:
			m.Successful++
			latencies = append(latencies, s.Latency)
		case client.OutcomeHTTPError:
			m.HTTPErrors++
		case client.OutcomeTimeout:
			m.Timeouts++
		case client.OutcomeConnectionError:
			m.ConnectionErrors++
		}
	}
	m.Failed = m.TotalRequests - m.Successful
	m.ErrorRate = stats.Ratio(m.Failed, m.TotalRequests)

	m.DurationSeconds = r.Duration.Seconds()
	m.RPS = stats.Rate(m.Successful, r.Duration)
	if r.Duration > 0 {
		m.ThroughputMbps = float64(m.BytesReceived) * 8 / (r.Duration.Seconds() * bitsPerMegabit)
	}

	lat := stats.Summarize(latencies)
	m.AvgLatencyMs = stats.Milliseconds(lat.Avg)
	m.MinLatencyMs = stats.Milliseconds(lat.Min)
	m.MaxLatencyMs = stats.Milliseconds(lat.Max)
	m.P50LatencyMs = stats.Milliseconds(lat.P50)
	m.P95LatencyMs = stats.Milliseconds(lat.P95)
	m.P99LatencyMs = stats.Milliseconds(lat.P99)

	if r.Status != StatusSkipped {
		res := resources.Aggregate(r.Resources)
		m.ResourceSamples = res.Samples
		m.AvgCPUPercent = res.CPUAvg
		m.MaxCPUPercent = res.CPUMax
		m.AvgMemoryMB = res.MemoryAvgMB
		m.MaxMemoryMB = res.MemoryMaxMB
		m.NetBytesSent = res.NetBytesSent
		m.NetBytesRecv = res.NetBytesRecv
		m.ResourceWarnings = res.Warnings
	}

	r.Metrics = m
}
