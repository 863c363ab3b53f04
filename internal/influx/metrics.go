package influx

import (
	"strconv"
	"time"

	"envbench/internal/orchestrator"
	"envbench/internal/trial"
)

func (c *Client) RunStarted(report *orchestrator.Report) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runID = report.RunID
	c.mu.Unlock()

	c.writePointsAsync([]point{{
		measurement: "run_meta",
		tags:        map[string]string{"run_id": report.RunID},
		fields: map[string]any{
			"sample_rate":     c.sampleRate,
			"repetitions":     report.Parameters.Repetitions,
			"concurrency":     report.Parameters.Concurrency,
			"abort_threshold": report.Parameters.AbortThreshold,
		},
		ts: report.StartedAt,
	}})
}

func (c *Client) TrialFinished(result *trial.Result) {
	if c == nil {
		return
	}
	runID := c.currentRunID()
	tags := map[string]string{
		"run_id":      runID,
		"environment": result.Environment,
		"endpoint":    result.Endpoint,
		"repetition":  strconv.Itoa(result.Repetition),
		"status":      string(result.Status),
	}

	points := make([]point, 0, 1+len(result.Resources))
	points = append(points, point{
		measurement: "trial",
		tags:        tags,
		fields: map[string]any{
			"rps":               result.RPS,
			"avg_latency_ms":    result.AvgLatencyMs,
			"p50_latency_ms":    result.P50LatencyMs,
			"p95_latency_ms":    result.P95LatencyMs,
			"p99_latency_ms":    result.P99LatencyMs,
			"error_rate":        result.ErrorRate,
			"total_requests":    result.TotalRequests,
			"successful":        result.Successful,
			"timeouts":          result.Timeouts,
			"connection_errors": result.ConnectionErrors,
			"http_errors":       result.HTTPErrors,
			"duration_seconds":  result.DurationSeconds,
			"throughput_mbps":   result.ThroughputMbps,
			"avg_cpu_percent":   result.AvgCPUPercent,
			"avg_memory_mb":     result.AvgMemoryMB,
		},
		ts: result.StartedAt,
	})

	for _, s := range result.Resources {
		points = append(points, point{
			measurement: "resource_sample",
			tags: map[string]string{
				"run_id":      runID,
				"environment": result.Environment,
				"endpoint":    result.Endpoint,
				"repetition":  strconv.Itoa(result.Repetition),
			},
			fields: map[string]any{
				"cpu_percent":    s.CPUPercent,
				"memory_mb":      s.MemoryMB,
				"memory_percent": s.MemoryPercent,
				"net_bytes_sent": s.NetBytesSent,
				"net_bytes_recv": s.NetBytesRecv,
			},
			ts: s.Timestamp,
		})
	}
	c.writePointsAsync(points)

	c.writeRequestLatencies(runID, result)
}

// writeRequestLatencies writes a sample of the request outcomes of a trial.
// Points are spaced by 1µs from the request start so that requests started
// in the same instant do not overwrite each other.
func (c *Client) writeRequestLatencies(runID string, result *trial.Result) {
	points := make([]point, 0, min(len(result.Requests), writeBatchSize))
	for i := range result.Requests {
		if c.ctx.Err() != nil {
			return
		}
		if !c.sampled() {
			continue
		}
		s := &result.Requests[i]
		points = append(points, point{
			measurement: "request_latency",
			tags: map[string]string{
				"run_id":      runID,
				"environment": result.Environment,
				"endpoint":    result.Endpoint,
				"outcome":     s.Outcome.String(),
			},
			fields: map[string]any{
				"latency_ns":  s.Latency.Nanoseconds(),
				"status_code": s.StatusCode,
				"bytes":       s.Bytes,
			},
			ts: s.Start.Add(time.Duration(i) * time.Microsecond),
		})
		if len(points) >= writeBatchSize {
			c.writePointsAsync(points)
			points = points[:0]
		}
	}
	c.writePointsAsync(points)
}

func (c *Client) GroupFinished(group orchestrator.GroupSummary) {
	if c == nil {
		return
	}
	c.writePointsAsync([]point{{
		measurement: "group_summary",
		tags: map[string]string{
			"run_id":      c.currentRunID(),
			"environment": group.Environment,
			"endpoint":    group.Endpoint,
		},
		fields: map[string]any{
			"mean_rps":           group.MeanRPS,
			"std_dev_rps":        group.StdDevRPS,
			"cv_percent_rps":     group.CVPercentRPS,
			"stability_rps":      string(group.StabilityRPS),
			"mean_latency_ms":    group.MeanLatencyMs,
			"std_dev_latency_ms": group.StdDevLatencyMs,
			"cv_percent_latency": group.CVPercentLatency,
			"completed":          group.Completed,
			"aborted":            group.Aborted,
			"skipped":            group.Skipped,
		},
		ts: time.Now(),
	}})
}
