package orchestrator

import (
	"envbench/internal/stats"
	"envbench/internal/trial"
)

// GroupSummary aggregates the repetitions of one (environment, endpoint) pair.
type GroupSummary struct {
	Environment string `json:"environment"`
	Endpoint    string `json:"endpoint"`

	Trials    int `json:"trials"`
	Completed int `json:"completed"`
	Aborted   int `json:"aborted"`
	Skipped   int `json:"skipped"`

	MeanRPS      float64         `json:"mean_rps"`
	StdDevRPS    float64         `json:"std_dev_rps"`
	CVPercentRPS float64         `json:"cv_percent_rps"`
	StabilityRPS stats.Stability `json:"stability_rps"`

	MeanLatencyMs    float64         `json:"mean_latency_ms"`
	StdDevLatencyMs  float64         `json:"std_dev_latency_ms"`
	CVPercentLatency float64         `json:"cv_percent_latency"`
	StabilityLatency stats.Stability `json:"stability_latency"`

	MeanP95LatencyMs float64 `json:"mean_p95_latency_ms"`
	MeanP99LatencyMs float64 `json:"mean_p99_latency_ms"`
	MeanErrorRate    float64 `json:"mean_error_rate"`
	MeanCPUPercent   float64 `json:"mean_cpu_percent"`
	MeanMemoryMB     float64 `json:"mean_memory_mb"`
	TotalRequests    int     `json:"total_requests"`
	TotalSuccessful  int     `json:"total_successful"`
}

// HasData reports whether at least one repetition produced samples.
func (g *GroupSummary) HasData() bool {
	return g.Completed+g.Aborted > 0 && g.TotalRequests > 0
}

// Aggregate computes the GroupSummary of results. Skipped trials are only
// counted. RPS statistics use every trial with data; latency statistics use
// trials with at least one successful request, since the others have no
// latency to report.
func Aggregate(environment, endpoint string, results []*trial.Result) GroupSummary {
	g := GroupSummary{
		Environment: environment,
		Endpoint:    endpoint,
		Trials:      len(results),
	}

	var rps, latency, p95, p99, errRate, cpu, mem []float64
	for _, r := range results {
		switch r.Status {
		case trial.StatusSkipped:
			g.Skipped++
			continue
		case trial.StatusAborted:
			g.Aborted++
		default:
			g.Completed++
		}
		if !r.HasData() {
			continue
		}

		g.TotalRequests += r.TotalRequests
		g.TotalSuccessful += r.Successful
		rps = append(rps, r.RPS)
		errRate = append(errRate, r.ErrorRate)
		if r.ResourceSamples > 0 {
			cpu = append(cpu, r.AvgCPUPercent)
			mem = append(mem, r.AvgMemoryMB)
		}
		if r.Successful > 0 {
			latency = append(latency, r.AvgLatencyMs)
			p95 = append(p95, r.P95LatencyMs)
			p99 = append(p99, r.P99LatencyMs)
		}
	}

	rpsStats := stats.Describe(rps)
	g.MeanRPS = rpsStats.Mean
	g.StdDevRPS = rpsStats.StdDev
	g.CVPercentRPS = rpsStats.CVPercent
	g.StabilityRPS = rpsStats.Stability

	latStats := stats.Describe(latency)
	g.MeanLatencyMs = latStats.Mean
	g.StdDevLatencyMs = latStats.StdDev
	g.CVPercentLatency = latStats.CVPercent
	g.StabilityLatency = latStats.Stability

	g.MeanP95LatencyMs = stats.Mean(p95)
	g.MeanP99LatencyMs = stats.Mean(p99)
	g.MeanErrorRate = stats.Mean(errRate)
	g.MeanCPUPercent = stats.Mean(cpu)
	g.MeanMemoryMB = stats.Mean(mem)

	return g
}
