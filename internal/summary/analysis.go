package summary

import (
	"cmp"
	"math"
	"slices"

	"envbench/internal/orchestrator"
)

type OverheadLevel string

const (
	OverheadMinimal     OverheadLevel = "minimal"
	OverheadModerate    OverheadLevel = "moderate"
	OverheadSignificant OverheadLevel = "significant"
)

// Comparison is the change of a candidate environment against a baseline
// for one endpoint. Positive RPSChangePercent means the candidate serves more
// requests per second.
type Comparison struct {
	Endpoint  string `json:"endpoint"`
	Baseline  string `json:"baseline"`
	Candidate string `json:"candidate"`

	BaselineRPS          float64       `json:"baseline_rps"`
	CandidateRPS         float64       `json:"candidate_rps"`
	RPSChangePercent     float64       `json:"rps_change_percent"`
	BaselineLatencyMs    float64       `json:"baseline_latency_ms"`
	CandidateLatencyMs   float64       `json:"candidate_latency_ms"`
	LatencyChangePercent float64       `json:"latency_change_percent"`
	Level                OverheadLevel `json:"level"`
	Comparable           bool          `json:"comparable"`
}

// ChangePercent returns (candidate/baseline - 1) * 100, or 0 when the
// baseline is 0.
func ChangePercent(baseline, candidate float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (candidate/baseline - 1) * 100
}

func ClassifyOverhead(changePercent float64) OverheadLevel {
	abs := math.Abs(changePercent)
	switch {
	case abs < 5:
		return OverheadMinimal
	case abs <= 15:
		return OverheadModerate
	default:
		return OverheadSignificant
	}
}

// Compare pairs the group summaries of two environments endpoint by
// endpoint, in report order. Endpoints where either side has no data are
// reported with Comparable false.
func Compare(report *orchestrator.Report, baseline, candidate string) []Comparison {
	var out []Comparison
	for _, base := range report.Groups {
		if base.Environment != baseline {
			continue
		}
		cand, ok := report.Group(candidate, base.Endpoint)
		if !ok {
			continue
		}

		c := Comparison{
			Endpoint:           base.Endpoint,
			Baseline:           baseline,
			Candidate:          candidate,
			BaselineRPS:        base.MeanRPS,
			CandidateRPS:       cand.MeanRPS,
			BaselineLatencyMs:  base.MeanLatencyMs,
			CandidateLatencyMs: cand.MeanLatencyMs,
			Comparable:         base.HasData() && cand.HasData() && base.MeanRPS > 0,
		}
		if c.Comparable {
			c.RPSChangePercent = ChangePercent(base.MeanRPS, cand.MeanRPS)
			c.LatencyChangePercent = ChangePercent(base.MeanLatencyMs, cand.MeanLatencyMs)
			c.Level = ClassifyOverhead(c.RPSChangePercent)
		}
		out = append(out, c)
	}
	return out
}

// MeanChange averages RPSChangePercent over comparable entries.
func MeanChange(comparisons []Comparison) (float64, bool) {
	var total float64
	n := 0
	for _, c := range comparisons {
		if c.Comparable {
			total += c.RPSChangePercent
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
)

func ClassifyRPS(meanRPS float64) Severity {
	switch {
	case meanRPS < 20:
		return SeverityCritical
	case meanRPS < 100:
		return SeverityHigh
	case meanRPS < 300:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

type Bottleneck struct {
	Environment string   `json:"environment"`
	Endpoint    string   `json:"endpoint"`
	MeanRPS     float64  `json:"mean_rps"`
	Severity    Severity `json:"severity"`
}

// Bottlenecks classifies every group with data by mean RPS, slowest first.
func Bottlenecks(report *orchestrator.Report) []Bottleneck {
	out := make([]Bottleneck, 0, len(report.Groups))
	for _, g := range report.Groups {
		if !g.HasData() {
			continue
		}
		out = append(out, Bottleneck{
			Environment: g.Environment,
			Endpoint:    g.Endpoint,
			MeanRPS:     g.MeanRPS,
			Severity:    ClassifyRPS(g.MeanRPS),
		})
	}
	slices.SortStableFunc(out, func(a, b Bottleneck) int {
		return cmp.Compare(a.MeanRPS, b.MeanRPS)
	})
	return out
}
