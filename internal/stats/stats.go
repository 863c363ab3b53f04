package stats

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Latency contains latency statistics for the successful requests of a trial.
type Latency struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// Summarize computes latency statistics from latencies. The slice is not
// modified, and the result does not depend on the order of its elements.
func Summarize(latencies []time.Duration) Latency {
	if len(latencies) == 0 {
		return Latency{}
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var total time.Duration
	for _, l := range sorted {
		total += l
	}

	return Latency{
		Count: len(sorted),
		Avg:   total / time.Duration(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   Percentile(sorted, 50),
		P95:   Percentile(sorted, 95),
		P99:   Percentile(sorted, 99),
	}
}

// Percentile returns the nearest-rank p-th percentile of an ascending slice:
// the element at rank ceil(n*p/100)-1, clamped to [0, n-1].
func Percentile[T cmp.Ordered](sorted []T, p float64) T {
	var zero T
	n := len(sorted)
	if n == 0 {
		return zero
	}
	rank := int(math.Ceil(float64(n)*p/100)) - 1
	rank = max(0, min(rank, n-1))
	return sorted[rank]
}

// Dispersion describes the spread of a metric across repeated trials.
type Dispersion struct {
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	CVPercent float64   `json:"cv_percent"`
	Stability Stability `json:"stability"`
}

// Describe computes mean, population standard deviation and CV% of values.
func Describe(values []float64) Dispersion {
	mean := Mean(values)
	sd := StdDev(values)
	cv := CVPercent(mean, sd)
	return Dispersion{
		Mean:      mean,
		StdDev:    sd,
		CVPercent: cv,
		Stability: ClassifyCV(cv),
	}
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	if slices.Min(values) == slices.Max(values) {
		return 0
	}

	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// CVPercent returns stdDev/mean*100, or 0 when mean is 0.
func CVPercent(mean, stdDev float64) float64 {
	if mean == 0 {
		return 0
	}
	return math.Abs(stdDev/mean) * 100
}

type Stability string

const (
	StabilityExcellent  Stability = "excellent"
	StabilityAcceptable Stability = "acceptable"
	StabilityUnstable   Stability = "unstable"
)

const (
	excellentCV  = 5.0
	acceptableCV = 15.0
)

// ClassifyCV maps a CV% to a stability label. The label is informational.
func ClassifyCV(cv float64) Stability {
	switch {
	case cv < excellentCV:
		return StabilityExcellent
	case cv <= acceptableCV:
		return StabilityAcceptable
	default:
		return StabilityUnstable
	}
}

// Rate returns count/seconds, or 0 for a non-positive duration.
func Rate(count int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(count) / d.Seconds()
}

// Ratio returns part/total, or 0 when total is 0.
func Ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
