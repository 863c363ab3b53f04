package stats

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileNearestRank(t *testing.T) {
	sorted := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	tests := []struct {
		p    float64
		want int
	}{
		{p: 0, want: 10},
		{p: 1, want: 10},
		{p: 10, want: 10},
		{p: 11, want: 20},
		{p: 50, want: 50},
		{p: 95, want: 100},
		{p: 99, want: 100},
		{p: 100, want: 100},
		{p: 150, want: 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentile(sorted, tt.p), "p%v", tt.p)
	}
}

func TestPercentileSmallInputs(t *testing.T) {
	assert.Equal(t, 0, Percentile([]int{}, 50))
	assert.Equal(t, 7, Percentile([]int{7}, 1))
	assert.Equal(t, 7, Percentile([]int{7}, 99))
	// ceil(2*0.5)-1 = 0
	assert.Equal(t, 1, Percentile([]int{1, 2}, 50))
	// ceil(2*0.51)-1 = 1
	assert.Equal(t, 2, Percentile([]int{1, 2}, 51))
}

func TestSummarizeOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	latencies := make([]time.Duration, 1000)
	for i := range latencies {
		latencies[i] = time.Duration(rng.Intn(500)+1) * time.Millisecond
	}

	s := Summarize(latencies)
	require.Equal(t, 1000, s.Count)
	assert.LessOrEqual(t, s.Min, s.P50)
	assert.LessOrEqual(t, s.P50, s.P95)
	assert.LessOrEqual(t, s.P95, s.P99)
	assert.LessOrEqual(t, s.P99, s.Max)
	assert.GreaterOrEqual(t, s.Avg, s.Min)
	assert.LessOrEqual(t, s.Avg, s.Max)
}

func TestSummarizeIsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	latencies := make([]time.Duration, 257)
	for i := range latencies {
		latencies[i] = time.Duration(rng.Int63n(int64(time.Second)))
	}
	want := Summarize(latencies)

	for range 5 {
		shuffled := append([]time.Duration(nil), latencies...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, Summarize(shuffled))
	}
}

func TestSummarizeDoesNotModifyInput(t *testing.T) {
	latencies := []time.Duration{3, 1, 2}
	Summarize(latencies)
	assert.Equal(t, []time.Duration{3, 1, 2}, latencies)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Latency{}, Summarize(nil))
}

func TestDescribeIdenticalValues(t *testing.T) {
	d := Describe([]float64{100, 100, 100})
	assert.Equal(t, 100.0, d.Mean)
	assert.Zero(t, d.StdDev)
	assert.Zero(t, d.CVPercent)
	assert.Equal(t, StabilityExcellent, d.Stability)

	d = Describe([]float64{0.1, 0.1, 0.1})
	assert.Zero(t, d.CVPercent)
}

func TestDescribeSpreadValues(t *testing.T) {
	steady := Describe([]float64{100, 100, 100})
	spread := Describe([]float64{80, 100, 120})

	assert.InDelta(t, 100.0, spread.Mean, 1e-9)
	// population stddev of {80,100,120} = sqrt(800/3)
	assert.InDelta(t, 16.3299, spread.StdDev, 1e-4)
	assert.InDelta(t, 16.3299, spread.CVPercent, 1e-4)
	assert.Greater(t, spread.CVPercent, steady.CVPercent)
	assert.Equal(t, StabilityUnstable, spread.Stability)
}

func TestCVPercentZeroMean(t *testing.T) {
	assert.Zero(t, CVPercent(0, 12))
	d := Describe([]float64{0, 0})
	assert.Zero(t, d.CVPercent)
	assert.Zero(t, Describe(nil).Mean)
}

func TestCVPositiveWhenValuesDiffer(t *testing.T) {
	d := Describe([]float64{100, 100.5})
	assert.Greater(t, d.CVPercent, 0.0)
}

func TestClassifyCV(t *testing.T) {
	assert.Equal(t, StabilityExcellent, ClassifyCV(4.99))
	assert.Equal(t, StabilityAcceptable, ClassifyCV(5))
	assert.Equal(t, StabilityAcceptable, ClassifyCV(15))
	assert.Equal(t, StabilityUnstable, ClassifyCV(15.01))
}

func TestRateAndRatio(t *testing.T) {
	assert.InDelta(t, 50.0, Rate(100, 2*time.Second), 1e-9)
	assert.Zero(t, Rate(100, 0))
	assert.InDelta(t, 0.25, Ratio(1, 4), 1e-9)
	assert.Zero(t, Ratio(1, 0))
}

func TestLiveHistogram(t *testing.T) {
	h := NewLiveHistogram()
	for i := 1; i <= 100; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}
	require.Equal(t, int64(100), h.Count())
	assert.InDelta(t, float64(50*time.Millisecond), float64(h.Quantile(50)), float64(time.Millisecond))

	h.Reset()
	assert.Zero(t, h.Count())
}
