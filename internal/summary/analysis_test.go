package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envbench/internal/orchestrator"
)

func groupOf(env, endpoint string, rps, latencyMs float64) orchestrator.GroupSummary {
	g := orchestrator.GroupSummary{
		Environment:   env,
		Endpoint:      endpoint,
		Trials:        3,
		Completed:     3,
		MeanRPS:       rps,
		MeanLatencyMs: latencyMs,
	}
	if rps > 0 {
		g.TotalRequests = 300
		g.TotalSuccessful = 300
	}
	return g
}

func testReport() *orchestrator.Report {
	return &orchestrator.Report{
		RunID: "run-1",
		Groups: []orchestrator.GroupSummary{
			groupOf("bare", "root", 400, 10),
			groupOf("bare", "heavy", 50, 80),
			groupOf("bare", "json", 200, 20),
			groupOf("docker", "root", 380, 10.5),
			groupOf("docker", "heavy", 40, 100),
			{Environment: "docker", Endpoint: "json", Trials: 3, Skipped: 3},
		},
	}
}

func TestChangePercent(t *testing.T) {
	assert.InDelta(t, -5.0, ChangePercent(400, 380), 1e-9)
	assert.InDelta(t, 25.0, ChangePercent(80, 100), 1e-9)
	assert.Zero(t, ChangePercent(0, 100))
}

func TestClassifyOverhead(t *testing.T) {
	assert.Equal(t, OverheadMinimal, ClassifyOverhead(4.99))
	assert.Equal(t, OverheadMinimal, ClassifyOverhead(-4.99))
	assert.Equal(t, OverheadModerate, ClassifyOverhead(-5))
	assert.Equal(t, OverheadModerate, ClassifyOverhead(15))
	assert.Equal(t, OverheadSignificant, ClassifyOverhead(-15.01))
}

func TestCompare(t *testing.T) {
	comparisons := Compare(testReport(), "bare", "docker")
	require.Len(t, comparisons, 3)

	root := comparisons[0]
	assert.Equal(t, "root", root.Endpoint)
	assert.True(t, root.Comparable)
	assert.InDelta(t, -5.0, root.RPSChangePercent, 1e-9)
	assert.InDelta(t, 5.0, root.LatencyChangePercent, 1e-9)
	assert.Equal(t, OverheadModerate, root.Level)

	heavy := comparisons[1]
	assert.InDelta(t, -20.0, heavy.RPSChangePercent, 1e-9)
	assert.Equal(t, OverheadSignificant, heavy.Level)

	assert.False(t, comparisons[2].Comparable)

	mean, ok := MeanChange(comparisons)
	require.True(t, ok)
	assert.InDelta(t, -12.5, mean, 1e-9)
}

func TestCompareUnknownEnvironment(t *testing.T) {
	assert.Empty(t, Compare(testReport(), "bare", "k8s"))
	_, ok := MeanChange(nil)
	assert.False(t, ok)
}

func TestClassifyRPS(t *testing.T) {
	assert.Equal(t, SeverityCritical, ClassifyRPS(19.9))
	assert.Equal(t, SeverityHigh, ClassifyRPS(20))
	assert.Equal(t, SeverityHigh, ClassifyRPS(99))
	assert.Equal(t, SeverityModerate, ClassifyRPS(100))
	assert.Equal(t, SeverityLow, ClassifyRPS(300))
}

func TestBottlenecksSlowestFirst(t *testing.T) {
	b := Bottlenecks(testReport())
	require.Len(t, b, 5)
	assert.Equal(t, "heavy", b[0].Endpoint)
	assert.Equal(t, "docker", b[0].Environment)
	assert.Equal(t, SeverityHigh, b[0].Severity)
	assert.Equal(t, SeverityLow, b[4].Severity)
}
