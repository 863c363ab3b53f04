package summary

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"envbench/internal/cli"
	"envbench/internal/client"
	"envbench/internal/config"
	"envbench/internal/orchestrator"
	"envbench/internal/stats"
	"envbench/internal/trial"
)

const rule = "  ───────────────────────────────────────────────────────────────────────────────────────"

// Console prints run progress and the final tables to the terminal.
type Console struct {
	orchestrator.BaseObserver

	spinner     *cli.ProgressSpinner
	comparisons []config.ComparisonConfig
	labels      map[string]string
	header      bool
}

// NewConsole returns a console observer. A nil spinner disables the live
// progress line, e.g. when stdout is not a terminal.
func NewConsole(cfg *config.Config, spinner *cli.ProgressSpinner) *Console {
	labels := make(map[string]string, len(cfg.Environments))
	for _, env := range cfg.Environments {
		labels[env.Name] = env.DisplayName()
	}
	return &Console{
		spinner:     spinner,
		comparisons: cfg.Comparisons,
		labels:      labels,
	}
}

func (c *Console) EnvironmentProbed(state orchestrator.EnvironmentState) {
	if c.header {
		cli.EnvironmentFooter()
	}
	c.header = true
	cli.EnvironmentHeader(state.Label)

	switch {
	case state.Reachability == orchestrator.ReachabilityReachable && state.Probe != nil:
		cli.Successf("Reachable at %s (%s)", state.BaseURL, cli.FormatDuration(state.Probe.Latency))
	case state.Reachability == orchestrator.ReachabilityUnknown:
		cli.Warnf("Not probed, run interrupted")
	default:
		cli.Failf("Unreachable: %s", state.Reason)
	}
	cli.Blank()
	fmt.Printf("  %-14s  %3s  %8s  %9s  %9s  %9s  %9s  %7s  %s\n",
		"Endpoint", "#", "Reqs", "RPS", "Avg", "P95", "P99", "Errors", "Status")
	fmt.Println(rule)
}

func (c *Console) TrialStarted(spec trial.Spec) {
	if c.spinner != nil {
		c.spinner.Start(fmt.Sprintf("%s #%d", spec.Endpoint, spec.Repetition), spec.Requests)
	}
}

func (c *Console) RequestCompleted(_ trial.Spec, sample client.RequestSample) {
	if c.spinner != nil {
		c.spinner.Record(sample.Latency, sample.Succeeded())
	}
}

func (c *Console) TrialFinished(result *trial.Result) {
	if c.spinner != nil {
		c.spinner.Stop()
	}
	PrintTrial(result)
}

func (c *Console) GroupFinished(group orchestrator.GroupSummary) {
	PrintGroup(group)
}

func (c *Console) RunFinished(report *orchestrator.Report) {
	if c.header {
		cli.EnvironmentFooter()
	}
	PrintFinalSummary(report, c.comparisons, c.labels)
}

func PrintTrial(r *trial.Result) {
	if r.Status == trial.StatusSkipped {
		fmt.Printf("  %-14s  %3d  %8s  %9s  %9s  %9s  %9s  %7s  %s\n",
			cli.Truncate(r.Endpoint, 14), r.Repetition, "-", "-", "-", "-", "-", "-",
			cli.Grade("SKIP", 3))
		return
	}

	status := cli.SymbolPass + " OK"
	switch {
	case r.Aborted:
		status = cli.Grade(cli.SymbolFail+" ABORTED", 2)
	case r.Failed > 0:
		status = cli.Grade(fmt.Sprintf("%s FAIL (%d)", cli.SymbolWarning, r.Failed), 1)
	}

	fmt.Printf("  %-14s  %3d  %8s  %9.1f  %9s  %9s  %9s  %7s  %s\n",
		cli.Truncate(r.Endpoint, 14),
		r.Repetition,
		cli.FormatReqs(r.TotalRequests),
		r.RPS,
		cli.FormatMs(r.AvgLatencyMs),
		cli.FormatMs(r.P95LatencyMs),
		cli.FormatMs(r.P99LatencyMs),
		cli.FormatRate(r.ErrorRate),
		status)

	if r.ResourceSamples > 0 {
		fmt.Printf("    %s cpu %s avg / %s max  mem %s avg / %s max  net %s out / %s in\n",
			cli.SymbolArrow,
			cli.FormatCpu(r.AvgCPUPercent, r.ResourceSamples),
			cli.FormatCpu(r.MaxCPUPercent, r.ResourceSamples),
			cli.FormatMemory(r.AvgMemoryMB),
			cli.FormatMemory(r.MaxMemoryMB),
			cli.FormatMemory(float64(r.NetBytesSent)/1024/1024),
			cli.FormatMemory(float64(r.NetBytesRecv)/1024/1024))
	}
	for _, w := range r.ResourceWarnings {
		fmt.Printf("    └─ resources: %s\n", w)
	}
}

func PrintGroup(g orchestrator.GroupSummary) {
	if !g.HasData() {
		fmt.Printf("    └─ %s: no data (%d skipped)\n", g.Endpoint, g.Skipped)
		return
	}
	fmt.Printf("    └─ %s: mean %.1f rps ± %.1f  cv %.1f%% %s  │  latency %s  cv %.1f%% %s\n",
		g.Endpoint,
		g.MeanRPS, g.StdDevRPS,
		g.CVPercentRPS, StabilityLabel(g.StabilityRPS),
		cli.FormatMs(g.MeanLatencyMs),
		g.CVPercentLatency, StabilityLabel(g.StabilityLatency))
}

func StabilityLabel(s stats.Stability) string {
	switch s {
	case stats.StabilityExcellent:
		return cli.Grade(string(s), 0)
	case stats.StabilityAcceptable:
		return cli.Grade(string(s), 1)
	default:
		return cli.Grade(string(s), 2)
	}
}

func severityLabel(s Severity) string {
	switch s {
	case SeverityLow:
		return cli.Grade(string(s), 0)
	case SeverityModerate:
		return cli.Grade(string(s), 1)
	default:
		return cli.Grade(string(s), 2)
	}
}

func overheadLabel(l OverheadLevel) string {
	switch l {
	case OverheadMinimal:
		return cli.Grade(string(l), 0)
	case OverheadModerate:
		return cli.Grade(string(l), 1)
	default:
		return cli.Grade(string(l), 2)
	}
}

func PrintFinalSummary(report *orchestrator.Report, comparisons []config.ComparisonConfig, labels map[string]string) {
	cli.Header("BENCHMARK SUMMARY")

	label := func(env string) string {
		if l, ok := labels[env]; ok {
			return l
		}
		return env
	}

	p := report.Parameters
	cli.Linef("Config")
	fmt.Println(rule)
	cli.Linef("Repetitions: %d  Concurrency: %d  Timeout: %s  Deadline: %s  Cooldown: %s",
		p.Repetitions, p.Concurrency, p.RequestTimeout, p.TrialDeadline, p.Cooldown)
	cli.Blank()

	groups := slices.Clone(report.Groups)
	slices.SortStableFunc(groups, func(a, b orchestrator.GroupSummary) int {
		if a.HasData() != b.HasData() {
			if a.HasData() {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.MeanRPS, a.MeanRPS)
	})

	cli.Linef("Group Rankings (by mean RPS across repetitions)")
	fmt.Println(rule)
	fmt.Printf("  %2s  %-14s  %-14s  %9s  %7s  %-10s  %9s  %9s  %6s  %5s\n",
		"#", "Environment", "Endpoint", "RPS", "CV", "Stability", "Latency", "P95", "Errors", "CPU")
	for i := range groups {
		g := &groups[i]
		if !g.HasData() {
			fmt.Printf("  %2d  %-14s  %-14s  %9s  %7s  %-10s  %9s  %9s  %6s  %5s\n",
				i+1, cli.Truncate(label(g.Environment), 14), cli.Truncate(g.Endpoint, 14),
				"-", "-", cli.Grade("no data", 3), "-", "-", "-", "-")
			continue
		}
		cpu := "-"
		if g.MeanCPUPercent > 0 {
			cpu = fmt.Sprintf("%.0f%%", g.MeanCPUPercent)
		}
		fmt.Printf("  %2d  %-14s  %-14s  %9.1f  %6.1f%%  %-10s  %9s  %9s  %6s  %5s\n",
			i+1,
			cli.Truncate(label(g.Environment), 14),
			cli.Truncate(g.Endpoint, 14),
			g.MeanRPS,
			g.CVPercentRPS,
			StabilityLabel(g.StabilityRPS),
			cli.FormatMs(g.MeanLatencyMs),
			cli.FormatMs(g.MeanP95LatencyMs),
			cli.FormatRate(g.MeanErrorRate),
			cpu)
	}
	cli.Blank()

	for _, pair := range comparisons {
		printComparison(Compare(report, pair.Baseline, pair.Candidate), label(pair.Baseline), label(pair.Candidate))
	}

	if bottlenecks := Bottlenecks(report); len(bottlenecks) > 0 {
		cli.Linef("Bottlenecks (by mean RPS)")
		fmt.Println(rule)
		for _, b := range bottlenecks {
			if b.Severity == SeverityLow {
				continue
			}
			fmt.Printf("  %-14s  %-14s  %9.1f rps  %s\n",
				cli.Truncate(label(b.Environment), 14), cli.Truncate(b.Endpoint, 14), b.MeanRPS, severityLabel(b.Severity))
		}
		cli.Blank()
	}

	var unreachable []string
	for _, env := range report.Environments {
		if env.Reachability != orchestrator.ReachabilityReachable {
			unreachable = append(unreachable, fmt.Sprintf("%s (%s)", env.Label, env.Reason))
		}
	}
	if len(unreachable) > 0 {
		cli.Linef("Issues")
		fmt.Println(rule)
		for _, u := range unreachable {
			cli.Failf("%s", u)
		}
		cli.Blank()
	}

	counts := report.Counts()
	fmt.Println(rule)
	statusStr := fmt.Sprintf("%s %d completed", cli.SymbolPass, counts[trial.StatusCompleted])
	if n := counts[trial.StatusAborted]; n > 0 {
		statusStr += fmt.Sprintf("  %s %d aborted", cli.SymbolFail, n)
	}
	if n := counts[trial.StatusSkipped]; n > 0 {
		statusStr += fmt.Sprintf("  %s %d skipped", cli.SymbolWarning, n)
	}
	duration := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Printf("  %d trials │ %s │ %s\n", len(report.Trials), cli.FormatDuration(duration), statusStr)
	if report.Interrupted {
		cli.Warnf("Run interrupted, remaining trials were skipped")
	}
	cli.Linef("Run: %s", report.RunID)
	cli.Blank()
}

func printComparison(comparisons []Comparison, baseline, candidate string) {
	if len(comparisons) == 0 {
		return
	}
	cli.Linef("%s vs %s", candidate, baseline)
	fmt.Println(rule)
	fmt.Printf("  %-14s  %12s  %12s  %10s  %10s  %s\n",
		"Endpoint", baseline, candidate, "RPS Δ", "Latency Δ", "Level")
	for _, c := range comparisons {
		if !c.Comparable {
			fmt.Printf("  %-14s  %12s  %12s  %10s  %10s  %s\n",
				cli.Truncate(c.Endpoint, 14), "-", "-", "-", "-", cli.Grade("n/a", 3))
			continue
		}
		fmt.Printf("  %-14s  %12.1f  %12.1f  %10s  %10s  %s\n",
			cli.Truncate(c.Endpoint, 14),
			c.BaselineRPS,
			c.CandidateRPS,
			cli.FormatSignedPercent(c.RPSChangePercent),
			cli.FormatSignedPercent(c.LatencyChangePercent),
			overheadLabel(c.Level))
	}
	if mean, ok := MeanChange(comparisons); ok {
		cli.Linef("Mean RPS change: %s (%s)", cli.FormatSignedPercent(mean), overheadLabel(ClassifyOverhead(mean)))
	}
	cli.Blank()
}
