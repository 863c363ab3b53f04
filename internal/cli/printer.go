package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Status glyphs used in front of console lines.
const (
	SymbolPass    = "✓"
	SymbolFail    = "✗"
	SymbolArrow   = "→"
	SymbolDot     = "•"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"

	Indent = "  "
)

// panelWidth is the inner width of banners and environment panels.
const panelWidth = 60

// Out receives everything the printers write. Tests swap it for a buffer.
var Out io.Writer = os.Stdout

func printf(format string, args ...any) {
	_, _ = fmt.Fprintf(Out, format, args...)
}

// Header prints a boxed banner with the title centred.
func Header(title string) {
	pad := max(panelWidth-lipgloss.Width(title)-2, 0)
	left := pad / 2
	printf("\n╔%s╗\n", strings.Repeat("═", panelWidth))
	printf("║%s %s %s║\n", strings.Repeat(" ", left), title, strings.Repeat(" ", pad-left))
	printf("╚%s╝\n\n", strings.Repeat("═", panelWidth))
}

func Section(title string) {
	printf("\n━━ %s %s\n", title, strings.Repeat("━", max(panelWidth-lipgloss.Width(title)-4, 2)))
}

// EnvironmentHeader opens the panel holding one environment's trial rows.
func EnvironmentHeader(label string) {
	printf("\n┌─ %s %s\n", label, strings.Repeat("─", max(panelWidth-2-lipgloss.Width(label), 2)))
}

func EnvironmentFooter() {
	printf("└%s\n", strings.Repeat("─", panelWidth))
}

func mark(symbol, format string, args []any) {
	printf("%s%s %s\n", Indent, symbol, fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any)    { mark(SymbolInfo, format, args) }
func Successf(format string, args ...any) { mark(SymbolPass, format, args) }
func Failf(format string, args ...any)    { mark(SymbolFail, format, args) }
func Warnf(format string, args ...any)    { mark(SymbolWarning, format, args) }

// Linef prints an indented line without a glyph.
func Linef(format string, args ...any) {
	printf("%s%s\n", Indent, fmt.Sprintf(format, args...))
}

func KeyValue(key, value string) {
	printf("%s%-20s %s\n", Indent, key+":", value)
}

// KeyValuePairs prints key/value pairs on one line. A trailing key without
// a value is shown as "-".
func KeyValuePairs(kv ...string) {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			b.WriteString("  │  ")
		}
		value := "-"
		if i+1 < len(kv) {
			value = kv[i+1]
		}
		b.WriteString(kv[i] + ": " + value)
	}
	Linef("%s", b.String())
}

// TableHeader prints column titles over a rule sized to each title.
func TableHeader(columns ...string) {
	rules := make([]string, len(columns))
	for i, col := range columns {
		rules[i] = strings.Repeat("─", lipgloss.Width(col))
	}
	Linef("%s", strings.Join(columns, "  "))
	Linef("%s", strings.Join(rules, "──"))
}

func Blank() {
	printf("\n")
}

func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func FormatLatency[T int64 | time.Duration](t T) string {
	ns := int64(t)
	if ns < 1000 {
		return fmt.Sprintf("%5dns", ns)
	}
	if ns < 1_000_000 {
		us := float64(ns) / 1000
		return fmt.Sprintf("%5.1fµs", us)
	}
	ms := float64(ns) / 1_000_000
	return fmt.Sprintf("%5.2fms", ms)
}

func FormatMemory(mb float64) string {
	switch {
	case mb < 1:
		return fmt.Sprintf("%.0fKB", mb*1024)
	case mb < 100:
		return fmt.Sprintf("%.1fMB", mb)
	case mb < 10*1024:
		return fmt.Sprintf("%.0fMB", mb)
	default:
		return fmt.Sprintf("%.1fGB", mb/1024)
	}
}

// FormatCpu returns n/a when too few samples were taken for a meaningful value.
func FormatCpu(percent float64, samples int) string {
	if samples < 2 || percent < 0.1 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", percent)
}

func Truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

func FormatReqs(count int) string {
	if count < 1000 {
		return strconv.Itoa(count)
	}
	if count < 1_000_000 {
		return fmt.Sprintf("%.2fk", float64(count)/1000)
	}
	return fmt.Sprintf("%.2fM", float64(count)/1_000_000)
}

func FormatRate(rate float64) string {
	pct := rate * 100
	if pct >= 99.95 {
		return "100%"
	}
	if pct >= 9.95 {
		return fmt.Sprintf("%.1f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

var (
	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Grade colours a label by how good it is: 0 good, 1 warning, 2 bad,
// anything else dimmed.
func Grade(label string, level int) string {
	switch level {
	case 0:
		return goodStyle.Render(label)
	case 1:
		return warnStyle.Render(label)
	case 2:
		return badStyle.Render(label)
	default:
		return dimStyle.Render(label)
	}
}

func FormatMs(ms float64) string {
	return FormatLatency(time.Duration(ms * float64(time.Millisecond)))
}

func FormatSignedPercent(value float64) string {
	return fmt.Sprintf("%+.2f%%", value)
}
