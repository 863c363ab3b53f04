package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Options holds the choices made interactively before a run.
type Options struct {
	Environments []string // empty means all environments
	Endpoints    []string // empty means all endpoints
	Warmup       bool
	Resources    bool
}

func DefaultOptions() Options {
	return Options{Warmup: true, Resources: true}
}

var bannerLines = []string{
	"███████╗███╗   ██╗██╗   ██╗██████╗ ███████╗███╗   ██╗ ██████╗██╗  ██╗",
	"██╔════╝████╗  ██║██║   ██║██╔══██╗██╔════╝████╗  ██║██╔════╝██║  ██║",
	"█████╗  ██╔██╗ ██║██║   ██║██████╔╝█████╗  ██╔██╗ ██║██║     ███████║",
	"██╔══╝  ██║╚██╗██║╚██╗ ██╔╝██╔══██╗██╔══╝  ██║╚██╗██║██║     ██╔══██║",
	"███████╗██║ ╚████║ ╚████╔╝ ██████╔╝███████╗██║ ╚████║╚██████╗██║  ██║",
	"╚══════╝╚═╝  ╚═══╝  ╚═══╝  ╚═════╝ ╚══════╝╚═╝  ╚═══╝ ╚═════╝╚═╝  ╚═╝",
}

var gradientStops = [][3]float64{
	{79, 70, 229},   // indigo #4F46E5
	{129, 92, 246},  // violet #8B5CF6
	{168, 85, 247},  // purple #A855F7
	{217, 70, 239},  // fuchsia #D946EF
	{236, 72, 153},  // pink #EC4899
	{251, 113, 133}, // rose #FB7185
}

func lerpColor(c1, c2 [3]float64, t float64) [3]float64 {
	return [3]float64{
		c1[0] + (c2[0]-c1[0])*t,
		c1[1] + (c2[1]-c1[1])*t,
		c1[2] + (c2[2]-c1[2])*t,
	}
}

func getGradientColor(t float64) [3]float64 {
	if t <= 0 {
		return gradientStops[0]
	}
	if t >= 1 {
		return gradientStops[len(gradientStops)-1]
	}

	segments := float64(len(gradientStops) - 1)
	scaled := t * segments
	idx := min(int(scaled), len(gradientStops)-2)
	localT := scaled - float64(idx)

	return lerpColor(gradientStops[idx], gradientStops[idx+1], localT)
}

func PrintBanner() {
	fmt.Println()

	height := len(bannerLines)
	width := 0
	for _, line := range bannerLines {
		width = max(width, len([]rune(line)))
	}

	for y, line := range bannerLines {
		var result strings.Builder
		for x, r := range []rune(line) {
			diagonal := (float64(x)/float64(width))*0.5 + (float64(y)/float64(height))*0.5
			color := getGradientColor(diagonal)

			style := lipgloss.NewStyle().Foreground(lipgloss.Color(
				fmt.Sprintf("#%02X%02X%02X", int(color[0]), int(color[1]), int(color[2])),
			))
			result.WriteString(style.Render(string(r)))
		}
		fmt.Println(result.String())
	}
	fmt.Println()
}

// PromptOptions asks which environments and endpoints to run and which
// optional phases to enable.
func PromptOptions(environments, endpoints []string) (*Options, error) {
	opts := DefaultOptions()

	var phases []string
	var scope string
	var selectedEnvs, selectedEndpoints []string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What should be benchmarked?").
				Options(
					huh.NewOption("Every environment and endpoint (recommended)", "all"),
					huh.NewOption("Select environments and endpoints", "select"),
				).Value(&scope),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select environments").
				Description("Environments are probed before their trials run").
				Options(huh.NewOptions(environments...)...).
				Value(&selectedEnvs),
			huh.NewMultiSelect[string]().
				Title("Select endpoints").
				Options(huh.NewOptions(endpoints...)...).
				Value(&selectedEndpoints),
		).WithHideFunc(func() bool { return scope != "select" }),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select phases").
				Description("Choose which optional phases to run").
				Options(
					huh.NewOption("Warmup (recommended)", "warmup").Selected(true),
					huh.NewOption("Resource monitoring", "resources").Selected(true),
				).Value(&phases),
		),
	).WithTheme(huh.ThemeCatppuccin()).WithKeyMap(huh.NewDefaultKeyMap())

	if err := form.Run(); err != nil {
		return nil, err
	}

	opts.Warmup = slices.Contains(phases, "warmup")
	opts.Resources = slices.Contains(phases, "resources")

	if scope == "select" {
		if len(selectedEnvs) == 0 {
			return nil, errors.New("no environments selected - please select at least one environment")
		}
		if len(selectedEndpoints) == 0 {
			return nil, errors.New("no endpoints selected - please select at least one endpoint")
		}
		opts.Environments = selectedEnvs
		opts.Endpoints = selectedEndpoints
	}

	return &opts, nil
}

func PrintSummary(opts *Options, environmentCount, endpointCount int) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	enabledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disabledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	formatStatus := func(enabled bool) string {
		if enabled {
			return enabledStyle.Render("enabled")
		}
		return disabledStyle.Render("disabled")
	}
	formatList := func(names []string, total int) string {
		if len(names) == 0 {
			return valueStyle.Render(fmt.Sprintf("all (%d)", total))
		}
		return valueStyle.Render(strings.Join(names, ", "))
	}

	fmt.Println(headerStyle.Render("Selection"))
	fmt.Println(strings.Repeat("─", 40))

	fmt.Printf("%s %s\n", labelStyle.Render("Warmup:"), formatStatus(opts.Warmup))
	fmt.Printf("%s %s\n", labelStyle.Render("Resources:"), formatStatus(opts.Resources))
	fmt.Printf("%s %s\n", labelStyle.Render("Environments:"), formatList(opts.Environments, environmentCount))
	fmt.Printf("%s %s\n", labelStyle.Render("Endpoints:"), formatList(opts.Endpoints, endpointCount))

	fmt.Println(strings.Repeat("─", 40))
	fmt.Println()
}
