package config

import (
	"fmt"
	"slices"
	"strings"
)

// Selection narrows a run to a subset of environments and endpoints.
// Empty lists select everything.
type Selection struct {
	Environments []string
	Endpoints    []string
}

// ParseList splits a comma-separated flag value.
func ParseList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ApplySelection filters cfg in place, keeping declared order, and returns
// names that matched nothing. Selecting nothing valid is a configuration error.
func ApplySelection(cfg *Config, sel Selection) ([]string, error) {
	var unknown []string

	if len(sel.Environments) > 0 {
		unknown = append(unknown, missing(sel.Environments, cfg.EnvironmentNames())...)
		cfg.Environments = slices.DeleteFunc(cfg.Environments, func(e Environment) bool {
			return !slices.Contains(sel.Environments, e.Name)
		})
		cfg.Comparisons = slices.DeleteFunc(cfg.Comparisons, func(c ComparisonConfig) bool {
			return !slices.Contains(sel.Environments, c.Baseline) || !slices.Contains(sel.Environments, c.Candidate)
		})
	}
	if len(sel.Endpoints) > 0 {
		unknown = append(unknown, missing(sel.Endpoints, cfg.EndpointNames())...)
		cfg.Endpoints = slices.DeleteFunc(cfg.Endpoints, func(e Endpoint) bool {
			return !slices.Contains(sel.Endpoints, e.Name)
		})
	}

	if len(cfg.Environments) == 0 {
		return unknown, fmt.Errorf("%w: no environments selected", ErrInvalid)
	}
	if len(cfg.Endpoints) == 0 {
		return unknown, fmt.Errorf("%w: no endpoints selected", ErrInvalid)
	}
	return unknown, nil
}

func missing(wanted, available []string) []string {
	var out []string
	for _, name := range wanted {
		if !slices.Contains(available, name) {
			out = append(out, name)
		}
	}
	return out
}
