package config

import (
	"fmt"
	"strconv"

	"envbench/internal/cli"
)

func (c *Config) Print() {
	cli.Section("Configuration")

	cli.KeyValuePairs(
		"Environments", strconv.Itoa(len(c.Environments)),
		"Endpoints", strconv.Itoa(len(c.Endpoints)),
		"Repetitions", strconv.Itoa(c.Run.RepetitionCount()),
	)
	cli.KeyValuePairs(
		"Concurrency", strconv.Itoa(c.Run.Concurrency),
		"Timeout", c.Run.RequestTimeoutDuration.String(),
		"Deadline", c.Run.TrialDeadlineDuration.String(),
	)

	abortStr := "disabled"
	if n := c.Run.AbortAfter(); n > 0 {
		abortStr = fmt.Sprintf("%d consecutive", n)
	}
	cooldownStr := "disabled"
	if c.Run.CooldownDuration > 0 {
		cooldownStr = c.Run.CooldownDuration.String()
	}
	warmupStr := "disabled"
	if c.Run.Warmup > 0 {
		warmupStr = fmt.Sprintf("%d req", c.Run.Warmup)
	}
	cli.KeyValuePairs("Abort", abortStr, "Cooldown", cooldownStr, "Warmup", warmupStr)

	if c.Run.RateLimit > 0 {
		cli.KeyValue("Rate limit", fmt.Sprintf("%.0f req/s", c.Run.RateLimit))
	}

	influxStr := "disabled"
	if c.Influx.Enabled {
		influxStr = fmt.Sprintf("%s/%s (sample %.0f%%)", c.Influx.Url, c.Influx.Database, c.Influx.SampleRatePct)
	}
	historyStr := "disabled"
	if c.History.Enabled {
		historyStr = c.History.Path
	}
	cli.KeyValuePairs("InfluxDB", influxStr, "History", historyStr)

	for _, env := range c.Environments {
		cli.Linef("%s %-18s %s", cli.SymbolDot, env.Name, env.BaseURL)
	}
}

// EnvironmentNames returns environment names in declared order.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, len(c.Environments))
	for i, env := range c.Environments {
		names[i] = env.Name
	}
	return names
}

// EndpointNames returns endpoint names in declared order.
func (c *Config) EndpointNames() []string {
	names := make([]string, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		names[i] = ep.Name
	}
	return names
}
