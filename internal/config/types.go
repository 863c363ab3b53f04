package config

import "time"

type Config struct {
	Run          RunConfig          `yaml:"run" json:"run"`
	Health       HealthConfig       `yaml:"health" json:"health"`
	Environments []Environment      `yaml:"environments" json:"environments" validate:"required,min=1,dive"`
	Endpoints    []Endpoint         `yaml:"endpoints" json:"endpoints" validate:"required,min=1,dive"`
	Comparisons  []ComparisonConfig `yaml:"comparisons,omitempty" json:"comparisons,omitempty" validate:"dive"`
	Output       OutputConfig       `yaml:"output" json:"output"`
	Influx       InfluxConfig       `yaml:"influx" json:"influx"`
	History      HistoryConfig      `yaml:"history" json:"history"`
	Metrics      MetricsConfig      `yaml:"metrics" json:"metrics"`
	Log          LogConfig          `yaml:"log" json:"log"`
}

type RunConfig struct {
	Repetitions    *int    `yaml:"repetitions,omitempty" json:"repetitions,omitempty"`
	Concurrency    int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty" validate:"gte=0"`
	Requests       int     `yaml:"requests,omitempty" json:"requests,omitempty" validate:"gte=0"`
	RequestTimeout string  `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
	TrialDeadline  string  `yaml:"trial_deadline,omitempty" json:"trial_deadline,omitempty"`
	Cooldown       string  `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	AbortThreshold *int    `yaml:"abort_threshold,omitempty" json:"abort_threshold,omitempty"`
	RateLimit      float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty" validate:"gte=0"`
	Warmup         int     `yaml:"warmup,omitempty" json:"warmup,omitempty" validate:"gte=0"`
	SampleInterval string  `yaml:"sample_interval,omitempty" json:"sample_interval,omitempty"`

	RequestTimeoutDuration time.Duration `yaml:"-" json:"-"`
	TrialDeadlineDuration  time.Duration `yaml:"-" json:"-"`
	CooldownDuration       time.Duration `yaml:"-" json:"-"`
	SampleIntervalDuration time.Duration `yaml:"-" json:"-"`
}

// RepetitionCount returns the configured repetitions; only valid after Load.
func (r *RunConfig) RepetitionCount() int {
	if r.Repetitions == nil {
		return DefaultRepetitions
	}
	return *r.Repetitions
}

// AbortAfter returns the consecutive connection failure threshold, 0 when disabled.
func (r *RunConfig) AbortAfter() int {
	if r.AbortThreshold == nil {
		return DefaultAbortThreshold
	}
	return *r.AbortThreshold
}

type HealthConfig struct {
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	TimeoutDuration time.Duration `yaml:"-" json:"-"`
}

type Environment struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Label   string `yaml:"label,omitempty" json:"label,omitempty"`
	BaseURL string `yaml:"base_url" json:"base_url" validate:"required"`
}

// DisplayName returns the label, falling back to the name.
func (e *Environment) DisplayName() string {
	if e.Label != "" {
		return e.Label
	}
	return e.Name
}

type Endpoint struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Path     string `yaml:"path" json:"path" validate:"required"`
	Requests int    `yaml:"requests,omitempty" json:"requests,omitempty" validate:"gte=0"`
}

// ComparisonConfig pairs a baseline environment with a candidate whose
// overhead against it is reported, e.g. bare host vs container.
type ComparisonConfig struct {
	Baseline  string `yaml:"baseline" json:"baseline" validate:"required"`
	Candidate string `yaml:"candidate" json:"candidate" validate:"required,nefield=Baseline"`
}

type OutputConfig struct {
	ResultsDir    string `yaml:"results_dir,omitempty" json:"results_dir,omitempty"`
	RequestDetail bool   `yaml:"request_detail,omitempty" json:"request_detail,omitempty"`
}

type InfluxConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Url        string `yaml:"url,omitempty" json:"url,omitempty"`
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Token      string `yaml:"token,omitempty" json:"token,omitempty"`
	SampleRate string `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`

	SampleRatePct float64 `yaml:"-" json:"-"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=console json"`
}
