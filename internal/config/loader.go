package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v4"
)

const (
	DefaultConfigFile = "envbench.yaml"

	DefaultRepetitions    = 6
	DefaultConcurrency    = 50
	DefaultRequests       = 100
	DefaultRequestTimeout = "30s"
	DefaultTrialDeadline  = "5m"
	DefaultCooldown       = "2s"
	DefaultAbortThreshold = 5
	DefaultSampleInterval = "1s"

	DefaultHealthPath    = "/health"
	DefaultHealthTimeout = "5s"

	DefaultResultsDir = "results"

	DefaultInfluxUrl        = "http://localhost:8181"
	DefaultInfluxDatabase   = "envbench"
	DefaultInfluxSampleRate = "10%"

	DefaultHistoryPath = "envbench.db"

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "console"
)

// ErrInvalid marks configuration errors. They are the only errors that
// stop a run before any trial starts.
var ErrInvalid = errors.New("invalid configuration")

// Load reads filename, layers the overrides held by v (environment
// variables and flags, may be nil), fills defaults and validates.
func Load(filename string, v *viper.Viper) (*Config, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // config file path is controlled by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(filename))
	if err != nil {
		return nil, err
	}

	if v != nil {
		applyOverrides(cfg, v)
	}

	if err = Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML or JSON document, chosen by file extension.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse YAML config: %w", ErrInvalid, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse JSON config: %w", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config file format: %q", ErrInvalid, ext)
	}

	return &cfg, nil
}

// Finalize applies defaults and validates a decoded configuration.
func Finalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalid)
	}
	if err := applyDefaults(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := validate(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	var err error
	run := &cfg.Run

	if run.Repetitions == nil {
		run.Repetitions = intPtr(DefaultRepetitions)
	}
	if run.AbortThreshold == nil {
		run.AbortThreshold = intPtr(DefaultAbortThreshold)
	}
	if run.Concurrency == 0 {
		run.Concurrency = DefaultConcurrency
	}
	if run.Requests == 0 {
		run.Requests = DefaultRequests
	}

	if run.RequestTimeoutDuration, err = parsePositiveDuration(run.RequestTimeout, DefaultRequestTimeout); err != nil {
		return fmt.Errorf("run request_timeout: %w", err)
	}
	if run.TrialDeadlineDuration, err = parsePositiveDuration(run.TrialDeadline, DefaultTrialDeadline); err != nil {
		return fmt.Errorf("run trial_deadline: %w", err)
	}
	if run.SampleIntervalDuration, err = parsePositiveDuration(run.SampleInterval, DefaultSampleInterval); err != nil {
		return fmt.Errorf("run sample_interval: %w", err)
	}
	if run.CooldownDuration, err = parseDuration(run.Cooldown, DefaultCooldown); err != nil {
		return fmt.Errorf("run cooldown: %w", err)
	}
	if run.CooldownDuration < 0 {
		return errors.New("run cooldown must be >= 0")
	}

	if strings.TrimSpace(cfg.Health.Path) == "" {
		cfg.Health.Path = DefaultHealthPath
	}
	if cfg.Health.TimeoutDuration, err = parsePositiveDuration(cfg.Health.Timeout, DefaultHealthTimeout); err != nil {
		return fmt.Errorf("health timeout: %w", err)
	}

	for i := range cfg.Environments {
		env := &cfg.Environments[i]
		env.Name = strings.TrimSpace(env.Name)
		env.BaseURL = strings.TrimRight(strings.TrimSpace(env.BaseURL), "/")
	}
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		ep.Name = strings.TrimSpace(ep.Name)
		ep.Path = strings.TrimSpace(ep.Path)
		if ep.Requests == 0 {
			ep.Requests = run.Requests
		}
	}

	if strings.TrimSpace(cfg.Output.ResultsDir) == "" {
		cfg.Output.ResultsDir = DefaultResultsDir
	}

	if strings.TrimSpace(cfg.Influx.Url) == "" {
		cfg.Influx.Url = DefaultInfluxUrl
	}
	if strings.TrimSpace(cfg.Influx.Database) == "" {
		cfg.Influx.Database = DefaultInfluxDatabase
	}
	pct, err := parsePercent(cfg.Influx.SampleRate, DefaultInfluxSampleRate)
	if err != nil {
		return fmt.Errorf("influx sample_rate: %w", err)
	}
	if pct > 100 {
		return errors.New("influx sample_rate must be <= 100%")
	}
	cfg.Influx.SampleRatePct = pct

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = DefaultHistoryPath
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	return nil
}

func intPtr(n int) *int {
	return &n
}

type override struct {
	key   string
	apply func(cfg *Config, v *viper.Viper, key string)
}

var overrides = []override{
	{"run.repetitions", func(c *Config, v *viper.Viper, k string) {
		c.Run.Repetitions = intPtr(v.GetInt(k))
	}},
	{"run.abort_threshold", func(c *Config, v *viper.Viper, k string) {
		c.Run.AbortThreshold = intPtr(v.GetInt(k))
	}},
	{"run.concurrency", func(c *Config, v *viper.Viper, k string) {
		c.Run.Concurrency = v.GetInt(k)
	}},
	{"run.requests", func(c *Config, v *viper.Viper, k string) {
		c.Run.Requests = v.GetInt(k)
	}},
	{"run.request_timeout", setString(func(c *Config) *string { return &c.Run.RequestTimeout })},
	{"run.trial_deadline", setString(func(c *Config) *string { return &c.Run.TrialDeadline })},
	{"run.cooldown", setString(func(c *Config) *string { return &c.Run.Cooldown })},
	{"run.sample_interval", setString(func(c *Config) *string { return &c.Run.SampleInterval })},
	{"run.rate_limit", func(c *Config, v *viper.Viper, k string) {
		c.Run.RateLimit = v.GetFloat64(k)
	}},
	{"run.warmup", func(c *Config, v *viper.Viper, k string) {
		c.Run.Warmup = v.GetInt(k)
	}},
	{"output.results_dir", setString(func(c *Config) *string { return &c.Output.ResultsDir })},
	{"output.request_detail", func(c *Config, v *viper.Viper, k string) {
		c.Output.RequestDetail = v.GetBool(k)
	}},
	{"influx.enabled", func(c *Config, v *viper.Viper, k string) {
		c.Influx.Enabled = v.GetBool(k)
	}},
	{"influx.url", setString(func(c *Config) *string { return &c.Influx.Url })},
	{"influx.database", setString(func(c *Config) *string { return &c.Influx.Database })},
	{"influx.token", setString(func(c *Config) *string { return &c.Influx.Token })},
	{"history.enabled", func(c *Config, v *viper.Viper, k string) {
		c.History.Enabled = v.GetBool(k)
	}},
	{"history.path", setString(func(c *Config) *string { return &c.History.Path })},
	{"metrics.listen", setString(func(c *Config) *string { return &c.Metrics.Listen })},
	{"log.level", setString(func(c *Config) *string { return &c.Log.Level })},
	{"log.format", setString(func(c *Config) *string { return &c.Log.Format })},
}

func setString(field func(*Config) *string) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, k string) {
		*field(c) = strings.TrimSpace(v.GetString(k))
	}
}

// OverrideKeys lists the keys that environment variables and flags may set.
func OverrideKeys() []string {
	keys := make([]string, len(overrides))
	for i, o := range overrides {
		keys[i] = o.key
	}
	return keys
}

// EnvPrefix is the prefix of environment variables that override config keys,
// e.g. ENVBENCH_RUN_CONCURRENCY for run.concurrency.
const EnvPrefix = "ENVBENCH"

func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func applyOverrides(cfg *Config, v *viper.Viper) {
	for _, o := range overrides {
		if v.IsSet(o.key) {
			o.apply(cfg, v, o.key)
		}
	}
}
