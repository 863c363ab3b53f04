package influx

import "envbench/internal/config"

type Config struct {
	Url      string
	Database string
	Token    string
	// SampleRate is the percentage (0-100) of request samples written as
	// request_latency points. Trial, group and resource points are always written.
	SampleRate float64
}

func ConfigFrom(cfg *config.InfluxConfig) Config {
	return Config{
		Url:        cfg.Url,
		Database:   cfg.Database,
		Token:      cfg.Token,
		SampleRate: cfg.SampleRatePct,
	}
}
