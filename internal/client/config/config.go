// Package config holds the settings of the auth CLI client: defaults, an
// optional JSON file and command-line flags, applied in that order.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the auth CLI.
//
// Fields:
//   - ServerURL: base URL of the auth HTTP API.
//   - RequestTimeout: upper bound for a single API call.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:3335"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
