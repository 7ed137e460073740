package config

import (
	"encoding/json"
	"os"

	"github.com/Norrels/Upframer-auth/internal/flagx"
	"github.com/Norrels/Upframer-auth/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "168h" and integer nanoseconds. Empty fields leave the current value alone.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	Environment           string         `json:"environment"`
	Storage               string         `json:"storage"`
	ShutdownTimeout       timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays the file named by -c/-config onto config. Nothing is
// loaded when the flag is absent; an unreadable or invalid file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Environment, c.Environment)
	setString(&config.Storage, c.Storage)
	if c.TokenValidityDuration.Duration > 0 {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
