package config

import (
	"github.com/caarlos0/env/v11"
)

// envConfig mirrors the variables the service has always been deployed with.
// PORT carries a bare port number and is turned into ":PORT".
type envConfig struct {
	DatabaseDSN string `env:"DATABASE_URL"`
	SecretKey   string `env:"JWT_SECRET"`
	Port        string `env:"PORT"`
	Environment string `env:"NODE_ENV"`
	Storage     string `env:"AUTH_STORAGE"`
}

// parseEnv overlays environment variables onto config. A nil environ reads
// the process environment.
func parseEnv(config *Config, environ map[string]string) error {
	var c envConfig

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return err
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Environment, c.Environment)
	setString(&config.Storage, c.Storage)
	if c.Port != "" {
		config.EndpointAddrHTTP = ":" + c.Port
	}
	return nil
}
