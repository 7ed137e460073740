package config

import (
	"flag"
	"io"

	"github.com/Norrels/Upframer-auth/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g., ":3335")
//	-d string     PostgreSQL DSN
//	-s string     token signing secret
//	-t duration   token validity (e.g., "168h")
//	-e string     environment: development, production, test
//	-m string     storage: postgres, memory
//
// Args are filtered with flagx.FilterArgs first, so flags owned by other
// components (the config file flag, go test flags) do not cause parse errors.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-e", "-m"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.DurationVar(&config.TokenValidityDuration, "t", config.TokenValidityDuration, "token validity")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment")
	fs.StringVar(&config.Storage, "m", config.Storage, "storage backend")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
