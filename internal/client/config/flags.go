package config

import (
	"flag"
	"io"

	"github.com/Norrels/Upframer-auth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string     base URL of the server
//	-r duration   request timeout (e.g. "5s")
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-r"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	fs.DurationVar(&cfg.RequestTimeout, "r", cfg.RequestTimeout, "request timeout")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
