package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Resinat/Relayview/internal/logging"
)

// AddFlags registers command-line overrides for the settings operators
// change most often. Flag defaults are the values already loaded from the
// environment.
func (c *EnvConfig) AddFlags(fs *pflag.FlagSet) *EnvConfig {
	fs.StringVarP(&c.ListenAddress, "listen", "l", c.ListenAddress, "Address the HTTP server listens on")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "Port the HTTP server listens on")
	fs.StringVarP(&c.CatalogPath, "catalog", "c", c.CatalogPath, "Path to the endpoint catalog (built-in catalog when empty)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.BoolVar(&c.LogConsole, "log-console", c.LogConsole, "Human-readable console logging")
	return c
}

// ParseFlags parses args onto c and revalidates the overridable fields.
func (c *EnvConfig) ParseFlags(fs *pflag.FlagSet, args []string) error {
	c.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	c.CatalogPath = strings.TrimSpace(c.CatalogPath)

	var errs []string
	if c.ListenAddress == "" {
		errs = append(errs, "--listen must not be empty")
	}
	validatePort("--port", c.Port, &errs)
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("--log-level: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("flag validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
