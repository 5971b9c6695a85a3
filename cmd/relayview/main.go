package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/Resinat/Relayview/internal/config"
	"github.com/Resinat/Relayview/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. Environment, then command-line overrides.
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	fs := pflag.NewFlagSet("relayview", pflag.ContinueOnError)
	if err := envCfg.ParseFlags(fs, args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// 2. Endpoint catalog; its settings block wins over the environment.
	catalog, err := config.LoadCatalog(envCfg.CatalogPath)
	if err != nil {
		return err
	}
	catalog.ApplySettings(envCfg)

	log, err := logging.New(envCfg.LogLevel, envCfg.LogConsole)
	if err != nil {
		return err
	}

	app, err := newRelayviewApp(envCfg, catalog, log)
	if err != nil {
		return err
	}
	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh, log)

	app.shutdown(shutdownTimeout)
	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}
