package main

import (
	"fmt"
	"os"
	"time"

	"rentbook/internal/cli"
	"rentbook/internal/log"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	// Keep stdout for command output.
	logger = log.New(log.Config{Level: cfg.Level(), Format: cfg.LogFormat, Output: os.Stderr})
	log.SetDefault(logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		open:   func() (*cli.Store, error) { return cli.InitStore(logger, cfg) },
		now:    time.Now,
	}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
