package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"go-backoffice-console/internal/app"
	"go-backoffice-console/internal/config"
	"go-backoffice-console/internal/logger"
)

func main() {
	flags := pflag.NewFlagSet("console", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file merged into the environment before loading config")
	addr := flags.String("addr", "", "listen address, overrides CONSOLE_ADDR")
	logLevel := flags.String("log-level", "", "debug, info, warn or error; overrides LOG_LEVEL")
	storageDriver := flags.String("storage", "", "session storage driver (file, redis, postgres, memory); overrides STORAGE_DRIVER")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: console [flags]\n\nRuns the back-office operator console on a local address.\n\nFlags:\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	// Flags are applied through the environment so Validate sees one view.
	if *addr != "" {
		_ = os.Setenv("CONSOLE_ADDR", *addr)
	}
	if *storageDriver != "" {
		_ = os.Setenv("STORAGE_DRIVER", *storageDriver)
	}
	if *logLevel != "" {
		_ = os.Setenv("LOG_LEVEL", *logLevel)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Setup(os.Stderr, "info")
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(os.Stdout, cfg.LogLevel)

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
