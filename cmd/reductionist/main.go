// Package main implements the entry point for the Reductionist server, a
// stateless HTTP service performing numeric reductions over binary array
// chunks stored in S3-compatible or HTTP object stores.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/reductionist/config"
	"github.com/c360/reductionist/service"
)

// Build information constants.
const (
	Version = "0.1.0"
	appName = "reductionist"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	slog.Info("starting reductionist",
		"version", Version,
		"addr", cfg.ListenAddr(),
		"tls", cfg.TLSEnabled,
		"cache", cfg.CacheEnabled,
		"cpu_pool", cfg.UseCPUPool,
		"cpu_limit", cfg.EffectiveCPULimit())

	server, err := service.New(cfg, service.Dependencies{Logger: logger})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := server.Start(signalCtx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	slog.Info("reductionist shutdown complete")
	return nil
}
