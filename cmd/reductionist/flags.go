package main

import (
	"flag"
	"fmt"
)

// CLIConfig holds the command-line options. Service behavior is bound to
// environment variables; flags cover only logging and process control.
type CLIConfig struct {
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", "json", "log format: json or text")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "print help and exit")
	flag.BoolVar(&cfg.Validate, "validate", false, "validate configuration and exit")
	flag.Parse()
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return nil
}

func printHelp() {
	fmt.Printf(`%s %s - numeric reductions over object-store array chunks

Usage:
  %s [flags]

Flags:
  -log-level string   log level: debug, info, warn, error (default "info")
  -log-format string  log format: json or text (default "json")
  -validate           validate configuration and exit
  -version            print version and exit
  -help               print this help

Configuration is read from REDUCTIONIST_* environment variables; see the
repository documentation for the full list.
`, appName, Version, appName)
}
