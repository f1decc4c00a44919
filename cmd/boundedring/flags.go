package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	cerrors "github.com/aradilov/boundedring/errors"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Command     string
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	Timeout     time.Duration
	Capacity    int
	Unit        time.Duration
	Jitter      float64
	Items       int
	ShowVersion bool

	// ProcessFile is the positional argument of "simulate"
	ProcessFile string

	// set records which flags were given explicitly so they can override the config file
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{set: make(map[string]bool)}

	if len(args) == 0 {
		printUsage(stderr)
		return nil, invalidFlags(fmt.Errorf("missing command"))
	}
	switch args[0] {
	case "-v", "--version", "version":
		cfg.ShowVersion = true
		return cfg, nil
	case "demo", "simulate":
		cfg.Command = args[0]
	default:
		printUsage(stderr)
		return nil, invalidFlags(fmt.Errorf("unknown command %q", args[0]))
	}

	fs := flag.NewFlagSet(appName+" "+cfg.Command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("BOUNDEDRING_CONFIG", ""),
		"Path to YAML configuration file (env: BOUNDEDRING_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("BOUNDEDRING_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: BOUNDEDRING_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("BOUNDEDRING_LOG_FORMAT", "text"),
		"Log format: json, text (env: BOUNDEDRING_LOG_FORMAT)")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("BOUNDEDRING_METRICS_ADDR", ""),
		"Serve Prometheus metrics on this address, empty to disable (env: BOUNDEDRING_METRICS_ADDR)")

	fs.DurationVar(&cfg.Timeout, "timeout",
		getEnvDuration("BOUNDEDRING_TIMEOUT", 0),
		"Overall run deadline, 0 for none (env: BOUNDEDRING_TIMEOUT)")

	fs.IntVar(&cfg.Capacity, "capacity",
		getEnvInt("BOUNDEDRING_CAPACITY", 3),
		"Channel capacity (env: BOUNDEDRING_CAPACITY)")
	fs.DurationVar(&cfg.Unit, "unit", time.Second, "Length of one arrival/burst tick (simulate)")
	fs.Float64Var(&cfg.Jitter, "jitter", 0, "Item spacing jitter in [0, 1] (simulate)")
	fs.IntVar(&cfg.Items, "items", 5, "Number of items to pass through the channel (demo)")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, invalidFlags(err)
	}
	fs.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })
	if err := markEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.Command == "simulate" {
		if fs.NArg() != 1 {
			return nil, invalidFlags(fmt.Errorf("simulate needs exactly one process file, got %d arguments", fs.NArg()))
		}
		cfg.ProcessFile = fs.Arg(0)
	}

	return cfg, validateFlags(cfg)
}

// markEnvOverrides treats a parsable BOUNDEDRING_CAPACITY or BOUNDEDRING_TIMEOUT
// like an explicit flag, so it wins over the config file. An unparsable value
// is rejected instead of silently falling back to the default.
func markEnvOverrides(cfg *CLIConfig) error {
	if value := os.Getenv("BOUNDEDRING_CAPACITY"); value != "" && !cfg.set["capacity"] {
		if _, err := strconv.Atoi(value); err != nil {
			return invalidFlags(fmt.Errorf("BOUNDEDRING_CAPACITY: %w", err))
		}
		cfg.set["capacity"] = true
	}
	if value := os.Getenv("BOUNDEDRING_TIMEOUT"); value != "" && !cfg.set["timeout"] {
		if _, err := time.ParseDuration(value); err != nil {
			return invalidFlags(fmt.Errorf("BOUNDEDRING_TIMEOUT: %w", err))
		}
		cfg.set["timeout"] = true
	}
	return nil
}

func invalidFlags(err error) error {
	return cerrors.WrapInvalid(fmt.Errorf("%w: %w", cerrors.ErrInvalidConfig, err), "CLI", "parseFlags", "parse arguments")
}

func validateFlags(cfg *CLIConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.LogLevel) {
		return invalidFlags(fmt.Errorf("invalid log level: %s", cfg.LogLevel))
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, cfg.LogFormat) {
		return invalidFlags(fmt.Errorf("invalid log format: %s", cfg.LogFormat))
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return cerrors.WrapFatal(fmt.Errorf("%w: config file %s: %w", cerrors.ErrMissingConfig, cfg.ConfigPath, err),
				"CLI", "validateFlags", "stat config")
		}
	}

	return nil
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - bounded producer/consumer channel

Usage:
  %s demo [options]
  %s simulate [options] PROCESS_FILE
  %s version

Commands:
  demo      one producer and one consumer passing items through the channel
  simulate  run one task per line of a process table (text or YAML)

Process table (text):
  PID ARRIVAL BURST PRIORITY [ROLE [ITEMS]]
  The first line is a header. ROLE is idle, producer or consumer.

Run "%s COMMAND -h" for the options of a command.

Version: %s
`, appName, appName, appName, appName, appName, Version)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
