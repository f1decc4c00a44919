// Command boundedring drives the bounded channel: a paced producer/consumer
// demo and a process-table simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cerrors "github.com/aradilov/boundedring/errors"
	"github.com/aradilov/boundedring/internal/sim"
)

const (
	// Version is the application version
	Version = "0.1.0"

	appName = "boundedring"

	shutdownTimeout = 5 * time.Second
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "class", cerrors.Classify(err).String())
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error class to the process exit status:
// 1 transient (interrupted or cancelled runs), 3 invalid input, 4 fatal.
func exitCode(err error) int {
	switch cerrors.Classify(err) {
	case cerrors.ErrorInvalid:
		return 3
	case cerrors.ErrorFatal:
		return 4
	default:
		return 1
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(stderr, cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	reg := newRegistry()
	if cli.MetricsAddr != "" {
		srv, err := startMetricsServer(cli.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer srv.Stop(shutdownTimeout)
	}

	logger.Info("starting", "command", cli.Command, "capacity", cfg.Capacity)

	switch cli.Command {
	case "demo":
		return runDemo(ctx, stdout, cfg, logger, reg)
	default:
		return runSimulate(ctx, stdout, cli.ProcessFile, cfg, logger, reg)
	}
}

// loadConfig layers explicitly given flags over the config file (or the defaults).
func loadConfig(cli *CLIConfig) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if cli.ConfigPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(cli.ConfigPath); err != nil {
			return cfg, err
		}
	}

	if cli.set["capacity"] {
		cfg.Capacity = cli.Capacity
	}
	if cli.set["timeout"] {
		cfg.Timeout = cli.Timeout
	}
	if cli.set["unit"] {
		cfg.Unit = cli.Unit
	}
	if cli.set["jitter"] {
		cfg.Jitter = cli.Jitter
	}
	if cli.set["items"] {
		cfg.Demo.Items = cli.Items
	}

	return cfg, cfg.Validate()
}

func runDemo(ctx context.Context, stdout io.Writer, cfg sim.Config, logger *slog.Logger, reg prometheus.Registerer) error {
	ch, err := sim.NewChannel[int](cfg.Capacity, "demo", logger, reg)
	if err != nil {
		return err
	}

	res, err := sim.Demo(ctx, ch, cfg.Demo, logger)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	logger.Info("demo finished",
		"run_id", res.RunID,
		"consumed", len(res.Consumed),
		"max_resident", res.Stats.MaxResident)
	_, _ = fmt.Fprintln(stdout, "Demo complete. Producer and consumer are done.")
	return nil
}

func runSimulate(ctx context.Context, stdout io.Writer, path string, cfg sim.Config, logger *slog.Logger, reg prometheus.Registerer) error {
	ds, err := sim.LoadDescriptors(path)
	if err != nil {
		return err
	}

	ch, err := sim.NewChannel[sim.Item](cfg.Capacity, "simulate", logger, reg)
	if err != nil {
		return err
	}

	report := sim.Run(ctx, ch, ds, sim.Options{
		Unit:   cfg.Unit,
		Jitter: cfg.Jitter,
		Logger: logger,
	})

	logger.Info("simulation finished",
		"run_id", report.RunID,
		"tasks", len(report.Tasks),
		"produced", report.Produced,
		"consumed", report.Consumed,
		"interrupted", report.Interrupted(),
		"elapsed", report.Elapsed,
		"max_resident", report.Stats.MaxResident)

	if n := report.Interrupted(); n > 0 {
		return fmt.Errorf("%d of %d processes were interrupted", n, len(report.Tasks))
	}
	_, _ = fmt.Fprintln(stdout, "All processes completed.")
	return nil
}
