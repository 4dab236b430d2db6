package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pipebench/internal/domain/bench"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/config"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pipebench/internal/pipeline"
	"github.com/GriffinCanCode/pipebench/internal/report"
	"github.com/GriffinCanCode/pipebench/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "pipebench: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := "run"
	if len(args) > 0 && (args[0] == "run" || args[0] == "serve") {
		cmd, args = args[0], args[1:]
	}

	cfg, err := parseFlags(cmd, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cmd == "serve" {
		return serve(ctx, cfg, logger)
	}
	return runBench(ctx, cfg, logger, stdout)
}

// parseFlags loads the environment, then the optional config file, then
// applies the flags that were set explicitly.
func parseFlags(cmd string, args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("pipebench "+cmd, flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML, TOML or JSON config file")
	stages := fs.Int("stages", 0, "Number of worker stages")
	items := fs.Int("items", 0, "Number of items in the corpus")
	batch := fs.Int("batch", 0, "Batch size for every queue operation")
	capacity := fs.Int("capacity", 0, "Queue capacity (power of two)")
	spin := fs.Int("spin-yield", 0, "Failed polls before yielding the processor")
	noBackpressure := fs.Bool("no-backpressure", false, "Disable the producer half-full gate")
	bulk := fs.Bool("bulk", false, "Move whole batches or nothing")
	rate := fs.Float64("rate", 0, "Producer rate limit in items per second (0 = unlimited)")
	pin := fs.Bool("pin", false, "Pin stages to CPUs")
	timeout := fs.Duration("timeout", 0, "Abort a run after this long")
	runs := fs.Int("runs", 0, "Number of repeated runs")
	reportPath := fs.String("report", "", "Write a report (.json, .yaml, .toml, .csv, optionally .gz or .zst)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dev := fs.Bool("dev", false, "Development logging")
	host := fs.String("host", "", "Control plane host (serve)")
	port := fs.String("port", "", "Control plane port (serve)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "stages":
			cfg.Pipeline.Stages = *stages
		case "items":
			cfg.Pipeline.Items = *items
		case "batch":
			cfg.Pipeline.BatchSize = *batch
		case "capacity":
			cfg.Pipeline.QueueCapacity = *capacity
		case "spin-yield":
			cfg.Pipeline.SpinYield = *spin
		case "no-backpressure":
			cfg.Pipeline.Backpressure = !*noBackpressure
		case "bulk":
			cfg.Pipeline.Bulk = *bulk
		case "rate":
			cfg.Pipeline.ProducerRate = *rate
		case "pin":
			cfg.Pipeline.PinCPUs = *pin
		case "timeout":
			cfg.Pipeline.RunTimeout = config.Duration(*timeout)
		case "runs":
			cfg.Pipeline.Runs = *runs
		case "report":
			cfg.Report.Path = *reportPath
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "dev":
			cfg.Logging.Development = *dev
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*logging.Logger, error) {
	return logging.New(logging.Config{Level: cfg.Level, Development: cfg.Development})
}

// runBench executes the configured number of runs and prints each result.
func runBench(ctx context.Context, cfg *config.Config, logger *logging.Logger, stdout io.Writer) error {
	manager := benchManager(cfg, logger)

	var runErr error
	for i := 0; i < cfg.Pipeline.Runs; i++ {
		stats, err := manager.Execute(ctx, cfg.Pipeline.Params())
		if stats != nil {
			if perr := report.PrintRun(stdout, stats); perr != nil {
				return perr
			}
		}
		if err != nil {
			runErr = err
			if errors.Is(err, pipeline.ErrInvalidConfig) || ctx.Err() != nil {
				break
			}
			logger.Warn("Run failed, continuing", zap.Int("run", i+1), zap.Error(err))
		}
	}

	runs := manager.List()
	if cfg.Pipeline.Runs > 1 && len(runs) > 0 {
		report.PrintSummary(stdout, report.Summarize(runs))
	}
	if cfg.Report.Path != "" && len(runs) > 0 {
		if err := report.WriteFile(cfg.Report.Path, report.New(runs)); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		logger.Info("Report written", zap.String("path", cfg.Report.Path), zap.Int("runs", len(runs)))
	}
	return runErr
}

func benchManager(cfg *config.Config, logger *logging.Logger) *bench.Manager {
	history := cfg.Pipeline.History
	if cfg.Pipeline.Runs > history {
		history = cfg.Pipeline.Runs
	}
	return bench.NewManager(cfg.Pipeline.Params(), logger).WithHistory(history)
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	srv := server.NewServer(cfg, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
