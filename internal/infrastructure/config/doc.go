// Package config provides 12-factor configuration for pipebench.
//
// Configuration is loaded from environment variables with defaults for the
// classic two-stage shape. A YAML, TOML or JSON file may be layered
// on top with LoadFile, and CLI flags override both.
//
// Configuration Sections:
//   - Pipeline: run parameters (stages, items, batch, capacity, pacing)
//   - Logging: log level and output format
//   - Server: control plane listen address and CORS origins
//   - RateLimit: per-IP rate limiting of the control plane
//   - Report: default report output path
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	stats, err := pipeline.NewRunner(cfg.Pipeline.Params(), logger).Run(ctx, id)
//
// Environment Variables:
//   - PIPEBENCH_STAGES, PIPEBENCH_ITEMS, PIPEBENCH_BATCH, PIPEBENCH_QUEUE_CAPACITY
//   - PIPEBENCH_BACKPRESSURE, PIPEBENCH_BULK, PIPEBENCH_SPIN_YIELD, PIPEBENCH_PRODUCER_RATE
//   - PIPEBENCH_PIN_CPUS, PIPEBENCH_RUN_TIMEOUT, PIPEBENCH_RUNS, PIPEBENCH_HISTORY
//   - LOG_LEVEL, LOG_DEV, PORT, HOST, CORS_ORIGINS
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED, REPORT_PATH
package config
