// Package logging provides structured logging for pipebench using uber/zap.
//
// Two modes are supported:
//   - Production: JSON lines, suitable for collecting run logs
//   - Development: coloured console output with stack traces on errors
//
// Logs go to stderr by default so that the benchmark report printed on
// stdout stays machine-readable.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	logger.ForRun(runID).Info("Run started", zap.Int("stages", 2))
package logging
