package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process logger. Subsystems take a named child through
// Component; run-scoped code takes one through ForRun.
type Logger struct {
	*zap.Logger
}

// Config selects the level, the encoding and where lines go.
type Config struct {
	Level       string // "debug", "info", "warn", "error"; empty picks by mode
	Development bool   // console lines instead of JSON
	OutputPaths []string
}

// New builds a logger named "pipebench". Output defaults to stderr so the
// report on stdout stays machine-readable.
func New(cfg Config) (*Logger, error) {
	name := cfg.Level
	if name == "" {
		name = "info"
		if cfg.Development {
			name = "debug"
		}
	}
	level, err := ParseLevel(name)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		// Keep every line of a run and stamp sub-second timings exactly.
		zc.Sampling = nil
		zc.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		zc.EncoderConfig.EncodeDuration = zapcore.NanosDurationEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger.Named("pipebench")}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ForRun returns the logger of one benchmark run: named "run" and tagged
// with its id.
func (l *Logger) ForRun(runID string) *zap.Logger {
	return l.Named("run").With(zap.String("run_id", runID))
}

// Component returns a named child logger for a subsystem.
func (l *Logger) Component(name string) *zap.Logger {
	return l.Named(name)
}

// ParseLevel converts a level name to zapcore.Level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
