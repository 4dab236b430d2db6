package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/pipebench/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pipebench/internal/pipeline"
)

var (
	// ErrInvalid is returned when a loaded configuration cannot be used.
	ErrInvalid = errors.New("invalid configuration")
	// ErrUnsupportedFormat is returned for config files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// Config holds all application configuration.
type Config struct {
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline" toml:"pipeline"`
	Logging   LogConfig       `json:"logging" yaml:"logging" toml:"logging"`
	Server    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	Report    ReportConfig    `json:"report" yaml:"report" toml:"report"`
}

// PipelineConfig holds the benchmark run parameters.
type PipelineConfig struct {
	Stages        int      `envconfig:"PIPEBENCH_STAGES" default:"2" json:"stages" yaml:"stages" toml:"stages"`
	Items         int      `envconfig:"PIPEBENCH_ITEMS" default:"1048576" json:"items" yaml:"items" toml:"items"`
	BatchSize     int      `envconfig:"PIPEBENCH_BATCH" default:"32" json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	QueueCapacity int      `envconfig:"PIPEBENCH_QUEUE_CAPACITY" default:"1024" json:"queue_capacity" yaml:"queue_capacity" toml:"queue_capacity"`
	Backpressure  bool     `envconfig:"PIPEBENCH_BACKPRESSURE" default:"true" json:"backpressure" yaml:"backpressure" toml:"backpressure"`
	Bulk          bool     `envconfig:"PIPEBENCH_BULK" default:"false" json:"bulk" yaml:"bulk" toml:"bulk"`
	SpinYield     int      `envconfig:"PIPEBENCH_SPIN_YIELD" default:"64" json:"spin_yield" yaml:"spin_yield" toml:"spin_yield"`
	ProducerRate  float64  `envconfig:"PIPEBENCH_PRODUCER_RATE" default:"0" json:"producer_rate" yaml:"producer_rate" toml:"producer_rate"`
	PinCPUs       bool     `envconfig:"PIPEBENCH_PIN_CPUS" default:"false" json:"pin_cpus" yaml:"pin_cpus" toml:"pin_cpus"`
	RunTimeout    Duration `envconfig:"PIPEBENCH_RUN_TIMEOUT" default:"5m" json:"run_timeout" yaml:"run_timeout" toml:"run_timeout"`
	Runs          int      `envconfig:"PIPEBENCH_RUNS" default:"1" json:"runs" yaml:"runs" toml:"runs"`
	History       int      `envconfig:"PIPEBENCH_HISTORY" default:"100" json:"history" yaml:"history" toml:"history"`
	AbortTrip     int      `envconfig:"PIPEBENCH_ABORT_TRIP" default:"3" json:"abort_trip" yaml:"abort_trip" toml:"abort_trip"`
	AbortCooldown Duration `envconfig:"PIPEBENCH_ABORT_COOLDOWN" default:"1m" json:"abort_cooldown" yaml:"abort_cooldown" toml:"abort_cooldown"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" json:"level" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" json:"development" yaml:"development" toml:"development"`
}

// ServerConfig holds HTTP control plane configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8080" json:"port" yaml:"port" toml:"port"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0" json:"host" yaml:"host" toml:"host"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*" json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// RateLimitConfig holds rate limiting configuration for the control plane.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"10" json:"rps" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"20" json:"burst" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" json:"enabled" yaml:"enabled" toml:"enabled"`
}

// ReportConfig holds report output configuration.
type ReportConfig struct {
	Path string `envconfig:"REPORT_PATH" json:"path" yaml:"path" toml:"path"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads the environment and overlays the keys present in a YAML,
// TOML or JSON file on top of it. The result is validated.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".json":
		err = sonic.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	p := pipeline.DefaultParams()
	return &Config{
		Pipeline: PipelineConfig{
			Stages:        p.Stages,
			Items:         p.Items,
			BatchSize:     p.BatchSize,
			QueueCapacity: p.QueueCapacity,
			Backpressure:  p.Backpressure,
			SpinYield:     p.SpinYield,
			RunTimeout:    Duration(p.Timeout),
			Runs:          1,
			History:       100,
			AbortTrip:     3,
			AbortCooldown: Duration(time.Minute),
		},
		Logging: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
	}
}

// Params converts the pipeline section to run parameters.
func (c PipelineConfig) Params() pipeline.Params {
	return pipeline.Params{
		Stages:        c.Stages,
		Items:         c.Items,
		BatchSize:     c.BatchSize,
		QueueCapacity: c.QueueCapacity,
		Backpressure:  c.Backpressure,
		Bulk:          c.Bulk,
		SpinYield:     c.SpinYield,
		ProducerRate:  c.ProducerRate,
		PinCPUs:       c.PinCPUs,
		Timeout:       time.Duration(c.RunTimeout),
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if err := c.Pipeline.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Pipeline.Runs < 1 {
		return fmt.Errorf("%w: runs must be >= 1, got %d", ErrInvalid, c.Pipeline.Runs)
	}
	if c.Pipeline.History < 1 {
		return fmt.Errorf("%w: history must be >= 1, got %d", ErrInvalid, c.Pipeline.History)
	}
	if c.Pipeline.AbortTrip < 0 || c.Pipeline.AbortCooldown < 0 {
		return fmt.Errorf("%w: abort guard settings must not be negative", ErrInvalid)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: log level: %w", ErrInvalid, err)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond < 1 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("%w: rate limit needs rps and burst >= 1", ErrInvalid)
	}
	return nil
}

// Addr returns the listen address of the control plane.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Duration is a time.Duration that reads and writes as "5m", "250ms" in env
// vars and config files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
