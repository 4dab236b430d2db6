package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/pipebench/internal/ring"
)

var (
	// ErrInvalidConfig is returned when run parameters are unusable.
	ErrInvalidConfig = errors.New("invalid pipeline configuration")
	// ErrNilQueue is returned when a stage is wired without an input or output queue.
	ErrNilQueue = errors.New("stage queue not configured")
	// ErrRunAborted is returned when a run stops before every item was received.
	ErrRunAborted = errors.New("pipeline run aborted")
)

// Ceilings on a single run. A corpus item and a queue slot are allocated up
// front, so these bound the memory one request can claim.
const (
	MaxStages    = 256
	MaxItems     = 1 << 27
	MaxBatchSize = 1 << 16
	// MaxQueueSlots bounds the slots of all queues of a run together.
	MaxQueueSlots = 1 << 24
)

// Params are the knobs of one benchmark run.
type Params struct {
	Stages        int           `json:"stages"`
	Items         int           `json:"items"`
	BatchSize     int           `json:"batch_size"`
	QueueCapacity int           `json:"queue_capacity"`
	Backpressure  bool          `json:"backpressure"`
	Bulk          bool          `json:"bulk"` // all-or-nothing batches
	SpinYield     int           `json:"spin_yield"`
	ProducerRate  float64       `json:"producer_rate"` // items/s, 0 = unpaced
	PinCPUs       bool          `json:"pin_cpus"`
	Timeout       time.Duration `json:"timeout"`
}

// DefaultParams returns two stages, 2^20 items, batches
// of 32 and 1024-slot queues.
func DefaultParams() Params {
	return Params{
		Stages:        2,
		Items:         1 << 20,
		BatchSize:     32,
		QueueCapacity: 1 << 10,
		Backpressure:  true,
		SpinYield:     ring.DefaultYieldEvery,
		Timeout:       5 * time.Minute,
	}
}

// Validate reports the first unusable parameter.
func (p Params) Validate() error {
	switch {
	case p.Stages < 1 || p.Stages > MaxStages:
		return fmt.Errorf("%w: stages must be in [1, %d], got %d", ErrInvalidConfig, MaxStages, p.Stages)
	case p.Items < 1 || p.Items > MaxItems:
		return fmt.Errorf("%w: items must be in [1, %d], got %d", ErrInvalidConfig, MaxItems, p.Items)
	case p.BatchSize < 1 || p.BatchSize > MaxBatchSize:
		return fmt.Errorf("%w: batch size must be in [1, %d], got %d", ErrInvalidConfig, MaxBatchSize, p.BatchSize)
	case p.QueueCapacity <= 0 || p.QueueCapacity > ring.MaxCapacity || p.QueueCapacity&(p.QueueCapacity-1) != 0:
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ring.ErrInvalidCapacity)
	case (p.Stages+1)*p.QueueCapacity > MaxQueueSlots:
		return fmt.Errorf("%w: %d queues of %d slots exceed %d slots", ErrInvalidConfig, p.Stages+1, p.QueueCapacity, MaxQueueSlots)
	case p.Bulk && p.BatchSize > p.QueueCapacity:
		return fmt.Errorf("%w: bulk batches of %d never fit a queue of %d", ErrInvalidConfig, p.BatchSize, p.QueueCapacity)
	case p.ProducerRate < 0:
		return fmt.Errorf("%w: producer rate must be >= 0", ErrInvalidConfig)
	case p.Timeout < 0:
		return fmt.Errorf("%w: timeout must be >= 0", ErrInvalidConfig)
	}
	return nil
}
