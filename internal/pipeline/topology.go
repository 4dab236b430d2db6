package pipeline

import (
	"fmt"

	"github.com/GriffinCanCode/pipebench/internal/ring"
)

// Topology is a validated linear chain of stages plus its boundary queues.
type Topology struct {
	Entry  *ring.Queue[*Item]
	Exit   *ring.Queue[*Item]
	Stages []*Stage
}

// Queues returns every queue of the chain from entry to exit.
func (t *Topology) Queues() []*ring.Queue[*Item] {
	qs := make([]*ring.Queue[*Item], 0, len(t.Stages)+1)
	for _, s := range t.Stages {
		qs = append(qs, s.In)
	}
	return append(qs, t.Exit)
}

// Validate checks that every stage has both queues and that stage i feeds
// stage i+1.
func (t *Topology) Validate() error {
	if len(t.Stages) == 0 {
		return fmt.Errorf("%w: topology has no stages", ErrInvalidConfig)
	}
	for i, s := range t.Stages {
		if s.In == nil || s.Out == nil {
			return fmt.Errorf("stage %d: %w", s.ID, ErrNilQueue)
		}
		if i > 0 && t.Stages[i-1].Out != s.In {
			return fmt.Errorf("%w: stage %d output does not feed stage %d", ErrInvalidConfig, i-1, i)
		}
	}
	if t.Stages[0].In != t.Entry || t.Stages[len(t.Stages)-1].Out != t.Exit {
		return fmt.Errorf("%w: boundary queues are not attached", ErrInvalidConfig)
	}
	return nil
}

// Builder wires stages into a chain. Stage i's output queue is stage i+1's
// input queue.
type Builder struct {
	stages   int
	capacity int
}

// NewBuilder returns a builder for stages stages joined by queues of the
// given capacity.
func NewBuilder(stages, capacity int) *Builder {
	return &Builder{stages: stages, capacity: capacity}
}

// Build allocates stages+1 queues and the stages between them.
func (b *Builder) Build() (*Topology, error) {
	if b.stages < 1 {
		return nil, fmt.Errorf("%w: stages must be >= 1, got %d", ErrInvalidConfig, b.stages)
	}

	queues := make([]*ring.Queue[*Item], b.stages+1)
	for i := range queues {
		q, err := ring.New[*Item](b.capacity)
		if err != nil {
			return nil, fmt.Errorf("queue %d: %w", i, err)
		}
		queues[i] = q
	}

	t := &Topology{
		Entry:  queues[0],
		Exit:   queues[b.stages],
		Stages: make([]*Stage, b.stages),
	}
	for i := range t.Stages {
		t.Stages[i] = NewStage(i, queues[i], queues[i+1])
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
