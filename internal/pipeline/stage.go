package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/GriffinCanCode/pipebench/internal/ring"
)

// StageState is the lifecycle of a stage.
type StageState int32

const (
	StateIdle StageState = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the string representation of the state
func (s StageState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stage is one worker of the chain, bound to one input and one output queue.
type Stage struct {
	ID  int
	In  *ring.Queue[*Item]
	Out *ring.Queue[*Item]

	batchSize int
	spinYield int
	bulk      bool

	state     atomic.Int32
	processed atomic.Int64
	done      chan struct{}
	stats     StageStats
}

// NewStage creates an idle stage.
func NewStage(id int, in, out *ring.Queue[*Item]) *Stage {
	return &Stage{
		ID:        id,
		In:        in,
		Out:       out,
		batchSize: DefaultParams().BatchSize,
		spinYield: ring.DefaultYieldEvery,
		done:      make(chan struct{}),
	}
}

// Configure sets the batch size, spin policy and bulk mode. It must be
// called before Run.
func (s *Stage) Configure(batchSize, spinYield int, bulk bool) {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	s.spinYield = spinYield
	s.bulk = bulk
}

// State returns the current lifecycle state.
func (s *Stage) State() StageState {
	return StageState(s.state.Load())
}

// Processed returns the number of items this stage has transformed so far.
func (s *Stage) Processed() int64 {
	return s.processed.Load()
}

// Done is closed once the stage has stopped and will not enqueue again.
func (s *Stage) Done() <-chan struct{} {
	return s.done
}

// Stats returns the counters of the stage. Only valid after Done is closed.
func (s *Stage) Stats() StageStats {
	st := s.stats
	st.ID = s.ID
	st.State = s.State().String()
	return st
}

// Run moves batches from In to Out until sig is raised and the input has been
// drained, or until ctx is cancelled. upstream must be closed by whoever feeds
// In once it will not enqueue any more.
func (s *Stage) Run(ctx context.Context, sig *Signal, upstream <-chan struct{}) error {
	if s.In == nil || s.Out == nil {
		return fmt.Errorf("stage %d: %w", s.ID, ErrNilQueue)
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("stage %d: already %s", s.ID, s.State())
	}
	defer func() {
		s.state.Store(int32(StateStopped))
		close(s.done)
	}()

	buf := make([]*Item, s.batchSize)
	spin := ring.Spinner{YieldEvery: s.spinYield}
	abort := ctx.Done()

	for {
		if s.State() == StateRunning && sig.Stopped() {
			s.state.Store(int32(StateStopping))
		}
		// Observe upstream before polling: if it had finished and the poll
		// still comes back empty, nothing can arrive any more.
		drained := s.State() == StateStopping && closed(upstream)

		// Once drained the tail is final and may be shorter than a batch.
		n, remaining := take(s.In, buf, s.bulk && !drained, &spin)
		if n == 0 {
			if drained {
				return nil
			}
			s.stats.EmptyPolls++
			if closed(abort) {
				return ctx.Err()
			}
			spin.Spin()
			continue
		}
		spin.Reset()

		batch := buf[:n]
		for _, it := range batch {
			it.Value++
		}
		s.stats.Batches++
		s.stats.Items += int64(n)
		s.stats.MaxBacklog = max(s.stats.MaxBacklog, remaining)
		s.processed.Add(int64(n))

		if err := s.forward(ctx, batch, &spin); err != nil {
			return err
		}
	}
}

// forward pushes the whole batch to Out, retrying the unsent remainder.
func (s *Stage) forward(ctx context.Context, batch []*Item, spin *ring.Spinner) error {
	abort := ctx.Done()
	for sent := 0; sent < len(batch); {
		n := put(s.Out, batch[sent:], s.bulk)
		if n > 0 {
			sent += n
			spin.Reset()
			continue
		}
		s.stats.EnqueueRetries++
		if closed(abort) {
			s.stats.Stranded = len(batch) - sent
			return ctx.Err()
		}
		spin.Spin()
	}
	return nil
}

// take dequeues into buf. In bulk mode only a full buf is taken until spin
// has stalled; after that whatever is queued is accepted, so a tail shorter
// than a batch cannot wedge the chain.
func take(q *ring.Queue[*Item], buf []*Item, bulk bool, spin *ring.Spinner) (n, remaining int) {
	if !bulk || spin.Stalled() {
		return q.TryDequeueBatch(buf)
	}
	if q.TryDequeueAll(buf) {
		return len(buf), q.Len()
	}
	return 0, 0
}

// put enqueues the longest prefix of items that fits, or in bulk mode all of
// them or nothing.
func put(q *ring.Queue[*Item], items []*Item, bulk bool) int {
	if !bulk {
		return q.TryEnqueueBatch(items)
	}
	if q.TryEnqueueAll(items) {
		return len(items)
	}
	return 0
}
