package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pipebench/internal/ring"
)

func TestBuilderWiresChain(t *testing.T) {
	topo, err := NewBuilder(3, 16).Build()
	require.NoError(t, err)

	require.Len(t, topo.Stages, 3)
	assert.Same(t, topo.Entry, topo.Stages[0].In)
	assert.Same(t, topo.Exit, topo.Stages[2].Out)
	for i := 1; i < 3; i++ {
		assert.Same(t, topo.Stages[i-1].Out, topo.Stages[i].In)
	}
	assert.Len(t, topo.Queues(), 4)
	for _, s := range topo.Stages {
		assert.Equal(t, StateIdle, s.State())
	}
}

func TestBuilderRejects(t *testing.T) {
	tests := []struct {
		name     string
		stages   int
		capacity int
		want     error
	}{
		{"no stages", 0, 16, ErrInvalidConfig},
		{"capacity not power of two", 2, 10, ring.ErrInvalidCapacity},
		{"zero capacity", 2, 0, ring.ErrInvalidCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, err := NewBuilder(tt.stages, tt.capacity).Build()
			assert.Nil(t, topo)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTopologyValidate(t *testing.T) {
	newTopo := func(t *testing.T) *Topology {
		topo, err := NewBuilder(2, 8).Build()
		require.NoError(t, err)
		return topo
	}

	t.Run("nil queue", func(t *testing.T) {
		topo := newTopo(t)
		topo.Stages[1].Out = nil
		assert.True(t, errors.Is(topo.Validate(), ErrNilQueue))
	})

	t.Run("broken link", func(t *testing.T) {
		topo := newTopo(t)
		q, err := ring.New[*Item](8)
		require.NoError(t, err)
		topo.Stages[1].In = q
		assert.True(t, errors.Is(topo.Validate(), ErrInvalidConfig))
	})

	t.Run("detached entry", func(t *testing.T) {
		topo := newTopo(t)
		q, err := ring.New[*Item](8)
		require.NoError(t, err)
		topo.Entry = q
		assert.True(t, errors.Is(topo.Validate(), ErrInvalidConfig))
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, errors.Is((&Topology{}).Validate(), ErrInvalidConfig))
	})
}

func TestStageRunRejectsNilQueue(t *testing.T) {
	s := NewStage(0, nil, nil)
	err := s.Run(context.Background(), &Signal{}, nil)
	assert.True(t, errors.Is(err, ErrNilQueue))
	assert.Equal(t, StateIdle, s.State())
}

func newStagePair(t *testing.T, capacity int) (*Stage, *ring.Queue[*Item], *ring.Queue[*Item]) {
	t.Helper()
	in, err := ring.New[*Item](capacity)
	require.NoError(t, err)
	out, err := ring.New[*Item](capacity)
	require.NoError(t, err)
	s := NewStage(0, in, out)
	s.Configure(4, 8, false)
	return s, in, out
}

func TestStageDrainsBeforeStopping(t *testing.T) {
	s, in, out := newStagePair(t, 16)
	c := NewCorpus(10)
	require.Equal(t, 10, in.TryEnqueueBatch(c.Handles()))

	sig := &Signal{}
	sig.Stop()
	upstream := make(chan struct{})
	close(upstream)

	require.NoError(t, s.Run(context.Background(), sig, upstream))

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 0, in.Len())
	assert.Equal(t, 10, out.Len())
	assert.Zero(t, c.Verify(2))

	st := s.Stats()
	assert.Equal(t, int64(10), st.Items)
	assert.Equal(t, int64(3), st.Batches)
	assert.Equal(t, 6, st.MaxBacklog)
	assert.Equal(t, "stopped", st.State)

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestStageWaitsForUpstream(t *testing.T) {
	s, in, out := newStagePair(t, 16)
	c := NewCorpus(4)

	sig := &Signal{}
	sig.Stop()
	upstream := make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background(), sig, upstream) }()

	require.Eventually(t, func() bool { return s.State() == StateStopping }, time.Second, time.Millisecond)

	// Items arriving after stop but before upstream finished are still moved.
	require.Equal(t, 4, in.TryEnqueueBatch(c.Handles()))
	require.Eventually(t, func() bool { return out.Len() == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, StateStopping, s.State())

	close(upstream)
	require.NoError(t, <-errc)
	assert.Equal(t, StateStopped, s.State())
	assert.Zero(t, c.Verify(2))
}

func TestStageRunsOnce(t *testing.T) {
	s, _, _ := newStagePair(t, 8)
	sig := &Signal{}
	sig.Stop()
	upstream := make(chan struct{})
	close(upstream)

	require.NoError(t, s.Run(context.Background(), sig, upstream))
	assert.Error(t, s.Run(context.Background(), sig, upstream))
}

func TestStageAbortRecordsStranded(t *testing.T) {
	s, in, out := newStagePair(t, 4)
	fill := NewCorpus(4)
	require.Equal(t, 4, out.TryEnqueueBatch(fill.Handles()))
	c := NewCorpus(4)
	require.Equal(t, 4, in.TryEnqueueBatch(c.Handles()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, &Signal{}, make(chan struct{}))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateStopped, s.State())

	st := s.Stats()
	assert.Equal(t, 4, st.Stranded)
	assert.Positive(t, st.EnqueueRetries)
}

func TestStageStateString(t *testing.T) {
	tests := []struct {
		state StageState
		want  string
	}{
		{StateIdle, "idle"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StageState(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestTakeAndPut(t *testing.T) {
	stalled := func() *ring.Spinner {
		s := &ring.Spinner{YieldEvery: 2}
		s.Spin()
		s.Spin()
		return s
	}

	tests := []struct {
		name          string
		queued        int
		bulk          bool
		spin          *ring.Spinner
		wantN         int
		wantRemaining int
	}{
		{"best effort takes what is there", 3, false, &ring.Spinner{}, 3, 0},
		{"bulk waits for a full batch", 3, true, &ring.Spinner{}, 0, 0},
		{"bulk takes a full batch", 6, true, &ring.Spinner{}, 4, 2},
		{"stalled bulk settles for less", 3, true, stalled(), 3, 0},
		{"empty", 0, true, stalled(), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ring.New[*Item](8)
			require.NoError(t, err)
			if tt.queued > 0 {
				require.Equal(t, tt.queued, q.TryEnqueueBatch(NewCorpus(tt.queued).Handles()))
			}

			n, remaining := take(q, make([]*Item, 4), tt.bulk, tt.spin)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.wantRemaining, remaining)
			assert.Equal(t, tt.queued-n, q.Len())
		})
	}

	t.Run("put", func(t *testing.T) {
		q, err := ring.New[*Item](4)
		require.NoError(t, err)
		require.Equal(t, 2, q.TryEnqueueBatch(NewCorpus(2).Handles()))
		items := NewCorpus(3).Handles()

		assert.Zero(t, put(q, items, true), "3 never fit into 2 free slots at once")
		assert.Equal(t, 2, q.Len())
		assert.Equal(t, 2, put(q, items, false))
		assert.Equal(t, 4, q.Len())
	})
}
