package bench

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/pipebench/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pipebench/internal/pipeline"
	"github.com/GriffinCanCode/pipebench/internal/shared/id"
)

func testParams() pipeline.Params {
	p := pipeline.DefaultParams()
	p.Items = 5000
	p.QueueCapacity = 64
	p.BatchSize = 8
	p.Timeout = time.Minute
	return p
}

// slowParams paces the producer so a run lasts about half a second.
func slowParams() pipeline.Params {
	p := testParams()
	p.Items = 100
	p.BatchSize = 10
	p.ProducerRate = 200
	return p
}

func TestExecuteRecordsHistory(t *testing.T) {
	metrics := monitoring.NewMetrics()
	defer metrics.Close()
	m := NewManager(testParams(), nil).WithMetrics(metrics)

	first, err := m.Execute(context.Background(), m.Defaults())
	require.NoError(t, err)
	second, err := m.Execute(context.Background(), m.Defaults())
	require.NoError(t, err)

	assert.True(t, id.IsValidRunID(first.RunID))
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Zero(t, first.Errors)

	got, ok := m.Get(second.RunID)
	require.True(t, ok)
	assert.Same(t, second, got)

	list := m.List()
	require.Len(t, list, 2)
	assert.Same(t, first, list[0])
	assert.False(t, m.Running())

	assert.Equal(t, int64(2), metrics.Snapshot().RunsCompleted)
}

func TestRunLogsCarryRunID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewManager(testParams(), &logging.Logger{Logger: zap.New(core)})

	stats, err := m.Execute(context.Background(), m.Defaults())
	require.NoError(t, err)

	for _, msg := range []string{"Starting pipeline run", "Pipeline run finished"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "run", entries[0].LoggerName)
		assert.Equal(t, stats.RunID, entries[0].ContextMap()["run_id"])
	}
}

func TestHistoryIsBounded(t *testing.T) {
	m := NewManager(testParams(), nil).WithHistory(2)

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := m.Execute(context.Background(), m.Defaults())
		require.NoError(t, err)
		ids = append(ids, s.RunID)
	}

	_, ok := m.Get(ids[0])
	assert.False(t, ok, "oldest run should be evicted")
	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, ids[1], list[0].RunID)
	assert.Equal(t, ids[2], list[1].RunID)
}

func TestExecuteRejectsInvalidParams(t *testing.T) {
	m := NewManager(testParams(), nil)
	p := m.Defaults()
	p.QueueCapacity = 3

	stats, err := m.Execute(context.Background(), p)
	assert.Nil(t, stats)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidConfig))
	assert.Empty(t, m.List())
	assert.False(t, m.Running())
}

func TestExecuteOneAtATime(t *testing.T) {
	m := NewManager(slowParams(), nil)
	events := m.Subscribe()
	defer m.Unsubscribe(events)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Execute(context.Background(), m.Defaults())
		errc <- err
	}()

	waitFor(t, events, EventStarted)
	assert.True(t, m.Running())

	_, err := m.Execute(context.Background(), m.Defaults())
	assert.True(t, errors.Is(err, ErrRunInProgress))

	require.NoError(t, <-errc)
	assert.Len(t, m.List(), 1)
}

func TestAbortedRunIsKept(t *testing.T) {
	metrics := monitoring.NewMetrics()
	defer metrics.Close()
	m := NewManager(slowParams(), nil).WithMetrics(metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stats, err := m.Execute(ctx, m.Defaults())
	assert.True(t, errors.Is(err, pipeline.ErrRunAborted))
	require.NotNil(t, stats)
	assert.True(t, stats.Aborted)

	_, ok := m.Get(stats.RunID)
	assert.True(t, ok)
	assert.Equal(t, int64(1), metrics.Snapshot().RunsAborted)
}

func TestGuardRefusesAfterStalls(t *testing.T) {
	metrics := monitoring.NewMetrics()
	defer metrics.Close()
	guard := resilience.New(resilience.Settings{Trip: 1, Cooldown: time.Hour, IsFailure: IsStall})
	m := NewManager(slowParams(), nil).WithMetrics(metrics).WithGuard(guard)

	stalled := slowParams()
	stalled.Timeout = 30 * time.Millisecond
	stats, err := m.Execute(context.Background(), stalled)
	require.NotNil(t, stats)
	assert.True(t, IsStall(err))
	assert.Equal(t, resilience.StateOpen, guard.State())

	stats, err = m.Execute(context.Background(), testParams())
	assert.Nil(t, stats)
	assert.True(t, errors.Is(err, resilience.ErrGuardOpen))
	assert.False(t, m.Running())
	assert.Len(t, m.List(), 1)
}

func TestGuardIgnoresCancelledRuns(t *testing.T) {
	guard := resilience.New(resilience.Settings{Trip: 1, Cooldown: time.Hour, IsFailure: IsStall})
	m := NewManager(slowParams(), nil).WithGuard(guard)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := m.Execute(ctx, m.Defaults())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, resilience.StateClosed, guard.State())

	_, err = m.Execute(context.Background(), testParams())
	assert.NoError(t, err)
}

func TestIsStall(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", fmt.Errorf("%w: %w", pipeline.ErrRunAborted, context.DeadlineExceeded), true},
		{"cancel", fmt.Errorf("%w: %w", pipeline.ErrRunAborted, context.Canceled), false},
		{"invalid", pipeline.ErrInvalidConfig, false},
		{"bare deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsStall(tt.err), tt.name)
	}
}

func TestLiveFeed(t *testing.T) {
	m := NewManager(slowParams(), nil).WithSampleInterval(20 * time.Millisecond)
	events := m.Subscribe()
	assert.Equal(t, 1, m.Subscribers())

	stats, err := m.Execute(context.Background(), m.Defaults())
	require.NoError(t, err)

	started := waitFor(t, events, EventStarted)
	assert.Equal(t, stats.RunID, started.RunID)
	require.NotNil(t, started.Params)
	assert.Equal(t, 100, started.Params.Items)

	sample := waitFor(t, events, EventSample)
	assert.Len(t, sample.Depths, 3)
	assert.Len(t, sample.Processed, 2)

	done := waitFor(t, events, EventDone)
	assert.Empty(t, done.Error)
	require.NotNil(t, done.Result)
	assert.Equal(t, stats.RunID, done.Result.RunID)
	assert.Equal(t, int64(100), done.Received)

	m.Unsubscribe(events)
	assert.Zero(t, m.Subscribers())
	for range events {
	}
}

func waitFor(t *testing.T, events <-chan Event, typ string) Event {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "feed closed before %s", typ)
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}
