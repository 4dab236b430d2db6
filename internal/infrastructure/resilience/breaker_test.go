package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errStall   = errors.New("stalled")
	errInvalid = errors.New("invalid")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newGuard(clock *fakeClock, onChange func(from, to State)) *Guard {
	return New(Settings{
		Trip:          2,
		Cooldown:      time.Minute,
		IsFailure:     func(err error) bool { return errors.Is(err, errStall) },
		OnStateChange: onChange,
		Now:           clock.Now,
	})
}

func outcome(err error) func() error {
	return func() error { return err }
}

func TestGuardStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []error
		advance  time.Duration
		want     State
	}{
		{"stays closed on success", []error{nil, nil, nil}, 0, StateClosed},
		{"stays closed below trip", []error{errStall, nil, errStall}, 0, StateClosed},
		{"opens at trip", []error{errStall, errStall}, 0, StateOpen},
		{"neutral errors do not count", []error{errInvalid, errInvalid, errInvalid}, 0, StateClosed},
		{"trial after cooldown", []error{errStall, errStall}, time.Minute, StateTrial},
		{"still open before cooldown", []error{errStall, errStall}, 59 * time.Second, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1000, 0)}
			g := newGuard(clock, nil)
			for _, err := range tt.outcomes {
				g.Do(outcome(err))
			}
			clock.Advance(tt.advance)
			assert.Equal(t, tt.want, g.State())
		})
	}
}

func TestGuardRefusesWhileOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newGuard(clock, nil)
	g.Do(outcome(errStall))
	g.Do(outcome(errStall))

	called := false
	err := g.Do(func() error { called = true; return nil })
	assert.True(t, errors.Is(err, ErrGuardOpen))
	assert.False(t, called)
	assert.Equal(t, time.Unix(1060, 0), g.ReopenAt())
}

func TestGuardTrial(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		g := newGuard(clock, nil)
		g.Do(outcome(errStall))
		g.Do(outcome(errStall))
		clock.Advance(time.Minute)

		require.NoError(t, g.Do(outcome(nil)))
		assert.Equal(t, StateClosed, g.State())
		assert.True(t, g.ReopenAt().IsZero())
	})

	t.Run("failure reopens", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		g := newGuard(clock, nil)
		g.Do(outcome(errStall))
		g.Do(outcome(errStall))
		clock.Advance(time.Minute)

		assert.True(t, errors.Is(g.Do(outcome(errStall)), errStall))
		assert.Equal(t, StateOpen, g.State())
		assert.Equal(t, time.Unix(1120, 0), g.ReopenAt())
	})

	t.Run("neutral keeps trial", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		g := newGuard(clock, nil)
		g.Do(outcome(errStall))
		g.Do(outcome(errStall))
		clock.Advance(time.Minute)

		g.Do(outcome(errInvalid))
		assert.Equal(t, StateTrial, g.State())
		require.NoError(t, g.Do(outcome(nil)))
		assert.Equal(t, StateClosed, g.State())
	})

	t.Run("one trial at a time", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		g := newGuard(clock, nil)
		g.Do(outcome(errStall))
		g.Do(outcome(errStall))
		clock.Advance(time.Minute)

		var second error
		require.NoError(t, g.Do(func() error {
			second = g.Do(outcome(nil))
			return nil
		}))
		assert.True(t, errors.Is(second, ErrGuardOpen))
	})
}

func TestGuardNotifiesTransitions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var changes [][2]State
	g := newGuard(clock, func(from, to State) {
		changes = append(changes, [2]State{from, to})
	})

	g.Do(outcome(errStall))
	g.Do(outcome(errStall))
	clock.Advance(time.Minute)
	g.Do(outcome(nil))

	assert.Equal(t, [][2]State{
		{StateClosed, StateOpen},
		{StateOpen, StateTrial},
		{StateTrial, StateClosed},
	}, changes)
}

func TestGuardCountsResetOnTransition(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newGuard(clock, nil)

	g.Do(outcome(nil))
	g.Do(outcome(errStall))
	assert.Equal(t, Counts{Attempts: 2, Successes: 1, Failures: 1, ConsecutiveFailures: 1}, g.Counts())

	g.Do(outcome(errStall))
	assert.Equal(t, Counts{}, g.Counts())
}

func TestGuardRecordsPanicAsFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := newGuard(clock, nil)

	for i := 0; i < 2; i++ {
		assert.Panics(t, func() {
			g.Do(func() error { panic("boom") })
		})
	}
	assert.Equal(t, StateOpen, g.State())
}

func TestGuardDefaults(t *testing.T) {
	g := New(Settings{})
	for i := 0; i < 2; i++ {
		g.Do(outcome(errInvalid))
	}
	assert.Equal(t, StateClosed, g.State())
	g.Do(outcome(errInvalid))
	assert.Equal(t, StateOpen, g.State())
	assert.WithinDuration(t, time.Now().Add(time.Minute), g.ReopenAt(), 5*time.Second)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "trial", StateTrial.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
