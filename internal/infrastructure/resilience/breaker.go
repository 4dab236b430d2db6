package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrGuardOpen is returned while the guard refuses new runs.
var ErrGuardOpen = errors.New("run guard is open")

// State is the guard state.
type State int

const (
	StateClosed State = iota
	StateTrial
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateTrial:
		return "trial"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Guard.
type Settings struct {
	// Trip is the number of consecutive failed runs that opens the guard.
	Trip int
	// Cooldown is how long the guard stays open before a trial run is let
	// through.
	Cooldown time.Duration
	// IsFailure classifies a run error. Errors it rejects are neutral: they
	// neither trip nor close the guard.
	IsFailure func(err error) bool
	// OnStateChange is called after a transition, outside the lock.
	OnStateChange func(from, to State)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Counts holds run outcome counters since the last state change.
type Counts struct {
	Attempts            uint32
	Successes           uint32
	Failures            uint32
	ConsecutiveFailures uint32
}

// Guard stops admitting runs after repeated failures and lets a single trial
// through once the cooldown has passed. A successful trial closes it again.
type Guard struct {
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	reopenAt time.Time
	trial    bool
}

// New creates a closed guard.
func New(settings Settings) *Guard {
	if settings.Trip <= 0 {
		settings.Trip = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = time.Minute
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Guard{settings: settings, state: StateClosed}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	state, change := g.current()
	g.mu.Unlock()
	g.notify(change)
	return state
}

// Counts returns a copy of the counters.
func (g *Guard) Counts() Counts {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts
}

// ReopenAt returns when an open guard admits its trial. It is zero unless
// the guard is open.
func (g *Guard) ReopenAt() time.Time {
	g.mu.Lock()
	state, change := g.current()
	until := g.reopenAt
	g.mu.Unlock()
	g.notify(change)
	if state != StateOpen {
		return time.Time{}
	}
	return until
}

// Do runs fn if the guard admits it and records the outcome.
func (g *Guard) Do(fn func() error) (err error) {
	if err := g.admit(); err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			g.done(true, false)
			panic(e)
		}
	}()

	err = fn()
	g.done(g.settings.IsFailure(err), err == nil)
	return err
}

func (g *Guard) admit() error {
	g.mu.Lock()
	state, change := g.current()
	switch {
	case state == StateOpen, state == StateTrial && g.trial:
		g.mu.Unlock()
		g.notify(change)
		return ErrGuardOpen
	case state == StateTrial:
		g.trial = true
	}
	g.counts.Attempts++
	g.mu.Unlock()

	g.notify(change)
	return nil
}

func (g *Guard) done(failed, succeeded bool) {
	g.mu.Lock()
	var change *[2]State
	wasTrial := g.state == StateTrial
	g.trial = false

	switch {
	case failed:
		g.counts.Failures++
		g.counts.ConsecutiveFailures++
		if wasTrial || int(g.counts.ConsecutiveFailures) >= g.settings.Trip {
			change = g.set(StateOpen)
		}
	case succeeded:
		g.counts.Successes++
		g.counts.ConsecutiveFailures = 0
		if wasTrial {
			change = g.set(StateClosed)
		}
	}
	g.mu.Unlock()

	g.notify(change)
}

// current moves an expired open guard to trial. Callers hold mu.
func (g *Guard) current() (State, *[2]State) {
	if g.state == StateOpen && !g.settings.Now().Before(g.reopenAt) {
		return StateTrial, g.set(StateTrial)
	}
	return g.state, nil
}

// set changes state and resets the counters. Callers hold mu.
func (g *Guard) set(state State) *[2]State {
	if g.state == state {
		return nil
	}
	prev := g.state
	g.state = state
	g.counts = Counts{}
	g.reopenAt = time.Time{}
	if state == StateOpen {
		g.reopenAt = g.settings.Now().Add(g.settings.Cooldown)
	}
	return &[2]State{prev, state}
}

func (g *Guard) notify(change *[2]State) {
	if change != nil && g.settings.OnStateChange != nil {
		g.settings.OnStateChange(change[0], change[1])
	}
}
