package bench

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pipebench/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pipebench/internal/pipeline"
	"github.com/GriffinCanCode/pipebench/internal/report"
	"github.com/GriffinCanCode/pipebench/internal/shared/id"
)

// ErrRunInProgress is returned when a run is requested while another one is
// executing.
var ErrRunInProgress = errors.New("a benchmark run is already in progress")

const (
	// DefaultHistory is the number of results kept in memory.
	DefaultHistory = 100
	// DefaultSampleInterval is the live feed sampling period.
	DefaultSampleInterval = 100 * time.Millisecond

	subscriberBuffer = 64
)

// Manager executes benchmark runs one at a time and keeps their results.
type Manager struct {
	defaults pipeline.Params
	log      *logging.Logger
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	ids      *id.Generator
	clock    pipeline.Clock
	guard    *resilience.Guard

	running atomic.Bool

	mu      sync.RWMutex
	history []*pipeline.RunStats // oldest first, protected by mu
	index   map[string]*pipeline.RunStats
	limit   int

	subsMu sync.Mutex
	subs   map[<-chan Event]chan Event

	sampleEvery time.Duration
}

// NewManager creates a manager whose runs start from defaults.
func NewManager(defaults pipeline.Params, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		defaults:    defaults,
		log:         logger,
		logger:      logger.Component("bench"),
		ids:         id.Default(),
		clock:       pipeline.SystemClock{},
		index:       make(map[string]*pipeline.RunStats),
		limit:       DefaultHistory,
		subs:        make(map[<-chan Event]chan Event),
		sampleEvery: DefaultSampleInterval,
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithGuard makes runs go through g. Use IsStall as its failure
// classifier.
func (m *Manager) WithGuard(g *resilience.Guard) *Manager {
	m.guard = g
	return m
}

// WithHistory sets how many results are retained.
func (m *Manager) WithHistory(n int) *Manager {
	if n > 0 {
		m.limit = n
	}
	return m
}

// WithSampleInterval sets the live feed sampling period.
func (m *Manager) WithSampleInterval(d time.Duration) *Manager {
	if d > 0 {
		m.sampleEvery = d
	}
	return m
}

// WithClock replaces the clock handed to runners.
func (m *Manager) WithClock(c pipeline.Clock) *Manager {
	m.clock = c
	return m
}

// Defaults returns the parameters runs start from.
func (m *Manager) Defaults() pipeline.Params {
	return m.defaults
}

// Running reports whether a run is executing.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Execute performs one run with params. Aborted runs are kept in the history
// and returned together with their error. A request made while another run
// is executing fails with ErrRunInProgress, one refused by the guard with
// resilience.ErrGuardOpen.
func (m *Manager) Execute(ctx context.Context, params pipeline.Params) (*pipeline.RunStats, error) {
	if !m.running.CompareAndSwap(false, true) {
		m.rejected()
		return nil, ErrRunInProgress
	}
	defer m.running.Store(false)

	var stats *pipeline.RunStats
	run := func() error {
		var err error
		stats, err = m.run(ctx, params)
		return err
	}

	var err error
	if m.guard != nil {
		err = m.guard.Do(run)
	} else {
		err = run()
	}
	if errors.Is(err, resilience.ErrGuardOpen) {
		m.rejected()
		m.logger.Warn("Run refused, guard open", zap.Time("reopen_at", m.guard.ReopenAt()))
	}
	return stats, err
}

func (m *Manager) run(ctx context.Context, params pipeline.Params) (*pipeline.RunStats, error) {
	runID := m.ids.NewRunID().String()
	obs := &runObserver{m: m}
	stats, err := pipeline.NewRunner(params, m.log.ForRun(runID)).
		WithClock(m.clock).
		WithObserver(obs).
		Run(ctx, runID)

	if stats == nil {
		m.logger.Warn("Run rejected", zap.String("run_id", runID), zap.Error(err))
		return nil, err
	}
	m.record(stats)

	if m.metrics != nil {
		outcome := monitoring.OutcomeCompleted
		if stats.Aborted {
			outcome = monitoring.OutcomeAborted
		}
		m.metrics.RecordRun(outcome, stats.Elapsed, stats.Throughput()/1e6, stats.BaselineThroughput()/1e6, stats.Errors)
	}
	return stats, err
}

func (m *Manager) rejected() {
	if m.metrics != nil {
		m.metrics.RunsTotal.WithLabelValues(monitoring.OutcomeRejected).Inc()
	}
}

// IsStall reports whether err is a run that hit its timeout. Only stalls
// count against the guard.
func IsStall(err error) bool {
	return errors.Is(err, pipeline.ErrRunAborted) && errors.Is(err, context.DeadlineExceeded)
}

// Guard returns the stall guard, or nil.
func (m *Manager) Guard() *resilience.Guard {
	return m.guard
}

func (m *Manager) record(stats *pipeline.RunStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, stats)
	m.index[stats.RunID] = stats
	if over := len(m.history) - m.limit; over > 0 {
		for _, old := range m.history[:over] {
			delete(m.index, old.RunID)
		}
		m.history = append(m.history[:0], m.history[over:]...)
	}
}

// Get retrieves a result by run id.
func (m *Manager) Get(runID string) (*pipeline.RunStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.index[runID]
	return s, ok
}

// List returns the retained results, oldest first.
func (m *Manager) List() []*pipeline.RunStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*pipeline.RunStats, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe registers a live feed subscriber. Events are dropped for a
// subscriber whose buffer is full.
func (m *Manager) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	m.subsMu.Lock()
	m.subs[ch] = ch
	m.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Manager) Unsubscribe(sub <-chan Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if ch, ok := m.subs[sub]; ok {
		delete(m.subs, sub)
		close(ch)
	}
}

// Subscribers returns the number of live feed subscribers.
func (m *Manager) Subscribers() int {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	return len(m.subs)
}

func (m *Manager) publish(ev Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Debug("Dropping live event for slow subscriber",
				zap.String("run_id", ev.RunID),
				zap.String("type", ev.Type),
			)
		}
	}
}

// runObserver samples one live run until it finishes.
type runObserver struct {
	m     *Manager
	live  *pipeline.Live
	stop  chan struct{}
	done  chan struct{}
	start time.Time
}

func (o *runObserver) RunStarted(live *pipeline.Live) {
	o.live = live
	o.start = time.Now()
	o.stop = make(chan struct{})
	o.done = make(chan struct{})

	if o.m.metrics != nil {
		o.m.metrics.RunStarted()
	}
	params := live.Params
	o.m.publish(Event{Type: EventStarted, RunID: live.RunID, Params: &params})

	go o.sample()
}

func (o *runObserver) sample() {
	defer close(o.done)
	ticker := time.NewTicker(o.m.sampleEvery)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.emit()
		}
	}
}

func (o *runObserver) emit() {
	ev := sampleEvent(o.live, o.start)
	if o.m.metrics != nil {
		o.m.metrics.SetLive(ev.Depths, ev.Processed, ev.Received)
	}
	o.m.publish(ev)
}

func (o *runObserver) RunFinished(stats *pipeline.RunStats, err error) {
	close(o.stop)
	<-o.done
	o.emit()

	ev := Event{
		Type:      EventDone,
		RunID:     o.live.RunID,
		Received:  int64(stats.Received),
		ElapsedMS: time.Since(o.start).Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	} else {
		run := report.NewRun(stats)
		ev.Result = &run
	}
	o.m.publish(ev)
}
