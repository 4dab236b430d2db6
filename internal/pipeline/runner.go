package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Live is a read-only view of a run in progress, for samplers.
type Live struct {
	RunID     string
	StartedAt time.Time
	Params    Params

	topo     *Topology
	consumer *Consumer
}

// Depths returns the current occupancy of every queue from entry to exit.
func (l *Live) Depths() []int {
	qs := l.topo.Queues()
	out := make([]int, len(qs))
	for i, q := range qs {
		out[i] = q.Len()
	}
	return out
}

// Processed returns the items each stage has transformed so far.
func (l *Live) Processed() []int64 {
	out := make([]int64, len(l.topo.Stages))
	for i, s := range l.topo.Stages {
		out[i] = s.Processed()
	}
	return out
}

// Received returns the items drained by the consumer so far.
func (l *Live) Received() int64 {
	return l.consumer.Received()
}

// Observer is notified around each run.
type Observer interface {
	RunStarted(live *Live)
	RunFinished(stats *RunStats, err error)
}

// Runner executes benchmark runs with fixed parameters.
type Runner struct {
	params   Params
	logger   *zap.Logger
	clock    Clock
	launcher LauncherFunc
	observer Observer
}

// NewRunner creates a runner. The logger is used as given, so callers tag it
// with the run; a nil logger discards output.
func NewRunner(params Params, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		params: params,
		logger: logger,
		clock:  SystemClock{},
	}
	r.launcher = func(ctx context.Context) Launcher {
		return NewGroupLauncher(ctx, r.params.PinCPUs, r.logger)
	}
	return r
}

// WithClock replaces the timing facility.
func (r *Runner) WithClock(clock Clock) *Runner {
	r.clock = clock
	return r
}

// WithLauncher replaces the execution-context provider.
func (r *Runner) WithLauncher(f LauncherFunc) *Runner {
	r.launcher = f
	return r
}

// WithObserver attaches an observer.
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observer = o
	return r
}

// Params returns the parameters of the runner.
func (r *Runner) Params() Params {
	return r.params
}

// Run performs one full benchmark: the concurrent pipeline run, verification
// and the single-threaded baseline. On abort it returns the partial stats
// together with an error wrapping ErrRunAborted.
func (r *Runner) Run(ctx context.Context, runID string) (stats *RunStats, err error) {
	p := r.params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunAborted, err)
	}
	topo, err := NewBuilder(p.Stages, p.QueueCapacity).Build()
	if err != nil {
		return nil, err
	}
	corpus := NewCorpus(p.Items)

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	stats = &RunStats{
		RunID:     runID,
		StartedAt: r.clock.Now(),
		Params:    p,
	}
	r.logger.Info("Starting pipeline run",
		zap.Int("stages", p.Stages),
		zap.Int("items", p.Items),
		zap.Int("batch_size", p.BatchSize),
		zap.Int("queue_capacity", p.QueueCapacity),
		zap.Bool("bulk", p.Bulk),
		zap.Bool("pin_cpus", p.PinCPUs),
	)

	sig := &Signal{}
	launcher := r.launcher(ctx)
	producerDone := make(chan struct{})

	upstream := (<-chan struct{})(producerDone)
	for _, s := range topo.Stages {
		s.Configure(p.BatchSize, p.SpinYield, p.Bulk)
		stage, up := s, upstream
		launcher.Go(fmt.Sprintf("stage-%d", s.ID), func(ctx context.Context) error {
			return stage.Run(ctx, sig, up)
		})
		upstream = s.Done()
	}

	consumer := &Consumer{
		Queue:     topo.Exit,
		Total:     p.Items,
		BatchSize: p.BatchSize,
		SpinYield: p.SpinYield,
		Bulk:      p.Bulk,
		Clock:     r.clock,
		Signal:    sig,
	}
	var cst ConsumerStats
	launcher.Go("consumer", func(ctx context.Context) error {
		var err error
		cst, err = consumer.Run(ctx)
		return err
	})

	if r.observer != nil {
		r.observer.RunStarted(&Live{
			RunID:     runID,
			StartedAt: stats.StartedAt,
			Params:    p,
			topo:      topo,
			consumer:  consumer,
		})
		defer func() { r.observer.RunFinished(stats, err) }()
	}

	pst, perr := NewProducer(topo.Entry, p, r.clock).Run(launcher.Context(), corpus.Handles())
	close(producerDone)
	werr := launcher.Wait()

	stats.Produced = pst.Sent
	stats.ProducerRetries = pst.Retries
	stats.Received = cst.Received
	stats.Stages = make([]StageStats, len(topo.Stages))
	for i, s := range topo.Stages {
		stats.Stages[i] = s.Stats()
		r.logger.Debug("Stage finished",
			zap.Int("stage", s.ID),
			zap.Int64("items", stats.Stages[i].Items),
			zap.Int64("batches", stats.Stages[i].Batches),
			zap.Int64("empty_polls", stats.Stages[i].EmptyPolls),
			zap.Int64("enqueue_retries", stats.Stages[i].EnqueueRetries),
			zap.Int("max_backlog", stats.Stages[i].MaxBacklog),
		)
	}
	stats.Errors = corpus.Verify(1 + int64(p.Stages))

	if cause := errors.Join(perr, werr); cause != nil {
		stats.Aborted = true
		r.logger.Warn("Pipeline run aborted",
			zap.Int("received", stats.Received),
			zap.Int("total", p.Items),
			zap.Error(cause),
		)
		return stats, fmt.Errorf("%w: %w", ErrRunAborted, cause)
	}
	stats.Elapsed = cst.End.Sub(pst.Start)

	corpus.Reset()
	base := Baseline(corpus, p.Stages, r.clock)
	stats.BaselineElapsed = base.Elapsed
	stats.BaselineWork = base.Work
	stats.BaselineErrors = base.Errors

	r.logger.Info("Pipeline run finished",
		zap.Int("received", stats.Received),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Float64("mpps", stats.Throughput()/1e6),
		zap.Duration("baseline_elapsed", stats.BaselineElapsed),
		zap.Float64("baseline_mpps", stats.BaselineThroughput()/1e6),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}
