package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/pipebench/internal/affinity"
)

// Launcher provides the execution contexts a run needs: one per stage and
// one for the consumer. Every context launched must run concurrently with
// the others and with the caller.
type Launcher interface {
	// Context is cancelled when any launched function fails or the parent
	// context is done.
	Context() context.Context
	Go(name string, fn func(ctx context.Context) error)
	Wait() error
}

// LauncherFunc creates a Launcher bound to a parent context.
type LauncherFunc func(ctx context.Context) Launcher

// GroupLauncher runs each function on its own goroutine using an errgroup.
// With pinning on each goroutine is locked to an OS thread pinned to its own
// CPU out of those the process may use.
type GroupLauncher struct {
	group  *errgroup.Group
	ctx    context.Context
	cpus   []int // allowed CPUs; empty runs unpinned
	slot   int
	logger *zap.Logger
}

// NewGroupLauncher creates a launcher under ctx. With pin set it reads the
// CPU mask once; if that fails the launcher warns and runs unpinned.
func NewGroupLauncher(ctx context.Context, pin bool, logger *zap.Logger) *GroupLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, gctx := errgroup.WithContext(ctx)
	l := &GroupLauncher{group: g, ctx: gctx, logger: logger}
	if pin {
		cpus, err := affinity.Current()
		if err != nil {
			logger.Warn("CPU pinning disabled", zap.Error(err))
		}
		l.cpus = cpus
	}
	return l
}

// CPUs returns the CPUs contexts are pinned to, or nil when unpinned.
func (l *GroupLauncher) CPUs() []int {
	return l.cpus
}

// Context returns the group context.
func (l *GroupLauncher) Context() context.Context {
	return l.ctx
}

// Go starts fn. A failed pin is logged and the context runs unpinned.
func (l *GroupLauncher) Go(name string, fn func(ctx context.Context) error) {
	slot := l.slot
	l.slot++
	l.group.Go(func() error {
		if len(l.cpus) > 0 {
			// Left locked on purpose: the thread exits with the goroutine
			// rather than returning to the scheduler with a one-CPU mask.
			runtime.LockOSThread()
			cpu := affinity.Assign(l.cpus, slot)
			if err := affinity.Pin(cpu); err != nil {
				l.logger.Warn("Failed to pin execution context",
					zap.String("context", name),
					zap.Int("cpu", cpu),
					zap.Error(err),
				)
			}
		}
		if err := fn(l.ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// Wait blocks until every launched function returned and reports the first
// error.
func (l *GroupLauncher) Wait() error {
	return l.group.Wait()
}
