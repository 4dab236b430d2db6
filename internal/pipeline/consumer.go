package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/pipebench/internal/ring"
)

// ConsumerStats are the counters of the drain phase.
type ConsumerStats struct {
	Received   int
	EmptyPolls int64
	End        time.Time
}

// Consumer drains the exit queue until Total items have been received.
type Consumer struct {
	Queue     *ring.Queue[*Item]
	Total     int
	BatchSize int
	SpinYield int
	Bulk      bool
	Clock     Clock
	Signal    *Signal

	received atomic.Int64
}

// Received returns the running count of drained items.
func (c *Consumer) Received() int64 {
	return c.received.Load()
}

// Run drains until Total items arrived, stamps the end of the timed region
// and raises the stop signal. It is the only place the signal is raised.
func (c *Consumer) Run(ctx context.Context) (ConsumerStats, error) {
	var st ConsumerStats
	buf := make([]*Item, c.BatchSize)
	spin := ring.Spinner{YieldEvery: c.SpinYield}
	abort := ctx.Done()

	for st.Received < c.Total {
		n, _ := take(c.Queue, buf[:min(len(buf), c.Total-st.Received)], c.Bulk, &spin)
		if n == 0 {
			st.EmptyPolls++
			if closed(abort) {
				return st, ctx.Err()
			}
			spin.Spin()
			continue
		}
		spin.Reset()
		st.Received += n
		c.received.Add(int64(n))
	}

	st.End = c.Clock.Now()
	c.Signal.Stop()
	return st, nil
}
