package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/pipebench/internal/ring"
)

// ProducerStats are the counters of the injection phase.
type ProducerStats struct {
	Sent    int
	Batches int
	Retries int64
	Start   time.Time
}

// Producer feeds the corpus into the entry queue.
type Producer struct {
	Queue        *ring.Queue[*Item]
	BatchSize    int
	Backpressure bool
	Bulk         bool
	SpinYield    int
	Limiter      *rate.Limiter
	Clock        Clock
}

// NewProducer builds a producer for params. A positive ProducerRate paces
// injection with a token bucket whose burst is one batch.
func NewProducer(q *ring.Queue[*Item], params Params, clock Clock) *Producer {
	p := &Producer{
		Queue:        q,
		BatchSize:    params.BatchSize,
		Backpressure: params.Backpressure,
		Bulk:         params.Bulk,
		SpinYield:    params.SpinYield,
		Clock:        clock,
	}
	if params.ProducerRate > 0 {
		p.Limiter = rate.NewLimiter(rate.Limit(params.ProducerRate), params.BatchSize)
	}
	return p
}

// gate is the occupancy below which a batch may be attempted.
func (p *Producer) gate() int {
	return max(p.Queue.Cap()/2, 1)
}

// Run enqueues every handle in BatchSize batches. Each batch is retried on
// its remainder until fully accepted, or as a whole with Bulk set. With
// Backpressure set, an attempt is only made while the queue is less than
// half full.
func (p *Producer) Run(ctx context.Context, handles []*Item) (ProducerStats, error) {
	var st ProducerStats
	spin := ring.Spinner{YieldEvery: p.SpinYield}
	abort := ctx.Done()
	gate := p.gate()

	st.Start = p.Clock.Now()
	for off := 0; off < len(handles); off += p.BatchSize {
		batch := handles[off:min(off+p.BatchSize, len(handles))]
		if p.Limiter != nil {
			if err := p.Limiter.WaitN(ctx, len(batch)); err != nil {
				return st, err
			}
		}

		sent := 0
		for sent < len(batch) {
			if !p.Backpressure || p.Queue.Len() < gate {
				if n := put(p.Queue, batch[sent:], p.Bulk); n > 0 {
					sent += n
					spin.Reset()
					continue
				}
			}
			st.Retries++
			if closed(abort) {
				st.Sent += sent
				return st, ctx.Err()
			}
			spin.Spin()
		}
		st.Sent += sent
		st.Batches++
	}
	return st, nil
}
