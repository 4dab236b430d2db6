package ring

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// MaxCapacity is the largest capacity New accepts.
const MaxCapacity = 1 << 30

// ErrInvalidCapacity is returned by New for a zero, negative, oversized or
// non power-of-two capacity.
var ErrInvalidCapacity = errors.New("ring: capacity must be a power of two in [1, 2^30]")

// cursor is one side (producer or consumer) of the ring. head is advanced
// when a range is reserved, tail when it is published.
type cursor struct {
	head atomic.Uint64
	_    cpu.CacheLinePad
	tail atomic.Uint64
	_    cpu.CacheLinePad
}

// Queue is a bounded MPMC FIFO of T. The zero value is not usable; call New.
type Queue[T any] struct {
	_    cpu.CacheLinePad
	prod cursor
	cons cursor

	size  uint64
	mask  uint64
	slots []T
}

// New creates a queue holding up to capacity items.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity <= 0 || capacity > MaxCapacity || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Queue[T]{
		size:  uint64(capacity),
		mask:  uint64(capacity - 1),
		slots: make([]T, capacity),
	}, nil
}

// Cap returns the fixed capacity of the queue.
func (q *Queue[T]) Cap() int {
	return int(q.size)
}

// Len returns the number of published items. Under concurrent mutation the
// value is a snapshot that may already be stale, but it is never negative
// and never above Cap.
func (q *Queue[T]) Len() int {
	ct := q.cons.tail.Load()
	pt := q.prod.tail.Load()
	n := pt - ct
	if n > q.size {
		n = q.size
	}
	return int(n)
}

// TryEnqueueBatch inserts the largest prefix of items that currently fits
// and returns its length. It never blocks; a full queue returns 0.
func (q *Queue[T]) TryEnqueueBatch(items []T) int {
	return q.enqueue(items, false)
}

// TryEnqueueAll inserts all of items or none of them.
func (q *Queue[T]) TryEnqueueAll(items []T) bool {
	return len(items) > 0 && q.enqueue(items, true) == len(items)
}

// TryDequeueBatch moves up to len(out) items into out. It returns the number
// moved and how many items were left in the queue right after the
// reservation. It never blocks; an empty queue returns 0.
func (q *Queue[T]) TryDequeueBatch(out []T) (n, remaining int) {
	return q.dequeue(out, false)
}

// TryDequeueAll fills out completely or takes nothing.
func (q *Queue[T]) TryDequeueAll(out []T) bool {
	n, _ := q.dequeue(out, true)
	return len(out) > 0 && n == len(out)
}

func (q *Queue[T]) enqueue(items []T, all bool) int {
	want := uint64(len(items))
	if want == 0 {
		return 0
	}

	var head, n uint64
	for {
		head = q.prod.head.Load()
		// cons.tail only grows, so free is never overstated once the CAS
		// below confirms head is still current.
		free := q.size + q.cons.tail.Load() - head
		n = min(want, free)
		if n == 0 || (all && n < want) {
			return 0
		}
		if q.prod.head.CompareAndSwap(head, head+n) {
			break
		}
	}

	for i := uint64(0); i < n; i++ {
		q.slots[(head+i)&q.mask] = items[i]
	}
	publish(&q.prod.tail, head, head+n)
	return int(n)
}

func (q *Queue[T]) dequeue(out []T, all bool) (int, int) {
	want := uint64(len(out))
	if want == 0 {
		return 0, q.Len()
	}

	var head, n, avail uint64
	for {
		head = q.cons.head.Load()
		avail = q.prod.tail.Load() - head
		n = min(want, avail)
		if n == 0 || (all && n < want) {
			return 0, int(avail)
		}
		if q.cons.head.CompareAndSwap(head, head+n) {
			break
		}
	}

	var zero T
	for i := uint64(0); i < n; i++ {
		idx := (head + i) & q.mask
		out[i] = q.slots[idx]
		q.slots[idx] = zero
	}
	publish(&q.cons.tail, head, head+n)
	return int(n), int(avail - n)
}

// publish waits until every earlier reservation on the same side has been
// published, then moves the tail past this one.
func publish(tail *atomic.Uint64, from, to uint64) {
	var s Spinner
	for tail.Load() != from {
		s.Spin()
	}
	tail.Store(to)
}
