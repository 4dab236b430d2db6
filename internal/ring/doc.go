// Package ring provides a bounded, lock-free, multi-producer multi-consumer
// FIFO with batched best-effort transfer.
//
// The queue follows the two-cursor layout of a DPDK rte_ring: producers
// reserve a slot range by advancing a producer head with CAS, copy their
// items in, then publish the range through the producer tail in reservation
// order. Consumers do the same on the consumer side. A reservation is always
// a contiguous range that nobody else owns, so callers never need external
// locking.
//
// Transfers are best-effort:
//
//	q, _ := ring.New[*Item](1024)
//	sent := q.TryEnqueueBatch(batch)    // 0..len(batch), largest prefix that fits
//	n, left := q.TryDequeueBatch(buf)   // 0..len(buf), plus items left behind
//
// A short count is a normal transient condition, not an error. Callers that
// need the whole batch moved retry on the remainder.
//
// Capacity must be a power of two so that slot indices wrap with a mask.
// Len and Cap are observational; Len is eventually consistent under
// concurrent mutation but always within [0, Cap].
package ring
