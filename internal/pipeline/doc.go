// Package pipeline runs the linear multi-stage throughput benchmark.
//
// A run wires N stages into a chain of bounded ring queues:
//
//	producer → entry → stage 0 → q1 → stage 1 → ... → stage N-1 → exit → consumer
//
// The producer floods the entry queue with the corpus in fixed-size batches,
// gated on the entry queue being less than half full. Each stage dequeues a
// batch, increments every item and forwards the batch downstream, retrying
// the remainder while the output queue is full. The consumer drains the exit
// queue until it has seen every item; that point closes the timed region and
// raises the shared stop signal.
//
// Stopping is ordered. A stage that sees the stop signal keeps draining its
// input until the input is empty and its upstream has finished, then
// finishes itself, so a graceful stop never strands an item. Context
// cancellation aborts every context immediately.
//
// After the concurrent run every item must hold 1+N. The corpus is then reset
// and the same N passes are repeated on one goroutine for the baseline.
//
// Example:
//
//	params := pipeline.DefaultParams()
//	stats, err := pipeline.NewRunner(params, logger).Run(ctx, "run-1")
//	fmt.Printf("%.3f Mpps, %d errors\n", stats.Throughput()/1e6, stats.Errors)
package pipeline
