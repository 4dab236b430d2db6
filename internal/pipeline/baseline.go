package pipeline

import "time"

// BaselineResult is the single-threaded equivalent of a concurrent run.
type BaselineResult struct {
	Elapsed time.Duration
	Work    int64 // increments found in the corpus afterwards
	Errors  int
}

// Baseline applies stages full increment passes to c on the calling
// goroutine and times them. c must have been Reset beforehand.
func Baseline(c *Corpus, stages int, clock Clock) BaselineResult {
	items := c.items
	start := clock.Now()
	for pass := 0; pass < stages; pass++ {
		for i := range items {
			items[i].Value++
		}
	}
	elapsed := clock.Now().Sub(start)

	return BaselineResult{
		Elapsed: elapsed,
		Work:    c.Sum() - int64(len(items)),
		Errors:  c.Verify(1 + int64(stages)),
	}
}
