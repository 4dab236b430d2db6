package ring

import "runtime"

// DefaultYieldEvery is the number of empty spins after which a Spinner
// yields the processor.
const DefaultYieldEvery = 64

// Spinner is a busy-wait helper. It never sleeps; every YieldEvery spins it
// calls runtime.Gosched so a preempted peer on the same P can make progress.
// The zero value yields every DefaultYieldEvery spins.
type Spinner struct {
	YieldEvery int
	spins      int
}

// Spin records one unsuccessful attempt.
func (s *Spinner) Spin() {
	s.spins++
	if s.spins%s.every() == 0 {
		runtime.Gosched()
	}
}

// Stalled reports whether a whole yield period has passed since the last
// Reset.
func (s *Spinner) Stalled() bool {
	return s.spins >= s.every()
}

func (s *Spinner) every() int {
	if s.YieldEvery <= 0 {
		return DefaultYieldEvery
	}
	return s.YieldEvery
}

// Reset clears the spin count after progress was made.
func (s *Spinner) Reset() {
	s.spins = 0
}
