package pipeline

import "sync/atomic"

// Signal is the shared stop flag. It is raised once, by the consumer, after
// the last item was received.
type Signal struct {
	stop atomic.Bool
}

// Stop raises the flag.
func (s *Signal) Stop() {
	s.stop.Store(true)
}

// Stopped reports whether the flag is raised.
func (s *Signal) Stopped() bool {
	return s.stop.Load()
}

// closed reports whether ch is closed without blocking.
func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
