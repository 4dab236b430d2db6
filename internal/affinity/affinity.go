package affinity

import "errors"

// ErrUnsupported is returned by Pin on platforms without thread affinity.
var ErrUnsupported = errors.New("affinity: not supported on this platform")

// ErrInvalidCPU is returned when the requested CPU index is out of range.
var ErrInvalidCPU = errors.New("affinity: cpu index out of range")

// Assign maps a context slot to one of the allowed CPUs, as returned by
// Current, wrapping around. allowed[0] is left to the caller's own context
// (the producer), so slots start at allowed[1] when more than one CPU is
// allowed. It returns -1 when allowed is empty.
func Assign(allowed []int, slot int) int {
	switch n := len(allowed); n {
	case 0:
		return -1
	case 1:
		return allowed[0]
	default:
		return allowed[1+slot%(n-1)]
	}
}
