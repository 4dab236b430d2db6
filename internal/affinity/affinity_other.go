//go:build !linux

package affinity

// Pin is a no-op outside Linux.
func Pin(cpu int) error {
	return ErrUnsupported
}

// Current is not available outside Linux.
func Current() ([]int, error) {
	return nil, ErrUnsupported
}
