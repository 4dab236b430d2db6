package utils

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// MaxRunRequestSize bounds run parameter overrides, in bytes.
const MaxRunRequestSize = 4 * 1024

var (
	// ErrBodyTooLarge is returned for payloads over the validator limit.
	ErrBodyTooLarge = errors.New("payload too large")
	// ErrMalformedJSON is returned for payloads that are not JSON.
	ErrMalformedJSON = errors.New("malformed JSON")
)

// JSONSizeValidator checks payload size and syntax before decoding.
type JSONSizeValidator struct {
	maxSize int
}

// NewJSONSizeValidator creates a validator with the given limit.
func NewJSONSizeValidator(maxSize int) *JSONSizeValidator {
	return &JSONSizeValidator{maxSize: maxSize}
}

// RunRequestValidator returns the validator for run requests.
func RunRequestValidator() *JSONSizeValidator {
	return NewJSONSizeValidator(MaxRunRequestSize)
}

// ValidateSize checks if the data size is within limits
func (v *JSONSizeValidator) ValidateSize(data []byte) error {
	if size := len(data); size > v.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d bytes", ErrBodyTooLarge, size, v.maxSize)
	}
	return nil
}

// ValidateJSON validates both size and JSON structure
func (v *JSONSizeValidator) ValidateJSON(data []byte) error {
	if err := v.ValidateSize(data); err != nil {
		return err
	}
	if !sonic.Valid(data) {
		return ErrMalformedJSON
	}
	return nil
}
