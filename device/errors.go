package device

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrOutOfRange      = errors.New("device: value out of range")
	ErrPinInUse        = errors.New("device: pin already claimed by another device")
	ErrClosed          = errors.New("device: closed")
	ErrFadeUnsupported = errors.New("device: fades need a PWM output")
	ErrNoPin           = errors.New("device: nil pin")
)

// RangeError reports a value outside the range a device accepts.
type RangeError struct {
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("device: value %v outside [%v, %v]", e.Value, e.Min, e.Max)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

func checkRange(v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &RangeError{Value: v, Min: lo, Max: hi}
	}
	return nil
}
