package device

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Motor drives a bidirectional motor through two PWM channels. At most one
// channel is ever non-zero.
type Motor struct {
	fwd, bwd *PWMOutputDevice

	mu sync.Mutex
}

// NewMotor claims both pins. WithInitialValue takes a speed in [-1, 1],
// negative meaning backward.
func NewMotor(forward, backward gpio.PinIO, opts ...Option) (*Motor, error) {
	o := newOptions(opts)
	if err := checkRange(o.initial, -1, 1); err != nil {
		return nil, err
	}
	initial := o.initial
	o.initial = 0

	fwd, err := newPWM(forward, o)
	if err != nil {
		return nil, fmt.Errorf("forward: %w", err)
	}
	bwd, err := newPWM(backward, o)
	if err != nil {
		_ = fwd.Close()
		return nil, fmt.Errorf("backward: %w", err)
	}
	m := &Motor{fwd: fwd, bwd: bwd}
	if err := m.SetValue(initial); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// Forward turns the motor forward at speed in [0, 1].
func (m *Motor) Forward(speed float64) error {
	if err := checkRange(speed, 0, 1); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drive(m.fwd, m.bwd, speed)
}

// Backward turns the motor backward at speed in [0, 1].
func (m *Motor) Backward(speed float64) error {
	if err := checkRange(speed, 0, 1); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drive(m.bwd, m.fwd, speed)
}

// drive releases the opposite channel before engaging on.
func (m *Motor) drive(on, opposite *PWMOutputDevice, speed float64) error {
	if err := opposite.Off(); err != nil {
		return err
	}
	return on.SetValue(speed)
}

// Stop releases both channels.
func (m *Motor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.fwd.Off(), m.bwd.Off())
}

// Reverse keeps the speed and flips the direction.
func (m *Motor) Reverse() error {
	return m.SetValue(-m.Value())
}

// SetValue sets a signed speed in [-1, 1].
func (m *Motor) SetValue(v float64) error {
	if err := checkRange(v, -1, 1); err != nil {
		return err
	}
	if v < 0 {
		return m.Backward(-v)
	}
	return m.Forward(v)
}

// Value is the signed speed, positive for forward.
func (m *Motor) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fwd.Value() - m.bwd.Value()
}

// IsActive reports whether the motor is turning.
func (m *Motor) IsActive() bool { return m.Value() != 0 }

func (m *Motor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.fwd.Close(), m.bwd.Close())
}
