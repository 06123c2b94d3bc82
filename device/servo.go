package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var ErrPulseWidths = errors.New("device: servo needs 0 < min pulse < max pulse < frame")

// Servo positions a hobby servo with a value in [-1, 1]. The pulse width
// scales linearly from the minimum pulse at -1 to the maximum at 1.
type Servo struct {
	pwm                       *PWMOutputDevice
	minPulse, maxPulse, frame time.Duration

	mu       sync.Mutex
	value    float64
	detached bool
}

// NewServo claims p and moves to the initial value, the midpoint by default.
func NewServo(p gpio.PinIO, opts ...Option) (*Servo, error) {
	o := newOptions(opts)
	if o.minPulse <= 0 || o.minPulse >= o.maxPulse || o.maxPulse >= o.frame {
		return nil, ErrPulseWidths
	}
	if err := checkRange(o.initial, -1, 1); err != nil {
		return nil, err
	}
	s := &Servo{minPulse: o.minPulse, maxPulse: o.maxPulse, frame: o.frame, value: o.initial}
	o.freq = physic.Frequency(int64(time.Second) * int64(physic.Hertz) / int64(o.frame))
	o.initial = s.duty(o.initial)
	pwm, err := newPWM(p, o)
	if err != nil {
		return nil, fmt.Errorf("servo: %w", err)
	}
	s.pwm = pwm
	return s, nil
}

func (s *Servo) duty(v float64) float64 {
	return float64(s.pulse(v)) / float64(s.frame)
}

func (s *Servo) pulse(v float64) time.Duration {
	span := float64(s.maxPulse - s.minPulse)
	return s.minPulse + time.Duration((v+1)/2*span)
}

// SetValue moves the servo. It reattaches a detached servo.
func (s *Servo) SetValue(v float64) error {
	if err := checkRange(v, -1, 1); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pwm.SetValue(s.duty(v)); err != nil {
		return err
	}
	s.value, s.detached = v, false
	return nil
}

func (s *Servo) Min() error { return s.SetValue(-1) }
func (s *Servo) Mid() error { return s.SetValue(0) }
func (s *Servo) Max() error { return s.SetValue(1) }

// Detach stops sending pulses so the servo can be moved by hand.
func (s *Servo) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pwm.Off(); err != nil {
		return err
	}
	s.detached = true
	return nil
}

// Value returns the last position set. It is meaningless while detached.
func (s *Servo) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Servo) IsDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}

// PulseWidth is the pulse currently sent, zero while detached.
func (s *Servo) PulseWidth() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return 0
	}
	return s.pulse(s.value)
}

// Frequency is the pulse rate derived from the frame width.
func (s *Servo) Frequency() physic.Frequency { return s.pwm.Frequency() }

func (s *Servo) Close() error { return s.pwm.Close() }
