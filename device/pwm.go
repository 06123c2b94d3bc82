package device

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-gpiozero/softpwm"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

// PWMOutputDevice is an output with a continuous value in [0, 1], driven by
// software PWM unless WithHardwarePWM is given.
type PWMOutputDevice struct {
	*core[*pwmOut]
	freq physic.Frequency
}

// NewPWMOutputDevice claims p and writes the initial value.
func NewPWMOutputDevice(p gpio.PinIO, opts ...Option) (*PWMOutputDevice, error) {
	return newPWM(p, newOptions(opts))
}

func newPWM(p gpio.PinIO, o options) (*PWMOutputDevice, error) {
	if err := checkRange(o.initial, 0, 1); err != nil {
		return nil, err
	}
	if o.freq <= 0 {
		return nil, softpwm.ErrFrequency
	}
	if err := claim(p); err != nil {
		return nil, err
	}
	drive := p
	if !o.hardware {
		drive = softpwm.New(p).WithLogger(o.log)
	}
	c := newCore(p, drive, &pwmOut{pin: drive, freq: o.freq}, o)
	if err := c.drv.Set(o.initial); err != nil {
		_ = drive.Halt()
		release(p)
		return nil, fmt.Errorf("initialize %s: %w", p, err)
	}
	c.log.Debug().
		Bool("active_high", o.activeHigh).
		Bool("hardware", o.hardware).
		Stringer("frequency", o.freq).
		Msg("pwm output ready")
	return &PWMOutputDevice{core: c, freq: o.freq}, nil
}

// Frequency returns the PWM frequency.
func (d *PWMOutputDevice) Frequency() physic.Frequency { return d.freq }

// SetValue sets the duty cycle. Values outside [0, 1] are rejected and leave
// the device untouched.
func (d *PWMOutputDevice) SetValue(v float64) error {
	if err := checkRange(v, 0, 1); err != nil {
		return err
	}
	return d.set(v)
}

// Blink switches on and off in the background, fading between the two when
// fadeIn or fadeOut are non-zero.
func (d *PWMOutputDevice) Blink(on, off, fadeIn, fadeOut time.Duration, repeat int) error {
	return d.Play(waveform.BlinkSpec{OnTime: on, OffTime: off, FadeIn: fadeIn, FadeOut: fadeOut, Repeat: repeat})
}

// Pulse fades in and out in the background without resting at either end.
func (d *PWMOutputDevice) Pulse(fadeIn, fadeOut time.Duration, repeat int) error {
	return d.Play(waveform.Pulse(fadeIn, fadeOut, repeat))
}

// Play runs spec in the background.
func (d *PWMOutputDevice) Play(spec waveform.BlinkSpec) error { return d.play(spec) }

// LED is a digital output that is lit while active.
type LED struct {
	*DigitalOutputDevice
}

func NewLED(p gpio.PinIO, opts ...Option) (*LED, error) {
	d, err := NewDigitalOutputDevice(p, opts...)
	if err != nil {
		return nil, err
	}
	return &LED{d}, nil
}

// IsLit reports whether the LED is on.
func (l *LED) IsLit() bool { return l.IsActive() }

// PWMLED is an LED with variable brightness.
type PWMLED struct {
	*PWMOutputDevice
}

func NewPWMLED(p gpio.PinIO, opts ...Option) (*PWMLED, error) {
	d, err := NewPWMOutputDevice(p, opts...)
	if err != nil {
		return nil, err
	}
	return &PWMLED{d}, nil
}

// IsLit reports whether the brightness is above zero.
func (l *PWMLED) IsLit() bool { return l.IsActive() }

// Buzzer is a digital output driving an active buzzer.
type Buzzer struct {
	*DigitalOutputDevice
}

func NewBuzzer(p gpio.PinIO, opts ...Option) (*Buzzer, error) {
	d, err := NewDigitalOutputDevice(p, opts...)
	if err != nil {
		return nil, err
	}
	return &Buzzer{d}, nil
}

// Beep sounds the buzzer for on, stays silent for off, repeat times.
func (b *Buzzer) Beep(on, off time.Duration, repeat int) error {
	return b.Blink(on, off, repeat)
}
