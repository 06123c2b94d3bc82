// Package device models GPIO peripherals on top of periph pins: digital and
// PWM outputs with blink and pulse playback, LEDs, buzzers, motors, servos,
// RGB LEDs and buttons.
//
// Outputs keep a logical value in [0, 1] and map it to pin levels according
// to their polarity. Blinks run in the background and are cancelled by any
// foreground write, so a device never has two writers at once.
package device

import (
	"context"

	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

// Device is anything with a value that holds a pin.
type Device interface {
	Value() float64
	Close() error
}

// Switch is a device that can be turned on and off.
type Switch interface {
	Device
	On() error
	Off() error
	Toggle() error
}

// Setter accepts an explicit value.
type Setter interface {
	Device
	SetValue(v float64) error
}

// Player runs blink specs in the background.
type Player interface {
	Device
	Play(spec waveform.BlinkSpec) error
	Stop()
	Wait() error
	IsRunning() bool
}

// Input can be waited on.
type Input interface {
	Device
	IsActive() bool
	WaitForActive(ctx context.Context) error
	WaitForInactive(ctx context.Context) error
}

var (
	_ Switch = (*DigitalOutputDevice)(nil)
	_ Setter = (*DigitalOutputDevice)(nil)
	_ Player = (*DigitalOutputDevice)(nil)
	_ Switch = (*PWMOutputDevice)(nil)
	_ Setter = (*PWMOutputDevice)(nil)
	_ Player = (*PWMOutputDevice)(nil)
	_ Player = (*LED)(nil)
	_ Player = (*PWMLED)(nil)
	_ Player = (*Buzzer)(nil)
	_ Setter = (*Motor)(nil)
	_ Setter = (*Servo)(nil)
	_ Switch = (*RGBLED)(nil)
	_ Player = (*RGBLED)(nil)
	_ Input  = (*DigitalInputDevice)(nil)
	_ Input  = (*Button)(nil)
)
