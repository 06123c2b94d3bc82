package device

import (
	"math"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// physicalLevel maps a logical on/off to the pin level.
func physicalLevel(on, activeHigh bool) gpio.Level {
	return gpio.Level(on == activeHigh)
}

// logicalLevel maps a pin level back to logical on/off.
func logicalLevel(l gpio.Level, activeHigh bool) bool {
	return bool(l) == activeHigh
}

// physicalDuty maps a logical duty to the duty seen on the pin.
func physicalDuty(d float64, activeHigh bool) float64 {
	if activeHigh {
		return d
	}
	return 1 - d
}

// polarity is read on every write, including writes from playback
// goroutines, so it is atomic.
type polarity struct {
	activeLow atomic.Bool
}

func (p *polarity) activeHigh() bool { return !p.activeLow.Load() }
func (p *polarity) setActiveHigh(v bool) { p.activeLow.Store(!v) }

// digitalOut writes any non-zero duty as the active level.
type digitalOut struct {
	polarity
	pin gpio.PinOut
}

func (o *digitalOut) WriteDuty(d float64) error {
	return o.pin.Out(physicalLevel(d > 0, o.activeHigh()))
}

// pwmOut writes duties through the pin's PWM, using steady levels at the
// extremes.
type pwmOut struct {
	polarity
	pin  gpio.PinOut
	freq physic.Frequency
}

func (o *pwmOut) WriteDuty(d float64) error {
	phys := physicalDuty(d, o.activeHigh())
	switch {
	case phys <= 0:
		return o.pin.Out(gpio.Low)
	case phys >= 1:
		return o.pin.Out(gpio.High)
	}
	return o.pin.PWM(gpio.Duty(math.Round(phys*float64(gpio.DutyMax))), o.freq)
}
