package hub

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-gpiozero/device"
	"github.com/coreman2200/funtimes-gpiozero/internal/config"
)

// PinSource resolves a configured pin name.
type PinSource func(name string) (gpio.PinIO, error)

func (h *Hub) build(c config.Device, rate int, pin PinSource) (device.Device, error) {
	opts := h.options(c, rate)

	switch c.Kind {
	case config.KindMotor:
		ps, err := resolve(pin, c.Pins.Forward, c.Pins.Backward)
		if err != nil {
			return nil, err
		}
		m, err := device.NewMotor(ps[0], ps[1], opts...)
		if err != nil {
			return nil, err
		}
		return motor{m}, nil
	case config.KindRGBLED:
		ps, err := resolve(pin, c.Pins.Red, c.Pins.Green, c.Pins.Blue)
		if err != nil {
			return nil, err
		}
		l, err := device.NewRGBLED(ps[0], ps[1], ps[2], opts...)
		if err != nil {
			return nil, err
		}
		return l, nil
	}

	p, err := pin(c.Pin)
	if err != nil {
		return nil, err
	}
	var d device.Device
	switch c.Kind {
	case config.KindOutput:
		d, err = device.NewDigitalOutputDevice(p, opts...)
	case config.KindLED:
		d, err = device.NewLED(p, opts...)
	case config.KindBuzzer:
		d, err = device.NewBuzzer(p, opts...)
	case config.KindPWM:
		d, err = device.NewPWMOutputDevice(p, opts...)
	case config.KindPWMLED:
		d, err = device.NewPWMLED(p, opts...)
	case config.KindServo:
		d, err = device.NewServo(p, opts...)
	case config.KindInput:
		d, err = device.NewDigitalInputDevice(p, opts...)
	case config.KindButton:
		d, err = device.NewButton(p, opts...)
	default:
		return nil, fmt.Errorf("unknown kind %q", c.Kind)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func resolve(pin PinSource, names ...string) ([]gpio.PinIO, error) {
	ps := make([]gpio.PinIO, len(names))
	for i, n := range names {
		p, err := pin(n)
		if err != nil {
			return nil, err
		}
		ps[i] = p
	}
	return ps, nil
}

func (h *Hub) options(c config.Device, rate int) []device.Option {
	name := c.Name
	opts := []device.Option{
		device.WithLogger(h.log.With().Str("device", name).Logger()),
		device.WithSampleRate(rate),
		device.WithInitialValue(c.Initial),
		device.WithWriteHook(func(float64) { h.changed(name) }),
	}
	if c.ActiveHigh != nil {
		opts = append(opts, device.WithActiveHigh(*c.ActiveHigh))
	}
	if c.FrequencyHz > 0 {
		opts = append(opts, device.WithFrequency(physic.Frequency(c.FrequencyHz*float64(physic.Hertz))))
	}
	if c.HardwarePWM {
		opts = append(opts, device.WithHardwarePWM())
	}
	if c.MinPulseMs > 0 || c.MaxPulseMs > 0 || c.FrameMs > 0 {
		opts = append(opts, device.WithPulseWidths(
			millis(c.MinPulseMs, 1), millis(c.MaxPulseMs, 2), millis(c.FrameMs, 20)))
	}
	switch c.Pull {
	case "up":
		opts = append(opts, device.WithPull(gpio.PullUp))
	case "down":
		opts = append(opts, device.WithPull(gpio.PullDown))
	case "float":
		opts = append(opts, device.WithPull(gpio.Float))
	}
	if c.DebounceMs > 0 {
		opts = append(opts, device.WithDebounce(time.Duration(c.DebounceMs)*time.Millisecond))
	}
	return opts
}

func millis(ms, fallback float64) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// motor exposes a Motor as a switch: on runs forward at full speed, off
// stops and toggle reverses.
type motor struct {
	*device.Motor
}

func (m motor) On() error { return m.Forward(1) }
func (m motor) Off() error { return m.Motor.Stop() }
func (m motor) Toggle() error { return m.Reverse() }

var (
	_ device.Switch = motor{}
	_ device.Setter = motor{}
)
