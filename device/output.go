package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-gpiozero/playback"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

type output interface {
	playback.Output
	activeHigh() bool
	setActiveHigh(v bool)
}

// core is the polarity-aware output shared by digital and PWM devices. All
// writes go through drv; mu only serializes foreground commands so that a
// check-then-write like Toggle is atomic.
type core[O output] struct {
	raw  gpio.PinIO // claimed pin
	pin  gpio.PinIO // pin that is driven, possibly wrapping raw
	out  O
	drv  *playback.Driver[O]
	rate int
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func newCore[O output](raw, pin gpio.PinIO, out O, o options) *core[O] {
	l := o.log.With().Str("pin", raw.Name()).Logger()
	dopts := []playback.Option{playback.WithLogger(l)}
	if o.onWrite != nil {
		dopts = append(dopts, playback.WithWriteHook(o.onWrite))
	}
	out.setActiveHigh(o.activeHigh)
	return &core[O]{
		raw:  raw,
		pin:  pin,
		out:  out,
		drv:  playback.New(out, dopts...),
		rate: o.rate,
		log:  l,
	}
}

// Pin returns the pin the device drives.
func (c *core[O]) Pin() gpio.PinIO { return c.pin }

// Value returns the last logical value written, by a foreground call or by a
// running blink. It never reads the pin back.
func (c *core[O]) Value() float64 { return c.drv.Value() }

// IsActive reports whether the value is non-zero.
func (c *core[O]) IsActive() bool { return c.Value() > 0 }

// ActiveHigh reports whether logical "on" drives the pin high.
func (c *core[O]) ActiveHigh() bool { return c.out.activeHigh() }

// SetActiveHigh changes how logical values map to pin levels for every
// following write, including those of a blink already running. The pin is
// not rewritten.
func (c *core[O]) SetActiveHigh(v bool) { c.out.setActiveHigh(v) }

// IsRunning reports whether a blink or pulse is playing.
func (c *core[O]) IsRunning() bool { return c.drv.IsRunning() }

// Wait blocks until the current blink or pulse finishes. It returns
// playback.ErrNotRunning when none was started.
func (c *core[O]) Wait() error { return c.drv.Wait() }

// Stop cancels any blink or pulse and returns once its last write landed.
// The pin keeps whatever level that write set.
func (c *core[O]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drv.Stop()
}

// On sets the value to 1.
func (c *core[O]) On() error { return c.set(1) }

// Off sets the value to 0.
func (c *core[O]) Off() error { return c.set(0) }

// Toggle inverts the value. While a blink or pulse is playing it does
// nothing.
func (c *core[O]) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.drv.IsRunning() {
		return nil
	}
	return c.drv.Set(1 - c.drv.Value())
}

// Close stops playback, halts the pin and releases its claim.
func (c *core[O]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.drv.Stop()
	err := c.pin.Halt()
	release(c.raw)
	if err != nil {
		return fmt.Errorf("halt %s: %w", c.raw, err)
	}
	return nil
}

func (c *core[O]) set(v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.drv.Set(v)
}

func (c *core[O]) play(spec waveform.BlinkSpec) error {
	w, err := waveform.Generate(spec, c.rate)
	if err != nil {
		return err
	}
	return c.start(w, spec.Repeat)
}

func (c *core[O]) start(w waveform.Waveform, repeat int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.drv.Start(w, repeat)
}

// DigitalOutputDevice is an on/off output with polarity and blinking.
type DigitalOutputDevice struct {
	*core[*digitalOut]
}

// NewDigitalOutputDevice claims p, configures it as an output and writes the
// initial value.
func NewDigitalOutputDevice(p gpio.PinIO, opts ...Option) (*DigitalOutputDevice, error) {
	o := newOptions(opts)
	if err := checkRange(o.initial, 0, 1); err != nil {
		return nil, err
	}
	if err := claim(p); err != nil {
		return nil, err
	}
	c := newCore(p, p, &digitalOut{pin: p}, o)
	if err := c.drv.Set(digital(o.initial)); err != nil {
		release(p)
		return nil, fmt.Errorf("initialize %s: %w", p, err)
	}
	c.log.Debug().Bool("active_high", o.activeHigh).Msg("digital output ready")
	return &DigitalOutputDevice{core: c}, nil
}

// SetValue turns the device on for any value above zero and off for zero.
// Values outside [0, 1] are rejected and leave the device untouched.
func (d *DigitalOutputDevice) SetValue(v float64) error {
	if err := checkRange(v, 0, 1); err != nil {
		return err
	}
	return d.set(digital(v))
}

// Blink switches between on and off in the background, repeat times or
// forever with waveform.Forever.
func (d *DigitalOutputDevice) Blink(on, off time.Duration, repeat int) error {
	return d.Play(waveform.Blink(on, off, repeat))
}

// Play runs spec in the background. Digital outputs can't fade.
func (d *DigitalOutputDevice) Play(spec waveform.BlinkSpec) error {
	if spec.HasFades() {
		return ErrFadeUnsupported
	}
	return d.play(spec)
}

func digital(v float64) float64 {
	if v > 0 {
		return 1
	}
	return 0
}
