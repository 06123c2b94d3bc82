package device

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
)

// DigitalInputDevice reads a polarity-aware on/off input.
type DigitalInputDevice struct {
	pin      gpio.PinIO
	pol      polarity
	debounce time.Duration
	poll     time.Duration
	log      zerolog.Logger
	closed   atomic.Bool
}

// NewDigitalInputDevice claims p and configures it as an input with the
// configured pull, pull down by default.
func NewDigitalInputDevice(p gpio.PinIO, opts ...Option) (*DigitalInputDevice, error) {
	return newInput(p, newOptions(opts))
}

func newInput(p gpio.PinIO, o options) (*DigitalInputDevice, error) {
	if err := claim(p); err != nil {
		return nil, err
	}
	if err := p.In(o.pull, gpio.NoEdge); err != nil {
		release(p)
		return nil, fmt.Errorf("configure %s as input: %w", p, err)
	}
	if o.poll <= 0 {
		o.poll = 10 * time.Millisecond
	}
	d := &DigitalInputDevice{
		pin:      p,
		debounce: o.debounce,
		poll:     o.poll,
		log:      o.log.With().Str("pin", p.Name()).Logger(),
	}
	d.pol.setActiveHigh(o.activeHigh)
	d.log.Debug().Stringer("pull", o.pull).Bool("active_high", o.activeHigh).Msg("digital input ready")
	return d, nil
}

func (d *DigitalInputDevice) Pin() gpio.PinIO { return d.pin }

// IsActive reads the pin.
func (d *DigitalInputDevice) IsActive() bool {
	return logicalLevel(d.pin.Read(), d.pol.activeHigh())
}

// Value is 1 while active and 0 otherwise.
func (d *DigitalInputDevice) Value() float64 {
	if d.IsActive() {
		return 1
	}
	return 0
}

func (d *DigitalInputDevice) ActiveHigh() bool { return d.pol.activeHigh() }
func (d *DigitalInputDevice) SetActiveHigh(v bool) { d.pol.setActiveHigh(v) }

// WaitForActive blocks until the input is active, held for at least the
// debounce time, or ctx is done.
func (d *DigitalInputDevice) WaitForActive(ctx context.Context) error {
	return d.waitFor(ctx, true)
}

// WaitForInactive is the counterpart of WaitForActive.
func (d *DigitalInputDevice) WaitForInactive(ctx context.Context) error {
	return d.waitFor(ctx, false)
}

func (d *DigitalInputDevice) waitFor(ctx context.Context, want bool) error {
	t := time.NewTicker(d.poll)
	defer t.Stop()
	var since time.Time
	for {
		if d.closed.Load() {
			return ErrClosed
		}
		if d.IsActive() == want {
			now := time.Now()
			if since.IsZero() {
				since = now
			}
			if now.Sub(since) >= d.debounce {
				return nil
			}
		} else {
			since = time.Time{}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Close halts the pin and releases its claim.
func (d *DigitalInputDevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	err := d.pin.Halt()
	release(d.pin)
	return err
}

// Button is an input wired to ground, pulled up and active low unless
// options say otherwise.
type Button struct {
	*DigitalInputDevice
}

func NewButton(p gpio.PinIO, opts ...Option) (*Button, error) {
	opts = append([]Option{WithPull(gpio.PullUp), WithActiveHigh(false)}, opts...)
	d, err := newInput(p, newOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Button{d}, nil
}

func (b *Button) IsPressed() bool { return b.IsActive() }

func (b *Button) WaitForPress(ctx context.Context) error { return b.WaitForActive(ctx) }
func (b *Button) WaitForRelease(ctx context.Context) error { return b.WaitForInactive(ctx) }
