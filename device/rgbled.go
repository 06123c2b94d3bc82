package device

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-gpiozero/playback"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

// RGBLED is a full color LED on three PWM channels.
type RGBLED struct {
	mu       sync.Mutex // serializes commands that touch all channels
	channels [3]*PWMOutputDevice
	rate     int
}

// NewRGBLED claims the red, green and blue pins and shows the initial color,
// black by default.
func NewRGBLED(red, green, blue gpio.PinIO, opts ...Option) (*RGBLED, error) {
	o := newOptions(opts)
	o.initial = 0
	l := &RGBLED{rate: o.rate}
	for i, p := range []gpio.PinIO{red, green, blue} {
		ch, err := newPWM(p, o)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("%s channel: %w", channelNames[i], err)
		}
		l.channels[i] = ch
	}
	if err := l.SetColor(o.color); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

var channelNames = [3]string{"red", "green", "blue"}

func components(c color.Color) [3]float64 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return [3]float64{float64(n.R) / 255, float64(n.G) / 255, float64(n.B) / 255}
}

func to8(v float64) uint8 { return uint8(math.Round(v * 255)) }

// SetColor stops any blink and shows c. Alpha is ignored.
func (l *RGBLED) SetColor(c color.Color) error {
	return l.setAll(components(c))
}

func (l *RGBLED) setAll(v [3]float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setAllLocked(v)
}

func (l *RGBLED) setAllLocked(v [3]float64) error {
	var errs []error
	for i, ch := range l.channels {
		errs = append(errs, ch.SetValue(v[i]))
	}
	return errors.Join(errs...)
}

// Color returns the color last written to the channels.
func (l *RGBLED) Color() color.NRGBA {
	return color.NRGBA{
		R: to8(l.channels[0].Value()),
		G: to8(l.channels[1].Value()),
		B: to8(l.channels[2].Value()),
		A: 0xff,
	}
}

// Value is the brightest channel.
func (l *RGBLED) Value() float64 {
	var v float64
	for _, ch := range l.channels {
		v = math.Max(v, ch.Value())
	}
	return v
}

// IsLit reports whether any channel is on.
func (l *RGBLED) IsLit() bool { return l.Value() > 0 }

func (l *RGBLED) On() error { return l.setAll([3]float64{1, 1, 1}) }
func (l *RGBLED) Off() error { return l.setAll([3]float64{}) }

// Toggle inverts every channel. While a blink is playing it does nothing.
func (l *RGBLED) Toggle() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.IsRunning() {
		return nil
	}
	var v [3]float64
	for i, ch := range l.channels {
		v[i] = 1 - ch.Value()
	}
	return l.setAllLocked(v)
}

// Blink plays spec on every channel, moving between off and on.
func (l *RGBLED) Blink(spec waveform.BlinkSpec, on, off color.Color) error {
	w, err := waveform.Generate(spec, l.rate)
	if err != nil {
		return err
	}
	hi, lo := components(on), components(off)
	var ws [3]waveform.Waveform
	for i := range ws {
		if ws[i], err = w.Scale(lo[i], hi[i]); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	for i, ch := range l.channels {
		if err := ch.start(ws[i], spec.Repeat); err != nil {
			l.stopLocked()
			return err
		}
	}
	return nil
}

// Pulse fades between off and on without resting at either color.
func (l *RGBLED) Pulse(fadeIn, fadeOut time.Duration, on, off color.Color, repeat int) error {
	return l.Blink(waveform.Pulse(fadeIn, fadeOut, repeat), on, off)
}

// Play blinks between black and white.
func (l *RGBLED) Play(spec waveform.BlinkSpec) error {
	return l.Blink(spec, color.White, color.Black)
}

func (l *RGBLED) IsRunning() bool {
	for _, ch := range l.channels {
		if ch.IsRunning() {
			return true
		}
	}
	return false
}

// Stop cancels a blink on every channel.
func (l *RGBLED) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *RGBLED) stopLocked() {
	for _, ch := range l.channels {
		ch.Stop()
	}
}

// Wait blocks until every channel finished its blink.
func (l *RGBLED) Wait() error {
	waited := false
	for _, ch := range l.channels {
		switch err := ch.Wait(); {
		case err == nil:
			waited = true
		case errors.Is(err, playback.ErrNotRunning):
		default:
			return err
		}
	}
	if !waited {
		return playback.ErrNotRunning
	}
	return nil
}

func (l *RGBLED) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, ch := range l.channels {
		if ch != nil {
			errs = append(errs, ch.Close())
		}
	}
	return errors.Join(errs...)
}
