package device

import (
	"image/color"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-gpiozero/softpwm"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

// Option configures a device at construction.
type Option func(*options)

type options struct {
	activeHigh bool
	initial    float64
	freq       physic.Frequency
	hardware   bool
	rate       int
	log        zerolog.Logger
	onWrite    func(float64)

	pull     gpio.Pull
	debounce time.Duration
	poll     time.Duration

	minPulse, maxPulse, frame time.Duration
	color                     color.Color
}

func newOptions(opts []Option) options {
	o := options{
		activeHigh: true,
		freq:       softpwm.DefaultFrequency,
		rate:       waveform.SampleRate,
		log:        log.Logger.With().Str("component", "device").Logger(),
		pull:       gpio.PullDown,
		poll:       10 * time.Millisecond,
		minPulse:   time.Millisecond,
		maxPulse:   2 * time.Millisecond,
		frame:      20 * time.Millisecond,
		color:      color.Black,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithActiveHigh sets whether logical "on" drives the pin high (the default)
// or low.
func WithActiveHigh(v bool) Option {
	return func(o *options) { o.activeHigh = v }
}

// WithInitialValue sets the value written when the device is created.
func WithInitialValue(v float64) Option {
	return func(o *options) { o.initial = v }
}

// WithFrequency sets the PWM frequency of PWM devices.
func WithFrequency(f physic.Frequency) Option {
	return func(o *options) { o.freq = f }
}

// WithHardwarePWM drives PWM devices through the pin's own PWM instead of
// software emulation.
func WithHardwarePWM() Option {
	return func(o *options) { o.hardware = true }
}

// WithSampleRate sets how many samples per second fades are rendered with.
func WithSampleRate(rate int) Option {
	return func(o *options) { o.rate = rate }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithWriteHook is called with every logical value written to an output,
// from whichever goroutine wrote it.
func WithWriteHook(fn func(v float64)) Option {
	return func(o *options) { o.onWrite = fn }
}

// WithPull sets the pull resistor of input devices.
func WithPull(p gpio.Pull) Option {
	return func(o *options) { o.pull = p }
}

// WithDebounce makes input waits require a level to hold for d.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithPollInterval sets how often input waits sample the pin.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

// WithPulseWidths sets the servo pulse widths at -1 and 1 and the frame
// between pulses.
func WithPulseWidths(minPulse, maxPulse, frame time.Duration) Option {
	return func(o *options) { o.minPulse, o.maxPulse, o.frame = minPulse, maxPulse, frame }
}

// WithInitialColor sets the color an RGBLED starts with.
func WithInitialColor(c color.Color) Option {
	return func(o *options) { o.color = c }
}
