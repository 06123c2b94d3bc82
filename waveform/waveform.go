// Package waveform renders blink and pulse effects into a finite list of
// duty-cycle steps that a playback driver can replay against an output pin.
package waveform

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SampleRate is the default number of duty samples per second used to render
// fades. Higher rates give smoother fades at the cost of more pin writes.
const SampleRate = 25

// Forever as a repeat count loops a waveform until it is stopped.
const Forever = 0

var (
	ErrEmptyWaveform    = errors.New("waveform: on, off and fade times are all zero")
	ErrNegativeDuration = errors.New("waveform: negative duration")
	ErrInvalidRepeat    = errors.New("waveform: repeat must be positive or Forever")
	ErrInvalidStep      = errors.New("waveform: invalid step")
	ErrUnknownEase      = errors.New("waveform: unknown ease")
)

// Step is a duty cycle held for a fixed time.
type Step struct {
	Duty float64       `json:"duty"`
	Hold time.Duration `json:"hold"`
}

// Waveform is an ordered, immutable and never empty list of steps. It can be
// replayed from the start any number of times.
type Waveform struct {
	steps []Step
}

// New builds a waveform from explicit steps.
func New(steps ...Step) (Waveform, error) {
	if len(steps) == 0 {
		return Waveform{}, fmt.Errorf("%w: no steps", ErrInvalidStep)
	}
	for i, s := range steps {
		if math.IsNaN(s.Duty) || s.Duty < 0 || s.Duty > 1 {
			return Waveform{}, fmt.Errorf("%w: step %d duty %v outside [0, 1]", ErrInvalidStep, i, s.Duty)
		}
		if s.Hold < 0 {
			return Waveform{}, fmt.Errorf("%w: step %d hold %s", ErrNegativeDuration, i, s.Hold)
		}
	}
	return Waveform{steps: append([]Step(nil), steps...)}, nil
}

// Len returns the number of steps in one cycle.
func (w Waveform) Len() int { return len(w.steps) }

// Step returns the i-th step.
func (w Waveform) Step(i int) Step { return w.steps[i] }

// Steps returns a copy of the steps.
func (w Waveform) Steps() []Step { return append([]Step(nil), w.steps...) }

// Duration is the total hold time of one cycle.
func (w Waveform) Duration() time.Duration {
	var d time.Duration
	for _, s := range w.steps {
		d += s.Hold
	}
	return d
}

// Scale maps every duty d to lo + d*(hi-lo), keeping the holds. Both bounds
// must lie in [0, 1]; hi may be below lo to invert the waveform.
func (w Waveform) Scale(lo, hi float64) (Waveform, error) {
	steps := w.Steps()
	for i := range steps {
		steps[i].Duty = lo + steps[i].Duty*(hi-lo)
	}
	return New(steps...)
}

// BlinkSpec describes one blink or pulse cycle and how often to repeat it.
type BlinkSpec struct {
	OnTime  time.Duration `json:"on_time"`
	OffTime time.Duration `json:"off_time"`
	FadeIn  time.Duration `json:"fade_in"`
	FadeOut time.Duration `json:"fade_out"`
	// Repeat is the number of cycles to play; Forever loops until stopped.
	Repeat int `json:"repeat"`
	// Ease shapes the fades. The zero value is linear.
	Ease Ease `json:"ease,omitempty"`
}

// Blink is a plain on/off blink without fades.
func Blink(on, off time.Duration, repeat int) BlinkSpec {
	return BlinkSpec{OnTime: on, OffTime: off, Repeat: repeat}
}

// Pulse fades in and straight back out with no hold at either end.
func Pulse(fadeIn, fadeOut time.Duration, repeat int) BlinkSpec {
	return BlinkSpec{FadeIn: fadeIn, FadeOut: fadeOut, Repeat: repeat}
}

// Validate reports malformed timings or repeat counts.
func (s BlinkSpec) Validate() error {
	if s.OnTime < 0 || s.OffTime < 0 || s.FadeIn < 0 || s.FadeOut < 0 {
		return ErrNegativeDuration
	}
	if s.OnTime == 0 && s.OffTime == 0 && s.FadeIn == 0 && s.FadeOut == 0 {
		return ErrEmptyWaveform
	}
	if s.Repeat < 0 {
		return ErrInvalidRepeat
	}
	if !s.Ease.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEase, s.Ease)
	}
	return nil
}

// HasFades reports whether the spec needs a PWM capable output.
func (s BlinkSpec) HasFades() bool {
	return s.FadeIn > 0 || s.FadeOut > 0
}

// Generate renders one cycle of spec at rate samples per second. A rate of
// zero or less falls back to SampleRate.
//
// The cycle is: a rising ramp over FadeIn, full duty for OnTime, a falling
// ramp over FadeOut and zero duty for OffTime. The on and off steps are always
// present so a fade-less blink is exactly two steps.
func Generate(spec BlinkSpec, rate int) (Waveform, error) {
	if err := spec.Validate(); err != nil {
		return Waveform{}, err
	}
	if rate <= 0 {
		rate = SampleRate
	}

	in := ramp(spec.FadeIn, rate, spec.Ease)
	out := ramp(spec.FadeOut, rate, spec.Ease)
	steps := make([]Step, 0, len(in)+len(out)+2)

	steps = append(steps, in...)
	steps = append(steps, Step{Duty: 1, Hold: spec.OnTime})
	for i := range out {
		steps = append(steps, Step{Duty: 1 - out[i].Duty, Hold: out[i].Hold})
	}
	steps = append(steps, Step{Duty: 0, Hold: spec.OffTime})

	return Waveform{steps: steps}, nil
}

// ramp returns floor(rate*d) rising steps, one sample period each. Each duty
// is taken at the centre of its sample window so values stay strictly
// inside (0, 1).
func ramp(d time.Duration, rate int, ease Ease) []Step {
	n := int(int64(d) * int64(rate) / int64(time.Second))
	if n <= 0 {
		return nil
	}
	samples := float64(rate) * d.Seconds()
	hold := time.Second / time.Duration(rate)
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = Step{Duty: clamp01(ease.apply((float64(i) + 0.5) / samples)), Hold: hold}
	}
	return steps
}

// clamp01 clamps x in [0,1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
