// Package playback replays waveforms against an output on a background
// goroutine. A Driver owns the output: every write, foreground or background,
// goes through its lock, and starting a new waveform or setting a value first
// cancels and joins the generation already running.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

var (
	ErrNotRunning     = errors.New("playback: nothing is playing")
	ErrWaitInProgress = errors.New("playback: another caller is already waiting")
	ErrEmptyWaveform  = errors.New("playback: waveform has no steps")
	ErrZeroLength     = errors.New("playback: endless waveform with zero total hold")
	ErrInvalidRepeat  = errors.New("playback: negative repeat count")
)

// Output receives logical duty cycles in [0, 1]. Implementations translate
// them to physical pin levels.
type Output interface {
	WriteDuty(duty float64) error
}

// Option configures a Driver.
type Option func(*settings)

type settings struct {
	log     zerolog.Logger
	onWrite func(duty float64)
}

// WithLogger sets the logger used for background write failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithWriteHook registers fn to be called after every successful write. It
// runs with the output lock held, so it must not block or call back into the
// Driver.
func WithWriteHook(fn func(duty float64)) Option {
	return func(s *settings) { s.onWrite = fn }
}

// Driver serializes writes to one Output and runs at most one playback
// generation at a time.
type Driver[O Output] struct {
	out     O
	log     zerolog.Logger
	onWrite func(float64)

	mu    sync.Mutex // held for every write to out
	value float64

	ctl sync.Mutex // guards cur and seq
	cur *generation
	seq uint64
}

type generation struct {
	id      uint64
	cancel  context.CancelFunc
	done    chan struct{}
	waiting bool
}

func (g *generation) finished() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// New returns an idle Driver writing to out. The initial value is zero; no
// write is issued until Start or Set is called.
func New[O Output](out O, opts ...Option) *Driver[O] {
	s := settings{log: log.Logger.With().Str("component", "playback").Logger()}
	for _, o := range opts {
		o(&s)
	}
	return &Driver[O]{out: out, log: s.log, onWrite: s.onWrite}
}

// Output returns the output the driver writes to.
func (d *Driver[O]) Output() O { return d.out }

// Start cancels and joins any running generation, then plays w repeat times
// on a new goroutine. A repeat of waveform.Forever loops until stopped.
func (d *Driver[O]) Start(w waveform.Waveform, repeat int) error {
	if w.Len() == 0 {
		return ErrEmptyWaveform
	}
	if repeat < 0 {
		return ErrInvalidRepeat
	}
	if repeat == waveform.Forever && w.Duration() == 0 {
		return ErrZeroLength
	}

	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	d.seq++
	g := &generation{id: d.seq, cancel: cancel, done: make(chan struct{})}
	d.cur = g

	d.log.Debug().Uint64("generation", g.id).Int("steps", w.Len()).Int("repeat", repeat).Msg("playback started")
	go d.run(ctx, g, w, repeat)
	return nil
}

// Stop cancels the running generation, if any, and returns once its last
// write has completed.
func (d *Driver[O]) Stop() {
	d.ctl.Lock()
	defer d.ctl.Unlock()
	d.stopLocked()
}

func (d *Driver[O]) stopLocked() {
	g := d.cur
	if g == nil {
		return
	}
	d.cur = nil
	g.cancel()
	<-g.done
	d.log.Debug().Uint64("generation", g.id).Msg("playback stopped")
}

// Set stops any playback and then writes duty synchronously.
func (d *Driver[O]) Set(duty float64) error {
	d.ctl.Lock()
	defer d.ctl.Unlock()

	d.stopLocked()

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeLocked(duty)
}

// Value returns the last duty successfully written by either Set or the
// background generation.
func (d *Driver[O]) Value() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// IsRunning reports whether a generation is still playing.
func (d *Driver[O]) IsRunning() bool {
	d.ctl.Lock()
	defer d.ctl.Unlock()
	return d.cur != nil && !d.cur.finished()
}

// Wait blocks until the current generation ends, either naturally or through
// Stop. It returns ErrNotRunning when no generation is playing, including one
// that already finished, and ErrWaitInProgress when another caller is already
// waiting. There is no timeout; combine Stop with IsRunning for bounded waits.
func (d *Driver[O]) Wait() error {
	d.ctl.Lock()
	g := d.cur
	if g == nil || g.finished() {
		d.cur = nil
		d.ctl.Unlock()
		return ErrNotRunning
	}
	if g.waiting {
		d.ctl.Unlock()
		return ErrWaitInProgress
	}
	g.waiting = true
	d.ctl.Unlock()

	<-g.done

	d.ctl.Lock()
	g.waiting = false
	if d.cur == g {
		d.cur = nil
	}
	d.ctl.Unlock()
	return nil
}

func (d *Driver[O]) writeLocked(duty float64) error {
	if err := d.out.WriteDuty(duty); err != nil {
		return err
	}
	d.value = duty
	if d.onWrite != nil {
		d.onWrite(duty)
	}
	return nil
}

func (d *Driver[O]) run(ctx context.Context, g *generation, w waveform.Waveform, repeat int) {
	defer close(g.done)

	for pass := 0; repeat == waveform.Forever || pass < repeat; pass++ {
		for i := 0; i < w.Len(); i++ {
			if ctx.Err() != nil {
				return
			}
			s := w.Step(i)

			d.mu.Lock()
			err := d.writeLocked(s.Duty)
			d.mu.Unlock()
			if err != nil {
				// Nobody can receive this error; keep the sequence going.
				d.log.Warn().Err(err).
					Uint64("generation", g.id).
					Int("pass", pass).
					Int("step", i).
					Float64("duty", s.Duty).
					Msg("playback write failed")
			}

			if !hold(ctx, s.Hold) {
				return
			}
		}
	}
	d.log.Debug().Uint64("generation", g.id).Msg("playback finished")
}

// hold sleeps for d and returns false if ctx was cancelled first.
func hold(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
