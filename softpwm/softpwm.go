// Package softpwm emulates PWM on a plain digital output by toggling it from a
// goroutine. The result satisfies gpio.PinIO so it can stand in wherever a
// hardware PWM pin is expected.
package softpwm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DefaultFrequency matches the usual software PWM rate for LEDs.
const DefaultFrequency = 100 * physic.Hertz

var ErrFrequency = errors.New("softpwm: frequency must be positive")

type params struct {
	on, off time.Duration
}

// Pin is a digital pin driven with software PWM. New parameters take effect
// at the end of the current period.
type Pin struct {
	gpio.PinIO
	log zerolog.Logger

	mu     sync.Mutex
	params chan params
	done   chan struct{}
	duty   gpio.Duty
	freq   physic.Frequency
}

// New wraps p. No goroutine runs until PWM is called with a duty strictly
// between 0 and gpio.DutyMax.
func New(p gpio.PinIO) *Pin {
	return &Pin{
		PinIO: p,
		log:   log.Logger.With().Str("component", "softpwm").Str("pin", p.Name()).Logger(),
	}
}

// WithLogger replaces the logger used for write failures inside the loop.
func (p *Pin) WithLogger(l zerolog.Logger) *Pin {
	p.log = l
	return p
}

func (p *Pin) String() string {
	return fmt.Sprintf("softpwm(%s)", p.PinIO.String())
}

// Out stops any PWM loop and sets the level directly.
func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()
	p.duty = 0
	if l {
		p.duty = gpio.DutyMax
	}
	return p.PinIO.Out(l)
}

// PWM starts or retunes the loop. Duty 0 and gpio.DutyMax are written as
// steady levels.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	if f <= 0 {
		return ErrFrequency
	}
	if duty <= 0 {
		return p.Out(gpio.Low)
	}
	if duty >= gpio.DutyMax {
		return p.Out(gpio.High)
	}

	period := f.Period()
	on := time.Duration(int64(period) * int64(duty) / int64(gpio.DutyMax))
	next := params{on: on, off: period - on}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.duty, p.freq = duty, f

	if p.params == nil {
		p.params = make(chan params, 1)
		p.done = make(chan struct{})
		go p.loop(p.params, p.done, next)
		return nil
	}
	select {
	case <-p.params:
	default:
	}
	p.params <- next
	return nil
}

// Duty returns the last duty requested through PWM or Out.
func (p *Pin) Duty() gpio.Duty {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Halt stops the loop and halts the underlying pin.
func (p *Pin) Halt() error {
	p.mu.Lock()
	p.haltLocked()
	p.mu.Unlock()
	return p.PinIO.Halt()
}

func (p *Pin) haltLocked() {
	if p.params == nil {
		return
	}
	close(p.params)
	<-p.done
	p.params, p.done = nil, nil
}

func (p *Pin) loop(in <-chan params, done chan<- struct{}, cur params) {
	defer close(done)
	for {
		if cur.on > 0 {
			p.write(gpio.High)
			time.Sleep(cur.on)
		}
		if cur.off > 0 {
			p.write(gpio.Low)
			time.Sleep(cur.off)
		}
		select {
		case next, ok := <-in:
			if !ok {
				return
			}
			cur = next
		default:
		}
	}
}

func (p *Pin) write(l gpio.Level) {
	if err := p.PinIO.Out(l); err != nil {
		p.log.Warn().Err(err).Bool("level", bool(l)).Msg("software pwm write failed")
	}
}

var _ gpio.PinIO = (*Pin)(nil)
