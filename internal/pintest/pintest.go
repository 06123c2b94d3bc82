// Package pintest provides a periph gpiotest pin that records every write,
// for tests that need to inspect what an output device drove onto a pin.
package pintest

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// ErrInjected is returned by writes failed through FailNext.
var ErrInjected = errors.New("pintest: injected write failure")

// Write is one recorded Out or PWM call.
type Write struct {
	Level gpio.Level
	PWM   bool
	Duty  gpio.Duty
	Freq  physic.Frequency
	Tag   uint64
}

// Pin is a gpiotest.Pin that records writes.
type Pin struct {
	gpiotest.Pin

	mu     sync.Mutex
	writes []Write
	tag    uint64
	fail   int
}

// New returns a recording pin named name.
func New(name string, num int) *Pin {
	return &Pin{Pin: gpiotest.Pin{N: name, Num: num, Fn: "Out"}}
}

func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return ErrInjected
	}
	p.writes = append(p.writes, Write{Level: l, Tag: p.tag})
	return p.Pin.Out(l)
}

func (p *Pin) PWM(d gpio.Duty, f physic.Frequency) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return ErrInjected
	}
	p.writes = append(p.writes, Write{PWM: true, Duty: d, Freq: f, Tag: p.tag})
	return p.Pin.PWM(d, f)
}

// SetTag stamps all following writes with tag.
func (p *Pin) SetTag(tag uint64) {
	p.mu.Lock()
	p.tag = tag
	p.mu.Unlock()
}

// FailNext makes the next n writes fail with ErrInjected.
func (p *Pin) FailNext(n int) {
	p.mu.Lock()
	p.fail = n
	p.mu.Unlock()
}

// SetLevel sets the level returned by Read, as if driven externally.
func (p *Pin) SetLevel(l gpio.Level) {
	p.Pin.Lock()
	p.Pin.L = l
	p.Pin.Unlock()
}

// Writes returns a copy of everything written so far.
func (p *Pin) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write(nil), p.writes...)
}

// Count returns the number of recorded writes.
func (p *Pin) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

// Last returns the most recent write.
func (p *Pin) Last() (Write, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return Write{}, false
	}
	return p.writes[len(p.writes)-1], true
}

