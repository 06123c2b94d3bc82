// Package pins resolves GPIO pins through periph.io's host drivers and
// registry.
package pins

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
)

var ErrPinNotFound = errors.New("pins: pin not found")

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph host drivers. It is safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	return initErr
}

// ByName initializes the host drivers and resolves name, which may be a
// GPIO name ("GPIO17"), a header alias or a plain number.
func ByName(name string) (gpio.PinIO, error) {
	if err := Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return Lookup(name)
}

// Lookup resolves name in the registry without touching host drivers. The
// registry only knows names and aliases, so a plain number is retried as
// "GPIO<n>".
func Lookup(name string) (gpio.PinIO, error) {
	if p := gpioreg.ByName(name); p != nil {
		return p, nil
	}
	if _, err := strconv.Atoi(name); err == nil {
		if p := gpioreg.ByName("GPIO" + name); p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPinNotFound, name)
}

// Real follows aliases down to the physical pin.
func Real(p gpio.PinIO) gpio.PinIO {
	for {
		r, ok := p.(gpio.RealPin)
		if !ok {
			return p
		}
		p = r.Real()
	}
}

var (
	simMu   sync.Mutex
	simNext = 10000
)

// Simulate returns the registered pin called name, registering an in-memory
// gpiotest pin first if the registry has none. It backs the daemon's
// simulation mode on machines without GPIO.
func Simulate(name string) (gpio.PinIO, error) {
	if p, err := Lookup(name); err == nil {
		return p, nil
	}
	if _, err := strconv.Atoi(name); err == nil {
		name = "GPIO" + name
	}

	simMu.Lock()
	defer simMu.Unlock()
	num := simNext
	simNext++
	if n, err := strconv.Atoi(strings.TrimPrefix(name, "GPIO")); err == nil {
		num = n
	}
	p := &gpiotest.Pin{N: name, Num: num, Fn: "Out"}
	if err := gpioreg.Register(p); err != nil {
		return nil, fmt.Errorf("register simulated pin %q: %w", name, err)
	}
	return p, nil
}
