// Package hub owns the daemon's named devices. It builds them from config,
// restores their last values from the store and publishes every value change
// to subscribers.
package hub

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-gpiozero/device"
	"github.com/coreman2200/funtimes-gpiozero/internal/config"
	"github.com/coreman2200/funtimes-gpiozero/internal/store"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

var (
	ErrUnknownDevice = errors.New("hub: unknown device")
	ErrUnsupported   = errors.New("hub: operation not supported by device")
)

// Event is published whenever a device writes a new value.
type Event struct {
	Device string    `json:"device"`
	Value  float64   `json:"value"`
	TS     time.Time `json:"ts"`
}

// State is a snapshot of one device.
type State struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Value   float64 `json:"value"`
	Active  bool    `json:"active"`
	Running bool    `json:"running"`
	Color   string  `json:"color,omitempty"`
}

type entry struct {
	name string
	kind string
	dev  device.Device
}

type Hub struct {
	log   zerolog.Logger
	store store.Store

	mu      sync.RWMutex // guards devices and order while building
	devices map[string]*entry
	order   []string

	changes chan string
	done    chan struct{}

	subMu sync.Mutex
	subs  map[chan Event]struct{}

	closeOnce sync.Once
}

// New builds every configured device. st may be nil to run without
// persistence. On error the devices built so far are closed.
func New(cfg *config.Config, pin PinSource, st store.Store) (*Hub, error) {
	h := &Hub{
		log:     log.Logger.With().Str("component", "hub").Logger(),
		store:   st,
		devices: map[string]*entry{},
		changes: make(chan string, 256),
		done:    make(chan struct{}),
		subs:    map[chan Event]struct{}{},
	}
	go h.dispatch()

	for _, c := range cfg.Devices {
		d, err := h.build(c, cfg.SampleRate, pin)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("device %q: %w", c.Name, err)
		}
		h.mu.Lock()
		h.devices[c.Name] = &entry{name: c.Name, kind: c.Kind, dev: d}
		h.order = append(h.order, c.Name)
		h.mu.Unlock()
		h.log.Info().Str("device", c.Name).Str("kind", c.Kind).Msg("device ready")
	}
	h.restore()
	return h, nil
}

func (h *Hub) restore() {
	if h.store == nil {
		return
	}
	values, err := h.store.Values()
	if err != nil {
		h.log.Warn().Err(err).Msg("unable to read stored values")
		return
	}
	for name, v := range values {
		e, ok := h.devices[name]
		if !ok {
			continue
		}
		s, ok := e.dev.(device.Setter)
		if !ok {
			continue
		}
		if err := s.SetValue(v); err != nil {
			h.log.Warn().Err(err).Str("device", name).Float64("value", v).Msg("unable to restore value")
			continue
		}
		h.log.Debug().Str("device", name).Float64("value", v).Msg("value restored")
	}
}

// changed is called from device write hooks, possibly while the device
// holds its own locks, so it only queues the name.
func (h *Hub) changed(name string) {
	select {
	case h.changes <- name:
	default:
		h.log.Debug().Str("device", name).Msg("change queue full, event dropped")
	}
}

func (h *Hub) dispatch() {
	defer close(h.done)
	for name := range h.changes {
		h.mu.RLock()
		e, ok := h.devices[name]
		h.mu.RUnlock()
		if !ok {
			// still being built
			continue
		}
		h.publish(Event{Device: name, Value: e.dev.Value(), TS: time.Now()})
	}
}

func (h *Hub) publish(ev Event) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel of value changes and a function that ends the
// subscription. Slow subscribers miss events rather than block devices.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.subMu.Lock()
	h.subs[ch] = struct{}{}
	h.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.subMu.Lock()
			defer h.subMu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

func (h *Hub) lookup(name string) (*entry, error) {
	h.mu.RLock()
	e, ok := h.devices[name]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return e, nil
}

func (e *entry) state() State {
	s := State{Name: e.name, Kind: e.kind, Value: e.dev.Value()}
	switch d := e.dev.(type) {
	case device.Input:
		s.Active = d.IsActive()
	default:
		s.Active = s.Value != 0
	}
	if p, ok := e.dev.(device.Player); ok {
		s.Running = p.IsRunning()
	}
	if l, ok := e.dev.(*device.RGBLED); ok {
		c := l.Color()
		s.Color = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return s
}

// States lists every device in config order.
func (h *Hub) States() []State {
	h.mu.RLock()
	entries := make([]*entry, 0, len(h.order))
	for _, name := range h.order {
		entries = append(entries, h.devices[name])
	}
	h.mu.RUnlock()

	out := make([]State, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.state())
	}
	return out
}

func (h *Hub) State(name string) (State, error) {
	e, err := h.lookup(name)
	if err != nil {
		return State{}, err
	}
	return e.state(), nil
}

// Names returns the device names sorted.
func (h *Hub) Names() []string {
	h.mu.RLock()
	names := append([]string(nil), h.order...)
	h.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (h *Hub) switcher(name string) (*entry, device.Switch, error) {
	e, err := h.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	s, ok := e.dev.(device.Switch)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s cannot be switched", ErrUnsupported, e.kind)
	}
	return e, s, nil
}

func (h *Hub) On(name string) error {
	e, s, err := h.switcher(name)
	if err != nil {
		return err
	}
	return h.persist(e, s.On())
}

func (h *Hub) Off(name string) error {
	e, s, err := h.switcher(name)
	if err != nil {
		return err
	}
	return h.persist(e, s.Off())
}

func (h *Hub) Toggle(name string) error {
	e, s, err := h.switcher(name)
	if err != nil {
		return err
	}
	return h.persist(e, s.Toggle())
}

func (h *Hub) SetValue(name string, v float64) error {
	e, err := h.lookup(name)
	if err != nil {
		return err
	}
	s, ok := e.dev.(device.Setter)
	if !ok {
		return fmt.Errorf("%w: %s has no settable value", ErrUnsupported, e.kind)
	}
	return h.persist(e, s.SetValue(v))
}

func (h *Hub) SetColor(name string, c color.Color) error {
	e, err := h.lookup(name)
	if err != nil {
		return err
	}
	l, ok := e.dev.(*device.RGBLED)
	if !ok {
		return fmt.Errorf("%w: %s has no color", ErrUnsupported, e.kind)
	}
	return l.SetColor(c)
}

// Stop cancels a running blink, or stops a motor.
func (h *Hub) Stop(name string) error {
	e, err := h.lookup(name)
	if err != nil {
		return err
	}
	switch d := e.dev.(type) {
	case device.Player:
		d.Stop()
		return h.persist(e, nil)
	case motor:
		return h.persist(e, d.Motor.Stop())
	}
	return fmt.Errorf("%w: %s has nothing to stop", ErrUnsupported, e.kind)
}

// Play runs spec on a device in the background.
func (h *Hub) Play(name string, spec waveform.BlinkSpec) error {
	e, err := h.lookup(name)
	if err != nil {
		return err
	}
	p, ok := e.dev.(device.Player)
	if !ok {
		return fmt.Errorf("%w: %s cannot blink", ErrUnsupported, e.kind)
	}
	return p.Play(spec)
}

// PlayPreset runs a stored preset on a device.
func (h *Hub) PlayPreset(name, preset string) error {
	if h.store == nil {
		return fmt.Errorf("%w: no store", ErrUnsupported)
	}
	if _, err := h.lookup(name); err != nil {
		return err
	}
	spec, err := h.store.Preset(preset)
	if err != nil {
		return err
	}
	return h.Play(name, spec)
}

// persist records the value a successful command left on a device so it is
// restored on the next start.
func (h *Hub) persist(e *entry, err error) error {
	if err != nil || h.store == nil {
		return err
	}
	if _, ok := e.dev.(device.Setter); !ok {
		return nil
	}
	if err := h.store.PutValue(e.name, e.dev.Value()); err != nil {
		h.log.Warn().Err(err).Str("device", e.name).Msg("unable to persist value")
	}
	return nil
}

// Close releases every device and ends all subscriptions.
func (h *Hub) Close() error {
	var errs []error
	h.closeOnce.Do(func() {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for i := len(h.order) - 1; i >= 0; i-- {
			name := h.order[i]
			if err := h.devices[name].dev.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", name, err))
			}
		}
		close(h.changes)
		<-h.done

		h.subMu.Lock()
		for ch := range h.subs {
			delete(h.subs, ch)
			close(ch)
		}
		h.subMu.Unlock()
	})
	return errors.Join(errs...)
}
