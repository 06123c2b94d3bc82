package store

import (
	"errors"
	"io"

	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

var ErrNotFound = errors.New("store: not found")

// Store describes persistent storage for blink presets and the last value
// set on each device.
type Store interface {
	Preset(name string) (waveform.BlinkSpec, error)
	ListPresets() ([]string, error)
	PutPreset(name string, spec waveform.BlinkSpec) error
	DeletePreset(name string) error

	Values() (map[string]float64, error)
	PutValue(device string, v float64) error

	io.Closer
}
