package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Device kinds.
const (
	KindOutput = "output"
	KindLED    = "led"
	KindBuzzer = "buzzer"
	KindPWM    = "pwm"
	KindPWMLED = "pwmled"
	KindMotor  = "motor"
	KindServo  = "servo"
	KindRGBLED = "rgbled"
	KindInput  = "input"
	KindButton = "button"
)

var ErrInvalid = errors.New("config: invalid")

type Pins struct {
	Forward  string `yaml:"forward,omitempty"`
	Backward string `yaml:"backward,omitempty"`
	Red      string `yaml:"red,omitempty"`
	Green    string `yaml:"green,omitempty"`
	Blue     string `yaml:"blue,omitempty"`
}

type Device struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Pin  string `yaml:"pin,omitempty"` // e.g. GPIO17 or 17
	Pins Pins   `yaml:"pins,omitempty"`

	ActiveHigh  *bool   `yaml:"active_high,omitempty"` // default true, false for buttons
	Initial     float64 `yaml:"initial,omitempty"`
	FrequencyHz float64 `yaml:"frequency_hz,omitempty"`
	HardwarePWM bool    `yaml:"hardware_pwm,omitempty"`

	MinPulseMs float64 `yaml:"min_pulse_ms,omitempty"`
	MaxPulseMs float64 `yaml:"max_pulse_ms,omitempty"`
	FrameMs    float64 `yaml:"frame_ms,omitempty"`

	Pull       string `yaml:"pull,omitempty"` // up | down | float
	DebounceMs int    `yaml:"debounce_ms,omitempty"`
}

type Config struct {
	Addr       string   `yaml:"addr"`
	Store      string   `yaml:"store"`
	SampleRate int      `yaml:"sample_rate"`
	Devices    []Device `yaml:"devices"`
}

// Default is used when no config file exists.
func Default() *Config {
	return &Config{Addr: ":8080", Store: "gpiozero.db", SampleRate: 25}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks device names are unique and each kind has the pins it
// needs.
func (c *Config) Validate() error {
	if c.SampleRate < 0 {
		return fmt.Errorf("%w: sample_rate %d", ErrInvalid, c.SampleRate)
	}
	seen := map[string]bool{}
	for i, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("%w: device %d has no name", ErrInvalid, i)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate device %q", ErrInvalid, d.Name)
		}
		seen[d.Name] = true
		if err := d.validate(); err != nil {
			return fmt.Errorf("%w: device %q: %v", ErrInvalid, d.Name, err)
		}
	}
	return nil
}

func (d Device) validate() error {
	switch d.Kind {
	case KindOutput, KindLED, KindBuzzer, KindPWM, KindPWMLED, KindServo, KindInput, KindButton:
		if d.Pin == "" {
			return errors.New("pin is required")
		}
	case KindMotor:
		if d.Pins.Forward == "" || d.Pins.Backward == "" {
			return errors.New("pins.forward and pins.backward are required")
		}
	case KindRGBLED:
		if d.Pins.Red == "" || d.Pins.Green == "" || d.Pins.Blue == "" {
			return errors.New("pins.red, pins.green and pins.blue are required")
		}
	default:
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	switch d.Pull {
	case "", "up", "down", "float":
	default:
		return fmt.Errorf("unknown pull %q", d.Pull)
	}
	if d.FrequencyHz < 0 {
		return fmt.Errorf("negative frequency_hz %v", d.FrequencyHz)
	}
	return nil
}
