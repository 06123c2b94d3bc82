package device_test

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-gpiozero/device"
	"github.com/coreman2200/funtimes-gpiozero/internal/pintest"
	"github.com/coreman2200/funtimes-gpiozero/playback"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

func TestNewWritesInitialValue(t *testing.T) {
	p := newPin(t)
	d, err := device.NewDigitalOutputDevice(p, quiet(device.WithInitialValue(1))...)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, []bool{true}, levels(p.Writes()))
	assert.Equal(t, 1.0, d.Value())
	assert.True(t, d.IsActive())
}

func TestNewRejectsOutOfRangeInitialValue(t *testing.T) {
	p := newPin(t)
	_, err := device.NewDigitalOutputDevice(p, quiet(device.WithInitialValue(2))...)
	assert.ErrorIs(t, err, device.ErrOutOfRange)
	assert.Zero(t, p.Count())

	// the pin was never claimed
	d, err := device.NewLED(p, quiet()...)
	require.NoError(t, err)
	d.Close()
}

func TestOffIsIdempotent(t *testing.T) {
	p := newPin(t)
	d, err := device.NewDigitalOutputDevice(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Off())
	require.NoError(t, d.Off())
	assert.Equal(t, 0.0, d.Value())
	assert.Equal(t, []bool{false, false, false}, levels(p.Writes()))
}

func TestSetValueRejectsOutOfRange(t *testing.T) {
	p := newPin(t)
	d, err := device.NewDigitalOutputDevice(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.On())
	before := p.Count()

	for _, v := range []float64{1.5, -0.1} {
		err := d.SetValue(v)
		require.ErrorIs(t, err, device.ErrOutOfRange)
		var re *device.RangeError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, v, re.Value)
	}
	assert.Equal(t, 1.0, d.Value())
	assert.Equal(t, before, p.Count())
}

func TestDigitalSetValueIsOnOff(t *testing.T) {
	p := newPin(t)
	d, err := device.NewDigitalOutputDevice(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.SetValue(0.3))
	assert.Equal(t, 1.0, d.Value())
	require.NoError(t, d.SetValue(0))
	assert.Equal(t, 0.0, d.Value())
}

func TestActiveLowInvertsLevels(t *testing.T) {
	p := newPin(t)
	d, err := device.NewLED(p, quiet(device.WithActiveHigh(false))...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.On())
	assert.True(t, d.IsLit())
	require.NoError(t, d.Off())
	assert.Equal(t, []bool{true, false, true}, levels(p.Writes()))

	d.SetActiveHigh(true)
	assert.True(t, d.ActiveHigh())
	require.NoError(t, d.On())
	w, _ := p.Last()
	assert.Equal(t, gpio.High, w.Level)
}

func TestToggle(t *testing.T) {
	p := newPin(t)
	d, err := device.NewLED(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Toggle())
	assert.True(t, d.IsLit())
	require.NoError(t, d.Toggle())
	assert.False(t, d.IsLit())
}

func TestToggleWhileBlinkingDoesNothing(t *testing.T) {
	p := newPin(t)
	d, err := device.NewLED(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Blink(50*time.Millisecond, 50*time.Millisecond, waveform.Forever))
	require.NoError(t, d.Toggle())
	assert.True(t, d.IsRunning())
	d.Stop()
	assert.False(t, d.IsRunning())
}

func TestBlinkRepeatEndsOnItsOwn(t *testing.T) {
	p := newPin(t)
	d, err := device.NewLED(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Blink(5*time.Millisecond, 5*time.Millisecond, 3))
	require.NoError(t, d.Wait())

	assert.False(t, d.IsRunning())
	assert.Equal(t, []bool{false, true, false, true, false, true, false}, levels(p.Writes()))
	assert.Equal(t, 0.0, d.Value())
	assert.ErrorIs(t, d.Wait(), playback.ErrNotRunning)
}

func TestNoWritesAfterOffReturns(t *testing.T) {
	p := newPin(t)
	d, err := device.NewLED(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Blink(time.Millisecond, time.Millisecond, waveform.Forever))
	assert.Eventually(t, func() bool { return p.Count() > 5 }, time.Second, time.Millisecond)
	require.NoError(t, d.Off())

	n := p.Count()
	w, _ := p.Last()
	assert.Equal(t, gpio.Low, w.Level)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, p.Count())
	assert.False(t, d.IsRunning())
}

func TestDigitalPlayRejectsFades(t *testing.T) {
	p := newPin(t)
	d, err := device.NewDigitalOutputDevice(p, quiet()...)
	require.NoError(t, err)
	defer d.Close()

	err = d.Play(waveform.Pulse(time.Second, time.Second, 1))
	assert.ErrorIs(t, err, device.ErrFadeUnsupported)
	assert.ErrorIs(t, d.Blink(0, 0, 1), waveform.ErrEmptyWaveform)
	assert.False(t, d.IsRunning())
}

func TestPinCanBackOneDevice(t *testing.T) {
	p := newPin(t)
	a, err := device.NewLED(p, quiet()...)
	require.NoError(t, err)

	_, err = device.NewBuzzer(p, quiet()...)
	require.ErrorIs(t, err, device.ErrPinInUse)

	require.NoError(t, a.Close())
	b, err := device.NewBuzzer(p, quiet()...)
	require.NoError(t, err)
	b.Close()
}

func TestClosedDeviceRejectsCommands(t *testing.T) {
	p := newPin(t)
	d, err := device.NewLED(p, quiet()...)
	require.NoError(t, err)
	require.NoError(t, d.Blink(time.Millisecond, time.Millisecond, waveform.Forever))

	require.NoError(t, d.Close())
	assert.False(t, d.IsRunning())
	assert.ErrorIs(t, d.On(), device.ErrClosed)
	assert.ErrorIs(t, d.Toggle(), device.ErrClosed)
	assert.ErrorIs(t, d.Blink(time.Millisecond, time.Millisecond, 1), device.ErrClosed)
	assert.NoError(t, d.Close())
}

func TestBuzzerBeep(t *testing.T) {
	p := newPin(t)
	b, err := device.NewBuzzer(p, quiet()...)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Beep(10*time.Millisecond, 10*time.Millisecond, 2))
	require.NoError(t, b.Wait())
	assert.Equal(t, []bool{false, true, false, true, false}, levels(p.Writes()))
}

func TestWriteHookSeesEveryValue(t *testing.T) {
	p := newPin(t)
	var got []float64
	hook := func(v float64) { got = append(got, v) }
	d, err := device.NewLED(p, quiet(device.WithWriteHook(hook))...)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.On())
	require.NoError(t, d.Blink(10*time.Millisecond, 10*time.Millisecond, 1))
	require.NoError(t, d.Wait())
	assert.Equal(t, []float64{0, 1, 1, 0}, got)
}

// Each blink runs at its own red level. The pin stamps writes with the number
// of the blink whose Blink call returned last, so a write tagged g comes from
// blink g or, before the tag moves on, blink g+1. Anything older means a
// stopped blink kept writing.
func TestRestartedBlinksNeverInterleave(t *testing.T) {
	l, ps := newRGB(t)
	spec := waveform.Blink(time.Millisecond, time.Millisecond, waveform.Forever)
	duty := func(g uint64) gpio.Duty {
		return gpio.Duty(math.Round(float64(uint8(10*g)) / 255 * float64(gpio.DutyMax)))
	}

	for g := uint64(1); g <= 20; g++ {
		require.NoError(t, l.Blink(spec, color.NRGBA{R: uint8(10 * g), A: 255}, color.Black))
		ps[0].SetTag(g)
		time.Sleep(3 * time.Millisecond)
	}
	assert.Eventually(t, func() bool {
		w, _ := ps[0].Last()
		return w.Tag == 20
	}, time.Second, time.Millisecond)
	l.Stop()

	var last uint64
	for i, w := range ps[0].Writes() {
		require.GreaterOrEqual(t, w.Tag, last, "write %d", i)
		last = w.Tag
		if w.Tag == 0 {
			continue
		}
		if w.PWM {
			assert.Contains(t, []gpio.Duty{duty(w.Tag), duty(w.Tag + 1)}, w.Duty, "write %d", i)
		} else {
			assert.Equal(t, gpio.Low, w.Level, "write %d", i)
		}
	}
	assert.Equal(t, uint64(20), last)
}

type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBlinkSurvivesFailedWrite(t *testing.T) {
	p := newPin(t)
	var logs logBuffer
	d, err := device.NewLED(p, device.WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Blink(2*time.Millisecond, 2*time.Millisecond, waveform.Forever))
	assert.Eventually(t, func() bool { return p.Count() > 3 }, time.Second, time.Millisecond)

	p.FailNext(1)
	n := p.Count()
	assert.Eventually(t, func() bool { return p.Count() > n+3 }, time.Second, time.Millisecond)
	assert.True(t, d.IsRunning())
	assert.Contains(t, logs.String(), "playback write failed")
	assert.Contains(t, logs.String(), pintest.ErrInjected.Error())

	require.NoError(t, d.Off())
	w, _ := p.Last()
	assert.Equal(t, gpio.Low, w.Level)
}
