package device_test

import (
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-gpiozero/device"
	"github.com/coreman2200/funtimes-gpiozero/internal/pintest"
	"github.com/coreman2200/funtimes-gpiozero/playback"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

func newRGB(t *testing.T, opts ...device.Option) (*device.RGBLED, [3]*pintest.Pin) {
	t.Helper()
	ps := [3]*pintest.Pin{newPin(t), newPin(t), newPin(t)}
	l, err := device.NewRGBLED(ps[0], ps[1], ps[2], quiet(append([]device.Option{device.WithHardwarePWM()}, opts...)...)...)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, ps
}

func TestRGBLEDColor(t *testing.T) {
	l, ps := newRGB(t)
	assert.False(t, l.IsLit())

	orange := color.NRGBA{R: 255, G: 128, A: 255}
	require.NoError(t, l.SetColor(orange))
	assert.Equal(t, orange, l.Color())
	assert.Equal(t, 1.0, l.Value())

	w, _ := ps[0].Last()
	assert.Equal(t, gpio.High, w.Level)
	w, _ = ps[1].Last()
	assert.True(t, w.PWM)
	w, _ = ps[2].Last()
	assert.Equal(t, gpio.Low, w.Level)

	require.NoError(t, l.Toggle())
	assert.Equal(t, color.NRGBA{G: 127, B: 255, A: 255}, l.Color())

	require.NoError(t, l.Off())
	assert.False(t, l.IsLit())
	require.NoError(t, l.On())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, l.Color())
}

func TestRGBLEDInitialColor(t *testing.T) {
	l, _ := newRGB(t, device.WithInitialColor(color.NRGBA{B: 255, A: 255}))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, l.Color())
}

func TestRGBLEDBlink(t *testing.T) {
	l, ps := newRGB(t)
	red := color.NRGBA{R: 255, A: 255}

	require.NoError(t, l.Blink(waveform.Blink(10*time.Millisecond, 10*time.Millisecond, 2), red, color.Black))
	require.NoError(t, l.Toggle())
	require.NoError(t, l.Wait())

	assert.False(t, l.IsRunning())
	// construction and SetColor(black) write off before the blink
	assert.Equal(t, []bool{false, false, true, false, true, false}, levels(ps[0].Writes()))
	assert.Equal(t, []bool{false, false, false, false, false, false}, levels(ps[1].Writes()))
	assert.Equal(t, color.NRGBA{A: 255}, l.Color())
	assert.ErrorIs(t, l.Wait(), playback.ErrNotRunning)
}

func TestRGBLEDPulseStops(t *testing.T) {
	l, _ := newRGB(t)
	require.NoError(t, l.Pulse(100*time.Millisecond, 100*time.Millisecond, color.White, color.Black, waveform.Forever))
	assert.True(t, l.IsRunning())
	l.Stop()
	assert.False(t, l.IsRunning())
}

func TestRGBLEDToggleRacingBlinkLeavesBlinkRunning(t *testing.T) {
	l, _ := newRGB(t)
	red := color.NRGBA{R: 255, A: 255}
	spec := waveform.Blink(5*time.Millisecond, 5*time.Millisecond, waveform.Forever)

	for i := 0; i < 50; i++ {
		require.NoError(t, l.Off())
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Blink(spec, red, color.Black))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Toggle())
		}()
		wg.Wait()
		require.True(t, l.IsRunning(), "iteration %d", i)
	}
	l.Stop()
}
