package softpwm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-gpiozero/internal/pintest"
	"github.com/coreman2200/funtimes-gpiozero/softpwm"
)

func levels(p *pintest.Pin) (high, low int) {
	for _, w := range p.Writes() {
		if w.Level == gpio.High {
			high++
		} else {
			low++
		}
	}
	return high, low
}

func TestPWMTogglesPin(t *testing.T) {
	raw := pintest.New("GPIO5", 5)
	p := softpwm.New(raw)
	defer p.Halt()

	require.NoError(t, p.PWM(gpio.DutyHalf, physic.KiloHertz))
	assert.Eventually(t, func() bool {
		h, l := levels(raw)
		return h >= 5 && l >= 5
	}, time.Second, time.Millisecond)
	assert.Equal(t, gpio.DutyHalf, p.Duty())
}

func TestOutStopsLoop(t *testing.T) {
	raw := pintest.New("GPIO6", 6)
	p := softpwm.New(raw)

	require.NoError(t, p.PWM(gpio.DutyMax/4, physic.KiloHertz))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, p.Out(gpio.Low))
	n := raw.Count()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, n, raw.Count())
	last, ok := raw.Last()
	require.True(t, ok)
	assert.Equal(t, gpio.Low, last.Level)
	assert.Equal(t, gpio.Low, raw.Read())
}

func TestPWMExtremesAreSteadyLevels(t *testing.T) {
	raw := pintest.New("GPIO7", 7)
	p := softpwm.New(raw)

	require.NoError(t, p.PWM(gpio.DutyMax, softpwm.DefaultFrequency))
	require.NoError(t, p.PWM(0, softpwm.DefaultFrequency))
	time.Sleep(5 * time.Millisecond)

	writes := raw.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, gpio.High, writes[0].Level)
	assert.Equal(t, gpio.Low, writes[1].Level)
}

func TestPWMRejectsZeroFrequency(t *testing.T) {
	p := softpwm.New(pintest.New("GPIO8", 8))
	assert.ErrorIs(t, p.PWM(gpio.DutyHalf, 0), softpwm.ErrFrequency)
}

func TestRetuneKeepsSingleLoop(t *testing.T) {
	raw := pintest.New("GPIO9", 9)
	p := softpwm.New(raw)

	for i := 1; i < 10; i++ {
		require.NoError(t, p.PWM(gpio.Duty(i)*gpio.DutyMax/10, physic.KiloHertz))
	}
	require.NoError(t, p.Halt())
	n := raw.Count()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, n, raw.Count())
	assert.Contains(t, p.String(), "GPIO9")
}
