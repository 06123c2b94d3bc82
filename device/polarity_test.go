package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-gpiozero/internal/pintest"
)

func TestPolarityMapping(t *testing.T) {
	tests := []struct {
		on, activeHigh bool
		level          gpio.Level
	}{
		{true, true, gpio.High},
		{false, true, gpio.Low},
		{true, false, gpio.Low},
		{false, false, gpio.High},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, physicalLevel(tt.on, tt.activeHigh))
		assert.Equal(t, tt.on, logicalLevel(tt.level, tt.activeHigh))
	}
	assert.Equal(t, 0.25, physicalDuty(0.25, true))
	assert.Equal(t, 0.75, physicalDuty(0.25, false))
}

// alias reports another pin as its real pin, like a gpioreg alias.
type alias struct {
	gpio.PinIO
	real gpio.PinIO
}

func (a *alias) Name() string { return "ALIAS" }
func (a *alias) Real() gpio.PinIO { return a.real }

func TestClaimsFollowAliases(t *testing.T) {
	p := pintest.New("CLAIM1", 40001)
	a := &alias{PinIO: p, real: p}

	require.NoError(t, claim(p))
	assert.ErrorIs(t, claim(a), ErrPinInUse)
	release(a)
	require.NoError(t, claim(p))
	release(p)

	assert.ErrorIs(t, claim(nil), ErrNoPin)
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, checkRange(0, 0, 1))
	assert.NoError(t, checkRange(1, 0, 1))
	err := checkRange(1.5, 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.EqualError(t, err, "device: value 1.5 outside [0, 1]")
	assert.Error(t, checkRange(math.NaN(), 0, 1))
}
