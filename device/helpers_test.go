package device_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coreman2200/funtimes-gpiozero/device"
	"github.com/coreman2200/funtimes-gpiozero/internal/pintest"
)

var pinSeq atomic.Int64

// newPin returns a recording pin with a name no other test uses, so claims
// never collide across tests.
func newPin(t *testing.T) *pintest.Pin {
	t.Helper()
	n := int(pinSeq.Add(1))
	return pintest.New(fmt.Sprintf("TEST%d", n), 30000+n)
}

func quiet(opts ...device.Option) []device.Option {
	return append([]device.Option{device.WithLogger(zerolog.Nop())}, opts...)
}

func levels(ws []pintest.Write) []bool {
	var out []bool
	for _, w := range ws {
		if !w.PWM {
			out = append(out, bool(w.Level))
		}
	}
	return out
}
