package device

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-gpiozero/pins"
)

// A pin may back at most one device at a time. Claims are keyed by the name
// of the physical pin so aliases of the same pin collide.
var claims = struct {
	sync.Mutex
	held map[string]struct{}
}{held: map[string]struct{}{}}

func claimKey(p gpio.PinIO) string {
	return pins.Real(p).Name()
}

func claim(p gpio.PinIO) error {
	if p == nil {
		return ErrNoPin
	}
	key := claimKey(p)
	claims.Lock()
	defer claims.Unlock()
	if _, ok := claims.held[key]; ok {
		return fmt.Errorf("%w: %s", ErrPinInUse, key)
	}
	claims.held[key] = struct{}{}
	return nil
}

func release(p gpio.PinIO) {
	key := claimKey(p)
	claims.Lock()
	delete(claims.held, key)
	claims.Unlock()
}
