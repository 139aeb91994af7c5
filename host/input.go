package host

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// ResponseInput reports whether the participant's vection response is
// held down. It is sampled once per tick.
type ResponseInput interface {
	Pressed() bool
}

// NoInput never reports a response.
type NoInput struct{}

func (NoInput) Pressed() bool { return false }

// AnyInput is pressed if any of its inputs is.
type AnyInput []ResponseInput

func (a AnyInput) Pressed() bool {
	for _, in := range a {
		if in != nil && in.Pressed() {
			return true
		}
	}
	return false
}

// HoldInput turns discrete key presses into a held state. Terminals send
// no key release events, only auto-repeat, so a key counts as held for
// hold after its last press.
type HoldInput struct {
	hold time.Duration
	now  func() time.Time
	last atomic.Int64 // unix nanos of the last press, 0 if none
}

func NewHoldInput(hold time.Duration) *HoldInput {
	return &HoldInput{hold: hold, now: time.Now}
}

// Press records a key press.
func (h *HoldInput) Press() {
	h.last.Store(h.now().UnixNano())
}

func (h *HoldInput) Pressed() bool {
	last := h.last.Load()
	if last == 0 {
		return false
	}
	return h.now().Sub(time.Unix(0, last)) <= h.hold
}

var rpioMu sync.Mutex

// GPIOButton reads a push button wired between a GPIO pin and ground.
// The pin's pull-up keeps it high while the button is released.
type GPIOButton struct {
	pin    rpio.Pin
	closed bool
}

// OpenGPIOButton maps the GPIO memory and configures pin as a pulled up
// input.
func OpenGPIOButton(pin int) (*GPIOButton, error) {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open rpio: %w", err)
	}
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	slog.Info("Response button ready", "gpio", pin)
	return &GPIOButton{pin: p}, nil
}

func (b *GPIOButton) Pressed() bool {
	return b.pin.Read() == rpio.Low
}

func (b *GPIOButton) Close() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to close rpio: %w", err)
	}
	return nil
}
