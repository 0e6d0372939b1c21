package fakechip

import (
	"sync"

	"tinygo.org/x/drivers"

	"goaci/hal"
	"goaci/protocol"
)

// Wire puts a Chip behind GPIO lines and an SPI bus so the real handshake
// transport can drive it. RDYN follows REQN and the chip's event queue; a
// cycle ends when REQN is released.
type Wire struct {
	Chip *Chip
	Pins hal.Pins

	// OnReset runs when the reset line rises after being held low
	OnReset func(c *Chip)

	mu       sync.Mutex
	levels   map[hal.GPIOPin]bool
	modes    map[hal.GPIOPin]string
	resetLow bool

	inCycle bool
	event   protocol.Packet
	clocked []byte
	pos     int
}

func NewWire(chip *Chip, pins hal.Pins) *Wire {
	return &Wire{
		Chip:   chip,
		Pins:   pins,
		levels: map[hal.GPIOPin]bool{pins.Reqn: true, pins.Rdyn: true},
		modes:  map[hal.GPIOPin]string{},
	}
}

// Mode returns how pin was last configured ("out", "in", "in-pullup")
func (w *Wire) Mode(pin hal.GPIOPin) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.modes[pin]
}

func (w *Wire) ConfigureOutput(pin hal.GPIOPin) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modes[pin] = "out"
	return nil
}

func (w *Wire) ConfigureInputPullUp(pin hal.GPIOPin) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modes[pin] = "in-pullup"
	return nil
}

func (w *Wire) ConfigureInput(pin hal.GPIOPin) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modes[pin] = "in"
	return nil
}

func (w *Wire) SetPin(pin hal.GPIOPin, value bool) error {
	w.mu.Lock()
	var (
		cmd   protocol.Packet
		reset bool
	)
	switch pin {
	case w.Pins.Reqn:
		if value && !w.levels[pin] && w.inCycle {
			cmd = w.command()
			w.inCycle = false
		}
	case w.Pins.Reset:
		if !value {
			w.resetLow = true
		} else if w.resetLow {
			w.resetLow = false
			reset = true
		}
	}
	w.levels[pin] = value
	onReset := w.OnReset
	w.mu.Unlock()

	if cmd != nil {
		w.Chip.deliver(cmd)
	}
	if reset && onReset != nil {
		onReset(w.Chip)
	}
	return nil
}

// command cuts the clocked bytes down to the frame the host sent
func (w *Wire) command() protocol.Packet {
	if len(w.clocked) == 0 || w.clocked[0] == 0 {
		return nil
	}
	n := min(1+int(w.clocked[0]), len(w.clocked))
	return protocol.Packet(w.clocked[:n]).Clone()
}

func (w *Wire) GetPin(pin hal.GPIOPin) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if pin == w.Pins.Rdyn {
		ready := !w.levels[w.Pins.Reqn] || w.Chip.Pending() > 0
		return !ready, nil
	}
	return w.levels[pin], nil
}

// Transfer shifts one byte. The first byte of a cycle returns the debug
// status, the rest return the pending event.
func (w *Wire) Transfer(b byte) (byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.inCycle {
		w.inCycle = true
		w.event = w.Chip.take()
		w.clocked = w.clocked[:0]
		w.pos = 0
	}
	w.clocked = append(w.clocked, b)

	var out byte
	if i := w.pos - 1; i >= 0 && i < len(w.event) {
		out = w.event[i]
	}
	w.pos++
	return out, nil
}

func (w *Wire) Tx(wr, r []byte) error {
	n := max(len(wr), len(r))
	for i := 0; i < n; i++ {
		var b byte
		if i < len(wr) {
			b = wr[i]
		}
		got, err := w.Transfer(b)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = got
		}
	}
	return nil
}

var (
	_ hal.GPIODriver = (*Wire)(nil)
	_ drivers.SPI    = (*Wire)(nil)
)
