// Package transport drives the nRF8001 REQN/RDYN handshake and SPI exchange
package transport

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"tinygo.org/x/drivers"

	"goaci/hal"
	"goaci/protocol"
)

// Transport is the frame-level view of the chip link. Every Exchange is one
// full-duplex cycle: a command (or none) goes out, an event (or none) comes back.
type Transport interface {
	// Poll reports whether the chip is asserting ready. It never blocks.
	Poll() (bool, error)

	// Exchange runs one handshake cycle. cmd may be nil. The returned packet
	// is nil when the chip had nothing to send.
	Exchange(ctx context.Context, cmd protocol.Packet) (protocol.Packet, error)
}

// Claimer is implemented by transports that allow a single owner
type Claimer interface {
	Claim() error
	Release()
}

// Board selects board-specific reset behavior
type Board uint8

const (
	BoardDefault Board = iota
	// RedBearLab v1.1 and v2012.07 shields invert reset and hold it through a
	// power-on-reset circuit for about 100ms
	BoardRedBearLabV11
	BoardRedBearLabV2012_07
)

// Timing defaults
const (
	DefaultTimeout      = 100 * time.Millisecond
	DefaultPollInterval = 100 * time.Microsecond
	SettleDelay         = 30 * time.Millisecond  // lines float for a few ms after reset
	InvertedResetHold   = 100 * time.Millisecond // RedBearLab power-on-reset
)

// Options configures a HandshakeTransport
type Options struct {
	Timeout      time.Duration // how long to wait for RDYN after asserting REQN
	PollInterval time.Duration // RDYN sampling period while waiting
	Board        Board
	Debug        bool // log every packet (also enabled by glog -v=2)
}

// HandshakeTransport exchanges packets with the chip over GPIO + SPI
type HandshakeTransport struct {
	gpio hal.GPIODriver
	spi  drivers.SPI
	pins hal.Pins
	opts Options

	claimed atomic.Bool

	// status byte clocked in at the start of the last exchange
	lastStatus byte

	tx [protocol.BufferSize + 1]byte
	rx [protocol.BufferSize]byte

	sleep func(time.Duration)
	now   func() time.Time
}

// NewHandshakeTransport creates a transport. Call Init before the first exchange.
func NewHandshakeTransport(gpio hal.GPIODriver, spi drivers.SPI, pins hal.Pins, opts Options) *HandshakeTransport {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &HandshakeTransport{
		gpio:  gpio,
		spi:   spi,
		pins:  pins,
		opts:  opts,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Init configures the lines, resets the chip and waits for the lines to settle
func (t *HandshakeTransport) Init() error {
	if err := t.gpio.ConfigureInputPullUp(t.pins.Rdyn); err != nil {
		return fmt.Errorf("configure RDYN: %w", err)
	}
	if err := t.gpio.ConfigureOutput(t.pins.Reqn); err != nil {
		return fmt.Errorf("configure REQN: %w", err)
	}
	if t.pins.Active != hal.Unused {
		if err := t.gpio.ConfigureInput(t.pins.Active); err != nil {
			return fmt.Errorf("configure ACTIVE: %w", err)
		}
	}
	if err := t.release(); err != nil {
		return err
	}
	if err := t.Reset(); err != nil {
		return err
	}
	t.sleep(SettleDelay)
	glog.V(1).Infof("aci transport ready (board %d, timeout %v)", t.opts.Board, t.opts.Timeout)
	return nil
}

// Reset pulses the chip reset line. Required whenever the setup changes.
func (t *HandshakeTransport) Reset() error {
	if t.pins.Reset == hal.Unused {
		return nil
	}
	if err := t.gpio.ConfigureOutput(t.pins.Reset); err != nil {
		return fmt.Errorf("configure RESET: %w", err)
	}

	var seq []bool
	switch t.opts.Board {
	case BoardRedBearLabV11, BoardRedBearLabV2012_07:
		seq = []bool{true, false}
	default:
		seq = []bool{true, false, true}
	}
	for i, level := range seq {
		if err := t.gpio.SetPin(t.pins.Reset, level); err != nil {
			return fmt.Errorf("pulse RESET: %w", err)
		}
		if i == 0 && len(seq) == 2 {
			t.sleep(InvertedResetHold)
		}
	}
	return nil
}

// Poll reports whether RDYN is asserted (low)
func (t *HandshakeTransport) Poll() (bool, error) {
	level, err := t.gpio.GetPin(t.pins.Rdyn)
	if err != nil {
		return false, fmt.Errorf("read RDYN: %w", err)
	}
	return !level, nil
}

// RadioActive reads the optional ACTIVE line
func (t *HandshakeTransport) RadioActive() (bool, error) {
	if t.pins.Active == hal.Unused {
		return false, nil
	}
	return t.gpio.GetPin(t.pins.Active)
}

// LastStatus returns the debug status byte of the most recent exchange
func (t *HandshakeTransport) LastStatus() byte {
	return t.lastStatus
}

// Exchange asserts REQN, waits for RDYN and clocks one frame each way.
// Once RDYN is seen the cycle always runs to completion; ctx is only
// consulted while waiting.
func (t *HandshakeTransport) Exchange(ctx context.Context, cmd protocol.Packet) (protocol.Packet, error) {
	if len(cmd) > protocol.BufferSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLong, len(cmd))
	}

	for i := range t.tx {
		t.tx[i] = protocol.PadByte
	}
	copy(t.tx[:], cmd)

	if err := t.request(); err != nil {
		return nil, err
	}
	if err := t.waitReady(ctx); err != nil {
		if relErr := t.release(); relErr != nil {
			glog.Warningf("aci: release REQN after wait failure: %v", relErr)
		}
		return nil, err
	}

	evt, err := t.transfer()
	if relErr := t.release(); relErr != nil && err == nil {
		err = relErr
	}
	if err != nil {
		return nil, err
	}

	if t.opts.Debug || bool(glog.V(2)) {
		if len(cmd) > 0 {
			glog.Infof("aci C %v", cmd)
		}
		if len(evt) > 0 {
			glog.Infof("aci E %v", evt)
		}
	}
	return evt, nil
}

// transfer clocks status and length, then the longer of the two frames
func (t *HandshakeTransport) transfer() (protocol.Packet, error) {
	sent := 0
	status, err := t.spi.Transfer(t.tx[sent])
	if err != nil {
		return nil, fmt.Errorf("spi transfer: %w", err)
	}
	sent++
	t.lastStatus = status

	rxLen, err := t.spi.Transfer(t.tx[sent])
	if err != nil {
		return nil, fmt.Errorf("spi transfer: %w", err)
	}
	sent++
	t.rx[0] = rxLen

	// One command byte (the opcode) is already out
	n := int(rxLen)
	if txLen := int(t.tx[0]); txLen > 0 && txLen-1 > n {
		n = txLen - 1
	}
	if n > protocol.MaxLength {
		n = protocol.MaxLength
	}

	if n > 0 {
		if err := t.spi.Tx(t.tx[sent:sent+n], t.rx[1:1+n]); err != nil {
			return nil, fmt.Errorf("spi transfer: %w", err)
		}
	}

	if rxLen == 0 {
		return nil, nil
	}
	// A length beyond the buffer is handed on as-is so the decoder rejects it
	got := int(rxLen)
	if got > n {
		got = n
	}
	evt := make(protocol.Packet, 1+got)
	copy(evt, t.rx[:1+got])
	return evt, nil
}

func (t *HandshakeTransport) waitReady(ctx context.Context) error {
	deadline := t.now().Add(t.opts.Timeout)
	for {
		ready, err := t.Poll()
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !t.now().Before(deadline) {
			return ErrTransportTimeout
		}
		t.sleep(t.opts.PollInterval)
	}
}

func (t *HandshakeTransport) request() error {
	if err := t.gpio.SetPin(t.pins.Reqn, false); err != nil {
		return fmt.Errorf("assert REQN: %w", err)
	}
	return nil
}

func (t *HandshakeTransport) release() error {
	if err := t.gpio.SetPin(t.pins.Reqn, true); err != nil {
		return fmt.Errorf("release REQN: %w", err)
	}
	return nil
}

// Claim marks the transport as owned by one session
func (t *HandshakeTransport) Claim() error {
	if !t.claimed.CompareAndSwap(false, true) {
		return ErrTransportBusy
	}
	return nil
}

// Release gives the transport back
func (t *HandshakeTransport) Release() {
	t.claimed.Store(false)
}

var (
	_ Transport = (*HandshakeTransport)(nil)
	_ Claimer   = (*HandshakeTransport)(nil)
)
