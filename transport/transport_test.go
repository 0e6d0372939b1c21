package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goaci/hal"
	"goaci/protocol"
)

var testPins = hal.Pins{Reqn: 9, Rdyn: 8, Reset: 4, Active: hal.Unused}

// fakeChip models the chip side of the wire: GPIO lines plus an SPI shift register
type fakeChip struct {
	levels     map[hal.GPIOPin]bool
	configured map[hal.GPIOPin]string
	resetLog   []bool

	neverReady bool
	pending    []byte // next event frame, [len][opcode][payload]

	clocked []byte // every byte the host shifted out during the current cycle
	cycles  [][]byte
	pos     int
}

func newFakeChip() *fakeChip {
	return &fakeChip{
		levels:     map[hal.GPIOPin]bool{testPins.Reqn: true, testPins.Rdyn: true},
		configured: map[hal.GPIOPin]string{},
	}
}

func (c *fakeChip) ConfigureOutput(pin hal.GPIOPin) error {
	c.configured[pin] = "out"
	return nil
}

func (c *fakeChip) ConfigureInputPullUp(pin hal.GPIOPin) error {
	c.configured[pin] = "in-pullup"
	return nil
}

func (c *fakeChip) ConfigureInput(pin hal.GPIOPin) error {
	c.configured[pin] = "in"
	return nil
}

func (c *fakeChip) SetPin(pin hal.GPIOPin, value bool) error {
	if pin == testPins.Reset {
		c.resetLog = append(c.resetLog, value)
	}
	if pin == testPins.Reqn && value && !c.levels[pin] && c.clocked != nil {
		// REQN released: cycle over
		c.cycles = append(c.cycles, c.clocked)
		c.clocked = nil
		c.pos = 0
	}
	c.levels[pin] = value
	return nil
}

func (c *fakeChip) GetPin(pin hal.GPIOPin) (bool, error) {
	if pin == testPins.Rdyn {
		reqn := !c.levels[testPins.Reqn]
		ready := !c.neverReady && (reqn || len(c.pending) > 0)
		return !ready, nil
	}
	return c.levels[pin], nil
}

func (c *fakeChip) Transfer(b byte) (byte, error) {
	if c.clocked == nil {
		c.clocked = []byte{}
	}
	c.clocked = append(c.clocked, b)
	var out byte
	switch c.pos {
	case 0:
		out = 0x00 // debug status byte
	default:
		if idx := c.pos - 1; idx < len(c.pending) {
			out = c.pending[idx]
		}
	}
	c.pos++
	return out, nil
}

func (c *fakeChip) Tx(w, r []byte) error {
	for i := range w {
		got, _ := c.Transfer(w[i])
		if r != nil {
			r[i] = got
		}
	}
	if c.pos > 1 {
		c.pending = nil
	}
	return nil
}

func newTestTransport(chip *fakeChip, opts Options) *HandshakeTransport {
	tr := NewHandshakeTransport(chip, chip, testPins, opts)
	tr.sleep = func(time.Duration) {}
	return tr
}

func TestInitConfiguresLinesAndResets(t *testing.T) {
	chip := newFakeChip()
	tr := newTestTransport(chip, Options{})
	require.NoError(t, tr.Init())

	require.Equal(t, "in-pullup", chip.configured[testPins.Rdyn])
	require.Equal(t, "out", chip.configured[testPins.Reqn])
	require.Equal(t, "out", chip.configured[testPins.Reset])
	require.True(t, chip.levels[testPins.Reqn], "REQN must idle high")
	require.Equal(t, []bool{true, false, true}, chip.resetLog)
}

func TestInvertedResetBoards(t *testing.T) {
	chip := newFakeChip()
	tr := newTestTransport(chip, Options{Board: BoardRedBearLabV2012_07})
	var slept []time.Duration
	tr.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, tr.Reset())
	require.Equal(t, []bool{true, false}, chip.resetLog)
	require.Equal(t, []time.Duration{InvertedResetHold}, slept)
}

func TestExchangeFullDuplex(t *testing.T) {
	chip := newFakeChip()
	evt, err := protocol.EncodeEvent(protocol.DataCreditEvent{Credit: 1})
	require.NoError(t, err)
	chip.pending = evt
	tr := newTestTransport(chip, Options{})

	cmd, err := protocol.Encode(protocol.SendData{Pipe: 5, Data: []byte("hello")})
	require.NoError(t, err)

	got, err := tr.Exchange(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, evt, got)

	require.Len(t, chip.cycles, 1)
	out := chip.cycles[0]
	// length + opcode, then max(rx, tx-1) more bytes
	require.Len(t, out, 2+int(cmd[0])-1)
	require.Equal(t, []byte(cmd), out[:len(cmd)])
	require.True(t, chip.levels[testPins.Reqn], "REQN released after cycle")

	decoded, err := protocol.Decode(got)
	require.NoError(t, err)
	require.Equal(t, protocol.DataCreditEvent{Credit: 1}, decoded)
}

func TestExchangeEventLongerThanCommandPadsSentinel(t *testing.T) {
	chip := newFakeChip()
	evt, err := protocol.EncodeEvent(protocol.DataReceivedEvent{Pipe: 3, Data: []byte("0123456789")})
	require.NoError(t, err)
	chip.pending = evt
	tr := newTestTransport(chip, Options{})

	got, err := tr.Exchange(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, evt, got)

	out := chip.cycles[0]
	require.Len(t, out, 2+int(evt[0]))
	for i, b := range out {
		require.Equal(t, byte(protocol.PadByte), b, "byte %d", i)
	}
}

func TestExchangeNoEvent(t *testing.T) {
	chip := newFakeChip()
	tr := newTestTransport(chip, Options{})

	cmd, err := protocol.Encode(protocol.GetTemperature{})
	require.NoError(t, err)
	got, err := tr.Exchange(context.Background(), cmd)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, []byte(cmd), chip.cycles[0])
}

func TestExchangeTimeout(t *testing.T) {
	chip := newFakeChip()
	chip.neverReady = true
	tr := newTestTransport(chip, Options{Timeout: 5 * time.Millisecond})
	clock := time.Unix(0, 0)
	tr.now = func() time.Time { return clock }
	tr.sleep = func(d time.Duration) { clock = clock.Add(time.Millisecond) }

	cmd, err := protocol.Encode(protocol.Wakeup{})
	require.NoError(t, err)
	_, err = tr.Exchange(context.Background(), cmd)
	require.ErrorIs(t, err, ErrTransportTimeout)
	require.Empty(t, chip.cycles, "nothing clocked on timeout")
	require.True(t, chip.levels[testPins.Reqn], "REQN released on timeout")
}

func TestExchangeCancelledWhileWaiting(t *testing.T) {
	chip := newFakeChip()
	chip.neverReady = true
	tr := newTestTransport(chip, Options{Timeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Exchange(ctx, nil)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestExchangeRejectsOversizedCommand(t *testing.T) {
	tr := newTestTransport(newFakeChip(), Options{})
	_, err := tr.Exchange(context.Background(), make(protocol.Packet, protocol.BufferSize+1))
	require.ErrorIs(t, err, ErrPacketTooLong)
}

func TestPoll(t *testing.T) {
	chip := newFakeChip()
	tr := newTestTransport(chip, Options{})

	ready, err := tr.Poll()
	require.NoError(t, err)
	require.False(t, ready)

	chip.pending = []byte{2, byte(protocol.EvDataCredit), 1}
	ready, err = tr.Poll()
	require.NoError(t, err)
	require.True(t, ready)
}

func TestClaim(t *testing.T) {
	tr := newTestTransport(newFakeChip(), Options{})
	require.NoError(t, tr.Claim())
	require.ErrorIs(t, tr.Claim(), ErrTransportBusy)
	tr.Release()
	require.NoError(t, tr.Claim())
}

func TestReverseSPI(t *testing.T) {
	chip := newFakeChip()
	chip.pending = []byte{0x80}
	bus := hal.ReverseSPI{Bus: chip}

	status, err := bus.Transfer(0x01)
	require.NoError(t, err)
	require.Equal(t, byte(0x00), status)

	got, err := bus.Transfer(0x02)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), got, "0x80 mirrored")
	require.Equal(t, []byte{0x80, 0x40}, chip.clocked)
}
