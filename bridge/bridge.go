// Package bridge drives the nRF8001 control lines and SPI bus through a
// small MCU attached over a serial link. Requests and replies travel in
// CRC-checked frames with VLQ-encoded fields.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"tinygo.org/x/drivers"

	"goaci/hal"
)

// Request codes understood by the bridge firmware
const (
	CmdConfigOutput uint32 = iota + 1
	CmdConfigInputPullUp
	CmdConfigInput
	CmdSetPin
	CmdGetPin
	CmdSPITransfer
)

// DefaultTimeout bounds the wait for each reply
const DefaultTimeout = 500 * time.Millisecond

var (
	ErrBridgeTimeout = errors.New("bridge reply timeout")
	ErrBadReply      = errors.New("malformed bridge reply")
)

// Error is a non-zero status reported by the bridge firmware
type Error struct {
	Command uint32
	Code    uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("bridge command %d failed: status %d", e.Command, e.Code)
}

// Bridge implements hal.GPIODriver and drivers.SPI on top of a serial port.
// Every call is one request frame followed by one reply frame with the same
// sequence number.
type Bridge struct {
	mu sync.Mutex

	port    io.ReadWriter
	timeout time.Duration
	seq     uint8

	in     *FifoBuffer
	reader *FrameReader
	out    *ScratchOutput
	rbuf   [FrameLengthMax]byte

	now func() time.Time
}

// New creates a bridge over port. timeout <= 0 selects DefaultTimeout.
func New(port io.ReadWriter, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		port:    port,
		timeout: timeout,
		in:      NewFifoBuffer(4 * FrameLengthMax),
		reader:  NewFrameReader(),
		out:     NewScratchOutput(),
		now:     time.Now,
	}
}

// Close closes the underlying port if it can be closed
func (b *Bridge) Close() error {
	if c, ok := b.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (b *Bridge) ConfigureOutput(pin hal.GPIOPin) error {
	_, err := b.call(CmdConfigOutput, pinArgs(pin))
	return err
}

func (b *Bridge) ConfigureInputPullUp(pin hal.GPIOPin) error {
	_, err := b.call(CmdConfigInputPullUp, pinArgs(pin))
	return err
}

func (b *Bridge) ConfigureInput(pin hal.GPIOPin) error {
	_, err := b.call(CmdConfigInput, pinArgs(pin))
	return err
}

func (b *Bridge) SetPin(pin hal.GPIOPin, value bool) error {
	var v uint32
	if value {
		v = 1
	}
	_, err := b.call(CmdSetPin, func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(pin))
		EncodeVLQUint(o, v)
	})
	return err
}

func (b *Bridge) GetPin(pin hal.GPIOPin) (bool, error) {
	reply, err := b.call(CmdGetPin, pinArgs(pin))
	if err != nil {
		return false, err
	}
	v, err := DecodeVLQUint(&reply)
	if err != nil {
		return false, fmt.Errorf("%w: pin value: %v", ErrBadReply, err)
	}
	return v != 0, nil
}

// Tx clocks max(len(w), len(r)) bytes. A short or nil w is padded with zeros.
func (b *Bridge) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	if n > MaxTransfer {
		return fmt.Errorf("spi transfer of %d bytes exceeds %d", n, MaxTransfer)
	}
	out := w
	if len(w) < n {
		out = make([]byte, n)
		copy(out, w)
	}

	reply, err := b.call(CmdSPITransfer, func(o OutputBuffer) {
		EncodeVLQBytes(o, out)
	})
	if err != nil {
		return err
	}
	in, err := DecodeVLQBytes(&reply)
	if err != nil {
		return fmt.Errorf("%w: spi data: %v", ErrBadReply, err)
	}
	if len(in) != n {
		return fmt.Errorf("%w: clocked %d bytes, want %d", ErrBadReply, len(in), n)
	}
	copy(r, in)
	return nil
}

func (b *Bridge) Transfer(w byte) (byte, error) {
	var r [1]byte
	if err := b.Tx([]byte{w}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

func pinArgs(pin hal.GPIOPin) func(OutputBuffer) {
	return func(o OutputBuffer) {
		EncodeVLQUint(o, uint32(pin))
	}
}

// call sends one request and returns the reply payload after the command
// echo and status
func (b *Bridge) call(cmd uint32, args func(OutputBuffer)) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := SeqDest | (b.seq & SeqMask)
	b.seq++

	b.out.Reset()
	err := EncodeFrame(b.out, seq, func(o OutputBuffer) {
		EncodeVLQUint(o, cmd)
		if args != nil {
			args(o)
		}
	})
	if err != nil {
		return nil, err
	}

	msg := b.out.Result()
	n, err := b.port.Write(msg)
	if err != nil {
		return nil, fmt.Errorf("write bridge: %w", err)
	}
	if n != len(msg) {
		return nil, fmt.Errorf("write bridge: incomplete write %d/%d bytes", n, len(msg))
	}

	payload, err := b.await(seq)
	if err != nil {
		return nil, fmt.Errorf("bridge command %d: %w", cmd, err)
	}

	echo, err := DecodeVLQUint(&payload)
	if err != nil || echo != cmd {
		return nil, fmt.Errorf("%w: reply to %d for request %d", ErrBadReply, echo, cmd)
	}
	status, err := DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("%w: missing status", ErrBadReply)
	}
	if status != StatusOK {
		return nil, &Error{Command: cmd, Code: status}
	}
	return payload, nil
}

func (b *Bridge) await(seq uint8) ([]byte, error) {
	deadline := b.now().Add(b.timeout)
	for {
		for {
			f, ok := b.reader.Next(b.in)
			if !ok {
				break
			}
			if f.Sequence == seq {
				return f.Payload, nil
			}
			glog.V(1).Infof("bridge: discarding stale reply 0x%02x (want 0x%02x)", f.Sequence, seq)
		}

		if !b.now().Before(deadline) {
			return nil, ErrBridgeTimeout
		}
		if b.in.Free() == 0 {
			glog.Warningf("bridge: input overrun, discarding %d bytes", b.in.Available())
			b.in.Reset()
		}

		n, err := b.port.Read(b.rbuf[:min(len(b.rbuf), b.in.Free())])
		if n > 0 {
			b.in.Write(b.rbuf[:n])
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read bridge: %w", err)
		}
	}
}

var (
	_ hal.GPIODriver = (*Bridge)(nil)
	_ drivers.SPI    = (*Bridge)(nil)
)
