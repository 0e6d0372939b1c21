// Package fakechip is a frame-level stand-in for an nRF8001 used by tests.
// It answers each exchange with the oldest queued event and hands every
// received command to an optional responder, whose events are delivered on
// later exchanges.
package fakechip

import (
	"context"
	"sync"

	"goaci/protocol"
	"goaci/transport"
)

// Responder produces the events the chip emits after receiving cmd
type Responder func(cmd protocol.Command) []protocol.Event

// Chip implements transport.Transport and transport.Claimer
type Chip struct {
	mu       sync.Mutex
	events   []protocol.Packet
	received []protocol.Packet
	claimed  bool

	// Respond, if set, is called for every decoded command
	Respond Responder

	// Timeouts makes the next n exchanges fail with ErrTransportTimeout
	Timeouts int

	// Fault, if set, is returned by every exchange
	Fault error
}

// New creates a chip with nothing queued
func New() *Chip {
	return &Chip{}
}

// Push queues events for delivery
func (c *Chip) Push(events ...protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		p, err := protocol.EncodeEvent(e)
		if err != nil {
			panic(err)
		}
		c.events = append(c.events, p)
	}
}

// PushRaw queues a frame as-is, valid or not
func (c *Chip) PushRaw(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, protocol.Packet(p).Clone())
}

// Pending returns the number of undelivered events
func (c *Chip) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Received returns a copy of every command frame the chip has clocked in
func (c *Chip) Received() []protocol.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Packet, len(c.received))
	copy(out, c.received)
	return out
}

// Commands returns the opcodes received, in order
func (c *Chip) Commands() []protocol.CommandOpcode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.CommandOpcode, len(c.received))
	for i, p := range c.received {
		out[i] = protocol.CommandOpcode(p.Opcode())
	}
	return out
}

func (c *Chip) Poll() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fault != nil {
		return false, c.Fault
	}
	return len(c.events) > 0, nil
}

func (c *Chip) Exchange(ctx context.Context, cmd protocol.Packet) (protocol.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.Fault != nil {
		c.mu.Unlock()
		return nil, c.Fault
	}
	if c.Timeouts > 0 {
		c.Timeouts--
		c.mu.Unlock()
		return nil, transport.ErrTransportTimeout
	}
	c.mu.Unlock()

	evt := c.take()
	c.deliver(cmd)
	return evt, nil
}

// take removes the oldest queued event
func (c *Chip) take() protocol.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	evt := c.events[0]
	c.events = c.events[1:]
	return evt
}

// deliver records cmd and queues the responder's answer
func (c *Chip) deliver(cmd protocol.Packet) {
	if cmd == nil {
		return
	}
	c.mu.Lock()
	c.received = append(c.received, cmd.Clone())
	respond := c.Respond
	c.mu.Unlock()

	if respond == nil {
		return
	}
	if decoded, err := protocol.DecodeCommand(cmd); err == nil {
		c.Push(respond(decoded)...)
	}
}

func (c *Chip) Claim() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed {
		return transport.ErrTransportBusy
	}
	c.claimed = true
	return nil
}

func (c *Chip) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimed = false
}

// Ack answers every command with a successful CommandResponse
func Ack(cmd protocol.Command) []protocol.Event {
	return []protocol.Event{protocol.CommandResponseEvent{Command: cmd.Opcode(), Status: protocol.StatusSuccess}}
}

// SetupResponder acknowledges Setup commands the way the chip does:
// TransactionContinue for all but the last of total, which gets
// TransactionComplete. A command at index rejectAt (if >= 0) is refused with
// status; commands from silentFrom on (if >= 0) get no answer at all.
// Other commands fall through to next, which may be nil.
func SetupResponder(total, rejectAt, silentFrom int, status protocol.Status, next Responder) Responder {
	seen := 0
	return func(cmd protocol.Command) []protocol.Event {
		if cmd.Opcode() != protocol.OpSetup {
			if next == nil {
				return nil
			}
			return next(cmd)
		}
		i := seen
		seen++
		switch {
		case silentFrom >= 0 && i >= silentFrom:
			return nil
		case i == rejectAt:
			return []protocol.Event{protocol.CommandResponseEvent{Command: protocol.OpSetup, Status: status}}
		case i == total-1:
			return []protocol.Event{
				protocol.CommandResponseEvent{Command: protocol.OpSetup, Status: protocol.StatusTransactionComplete},
				protocol.DeviceStartedEvent{Mode: protocol.ModeStandby, CreditAvailable: 2},
			}
		}
		return []protocol.Event{protocol.CommandResponseEvent{Command: protocol.OpSetup, Status: protocol.StatusTransactionContinue}}
	}
}

var (
	_ transport.Transport = (*Chip)(nil)
	_ transport.Claimer   = (*Chip)(nil)
)
