// Package session runs the ACI lifecycle on top of a transport: bounded
// command and event queues, per-pipe credit, the state machine and the setup
// sequence. A Session has a single thread of control; callers serialize.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/golang/glog"

	"goaci/protocol"
	"goaci/queue"
	"goaci/setup"
	"goaci/transport"
)

// Defaults applied by New
const (
	DefaultCommandDepth     = 8
	DefaultEventDepth       = 8
	DefaultSetupStepTimeout = time.Second
	DefaultIdleInterval     = time.Millisecond
)

// Options configures a Session
type Options struct {
	CommandDepth int
	EventDepth   int

	// CreditMax caps the buffer count the chip reports at start-up. Zero
	// trusts the chip.
	CreditMax int

	// MaxTimeouts consecutive transport timeouts move the session to Error.
	// Zero never escalates.
	MaxTimeouts int

	// SetupStepTimeout bounds the wait for each setup acknowledgement in Open
	SetupStepTimeout time.Duration

	// IdleInterval is the pause between idle service cycles in Open
	IdleInterval time.Duration

	// Pipes declares the service pipes defined by the setup
	Pipes []PipeConfig
}

func (o *Options) applyDefaults() {
	if o.CommandDepth <= 0 {
		o.CommandDepth = DefaultCommandDepth
	}
	if o.EventDepth <= 0 {
		o.EventDepth = DefaultEventDepth
	}
	if o.SetupStepTimeout <= 0 {
		o.SetupStepTimeout = DefaultSetupStepTimeout
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = DefaultIdleInterval
	}
}

// CommandEntry is one encoded command waiting for the transport
type CommandEntry struct {
	Packet   protocol.Packet
	Pipe     uint8
	Credited bool // consumed a pipe credit
}

// Opcode returns the command opcode of the entry
func (e CommandEntry) Opcode() protocol.CommandOpcode {
	return protocol.CommandOpcode(e.Packet.Opcode())
}

// Session is one host-side ACI link
type Session struct {
	transport transport.Transport
	opts      Options
	state     State

	commands *queue.Queue[CommandEntry]
	events   *queue.Queue[protocol.Event]
	notices  []error

	pipes   [queue.MaxPipes]PipeState
	credits *queue.Credits

	// pipes of credited commands the chip has not yet returned, oldest first
	inflight   *queue.Queue[uint8]
	chipCredit int

	runner       *setup.Runner
	stepDeadline time.Time
	timeouts     int
	failure      error

	now func() time.Time
}

// New attaches a session to t. A transport that implements
// transport.Claimer accepts only one session at a time.
func New(t transport.Transport, opts Options) (*Session, error) {
	opts.applyDefaults()

	s := &Session{
		transport: t,
		opts:      opts,
		commands:  queue.New[CommandEntry](opts.CommandDepth),
		events:    queue.New[protocol.Event](opts.EventDepth),
		credits:   queue.NewCredits(0),
		inflight:  queue.New[uint8](1),
		now:       time.Now,
	}
	for _, p := range opts.Pipes {
		if p.Number == 0 || p.Number > protocol.MaxPipe {
			return nil, fmt.Errorf("%w: pipe %d out of range", ErrUnknownPipe, p.Number)
		}
		if p.Direction != DirectionTx && p.Direction != DirectionRx {
			return nil, fmt.Errorf("pipe %d: direction %s", p.Number, p.Direction)
		}
		s.pipes[p.Number] = PipeState{Number: p.Number, Direction: p.Direction, Configured: true}
	}

	if c, ok := t.(transport.Claimer); ok {
		if err := c.Claim(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the transport
func (s *Session) Close() {
	if c, ok := s.transport.(transport.Claimer); ok {
		c.Release()
	}
}

// State returns the current lifecycle state
func (s *Session) State() State { return s.state }

// Pending returns the number of queued commands
func (s *Session) Pending() int { return s.commands.Len() }

// CommandsFull reports whether Submit would fail with ErrQueueFull
func (s *Session) CommandsFull() bool { return s.commands.IsFull() }

// Events returns the number of events waiting for PollEvents
func (s *Session) Events() int { return s.events.Len() }

// EventsFull reports whether Service will defer the next exchange until
// events are read
func (s *Session) EventsFull() bool { return s.events.IsFull() && s.state != StateSettingUp }

// PeekEvent returns the oldest queued event without removing it
func (s *Session) PeekEvent() (protocol.Event, bool) { return s.events.Peek() }

// PipeStatus returns a snapshot of one pipe
func (s *Session) PipeStatus(pipe uint8) PipeState {
	if int(pipe) >= len(s.pipes) {
		return PipeState{Number: pipe}
	}
	ps := s.pipes[pipe]
	ps.Number = pipe
	ps.Credit = s.credits.Available(pipe)
	return ps
}

// Reset flushes both queues, closes every pipe and returns to
// Uninitialized. It does not touch the hardware.
func (s *Session) Reset() {
	s.commands.Flush()
	s.events.Flush()
	s.notices = nil
	s.closeLink()
	s.chipCredit = 0
	s.credits.SetMax(0)
	s.runner = nil
	s.timeouts = 0
	s.failure = nil
	if s.state != StateUninitialized {
		glog.Infof("aci: %s -> %s (reset)", s.state, StateUninitialized)
	}
	s.state = StateUninitialized
}

// Submit queues any typed command after the state, pipe and credit checks
func (s *Session) Submit(cmd protocol.Command) error {
	op := cmd.Opcode()
	if err := s.gate(op); err != nil {
		return err
	}

	entry := CommandEntry{}
	if pc, ok := cmd.(protocol.PipeCommand); ok {
		entry.Pipe = pc.PipeNumber()
		if err := s.checkPipe(op, entry.Pipe); err != nil {
			return err
		}
	}

	p, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	entry.Packet = p

	entry.Credited = consumesCredit(op)
	if entry.Credited {
		if err := s.checkCredit(entry.Pipe); err != nil {
			return err
		}
	}
	if err := s.commands.Enqueue(entry); err != nil {
		return err
	}
	if entry.Credited {
		// checked above, cannot fail
		_ = s.credits.Consume(entry.Pipe, 1)
		_ = s.inflight.Enqueue(entry.Pipe)
	}
	return nil
}

func (s *Session) gate(op protocol.CommandOpcode) error {
	if s.state == StateError {
		return ErrSessionFailed
	}
	if !Allowed(s.state, op) {
		return &CommandStateError{State: s.state, Command: op}
	}
	return nil
}

func consumesCredit(op protocol.CommandOpcode) bool {
	return op == protocol.OpSendData || op == protocol.OpRequestData
}

func (s *Session) checkPipe(op protocol.CommandOpcode, pipe uint8) error {
	if pipe == 0 || pipe > protocol.MaxPipe || !s.pipes[pipe].Configured {
		return fmt.Errorf("%w: %d", ErrUnknownPipe, pipe)
	}
	ps := s.pipes[pipe]

	var want Direction
	needOpen := false
	switch op {
	case protocol.OpSendData:
		want, needOpen = DirectionTx, true
	case protocol.OpRequestData, protocol.OpSendDataAck, protocol.OpSendDataNack:
		want, needOpen = DirectionRx, true
	case protocol.OpOpenRemotePipe, protocol.OpCloseRemotePipe:
		want = DirectionRx
	}
	if want != 0 && ps.Direction != want {
		return fmt.Errorf("%w: %s on %s pipe %d", ErrPipeDirection, op, ps.Direction, pipe)
	}
	if needOpen && !ps.Open {
		return fmt.Errorf("%w: %d", ErrPipeClosed, pipe)
	}
	return nil
}

func (s *Session) checkCredit(pipe uint8) error {
	if s.inflight.Len() >= s.chipCredit {
		return fmt.Errorf("%w: all %d chip buffers in use", queue.ErrInsufficientCredit, s.chipCredit)
	}
	if s.credits.Available(pipe) < 1 {
		return fmt.Errorf("%w: pipe %d", queue.ErrInsufficientCredit, pipe)
	}
	return nil
}

// Service performs at most one exchange cycle. It returns the context error
// if ctx ends while waiting for the chip, and a FailedError once the session
// is in Error. Transport timeouts and undecodable frames are logged and
// absorbed. A full event queue defers the exchange, except during setup,
// where no event is queued.
func (s *Session) Service(ctx context.Context) error {
	_, err := s.service(ctx)
	return err
}

func (s *Session) service(ctx context.Context) (bool, error) {
	if s.state == StateError {
		return false, s.failure
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.EventsFull() {
		glog.V(2).Infof("aci: event queue full, exchange deferred")
		return false, nil
	}

	entry, pending := s.commands.Peek()
	if !pending {
		ready, err := s.transport.Poll()
		if err != nil {
			return false, s.exchangeFailed(ctx, err)
		}
		if !ready {
			return false, nil
		}
	}

	raw, err := s.transport.Exchange(ctx, entry.Packet)
	if err != nil {
		return false, s.exchangeFailed(ctx, err)
	}
	s.timeouts = 0
	if pending {
		s.commands.Dequeue()
	}
	if raw != nil {
		s.receive(raw)
	}
	if s.state == StateError {
		return true, s.failure
	}
	return true, nil
}

func (s *Session) exchangeFailed(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, transport.ErrTransportTimeout):
		s.timeouts++
		glog.Warningf("aci: %v (%d in a row)", err, s.timeouts)
		if s.opts.MaxTimeouts > 0 && s.timeouts >= s.opts.MaxTimeouts {
			return s.fail(fmt.Errorf("%d consecutive timeouts: %w", s.timeouts, err))
		}
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	}
	return s.fail(err)
}

func (s *Session) receive(raw protocol.Packet) {
	evt, err := protocol.Decode(raw)
	if err != nil {
		glog.Warningf("aci: discarding frame %v: %v", raw, err)
		return
	}
	if s.apply(evt) {
		return
	}
	if err := s.events.Enqueue(evt); err != nil {
		glog.Errorf("aci: lost %s: %v", evt.Opcode(), err)
	}
}

// apply runs the side effects of one event and moves the state machine.
// It reports whether the event was consumed by setup and must not be queued.
func (s *Session) apply(evt protocol.Event) (consumed bool) {
	prev := s.state
	kind := Classify(evt)
	next := Transition(prev, kind)

	switch e := evt.(type) {
	case protocol.DeviceStartedEvent:
		if e.Mode == protocol.ModeStandby {
			s.setChipCredit(int(e.CreditAvailable))
		}
	case protocol.PipeStatusEvent:
		s.updatePipes(e)
	case protocol.DataCreditEvent:
		s.returnCredit(int(e.Credit))
	case protocol.PipeErrorEvent:
		// the chip keeps the buffer only for a peer ATT error
		if e.Code != protocol.StatusErrorPeerATTError {
			s.returnCredit(1)
		}
	}

	if prev == StateSettingUp && s.runner != nil {
		step, pkt := s.runner.Handle(evt)
		switch step {
		case setup.StepNext:
			if err := s.commands.Enqueue(CommandEntry{Packet: pkt}); err != nil {
				s.fail(fmt.Errorf("queue setup command %d: %w", s.runner.Index(), err))
				return true
			}
			s.stepDeadline = s.now().Add(s.opts.SetupStepTimeout)
			return true
		case setup.StepComplete:
			s.setState(StateStandby, "setup complete")
			return true
		case setup.StepRejected:
			s.fail(s.runner.Err())
			return true
		}
		// the runner logged it; nothing else is delivered during setup
		if next == StateSettingUp {
			return true
		}
	}

	if next == StateError {
		if prev != StateError {
			s.fail(failureCause(prev, kind, evt))
		}
		return false
	}
	reason := evt.Opcode().String()
	if next == StateDisconnected {
		s.setState(StateDisconnected, reason)
		next, reason = StateStandby, "disconnected"
	}
	s.setState(next, reason)
	return false
}

func failureCause(prev State, kind EventKind, evt protocol.Event) error {
	switch e := evt.(type) {
	case protocol.HwErrorEvent:
		return fmt.Errorf("chip hardware error at %s:%d", e.File, e.Line)
	case protocol.DeviceStartedEvent:
		return fmt.Errorf("chip started in %s with fatal setup error", e.Mode)
	}
	return fmt.Errorf("%s in state %s", kind, prev)
}

func (s *Session) setState(next State, reason string) {
	prev := s.state
	if next == prev {
		return
	}
	s.state = next
	glog.Infof("aci: %s -> %s (%s)", prev, next, reason)

	if linkUp(prev) && !linkUp(next) {
		s.closeLink()
	}
	// commands are dropped once Disconnected settles to Standby
	if next != StateDisconnected {
		s.dropInvalid(next, reason)
	}
}

func linkUp(st State) bool {
	return st == StateAdvertising || st == StateConnected
}

// fail moves to Error, recording cause for Service and PollEvents
func (s *Session) fail(cause error) error {
	if s.state == StateError {
		return s.failure
	}
	err := &FailedError{Cause: cause}
	glog.Errorf("aci: %s -> %s: %v", s.state, StateError, cause)
	prev := s.state
	s.state = StateError
	s.failure = err
	s.notices = append(s.notices, err)
	if linkUp(prev) {
		s.closeLink()
	}
	s.dropInvalid(StateError, "session failed")
	return err
}

// dropInvalid removes queued commands that are no longer legal
func (s *Session) dropInvalid(st State, reason string) {
	removed := s.commands.Filter(func(e CommandEntry) bool {
		return Allowed(st, e.Opcode())
	})
	for _, e := range removed {
		err := &DroppedError{Command: e.Opcode(), Pipe: e.Pipe, Reason: reason}
		glog.Warningf("aci: %v", err)
		s.notices = append(s.notices, err)
	}
}

func (s *Session) closeLink() {
	for i := range s.pipes {
		s.pipes[i].Open = false
	}
	s.credits.Reset()
	s.inflight.Flush()
}

func (s *Session) setChipCredit(n int) {
	if s.opts.CreditMax > 0 && n > s.opts.CreditMax {
		n = s.opts.CreditMax
	}
	s.chipCredit = n
	s.credits.SetMax(n)
	s.inflight = queue.New[uint8](max(n, 1))
	glog.V(1).Infof("aci: %d data buffers", n)
}

func (s *Session) updatePipes(e protocol.PipeStatusEvent) {
	for n := uint8(1); n <= protocol.MaxPipe; n++ {
		ps := &s.pipes[n]
		open := e.Open.Has(n)
		if open == ps.Open {
			continue
		}
		ps.Open = open
		if !open {
			s.credits.Clear(n)
		} else if ps.Direction == DirectionTx || ps.Direction == DirectionRx {
			s.credits.Grant(n, s.chipCredit)
		}
		glog.V(1).Infof("aci: pipe %d open=%v credit=%d", n, open, s.credits.Available(n))
	}
}

// returnCredit hands n chip buffers back to the pipes that spent them
func (s *Session) returnCredit(n int) {
	for i := 0; i < n; i++ {
		pipe, ok := s.inflight.Dequeue()
		if !ok {
			glog.V(1).Infof("aci: %d credits returned with nothing in flight", n-i)
			return
		}
		if s.pipes[pipe].Open {
			s.credits.Grant(pipe, 1)
		}
	}
}

// Begin queues the first setup command. The chip must have announced setup
// mode. Acknowledgements are consumed by Service.
func (s *Session) Begin(script *setup.Script) error {
	if err := s.gate(protocol.OpSetup); err != nil {
		return err
	}
	if s.state != StateAwaitingDeviceReady {
		return &CommandStateError{State: s.state, Command: protocol.OpSetup}
	}
	if script == nil || script.Len() == 0 {
		return setup.ErrEmptyScript
	}

	r := setup.NewRunner(script)
	if err := s.commands.Enqueue(CommandEntry{Packet: r.Start()}); err != nil {
		return err
	}
	s.runner = r
	s.stepDeadline = s.now().Add(s.opts.SetupStepTimeout)
	s.setState(StateSettingUp, fmt.Sprintf("setup, %d commands", script.Len()))
	return nil
}

// Open waits for the chip to start, then runs script to completion. A chip
// that starts in Standby already holds its setup and script is not sent.
//
// Open returns a *setup.RejectedError if the chip refuses a command (the
// session is then in Error) and a *setup.IncompleteError if an
// acknowledgement does not arrive within SetupStepTimeout (the session stays
// in SettingUp).
func (s *Session) Open(ctx context.Context, script *setup.Script) error {
	deadline := s.now().Add(s.opts.SetupStepTimeout)
	for s.state == StateUninitialized {
		if !s.now().Before(deadline) {
			return fmt.Errorf("waiting for device start: %w", transport.ErrTransportTimeout)
		}
		if err := s.step(ctx); err != nil {
			return err
		}
	}
	if s.state == StateError {
		return s.failure
	}
	if s.state == StateStandby {
		glog.Infof("aci: chip already configured, setup skipped")
		return nil
	}

	if err := s.Begin(script); err != nil {
		return err
	}
	for {
		if s.state == StateError {
			if err := s.runner.Err(); err != nil {
				return err
			}
			return s.failure
		}
		if s.runner.Done() {
			return nil
		}
		if !s.now().Before(s.stepDeadline) {
			err := s.runner.Incomplete()
			glog.Warningf("aci: %v", err)
			return err
		}
		if err := s.step(ctx); err != nil {
			return err
		}
	}
}

// step services once, pausing when nothing was exchanged
func (s *Session) step(ctx context.Context) error {
	exchanged, err := s.service(ctx)
	if err != nil && !errors.Is(err, ErrSessionFailed) {
		return err
	}
	if exchanged || s.state == StateError {
		return nil
	}
	t := time.NewTimer(s.opts.IdleInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollEvents services the link once and yields every event queued so far,
// followed by dropped commands and failures. The sequence is finite; events
// left unread when the loop breaks stay queued.
func (s *Session) PollEvents(ctx context.Context) iter.Seq2[protocol.Event, error] {
	return func(yield func(protocol.Event, error) bool) {
		if err := s.Service(ctx); err != nil && !errors.Is(err, ErrSessionFailed) {
			if !yield(nil, err) {
				return
			}
		}
		for n := s.events.Len(); n > 0; n-- {
			evt, _ := s.events.Dequeue()
			if !yield(evt, nil) {
				return
			}
		}
		for len(s.notices) > 0 {
			err := s.notices[0]
			s.notices = s.notices[1:]
			if !yield(nil, err) {
				return
			}
		}
	}
}
