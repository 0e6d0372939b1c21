package setup

import (
	"github.com/golang/glog"

	"goaci/protocol"
)

// Step is the outcome of feeding one event to the Runner
type Step uint8

const (
	StepIgnored  Step = iota // event was not a setup acknowledgement
	StepNext                 // send the returned packet next
	StepComplete             // every command acknowledged
	StepRejected             // chip refused a command, see Err
)

func (s Step) String() string {
	switch s {
	case StepIgnored:
		return "ignored"
	case StepNext:
		return "next"
	case StepComplete:
		return "complete"
	case StepRejected:
		return "rejected"
	}
	return "unknown"
}

// Runner sends a Script one command at a time. Command i+1 is only released
// after the chip acknowledges command i.
type Runner struct {
	script  *Script
	cursor  int
	started bool
	done    bool
	err     error
}

// NewRunner creates a runner for script
func NewRunner(script *Script) *Runner {
	return &Runner{script: script}
}

// Start rewinds the runner and returns the first packet to send
func (r *Runner) Start() protocol.Packet {
	r.cursor = 0
	r.started = true
	r.done = false
	r.err = nil
	return r.script.At(0)
}

// Handle feeds one decoded event to the runner
func (r *Runner) Handle(evt protocol.Event) (Step, protocol.Packet) {
	if !r.started || r.done {
		return StepIgnored, nil
	}
	resp, ok := evt.(protocol.CommandResponseEvent)
	if !ok {
		glog.V(1).Infof("aci setup: ignoring %s while waiting for ack %d", evt.Opcode(), r.cursor)
		return StepIgnored, nil
	}
	if resp.Command != protocol.OpSetup {
		glog.Warningf("aci setup: unexpected response to %s (status %s) at command %d", resp.Command, resp.Status, r.cursor)
		return StepIgnored, nil
	}

	if !resp.Status.OK() {
		r.done = true
		r.err = &RejectedError{Index: r.cursor, Status: resp.Status}
		glog.Errorf("aci setup: %v", r.err)
		return StepRejected, nil
	}

	r.cursor++
	if r.cursor >= r.script.Len() {
		r.done = true
		if resp.Status != protocol.StatusTransactionComplete {
			glog.Warningf("aci setup: last command acknowledged with %s", resp.Status)
		}
		glog.V(1).Infof("aci setup: %d commands accepted", r.script.Len())
		return StepComplete, nil
	}
	return StepNext, r.script.At(r.cursor)
}

// Index returns the position of the command waiting for its acknowledgement,
// or Len once complete.
func (r *Runner) Index() int { return r.cursor }

// Len returns the script length
func (r *Runner) Len() int { return r.script.Len() }

// Started reports whether Start has been called
func (r *Runner) Started() bool { return r.started }

// Done reports whether the runner finished, successfully or not
func (r *Runner) Done() bool { return r.done }

// Err returns the RejectedError once the chip refused a command
func (r *Runner) Err() error { return r.err }

// Incomplete describes a runner still waiting for an acknowledgement
func (r *Runner) Incomplete() error {
	if r.done {
		return nil
	}
	return &IncompleteError{Index: r.cursor, Total: r.script.Len()}
}
