package session

import (
	"errors"
	"fmt"

	"goaci/protocol"
)

var (
	// ErrInvalidStateForCommand is matched by every *CommandStateError
	ErrInvalidStateForCommand = errors.New("command not valid in current state")

	// ErrSessionFailed is returned for every command once the session is in
	// Error. Only Reset clears it.
	ErrSessionFailed = errors.New("session failed, reset required")

	ErrUnknownPipe   = errors.New("pipe not configured")
	ErrPipeClosed    = errors.New("pipe not open")
	ErrPipeDirection = errors.New("pipe direction does not allow command")
)

// CommandStateError reports a command refused by the state gate
type CommandStateError struct {
	State   State
	Command protocol.CommandOpcode
}

func (e *CommandStateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Command, e.State)
}

func (e *CommandStateError) Is(target error) bool {
	return target == ErrInvalidStateForCommand
}

// DroppedError reports a queued command discarded before it was sent
type DroppedError struct {
	Command protocol.CommandOpcode
	Pipe    uint8
	Reason  string
}

func (e *DroppedError) Error() string {
	if e.Pipe != 0 {
		return fmt.Sprintf("dropped %s on pipe %d: %s", e.Command, e.Pipe, e.Reason)
	}
	return fmt.Sprintf("dropped %s: %s", e.Command, e.Reason)
}

// FailedError carries the cause of the move to Error
type FailedError struct {
	Cause error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrSessionFailed, e.Cause)
}

func (e *FailedError) Is(target error) bool {
	return target == ErrSessionFailed
}

func (e *FailedError) Unwrap() error { return e.Cause }
