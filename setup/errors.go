package setup

import (
	"errors"
	"fmt"

	"goaci/protocol"
)

var (
	// ErrSetupRejected indicates the chip refused a setup command
	ErrSetupRejected = errors.New("setup rejected")

	// ErrSetupIncomplete indicates a setup command was never acknowledged
	ErrSetupIncomplete = errors.New("setup incomplete")

	// ErrEmptyScript indicates a script with no commands
	ErrEmptyScript = errors.New("setup script is empty")

	// ErrInvalidScript indicates a script entry that is not a setup packet
	ErrInvalidScript = errors.New("invalid setup script entry")
)

// RejectedError reports the script index the chip refused and its status.
// Setup is not retried: a refused script is a build-time configuration fault.
type RejectedError struct {
	Index  int
	Status protocol.Status
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("setup rejected at command %d: status 0x%02x", e.Index, uint8(e.Status))
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrSetupRejected
}

// IncompleteError reports the script index still waiting for its acknowledgement
type IncompleteError struct {
	Index int
	Total int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("setup incomplete: command %d of %d not acknowledged", e.Index, e.Total)
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrSetupIncomplete
}
