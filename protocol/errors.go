package protocol

import (
	"errors"
	"fmt"
)

// Codec errors
var (
	// ErrMalformedLength indicates the length byte disagrees with the buffer
	ErrMalformedLength = errors.New("malformed packet length")

	// ErrUnknownOpcode indicates an opcode with no defined layout
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrTruncatedPayload indicates fewer payload bytes than the opcode requires
	ErrTruncatedPayload = errors.New("truncated payload")

	// ErrPayloadTooLong indicates a command value that does not fit one packet
	ErrPayloadTooLong = errors.New("payload too long")
)

// DecodeErrorKind classifies a DecodeError
type DecodeErrorKind uint8

const (
	MalformedLength DecodeErrorKind = iota + 1
	UnknownOpcode
	TruncatedPayload
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MalformedLength:
		return "MalformedLength"
	case UnknownOpcode:
		return "UnknownOpcode"
	case TruncatedPayload:
		return "TruncatedPayload"
	}
	return "DecodeErrorKind(?)"
}

// DecodeError describes a frame that violates ACI framing
type DecodeError struct {
	Kind   DecodeErrorKind
	Opcode uint8
	Want   int // declared length or required payload size
	Got    int // bytes actually present
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case MalformedLength:
		return fmt.Sprintf("aci: malformed length: declared %d, buffer holds %d", e.Want, e.Got)
	case UnknownOpcode:
		return fmt.Sprintf("aci: unknown opcode 0x%02x", e.Opcode)
	default:
		return fmt.Sprintf("aci: truncated payload for opcode 0x%02x: need %d bytes, have %d", e.Opcode, e.Want, e.Got)
	}
}

// Is matches the sentinel for the error kind
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformedLength:
		return e.Kind == MalformedLength
	case ErrUnknownOpcode:
		return e.Kind == UnknownOpcode
	case ErrTruncatedPayload:
		return e.Kind == TruncatedPayload
	}
	return false
}
