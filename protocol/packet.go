package protocol

import (
	"encoding/hex"
	"fmt"
)

// Packet is one framed ACI message: [length][opcode][payload...]
// The length byte counts the opcode plus the payload.
type Packet []byte

// NewPacket frames an opcode and payload
func NewPacket(opcode uint8, payload []byte) (Packet, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLong, len(payload), MaxPayload)
	}
	p := make(Packet, HeaderSize+len(payload))
	p[PositionLength] = uint8(len(payload) + 1)
	p[PositionOpcode] = opcode
	copy(p[HeaderSize:], payload)
	return p, nil
}

// Validate checks the framing invariant without looking at the opcode
func (p Packet) Validate() error {
	if len(p) == 0 {
		return &DecodeError{Kind: MalformedLength}
	}
	declared := int(p[PositionLength])
	if declared == 0 || declared > MaxLength || declared+1 != len(p) {
		return &DecodeError{Kind: MalformedLength, Want: declared, Got: len(p) - 1}
	}
	return nil
}

// Opcode returns the opcode byte, or 0 for an empty packet
func (p Packet) Opcode() uint8 {
	if len(p) < HeaderSize {
		return 0
	}
	return p[PositionOpcode]
}

// Payload returns the bytes after the opcode
func (p Packet) Payload() []byte {
	if len(p) < HeaderSize {
		return nil
	}
	return p[HeaderSize:]
}

// Clone returns an independent copy
func (p Packet) Clone() Packet {
	if p == nil {
		return nil
	}
	c := make(Packet, len(p))
	copy(c, p)
	return c
}

func (p Packet) String() string {
	if len(p) < HeaderSize {
		return "[" + hex.EncodeToString(p) + "]"
	}
	return fmt.Sprintf("%d: %s", p[PositionLength], hex.EncodeToString(p))
}
