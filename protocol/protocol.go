// Package protocol implements the nRF8001 ACI packet codec
package protocol

// Protocol constants
const (
	MaxLength  = 31            // Maximum value of the length byte (HAL buffer minus the length byte)
	BufferSize = MaxLength + 1 // Hardware buffer size on the chip

	PositionLength = 0 // Length byte offset
	PositionOpcode = 1 // Opcode byte offset
	HeaderSize     = 2 // Length + opcode

	MaxPayload     = MaxLength - 1 // Bytes available after the opcode
	MaxDataPayload = 20            // Application data per SendData/DataReceived
	PipeBitmapSize = 8             // Bytes in a pipe bitmap (64 pipes)
	MaxPipe        = 62            // Highest pipe number the chip allocates

	// PadByte fills unused transfer bytes on the wire
	PadByte = 0x00
)
