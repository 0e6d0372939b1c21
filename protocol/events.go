package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Event is a typed chip -> host message
type Event interface {
	Opcode() EventOpcode
	appendPayload(b []byte) []byte
}

// PipeBitmap holds one bit per pipe, pipe 0 in bit 0 of byte 0
type PipeBitmap [PipeBitmapSize]byte

// Has reports whether the pipe bit is set
func (m PipeBitmap) Has(pipe uint8) bool {
	if int(pipe) >= PipeBitmapSize*8 {
		return false
	}
	return m[pipe/8]&(1<<(pipe%8)) != 0
}

// Set sets the pipe bit
func (m *PipeBitmap) Set(pipe uint8) {
	if int(pipe) < PipeBitmapSize*8 {
		m[pipe/8] |= 1 << (pipe % 8)
	}
}

// Clear clears the pipe bit
func (m *PipeBitmap) Clear(pipe uint8) {
	if int(pipe) < PipeBitmapSize*8 {
		m[pipe/8] &^= 1 << (pipe % 8)
	}
}

// DeviceStartedEvent is sent after reset and after every operating mode change
type DeviceStartedEvent struct {
	Mode            OperatingMode
	HwError         HwErrorCode
	CreditAvailable uint8 // chip data buffers
}

type EchoEvent struct{ Data []byte }

// HwErrorEvent reports a firmware assertion inside the chip
type HwErrorEvent struct {
	Line uint16
	File string
}

// CommandResponseEvent acknowledges a command. Params holds the
// command-specific response bytes.
type CommandResponseEvent struct {
	Command CommandOpcode
	Status  Status
	Params  []byte
}

type ConnectedEvent struct {
	AddressType         uint8
	PeerAddress         [6]byte
	Interval            uint16
	SlaveLatency        uint16
	Timeout             uint16
	MasterClockAccuracy uint8
}

type DisconnectedEvent struct {
	Status     Status
	BTLEStatus uint8
}

type BondStatusEvent struct {
	Code       uint8
	Source     uint8
	SecMode1   uint8
	SecMode2   uint8
	KeysSlave  uint8
	KeysMaster uint8
}

// PipeStatusEvent lists the pipes currently open and closed
type PipeStatusEvent struct {
	Open   PipeBitmap
	Closed PipeBitmap
}

type TimingEvent struct {
	Interval     uint16
	SlaveLatency uint16
	Timeout      uint16
}

// DataCreditEvent returns data credits to the host
type DataCreditEvent struct{ Credit uint8 }

type DataAckEvent struct{ Pipe uint8 }

type DataReceivedEvent struct {
	Pipe uint8
	Data []byte
}

type PipeErrorEvent struct {
	Pipe uint8
	Code Status
	Data []byte
}

type DisplayKeyEvent struct{ Passkey [PasskeySize]byte }

type KeyRequestEvent struct{ Type KeyType }

func (DeviceStartedEvent) Opcode() EventOpcode   { return EvDeviceStarted }
func (EchoEvent) Opcode() EventOpcode            { return EvEcho }
func (HwErrorEvent) Opcode() EventOpcode         { return EvHwError }
func (CommandResponseEvent) Opcode() EventOpcode { return EvCommandResponse }
func (ConnectedEvent) Opcode() EventOpcode       { return EvConnected }
func (DisconnectedEvent) Opcode() EventOpcode    { return EvDisconnected }
func (BondStatusEvent) Opcode() EventOpcode      { return EvBondStatus }
func (PipeStatusEvent) Opcode() EventOpcode      { return EvPipeStatus }
func (TimingEvent) Opcode() EventOpcode          { return EvTiming }
func (DataCreditEvent) Opcode() EventOpcode      { return EvDataCredit }
func (DataAckEvent) Opcode() EventOpcode         { return EvDataAck }
func (DataReceivedEvent) Opcode() EventOpcode    { return EvDataReceived }
func (PipeErrorEvent) Opcode() EventOpcode       { return EvPipeError }
func (DisplayKeyEvent) Opcode() EventOpcode      { return EvDisplayKey }
func (KeyRequestEvent) Opcode() EventOpcode      { return EvKeyRequest }

func (e DeviceStartedEvent) appendPayload(b []byte) []byte {
	return append(b, uint8(e.Mode), uint8(e.HwError), e.CreditAvailable)
}
func (e EchoEvent) appendPayload(b []byte) []byte { return append(b, e.Data...) }
func (e HwErrorEvent) appendPayload(b []byte) []byte {
	return append(binary.LittleEndian.AppendUint16(b, e.Line), e.File...)
}
func (e CommandResponseEvent) appendPayload(b []byte) []byte {
	return append(append(b, uint8(e.Command), uint8(e.Status)), e.Params...)
}
func (e ConnectedEvent) appendPayload(b []byte) []byte {
	b = append(append(b, e.AddressType), e.PeerAddress[:]...)
	b = binary.LittleEndian.AppendUint16(b, e.Interval)
	b = binary.LittleEndian.AppendUint16(b, e.SlaveLatency)
	b = binary.LittleEndian.AppendUint16(b, e.Timeout)
	return append(b, e.MasterClockAccuracy)
}
func (e DisconnectedEvent) appendPayload(b []byte) []byte {
	return append(b, uint8(e.Status), e.BTLEStatus)
}
func (e BondStatusEvent) appendPayload(b []byte) []byte {
	return append(b, e.Code, e.Source, e.SecMode1, e.SecMode2, e.KeysSlave, e.KeysMaster)
}
func (e PipeStatusEvent) appendPayload(b []byte) []byte {
	return append(append(b, e.Open[:]...), e.Closed[:]...)
}
func (e TimingEvent) appendPayload(b []byte) []byte {
	b = binary.LittleEndian.AppendUint16(b, e.Interval)
	b = binary.LittleEndian.AppendUint16(b, e.SlaveLatency)
	return binary.LittleEndian.AppendUint16(b, e.Timeout)
}
func (e DataCreditEvent) appendPayload(b []byte) []byte { return append(b, e.Credit) }
func (e DataAckEvent) appendPayload(b []byte) []byte    { return append(b, e.Pipe) }
func (e DataReceivedEvent) appendPayload(b []byte) []byte {
	return append(append(b, e.Pipe), e.Data...)
}
func (e PipeErrorEvent) appendPayload(b []byte) []byte {
	return append(append(b, e.Pipe, uint8(e.Code)), e.Data...)
}
func (e DisplayKeyEvent) appendPayload(b []byte) []byte { return append(b, e.Passkey[:]...) }
func (e KeyRequestEvent) appendPayload(b []byte) []byte { return append(b, uint8(e.Type)) }

// eventLayout is the minimum payload an event needs and its decoder
type eventLayout struct {
	min    int
	decode func(p []byte) Event
}

var eventLayouts = map[EventOpcode]eventLayout{
	EvDeviceStarted: {3, func(p []byte) Event {
		return DeviceStartedEvent{Mode: OperatingMode(p[0]), HwError: HwErrorCode(p[1]), CreditAvailable: p[2]}
	}},
	EvEcho: {0, func(p []byte) Event { return EchoEvent{Data: clone(p)} }},
	EvHwError: {2, func(p []byte) Event {
		return HwErrorEvent{Line: binary.LittleEndian.Uint16(p), File: strings.TrimRight(string(p[2:]), "\x00")}
	}},
	EvCommandResponse: {2, func(p []byte) Event {
		return CommandResponseEvent{Command: CommandOpcode(p[0]), Status: Status(p[1]), Params: clone(p[2:])}
	}},
	EvConnected: {14, func(p []byte) Event {
		e := ConnectedEvent{AddressType: p[0]}
		copy(e.PeerAddress[:], p[1:7])
		e.Interval = binary.LittleEndian.Uint16(p[7:])
		e.SlaveLatency = binary.LittleEndian.Uint16(p[9:])
		e.Timeout = binary.LittleEndian.Uint16(p[11:])
		e.MasterClockAccuracy = p[13]
		return e
	}},
	EvDisconnected: {2, func(p []byte) Event {
		return DisconnectedEvent{Status: Status(p[0]), BTLEStatus: p[1]}
	}},
	EvBondStatus: {6, func(p []byte) Event {
		return BondStatusEvent{Code: p[0], Source: p[1], SecMode1: p[2], SecMode2: p[3], KeysSlave: p[4], KeysMaster: p[5]}
	}},
	EvPipeStatus: {2 * PipeBitmapSize, func(p []byte) Event {
		var e PipeStatusEvent
		copy(e.Open[:], p)
		copy(e.Closed[:], p[PipeBitmapSize:])
		return e
	}},
	EvTiming: {6, func(p []byte) Event {
		return TimingEvent{
			Interval:     binary.LittleEndian.Uint16(p),
			SlaveLatency: binary.LittleEndian.Uint16(p[2:]),
			Timeout:      binary.LittleEndian.Uint16(p[4:]),
		}
	}},
	EvDataCredit: {1, func(p []byte) Event { return DataCreditEvent{Credit: p[0]} }},
	EvDataAck:    {1, func(p []byte) Event { return DataAckEvent{Pipe: p[0]} }},
	EvDataReceived: {1, func(p []byte) Event {
		return DataReceivedEvent{Pipe: p[0], Data: clone(p[1:])}
	}},
	EvPipeError: {2, func(p []byte) Event {
		return PipeErrorEvent{Pipe: p[0], Code: Status(p[1]), Data: clone(p[2:])}
	}},
	EvDisplayKey: {PasskeySize, func(p []byte) Event {
		var e DisplayKeyEvent
		copy(e.Passkey[:], p)
		return e
	}},
	EvKeyRequest: {1, func(p []byte) Event { return KeyRequestEvent{Type: KeyType(p[0])} }},
}

// Decode parses a chip -> host packet into its typed event
func Decode(raw []byte) (Event, error) {
	p := Packet(raw)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	op := EventOpcode(p.Opcode())
	layout, ok := eventLayouts[op]
	if !ok {
		return nil, &DecodeError{Kind: UnknownOpcode, Opcode: uint8(op)}
	}
	payload := p.Payload()
	if len(payload) < layout.min {
		return nil, &DecodeError{Kind: TruncatedPayload, Opcode: uint8(op), Want: layout.min, Got: len(payload)}
	}
	return layout.decode(payload), nil
}

// EncodeEvent frames an event the way the chip sends it
func EncodeEvent(evt Event) (Packet, error) {
	payload := evt.appendPayload(make([]byte, 0, MaxPayload))
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %s carries %d bytes", ErrPayloadTooLong, evt.Opcode(), len(payload))
	}
	return NewPacket(uint8(evt.Opcode()), payload)
}
