package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command is a typed host -> chip message
type Command interface {
	Opcode() CommandOpcode
	appendPayload(b []byte) []byte
}

// PipeCommand is a command addressed to a single pipe
type PipeCommand interface {
	Command
	PipeNumber() uint8
}

// Test switches the chip into or out of Direct Test Mode
type Test struct{ Mode TestMode }

// Echo asks the chip to return Data in an Echo event (test mode only)
type Echo struct{ Data []byte }

// DtmCommand carries a raw DTM command word (sent MSB first)
type DtmCommand struct{ Word uint16 }

type Sleep struct{}
type Wakeup struct{}

// Setup carries one chunk of the setup script
type Setup struct{ Data []byte }

type ReadDynamicData struct{}

// WriteDynamicData restores one chunk of previously read dynamic data
type WriteDynamicData struct {
	Sequence uint8
	Data     []byte
}

type GetDeviceVersion struct{}
type GetDeviceAddress struct{}
type GetBatteryLevel struct{}
type GetTemperature struct{}

// SetLocalData writes a local characteristic value through its pipe
type SetLocalData struct {
	Pipe uint8
	Data []byte
}

type RadioReset struct{}

// Connect starts advertising; Timeout in seconds (0 = infinite), Interval in 0.625ms units
type Connect struct {
	Timeout  uint16
	Interval uint16
}

// Bond starts advertising for bonding
type Bond struct {
	Timeout  uint16
	Interval uint16
}

type Disconnect struct{ Reason DisconnectReason }

type SetTxPower struct{ Level TxPower }

// TimingParams are the optional connection parameters of ChangeTimingRequest
type TimingParams struct {
	MinInterval  uint16
	MaxInterval  uint16
	SlaveLatency uint16
	Timeout      uint16
}

// ChangeTimingRequest asks the peer for new connection timing.
// A nil Params uses the timing stored in the setup.
type ChangeTimingRequest struct{ Params *TimingParams }

type OpenRemotePipe struct{ Pipe uint8 }

// SendData transmits up to MaxDataPayload bytes on a pipe
type SendData struct {
	Pipe uint8
	Data []byte
}

type SendDataAck struct{ Pipe uint8 }
type RequestData struct{ Pipe uint8 }

type SendDataNack struct {
	Pipe      uint8
	ErrorCode uint8
}

type SetApplLatency struct {
	Enable  bool
	Latency uint16
}

// SetKey answers a KeyRequest event
type SetKey struct {
	Type KeyType
	Key  []byte
}

// OpenAdvPipe selects the pipes included in advertising data
type OpenAdvPipe struct{ Pipes PipeBitmap }

type Broadcast struct {
	Timeout  uint16
	Interval uint16
}

type BondSecRequest struct{}
type DirectedConnect struct{}
type CloseRemotePipe struct{ Pipe uint8 }

func (Test) Opcode() CommandOpcode                { return OpTest }
func (Echo) Opcode() CommandOpcode                { return OpEcho }
func (DtmCommand) Opcode() CommandOpcode          { return OpDtmCommand }
func (Sleep) Opcode() CommandOpcode               { return OpSleep }
func (Wakeup) Opcode() CommandOpcode              { return OpWakeup }
func (Setup) Opcode() CommandOpcode               { return OpSetup }
func (ReadDynamicData) Opcode() CommandOpcode     { return OpReadDynamicData }
func (WriteDynamicData) Opcode() CommandOpcode    { return OpWriteDynamicData }
func (GetDeviceVersion) Opcode() CommandOpcode    { return OpGetDeviceVersion }
func (GetDeviceAddress) Opcode() CommandOpcode    { return OpGetDeviceAddress }
func (GetBatteryLevel) Opcode() CommandOpcode     { return OpGetBatteryLevel }
func (GetTemperature) Opcode() CommandOpcode      { return OpGetTemperature }
func (SetLocalData) Opcode() CommandOpcode        { return OpSetLocalData }
func (RadioReset) Opcode() CommandOpcode          { return OpRadioReset }
func (Connect) Opcode() CommandOpcode             { return OpConnect }
func (Bond) Opcode() CommandOpcode                { return OpBond }
func (Disconnect) Opcode() CommandOpcode          { return OpDisconnect }
func (SetTxPower) Opcode() CommandOpcode          { return OpSetTxPower }
func (ChangeTimingRequest) Opcode() CommandOpcode { return OpChangeTimingRequest }
func (OpenRemotePipe) Opcode() CommandOpcode      { return OpOpenRemotePipe }
func (SendData) Opcode() CommandOpcode            { return OpSendData }
func (SendDataAck) Opcode() CommandOpcode         { return OpSendDataAck }
func (RequestData) Opcode() CommandOpcode         { return OpRequestData }
func (SendDataNack) Opcode() CommandOpcode        { return OpSendDataNack }
func (SetApplLatency) Opcode() CommandOpcode      { return OpSetApplLatency }
func (SetKey) Opcode() CommandOpcode              { return OpSetKey }
func (OpenAdvPipe) Opcode() CommandOpcode         { return OpOpenAdvPipe }
func (Broadcast) Opcode() CommandOpcode           { return OpBroadcast }
func (BondSecRequest) Opcode() CommandOpcode      { return OpBondSecRequest }
func (DirectedConnect) Opcode() CommandOpcode     { return OpDirectedConnect }
func (CloseRemotePipe) Opcode() CommandOpcode     { return OpCloseRemotePipe }

func (c SetLocalData) PipeNumber() uint8    { return c.Pipe }
func (c OpenRemotePipe) PipeNumber() uint8  { return c.Pipe }
func (c SendData) PipeNumber() uint8        { return c.Pipe }
func (c SendDataAck) PipeNumber() uint8     { return c.Pipe }
func (c RequestData) PipeNumber() uint8     { return c.Pipe }
func (c SendDataNack) PipeNumber() uint8    { return c.Pipe }
func (c CloseRemotePipe) PipeNumber() uint8 { return c.Pipe }

func (c Test) appendPayload(b []byte) []byte       { return append(b, uint8(c.Mode)) }
func (c Echo) appendPayload(b []byte) []byte       { return append(b, c.Data...) }
func (c DtmCommand) appendPayload(b []byte) []byte { return binary.BigEndian.AppendUint16(b, c.Word) }
func (Sleep) appendPayload(b []byte) []byte        { return b }
func (Wakeup) appendPayload(b []byte) []byte       { return b }
func (c Setup) appendPayload(b []byte) []byte      { return append(b, c.Data...) }
func (ReadDynamicData) appendPayload(b []byte) []byte {
	return b
}
func (c WriteDynamicData) appendPayload(b []byte) []byte {
	return append(append(b, c.Sequence), c.Data...)
}
func (GetDeviceVersion) appendPayload(b []byte) []byte { return b }
func (GetDeviceAddress) appendPayload(b []byte) []byte { return b }
func (GetBatteryLevel) appendPayload(b []byte) []byte  { return b }
func (GetTemperature) appendPayload(b []byte) []byte   { return b }
func (c SetLocalData) appendPayload(b []byte) []byte {
	return append(append(b, c.Pipe), c.Data...)
}
func (RadioReset) appendPayload(b []byte) []byte { return b }
func (c Connect) appendPayload(b []byte) []byte {
	return appendTimeoutInterval(b, c.Timeout, c.Interval)
}
func (c Bond) appendPayload(b []byte) []byte {
	return appendTimeoutInterval(b, c.Timeout, c.Interval)
}
func (c Disconnect) appendPayload(b []byte) []byte { return append(b, uint8(c.Reason)) }
func (c SetTxPower) appendPayload(b []byte) []byte { return append(b, uint8(c.Level)) }
func (c ChangeTimingRequest) appendPayload(b []byte) []byte {
	if c.Params == nil {
		return b
	}
	b = binary.LittleEndian.AppendUint16(b, c.Params.MinInterval)
	b = binary.LittleEndian.AppendUint16(b, c.Params.MaxInterval)
	b = binary.LittleEndian.AppendUint16(b, c.Params.SlaveLatency)
	return binary.LittleEndian.AppendUint16(b, c.Params.Timeout)
}
func (c OpenRemotePipe) appendPayload(b []byte) []byte { return append(b, c.Pipe) }
func (c SendData) appendPayload(b []byte) []byte {
	return append(append(b, c.Pipe), c.Data...)
}
func (c SendDataAck) appendPayload(b []byte) []byte  { return append(b, c.Pipe) }
func (c RequestData) appendPayload(b []byte) []byte  { return append(b, c.Pipe) }
func (c SendDataNack) appendPayload(b []byte) []byte { return append(b, c.Pipe, c.ErrorCode) }
func (c SetApplLatency) appendPayload(b []byte) []byte {
	mode := uint8(0)
	if c.Enable {
		mode = 1
	}
	return binary.LittleEndian.AppendUint16(append(b, mode), c.Latency)
}
func (c SetKey) appendPayload(b []byte) []byte {
	return append(append(b, uint8(c.Type)), c.Key...)
}
func (c OpenAdvPipe) appendPayload(b []byte) []byte { return append(b, c.Pipes[:]...) }
func (c Broadcast) appendPayload(b []byte) []byte {
	return appendTimeoutInterval(b, c.Timeout, c.Interval)
}
func (BondSecRequest) appendPayload(b []byte) []byte    { return b }
func (DirectedConnect) appendPayload(b []byte) []byte   { return b }
func (c CloseRemotePipe) appendPayload(b []byte) []byte { return append(b, c.Pipe) }

func appendTimeoutInterval(b []byte, timeout, interval uint16) []byte {
	b = binary.LittleEndian.AppendUint16(b, timeout)
	return binary.LittleEndian.AppendUint16(b, interval)
}

// commandLayout bounds a command payload and rebuilds the typed value
type commandLayout struct {
	min, max int
	decode   func(p []byte) Command
}

var commandLayouts = map[CommandOpcode]commandLayout{
	OpTest:       {1, 1, func(p []byte) Command { return Test{Mode: TestMode(p[0])} }},
	OpEcho:       {0, MaxPayload, func(p []byte) Command { return Echo{Data: clone(p)} }},
	OpDtmCommand: {2, 2, func(p []byte) Command { return DtmCommand{Word: binary.BigEndian.Uint16(p)} }},
	OpSleep:      {0, 0, func([]byte) Command { return Sleep{} }},
	OpWakeup:     {0, 0, func([]byte) Command { return Wakeup{} }},
	OpSetup:      {0, MaxPayload, func(p []byte) Command { return Setup{Data: clone(p)} }},
	OpReadDynamicData: {0, 0, func([]byte) Command {
		return ReadDynamicData{}
	}},
	OpWriteDynamicData: {1, MaxPayload, func(p []byte) Command {
		return WriteDynamicData{Sequence: p[0], Data: clone(p[1:])}
	}},
	OpGetDeviceVersion: {0, 0, func([]byte) Command { return GetDeviceVersion{} }},
	OpGetDeviceAddress: {0, 0, func([]byte) Command { return GetDeviceAddress{} }},
	OpGetBatteryLevel:  {0, 0, func([]byte) Command { return GetBatteryLevel{} }},
	OpGetTemperature:   {0, 0, func([]byte) Command { return GetTemperature{} }},
	OpSetLocalData: {1, 1 + MaxDataPayload, func(p []byte) Command {
		return SetLocalData{Pipe: p[0], Data: clone(p[1:])}
	}},
	OpRadioReset: {0, 0, func([]byte) Command { return RadioReset{} }},
	OpConnect: {4, 4, func(p []byte) Command {
		return Connect{Timeout: binary.LittleEndian.Uint16(p), Interval: binary.LittleEndian.Uint16(p[2:])}
	}},
	OpBond: {4, 4, func(p []byte) Command {
		return Bond{Timeout: binary.LittleEndian.Uint16(p), Interval: binary.LittleEndian.Uint16(p[2:])}
	}},
	OpDisconnect: {1, 1, func(p []byte) Command { return Disconnect{Reason: DisconnectReason(p[0])} }},
	OpSetTxPower: {1, 1, func(p []byte) Command { return SetTxPower{Level: TxPower(p[0])} }},
	OpChangeTimingRequest: {0, 8, func(p []byte) Command {
		if len(p) < 8 {
			return ChangeTimingRequest{}
		}
		return ChangeTimingRequest{Params: &TimingParams{
			MinInterval:  binary.LittleEndian.Uint16(p),
			MaxInterval:  binary.LittleEndian.Uint16(p[2:]),
			SlaveLatency: binary.LittleEndian.Uint16(p[4:]),
			Timeout:      binary.LittleEndian.Uint16(p[6:]),
		}}
	}},
	OpOpenRemotePipe: {1, 1, func(p []byte) Command { return OpenRemotePipe{Pipe: p[0]} }},
	OpSendData: {1, 1 + MaxDataPayload, func(p []byte) Command {
		return SendData{Pipe: p[0], Data: clone(p[1:])}
	}},
	OpSendDataAck:  {1, 1, func(p []byte) Command { return SendDataAck{Pipe: p[0]} }},
	OpRequestData:  {1, 1, func(p []byte) Command { return RequestData{Pipe: p[0]} }},
	OpSendDataNack: {2, 2, func(p []byte) Command { return SendDataNack{Pipe: p[0], ErrorCode: p[1]} }},
	OpSetApplLatency: {3, 3, func(p []byte) Command {
		return SetApplLatency{Enable: p[0] != 0, Latency: binary.LittleEndian.Uint16(p[1:])}
	}},
	OpSetKey: {1, 1 + OOBKeySize, func(p []byte) Command {
		return SetKey{Type: KeyType(p[0]), Key: clone(p[1:])}
	}},
	OpOpenAdvPipe: {PipeBitmapSize, PipeBitmapSize, func(p []byte) Command {
		var c OpenAdvPipe
		copy(c.Pipes[:], p)
		return c
	}},
	OpBroadcast: {4, 4, func(p []byte) Command {
		return Broadcast{Timeout: binary.LittleEndian.Uint16(p), Interval: binary.LittleEndian.Uint16(p[2:])}
	}},
	OpBondSecRequest:  {0, 0, func([]byte) Command { return BondSecRequest{} }},
	OpDirectedConnect: {0, 0, func([]byte) Command { return DirectedConnect{} }},
	OpCloseRemotePipe: {1, 1, func(p []byte) Command { return CloseRemotePipe{Pipe: p[0]} }},
}

// Encode frames a typed command. It fails only when a variable-length
// field does not fit the command's layout.
func Encode(cmd Command) (Packet, error) {
	payload := cmd.appendPayload(make([]byte, 0, MaxPayload))
	if layout, ok := commandLayouts[cmd.Opcode()]; ok && len(payload) > layout.max {
		return nil, fmt.Errorf("%w: %s carries %d bytes (max %d)", ErrPayloadTooLong, cmd.Opcode(), len(payload), layout.max)
	}
	return NewPacket(uint8(cmd.Opcode()), payload)
}

// DecodeCommand parses a host -> chip packet
func DecodeCommand(raw []byte) (Command, error) {
	p := Packet(raw)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	op := CommandOpcode(p.Opcode())
	layout, ok := commandLayouts[op]
	if !ok {
		return nil, &DecodeError{Kind: UnknownOpcode, Opcode: uint8(op)}
	}
	payload := p.Payload()
	if len(payload) < layout.min {
		return nil, &DecodeError{Kind: TruncatedPayload, Opcode: uint8(op), Want: layout.min, Got: len(payload)}
	}
	if len(payload) > layout.max {
		return nil, &DecodeError{Kind: MalformedLength, Opcode: uint8(op), Want: layout.max + 1, Got: len(payload) + 1}
	}
	return layout.decode(payload), nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
