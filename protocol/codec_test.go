package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		Test{Mode: TestModeDTMACI},
		Echo{Data: []byte{1, 2, 3, 4}},
		DtmCommand{Word: 0x1234},
		Sleep{},
		Wakeup{},
		Setup{Data: []byte{0x00, 0x00, 0x02, 0x02, 0x42, 0x07}},
		ReadDynamicData{},
		WriteDynamicData{Sequence: 3, Data: []byte{9, 8, 7}},
		GetDeviceVersion{},
		GetDeviceAddress{},
		GetBatteryLevel{},
		GetTemperature{},
		SetLocalData{Pipe: 4, Data: []byte("hi")},
		RadioReset{},
		Connect{Timeout: 180, Interval: 0x0050},
		Bond{Timeout: 30, Interval: 0x0100},
		Disconnect{Reason: ReasonRemoteUserTerminated},
		SetTxPower{Level: TxPower0dBm},
		ChangeTimingRequest{},
		ChangeTimingRequest{Params: &TimingParams{MinInterval: 6, MaxInterval: 12, SlaveLatency: 0, Timeout: 400}},
		OpenRemotePipe{Pipe: 7},
		SendData{Pipe: 5, Data: []byte("twenty bytes payload")},
		SendDataAck{Pipe: 6},
		RequestData{Pipe: 8},
		SendDataNack{Pipe: 6, ErrorCode: 0x80},
		SetApplLatency{Enable: true, Latency: 500},
		SetKey{Type: KeyTypePasskey, Key: []byte("123456")},
		OpenAdvPipe{Pipes: PipeBitmap{0x06}},
		Broadcast{Timeout: 0, Interval: 0x0100},
		BondSecRequest{},
		DirectedConnect{},
		CloseRemotePipe{Pipe: 7},
	}

	for _, cmd := range cmds {
		t.Run(cmd.Opcode().String(), func(t *testing.T) {
			p, err := Encode(cmd)
			require.NoError(t, err)
			require.NoError(t, p.Validate())
			require.Equal(t, uint8(cmd.Opcode()), p.Opcode())

			decoded, err := DecodeCommand(p)
			require.NoError(t, err)
			require.Equal(t, cmd, decoded)

			again, err := Encode(decoded)
			require.NoError(t, err)
			require.Equal(t, p, again)
		})
	}
}

func TestEchoRoundTrip(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	cmd, err := Encode(Echo{Data: data})
	require.NoError(t, err)

	// The chip answers an Echo command with the same payload under the event opcode
	echoed := cmd.Clone()
	echoed[PositionOpcode] = uint8(EvEcho)

	evt, err := Decode(echoed)
	require.NoError(t, err)
	require.Equal(t, EchoEvent{Data: data}, evt)
	require.Equal(t, cmd.Payload(), echoed.Payload())
}

func TestEventRoundTrip(t *testing.T) {
	events := []Event{
		DeviceStartedEvent{Mode: ModeStandby, CreditAvailable: 2},
		EchoEvent{Data: []byte{1}},
		HwErrorEvent{Line: 412, File: "aci_setup.c"},
		CommandResponseEvent{Command: OpSetup, Status: StatusTransactionContinue},
		CommandResponseEvent{Command: OpGetTemperature, Status: StatusSuccess, Params: []byte{0x5c, 0x00}},
		ConnectedEvent{AddressType: 1, PeerAddress: [6]byte{1, 2, 3, 4, 5, 6}, Interval: 40, Timeout: 400, MasterClockAccuracy: 7},
		DisconnectedEvent{Status: StatusErrorAdvertisingTimeout, BTLEStatus: 0x13},
		BondStatusEvent{Code: 0, Source: 1, SecMode1: 2, KeysSlave: 3, KeysMaster: 4},
		PipeStatusEvent{Open: PipeBitmap{0x0e}, Closed: PipeBitmap{0xf0}},
		TimingEvent{Interval: 40, SlaveLatency: 1, Timeout: 400},
		DataCreditEvent{Credit: 2},
		DataAckEvent{Pipe: 3},
		DataReceivedEvent{Pipe: 9, Data: []byte("abc")},
		PipeErrorEvent{Pipe: 2, Code: StatusErrorCreditNotAvailable},
		DisplayKeyEvent{Passkey: [6]byte{'1', '2', '3', '4', '5', '6'}},
		KeyRequestEvent{Type: KeyTypeOOB},
	}

	for _, evt := range events {
		t.Run(evt.Opcode().String(), func(t *testing.T) {
			p, err := EncodeEvent(evt)
			require.NoError(t, err)
			decoded, err := Decode(p)
			require.NoError(t, err)
			require.Equal(t, evt, decoded)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		raw  []byte
		kind DecodeErrorKind
		err  error
	}{
		{"empty", nil, MalformedLength, ErrMalformedLength},
		{"zero length", []byte{0}, MalformedLength, ErrMalformedLength},
		{"length too short for buffer", []byte{1, 0x8a, 2}, MalformedLength, ErrMalformedLength},
		{"length longer than buffer", []byte{4, 0x8a, 2}, MalformedLength, ErrMalformedLength},
		{"length over hardware limit", append([]byte{32}, make([]byte, 32)...), MalformedLength, ErrMalformedLength},
		{"unknown opcode", []byte{2, 0x7f, 0}, UnknownOpcode, ErrUnknownOpcode},
		{"command opcode on event path", []byte{1, uint8(OpSleep)}, UnknownOpcode, ErrUnknownOpcode},
		{"truncated device started", []byte{3, uint8(EvDeviceStarted), 3, 0}, TruncatedPayload, ErrTruncatedPayload},
		{"truncated connected", []byte{5, uint8(EvConnected), 1, 2, 3, 4}, TruncatedPayload, ErrTruncatedPayload},
		{"truncated credit", []byte{1, uint8(EvDataCredit)}, TruncatedPayload, ErrTruncatedPayload},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.raw)
			require.Error(t, err)
			require.ErrorIs(t, err, tc.err)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			require.Equal(t, tc.kind, de.Kind)
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(SendData{Pipe: 1, Data: make([]byte, MaxDataPayload+1)})
	require.ErrorIs(t, err, ErrPayloadTooLong)

	_, err = Encode(Setup{Data: make([]byte, MaxPayload+1)})
	require.ErrorIs(t, err, ErrPayloadTooLong)

	p, err := Encode(Setup{Data: make([]byte, MaxPayload)})
	require.NoError(t, err)
	require.Len(t, p, BufferSize)
	require.Equal(t, uint8(MaxLength), p[PositionLength])
}

func TestDecodeCommandRejectsExtraBytes(t *testing.T) {
	_, err := DecodeCommand([]byte{2, uint8(OpSleep), 0})
	require.ErrorIs(t, err, ErrMalformedLength)
}

func TestPipeBitmap(t *testing.T) {
	var m PipeBitmap
	m.Set(1)
	m.Set(9)
	m.Set(62)
	if !m.Has(1) || !m.Has(9) || !m.Has(62) {
		t.Errorf("expected pipes 1, 9, 62 set, got %v", m)
	}
	if m.Has(2) || m.Has(200) {
		t.Errorf("unexpected pipe bit set: %v", m)
	}
	m.Clear(9)
	if m.Has(9) {
		t.Error("pipe 9 still set after Clear")
	}
}

func TestCommandResponseAccessors(t *testing.T) {
	version := CommandResponseEvent{
		Command: OpGetDeviceVersion,
		Params:  []byte{0x01, 0x10, 0x02, 0x03, 0x78, 0x56, 0x34, 0x12, 0x01},
	}
	v, ok := version.DeviceVersion()
	require.True(t, ok)
	require.Equal(t, DeviceVersion{ConfigurationID: 0x1001, ACIVersion: 2, SetupFormat: 3, SetupID: 0x12345678, SetupStatus: 1}, v)

	addr := CommandResponseEvent{Command: OpGetDeviceAddress, Params: []byte{1, 2, 3, 4, 5, 6, 1}}
	a, ok := addr.DeviceAddress()
	require.True(t, ok)
	require.Equal(t, [6]byte{1, 2, 3, 4, 5, 6}, a.Address)

	battery := CommandResponseEvent{Command: OpGetBatteryLevel, Params: []byte{0x00, 0x04}}
	mv, ok := battery.BatteryLevel()
	require.True(t, ok)
	require.Equal(t, uint32(1024*352/100), mv)

	temp := CommandResponseEvent{Command: OpGetTemperature, Params: []byte{0x5c, 0x00}}
	q, ok := temp.Temperature()
	require.True(t, ok)
	require.Equal(t, int16(92), q)

	_, ok = temp.DeviceVersion()
	require.False(t, ok)
}

func TestStatusOK(t *testing.T) {
	for _, s := range []Status{StatusSuccess, StatusTransactionContinue, StatusTransactionComplete} {
		if !s.OK() {
			t.Errorf("%v should be OK", s)
		}
	}
	if StatusErrorInvalidLength.OK() {
		t.Error("error status reported OK")
	}
}
