package protocol

import "strconv"

// CommandOpcode identifies a host -> chip packet
type CommandOpcode uint8

// ACI command opcodes
const (
	OpTest                CommandOpcode = 0x01
	OpEcho                CommandOpcode = 0x02
	OpDtmCommand          CommandOpcode = 0x03
	OpSleep               CommandOpcode = 0x04
	OpWakeup              CommandOpcode = 0x05
	OpSetup               CommandOpcode = 0x06
	OpReadDynamicData     CommandOpcode = 0x07
	OpWriteDynamicData    CommandOpcode = 0x08
	OpGetDeviceVersion    CommandOpcode = 0x09
	OpGetDeviceAddress    CommandOpcode = 0x0A
	OpGetBatteryLevel     CommandOpcode = 0x0B
	OpGetTemperature      CommandOpcode = 0x0C
	OpSetLocalData        CommandOpcode = 0x0D
	OpRadioReset          CommandOpcode = 0x0E
	OpConnect             CommandOpcode = 0x0F
	OpBond                CommandOpcode = 0x10
	OpDisconnect          CommandOpcode = 0x11
	OpSetTxPower          CommandOpcode = 0x12
	OpChangeTimingRequest CommandOpcode = 0x13
	OpOpenRemotePipe      CommandOpcode = 0x14
	OpSendData            CommandOpcode = 0x15
	OpSendDataAck         CommandOpcode = 0x16
	OpRequestData         CommandOpcode = 0x17
	OpSendDataNack        CommandOpcode = 0x18
	OpSetApplLatency      CommandOpcode = 0x19
	OpSetKey              CommandOpcode = 0x1A
	OpOpenAdvPipe         CommandOpcode = 0x1B
	OpBroadcast           CommandOpcode = 0x1C
	OpBondSecRequest      CommandOpcode = 0x1D
	OpDirectedConnect     CommandOpcode = 0x1E
	OpCloseRemotePipe     CommandOpcode = 0x1F
)

var commandNames = map[CommandOpcode]string{
	OpTest:                "Test",
	OpEcho:                "Echo",
	OpDtmCommand:          "DtmCommand",
	OpSleep:               "Sleep",
	OpWakeup:              "Wakeup",
	OpSetup:               "Setup",
	OpReadDynamicData:     "ReadDynamicData",
	OpWriteDynamicData:    "WriteDynamicData",
	OpGetDeviceVersion:    "GetDeviceVersion",
	OpGetDeviceAddress:    "GetDeviceAddress",
	OpGetBatteryLevel:     "GetBatteryLevel",
	OpGetTemperature:      "GetTemperature",
	OpSetLocalData:        "SetLocalData",
	OpRadioReset:          "RadioReset",
	OpConnect:             "Connect",
	OpBond:                "Bond",
	OpDisconnect:          "Disconnect",
	OpSetTxPower:          "SetTxPower",
	OpChangeTimingRequest: "ChangeTimingRequest",
	OpOpenRemotePipe:      "OpenRemotePipe",
	OpSendData:            "SendData",
	OpSendDataAck:         "SendDataAck",
	OpRequestData:         "RequestData",
	OpSendDataNack:        "SendDataNack",
	OpSetApplLatency:      "SetApplLatency",
	OpSetKey:              "SetKey",
	OpOpenAdvPipe:         "OpenAdvPipe",
	OpBroadcast:           "Broadcast",
	OpBondSecRequest:      "BondSecRequest",
	OpDirectedConnect:     "DirectedConnect",
	OpCloseRemotePipe:     "CloseRemotePipe",
}

func (o CommandOpcode) String() string {
	if name, ok := commandNames[o]; ok {
		return name
	}
	return "Command(0x" + strconv.FormatUint(uint64(o), 16) + ")"
}

// EventOpcode identifies a chip -> host packet
type EventOpcode uint8

// ACI event opcodes
const (
	EvDeviceStarted   EventOpcode = 0x81
	EvEcho            EventOpcode = 0x82
	EvHwError         EventOpcode = 0x83
	EvCommandResponse EventOpcode = 0x84
	EvConnected       EventOpcode = 0x85
	EvDisconnected    EventOpcode = 0x86
	EvBondStatus      EventOpcode = 0x87
	EvPipeStatus      EventOpcode = 0x88
	EvTiming          EventOpcode = 0x89
	EvDataCredit      EventOpcode = 0x8A
	EvDataAck         EventOpcode = 0x8B
	EvDataReceived    EventOpcode = 0x8C
	EvPipeError       EventOpcode = 0x8D
	EvDisplayKey      EventOpcode = 0x8E
	EvKeyRequest      EventOpcode = 0x8F
)

var eventNames = map[EventOpcode]string{
	EvDeviceStarted:   "DeviceStarted",
	EvEcho:            "Echo",
	EvHwError:         "HwError",
	EvCommandResponse: "CommandResponse",
	EvConnected:       "Connected",
	EvDisconnected:    "Disconnected",
	EvBondStatus:      "BondStatus",
	EvPipeStatus:      "PipeStatus",
	EvTiming:          "Timing",
	EvDataCredit:      "DataCredit",
	EvDataAck:         "DataAck",
	EvDataReceived:    "DataReceived",
	EvPipeError:       "PipeError",
	EvDisplayKey:      "DisplayKey",
	EvKeyRequest:      "KeyRequest",
}

func (o EventOpcode) String() string {
	if name, ok := eventNames[o]; ok {
		return name
	}
	return "Event(0x" + strconv.FormatUint(uint64(o), 16) + ")"
}

// Status is the status byte carried by command responses, disconnects and pipe errors
type Status uint8

// ACI status codes
const (
	StatusSuccess                  Status = 0x00
	StatusTransactionContinue      Status = 0x01
	StatusTransactionComplete      Status = 0x02
	StatusExtended                 Status = 0x03
	StatusErrorUnknown             Status = 0x80
	StatusErrorInternal            Status = 0x81
	StatusErrorCmdUnknown          Status = 0x82
	StatusErrorDeviceStateInvalid  Status = 0x83
	StatusErrorInvalidLength       Status = 0x84
	StatusErrorInvalidParameter    Status = 0x85
	StatusErrorBusy                Status = 0x86
	StatusErrorInvalidData         Status = 0x87
	StatusErrorCRCMismatch         Status = 0x88
	StatusErrorUnsupportedSetup    Status = 0x89
	StatusErrorInvalidSeqNo        Status = 0x8A
	StatusErrorSetupLocked         Status = 0x8B
	StatusErrorLockFailed          Status = 0x8C
	StatusErrorBondRequired        Status = 0x8D
	StatusErrorRejected            Status = 0x8E
	StatusErrorDataSize            Status = 0x8F
	StatusErrorPipeInvalid         Status = 0x90
	StatusErrorCreditNotAvailable  Status = 0x91
	StatusErrorPeerATTError        Status = 0x92
	StatusErrorAdvertisingTimeout  Status = 0x93
	StatusErrorPeerSMPError        Status = 0x94
	StatusErrorPipeTypeInvalid     Status = 0x95
	StatusErrorPipeStateInvalid    Status = 0x96
	StatusErrorInvalidKeySize      Status = 0x97
	StatusErrorInvalidKeyData      Status = 0x98
	statusErrorFirst               Status = 0x80
	StatusReservedStart            Status = 0xF0
	StatusReservedEnd              Status = 0xFF
)

// OK reports whether the status is one of the non-error codes
func (s Status) OK() bool {
	return s < statusErrorFirst
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusTransactionContinue:
		return "TransactionContinue"
	case StatusTransactionComplete:
		return "TransactionComplete"
	case StatusExtended:
		return "Extended"
	case StatusErrorAdvertisingTimeout:
		return "AdvertisingTimeout"
	case StatusErrorDeviceStateInvalid:
		return "DeviceStateInvalid"
	case StatusErrorCreditNotAvailable:
		return "CreditNotAvailable"
	case StatusErrorBusy:
		return "Busy"
	}
	return "Status(0x" + strconv.FormatUint(uint64(s), 16) + ")"
}

// OperatingMode is reported by the DeviceStarted event
type OperatingMode uint8

// Operating modes
const (
	ModeInvalid OperatingMode = 0x00
	ModeTest    OperatingMode = 0x01
	ModeSetup   OperatingMode = 0x02
	ModeStandby OperatingMode = 0x03
	ModeSleep   OperatingMode = 0x04
)

func (m OperatingMode) String() string {
	switch m {
	case ModeTest:
		return "Test"
	case ModeSetup:
		return "Setup"
	case ModeStandby:
		return "Standby"
	case ModeSleep:
		return "Sleep"
	}
	return "Invalid"
}

// HwErrorCode is the hardware error field of the DeviceStarted event
type HwErrorCode uint8

const (
	HwErrorNone       HwErrorCode = 0x00
	HwErrorFatalSetup HwErrorCode = 0x01
)

// KeyType selects the key carried by SetKey and asked for by KeyRequest
type KeyType uint8

const (
	KeyTypeInvalid KeyType = 0x00
	KeyTypePasskey KeyType = 0x01
	KeyTypeOOB     KeyType = 0x02
)

// Passkey and OOB key sizes
const (
	PasskeySize = 6
	OOBKeySize  = 16
)

// DisconnectReason is sent with the Disconnect command
type DisconnectReason uint8

const (
	ReasonRemoteUserTerminated   DisconnectReason = 0x01
	ReasonUnacceptableConnTiming DisconnectReason = 0x08
)

// TxPower selects the radio output power
type TxPower uint8

const (
	TxPowerMinus18dBm TxPower = 0x00
	TxPowerMinus12dBm TxPower = 0x01
	TxPowerMinus6dBm  TxPower = 0x02
	TxPower0dBm       TxPower = 0x03
)

// TestMode is the argument of the Test command
type TestMode uint8

const (
	TestModeDTMUART TestMode = 0x01
	TestModeDTMACI  TestMode = 0x02
	TestModeExit    TestMode = 0xFF
)
