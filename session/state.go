package session

import "goaci/protocol"

// State is the session lifecycle state
type State uint8

const (
	StateUninitialized State = iota
	StateAwaitingDeviceReady
	StateSettingUp
	StateStandby
	StateAdvertising
	StateConnected
	StateDisconnected
	StateError
	numStates
)

var stateNames = [...]string{
	StateUninitialized:       "Uninitialized",
	StateAwaitingDeviceReady: "AwaitingDeviceReady",
	StateSettingUp:           "SettingUp",
	StateStandby:             "Standby",
	StateAdvertising:         "Advertising",
	StateConnected:           "Connected",
	StateDisconnected:        "Disconnected",
	StateError:               "Error",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return "State(?)"
}

// EventKind is the class of an event as far as the lifecycle is concerned
type EventKind uint8

const (
	KindDeviceStartedSetup EventKind = iota
	KindDeviceStartedStandby
	KindDeviceStartedOther // test or sleep mode
	KindSetupAck
	KindSetupNack
	KindAdvertiseAck // Connect, Bond, Broadcast or DirectedConnect accepted
	KindCommandResponse
	KindConnected
	KindDisconnected
	KindHwError
	KindPipeStatus
	KindDataCredit
	KindOther
	numEventKinds
)

var kindNames = [...]string{
	KindDeviceStartedSetup:   "DeviceStartedSetup",
	KindDeviceStartedStandby: "DeviceStartedStandby",
	KindDeviceStartedOther:   "DeviceStartedOther",
	KindSetupAck:             "SetupAck",
	KindSetupNack:            "SetupNack",
	KindAdvertiseAck:         "AdvertiseAck",
	KindCommandResponse:      "CommandResponse",
	KindConnected:            "Connected",
	KindDisconnected:         "Disconnected",
	KindHwError:              "HwError",
	KindPipeStatus:           "PipeStatus",
	KindDataCredit:           "DataCredit",
	KindOther:                "Other",
}

func (k EventKind) String() string {
	if k < numEventKinds {
		return kindNames[k]
	}
	return "EventKind(?)"
}

// Classify maps a decoded event onto its EventKind
func Classify(evt protocol.Event) EventKind {
	switch e := evt.(type) {
	case protocol.DeviceStartedEvent:
		if e.HwError == protocol.HwErrorFatalSetup {
			return KindHwError
		}
		switch e.Mode {
		case protocol.ModeSetup:
			return KindDeviceStartedSetup
		case protocol.ModeStandby:
			return KindDeviceStartedStandby
		}
		return KindDeviceStartedOther
	case protocol.HwErrorEvent:
		return KindHwError
	case protocol.CommandResponseEvent:
		switch e.Command {
		case protocol.OpSetup:
			if e.Status.OK() {
				return KindSetupAck
			}
			return KindSetupNack
		case protocol.OpConnect, protocol.OpBond, protocol.OpBroadcast, protocol.OpDirectedConnect:
			if e.Status.OK() {
				return KindAdvertiseAck
			}
		}
		return KindCommandResponse
	case protocol.ConnectedEvent:
		return KindConnected
	case protocol.DisconnectedEvent:
		return KindDisconnected
	case protocol.PipeStatusEvent:
		return KindPipeStatus
	case protocol.DataCreditEvent:
		return KindDataCredit
	}
	return KindOther
}

const (
	uninit    = StateUninitialized
	awaiting  = StateAwaitingDeviceReady
	settingUp = StateSettingUp
	standby   = StateStandby
	adv       = StateAdvertising
	conn      = StateConnected
	disc      = StateDisconnected
	failed    = StateError
)

// transitions is indexed [state][kind]. Every cell is filled.
//
// SettingUp only leaves through a nack or a hardware error here; the setup
// runner moves it to Standby once the last command is acknowledged.
// Disconnected is transient: the session settles it to Standby in the same
// cycle, so its row mirrors Standby.
var transitions = [numStates][numEventKinds]State{
	StateUninitialized: {
		awaiting, standby, uninit, uninit, uninit, uninit, uninit,
		uninit, uninit, failed, uninit, uninit, uninit,
	},
	StateAwaitingDeviceReady: {
		awaiting, standby, awaiting, awaiting, awaiting, awaiting, awaiting,
		awaiting, awaiting, failed, awaiting, awaiting, awaiting,
	},
	StateSettingUp: {
		settingUp, settingUp, settingUp, settingUp, failed, settingUp, settingUp,
		settingUp, settingUp, failed, settingUp, settingUp, settingUp,
	},
	StateStandby: {
		awaiting, standby, standby, standby, standby, adv, standby,
		conn, standby, failed, standby, standby, standby,
	},
	StateAdvertising: {
		awaiting, standby, adv, adv, adv, adv, adv,
		conn, disc, failed, adv, adv, adv,
	},
	StateConnected: {
		awaiting, standby, conn, conn, conn, conn, conn,
		conn, disc, failed, conn, conn, conn,
	},
	StateDisconnected: {
		awaiting, standby, standby, standby, standby, adv, standby,
		conn, standby, failed, standby, standby, standby,
	},
	StateError: {
		failed, failed, failed, failed, failed, failed, failed,
		failed, failed, failed, failed, failed, failed,
	},
}

// Transition returns the state after an event of kind k arrives in state s.
// Out-of-range inputs land in StateError.
func Transition(s State, k EventKind) State {
	if s >= numStates || k >= numEventKinds {
		return StateError
	}
	return transitions[s][k]
}

// stateSet is a bitmask of States
type stateSet uint16

func setOf(states ...State) stateSet {
	var s stateSet
	for _, st := range states {
		s |= 1 << st
	}
	return s
}

func (s stateSet) has(st State) bool { return s&(1<<st) != 0 }

var (
	liveStates  = setOf(awaiting, settingUp, standby, adv, conn, disc)
	readyStates = setOf(standby, adv, conn)
)

// commandStates lists the states each command may be queued in
var commandStates = map[protocol.CommandOpcode]stateSet{
	protocol.OpTest:                liveStates,
	protocol.OpEcho:                liveStates,
	protocol.OpDtmCommand:          liveStates,
	protocol.OpRadioReset:          liveStates,
	protocol.OpSetup:               setOf(awaiting, settingUp),
	protocol.OpSleep:               setOf(standby),
	protocol.OpWakeup:              readyStates,
	protocol.OpReadDynamicData:     setOf(standby),
	protocol.OpWriteDynamicData:    setOf(standby),
	protocol.OpGetDeviceVersion:    readyStates,
	protocol.OpGetDeviceAddress:    readyStates,
	protocol.OpGetBatteryLevel:     readyStates,
	protocol.OpGetTemperature:      readyStates,
	protocol.OpSetLocalData:        readyStates,
	protocol.OpSetTxPower:          readyStates,
	protocol.OpSetKey:              readyStates,
	protocol.OpConnect:             setOf(standby),
	protocol.OpBond:                setOf(standby),
	protocol.OpBroadcast:           setOf(standby),
	protocol.OpDirectedConnect:     setOf(standby),
	protocol.OpOpenAdvPipe:         setOf(standby, adv),
	protocol.OpDisconnect:          setOf(adv, conn),
	protocol.OpChangeTimingRequest: setOf(conn),
	protocol.OpOpenRemotePipe:      setOf(conn),
	protocol.OpCloseRemotePipe:     setOf(conn),
	protocol.OpSendData:            setOf(conn),
	protocol.OpSendDataAck:         setOf(conn),
	protocol.OpRequestData:         setOf(conn),
	protocol.OpSendDataNack:        setOf(conn),
	protocol.OpSetApplLatency:      setOf(conn),
	protocol.OpBondSecRequest:      setOf(conn),
}

// Allowed reports whether a command may be queued in state s
func Allowed(s State, op protocol.CommandOpcode) bool {
	return commandStates[op].has(s)
}
