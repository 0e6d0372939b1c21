package session

import "goaci/protocol"

// Send queues application data on a TX pipe. It consumes one credit.
func (s *Session) Send(pipe uint8, data []byte) error {
	return s.Submit(protocol.SendData{Pipe: pipe, Data: data})
}

// RequestData asks the peer for the value of an RX pipe. It consumes one credit.
func (s *Session) RequestData(pipe uint8) error {
	return s.Submit(protocol.RequestData{Pipe: pipe})
}

// SendAck acknowledges data received on an RX pipe
func (s *Session) SendAck(pipe uint8) error {
	return s.Submit(protocol.SendDataAck{Pipe: pipe})
}

// SendNack rejects data received on an RX pipe with an application error code
func (s *Session) SendNack(pipe uint8, code uint8) error {
	return s.Submit(protocol.SendDataNack{Pipe: pipe, ErrorCode: code})
}

// Connect starts advertising. timeout is in seconds (0 = forever), interval
// in 0.625ms units.
func (s *Session) Connect(timeout, interval uint16) error {
	return s.Submit(protocol.Connect{Timeout: timeout, Interval: interval})
}

// Bond advertises for a peer that will pair with the chip
func (s *Session) Bond(timeout, interval uint16) error {
	return s.Submit(protocol.Bond{Timeout: timeout, Interval: interval})
}

// Broadcast sends non-connectable advertisements
func (s *Session) Broadcast(timeout, interval uint16) error {
	return s.Submit(protocol.Broadcast{Timeout: timeout, Interval: interval})
}

// DirectedConnect advertises to the bonded peer only
func (s *Session) DirectedConnect() error {
	return s.Submit(protocol.DirectedConnect{})
}

// Disconnect closes the link, or stops advertising
func (s *Session) Disconnect(reason protocol.DisconnectReason) error {
	return s.Submit(protocol.Disconnect{Reason: reason})
}

// GetDeviceVersion asks for the firmware and setup version
func (s *Session) GetDeviceVersion() error { return s.Submit(protocol.GetDeviceVersion{}) }

// GetDeviceAddress asks for the chip's Bluetooth address
func (s *Session) GetDeviceAddress() error { return s.Submit(protocol.GetDeviceAddress{}) }

// GetBatteryLevel asks for the supply voltage
func (s *Session) GetBatteryLevel() error { return s.Submit(protocol.GetBatteryLevel{}) }

// GetTemperature asks for the die temperature
func (s *Session) GetTemperature() error { return s.Submit(protocol.GetTemperature{}) }

// Sleep puts the chip into its low power mode
func (s *Session) Sleep() error { return s.Submit(protocol.Sleep{}) }

// Wakeup leaves sleep mode
func (s *Session) Wakeup() error { return s.Submit(protocol.Wakeup{}) }

// RadioReset resets the radio without losing the setup
func (s *Session) RadioReset() error { return s.Submit(protocol.RadioReset{}) }

// SetTxPower sets the radio output level
func (s *Session) SetTxPower(level protocol.TxPower) error {
	return s.Submit(protocol.SetTxPower{Level: level})
}

// Echo sends data the chip returns in an Echo event (test mode only on
// real hardware)
func (s *Session) Echo(data []byte) error {
	return s.Submit(protocol.Echo{Data: data})
}

// ChangeTiming asks the peer for new connection parameters. nil uses the
// preferred timing from the setup.
func (s *Session) ChangeTiming(params *protocol.TimingParams) error {
	return s.Submit(protocol.ChangeTimingRequest{Params: params})
}

// OpenRemotePipe subscribes to notifications on an RX pipe
func (s *Session) OpenRemotePipe(pipe uint8) error {
	return s.Submit(protocol.OpenRemotePipe{Pipe: pipe})
}

// CloseRemotePipe cancels a subscription opened by OpenRemotePipe
func (s *Session) CloseRemotePipe(pipe uint8) error {
	return s.Submit(protocol.CloseRemotePipe{Pipe: pipe})
}

// SetKey answers a KeyRequest event
func (s *Session) SetKey(kind protocol.KeyType, key []byte) error {
	return s.Submit(protocol.SetKey{Type: kind, Key: key})
}

// OpenAdvPipes selects the pipes whose data goes into advertisement packets
func (s *Session) OpenAdvPipes(pipes protocol.PipeBitmap) error {
	return s.Submit(protocol.OpenAdvPipe{Pipes: pipes})
}

// SetLocalData writes the local value of a pipe
func (s *Session) SetLocalData(pipe uint8, data []byte) error {
	return s.Submit(protocol.SetLocalData{Pipe: pipe, Data: data})
}
