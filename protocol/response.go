package protocol

import "encoding/binary"

// DeviceVersion is the response to GetDeviceVersion
type DeviceVersion struct {
	ConfigurationID uint16
	ACIVersion      uint8
	SetupFormat     uint8
	SetupID         uint32
	SetupStatus     uint8 // 1 when the setup is locked
}

// DeviceAddress is the response to GetDeviceAddress
type DeviceAddress struct {
	Address [6]byte
	Type    uint8
}

// DeviceVersion decodes the response parameters of GetDeviceVersion
func (e CommandResponseEvent) DeviceVersion() (DeviceVersion, bool) {
	if e.Command != OpGetDeviceVersion || len(e.Params) < 9 {
		return DeviceVersion{}, false
	}
	p := e.Params
	return DeviceVersion{
		ConfigurationID: binary.LittleEndian.Uint16(p),
		ACIVersion:      p[2],
		SetupFormat:     p[3],
		SetupID:         binary.LittleEndian.Uint32(p[4:]),
		SetupStatus:     p[8],
	}, true
}

// DeviceAddress decodes the response parameters of GetDeviceAddress
func (e CommandResponseEvent) DeviceAddress() (DeviceAddress, bool) {
	if e.Command != OpGetDeviceAddress || len(e.Params) < 7 {
		return DeviceAddress{}, false
	}
	var a DeviceAddress
	copy(a.Address[:], e.Params)
	a.Type = e.Params[6]
	return a, true
}

// BatteryLevel returns the supply voltage in millivolts (3.52mV per step)
func (e CommandResponseEvent) BatteryLevel() (uint32, bool) {
	if e.Command != OpGetBatteryLevel || len(e.Params) < 2 {
		return 0, false
	}
	return uint32(binary.LittleEndian.Uint16(e.Params)) * 352 / 100, true
}

// Temperature returns the die temperature in quarter degrees Celsius
func (e CommandResponseEvent) Temperature() (int16, bool) {
	if e.Command != OpGetTemperature || len(e.Params) < 2 {
		return 0, false
	}
	return int16(binary.LittleEndian.Uint16(e.Params)), true
}
