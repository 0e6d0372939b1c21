// Package hal defines the hardware the ACI transport needs: four GPIO lines
// and an SPI bus. Target code (or the serial bridge) supplies implementations.
package hal

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// Unused marks an optional pin that is not wired
const Unused GPIOPin = 0xFFFFFFFF

// GPIODriver is the abstract GPIO interface that transport code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// ConfigureInput configures a floating digital input
	ConfigureInput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// Pins maps the nRF8001 control lines onto GPIO numbers.
// REQN and RDYN are active low.
type Pins struct {
	Reqn   GPIOPin // host request, output
	Rdyn   GPIOPin // chip ready, input with pull-up
	Reset  GPIOPin // chip reset, output (Unused if not wired)
	Active GPIOPin // radio active indicator, input (Unused if not wired)
}
