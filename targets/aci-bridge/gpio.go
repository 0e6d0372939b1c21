//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"goaci/hal"
)

var errInvalidPin = errors.New("invalid GPIO pin")

// RPGPIODriver implements hal.GPIODriver on the RP2040/RP2350 GPIO bank.
// Pin numbers map directly onto GPIO numbers.
type RPGPIODriver struct {
	configuredPins map[hal.GPIOPin]machine.Pin
}

func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[hal.GPIOPin]machine.Pin),
	}
}

func (d *RPGPIODriver) configure(pin hal.GPIOPin, mode machine.PinMode) error {
	if pin > 47 {
		return errInvalidPin
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: mode})
	d.configuredPins[pin] = p
	return nil
}

func (d *RPGPIODriver) ConfigureOutput(pin hal.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

func (d *RPGPIODriver) ConfigureInputPullUp(pin hal.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

func (d *RPGPIODriver) ConfigureInput(pin hal.GPIOPin) error {
	return d.configure(pin, machine.PinInput)
}

// SetPin drives a pin, configuring it as an output on first use
func (d *RPGPIODriver) SetPin(pin hal.GPIOPin, value bool) error {
	p, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		p = d.configuredPins[pin]
	}
	p.Set(value)
	return nil
}

// GetPin reads a configured pin; unconfigured pins read low
func (d *RPGPIODriver) GetPin(pin hal.GPIOPin) (bool, error) {
	p, exists := d.configuredPins[pin]
	if !exists {
		return false, nil
	}
	return p.Get(), nil
}

var _ hal.GPIODriver = (*RPGPIODriver)(nil)
