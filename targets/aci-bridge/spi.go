//go:build rp2040 || rp2350

package main

import "machine"

// The nRF8001 runs SPI mode 0 at up to 3MHz, LSB first. The RP2040 PL022
// only shifts MSB first, so hosts set reverse_bits for this bridge.
const spiFrequency = 2 * machine.MHz

// InitSPI configures SPI0 on GPIO2 (SCK), GPIO3 (SDO) and GPIO4 (SDI)
func InitSPI() (*machine.SPI, error) {
	spi := machine.SPI0
	err := spi.Configure(machine.SPIConfig{
		Frequency: spiFrequency,
		SCK:       machine.GPIO2,
		SDO:       machine.GPIO3,
		SDI:       machine.GPIO4,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}
	return spi, nil
}
