package hal

import (
	"math/bits"

	"tinygo.org/x/drivers"
)

// The nRF8001 shifts bytes LSB first. Controllers that only shift MSB first
// wrap their bus in ReverseSPI, which mirrors every byte in both directions.
type ReverseSPI struct {
	Bus drivers.SPI
}

// Transfer mirrors one byte out and the reply back
func (r ReverseSPI) Transfer(b byte) (byte, error) {
	got, err := r.Bus.Transfer(bits.Reverse8(b))
	return bits.Reverse8(got), err
}

// Tx mirrors w into a scratch buffer and r after the transfer
func (r ReverseSPI) Tx(w, rx []byte) error {
	var out []byte
	if w != nil {
		out = make([]byte, len(w))
		for i, b := range w {
			out[i] = bits.Reverse8(b)
		}
	}
	if err := r.Bus.Tx(out, rx); err != nil {
		return err
	}
	for i, b := range rx {
		rx[i] = bits.Reverse8(b)
	}
	return nil
}

var _ drivers.SPI = ReverseSPI{}
