//go:build !wasm

package bridge

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is the serial link to the bridge MCU
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// SerialConfig locates the bridge MCU
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// ReadTimeout bounds a single read; 0 blocks
	ReadTimeout time.Duration
}

// OpenPort opens a native serial port and drops anything left in it
func OpenPort(cfg SerialConfig) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}

// Open opens the serial port and wraps it in a Bridge
func Open(cfg SerialConfig, timeout time.Duration) (*Bridge, error) {
	port, err := OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, timeout), nil
}
