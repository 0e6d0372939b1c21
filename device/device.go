// Package device assembles a ready-to-use ACI session from a configuration:
// GPIO and SPI drivers (native or through the serial bridge), the handshake
// transport, and the session with its setup script.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"tinygo.org/x/drivers"

	"goaci/bridge"
	"goaci/config"
	"goaci/hal"
	"goaci/session"
	"goaci/setup"
	"goaci/transport"
)

var ErrNoBridge = errors.New("no bridge configured")

// Device owns the session and everything below it
type Device struct {
	Config    *config.Config
	Transport *transport.HandshakeTransport
	Session   *session.Session

	closer io.Closer
}

// New wires gpio and spi to a handshake transport, resets the chip and
// attaches a session. The chip is not set up until Start.
func New(cfg *config.Config, gpio hal.GPIODriver, spi drivers.SPI) (*Device, error) {
	if cfg.ReverseBits {
		spi = hal.ReverseSPI{Bus: spi}
	}

	tr := transport.NewHandshakeTransport(gpio, spi, cfg.HALPins(), cfg.TransportOptions())
	if err := tr.Init(); err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}

	s, err := session.New(tr, cfg.SessionOptions())
	if err != nil {
		return nil, err
	}
	return &Device{Config: cfg, Transport: tr, Session: s}, nil
}

// OpenBridge opens the serial bridge named in cfg and builds a Device on it
func OpenBridge(cfg *config.Config) (*Device, error) {
	if cfg.Bridge == nil {
		return nil, ErrNoBridge
	}
	b, err := bridge.Open(bridge.SerialConfig{
		Device:      cfg.Bridge.Device,
		Baud:        cfg.Bridge.Baud,
		ReadTimeout: cfg.Bridge.ReadTimeout,
	}, cfg.Bridge.ReplyTimeout)
	if err != nil {
		return nil, err
	}
	glog.Infof("aci: bridge on %s", cfg.Bridge.Device)

	d, err := New(cfg, b, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	d.closer = b
	return d, nil
}

// LoadScript reads the setup script named in cfg. A configuration without
// one yields a nil script, which only works with a chip that already holds
// its setup.
func LoadScript(cfg *config.Config) (*setup.Script, error) {
	if cfg.Setup == "" {
		return nil, nil
	}
	return setup.LoadScriptFile(cfg.Setup)
}

// Start loads the configured setup script and opens the session
func (d *Device) Start(ctx context.Context) error {
	script, err := LoadScript(d.Config)
	if err != nil {
		return err
	}
	return d.Session.Open(ctx, script)
}

// Close detaches the session and closes the bridge, if any
func (d *Device) Close() error {
	d.Session.Close()
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
