// Package config loads the device description: pins, board, timing, queue
// sizes, the pipe table and where the setup script and serial bridge live.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"goaci/bridge"
	"goaci/hal"
	"goaci/session"
	"goaci/transport"
)

// Config is the root of the YAML document
type Config struct {
	Board string     `yaml:"board"` // "default", "redbearlab-v1.1", "redbearlab-v2012.07"
	Pins  PinsConfig `yaml:"pins"`

	// ReverseBits mirrors every SPI byte for controllers without LSB-first mode
	ReverseBits bool `yaml:"reverse_bits"`

	Timing TimingConfig  `yaml:"timing"`
	Queues QueueConfig   `yaml:"queues"`
	Pipes  []PipeConfig  `yaml:"pipes"`
	Setup  string        `yaml:"setup"` // path of the setup script
	Bridge *BridgeConfig `yaml:"bridge,omitempty"`
	Debug  bool          `yaml:"debug"`
}

type PinsConfig struct {
	Reqn   *uint32 `yaml:"reqn"`
	Rdyn   *uint32 `yaml:"rdyn"`
	Reset  *uint32 `yaml:"reset,omitempty"`
	Active *uint32 `yaml:"active,omitempty"`
}

type TimingConfig struct {
	Handshake    time.Duration `yaml:"handshake"`     // wait for RDYN
	PollInterval time.Duration `yaml:"poll_interval"` // RDYN sampling period
	SetupStep    time.Duration `yaml:"setup_step"`    // wait for each setup ack
	MaxTimeouts  int           `yaml:"max_timeouts"`  // consecutive, 0 = never fail
}

type QueueConfig struct {
	Commands  int `yaml:"commands"`
	Events    int `yaml:"events"`
	CreditMax int `yaml:"credit_max"`
}

type PipeConfig struct {
	Number    uint8  `yaml:"number"`
	Direction string `yaml:"direction"` // "tx" or "rx"
}

// BridgeConfig locates the serial bridge MCU
type BridgeConfig struct {
	Device       string        `yaml:"device"`
	Baud         int           `yaml:"baud"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

var (
	ErrMissingPin   = errors.New("required pin not set")
	ErrUnknownBoard = errors.New("unknown board")
)

// Load parses a YAML configuration and applies defaults
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses path. A relative setup path is taken relative
// to the directory holding the configuration.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, err
	}
	if cfg.Setup != "" && !filepath.IsAbs(cfg.Setup) {
		cfg.Setup = filepath.Join(filepath.Dir(path), cfg.Setup)
	}
	return cfg, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.Board == "" {
		cfg.Board = "default"
	}

	if cfg.Timing.Handshake == 0 {
		cfg.Timing.Handshake = transport.DefaultTimeout
	}
	if cfg.Timing.PollInterval == 0 {
		cfg.Timing.PollInterval = transport.DefaultPollInterval
	}
	if cfg.Timing.SetupStep == 0 {
		cfg.Timing.SetupStep = session.DefaultSetupStepTimeout
	}

	if cfg.Queues.Commands == 0 {
		cfg.Queues.Commands = session.DefaultCommandDepth
	}
	if cfg.Queues.Events == 0 {
		cfg.Queues.Events = session.DefaultEventDepth
	}

	if b := cfg.Bridge; b != nil {
		if b.Baud == 0 {
			b.Baud = 115200
		}
		if b.ReadTimeout == 0 {
			b.ReadTimeout = 100 * time.Millisecond
		}
		if b.ReplyTimeout == 0 {
			b.ReplyTimeout = bridge.DefaultTimeout
		}
	}
}

// Validate checks values applyDefaults cannot fix
func (c *Config) Validate() error {
	if _, err := c.TransportBoard(); err != nil {
		return err
	}
	if c.Pins.Reqn == nil {
		return fmt.Errorf("%w: reqn", ErrMissingPin)
	}
	if c.Pins.Rdyn == nil {
		return fmt.Errorf("%w: rdyn", ErrMissingPin)
	}
	if c.Timing.MaxTimeouts < 0 {
		return fmt.Errorf("timing.max_timeouts must not be negative")
	}
	if c.Queues.Commands < 0 || c.Queues.Events < 0 || c.Queues.CreditMax < 0 {
		return fmt.Errorf("queue sizes must not be negative")
	}
	if _, err := c.SessionPipes(); err != nil {
		return err
	}
	if c.Bridge != nil && c.Bridge.Device == "" {
		return fmt.Errorf("bridge.device is required")
	}
	return nil
}

// TransportBoard maps the board name onto transport.Board
func (c *Config) TransportBoard() (transport.Board, error) {
	switch c.Board {
	case "", "default":
		return transport.BoardDefault, nil
	case "redbearlab-v1.1":
		return transport.BoardRedBearLabV11, nil
	case "redbearlab-v2012.07":
		return transport.BoardRedBearLabV2012_07, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBoard, c.Board)
}

// HALPins converts the pin section, marking absent optional pins Unused
func (c *Config) HALPins() hal.Pins {
	pin := func(p *uint32) hal.GPIOPin {
		if p == nil {
			return hal.Unused
		}
		return hal.GPIOPin(*p)
	}
	return hal.Pins{
		Reqn:   pin(c.Pins.Reqn),
		Rdyn:   pin(c.Pins.Rdyn),
		Reset:  pin(c.Pins.Reset),
		Active: pin(c.Pins.Active),
	}
}

// TransportOptions derives the handshake settings
func (c *Config) TransportOptions() transport.Options {
	board, _ := c.TransportBoard()
	return transport.Options{
		Timeout:      c.Timing.Handshake,
		PollInterval: c.Timing.PollInterval,
		Board:        board,
		Debug:        c.Debug,
	}
}

// SessionPipes converts the pipe table
func (c *Config) SessionPipes() ([]session.PipeConfig, error) {
	pipes := make([]session.PipeConfig, 0, len(c.Pipes))
	seen := map[uint8]bool{}
	for _, p := range c.Pipes {
		dir, err := session.ParseDirection(p.Direction)
		if err != nil {
			return nil, fmt.Errorf("pipe %d: %w", p.Number, err)
		}
		if seen[p.Number] {
			return nil, fmt.Errorf("pipe %d declared twice", p.Number)
		}
		seen[p.Number] = true
		pipes = append(pipes, session.PipeConfig{Number: p.Number, Direction: dir})
	}
	return pipes, nil
}

// SessionOptions derives the session settings
func (c *Config) SessionOptions() session.Options {
	pipes, _ := c.SessionPipes()
	return session.Options{
		CommandDepth:     c.Queues.Commands,
		EventDepth:       c.Queues.Events,
		CreditMax:        c.Queues.CreditMax,
		MaxTimeouts:      c.Timing.MaxTimeouts,
		SetupStepTimeout: c.Timing.SetupStep,
		Pipes:            pipes,
	}
}
