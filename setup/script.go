// Package setup replays the chip configuration script and tracks its
// acknowledgements.
package setup

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"goaci/protocol"
)

// Script is an immutable, ordered list of framed Setup command packets
type Script struct {
	packets []protocol.Packet
}

// NewScript copies and validates packets. Each entry must be a complete
// [length][0x06][payload] frame.
func NewScript(packets [][]byte) (*Script, error) {
	if len(packets) == 0 {
		return nil, ErrEmptyScript
	}
	s := &Script{packets: make([]protocol.Packet, len(packets))}
	for i, raw := range packets {
		p := protocol.Packet(raw).Clone()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidScript, i, err)
		}
		if protocol.CommandOpcode(p.Opcode()) != protocol.OpSetup {
			return nil, fmt.Errorf("%w: entry %d has opcode %s", ErrInvalidScript, i, protocol.CommandOpcode(p.Opcode()))
		}
		s.packets[i] = p
	}
	return s, nil
}

// Len returns the number of setup commands
func (s *Script) Len() int { return len(s.packets) }

// At returns a copy of entry i
func (s *Script) At(i int) protocol.Packet {
	return s.packets[i].Clone()
}

// scriptFile is the on-disk form produced from the device configuration
type scriptFile struct {
	Setup []string `yaml:"setup"`
}

// LoadScript reads a YAML document of hex-encoded setup frames:
//
//	setup:
//	  - "07 06 00 00 03 02 42 07"
func LoadScript(r io.Reader) (*Script, error) {
	var f scriptFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode setup script: %w", err)
	}
	packets := make([][]byte, 0, len(f.Setup))
	for i, line := range f.Setup {
		b, err := ParseHex(line)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidScript, i, err)
		}
		packets = append(packets, b)
	}
	return NewScript(packets)
}

// LoadScriptFile reads a setup script from path
func LoadScriptFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open setup script: %w", err)
	}
	defer f.Close()
	return LoadScript(f)
}

// ParseHex accepts "0x07, 0x06, ..." or "07 06 ..." or "0706..."
func ParseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "0x", "")
	s = strings.ReplaceAll(s, "0X", "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(s)
}
