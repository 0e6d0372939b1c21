package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goaci/bridge"
	"goaci/hal"
	"goaci/session"
	"goaci/transport"
)

const sample = `
board: redbearlab-v2012.07
pins:
  reqn: 9
  rdyn: 8
  reset: 4
timing:
  handshake: 250ms
  max_timeouts: 5
queues:
  commands: 4
  credit_max: 1
pipes:
  - number: 5
    direction: tx
  - number: 7
    direction: rx
setup: services.yaml
bridge:
  device: /dev/ttyACM0
`

func TestLoad(t *testing.T) {
	cfg, err := Load([]byte(sample))
	require.NoError(t, err)

	require.Equal(t, hal.Pins{Reqn: 9, Rdyn: 8, Reset: 4, Active: hal.Unused}, cfg.HALPins())

	topts := cfg.TransportOptions()
	require.Equal(t, transport.BoardRedBearLabV2012_07, topts.Board)
	require.Equal(t, 250*time.Millisecond, topts.Timeout)
	require.Equal(t, transport.DefaultPollInterval, topts.PollInterval)

	sopts := cfg.SessionOptions()
	require.Equal(t, 4, sopts.CommandDepth)
	require.Equal(t, session.DefaultEventDepth, sopts.EventDepth)
	require.Equal(t, 1, sopts.CreditMax)
	require.Equal(t, 5, sopts.MaxTimeouts)
	require.Equal(t, session.DefaultSetupStepTimeout, sopts.SetupStepTimeout)
	require.Equal(t, []session.PipeConfig{
		{Number: 5, Direction: session.DirectionTx},
		{Number: 7, Direction: session.DirectionRx},
	}, sopts.Pipes)

	require.Equal(t, "services.yaml", cfg.Setup)
	require.NotNil(t, cfg.Bridge)
	require.Equal(t, 115200, cfg.Bridge.Baud)
	require.Equal(t, 100*time.Millisecond, cfg.Bridge.ReadTimeout)
	require.Equal(t, bridge.DefaultTimeout, cfg.Bridge.ReplyTimeout)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte("pins: {reqn: 1, rdyn: 2}\n"))
	require.NoError(t, err)
	require.Equal(t, "default", cfg.Board)
	require.Equal(t, transport.DefaultTimeout, cfg.Timing.Handshake)
	require.Equal(t, hal.Unused, cfg.HALPins().Reset)
	require.Nil(t, cfg.Bridge)
}

func TestLoadPinZeroIsValid(t *testing.T) {
	cfg, err := Load([]byte("pins: {reqn: 0, rdyn: 1}\n"))
	require.NoError(t, err)
	require.Equal(t, hal.GPIOPin(0), cfg.HALPins().Reqn)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		err  error
	}{
		{"missing reqn", "pins: {rdyn: 2}\n", ErrMissingPin},
		{"missing rdyn", "pins: {reqn: 2}\n", ErrMissingPin},
		{"unknown board", "board: uno\npins: {reqn: 1, rdyn: 2}\n", ErrUnknownBoard},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.doc))
			require.ErrorIs(t, err, tc.err)
		})
	}

	bad := []string{
		"pins: {reqn: 1, rdyn: 2}\npipes: [{number: 3, direction: up}]\n",
		"pins: {reqn: 1, rdyn: 2}\npipes: [{number: 3, direction: tx}, {number: 3, direction: rx}]\n",
		"pins: {reqn: 1, rdyn: 2}\ntiming: {max_timeouts: -1}\n",
		"pins: {reqn: 1, rdyn: 2}\nbridge: {baud: 9600}\n",
		"pins: [\n",
	}
	for _, doc := range bad {
		_, err := Load([]byte(doc))
		require.Error(t, err, doc)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aci.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "redbearlab-v2012.07", cfg.Board)
	require.Equal(t, filepath.Join(filepath.Dir(path), "services.yaml"), cfg.Setup)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
