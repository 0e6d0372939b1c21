package setup

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"goaci/protocol"
)

func setupFrames(t *testing.T, n int) [][]byte {
	t.Helper()
	frames := make([][]byte, n)
	for i := range frames {
		p, err := protocol.Encode(protocol.Setup{Data: []byte{uint8(i), 0x00, 0x03, 0x02, 0x42, 0x07}})
		require.NoError(t, err)
		frames[i] = p
	}
	return frames
}

func ack(status protocol.Status) protocol.Event {
	return protocol.CommandResponseEvent{Command: protocol.OpSetup, Status: status}
}

func TestNewScriptValidates(t *testing.T) {
	_, err := NewScript(nil)
	require.ErrorIs(t, err, ErrEmptyScript)

	_, err = NewScript([][]byte{{3, 0x06, 0x00}})
	require.ErrorIs(t, err, ErrInvalidScript)

	sleep, _ := protocol.Encode(protocol.Sleep{})
	_, err = NewScript([][]byte{sleep})
	require.ErrorIs(t, err, ErrInvalidScript)
}

func TestScriptIsImmutable(t *testing.T) {
	frames := setupFrames(t, 1)
	s, err := NewScript(frames)
	require.NoError(t, err)

	frames[0][2] = 0xff
	require.Equal(t, byte(0x00), s.At(0)[2])

	p := s.At(0)
	p[2] = 0xee
	require.Equal(t, byte(0x00), s.At(0)[2])
}

func TestRunnerSendsInOrder(t *testing.T) {
	frames := setupFrames(t, 3)
	s, err := NewScript(frames)
	require.NoError(t, err)
	r := NewRunner(s)

	require.Equal(t, protocol.Packet(frames[0]), r.Start())

	step, next := r.Handle(ack(protocol.StatusTransactionContinue))
	require.Equal(t, StepNext, step)
	require.Equal(t, protocol.Packet(frames[1]), next)

	// unrelated traffic does not move the cursor
	step, _ = r.Handle(protocol.DataCreditEvent{Credit: 1})
	require.Equal(t, StepIgnored, step)
	step, _ = r.Handle(protocol.CommandResponseEvent{Command: protocol.OpEcho})
	require.Equal(t, StepIgnored, step)
	require.Equal(t, 1, r.Index())

	step, next = r.Handle(ack(protocol.StatusTransactionContinue))
	require.Equal(t, StepNext, step)
	require.Equal(t, protocol.Packet(frames[2]), next)

	require.ErrorIs(t, r.Incomplete(), ErrSetupIncomplete)

	step, next = r.Handle(ack(protocol.StatusTransactionComplete))
	require.Equal(t, StepComplete, step)
	require.Nil(t, next)
	require.True(t, r.Done())
	require.NoError(t, r.Err())
	require.NoError(t, r.Incomplete())

	step, _ = r.Handle(ack(protocol.StatusTransactionComplete))
	require.Equal(t, StepIgnored, step)
}

func TestRunnerRejection(t *testing.T) {
	s, err := NewScript(setupFrames(t, 2))
	require.NoError(t, err)
	r := NewRunner(s)
	r.Start()

	step, _ := r.Handle(ack(protocol.StatusTransactionContinue))
	require.Equal(t, StepNext, step)

	step, next := r.Handle(ack(protocol.StatusErrorCRCMismatch))
	require.Equal(t, StepRejected, step)
	require.Nil(t, next)

	var rejected *RejectedError
	require.True(t, errors.As(r.Err(), &rejected))
	require.Equal(t, 1, rejected.Index)
	require.Equal(t, protocol.StatusErrorCRCMismatch, rejected.Status)
	require.ErrorIs(t, r.Err(), ErrSetupRejected)
}

func TestRunnerIgnoresBeforeStart(t *testing.T) {
	s, err := NewScript(setupFrames(t, 1))
	require.NoError(t, err)
	r := NewRunner(s)
	step, _ := r.Handle(ack(protocol.StatusTransactionComplete))
	require.Equal(t, StepIgnored, step)
	require.False(t, r.Started())
}

func TestLoadScript(t *testing.T) {
	doc := `
setup:
  - "07 06 00 00 03 02 42 07"
  - "0x07, 0x06, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00"
`
	s, err := LoadScript(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	require.Equal(t, protocol.Packet{0x07, 0x06, 0x00, 0x00, 0x03, 0x02, 0x42, 0x07}, s.At(0))
	require.Equal(t, uint8(0x10), s.At(1)[2])
}

func TestLoadScriptErrors(t *testing.T) {
	_, err := LoadScript(strings.NewReader("setup: []\n"))
	require.ErrorIs(t, err, ErrEmptyScript)

	_, err = LoadScript(strings.NewReader("setup:\n  - \"zz\"\n"))
	require.ErrorIs(t, err, ErrInvalidScript)

	_, err = LoadScript(strings.NewReader("setup: [\n"))
	require.Error(t, err)
}
