package bridge

import (
	"tinygo.org/x/drivers"

	"goaci/hal"
)

// Reply status codes
const (
	StatusOK uint32 = iota
	StatusUnknownCommand
	StatusBadArgs
	StatusDriverError
)

// MaxTransfer is the longest SPI transfer that fits one request and its reply
const MaxTransfer = FrameLengthMax - FrameLengthMin - 4

// Server is the MCU half of the bridge. It executes requests on local GPIO
// and SPI drivers and frames the replies.
type Server struct {
	GPIO hal.GPIODriver
	SPI  drivers.SPI

	reader *FrameReader
	data   *ScratchOutput
	rx     [MaxTransfer]byte
}

func NewServer(gpio hal.GPIODriver, spi drivers.SPI) *Server {
	return &Server{
		GPIO:   gpio,
		SPI:    spi,
		reader: NewFrameReader(),
		data:   NewScratchOutput(),
	}
}

// Receive answers every complete request in input, appending one reply
// frame per request to out. It returns the number of requests handled.
func (s *Server) Receive(input InputBuffer, out OutputBuffer) int {
	n := 0
	for s.Next(input, out) {
		n++
	}
	return n
}

// Next answers the first complete request in input, if any. A frame-sized
// out holds exactly one reply.
func (s *Server) Next(input InputBuffer, out OutputBuffer) bool {
	f, ok := s.reader.Next(input)
	if !ok {
		return false
	}
	s.handle(f, out)
	return true
}

func (s *Server) handle(f Frame, out OutputBuffer) {
	payload := f.Payload
	cmd, err := DecodeVLQUint(&payload)
	if err != nil {
		return
	}

	s.data.Reset()
	status := s.execute(cmd, &payload, s.data)
	if status != StatusOK {
		s.data.Reset()
	}

	// the reply always fits: transfers are checked against MaxTransfer
	_ = EncodeFrame(out, f.Sequence, func(o OutputBuffer) {
		EncodeVLQUint(o, cmd)
		EncodeVLQUint(o, status)
		o.Output(s.data.Result())
	})
}

func (s *Server) execute(cmd uint32, args *[]byte, reply OutputBuffer) uint32 {
	switch cmd {
	case CmdConfigOutput, CmdConfigInputPullUp, CmdConfigInput:
		pin, err := DecodeVLQUint(args)
		if err != nil {
			return StatusBadArgs
		}
		p := hal.GPIOPin(pin)
		switch cmd {
		case CmdConfigOutput:
			err = s.GPIO.ConfigureOutput(p)
		case CmdConfigInputPullUp:
			err = s.GPIO.ConfigureInputPullUp(p)
		default:
			err = s.GPIO.ConfigureInput(p)
		}
		if err != nil {
			return StatusDriverError
		}

	case CmdSetPin:
		pin, err := DecodeVLQUint(args)
		if err != nil {
			return StatusBadArgs
		}
		v, err := DecodeVLQUint(args)
		if err != nil {
			return StatusBadArgs
		}
		if s.GPIO.SetPin(hal.GPIOPin(pin), v != 0) != nil {
			return StatusDriverError
		}

	case CmdGetPin:
		pin, err := DecodeVLQUint(args)
		if err != nil {
			return StatusBadArgs
		}
		high, err := s.GPIO.GetPin(hal.GPIOPin(pin))
		if err != nil {
			return StatusDriverError
		}
		var v uint32
		if high {
			v = 1
		}
		EncodeVLQUint(reply, v)

	case CmdSPITransfer:
		w, err := DecodeVLQBytes(args)
		if err != nil || len(w) > MaxTransfer {
			return StatusBadArgs
		}
		r := s.rx[:len(w)]
		if s.SPI.Tx(w, r) != nil {
			return StatusDriverError
		}
		EncodeVLQBytes(reply, r)

	default:
		return StatusUnknownCommand
	}
	return StatusOK
}
