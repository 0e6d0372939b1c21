package bridge

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame layout: [len][seq][payload...][crc hi][crc lo][0x7E]
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameLengthMin   = FrameHeaderSize + FrameTrailerSize
	FrameLengthMax   = 64
	FrameSync        = 0x7E

	framePositionLen = 0
	framePositionSeq = 1
	frameTrailerCRC  = 3
	frameTrailerSync = 1

	SeqDest = 0x10 // high nibble of every sequence byte
	SeqMask = 0x0F
)

var ErrFrameTooLong = errors.New("frame too long")

// Frame is one verified frame
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// EncodeFrame appends a complete frame to out. body writes the payload.
func EncodeFrame(out OutputBuffer, seq uint8, body func(output OutputBuffer)) error {
	cursor := out.CurPosition()
	out.Output([]byte{0, seq})
	if body != nil {
		body(out)
	}

	length := len(out.DataSince(cursor)) + FrameTrailerSize
	if length > FrameLengthMax {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLong, length, FrameLengthMax)
	}
	out.Update(cursor+framePositionLen, uint8(length))

	crc := CRC16(out.DataSince(cursor))
	out.Output([]byte{uint8(crc >> 8), uint8(crc), FrameSync})
	return nil
}

// FrameReader extracts frames from a byte stream, resynchronizing on the
// sync byte after any corrupt frame.
type FrameReader struct {
	synced bool
}

func NewFrameReader() *FrameReader {
	return &FrameReader{synced: true}
}

// Next returns the next complete frame in input and consumes it along with
// any garbage before it. Incomplete trailing bytes stay in input.
func (r *FrameReader) Next(input InputBuffer) (Frame, bool) {
	data := input.Data()
	defer func() {
		if consumed := input.Available() - len(data); consumed > 0 {
			input.Pop(consumed)
		}
	}()

	for len(data) > 0 {
		if !r.synced {
			i := bytes.IndexByte(data, FrameSync)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			r.synced = true
			continue
		}

		if data[0] == FrameSync {
			data = data[1:]
			continue
		}
		if len(data) < FrameLengthMin {
			break
		}

		n := int(data[framePositionLen])
		if n < FrameLengthMin || n > FrameLengthMax {
			r.synced = false
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-frameTrailerSync] != FrameSync {
			r.synced = false
			continue
		}
		crc := uint16(data[n-frameTrailerCRC])<<8 | uint16(data[n-frameTrailerCRC+1])
		if crc != CRC16(data[:n-FrameTrailerSize]) {
			r.synced = false
			continue
		}

		f := Frame{
			Sequence: data[framePositionSeq],
			Payload:  append([]byte(nil), data[FrameHeaderSize:n-FrameTrailerSize]...),
		}
		data = data[n:]
		return f, true
	}
	return Frame{}, false
}
