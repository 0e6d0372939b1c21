package bridge

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxBytes holds any 32-bit value
const vlqMaxBytes = 5

// EncodeVLQUint writes v in 7-bit groups, most significant first. The top
// group is sign extended, so small values and values near 0xFFFFFFFF (the
// unused pin) both take a single byte.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	sv := int32(v)
	n := 1
	for n < vlqMaxBytes && !vlqFits(sv, n) {
		n++
	}

	var buf [vlqMaxBytes]byte
	for i := 0; i < n; i++ {
		buf[i] = byte(sv>>(7*(n-1-i))) & 0x7F
		if i < n-1 {
			buf[i] |= 0x80
		}
	}
	output.Output(buf[:n])
}

// vlqFits reports whether v survives n groups with sign extension
func vlqFits(v int32, n int) bool {
	bits := 7*n - 2
	return -(int32(1)<<bits) <= v && v < int32(3)<<bits
}

// DecodeVLQUint reads one value and advances data past it
func DecodeVLQUint(data *[]byte) (uint32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := (*data)[0]
	*data = (*data)[1:]
	v := uint32(c & 0x7F)
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}

	for n := 1; c&0x80 != 0; n++ {
		if n == vlqMaxBytes {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = (*data)[0]
		*data = (*data)[1:]
		v = v<<7 | uint32(c&0x7F)
	}
	return v, nil
}

// EncodeVLQBytes writes a length-prefixed byte string
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes reads a length-prefixed byte string. The result aliases data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	length, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if length > uint32(len(*data)) {
		return nil, ErrInvalidVLQ
	}
	result := (*data)[:length]
	*data = (*data)[length:]
	return result, nil
}
