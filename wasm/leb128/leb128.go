package leb128

import (
	"errors"
	"fmt"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = maxVarintLen32
	maxVarintLen64 = 10
)

var (
	errOverflow32 = errors.New("overflows a 32-bit integer")
	errOverflow33 = errors.New("overflows a 33-bit integer")
	errOverflow64 = errors.New("overflows a 64-bit integer")

	// ErrUnexpectedEnd is returned when the input ends in the middle of a variable length integer.
	ErrUnexpectedEnd = errors.New("unexpected end of LEB128 input")
)

// EncodeInt32 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt64(value int64) (buf []byte) {
	for {
		// Take 7 remaining low-order bits from the value into b.
		b := uint8(value & 0x7f)
		// Extract the sign bit.
		s := uint8(value & 0x40)
		value >>= 7

		// The encoding unsigned numbers is simpler as it only needs to check if the value is non-zero to tell if there
		// are more bits to encode. Signed is a little more complicated as you have to double-check the sign bit.
		// If either case, set the high-order bit to tell the reader there are more bytes in this int.
		if (value != -1 || s == 0) && (value != 0 || s != 0) {
			b |= 0x80
		}

		// Append b into the buffer
		buf = append(buf, b)
		if b&0x80 == 0 {
			break
		}
	}
	return buf
}

// EncodeUint32 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint64(value uint64) (buf []byte) {
	// This is effectively a do/while loop where we take 7 bits of the value and encode them until it is zero.
	for {
		// Take 7 remaining low-order bits from the value into b.
		b := uint8(value & 0x7f)
		value = value >> 7

		// If there are remaining bits, the value won't be zero: Set the high-
		// order bit to tell the reader there are more bytes in this uint.
		if value != 0 {
			b |= 0x80
		}

		// Append b into the buffer
		buf = append(buf, b)
		if b&0x80 == 0 {
			return buf
		}
	}
}

// LoadUint32 decodes an unsigned 32-bit value from the start of buf, returning the value and the number of bytes read.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	v, n, err := decodeUnsigned(buf, maxVarintLen32, 32)
	if err != nil {
		if errors.Is(err, errOverflow64) {
			err = errOverflow32
		}
		return 0, n, err
	}
	return uint32(v), n, nil
}

// LoadUint64 decodes an unsigned 64-bit value from the start of buf, returning the value and the number of bytes read.
func LoadUint64(buf []byte) (ret uint64, bytesRead uint64, err error) {
	return decodeUnsigned(buf, maxVarintLen64, 64)
}

func decodeUnsigned(buf []byte, maxLen int, bits uint) (ret uint64, bytesRead uint64, err error) {
	var shift uint
	for i := 0; i < maxLen; i++ {
		if i >= len(buf) {
			return 0, uint64(i), ErrUnexpectedEnd
		}
		b := buf[i]
		if i == maxLen-1 {
			// The final byte may only carry the bits which remain.
			if b&0x80 != 0 || uint64(b)>>(bits-shift) != 0 {
				return 0, uint64(i + 1), errOverflow64
			}
		}
		ret |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return ret, uint64(i + 1), nil
		}
		shift += 7
	}
	return 0, uint64(maxLen), errOverflow64
}

// LoadInt32 decodes a signed 32-bit value from the start of buf, returning the value and the number of bytes read.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	v, n, err := decodeSigned(buf, maxVarintLen32, 32)
	if err != nil && err != ErrUnexpectedEnd {
		err = fmt.Errorf("%w: %v", errOverflow32, err)
	}
	if err != nil {
		return 0, n, err
	}
	return int32(v), n, nil
}

// LoadInt33AsInt64 decodes a signed 33-bit value, which is how block types referring to a type index are encoded.
func LoadInt33AsInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	v, n, err := decodeSigned(buf, maxVarintLen33, 33)
	if err != nil && err != ErrUnexpectedEnd {
		err = fmt.Errorf("%w: %v", errOverflow33, err)
	}
	if err != nil {
		return 0, n, err
	}
	return v, n, nil
}

// LoadInt64 decodes a signed 64-bit value from the start of buf, returning the value and the number of bytes read.
func LoadInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	v, n, err := decodeSigned(buf, maxVarintLen64, 64)
	if err != nil && err != ErrUnexpectedEnd {
		err = fmt.Errorf("%w: %v", errOverflow64, err)
	}
	if err != nil {
		return 0, n, err
	}
	return v, n, nil
}

func decodeSigned(buf []byte, maxLen int, bits uint) (ret int64, bytesRead uint64, err error) {
	var shift uint
	var b byte
	for i := 0; ; i++ {
		if i == maxLen {
			return 0, uint64(i), errors.New("too many bytes")
		}
		if i >= len(buf) {
			return 0, uint64(i), ErrUnexpectedEnd
		}
		b = buf[i]
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			bytesRead = uint64(i + 1)
			break
		}
	}

	if shift < 64 && b&0x40 != 0 {
		// Sign extend.
		ret |= -1 << shift
	}

	if bits < 64 {
		// The value must be representable with the given bit width.
		min, max := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if ret < min || ret > max {
			return 0, bytesRead, errors.New("value out of range")
		}
	} else if bytesRead == uint64(maxLen) {
		// The tenth byte only carries the sign bit, the remaining payload bits must match it.
		if last := buf[maxLen-1]; last != 0x00 && last != 0x7f {
			return 0, bytesRead, errors.New("unused bits must match the sign")
		}
	}
	return ret, bytesRead, nil
}
