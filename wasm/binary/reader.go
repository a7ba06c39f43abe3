package binary

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/leb128"
)

// reader is a cursor over an in-memory binary. Positions are relative to the start of buf.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) peekByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, wasm.ErrUnexpectedEnd
	}
	return r.buf[r.pos], nil
}

func (r *reader) readByte() (byte, error) {
	b, err := r.peekByte()
	if err == nil {
		r.pos++
	}
	return b, err
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, wasm.ErrUnexpectedEnd
	}
	ret := r.buf[r.pos : r.pos+n]
	r.pos += n
	return ret, nil
}

// leb wraps an error of the leb128 package, mapping truncation to wasm.ErrUnexpectedEnd.
func leb(err error) error {
	if errors.Is(err, leb128.ErrUnexpectedEnd) {
		return wasm.ErrUnexpectedEnd
	}
	return err
}

func (r *reader) readU32() (uint32, error) {
	v, n, err := leb128.LoadUint32(r.buf[r.pos:])
	if err != nil {
		return 0, leb(err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readS32() (int32, error) {
	v, n, err := leb128.LoadInt32(r.buf[r.pos:])
	if err != nil {
		return 0, leb(err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readS33() (int64, error) {
	v, n, err := leb128.LoadInt33AsInt64(r.buf[r.pos:])
	if err != nil {
		return 0, leb(err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readS64() (int64, error) {
	v, n, err := leb128.LoadInt64(r.buf[r.pos:])
	if err != nil {
		return 0, leb(err)
	}
	r.pos += int(n)
	return v, nil
}

// readFixed32 reads the little-endian bits of an f32 constant.
func (r *reader) readFixed32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// readFixed64 reads the little-endian bits of an f64 constant.
func (r *reader) readFixed64() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func isValueType(b byte) bool {
	switch b {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeV128, wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return true
	}
	return false
}

func (r *reader) readValueType() (wasm.ValueType, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if !isValueType(b) {
		return 0, fmt.Errorf("%w: invalid value type %#x", wasm.ErrInvalidByte, b)
	}
	return b, nil
}

func (r *reader) readValueTypes() ([]wasm.ValueType, error) {
	n, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}
	if n == 0 {
		return nil, nil
	} else if int(n) > r.remaining() {
		return nil, wasm.ErrUnexpectedEnd
	}
	ret := make([]wasm.ValueType, n)
	for i := range ret {
		if ret[i], err = r.readValueType(); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (r *reader) readName() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", fmt.Errorf("read size of name: %w", err)
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", fmt.Errorf("read name: %w", err)
	}
	return string(b), nil
}
