package bytecode

import "encoding/binary"

// order is the byte order of every multi-byte field. Encoded code is never shared across hosts
// without re-translation, so the host order is used.
var order = binary.NativeEndian

// Buffer is an append-only sequence of encoded instructions.
type Buffer struct {
	b []byte
}

// Len returns the number of encoded bytes, which is also the position of the next instruction.
func (b *Buffer) Len() int {
	return len(b.b)
}

// Bytes returns the encoded bytes. The returned slice aliases the buffer until the next write.
func (b *Buffer) Bytes() []byte {
	return b.b
}

// Reset empties the buffer while keeping its capacity.
func (b *Buffer) Reset() {
	b.b = b.b[:0]
}

// Truncate discards every byte from position n on.
func (b *Buffer) Truncate(n int) {
	b.b = b.b[:n]
}

// Put encodes instr and returns the position of its first byte.
func (b *Buffer) Put(instr Instruction) int {
	pos := len(b.b)
	instr.Encode(b)
	return pos
}

func (b *Buffer) putU8(v uint8) {
	b.b = append(b.b, v)
}

func (b *Buffer) putU16(v uint16) {
	b.b = order.AppendUint16(b.b, v)
}

func (b *Buffer) putU32(v uint32) {
	b.b = order.AppendUint32(b.b, v)
}

func (b *Buffer) putU64(v uint64) {
	b.b = order.AppendUint64(b.b, v)
}

func (b *Buffer) putOpCode(o OpCode) { b.putU16(uint16(o)) }
func (b *Buffer) putSlot(s Slot) { b.putU16(uint16(s)) }
func (b *Buffer) putOffset(o BranchOffset) { b.putU32(uint32(o)) }
func (b *Buffer) putOffset16(o BranchOffset16) { b.putU16(uint16(o)) }
func (b *Buffer) putImm16(v Imm16) { b.putU16(uint16(v)) }
func (b *Buffer) putComparator(c Comparator) { b.putU8(uint8(c)) }

func (b *Buffer) putSlotList(l SlotList) {
	b.putU16(uint16(len(l)))
	for _, s := range l {
		b.putSlot(s)
	}
}

func (b *Buffer) putOffsetList(l BranchOffsetList) {
	b.putU16(uint16(len(l)))
	for _, o := range l {
		b.putOffset(o)
	}
}

// PatchOffset overwrites the 32-bit branch offset field at pos.
func (b *Buffer) PatchOffset(pos int, o BranchOffset) {
	order.PutUint32(b.b[pos:], uint32(o))
}

// PatchOffset16 overwrites the 16-bit branch offset field at pos.
func (b *Buffer) PatchOffset16(pos int, o BranchOffset16) {
	order.PutUint16(b.b[pos:], uint16(o))
}

// PatchAt overwrites the bytes starting at pos with the encoding of instr.
//
// The caller must make sure instr has the same encoded length as the instruction it replaces.
func (b *Buffer) PatchAt(pos int, instr Instruction) {
	tail := append([]byte(nil), b.b[pos+EncodedLen(instr):]...)
	b.b = b.b[:pos]
	instr.Encode(b)
	b.b = append(b.b, tail...)
}

// EncodedLen returns the number of bytes instr occupies once encoded.
func EncodedLen(instr Instruction) int {
	var scratch Buffer
	instr.Encode(&scratch)
	return len(scratch.b)
}
