package bytecode

import (
	"fmt"
)

// DecodeErrorKind classifies a DecodeError.
type DecodeErrorKind byte

const (
	// OutOfBytes means the input ended in the middle of an instruction.
	OutOfBytes DecodeErrorKind = iota
	// InvalidOpCode means the discriminant does not identify an instruction.
	InvalidOpCode
	// InvalidBitPattern means an enumerated operand such as a Comparator holds an unknown value.
	InvalidBitPattern
)

func (k DecodeErrorKind) String() string {
	switch k {
	case OutOfBytes:
		return "out of bytes"
	case InvalidOpCode:
		return "invalid opcode"
	case InvalidBitPattern:
		return "invalid bit pattern"
	}
	return fmt.Sprintf("decode error kind(%d)", byte(k))
}

// DecodeError is returned by Decoder when the input is not a valid encoding.
type DecodeError struct {
	// Offset is the position of the offending field.
	Offset int
	Kind   DecodeErrorKind
	// Value is the raw value of the offending field. Zero for OutOfBytes.
	Value uint64
}

func (e *DecodeError) Error() string {
	if e.Kind == OutOfBytes {
		return fmt.Sprintf("decode at %d: %s", e.Offset, e.Kind)
	}
	return fmt.Sprintf("decode at %d: %s %#x", e.Offset, e.Kind, e.Value)
}

// reader reads fields from encoded code. In checked mode the first failure is kept in err and
// subsequent reads return zero values. In unchecked mode no validation happens.
type reader struct {
	code    []byte
	pos     int
	checked bool
	err     *DecodeError
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.checked && len(r.code)-r.pos < n {
		r.err = &DecodeError{Offset: r.pos, Kind: OutOfBytes}
		return nil
	}
	b := r.code[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return order.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return order.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return order.Uint64(b)
	}
	return 0
}

func (r *reader) slot() Slot { return Slot(r.u16()) }
func (r *reader) offset() BranchOffset { return BranchOffset(int32(r.u32())) }
func (r *reader) offset16() BranchOffset16 { return BranchOffset16(int16(r.u16())) }
func (r *reader) imm16() Imm16 { return Imm16(int16(r.u16())) }

// enum reads a byte which must be below end.
func (r *reader) enum(end uint8) uint8 {
	pos := r.pos
	v := r.u8()
	if r.checked && r.err == nil && v >= end {
		r.err = &DecodeError{Offset: pos, Kind: InvalidBitPattern, Value: uint64(v)}
	}
	return v
}

func (r *reader) comparator() Comparator { return Comparator(r.enum(uint8(comparatorEnd))) }
func (r *reader) trapCode() TrapCode { return TrapCode(r.enum(uint8(trapCodeEnd))) }
func (r *reader) sign() Sign { return Sign(r.enum(uint8(signEnd))) }

func (r *reader) slotList() SlotList {
	n := int(r.u16())
	if r.err != nil {
		return nil
	}
	if r.checked && len(r.code)-r.pos < 2*n {
		r.err = &DecodeError{Offset: r.pos, Kind: OutOfBytes}
		return nil
	}
	l := make(SlotList, n)
	for i := range l {
		l[i] = r.slot()
	}
	return l
}

func (r *reader) offsetList() BranchOffsetList {
	n := int(r.u16())
	if r.err != nil {
		return nil
	}
	if r.checked && len(r.code)-r.pos < 4*n {
		r.err = &DecodeError{Offset: r.pos, Kind: OutOfBytes}
		return nil
	}
	l := make(BranchOffsetList, n)
	for i := range l {
		l[i] = r.offset()
	}
	return l
}

func (r *reader) opCode() OpCode {
	pos := r.pos
	op := OpCode(r.u16())
	if r.checked && r.err == nil && !op.IsValid() {
		r.err = &DecodeError{Offset: pos, Kind: InvalidOpCode, Value: uint64(op)}
	}
	return op
}

// instruction reads one instruction. The result is undefined if r.err is set afterwards.
func (r *reader) instruction() Instruction {
	op := r.opCode()
	if r.err != nil {
		return nil
	}
	switch op.Shape() {
	case shapeTrap:
		return Trap{Code: r.trapCode()}
	case shapeConsumeFuel:
		return ConsumeFuel{Fuel: BlockFuel(r.u64())}
	case shapeReturn:
		return Return{}
	case shapeReturnSlot:
		return ReturnSlot{Value: r.slot()}
	case shapeReturnImm32:
		return ReturnImm32{Value: r.u32()}
	case shapeReturnImm64:
		return ReturnImm64{Value: r.u64()}
	case shapeReturnMany:
		return ReturnMany{Values: r.slotList()}
	case shapeBranch:
		return Branch{Offset: r.offset()}
	case shapeBranchIf:
		return BranchIf{Code: op, Condition: r.slot(), Offset: r.offset()}
	case shapeBranchCmp:
		return BranchCmp{Cmp: r.comparator(), Lhs: r.slot(), Rhs: r.slot(), Offset: r.offset16()}
	case shapeBranchCmpWide:
		return BranchCmpWide{Cmp: r.comparator(), Lhs: r.slot(), Rhs: r.slot(), Offset: r.offset()}
	case shapeBranchCmpImm:
		return BranchCmpImm{Cmp: r.comparator(), Lhs: r.slot(), Rhs: r.imm16(), Offset: r.offset()}
	case shapeBranchTable:
		return BranchTable{Index: r.slot(), Targets: r.offsetList()}
	case shapeCopy:
		return Copy{Result: r.slot(), Value: r.slot()}
	case shapeCopyImm32:
		return CopyImm32{Result: r.slot(), Value: r.u32()}
	case shapeCopyImm64:
		return CopyImm64{Result: r.slot(), Value: r.u64()}
	case shapeSelect:
		return Select{Result: r.slot(), Condition: r.slot(), Lhs: r.slot(), Rhs: r.slot()}
	case shapeCall:
		return Call{Results: r.slot(), Func: r.u32(), Params: r.slotList()}
	case shapeCallIndirect:
		return CallIndirect{Results: r.slot(), Index: r.slot(), Type: r.u32(), Table: r.u32(), Params: r.slotList()}
	case shapeReturnCall:
		return ReturnCall{Func: r.u32(), Params: r.slotList()}
	case shapeReturnCallIndirect:
		return ReturnCallIndirect{Index: r.slot(), Type: r.u32(), Table: r.u32(), Params: r.slotList()}
	case shapeGlobalGet:
		return GlobalGet{Result: r.slot(), Global: r.u32()}
	case shapeGlobalSet:
		return GlobalSet{Value: r.slot(), Global: r.u32()}
	case shapeMemorySize:
		return MemorySize{Result: r.slot(), Memory: r.u32()}
	case shapeMemoryGrow:
		return MemoryGrow{Result: r.slot(), Delta: r.slot(), Memory: r.u32()}
	case shapeMemoryFill:
		return MemoryFill{Dst: r.slot(), Value: r.slot(), Len: r.slot(), Memory: r.u32()}
	case shapeMemoryCopy:
		return MemoryCopy{Dst: r.slot(), Src: r.slot(), Len: r.slot(), DstMemory: r.u32(), SrcMemory: r.u32()}
	case shapeMemoryInit:
		return MemoryInit{Dst: r.slot(), Src: r.slot(), Len: r.slot(), Memory: r.u32(), Data: r.u32()}
	case shapeDataDrop:
		return DataDrop{Data: r.u32()}
	case shapeTableGet:
		return TableGet{Result: r.slot(), Index: r.slot(), Table: r.u32()}
	case shapeTableSet:
		return TableSet{Index: r.slot(), Value: r.slot(), Table: r.u32()}
	case shapeTableSize:
		return TableSize{Result: r.slot(), Table: r.u32()}
	case shapeTableGrow:
		return TableGrow{Result: r.slot(), Delta: r.slot(), Init: r.slot(), Table: r.u32()}
	case shapeTableFill:
		return TableFill{Dst: r.slot(), Value: r.slot(), Len: r.slot(), Table: r.u32()}
	case shapeTableCopy:
		return TableCopy{Dst: r.slot(), Src: r.slot(), Len: r.slot(), DstTable: r.u32(), SrcTable: r.u32()}
	case shapeTableInit:
		return TableInit{Dst: r.slot(), Src: r.slot(), Len: r.slot(), Table: r.u32(), Elem: r.u32()}
	case shapeElemDrop:
		return ElemDrop{Elem: r.u32()}
	case shapeRefFunc:
		return RefFunc{Result: r.slot(), Func: r.u32()}
	case shapeLoad:
		return Load{Code: op, Result: r.slot(), Ptr: r.slot(), Offset: r.u64(), Memory: r.u32()}
	case shapeStore:
		return Store{Code: op, Ptr: r.slot(), Value: r.slot(), Offset: r.u64(), Memory: r.u32()}
	case shapeUnary:
		return Unary{Code: op, Result: r.slot(), Input: r.slot()}
	case shapeBinary:
		return Binary{Code: op, Result: r.slot(), Lhs: r.slot(), Rhs: r.slot()}
	case shapeBinaryImm16:
		return BinaryImm16{Code: op, Result: r.slot(), Lhs: r.slot(), Rhs: r.imm16()}
	case shapeCopysignImm:
		return CopysignImm{Code: op, Result: r.slot(), Lhs: r.slot(), Sign: r.sign()}
	default:
		panic(fmt.Sprintf("BUG: opcode %s has no shape", op))
	}
}

// Decoder decodes a sequence of encoded instructions, validating every field.
type Decoder struct {
	r reader
}

// NewDecoder returns a Decoder reading code from its first byte.
func NewDecoder(code []byte) *Decoder {
	return &Decoder{r: reader{code: code, checked: true}}
}

// Pos returns the position of the next instruction.
func (d *Decoder) Pos() int {
	return d.r.pos
}

// More returns true if there are bytes left to decode.
func (d *Decoder) More() bool {
	return d.r.pos < len(d.r.code)
}

// Decode decodes the next instruction.
func (d *Decoder) Decode() (Instruction, error) {
	d.r.err = nil
	start := d.r.pos
	instr := d.r.instruction()
	if d.r.err != nil {
		err := d.r.err
		d.r.pos = start
		return nil, err
	}
	return instr, nil
}

// DecodeAt decodes the instruction starting at pos.
func DecodeAt(code []byte, pos int) (Instruction, error) {
	d := Decoder{r: reader{code: code, pos: pos, checked: true}}
	return d.Decode()
}

// DecodeAll decodes every instruction of code.
func DecodeAll(code []byte) ([]Instruction, error) {
	var ret []Instruction
	d := NewDecoder(code)
	for d.More() {
		instr, err := d.Decode()
		if err != nil {
			return nil, err
		}
		ret = append(ret, instr)
	}
	return ret, nil
}

// UncheckedDecoder decodes instructions without validating them.
//
// It must only be used on bytes produced by Instruction.Encode. Decoding anything else
// either panics or yields arbitrary instructions.
type UncheckedDecoder struct {
	r reader
}

// NewUncheckedDecoder returns an UncheckedDecoder reading code from pos.
func NewUncheckedDecoder(code []byte, pos int) *UncheckedDecoder {
	return &UncheckedDecoder{r: reader{code: code, pos: pos}}
}

// Pos returns the position of the next instruction.
func (d *UncheckedDecoder) Pos() int {
	return d.r.pos
}

// Decode decodes the next instruction.
func (d *UncheckedDecoder) Decode() Instruction {
	return d.r.instruction()
}
