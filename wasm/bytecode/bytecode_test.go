package bytecode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func allShapes() []Instruction {
	return []Instruction{
		Trap{Code: TrapCodeIntegerDivisionByZero},
		ConsumeFuel{Fuel: 42},
		Return{},
		ReturnSlot{Value: 3},
		ReturnImm32{Value: 0xdeadbeef},
		ReturnImm64{Value: math.MaxUint64},
		ReturnMany{Values: SlotList{1, 2, 3}},
		ReturnMany{Values: SlotList{}},
		Branch{Offset: -12},
		BranchIf{Code: OpBranchIfEqz, Condition: 4, Offset: 100},
		BranchIf{Code: OpBranchIfNez, Condition: 4, Offset: -100},
		BranchCmp{Cmp: CmpI32LtS, Lhs: 1, Rhs: 2, Offset: math.MinInt16},
		BranchCmpWide{Cmp: CmpF64Ge, Lhs: 1, Rhs: 2, Offset: math.MaxInt32},
		BranchCmpImm{Cmp: CmpI64Ne, Lhs: 1, Rhs: -7, Offset: 8},
		BranchTable{Index: 5, Targets: BranchOffsetList{10, -20, 30}},
		Copy{Result: 1, Value: 2},
		CopyImm32{Result: 1, Value: 7},
		CopyImm64{Result: 1, Value: 1 << 40},
		Select{Result: 1, Condition: 2, Lhs: 3, Rhs: 4},
		Call{Results: 9, Func: 2, Params: SlotList{9, 10}},
		CallIndirect{Results: 9, Index: 11, Type: 1, Table: 0, Params: SlotList{9}},
		ReturnCall{Func: 3, Params: SlotList{4, 5}},
		ReturnCallIndirect{Index: 2, Type: 1, Table: 1, Params: SlotList{}},
		GlobalGet{Result: 3, Global: 1},
		GlobalSet{Value: 3, Global: 1},
		MemorySize{Result: 2, Memory: 0},
		MemoryGrow{Result: 2, Delta: 2, Memory: 0},
		MemoryFill{Dst: 1, Value: 2, Len: 3, Memory: 0},
		MemoryCopy{Dst: 1, Src: 2, Len: 3, DstMemory: 1, SrcMemory: 0},
		MemoryInit{Dst: 1, Src: 2, Len: 3, Memory: 0, Data: 4},
		DataDrop{Data: 4},
		TableGet{Result: 2, Index: 1, Table: 3},
		TableSet{Index: 1, Value: 2, Table: 3},
		TableSize{Result: 2, Table: 1},
		TableGrow{Result: 3, Delta: 1, Init: 2, Table: 0},
		TableFill{Dst: 1, Value: 2, Len: 3, Table: 1},
		TableCopy{Dst: 1, Src: 2, Len: 3, DstTable: 0, SrcTable: 1},
		TableInit{Dst: 1, Src: 2, Len: 3, Table: 1, Elem: 2},
		ElemDrop{Elem: 2},
		RefFunc{Result: 1, Func: 7},
		Load{Code: OpI64Load32U, Result: 1, Ptr: 0, Offset: 1 << 33, Memory: 0},
		Store{Code: OpI32Store8, Ptr: 0, Value: 1, Offset: 4, Memory: 1},
		Unary{Code: OpF32Sqrt, Result: 1, Input: 0},
		Unary{Code: OpRefIsNull, Result: 1, Input: 1},
		Binary{Code: OpI64Rotr, Result: 2, Lhs: 0, Rhs: 1},
		BinaryImm16{Code: OpI32AddImm16, Result: 2, Lhs: 0, Rhs: -1},
		CopysignImm{Code: OpF64CopysignImm, Result: 1, Lhs: 0, Sign: SignNegative},
	}
}

func TestInstruction_RoundTrip(t *testing.T) {
	for _, instr := range allShapes() {
		instr := instr
		t.Run(instr.String(), func(t *testing.T) {
			var b Buffer
			pos := b.Put(instr)
			require.Equal(t, 0, pos)
			require.Equal(t, EncodedLen(instr), b.Len())
			require.Equal(t, uint16(instr.OpCode()), binary.NativeEndian.Uint16(b.Bytes()))

			actual, err := DecodeAt(b.Bytes(), 0)
			require.NoError(t, err)
			require.Equal(t, instr, actual)

			require.Equal(t, instr, NewUncheckedDecoder(b.Bytes(), 0).Decode())
		})
	}
}

func TestDecodeAll(t *testing.T) {
	var b Buffer
	expected := allShapes()
	for _, instr := range expected {
		b.Put(instr)
	}
	actual, err := DecodeAll(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, expected, actual)
}

func TestOpCode_Shapes(t *testing.T) {
	for o := OpCode(0); o < opCodeEnd; o++ {
		require.NotEqual(t, shapeInvalid, o.Shape(), o.String())
		require.NotEmpty(t, o.String())
	}
	require.Equal(t, shapeInvalid, opCodeEnd.Shape())
	require.Equal(t, "i32.add_imm16", OpI32AddImm16.String())
	require.Equal(t, "br_cmp", OpBranchCmp.String())
}

func TestDecode_Errors(t *testing.T) {
	encode := func(instrs ...Instruction) []byte {
		var b Buffer
		for _, instr := range instrs {
			b.Put(instr)
		}
		return b.Bytes()
	}
	tests := []struct {
		name     string
		code     []byte
		expected *DecodeError
	}{
		{
			name:     "truncated opcode",
			code:     []byte{0x01},
			expected: &DecodeError{Offset: 0, Kind: OutOfBytes},
		},
		{
			name:     "invalid opcode",
			code:     binary.NativeEndian.AppendUint16(nil, 0xffff),
			expected: &DecodeError{Offset: 0, Kind: InvalidOpCode, Value: 0xffff},
		},
		{
			name:     "truncated operand",
			code:     encode(Copy{Result: 1, Value: 2})[:5],
			expected: &DecodeError{Offset: 4, Kind: OutOfBytes},
		},
		{
			name: "invalid comparator",
			code: func() []byte {
				code := encode(BranchCmp{Cmp: CmpI32Eq})
				code[2] = byte(comparatorEnd)
				return code
			}(),
			expected: &DecodeError{Offset: 2, Kind: InvalidBitPattern, Value: uint64(comparatorEnd)},
		},
		{
			name: "invalid trap code",
			code: func() []byte {
				code := encode(Trap{})
				code[2] = 0xff
				return code
			}(),
			expected: &DecodeError{Offset: 2, Kind: InvalidBitPattern, Value: 0xff},
		},
		{
			name: "invalid sign",
			code: func() []byte {
				code := encode(CopysignImm{Code: OpF32CopysignImm})
				code[6] = 2
				return code
			}(),
			expected: &DecodeError{Offset: 6, Kind: InvalidBitPattern, Value: 2},
		},
		{
			name:     "truncated slot list",
			code:     encode(ReturnMany{Values: SlotList{1, 2, 3}})[:6],
			expected: &DecodeError{Offset: 4, Kind: OutOfBytes},
		},
		{
			name:     "error in second instruction",
			code:     append(encode(Return{}), 0xff, 0xff),
			expected: &DecodeError{Offset: 2, Kind: InvalidOpCode, Value: 0xffff},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeAll(tc.code)
			require.Equal(t, tc.expected, err)
			require.NotEmpty(t, err.Error())
		})
	}
}

func TestDecoder_PositionKeptOnError(t *testing.T) {
	d := NewDecoder([]byte{0x01})
	_, err := d.Decode()
	require.Error(t, err)
	require.Equal(t, 0, d.Pos())
}

func TestComparator_Negate(t *testing.T) {
	tests := []struct {
		cmp, expected Comparator
	}{
		{CmpI32Eq, CmpI32Ne},
		{CmpI32Ne, CmpI32Eq},
		{CmpI32LtS, CmpI32GeS},
		{CmpI32LtU, CmpI32GeU},
		{CmpI32GtS, CmpI32LeS},
		{CmpI32GtU, CmpI32LeU},
		{CmpI32LeS, CmpI32GtS},
		{CmpI32LeU, CmpI32GtU},
		{CmpI32GeS, CmpI32LtS},
		{CmpI32GeU, CmpI32LtU},
		{CmpI64LtS, CmpI64GeS},
		{CmpI64GeU, CmpI64LtU},
		{CmpF32Eq, CmpF32Ne},
		{CmpF64Ne, CmpF64Eq},
	}
	for _, tc := range tests {
		actual, ok := tc.cmp.Negate()
		require.True(t, ok, tc.cmp.String())
		require.Equal(t, tc.expected, actual, tc.cmp.String())
		back, ok := actual.Negate()
		require.True(t, ok)
		require.Equal(t, tc.cmp, back)
	}

	for _, c := range []Comparator{CmpF32Lt, CmpF32Gt, CmpF32Le, CmpF32Ge, CmpF64Lt, CmpF64Ge} {
		_, ok := c.Negate()
		require.False(t, ok, c.String())
	}
}

func TestComparator_Swap(t *testing.T) {
	tests := []struct {
		cmp, expected Comparator
	}{
		{CmpI32Eq, CmpI32Eq},
		{CmpI64Ne, CmpI64Ne},
		{CmpI32LtS, CmpI32GtS},
		{CmpI32GtU, CmpI32LtU},
		{CmpI32LeS, CmpI32GeS},
		{CmpI64GeU, CmpI64LeU},
		{CmpF32Lt, CmpF32Gt},
		{CmpF64Ge, CmpF64Le},
	}
	for _, tc := range tests {
		require.Equal(t, tc.expected, tc.cmp.Swap(), tc.cmp.String())
		require.Equal(t, tc.cmp, tc.cmp.Swap().Swap(), tc.cmp.String())
	}
}

func TestComparator_OpCodes(t *testing.T) {
	for c := Comparator(0); c < comparatorEnd; c++ {
		actual, ok := ComparatorFromOpCode(c.BinaryOpCode())
		require.True(t, ok)
		require.Equal(t, c, actual)

		imm, ok := c.Imm16OpCode()
		require.Equal(t, c.IsInteger(), ok)
		if ok {
			actual, ok = ComparatorFromOpCode(imm)
			require.True(t, ok)
			require.Equal(t, c, actual)
			require.Equal(t, shapeBinaryImm16, imm.Shape())
		}
	}
	_, ok := ComparatorFromOpCode(OpI32Add)
	require.False(t, ok)
	require.Equal(t, "i64.le_u", CmpI64LeU.String())
}

func TestNewBranchOffset(t *testing.T) {
	o, err := NewBranchOffset(100, 40)
	require.NoError(t, err)
	require.Equal(t, BranchOffset(-60), o)

	narrow, ok := o.ToNarrow()
	require.True(t, ok)
	require.Equal(t, BranchOffset16(-60), narrow)

	_, ok = BranchOffset(math.MaxInt16 + 1).ToNarrow()
	require.False(t, ok)
	_, ok = BranchOffset(math.MinInt16).ToNarrow()
	require.True(t, ok)

	_, err = NewBranchOffset(0, math.MaxInt32+1)
	require.ErrorIs(t, err, ErrBranchOffsetOutOfBounds)
}

func TestBlockFuel_BumpBy(t *testing.T) {
	f, err := BlockFuel(1).BumpBy(3)
	require.NoError(t, err)
	require.Equal(t, BlockFuel(4), f)

	_, err = BlockFuel(math.MaxUint64).BumpBy(1)
	require.ErrorIs(t, err, ErrBlockFuelOutOfBounds)
}

func TestImm16(t *testing.T) {
	v, ok := Imm16FromI32(-32768)
	require.True(t, ok)
	require.Equal(t, Imm16(-32768), v)
	_, ok = Imm16FromI32(32768)
	require.False(t, ok)
	_, ok = Imm16FromI64(math.MaxInt64)
	require.False(t, ok)
}

func TestBuffer_Patch(t *testing.T) {
	var b Buffer
	b.Put(ConsumeFuel{Fuel: 1})
	brPos := b.Put(BranchCmpWide{Cmp: CmpI32Eq, Lhs: 1, Rhs: 2})
	b.Put(Return{})

	field, narrow, ok := OffsetField(BranchCmpWide{})
	require.True(t, ok)
	require.False(t, narrow)

	// Patching twice with the same value is idempotent.
	for i := 0; i < 2; i++ {
		b.PatchOffset(brPos+field, 24)
		instr, err := DecodeAt(b.Bytes(), brPos)
		require.NoError(t, err)
		actual, ok := OffsetAt(instr, field)
		require.True(t, ok)
		require.Equal(t, BranchOffset(24), actual)
	}

	b.PatchAt(0, ConsumeFuel{Fuel: 7})
	instrs, err := DecodeAll(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, []Instruction{
		ConsumeFuel{Fuel: 7},
		BranchCmpWide{Cmp: CmpI32Eq, Lhs: 1, Rhs: 2, Offset: 24},
		Return{},
	}, instrs)
}

func TestBuffer_PatchOffset16(t *testing.T) {
	var b Buffer
	pos := b.Put(BranchCmp{Cmp: CmpI64GtU, Lhs: 3, Rhs: 4})
	field, narrow, ok := OffsetField(BranchCmp{})
	require.True(t, ok)
	require.True(t, narrow)
	b.PatchOffset16(pos+field, -8)

	instr, err := DecodeAt(b.Bytes(), pos)
	require.NoError(t, err)
	require.Equal(t, BranchCmp{Cmp: CmpI64GtU, Lhs: 3, Rhs: 4, Offset: -8}, instr)
}

func TestOffsetAt_BranchTable(t *testing.T) {
	table := BranchTable{Index: 0, Targets: BranchOffsetList{4, 8, 12}}
	for i, expected := range table.Targets {
		actual, ok := OffsetAt(table, TableTargetField(i))
		require.True(t, ok)
		require.Equal(t, expected, actual)
	}
	_, ok := OffsetAt(table, TableTargetField(3))
	require.False(t, ok)
	_, ok = OffsetAt(table, TableTargetField(0)+1)
	require.False(t, ok)

	var b Buffer
	b.Put(table)
	b.PatchOffset(TableTargetField(1), -4)
	instr, err := DecodeAt(b.Bytes(), 0)
	require.NoError(t, err)
	require.Equal(t, BranchOffsetList{4, -4, 12}, instr.(BranchTable).Targets)
}

func TestResultSlot(t *testing.T) {
	instr := Binary{Code: OpI32Add, Result: 5, Lhs: 1, Rhs: 2}
	s, ok := ResultSlot(instr)
	require.True(t, ok)
	require.Equal(t, Slot(5), s)

	retargeted := WithResultSlot(instr, 0)
	require.Equal(t, Binary{Code: OpI32Add, Result: 0, Lhs: 1, Rhs: 2}, retargeted)

	_, ok = ResultSlot(Return{})
	require.False(t, ok)
	require.Panics(t, func() { WithResultSlot(Branch{}, 1) })
}

func TestDisassemble(t *testing.T) {
	var b Buffer
	b.Put(Copy{Result: 1, Value: 0})
	b.Put(BranchCmp{Cmp: CmpI32LtS, Lhs: 1, Rhs: 0, Offset: -6})
	b.Put(ReturnSlot{Value: 1})

	actual, err := Disassemble(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, `   0: copy s1, s0
   6: br_cmp i32.lt_s s1, s0, -6 (-> 0)
  15: return_slot s1
`, actual)
}
