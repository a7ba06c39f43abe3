package bytecode

import "fmt"

// Comparator is the condition evaluated by fused compare-and-branch instructions.
type Comparator uint8

const (
	CmpI32Eq Comparator = iota
	CmpI32Ne
	CmpI32LtS
	CmpI32LtU
	CmpI32GtS
	CmpI32GtU
	CmpI32LeS
	CmpI32LeU
	CmpI32GeS
	CmpI32GeU
	CmpI64Eq
	CmpI64Ne
	CmpI64LtS
	CmpI64LtU
	CmpI64GtS
	CmpI64GtU
	CmpI64LeS
	CmpI64LeU
	CmpI64GeS
	CmpI64GeU
	CmpF32Eq
	CmpF32Ne
	CmpF32Lt
	CmpF32Gt
	CmpF32Le
	CmpF32Ge
	CmpF64Eq
	CmpF64Ne
	CmpF64Lt
	CmpF64Gt
	CmpF64Le
	CmpF64Ge
	comparatorEnd
)

// comparatorOps maps each Comparator to its Binary and BinaryImm16 opcodes.
// Floating point comparators have no immediate form.
var comparatorOps = [comparatorEnd][2]OpCode{
	CmpI32Eq:  {OpI32Eq, OpI32EqImm16},
	CmpI32Ne:  {OpI32Ne, OpI32NeImm16},
	CmpI32LtS: {OpI32LtS, OpI32LtSImm16},
	CmpI32LtU: {OpI32LtU, OpI32LtUImm16},
	CmpI32GtS: {OpI32GtS, OpI32GtSImm16},
	CmpI32GtU: {OpI32GtU, OpI32GtUImm16},
	CmpI32LeS: {OpI32LeS, OpI32LeSImm16},
	CmpI32LeU: {OpI32LeU, OpI32LeUImm16},
	CmpI32GeS: {OpI32GeS, OpI32GeSImm16},
	CmpI32GeU: {OpI32GeU, OpI32GeUImm16},
	CmpI64Eq:  {OpI64Eq, OpI64EqImm16},
	CmpI64Ne:  {OpI64Ne, OpI64NeImm16},
	CmpI64LtS: {OpI64LtS, OpI64LtSImm16},
	CmpI64LtU: {OpI64LtU, OpI64LtUImm16},
	CmpI64GtS: {OpI64GtS, OpI64GtSImm16},
	CmpI64GtU: {OpI64GtU, OpI64GtUImm16},
	CmpI64LeS: {OpI64LeS, OpI64LeSImm16},
	CmpI64LeU: {OpI64LeU, OpI64LeUImm16},
	CmpI64GeS: {OpI64GeS, OpI64GeSImm16},
	CmpI64GeU: {OpI64GeU, OpI64GeUImm16},
	CmpF32Eq:  {OpF32Eq, opCodeEnd},
	CmpF32Ne:  {OpF32Ne, opCodeEnd},
	CmpF32Lt:  {OpF32Lt, opCodeEnd},
	CmpF32Gt:  {OpF32Gt, opCodeEnd},
	CmpF32Le:  {OpF32Le, opCodeEnd},
	CmpF32Ge:  {OpF32Ge, opCodeEnd},
	CmpF64Eq:  {OpF64Eq, opCodeEnd},
	CmpF64Ne:  {OpF64Ne, opCodeEnd},
	CmpF64Lt:  {OpF64Lt, opCodeEnd},
	CmpF64Gt:  {OpF64Gt, opCodeEnd},
	CmpF64Le:  {OpF64Le, opCodeEnd},
	CmpF64Ge:  {OpF64Ge, opCodeEnd},
}

var opCodeComparators = func() map[OpCode]Comparator {
	ret := make(map[OpCode]Comparator, 2*comparatorEnd)
	for c, ops := range comparatorOps {
		ret[ops[0]] = Comparator(c)
		if ops[1] != opCodeEnd {
			ret[ops[1]] = Comparator(c)
		}
	}
	return ret
}()

// ComparatorFromOpCode returns the Comparator evaluated by a Binary or BinaryImm16 comparison opcode.
func ComparatorFromOpCode(o OpCode) (Comparator, bool) {
	c, ok := opCodeComparators[o]
	return c, ok
}

// BinaryOpCode returns the opcode computing c into a slot.
func (c Comparator) BinaryOpCode() OpCode {
	return comparatorOps[c][0]
}

// Imm16OpCode returns the opcode computing c with a 16-bit immediate rhs, if any.
func (c Comparator) Imm16OpCode() (OpCode, bool) {
	op := comparatorOps[c][1]
	return op, op != opCodeEnd
}

// IsInteger returns true if c compares integers.
func (c Comparator) IsInteger() bool {
	return c <= CmpI64GeU
}

// Negate returns the comparator which is true exactly when c is false.
//
// Ordered float comparisons cannot be negated since both c and its opposite are false for NaN.
func (c Comparator) Negate() (Comparator, bool) {
	switch c {
	case CmpI32Eq, CmpI64Eq, CmpF32Eq, CmpF64Eq:
		return c + 1, true
	case CmpI32Ne, CmpI64Ne, CmpF32Ne, CmpF64Ne:
		return c - 1, true
	}
	if !c.IsInteger() {
		return 0, false
	}
	// Integer groups share the layout of the i32 comparators.
	base := CmpI32Eq
	if c >= CmpI64Eq {
		base = CmpI64Eq
	}
	switch c - base {
	case CmpI32LtS, CmpI32LtU:
		return c + 6, true // lt -> ge
	case CmpI32GtS, CmpI32GtU:
		return c + 2, true // gt -> le
	case CmpI32LeS, CmpI32LeU:
		return c - 2, true // le -> gt
	default: // ge -> lt
		return c - 6, true
	}
}

// String implements fmt.Stringer.
func (c Comparator) String() string {
	if c < comparatorEnd {
		return comparatorOps[c][0].String()
	}
	return fmt.Sprintf("cmp(%d)", uint8(c))
}

// Swap returns the comparator which holds for (rhs, lhs) exactly when c holds for (lhs, rhs).
func (c Comparator) Swap() Comparator {
	switch c {
	case CmpI32LtS, CmpI32LtU, CmpI64LtS, CmpI64LtU:
		return c + 2 // lt -> gt
	case CmpI32GtS, CmpI32GtU, CmpI64GtS, CmpI64GtU:
		return c - 2
	case CmpI32LeS, CmpI32LeU, CmpI64LeS, CmpI64LeU:
		return c + 2 // le -> ge
	case CmpI32GeS, CmpI32GeU, CmpI64GeS, CmpI64GeU:
		return c - 2
	case CmpF32Lt, CmpF32Le, CmpF64Lt, CmpF64Le:
		return c + 1 // lt -> gt, le -> ge
	case CmpF32Gt, CmpF32Ge, CmpF64Gt, CmpF64Ge:
		return c - 1
	}
	return c
}
