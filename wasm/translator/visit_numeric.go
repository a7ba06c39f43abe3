package translator

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

var comparisons = map[wasm.Opcode]bytecode.Comparator{
	wasm.OpcodeI32Eq:  bytecode.CmpI32Eq,
	wasm.OpcodeI32Ne:  bytecode.CmpI32Ne,
	wasm.OpcodeI32LtS: bytecode.CmpI32LtS,
	wasm.OpcodeI32LtU: bytecode.CmpI32LtU,
	wasm.OpcodeI32GtS: bytecode.CmpI32GtS,
	wasm.OpcodeI32GtU: bytecode.CmpI32GtU,
	wasm.OpcodeI32LeS: bytecode.CmpI32LeS,
	wasm.OpcodeI32LeU: bytecode.CmpI32LeU,
	wasm.OpcodeI32GeS: bytecode.CmpI32GeS,
	wasm.OpcodeI32GeU: bytecode.CmpI32GeU,
	wasm.OpcodeI64Eq:  bytecode.CmpI64Eq,
	wasm.OpcodeI64Ne:  bytecode.CmpI64Ne,
	wasm.OpcodeI64LtS: bytecode.CmpI64LtS,
	wasm.OpcodeI64LtU: bytecode.CmpI64LtU,
	wasm.OpcodeI64GtS: bytecode.CmpI64GtS,
	wasm.OpcodeI64GtU: bytecode.CmpI64GtU,
	wasm.OpcodeI64LeS: bytecode.CmpI64LeS,
	wasm.OpcodeI64LeU: bytecode.CmpI64LeU,
	wasm.OpcodeI64GeS: bytecode.CmpI64GeS,
	wasm.OpcodeI64GeU: bytecode.CmpI64GeU,
	wasm.OpcodeF32Eq:  bytecode.CmpF32Eq,
	wasm.OpcodeF32Ne:  bytecode.CmpF32Ne,
	wasm.OpcodeF32Lt:  bytecode.CmpF32Lt,
	wasm.OpcodeF32Gt:  bytecode.CmpF32Gt,
	wasm.OpcodeF32Le:  bytecode.CmpF32Le,
	wasm.OpcodeF32Ge:  bytecode.CmpF32Ge,
	wasm.OpcodeF64Eq:  bytecode.CmpF64Eq,
	wasm.OpcodeF64Ne:  bytecode.CmpF64Ne,
	wasm.OpcodeF64Lt:  bytecode.CmpF64Lt,
	wasm.OpcodeF64Gt:  bytecode.CmpF64Gt,
	wasm.OpcodeF64Le:  bytecode.CmpF64Le,
	wasm.OpcodeF64Ge:  bytecode.CmpF64Ge,
}

// binaryOp describes the lowering of a binary arithmetic operator.
type binaryOp struct {
	code bytecode.OpCode
	// imm16 is the form taking a 16-bit immediate rhs, valid if hasImm16.
	imm16       bytecode.OpCode
	hasImm16    bool
	typ         wasm.ValueType
	commutative bool
}

func plainOp(code bytecode.OpCode, typ wasm.ValueType) binaryOp {
	return binaryOp{code: code, typ: typ}
}

func immOp(code, imm16 bytecode.OpCode, typ wasm.ValueType, commutative bool) binaryOp {
	return binaryOp{code: code, imm16: imm16, hasImm16: true, typ: typ, commutative: commutative}
}

var binaryOps = map[wasm.Opcode]binaryOp{
	wasm.OpcodeI32Add:  immOp(bytecode.OpI32Add, bytecode.OpI32AddImm16, wasm.ValueTypeI32, true),
	wasm.OpcodeI32Sub:  plainOp(bytecode.OpI32Sub, wasm.ValueTypeI32),
	wasm.OpcodeI32Mul:  immOp(bytecode.OpI32Mul, bytecode.OpI32MulImm16, wasm.ValueTypeI32, true),
	wasm.OpcodeI32DivS: plainOp(bytecode.OpI32DivS, wasm.ValueTypeI32),
	wasm.OpcodeI32DivU: plainOp(bytecode.OpI32DivU, wasm.ValueTypeI32),
	wasm.OpcodeI32RemS: plainOp(bytecode.OpI32RemS, wasm.ValueTypeI32),
	wasm.OpcodeI32RemU: plainOp(bytecode.OpI32RemU, wasm.ValueTypeI32),
	wasm.OpcodeI32And:  immOp(bytecode.OpI32And, bytecode.OpI32AndImm16, wasm.ValueTypeI32, true),
	wasm.OpcodeI32Or:   immOp(bytecode.OpI32Or, bytecode.OpI32OrImm16, wasm.ValueTypeI32, true),
	wasm.OpcodeI32Xor:  immOp(bytecode.OpI32Xor, bytecode.OpI32XorImm16, wasm.ValueTypeI32, true),
	wasm.OpcodeI32Shl:  immOp(bytecode.OpI32Shl, bytecode.OpI32ShlImm16, wasm.ValueTypeI32, false),
	wasm.OpcodeI32ShrS: immOp(bytecode.OpI32ShrS, bytecode.OpI32ShrSImm16, wasm.ValueTypeI32, false),
	wasm.OpcodeI32ShrU: immOp(bytecode.OpI32ShrU, bytecode.OpI32ShrUImm16, wasm.ValueTypeI32, false),
	wasm.OpcodeI32Rotl: immOp(bytecode.OpI32Rotl, bytecode.OpI32RotlImm16, wasm.ValueTypeI32, false),
	wasm.OpcodeI32Rotr: immOp(bytecode.OpI32Rotr, bytecode.OpI32RotrImm16, wasm.ValueTypeI32, false),

	wasm.OpcodeI64Add:  immOp(bytecode.OpI64Add, bytecode.OpI64AddImm16, wasm.ValueTypeI64, true),
	wasm.OpcodeI64Sub:  plainOp(bytecode.OpI64Sub, wasm.ValueTypeI64),
	wasm.OpcodeI64Mul:  immOp(bytecode.OpI64Mul, bytecode.OpI64MulImm16, wasm.ValueTypeI64, true),
	wasm.OpcodeI64DivS: plainOp(bytecode.OpI64DivS, wasm.ValueTypeI64),
	wasm.OpcodeI64DivU: plainOp(bytecode.OpI64DivU, wasm.ValueTypeI64),
	wasm.OpcodeI64RemS: plainOp(bytecode.OpI64RemS, wasm.ValueTypeI64),
	wasm.OpcodeI64RemU: plainOp(bytecode.OpI64RemU, wasm.ValueTypeI64),
	wasm.OpcodeI64And:  immOp(bytecode.OpI64And, bytecode.OpI64AndImm16, wasm.ValueTypeI64, true),
	wasm.OpcodeI64Or:   immOp(bytecode.OpI64Or, bytecode.OpI64OrImm16, wasm.ValueTypeI64, true),
	wasm.OpcodeI64Xor:  immOp(bytecode.OpI64Xor, bytecode.OpI64XorImm16, wasm.ValueTypeI64, true),
	wasm.OpcodeI64Shl:  immOp(bytecode.OpI64Shl, bytecode.OpI64ShlImm16, wasm.ValueTypeI64, false),
	wasm.OpcodeI64ShrS: immOp(bytecode.OpI64ShrS, bytecode.OpI64ShrSImm16, wasm.ValueTypeI64, false),
	wasm.OpcodeI64ShrU: immOp(bytecode.OpI64ShrU, bytecode.OpI64ShrUImm16, wasm.ValueTypeI64, false),
	wasm.OpcodeI64Rotl: immOp(bytecode.OpI64Rotl, bytecode.OpI64RotlImm16, wasm.ValueTypeI64, false),
	wasm.OpcodeI64Rotr: immOp(bytecode.OpI64Rotr, bytecode.OpI64RotrImm16, wasm.ValueTypeI64, false),

	wasm.OpcodeF32Add:      plainOp(bytecode.OpF32Add, wasm.ValueTypeF32),
	wasm.OpcodeF32Sub:      plainOp(bytecode.OpF32Sub, wasm.ValueTypeF32),
	wasm.OpcodeF32Mul:      plainOp(bytecode.OpF32Mul, wasm.ValueTypeF32),
	wasm.OpcodeF32Div:      plainOp(bytecode.OpF32Div, wasm.ValueTypeF32),
	wasm.OpcodeF32Min:      plainOp(bytecode.OpF32Min, wasm.ValueTypeF32),
	wasm.OpcodeF32Max:      plainOp(bytecode.OpF32Max, wasm.ValueTypeF32),
	wasm.OpcodeF32Copysign: plainOp(bytecode.OpF32Copysign, wasm.ValueTypeF32),
	wasm.OpcodeF64Add:      plainOp(bytecode.OpF64Add, wasm.ValueTypeF64),
	wasm.OpcodeF64Sub:      plainOp(bytecode.OpF64Sub, wasm.ValueTypeF64),
	wasm.OpcodeF64Mul:      plainOp(bytecode.OpF64Mul, wasm.ValueTypeF64),
	wasm.OpcodeF64Div:      plainOp(bytecode.OpF64Div, wasm.ValueTypeF64),
	wasm.OpcodeF64Min:      plainOp(bytecode.OpF64Min, wasm.ValueTypeF64),
	wasm.OpcodeF64Max:      plainOp(bytecode.OpF64Max, wasm.ValueTypeF64),
	wasm.OpcodeF64Copysign: plainOp(bytecode.OpF64Copysign, wasm.ValueTypeF64),
}

// unaryOp describes the lowering of a unary operator or conversion.
type unaryOp struct {
	code    bytecode.OpCode
	in, out wasm.ValueType
	// feature must be enabled for the operator to be accepted, if non-zero.
	feature wasm.Features
}

var unaryOps = map[wasm.Opcode]unaryOp{
	wasm.OpcodeI32Clz:    {bytecode.OpI32Clz, wasm.ValueTypeI32, wasm.ValueTypeI32, 0},
	wasm.OpcodeI32Ctz:    {bytecode.OpI32Ctz, wasm.ValueTypeI32, wasm.ValueTypeI32, 0},
	wasm.OpcodeI32Popcnt: {bytecode.OpI32Popcnt, wasm.ValueTypeI32, wasm.ValueTypeI32, 0},
	wasm.OpcodeI64Clz:    {bytecode.OpI64Clz, wasm.ValueTypeI64, wasm.ValueTypeI64, 0},
	wasm.OpcodeI64Ctz:    {bytecode.OpI64Ctz, wasm.ValueTypeI64, wasm.ValueTypeI64, 0},
	wasm.OpcodeI64Popcnt: {bytecode.OpI64Popcnt, wasm.ValueTypeI64, wasm.ValueTypeI64, 0},

	wasm.OpcodeF32Abs:     {bytecode.OpF32Abs, wasm.ValueTypeF32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32Neg:     {bytecode.OpF32Neg, wasm.ValueTypeF32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32Ceil:    {bytecode.OpF32Ceil, wasm.ValueTypeF32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32Floor:   {bytecode.OpF32Floor, wasm.ValueTypeF32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32Trunc:   {bytecode.OpF32Trunc, wasm.ValueTypeF32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32Nearest: {bytecode.OpF32Nearest, wasm.ValueTypeF32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32Sqrt:    {bytecode.OpF32Sqrt, wasm.ValueTypeF32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF64Abs:     {bytecode.OpF64Abs, wasm.ValueTypeF64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64Neg:     {bytecode.OpF64Neg, wasm.ValueTypeF64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64Ceil:    {bytecode.OpF64Ceil, wasm.ValueTypeF64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64Floor:   {bytecode.OpF64Floor, wasm.ValueTypeF64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64Trunc:   {bytecode.OpF64Trunc, wasm.ValueTypeF64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64Nearest: {bytecode.OpF64Nearest, wasm.ValueTypeF64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64Sqrt:    {bytecode.OpF64Sqrt, wasm.ValueTypeF64, wasm.ValueTypeF64, 0},

	wasm.OpcodeI32WrapI64:     {bytecode.OpI32WrapI64, wasm.ValueTypeI64, wasm.ValueTypeI32, 0},
	wasm.OpcodeI32TruncF32S:   {bytecode.OpI32TruncF32S, wasm.ValueTypeF32, wasm.ValueTypeI32, 0},
	wasm.OpcodeI32TruncF32U:   {bytecode.OpI32TruncF32U, wasm.ValueTypeF32, wasm.ValueTypeI32, 0},
	wasm.OpcodeI32TruncF64S:   {bytecode.OpI32TruncF64S, wasm.ValueTypeF64, wasm.ValueTypeI32, 0},
	wasm.OpcodeI32TruncF64U:   {bytecode.OpI32TruncF64U, wasm.ValueTypeF64, wasm.ValueTypeI32, 0},
	wasm.OpcodeI64ExtendI32S:  {bytecode.OpI64ExtendI32S, wasm.ValueTypeI32, wasm.ValueTypeI64, 0},
	wasm.OpcodeI64ExtendI32U:  {bytecode.OpI64ExtendI32U, wasm.ValueTypeI32, wasm.ValueTypeI64, 0},
	wasm.OpcodeI64TruncF32S:   {bytecode.OpI64TruncF32S, wasm.ValueTypeF32, wasm.ValueTypeI64, 0},
	wasm.OpcodeI64TruncF32U:   {bytecode.OpI64TruncF32U, wasm.ValueTypeF32, wasm.ValueTypeI64, 0},
	wasm.OpcodeI64TruncF64S:   {bytecode.OpI64TruncF64S, wasm.ValueTypeF64, wasm.ValueTypeI64, 0},
	wasm.OpcodeI64TruncF64U:   {bytecode.OpI64TruncF64U, wasm.ValueTypeF64, wasm.ValueTypeI64, 0},
	wasm.OpcodeF32ConvertI32S: {bytecode.OpF32ConvertI32S, wasm.ValueTypeI32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32ConvertI32U: {bytecode.OpF32ConvertI32U, wasm.ValueTypeI32, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32ConvertI64S: {bytecode.OpF32ConvertI64S, wasm.ValueTypeI64, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32ConvertI64U: {bytecode.OpF32ConvertI64U, wasm.ValueTypeI64, wasm.ValueTypeF32, 0},
	wasm.OpcodeF32DemoteF64:   {bytecode.OpF32DemoteF64, wasm.ValueTypeF64, wasm.ValueTypeF32, 0},
	wasm.OpcodeF64ConvertI32S: {bytecode.OpF64ConvertI32S, wasm.ValueTypeI32, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64ConvertI32U: {bytecode.OpF64ConvertI32U, wasm.ValueTypeI32, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64ConvertI64S: {bytecode.OpF64ConvertI64S, wasm.ValueTypeI64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64ConvertI64U: {bytecode.OpF64ConvertI64U, wasm.ValueTypeI64, wasm.ValueTypeF64, 0},
	wasm.OpcodeF64PromoteF32:  {bytecode.OpF64PromoteF32, wasm.ValueTypeF32, wasm.ValueTypeF64, 0},

	wasm.OpcodeI32Extend8S:  {bytecode.OpI32Extend8S, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.FeatureSignExtensionOps},
	wasm.OpcodeI32Extend16S: {bytecode.OpI32Extend16S, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.FeatureSignExtensionOps},
	wasm.OpcodeI64Extend8S:  {bytecode.OpI64Extend8S, wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.FeatureSignExtensionOps},
	wasm.OpcodeI64Extend16S: {bytecode.OpI64Extend16S, wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.FeatureSignExtensionOps},
	wasm.OpcodeI64Extend32S: {bytecode.OpI64Extend32S, wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.FeatureSignExtensionOps},

	wasm.OpcodeI32TruncSatF32S: {bytecode.OpI32TruncSatF32S, wasm.ValueTypeF32, wasm.ValueTypeI32, wasm.FeatureNonTrappingFloatToIntConversion},
	wasm.OpcodeI32TruncSatF32U: {bytecode.OpI32TruncSatF32U, wasm.ValueTypeF32, wasm.ValueTypeI32, wasm.FeatureNonTrappingFloatToIntConversion},
	wasm.OpcodeI32TruncSatF64S: {bytecode.OpI32TruncSatF64S, wasm.ValueTypeF64, wasm.ValueTypeI32, wasm.FeatureNonTrappingFloatToIntConversion},
	wasm.OpcodeI32TruncSatF64U: {bytecode.OpI32TruncSatF64U, wasm.ValueTypeF64, wasm.ValueTypeI32, wasm.FeatureNonTrappingFloatToIntConversion},
	wasm.OpcodeI64TruncSatF32S: {bytecode.OpI64TruncSatF32S, wasm.ValueTypeF32, wasm.ValueTypeI64, wasm.FeatureNonTrappingFloatToIntConversion},
	wasm.OpcodeI64TruncSatF32U: {bytecode.OpI64TruncSatF32U, wasm.ValueTypeF32, wasm.ValueTypeI64, wasm.FeatureNonTrappingFloatToIntConversion},
	wasm.OpcodeI64TruncSatF64S: {bytecode.OpI64TruncSatF64S, wasm.ValueTypeF64, wasm.ValueTypeI64, wasm.FeatureNonTrappingFloatToIntConversion},
	wasm.OpcodeI64TruncSatF64U: {bytecode.OpI64TruncSatF64U, wasm.ValueTypeF64, wasm.ValueTypeI64, wasm.FeatureNonTrappingFloatToIntConversion},
}

var reinterpretations = map[wasm.Opcode]wasm.ValueType{
	wasm.OpcodeI32ReinterpretF32: wasm.ValueTypeI32,
	wasm.OpcodeI64ReinterpretF64: wasm.ValueTypeI64,
	wasm.OpcodeF32ReinterpretI32: wasm.ValueTypeF32,
	wasm.OpcodeF64ReinterpretI64: wasm.ValueTypeF64,
}

// VisitNumeric implements wasm.FunctionVisitor.
func (t *Translator) VisitNumeric(op wasm.Opcode) error {
	name := wasm.OpcodeName(op)
	if u, ok := unaryOps[op]; ok && u.feature != 0 {
		if err := t.requireFeature(name, u.feature); err != nil {
			return err
		}
	}
	if ok, err := t.begin(name, costBase); !ok {
		return err
	}
	switch op {
	case wasm.OpcodeI32Eqz:
		return t.visitEqz(wasm.ValueTypeI32)
	case wasm.OpcodeI64Eqz:
		return t.visitEqz(wasm.ValueTypeI64)
	case wasm.OpcodeF32Copysign, wasm.OpcodeF64Copysign:
		return t.visitCopysign(op)
	}
	if cmp, ok := comparisons[op]; ok {
		return t.visitCompare(cmp)
	}
	if b, ok := binaryOps[op]; ok {
		return t.visitBinary(op, b)
	}
	if u, ok := unaryOps[op]; ok {
		return t.visitUnary(op, u)
	}
	if typ, ok := reinterpretations[op]; ok {
		return t.visitReinterpret(typ)
	}
	return fmt.Errorf("unsupported numeric operator %s", name)
}

// imm16 returns o as a 16-bit immediate if it is a constant fitting one.
func imm16(o *operand) (bytecode.Imm16, bool) {
	if o.kind != operandImmediate {
		return 0, false
	}
	switch o.typ {
	case wasm.ValueTypeI32:
		return bytecode.Imm16FromI32(int32(uint32(o.value)))
	case wasm.ValueTypeI64:
		return bytecode.Imm16FromI64(int64(o.value))
	}
	return 0, false
}

// visitCompare lowers a comparison. The result is staged so that a following eqz or branch can use it.
func (t *Translator) visitCompare(cmp bytecode.Comparator) error {
	rhs := t.stack.pop()
	lhs := t.stack.pop()
	if cmp.IsInteger() && lhs.kind == operandImmediate && rhs.kind == operandImmediate {
		return t.pushBool(foldCompare(cmp, lhs.value, rhs.value))
	}
	if imm, ok := imm16(&rhs); ok {
		if code, ok := cmp.Imm16OpCode(); ok {
			lhsSlot := t.inputSlot(&lhs)
			return t.stageWithResult(wasm.ValueTypeI32, func(result bytecode.Slot) bytecode.Instruction {
				return bytecode.BinaryImm16{Code: code, Result: result, Lhs: lhsSlot, Rhs: imm}
			})
		}
	}
	if imm, ok := imm16(&lhs); ok {
		if code, ok := cmp.Swap().Imm16OpCode(); ok {
			rhsSlot := t.inputSlot(&rhs)
			return t.stageWithResult(wasm.ValueTypeI32, func(result bytecode.Slot) bytecode.Instruction {
				return bytecode.BinaryImm16{Code: code, Result: result, Lhs: rhsSlot, Rhs: imm}
			})
		}
	}
	lhsSlot := t.inputSlot(&lhs)
	rhsSlot := t.inputSlot(&rhs)
	return t.stageWithResult(wasm.ValueTypeI32, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.Binary{Code: cmp.BinaryOpCode(), Result: result, Lhs: lhsSlot, Rhs: rhsSlot}
	})
}

// stageWithResult pushes a temp of type typ and stages the instruction producing it.
func (t *Translator) stageWithResult(typ wasm.ValueType, mk func(result bytecode.Slot) bytecode.Instruction) error {
	result, err := t.stack.pushTemp(typ)
	if err != nil {
		return err
	}
	t.enc.stage(mk(result))
	return nil
}

// encodeWithResult pushes a temp of type typ and encodes the instruction producing it.
func (t *Translator) encodeWithResult(typ wasm.ValueType, mk func(result bytecode.Slot) bytecode.Instruction) error {
	result, err := t.stack.pushTemp(typ)
	if err != nil {
		return err
	}
	t.enc.encode(mk(result))
	return nil
}

func (t *Translator) pushBool(b bool) error {
	var v uint64
	if b {
		v = 1
	}
	return t.stack.pushImmediate(wasm.ValueTypeI32, v)
}

// visitEqz lowers i32.eqz and i64.eqz. Negating a staged comparison is preferred over
// comparing its result with zero.
func (t *Translator) visitEqz(typ wasm.ValueType) error {
	if x := t.stack.peek(0); x.kind == operandTemp && t.negateStaged(x.stackSlot) {
		return nil
	}
	o := t.stack.pop()
	if o.kind == operandImmediate {
		return t.pushBool(truncate(typ, o.value) == 0)
	}
	code := bytecode.OpI32EqImm16
	if typ == wasm.ValueTypeI64 {
		code = bytecode.OpI64EqImm16
	}
	lhs := o.slot()
	return t.stageWithResult(wasm.ValueTypeI32, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.BinaryImm16{Code: code, Result: result, Lhs: lhs, Rhs: 0}
	})
}

// negateStaged replaces the staged comparison producing slot with its negation.
func (t *Translator) negateStaged(slot bytecode.Slot) bool {
	staged, ok := t.enc.peekStaged()
	if !ok {
		return false
	}
	if s, ok := bytecode.ResultSlot(staged); !ok || s != slot {
		return false
	}
	switch s := staged.(type) {
	case bytecode.Binary:
		cmp, ok := bytecode.ComparatorFromOpCode(s.Code)
		if !ok {
			return false
		}
		if cmp, ok = cmp.Negate(); !ok {
			return false
		}
		s.Code = cmp.BinaryOpCode()
		t.enc.replaceStaged(s)
		return true
	case bytecode.BinaryImm16:
		cmp, ok := bytecode.ComparatorFromOpCode(s.Code)
		if !ok {
			return false
		}
		if cmp, ok = cmp.Negate(); !ok {
			return false
		}
		if s.Code, ok = cmp.Imm16OpCode(); !ok {
			return false
		}
		t.enc.replaceStaged(s)
		return true
	}
	return false
}

// visitBinary lowers arithmetic operators, folding integer constants.
func (t *Translator) visitBinary(op wasm.Opcode, b binaryOp) error {
	rhs := t.stack.pop()
	lhs := t.stack.pop()
	isInt := b.typ == wasm.ValueTypeI32 || b.typ == wasm.ValueTypeI64

	if isInt && rhs.kind == operandImmediate {
		if lhs.kind == operandImmediate {
			v, trap, trapped := foldBinary(op, lhs.value, rhs.value)
			if trapped {
				return t.encodeTrap(trap)
			}
			return t.stack.pushImmediate(b.typ, v)
		}
		if isDivision(op) && truncate(b.typ, rhs.value) == 0 {
			return t.encodeTrap(bytecode.TrapCodeIntegerDivisionByZero)
		}
	}

	// x - c is lowered to x + (-c).
	if (op == wasm.OpcodeI32Sub || op == wasm.OpcodeI64Sub) && rhs.kind == operandImmediate {
		neg := rhs
		neg.value = truncate(b.typ, -rhs.value)
		if imm, ok := imm16(&neg); ok {
			add := binaryOps[wasm.OpcodeI32Add]
			if b.typ == wasm.ValueTypeI64 {
				add = binaryOps[wasm.OpcodeI64Add]
			}
			return t.encodeBinaryImm16(add.imm16, b.typ, &lhs, imm)
		}
	}

	if b.hasImm16 {
		if imm, ok := imm16(&rhs); ok {
			return t.encodeBinaryImm16(b.imm16, b.typ, &lhs, imm)
		}
		if b.commutative {
			if imm, ok := imm16(&lhs); ok {
				return t.encodeBinaryImm16(b.imm16, b.typ, &rhs, imm)
			}
		}
	}

	lhsSlot := t.inputSlot(&lhs)
	rhsSlot := t.inputSlot(&rhs)
	return t.encodeWithResult(b.typ, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.Binary{Code: b.code, Result: result, Lhs: lhsSlot, Rhs: rhsSlot}
	})
}

func (t *Translator) encodeBinaryImm16(code bytecode.OpCode, typ wasm.ValueType, lhs *operand, imm bytecode.Imm16) error {
	lhsSlot := t.inputSlot(lhs)
	return t.encodeWithResult(typ, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.BinaryImm16{Code: code, Result: result, Lhs: lhsSlot, Rhs: imm}
	})
}

// encodeTrap emits an unconditional trap for an operator known to always trap.
func (t *Translator) encodeTrap(code bytecode.TrapCode) error {
	t.enc.encode(bytecode.Trap{Code: code})
	t.reachable = false
	return nil
}

// visitCopysign lowers copysign, using the immediate form when the sign source is a constant.
func (t *Translator) visitCopysign(op wasm.Opcode) error {
	b := binaryOps[op]
	rhs := t.stack.peek(0)
	if rhs.kind != operandImmediate {
		return t.visitBinary(op, b)
	}
	var negative bool
	code := bytecode.OpF32CopysignImm
	if op == wasm.OpcodeF64Copysign {
		code = bytecode.OpF64CopysignImm
		negative = rhs.value>>63 != 0
	} else {
		negative = uint32(rhs.value)>>31 != 0
	}
	t.stack.pop()
	lhs := t.stack.pop()
	lhsSlot := t.inputSlot(&lhs)
	return t.encodeWithResult(b.typ, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.CopysignImm{Code: code, Result: result, Lhs: lhsSlot, Sign: bytecode.SignOf(negative)}
	})
}

// visitUnary lowers unary operators and conversions, folding integer constants.
func (t *Translator) visitUnary(op wasm.Opcode, u unaryOp) error {
	input := t.stack.pop()
	if input.kind == operandImmediate {
		if v, ok := foldUnary(op, input.value); ok {
			return t.stack.pushImmediate(u.out, v)
		}
	}
	inputSlot := t.inputSlot(&input)
	return t.encodeWithResult(u.out, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.Unary{Code: u.code, Result: result, Input: inputSlot}
	})
}

// visitReinterpret changes the type of the top value without changing its bits.
func (t *Translator) visitReinterpret(typ wasm.ValueType) error {
	if t.stack.peek(0).kind == operandLocal {
		// A local keeps its declared type, so the value is moved to its own slot first.
		t.materialize(0)
	}
	t.stack.retype(typ)
	return nil
}

func truncate(typ wasm.ValueType, v uint64) uint64 {
	if typ == wasm.ValueTypeI32 {
		return uint64(uint32(v))
	}
	return v
}

func isDivision(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeI32DivS, wasm.OpcodeI32DivU, wasm.OpcodeI32RemS, wasm.OpcodeI32RemU,
		wasm.OpcodeI64DivS, wasm.OpcodeI64DivU, wasm.OpcodeI64RemS, wasm.OpcodeI64RemU:
		return true
	}
	return false
}

// foldCompare evaluates an integer comparator on constants.
func foldCompare(cmp bytecode.Comparator, a, b uint64) bool {
	if cmp <= bytecode.CmpI32GeU {
		x, y := uint32(a), uint32(b)
		switch cmp {
		case bytecode.CmpI32Eq:
			return x == y
		case bytecode.CmpI32Ne:
			return x != y
		case bytecode.CmpI32LtS:
			return int32(x) < int32(y)
		case bytecode.CmpI32LtU:
			return x < y
		case bytecode.CmpI32GtS:
			return int32(x) > int32(y)
		case bytecode.CmpI32GtU:
			return x > y
		case bytecode.CmpI32LeS:
			return int32(x) <= int32(y)
		case bytecode.CmpI32LeU:
			return x <= y
		case bytecode.CmpI32GeS:
			return int32(x) >= int32(y)
		default:
			return x >= y
		}
	}
	switch cmp {
	case bytecode.CmpI64Eq:
		return a == b
	case bytecode.CmpI64Ne:
		return a != b
	case bytecode.CmpI64LtS:
		return int64(a) < int64(b)
	case bytecode.CmpI64LtU:
		return a < b
	case bytecode.CmpI64GtS:
		return int64(a) > int64(b)
	case bytecode.CmpI64GtU:
		return a > b
	case bytecode.CmpI64LeS:
		return int64(a) <= int64(b)
	case bytecode.CmpI64LeU:
		return a <= b
	case bytecode.CmpI64GeS:
		return int64(a) >= int64(b)
	case bytecode.CmpI64GeU:
		return a >= b
	}
	panic(fmt.Sprintf("BUG: cannot fold %s", cmp))
}

// foldBinary evaluates an integer arithmetic operator on constants. trapped is set with
// the trap code when the operator traps for the given operands.
func foldBinary(op wasm.Opcode, a, b uint64) (v uint64, trap bytecode.TrapCode, trapped bool) {
	switch op {
	case wasm.OpcodeI32DivS, wasm.OpcodeI32DivU, wasm.OpcodeI32RemS, wasm.OpcodeI32RemU:
		if uint32(b) == 0 {
			return 0, bytecode.TrapCodeIntegerDivisionByZero, true
		}
		if op == wasm.OpcodeI32DivS && int32(a) == math.MinInt32 && int32(b) == -1 {
			return 0, bytecode.TrapCodeIntegerOverflow, true
		}
	case wasm.OpcodeI64DivS, wasm.OpcodeI64DivU, wasm.OpcodeI64RemS, wasm.OpcodeI64RemU:
		if b == 0 {
			return 0, bytecode.TrapCodeIntegerDivisionByZero, true
		}
		if op == wasm.OpcodeI64DivS && int64(a) == math.MinInt64 && int64(b) == -1 {
			return 0, bytecode.TrapCodeIntegerOverflow, true
		}
	}
	switch op {
	case wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul, wasm.OpcodeI32DivS, wasm.OpcodeI32DivU,
		wasm.OpcodeI32RemS, wasm.OpcodeI32RemU, wasm.OpcodeI32And, wasm.OpcodeI32Or, wasm.OpcodeI32Xor,
		wasm.OpcodeI32Shl, wasm.OpcodeI32ShrS, wasm.OpcodeI32ShrU, wasm.OpcodeI32Rotl, wasm.OpcodeI32Rotr:
		return uint64(foldI32(op, uint32(a), uint32(b))), 0, false
	}
	return foldI64(op, a, b), 0, false
}

func foldI32(op wasm.Opcode, a, b uint32) uint32 {
	switch op {
	case wasm.OpcodeI32Add:
		return a + b
	case wasm.OpcodeI32Sub:
		return a - b
	case wasm.OpcodeI32Mul:
		return a * b
	case wasm.OpcodeI32DivS:
		return uint32(int32(a) / int32(b))
	case wasm.OpcodeI32DivU:
		return a / b
	case wasm.OpcodeI32RemS:
		if int32(b) == -1 {
			return 0
		}
		return uint32(int32(a) % int32(b))
	case wasm.OpcodeI32RemU:
		return a % b
	case wasm.OpcodeI32And:
		return a & b
	case wasm.OpcodeI32Or:
		return a | b
	case wasm.OpcodeI32Xor:
		return a ^ b
	case wasm.OpcodeI32Shl:
		return a << (b % 32)
	case wasm.OpcodeI32ShrS:
		return uint32(int32(a) >> (b % 32))
	case wasm.OpcodeI32ShrU:
		return a >> (b % 32)
	case wasm.OpcodeI32Rotl:
		return rotl32(a, b)
	default: // rotr
		return rotl32(a, -b)
	}
}

func foldI64(op wasm.Opcode, a, b uint64) uint64 {
	switch op {
	case wasm.OpcodeI64Add:
		return a + b
	case wasm.OpcodeI64Sub:
		return a - b
	case wasm.OpcodeI64Mul:
		return a * b
	case wasm.OpcodeI64DivS:
		return uint64(int64(a) / int64(b))
	case wasm.OpcodeI64DivU:
		return a / b
	case wasm.OpcodeI64RemS:
		if int64(b) == -1 {
			return 0
		}
		return uint64(int64(a) % int64(b))
	case wasm.OpcodeI64RemU:
		return a % b
	case wasm.OpcodeI64And:
		return a & b
	case wasm.OpcodeI64Or:
		return a | b
	case wasm.OpcodeI64Xor:
		return a ^ b
	case wasm.OpcodeI64Shl:
		return a << (b % 64)
	case wasm.OpcodeI64ShrS:
		return uint64(int64(a) >> (b % 64))
	case wasm.OpcodeI64ShrU:
		return a >> (b % 64)
	case wasm.OpcodeI64Rotl:
		return rotl64(a, b)
	default: // rotr
		return rotl64(a, -b)
	}
}

func rotl32(a, b uint32) uint32 {
	return bits.RotateLeft32(a, int(b%32))
}

func rotl64(a, b uint64) uint64 {
	return bits.RotateLeft64(a, int(b%64))
}

// foldUnary evaluates integer unary operators and conversions on a constant.
// Float operators are never folded.
func foldUnary(op wasm.Opcode, v uint64) (uint64, bool) {
	switch op {
	case wasm.OpcodeI32Clz:
		return uint64(bits.LeadingZeros32(uint32(v))), true
	case wasm.OpcodeI32Ctz:
		return uint64(bits.TrailingZeros32(uint32(v))), true
	case wasm.OpcodeI32Popcnt:
		return uint64(bits.OnesCount32(uint32(v))), true
	case wasm.OpcodeI64Clz:
		return uint64(bits.LeadingZeros64(v)), true
	case wasm.OpcodeI64Ctz:
		return uint64(bits.TrailingZeros64(v)), true
	case wasm.OpcodeI64Popcnt:
		return uint64(bits.OnesCount64(v)), true
	case wasm.OpcodeI32WrapI64:
		return uint64(uint32(v)), true
	case wasm.OpcodeI64ExtendI32S:
		return uint64(int64(int32(uint32(v)))), true
	case wasm.OpcodeI64ExtendI32U:
		return uint64(uint32(v)), true
	case wasm.OpcodeI32Extend8S:
		return uint64(uint32(int32(int8(v)))), true
	case wasm.OpcodeI32Extend16S:
		return uint64(uint32(int32(int16(v)))), true
	case wasm.OpcodeI64Extend8S:
		return uint64(int64(int8(v))), true
	case wasm.OpcodeI64Extend16S:
		return uint64(int64(int16(v))), true
	case wasm.OpcodeI64Extend32S:
		return uint64(int64(int32(v))), true
	}
	return 0, false
}
