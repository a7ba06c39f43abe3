package bytecode

import "fmt"

// OpCode is the discriminant of an encoded instruction.
//
// Each OpCode has exactly one operand layout, see Shape.
type OpCode uint16

const (
	// control

	OpTrap OpCode = iota
	OpConsumeFuel
	OpReturn
	OpReturnSlot
	OpReturnImm32
	OpReturnImm64
	OpReturnMany
	OpBranch
	OpBranchIfEqz
	OpBranchIfNez
	OpBranchCmp
	OpBranchCmpWide
	OpBranchCmpImm
	OpBranchTable

	// copies and selection

	OpCopy
	OpCopyImm32
	OpCopyImm64
	OpSelect

	// calls

	OpCall
	OpCallIndirect
	OpReturnCall
	OpReturnCallIndirect

	// instance

	OpGlobalGet
	OpGlobalSet
	OpMemorySize
	OpMemoryGrow

	// bulk memory, tables and references

	OpMemoryFill
	OpMemoryCopy
	OpMemoryInit
	OpDataDrop
	OpTableGet
	OpTableSet
	OpTableSize
	OpTableGrow
	OpTableFill
	OpTableCopy
	OpTableInit
	OpElemDrop
	OpRefFunc

	// memory loads

	OpI32Load
	OpI64Load
	OpF32Load
	OpF64Load
	OpI32Load8S
	OpI32Load8U
	OpI32Load16S
	OpI32Load16U
	OpI64Load8S
	OpI64Load8U
	OpI64Load16S
	OpI64Load16U
	OpI64Load32S
	OpI64Load32U

	// memory stores

	OpI32Store
	OpI64Store
	OpF32Store
	OpF64Store
	OpI32Store8
	OpI32Store16
	OpI64Store8
	OpI64Store16
	OpI64Store32

	// unary operators

	OpI32Clz
	OpI32Ctz
	OpI32Popcnt
	OpI64Clz
	OpI64Ctz
	OpI64Popcnt
	OpF32Abs
	OpF32Neg
	OpF32Ceil
	OpF32Floor
	OpF32Trunc
	OpF32Nearest
	OpF32Sqrt
	OpF64Abs
	OpF64Neg
	OpF64Ceil
	OpF64Floor
	OpF64Trunc
	OpF64Nearest
	OpF64Sqrt
	OpI32WrapI64
	OpI32TruncF32S
	OpI32TruncF32U
	OpI32TruncF64S
	OpI32TruncF64U
	OpI64ExtendI32S
	OpI64ExtendI32U
	OpI64TruncF32S
	OpI64TruncF32U
	OpI64TruncF64S
	OpI64TruncF64U
	OpF32ConvertI32S
	OpF32ConvertI32U
	OpF32ConvertI64S
	OpF32ConvertI64U
	OpF32DemoteF64
	OpF64ConvertI32S
	OpF64ConvertI32U
	OpF64ConvertI64S
	OpF64ConvertI64U
	OpF64PromoteF32
	OpI32Extend8S
	OpI32Extend16S
	OpI64Extend8S
	OpI64Extend16S
	OpI64Extend32S
	OpI32TruncSatF32S
	OpI32TruncSatF32U
	OpI32TruncSatF64S
	OpI32TruncSatF64U
	OpI64TruncSatF32S
	OpI64TruncSatF32U
	OpI64TruncSatF64S
	OpI64TruncSatF64U
	OpRefIsNull

	// binary operators

	OpI32Eq
	OpI32Ne
	OpI32LtS
	OpI32LtU
	OpI32GtS
	OpI32GtU
	OpI32LeS
	OpI32LeU
	OpI32GeS
	OpI32GeU
	OpI64Eq
	OpI64Ne
	OpI64LtS
	OpI64LtU
	OpI64GtS
	OpI64GtU
	OpI64LeS
	OpI64LeU
	OpI64GeS
	OpI64GeU
	OpF32Eq
	OpF32Ne
	OpF32Lt
	OpF32Gt
	OpF32Le
	OpF32Ge
	OpF64Eq
	OpF64Ne
	OpF64Lt
	OpF64Gt
	OpF64Le
	OpF64Ge
	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI32DivS
	OpI32DivU
	OpI32RemS
	OpI32RemU
	OpI32And
	OpI32Or
	OpI32Xor
	OpI32Shl
	OpI32ShrS
	OpI32ShrU
	OpI32Rotl
	OpI32Rotr
	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64DivS
	OpI64DivU
	OpI64RemS
	OpI64RemU
	OpI64And
	OpI64Or
	OpI64Xor
	OpI64Shl
	OpI64ShrS
	OpI64ShrU
	OpI64Rotl
	OpI64Rotr
	OpF32Add
	OpF32Sub
	OpF32Mul
	OpF32Div
	OpF32Min
	OpF32Max
	OpF32Copysign
	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div
	OpF64Min
	OpF64Max
	OpF64Copysign

	// binary operators with a 16-bit immediate rhs

	OpI32EqImm16
	OpI32NeImm16
	OpI32LtSImm16
	OpI32LtUImm16
	OpI32GtSImm16
	OpI32GtUImm16
	OpI32LeSImm16
	OpI32LeUImm16
	OpI32GeSImm16
	OpI32GeUImm16
	OpI32AddImm16
	OpI32MulImm16
	OpI32AndImm16
	OpI32OrImm16
	OpI32XorImm16
	OpI32ShlImm16
	OpI32ShrSImm16
	OpI32ShrUImm16
	OpI32RotlImm16
	OpI32RotrImm16
	OpI64EqImm16
	OpI64NeImm16
	OpI64LtSImm16
	OpI64LtUImm16
	OpI64GtSImm16
	OpI64GtUImm16
	OpI64LeSImm16
	OpI64LeUImm16
	OpI64GeSImm16
	OpI64GeUImm16
	OpI64AddImm16
	OpI64MulImm16
	OpI64AndImm16
	OpI64OrImm16
	OpI64XorImm16
	OpI64ShlImm16
	OpI64ShrSImm16
	OpI64ShrUImm16
	OpI64RotlImm16
	OpI64RotrImm16

	// copysign with an immediate sign

	OpF32CopysignImm
	OpF64CopysignImm

	opCodeEnd
)

type opCodeInfo struct {
	name  string
	shape Shape
}

var opCodeInfos = [opCodeEnd]opCodeInfo{
	OpTrap:               {"trap", shapeTrap},
	OpConsumeFuel:        {"consume_fuel", shapeConsumeFuel},
	OpReturn:             {"return", shapeReturn},
	OpReturnSlot:         {"return_slot", shapeReturnSlot},
	OpReturnImm32:        {"return_imm32", shapeReturnImm32},
	OpReturnImm64:        {"return_imm64", shapeReturnImm64},
	OpReturnMany:         {"return_many", shapeReturnMany},
	OpBranch:             {"br", shapeBranch},
	OpBranchIfEqz:        {"br_eqz", shapeBranchIf},
	OpBranchIfNez:        {"br_nez", shapeBranchIf},
	OpBranchCmp:          {"br_cmp", shapeBranchCmp},
	OpBranchCmpWide:      {"br_cmp_wide", shapeBranchCmpWide},
	OpBranchCmpImm:       {"br_cmp_imm", shapeBranchCmpImm},
	OpBranchTable:        {"br_table", shapeBranchTable},
	OpCopy:               {"copy", shapeCopy},
	OpCopyImm32:          {"copy_imm32", shapeCopyImm32},
	OpCopyImm64:          {"copy_imm64", shapeCopyImm64},
	OpSelect:             {"select", shapeSelect},
	OpCall:               {"call", shapeCall},
	OpCallIndirect:       {"call_indirect", shapeCallIndirect},
	OpReturnCall:         {"return_call", shapeReturnCall},
	OpReturnCallIndirect: {"return_call_indirect", shapeReturnCallIndirect},
	OpGlobalGet:          {"global.get", shapeGlobalGet},
	OpGlobalSet:          {"global.set", shapeGlobalSet},
	OpMemorySize:         {"memory.size", shapeMemorySize},
	OpMemoryGrow:         {"memory.grow", shapeMemoryGrow},
	OpMemoryFill:         {"memory.fill", shapeMemoryFill},
	OpMemoryCopy:         {"memory.copy", shapeMemoryCopy},
	OpMemoryInit:         {"memory.init", shapeMemoryInit},
	OpDataDrop:           {"data.drop", shapeDataDrop},
	OpTableGet:           {"table.get", shapeTableGet},
	OpTableSet:           {"table.set", shapeTableSet},
	OpTableSize:          {"table.size", shapeTableSize},
	OpTableGrow:          {"table.grow", shapeTableGrow},
	OpTableFill:          {"table.fill", shapeTableFill},
	OpTableCopy:          {"table.copy", shapeTableCopy},
	OpTableInit:          {"table.init", shapeTableInit},
	OpElemDrop:           {"elem.drop", shapeElemDrop},
	OpRefFunc:            {"ref.func", shapeRefFunc},
	OpI32Load:            {"i32.load", shapeLoad},
	OpI64Load:            {"i64.load", shapeLoad},
	OpF32Load:            {"f32.load", shapeLoad},
	OpF64Load:            {"f64.load", shapeLoad},
	OpI32Load8S:          {"i32.load8_s", shapeLoad},
	OpI32Load8U:          {"i32.load8_u", shapeLoad},
	OpI32Load16S:         {"i32.load16_s", shapeLoad},
	OpI32Load16U:         {"i32.load16_u", shapeLoad},
	OpI64Load8S:          {"i64.load8_s", shapeLoad},
	OpI64Load8U:          {"i64.load8_u", shapeLoad},
	OpI64Load16S:         {"i64.load16_s", shapeLoad},
	OpI64Load16U:         {"i64.load16_u", shapeLoad},
	OpI64Load32S:         {"i64.load32_s", shapeLoad},
	OpI64Load32U:         {"i64.load32_u", shapeLoad},
	OpI32Store:           {"i32.store", shapeStore},
	OpI64Store:           {"i64.store", shapeStore},
	OpF32Store:           {"f32.store", shapeStore},
	OpF64Store:           {"f64.store", shapeStore},
	OpI32Store8:          {"i32.store8", shapeStore},
	OpI32Store16:         {"i32.store16", shapeStore},
	OpI64Store8:          {"i64.store8", shapeStore},
	OpI64Store16:         {"i64.store16", shapeStore},
	OpI64Store32:         {"i64.store32", shapeStore},
	OpI32Clz:             {"i32.clz", shapeUnary},
	OpI32Ctz:             {"i32.ctz", shapeUnary},
	OpI32Popcnt:          {"i32.popcnt", shapeUnary},
	OpI64Clz:             {"i64.clz", shapeUnary},
	OpI64Ctz:             {"i64.ctz", shapeUnary},
	OpI64Popcnt:          {"i64.popcnt", shapeUnary},
	OpF32Abs:             {"f32.abs", shapeUnary},
	OpF32Neg:             {"f32.neg", shapeUnary},
	OpF32Ceil:            {"f32.ceil", shapeUnary},
	OpF32Floor:           {"f32.floor", shapeUnary},
	OpF32Trunc:           {"f32.trunc", shapeUnary},
	OpF32Nearest:         {"f32.nearest", shapeUnary},
	OpF32Sqrt:            {"f32.sqrt", shapeUnary},
	OpF64Abs:             {"f64.abs", shapeUnary},
	OpF64Neg:             {"f64.neg", shapeUnary},
	OpF64Ceil:            {"f64.ceil", shapeUnary},
	OpF64Floor:           {"f64.floor", shapeUnary},
	OpF64Trunc:           {"f64.trunc", shapeUnary},
	OpF64Nearest:         {"f64.nearest", shapeUnary},
	OpF64Sqrt:            {"f64.sqrt", shapeUnary},
	OpI32WrapI64:         {"i32.wrap_i64", shapeUnary},
	OpI32TruncF32S:       {"i32.trunc_f32_s", shapeUnary},
	OpI32TruncF32U:       {"i32.trunc_f32_u", shapeUnary},
	OpI32TruncF64S:       {"i32.trunc_f64_s", shapeUnary},
	OpI32TruncF64U:       {"i32.trunc_f64_u", shapeUnary},
	OpI64ExtendI32S:      {"i64.extend_i32_s", shapeUnary},
	OpI64ExtendI32U:      {"i64.extend_i32_u", shapeUnary},
	OpI64TruncF32S:       {"i64.trunc_f32_s", shapeUnary},
	OpI64TruncF32U:       {"i64.trunc_f32_u", shapeUnary},
	OpI64TruncF64S:       {"i64.trunc_f64_s", shapeUnary},
	OpI64TruncF64U:       {"i64.trunc_f64_u", shapeUnary},
	OpF32ConvertI32S:     {"f32.convert_i32_s", shapeUnary},
	OpF32ConvertI32U:     {"f32.convert_i32_u", shapeUnary},
	OpF32ConvertI64S:     {"f32.convert_i64_s", shapeUnary},
	OpF32ConvertI64U:     {"f32.convert_i64_u", shapeUnary},
	OpF32DemoteF64:       {"f32.demote_f64", shapeUnary},
	OpF64ConvertI32S:     {"f64.convert_i32_s", shapeUnary},
	OpF64ConvertI32U:     {"f64.convert_i32_u", shapeUnary},
	OpF64ConvertI64S:     {"f64.convert_i64_s", shapeUnary},
	OpF64ConvertI64U:     {"f64.convert_i64_u", shapeUnary},
	OpF64PromoteF32:      {"f64.promote_f32", shapeUnary},
	OpI32Extend8S:        {"i32.extend8_s", shapeUnary},
	OpI32Extend16S:       {"i32.extend16_s", shapeUnary},
	OpI64Extend8S:        {"i64.extend8_s", shapeUnary},
	OpI64Extend16S:       {"i64.extend16_s", shapeUnary},
	OpI64Extend32S:       {"i64.extend32_s", shapeUnary},
	OpI32TruncSatF32S:    {"i32.trunc_sat_f32_s", shapeUnary},
	OpI32TruncSatF32U:    {"i32.trunc_sat_f32_u", shapeUnary},
	OpI32TruncSatF64S:    {"i32.trunc_sat_f64_s", shapeUnary},
	OpI32TruncSatF64U:    {"i32.trunc_sat_f64_u", shapeUnary},
	OpI64TruncSatF32S:    {"i64.trunc_sat_f32_s", shapeUnary},
	OpI64TruncSatF32U:    {"i64.trunc_sat_f32_u", shapeUnary},
	OpI64TruncSatF64S:    {"i64.trunc_sat_f64_s", shapeUnary},
	OpI64TruncSatF64U:    {"i64.trunc_sat_f64_u", shapeUnary},
	OpRefIsNull:          {"ref.is_null", shapeUnary},
	OpI32Eq:              {"i32.eq", shapeBinary},
	OpI32Ne:              {"i32.ne", shapeBinary},
	OpI32LtS:             {"i32.lt_s", shapeBinary},
	OpI32LtU:             {"i32.lt_u", shapeBinary},
	OpI32GtS:             {"i32.gt_s", shapeBinary},
	OpI32GtU:             {"i32.gt_u", shapeBinary},
	OpI32LeS:             {"i32.le_s", shapeBinary},
	OpI32LeU:             {"i32.le_u", shapeBinary},
	OpI32GeS:             {"i32.ge_s", shapeBinary},
	OpI32GeU:             {"i32.ge_u", shapeBinary},
	OpI64Eq:              {"i64.eq", shapeBinary},
	OpI64Ne:              {"i64.ne", shapeBinary},
	OpI64LtS:             {"i64.lt_s", shapeBinary},
	OpI64LtU:             {"i64.lt_u", shapeBinary},
	OpI64GtS:             {"i64.gt_s", shapeBinary},
	OpI64GtU:             {"i64.gt_u", shapeBinary},
	OpI64LeS:             {"i64.le_s", shapeBinary},
	OpI64LeU:             {"i64.le_u", shapeBinary},
	OpI64GeS:             {"i64.ge_s", shapeBinary},
	OpI64GeU:             {"i64.ge_u", shapeBinary},
	OpF32Eq:              {"f32.eq", shapeBinary},
	OpF32Ne:              {"f32.ne", shapeBinary},
	OpF32Lt:              {"f32.lt", shapeBinary},
	OpF32Gt:              {"f32.gt", shapeBinary},
	OpF32Le:              {"f32.le", shapeBinary},
	OpF32Ge:              {"f32.ge", shapeBinary},
	OpF64Eq:              {"f64.eq", shapeBinary},
	OpF64Ne:              {"f64.ne", shapeBinary},
	OpF64Lt:              {"f64.lt", shapeBinary},
	OpF64Gt:              {"f64.gt", shapeBinary},
	OpF64Le:              {"f64.le", shapeBinary},
	OpF64Ge:              {"f64.ge", shapeBinary},
	OpI32Add:             {"i32.add", shapeBinary},
	OpI32Sub:             {"i32.sub", shapeBinary},
	OpI32Mul:             {"i32.mul", shapeBinary},
	OpI32DivS:            {"i32.div_s", shapeBinary},
	OpI32DivU:            {"i32.div_u", shapeBinary},
	OpI32RemS:            {"i32.rem_s", shapeBinary},
	OpI32RemU:            {"i32.rem_u", shapeBinary},
	OpI32And:             {"i32.and", shapeBinary},
	OpI32Or:              {"i32.or", shapeBinary},
	OpI32Xor:             {"i32.xor", shapeBinary},
	OpI32Shl:             {"i32.shl", shapeBinary},
	OpI32ShrS:            {"i32.shr_s", shapeBinary},
	OpI32ShrU:            {"i32.shr_u", shapeBinary},
	OpI32Rotl:            {"i32.rotl", shapeBinary},
	OpI32Rotr:            {"i32.rotr", shapeBinary},
	OpI64Add:             {"i64.add", shapeBinary},
	OpI64Sub:             {"i64.sub", shapeBinary},
	OpI64Mul:             {"i64.mul", shapeBinary},
	OpI64DivS:            {"i64.div_s", shapeBinary},
	OpI64DivU:            {"i64.div_u", shapeBinary},
	OpI64RemS:            {"i64.rem_s", shapeBinary},
	OpI64RemU:            {"i64.rem_u", shapeBinary},
	OpI64And:             {"i64.and", shapeBinary},
	OpI64Or:              {"i64.or", shapeBinary},
	OpI64Xor:             {"i64.xor", shapeBinary},
	OpI64Shl:             {"i64.shl", shapeBinary},
	OpI64ShrS:            {"i64.shr_s", shapeBinary},
	OpI64ShrU:            {"i64.shr_u", shapeBinary},
	OpI64Rotl:            {"i64.rotl", shapeBinary},
	OpI64Rotr:            {"i64.rotr", shapeBinary},
	OpF32Add:             {"f32.add", shapeBinary},
	OpF32Sub:             {"f32.sub", shapeBinary},
	OpF32Mul:             {"f32.mul", shapeBinary},
	OpF32Div:             {"f32.div", shapeBinary},
	OpF32Min:             {"f32.min", shapeBinary},
	OpF32Max:             {"f32.max", shapeBinary},
	OpF32Copysign:        {"f32.copysign", shapeBinary},
	OpF64Add:             {"f64.add", shapeBinary},
	OpF64Sub:             {"f64.sub", shapeBinary},
	OpF64Mul:             {"f64.mul", shapeBinary},
	OpF64Div:             {"f64.div", shapeBinary},
	OpF64Min:             {"f64.min", shapeBinary},
	OpF64Max:             {"f64.max", shapeBinary},
	OpF64Copysign:        {"f64.copysign", shapeBinary},
	OpI32EqImm16:         {"i32.eq_imm16", shapeBinaryImm16},
	OpI32NeImm16:         {"i32.ne_imm16", shapeBinaryImm16},
	OpI32LtSImm16:        {"i32.lt_s_imm16", shapeBinaryImm16},
	OpI32LtUImm16:        {"i32.lt_u_imm16", shapeBinaryImm16},
	OpI32GtSImm16:        {"i32.gt_s_imm16", shapeBinaryImm16},
	OpI32GtUImm16:        {"i32.gt_u_imm16", shapeBinaryImm16},
	OpI32LeSImm16:        {"i32.le_s_imm16", shapeBinaryImm16},
	OpI32LeUImm16:        {"i32.le_u_imm16", shapeBinaryImm16},
	OpI32GeSImm16:        {"i32.ge_s_imm16", shapeBinaryImm16},
	OpI32GeUImm16:        {"i32.ge_u_imm16", shapeBinaryImm16},
	OpI32AddImm16:        {"i32.add_imm16", shapeBinaryImm16},
	OpI32MulImm16:        {"i32.mul_imm16", shapeBinaryImm16},
	OpI32AndImm16:        {"i32.and_imm16", shapeBinaryImm16},
	OpI32OrImm16:         {"i32.or_imm16", shapeBinaryImm16},
	OpI32XorImm16:        {"i32.xor_imm16", shapeBinaryImm16},
	OpI32ShlImm16:        {"i32.shl_imm16", shapeBinaryImm16},
	OpI32ShrSImm16:       {"i32.shr_s_imm16", shapeBinaryImm16},
	OpI32ShrUImm16:       {"i32.shr_u_imm16", shapeBinaryImm16},
	OpI32RotlImm16:       {"i32.rotl_imm16", shapeBinaryImm16},
	OpI32RotrImm16:       {"i32.rotr_imm16", shapeBinaryImm16},
	OpI64EqImm16:         {"i64.eq_imm16", shapeBinaryImm16},
	OpI64NeImm16:         {"i64.ne_imm16", shapeBinaryImm16},
	OpI64LtSImm16:        {"i64.lt_s_imm16", shapeBinaryImm16},
	OpI64LtUImm16:        {"i64.lt_u_imm16", shapeBinaryImm16},
	OpI64GtSImm16:        {"i64.gt_s_imm16", shapeBinaryImm16},
	OpI64GtUImm16:        {"i64.gt_u_imm16", shapeBinaryImm16},
	OpI64LeSImm16:        {"i64.le_s_imm16", shapeBinaryImm16},
	OpI64LeUImm16:        {"i64.le_u_imm16", shapeBinaryImm16},
	OpI64GeSImm16:        {"i64.ge_s_imm16", shapeBinaryImm16},
	OpI64GeUImm16:        {"i64.ge_u_imm16", shapeBinaryImm16},
	OpI64AddImm16:        {"i64.add_imm16", shapeBinaryImm16},
	OpI64MulImm16:        {"i64.mul_imm16", shapeBinaryImm16},
	OpI64AndImm16:        {"i64.and_imm16", shapeBinaryImm16},
	OpI64OrImm16:         {"i64.or_imm16", shapeBinaryImm16},
	OpI64XorImm16:        {"i64.xor_imm16", shapeBinaryImm16},
	OpI64ShlImm16:        {"i64.shl_imm16", shapeBinaryImm16},
	OpI64ShrSImm16:       {"i64.shr_s_imm16", shapeBinaryImm16},
	OpI64ShrUImm16:       {"i64.shr_u_imm16", shapeBinaryImm16},
	OpI64RotlImm16:       {"i64.rotl_imm16", shapeBinaryImm16},
	OpI64RotrImm16:       {"i64.rotr_imm16", shapeBinaryImm16},
	OpF32CopysignImm:     {"f32.copysign_imm", shapeCopysignImm},
	OpF64CopysignImm:     {"f64.copysign_imm", shapeCopysignImm},
}

// String implements fmt.Stringer.
func (o OpCode) String() string {
	if o < opCodeEnd {
		return opCodeInfos[o].name
	}
	return fmt.Sprintf("opcode(%d)", uint16(o))
}

// Shape returns the operand layout of the instruction identified by o.
func (o OpCode) Shape() Shape {
	if o < opCodeEnd {
		return opCodeInfos[o].shape
	}
	return shapeInvalid
}

// IsValid returns true if o identifies an instruction.
func (o OpCode) IsValid() bool {
	return o < opCodeEnd
}
