package wasm

// FunctionVisitor receives the operators of a single function body in order.
//
// The body reader in package binary calls UpdatePos with the byte offset of each operator
// before dispatching it, and VisitLocals once per local declaration group before the first
// operator. Returning an error aborts decoding.
//
// Implementations may assume the body is valid: operand types and stack heights are not
// re-checked.
type FunctionVisitor interface {
	// UpdatePos sets the byte offset of the operator about to be visited.
	UpdatePos(offset int)

	VisitLocals(count uint32, t ValueType) error

	VisitUnreachable() error
	VisitNop() error
	VisitBlock(bt BlockType) error
	VisitLoop(bt BlockType) error
	VisitIf(bt BlockType) error
	VisitElse() error
	// VisitEnd is called for every end including the final one of the body.
	VisitEnd() error
	VisitBr(depth uint32) error
	VisitBrIf(depth uint32) error
	VisitBrTable(targets []uint32, defaultTarget uint32) error
	VisitReturn() error
	VisitCall(funcIndex Index) error
	VisitCallIndirect(typeIndex, tableIndex Index) error
	VisitReturnCall(funcIndex Index) error
	VisitReturnCallIndirect(typeIndex, tableIndex Index) error

	VisitDrop() error
	VisitSelect() error
	// VisitTypedSelect is called for select with an explicit result type.
	VisitTypedSelect(t ValueType) error

	VisitLocalGet(index Index) error
	VisitLocalSet(index Index) error
	VisitLocalTee(index Index) error
	VisitGlobalGet(index Index) error
	VisitGlobalSet(index Index) error

	// VisitLoad is called for every OpcodeI32Load through OpcodeI64Load32U.
	VisitLoad(op Opcode, arg MemArg) error
	// VisitStore is called for every OpcodeI32Store through OpcodeI64Store32.
	VisitStore(op Opcode, arg MemArg) error
	VisitMemorySize(memory Index) error
	VisitMemoryGrow(memory Index) error
	VisitMemoryFill(memory Index) error
	VisitMemoryCopy(dstMemory, srcMemory Index) error
	VisitMemoryInit(dataIndex, memory Index) error
	VisitDataDrop(dataIndex Index) error

	VisitTableGet(table Index) error
	VisitTableSet(table Index) error
	VisitTableSize(table Index) error
	VisitTableGrow(table Index) error
	VisitTableFill(table Index) error
	VisitTableCopy(dstTable, srcTable Index) error
	VisitTableInit(elemIndex, table Index) error
	VisitElemDrop(elemIndex Index) error

	// VisitRefNull is called with ValueTypeFuncref or ValueTypeExternref.
	VisitRefNull(t ValueType) error
	VisitRefIsNull() error
	VisitRefFunc(funcIndex Index) error

	VisitI32Const(value int32) error
	VisitI64Const(value int64) error
	VisitF32Const(bits uint32) error
	VisitF64Const(bits uint64) error

	// VisitNumeric is called for every comparison, arithmetic, conversion and
	// reinterpretation operator. Prefixed operators use IsMiscOpcode encoding.
	VisitNumeric(op Opcode) error
}
