package bytecode

import "fmt"

// Shape is the operand layout shared by a group of opcodes.
type Shape byte

const (
	shapeInvalid Shape = iota
	shapeTrap
	shapeConsumeFuel
	shapeReturn
	shapeReturnSlot
	shapeReturnImm32
	shapeReturnImm64
	shapeReturnMany
	shapeBranch
	shapeBranchIf
	shapeBranchCmp
	shapeBranchCmpWide
	shapeBranchCmpImm
	shapeBranchTable
	shapeCopy
	shapeCopyImm32
	shapeCopyImm64
	shapeSelect
	shapeCall
	shapeCallIndirect
	shapeReturnCall
	shapeReturnCallIndirect
	shapeGlobalGet
	shapeGlobalSet
	shapeMemorySize
	shapeMemoryGrow
	shapeMemoryFill
	shapeMemoryCopy
	shapeMemoryInit
	shapeDataDrop
	shapeTableGet
	shapeTableSet
	shapeTableSize
	shapeTableGrow
	shapeTableFill
	shapeTableCopy
	shapeTableInit
	shapeElemDrop
	shapeRefFunc
	shapeLoad
	shapeStore
	shapeUnary
	shapeBinary
	shapeBinaryImm16
	shapeCopysignImm
)

// Instruction is a single register-machine instruction.
//
// Encode appends the opcode followed by the operands in declaration order without padding.
type Instruction interface {
	fmt.Stringer
	OpCode() OpCode
	Encode(b *Buffer)
}

// Offset field positions relative to the first byte of the instruction.
const (
	opCodeSize = 2

	branchOffsetField    = opCodeSize
	branchIfOffsetField  = opCodeSize + 2
	branchCmpOffsetField = opCodeSize + 1 + 2 + 2
	branchTableFirst     = opCodeSize + 2 + 2
)

// Trap unconditionally traps with Code.
type Trap struct {
	Code TrapCode
}

func (Trap) OpCode() OpCode { return OpTrap }
func (i Trap) Encode(b *Buffer) {
	b.putOpCode(OpTrap)
	b.putU8(uint8(i.Code))
}
func (i Trap) String() string { return fmt.Sprintf("trap %s", i.Code) }

// ConsumeFuel charges Fuel when a metered region is entered.
type ConsumeFuel struct {
	Fuel BlockFuel
}

func (ConsumeFuel) OpCode() OpCode { return OpConsumeFuel }
func (i ConsumeFuel) Encode(b *Buffer) {
	b.putOpCode(OpConsumeFuel)
	b.putU64(uint64(i.Fuel))
}
func (i ConsumeFuel) String() string { return fmt.Sprintf("consume_fuel %d", uint64(i.Fuel)) }

// Return returns from a function without results.
type Return struct{}

func (Return) OpCode() OpCode { return OpReturn }
func (Return) Encode(b *Buffer) { b.putOpCode(OpReturn) }
func (Return) String() string { return "return" }

// ReturnSlot returns the single value stored in Value.
type ReturnSlot struct {
	Value Slot
}

func (ReturnSlot) OpCode() OpCode { return OpReturnSlot }
func (i ReturnSlot) Encode(b *Buffer) {
	b.putOpCode(OpReturnSlot)
	b.putSlot(i.Value)
}
func (i ReturnSlot) String() string { return fmt.Sprintf("return_slot %s", i.Value) }

// ReturnImm32 returns a single 32-bit constant.
type ReturnImm32 struct {
	Value uint32
}

func (ReturnImm32) OpCode() OpCode { return OpReturnImm32 }
func (i ReturnImm32) Encode(b *Buffer) {
	b.putOpCode(OpReturnImm32)
	b.putU32(i.Value)
}
func (i ReturnImm32) String() string { return fmt.Sprintf("return_imm32 %#x", i.Value) }

// ReturnImm64 returns a single 64-bit constant.
type ReturnImm64 struct {
	Value uint64
}

func (ReturnImm64) OpCode() OpCode { return OpReturnImm64 }
func (i ReturnImm64) Encode(b *Buffer) {
	b.putOpCode(OpReturnImm64)
	b.putU64(i.Value)
}
func (i ReturnImm64) String() string { return fmt.Sprintf("return_imm64 %#x", i.Value) }

// ReturnMany returns the values stored in Values in order.
type ReturnMany struct {
	Values SlotList
}

func (ReturnMany) OpCode() OpCode { return OpReturnMany }
func (i ReturnMany) Encode(b *Buffer) {
	b.putOpCode(OpReturnMany)
	b.putSlotList(i.Values)
}
func (i ReturnMany) String() string { return fmt.Sprintf("return_many %s", i.Values) }

// Branch unconditionally continues at Offset.
type Branch struct {
	Offset BranchOffset
}

func (Branch) OpCode() OpCode { return OpBranch }
func (i Branch) Encode(b *Buffer) {
	b.putOpCode(OpBranch)
	b.putOffset(i.Offset)
}
func (i Branch) String() string { return fmt.Sprintf("br %s", i.Offset) }

// BranchIf continues at Offset if Condition is zero (OpBranchIfEqz) or non-zero (OpBranchIfNez).
type BranchIf struct {
	Code      OpCode
	Condition Slot
	Offset    BranchOffset
}

func (i BranchIf) OpCode() OpCode { return i.Code }
func (i BranchIf) Encode(b *Buffer) {
	b.putOpCode(i.Code)
	b.putSlot(i.Condition)
	b.putOffset(i.Offset)
}
func (i BranchIf) String() string {
	return fmt.Sprintf("%s %s, %s", i.Code, i.Condition, i.Offset)
}

// BranchCmp continues at Offset if Cmp holds for Lhs and Rhs. It is the narrow form of BranchCmpWide.
type BranchCmp struct {
	Cmp      Comparator
	Lhs, Rhs Slot
	Offset   BranchOffset16
}

func (BranchCmp) OpCode() OpCode { return OpBranchCmp }
func (i BranchCmp) Encode(b *Buffer) {
	b.putOpCode(OpBranchCmp)
	b.putComparator(i.Cmp)
	b.putSlot(i.Lhs)
	b.putSlot(i.Rhs)
	b.putOffset16(i.Offset)
}
func (i BranchCmp) String() string {
	return fmt.Sprintf("br_cmp %s %s, %s, %s", i.Cmp, i.Lhs, i.Rhs, i.Offset)
}

// BranchCmpWide continues at Offset if Cmp holds for Lhs and Rhs.
type BranchCmpWide struct {
	Cmp      Comparator
	Lhs, Rhs Slot
	Offset   BranchOffset
}

func (BranchCmpWide) OpCode() OpCode { return OpBranchCmpWide }
func (i BranchCmpWide) Encode(b *Buffer) {
	b.putOpCode(OpBranchCmpWide)
	b.putComparator(i.Cmp)
	b.putSlot(i.Lhs)
	b.putSlot(i.Rhs)
	b.putOffset(i.Offset)
}
func (i BranchCmpWide) String() string {
	return fmt.Sprintf("br_cmp_wide %s %s, %s, %s", i.Cmp, i.Lhs, i.Rhs, i.Offset)
}

// BranchCmpImm continues at Offset if the integer comparator Cmp holds for Lhs and the constant Rhs.
type BranchCmpImm struct {
	Cmp    Comparator
	Lhs    Slot
	Rhs    Imm16
	Offset BranchOffset
}

func (BranchCmpImm) OpCode() OpCode { return OpBranchCmpImm }
func (i BranchCmpImm) Encode(b *Buffer) {
	b.putOpCode(OpBranchCmpImm)
	b.putComparator(i.Cmp)
	b.putSlot(i.Lhs)
	b.putImm16(i.Rhs)
	b.putOffset(i.Offset)
}
func (i BranchCmpImm) String() string {
	return fmt.Sprintf("br_cmp_imm %s %s, %d, %s", i.Cmp, i.Lhs, i.Rhs, i.Offset)
}

// BranchTable continues at Targets[Index], or at the last target if Index is out of range.
type BranchTable struct {
	Index   Slot
	Targets BranchOffsetList
}

func (BranchTable) OpCode() OpCode { return OpBranchTable }
func (i BranchTable) Encode(b *Buffer) {
	b.putOpCode(OpBranchTable)
	b.putSlot(i.Index)
	b.putOffsetList(i.Targets)
}
func (i BranchTable) String() string {
	return fmt.Sprintf("br_table %s, %s", i.Index, i.Targets)
}

// Copy stores the value of Value into Result.
type Copy struct {
	Result, Value Slot
}

func (Copy) OpCode() OpCode { return OpCopy }
func (i Copy) Encode(b *Buffer) {
	b.putOpCode(OpCopy)
	b.putSlot(i.Result)
	b.putSlot(i.Value)
}
func (i Copy) String() string { return fmt.Sprintf("copy %s, %s", i.Result, i.Value) }

// CopyImm32 stores a 32-bit constant into Result.
type CopyImm32 struct {
	Result Slot
	Value  uint32
}

func (CopyImm32) OpCode() OpCode { return OpCopyImm32 }
func (i CopyImm32) Encode(b *Buffer) {
	b.putOpCode(OpCopyImm32)
	b.putSlot(i.Result)
	b.putU32(i.Value)
}
func (i CopyImm32) String() string { return fmt.Sprintf("copy_imm32 %s, %#x", i.Result, i.Value) }

// CopyImm64 stores a 64-bit constant into Result.
type CopyImm64 struct {
	Result Slot
	Value  uint64
}

func (CopyImm64) OpCode() OpCode { return OpCopyImm64 }
func (i CopyImm64) Encode(b *Buffer) {
	b.putOpCode(OpCopyImm64)
	b.putSlot(i.Result)
	b.putU64(i.Value)
}
func (i CopyImm64) String() string { return fmt.Sprintf("copy_imm64 %s, %#x", i.Result, i.Value) }

// Select stores Lhs into Result if Condition is non-zero, Rhs otherwise.
type Select struct {
	Result, Condition, Lhs, Rhs Slot
}

func (Select) OpCode() OpCode { return OpSelect }
func (i Select) Encode(b *Buffer) {
	b.putOpCode(OpSelect)
	b.putSlot(i.Result)
	b.putSlot(i.Condition)
	b.putSlot(i.Lhs)
	b.putSlot(i.Rhs)
}
func (i Select) String() string {
	return fmt.Sprintf("select %s, %s, %s, %s", i.Result, i.Condition, i.Lhs, i.Rhs)
}

// Call calls the function at Func in the side table of the translated function.
// Results are stored in consecutive cells starting at Results.
type Call struct {
	Results Slot
	Func    uint32
	Params  SlotList
}

func (Call) OpCode() OpCode { return OpCall }
func (i Call) Encode(b *Buffer) {
	b.putOpCode(OpCall)
	b.putSlot(i.Results)
	b.putU32(i.Func)
	b.putSlotList(i.Params)
}
func (i Call) String() string {
	return fmt.Sprintf("call %s, func[%d], %s", i.Results, i.Func, i.Params)
}

// CallIndirect calls the function stored at element Index of table Table after checking it has type Type.
type CallIndirect struct {
	Results Slot
	Index   Slot
	Type    uint32
	Table   uint32
	Params  SlotList
}

func (CallIndirect) OpCode() OpCode { return OpCallIndirect }
func (i CallIndirect) Encode(b *Buffer) {
	b.putOpCode(OpCallIndirect)
	b.putSlot(i.Results)
	b.putSlot(i.Index)
	b.putU32(i.Type)
	b.putU32(i.Table)
	b.putSlotList(i.Params)
}
func (i CallIndirect) String() string {
	return fmt.Sprintf("call_indirect %s, table[%d][%s], type[%d], %s", i.Results, i.Table, i.Index, i.Type, i.Params)
}

// ReturnCall calls the function at Func in the side table of the translated function and
// returns its results to the caller of the current function.
type ReturnCall struct {
	Func   uint32
	Params SlotList
}

func (ReturnCall) OpCode() OpCode { return OpReturnCall }
func (i ReturnCall) Encode(b *Buffer) {
	b.putOpCode(OpReturnCall)
	b.putU32(i.Func)
	b.putSlotList(i.Params)
}
func (i ReturnCall) String() string {
	return fmt.Sprintf("return_call func[%d], %s", i.Func, i.Params)
}

// ReturnCallIndirect is the indirect form of ReturnCall, see CallIndirect.
type ReturnCallIndirect struct {
	Index  Slot
	Type   uint32
	Table  uint32
	Params SlotList
}

func (ReturnCallIndirect) OpCode() OpCode { return OpReturnCallIndirect }
func (i ReturnCallIndirect) Encode(b *Buffer) {
	b.putOpCode(OpReturnCallIndirect)
	b.putSlot(i.Index)
	b.putU32(i.Type)
	b.putU32(i.Table)
	b.putSlotList(i.Params)
}
func (i ReturnCallIndirect) String() string {
	return fmt.Sprintf("return_call_indirect table[%d][%s], type[%d], %s", i.Table, i.Index, i.Type, i.Params)
}

type GlobalGet struct {
	Result Slot
	Global uint32
}

func (GlobalGet) OpCode() OpCode { return OpGlobalGet }
func (i GlobalGet) Encode(b *Buffer) {
	b.putOpCode(OpGlobalGet)
	b.putSlot(i.Result)
	b.putU32(i.Global)
}
func (i GlobalGet) String() string { return fmt.Sprintf("global.get %s, global[%d]", i.Result, i.Global) }

type GlobalSet struct {
	Value  Slot
	Global uint32
}

func (GlobalSet) OpCode() OpCode { return OpGlobalSet }
func (i GlobalSet) Encode(b *Buffer) {
	b.putOpCode(OpGlobalSet)
	b.putSlot(i.Value)
	b.putU32(i.Global)
}
func (i GlobalSet) String() string { return fmt.Sprintf("global.set global[%d], %s", i.Global, i.Value) }

type MemorySize struct {
	Result Slot
	Memory uint32
}

func (MemorySize) OpCode() OpCode { return OpMemorySize }
func (i MemorySize) Encode(b *Buffer) {
	b.putOpCode(OpMemorySize)
	b.putSlot(i.Result)
	b.putU32(i.Memory)
}
func (i MemorySize) String() string { return fmt.Sprintf("memory.size %s, mem%d", i.Result, i.Memory) }

type MemoryGrow struct {
	Result Slot
	Delta  Slot
	Memory uint32
}

func (MemoryGrow) OpCode() OpCode { return OpMemoryGrow }
func (i MemoryGrow) Encode(b *Buffer) {
	b.putOpCode(OpMemoryGrow)
	b.putSlot(i.Result)
	b.putSlot(i.Delta)
	b.putU32(i.Memory)
}
func (i MemoryGrow) String() string {
	return fmt.Sprintf("memory.grow %s, mem%d, %s", i.Result, i.Memory, i.Delta)
}

// MemoryFill sets the Len bytes of memory Memory starting at the address stored in Dst
// to the low byte of Value.
type MemoryFill struct {
	Dst, Value, Len Slot
	Memory          uint32
}

func (MemoryFill) OpCode() OpCode { return OpMemoryFill }
func (i MemoryFill) Encode(b *Buffer) {
	b.putOpCode(OpMemoryFill)
	b.putSlot(i.Dst)
	b.putSlot(i.Value)
	b.putSlot(i.Len)
	b.putU32(i.Memory)
}
func (i MemoryFill) String() string {
	return fmt.Sprintf("memory.fill mem%d[%s], %s, %s", i.Memory, i.Dst, i.Value, i.Len)
}

// MemoryCopy copies Len bytes from memory SrcMemory at Src to memory DstMemory at Dst.
// The ranges may overlap.
type MemoryCopy struct {
	Dst, Src, Len        Slot
	DstMemory, SrcMemory uint32
}

func (MemoryCopy) OpCode() OpCode { return OpMemoryCopy }
func (i MemoryCopy) Encode(b *Buffer) {
	b.putOpCode(OpMemoryCopy)
	b.putSlot(i.Dst)
	b.putSlot(i.Src)
	b.putSlot(i.Len)
	b.putU32(i.DstMemory)
	b.putU32(i.SrcMemory)
}
func (i MemoryCopy) String() string {
	return fmt.Sprintf("memory.copy mem%d[%s], mem%d[%s], %s", i.DstMemory, i.Dst, i.SrcMemory, i.Src, i.Len)
}

// MemoryInit copies Len bytes of data segment Data starting at Src to memory Memory at Dst.
type MemoryInit struct {
	Dst, Src, Len Slot
	Memory, Data  uint32
}

func (MemoryInit) OpCode() OpCode { return OpMemoryInit }
func (i MemoryInit) Encode(b *Buffer) {
	b.putOpCode(OpMemoryInit)
	b.putSlot(i.Dst)
	b.putSlot(i.Src)
	b.putSlot(i.Len)
	b.putU32(i.Memory)
	b.putU32(i.Data)
}
func (i MemoryInit) String() string {
	return fmt.Sprintf("memory.init mem%d[%s], data[%d][%s], %s", i.Memory, i.Dst, i.Data, i.Src, i.Len)
}

type DataDrop struct {
	Data uint32
}

func (DataDrop) OpCode() OpCode { return OpDataDrop }
func (i DataDrop) Encode(b *Buffer) {
	b.putOpCode(OpDataDrop)
	b.putU32(i.Data)
}
func (i DataDrop) String() string { return fmt.Sprintf("data.drop data[%d]", i.Data) }

type TableGet struct {
	Result, Index Slot
	Table         uint32
}

func (TableGet) OpCode() OpCode { return OpTableGet }
func (i TableGet) Encode(b *Buffer) {
	b.putOpCode(OpTableGet)
	b.putSlot(i.Result)
	b.putSlot(i.Index)
	b.putU32(i.Table)
}
func (i TableGet) String() string {
	return fmt.Sprintf("table.get %s, table[%d][%s]", i.Result, i.Table, i.Index)
}

type TableSet struct {
	Index, Value Slot
	Table        uint32
}

func (TableSet) OpCode() OpCode { return OpTableSet }
func (i TableSet) Encode(b *Buffer) {
	b.putOpCode(OpTableSet)
	b.putSlot(i.Index)
	b.putSlot(i.Value)
	b.putU32(i.Table)
}
func (i TableSet) String() string {
	return fmt.Sprintf("table.set table[%d][%s], %s", i.Table, i.Index, i.Value)
}

type TableSize struct {
	Result Slot
	Table  uint32
}

func (TableSize) OpCode() OpCode { return OpTableSize }
func (i TableSize) Encode(b *Buffer) {
	b.putOpCode(OpTableSize)
	b.putSlot(i.Result)
	b.putU32(i.Table)
}
func (i TableSize) String() string { return fmt.Sprintf("table.size %s, table[%d]", i.Result, i.Table) }

// TableGrow grows table Table by Delta elements set to Init and stores the previous size,
// or -1 on failure, into Result.
type TableGrow struct {
	Result, Delta, Init Slot
	Table               uint32
}

func (TableGrow) OpCode() OpCode { return OpTableGrow }
func (i TableGrow) Encode(b *Buffer) {
	b.putOpCode(OpTableGrow)
	b.putSlot(i.Result)
	b.putSlot(i.Delta)
	b.putSlot(i.Init)
	b.putU32(i.Table)
}
func (i TableGrow) String() string {
	return fmt.Sprintf("table.grow %s, table[%d], %s, %s", i.Result, i.Table, i.Delta, i.Init)
}

// TableFill sets the Len elements of table Table starting at Dst to Value.
type TableFill struct {
	Dst, Value, Len Slot
	Table           uint32
}

func (TableFill) OpCode() OpCode { return OpTableFill }
func (i TableFill) Encode(b *Buffer) {
	b.putOpCode(OpTableFill)
	b.putSlot(i.Dst)
	b.putSlot(i.Value)
	b.putSlot(i.Len)
	b.putU32(i.Table)
}
func (i TableFill) String() string {
	return fmt.Sprintf("table.fill table[%d][%s], %s, %s", i.Table, i.Dst, i.Value, i.Len)
}

// TableCopy copies Len elements from table SrcTable at Src to table DstTable at Dst.
type TableCopy struct {
	Dst, Src, Len      Slot
	DstTable, SrcTable uint32
}

func (TableCopy) OpCode() OpCode { return OpTableCopy }
func (i TableCopy) Encode(b *Buffer) {
	b.putOpCode(OpTableCopy)
	b.putSlot(i.Dst)
	b.putSlot(i.Src)
	b.putSlot(i.Len)
	b.putU32(i.DstTable)
	b.putU32(i.SrcTable)
}
func (i TableCopy) String() string {
	return fmt.Sprintf("table.copy table[%d][%s], table[%d][%s], %s", i.DstTable, i.Dst, i.SrcTable, i.Src, i.Len)
}

// TableInit copies Len elements of element segment Elem starting at Src to table Table at Dst.
type TableInit struct {
	Dst, Src, Len Slot
	Table, Elem   uint32
}

func (TableInit) OpCode() OpCode { return OpTableInit }
func (i TableInit) Encode(b *Buffer) {
	b.putOpCode(OpTableInit)
	b.putSlot(i.Dst)
	b.putSlot(i.Src)
	b.putSlot(i.Len)
	b.putU32(i.Table)
	b.putU32(i.Elem)
}
func (i TableInit) String() string {
	return fmt.Sprintf("table.init table[%d][%s], elem[%d][%s], %s", i.Table, i.Dst, i.Elem, i.Src, i.Len)
}

type ElemDrop struct {
	Elem uint32
}

func (ElemDrop) OpCode() OpCode { return OpElemDrop }
func (i ElemDrop) Encode(b *Buffer) {
	b.putOpCode(OpElemDrop)
	b.putU32(i.Elem)
}
func (i ElemDrop) String() string { return fmt.Sprintf("elem.drop elem[%d]", i.Elem) }

// RefFunc stores a reference to the function at Func in the side table into Result.
type RefFunc struct {
	Result Slot
	Func   uint32
}

func (RefFunc) OpCode() OpCode { return OpRefFunc }
func (i RefFunc) Encode(b *Buffer) {
	b.putOpCode(OpRefFunc)
	b.putSlot(i.Result)
	b.putU32(i.Func)
}
func (i RefFunc) String() string { return fmt.Sprintf("ref.func %s, func[%d]", i.Result, i.Func) }

// Load reads from memory Memory at the address stored in Ptr plus Offset.
type Load struct {
	Code   OpCode
	Result Slot
	Ptr    Slot
	Offset uint64
	Memory uint32
}

func (i Load) OpCode() OpCode { return i.Code }
func (i Load) Encode(b *Buffer) {
	b.putOpCode(i.Code)
	b.putSlot(i.Result)
	b.putSlot(i.Ptr)
	b.putU64(i.Offset)
	b.putU32(i.Memory)
}
func (i Load) String() string {
	return fmt.Sprintf("%s %s, mem%d[%s+%d]", i.Code, i.Result, i.Memory, i.Ptr, i.Offset)
}

// Store writes Value to memory Memory at the address stored in Ptr plus Offset.
type Store struct {
	Code   OpCode
	Ptr    Slot
	Value  Slot
	Offset uint64
	Memory uint32
}

func (i Store) OpCode() OpCode { return i.Code }
func (i Store) Encode(b *Buffer) {
	b.putOpCode(i.Code)
	b.putSlot(i.Ptr)
	b.putSlot(i.Value)
	b.putU64(i.Offset)
	b.putU32(i.Memory)
}
func (i Store) String() string {
	return fmt.Sprintf("%s mem%d[%s+%d], %s", i.Code, i.Memory, i.Ptr, i.Offset, i.Value)
}

type Unary struct {
	Code          OpCode
	Result, Input Slot
}

func (i Unary) OpCode() OpCode { return i.Code }
func (i Unary) Encode(b *Buffer) {
	b.putOpCode(i.Code)
	b.putSlot(i.Result)
	b.putSlot(i.Input)
}
func (i Unary) String() string { return fmt.Sprintf("%s %s, %s", i.Code, i.Result, i.Input) }

type Binary struct {
	Code             OpCode
	Result, Lhs, Rhs Slot
}

func (i Binary) OpCode() OpCode { return i.Code }
func (i Binary) Encode(b *Buffer) {
	b.putOpCode(i.Code)
	b.putSlot(i.Result)
	b.putSlot(i.Lhs)
	b.putSlot(i.Rhs)
}
func (i Binary) String() string {
	return fmt.Sprintf("%s %s, %s, %s", i.Code, i.Result, i.Lhs, i.Rhs)
}

type BinaryImm16 struct {
	Code        OpCode
	Result, Lhs Slot
	Rhs         Imm16
}

func (i BinaryImm16) OpCode() OpCode { return i.Code }
func (i BinaryImm16) Encode(b *Buffer) {
	b.putOpCode(i.Code)
	b.putSlot(i.Result)
	b.putSlot(i.Lhs)
	b.putImm16(i.Rhs)
}
func (i BinaryImm16) String() string {
	return fmt.Sprintf("%s %s, %s, %d", i.Code, i.Result, i.Lhs, i.Rhs)
}

// CopysignImm stores Lhs with its sign replaced by Sign into Result.
type CopysignImm struct {
	Code        OpCode
	Result, Lhs Slot
	Sign        Sign
}

func (i CopysignImm) OpCode() OpCode { return i.Code }
func (i CopysignImm) Encode(b *Buffer) {
	b.putOpCode(i.Code)
	b.putSlot(i.Result)
	b.putSlot(i.Lhs)
	b.putU8(uint8(i.Sign))
}
func (i CopysignImm) String() string {
	return fmt.Sprintf("%s %s, %s, %s", i.Code, i.Result, i.Lhs, i.Sign)
}

// ResultSlot returns the slot an instruction writes its single result to, if it has one.
func ResultSlot(instr Instruction) (Slot, bool) {
	switch i := instr.(type) {
	case Copy:
		return i.Result, true
	case CopyImm32:
		return i.Result, true
	case CopyImm64:
		return i.Result, true
	case Select:
		return i.Result, true
	case GlobalGet:
		return i.Result, true
	case MemorySize:
		return i.Result, true
	case MemoryGrow:
		return i.Result, true
	case TableGet:
		return i.Result, true
	case TableSize:
		return i.Result, true
	case TableGrow:
		return i.Result, true
	case RefFunc:
		return i.Result, true
	case Load:
		return i.Result, true
	case Unary:
		return i.Result, true
	case Binary:
		return i.Result, true
	case BinaryImm16:
		return i.Result, true
	case CopysignImm:
		return i.Result, true
	}
	return 0, false
}

// WithResultSlot returns instr with its result slot replaced by s.
// It panics if instr has no single result.
func WithResultSlot(instr Instruction, s Slot) Instruction {
	switch i := instr.(type) {
	case Copy:
		i.Result = s
		return i
	case CopyImm32:
		i.Result = s
		return i
	case CopyImm64:
		i.Result = s
		return i
	case Select:
		i.Result = s
		return i
	case GlobalGet:
		i.Result = s
		return i
	case MemorySize:
		i.Result = s
		return i
	case MemoryGrow:
		i.Result = s
		return i
	case TableGet:
		i.Result = s
		return i
	case TableSize:
		i.Result = s
		return i
	case TableGrow:
		i.Result = s
		return i
	case RefFunc:
		i.Result = s
		return i
	case Load:
		i.Result = s
		return i
	case Unary:
		i.Result = s
		return i
	case Binary:
		i.Result = s
		return i
	case BinaryImm16:
		i.Result = s
		return i
	case CopysignImm:
		i.Result = s
		return i
	}
	panic(fmt.Sprintf("BUG: %s has no result slot", instr.OpCode()))
}

// OffsetAt returns the branch offset stored at field position field of instr.
// field is relative to the first byte of instr.
func OffsetAt(instr Instruction, field int) (BranchOffset, bool) {
	switch i := instr.(type) {
	case Branch:
		return i.Offset, field == branchOffsetField
	case BranchIf:
		return i.Offset, field == branchIfOffsetField
	case BranchCmp:
		return BranchOffset(i.Offset), field == branchCmpOffsetField
	case BranchCmpWide:
		return i.Offset, field == branchCmpOffsetField
	case BranchCmpImm:
		return i.Offset, field == branchCmpOffsetField
	case BranchTable:
		n := field - branchTableFirst
		if n < 0 || n%4 != 0 || n/4 >= len(i.Targets) {
			return 0, false
		}
		return i.Targets[n/4], true
	}
	return 0, false
}

// OffsetField returns the position, relative to the first byte of instr, of the branch offset
// of a single-target branch instruction and whether that field is the 16-bit narrow form.
func OffsetField(instr Instruction) (field int, narrow bool, ok bool) {
	switch instr.(type) {
	case Branch:
		return branchOffsetField, false, true
	case BranchIf:
		return branchIfOffsetField, false, true
	case BranchCmp:
		return branchCmpOffsetField, true, true
	case BranchCmpWide, BranchCmpImm:
		return branchCmpOffsetField, false, true
	}
	return 0, false, false
}

// TableTargetField returns the position, relative to the first byte of a BranchTable, of its n-th target.
func TableTargetField(n int) int {
	return branchTableFirst + 4*n
}
