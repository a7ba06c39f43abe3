package wasm

// ModuleHeader is the read-only module information needed while translating function bodies.
//
// Implementations must be safe for concurrent use as bodies are translated in parallel.
type ModuleHeader interface {
	// FunctionType returns the signature of the function in the function index space,
	// which includes imported functions.
	FunctionType(funcIndex Index) *FunctionType
	// TypeAt returns the type section entry at typeIndex.
	TypeAt(typeIndex Index) *FunctionType
	// GlobalType returns the value type of the global in the global index space.
	GlobalType(globalIndex Index) ValueType
	// TableType returns the element type of the table in the table index space, either
	// ValueTypeFuncref or ValueTypeExternref.
	TableType(tableIndex Index) ValueType
	// FunctionHandle returns the engine-wide handle of the function in the function index space.
	FunctionHandle(funcIndex Index) FunctionHandle
}

// Module is a decoded module reduced to what function translation needs.
type Module struct {
	TypeSection []*FunctionType

	// ImportFunctionSection holds the type index of each imported function.
	ImportFunctionSection []Index

	// FunctionSection holds the type index of each function defined in this module.
	FunctionSection []Index

	// GlobalTypes holds the value type of every global, imported ones first.
	GlobalTypes []ValueType

	// TableTypes holds the element type of every table, imported ones first.
	TableTypes []ValueType

	// CodeSection holds the body of every defined function: the local declarations
	// followed by the expression, without the size prefix.
	CodeSection [][]byte

	// HandleBase is added to the function index to produce a FunctionHandle.
	HandleBase FunctionHandle
}

var _ ModuleHeader = (*Module)(nil)

// ImportFuncCount returns the number of imported functions.
func (m *Module) ImportFuncCount() Index {
	return Index(len(m.ImportFunctionSection))
}

// DefinedFunctionIndex returns the index in the function index space of the i-th defined function.
func (m *Module) DefinedFunctionIndex(i int) Index {
	return m.ImportFuncCount() + Index(i)
}

// FunctionType implements ModuleHeader.FunctionType
func (m *Module) FunctionType(funcIndex Index) *FunctionType {
	imported := m.ImportFuncCount()
	if funcIndex < imported {
		return m.TypeSection[m.ImportFunctionSection[funcIndex]]
	}
	return m.TypeSection[m.FunctionSection[funcIndex-imported]]
}

// TypeAt implements ModuleHeader.TypeAt
func (m *Module) TypeAt(typeIndex Index) *FunctionType {
	return m.TypeSection[typeIndex]
}

// GlobalType implements ModuleHeader.GlobalType
func (m *Module) GlobalType(globalIndex Index) ValueType {
	return m.GlobalTypes[globalIndex]
}

// TableType implements ModuleHeader.TableType
func (m *Module) TableType(tableIndex Index) ValueType {
	return m.TableTypes[tableIndex]
}

// FunctionHandle implements ModuleHeader.FunctionHandle
func (m *Module) FunctionHandle(funcIndex Index) FunctionHandle {
	return m.HandleBase + FunctionHandle(funcIndex)
}
