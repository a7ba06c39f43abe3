package wasm

import (
	"fmt"
	"strings"
)

// ValueType is the binary encoding of a type such as i32
// See https://www.w3.org/TR/wasm-core-2/#binary-valtype
//
// Note: This is a type alias as it is easier to encode and decode in the binary format.
type ValueType = byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the type name of the given ValueType as a string.
// These type names match the names used in the WebAssembly text format.
// Note that ValueTypeName returns "unknown", if an undefined ValueType value is passed.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	}
	return "unknown"
}

// ValueTypeCells returns the number of storage cells a value of the given type occupies.
//
// Every type fits a single 64-bit cell except v128 which needs two.
func ValueTypeCells(t ValueType) uint32 {
	if t == ValueTypeV128 {
		return 2
	}
	return 1
}

// FunctionType is a possibly empty function signature.
// See https://www.w3.org/TR/wasm-core-2/#function-types%E2%91%A0
type FunctionType struct {
	// Params are the possibly empty sequence of value types accepted by a function with this signature.
	Params []ValueType

	// Results are the possibly empty sequence of value types returned by a function with this signature.
	Results []ValueType
}

// String implements fmt.Stringer.
func (t *FunctionType) String() string {
	return signatureString(t.Params, t.Results)
}

// BlockType is the resolved signature of a block, loop or if.
//
// Block types encoded as a type index are resolved to the referenced FunctionType, so
// a BlockType can carry parameters only when multi-value is enabled.
type BlockType struct {
	Params  []ValueType
	Results []ValueType
}

// BlockTypeEmpty is the block type of a block which neither takes nor produces values.
var BlockTypeEmpty = BlockType{}

// BlockTypeOf returns the block type yielding a single value of type t.
func BlockTypeOf(t ValueType) BlockType {
	return BlockType{Results: []ValueType{t}}
}

// BlockTypeFromFunctionType returns the block type equivalent of the given signature.
func BlockTypeFromFunctionType(t *FunctionType) BlockType {
	return BlockType{Params: t.Params, Results: t.Results}
}

// String implements fmt.Stringer.
func (b BlockType) String() string {
	return signatureString(b.Params, b.Results)
}

func signatureString(params, results []ValueType) string {
	var b strings.Builder
	b.WriteString("(")
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ValueTypeName(p))
	}
	b.WriteString(") -> (")
	for i, r := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ValueTypeName(r))
	}
	b.WriteString(")")
	return b.String()
}

// MemArg is the immediate of load and store instructions.
// See https://www.w3.org/TR/wasm-core-2/#syntax-memarg
type MemArg struct {
	// Align is the alignment hint expressed as the exponent of a power of 2.
	Align uint32
	// Offset is the static address offset added to the dynamic address operand.
	Offset uint64
	// Memory is the index of the accessed linear memory. Always zero without multi-memory.
	Memory uint32
}

// String implements fmt.Stringer.
func (m MemArg) String() string {
	return fmt.Sprintf("mem%d offset=%d align=%d", m.Memory, m.Offset, m.Align)
}

// FunctionHandle is an engine-wide identifier of a function. Translated code refers to
// callees through a per-function side table of handles.
type FunctionHandle uint32

// Index is the offset in an index namespace, not necessarily an absolute position in a Module section.
type Index = uint32
