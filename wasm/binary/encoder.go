package binary

import (
	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/leb128"
)

// importModuleName is the module name given to every function and global import written by EncodeModule.
const importModuleName = "env"

// EncodeModule encodes m in the binary format. Imports are named after their position,
// every table is defined without a minimum size and every defined global is initialized to
// the zero value of its type.
//
// This is the inverse of DecodeModule for the sections it decodes.
func EncodeModule(m *wasm.Module) []byte {
	ret := append(append([]byte{}, magic...), version...)
	if len(m.TypeSection) > 0 {
		ret = append(ret, encodeTypeSection(m.TypeSection)...)
	}
	if len(m.ImportFunctionSection) > 0 {
		ret = append(ret, encodeImportSection(m.ImportFunctionSection)...)
	}
	if len(m.FunctionSection) > 0 {
		ret = append(ret, encodeSection(SectionIDFunction, encodeIndexVector(m.FunctionSection))...)
	}
	if len(m.TableTypes) > 0 {
		ret = append(ret, encodeTableSection(m.TableTypes)...)
	}
	if len(m.GlobalTypes) > 0 {
		ret = append(ret, encodeGlobalSection(m.GlobalTypes)...)
	}
	if len(m.CodeSection) > 0 {
		ret = append(ret, encodeCodeSection(m.CodeSection)...)
	}
	return ret
}

// encodeSection encodes the sectionID, the size of its contents in bytes, followed by the contents.
// See https://www.w3.org/TR/wasm-core-2/#sections%E2%91%A0
func encodeSection(sectionID SectionID, contents []byte) []byte {
	return append(append([]byte{sectionID}, leb128.EncodeUint32(uint32(len(contents)))...), contents...)
}

func encodeTypeSection(types []*wasm.FunctionType) []byte {
	contents := leb128.EncodeUint32(uint32(len(types)))
	for _, t := range types {
		contents = append(contents, 0x60)
		contents = append(contents, encodeValueTypes(t.Params)...)
		contents = append(contents, encodeValueTypes(t.Results)...)
	}
	return encodeSection(SectionIDType, contents)
}

func encodeImportSection(typeIndices []wasm.Index) []byte {
	contents := leb128.EncodeUint32(uint32(len(typeIndices)))
	for i, idx := range typeIndices {
		contents = append(contents, encodeName(importModuleName)...)
		contents = append(contents, encodeName(string(rune('a'+i%26)))...)
		contents = append(contents, importKindFunc)
		contents = append(contents, leb128.EncodeUint32(idx)...)
	}
	return encodeSection(SectionIDImport, contents)
}

func encodeTableSection(types []wasm.ValueType) []byte {
	contents := leb128.EncodeUint32(uint32(len(types)))
	for _, t := range types {
		contents = append(contents, t, 0x00, 0x00) // no maximum, minimum 0
	}
	return encodeSection(SectionIDTable, contents)
}

func encodeGlobalSection(types []wasm.ValueType) []byte {
	contents := leb128.EncodeUint32(uint32(len(types)))
	for _, t := range types {
		contents = append(contents, t, 0x01) // mutable
		contents = append(contents, zeroConstExpr(t)...)
	}
	return encodeSection(SectionIDGlobal, contents)
}

func zeroConstExpr(t wasm.ValueType) []byte {
	end := byte(wasm.OpcodeEnd)
	switch t {
	case wasm.ValueTypeI32:
		return []byte{byte(wasm.OpcodeI32Const), 0, end}
	case wasm.ValueTypeI64:
		return []byte{byte(wasm.OpcodeI64Const), 0, end}
	case wasm.ValueTypeF32:
		return []byte{byte(wasm.OpcodeF32Const), 0, 0, 0, 0, end}
	case wasm.ValueTypeF64:
		return []byte{byte(wasm.OpcodeF64Const), 0, 0, 0, 0, 0, 0, 0, 0, end}
	default:
		return []byte{constExprRefNull, t, end}
	}
}

func encodeCodeSection(bodies [][]byte) []byte {
	contents := leb128.EncodeUint32(uint32(len(bodies)))
	for _, body := range bodies {
		contents = append(contents, leb128.EncodeUint32(uint32(len(body)))...)
		contents = append(contents, body...)
	}
	return encodeSection(SectionIDCode, contents)
}

func encodeIndexVector(indices []wasm.Index) []byte {
	ret := leb128.EncodeUint32(uint32(len(indices)))
	for _, idx := range indices {
		ret = append(ret, leb128.EncodeUint32(idx)...)
	}
	return ret
}

func encodeValueTypes(types []wasm.ValueType) []byte {
	return append(leb128.EncodeUint32(uint32(len(types))), types...)
}

func encodeName(name string) []byte {
	return append(leb128.EncodeUint32(uint32(len(name))), name...)
}
