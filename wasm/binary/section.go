package binary

import (
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
)

func decodeTypeSection(r *reader) ([]*wasm.FunctionType, error) {
	vs, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.FunctionType, 0, min(int(vs), r.remaining()))
	for i := uint32(0); i < vs; i++ {
		ft, err := decodeFunctionType(r)
		if err != nil {
			return nil, fmt.Errorf("read %d-th type: %w", i, err)
		}
		result = append(result, ft)
	}
	return result, nil
}

func decodeFunctionType(r *reader) (*wasm.FunctionType, error) {
	b, err := r.readByte()
	if err != nil {
		return nil, fmt.Errorf("read leading byte: %w", err)
	}
	if b != 0x60 {
		return nil, fmt.Errorf("%w: %#x != 0x60", wasm.ErrInvalidByte, b)
	}

	params, err := r.readValueTypes()
	if err != nil {
		return nil, fmt.Errorf("could not read parameter types: %w", err)
	}
	results, err := r.readValueTypes()
	if err != nil {
		return nil, fmt.Errorf("could not read result types: %w", err)
	}
	return &wasm.FunctionType{Params: params, Results: results}, nil
}

// decodeImportSection appends the type index of each imported function, the type of each
// imported global and the element type of each imported table to m. Imported memories are skipped.
func decodeImportSection(r *reader, m *wasm.Module) error {
	vs, err := r.readU32()
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	for i := uint32(0); i < vs; i++ {
		if _, err = r.readName(); err != nil {
			return fmt.Errorf("import[%d] module name: %w", i, err)
		}
		if _, err = r.readName(); err != nil {
			return fmt.Errorf("import[%d] field name: %w", i, err)
		}
		kind, err := r.readByte()
		if err != nil {
			return fmt.Errorf("import[%d] kind: %w", i, err)
		}
		switch kind {
		case importKindFunc:
			typeIndex, err := r.readU32()
			if err != nil {
				return fmt.Errorf("import[%d] type index: %w", i, err)
			}
			m.ImportFunctionSection = append(m.ImportFunctionSection, typeIndex)
		case importKindTable:
			t, err := decodeTableType(r)
			if err != nil {
				return fmt.Errorf("import[%d] table: %w", i, err)
			}
			m.TableTypes = append(m.TableTypes, t)
		case importKindMemory:
			if err = skipLimits(r); err != nil {
				return fmt.Errorf("import[%d] memory limits: %w", i, err)
			}
		case importKindGlobal:
			t, err := decodeGlobalType(r)
			if err != nil {
				return fmt.Errorf("import[%d] global type: %w", i, err)
			}
			m.GlobalTypes = append(m.GlobalTypes, t)
		default:
			return fmt.Errorf("%w: import[%d] invalid kind %#x", wasm.ErrInvalidByte, i, kind)
		}
	}
	return nil
}

func decodeFunctionSection(r *reader) ([]wasm.Index, error) {
	vs, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]wasm.Index, 0, min(int(vs), r.remaining()))
	for i := uint32(0); i < vs; i++ {
		typeIndex, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("get type index: %w", err)
		}
		result = append(result, typeIndex)
	}
	return result, nil
}

func decodeTableSection(r *reader) ([]wasm.ValueType, error) {
	vs, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]wasm.ValueType, 0, min(int(vs), r.remaining()))
	for i := uint32(0); i < vs; i++ {
		t, err := decodeTableType(r)
		if err != nil {
			return nil, fmt.Errorf("table[%d]: %w", i, err)
		}
		result = append(result, t)
	}
	return result, nil
}

// decodeTableType returns the element type of a table and skips its limits.
func decodeTableType(r *reader) (wasm.ValueType, error) {
	t, err := r.readByte()
	if err != nil {
		return 0, fmt.Errorf("read element type: %w", err)
	}
	if t != wasm.ValueTypeFuncref && t != wasm.ValueTypeExternref {
		return 0, fmt.Errorf("%w: invalid table element type %#x", wasm.ErrInvalidByte, t)
	}
	if err = skipLimits(r); err != nil {
		return 0, fmt.Errorf("read limits: %w", err)
	}
	return t, nil
}

func decodeGlobalSection(r *reader) ([]wasm.ValueType, error) {
	vs, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]wasm.ValueType, 0, min(int(vs), r.remaining()))
	for i := uint32(0); i < vs; i++ {
		t, err := decodeGlobalType(r)
		if err != nil {
			return nil, fmt.Errorf("global[%d]: %w", i, err)
		}
		if err = skipConstExpr(r); err != nil {
			return nil, fmt.Errorf("global[%d] init: %w", i, err)
		}
		result = append(result, t)
	}
	return result, nil
}

func decodeCodeSection(r *reader) ([][]byte, error) {
	vs, err := r.readU32()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([][]byte, 0, min(int(vs), r.remaining()))
	for i := uint32(0); i < vs; i++ {
		size, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("get the size of code: %w", err)
		}
		body, err := r.readBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("code[%d]: %w", i, err)
		}
		result = append(result, body)
	}
	return result, nil
}

func decodeGlobalType(r *reader) (wasm.ValueType, error) {
	t, err := r.readValueType()
	if err != nil {
		return 0, err
	}
	mut, err := r.readByte()
	if err != nil {
		return 0, fmt.Errorf("read mutability: %w", err)
	}
	if mut > 1 {
		return 0, fmt.Errorf("%w: invalid mutability %#x", wasm.ErrInvalidByte, mut)
	}
	return t, nil
}

func skipLimits(r *reader) error {
	flag, err := r.readByte()
	if err != nil {
		return err
	}
	if flag > 1 {
		return fmt.Errorf("%w: invalid limits flag %#x", wasm.ErrInvalidByte, flag)
	}
	if _, err = r.readU32(); err != nil {
		return err
	}
	if flag == 1 {
		_, err = r.readU32()
	}
	return err
}

const (
	constExprRefNull = 0xd0
	constExprRefFunc = 0xd2
)

// skipConstExpr skips a constant expression up to and including its end.
func skipConstExpr(r *reader) error {
	for {
		b, err := r.readByte()
		if err != nil {
			return err
		}
		switch wasm.Opcode(b) {
		case wasm.OpcodeEnd:
			return nil
		case wasm.OpcodeI32Const:
			_, err = r.readS32()
		case wasm.OpcodeI64Const:
			_, err = r.readS64()
		case wasm.OpcodeF32Const:
			_, err = r.readFixed32()
		case wasm.OpcodeF64Const:
			_, err = r.readFixed64()
		case wasm.OpcodeGlobalGet, constExprRefFunc:
			_, err = r.readU32()
		case constExprRefNull:
			_, err = r.readValueType()
		default:
			return fmt.Errorf("%w: %#x in constant expression", wasm.ErrInvalidByte, b)
		}
		if err != nil {
			return err
		}
	}
}
