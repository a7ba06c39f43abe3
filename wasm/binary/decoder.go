package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
)

// DecodeModule decodes the sections of a binary module needed to translate its functions:
// types, function imports, global and table types, the function section and the code section.
// Every other section is skipped after its length has been checked.
//
// See https://www.w3.org/TR/wasm-core-2/#binary-format%E2%91%A0
func DecodeModule(binary []byte) (*wasm.Module, error) {
	if len(binary) < 4 || !bytes.Equal(binary[0:4], magic) {
		return nil, ErrInvalidMagicNumber
	}
	if len(binary) < 8 || !bytes.Equal(binary[4:8], version) {
		return nil, ErrInvalidVersion
	}
	r := &reader{buf: binary, pos: 8}

	m := &wasm.Module{}
	var globals, tables []wasm.ValueType
	for r.remaining() > 0 {
		sectionID, _ := r.readByte()
		sectionSize, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("get size of section for id=%d: %w", sectionID, err)
		}
		content, err := r.readBytes(int(sectionSize))
		if err != nil {
			return nil, fmt.Errorf("section ID %d: %w", sectionID, err)
		}

		sr := &reader{buf: content}
		switch sectionID {
		case SectionIDCustom, SectionIDMemory, SectionIDExport, SectionIDStart,
			SectionIDElement, SectionIDData, SectionIDDataCount:
			sr.pos = len(content)
		case SectionIDType:
			m.TypeSection, err = decodeTypeSection(sr)
		case SectionIDImport:
			err = decodeImportSection(sr, m)
		case SectionIDFunction:
			m.FunctionSection, err = decodeFunctionSection(sr)
		case SectionIDTable:
			tables, err = decodeTableSection(sr)
		case SectionIDGlobal:
			globals, err = decodeGlobalSection(sr)
		case SectionIDCode:
			m.CodeSection, err = decodeCodeSection(sr)
		default:
			err = ErrInvalidSectionID
		}

		if err == nil && sr.remaining() != 0 {
			err = fmt.Errorf("invalid section length: expected to be %d but got %d", sectionSize, sr.pos)
		}
		if err != nil {
			return nil, fmt.Errorf("section ID %d: %w", sectionID, err)
		}
	}
	// Imported globals and tables come first in their index space.
	m.GlobalTypes = append(m.GlobalTypes, globals...)
	m.TableTypes = append(m.TableTypes, tables...)

	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths")
	}
	if err := validateTypeIndices(m); err != nil {
		return nil, err
	}
	return m, nil
}

func validateTypeIndices(m *wasm.Module) error {
	count := wasm.Index(len(m.TypeSection))
	for i, idx := range m.ImportFunctionSection {
		if idx >= count {
			return fmt.Errorf("import[%d] type index %d out of range", i, idx)
		}
	}
	for i, idx := range m.FunctionSection {
		if idx >= count {
			return fmt.Errorf("function[%d] type index %d out of range", i, idx)
		}
	}
	return nil
}
