package binary

import (
	"fmt"
	"math"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
)

// DecodeFunctionBody decodes the body of a code section entry, the local declarations followed
// by the instruction stream, and dispatches every operator to v.
//
// Immediates are decoded and block types resolved against header, but operand types are not
// validated. Errors returned by v are returned as is, decoding errors carry the offset of the
// operator within body.
func DecodeFunctionBody(header wasm.ModuleHeader, body []byte, v wasm.FunctionVisitor) error {
	r := &reader{buf: body}
	if err := decodeLocals(r, v); err != nil {
		return err
	}

	// The function body is an implicit block closed by the final end.
	depth := 1
	for depth > 0 {
		pos := r.pos
		v.UpdatePos(pos)
		b, err := r.readByte()
		if err != nil {
			return fmt.Errorf("offset %#x: %w", pos, err)
		}
		op := wasm.Opcode(b)
		switch op {
		case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
			depth++
		case wasm.OpcodeEnd:
			depth--
		}
		if err = decodeOperator(header, r, op, v); err != nil {
			if de, ok := err.(*decodeError); ok {
				return fmt.Errorf("offset %#x: %s: %w", pos, wasm.OpcodeName(op), de.err)
			}
			return err
		}
	}
	if r.remaining() != 0 {
		return fmt.Errorf("offset %#x: %d bytes after the final end", r.pos, r.remaining())
	}
	return nil
}

// decodeError distinguishes errors of the body itself from errors returned by the visitor.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func decodeLocals(r *reader, v wasm.FunctionVisitor) error {
	groups, err := r.readU32()
	if err != nil {
		return fmt.Errorf("get the size locals: %w", err)
	}
	var sum uint64
	for i := uint32(0); i < groups; i++ {
		n, err := r.readU32()
		if err != nil {
			return fmt.Errorf("read n of locals: %w", err)
		}
		sum += uint64(n)
		if sum > math.MaxUint32 {
			return fmt.Errorf("too many locals: %d", sum)
		}
		t, err := r.readValueType()
		if err != nil {
			return fmt.Errorf("read type of local: %w", err)
		}
		if err = v.VisitLocals(n, t); err != nil {
			return err
		}
	}
	return nil
}

func decodeBlockType(header wasm.ModuleHeader, r *reader) (wasm.BlockType, error) {
	b, err := r.peekByte()
	if err != nil {
		return wasm.BlockType{}, err
	}
	if b == 0x40 {
		r.pos++
		return wasm.BlockTypeEmpty, nil
	}
	if isValueType(b) {
		r.pos++
		return wasm.BlockTypeOf(b), nil
	}
	index, err := r.readS33()
	if err != nil {
		return wasm.BlockType{}, err
	}
	if index < 0 {
		return wasm.BlockType{}, fmt.Errorf("%w: %#x", wasm.ErrInvalidBlockType, b)
	}
	return wasm.BlockTypeFromFunctionType(header.TypeAt(wasm.Index(index))), nil
}

func decodeMemArg(r *reader) (wasm.MemArg, error) {
	var arg wasm.MemArg
	var err error
	if arg.Align, err = r.readU32(); err != nil {
		return arg, err
	}
	// Bit 6 of the alignment flags an explicit memory index.
	if arg.Align&0x40 != 0 {
		arg.Align &^= 0x40
		if arg.Memory, err = r.readU32(); err != nil {
			return arg, err
		}
	}
	offset, err := r.readU32()
	arg.Offset = uint64(offset)
	return arg, err
}

func decodeOperator(header wasm.ModuleHeader, r *reader, op wasm.Opcode, v wasm.FunctionVisitor) error {
	var (
		u32 uint32
		err error
	)
	fail := func(err error) error {
		return &decodeError{err: err}
	}

	switch {
	case op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Load32U:
		arg, err := decodeMemArg(r)
		if err != nil {
			return fail(err)
		}
		return v.VisitLoad(op, arg)
	case op >= wasm.OpcodeI32Store && op <= wasm.OpcodeI64Store32:
		arg, err := decodeMemArg(r)
		if err != nil {
			return fail(err)
		}
		return v.VisitStore(op, arg)
	case op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeI64Extend32S:
		return v.VisitNumeric(op)
	}

	switch op {
	case wasm.OpcodeUnreachable:
		return v.VisitUnreachable()
	case wasm.OpcodeNop:
		return v.VisitNop()
	case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
		bt, err := decodeBlockType(header, r)
		if err != nil {
			return fail(err)
		}
		switch op {
		case wasm.OpcodeBlock:
			return v.VisitBlock(bt)
		case wasm.OpcodeLoop:
			return v.VisitLoop(bt)
		default:
			return v.VisitIf(bt)
		}
	case wasm.OpcodeElse:
		return v.VisitElse()
	case wasm.OpcodeEnd:
		return v.VisitEnd()
	case wasm.OpcodeBr, wasm.OpcodeBrIf:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		if op == wasm.OpcodeBr {
			return v.VisitBr(u32)
		}
		return v.VisitBrIf(u32)
	case wasm.OpcodeBrTable:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		if int(u32) > r.remaining() {
			return fail(wasm.ErrUnexpectedEnd)
		}
		targets := make([]uint32, u32)
		for i := range targets {
			if targets[i], err = r.readU32(); err != nil {
				return fail(err)
			}
		}
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		return v.VisitBrTable(targets, u32)
	case wasm.OpcodeReturn:
		return v.VisitReturn()
	case wasm.OpcodeCall, wasm.OpcodeReturnCall:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		if op == wasm.OpcodeCall {
			return v.VisitCall(u32)
		}
		return v.VisitReturnCall(u32)
	case wasm.OpcodeCallIndirect, wasm.OpcodeReturnCallIndirect:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		table, err := r.readU32()
		if err != nil {
			return fail(err)
		}
		if op == wasm.OpcodeCallIndirect {
			return v.VisitCallIndirect(u32, table)
		}
		return v.VisitReturnCallIndirect(u32, table)
	case wasm.OpcodeDrop:
		return v.VisitDrop()
	case wasm.OpcodeSelect:
		return v.VisitSelect()
	case wasm.OpcodeTypedSelect:
		types, err := r.readValueTypes()
		if err != nil {
			return fail(err)
		}
		if len(types) != 1 {
			return fail(fmt.Errorf("%w: typed select with %d types", wasm.ErrInvalidByte, len(types)))
		}
		return v.VisitTypedSelect(types[0])
	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee, wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		switch op {
		case wasm.OpcodeLocalGet:
			return v.VisitLocalGet(u32)
		case wasm.OpcodeLocalSet:
			return v.VisitLocalSet(u32)
		case wasm.OpcodeLocalTee:
			return v.VisitLocalTee(u32)
		case wasm.OpcodeGlobalGet:
			return v.VisitGlobalGet(u32)
		default:
			return v.VisitGlobalSet(u32)
		}
	case wasm.OpcodeTableGet, wasm.OpcodeTableSet:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		if op == wasm.OpcodeTableGet {
			return v.VisitTableGet(u32)
		}
		return v.VisitTableSet(u32)
	case wasm.OpcodeRefNull:
		t, err := r.readByte()
		if err != nil {
			return fail(err)
		}
		if t != wasm.ValueTypeFuncref && t != wasm.ValueTypeExternref {
			return fail(fmt.Errorf("%w: invalid reference type %#x", wasm.ErrInvalidByte, t))
		}
		return v.VisitRefNull(t)
	case wasm.OpcodeRefIsNull:
		return v.VisitRefIsNull()
	case wasm.OpcodeRefFunc:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		return v.VisitRefFunc(u32)
	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		if op == wasm.OpcodeMemorySize {
			return v.VisitMemorySize(u32)
		}
		return v.VisitMemoryGrow(u32)
	case wasm.OpcodeI32Const:
		c, err := r.readS32()
		if err != nil {
			return fail(err)
		}
		return v.VisitI32Const(c)
	case wasm.OpcodeI64Const:
		c, err := r.readS64()
		if err != nil {
			return fail(err)
		}
		return v.VisitI64Const(c)
	case wasm.OpcodeF32Const:
		c, err := r.readFixed32()
		if err != nil {
			return fail(err)
		}
		return v.VisitF32Const(c)
	case wasm.OpcodeF64Const:
		c, err := r.readFixed64()
		if err != nil {
			return fail(err)
		}
		return v.VisitF64Const(c)
	case wasm.OpcodeMiscPrefix:
		if u32, err = r.readU32(); err != nil {
			return fail(err)
		}
		if u32 > uint32(wasm.OpcodeTableFill&0xff) {
			return fail(fmt.Errorf("%w: %#x %#x", wasm.ErrUnknownOpcode, byte(wasm.OpcodeMiscPrefix), u32))
		}
		misc := wasm.OpcodeMiscPrefix<<8 | wasm.Opcode(u32)
		if misc <= wasm.OpcodeI64TruncSatF64U {
			return v.VisitNumeric(misc)
		}
		return decodeMiscOperator(r, misc, v)
	}
	return fail(fmt.Errorf("%w: %#x", wasm.ErrUnknownOpcode, byte(op)))
}

// decodeMiscOperator decodes the immediates of the bulk memory and table operators behind
// wasm.OpcodeMiscPrefix and dispatches them to v.
func decodeMiscOperator(r *reader, op wasm.Opcode, v wasm.FunctionVisitor) error {
	// Every operator has one or two index immediates.
	var imm [2]uint32
	n := 1
	switch op {
	case wasm.OpcodeMemoryInit, wasm.OpcodeMemoryCopy, wasm.OpcodeTableInit, wasm.OpcodeTableCopy:
		n = 2
	}
	for i := 0; i < n; i++ {
		var err error
		if imm[i], err = r.readU32(); err != nil {
			return &decodeError{err: fmt.Errorf("%s: %w", wasm.OpcodeName(op), err)}
		}
	}

	switch op {
	case wasm.OpcodeMemoryInit:
		return v.VisitMemoryInit(imm[0], imm[1])
	case wasm.OpcodeDataDrop:
		return v.VisitDataDrop(imm[0])
	case wasm.OpcodeMemoryCopy:
		return v.VisitMemoryCopy(imm[0], imm[1])
	case wasm.OpcodeMemoryFill:
		return v.VisitMemoryFill(imm[0])
	case wasm.OpcodeTableInit:
		return v.VisitTableInit(imm[0], imm[1])
	case wasm.OpcodeElemDrop:
		return v.VisitElemDrop(imm[0])
	case wasm.OpcodeTableCopy:
		return v.VisitTableCopy(imm[0], imm[1])
	case wasm.OpcodeTableGrow:
		return v.VisitTableGrow(imm[0])
	case wasm.OpcodeTableSize:
		return v.VisitTableSize(imm[0])
	default:
		return v.VisitTableFill(imm[0])
	}
}
