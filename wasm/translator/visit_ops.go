package translator

import (
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// VisitCall implements wasm.FunctionVisitor.
func (t *Translator) VisitCall(funcIndex wasm.Index) error {
	if ok, err := t.begin("call", costCall); !ok {
		return err
	}
	ft := t.header.FunctionType(funcIndex)
	params, err := t.callParams(ft, false)
	if err != nil {
		return err
	}
	results := t.stack.slotAt(t.stack.height())
	if err := t.pushTemps(ft.Results); err != nil {
		return err
	}
	t.enc.encode(bytecode.Call{
		Results: results,
		Func:    t.funcRef(t.header.FunctionHandle(funcIndex)),
		Params:  params,
	})
	return nil
}

// VisitCallIndirect implements wasm.FunctionVisitor.
func (t *Translator) VisitCallIndirect(typeIndex, tableIndex wasm.Index) error {
	if ok, err := t.begin("call_indirect", costCall); !ok {
		return err
	}
	index := t.stack.pop()
	ft := t.header.TypeAt(typeIndex)
	params, err := t.callParams(ft, false)
	if err != nil {
		return err
	}
	indexSlot := t.inputSlot(&index)
	results := t.stack.slotAt(t.stack.height())
	if err := t.pushTemps(ft.Results); err != nil {
		return err
	}
	t.enc.encode(bytecode.CallIndirect{
		Results: results,
		Index:   indexSlot,
		Type:    typeIndex,
		Table:   tableIndex,
		Params:  params,
	})
	return nil
}

// VisitReturnCall implements wasm.FunctionVisitor.
func (t *Translator) VisitReturnCall(funcIndex wasm.Index) error {
	if err := t.requireFeature("return_call", wasm.FeatureTailCall); err != nil {
		return err
	}
	if ok, err := t.begin("return_call", costCall); !ok {
		return err
	}
	params, err := t.callParams(t.header.FunctionType(funcIndex), true)
	if err != nil {
		return err
	}
	t.enc.encode(bytecode.ReturnCall{
		Func:   t.funcRef(t.header.FunctionHandle(funcIndex)),
		Params: params,
	})
	t.reachable = false
	return nil
}

// VisitReturnCallIndirect implements wasm.FunctionVisitor.
func (t *Translator) VisitReturnCallIndirect(typeIndex, tableIndex wasm.Index) error {
	if err := t.requireFeature("return_call_indirect", wasm.FeatureTailCall); err != nil {
		return err
	}
	if ok, err := t.begin("return_call_indirect", costCall); !ok {
		return err
	}
	index := t.stack.pop()
	params, err := t.callParams(t.header.TypeAt(typeIndex), true)
	if err != nil {
		return err
	}
	t.enc.encode(bytecode.ReturnCallIndirect{
		Index:  t.inputSlot(&index),
		Type:   typeIndex,
		Table:  tableIndex,
		Params: params,
	})
	t.reachable = false
	return nil
}

// callParams pops the parameters of a call and returns the slots they are passed from.
// Unless the call replaces the frame, local aliases left on the stack are turned into
// temps before the call.
func (t *Translator) callParams(ft *wasm.FunctionType, tail bool) (bytecode.SlotList, error) {
	if len(ft.Params) > maxCells {
		return nil, fmt.Errorf("%w: %d call parameters", bytecode.ErrListTooLong, len(ft.Params))
	}
	params := t.stack.popN(len(ft.Params))
	if !tail {
		if err := t.stack.preserveAllLocals(t.preserveCopy); err != nil {
			return nil, err
		}
	}
	slots := make(bytecode.SlotList, len(params))
	for i := range params {
		slots[i] = t.inputSlot(&params[i])
	}
	return slots, nil
}

// VisitDrop implements wasm.FunctionVisitor.
func (t *Translator) VisitDrop() error {
	if ok, err := t.begin("drop", costBase); !ok {
		return err
	}
	t.stack.pop()
	return nil
}

// VisitSelect implements wasm.FunctionVisitor.
func (t *Translator) VisitSelect() error {
	if ok, err := t.begin("select", costBase); !ok {
		return err
	}
	cond := t.stack.pop()
	rhs := t.stack.pop()
	lhs := t.stack.pop()
	if cond.kind == operandImmediate {
		if uint32(cond.value) != 0 {
			return t.pushMoved(lhs)
		}
		return t.pushMoved(rhs)
	}
	if lhs.kind == operandImmediate && rhs.kind == operandImmediate && lhs.value == rhs.value {
		return t.stack.pushOperand(lhs)
	}
	condSlot := cond.slot()
	lhsSlot := t.inputSlot(&lhs)
	rhsSlot := t.inputSlot(&rhs)
	result, err := t.stack.pushTemp(lhs.typ)
	if err != nil {
		return err
	}
	t.enc.encode(bytecode.Select{Result: result, Condition: condSlot, Lhs: lhsSlot, Rhs: rhsSlot})
	return nil
}

// VisitTypedSelect implements wasm.FunctionVisitor.
func (t *Translator) VisitTypedSelect(wasm.ValueType) error {
	if err := t.requireFeature("select", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	return t.VisitSelect()
}

// VisitLocalGet implements wasm.FunctionVisitor.
func (t *Translator) VisitLocalGet(index wasm.Index) error {
	if ok, err := t.begin("local.get", costBase); !ok {
		return err
	}
	return t.stack.pushLocal(index)
}

// VisitLocalSet implements wasm.FunctionVisitor.
func (t *Translator) VisitLocalSet(index wasm.Index) error {
	if ok, err := t.begin("local.set", costBase); !ok {
		return err
	}
	return t.setLocal(index, t.stack.pop())
}

// VisitLocalTee implements wasm.FunctionVisitor.
func (t *Translator) VisitLocalTee(index wasm.Index) error {
	if ok, err := t.begin("local.tee", costBase); !ok {
		return err
	}
	if err := t.setLocal(index, t.stack.pop()); err != nil {
		return err
	}
	return t.stack.pushLocal(index)
}

// setLocal stores value into the local at index.
func (t *Translator) setLocal(index wasm.Index, value operand) error {
	if value.kind == operandLocal && value.local == index {
		return nil
	}
	// Values still read from the local must be moved out of the way first.
	if err := t.stack.preserveLocals(index, t.preserveCopy); err != nil {
		return err
	}
	dst := t.stack.localSlots[index]
	if value.kind == operandTemp && t.enc.retargetResult(value.stackSlot, dst) {
		return nil
	}
	t.copyTo(dst, &value)
	return nil
}

// VisitGlobalGet implements wasm.FunctionVisitor.
func (t *Translator) VisitGlobalGet(index wasm.Index) error {
	if ok, err := t.begin("global.get", costInstance); !ok {
		return err
	}
	result, err := t.stack.pushTemp(t.header.GlobalType(index))
	if err != nil {
		return err
	}
	t.enc.encode(bytecode.GlobalGet{Result: result, Global: index})
	return nil
}

// VisitGlobalSet implements wasm.FunctionVisitor.
func (t *Translator) VisitGlobalSet(index wasm.Index) error {
	if ok, err := t.begin("global.set", costInstance); !ok {
		return err
	}
	value := t.stack.pop()
	t.enc.encode(bytecode.GlobalSet{Value: t.inputSlot(&value), Global: index})
	return nil
}

// loadResultTypes is indexed by the distance of the opcode to wasm.OpcodeI32Load.
var loadResultTypes = [...]wasm.ValueType{
	wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
	wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32, wasm.ValueTypeI32,
	wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.ValueTypeI64, wasm.ValueTypeI64,
}

// VisitLoad implements wasm.FunctionVisitor.
func (t *Translator) VisitLoad(op wasm.Opcode, arg wasm.MemArg) error {
	if op < wasm.OpcodeI32Load || op > wasm.OpcodeI64Load32U {
		return fmt.Errorf("%s is not a load", wasm.OpcodeName(op))
	}
	if ok, err := t.begin(wasm.OpcodeName(op), costLoad); !ok {
		return err
	}
	ptr := t.stack.pop()
	ptrSlot := t.inputSlot(&ptr)
	result, err := t.stack.pushTemp(loadResultTypes[op-wasm.OpcodeI32Load])
	if err != nil {
		return err
	}
	t.enc.encode(bytecode.Load{
		Code:   bytecode.OpI32Load + bytecode.OpCode(op-wasm.OpcodeI32Load),
		Result: result,
		Ptr:    ptrSlot,
		Offset: arg.Offset,
		Memory: arg.Memory,
	})
	return nil
}

// VisitStore implements wasm.FunctionVisitor.
func (t *Translator) VisitStore(op wasm.Opcode, arg wasm.MemArg) error {
	if op < wasm.OpcodeI32Store || op > wasm.OpcodeI64Store32 {
		return fmt.Errorf("%s is not a store", wasm.OpcodeName(op))
	}
	if ok, err := t.begin(wasm.OpcodeName(op), costStore); !ok {
		return err
	}
	value := t.stack.pop()
	ptr := t.stack.pop()
	t.enc.encode(bytecode.Store{
		Code:   bytecode.OpI32Store + bytecode.OpCode(op-wasm.OpcodeI32Store),
		Ptr:    t.inputSlot(&ptr),
		Value:  t.inputSlot(&value),
		Offset: arg.Offset,
		Memory: arg.Memory,
	})
	return nil
}

// VisitMemorySize implements wasm.FunctionVisitor.
func (t *Translator) VisitMemorySize(memory wasm.Index) error {
	if ok, err := t.begin("memory.size", costInstance); !ok {
		return err
	}
	result, err := t.stack.pushTemp(wasm.ValueTypeI32)
	if err != nil {
		return err
	}
	t.enc.encode(bytecode.MemorySize{Result: result, Memory: memory})
	return nil
}

// VisitMemoryGrow implements wasm.FunctionVisitor.
func (t *Translator) VisitMemoryGrow(memory wasm.Index) error {
	if ok, err := t.begin("memory.grow", costInstance); !ok {
		return err
	}
	delta := t.stack.pop()
	deltaSlot := t.inputSlot(&delta)
	result, err := t.stack.pushTemp(wasm.ValueTypeI32)
	if err != nil {
		return err
	}
	t.enc.encode(bytecode.MemoryGrow{Result: result, Delta: deltaSlot, Memory: memory})
	return nil
}

// VisitI32Const implements wasm.FunctionVisitor.
func (t *Translator) VisitI32Const(v int32) error {
	if ok, err := t.begin("i32.const", costBase); !ok {
		return err
	}
	return t.stack.pushImmediate(wasm.ValueTypeI32, uint64(uint32(v)))
}

// VisitI64Const implements wasm.FunctionVisitor.
func (t *Translator) VisitI64Const(v int64) error {
	if ok, err := t.begin("i64.const", costBase); !ok {
		return err
	}
	return t.stack.pushImmediate(wasm.ValueTypeI64, uint64(v))
}

// VisitF32Const implements wasm.FunctionVisitor.
func (t *Translator) VisitF32Const(bits uint32) error {
	if ok, err := t.begin("f32.const", costBase); !ok {
		return err
	}
	return t.stack.pushImmediate(wasm.ValueTypeF32, uint64(bits))
}

// VisitF64Const implements wasm.FunctionVisitor.
func (t *Translator) VisitF64Const(bits uint64) error {
	if ok, err := t.begin("f64.const", costBase); !ok {
		return err
	}
	return t.stack.pushImmediate(wasm.ValueTypeF64, bits)
}
