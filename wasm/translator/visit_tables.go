package translator

import (
	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// popRange pops the destination, source and length operands shared by the bulk operators
// and returns the slots they are read from.
func (t *Translator) popRange() (dst, src, n bytecode.Slot) {
	ops := t.stack.popN(3)
	return t.inputSlot(&ops[0]), t.inputSlot(&ops[1]), t.inputSlot(&ops[2])
}

// VisitMemoryFill implements wasm.FunctionVisitor.
func (t *Translator) VisitMemoryFill(memory wasm.Index) error {
	if err := t.requireFeature("memory.fill", wasm.FeatureBulkMemoryOperations); err != nil {
		return err
	}
	if ok, err := t.begin("memory.fill", costStore); !ok {
		return err
	}
	dst, value, n := t.popRange()
	t.enc.encode(bytecode.MemoryFill{Dst: dst, Value: value, Len: n, Memory: memory})
	return nil
}

// VisitMemoryCopy implements wasm.FunctionVisitor.
func (t *Translator) VisitMemoryCopy(dstMemory, srcMemory wasm.Index) error {
	if err := t.requireFeature("memory.copy", wasm.FeatureBulkMemoryOperations); err != nil {
		return err
	}
	if ok, err := t.begin("memory.copy", costStore); !ok {
		return err
	}
	dst, src, n := t.popRange()
	t.enc.encode(bytecode.MemoryCopy{Dst: dst, Src: src, Len: n, DstMemory: dstMemory, SrcMemory: srcMemory})
	return nil
}

// VisitMemoryInit implements wasm.FunctionVisitor.
func (t *Translator) VisitMemoryInit(dataIndex, memory wasm.Index) error {
	if err := t.requireFeature("memory.init", wasm.FeatureBulkMemoryOperations); err != nil {
		return err
	}
	if ok, err := t.begin("memory.init", costStore); !ok {
		return err
	}
	dst, src, n := t.popRange()
	t.enc.encode(bytecode.MemoryInit{Dst: dst, Src: src, Len: n, Memory: memory, Data: dataIndex})
	return nil
}

// VisitDataDrop implements wasm.FunctionVisitor.
func (t *Translator) VisitDataDrop(dataIndex wasm.Index) error {
	if err := t.requireFeature("data.drop", wasm.FeatureBulkMemoryOperations); err != nil {
		return err
	}
	if ok, err := t.begin("data.drop", costInstance); !ok {
		return err
	}
	t.enc.encode(bytecode.DataDrop{Data: dataIndex})
	return nil
}

// VisitTableGet implements wasm.FunctionVisitor.
func (t *Translator) VisitTableGet(table wasm.Index) error {
	if err := t.requireFeature("table.get", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("table.get", costInstance); !ok {
		return err
	}
	index := t.stack.pop()
	indexSlot := t.inputSlot(&index)
	return t.encodeWithResult(t.header.TableType(table), func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.TableGet{Result: result, Index: indexSlot, Table: table}
	})
}

// VisitTableSet implements wasm.FunctionVisitor.
func (t *Translator) VisitTableSet(table wasm.Index) error {
	if err := t.requireFeature("table.set", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("table.set", costInstance); !ok {
		return err
	}
	value := t.stack.pop()
	index := t.stack.pop()
	t.enc.encode(bytecode.TableSet{Index: t.inputSlot(&index), Value: t.inputSlot(&value), Table: table})
	return nil
}

// VisitTableSize implements wasm.FunctionVisitor.
func (t *Translator) VisitTableSize(table wasm.Index) error {
	if err := t.requireFeature("table.size", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("table.size", costInstance); !ok {
		return err
	}
	return t.encodeWithResult(wasm.ValueTypeI32, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.TableSize{Result: result, Table: table}
	})
}

// VisitTableGrow implements wasm.FunctionVisitor.
func (t *Translator) VisitTableGrow(table wasm.Index) error {
	if err := t.requireFeature("table.grow", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("table.grow", costInstance); !ok {
		return err
	}
	delta := t.stack.pop()
	init := t.stack.pop()
	initSlot, deltaSlot := t.inputSlot(&init), t.inputSlot(&delta)
	return t.encodeWithResult(wasm.ValueTypeI32, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.TableGrow{Result: result, Delta: deltaSlot, Init: initSlot, Table: table}
	})
}

// VisitTableFill implements wasm.FunctionVisitor.
func (t *Translator) VisitTableFill(table wasm.Index) error {
	if err := t.requireFeature("table.fill", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("table.fill", costStore); !ok {
		return err
	}
	dst, value, n := t.popRange()
	t.enc.encode(bytecode.TableFill{Dst: dst, Value: value, Len: n, Table: table})
	return nil
}

// VisitTableCopy implements wasm.FunctionVisitor.
func (t *Translator) VisitTableCopy(dstTable, srcTable wasm.Index) error {
	if err := t.requireFeature("table.copy", wasm.FeatureBulkMemoryOperations); err != nil {
		return err
	}
	if ok, err := t.begin("table.copy", costStore); !ok {
		return err
	}
	dst, src, n := t.popRange()
	t.enc.encode(bytecode.TableCopy{Dst: dst, Src: src, Len: n, DstTable: dstTable, SrcTable: srcTable})
	return nil
}

// VisitTableInit implements wasm.FunctionVisitor.
func (t *Translator) VisitTableInit(elemIndex, table wasm.Index) error {
	if err := t.requireFeature("table.init", wasm.FeatureBulkMemoryOperations); err != nil {
		return err
	}
	if ok, err := t.begin("table.init", costStore); !ok {
		return err
	}
	dst, src, n := t.popRange()
	t.enc.encode(bytecode.TableInit{Dst: dst, Src: src, Len: n, Table: table, Elem: elemIndex})
	return nil
}

// VisitElemDrop implements wasm.FunctionVisitor.
func (t *Translator) VisitElemDrop(elemIndex wasm.Index) error {
	if err := t.requireFeature("elem.drop", wasm.FeatureBulkMemoryOperations); err != nil {
		return err
	}
	if ok, err := t.begin("elem.drop", costInstance); !ok {
		return err
	}
	t.enc.encode(bytecode.ElemDrop{Elem: elemIndex})
	return nil
}

// VisitRefNull implements wasm.FunctionVisitor. The null reference is the zero cell.
func (t *Translator) VisitRefNull(typ wasm.ValueType) error {
	if err := t.requireFeature("ref.null", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("ref.null", costBase); !ok {
		return err
	}
	return t.stack.pushImmediate(typ, 0)
}

// VisitRefIsNull implements wasm.FunctionVisitor.
func (t *Translator) VisitRefIsNull() error {
	if err := t.requireFeature("ref.is_null", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("ref.is_null", costBase); !ok {
		return err
	}
	ref := t.stack.pop()
	if ref.kind == operandImmediate {
		return t.pushBool(ref.value == 0)
	}
	input := ref.slot()
	return t.encodeWithResult(wasm.ValueTypeI32, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.Unary{Code: bytecode.OpRefIsNull, Result: result, Input: input}
	})
}

// VisitRefFunc implements wasm.FunctionVisitor.
func (t *Translator) VisitRefFunc(funcIndex wasm.Index) error {
	if err := t.requireFeature("ref.func", wasm.FeatureReferenceTypes); err != nil {
		return err
	}
	if ok, err := t.begin("ref.func", costInstance); !ok {
		return err
	}
	f := t.funcRef(t.header.FunctionHandle(funcIndex))
	return t.encodeWithResult(wasm.ValueTypeFuncref, func(result bytecode.Slot) bytecode.Instruction {
		return bytecode.RefFunc{Result: result, Func: f}
	})
}
