package translator

import (
	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

func (t *Translator) requireBlockType(bt wasm.BlockType) error {
	if len(bt.Params) > 0 || len(bt.Results) > 1 {
		return t.cfg.Features.Require(wasm.FeatureMultiValue)
	}
	return nil
}

func (t *Translator) blockHeight(bt wasm.BlockType) BlockHeight {
	return BlockHeight(t.stack.height() - len(bt.Params))
}

// VisitUnreachable implements wasm.FunctionVisitor.
func (t *Translator) VisitUnreachable() error {
	if ok, err := t.begin("unreachable", costBase); !ok {
		return err
	}
	t.enc.encode(bytecode.Trap{Code: bytecode.TrapCodeUnreachableCodeReached})
	t.reachable = false
	return nil
}

// VisitNop implements wasm.FunctionVisitor.
func (t *Translator) VisitNop() error {
	_, err := t.begin("nop", costBase)
	return err
}

// VisitBlock implements wasm.FunctionVisitor.
func (t *Translator) VisitBlock(bt wasm.BlockType) error {
	if err := t.beginControl("block"); err != nil {
		return err
	}
	if err := t.requireBlockType(bt); err != nil {
		return err
	}
	if !t.reachable {
		t.control.pushUnreachable(frameBlock)
		return nil
	}
	// A branch out of the block skips any local.set inside it, so values below the block
	// must not keep aliasing locals.
	if err := t.stack.preserveAllLocals(t.preserveCopy); err != nil {
		return err
	}
	t.control.push(controlFrame{
		kind:        frameBlock,
		blockType:   bt,
		height:      t.blockHeight(bt),
		label:       t.labels.newLabel(),
		consumeFuel: t.control.top().fuelPos(),
	})
	return nil
}

// VisitLoop implements wasm.FunctionVisitor.
func (t *Translator) VisitLoop(bt wasm.BlockType) error {
	if err := t.beginControl("loop"); err != nil {
		return err
	}
	if err := t.requireBlockType(bt); err != nil {
		return err
	}
	if !t.reachable {
		t.control.pushUnreachable(frameLoop)
		return nil
	}
	// Copies emitted inside the loop run on every iteration, so no value entering it
	// may keep aliasing a local the body could overwrite.
	if err := t.stack.preserveAllLocals(t.preserveCopy); err != nil {
		return err
	}
	t.materializeTop(len(bt.Params))
	header := t.labels.newLabel()
	t.enc.pinLabel(&t.labels, header)
	t.control.push(controlFrame{
		kind:        frameLoop,
		blockType:   bt,
		height:      t.blockHeight(bt),
		label:       header,
		consumeFuel: t.consumeFuel(),
	})
	return nil
}

// VisitIf implements wasm.FunctionVisitor.
func (t *Translator) VisitIf(bt wasm.BlockType) error {
	if err := t.beginControl("if"); err != nil {
		return err
	}
	if err := t.requireBlockType(bt); err != nil {
		return err
	}
	if !t.reachable {
		t.control.pushUnreachable(frameIf)
		return nil
	}
	// The condition is charged to the enclosing frame.
	if t.cfg.FuelMetering {
		if err := t.enc.bumpFuel(t.control.top().fuelPos(), t.cfg.FuelCosts.Base); err != nil {
			return err
		}
	}

	cond := t.stack.pop()
	frame := controlFrame{
		kind:        frameIf,
		blockType:   bt,
		height:      t.blockHeight(bt),
		label:       t.labels.newLabel(),
		consumeFuel: t.control.top().fuelPos(),
	}
	if cond.kind == operandImmediate {
		if uint32(cond.value) != 0 {
			frame.reachability = ifOnlyThen
		} else {
			frame.reachability = ifOnlyElse
			t.reachable = false
		}
		t.control.push(frame)
		return nil
	}

	frame.reachability = ifBoth
	// The else path skips the then branch and the local.set it may contain.
	if err := t.stack.preserveAllLocals(t.preserveCopy); err != nil {
		return err
	}
	frame.elseLabel = t.labels.newLabel()
	if err := t.encodeCondBranch(cond, frame.elseLabel, true); err != nil {
		return err
	}
	t.control.pushElseOperands(t.stack.peekN(len(bt.Params)))
	frame.consumeFuel = t.consumeFuel()
	t.control.push(frame)
	return nil
}

// VisitElse implements wasm.FunctionVisitor.
func (t *Translator) VisitElse() error {
	if err := t.beginControl("else"); err != nil {
		return err
	}
	f := t.control.top()
	if f.kind == frameUnreachable {
		return nil
	}
	f.kind = frameElse
	f.endOfThenReachable = t.reachable

	switch f.reachability {
	case ifBoth:
		if t.reachable {
			t.materializeTop(len(f.blockType.Results))
			f.branchedTo = true
			if _, err := t.enc.encodeBranch(&t.labels, f.label, branchTo); err != nil {
				return err
			}
		}
		t.enc.pinLabel(&t.labels, f.elseLabel)
		t.stack.trunc(int(f.height))
		for _, o := range t.control.popElseOperands() {
			if err := t.stack.pushOperand(o); err != nil {
				return err
			}
		}
		f.consumeFuel = t.consumeFuel()
		t.reachable = true
	case ifOnlyThen:
		if t.reachable && f.branchedTo {
			t.materializeTop(len(f.blockType.Results))
		}
		t.reachable = false
	case ifOnlyElse:
		// The parameters are still on the stack since the then branch was skipped.
		t.reachable = true
	}
	return nil
}

// VisitEnd implements wasm.FunctionVisitor.
func (t *Translator) VisitEnd() error {
	if err := t.beginControl("end"); err != nil {
		return err
	}
	f := t.control.pop()
	if f.kind == frameUnreachable {
		return nil
	}
	if t.control.empty() {
		if t.reachable {
			if err := t.encodeReturn(); err != nil {
				return err
			}
		}
		t.reachable = false
		t.finished = true
		return t.checkInvariants()
	}

	var err error
	switch f.kind {
	case frameLoop:
		if !t.reachable {
			t.stack.trunc(int(f.height))
		}
	case frameBlock:
		err = t.endBlock(&f)
	case frameIf:
		switch f.reachability {
		case ifBoth:
			err = t.endIfWithoutElse(&f)
		case ifOnlyThen:
			err = t.endBlock(&f)
		case ifOnlyElse:
			t.reachable = true
		}
	case frameElse:
		if f.reachability == ifOnlyThen {
			t.reachable = f.endOfThenReachable
		}
		err = t.endBlock(&f)
	}
	if err != nil {
		return err
	}
	return t.checkInvariants()
}

// endBlock joins the fall through with the branches to the end of f.
func (t *Translator) endBlock(f *controlFrame) error {
	if !f.branchedTo {
		if !t.reachable {
			t.stack.trunc(int(f.height))
		}
		return nil
	}
	if t.reachable {
		t.materializeTop(len(f.blockType.Results))
	}
	t.enc.pinLabel(&t.labels, f.label)
	t.stack.trunc(int(f.height))
	t.reachable = true
	return t.pushTemps(f.blockType.Results)
}

// endIfWithoutElse ends an if whose condition is unknown and which has no else branch.
// The parameters of the if become its results when the condition is false.
func (t *Translator) endIfWithoutElse(f *controlFrame) error {
	elseOps := t.control.popElseOperands()
	dst := t.stack.slotsFrom(int(f.height), f.blockType.Results)
	inPlace := true
	for i := range elseOps {
		if elseOps[i].kind != operandTemp || elseOps[i].stackSlot != dst[i] {
			inPlace = false
		}
	}

	if t.reachable {
		t.materializeTop(len(f.blockType.Results))
	}
	if inPlace {
		t.enc.pinLabel(&t.labels, f.elseLabel)
	} else {
		if t.reachable {
			if _, err := t.enc.encodeBranch(&t.labels, f.label, branchTo); err != nil {
				return err
			}
		}
		t.enc.pinLabel(&t.labels, f.elseLabel)
		for i := range elseOps {
			t.copyTo(dst[i], &elseOps[i])
		}
	}
	t.enc.pinLabel(&t.labels, f.label)
	t.stack.trunc(int(f.height))
	t.reachable = true
	return t.pushTemps(f.blockType.Results)
}

func branchTo(off bytecode.BranchOffset) bytecode.Instruction {
	return bytecode.Branch{Offset: off}
}

// VisitBr implements wasm.FunctionVisitor.
func (t *Translator) VisitBr(depth uint32) error {
	if ok, err := t.begin("br", costBase); !ok {
		return err
	}
	if err := t.encodeBranchTo(depth); err != nil {
		return err
	}
	t.reachable = false
	return nil
}

// encodeBranchTo emits an unconditional branch to the frame at depth carrying the top values.
// The operand stack is left unchanged.
func (t *Translator) encodeBranchTo(depth uint32) error {
	target := t.control.acquireTarget(depth)
	if target.isReturn {
		return t.encodeReturn()
	}
	f := target.frame
	f.branchedTo = true
	if err := t.encodeBranchCopies(f); err != nil {
		return err
	}
	_, err := t.enc.encodeBranch(&t.labels, f.label, branchTo)
	return err
}

// branchValuesInPlace reports whether the values carried by a branch to f are already stored
// where f expects them.
func (t *Translator) branchValuesInPlace(f *controlFrame) bool {
	types := f.branchTypes()
	dst := t.stack.slotsFrom(int(f.height), types)
	for i := range types {
		o := t.stack.peek(len(types) - 1 - i)
		if o.kind != operandTemp || o.stackSlot != dst[i] {
			return false
		}
	}
	return true
}

// encodeBranchCopies copies the values carried by a branch to f into its slots.
// Sources never lie below their destination, so copying bottom first clobbers nothing.
// The copies are charged to the metered region the branch is taken from.
func (t *Translator) encodeBranchCopies(f *controlFrame) error {
	types := f.branchTypes()
	dst := t.stack.slotsFrom(int(f.height), types)
	vals := t.stack.peekN(len(types))
	n := 0
	for i := range vals {
		n += t.copyTo(dst[i], &vals[i])
	}
	return t.chargeCopies(n)
}

// VisitBrIf implements wasm.FunctionVisitor.
func (t *Translator) VisitBrIf(depth uint32) error {
	if ok, err := t.begin("br_if", costBase); !ok {
		return err
	}
	cond := t.stack.pop()
	if cond.kind == operandImmediate {
		if uint32(cond.value) == 0 {
			return nil
		}
		if err := t.encodeBranchTo(depth); err != nil {
			return err
		}
		t.reachable = false
		return nil
	}

	target := t.control.acquireTarget(depth)
	if !target.isReturn && t.branchValuesInPlace(target.frame) {
		target.frame.branchedTo = true
		return t.encodeCondBranch(cond, target.frame.label, false)
	}
	// The taken path needs copies or a return: skip over them when the condition is false.
	skip := t.labels.newLabel()
	if err := t.encodeCondBranch(cond, skip, true); err != nil {
		return err
	}
	if err := t.encodeBranchTo(depth); err != nil {
		return err
	}
	t.enc.pinLabel(&t.labels, skip)
	return nil
}

// VisitBrTable implements wasm.FunctionVisitor.
func (t *Translator) VisitBrTable(targets []uint32, defaultTarget uint32) error {
	if ok, err := t.begin("br_table", costBase); !ok {
		return err
	}
	index := t.stack.pop()
	if index.kind == operandImmediate {
		depth := defaultTarget
		if i := uint32(index.value); i < uint32(len(targets)) {
			depth = targets[i]
		}
		if err := t.encodeBranchTo(depth); err != nil {
			return err
		}
		t.reachable = false
		return nil
	}

	depths := append(append(make([]uint32, 0, len(targets)+1), targets...), defaultTarget)
	refs := make([]LabelRef, len(depths))
	// Targets which need copies or a return share one stub per depth.
	stubs := map[uint32]LabelRef{}
	var stubDepths []uint32
	for i, depth := range depths {
		target := t.control.acquireTarget(depth)
		if !target.isReturn && t.branchValuesInPlace(target.frame) {
			target.frame.branchedTo = true
			refs[i] = target.frame.label
			continue
		}
		ref, ok := stubs[depth]
		if !ok {
			ref = t.labels.newLabel()
			stubs[depth] = ref
			stubDepths = append(stubDepths, depth)
		}
		refs[i] = ref
	}
	if _, err := t.enc.encodeBranchTable(&t.labels, index.slot(), refs); err != nil {
		return err
	}
	for _, depth := range stubDepths {
		t.enc.pinLabel(&t.labels, stubs[depth])
		if err := t.encodeBranchTo(depth); err != nil {
			return err
		}
	}
	t.reachable = false
	return nil
}

// VisitReturn implements wasm.FunctionVisitor.
func (t *Translator) VisitReturn() error {
	if ok, err := t.begin("return", costBase); !ok {
		return err
	}
	if err := t.encodeReturn(); err != nil {
		return err
	}
	t.reachable = false
	return nil
}

// encodeReturn emits the return of the function results on top of the stack, leaving the stack unchanged.
func (t *Translator) encodeReturn() error {
	vals := t.stack.peekN(len(t.funcType.Results))
	switch len(vals) {
	case 0:
		t.enc.encode(bytecode.Return{})
	case 1:
		o := &vals[0]
		switch {
		case o.kind != operandImmediate:
			t.enc.encode(bytecode.ReturnSlot{Value: o.slot()})
		case imm64(o.typ):
			t.enc.encode(bytecode.ReturnImm64{Value: o.value})
		default:
			t.enc.encode(bytecode.ReturnImm32{Value: uint32(o.value)})
		}
	default:
		if len(vals) > maxCells {
			return bytecode.ErrListTooLong
		}
		slots := make(bytecode.SlotList, len(vals))
		for i := range vals {
			slots[i] = t.inputSlot(&vals[i])
		}
		t.enc.encode(bytecode.ReturnMany{Values: slots})
	}
	return nil
}

// encodeCondBranch emits a branch to ref taken when cond is non-zero, or zero if onZero is set.
// A comparison staged for cond is fused into the branch.
func (t *Translator) encodeCondBranch(cond operand, ref LabelRef, onZero bool) error {
	if cond.kind == operandTemp {
		if staged, ok := t.enc.peekStaged(); ok {
			if s, ok := bytecode.ResultSlot(staged); ok && s == cond.stackSlot {
				if fused, err := t.tryFuseBranch(staged, ref, onZero); fused || err != nil {
					return err
				}
			}
		}
	}
	code := bytecode.OpBranchIfNez
	if onZero {
		code = bytecode.OpBranchIfEqz
	}
	slot := cond.slot()
	_, err := t.enc.encodeBranch(&t.labels, ref, func(off bytecode.BranchOffset) bytecode.Instruction {
		return bytecode.BranchIf{Code: code, Condition: slot, Offset: off}
	})
	return err
}
