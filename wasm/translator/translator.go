// Package translator lowers validated WebAssembly function bodies to register machine bytecode.
//
// A Translator is driven by wasm/binary which calls one Visit method per operator.
// Values are tracked on a virtual operand stack so that locals and constants are only
// copied into storage cells when an operator needs them there.
package translator

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/binary"
	"github.com/wasmi-labs/wasmi-sub007/wasm/buildoptions"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// Translator translates one function at a time. It is reused across functions to keep
// its buffers, but it is not safe for concurrent use.
type Translator struct {
	cfg    Config
	header wasm.ModuleHeader
	logger commonlog.Logger

	funcIndex  wasm.Index
	funcType   *wasm.FunctionType
	localTypes []wasm.ValueType
	// pos is the offset of the operator being translated within the function body.
	pos int

	stack   operandStack
	control controlStack
	labels  labelRegistry
	enc     encoder

	// funcs is the side table of callees, indexed by Call.Func.
	funcs       []wasm.FunctionHandle
	funcIndices map[wasm.FunctionHandle]uint32

	started, finished bool
	// reachable is false after an operator which never falls through, until control joins again.
	reachable bool
}

// New returns a Translator for functions of the module described by header.
func New(cfg Config, header wasm.ModuleHeader) *Translator {
	if cfg.FuelCosts == (FuelCosts{}) {
		cfg.FuelCosts = DefaultFuelCosts()
	}
	return &Translator{
		cfg:         cfg,
		header:      header,
		logger:      cfg.logger(),
		funcIndices: map[wasm.FunctionHandle]uint32{},
	}
}

// Reset prepares t for the function at funcIndex in the function index space.
func (t *Translator) Reset(funcIndex wasm.Index) {
	t.funcIndex = funcIndex
	t.funcType = t.header.FunctionType(funcIndex)
	t.localTypes = append(t.localTypes[:0], t.funcType.Params...)
	t.pos = 0
	t.control.reset()
	t.labels.reset()
	t.enc.reset()
	t.funcs = t.funcs[:0]
	for h := range t.funcIndices {
		delete(t.funcIndices, h)
	}
	t.started, t.finished, t.reachable = false, false, false
}

// Translate decodes and translates the body of the function at funcIndex.
func (t *Translator) Translate(funcIndex wasm.Index, body []byte) (*CompiledFunc, error) {
	t.Reset(funcIndex)
	if err := binary.DecodeFunctionBody(t.header, body, t); err != nil {
		return nil, t.wrapError(err)
	}
	cf, err := t.Finish()
	if err != nil {
		return nil, t.wrapError(err)
	}
	return cf, nil
}

func (t *Translator) wrapError(err error) error {
	var terr *Error
	if errors.As(err, &terr) {
		return err
	}
	return &Error{FuncIndex: t.funcIndex, Offset: t.pos, Err: err}
}

// Finish resolves all branch offsets and returns the translated function.
func (t *Translator) Finish() (*CompiledFunc, error) {
	if !t.finished {
		return nil, fmt.Errorf("function body is missing its final end")
	}
	code := t.enc.bytes()
	if err := t.labels.resolvedUsers(t.enc.patchBranchOffset); err != nil {
		return nil, err
	}

	cf := &CompiledFunc{
		Code:       append([]byte(nil), code...),
		MaxSlot:    uint16(t.stack.cellsUsed()),
		LocalCells: uint16(t.stack.localCells()),
		Metered:    t.cfg.FuelMetering,
	}
	if len(t.funcs) > 0 {
		cf.Funcs = append([]wasm.FunctionHandle(nil), t.funcs...)
	}
	t.logger.Debugf("translated function[%d] %s: %d bytes, %d cells, %d callees",
		t.funcIndex, t.funcType, len(cf.Code), cf.MaxSlot, len(cf.Funcs))
	return cf, nil
}

// UpdatePos implements wasm.FunctionVisitor.
func (t *Translator) UpdatePos(offset int) {
	t.pos = offset
}

// VisitLocals implements wasm.FunctionVisitor.
func (t *Translator) VisitLocals(count uint32, typ wasm.ValueType) error {
	if t.started {
		return errors.New("locals declared after the first operator")
	}
	if uint64(len(t.localTypes))+uint64(count) > maxCells {
		return fmt.Errorf("%w: %d more locals of type %s", ErrTooManyLocals, count, wasm.ValueTypeName(typ))
	}
	for i := uint32(0); i < count; i++ {
		t.localTypes = append(t.localTypes, typ)
	}
	return nil
}

// start sets up the function frame before the first operator.
func (t *Translator) start() error {
	if t.started {
		return nil
	}
	t.started = true
	if len(t.funcType.Results) > 1 {
		if err := t.cfg.Features.Require(wasm.FeatureMultiValue); err != nil {
			return err
		}
	}
	if err := t.stack.reset(t.localTypes); err != nil {
		return err
	}
	fuel := noFuel
	if t.cfg.FuelMetering {
		fuel = t.enc.encodeConsumeFuel(t.cfg.FuelCosts.Base)
	}
	t.control.push(controlFrame{
		kind:        frameBlock,
		blockType:   wasm.BlockTypeFromFunctionType(t.funcType),
		label:       t.labels.newLabel(),
		consumeFuel: fuel,
	})
	t.reachable = true
	return nil
}

// requireFeature fails the operator name unless feature is enabled.
func (t *Translator) requireFeature(name string, feature wasm.Features) error {
	if err := t.cfg.Features.Require(feature); err != nil {
		return fmt.Errorf("%s invalid as %v", name, err)
	}
	return nil
}

type costKind byte

const (
	costBase costKind = iota
	costLoad
	costStore
	costCall
	costInstance
)

func (t *Translator) cost(k costKind) uint64 {
	switch k {
	case costLoad:
		return t.cfg.FuelCosts.Load
	case costStore:
		return t.cfg.FuelCosts.Store
	case costCall:
		return t.cfg.FuelCosts.Call
	case costInstance:
		return t.cfg.FuelCosts.Instance
	}
	return t.cfg.FuelCosts.Base
}

// begin is called first by every operator which is skipped in unreachable code.
// It reports whether the operator has to be translated and charges its fuel if so.
func (t *Translator) begin(name string, k costKind) (bool, error) {
	if err := t.start(); err != nil {
		return false, err
	}
	if buildoptions.IsDebugMode {
		t.logger.Debugf("function[%d] %#x: %s reachable=%v stack=%d", t.funcIndex, t.pos, name, t.reachable, t.stack.height())
	}
	if !t.reachable {
		return false, nil
	}
	if t.cfg.FuelMetering {
		if err := t.enc.bumpFuel(t.control.top().fuelPos(), t.cost(k)); err != nil {
			return false, err
		}
	}
	return true, nil
}

// beginControl is called first by block, loop, if, else and end which are also tracked in
// unreachable code and charge no fuel to the enclosing frame.
func (t *Translator) beginControl(name string) error {
	if err := t.start(); err != nil {
		return err
	}
	if buildoptions.IsDebugMode {
		t.logger.Debugf("function[%d] %#x: %s reachable=%v stack=%d", t.funcIndex, t.pos, name, t.reachable, t.stack.height())
	}
	return nil
}

// consumeFuel starts a new metered region and returns the position of its ConsumeFuel.
func (t *Translator) consumeFuel() int {
	if !t.cfg.FuelMetering {
		return noFuel
	}
	return t.enc.encodeConsumeFuel(t.cfg.FuelCosts.Base)
}

// imm64 reports whether immediates of type typ need all 64 bits of a cell.
func imm64(typ wasm.ValueType) bool {
	switch typ {
	case wasm.ValueTypeI64, wasm.ValueTypeF64, wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return true
	}
	return false
}

// copyTo emits the instructions storing the value of o into dst and returns how many it emitted.
func (t *Translator) copyTo(dst bytecode.Slot, o *operand) int {
	if o.kind == operandImmediate {
		if imm64(o.typ) {
			t.enc.encode(bytecode.CopyImm64{Result: dst, Value: o.value})
		} else {
			t.enc.encode(bytecode.CopyImm32{Result: dst, Value: uint32(o.value)})
		}
		return 1
	}
	src := o.slot()
	if src == dst {
		return 0
	}
	cells := int(wasm.ValueTypeCells(o.typ))
	for i := 0; i < cells; i++ {
		t.enc.encode(bytecode.Copy{Result: dst + bytecode.Slot(i), Value: src + bytecode.Slot(i)})
	}
	return cells
}

// chargeCopies charges n copies to the metered region of the innermost frame.
func (t *Translator) chargeCopies(n int) error {
	if !t.cfg.FuelMetering || n == 0 {
		return nil
	}
	return t.enc.bumpFuel(t.control.top().fuelPos(), uint64(n)*t.cfg.FuelCosts.Base)
}

// preserveCopy is passed to the operand stack when local aliases become temps.
// Each copy costs one base unit since no operator of the function body accounts for it.
func (t *Translator) preserveCopy(old operand) error {
	return t.chargeCopies(t.copyTo(old.stackSlot, &old))
}

// materialize turns the operand at depth into a temp.
func (t *Translator) materialize(depth int) {
	o := t.stack.peek(depth)
	if o.kind == operandTemp {
		return
	}
	old := t.stack.operandToTemp(depth)
	t.copyTo(old.stackSlot, &old)
}

// materializeTop turns the top n operands into temps.
func (t *Translator) materializeTop(n int) {
	for depth := n - 1; depth >= 0; depth-- {
		t.materialize(depth)
	}
}

// inputSlot returns the slot an instruction reads the popped operand o from, writing
// immediates to the stack slot o occupied.
func (t *Translator) inputSlot(o *operand) bytecode.Slot {
	if o.kind == operandImmediate {
		t.copyTo(o.stackSlot, o)
		return o.stackSlot
	}
	return o.slot()
}

// pushMoved pushes o which was popped from another stack position.
func (t *Translator) pushMoved(o operand) error {
	if o.kind != operandTemp {
		return t.stack.pushOperand(o)
	}
	dst := t.stack.slotAt(t.stack.height())
	if o.stackSlot != dst {
		t.copyTo(dst, &o)
	}
	_, err := t.stack.pushTemp(o.typ)
	return err
}

// pushTemps pushes one temp per type.
func (t *Translator) pushTemps(types []wasm.ValueType) error {
	for _, typ := range types {
		if _, err := t.stack.pushTemp(typ); err != nil {
			return err
		}
	}
	return nil
}

// funcRef returns the side table index of the given callee.
func (t *Translator) funcRef(h wasm.FunctionHandle) uint32 {
	if i, ok := t.funcIndices[h]; ok {
		return i
	}
	i := uint32(len(t.funcs))
	t.funcs = append(t.funcs, h)
	t.funcIndices[h] = i
	return i
}

// checkInvariants verifies internal consistency of the operand stack in debug builds.
func (t *Translator) checkInvariants() error {
	if !buildoptions.IsDebugMode {
		return nil
	}
	if err := t.stack.checkLocalChains(); err != nil {
		return fmt.Errorf("BUG: %w", err)
	}
	if !t.control.empty() && t.reachable {
		if f := t.control.top(); f.kind != frameUnreachable && t.stack.height() < int(f.height) {
			return fmt.Errorf("BUG: stack height %d below frame height %d", t.stack.height(), f.height)
		}
	}
	return nil
}
