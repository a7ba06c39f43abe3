package translator

import (
	"fmt"
	"math"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// maxCells is the number of storage cells addressable by a bytecode.Slot.
const maxCells = math.MaxUint16

type operandKind byte

const (
	// operandLocal is a value which still lives in the slot of a local variable.
	operandLocal operandKind = iota
	// operandTemp is a value stored in the slot of its own stack position.
	operandTemp
	// operandImmediate is a constant not yet written to any slot.
	operandImmediate
)

func (k operandKind) String() string {
	switch k {
	case operandLocal:
		return "local"
	case operandTemp:
		return "temp"
	case operandImmediate:
		return "immediate"
	}
	return fmt.Sprintf("operandKind(%d)", byte(k))
}

// operand is an entry of the operand stack.
type operand struct {
	kind operandKind
	typ  wasm.ValueType
	// stackSlot is the first cell owned by the stack position of this operand, whatever its kind.
	stackSlot bytecode.Slot

	// local and localSlot are set for operandLocal.
	local     uint32
	localSlot bytecode.Slot

	// value is the raw bits of an operandImmediate.
	value uint64

	// prev and next link the operands aliasing the same local, prev being the closer one to the top.
	// -1 marks the end of the chain.
	prev, next int
}

// slot returns the slot the value of o can be read from. Immediates have none.
func (o *operand) slot() bytecode.Slot {
	if o.kind == operandLocal {
		return o.localSlot
	}
	return o.stackSlot
}

func (o *operand) String() string {
	switch o.kind {
	case operandLocal:
		return fmt.Sprintf("%s(local %d @%s)", wasm.ValueTypeName(o.typ), o.local, o.localSlot)
	case operandTemp:
		return fmt.Sprintf("%s(%s)", wasm.ValueTypeName(o.typ), o.stackSlot)
	default:
		return fmt.Sprintf("%s(%#x)", wasm.ValueTypeName(o.typ), o.value)
	}
}

// operandStack tracks the values of the structured stack machine and where they are stored.
//
// Operands are kept in a flat slice. Operands aliasing the same local form a doubly linked
// list threaded through their indices, with localHeads pointing at the topmost one.
type operandStack struct {
	ops []operand

	localHeads []int
	localSlots []bytecode.Slot
	localTypes []wasm.ValueType
	// liveLocals is the number of operandLocal entries in ops.
	liveLocals int

	// base is the first cell after the locals.
	base uint32
	// maxCell is the high-water mark of used cells.
	maxCell uint32
}

// reset prepares the stack for a function with the given locals, parameters first.
func (s *operandStack) reset(localTypes []wasm.ValueType) error {
	s.ops = s.ops[:0]
	s.liveLocals = 0
	s.localTypes = append(s.localTypes[:0], localTypes...)
	s.localSlots = s.localSlots[:0]
	s.localHeads = s.localHeads[:0]

	var cells uint32
	for _, t := range localTypes {
		if cells+wasm.ValueTypeCells(t) > maxCells {
			return fmt.Errorf("%w: %d locals", ErrTooManyLocals, len(localTypes))
		}
		s.localSlots = append(s.localSlots, bytecode.Slot(cells))
		s.localHeads = append(s.localHeads, -1)
		cells += wasm.ValueTypeCells(t)
	}
	s.base, s.maxCell = cells, cells
	return nil
}

func (s *operandStack) height() int {
	return len(s.ops)
}

// localCells returns the number of cells occupied by locals.
func (s *operandStack) localCells() uint32 {
	return s.base
}

// cellsUsed returns the high-water mark of cells, locals included.
func (s *operandStack) cellsUsed() uint32 {
	return s.maxCell
}

// slotAt returns the first cell of the stack position at height h, which may be the next free one.
func (s *operandStack) slotAt(h int) bytecode.Slot {
	if h < len(s.ops) {
		return s.ops[h].stackSlot
	}
	if len(s.ops) == 0 {
		return bytecode.Slot(s.base)
	}
	top := &s.ops[len(s.ops)-1]
	return top.stackSlot + bytecode.Slot(wasm.ValueTypeCells(top.typ))
}

// slotsFrom returns the slots of consecutive values of types starting at stack position h.
func (s *operandStack) slotsFrom(h int, types []wasm.ValueType) []bytecode.Slot {
	first := uint32(s.slotAt(h))
	ret := make([]bytecode.Slot, len(types))
	for i, t := range types {
		ret[i] = bytecode.Slot(first)
		first += wasm.ValueTypeCells(t)
	}
	return ret
}

func (s *operandStack) push(o operand) (*operand, error) {
	slot := uint32(s.slotAt(len(s.ops)))
	end := slot + wasm.ValueTypeCells(o.typ)
	if end > maxCells {
		return nil, ErrTooManySlots
	}
	if end > s.maxCell {
		s.maxCell = end
	}
	o.stackSlot = bytecode.Slot(slot)
	o.prev, o.next = -1, -1
	s.ops = append(s.ops, o)
	return &s.ops[len(s.ops)-1], nil
}

// pushLocal pushes an alias of the given local.
func (s *operandStack) pushLocal(index uint32) error {
	idx := len(s.ops)
	o, err := s.push(operand{kind: operandLocal, typ: s.localTypes[index], local: index, localSlot: s.localSlots[index]})
	if err != nil {
		return err
	}
	head := s.localHeads[index]
	o.next = head
	if head >= 0 {
		s.ops[head].prev = idx
	}
	s.localHeads[index] = idx
	s.liveLocals++
	return nil
}

// pushTemp pushes a value stored at its own stack position and returns that slot.
func (s *operandStack) pushTemp(t wasm.ValueType) (bytecode.Slot, error) {
	o, err := s.push(operand{kind: operandTemp, typ: t})
	if err != nil {
		return 0, err
	}
	return o.stackSlot, nil
}

func (s *operandStack) pushImmediate(t wasm.ValueType, value uint64) error {
	_, err := s.push(operand{kind: operandImmediate, typ: t, value: value})
	return err
}

// pushOperand pushes a copy of o at the top. A temp moved to another position must be
// copied by the caller first, so it is only accepted at its own slot.
func (s *operandStack) pushOperand(o operand) error {
	switch o.kind {
	case operandLocal:
		return s.pushLocal(o.local)
	case operandImmediate:
		return s.pushImmediate(o.typ, o.value)
	default:
		if o.stackSlot != s.slotAt(len(s.ops)) {
			panic(fmt.Sprintf("BUG: temp %s pushed at %s", o.stackSlot, s.slotAt(len(s.ops))))
		}
		_, err := s.pushTemp(o.typ)
		return err
	}
}

// unlink removes the operand at idx from its local alias chain.
func (s *operandStack) unlink(idx int) {
	o := &s.ops[idx]
	if o.prev >= 0 {
		s.ops[o.prev].next = o.next
	} else {
		s.localHeads[o.local] = o.next
	}
	if o.next >= 0 {
		s.ops[o.next].prev = o.prev
	}
	o.prev, o.next = -1, -1
	s.liveLocals--
}

func (s *operandStack) pop() operand {
	idx := len(s.ops) - 1
	if s.ops[idx].kind == operandLocal {
		s.unlink(idx)
	}
	o := s.ops[idx]
	s.ops = s.ops[:idx]
	return o
}

// popN pops n operands and returns them bottom first.
func (s *operandStack) popN(n int) []operand {
	ret := make([]operand, n)
	for i := n - 1; i >= 0; i-- {
		ret[i] = s.pop()
	}
	return ret
}

// peek returns the operand at depth, 0 being the top.
func (s *operandStack) peek(depth int) *operand {
	return &s.ops[len(s.ops)-1-depth]
}

// peekN returns copies of the top n operands, bottom first.
func (s *operandStack) peekN(n int) []operand {
	return append([]operand(nil), s.ops[len(s.ops)-n:]...)
}

// operandToTemp turns the operand at depth into a temp and returns its previous state.
// The caller is responsible for emitting the copy into the stack slot.
func (s *operandStack) operandToTemp(depth int) operand {
	idx := len(s.ops) - 1 - depth
	old := s.ops[idx]
	if old.kind == operandLocal {
		s.unlink(idx)
	}
	o := &s.ops[idx]
	o.kind, o.value = operandTemp, 0
	return old
}

// retype changes the type of the top operand, which must not be a local and keep the same width.
func (s *operandStack) retype(t wasm.ValueType) {
	o := s.peek(0)
	if o.kind == operandLocal || wasm.ValueTypeCells(o.typ) != wasm.ValueTypeCells(t) {
		panic(fmt.Sprintf("BUG: cannot retype %s to %s", o, wasm.ValueTypeName(t)))
	}
	o.typ = t
}

// preserveLocals turns every alias of the local into a temp, calling fn with the previous state
// of each so the caller can emit the copy out of the local's slot.
func (s *operandStack) preserveLocals(index uint32, fn func(old operand) error) error {
	for idx := s.localHeads[index]; idx >= 0; {
		next := s.ops[idx].next
		if err := fn(s.ops[idx]); err != nil {
			return err
		}
		s.unlink(idx)
		s.ops[idx].kind = operandTemp
		idx = next
	}
	return nil
}

// preserveAllLocals turns every local alias into a temp, from the top down.
func (s *operandStack) preserveAllLocals(fn func(old operand) error) error {
	for idx := len(s.ops) - 1; idx >= 0 && s.liveLocals > 0; idx-- {
		if s.ops[idx].kind != operandLocal {
			continue
		}
		if err := fn(s.ops[idx]); err != nil {
			return err
		}
		s.unlink(idx)
		s.ops[idx].kind = operandTemp
	}
	return nil
}

// trunc pops operands until the height is h.
func (s *operandStack) trunc(h int) {
	for len(s.ops) > h {
		s.pop()
	}
}

// checkLocalChains verifies that walking the alias chain of every local visits exactly
// the operands tagged with that local, top down.
func (s *operandStack) checkLocalChains() error {
	seen := 0
	for local, head := range s.localHeads {
		prev := -1
		for idx := head; idx >= 0; idx = s.ops[idx].next {
			o := &s.ops[idx]
			if o.kind != operandLocal || o.local != uint32(local) {
				return fmt.Errorf("chain of local %d reaches %s at %d", local, o, idx)
			}
			if o.prev != prev {
				return fmt.Errorf("chain of local %d: broken back link at %d", local, idx)
			}
			if prev >= 0 && idx >= prev {
				return fmt.Errorf("chain of local %d is not ordered at %d", local, idx)
			}
			prev = idx
			seen++
		}
	}
	tagged := 0
	for i := range s.ops {
		if s.ops[i].kind == operandLocal {
			tagged++
		}
	}
	if seen != tagged || tagged != s.liveLocals {
		return fmt.Errorf("local chains cover %d operands, %d tagged, %d counted", seen, tagged, s.liveLocals)
	}
	return nil
}
