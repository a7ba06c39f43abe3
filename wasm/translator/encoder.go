package translator

import (
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// encoder appends instructions to the code of the function being translated.
//
// The most recent comparison can be staged: it stays out of the buffer so that the next
// operator may replace or fuse it. Everything which needs a stable position flushes it first.
type encoder struct {
	buf bytecode.Buffer

	staged    bytecode.Instruction
	hasStaged bool

	// last is the most recently flushed instruction if it writes a single result and no
	// label has been pinned since. lastPos is -1 otherwise.
	last    bytecode.Instruction
	lastPos int
}

func (e *encoder) reset() {
	e.buf.Reset()
	e.staged, e.hasStaged = nil, false
	e.last, e.lastPos = nil, -1
}

// stage holds instr back from the buffer, flushing any previously staged instruction.
func (e *encoder) stage(instr bytecode.Instruction) {
	e.flush()
	e.staged, e.hasStaged = instr, true
}

func (e *encoder) peekStaged() (bytecode.Instruction, bool) {
	return e.staged, e.hasStaged
}

func (e *encoder) replaceStaged(instr bytecode.Instruction) {
	if !e.hasStaged {
		panic("BUG: nothing staged")
	}
	e.staged = instr
}

func (e *encoder) dropStaged() bytecode.Instruction {
	if !e.hasStaged {
		panic("BUG: nothing staged")
	}
	instr := e.staged
	e.staged, e.hasStaged = nil, false
	return instr
}

// flush encodes the staged instruction, if any.
func (e *encoder) flush() {
	if !e.hasStaged {
		return
	}
	instr := e.staged
	e.staged, e.hasStaged = nil, false
	e.put(instr)
}

func (e *encoder) put(instr bytecode.Instruction) int {
	pos := e.buf.Put(instr)
	if _, ok := bytecode.ResultSlot(instr); ok {
		e.last, e.lastPos = instr, pos
	} else {
		e.last, e.lastPos = nil, -1
	}
	return pos
}

// encode flushes the staged instruction and appends instr, returning its position.
func (e *encoder) encode(instr bytecode.Instruction) int {
	e.flush()
	return e.put(instr)
}

// nextPos returns the position the next instruction will be encoded at.
func (e *encoder) nextPos() int {
	e.flush()
	return e.buf.Len()
}

// pinLabel pins ref at the next position. Results of earlier instructions can no longer be
// redirected since other paths may join here.
func (e *encoder) pinLabel(labels *labelRegistry, ref LabelRef) {
	labels.pinLabel(ref, e.nextPos())
	e.last, e.lastPos = nil, -1
}

// encodeBranch encodes the branch built by mk for the offset towards ref.
// Unpinned labels get a placeholder patched once the function is complete.
func (e *encoder) encodeBranch(labels *labelRegistry, ref LabelRef, mk func(off bytecode.BranchOffset) bytecode.Instruction) (int, error) {
	pos := e.nextPos()
	field, narrow, ok := bytecode.OffsetField(mk(0))
	if !ok {
		panic("BUG: not a branch instruction")
	}
	off, err := labels.tryResolveLabel(ref, pos, pos+field, narrow)
	if err != nil {
		return 0, err
	}
	return e.put(mk(off)), nil
}

// encodeBranchTable encodes a BranchTable with one entry per label.
func (e *encoder) encodeBranchTable(labels *labelRegistry, index bytecode.Slot, targets []LabelRef) (int, error) {
	if len(targets) > maxCells {
		return 0, fmt.Errorf("%w: %d branch table targets", bytecode.ErrListTooLong, len(targets))
	}
	pos := e.nextPos()
	offsets := make(bytecode.BranchOffsetList, len(targets))
	for i, ref := range targets {
		off, err := labels.tryResolveLabel(ref, pos, pos+bytecode.TableTargetField(i), false)
		if err != nil {
			return 0, err
		}
		offsets[i] = off
	}
	return e.put(bytecode.BranchTable{Index: index, Targets: offsets}), nil
}

// encodeConsumeFuel appends a ConsumeFuel charging base and returns its position.
func (e *encoder) encodeConsumeFuel(base uint64) int {
	return e.encode(bytecode.ConsumeFuel{Fuel: bytecode.BlockFuel(base)})
}

// bumpFuel adds delta to the ConsumeFuel instruction at pos by decoding, adding and re-encoding it in place.
func (e *encoder) bumpFuel(pos int, delta uint64) error {
	if pos == noFuel || delta == 0 {
		return nil
	}
	instr, err := bytecode.DecodeAt(e.buf.Bytes(), pos)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPatchMismatch, err)
	}
	fuel, ok := instr.(bytecode.ConsumeFuel)
	if !ok {
		return fmt.Errorf("%w: expected consume_fuel at %d, found %s", ErrPatchMismatch, pos, instr)
	}
	bumped, err := fuel.Fuel.BumpBy(delta)
	if err != nil {
		return err
	}
	e.buf.PatchAt(pos, bytecode.ConsumeFuel{Fuel: bumped})
	return nil
}

// retargetResult redirects the result of the latest instruction from slot from to slot to.
// It reports false when the latest instruction did not produce from.
func (e *encoder) retargetResult(from, to bytecode.Slot) bool {
	if e.hasStaged {
		if s, ok := bytecode.ResultSlot(e.staged); ok && s == from {
			e.staged = bytecode.WithResultSlot(e.staged, to)
			return true
		}
		return false
	}
	if e.lastPos < 0 {
		return false
	}
	if s, ok := bytecode.ResultSlot(e.last); !ok || s != from {
		return false
	}
	e.last = bytecode.WithResultSlot(e.last, to)
	e.buf.PatchAt(e.lastPos, e.last)
	return true
}

// patchBranchOffset writes off into the offset field of user and verifies it by decoding
// the branch instruction again.
func (e *encoder) patchBranchOffset(u labelUser, off bytecode.BranchOffset) error {
	if u.narrow {
		narrow, ok := off.ToNarrow()
		if !ok {
			return fmt.Errorf("%w: %d does not fit 16 bits", ErrBranchOffsetOutOfBounds, off)
		}
		e.buf.PatchOffset16(u.field, narrow)
	} else {
		e.buf.PatchOffset(u.field, off)
	}
	instr, err := bytecode.DecodeAt(e.buf.Bytes(), u.instr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPatchMismatch, err)
	}
	if actual, ok := bytecode.OffsetAt(instr, u.field-u.instr); !ok || actual != off {
		return fmt.Errorf("%w: %s at %d, expected offset %s", ErrPatchMismatch, instr, u.instr, off)
	}
	return nil
}

func (e *encoder) bytes() []byte {
	e.flush()
	return e.buf.Bytes()
}
