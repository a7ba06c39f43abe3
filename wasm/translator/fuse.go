package translator

import (
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// tryFuseBranch replaces the staged comparison with a compare-and-branch to ref.
// The comparison result is dropped, so this must only be used when the branch consumes it.
func (t *Translator) tryFuseBranch(staged bytecode.Instruction, ref LabelRef, onZero bool) (bool, error) {
	var (
		cmp      bytecode.Comparator
		lhs, rhs bytecode.Slot
		imm      bytecode.Imm16
		isImm    bool
		ok       bool
	)
	switch s := staged.(type) {
	case bytecode.Binary:
		cmp, ok = bytecode.ComparatorFromOpCode(s.Code)
		lhs, rhs = s.Lhs, s.Rhs
	case bytecode.BinaryImm16:
		cmp, ok = bytecode.ComparatorFromOpCode(s.Code)
		lhs, imm, isImm = s.Lhs, s.Rhs, true
	}
	if !ok {
		return false, nil
	}
	if onZero {
		if cmp, ok = cmp.Negate(); !ok {
			return false, nil
		}
	}
	t.enc.dropStaged()

	if isImm {
		if imm == 0 && (cmp == bytecode.CmpI32Eq || cmp == bytecode.CmpI32Ne) {
			code := bytecode.OpBranchIfEqz
			if cmp == bytecode.CmpI32Ne {
				code = bytecode.OpBranchIfNez
			}
			_, err := t.enc.encodeBranch(&t.labels, ref, func(off bytecode.BranchOffset) bytecode.Instruction {
				return bytecode.BranchIf{Code: code, Condition: lhs, Offset: off}
			})
			return true, err
		}
		_, err := t.enc.encodeBranch(&t.labels, ref, func(off bytecode.BranchOffset) bytecode.Instruction {
			return bytecode.BranchCmpImm{Cmp: cmp, Lhs: lhs, Rhs: imm, Offset: off}
		})
		return true, err
	}

	// Backward branches to pinned labels use the narrow form when the offset fits.
	if t.labels.isPinned(ref) {
		pos := t.enc.nextPos()
		if off, err := bytecode.NewBranchOffset(pos, t.labels.position(ref)); err == nil {
			if narrow, ok := off.ToNarrow(); ok {
				t.enc.encode(bytecode.BranchCmp{Cmp: cmp, Lhs: lhs, Rhs: rhs, Offset: narrow})
				return true, nil
			}
		}
	}
	_, err := t.enc.encodeBranch(&t.labels, ref, func(off bytecode.BranchOffset) bytecode.Instruction {
		return bytecode.BranchCmpWide{Cmp: cmp, Lhs: lhs, Rhs: rhs, Offset: off}
	})
	return true, err
}
