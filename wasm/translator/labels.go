package translator

import (
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// LabelRef identifies a label of the function being translated.
type LabelRef uint32

// label is a branch target. Its position is unknown until it is pinned.
type label struct {
	pinned bool
	pos    int
}

// labelUser is a branch offset field waiting for its label to be pinned.
type labelUser struct {
	label LabelRef
	// instr is the position of the first byte of the branch instruction.
	instr int
	// field is the position of the offset field.
	field int
	// narrow is true for 16-bit offset fields.
	narrow bool
}

// labelRegistry allocates labels and records forward references to them.
type labelRegistry struct {
	labels []label
	users  []labelUser
}

func (r *labelRegistry) reset() {
	r.labels = r.labels[:0]
	r.users = r.users[:0]
}

func (r *labelRegistry) newLabel() LabelRef {
	r.labels = append(r.labels, label{})
	return LabelRef(len(r.labels) - 1)
}

// pinLabel resolves ref to pos. Labels are pinned at most once.
func (r *labelRegistry) pinLabel(ref LabelRef, pos int) {
	l := &r.labels[ref]
	if l.pinned {
		panic(fmt.Sprintf("BUG: label %d pinned twice (at %d and %d)", ref, l.pos, pos))
	}
	l.pinned, l.pos = true, pos
}

// tryPinLabel pins ref unless it already is, and reports whether it did.
func (r *labelRegistry) tryPinLabel(ref LabelRef, pos int) bool {
	if r.labels[ref].pinned {
		return false
	}
	r.pinLabel(ref, pos)
	return true
}

func (r *labelRegistry) isPinned(ref LabelRef) bool {
	return r.labels[ref].pinned
}

// position returns the position of a pinned label.
func (r *labelRegistry) position(ref LabelRef) int {
	l := r.labels[ref]
	if !l.pinned {
		panic(fmt.Sprintf("BUG: label %d is not pinned", ref))
	}
	return l.pos
}

// tryResolveLabel returns the offset from the branch at instr to ref when ref is pinned.
// Otherwise the offset field at field is recorded as a user of ref and a zero placeholder is returned.
func (r *labelRegistry) tryResolveLabel(ref LabelRef, instr, field int, narrow bool) (bytecode.BranchOffset, error) {
	if l := r.labels[ref]; l.pinned {
		off, err := bytecode.NewBranchOffset(instr, l.pos)
		if err != nil {
			return 0, err
		}
		if narrow {
			if _, ok := off.ToNarrow(); !ok {
				return 0, fmt.Errorf("%w: %d does not fit 16 bits", ErrBranchOffsetOutOfBounds, off)
			}
		}
		return off, nil
	}
	r.users = append(r.users, labelUser{label: ref, instr: instr, field: field, narrow: narrow})
	return 0, nil
}

// resolvedUsers calls fn with every recorded user and its now known offset.
// Every referenced label must be pinned.
func (r *labelRegistry) resolvedUsers(fn func(u labelUser, off bytecode.BranchOffset) error) error {
	for _, u := range r.users {
		off, err := bytecode.NewBranchOffset(u.instr, r.position(u.label))
		if err != nil {
			return err
		}
		if err := fn(u, off); err != nil {
			return err
		}
	}
	return nil
}
