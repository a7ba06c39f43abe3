package translator

import (
	"errors"
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

var (
	// ErrTooManySlots is returned when the values of a function need more than 65535 storage cells.
	ErrTooManySlots = errors.New("too many storage slots")
	// ErrTooManyLocals is returned when the parameters and locals alone exceed the slot budget.
	ErrTooManyLocals = errors.New("too many locals")
	// ErrPatchMismatch is returned when bytes re-decoded after a patch differ from what was written.
	// It indicates a bug in the translator rather than invalid input.
	ErrPatchMismatch = errors.New("patched instruction mismatch")

	ErrBranchOffsetOutOfBounds = bytecode.ErrBranchOffsetOutOfBounds
	ErrBlockFuelOutOfBounds    = bytecode.ErrBlockFuelOutOfBounds
)

// Error is a translation failure of a single function.
type Error struct {
	// FuncIndex is the index of the function in the function index space.
	FuncIndex uint32
	// Offset is the byte offset of the failing operator within the function body.
	Offset int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("translate function[%d] at offset %#x: %v", e.FuncIndex, e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
