package bytecode

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBranchOffsetOutOfBounds is returned when the distance between a branch and its target
	// does not fit the offset field.
	ErrBranchOffsetOutOfBounds = errors.New("branch offset out of bounds")
	// ErrBlockFuelOutOfBounds is returned when the accumulated fuel of a metered region overflows.
	ErrBlockFuelOutOfBounds = errors.New("block fuel out of bounds")
	// ErrListTooLong is returned when a slot or branch offset list exceeds its 16-bit length prefix.
	ErrListTooLong = errors.New("operand list too long")
)

// Slot addresses a storage cell of the executing function's frame.
type Slot uint16

// String implements fmt.Stringer.
func (s Slot) String() string {
	return fmt.Sprintf("s%d", uint16(s))
}

// SlotList is a length-prefixed sequence of slots.
type SlotList []Slot

func (l SlotList) String() string {
	ret := "["
	for i, s := range l {
		if i > 0 {
			ret += ", "
		}
		ret += s.String()
	}
	return ret + "]"
}

// BranchOffset is the signed byte distance from the first byte of a branch instruction to its target.
type BranchOffset int32

// NewBranchOffset returns the offset of a branch at position src targeting position dst.
func NewBranchOffset(src, dst int) (BranchOffset, error) {
	delta := int64(dst) - int64(src)
	if delta < math.MinInt32 || delta > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d -> %d", ErrBranchOffsetOutOfBounds, src, dst)
	}
	return BranchOffset(delta), nil
}

// ToNarrow returns the offset as BranchOffset16 if it fits.
func (o BranchOffset) ToNarrow() (BranchOffset16, bool) {
	if o < math.MinInt16 || o > math.MaxInt16 {
		return 0, false
	}
	return BranchOffset16(o), true
}

// String implements fmt.Stringer.
func (o BranchOffset) String() string {
	return fmt.Sprintf("%+d", int32(o))
}

// BranchOffset16 is the narrow form of BranchOffset used by fused compare-and-branch instructions.
type BranchOffset16 int16

// String implements fmt.Stringer.
func (o BranchOffset16) String() string {
	return fmt.Sprintf("%+d", int16(o))
}

// BranchOffsetList is a length-prefixed sequence of branch offsets.
type BranchOffsetList []BranchOffset

func (l BranchOffsetList) String() string {
	ret := "["
	for i, o := range l {
		if i > 0 {
			ret += ", "
		}
		ret += o.String()
	}
	return ret + "]"
}

// BlockFuel is the amount of fuel a ConsumeFuel instruction charges.
type BlockFuel uint64

// BumpBy returns the fuel increased by delta.
func (f BlockFuel) BumpBy(delta uint64) (BlockFuel, error) {
	sum := uint64(f) + delta
	if sum < uint64(f) {
		return 0, fmt.Errorf("%w: %d + %d", ErrBlockFuelOutOfBounds, uint64(f), delta)
	}
	return BlockFuel(sum), nil
}

// Imm16 is a 16-bit immediate operand, sign extended to the operated type at execution.
type Imm16 int16

// Imm16FromI32 returns the value as Imm16 if it is representable.
func Imm16FromI32(v int32) (Imm16, bool) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, false
	}
	return Imm16(v), true
}

// Imm16FromI64 returns the value as Imm16 if it is representable.
func Imm16FromI64(v int64) (Imm16, bool) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, false
	}
	return Imm16(v), true
}

// Sign is the sign operand of CopysignImm.
type Sign uint8

const (
	SignPositive Sign = iota
	SignNegative
	signEnd
)

func (s Sign) String() string {
	switch s {
	case SignPositive:
		return "+"
	case SignNegative:
		return "-"
	}
	return fmt.Sprintf("sign(%d)", uint8(s))
}

// SignOf returns the Sign of the given float bits' sign bit.
func SignOf(negative bool) Sign {
	if negative {
		return SignNegative
	}
	return SignPositive
}

// TrapCode is the reason of an execution trap.
type TrapCode uint8

const (
	TrapCodeUnreachableCodeReached TrapCode = iota
	TrapCodeMemoryOutOfBounds
	TrapCodeTableOutOfBounds
	TrapCodeIndirectCallToNull
	TrapCodeIntegerDivisionByZero
	TrapCodeIntegerOverflow
	TrapCodeBadConversionToInteger
	TrapCodeStackOverflow
	TrapCodeBadSignature
	TrapCodeOutOfFuel
	trapCodeEnd
)

var trapCodeNames = [trapCodeEnd]string{
	TrapCodeUnreachableCodeReached: "unreachable",
	TrapCodeMemoryOutOfBounds:      "memory_out_of_bounds",
	TrapCodeTableOutOfBounds:       "table_out_of_bounds",
	TrapCodeIndirectCallToNull:     "indirect_call_to_null",
	TrapCodeIntegerDivisionByZero:  "integer_division_by_zero",
	TrapCodeIntegerOverflow:        "integer_overflow",
	TrapCodeBadConversionToInteger: "bad_conversion_to_integer",
	TrapCodeStackOverflow:          "stack_overflow",
	TrapCodeBadSignature:           "bad_signature",
	TrapCodeOutOfFuel:              "out_of_fuel",
}

func (c TrapCode) String() string {
	if c < trapCodeEnd {
		return trapCodeNames[c]
	}
	return fmt.Sprintf("trap(%d)", uint8(c))
}
