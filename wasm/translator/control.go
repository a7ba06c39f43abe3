package translator

import (
	"fmt"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
)

type frameKind byte

const (
	frameBlock frameKind = iota
	frameLoop
	frameIf
	frameElse
	// frameUnreachable is opened for every construct entered while the code is unreachable.
	frameUnreachable
)

func (k frameKind) String() string {
	switch k {
	case frameBlock:
		return "block"
	case frameLoop:
		return "loop"
	case frameIf:
		return "if"
	case frameElse:
		return "else"
	case frameUnreachable:
		return "unreachable"
	}
	return fmt.Sprintf("frameKind(%d)", byte(k))
}

// ifReachability classifies which branches of an if can execute, fixed when the if is entered.
type ifReachability byte

const (
	// ifBoth is used for a condition only known at execution.
	ifBoth ifReachability = iota
	// ifOnlyThen is used for a constant non-zero condition.
	ifOnlyThen
	// ifOnlyElse is used for a constant zero condition.
	ifOnlyElse
)

// BlockHeight is the height of the operand stack when a frame is entered, excluding its parameters.
type BlockHeight uint16

// noFuel marks frames of functions translated without metering.
const noFuel = -1

type controlFrame struct {
	kind frameKind
	// unreachableKind is the construct an unreachable frame stands for.
	unreachableKind frameKind

	blockType wasm.BlockType
	height    BlockHeight
	// label is the branch target: the loop header for loops, the end for all others.
	label LabelRef
	// branchedTo is set once a branch targets label.
	branchedTo bool
	// consumeFuel is the position of the ConsumeFuel instruction charged for the frame's code.
	consumeFuel int

	// The following are used by if and else frames.
	reachability ifReachability
	// elseLabel is the start of the else branch, only for ifBoth.
	elseLabel          LabelRef
	endOfThenReachable bool
}

// branchTypes returns the types of the values carried by a branch to f.
func (f *controlFrame) branchTypes() []wasm.ValueType {
	if f.kind == frameLoop {
		return f.blockType.Params
	}
	return f.blockType.Results
}

// fuelPos returns the position of the ConsumeFuel instruction governing f.
func (f *controlFrame) fuelPos() int {
	if f.kind == frameUnreachable {
		panic("BUG: fuel of an unreachable frame requested")
	}
	return f.consumeFuel
}

func (f *controlFrame) String() string {
	return fmt.Sprintf("%s%s height=%d label=%d", f.kind, f.blockType, f.height, f.label)
}

// acquiredTarget is the result of resolving a branch depth.
type acquiredTarget struct {
	// isReturn is set when the branch leaves the function.
	isReturn bool
	frame    *controlFrame
}

// elseOperands keeps the parameters of if frames until their else branch starts.
type elseOperands struct {
	ends []int
	ops  []operand
}

func (e *elseOperands) reset() {
	e.ends = e.ends[:0]
	e.ops = e.ops[:0]
}

func (e *elseOperands) push(ops []operand) {
	e.ops = append(e.ops, ops...)
	e.ends = append(e.ends, len(e.ops))
}

// pop removes and returns the most recently pushed group.
func (e *elseOperands) pop() []operand {
	n := len(e.ends)
	if n == 0 {
		panic("BUG: no else operands")
	}
	start := 0
	if n > 1 {
		start = e.ends[n-2]
	}
	ret := append([]operand(nil), e.ops[start:]...)
	e.ops = e.ops[:start]
	e.ends = e.ends[:n-1]
	return ret
}

// drop discards the most recently pushed group.
func (e *elseOperands) drop() {
	e.pop()
}

func (e *elseOperands) len() int {
	return len(e.ends)
}

// controlStack is the stack of open frames, innermost last.
type controlStack struct {
	frames  []controlFrame
	elseOps elseOperands
}

func (c *controlStack) reset() {
	c.frames = c.frames[:0]
	c.elseOps.reset()
}

func (c *controlStack) len() int {
	return len(c.frames)
}

func (c *controlStack) empty() bool {
	return len(c.frames) == 0
}

func (c *controlStack) push(f controlFrame) {
	c.frames = append(c.frames, f)
}

func (c *controlStack) pushUnreachable(kind frameKind) {
	c.frames = append(c.frames, controlFrame{kind: frameUnreachable, unreachableKind: kind, consumeFuel: noFuel})
}

// pushElseOperands saves the parameters of the if frame about to be pushed.
func (c *controlStack) pushElseOperands(ops []operand) {
	c.elseOps.push(ops)
}

func (c *controlStack) popElseOperands() []operand {
	return c.elseOps.pop()
}

func (c *controlStack) dropElseOperands() {
	c.elseOps.drop()
}

func (c *controlStack) pop() controlFrame {
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return f
}

// get returns the frame at depth, 0 being the innermost.
func (c *controlStack) get(depth uint32) *controlFrame {
	return &c.frames[len(c.frames)-1-int(depth)]
}

func (c *controlStack) top() *controlFrame {
	return c.get(0)
}

// acquireTarget resolves the target of a branch with the given relative depth.
// Branching to the outermost frame returns from the function.
func (c *controlStack) acquireTarget(depth uint32) acquiredTarget {
	if int(depth) == len(c.frames)-1 {
		return acquiredTarget{isReturn: true}
	}
	f := c.get(depth)
	if f.kind == frameUnreachable {
		panic(fmt.Sprintf("BUG: branch to unreachable frame at depth %d", depth))
	}
	return acquiredTarget{frame: f}
}
