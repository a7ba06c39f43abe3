package translator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
)

func TestElseOperands(t *testing.T) {
	a := operand{kind: operandImmediate, typ: wasm.ValueTypeI32, value: 1}
	b := operand{kind: operandTemp, typ: wasm.ValueTypeI64, stackSlot: 3}
	c := operand{kind: operandLocal, typ: wasm.ValueTypeF32, local: 2}

	var e elseOperands
	e.push([]operand{a, b})
	e.push(nil)
	e.push([]operand{c})
	require.Equal(t, 3, e.len())

	require.Equal(t, []operand{c}, e.pop())
	require.Empty(t, e.pop())
	require.Equal(t, []operand{a, b}, e.pop())
	require.Zero(t, e.len())
	require.Panics(t, func() { e.pop() })

	e.push([]operand{a})
	e.push([]operand{b})
	e.drop()
	require.Equal(t, []operand{a}, e.pop())

	e.push([]operand{a})
	e.reset()
	require.Zero(t, e.len())
}

func TestControlStack_AcquireTarget(t *testing.T) {
	var c controlStack
	c.push(controlFrame{kind: frameBlock, label: 0})
	c.push(controlFrame{kind: frameLoop, label: 1})
	c.pushUnreachable(frameIf)
	require.Equal(t, 3, c.len())

	require.True(t, c.acquireTarget(2).isReturn)
	target := c.acquireTarget(1)
	require.False(t, target.isReturn)
	require.Equal(t, LabelRef(1), target.frame.label)
	require.Panics(t, func() { c.acquireTarget(0) })

	f := c.pop()
	require.Equal(t, frameUnreachable, f.kind)
	require.Equal(t, frameIf, f.unreachableKind)
	require.Panics(t, func() { f.fuelPos() })

	c.reset()
	require.True(t, c.empty())
}

func TestControlFrame_BranchTypes(t *testing.T) {
	bt := wasm.BlockType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeF64}}
	loop := controlFrame{kind: frameLoop, blockType: bt}
	block := controlFrame{kind: frameBlock, blockType: bt}
	require.Equal(t, bt.Params, loop.branchTypes())
	require.Equal(t, bt.Results, block.branchTypes())
}
