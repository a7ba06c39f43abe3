package translator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

var (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32

	end = byte(wasm.OpcodeEnd)

	v_v      = &wasm.FunctionType{}
	i32_v    = &wasm.FunctionType{Params: []wasm.ValueType{i32}}
	i32_i32  = &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}
	i32i32_v = &wasm.FunctionType{Params: []wasm.ValueType{i32, i32}}

	i32i32_i32 = &wasm.FunctionType{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}}
)

// singleFunc returns a module defining one function of type ft.
func singleFunc(ft *wasm.FunctionType) *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		GlobalTypes:     []wasm.ValueType{i32},
	}
}

// translate translates body as the first defined function of m and verifies the operand
// stack left behind, which checkInvariants only does in debug builds.
func translate(t *testing.T, cfg Config, m *wasm.Module, body []byte) *CompiledFunc {
	tr := New(cfg, m)
	cf, err := tr.Translate(m.DefinedFunctionIndex(0), body)
	require.NoError(t, err)
	require.NoError(t, tr.stack.checkLocalChains())
	return cf
}

func instructions(t *testing.T, cf *CompiledFunc) []bytecode.Instruction {
	instrs, err := cf.Instructions()
	require.NoError(t, err)
	return instrs
}

func meteredConfig() Config {
	cfg := DefaultConfig()
	cfg.FuelMetering = true
	return cfg
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		ft       *wasm.FunctionType
		body     []byte
		expected []bytecode.Instruction
	}{
		{
			name:     "empty",
			ft:       v_v,
			body:     []byte{0x00, end},
			expected: []bytecode.Instruction{bytecode.Return{}},
		},
		{
			name: "return param",
			ft:   i32_i32,
			body: []byte{0x00, byte(wasm.OpcodeLocalGet), 0, end},
			expected: []bytecode.Instruction{
				bytecode.ReturnSlot{Value: 0},
			},
		},
		{
			name: "folded constants",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 6,
				byte(wasm.OpcodeI32Const), 7,
				byte(wasm.OpcodeI32Mul),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ReturnImm32{Value: 42},
			},
		},
		{
			name: "folded unary",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 1,
				byte(wasm.OpcodeI32Clz),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ReturnImm32{Value: 31},
			},
		},
		{
			name: "division by constant zero",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32Const), 0,
				byte(wasm.OpcodeI32DivS),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Trap{Code: bytecode.TrapCodeIntegerDivisionByZero},
			},
		},
		{
			name: "folded division overflow",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 0x80, 0x80, 0x80, 0x80, 0x78, // math.MinInt32
				byte(wasm.OpcodeI32Const), 0x7f, // -1
				byte(wasm.OpcodeI32DivS),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Trap{Code: bytecode.TrapCodeIntegerOverflow},
			},
		},
		{
			name: "sub immediate becomes add",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32Const), 3,
				byte(wasm.OpcodeI32Sub),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BinaryImm16{Code: bytecode.OpI32AddImm16, Result: 1, Lhs: 0, Rhs: -3},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "commutative immediate lhs",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 3,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32Add),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BinaryImm16{Code: bytecode.OpI32AddImm16, Result: 1, Lhs: 0, Rhs: 3},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "large immediate is copied",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32Const), 0x80, 0x80, 0x04, // 65536
				byte(wasm.OpcodeI32Add),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.CopyImm32{Result: 2, Value: 65536},
				bytecode.Binary{Code: bytecode.OpI32Add, Result: 1, Lhs: 0, Rhs: 2},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "local.set retargets the result",
			ft:   i32i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeI32Add),
				byte(wasm.OpcodeLocalSet), 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Binary{Code: bytecode.OpI32Add, Result: 0, Lhs: 0, Rhs: 1},
				bytecode.Return{},
			},
		},
		{
			name: "local.set preserves aliases",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32Const), 5,
				byte(wasm.OpcodeLocalSet), 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Copy{Result: 1, Value: 0},
				bytecode.CopyImm32{Result: 0, Value: 5},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "local.set of the same local",
			ft:   i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalSet), 0,
				end,
			},
			expected: []bytecode.Instruction{bytecode.Return{}},
		},
		{
			name: "local.tee",
			ft:   i32_i32,
			body: []byte{0x01, 0x01, i32,
				byte(wasm.OpcodeI32Const), 5,
				byte(wasm.OpcodeLocalTee), 1,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.CopyImm32{Result: 1, Value: 5},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "staged comparison is negated by eqz",
			ft:   &wasm.FunctionType{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}},
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeI32LtS),
				byte(wasm.OpcodeI32Eqz),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Binary{Code: bytecode.OpI32GeS, Result: 2, Lhs: 0, Rhs: 1},
				bytecode.ReturnSlot{Value: 2},
			},
		},
		{
			name: "comparison with immediate lhs is swapped",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 10,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32LtU),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BinaryImm16{Code: bytecode.OpI32GtUImm16, Result: 1, Lhs: 0, Rhs: 10},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "reinterpret of a local",
			ft:   &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{f32}},
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeF32ReinterpretI32),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Copy{Result: 1, Value: 0},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "i64 constant",
			ft:   &wasm.FunctionType{Results: []wasm.ValueType{i64}},
			body: []byte{0x00,
				byte(wasm.OpcodeI64Const), 0x7f,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ReturnImm64{Value: 0xffffffffffffffff},
			},
		},
		{
			name: "load and store",
			ft:   i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI64Load), 0x03, 0x08,
				byte(wasm.OpcodeI64Store), 0x03, 0x10,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Load{Code: bytecode.OpI64Load, Result: 2, Ptr: 0, Offset: 8},
				bytecode.Store{Code: bytecode.OpI64Store, Ptr: 0, Value: 2, Offset: 16},
				bytecode.Return{},
			},
		},
		{
			name: "globals",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 1,
				byte(wasm.OpcodeGlobalSet), 0,
				byte(wasm.OpcodeGlobalGet), 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.CopyImm32{Result: 1, Value: 1},
				bytecode.GlobalSet{Value: 1, Global: 0},
				bytecode.GlobalGet{Result: 1, Global: 0},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "select with constant condition",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32Const), 2,
				byte(wasm.OpcodeI32Const), 0,
				byte(wasm.OpcodeSelect),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ReturnImm32{Value: 2},
			},
		},
		{
			name: "unreachable code is skipped",
			ft:   v_v,
			body: []byte{0x00,
				byte(wasm.OpcodeUnreachable),
				byte(wasm.OpcodeBlock), 0x40,
				byte(wasm.OpcodeBr), 0,
				end,
				byte(wasm.OpcodeNop),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Trap{Code: bytecode.TrapCodeUnreachableCodeReached},
			},
		},
		{
			name: "if with constant condition",
			ft:   v_v,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 0,
				byte(wasm.OpcodeIf), 0x40,
				byte(wasm.OpcodeUnreachable),
				end,
				end,
			},
			expected: []bytecode.Instruction{bytecode.Return{}},
		},
		{
			name: "if else",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeIf), i32,
				byte(wasm.OpcodeI32Const), 1,
				byte(wasm.OpcodeElse),
				byte(wasm.OpcodeI32Const), 2,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BranchIf{Code: bytecode.OpBranchIfEqz, Condition: 0, Offset: 22}, // 0
				bytecode.CopyImm32{Result: 1, Value: 1},                                   // 8
				bytecode.Branch{Offset: 14},                                                // 16
				bytecode.CopyImm32{Result: 1, Value: 2},                                   // 22
				bytecode.ReturnSlot{Value: 1},                                              // 30
			},
		},
		{
			name: "if fused with comparison",
			ft:   i32i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeI32LtS),
				byte(wasm.OpcodeIf), 0x40,
				byte(wasm.OpcodeNop),
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BranchCmpWide{Cmp: bytecode.CmpI32GeS, Lhs: 0, Rhs: 1, Offset: 11},
				bytecode.Return{},
			},
		},
		{
			name: "br_if carrying a value",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeBlock), i32,
				byte(wasm.OpcodeI32Const), 7,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeBrIf), 0,
				byte(wasm.OpcodeDrop),
				byte(wasm.OpcodeI32Const), 8,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BranchIf{Code: bytecode.OpBranchIfEqz, Condition: 0, Offset: 22}, // 0
				bytecode.CopyImm32{Result: 1, Value: 7},                                   // 8
				bytecode.Branch{Offset: 14},                                                // 16
				bytecode.CopyImm32{Result: 1, Value: 8},                                   // 22
				bytecode.ReturnSlot{Value: 1},                                              // 30
			},
		},
		{
			name: "br_table without copies",
			ft:   i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeBlock), 0x40,
				byte(wasm.OpcodeBlock), 0x40,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeBrTable), 2, 0, 1, 0,
				end,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BranchTable{Index: 0, Targets: bytecode.BranchOffsetList{18, 18, 18}},
				bytecode.Return{},
			},
		},
		{
			name: "br_table through stubs",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeBlock), i32,
				byte(wasm.OpcodeI32Const), 1,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeBrTable), 1, 0, 1,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.BranchTable{Index: 0, Targets: bytecode.BranchOffsetList{14, 28}}, // 0
				bytecode.CopyImm32{Result: 1, Value: 1},                                    // 14
				bytecode.Branch{Offset: 12},                                                 // 22
				bytecode.ReturnImm32{Value: 1},                                              // 28
				bytecode.ReturnSlot{Value: 1},                                               // 34
			},
		},
		{
			name: "local below if is preserved before the branch",
			ft:   i32i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeIf), 0x40,
				byte(wasm.OpcodeI32Const), 5,
				byte(wasm.OpcodeLocalSet), 0,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Copy{Result: 2, Value: 0},                                        // 0
				bytecode.BranchIf{Code: bytecode.OpBranchIfEqz, Condition: 1, Offset: 16}, // 6
				bytecode.CopyImm32{Result: 0, Value: 5},                                   // 14
				bytecode.ReturnSlot{Value: 2},                                              // 22
			},
		},
		{
			name: "local below block is preserved before br_if",
			ft:   i32i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeBlock), 0x40,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeBrIf), 0,
				byte(wasm.OpcodeI32Const), 5,
				byte(wasm.OpcodeLocalSet), 0,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Copy{Result: 2, Value: 0},                                        // 0
				bytecode.BranchIf{Code: bytecode.OpBranchIfNez, Condition: 1, Offset: 16}, // 6
				bytecode.CopyImm32{Result: 0, Value: 5},                                   // 14
				bytecode.ReturnSlot{Value: 2},                                              // 22
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			cf := translate(t, DefaultConfig(), singleFunc(tc.ft), tc.body)
			require.Equal(t, tc.expected, instructions(t, cf))
			require.False(t, cf.Metered)
		})
	}
}

// TestTranslate_FusedLoopBranch translates a loop whose body only compares two params and
// branches back to its header.
func TestTranslate_FusedLoopBranch(t *testing.T) {
	body := []byte{0x00,
		byte(wasm.OpcodeLoop), 0x40,
		byte(wasm.OpcodeLocalGet), 0,
		byte(wasm.OpcodeLocalGet), 1,
		byte(wasm.OpcodeI32LtS),
		byte(wasm.OpcodeBrIf), 0,
		end,
		end,
	}

	t.Run("unmetered", func(t *testing.T) {
		cf := translate(t, DefaultConfig(), singleFunc(i32i32_v), body)
		// The loop header is at 0 and so is the fused branch: the offset must not be
		// relative to where the comparison would have been.
		require.Equal(t, []bytecode.Instruction{
			bytecode.BranchCmp{Cmp: bytecode.CmpI32LtS, Lhs: 0, Rhs: 1, Offset: 0},
			bytecode.Return{},
		}, instructions(t, cf))
	})

	t.Run("metered", func(t *testing.T) {
		cf := translate(t, meteredConfig(), singleFunc(i32i32_v), body)
		require.Equal(t, []bytecode.Instruction{
			bytecode.ConsumeFuel{Fuel: 1}, // 0
			bytecode.ConsumeFuel{Fuel: 5}, // 10: loop header
			bytecode.BranchCmp{Cmp: bytecode.CmpI32LtS, Lhs: 0, Rhs: 1, Offset: -10},
			bytecode.Return{},
		}, instructions(t, cf))
		require.True(t, cf.Metered)
	})
}

func TestTranslate_ForwardBranch(t *testing.T) {
	branchLen := bytecode.EncodedLen(bytecode.BranchIf{})
	globalGetLen := bytecode.EncodedLen(bytecode.GlobalGet{})

	tests := []struct {
		name      string
		condition []byte
		expected  bytecode.Instruction
	}{
		{
			name:      "local condition",
			condition: []byte{byte(wasm.OpcodeLocalGet), 0},
			expected: bytecode.BranchIf{
				Code: bytecode.OpBranchIfNez, Condition: 0, Offset: bytecode.BranchOffset(branchLen + globalGetLen),
			},
		},
		{
			name:      "staged eqz condition",
			condition: []byte{byte(wasm.OpcodeLocalGet), 0, byte(wasm.OpcodeI32Eqz)},
			expected: bytecode.BranchIf{
				Code: bytecode.OpBranchIfEqz, Condition: 0, Offset: bytecode.BranchOffset(branchLen + globalGetLen),
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			body := []byte{0x00, byte(wasm.OpcodeBlock), 0x40}
			body = append(body, tc.condition...)
			body = append(body,
				byte(wasm.OpcodeBrIf), 0,
				byte(wasm.OpcodeGlobalGet), 0,
				byte(wasm.OpcodeDrop),
				end,
				end,
			)
			cf := translate(t, DefaultConfig(), singleFunc(i32_v), body)
			require.Equal(t, []bytecode.Instruction{
				tc.expected,
				bytecode.GlobalGet{Result: 1, Global: 0},
				bytecode.Return{},
			}, instructions(t, cf))
		})
	}
}

func TestTranslate_Metering(t *testing.T) {
	body := []byte{0x00, byte(wasm.OpcodeNop), byte(wasm.OpcodeNop), byte(wasm.OpcodeNop), end}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{v_v},
		FunctionSection: []wasm.Index{0, 0},
		CodeSection:     [][]byte{body, body},
	}
	tr := New(meteredConfig(), m)

	var results []*CompiledFunc
	for i := range m.CodeSection {
		cf, err := tr.Translate(m.DefinedFunctionIndex(i), m.CodeSection[i])
		require.NoError(t, err)
		results = append(results, cf)
	}
	for _, cf := range results {
		// Three nops plus the entry cost of the function region.
		require.Equal(t, []bytecode.Instruction{
			bytecode.ConsumeFuel{Fuel: 4},
			bytecode.Return{},
		}, instructions(t, cf))
	}
	require.Equal(t, results[0].Code, results[1].Code)
}

func TestTranslate_MeteringCosts(t *testing.T) {
	cfg := meteredConfig()
	cfg.FuelCosts = FuelCosts{Base: 1, Load: 5, Store: 7, Call: 11, Instance: 13}
	body := []byte{0x00,
		byte(wasm.OpcodeLocalGet), 0,
		byte(wasm.OpcodeI32Load), 0x02, 0x00,
		byte(wasm.OpcodeGlobalSet), 0,
		end,
	}
	cf := translate(t, cfg, singleFunc(i32_v), body)
	require.Equal(t, []bytecode.Instruction{
		bytecode.ConsumeFuel{Fuel: 1 + 1 + 5 + 13},
		bytecode.Load{Code: bytecode.OpI32Load, Result: 1, Ptr: 0},
		bytecode.GlobalSet{Value: 1, Global: 0},
		bytecode.Return{},
	}, instructions(t, cf))
}

func TestTranslate_MeteredIfElse(t *testing.T) {
	body := []byte{0x00,
		byte(wasm.OpcodeLocalGet), 0,
		byte(wasm.OpcodeIf), 0x40,
		byte(wasm.OpcodeNop),
		byte(wasm.OpcodeElse),
		byte(wasm.OpcodeNop),
		byte(wasm.OpcodeNop),
		end,
		end,
	}
	cf := translate(t, meteredConfig(), singleFunc(i32_v), body)
	require.Equal(t, []bytecode.Instruction{
		bytecode.ConsumeFuel{Fuel: 3},                                              // 0: entry, local.get, if
		bytecode.BranchIf{Code: bytecode.OpBranchIfEqz, Condition: 0, Offset: 24}, // 10
		bytecode.ConsumeFuel{Fuel: 2},                                              // 18: then
		bytecode.Branch{Offset: 16},                                                // 28
		bytecode.ConsumeFuel{Fuel: 3},                                              // 34: else
		bytecode.Return{},                                                          // 44
	}, instructions(t, cf))
}

func TestTranslate_MeteredCopies(t *testing.T) {
	tests := []struct {
		name     string
		ft       *wasm.FunctionType
		body     []byte
		expected []bytecode.Instruction
	}{
		{
			name: "local.set preserving an alias",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeI32Const), 1,
				byte(wasm.OpcodeLocalSet), 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ConsumeFuel{Fuel: 5}, // entry, local.get, i32.const, local.set, copy
				bytecode.Copy{Result: 1, Value: 0},
				bytecode.CopyImm32{Result: 0, Value: 1},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "if preserving an alias",
			ft:   i32i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeIf), 0x40,
				byte(wasm.OpcodeI32Const), 5,
				byte(wasm.OpcodeLocalSet), 0,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ConsumeFuel{Fuel: 5},                                              // 0: entry, two local.get, if, copy
				bytecode.Copy{Result: 2, Value: 0},                                        // 10
				bytecode.BranchIf{Code: bytecode.OpBranchIfEqz, Condition: 1, Offset: 26}, // 16
				bytecode.ConsumeFuel{Fuel: 3},                                              // 24: then
				bytecode.CopyImm32{Result: 0, Value: 5},                                   // 34
				bytecode.ReturnSlot{Value: 2},                                              // 42
			},
		},
		{
			name: "br_if copying its value",
			ft:   i32_i32,
			body: []byte{0x00,
				byte(wasm.OpcodeBlock), i32,
				byte(wasm.OpcodeI32Const), 7,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeBrIf), 0,
				byte(wasm.OpcodeDrop),
				byte(wasm.OpcodeI32Const), 8,
				end,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ConsumeFuel{Fuel: 7},                                              // 0: five operators, entry and one branch copy
				bytecode.BranchIf{Code: bytecode.OpBranchIfEqz, Condition: 0, Offset: 22}, // 10
				bytecode.CopyImm32{Result: 1, Value: 7},                                   // 18
				bytecode.Branch{Offset: 14},                                                // 26
				bytecode.CopyImm32{Result: 1, Value: 8},                                   // 32
				bytecode.ReturnSlot{Value: 1},                                              // 40
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			cf := translate(t, meteredConfig(), singleFunc(tc.ft), tc.body)
			require.Equal(t, tc.expected, instructions(t, cf))
		})
	}
}

func TestTranslate_Calls(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{i32_i32},
		FunctionSection: []wasm.Index{0, 0},
		HandleBase:      100,
	}

	t.Run("deduplicated callees", func(t *testing.T) {
		body := []byte{0x00,
			byte(wasm.OpcodeLocalGet), 0,
			byte(wasm.OpcodeCall), 1,
			byte(wasm.OpcodeCall), 1,
			end,
		}
		cf := translate(t, DefaultConfig(), m, body)
		require.Equal(t, []bytecode.Instruction{
			bytecode.Call{Results: 1, Func: 0, Params: bytecode.SlotList{0}},
			bytecode.Call{Results: 1, Func: 0, Params: bytecode.SlotList{1}},
			bytecode.ReturnSlot{Value: 1},
		}, instructions(t, cf))
		require.Equal(t, []wasm.FunctionHandle{101}, cf.Funcs)
	})

	t.Run("locals preserved", func(t *testing.T) {
		body := []byte{0x00,
			byte(wasm.OpcodeLocalGet), 0,
			byte(wasm.OpcodeLocalGet), 0,
			byte(wasm.OpcodeCall), 0,
			byte(wasm.OpcodeDrop),
			end,
		}
		cf := translate(t, DefaultConfig(), m, body)
		require.Equal(t, []bytecode.Instruction{
			bytecode.Copy{Result: 1, Value: 0},
			bytecode.Call{Results: 2, Func: 0, Params: bytecode.SlotList{0}},
			bytecode.ReturnSlot{Value: 1},
		}, instructions(t, cf))
		require.Equal(t, []wasm.FunctionHandle{100}, cf.Funcs)
	})
}

func TestTranslate_TailCalls(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{i32_i32},
		FunctionSection: []wasm.Index{0, 0},
		HandleBase:      100,
	}

	t.Run("return_call", func(t *testing.T) {
		body := []byte{0x00,
			byte(wasm.OpcodeLocalGet), 0,
			byte(wasm.OpcodeI32Const), 7,
			byte(wasm.OpcodeReturnCall), 1,
			byte(wasm.OpcodeDrop),
			end,
		}
		cf := translate(t, DefaultConfig(), m, body)
		require.Equal(t, []bytecode.Instruction{
			bytecode.CopyImm32{Result: 2, Value: 7},
			bytecode.ReturnCall{Func: 0, Params: bytecode.SlotList{2}},
		}, instructions(t, cf))
		require.Equal(t, []wasm.FunctionHandle{101}, cf.Funcs)
	})

	t.Run("return_call_indirect", func(t *testing.T) {
		body := []byte{0x00,
			byte(wasm.OpcodeLocalGet), 0,
			byte(wasm.OpcodeLocalGet), 0,
			byte(wasm.OpcodeReturnCallIndirect), 0, 0,
			end,
		}
		cf := translate(t, DefaultConfig(), m, body)
		require.Equal(t, []bytecode.Instruction{
			bytecode.ReturnCallIndirect{Index: 0, Type: 0, Table: 0, Params: bytecode.SlotList{0}},
		}, instructions(t, cf))
		require.Nil(t, cf.Funcs)
	})
}

func TestTranslate_BulkAndTables(t *testing.T) {
	funcref, externref := wasm.ValueTypeFuncref, wasm.ValueTypeExternref
	misc := byte(wasm.OpcodeMiscPrefix)

	tests := []struct {
		name     string
		ft       *wasm.FunctionType
		body     []byte
		expected []bytecode.Instruction
	}{
		{
			name: "memory.fill",
			ft:   i32i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeI32Const), 16,
				misc, byte(wasm.OpcodeMemoryFill & 0xff), 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.CopyImm32{Result: 4, Value: 16},
				bytecode.MemoryFill{Dst: 0, Value: 1, Len: 4},
				bytecode.Return{},
			},
		},
		{
			name: "memory.copy",
			ft:   &wasm.FunctionType{Params: []wasm.ValueType{i32, i32, i32}},
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeLocalGet), 2,
				misc, byte(wasm.OpcodeMemoryCopy & 0xff), 0, 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.MemoryCopy{Dst: 0, Src: 1, Len: 2},
				bytecode.Return{},
			},
		},
		{
			name: "memory.init",
			ft:   i32i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeI32Const), 4,
				misc, byte(wasm.OpcodeMemoryInit & 0xff), 1, 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.CopyImm32{Result: 4, Value: 4},
				bytecode.MemoryInit{Dst: 0, Src: 1, Len: 4, Memory: 0, Data: 1},
				bytecode.Return{},
			},
		},
		{
			name: "data.drop and elem.drop",
			ft:   v_v,
			body: []byte{0x00,
				misc, byte(wasm.OpcodeDataDrop & 0xff), 2,
				misc, byte(wasm.OpcodeElemDrop & 0xff), 3,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.DataDrop{Data: 2},
				bytecode.ElemDrop{Elem: 3},
				bytecode.Return{},
			},
		},
		{
			name: "table.get",
			ft:   &wasm.FunctionType{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{externref}},
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeTableGet), 1,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.TableGet{Result: 1, Index: 0, Table: 1},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "table.set of a null reference",
			ft:   i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeRefNull), funcref,
				byte(wasm.OpcodeTableSet), 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.CopyImm64{Result: 2, Value: 0},
				bytecode.TableSet{Index: 0, Value: 2, Table: 0},
				bytecode.Return{},
			},
		},
		{
			name: "table.size and table.grow",
			ft:   &wasm.FunctionType{Results: []wasm.ValueType{i32}},
			body: []byte{0x00,
				byte(wasm.OpcodeRefNull), externref,
				misc, byte(wasm.OpcodeTableSize & 0xff), 1,
				misc, byte(wasm.OpcodeTableGrow & 0xff), 1,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.TableSize{Result: 1, Table: 1},
				bytecode.CopyImm64{Result: 0, Value: 0},
				bytecode.TableGrow{Result: 0, Delta: 1, Init: 0, Table: 1},
				bytecode.ReturnSlot{Value: 0},
			},
		},
		{
			name: "table.fill with ref.func",
			ft:   i32i32_v,
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeRefFunc), 0,
				byte(wasm.OpcodeLocalGet), 1,
				misc, byte(wasm.OpcodeTableFill & 0xff), 0,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.RefFunc{Result: 3, Func: 0},
				bytecode.TableFill{Dst: 0, Value: 3, Len: 1, Table: 0},
				bytecode.Return{},
			},
		},
		{
			name: "table.copy",
			ft:   v_v,
			body: []byte{0x00,
				byte(wasm.OpcodeI32Const), 1,
				byte(wasm.OpcodeI32Const), 2,
				byte(wasm.OpcodeI32Const), 3,
				misc, byte(wasm.OpcodeTableCopy & 0xff), 0, 1,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.CopyImm32{Result: 0, Value: 1},
				bytecode.CopyImm32{Result: 1, Value: 2},
				bytecode.CopyImm32{Result: 2, Value: 3},
				bytecode.TableCopy{Dst: 0, Src: 1, Len: 2, DstTable: 0, SrcTable: 1},
				bytecode.Return{},
			},
		},
		{
			name: "table.init",
			ft:   &wasm.FunctionType{Params: []wasm.ValueType{i32, i32, i32}},
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeLocalGet), 2,
				misc, byte(wasm.OpcodeTableInit & 0xff), 5, 1,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.TableInit{Dst: 0, Src: 1, Len: 2, Table: 1, Elem: 5},
				bytecode.Return{},
			},
		},
		{
			name: "ref.is_null of a constant",
			ft:   &wasm.FunctionType{Results: []wasm.ValueType{i32}},
			body: []byte{0x00,
				byte(wasm.OpcodeRefNull), funcref,
				byte(wasm.OpcodeRefIsNull),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.ReturnImm32{Value: 1},
			},
		},
		{
			name: "ref.is_null of a param",
			ft:   &wasm.FunctionType{Params: []wasm.ValueType{externref}, Results: []wasm.ValueType{i32}},
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeRefIsNull),
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Unary{Code: bytecode.OpRefIsNull, Result: 1, Input: 0},
				bytecode.ReturnSlot{Value: 1},
			},
		},
		{
			name: "typed select",
			ft:   &wasm.FunctionType{Params: []wasm.ValueType{funcref, funcref, i32}, Results: []wasm.ValueType{funcref}},
			body: []byte{0x00,
				byte(wasm.OpcodeLocalGet), 0,
				byte(wasm.OpcodeLocalGet), 1,
				byte(wasm.OpcodeLocalGet), 2,
				byte(wasm.OpcodeTypedSelect), 1, funcref,
				end,
			},
			expected: []bytecode.Instruction{
				bytecode.Select{Result: 3, Condition: 2, Lhs: 0, Rhs: 1},
				bytecode.ReturnSlot{Value: 3},
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			m := singleFunc(tc.ft)
			m.TableTypes = []wasm.ValueType{funcref, externref}
			cf := translate(t, DefaultConfig(), m, tc.body)
			require.Equal(t, tc.expected, instructions(t, cf))
		})
	}
}

func TestTranslate_Cells(t *testing.T) {
	body := []byte{0x02, 0x01, wasm.ValueTypeV128, 0x01, i64,
		byte(wasm.OpcodeI32Const), 1,
		byte(wasm.OpcodeI32Const), 2,
		byte(wasm.OpcodeDrop),
		byte(wasm.OpcodeDrop),
		end,
	}
	cf := translate(t, DefaultConfig(), singleFunc(i32_v), body)
	require.Equal(t, uint16(4), cf.LocalCells)
	require.Equal(t, uint16(6), cf.MaxSlot)
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		ft          *wasm.FunctionType
		body        []byte
		expectedErr string
	}{
		{
			name:        "missing end",
			cfg:         DefaultConfig(),
			ft:          v_v,
			body:        []byte{0x00, byte(wasm.OpcodeNop)},
			expectedErr: "translate function[0] at offset 0x2: offset 0x2: unexpected end of function body",
		},
		{
			name:        "multi-value results disabled",
			cfg:         Config{Features: wasm.Features20191205},
			ft:          &wasm.FunctionType{Results: []wasm.ValueType{i32, i32}},
			body:        []byte{0x00, byte(wasm.OpcodeUnreachable), end},
			expectedErr: `translate function[0] at offset 0x1: feature "multi-value" is disabled`,
		},
		{
			name:        "multi-value block disabled",
			cfg:         Config{Features: wasm.Features20191205},
			ft:          v_v,
			body:        []byte{0x00, byte(wasm.OpcodeBlock), 0x01, byte(wasm.OpcodeDrop), end, end},
			expectedErr: `translate function[0] at offset 0x1: feature "multi-value" is disabled`,
		},
		{
			name:        "sign extension disabled",
			cfg:         Config{Features: wasm.Features20191205},
			ft:          i32_i32,
			body:        []byte{0x00, byte(wasm.OpcodeLocalGet), 0, byte(wasm.OpcodeI32Extend8S), end},
			expectedErr: `translate function[0] at offset 0x3: i32.extend8_s invalid as feature "sign-extension-ops" is disabled`,
		},
		{
			name:        "bulk memory disabled",
			cfg:         Config{Features: wasm.Features20191205},
			ft:          v_v,
			body:        []byte{0x00, byte(wasm.OpcodeMiscPrefix), byte(wasm.OpcodeDataDrop & 0xff), 0, end},
			expectedErr: `translate function[0] at offset 0x1: data.drop invalid as feature "bulk-memory-operations" is disabled`,
		},
		{
			name:        "reference types disabled",
			cfg:         Config{Features: wasm.Features20191205},
			ft:          v_v,
			body:        []byte{0x00, byte(wasm.OpcodeRefNull), wasm.ValueTypeFuncref, byte(wasm.OpcodeDrop), end},
			expectedErr: `translate function[0] at offset 0x1: ref.null invalid as feature "reference-types" is disabled`,
		},
		{
			name:        "tail calls disabled",
			cfg:         Config{Features: wasm.Features20191205},
			ft:          v_v,
			body:        []byte{0x00, byte(wasm.OpcodeReturnCall), 0, end},
			expectedErr: `translate function[0] at offset 0x1: return_call invalid as feature "tail-call" is disabled`,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			m := singleFunc(tc.ft)
			m.TypeSection = append(m.TypeSection, &wasm.FunctionType{Params: []wasm.ValueType{i32}})
			_, err := New(tc.cfg, m).Translate(0, tc.body)
			require.EqualError(t, err, tc.expectedErr)

			var terr *Error
			require.True(t, errors.As(err, &terr))
			require.Equal(t, uint32(0), terr.FuncIndex)
		})
	}
}

func TestTranslator_FinishWithoutEnd(t *testing.T) {
	tr := New(DefaultConfig(), singleFunc(v_v))
	tr.Reset(0)
	require.NoError(t, tr.VisitNop())
	_, err := tr.Finish()
	require.EqualError(t, err, "function body is missing its final end")
}

func TestTranslator_LocalsAfterFirstOperator(t *testing.T) {
	tr := New(DefaultConfig(), singleFunc(v_v))
	tr.Reset(0)
	require.NoError(t, tr.VisitNop())
	require.Error(t, tr.VisitLocals(1, i32))
}

func TestTranslator_TooManyLocals(t *testing.T) {
	tr := New(DefaultConfig(), singleFunc(v_v))
	tr.Reset(0)
	err := tr.VisitLocals(maxCells+1, i32)
	require.ErrorIs(t, err, ErrTooManyLocals)
}
