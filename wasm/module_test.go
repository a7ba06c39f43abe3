package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModule_FunctionIndexSpace(t *testing.T) {
	i32, i64 := ValueTypeI32, ValueTypeI64
	v_v := &FunctionType{}
	i32_i64 := &FunctionType{Params: []ValueType{i32}, Results: []ValueType{i64}}

	m := &Module{
		TypeSection:           []*FunctionType{v_v, i32_i64},
		ImportFunctionSection: []Index{1},
		FunctionSection:       []Index{0, 1},
		GlobalTypes:           []ValueType{i64, i32},
		TableTypes:            []ValueType{ValueTypeFuncref, ValueTypeExternref},
		CodeSection:           [][]byte{{0x00, 0x0b}, {0x00, 0x0b}},
		HandleBase:            100,
	}

	require.Equal(t, Index(1), m.ImportFuncCount())
	require.Equal(t, Index(1), m.DefinedFunctionIndex(0))
	require.Equal(t, Index(2), m.DefinedFunctionIndex(1))

	// Imported functions come first.
	require.Equal(t, i32_i64, m.FunctionType(0))
	require.Equal(t, v_v, m.FunctionType(1))
	require.Equal(t, i32_i64, m.FunctionType(2))

	require.Equal(t, i32_i64, m.TypeAt(1))
	require.Equal(t, i32, m.GlobalType(1))
	require.Equal(t, ValueTypeExternref, m.TableType(1))
	require.Equal(t, FunctionHandle(100), m.FunctionHandle(0))
	require.Equal(t, FunctionHandle(102), m.FunctionHandle(2))
}

func TestFunctionType_String(t *testing.T) {
	tests := []struct {
		functype *FunctionType
		exp      string
	}{
		{functype: &FunctionType{}, exp: "() -> ()"},
		{functype: &FunctionType{Params: []ValueType{ValueTypeI32}}, exp: "(i32) -> ()"},
		{functype: &FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeF64}}, exp: "(i32, f64) -> ()"},
		{functype: &FunctionType{Results: []ValueType{ValueTypeV128}}, exp: "() -> (v128)"},
		{
			functype: &FunctionType{Params: []ValueType{ValueTypeI64}, Results: []ValueType{ValueTypeF32, ValueTypeExternref}},
			exp:      "(i64) -> (f32, externref)",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.functype.String(), func(t *testing.T) {
			require.Equal(t, tc.exp, tc.functype.String())
		})
	}
}

func TestBlockType(t *testing.T) {
	require.Equal(t, "() -> ()", BlockTypeEmpty.String())
	require.Equal(t, BlockType{Results: []ValueType{ValueTypeF32}}, BlockTypeOf(ValueTypeF32))

	ft := &FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI64, ValueTypeI64}}
	bt := BlockTypeFromFunctionType(ft)
	require.Equal(t, ft.Params, bt.Params)
	require.Equal(t, ft.Results, bt.Results)
	require.Equal(t, "(i32) -> (i64, i64)", bt.String())
}

func TestValueTypeName(t *testing.T) {
	require.Equal(t, "i32", ValueTypeName(ValueTypeI32))
	require.Equal(t, "funcref", ValueTypeName(ValueTypeFuncref))
	require.Equal(t, "unknown", ValueTypeName(0x40))
}

func TestValueTypeCells(t *testing.T) {
	for _, vt := range []ValueType{ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeFuncref, ValueTypeExternref} {
		require.Equal(t, uint32(1), ValueTypeCells(vt), ValueTypeName(vt))
	}
	require.Equal(t, uint32(2), ValueTypeCells(ValueTypeV128))
}

func TestMemArg_String(t *testing.T) {
	require.Equal(t, "mem0 offset=8 align=2", MemArg{Align: 2, Offset: 8}.String())
}

func TestOpcodeName(t *testing.T) {
	require.Equal(t, "i32.add", OpcodeName(OpcodeI32Add))
	require.Equal(t, "local.get", OpcodeName(OpcodeLocalGet))
	require.Equal(t, "i64.trunc_sat_f64_u", OpcodeName(OpcodeI64TruncSatF64U))
	require.Equal(t, "0xff", OpcodeName(0xff))

	require.True(t, IsMiscOpcode(OpcodeI32TruncSatF32S))
	require.False(t, IsMiscOpcode(OpcodeI32Add))
}
