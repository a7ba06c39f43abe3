package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

func TestCompiledFunc_MarshalBinary(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{i32_i32},
		FunctionSection: []wasm.Index{0},
		HandleBase:      7,
	}
	body := []byte{0x00,
		byte(wasm.OpcodeLocalGet), 0,
		byte(wasm.OpcodeCall), 0,
		end,
	}
	cf := translate(t, meteredConfig(), m, body)

	data, err := cf.MarshalBinary()
	require.NoError(t, err)

	// Encoding is deterministic.
	again, err := cf.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, data, again)

	var decoded CompiledFunc
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, cf, &decoded)
	require.Equal(t, []wasm.FunctionHandle{7}, decoded.Funcs)
}

func TestCompiledFunc_UnmarshalBinary_InvalidCode(t *testing.T) {
	cf := &CompiledFunc{Code: []byte{0xff, 0xff}, MaxSlot: 1}
	data, err := cf.MarshalBinary()
	require.NoError(t, err)

	var decoded CompiledFunc
	err = decoded.UnmarshalBinary(data)
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "translator: unmarshal compiled function: "))

	require.Error(t, decoded.UnmarshalBinary([]byte{0xff}))
}

func TestCompiledFunc_Disassemble(t *testing.T) {
	cf := translate(t, DefaultConfig(), singleFunc(i32_i32), []byte{0x00,
		byte(wasm.OpcodeLocalGet), 0,
		byte(wasm.OpcodeI32Const), 1,
		byte(wasm.OpcodeI32Add),
		end,
	})
	text, err := cf.Disassemble()
	require.NoError(t, err)
	require.Contains(t, text, bytecode.BinaryImm16{Code: bytecode.OpI32AddImm16, Result: 1, Lhs: 0, Rhs: 1}.String())
	require.Contains(t, text, bytecode.ReturnSlot{Value: 1}.String())
}
