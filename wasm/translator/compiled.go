package translator

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wasmi-labs/wasmi-sub007/wasm"
	"github.com/wasmi-labs/wasmi-sub007/wasm/bytecode"
)

// CompiledFunc is the translation of one function body.
type CompiledFunc struct {
	// Code is the encoded instruction stream.
	Code []byte
	// Funcs maps the function operands of Call instructions to engine-wide handles.
	Funcs []wasm.FunctionHandle
	// MaxSlot is the number of cells the function needs, locals included.
	MaxSlot uint16
	// LocalCells is the number of cells holding parameters and locals.
	LocalCells uint16
	// Metered is true if Code contains ConsumeFuel instructions.
	Metered bool
}

// compiledFuncWire is the serialized form of CompiledFunc. It has no methods so that the
// CBOR encoder does not call back into CompiledFunc.MarshalBinary.
type compiledFuncWire struct {
	Code       []byte                `cbor:"1,keyasint"`
	Funcs      []wasm.FunctionHandle `cbor:"2,keyasint,omitempty"`
	MaxSlot    uint16                `cbor:"3,keyasint"`
	LocalCells uint16                `cbor:"4,keyasint"`
	Metered    bool                  `cbor:"5,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("translator: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalBinary implements encoding.BinaryMarshaler using deterministic CBOR.
func (c *CompiledFunc) MarshalBinary() ([]byte, error) {
	return cborEncMode.Marshal((*compiledFuncWire)(c))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The code is validated with the checked decoder.
func (c *CompiledFunc) UnmarshalBinary(data []byte) error {
	var w compiledFuncWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("translator: unmarshal compiled function: %w", err)
	}
	if _, err := bytecode.DecodeAll(w.Code); err != nil {
		return fmt.Errorf("translator: unmarshal compiled function: %w", err)
	}
	*c = CompiledFunc(w)
	return nil
}

// Disassemble returns a listing of the code.
func (c *CompiledFunc) Disassemble() (string, error) {
	return bytecode.Disassemble(c.Code)
}

// Instructions decodes the code.
func (c *CompiledFunc) Instructions() ([]bytecode.Instruction, error) {
	return bytecode.DecodeAll(c.Code)
}
