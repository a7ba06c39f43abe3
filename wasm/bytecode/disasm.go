package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a listing of code with one "pos: instruction" line per instruction.
// Branch offsets are followed by their absolute target.
func Disassemble(code []byte) (string, error) {
	var b strings.Builder
	d := NewDecoder(code)
	for d.More() {
		pos := d.Pos()
		instr, err := d.Decode()
		if err != nil {
			return b.String(), err
		}
		fmt.Fprintf(&b, "%4d: %s", pos, instr)
		if field, _, ok := OffsetField(instr); ok {
			if o, ok := OffsetAt(instr, field); ok {
				fmt.Fprintf(&b, " (-> %d)", pos+int(o))
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
