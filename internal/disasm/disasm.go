// Package disasm renders a compiled Bytecode program as a human-readable
// instruction listing, the optional disassembler view printed by the
// copper tool's --dis flag and used by tests that want to assert on
// emitted code shape without matching byte-for-byte.
package disasm

import (
	"fmt"
	"io"

	"github.com/mna/copper/lang/compiler"
)

// Write renders bc to w, one instruction per line, in the form:
//
//	0000 LDC     0 ; 1
//	0002 SETVAR  128
//	0004 POP
//
// The optional trailing comment after ';' shows the constant a LDC
// instruction addresses, to keep the listing readable without cross
// referencing the constants section by hand.
func Write(w io.Writer, bc *compiler.Bytecode) error {
	code := bc.Code
	for pc := 0; pc < len(code); {
		op := compiler.Opcode(code[pc])
		start := pc
		pc++
		if op.HasOperand() {
			arg := code[pc]
			pc++
			if _, err := fmt.Fprintf(w, "%04d %-8s%d%s\n", start, op, arg, constComment(bc, op, arg)); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%04d %s\n", start, op); err != nil {
			return err
		}
	}
	return nil
}

func constComment(bc *compiler.Bytecode, op compiler.Opcode, arg byte) string {
	if op != compiler.LDC || int(arg) >= len(bc.Constants) {
		return ""
	}
	return fmt.Sprintf(" ; %s", bc.Constants[arg].String())
}
