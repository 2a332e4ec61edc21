package compiler

import (
	"github.com/mna/copper/lang/token"
	"github.com/mna/copper/lang/types"
)

// Bytecode is the output of compiling a single translation unit: a flat
// stream of opcodes and their one-byte operands, the constant pool they
// index into, and a side table mapping instruction offsets back to source
// positions for diagnostics produced at run time.
type Bytecode struct {
	Code      []byte
	Constants []types.Value
	// locations maps the offset of an opcode byte to the source position
	// that emitted it. Not every offset is present; lookups fall back to
	// the nearest preceding entry.
	locations map[int]token.Pos
}

// NewBytecode returns an empty Bytecode ready for emission.
func NewBytecode() *Bytecode {
	return &Bytecode{locations: make(map[int]token.Pos)}
}

// emit appends op with no operand and records pos, returning op's offset.
func (b *Bytecode) emit(op Opcode, pos token.Pos) int {
	off := len(b.Code)
	b.Code = append(b.Code, byte(op))
	b.locations[off] = pos
	return off
}

// emitArg appends op followed by a single operand byte and records pos,
// returning op's offset.
func (b *Bytecode) emitArg(op Opcode, arg byte, pos token.Pos) int {
	off := len(b.Code)
	b.Code = append(b.Code, byte(op), arg)
	b.locations[off] = pos
	return off
}

// patchArg rewrites the operand byte of the instruction at off (which must
// have been emitted with emitArg) to arg.
func (b *Bytecode) patchArg(off int, arg byte) {
	b.Code[off+1] = arg
}

// here returns the offset the next emitted instruction will occupy.
func (b *Bytecode) here() int { return len(b.Code) }

// addConstant interns v in the constant pool and returns its index. Equal
// numbers and strings are deduplicated so repeated literals share a slot.
func (b *Bytecode) addConstant(v types.Value) byte {
	for i, c := range b.Constants {
		if sameConstant(c, v) {
			return byte(i)
		}
	}
	b.Constants = append(b.Constants, v)
	return byte(len(b.Constants) - 1)
}

func sameConstant(a, b types.Value) bool {
	switch av := a.(type) {
	case types.Number:
		bv, ok := b.(types.Number)
		return ok && av == bv
	case types.String:
		bv, ok := b.(types.String)
		return ok && av == bv
	case types.Boolean:
		bv, ok := b.(types.Boolean)
		return ok && av == bv
	default:
		return false
	}
}

// PosAt returns the source position associated with the instruction at or
// immediately before off.
func (b *Bytecode) PosAt(off int) token.Pos {
	for o := off; o >= 0; o-- {
		if p, ok := b.locations[o]; ok {
			return p
		}
	}
	return token.Pos(0)
}
