// Package machine implements Copper's stack-based bytecode virtual
// machine: a fetch-decode-execute loop over the fixed one-byte-operand
// instruction set produced by lang/compiler.
package machine

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mna/copper/internal/diag"
	"github.com/mna/copper/lang/compiler"
	"github.com/mna/copper/lang/types"
)

const globalBit = 0x80

// Machine executes Bytecode programs. A single Machine is reused across
// successive REPL turns: its globals vector grows as new top-level
// variables are declared but is never reset, so state persists the way a
// long-running interactive session expects. It holds no goroutines or
// concurrency of its own; the name avoids implying otherwise.
type Machine struct {
	// Stdout receives the output of print statements. Defaults to os.Stdout.
	Stdout io.Writer

	// MaxSteps caps the number of instructions a single Run executes before
	// it is aborted, as a safety net against runaway loops. A value <= 0
	// means no limit.
	MaxSteps int

	path    string
	globals []types.Value
	stdout  io.Writer
}

// New returns a Machine with an empty globals vector, ready to run
// successive Bytecode programs compiled against the same
// compiler.LexicalEnvironment.
func New() *Machine {
	return &Machine{}
}

func (m *Machine) init() {
	if m.Stdout != nil {
		m.stdout = m.Stdout
	} else {
		m.stdout = os.Stdout
	}
}

// Run executes bc start to finish against a fresh value stack, reporting
// diagnostics against path and growing the machine's persistent globals
// vector as needed.
func (m *Machine) Run(path string, bc *compiler.Bytecode) error {
	m.init()
	m.path = path

	var stack []types.Value
	steps := 0
	code := bc.Code

	push := func(v types.Value) { stack = append(stack, v) }
	pop := func() types.Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	pc := 0
	for pc < len(code) {
		if m.MaxSteps > 0 {
			steps++
			if steps > m.MaxSteps {
				return m.runtimeErrorAt(bc, pc, "exceeded maximum step count (%d)", m.MaxSteps)
			}
		}

		opStart := pc
		op := compiler.Opcode(code[pc])
		pc++
		var arg byte
		if op.HasOperand() {
			arg = code[pc]
			pc++
		}

		switch op {
		case compiler.LDC:
			push(bc.Constants[arg])

		case compiler.POP:
			pop()

		case compiler.POPN:
			n := int(arg)
			stack = stack[:len(stack)-n]

		case compiler.LDVAR:
			if arg&globalBit != 0 {
				idx := int(arg &^ globalBit)
				push(m.global(idx))
			} else {
				push(stack[arg])
			}

		case compiler.SETVAR:
			v := stack[len(stack)-1]
			if arg&globalBit != 0 {
				idx := int(arg &^ globalBit)
				m.setGlobal(idx, v)
			} else {
				stack[arg] = v
			}

		case compiler.NEWARR:
			n := int(arg)
			elems := make([]types.Value, n)
			copy(elems, stack[len(stack)-n:])
			stack = stack[:len(stack)-n]
			push(types.NewArrayFrom(elems))

		case compiler.LDPROP:
			key := pop()
			arr := pop()
			v, err := index(arr, key)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.SETPROP:
			val := pop()
			key := pop()
			arr := pop()
			if err := setIndex(arr, key, val); err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(val)

		case compiler.JMP:
			pc = int(arg)

		case compiler.JNT:
			v := pop()
			if !v.Truth() {
				pc = int(arg)
			}

		case compiler.ADD:
			y, x := pop(), pop()
			v, err := types.Add(x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.SUB:
			y, x := pop(), pop()
			v, err := types.Sub(x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.MUL:
			y, x := pop(), pop()
			v, err := types.Mul(x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.DIV:
			y, x := pop(), pop()
			v, err := types.Div(x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.MOD:
			y, x := pop(), pop()
			v, err := types.Mod(x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.EXP:
			y, x := pop(), pop()
			v, err := types.Exp(x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.NEG:
			x := pop()
			v, err := types.Neg(x)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.INCR:
			x := pop()
			n, ok := x.(types.Number)
			if !ok {
				return m.runtimeErrorAt(bc, opStart, "cannot increment a %s", x.Type())
			}
			push(n + 1)

		case compiler.DECR:
			x := pop()
			n, ok := x.(types.Number)
			if !ok {
				return m.runtimeErrorAt(bc, opStart, "cannot decrement a %s", x.Type())
			}
			push(n - 1)

		case compiler.GRT:
			y, x := pop(), pop()
			v, err := types.Compare(">", x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.LST:
			y, x := pop(), pop()
			v, err := types.Compare("<", x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.GRE:
			y, x := pop(), pop()
			v, err := types.Compare(">=", x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.LSE:
			y, x := pop(), pop()
			v, err := types.Compare("<=", x, y)
			if err != nil {
				return m.runtimeErrorAt(bc, opStart, "%s", err)
			}
			push(v)

		case compiler.EQU:
			y, x := pop(), pop()
			push(types.Boolean(types.Equal(x, y)))

		case compiler.NEQ:
			y, x := pop(), pop()
			push(types.Boolean(!types.Equal(x, y)))

		case compiler.AND:
			y, x := pop(), pop()
			push(types.Boolean(x.Truth() && y.Truth()))

		case compiler.OR:
			y, x := pop(), pop()
			push(types.Boolean(x.Truth() || y.Truth()))

		case compiler.NOT:
			x := pop()
			push(types.Not(x))

		case compiler.PRINT:
			x := pop()
			fmt.Fprintln(m.stdout, x.String())

		case compiler.RET:
			return nil

		default:
			return m.runtimeErrorAt(bc, opStart, "unknown opcode %d", op)
		}
	}
	return nil
}

func (m *Machine) global(idx int) types.Value {
	if idx >= len(m.globals) || m.globals[idx] == nil {
		return types.Undefined{}
	}
	return m.globals[idx]
}

func (m *Machine) setGlobal(idx int, v types.Value) {
	if idx >= len(m.globals) {
		grown := make([]types.Value, idx+1)
		copy(grown, m.globals)
		m.globals = grown
	}
	m.globals[idx] = v
}

// index resolves arr[key] the way the reference implementation's
// ArrayObject::operator[] does: a Number indexes elems directly; a String
// that parses as a number (via strconv.ParseFloat, mirroring std::stod)
// also indexes elems, falling back to the property map only when the
// parse fails; a one-element Array key unwraps and recurses on its sole
// element (so a[[1]] === a[1]), and a multi-element Array key falls back
// to the property map keyed by its String() rendering.
func index(arr, key types.Value) (types.Value, error) {
	a, ok := arr.(*types.Array)
	if !ok {
		return nil, fmt.Errorf("cannot index into a %s", arr.Type())
	}
	switch k := key.(type) {
	case types.Number:
		return a.GetIndex(int(k)), nil
	case types.String:
		if n, err := strconv.ParseFloat(string(k), 64); err == nil {
			return a.GetIndex(int(n)), nil
		}
		return a.GetProp(string(k)), nil
	case *types.Array:
		if k.Len() == 1 {
			return index(arr, k.GetIndex(0))
		}
		return a.GetProp(k.String()), nil
	default:
		return nil, fmt.Errorf("cannot use a %s as an array index", key.Type())
	}
}

func setIndex(arr, key, val types.Value) error {
	a, ok := arr.(*types.Array)
	if !ok {
		return fmt.Errorf("cannot index into a %s", arr.Type())
	}
	switch k := key.(type) {
	case types.Number:
		a.SetIndex(int(k), val)
		return nil
	case types.String:
		if n, err := strconv.ParseFloat(string(k), 64); err == nil {
			a.SetIndex(int(n), val)
			return nil
		}
		a.SetProp(string(k), val)
		return nil
	case *types.Array:
		if k.Len() == 1 {
			return setIndex(arr, k.GetIndex(0), val)
		}
		a.SetProp(k.String(), val)
		return nil
	default:
		return fmt.Errorf("cannot use a %s as an array index", key.Type())
	}
}

func (m *Machine) runtimeErrorAt(bc *compiler.Bytecode, offset int, format string, args ...interface{}) error {
	pos := bc.PosAt(offset)
	return &diag.Error{
		Path:    m.path,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	}
}
