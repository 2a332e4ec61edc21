package types

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrType is returned, wrapped with a descriptive message, whenever an
// operator is applied to operand types it does not support.
var ErrType = errors.New("type error")

// Add implements the + operator: numeric addition when both operands are
// numbers, string concatenation as soon as either operand is a string
// (the other is rendered with String()), matching the reference
// implementation's permissive mixed-type concatenation.
func Add(x, y Value) (Value, error) {
	xn, xIsNum := x.(Number)
	yn, yIsNum := y.(Number)
	if xIsNum && yIsNum {
		return xn + yn, nil
	}
	if _, ok := x.(String); ok {
		return String(x.String() + y.String()), nil
	}
	if _, ok := y.(String); ok {
		return String(x.String() + y.String()), nil
	}
	return nil, errors.Wrapf(ErrType, "Invalid operand types for operator +: %s and %s", x.Type(), y.Type())
}

func arith(name string, op func(a, b float64) float64) func(x, y Value) (Value, error) {
	return func(x, y Value) (Value, error) {
		xn, ok1 := x.(Number)
		yn, ok2 := y.(Number)
		if !ok1 || !ok2 {
			return nil, errors.Wrapf(ErrType, "cannot %s %s and %s", name, x.Type(), y.Type())
		}
		return Number(op(float64(xn), float64(yn))), nil
	}
}

var (
	Sub = arith("subtract", func(a, b float64) float64 { return a - b })
	Mul = arith("multiply", func(a, b float64) float64 { return a * b })
	Div = arith("divide", func(a, b float64) float64 { return a / b })
	Mod = arith("take the modulo of", math.Mod)
	Exp = arith("exponentiate", math.Pow)
)

// Neg implements unary minus.
func Neg(x Value) (Value, error) {
	xn, ok := x.(Number)
	if !ok {
		return nil, errors.Wrapf(ErrType, "cannot negate %s", x.Type())
	}
	return -xn, nil
}

// Not implements the ! operator, which coerces its operand through Truth.
func Not(x Value) Value {
	return Boolean(!x.Truth())
}

// Compare implements the relational operators <, <=, >, >=, restricted to
// numbers: the reference implementation's BINARY_OP comparison macro
// requires both operands to be NUMBER and errors otherwise, so unlike Add
// there is no string-ordering extension here.
func Compare(op string, x, y Value) (Value, error) {
	xn, xOk := x.(Number)
	yn, yOk := y.(Number)
	if !xOk || !yOk {
		return nil, errors.Wrapf(ErrType, "cannot compare %s and %s", x.Type(), y.Type())
	}
	return Boolean(compareOrdered(op, float64(xn), float64(yn))), nil
}

func compareOrdered[T int | float64 | string](op string, a, b T) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	default:
		panic(fmt.Sprintf("unknown comparison operator %q", op))
	}
}

// Equal implements == and !=. Values of different dynamic types are never
// equal, except that a number and a string never coerce to compare equal
// (no implicit coercion, unlike JavaScript's ==).
func Equal(x, y Value) bool {
	switch xv := x.(type) {
	case Null:
		_, ok := y.(Null)
		return ok
	case Undefined:
		_, ok := y.(Undefined)
		return ok
	case Boolean:
		yv, ok := y.(Boolean)
		return ok && xv == yv
	case Number:
		yv, ok := y.(Number)
		return ok && xv == yv
	case String:
		yv, ok := y.(String)
		return ok && xv == yv
	case *Array:
		yv, ok := y.(*Array)
		return ok && xv == yv
	default:
		return false
	}
}
