// Package types defines the runtime value model of the Copper language: the
// tagged-variant Value interface and its concrete implementations.
package types

import "fmt"

// Value is implemented by every runtime value a Copper program can produce
// or manipulate. Values are shared by reference through Go's own garbage
// collector; there is no refcounting or explicit Freeze step.
type Value interface {
	// String renders the value the way the print statement and template
	// interpolation do.
	String() string
	// Type names the dynamic type, as shown in runtime type-error messages.
	Type() string
	// Truth reports the value's boolean coercion, used by if/while/for
	// conditions and the logical operators.
	Truth() bool
}

// Null is the singleton value denoted by the null literal.
type Null struct{}

func (Null) String() string { return "null" }
func (Null) Type() string   { return "null" }
func (Null) Truth() bool    { return false }

// Undefined is the singleton value denoted by the undefined literal, and
// the value read back from an array slot that was never assigned.
type Undefined struct{}

func (Undefined) String() string { return "undefined" }
func (Undefined) Type() string   { return "undefined" }
func (Undefined) Truth() bool    { return false }

// Boolean is a true/false value.
type Boolean bool

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Boolean) Type() string { return "boolean" }
func (b Boolean) Truth() bool { return bool(b) }

// Number is Copper's single numeric type, an IEEE-754 double precision
// float, matching the reference implementation's Value model.
type Number float64

func (n Number) String() string { return formatNumber(float64(n)) }
func (Number) Type() string     { return "number" }
func (n Number) Truth() bool    { return n != 0 }

// formatNumber renders a float64 the way Copper's print and string
// interpolation do: integral values print without a decimal point or
// exponent, matching JavaScript's Number#toString behavior for the common
// case.
func formatNumber(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// String is a sequence of UTF-8 bytes.
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }
func (s String) Truth() bool    { return len(s) != 0 }
