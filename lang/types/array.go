package types

import (
	"strings"

	"github.com/dolthub/swiss"
)

// Array is Copper's single composite type. It is addressable both by
// non-negative integer index, growing automatically on out-of-range
// writes, and by string property name, stored in a side map. Both index
// spaces are independent: elems holds the dense integer-indexed storage,
// props holds everything assigned through a string key, backed by the
// same SwissTable map the host language uses for its own keyed lookups.
type Array struct {
	elems []Value
	props *swiss.Map[string, Value]
}

// NewArray returns an empty array.
func NewArray() *Array {
	return &Array{}
}

// NewArrayFrom returns an array whose integer-indexed elements are elems.
// The slice is taken by reference.
func NewArrayFrom(elems []Value) *Array {
	return &Array{elems: elems}
}

func (a *Array) Type() string { return "array" }

func (a *Array) Truth() bool { return true }

func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range a.elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeElemString(&sb, e)
	}
	sb.WriteByte(']')
	return sb.String()
}

func writeElemString(sb *strings.Builder, v Value) {
	if v == nil {
		sb.WriteString("undefined")
		return
	}
	if s, ok := v.(String); ok {
		sb.WriteByte('\'')
		sb.WriteString(string(s))
		sb.WriteByte('\'')
		return
	}
	sb.WriteString(v.String())
}

// Len returns the number of integer-indexed slots currently allocated.
func (a *Array) Len() int { return len(a.elems) }

// GetIndex returns the value at integer index i, or Undefined if i is out
// of the currently allocated range.
func (a *Array) GetIndex(i int) Value {
	if i < 0 || i >= len(a.elems) {
		return Undefined{}
	}
	if a.elems[i] == nil {
		return Undefined{}
	}
	return a.elems[i]
}

// SetIndex assigns v at integer index i, growing the backing storage when
// i is beyond the current length. Growth follows the reference
// implementation's rule of doubling past the requested index, rather than
// growing by exactly one slot at a time, to keep repeated appends cheap.
func (a *Array) SetIndex(i int, v Value) {
	if i >= len(a.elems) {
		newCap := (i + 1) * 2
		grown := make([]Value, newCap)
		copy(grown, a.elems)
		a.elems = grown
	}
	a.elems[i] = v
}

// GetProp returns the value stored under the string property name, or
// Undefined if no such property was ever assigned.
func (a *Array) GetProp(name string) Value {
	if a.props == nil {
		return Undefined{}
	}
	if v, ok := a.props.Get(name); ok {
		return v
	}
	return Undefined{}
}

// SetProp assigns v under the string property name.
func (a *Array) SetProp(name string, v Value) {
	if a.props == nil {
		a.props = swiss.NewMap[string, Value](4)
	}
	a.props.Put(name, v)
}

// Elems exposes the dense integer-indexed storage. The returned slice is
// the array's own backing storage, not a copy.
func (a *Array) Elems() []Value { return a.elems }
