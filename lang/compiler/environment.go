package compiler

// variable records one let/const binding and the stack slot it occupies.
type variable struct {
	name    string
	slot    int
	isConst bool
	depth   int
}

// LexicalEnvironment tracks in-scope bindings while the compiler walks the
// source, fused directly into single-pass compilation instead of living in
// a separate resolve phase. Block scopes push and pop as the compiler
// enters and leaves braces; globals persist across successive calls to
// Compile on the same environment so a REPL session accumulates state
// across turns.
type LexicalEnvironment struct {
	globals []variable
	locals  []variable
	depth   int
}

// NewLexicalEnvironment returns an environment with only the top-level
// (depth 0) scope active.
func NewLexicalEnvironment() *LexicalEnvironment {
	return &LexicalEnvironment{}
}

// BeginScope opens a new nested block scope.
func (e *LexicalEnvironment) BeginScope() {
	e.depth++
}

// CloseScope discards every binding declared at the current depth and
// returns how many local slots were released, so the compiler can emit a
// matching POPN.
func (e *LexicalEnvironment) CloseScope() int {
	n := 0
	for len(e.locals) > 0 && e.locals[len(e.locals)-1].depth == e.depth {
		e.locals = e.locals[:len(e.locals)-1]
		n++
	}
	e.depth--
	return n
}

// AtTopLevel reports whether the environment is not inside any block.
func (e *LexicalEnvironment) AtTopLevel() bool { return e.depth == 0 }

// Declare introduces a new binding named name in the current scope.
// At depth 0 it is a global, addressed by its index in the machine's
// globals vector; inside a block it is a local, addressed by stack slot. ok is false if name is already declared
// in the current scope.
func (e *LexicalEnvironment) Declare(name string, isConst bool) (slot int, ok bool) {
	if e.depth == 0 {
		for _, g := range e.globals {
			if g.name == name {
				return 0, false
			}
		}
		slot = len(e.globals)
		e.globals = append(e.globals, variable{name: name, slot: slot, isConst: isConst, depth: 0})
		return slot, true
	}
	for i := len(e.locals) - 1; i >= 0 && e.locals[i].depth == e.depth; i-- {
		if e.locals[i].name == name {
			return 0, false
		}
	}
	slot = len(e.locals)
	e.locals = append(e.locals, variable{name: name, slot: slot, isConst: isConst, depth: e.depth})
	return slot, true
}

// Resolved describes where a resolved identifier lives.
type Resolved struct {
	Slot    int
	IsConst bool
	Global  bool
}

// Resolve looks up name, preferring the innermost local binding, and
// reports whether it was found.
func (e *LexicalEnvironment) Resolve(name string) (Resolved, bool) {
	for i := len(e.locals) - 1; i >= 0; i-- {
		if e.locals[i].name == name {
			return Resolved{Slot: e.locals[i].slot, IsConst: e.locals[i].isConst}, true
		}
	}
	for i := len(e.globals) - 1; i >= 0; i-- {
		if e.globals[i].name == name {
			return Resolved{Slot: e.globals[i].slot, IsConst: e.globals[i].isConst, Global: true}, true
		}
	}
	return Resolved{}, false
}

// NumGlobals returns the number of globals declared so far. The machine
// does not consult it; its globals vector grows on first assignment.
func (e *LexicalEnvironment) NumGlobals() int { return len(e.globals) }
