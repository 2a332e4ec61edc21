// Package diag implements the shared diagnostic formatting used by the
// lexer, compiler and machine: a single Error type and an ErrorList
// collector, rendering the "error: path (line N): message" header line
// followed by a source-snippet line and a caret line, the format every
// stage of the pipeline agrees on.
package diag

import (
	"fmt"
	"strings"

	"github.com/mna/copper/lang/token"
)

// Error is a single diagnostic tied to a source position.
type Error struct {
	Path    string
	Pos     token.Pos
	Message string
	// Line is the full source line the diagnostic refers to, used to print
	// the caret snippet. Empty if unavailable.
	Line string
}

func (e *Error) Error() string {
	var sb strings.Builder
	line, col := e.Pos.LineCol()
	fmt.Fprintf(&sb, "error: %s (line %d): %s", e.Path, line, e.Message)
	if e.Line != "" {
		sb.WriteByte('\n')
		sb.WriteByte('\t')
		sb.WriteString(e.Line)
		sb.WriteByte('\n')
		sb.WriteByte('\t')
		// Tabs before the column are copied so the caret lines up at any tab
		// width; every other character becomes a space.
		n := 0
		for _, r := range e.Line {
			if n >= col-1 {
				break
			}
			if r == '\t' {
				sb.WriteByte('\t')
			} else {
				sb.WriteByte(' ')
			}
			n++
		}
		sb.WriteByte('^')
	}
	return sb.String()
}

// ErrorList collects every diagnostic raised during a single pass (lexing
// or compiling), allowing the pipeline to recover from a syntax error and
// keep scanning for more instead of stopping at the first one.
type ErrorList []*Error

// Add appends a new diagnostic to the list.
func (l *ErrorList) Add(path string, pos token.Pos, line, format string, args ...interface{}) {
	*l = append(*l, &Error{
		Path:    path,
		Pos:     pos,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

func (l ErrorList) Error() string {
	var sb strings.Builder
	for i, e := range l {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Err returns l as an error if it is non-empty, nil otherwise. Most
// callers use this instead of checking len(l) directly.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
