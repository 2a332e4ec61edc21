package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/mna/copper/internal/disasm"
	"github.com/mna/copper/lang/compiler"
	"github.com/mna/copper/lang/machine"
)

const replPath = "<stdin>"

// Repl reads statements from stdin one line at a time, compiling and
// running each against a LexicalEnvironment and Machine that persist for
// the whole session, so globals declared on one line stay visible on the
// next.
func (c *Cmd) Repl(_ context.Context, stdio mainer.Stdio, _ []string) error {
	env := compiler.NewLexicalEnvironment()
	m := machine.New()
	m.Stdout = stdio.Stdout

	sc := bufio.NewScanner(stdio.Stdin)
	fmt.Fprint(stdio.Stdout, "> ")
	for sc.Scan() {
		line := sc.Text()
		if line != "" {
			bc, err := compiler.Compile(replPath, []byte(line), env)
			if err != nil {
				fmt.Fprintf(stdio.Stderr, "%s\n", err)
			} else {
				if c.Disasm {
					disasm.Write(stdio.Stderr, bc) //nolint:errcheck
				}
				if err := m.Run(replPath, bc); err != nil {
					fmt.Fprintf(stdio.Stderr, "%s\n", err)
				}
			}
		}
		fmt.Fprint(stdio.Stdout, "> ")
	}
	fmt.Fprintln(stdio.Stdout)
	return sc.Err()
}
