package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/pkg/errors"

	"github.com/mna/copper/internal/disasm"
	"github.com/mna/copper/lang/compiler"
	"github.com/mna/copper/lang/machine"
)

// Run compiles and executes the single script named in args[0].
func (c *Cmd) Run(_ context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "read script %s", path)
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	env := compiler.NewLexicalEnvironment()
	bc, err := compiler.Compile(path, src, env)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	if c.Disasm {
		disasm.Write(stdio.Stderr, bc) //nolint:errcheck
	}

	m := machine.New()
	m.Stdout = stdio.Stdout
	if err := m.Run(path, bc); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	return nil
}
