// Package maincmd implements the copper command-line tool: a REPL when
// invoked with no arguments, or a one-shot file runner when given a
// single script path.
package maincmd

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "copper"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and virtual machine for the %[1]s scripting language.

With no <path>, starts an interactive REPL reading statements from
standard input. With a <path>, compiles and runs that script and exits.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --dis                     Print the disassembled bytecode of each
                                 compiled chunk to stderr before running it.
`, binName)
)

// Cmd holds the parsed command-line flags and dispatches to the repl or
// run subcommand depending on whether a path argument was given.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Disasm  bool `flag:"dis"`

	args        []string
	tooManyArgs bool
	cmdFn       func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) { c.args = args }

func (c *Cmd) SetFlags(map[string]bool) {}

// Validate resolves which subcommand args dispatches to. An argument count
// of more than one is not a flag-parsing error: it is reported by Main as
// the tool's own usage message (matching the reference implementation's
// argc switch), so it is recorded here rather than returned as an error.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		c.tooManyArgs = true
		return nil
	}

	commands := buildCmds(c)
	if len(c.args) == 0 {
		c.cmdFn = commands["repl"]
	} else {
		c.cmdFn = commands["run"]
	}
	if c.cmdFn == nil {
		return fmt.Errorf("internal error: command not registered")
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	if c.tooManyArgs {
		fmt.Fprintln(stdio.Stdout, "Usage:")
		fmt.Fprintln(stdio.Stdout, "REPL: copper")
		fmt.Fprintln(stdio.Stdout, "Run file: copper <file_path>")
		return mainer.Failure
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}

// buildCmds finds every method on v whose signature matches
// func(context.Context, mainer.Stdio, []string) error and registers it
// under its lowercased name, the same reflection-based dispatch the rest
// of the tool's commands use.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
