package copper_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/require"

	"github.com/mna/copper/lang/compiler"
	"github.com/mna/copper/lang/machine"
)

func TestMain(m *testing.M) {
	v := m.Run()
	snaps.Clean(m)
	os.Exit(v)
}

// runScript compiles and runs src as a single translation unit and returns
// its stdout, or the diagnostic text if compilation or execution failed.
func runScript(src string) string {
	env := compiler.NewLexicalEnvironment()
	bc, err := compiler.Compile("script.cu", []byte(src), env)
	if err != nil {
		return "error: " + err.Error()
	}

	var out bytes.Buffer
	m := machine.New()
	m.Stdout = &out
	if err := m.Run("script.cu", bc); err != nil {
		return "error: " + err.Error()
	}
	return out.String()
}

// TestScenarios runs the language's end-to-end scenario table: every
// observable behavior named by the language's operations, snapshotted so a
// change in emitted output or diagnostics is caught even when no single
// unit test exercises the exact combination.
func TestScenarios(t *testing.T) {
	scenarios := []struct {
		name string
		src  string
	}{
		{"arithmetic_precedence", "print 1 + 2 * 3 - 4 / 2;"},
		{"exponent_right_assoc", "print 2 ** 3 ** 2;"},
		{"string_concat_mixed_types", `print "count: " + 3;`},
		{"template_interpolation", "let name = \"copper\"; print `hello, ${name}!`;"},
		{"template_nested_expr", "let a = 2; let b = 3; print `${a} + ${b} = ${a + b}`;"},
		{"array_literal_and_index", "let a = [10, 20, 30]; print a[0]; print a[2];"},
		{"array_out_of_range_reads_undefined", "let a = [1]; print a[9];"},
		{"array_auto_grows_on_write", "let a = []; a[4] = 1; print a[4];"},
		{"array_string_keyed_property", `let a = []; a["k"] = "v"; print a.k;`},
		{"if_else_both_branches", `
			if (1 < 2) { print "then"; } else { print "else"; }
			if (1 > 2) { print "then"; } else { print "else"; }
		`},
		{"while_loop_counts_up", `
			let i = 0;
			while (i < 4) { print i; i = i + 1; }
		`},
		{"for_loop_break_continue", `
			for (let i = 0; i < 6; i = i + 1) {
				if (i == 1) { continue; }
				if (i == 4) { break; }
				print i;
			}
		`},
		{"nested_block_shadowing", `
			let x = "outer";
			{
				let x = "inner";
				print x;
			}
			print x;
		`},
		{"postfix_and_prefix_increment", `
			let x = 0;
			print x++;
			print x;
			print ++x;
		`},
		{"const_declaration_and_use", "const pi = 3; print pi;"},
		{"const_reassignment_is_an_error", "const pi = 3; pi = 4; print pi;"},
		{"undefined_variable_is_a_compile_error", "print notDeclared;"},
		{"type_error_on_arithmetic", "print true - false;"},
		{"syntax_error_missing_semicolon", "let x = 1"},
		{"break_outside_loop_is_an_error", "break;"},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			got := runScript(sc.src)
			snaps.MatchSnapshot(t, got)
		})
	}
}

func TestReplSessionSharesGlobalsAcrossTurns(t *testing.T) {
	env := compiler.NewLexicalEnvironment()
	m := machine.New()
	var out bytes.Buffer
	m.Stdout = &out

	turns := []string{
		"let total = 0;",
		"total = total + 10;",
		"print total;",
		"total = total + 5;",
		"print total;",
	}
	for _, line := range turns {
		bc, err := compiler.Compile("<repl>", []byte(line), env)
		require.NoError(t, err)
		require.NoError(t, m.Run("<repl>", bc))
	}
	require.Equal(t, "10\n15\n", out.String())
}
