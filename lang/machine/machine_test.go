package machine_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/copper/lang/compiler"
	"github.com/mna/copper/lang/machine"
)

func run(t *testing.T, src string) string {
	t.Helper()
	env := compiler.NewLexicalEnvironment()
	bc, err := compiler.Compile("<test>", []byte(src), env)
	require.NoError(t, err)

	var out bytes.Buffer
	m := machine.New()
	m.Stdout = &out
	require.NoError(t, m.Run("<test>", bc))
	return out.String()
}

func runErr(t *testing.T, src string) error {
	t.Helper()
	env := compiler.NewLexicalEnvironment()
	bc, err := compiler.Compile("<test>", []byte(src), env)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	m := machine.New()
	m.Stdout = &out
	return m.Run("<test>", bc)
}

func TestArithmetic(t *testing.T) {
	require.Equal(t, "7\n", run(t, "print 1 + 2 * 3;"))
	require.Equal(t, "9\n", run(t, "print (1 + 2) * 3;"))
	require.Equal(t, "8\n", run(t, "print 2 ** 3;"))
	require.Equal(t, "512\n", run(t, "print 2 ** 3 ** 2;")) // right-associative
	require.Equal(t, "1\n", run(t, "print 7 % 3;"))
	require.Equal(t, "-5\n", run(t, "print -5;"))
}

func TestStringConcatAndCoercion(t *testing.T) {
	require.Equal(t, "ab\n", run(t, `print "a" + "b";`))
	require.Equal(t, "a1\n", run(t, `print "a" + 1;`))
	require.Equal(t, "1a\n", run(t, `print 1 + "a";`))
}

func TestTemplateStringInterpolation(t *testing.T) {
	require.Equal(t, "x is 5\n", run(t, "let x = 5; print `x is ${x}`;"))
	require.Equal(t, "sum=3\n", run(t, "let a = 1; let b = 2; print `sum=${a + b}`;"))
	require.Equal(t, "\n", run(t, "print ``;"))
}

func TestComparisonsAndEquality(t *testing.T) {
	require.Equal(t, "true\n", run(t, "print 1 < 2;"))
	require.Equal(t, "false\n", run(t, "print 1 > 2;"))
	require.Equal(t, "true\n", run(t, "print 2 >= 2;"))
	require.Equal(t, "true\n", run(t, "print 1 == 1;"))
	require.Equal(t, "true\n", run(t, `print "a" == "a";`))
	require.Equal(t, "false\n", run(t, "print 1 == 2;"))
	require.Equal(t, "true\n", run(t, "print 1 != 2;"))
}

func TestLogicalOperatorsAreNotShortCircuiting(t *testing.T) {
	require.Equal(t, "true\n", run(t, "print true && true;"))
	require.Equal(t, "false\n", run(t, "print true && false;"))
	require.Equal(t, "true\n", run(t, "print false || true;"))
	require.Equal(t, "false\n", run(t, "print !true;"))
	// the right operand's assignment still runs when the left is false
	require.Equal(t, "false\n1\n", run(t, "let x = 0; print false && (x = 1) == 1; print x;"))
}

func TestLetAndConst(t *testing.T) {
	require.Equal(t, "10\n", run(t, "let x = 10; print x;"))
	require.Equal(t, "10\n", run(t, "const x = 10; print x;"))
	require.Equal(t, "5\n", run(t, "let x = 1; x = 5; print x;"))
}

func TestConstReassignmentIsAnError(t *testing.T) {
	require.Error(t, runErr(t, "const x = 1; x = 2; print x;"))
}

func TestIncrementDecrement(t *testing.T) {
	require.Equal(t, "1\n2\n", run(t, "let x = 1; print x; x++; print x;"))
	require.Equal(t, "1\n2\n", run(t, "let x = 1; print x++; print x;"))
	require.Equal(t, "2\n2\n", run(t, "let x = 1; print ++x; print x;"))
	require.Equal(t, "5\n4\n", run(t, "let x = 5; print x--; print x;"))
}

func TestIfElse(t *testing.T) {
	require.Equal(t, "yes\n", run(t, `if (1 < 2) { print "yes"; } else { print "no"; }`))
	require.Equal(t, "no\n", run(t, `if (1 > 2) { print "yes"; } else { print "no"; }`))
	require.Equal(t, "", run(t, `if (false) { print "yes"; }`))
}

func TestWhileLoop(t *testing.T) {
	out := run(t, `
		let i = 0;
		while (i < 3) {
			print i;
			i = i + 1;
		}
	`)
	require.Equal(t, "0\n1\n2\n", out)
}

func TestForLoopWithBreakAndContinue(t *testing.T) {
	out := run(t, `
		for (let i = 0; i < 10; i = i + 1) {
			if (i == 2) { continue; }
			if (i == 5) { break; }
			print i;
		}
	`)
	require.Equal(t, "0\n1\n3\n4\n", out)
}

func TestBlockScopingDoesNotLeakLocals(t *testing.T) {
	out := run(t, `
		let x = 1;
		{
			let x = 2;
			print x;
		}
		print x;
	`)
	require.Equal(t, "2\n1\n", out)
}

func TestArrayLiteralAndIndexing(t *testing.T) {
	require.Equal(t, "2\n", run(t, "let a = [1, 2, 3]; print a[1];"))
	require.Equal(t, "undefined\n", run(t, "let a = [1, 2]; print a[5];"))
}

func TestArrayAutoGrowOnWrite(t *testing.T) {
	out := run(t, `
		let a = [];
		a[3] = 9;
		print a[3];
	`)
	require.Equal(t, "9\n", out)
}

func TestArrayNumericStringIndexingDelegatesToElems(t *testing.T) {
	out := run(t, `
		let a = [];
		a["3"] = 7;
		print a[3];
		print a["3"];
	`)
	require.Equal(t, "7\n7\n", out)
}

func TestArraySingleElementArrayKeyDelegatesToItsElement(t *testing.T) {
	out := run(t, `
		let a = [10, 20, 30];
		print a[[1]];
	`)
	require.Equal(t, "20\n", out)
}

func TestArrayMultiElementArrayKeyFallsBackToPropertyMap(t *testing.T) {
	out := run(t, `
		let a = [];
		a[[1, 2]] = "multi";
		print a[[1, 2]];
	`)
	require.Equal(t, "multi\n", out)
}

func TestArrayStringIndexing(t *testing.T) {
	out := run(t, `
		let a = [];
		a["name"] = "copper";
		print a["name"];
		print a.name;
	`)
	require.Equal(t, "copper\ncopper\n", out)
}

func TestIndexAssignmentIsAnExpression(t *testing.T) {
	out := run(t, `
		let a = [];
		print (a[0] = 7);
	`)
	require.Equal(t, "7\n", out)
}

func TestUndefinedVariableIsACompileError(t *testing.T) {
	_, err := compileOnly(t, "print x;")
	require.Error(t, err)
}

func compileOnly(t *testing.T, src string) (*compiler.Bytecode, error) {
	t.Helper()
	return compiler.Compile("<test>", []byte(src), compiler.NewLexicalEnvironment())
}

func TestBreakOutsideLoopIsACompileError(t *testing.T) {
	_, err := compileOnly(t, "break;")
	require.Error(t, err)
}

func TestTypeErrorOnBadAddition(t *testing.T) {
	err := runErr(t, "print true + false;")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Invalid operand types for operator +"))
}

func TestGlobalsPersistAcrossSeparateCompiles(t *testing.T) {
	env := compiler.NewLexicalEnvironment()
	m := machine.New()
	var out bytes.Buffer
	m.Stdout = &out

	bc1, err := compiler.Compile("<test>", []byte("let x = 1;"), env)
	require.NoError(t, err)
	require.NoError(t, m.Run("<test>", bc1))

	bc2, err := compiler.Compile("<test>", []byte("print x; x = x + 1; print x;"), env)
	require.NoError(t, err)
	require.NoError(t, m.Run("<test>", bc2))

	require.Equal(t, "1\n2\n", out.String())
}
