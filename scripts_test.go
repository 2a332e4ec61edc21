package copper_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/copper/internal/filetest"
	"github.com/mna/copper/lang/compiler"
	"github.com/mna/copper/lang/machine"
)

var updateScriptTests = flag.Bool("test.update-script-tests", false, "update the golden files in testdata/scripts")

// TestScripts runs every .cu file under testdata/scripts as a standalone
// program and diffs its stdout against the matching .cu.want golden file,
// the same fixture-directory pattern used for the compiler's own test
// corpora.
func TestScripts(t *testing.T) {
	const dir = "testdata/scripts"
	for _, fi := range filetest.SourceFiles(t, dir, ".cu") {
		fi := fi
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join(dir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}

			env := compiler.NewLexicalEnvironment()
			bc, err := compiler.Compile(fi.Name(), src, env)
			if err != nil {
				t.Fatal(err)
			}

			var out bytes.Buffer
			m := machine.New()
			m.Stdout = &out
			if err := m.Run(fi.Name(), bc); err != nil {
				t.Fatal(err)
			}

			filetest.DiffOutput(t, fi, out.String(), dir, updateScriptTests)
		})
	}
}
