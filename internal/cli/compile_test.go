package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deduce/internal/compiler"
	"github.com/roach88/deduce/internal/ir"
)

type compiledDoc struct {
	Programs []struct {
		Name  string `json:"name"`
		Units []struct {
			Name       string `json:"name"`
			Statements []struct {
				ID        string         `json:"id"`
				Statement map[string]any `json:"statement"`
			} `json:"statements"`
		} `json:"units"`
		MaxIterations int   `json:"max_iterations"`
		StrictArity   *bool `json:"strict_arity"`
	} `json:"programs"`
}

func TestCompile_Stdout(t *testing.T) {
	out, _, err := execute(t, "compile", ancestorsProgram)
	require.NoError(t, err)

	var doc compiledDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Programs, 1)
	prog := doc.Programs[0]
	assert.Equal(t, "ancestors", prog.Name)
	require.Len(t, prog.Units, 3)
	assert.Equal(t, "more_parents", prog.Units[1].Name)

	compiled, err := compiler.CompileFile(ancestorsProgram)
	require.NoError(t, err)
	for i, u := range compiled.Units {
		require.Len(t, prog.Units[i].Statements, len(u.Statements))
		for j, st := range u.Statements {
			assert.Equal(t, ir.MustStatementID(st), prog.Units[i].Statements[j].ID, "%s", st)
		}
	}

	first := prog.Units[0].Statements[0].Statement
	assert.Equal(t, []any{"parent", "bill", "mary"}, first["assert"])
}

func TestCompile_Settings(t *testing.T) {
	out, _, err := execute(t, "compile", "../../testdata/programs/even_odd.cue")
	require.NoError(t, err)

	var doc compiledDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 100000, doc.Programs[0].MaxIterations)
	assert.Nil(t, doc.Programs[0].StrictArity)
}

func TestCompile_Deterministic(t *testing.T) {
	first, _, err := execute(t, "compile", "../../testdata/programs")
	require.NoError(t, err)
	second, _, err := execute(t, "compile", "../../testdata/programs")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompile_OutputFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "ancestors.json")

	out, _, err := execute(t, "compile", ancestorsProgram, "-o", outPath)
	require.NoError(t, err)
	assert.Equal(t, "✓ Compiled 1 program(s), 3 unit(s), 10 statement(s), 2 rule(s) to "+outPath+"\n", out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	out, _, err = execute(t, "--format", "json", "compile", ancestorsProgram, "-o", outPath)
	require.NoError(t, err)
	var resp struct {
		Status string           `json:"status"`
		Data   CompilationStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, CompilationStats{Programs: 1, Units: 3, Statements: 10, Rules: 2}, resp.Data)
}

func TestCompile_Errors(t *testing.T) {
	out, _, err := execute(t, "compile", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")

	bad := writeFile(t, t.TempDir(), "nested.cue", `program: [{assert: ["p", ["q", "a"]]}]`)
	out, _, err = execute(t, "--format", "json", "compile", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NESTED_LITERAL", resp.Error.Code)
}
