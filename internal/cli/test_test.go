package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../../testdata/scenarios"

const tinyScenario = `name: tiny
description: "One fact and one ask"
units:
  - name: main
    statements:
      - assert: [p, a]
      - ask: [p, X]
        expect: [[a]]
`

type testResponse struct {
	Status string     `json:"status"`
	Data   TestResult `json:"data"`
	Error  *CLIError  `json:"error"`
}

func TestTest_RepositoryScenarios(t *testing.T) {
	out, _, err := execute(t, "test", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ ancestors\n")
	assert.Contains(t, out, "✓ errors\n")
	assert.Contains(t, out, "Test Summary: 7 passed, 0 failed, 7 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTest_Filter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", scenariosDir, "--filter", "arith*")
	require.NoError(t, err)

	var resp testResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "arithmetic", resp.Data.Scenarios[0].Name)

	out, _, err = execute(t, "test", scenariosDir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	_, _, err = execute(t, "test", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_GoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tiny.yaml", tinyScenario)
	golden := filepath.Join(dir, "golden", "tiny.golden")

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tiny (golden updated)")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"statement":"+ p(a)"`)

	out, _, err = execute(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	var resp testResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(golden, []byte(`{"trace":[]}`), 0o644))
	out, _, err = execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp = testResponse{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, "mismatch", resp.Data.Scenarios[0].Golden)
	assert.False(t, resp.Data.Scenarios[0].Pass)
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `name: wrong
description: "An expectation that cannot hold"
units:
  - name: main
    statements:
      - assert: [p, a]
      - ask: [p, X]
        expect: [[b]]
`)

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong\n")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTest_CommandErrors(t *testing.T) {
	out, _, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")

	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: [unterminated\n")
	_, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
