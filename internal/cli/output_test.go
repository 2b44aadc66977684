package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	base := errors.New("disk full")

	err := WrapExitError(ExitCommandError, "failed to open database", base)
	assert.Equal(t, "failed to open database: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	plain := NewExitError(ExitFailure, "2 scenario(s) failed")
	assert.Equal(t, "2 scenario(s) failed", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "x"))))
}

func TestFormatterSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Success(map[string]int{"facts": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"facts": float64(3)}, resp.Data)
	assert.Nil(t, resp.Error)

	buf.Reset()
	f.Format = "text"
	require.NoError(t, f.Success("done"))
	assert.Equal(t, "done\n", buf.String())
}

func TestFormatterError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}
	require.NoError(t, f.Error("E005", "path not found", "x.cue"))
	assert.Equal(t, "Error [E005]: path not found\nDetails: x.cue\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Error("E005", "path not found", nil))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E005", resp.Error.Code)
}

func TestFormatterFailure(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Failure("data", "E_TEST_FAILED", "1 failed"))
	assert.Empty(t, buf.String())

	f.Format = "json"
	require.NoError(t, f.Failure("data", "E_TEST_FAILED", "1 failed"))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "data", resp.Data)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestVerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut}

	f.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	f.Verbose = true
	f.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String())

	f.ErrWriter = nil
	assert.Equal(t, &out, f.GetErrWriter())
}
