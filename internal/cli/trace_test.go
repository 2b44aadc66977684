package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deduce/internal/ir"
)

type traceResponse struct {
	Status string      `json:"status"`
	Data   TraceResult `json:"data"`
}

func TestTrace_Text(t *testing.T) {
	db, id := journaled(t)

	out, _, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Engine: "+id+"\n")
	assert.Contains(t, out, "[   1] + parent(bill, mary)\n")
	assert.Contains(t, out, "[   3] ancestor(X, Y) <= parent(X, Y)\n")
	assert.Contains(t, out, "[   7] - parent(mary, john)\n")
	assert.Contains(t, out, "  ancestors: 5 applied, 4 changed, 0 failed expectation(s), through seq 4\n")
	assert.Contains(t, out, "  forget: 2 applied, 1 changed, 0 failed expectation(s), through seq 7\n")
	assert.Contains(t, out, "Stats: 7 event(s): 4 assert, 1 retract, 2 rule, 0 retract_rule")
}

func TestTrace_PredicateFilter(t *testing.T) {
	db, id := journaled(t)

	out, _, err := execute(t, "--format", "json", "trace", "--db", db, "--engine", id, "--predicate", "parent/2")
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, TraceStats{TotalEvents: 5, Asserts: 4, Retracts: 1}, resp.Data.Stats)

	seqs := make([]int64, len(resp.Data.Timeline))
	for i, ev := range resp.Data.Timeline {
		seqs[i] = ev.Seq
		assert.Len(t, ev.Hash, 64)
	}
	assert.Equal(t, []int64{1, 2, 5, 6, 7}, seqs)
	assert.Len(t, resp.Data.Programs, 3)
}

func TestTrace_EngineSelection(t *testing.T) {
	db, _ := journaled(t)
	_, _, err := execute(t, "run", "--db", db, ancestorsProgram)
	require.NoError(t, err)

	out, _, err := execute(t, "trace", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database holds 2 engines")

	_, _, err = execute(t, "trace", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		in      string
		want    ir.Signature
		wantErr bool
	}{
		{in: "parent/2", want: ir.Signature{Predicate: "parent", Arity: 2}},
		{in: "a/b/0", want: ir.Signature{Predicate: "a/b", Arity: 0}},
		{in: "parent", wantErr: true},
		{in: "/2", wantErr: true},
		{in: "parent/x", wantErr: true},
		{in: "parent/-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSignature(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrace_Match(t *testing.T) {
	db, _ := journaled(t)

	out, _, err := execute(t, "--format", "json", "trace", "--db", db, "--match", `["parent", "mary", "X"]`)
	require.NoError(t, err)
	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, "+ parent(mary, john)", resp.Data.Timeline[0].Statement)
	assert.Equal(t, "- parent(mary, john)", resp.Data.Timeline[1].Statement)

	out, _, err = execute(t, "trace", "--db", db, "--match", `["ancestor", "edward", "X"]`)
	require.NoError(t, err)
	assert.Contains(t, out, "Stats: 2 event(s): 0 assert, 0 retract, 2 rule, 0 retract_rule")

	out, _, err = execute(t, "--format", "json", "trace", "--db", db, "--match", `["parent", "X", "john"]`, "--kind", "retract")
	require.NoError(t, err)
	resp = traceResponse{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, TraceStats{TotalEvents: 1, Retracts: 1}, resp.Data.Stats)
}

func TestTrace_Kind(t *testing.T) {
	db, _ := journaled(t)

	out, _, err := execute(t, "--format", "json", "trace", "--db", db, "--kind", "rule,retract")
	require.NoError(t, err)
	var resp traceResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, TraceStats{TotalEvents: 3, Retracts: 1, Rules: 2}, resp.Data.Stats)

	out, _, err = execute(t, "--format", "json", "trace", "--db", db, "--kind", "assert", "--predicate", "parent/2")
	require.NoError(t, err)
	resp = traceResponse{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, TraceStats{TotalEvents: 4, Asserts: 4}, resp.Data.Stats)
}

func TestTrace_BadFilters(t *testing.T) {
	db, _ := journaled(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad predicate", []string{"--predicate", "parent"}},
		{"bad match", []string{"--match", `{"assert": ["p"]}`}},
		{"predicate and match", []string{"--predicate", "parent/2", "--match", `["parent", "X", "Y"]`}},
		{"ask kind", []string{"--kind", "ask"}},
		{"unknown kind", []string{"--kind", "invoke"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"trace", "--db", db}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E009]")
		})
	}
}
