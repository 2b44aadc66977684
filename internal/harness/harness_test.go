package harness

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// RunAll fans scenarios out on an errgroup; every worker must be gone
// once the package's tests finish.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustParse(t *testing.T, data string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	return s
}

func eventStatements(trace []TraceEvent) []string {
	out := make([]string, len(trace))
	for i, ev := range trace {
		out[i] = ev.Statement
	}
	return out
}

func TestRun_TraceInterleavesMutationsAndAsks(t *testing.T) {
	s := mustParse(t, `
name: interleave
description: "Asks appear after the mutations they observe"
units:
  - statements:
      - assert: [p, a]
      - ask: [p, X]
        expect: [[a]]
      - assert: [p, b]
      - assert: [p, b]
      - ask: [p, X]
        expect: [[a], [b]]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)

	assert.Equal(t, []string{"+ p(a)", "? p(X)", "+ p(b)", "? p(X)"}, eventStatements(result.Trace))
	assert.Equal(t, int64(1), result.Trace[1].Seq)
	assert.Equal(t, int64(2), result.Trace[3].Seq)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, result.Trace[3].Tuples)
	assert.Equal(t, 2, result.Stats.Facts)
	assert.Equal(t, int64(2), result.Stats.JournalSeq)
}

func TestRun_NoAnswerIsDistinctFromEmpty(t *testing.T) {
	s := mustParse(t, `
name: no_answer
description: "A query with no tuples has no answer"
units:
  - statements:
      - ask: [p, X]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	require.Len(t, result.Trace, 1)
	assert.False(t, result.Trace[0].Answered)
	assert.Empty(t, result.Trace[0].Tuples)
	assert.True(t, result.Pass)
}

func TestRun_ExpectationMismatchFailsScenario(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: "A failed expectation is reported and the unit continues"
units:
  - statements:
      - assert: [p, a]
      - ask: [p, X]
        expect: [[b]]
      - assert: [p, c]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected {(b)}, got {(a)}")

	require.Len(t, result.Trace, 3)
	assert.NotEmpty(t, result.Trace[1].Mismatch)
	assert.Equal(t, "+ p(c)", result.Trace[2].Statement)
}

func TestRun_ExpectedErrorStopsUnit(t *testing.T) {
	s := mustParse(t, `
name: expected_error
description: "The failing statement stops its unit but not the scenario"
units:
  - statements:
      - assert: [p, a]
      - assert: [p, X]
      - assert: [p, never]
    expect_error: NON_GROUND_FACT
  - statements:
      - ask: [p, X]
        expect: [[a]]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	require.Len(t, result.Trace, 3)
	ev := result.Trace[1]
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, "NON_GROUND_FACT", ev.Code)
	assert.Equal(t, "+ p(X)", ev.Statement)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, 1, result.Trace[2].Unit)
}

func TestRun_ExpectErrorMismatches(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unit succeeded",
			yaml: `
name: no_error
description: "Expected an error that never came"
units:
  - statements:
      - assert: [p, a]
    expect_error: ARITY_MISMATCH
`,
			wantErr: "expected error ARITY_MISMATCH, unit succeeded",
		},
		{
			name: "different code",
			yaml: `
name: wrong_error
description: "Expected one error, got another"
units:
  - statements:
      - assert: [p, a]
      - assert: [p, a, b]
    expect_error: NON_GROUND_FACT
`,
			wantErr: "expected error NON_GROUND_FACT, got",
		},
		{
			name: "unexpected error",
			yaml: `
name: unexpected
description: "No error expected"
units:
  - statements:
      - assert: [p, a]
      - assert: [p, a, b]
`,
			wantErr: "ARITY_MISMATCH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(t.Context(), mustParse(t, tt.yaml))
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestRun_StrictArityDisabled(t *testing.T) {
	s := mustParse(t, `
name: loose_arity
description: "p/1 and p/2 are separate relations"
strict_arity: false
units:
  - statements:
      - assert: [p, a]
      - assert: [p, a, b]
      - ask: [p, X]
        expect: [[a]]
      - ask: [p, X, Y]
        expect: [[a, b]]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, 2, result.Stats.Relations)
}

func TestRun_MaxIterations(t *testing.T) {
	s := mustParse(t, `
name: budget
description: "A tiny evaluation budget stops a recursive query"
max_iterations: 1
units:
  - statements:
      - assert: [edge, a, b]
      - assert: [edge, b, c]
      - rule: {head: [path, X, Y], body: [[edge, X, Y]]}
      - rule: {head: [path, X, Y], body: [[edge, X, Z], [path, Z, Y]]}
      - ask: [path, a, X]
    expect_error: ITERATION_LIMIT
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_CheckReplay(t *testing.T) {
	s := mustParse(t, `
name: replay
description: "Rebuilding from the journal reproduces the engine"
check_replay: true
units:
  - statements:
      - assert: [parent, bill, mary]
      - assert: [parent, mary, john]
      - rule: {head: [ancestor, X, Y], body: [[parent, X, Y]]}
      - rule: {head: [ancestor, X, Y], body: [[parent, X, Z], [ancestor, Z, Y]]}
  - statements:
      - retract: [parent, mary, john]
      - retract_rule: {head: [ancestor, X, Y], body: [[parent, X, Y]]}
      - assert: [parent, mary, ann]
`)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, 2, result.Stats.Facts)
	assert.Equal(t, 1, result.Stats.Rules)
	assert.Equal(t, int64(7), result.Stats.JournalSeq)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Run(ctx, mustParse(t, `
name: cancelled
description: "Cancellation aborts the run"
units:
  - statements:
      - assert: [p, a]
`))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_Deterministic(t *testing.T) {
	s := mustParse(t, `
name: deterministic
description: "Two runs produce the same trace"
units:
  - statements:
      - assert: [edge, a, b]
      - assert: [edge, b, a]
      - rule: {head: [path, X, Y], body: [[edge, X, Y]]}
      - rule: {head: [path, X, Y], body: [[path, X, Z], [edge, Z, Y]]}
      - ask: [path, X, Y]
`)

	first, err := Run(t.Context(), s)
	require.NoError(t, err)
	second, err := Run(t.Context(), s)
	require.NoError(t, err)

	a, err := MarshalTrace(first)
	require.NoError(t, err)
	b, err := MarshalTrace(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunAll_PreservesOrder(t *testing.T) {
	var scenarios []*Scenario
	for _, name := range []string{"one", "two", "three", "four"} {
		scenarios = append(scenarios, mustParse(t, `
name: `+name+`
description: "parallel"
units:
  - statements:
      - assert: [p, `+name+`]
      - ask: [p, X]
        expect: [[`+name+`]]
`))
	}

	results, err := RunAll(t.Context(), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, scenarios[i].Name, r.Name)
		assert.True(t, r.Pass, r.Errors)
	}
	assert.Equal(t, "4 passed", Summary(results))
}

func TestRunAll_FailureCancelsAndJoinsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)

	scenarios := []*Scenario{
		{Name: "broken", Units: []UnitStep{{Statements: []any{
			map[string]any{"bogus": []any{"p", "a"}},
		}}}},
	}
	for i := range 8 {
		scenarios = append(scenarios, mustParse(t, fmt.Sprintf(`
name: ok%d
description: "parallel"
units:
  - statements:
      - assert: [p, a]
`, i)))
	}

	results, err := RunAll(t.Context(), scenarios, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario broken")
	assert.Nil(t, results)
}

func TestSummary_ListsFailures(t *testing.T) {
	ok := NewResult("ok")
	bad := NewResult("bad")
	bad.AddError("boom")

	assert.Equal(t, "1 passed, 1 failed: bad", Summary([]*Result{ok, bad}))
}
