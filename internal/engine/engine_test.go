package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deduce/internal/ir"
)

var (
	x  = ir.Var("X")
	y  = ir.Var("Y")
	z  = ir.Var("Z")
	n  = ir.Var("N")
	n1 = ir.Var("N1")
	n2 = ir.Var("N2")
	c  = ir.C
	l  = ir.MustLiteral
)

// memJournal records appended statements in memory.
type memJournal struct {
	records []Record
	failing bool
}

func (j *memJournal) Append(engineID string, seq int64, st ir.Statement) error {
	if j.failing {
		return errors.New("disk full")
	}
	j.records = append(j.records, Record{Seq: seq, Statement: st})
	return nil
}

func ask(t *testing.T, e *Engine, q ir.Literal) [][]string {
	t.Helper()
	rel, err := e.Ask(context.Background(), q)
	require.NoError(t, err)
	if rel == nil {
		return nil
	}
	return rel.Strings()
}

func TestAssertIsIdempotent(t *testing.T) {
	e := New()

	added, err := e.Assert(l("p", "a"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = e.Assert(l("p", "a"))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, e.Stats().Facts)
}

func TestRetractIsInverseOfAssert(t *testing.T) {
	e := New()
	_, _ = e.Assert(l("p", "a"))
	before := e.Facts()

	_, err := e.Assert(l("p", "b"))
	require.NoError(t, err)
	removed, err := e.Retract(l("p", "b"))
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, before, e.Facts())

	removed, err = e.Retract(l("p", "b"))
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMalformedInputFailsBeforeMutation(t *testing.T) {
	e := New()

	_, err := ir.NewLiteral("farmer", l("farmer", "x"))
	assert.ErrorIs(t, err, ir.ErrNestedLiteral)

	_, err = e.Assert(l("farmer", x))
	assert.ErrorIs(t, err, ir.ErrNonGroundFact)

	_, err = e.Retract(l("farmer", x))
	assert.ErrorIs(t, err, ir.ErrNonGroundFact)

	assert.Equal(t, Stats{}, e.Stats())
}

func TestArityMismatch(t *testing.T) {
	e := New()
	_, err := e.Assert(l("p", "a"))
	require.NoError(t, err)

	_, err = e.Assert(l("p", "a", "b"))
	assert.ErrorIs(t, err, ir.ErrArityMismatch)

	err = e.DeclareRule(l("p", x, y), l("q", x, y))
	assert.ErrorIs(t, err, ir.ErrArityMismatch, "rule head")

	err = e.DeclareRule(l("r", x), l("p", x, x))
	assert.ErrorIs(t, err, ir.ErrArityMismatch, "rule body")

	err = e.DeclareRule(l("s", x), l("t", x), l("t", x, x))
	assert.ErrorIs(t, err, ir.ErrArityMismatch, "within one rule")

	_, err = e.Ask(context.Background(), l("p", x, y))
	assert.ErrorIs(t, err, ir.ErrArityMismatch, "query")

	assert.Equal(t, 0, e.Stats().Rules)
	assert.Equal(t, [][]string{{"a"}}, ask(t, e, l("p", x)))
}

func TestArityCheckCanBeDisabled(t *testing.T) {
	e := New(WithArityCheck(false))
	_, _ = e.Assert(l("p", "a"))

	_, err := e.Assert(l("p", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, ask(t, e, l("p", x)))
	assert.Equal(t, [][]string{{"a", "b"}}, ask(t, e, l("p", x, y)))
}

func TestDeclareRuleValidates(t *testing.T) {
	e := New()

	err := e.DeclareRule(l("q", x, y), l("p", x))
	assert.ErrorIs(t, err, ir.ErrUnsafeRule)

	err = e.DeclareRule(l("q", x))
	assert.ErrorIs(t, err, ir.ErrUnsafeRule)
}

func TestRetractRule(t *testing.T) {
	e := New()
	_, _ = e.Assert(l("p", "a"))
	require.NoError(t, e.DeclareRule(l("q", x), l("p", x)))
	assert.Equal(t, [][]string{{"a"}}, ask(t, e, l("q", x)))

	removed, err := e.RetractRule(l("q", x), l("p", x))
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, ask(t, e, l("q", x)))

	removed, err = e.RetractRule(l("q", x), l("p", x))
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestJournalRecordsEffectiveMutations(t *testing.T) {
	j := &memJournal{}
	e := New(WithJournal(j), WithIDGenerator(NewFixedGenerator("engine-1")))

	_, _ = e.Assert(l("p", "a"))
	_, _ = e.Assert(l("p", "a"))
	_, _ = e.Retract(l("p", "b"))
	require.NoError(t, e.DeclareRule(l("q", x), l("p", x)))
	_, _ = e.Ask(context.Background(), l("q", x))
	_, _ = e.Retract(l("p", "a"))

	require.Len(t, j.records, 3, "no-ops and asks are not journaled")
	assert.Equal(t, []int64{1, 2, 3}, []int64{j.records[0].Seq, j.records[1].Seq, j.records[2].Seq})
	assert.Equal(t, ir.StmtAssert, j.records[0].Statement.Kind)
	assert.Equal(t, ir.StmtRule, j.records[1].Statement.Kind)
	assert.Equal(t, ir.StmtRetract, j.records[2].Statement.Kind)
}

func TestJournalFailureLeavesStoresUnchanged(t *testing.T) {
	j := &memJournal{failing: true}
	e := New(WithJournal(j))

	_, err := e.Assert(l("p", "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, e.Stats().Facts)

	err = e.DeclareRule(l("q", x), l("p", x))
	require.Error(t, err)
	assert.Equal(t, 0, e.Stats().Rules)

	// The failed assert did not register p's arity.
	j.failing = false
	_, err = e.Assert(l("p", "a", "b"))
	assert.NoError(t, err)
}

func TestReplayRebuildsEngine(t *testing.T) {
	j := &memJournal{}
	original := New(WithJournal(j))
	_, _ = original.Assert(l("parent", "bill", "mary"))
	_, _ = original.Assert(l("parent", "mary", "john"))
	_, _ = original.Assert(l("parent", "mary", "ann"))
	_, _ = original.Retract(l("parent", "mary", "ann"))
	require.NoError(t, original.DeclareRule(l("ancestor", x, y), l("parent", x, y)))
	require.NoError(t, original.DeclareRule(l("ancestor", x, y), l("parent", x, z), l("ancestor", z, y)))

	replayed := New(WithEngineID(original.ID()))
	require.NoError(t, replayed.Replay(context.Background(), j.records))

	assert.Equal(t, original.Facts(), replayed.Facts())
	assert.Equal(t, ask(t, original, l("ancestor", "bill", x)), ask(t, replayed, l("ancestor", "bill", x)))
	assert.Equal(t, original.Stats().JournalSeq, replayed.Stats().JournalSeq)
}

func TestReplayResumesAboveHighestSeq(t *testing.T) {
	j := &memJournal{}
	e := New(WithJournal(j))
	records := []Record{
		{Seq: 9, Statement: ir.AssertStatement(l("p", "b"))},
		{Seq: 4, Statement: ir.AssertStatement(l("p", "a"))},
	}
	require.NoError(t, e.Replay(context.Background(), records))
	assert.Empty(t, j.records, "replay does not journal again")
	assert.Equal(t, int64(9), e.Stats().JournalSeq)

	_, err := e.Assert(l("p", "c"))
	require.NoError(t, err)
	require.Len(t, j.records, 1)
	assert.Equal(t, int64(10), j.records[0].Seq)
}

func TestProgramRunsOnce(t *testing.T) {
	e := New()
	p := e.NewProgram("facts", ir.AssertStatement(l("p", "a")))

	res, err := e.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, p.Executed())

	_, err = e.Run(context.Background(), p)
	assert.ErrorIs(t, err, ir.ErrAlreadyExecuted)

	other := New()
	_, err = other.Run(context.Background(), p)
	assert.ErrorIs(t, err, ir.ErrAlreadyExecuted, "a consumed program cannot run on another engine either")
}

func TestProgramStopsAtFirstFailure(t *testing.T) {
	e := New()
	p := e.NewProgram("partial",
		ir.AssertStatement(l("p", "a")),
		ir.AssertStatement(l("p", x)),
		ir.AssertStatement(l("p", "b")),
	)

	res, err := e.Run(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrNonGroundFact)
	assert.Contains(t, err.Error(), "statement 1")
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, [][]string{{"a"}}, ask(t, e, l("p", x)), "statements before the failure stay applied")
}

func TestProgramExpectations(t *testing.T) {
	e := New()
	p := e.NewProgram("expect",
		ir.AssertStatement(l("p", "a")),
		ir.AskStatement(l("p", x), &ir.Expectation{Tuples: []ir.Tuple{{"a"}}}),
		ir.AskStatement(l("p", "b"), &ir.Expectation{}),
		ir.AskStatement(l("p", x), &ir.Expectation{Tuples: []ir.Tuple{{"b"}}}),
		ir.AskStatement(l("p", "a"), nil),
	)

	res, err := e.Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Asks, 4)
	assert.False(t, res.OK())

	failures := res.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 3, failures[0].Index)
	assert.Equal(t, "expected {(b)}, got {(a)}", failures[0].Mismatch)
}

func TestCompare(t *testing.T) {
	rel := ir.NewRelation(l("p", x))
	rel.Add(ir.Tuple{"a"})

	assert.Empty(t, Compare(nil, rel))
	assert.Empty(t, Compare(&ir.Expectation{}, nil))
	assert.Empty(t, Compare(&ir.Expectation{Tuples: []ir.Tuple{{"a"}}}, rel))
	assert.Equal(t, "expected no answer, got {(a)}", Compare(&ir.Expectation{}, rel))
	assert.Equal(t, "expected 1 tuples, got no answer", Compare(&ir.Expectation{Tuples: []ir.Tuple{{"a"}}}, nil))
}
