package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deduce/internal/ir"
)

// expect builds an expectation from rows of raw values; no rows means
// "no answer".
func expect(rows ...[]any) *ir.Expectation {
	exp := &ir.Expectation{Tuples: []ir.Tuple{}}
	for _, row := range rows {
		t := make(ir.Tuple, len(row))
		for i, v := range row {
			t[i] = c(v).Value()
		}
		exp.Tuples = append(exp.Tuples, t)
	}
	return exp
}

func rule(head ir.Literal, body ...ir.BodyTerm) ir.Statement {
	return ir.RuleStatement(ir.MustRule(head, body...))
}

func runOK(t *testing.T, e *Engine, name string, statements ...ir.Statement) {
	t.Helper()
	res, err := e.Run(context.Background(), e.NewProgram(name, statements...))
	require.NoError(t, err)
	for _, f := range res.Failures() {
		t.Errorf("%s: statement %d ask %s: %s", name, f.Index, f.Query, f.Mismatch)
	}
}

func TestAcceptance_FactsRulesAndRecursion(t *testing.T) {
	// s/1 and s/2 coexist in this program.
	e := New(WithArityCheck(false))

	var successors []ir.Statement
	for i := range 10 {
		successors = append(successors, ir.AssertStatement(l("successor", i+1, i)))
	}

	runOK(t, e, "facts",
		ir.AssertStatement(l("p", "a")),
		ir.AskStatement(l("p", "a"), expect([]any{"a"})),
		ir.AskStatement(l("p", x), expect([]any{"a"})),
		ir.AskStatement(l("p", y), expect([]any{"a"})),
		ir.AskStatement(l("p", "b"), expect()),
		ir.AssertStatement(l("p", "b")),
		ir.AskStatement(l("p", x), expect([]any{"a"}, []any{"b"})),
		ir.AssertStatement(l("p", "b")),
		ir.AskStatement(l("p", x), expect([]any{"a"}, []any{"b"})),
		ir.RetractStatement(l("p", "b")),
		ir.AskStatement(l("p", x), expect([]any{"a"})),
		ir.AssertStatement(l("p", "c")),
		ir.AskStatement(l("p", "c"), expect([]any{"c"})),
		ir.AssertStatement(l("p", 1)),
		ir.AskStatement(l("p", 1), expect([]any{"1"})),
	)

	runOK(t, e, "binary facts",
		ir.AssertStatement(l("q", "a", "b")),
		ir.AskStatement(l("q", "a", "b"), expect([]any{"a", "b"})),
		ir.AskStatement(l("q", x, "b"), expect([]any{"a", "b"})),
		ir.AskStatement(l("q", "a", y), expect([]any{"a", "b"})),
		ir.AskStatement(l("q", "a", "c"), expect()),
		ir.AskStatement(l("q", x, y), expect([]any{"a", "b"})),
		ir.AssertStatement(l("q", "a", "c")),
		ir.AskStatement(l("q", "a", y), expect([]any{"a", "b"}, []any{"a", "c"})),
		ir.RetractStatement(l("q", "a", "c")),
		ir.AskStatement(l("q", "a", y), expect([]any{"a", "b"})),
	)

	runOK(t, e, "clauses",
		rule(l("r", x, y), l("p", x), l("p", y)),
		ir.AskStatement(l("r", "a", "a"), expect([]any{"a", "a"})),
		ir.AskStatement(l("r", "a", "c"), expect([]any{"a", "c"})),
		ir.AssertStatement(l("integer", 1)),
		ir.AskStatement(l("integer", 1), expect([]any{"1"})),
	)

	runOK(t, e, "recursion", append(successors,
		ir.AskStatement(l("successor", 2, 1), expect([]any{"2", "1"})),
		ir.AssertStatement(l("even", 0)),
		rule(l("even", n), l("successor", n, n1), l("odd", n1)),
		rule(l("odd", n), l("successor", n, n1), l("even", n1)),
		ir.AskStatement(l("even", 0), expect([]any{"0"})),
		ir.AskStatement(l("even", x), expect([]any{"0"}, []any{"2"}, []any{"4"}, []any{"6"}, []any{"8"}, []any{"10"})),
		ir.AskStatement(l("odd", 1), expect([]any{"1"})),
		ir.AskStatement(l("odd", 5), expect([]any{"5"})),
		ir.AskStatement(l("even", 5), expect()),
	)...)

	runOK(t, e, "equality",
		rule(l("s", x), ir.Eq(x, c("a"))),
		ir.AskStatement(l("s", x), expect([]any{"a"})),
		rule(l("s", x), ir.Eq(x, c(1))),
		ir.AskStatement(l("s", x), expect([]any{"1"}, []any{"a"})),
		rule(l("s", x, y), l("p", x), ir.Eq(x, y)),
		ir.AskStatement(l("s", "a", "a"), expect([]any{"a", "a"})),
		ir.AskStatement(l("s", "a", "b"), expect()),
		ir.AskStatement(l("s", x, "a"), expect([]any{"a", "a"})),
		ir.AskStatement(l("s", x, y), expect([]any{"a", "a"}, []any{"c", "c"}, []any{"1", "1"})),
	)
}

func TestAcceptance_ExpressionsAndPiecemealPrograms(t *testing.T) {
	e := New()

	runOK(t, e, "expressions",
		rule(l("predecessor", x, y), ir.Eq(x, ir.Sub(y, c(1)))),
		ir.AskStatement(l("predecessor", x, 11), expect([]any{"10", "11"})),
		rule(l("p", x, z), ir.Eq(y, ir.Sub(z, c(1))), ir.Eq(x, ir.Sub(y, c(1)))),
		ir.AskStatement(l("p", x, 11), expect([]any{"9", "11"})),
		ir.AssertStatement(l("even", "0")),
		rule(l("even", n), ir.Gt(n, c(0)), ir.Eq(n1, ir.Sub(n, c(1))), l("odd", n1)),
		ir.AskStatement(l("even", 0), expect([]any{"0"})),
		rule(l("odd", n), ir.Gt(n, c(0)), ir.Eq(n2, ir.Sub(n, c(1))), l("even", n2)),
		ir.AskStatement(l("even", 0), expect([]any{"0"})),
		ir.AskStatement(l("odd", 1), expect([]any{"1"})),
		ir.AskStatement(l("odd", 5), expect([]any{"5"})),
		ir.AskStatement(l("even", 5), expect()),
	)

	var chain []ir.Statement
	for i := range 2000 {
		chain = append(chain, ir.AssertStatement(l("successor", i+1, i)))
	}
	runOK(t, e, "performance", append(chain,
		ir.AskStatement(l("successor", 1801, 1800), expect([]any{"1801", "1800"})),
		ir.AskStatement(l("odd", 299), expect([]any{"299"})),
		ir.AskStatement(l("odd", 1099), expect([]any{"1099"})),
	)...)

	runOK(t, e, "farmers",
		ir.AssertStatement(l("farmer", "Moshe dayan")),
		ir.AssertStatement(l("farmer", "omar")),
		ir.AskStatement(l("farmer", x), expect([]any{"Moshe dayan"}, []any{"omar"})),
	)
	assert.Equal(t, [][]string{{"Moshe dayan"}}, ask(t, e, l("farmer", "Moshe dayan")))

	_, err := ir.NewLiteral("farmer", l("farmer", "moshe"))
	assert.ErrorIs(t, err, ir.ErrNestedLiteral)

	runOK(t, e, "parents",
		ir.AssertStatement(l("parent", "bill", "mary")),
		ir.AssertStatement(l("parent", "mary", "john")),
	)
	assert.Equal(t, [][]string{{"mary", "john"}}, ask(t, e, l("parent", x, "john")))

	runOK(t, e, "ancestors",
		rule(l("ancestor", x, y), l("parent", x, y)),
		rule(l("ancestor", x, y), l("parent", x, z), l("ancestor", z, y)),
	)
	assert.Equal(t, [][]string{{"bill", "john"}, {"bill", "mary"}}, ask(t, e, l("ancestor", "bill", x)))
}

func TestAcceptance_OddOverLongChain(t *testing.T) {
	e := New()
	for i := range 2000 {
		_, err := e.Assert(l("successor", i+1, i))
		require.NoError(t, err)
	}
	_, _ = e.Assert(l("even", 0))
	require.NoError(t, e.DeclareRule(l("even", n), l("successor", n, n1), l("odd", n1)))
	require.NoError(t, e.DeclareRule(l("odd", n), l("successor", n, n1), l("even", n1)))

	assert.Equal(t, [][]string{{"1801"}}, ask(t, e, l("odd", 1801)))
	assert.Nil(t, ask(t, e, l("even", 1801)))
}
