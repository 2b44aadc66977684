package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/queryir"
)

// seedFamily journals a small family under e1 and a stray fact under e2.
func seedFamily(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	stmts := []ir.Statement{
		ir.AssertStatement(l("parent", "bill", "mary")),
		ir.AssertStatement(l("parent", "mary", "john")),
		ir.RuleStatement(ancestorRule()),
		ir.RuleStatement(ir.MustRule(l("ancestor", "bill", y), l("parent", "bill", y))),
		ir.AssertStatement(l("parent", "john", "john")),
		ir.RetractStatement(l("parent", "bill", "mary")),
		ir.AssertStatement(l("parent", "Bill", "mary")),
	}
	for i, st := range stmts {
		require.NoError(t, s.AppendStatement(ctx, "e1", int64(i+1), st))
	}
	require.NoError(t, s.AppendStatement(ctx, "e2", 1, ir.AssertStatement(l("parent", "bill", "ann"))))
}

func seqs(records []Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.Seq
	}
	return out
}

func TestReadMatching(t *testing.T) {
	s := createTestStore(t)
	seedFamily(t, s)
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern ir.Literal
		want    []int64
	}{
		{"all variables", l("parent", x, y), []int64{1, 2, 5, 6, 7}},
		{"first argument", l("parent", "bill", y), []int64{1, 6}},
		{"second argument", l("parent", x, "john"), []int64{2, 5}},
		{"repeated variable", l("parent", x, x), []int64{5}},
		{"constant that reads as a variable", l("parent", ir.C("Bill"), y), []int64{7}},
		{"rules by head", l("ancestor", "mary", y), []int64{3}},
		{"rules with matching head constant", l("ancestor", "bill", y), []int64{3, 4}},
		{"no such predicate", l("sibling", x, y), []int64{}},
		{"wrong arity", l("parent", x), []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := s.ReadMatching(ctx, "e1", tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seqs(records))
		})
	}
}

func TestReadQuery(t *testing.T) {
	s := createTestStore(t)
	seedFamily(t, s)
	ctx := context.Background()

	records, err := s.ReadQuery(ctx, queryir.Select{
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.KindIn{Kinds: queryir.FactKinds},
			queryir.SeqRange{After: 1, Through: 6},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 6}, seqs(records))
	assert.Equal(t, "e1", records[0].EngineID)

	records, err = s.ReadQuery(ctx, queryir.Select{
		Filter: queryir.ArgEquals{Index: 1, Term: ir.C("ann")},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "e2", records[0].EngineID)

	records, err = s.ReadQuery(ctx, queryir.Select{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, seqs(records))
}

func TestReadQuery_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadQuery(ctx, queryir.Select{Columns: []string{queryir.ColSeq}})
	assert.ErrorContains(t, err, "select every column")

	_, err = s.ReadQuery(ctx, queryir.Select{Filter: queryir.KindIn{}})
	assert.ErrorContains(t, err, "invalid query")
}
