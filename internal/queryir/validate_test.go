package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deduce/internal/ir"
)

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"empty select", Select{}},
		{"pointer select", &Select{Columns: []string{ColSeq, ColPayload}}},
		{"every predicate", Select{
			Filter: And{Predicates: []Predicate{
				Equals{Column: ColEngineID, Value: "e"},
				Equals{Column: ColArity, Value: int64(2)},
				SeqRange{After: 3, Through: 9},
				SeqRange{After: 3},
				Or{Predicates: []Predicate{
					KindIn{Kinds: []ir.StatementKind{ir.StmtRule}},
					ArgEquals{Index: 1, Term: ir.C(7)},
				}},
			}},
			Limit: 10,
		}},
		{"empty junctions", Select{Filter: Or{Predicates: []Predicate{And{}, Or{}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.query))
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"nil query", nil, "nil query"},
		{"nil pointer", (*Select)(nil), "nil query"},
		{"unknown column", Select{Columns: []string{"timestamp"}}, `unknown journal column "timestamp"`},
		{"negative limit", Select{Limit: -1}, "limit -1 is negative"},
		{"filter column", Select{Filter: Equals{Column: "flow", Value: "x"}}, `unknown journal column "flow"`},
		{"float value", Select{Filter: Equals{Column: ColArity, Value: 1.5}}, "unsupported value float64"},
		{"negative index", Select{Filter: ArgEquals{Index: -1, Term: ir.C("a")}}, "argument index -1 is negative"},
		{"variable argument", Select{Filter: ArgEquals{Index: 0, Term: ir.Var("X")}}, "compared to variable X"},
		{"no kinds", Select{Filter: KindIn{}}, "lists no kinds"},
		{"ask kind", Select{Filter: KindIn{Kinds: []ir.StatementKind{ir.StmtAsk}}}, `kind "ask" is never journaled`},
		{"unknown kind", Select{Filter: KindIn{Kinds: []ir.StatementKind{"invoke"}}}, `kind "invoke" is never journaled`},
		{"empty range", Select{Filter: SeqRange{After: 5, Through: 5}}, "seq range (5, 5] is empty"},
		{"negative range", Select{Filter: SeqRange{After: -1}}, "negative seq -1"},
		{"nested nil", Select{Filter: And{Predicates: []Predicate{nil}}}, "nil predicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := Validate(Select{
		Columns: []string{"nope"},
		Filter: Or{Predicates: []Predicate{
			KindIn{},
			SeqRange{After: 2, Through: 1},
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "lists no kinds")
	assert.Contains(t, err.Error(), "(2, 1]")
}
