package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/queryir"
)

// Table is the journal table every query reads.
const Table = "statements"

// SQLCompiler compiles journal queries to parameterized SQL for SQLite.
//
// Every query ends in ORDER BY engine_id, seq so rows come back in journal
// order. Values are always bound as parameters, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and converts it to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	cols := q.Columns
	if len(cols) == 0 {
		cols = queryir.Columns
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), Table)

	var params []any
	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + where)
		params = filterParams
	}

	b.WriteString(" ORDER BY engine_id COLLATE BINARY ASC, seq ASC")

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return pred.Column + " = ?", []any{pred.Value}, nil
	case queryir.ArgEquals:
		// A fact payload is {"<kind>": [predicate, arg0, arg1, ...]}.
		return "json_extract(payload, '$.' || kind || ?) = ?", []any{argPath(pred), pred.Term.Value()}, nil
	case queryir.KindIn:
		marks := make([]string, len(pred.Kinds))
		params := make([]any, len(pred.Kinds))
		for i, kind := range pred.Kinds {
			marks[i] = "?"
			params[i] = string(kind)
		}
		return "kind IN (" + strings.Join(marks, ", ") + ")", params, nil
	case queryir.SeqRange:
		if pred.Through == 0 {
			return "seq > ?", []any{pred.After}, nil
		}
		return "seq > ? AND seq <= ?", []any{pred.After, pred.Through}, nil
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileJunction joins sub-predicates with op. Each part is parenthesized
// so nested And/Or keep their grouping.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, op, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		if len(preds) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, op), params, nil
}

// argPath is the JSON path of the argument below the kind key. Constants
// that read as variables are encoded as {"const": value}.
func argPath(a queryir.ArgEquals) string {
	path := fmt.Sprintf("[%d]", a.Index+1)
	if _, wrapped := ir.EncodeTerm(a.Term).(map[string]any); wrapped {
		path += ".const"
	}
	return path
}
