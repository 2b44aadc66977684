package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/queryir"
)

// Record is one journaled statement as stored.
type Record struct {
	EngineID  string
	Seq       int64
	Hash      string
	Statement ir.Statement
}

// EngineSummary describes one engine's journal.
type EngineSummary struct {
	EngineID   string `json:"engine_id"`
	Statements int    `json:"statements"`
	LastSeq    int64  `json:"last_seq"`
}

// ProgramSummary is one row of the programs table.
type ProgramSummary struct {
	ID       string `json:"id"`
	EngineID string `json:"engine_id"`
	Name     string `json:"name"`
	Applied  int    `json:"applied"`
	Changed  int    `json:"changed"`
	Failures int    `json:"failures"`
	LastSeq  int64  `json:"last_seq"`
}

// ReadStatements returns every journaled statement of an engine,
// ORDER BY seq ASC. Each payload is verified against its stored hash.
//
// Returns an empty slice (not nil) if the engine has no records.
func (s *Store) ReadStatements(ctx context.Context, engineID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT engine_id, seq, kind, predicate, arity, payload, statement_hash
		FROM statements
		WHERE engine_id = ?
		ORDER BY seq ASC
	`, engineID)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	return scanRecords(rows)
}

// ReadSignature returns the journaled statements of one predicate/arity,
// ORDER BY seq ASC.
func (s *Store) ReadSignature(ctx context.Context, engineID string, sig ir.Signature) ([]Record, error) {
	return s.ReadQuery(ctx, queryir.Select{Filter: queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Column: queryir.ColEngineID, Value: engineID},
		queryir.Equals{Column: queryir.ColPredicate, Value: sig.Predicate},
		queryir.Equals{Column: queryir.ColArity, Value: sig.Arity},
	}}})
}

// ReadMatching returns the journaled statements about literals that unify
// with pattern: facts whose tuple matches it and rules whose head could
// derive a matching fact. ORDER BY seq ASC.
func (s *Store) ReadMatching(ctx context.Context, engineID string, pattern ir.Literal) ([]Record, error) {
	records, err := s.ReadQuery(ctx, queryir.Select{Filter: queryir.Pattern(engineID, pattern)})
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if headUnifies(r.Statement.Literal, pattern) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ReadQuery runs a journal query. q must select every column, which is
// the default; rows come back ordered by engine and seq.
func (s *Store) ReadQuery(ctx context.Context, q queryir.Select) ([]Record, error) {
	if len(q.Columns) > 0 && !slices.Equal(q.Columns, queryir.Columns) {
		return nil, fmt.Errorf("journal reads select every column, got %v", q.Columns)
	}
	query, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	return scanRecords(rows)
}

// headUnifies reports whether a journaled literal and a pattern agree
// wherever both hold constants, and pattern's repeated variables meet equal
// constants in a ground literal.
func headUnifies(lit, pattern ir.Literal) bool {
	if lit.Signature() != pattern.Signature() {
		return false
	}
	if t, ok := lit.Tuple(); ok {
		return ir.Matches(pattern.Args, t)
	}
	for i, a := range pattern.Args {
		b := lit.Args[i]
		if a.IsConstant() && b.IsConstant() && a.Value() != b.Value() {
			return false
		}
	}
	return true
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var r row
		if err := rows.Scan(&rec.EngineID, &rec.Seq, &r.kind, &r.predicate, &r.arity, &r.payload, &r.hash); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		st, err := unmarshalStatement(r)
		if err != nil {
			return nil, fmt.Errorf("statement %s/%d: %w", rec.EngineID, rec.Seq, err)
		}
		rec.Hash = r.hash
		rec.Statement = st
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statements: %w", err)
	}
	return records, nil
}

// Engines lists every engine with a journal, ordered by engine ID.
func (s *Store) Engines(ctx context.Context) ([]EngineSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT engine_id, COUNT(*), MAX(seq)
		FROM statements
		GROUP BY engine_id
		ORDER BY engine_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query engines: %w", err)
	}
	defer rows.Close()

	engines := []EngineSummary{}
	for rows.Next() {
		var e EngineSummary
		if err := rows.Scan(&e.EngineID, &e.Statements, &e.LastSeq); err != nil {
			return nil, fmt.Errorf("scan engine: %w", err)
		}
		engines = append(engines, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engines: %w", err)
	}
	return engines, nil
}

// ReadPrograms returns the program summaries of an engine, ORDER BY last_seq ASC.
func (s *Store) ReadPrograms(ctx context.Context, engineID string) ([]ProgramSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, engine_id, name, applied, changed, failures, last_seq
		FROM programs
		WHERE engine_id = ?
		ORDER BY last_seq ASC, id COLLATE BINARY ASC
	`, engineID)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	programs := []ProgramSummary{}
	for rows.Next() {
		var p ProgramSummary
		if err := rows.Scan(&p.ID, &p.EngineID, &p.Name, &p.Applied, &p.Changed, &p.Failures, &p.LastSeq); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return programs, nil
}

// ErrEngineNotFound is returned when an engine has no journal.
var ErrEngineNotFound = errors.New("engine not found")
