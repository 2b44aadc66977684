package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/deduce/internal/engine"
	"github.com/roach88/deduce/internal/ir"
)

// ErrSeqConflict is returned when a different statement is already journaled
// at the same (engine_id, seq).
var ErrSeqConflict = errors.New("journal seq conflict")

// AppendStatement journals one mutation at (engineID, seq).
//
// Uses ON CONFLICT DO NOTHING for idempotency: rewriting the identical
// statement at the same seq is silently ignored. A different statement at an
// occupied seq fails with ErrSeqConflict, since two writers share the
// engine ID.
func (s *Store) AppendStatement(ctx context.Context, engineID string, seq int64, st ir.Statement) error {
	r, err := marshalStatement(st)
	if err != nil {
		return fmt.Errorf("append statement: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO statements
		(engine_id, seq, kind, predicate, arity, payload, statement_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(engine_id, seq) DO NOTHING
	`,
		engineID,
		seq,
		r.kind,
		r.predicate,
		r.arity,
		r.payload,
		r.hash,
	)
	if err != nil {
		return fmt.Errorf("append statement: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append statement: %w", err)
	}
	if n == 1 {
		return nil
	}

	var existing string
	err = s.db.QueryRowContext(ctx, `
		SELECT statement_hash FROM statements WHERE engine_id = ? AND seq = ?
	`, engineID, seq).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("append statement: row vanished at %s/%d", engineID, seq)
	}
	if err != nil {
		return fmt.Errorf("append statement: %w", err)
	}
	if existing != r.hash {
		return fmt.Errorf("%w: %s seq %d holds %s", ErrSeqConflict, engineID, seq, existing)
	}
	return nil
}

// WriteProgram records the summary of a program run.
// lastSeq is the engine's journal position when the run finished.
// Uses ON CONFLICT(id) DO NOTHING; a program runs at most once.
func (s *Store) WriteProgram(ctx context.Context, engineID string, res *engine.ProgramResult, lastSeq int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs
		(id, engine_id, name, applied, changed, failures, last_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		res.ProgramID,
		engineID,
		res.Name,
		res.Applied,
		res.Changed,
		len(res.Failures()),
		lastSeq,
	)
	if err != nil {
		return fmt.Errorf("write program: %w", err)
	}
	return nil
}

// Journal adapts the store to engine.Journal for one context.
type Journal struct {
	ctx   context.Context
	store *Store
}

// Journal returns an engine.Journal that appends under ctx.
func (s *Store) Journal(ctx context.Context) *Journal {
	return &Journal{ctx: ctx, store: s}
}

// Append implements engine.Journal.
func (j *Journal) Append(engineID string, seq int64, st ir.Statement) error {
	return j.store.AppendStatement(j.ctx, engineID, seq, st)
}

var _ engine.Journal = (*Journal)(nil)
