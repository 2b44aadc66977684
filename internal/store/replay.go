package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/deduce/internal/engine"
)

// Replay rebuilds an engine from its journal.
//
// The returned engine keeps the journaled ID, resumes its clock after the
// last seq, and journals further mutations to this store under ctx.
// opts are applied before the journal options and may set the logger,
// iteration cap or arity check.
func (s *Store) Replay(ctx context.Context, engineID string, opts ...engine.EngineOption) (*engine.Engine, error) {
	records, err := s.ReadStatements(ctx, engineID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", engineID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("replay %s: %w", engineID, ErrEngineNotFound)
	}

	e := engine.New(slices.Concat(opts, []engine.EngineOption{
		engine.WithEngineID(engineID),
		engine.WithJournal(s.Journal(ctx)),
	})...)
	if err := e.Replay(ctx, toEngineRecords(records)); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngine creates a fresh engine that journals to this store under ctx.
func (s *Store) NewEngine(ctx context.Context, opts ...engine.EngineOption) *engine.Engine {
	return engine.New(slices.Concat(opts, []engine.EngineOption{engine.WithJournal(s.Journal(ctx))})...)
}

func toEngineRecords(records []Record) []engine.Record {
	out := make([]engine.Record, len(records))
	for i, r := range records {
		out[i] = engine.Record{Seq: r.Seq, Statement: r.Statement}
	}
	return out
}
