package engine

import (
	"context"
	"fmt"

	"github.com/roach88/deduce/internal/ir"
)

// Record is one journaled statement.
type Record struct {
	Seq       int64
	Statement ir.Statement
}

// Replay applies journaled mutations in the given order without journaling
// them again, then resumes the clock after the highest seq.
//
// Replay goes through the same code path as live mutations, so a journal
// that was valid when written replays to identical stores.
func (e *Engine) Replay(ctx context.Context, records []Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rec.Statement.IsMutation() {
			continue
		}
		if _, _, err := e.apply(ctx, rec.Statement, false); err != nil {
			return fmt.Errorf("replay seq %d (%s): %w", rec.Seq, rec.Statement, err)
		}
		e.clock.Observe(rec.Seq)
	}
	e.logger.Info("journal replayed", "engine", e.id, "records", len(records), "seq", e.clock.Last())
	return nil
}
