package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/deduce/internal/ir"
)

// Program is a definition unit: an ordered batch of statements consumed by
// exactly one Run.
type Program struct {
	id         string
	name       string
	statements []ir.Statement
	executed   atomic.Bool
}

// NewProgram creates an empty program with a fresh ID.
func (e *Engine) NewProgram(name string, statements ...ir.Statement) *Program {
	return NewProgramWithID(e.idGen.Generate(), name, statements...)
}

// NewProgramWithID creates a program with a caller-chosen ID.
func NewProgramWithID(id, name string, statements ...ir.Statement) *Program {
	return &Program{
		id:         id,
		name:       name,
		statements: append([]ir.Statement(nil), statements...),
	}
}

// ID returns the program identifier.
func (p *Program) ID() string { return p.id }

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// Statements returns a copy of the program's statements.
func (p *Program) Statements() []ir.Statement {
	return append([]ir.Statement(nil), p.statements...)
}

// Add appends statements. Adding to an executed program has no effect on
// that execution.
func (p *Program) Add(statements ...ir.Statement) *Program {
	p.statements = append(p.statements, statements...)
	return p
}

// Executed reports whether the program has been run.
func (p *Program) Executed() bool {
	return p.executed.Load()
}

// AskResult is the outcome of one ask statement.
type AskResult struct {
	// Index is the position of the statement in the program.
	Index int

	// Seq is the journal position the answer reflects.
	Seq int64

	Query    ir.Literal
	Relation *ir.Relation

	// Expect is the statement's expectation; nil means unchecked.
	Expect *ir.Expectation

	// Mismatch describes how the answer differs from Expect.
	// Empty when the expectation holds or there is none.
	Mismatch string
}

// Passed reports whether the expectation (if any) held.
func (a AskResult) Passed() bool {
	return a.Mismatch == ""
}

// ProgramResult reports what a Run did.
type ProgramResult struct {
	ProgramID string
	Name      string

	// Applied counts the statements processed before the run stopped.
	Applied int

	// Changed counts the mutations that changed a store.
	Changed int

	Asks []AskResult
}

// Failures returns the ask results whose expectation did not hold.
func (r *ProgramResult) Failures() []AskResult {
	var out []AskResult
	for _, a := range r.Asks {
		if !a.Passed() {
			out = append(out, a)
		}
	}
	return out
}

// OK reports whether every expectation held.
func (r *ProgramResult) OK() bool {
	return len(r.Failures()) == 0
}

// Run consumes p. A second Run of the same program fails with
// ir.ErrAlreadyExecuted. The first failing statement stops the run; the
// returned result describes the statements applied before it.
func (e *Engine) Run(ctx context.Context, p *Program) (*ProgramResult, error) {
	if !p.executed.CompareAndSwap(false, true) {
		return nil, ir.NewError(ir.CodeAlreadyExecuted, p.id, "program %q has already been executed", p.name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := &ProgramResult{ProgramID: p.id, Name: p.name}
	e.logger.Info("program starting", "program", p.name, "id", p.id, "statements", len(p.statements))

	for i, st := range p.statements {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		changed, ask, err := e.apply(ctx, st, true)
		if err != nil {
			e.logger.Error("program stopped", "program", p.name, "statement", i, "error", err)
			return res, fmt.Errorf("statement %d (%s): %w", i, st, err)
		}
		res.Applied++
		if changed {
			res.Changed++
		}
		if ask != nil {
			ask.Index = i
			res.Asks = append(res.Asks, *ask)
			if !ask.Passed() {
				e.logger.Warn("expectation failed", "program", p.name, "statement", i, "mismatch", ask.Mismatch)
			}
		}
	}

	e.logger.Info("program finished", "program", p.name, "applied", res.Applied, "changed", res.Changed)
	return res, nil
}

// apply runs one statement. e.mu must be held.
func (e *Engine) apply(ctx context.Context, st ir.Statement, record bool) (bool, *AskResult, error) {
	switch st.Kind {
	case ir.StmtAssert:
		changed, err := e.assert(st.Literal, record)
		return changed, nil, err
	case ir.StmtRetract:
		changed, err := e.retract(st.Literal, record)
		return changed, nil, err
	case ir.StmtRule:
		changed, err := e.declare(st.Rule(), record)
		return changed, nil, err
	case ir.StmtRetractRule:
		changed, err := e.retractRule(st.Rule(), record)
		return changed, nil, err
	case ir.StmtAsk:
		rel, err := e.ask(ctx, st.Literal)
		if err != nil {
			return false, nil, err
		}
		return false, &AskResult{
			Seq:      e.clock.Last(),
			Query:    st.Literal,
			Relation: rel,
			Expect:   st.Expect,
			Mismatch: Compare(st.Expect, rel),
		}, nil
	default:
		return false, nil, ir.NewError(ir.CodeInvalidTerm, string(st.Kind), "unknown statement kind")
	}
}

// Compare checks a relation against an expectation and describes the
// difference. It returns "" when they agree or when expect is nil.
func Compare(expect *ir.Expectation, rel *ir.Relation) string {
	if expect == nil {
		return ""
	}
	if expect.Absent() {
		if rel != nil {
			return fmt.Sprintf("expected no answer, got %s", rel)
		}
		return ""
	}
	if rel == nil {
		return fmt.Sprintf("expected %d tuples, got no answer", len(expect.Tuples))
	}
	want := ir.NewRelation(rel.Query())
	for _, t := range expect.Tuples {
		want.Add(t)
	}
	if want.String() != rel.String() {
		return fmt.Sprintf("expected %s, got %s", want, rel)
	}
	return ""
}
