package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/deduce/internal/clausestore"
	"github.com/roach88/deduce/internal/factstore"
	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/resolve"
)

// Journal records effective mutations before they are applied.
// Implemented by store.Journal.
type Journal interface {
	Append(engineID string, seq int64, st ir.Statement) error
}

// Engine is the deduce façade over one fact store and one clause store.
//
// Engines share no mutable state; run one Engine per concurrent unit of
// work, or share one and let the mutex serialize access.
type Engine struct {
	mu sync.Mutex

	id       string
	facts    *factstore.Store
	rules    *clausestore.Store
	resolver *resolve.Resolver
	arities  *arityRegistry
	clock    *Clock
	journal  Journal
	idGen    IDGenerator
	logger   *slog.Logger

	maxIterations int
	checkArity    bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithJournal records every effective mutation in j before applying it.
func WithJournal(j Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxIterations caps the table evaluations of each query.
//
// Default: resolve.DefaultMaxIterations
// Zero or a negative value disables the cap.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithArityCheck enables or disables the one-arity-per-predicate rule.
// Enabled by default; when disabled, p/1 and p/2 are unrelated relations.
func WithArityCheck(enabled bool) EngineOption {
	return func(e *Engine) {
		e.checkArity = enabled
	}
}

// WithIDGenerator sets the generator for engine and program IDs.
// The engine ID is drawn first, when the engine is created.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.idGen = g
	}
}

// WithEngineID fixes the engine ID, e.g. to continue a journaled engine.
func WithEngineID(id string) EngineOption {
	return func(e *Engine) {
		e.id = id
	}
}

// New creates an empty Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		facts:         factstore.New(),
		rules:         clausestore.New(),
		arities:       newArityRegistry(),
		clock:         NewClock(),
		idGen:         UUIDv7Generator{},
		logger:        slog.New(slog.DiscardHandler),
		maxIterations: resolve.DefaultMaxIterations,
		checkArity:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = e.idGen.Generate()
	}
	e.resolver = resolve.New(e.facts, e.rules,
		resolve.WithMaxIterations(e.maxIterations),
		resolve.WithLogger(e.logger))
	return e
}

// ID returns the engine identifier used in journal entries.
func (e *Engine) ID() string {
	return e.id
}

// Assert adds a ground fact. Returns true if the fact was new.
func (e *Engine) Assert(fact ir.Literal) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assert(fact, true)
}

// Retract removes a ground fact. Returns false if the fact was absent.
func (e *Engine) Retract(fact ir.Literal) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retract(fact, true)
}

// DeclareRule adds the rule head <= body.
// Declaring an identical rule again is a no-op.
func (e *Engine) DeclareRule(head ir.Literal, body ...ir.BodyTerm) error {
	r, err := ir.NewRule(head, body...)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.declare(r, true)
	return err
}

// RetractRule removes the rule head <= body.
// Returns false if no identical rule was declared.
func (e *Engine) RetractRule(head ir.Literal, body ...ir.BodyTerm) (bool, error) {
	r := ir.Rule{Head: head, Body: body}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retractRule(r, true)
}

// Ask answers a query. A nil relation means no tuple satisfies it.
func (e *Engine) Ask(ctx context.Context, query ir.Literal) (*ir.Relation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ask(ctx, query)
}

// Stats describes the current contents of the engine.
type Stats struct {
	Facts      int   `json:"facts"`
	Rules      int   `json:"rules"`
	Relations  int   `json:"relations"`
	JournalSeq int64 `json:"journal_seq"`
}

// Stats returns a snapshot of the engine's size.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Facts:      e.facts.Size(),
		Rules:      e.rules.Len(),
		Relations:  len(e.facts.Signatures()),
		JournalSeq: e.clock.Last(),
	}
}

// Facts returns the stored facts grouped by signature, for inspection.
func (e *Engine) Facts() map[ir.Signature][]ir.Tuple {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[ir.Signature][]ir.Tuple)
	for _, sig := range e.facts.Signatures() {
		out[sig] = e.facts.Tuples(sig)
	}
	return out
}

// Rules returns every declared rule, for inspection.
func (e *Engine) Rules() []ir.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rules.All()
}

// The methods below require e.mu to be held.

func (e *Engine) assert(fact ir.Literal, record bool) (bool, error) {
	if !fact.IsGround() {
		return false, ir.NewError(ir.CodeNonGroundFact, fact.String(), "facts must be ground")
	}
	if err := e.arities.check(e.checkArity, fact); err != nil {
		return false, err
	}
	if e.facts.Contains(fact) {
		return false, nil
	}
	if err := e.record(record, ir.AssertStatement(fact)); err != nil {
		return false, err
	}
	added, err := e.facts.Assert(fact)
	if err != nil {
		return false, err
	}
	e.arities.register(fact)
	e.logger.Debug("fact asserted", "fact", fact.String())
	return added, nil
}

func (e *Engine) retract(fact ir.Literal, record bool) (bool, error) {
	if !fact.IsGround() {
		return false, ir.NewError(ir.CodeNonGroundFact, fact.String(), "retract requires a ground fact")
	}
	if err := e.arities.check(e.checkArity, fact); err != nil {
		return false, err
	}
	if !e.facts.Contains(fact) {
		return false, nil
	}
	if err := e.record(record, ir.RetractStatement(fact)); err != nil {
		return false, err
	}
	removed, err := e.facts.Retract(fact)
	if err != nil {
		return false, err
	}
	e.logger.Debug("fact retracted", "fact", fact.String())
	return removed, nil
}

func (e *Engine) declare(r ir.Rule, record bool) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	lits := append([]ir.Literal{r.Head}, r.Goals()...)
	if err := e.arities.check(e.checkArity, lits...); err != nil {
		return false, err
	}
	if e.rules.Contains(r) {
		return false, nil
	}
	if err := e.record(record, ir.RuleStatement(r)); err != nil {
		return false, err
	}
	added, err := e.rules.AddRule(r)
	if err != nil {
		return false, err
	}
	e.arities.register(lits...)
	e.logger.Debug("rule declared", "rule", r.String())
	return added, nil
}

func (e *Engine) retractRule(r ir.Rule, record bool) (bool, error) {
	if !e.rules.Contains(r) {
		return false, nil
	}
	if err := e.record(record, ir.RetractRuleStatement(r)); err != nil {
		return false, err
	}
	removed := e.rules.RemoveRule(r)
	e.logger.Debug("rule retracted", "rule", r.String())
	return removed, nil
}

func (e *Engine) ask(ctx context.Context, query ir.Literal) (*ir.Relation, error) {
	if err := e.arities.check(e.checkArity, query); err != nil {
		return nil, err
	}
	rel, err := e.resolver.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ask %s: %w", query, err)
	}
	return rel, nil
}

// record appends st to the journal, if there is one.
func (e *Engine) record(enabled bool, st ir.Statement) error {
	if !enabled || e.journal == nil {
		return nil
	}
	seq := e.clock.Next()
	if err := e.journal.Append(e.id, seq, st); err != nil {
		return fmt.Errorf("journal %s: %w", st, err)
	}
	return nil
}
