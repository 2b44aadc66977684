package resolve

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/roach88/deduce/internal/constraint"
	"github.com/roach88/deduce/internal/ir"
)

// Facts is the read side of a fact store.
type Facts interface {
	Lookup(sig ir.Signature, pattern []ir.Term) iter.Seq[ir.Tuple]
}

// Rules is the read side of a clause store.
type Rules interface {
	RulesFor(sig ir.Signature) []ir.Rule
	HasRules(sig ir.Signature) bool
}

// Stats describes the work done by one query.
type Stats struct {
	// Tables is the number of distinct call patterns evaluated.
	Tables int `json:"tables"`

	// Evaluations is the number of table evaluations taken from the worklist.
	Evaluations int `json:"evaluations"`

	// Answers is the total number of answers across all tables.
	Answers int `json:"answers"`

	// Deliveries is the number of answers handed to suspended rule bodies.
	// Each answer reaches each consumer of its table once.
	Deliveries int `json:"deliveries"`
}

// Resolver evaluates queries. It holds no state between queries, so one
// Resolver can serve any number of sequential queries against stores that
// change in between.
type Resolver struct {
	facts         Facts
	rules         Rules
	maxIterations int
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxIterations caps the number of table evaluations per query.
// Exceeding the cap fails the query with ir.ErrIterationLimit.
// Zero or a negative value disables the cap.
func WithMaxIterations(n int) Option {
	return func(r *Resolver) {
		r.maxIterations = n
	}
}

// WithLogger sets the logger for per-query statistics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver reading from facts and rules.
func New(facts Facts, rules Rules, opts ...Option) *Resolver {
	r := &Resolver{
		facts:         facts,
		rules:         rules,
		maxIterations: DefaultMaxIterations,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query answers q. The result holds full tuples of q's arity; a nil
// relation means no tuple satisfies q.
func (r *Resolver) Query(ctx context.Context, q ir.Literal) (*ir.Relation, error) {
	rel, _, err := r.QueryWithStats(ctx, q)
	return rel, err
}

// QueryWithStats is Query plus the work statistics of the evaluation.
func (r *Resolver) QueryWithStats(ctx context.Context, q ir.Literal) (*ir.Relation, Stats, error) {
	var stats Stats
	if q.Predicate == "" {
		return nil, stats, ir.NewError(ir.CodeInvalidTerm, "", "query predicate is required")
	}

	rel := ir.NewRelation(q)
	sig := q.Signature()

	// Relations without rules are answered straight from the fact store.
	if !r.rules.HasRules(sig) {
		for t := range r.facts.Lookup(sig, q.Args) {
			rel.Add(t)
		}
		stats.Answers = rel.Len()
		return nonEmpty(rel), stats, nil
	}

	ar := newArena()
	root, _ := ar.lookup(q)
	b := budget{limit: r.maxIterations}

	for {
		t, ok := ar.dequeue()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if !b.check() {
			return nil, stats, ir.NewError(ir.CodeIterationLimit, q.String(),
				"query exceeded %d table evaluations", r.maxIterations)
		}
		stats.Evaluations++
		if err := r.evaluate(ar, t); err != nil {
			return nil, stats, err
		}
	}

	stats.Tables = len(ar.order)
	stats.Answers = ar.answerCount()
	stats.Deliveries = ar.deliveries
	r.logger.Debug("query resolved",
		"query", q.String(),
		"tables", stats.Tables,
		"evaluations", stats.Evaluations,
		"answers", stats.Answers,
		"deliveries", stats.Deliveries)

	for _, t := range root.answers {
		rel.Add(t)
	}
	return nonEmpty(rel), stats, nil
}

func nonEmpty(rel *ir.Relation) *ir.Relation {
	if rel.Len() == 0 {
		return nil
	}
	return rel
}

// evaluate starts t on its first visit, seeding it from the fact store and
// running every rule whose head unifies with the call. It then delivers the
// answers present now to every consumer that has not seen them. Answers
// derived meanwhile are left for the next visit, so each evaluation counts
// against the budget.
func (r *Resolver) evaluate(ar *arena, t *table) error {
	ar.active = t
	defer func() { ar.active = nil }()

	if !t.started {
		t.started = true
		sig := t.call.Signature()
		for tuple := range r.facts.Lookup(sig, t.call.Args) {
			t.add(tuple)
		}
		for _, rule := range r.rules.RulesFor(sig) {
			s, ok := unifyHead(rule.Head, t.call)
			if !ok {
				continue
			}
			if err := r.runBody(ar, t, rule, []frame{{subst: s, pending: allPositions(rule)}}); err != nil {
				return err
			}
		}
	}

	limit := len(t.answers)
	for i := 0; i < len(t.consumers); i++ {
		c := t.consumers[i]
		for c.next < limit {
			answer := t.answers[c.next]
			c.next++
			ar.deliveries++
			next, matched := ir.Match(c.goal.Args, answer, c.subst)
			if !matched {
				continue
			}
			if err := r.runBody(ar, c.owner, c.rule, []frame{{subst: next, pending: c.rest}}); err != nil {
				return err
			}
		}
	}
	if t.pending() {
		ar.enqueue(t)
	}
	return nil
}

func allPositions(rule ir.Rule) []int {
	all := make([]int, len(rule.Body))
	for i := range all {
		all[i] = i
	}
	return all
}

// unifyHead binds the rule's head variables to the constants of the call.
// Variables of the call are left open; answers are checked against the call
// pattern when they are produced.
func unifyHead(head, call ir.Literal) (ir.Subst, bool) {
	s := ir.Subst{}
	if len(head.Args) != len(call.Args) {
		return s, false
	}
	for i, c := range call.Args {
		if c.IsVariable() {
			continue
		}
		h := head.Args[i]
		if h.IsConstant() {
			if h.Value() != c.Value() {
				return s, false
			}
			continue
		}
		if v, ok := s.Lookup(h.Value()); ok {
			if v != c.Value() {
				return s, false
			}
			continue
		}
		s = s.Bind(h.Value(), c.Value())
	}
	return s, true
}

// frame is one partial derivation of a rule body: the bindings so far and
// the body positions still to run.
type frame struct {
	subst   ir.Subst
	pending []int
}

// runBody runs derivations of one rule for table t until each frame either
// grounds the head, fails, or suspends on a tabled goal.
func (r *Resolver) runBody(ar *arena, t *table, rule ir.Rule, stack []frame) error {
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(f.pending) == 0 {
			tuple, err := groundHead(rule, f.subst)
			if err != nil {
				return err
			}
			// The active table re-enqueues itself once its delivery ends.
			if ir.Matches(t.call.Args, tuple) && t.add(tuple) && t != ar.active && len(t.consumers) > 0 {
				ar.enqueue(t)
			}
			continue
		}

		pos, ok := nextReadyConstraint(rule, f)
		if ok {
			c := rule.Body[f.pending[pos]].(ir.Constraint)
			next, holds, err := constraint.Evaluate(c, f.subst)
			if err != nil {
				return fmt.Errorf("rule %s: %w", rule, err)
			}
			if holds {
				stack = append(stack, frame{subst: next, pending: without(f.pending, pos)})
			}
			continue
		}

		pos, ok = nextGoal(rule, f)
		if !ok {
			return ir.NewError(ir.CodeUnboundVariable, rule.String(),
				"constraints %s cannot be evaluated: their variables are never bound", pendingString(rule, f))
		}
		goal := rule.Body[f.pending[pos]].(ir.Literal)
		rest := without(f.pending, pos)
		answers := r.answers(ar, t, rule, goal, f.subst, rest)

		// Push in reverse so derivations run in answer order.
		for i := len(answers) - 1; i >= 0; i-- {
			next, matched := ir.Match(goal.Args, answers[i], f.subst)
			if matched {
				stack = append(stack, frame{subst: next, pending: rest})
			}
		}
	}
	return nil
}

// answers returns the tuples currently known for a goal. Goals over
// relations without rules read the fact store directly. All other goals go
// through a table: the rest of the body is registered there as a consumer
// that has already seen the returned answers and resumes on later ones.
func (r *Resolver) answers(ar *arena, t *table, rule ir.Rule, goal ir.Literal, s ir.Subst, rest []int) []ir.Tuple {
	call := goal.Substitute(s)
	sig := call.Signature()
	if !r.rules.HasRules(sig) {
		return slices.Collect(r.facts.Lookup(sig, call.Args))
	}
	sub, _ := ar.lookup(call)
	known := sub.answers[:len(sub.answers):len(sub.answers)]
	sub.consumers = append(sub.consumers, &consumer{
		owner: t,
		rule:  rule,
		goal:  goal,
		subst: s,
		rest:  rest,
		next:  len(known),
	})
	return known
}

func nextReadyConstraint(rule ir.Rule, f frame) (int, bool) {
	for i, idx := range f.pending {
		c, ok := rule.Body[idx].(ir.Constraint)
		if ok && constraint.Ready(c, f.subst) {
			return i, true
		}
	}
	return 0, false
}

func nextGoal(rule ir.Rule, f frame) (int, bool) {
	for i, idx := range f.pending {
		if _, ok := rule.Body[idx].(ir.Literal); ok {
			return i, true
		}
	}
	return 0, false
}

func without(pending []int, pos int) []int {
	out := make([]int, 0, len(pending)-1)
	out = append(out, pending[:pos]...)
	return append(out, pending[pos+1:]...)
}

func groundHead(rule ir.Rule, s ir.Subst) (ir.Tuple, error) {
	tuple := make(ir.Tuple, len(rule.Head.Args))
	for i, a := range rule.Head.Args {
		v, ok := s.Resolve(a)
		if !ok {
			return nil, ir.NewError(ir.CodeUnboundVariable, rule.String(),
				"head variable %s is not bound by the body", a.Value())
		}
		tuple[i] = v
	}
	return tuple, nil
}

func pendingString(rule ir.Rule, f frame) string {
	parts := make([]string, len(f.pending))
	for i, idx := range f.pending {
		parts[i] = rule.Body[idx].String()
	}
	return fmt.Sprint(parts)
}
