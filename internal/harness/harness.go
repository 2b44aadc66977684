package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/deduce/internal/engine"
	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/store"
)

// Option configures a harness run.
type Option func(*Harness)

// WithLogger sets the logger handed to each scenario's engine.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Harness runs one scenario on a fresh engine and journal.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	engine   *engine.Engine
	recorder *recorder
	logger   *slog.Logger
}

// recorder is an engine.Journal that keeps a copy of every journaled
// statement and forwards it to the scenario's store.
type recorder struct {
	next    engine.Journal
	records []engine.Record
}

func (r *recorder) Append(engineID string, seq int64, st ir.Statement) error {
	if err := r.next.Append(engineID, seq, st); err != nil {
		return err
	}
	r.records = append(r.records, engine.Record{Seq: seq, Statement: st})
	return nil
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// fixed engine and program IDs so traces are reproducible.
//
// Execution flow:
// 1. Decode every unit's statements
// 2. Run each unit as a Program, in order, on one engine
// 3. Check ask expectations and expected unit errors
// 4. Optionally rebuild the engine from its journal and compare
// 5. Evaluate assertions against the final engine
//
// A returned error means the scenario could not be run at all; failed
// expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	programs, err := scenario.Programs()
	if err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		store:    st,
		recorder: &recorder{next: st.Journal(ctx)},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}

	ids := []string{scenario.Name}
	for i := range scenario.Units {
		ids = append(ids, scenario.unitName(i))
	}
	h.engine = engine.New(append(h.engineOptions(),
		engine.WithJournal(h.recorder),
		engine.WithIDGenerator(engine.NewFixedGenerator(ids...)),
	)...)

	result := NewResult(scenario.Name)
	for i, stmts := range programs {
		if err := h.runUnit(ctx, i, stmts, result); err != nil {
			return nil, err
		}
	}
	result.Stats = h.engine.Stats()

	if scenario.CheckReplay {
		if err := h.checkReplay(ctx, result); err != nil {
			return nil, err
		}
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, h.engine) {
		result.AddError(msg)
	}

	return result, nil
}

// engineOptions returns the scenario-level engine configuration.
func (h *Harness) engineOptions() []engine.EngineOption {
	opts := []engine.EngineOption{
		engine.WithLogger(h.logger),
		engine.WithArityCheck(h.scenario.strictArity()),
	}
	if h.scenario.MaxIterations > 0 {
		opts = append(opts, engine.WithMaxIterations(h.scenario.MaxIterations))
	}
	return opts
}

// runUnit runs one definition unit and appends its trace.
// Only context cancellation is returned as an error.
func (h *Harness) runUnit(ctx context.Context, i int, stmts []ir.Statement, result *Result) error {
	unit := h.scenario.Units[i]
	name := h.scenario.unitName(i)

	mark := len(h.recorder.records)
	res, runErr := h.engine.Run(ctx, h.engine.NewProgram(name, stmts...))
	if err := ctx.Err(); err != nil {
		return err
	}
	if res == nil {
		res = &engine.ProgramResult{}
	}

	// Mutations journaled at or before an ask's seq precede it.
	mutations := h.recorder.records[mark:]
	for _, ask := range res.Asks {
		for len(mutations) > 0 && mutations[0].Seq <= ask.Seq {
			result.AddEvent(mutationEvent(i, mutations[0]))
			mutations = mutations[1:]
		}
		result.AddEvent(askEvent(i, ask))
		if !ask.Passed() {
			result.AddError(fmt.Sprintf("unit %s statement %d: %s: %s", name, ask.Index, ask.Query, ask.Mismatch))
		}
	}
	for _, m := range mutations {
		result.AddEvent(mutationEvent(i, m))
	}

	if runErr != nil {
		ev := TraceEvent{
			Unit: i,
			Type: EventError,
			Seq:  h.engine.Stats().JournalSeq,
			Code: string(ir.CodeOf(runErr)),
		}
		if res.Applied < len(stmts) {
			ev.Statement = stmts[res.Applied].String()
		}
		result.AddEvent(ev)
	}

	switch {
	case unit.ExpectError == "" && runErr != nil:
		result.AddError(fmt.Sprintf("unit %s: %v", name, runErr))
	case unit.ExpectError != "" && runErr == nil:
		result.AddError(fmt.Sprintf("unit %s: expected error %s, unit succeeded", name, unit.ExpectError))
	case unit.ExpectError != "" && string(ir.CodeOf(runErr)) != unit.ExpectError:
		result.AddError(fmt.Sprintf("unit %s: expected error %s, got %v", name, unit.ExpectError, runErr))
	}

	h.logger.Debug("unit finished", "scenario", h.scenario.Name, "unit", name, "applied", res.Applied)
	return nil
}

// checkReplay rebuilds the engine from the journal and compares it with the
// live one.
func (h *Harness) checkReplay(ctx context.Context, result *Result) error {
	if len(h.recorder.records) == 0 {
		return nil
	}
	replayed, err := h.store.Replay(ctx, h.engine.ID(), h.engineOptions()...)
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return nil
	}

	if diff := cmp.Diff(h.engine.Facts(), replayed.Facts()); diff != "" {
		result.AddError(fmt.Sprintf("replay: facts differ (-live +replayed):\n%s", diff))
	}
	if live, again := ruleStrings(h.engine.Rules()), ruleStrings(replayed.Rules()); !cmp.Equal(live, again) {
		result.AddError(fmt.Sprintf("replay: rules differ (-live +replayed):\n%s", cmp.Diff(live, again)))
	}
	if live, again := h.engine.Stats(), replayed.Stats(); live != again {
		result.AddError(fmt.Sprintf("replay: stats differ: live %+v, replayed %+v", live, again))
	}
	return nil
}

func ruleStrings(rules []ir.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.String()
	}
	return out
}

func mutationEvent(unit int, rec engine.Record) TraceEvent {
	return TraceEvent{
		Unit:      unit,
		Type:      string(rec.Statement.Kind),
		Statement: rec.Statement.String(),
		Seq:       rec.Seq,
	}
}

func askEvent(unit int, ask engine.AskResult) TraceEvent {
	return TraceEvent{
		Unit:      unit,
		Type:      string(ir.StmtAsk),
		Statement: ir.AskStatement(ask.Query, nil).String(),
		Seq:       ask.Seq,
		Answered:  ask.Relation != nil,
		Tuples:    ask.Relation.Strings(),
		Mismatch:  ask.Mismatch,
	}
}

// RunAll runs scenarios concurrently, at most parallel at a time, one engine
// per scenario. Results are in input order. The first scenario that cannot
// be run cancels the rest.
func RunAll(ctx context.Context, scenarios []*Scenario, parallel int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			res, err := Run(gctx, s, opts...)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary renders a one-line pass/fail count.
func Summary(results []*Result) string {
	passed := 0
	var failed []string
	for _, r := range results {
		if r.Pass {
			passed++
		} else {
			failed = append(failed, r.Name)
		}
	}
	if len(failed) == 0 {
		return fmt.Sprintf("%d passed", passed)
	}
	return fmt.Sprintf("%d passed, %d failed: %s", passed, len(failed), strings.Join(failed, ", "))
}
