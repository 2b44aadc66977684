package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/queryir"
	"github.com/roach88/deduce/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	EngineID  string
	Predicate string   // optional - "name/arity" filter
	Match     string   // optional - structured literal as JSON
	Kinds     []string // optional - statement kinds to keep
}

// TraceEvent is one journaled statement in the timeline.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	Statement string `json:"statement"`
	Hash      string `json:"hash"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	EngineID string                 `json:"engine_id"`
	Timeline []TraceEvent           `json:"timeline"`
	Programs []store.ProgramSummary `json:"programs"`
	Stats    TraceStats             `json:"stats"`
}

// TraceStats counts the timeline by statement kind.
type TraceStats struct {
	TotalEvents  int `json:"total_events"`
	Asserts      int `json:"asserts"`
	Retracts     int `json:"retracts"`
	Rules        int `json:"rules"`
	RetractRules int `json:"retract_rules"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show an engine's journal",
		Long: `Show the journaled mutations of one engine in seq order, with the
definition units that produced them.

--engine may be omitted when the database holds a single engine.

--match keeps the facts that unify with a structured literal and the rules
whose head could derive one. --kind keeps only the listed statement kinds.

Examples:
  deduce trace --db ./family.db
  deduce trace --db ./family.db --engine 0190a1b2-... --predicate parent/2
  deduce trace --db ./family.db --match '["parent", "bill", "X"]'
  deduce trace --db ./family.db --kind rule --kind retract_rule
  deduce trace --db ./family.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.EngineID, "engine", "", "engine to trace")
	cmd.Flags().StringVar(&opts.Predicate, "predicate", "", "filter to one relation, e.g. parent/2")
	cmd.Flags().StringVar(&opts.Match, "match", "", `filter to statements about a literal, e.g. '["parent", "bill", "X"]'`)
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "filter to statement kinds (assert, retract, rule, retract_rule)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	filter, err := parseTraceFilter(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeBadQuery, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid trace filter", err)
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	engineID := opts.EngineID
	if engineID == "" {
		summaries, err := st.Engines(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list engines", err)
		}
		if len(summaries) != 1 {
			msg := fmt.Sprintf("database holds %d engines; choose one with --engine", len(summaries))
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		engineID = summaries[0].EngineID
	}

	records, err := filter.read(ctx, st, engineID)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	programs, err := st.ReadPrograms(ctx, engineID)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read programs", err)
	}

	result := TraceResult{
		EngineID: engineID,
		Timeline: buildTimeline(records),
		Programs: programs,
	}
	result.Stats = traceStats(result.Timeline)

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

// traceFilter is the parsed form of the trace filter flags.
type traceFilter struct {
	sig   *ir.Signature
	match *ir.Literal
	kinds []ir.StatementKind
}

func parseTraceFilter(opts *TraceOptions) (traceFilter, error) {
	var f traceFilter
	if opts.Predicate != "" && opts.Match != "" {
		return f, fmt.Errorf("--predicate and --match cannot be combined")
	}
	if opts.Predicate != "" {
		sig, err := parseSignature(opts.Predicate)
		if err != nil {
			return f, err
		}
		f.sig = &sig
	}
	if opts.Match != "" {
		lit, err := ir.UnmarshalLiteralJSON([]byte(opts.Match))
		if err != nil {
			return f, fmt.Errorf("--match: %w", err)
		}
		f.match = &lit
	}
	for _, k := range opts.Kinds {
		kind := ir.StatementKind(k)
		if !ir.ValidStatementKinds[kind] || kind == ir.StmtAsk {
			return f, fmt.Errorf("--kind %q is not a journaled statement kind", k)
		}
		f.kinds = append(f.kinds, kind)
	}
	return f, nil
}

// read selects the engine's journal rows through the narrowest store call.
func (f traceFilter) read(ctx context.Context, st *store.Store, engineID string) ([]store.Record, error) {
	switch {
	case f.match != nil:
		records, err := st.ReadMatching(ctx, engineID, *f.match)
		if err != nil || len(f.kinds) == 0 {
			return records, err
		}
		return slices.DeleteFunc(records, func(r store.Record) bool {
			return !slices.Contains(f.kinds, r.Statement.Kind)
		}), nil
	case len(f.kinds) > 0:
		preds := []queryir.Predicate{
			queryir.Equals{Column: queryir.ColEngineID, Value: engineID},
			queryir.KindIn{Kinds: f.kinds},
		}
		if f.sig != nil {
			preds = append(preds,
				queryir.Equals{Column: queryir.ColPredicate, Value: f.sig.Predicate},
				queryir.Equals{Column: queryir.ColArity, Value: f.sig.Arity})
		}
		return st.ReadQuery(ctx, queryir.Select{Filter: queryir.And{Predicates: preds}})
	case f.sig != nil:
		return st.ReadSignature(ctx, engineID, *f.sig)
	default:
		return st.ReadStatements(ctx, engineID)
	}
}

// parseSignature parses "name/arity".
func parseSignature(s string) (ir.Signature, error) {
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return ir.Signature{}, fmt.Errorf("predicate %q must be name/arity", s)
	}
	arity, err := strconv.Atoi(s[i+1:])
	if err != nil || arity < 0 {
		return ir.Signature{}, fmt.Errorf("predicate %q: arity must be a non-negative integer", s)
	}
	return ir.Signature{Predicate: s[:i], Arity: arity}, nil
}

// buildTimeline converts journal records to timeline events.
func buildTimeline(records []store.Record) []TraceEvent {
	timeline := make([]TraceEvent, len(records))
	for i, r := range records {
		timeline[i] = TraceEvent{
			Seq:       r.Seq,
			Kind:      string(r.Statement.Kind),
			Statement: r.Statement.String(),
			Hash:      r.Hash,
		}
	}
	return timeline
}

func traceStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(timeline)}
	for _, ev := range timeline {
		switch ir.StatementKind(ev.Kind) {
		case ir.StmtAssert:
			stats.Asserts++
		case ir.StmtRetract:
			stats.Retracts++
		case ir.StmtRule:
			stats.Rules++
		case ir.StmtRetractRule:
			stats.RetractRules++
		}
	}
	return stats
}

// outputTraceText outputs the trace as text.
func outputTraceText(formatter *OutputFormatter, result TraceResult) {
	w := formatter.Writer

	fmt.Fprintf(w, "Engine: %s\n\n", result.EngineID)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No journaled statements.")
	}
	for _, ev := range result.Timeline {
		if formatter.Verbose {
			fmt.Fprintf(w, "[%4d] %s  %s\n", ev.Seq, ev.Hash[:min(12, len(ev.Hash))], ev.Statement)
			continue
		}
		fmt.Fprintf(w, "[%4d] %s\n", ev.Seq, ev.Statement)
	}

	if len(result.Programs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Units:")
		for _, p := range result.Programs {
			fmt.Fprintf(w, "  %s: %d applied, %d changed, %d failed expectation(s), through seq %d\n",
				p.Name, p.Applied, p.Changed, p.Failures, p.LastSeq)
		}
	}

	fmt.Fprintf(w, "\nStats: %d event(s): %d assert, %d retract, %d rule, %d retract_rule\n",
		result.Stats.TotalEvents, result.Stats.Asserts, result.Stats.Retracts,
		result.Stats.Rules, result.Stats.RetractRules)
}
