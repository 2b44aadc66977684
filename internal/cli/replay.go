package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/deduce/internal/engine"
	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database    string
	EngineID    string // optional - specific engine only
	Ask         string // optional - structured literal as JSON
	StrictArity bool
}

// ReplayEngineResult holds the replay result for a single engine.
type ReplayEngineResult struct {
	EngineID      string       `json:"engine_id"`
	Statements    int          `json:"statements"`
	LastSeq       int64        `json:"last_seq"`
	Stats         engine.Stats `json:"stats"`
	Deterministic bool         `json:"deterministic"`
	Diff          string       `json:"diff,omitempty"`
	Answer        *AskReport   `json:"answer,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Engines          []ReplayEngineResult `json:"engines"`
	TotalEngines     int                  `json:"total_engines"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild engines from a journal and verify determinism",
		Long: `Rebuild engines from the journal written by "deduce run --db".

Each engine is replayed twice; the two rebuilt engines must hold the same
facts, rules and journal position. With --ask, the query is answered against
the rebuilt engine.

Exit codes:
  0 - All engines are deterministic
  1 - Determinism verification failed, or the query failed
  2 - Command error (database not found, unknown engine, bad query)

Examples:
  deduce replay --db ./family.db
  deduce replay --db ./family.db --engine 0190a1b2-...
  deduce replay --db ./family.db --ask '["ancestor", "bill", "X"]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.EngineID, "engine", "", "replay specific engine only")
	cmd.Flags().StringVar(&opts.Ask, "ask", "", `query to answer after replay, e.g. '["p", "X"]'`)
	cmd.Flags().BoolVar(&opts.StrictArity, "strict-arity", true, "reject predicates used with more than one arity")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var query *ir.Literal
	if opts.Ask != "" {
		q, err := ir.UnmarshalLiteralJSON([]byte(opts.Ask))
		if err != nil {
			_ = formatter.Error(ErrCodeBadQuery, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --ask query", err)
		}
		query = &q
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var engineIDs []string
	if opts.EngineID != "" {
		engineIDs = []string{opts.EngineID}
	} else {
		summaries, err := st.Engines(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list engines", err)
		}
		for _, s := range summaries {
			engineIDs = append(engineIDs, s.EngineID)
		}
	}

	result := ReplayResult{
		Engines:          make([]ReplayEngineResult, 0, len(engineIDs)),
		TotalEngines:     len(engineIDs),
		AllDeterministic: true,
	}

	var askErr error
	for _, id := range engineIDs {
		er, err := replayAndVerify(ctx, st, id, opts)
		if err != nil {
			if errors.Is(err, store.ErrEngineNotFound) {
				_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
				return WrapExitError(ExitCommandError, "unknown engine", err)
			}
			_ = formatter.Error(codeOf(err), err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to replay engine %s", id), err)
		}
		if query != nil {
			er.Answer, err = askReplayed(ctx, st, id, opts, *query)
			if err != nil && askErr == nil {
				askErr = err
			}
		}
		result.Engines = append(result.Engines, er)
		if !er.Deterministic {
			result.AllDeterministic = false
		}
	}

	if formatter.IsJSON() {
		switch {
		case askErr != nil:
			_ = formatter.Failure(result, codeOf(askErr), askErr.Error())
		case !result.AllDeterministic:
			_ = formatter.Failure(result, "E_DETERMINISM", "determinism verification failed")
		default:
			return formatter.Success(result)
		}
	} else {
		outputReplayText(formatter, result, askErr)
	}

	if askErr != nil {
		return WrapExitError(ExitFailure, "query failed", askErr)
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// openJournal opens an existing journal database. Unlike store.Open it does
// not create a missing file.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}
	return store.Open(path)
}

// replayAndVerify rebuilds an engine twice and compares the two.
func replayAndVerify(ctx context.Context, st *store.Store, engineID string, opts *ReplayOptions) (ReplayEngineResult, error) {
	engineOpts := []engine.EngineOption{
		engine.WithLogger(opts.Logger()),
		engine.WithArityCheck(opts.StrictArity),
	}

	first, err := st.Replay(ctx, engineID, engineOpts...)
	if err != nil {
		return ReplayEngineResult{}, err
	}
	second, err := st.Replay(ctx, engineID, engineOpts...)
	if err != nil {
		return ReplayEngineResult{}, fmt.Errorf("second replay failed: %w", err)
	}

	records, err := st.ReadStatements(ctx, engineID)
	if err != nil {
		return ReplayEngineResult{}, err
	}

	diff := cmp.Diff(first.Facts(), second.Facts())
	if first.Stats() != second.Stats() {
		diff += fmt.Sprintf("stats: %+v != %+v\n", first.Stats(), second.Stats())
	}

	return ReplayEngineResult{
		EngineID:      engineID,
		Statements:    len(records),
		LastSeq:       first.Stats().JournalSeq,
		Stats:         first.Stats(),
		Deterministic: diff == "",
		Diff:          diff,
	}, nil
}

// askReplayed answers query on a freshly replayed engine.
func askReplayed(ctx context.Context, st *store.Store, engineID string, opts *ReplayOptions, query ir.Literal) (*AskReport, error) {
	eng, err := st.Replay(ctx, engineID,
		engine.WithLogger(opts.Logger()),
		engine.WithArityCheck(opts.StrictArity),
	)
	if err != nil {
		return nil, err
	}
	rel, err := eng.Ask(ctx, query)
	if err != nil {
		return nil, err
	}
	return &AskReport{
		Statement: ir.AskStatement(query, nil).String(),
		Seq:       eng.Stats().JournalSeq,
		Answered:  rel != nil,
		Tuples:    rel.Strings(),
	}, nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult, askErr error) {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d engine(s)\n", result.TotalEngines)
	fmt.Fprintln(w)

	for _, e := range result.Engines {
		status := "✓"
		if !e.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Engine: %s\n", status, e.EngineID)
		fmt.Fprintf(w, "  Statements: %d (last seq %d)\n", e.Statements, e.LastSeq)
		if formatter.Verbose {
			fmt.Fprintf(w, "  Facts: %d\n", e.Stats.Facts)
			fmt.Fprintf(w, "  Rules: %d\n", e.Stats.Rules)
			fmt.Fprintf(w, "  Relations: %d\n", e.Stats.Relations)
		}
		if !e.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
			fmt.Fprintln(w, e.Diff)
		}
		if e.Answer != nil {
			answer := "<no answer>"
			if e.Answer.Answered {
				answer = formatTuples(e.Answer.Tuples)
			}
			fmt.Fprintf(w, "  %s\n    %s\n", e.Answer.Statement, answer)
		}
		fmt.Fprintln(w)
	}

	if askErr != nil {
		fmt.Fprintf(w, "✗ Query failed: %v\n", askErr)
		return
	}
	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All engines verified deterministic")
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
}
