package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/deduce/internal/engine"
	"github.com/roach88/deduce/internal/ir"
	"github.com/roach88/deduce/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database      string
	MaxIterations int
	StrictArity   bool

	// IDs overrides the engine and program ID generator (for testing).
	// If nil, the engine uses UUIDv7.
	IDs engine.IDGenerator
}

// UnitReport summarizes one definition unit run.
type UnitReport struct {
	Name      string `json:"name"`
	ProgramID string `json:"program_id"`
	Applied   int    `json:"applied"`
	Changed   int    `json:"changed"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AskReport is the answer to one ask statement.
type AskReport struct {
	Unit      string     `json:"unit"`
	Statement string     `json:"statement"`
	Seq       int64      `json:"seq"`
	Answered  bool       `json:"answered"`
	Tuples    [][]string `json:"tuples,omitempty"`
	Mismatch  string     `json:"mismatch,omitempty"`
}

// RunResult holds the outcome of running every unit of the loaded programs.
type RunResult struct {
	EngineID string       `json:"engine_id"`
	Units    []UnitReport `json:"units"`
	Asks     []AskReport  `json:"asks"`
	Failures int          `json:"failures"`
	Stats    engine.Stats `json:"stats"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file-or-dir>",
		Short: "Run CUE programs on one engine",
		Long: `Run the units of one or more CUE program files, in order, on a single
engine and print the answer to every ask.

With --db, every effective mutation is journaled to a SQLite database
(created if missing) together with a summary row per unit; "deduce replay"
rebuilds the engine from it later.

A file's max_iterations and strict_arity apply unless the matching flag is
set explicitly.

Exit codes:
  0 - Every unit ran and every expectation held
  1 - A unit failed or an expectation did not hold
  2 - Command error (missing file, unreadable database)

Examples:
  deduce run ./ancestors.cue
  deduce run --db ./family.db ./programs
  deduce run --format json --max-iterations 1000 ./chain.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrograms(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal mutations to this SQLite database")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 0, "per-query evaluation budget (0 = engine default)")
	cmd.Flags().BoolVar(&opts.StrictArity, "strict-arity", true, "reject predicates used with more than one arity")

	return cmd
}

func runPrograms(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger()

	loaded, err := LoadPrograms(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	logger.Info("programs compiled", "path", path, "files", loaded.FileCount)

	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithArityCheck(opts.strictArity(cmd, loaded)),
	}
	if n := opts.maxIterations(cmd, loaded); n > 0 {
		engineOpts = append(engineOpts, engine.WithMaxIterations(n))
	}
	if opts.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDs))
	}

	var st *store.Store
	var eng *engine.Engine
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		eng = st.NewEngine(ctx, engineOpts...)
	} else {
		eng = engine.New(engineOpts...)
	}

	result := RunResult{EngineID: eng.ID(), Units: []UnitReport{}, Asks: []AskReport{}}
	var runErr error
	for _, p := range loaded.Programs {
		for _, unit := range p.Units {
			report, asks, res, err := runUnit(ctx, eng, unit.Name, unit.Statements)
			result.Units = append(result.Units, report)
			result.Asks = append(result.Asks, asks...)
			for _, a := range asks {
				if a.Mismatch != "" {
					result.Failures++
				}
			}
			if st != nil && res != nil {
				if werr := st.WriteProgram(ctx, eng.ID(), res, eng.Stats().JournalSeq); werr != nil {
					logger.Error("failed to record program", "program", report.Name, "error", werr)
				}
			}
			if err != nil {
				runErr = err
				break
			}
		}
		if runErr != nil {
			break
		}
	}
	result.Stats = eng.Stats()

	if errors.Is(runErr, context.Canceled) {
		return WrapExitError(ExitCommandError, "run cancelled", runErr)
	}

	if formatter.IsJSON() {
		switch {
		case runErr != nil:
			_ = formatter.Failure(result, codeOf(runErr), runErr.Error())
		case result.Failures > 0:
			_ = formatter.Failure(result, "E_EXPECTATION", fmt.Sprintf("%d expectation(s) failed", result.Failures))
		default:
			return formatter.Success(result)
		}
	} else {
		outputRunText(formatter, result, runErr)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "program failed", runErr)
	}
	if result.Failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d expectation(s) failed", result.Failures))
	}
	return nil
}

// runUnit runs one unit as a Program and reports its asks.
func runUnit(ctx context.Context, eng *engine.Engine, name string, stmts []ir.Statement) (UnitReport, []AskReport, *engine.ProgramResult, error) {
	prog := eng.NewProgram(name, stmts...)
	report := UnitReport{Name: name, ProgramID: prog.ID()}

	res, err := eng.Run(ctx, prog)
	var asks []AskReport
	if res != nil {
		report.Applied = res.Applied
		report.Changed = res.Changed
		for _, a := range res.Asks {
			asks = append(asks, AskReport{
				Unit:      name,
				Statement: ir.AskStatement(a.Query, nil).String(),
				Seq:       a.Seq,
				Answered:  a.Relation != nil,
				Tuples:    a.Relation.Strings(),
				Mismatch:  a.Mismatch,
			})
		}
	}
	if err != nil {
		report.Code = codeOf(err)
		report.Error = err.Error()
	}
	return report, asks, res, err
}

func outputRunText(formatter *OutputFormatter, result RunResult, runErr error) {
	w := formatter.Writer
	for _, a := range result.Asks {
		answer := "<no answer>"
		if a.Answered {
			answer = formatTuples(a.Tuples)
		}
		fmt.Fprintf(w, "%s\n  %s\n", a.Statement, answer)
		if a.Mismatch != "" {
			fmt.Fprintf(w, "  ✗ %s\n", a.Mismatch)
		}
	}
	formatter.VerboseLog("engine %s: %d unit(s)", result.EngineID, len(result.Units))
	for _, u := range result.Units {
		formatter.VerboseLog("  %s: %d applied, %d changed", u.Name, u.Applied, u.Changed)
	}

	if runErr != nil {
		fmt.Fprintf(w, "✗ %v\n", runErr)
	}
	fmt.Fprintf(w, "%d fact(s), %d rule(s), %d relation(s)\n",
		result.Stats.Facts, result.Stats.Rules, result.Stats.Relations)
}

// formatTuples renders answer tuples as "{(a, b), (c, d)}".
func formatTuples(tuples [][]string) string {
	parts := make([]string, len(tuples))
	for i, t := range tuples {
		parts[i] = "(" + strings.Join(t, ", ") + ")"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// strictArity resolves the arity check: an explicit flag wins, then the
// first file that sets strict_arity, then the flag default.
func (o *RunOptions) strictArity(cmd *cobra.Command, loaded *LoadResult) bool {
	if cmd.Flags().Changed("strict-arity") {
		return o.StrictArity
	}
	for _, p := range loaded.Programs {
		if p.StrictArity != nil {
			return *p.StrictArity
		}
	}
	return o.StrictArity
}

// maxIterations resolves the evaluation budget the same way.
func (o *RunOptions) maxIterations(cmd *cobra.Command, loaded *LoadResult) int {
	if cmd.Flags().Changed("max-iterations") {
		return o.MaxIterations
	}
	for _, p := range loaded.Programs {
		if p.MaxIterations > 0 {
			return p.MaxIterations
		}
	}
	return o.MaxIterations
}

// commandContext returns the command's context, or Background when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// codeOf returns the engine error code of err, or E001.
func codeOf(err error) string {
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}
