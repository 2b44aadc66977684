package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/deduce/internal/compiler"
	"github.com/roach88/deduce/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Programs   int `json:"programs"`
	Units      int `json:"units"`
	Statements int `json:"statements"`
	Rules      int `json:"rules"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file-or-dir>",
		Short: "Compile CUE programs to canonical statement JSON",
		Long: `Compile CUE program files to canonical JSON.

Every statement is emitted in structured form together with its content ID,
the same ID the journal stores. Output goes to stdout unless --output is set.

Examples:
  deduce compile ./ancestors.cue
  deduce compile ./programs -o programs.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := LoadPrograms(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Compiled %d file(s) from %s", loaded.FileCount, path)

	doc, stats, err := canonicalPrograms(loaded.Programs)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to encode programs", err)
	}
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to marshal programs", err)
	}

	if opts.Output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if formatter.IsJSON() {
		return formatter.Success(stats)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Compiled %d program(s), %d unit(s), %d statement(s), %d rule(s) to %s\n",
		stats.Programs, stats.Units, stats.Statements, stats.Rules, opts.Output)
	return nil
}

// canonicalPrograms converts programs to the plain-value form
// ir.MarshalCanonical accepts.
func canonicalPrograms(programs []*compiler.Program) (map[string]any, CompilationStats, error) {
	var stats CompilationStats
	out := make([]any, len(programs))
	for i, p := range programs {
		stats.Programs++
		units := make([]any, len(p.Units))
		for j, u := range p.Units {
			stats.Units++
			stmts := make([]any, len(u.Statements))
			for k, st := range u.Statements {
				stats.Statements++
				if st.Kind == ir.StmtRule {
					stats.Rules++
				}
				id, err := ir.StatementID(st)
				if err != nil {
					return nil, stats, fmt.Errorf("%s: %w", st, err)
				}
				stmts[k] = map[string]any{
					"id":        id,
					"statement": ir.EncodeStatement(st),
				}
			}
			units[j] = map[string]any{
				"name":       u.Name,
				"statements": stmts,
			}
		}
		prog := map[string]any{
			"name":  p.Name,
			"units": units,
		}
		if p.MaxIterations > 0 {
			prog["max_iterations"] = p.MaxIterations
		}
		if p.StrictArity != nil {
			prog["strict_arity"] = *p.StrictArity
		}
		out[i] = prog
	}
	return map[string]any{"programs": out}, stats, nil
}

// outputLoadError reports a LoadPrograms failure. A missing path is a
// command error; a program that does not compile is a failure.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load programs", err)
	}

	var details any
	if loadErr.Pos.IsValid() {
		details = map[string]any{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		}
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, details)

	switch loadErr.Code {
	case ErrCodeNotFound, ErrCodeScanError, ErrCodeNoFiles, ErrCodeLoadFailed:
		return WrapExitError(ExitCommandError, "failed to load programs", err)
	default:
		return WrapExitError(ExitFailure, "failed to compile programs", err)
	}
}
