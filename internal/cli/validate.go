package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/deduce/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	StrictArity bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Files     int                        `json:"files"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
	Recursion []compiler.RecursionReport `json:"recursion,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file-or-dir>",
		Short: "Check programs without running them",
		Long: `Compile CUE program files and check them statically.

Reports non-ground facts, unsafe rules, constraint variables nothing can
bind, expectation widths and (with strict arity) predicates used with two
arities. Recursive predicate groups are listed for information; groups that
derive values through arithmetic are flagged as warnings.

A file's strict_arity setting overrides --strict-arity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.StrictArity, "strict-arity", true, "report predicates used with more than one arity")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := LoadPrograms(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, path)

	result := ValidationResult{Files: loaded.FileCount}
	for i, p := range loaded.Programs {
		strict := opts.StrictArity
		if p.StrictArity != nil {
			strict = *p.StrictArity
		}
		formatter.VerboseLog("Validating %s (%d unit(s))", loaded.Files[i], len(p.Units))
		for _, e := range compiler.Validate(p, strict) {
			e.Field = loaded.Files[i] + ": " + e.Field
			result.Errors = append(result.Errors, e)
		}
	}
	result.Recursion = compiler.AnalyzeRecursion(compiler.RulesOf(loaded.Statements()))
	result.Valid = len(result.Errors) == 0

	if formatter.IsJSON() {
		if !result.Valid {
			_ = formatter.Failure(result, result.Errors[0].Code, result.Errors[0].Message)
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
		}
		return formatter.Success(result)
	}
	return outputValidationText(formatter, result)
}

func outputValidationText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer

	for _, r := range result.Recursion {
		fmt.Fprintf(w, "%s: %s\n", r.Level, r.Message)
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ All programs valid")
		return nil
	}

	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
