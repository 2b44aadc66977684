package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/deduce/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern on the scenario name)
	Parallel int    // scenarios run at once
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "mismatch"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML test scenarios, each on a fresh engine.

A scenario passes when every ask expectation, expected unit error and
assertion holds. When <scenarios-dir>/golden/<name>.golden exists, the
scenario's canonical trace must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario, etc.)

Examples:
  deduce test ./testdata/scenarios
  deduce test ./testdata/scenarios --filter "arith*"
  deduce test ./testdata/scenarios --update
  deduce test ./testdata/scenarios --parallel 8 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 4, "number of scenarios to run at once")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	all, err := harness.LoadDir(scenariosDir)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	scenarios, err := filterScenarios(all, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	if len(scenarios) == 0 {
		if formatter.IsJSON() {
			return formatter.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	results, err := harness.RunAll(ctx, scenarios, opts.Parallel, harness.WithLogger(opts.Logger()))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(results)),
		Total:     len(results),
	}
	goldenDir := filepath.Join(scenariosDir, "golden")
	for _, r := range results {
		sr := checkScenario(r, goldenDir, opts.Update)
		if !formatter.IsJSON() {
			outputScenarioText(formatter, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.IsJSON() {
		if result.Failed > 0 {
			_ = formatter.Failure(result, "E_TEST_FAILED", fmt.Sprintf("%d scenario(s) failed", result.Failed))
			return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
		}
		return formatter.Success(result)
	}
	return outputTestText(formatter, result)
}

// filterScenarios keeps the scenarios whose name matches the glob.
func filterScenarios(scenarios []*harness.Scenario, filter string) ([]*harness.Scenario, error) {
	if filter == "" {
		return scenarios, nil
	}
	var out []*harness.Scenario
	for _, s := range scenarios {
		matched, err := filepath.Match(filter, s.Name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, s)
		}
	}
	return out, nil
}

// checkScenario combines the harness verdict with the golden comparison.
func checkScenario(r *harness.Result, goldenDir string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: r.Name, Pass: r.Pass, Errors: r.Errors}

	data, err := harness.MarshalTrace(r)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return sr
	}

	goldenPath := filepath.Join(goldenDir, r.Name+".golden")
	if update {
		if err := writeGolden(goldenPath, data); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, err.Error())
			return sr
		}
		sr.Golden = "updated"
		return sr
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return sr
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return sr
	}
	if !bytes.Equal(want, data) {
		sr.Pass = false
		sr.Golden = "mismatch"
		sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
		return sr
	}
	sr.Golden = "match"
	return sr
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func outputScenarioText(formatter *OutputFormatter, sr ScenarioResult) {
	w := formatter.Writer
	if sr.Pass {
		if sr.Golden == "updated" {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
			return
		}
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestText outputs the test result summary as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
