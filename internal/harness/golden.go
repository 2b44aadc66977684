package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/deduce/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Pass         bool
	Trace        []TraceEvent
	Errors       []string
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles plain values.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"unit":      event.Unit,
			"type":      event.Type,
			"statement": event.Statement,
			"seq":       event.Seq,
		}
		if event.Type == string(ir.StmtAsk) {
			eventMap["answered"] = event.Answered
			if event.Answered {
				tuples := make([]any, len(event.Tuples))
				for j, t := range event.Tuples {
					tuples[j] = t
				}
				eventMap["tuples"] = tuples
			}
		}
		if event.Mismatch != "" {
			eventMap["mismatch"] = event.Mismatch
		}
		if event.Code != "" {
			eventMap["code"] = event.Code
		}
		traceList[i] = eventMap
	}

	errs := make([]any, len(s.Errors))
	for i, e := range s.Errors {
		errs[i] = e
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"pass":          s.Pass,
		"trace":         traceList,
		"errors":        errs,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: result.Name,
		Pass:         result.Pass,
		Trace:        result.Trace,
		Errors:       result.Errors,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)

	return nil
}
