package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/deduce/internal/ir"
)

// State is the read side of an engine that assertions inspect.
// Implemented by *engine.Engine.
type State interface {
	Ask(ctx context.Context, query ir.Literal) (*ir.Relation, error)
	Facts() map[ir.Signature][]ir.Tuple
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event.Statement)
		}
	}

	return buf.String()
}

// assertAnswerContains asks the query and checks the expected tuple is in
// the answer.
func assertAnswerContains(ctx context.Context, st State, assertion Assertion) error {
	query, err := ir.DecodeLiteral(normalizeYAML(assertion.Query))
	if err != nil {
		return fmt.Errorf("answer_contains: query: %w", err)
	}
	rel, err := st.Ask(ctx, query)
	if err != nil {
		return fmt.Errorf("answer_contains: ask %s: %w", query, err)
	}

	if !rel.Contains(assertion.Tuple...) {
		return &AssertionError{
			Type:     AssertAnswerContains,
			Expected: fmt.Sprintf("%s answers include %v", query, assertion.Tuple),
			Actual:   rel.String(),
		}
	}
	return nil
}

// assertAnswerCount asks the query and checks the answer size.
// A count of zero expects "no answer".
func assertAnswerCount(ctx context.Context, st State, assertion Assertion) error {
	query, err := ir.DecodeLiteral(normalizeYAML(assertion.Query))
	if err != nil {
		return fmt.Errorf("answer_count: query: %w", err)
	}
	rel, err := st.Ask(ctx, query)
	if err != nil {
		return fmt.Errorf("answer_count: ask %s: %w", query, err)
	}

	if rel.Len() != assertion.Count {
		return &AssertionError{
			Type:     AssertAnswerCount,
			Expected: fmt.Sprintf("%d tuples for %s", assertion.Count, query),
			Actual:   fmt.Sprintf("%d tuples: %s", rel.Len(), rel),
		}
	}
	return nil
}

// assertTraceOrder checks if statements appear in the specified order.
// Statements don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected statement
	positions := make(map[string]int)

	for i, event := range trace {
		for _, expected := range assertion.Statements {
			if event.Statement == expected && positions[expected] == 0 {
				positions[expected] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all statements found
	for _, stmt := range assertion.Statements {
		if positions[stmt] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all statements present: %v", assertion.Statements),
				Actual:   fmt.Sprintf("missing statement: %s", stmt),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Statements); i++ {
		prev := assertion.Statements[i-1]
		curr := assertion.Statements[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("statements in order: %v", assertion.Statements),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertFactCount checks the number of stored facts of one relation.
func assertFactCount(st State, assertion Assertion) error {
	sig := ir.Signature{Predicate: assertion.Predicate, Arity: assertion.Arity}
	count := len(st.Facts()[sig])

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertFactCount,
			Expected: fmt.Sprintf("%d facts of %s", assertion.Count, sig),
			Actual:   fmt.Sprintf("%d facts", count),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and the
// final engine state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st State) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertAnswerContains:
			err = assertAnswerContains(ctx, st, assertion)
		case AssertAnswerCount:
			err = assertAnswerCount(ctx, st, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertFactCount:
			err = assertFactCount(st, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
