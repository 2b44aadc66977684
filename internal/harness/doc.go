// Package harness provides conformance testing for deduce programs.
//
// The harness loads YAML scenarios, runs each definition unit as a Program
// on one engine per scenario, checks every ask expectation and the
// scenario's assertions, and produces a deterministic trace for golden
// snapshot comparison.
//
// # Scenario Format
//
//	name: ancestors
//	description: "Transitive closure over parent facts"
//	max_iterations: 10000      # optional, per query
//	strict_arity: true         # optional, default true
//	check_replay: true         # optional, rebuild from the journal and compare
//	units:
//	  - name: facts
//	    statements:
//	      - assert: [parent, alice, bob]
//	      - rule: {head: [anc, X, Y], body: [[parent, X, Y]]}
//	      - ask: [anc, alice, Y]
//	        expect: [[alice, bob]]
//	  - statements:
//	      - assert: [p, X]
//	    expect_error: NON_GROUND_FACT
//	assertions:
//	  - type: answer_contains
//	    query: [anc, alice, Y]
//	    tuple: [alice, bob]
//
// Statements use the structured form documented in package ir.
//
// # Assertion Types
//
//   - answer_contains: the query's answer contains tuple
//   - answer_count: the query's answer has exactly count tuples (0 = no answer)
//   - trace_order: the statements appear in the trace in the given order
//   - fact_count: the stored relation predicate/arity has count facts
//
// # Deterministic Testing
//
// Every scenario runs on a fresh engine with fixed engine and program IDs
// and its own in-memory journal, so traces are identical across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/ancestors.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
