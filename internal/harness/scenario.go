package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/deduce/internal/ir"
)

// Scenario defines a conformance test scenario: definition units that run
// in order on one engine, plus assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxIterations overrides the per-query evaluation budget when > 0.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// StrictArity enforces one arity per predicate. Nil means true.
	StrictArity *bool `yaml:"strict_arity,omitempty"`

	// CheckReplay rebuilds the engine from its journal after the last unit
	// and requires identical facts, rules and answers.
	CheckReplay bool `yaml:"check_replay,omitempty"`

	// Units run in order; each becomes one Program.
	Units []UnitStep `yaml:"units"`

	// Assertions validate the trace and final state.
	// Supported types: answer_contains, answer_count, trace_order, fact_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// UnitStep is one definition unit.
type UnitStep struct {
	// Name labels the unit in the trace; defaults to "<scenario>#<index>".
	Name string `yaml:"name,omitempty"`

	// Statements in structured form (see package ir).
	Statements []any `yaml:"statements"`

	// ExpectError is the error code the unit must stop with, e.g.
	// ARITY_MISMATCH. Empty means the unit must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "answer_contains": Check the query's answer contains Tuple
	// - "answer_count": Check the query's answer has exactly Count tuples
	// - "trace_order": Check Statements appear in order in the trace
	// - "fact_count": Check Predicate/Arity holds exactly Count facts
	Type string `yaml:"type"`

	// Query is a structured literal (used by answer_contains, answer_count).
	Query []any `yaml:"query,omitempty"`

	// Tuple is the expected tuple (used by answer_contains).
	Tuple []any `yaml:"tuple,omitempty"`

	// Count is the expected size (used by answer_count, fact_count).
	Count int `yaml:"count,omitempty"`

	// Statements are rendered statements such as "+ parent(alice, bob)"
	// (used by trace_order).
	Statements []string `yaml:"statements,omitempty"`

	// Predicate and Arity name a stored relation (used by fact_count).
	Predicate string `yaml:"predicate,omitempty"`
	Arity     int    `yaml:"arity,omitempty"`
}

// Assertion type constants.
const (
	AssertAnswerContains = "answer_contains"
	AssertAnswerCount    = "answer_count"
	AssertTraceOrder     = "trace_order"
	AssertFactCount      = "fact_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml / *.yml scenario under dir, sorted by path.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Programs decodes the units' statements.
func (s *Scenario) Programs() ([][]ir.Statement, error) {
	out := make([][]ir.Statement, len(s.Units))
	for i, u := range s.Units {
		stmts := make([]ir.Statement, len(u.Statements))
		for j, raw := range u.Statements {
			st, err := ir.DecodeStatement(normalizeYAML(raw))
			if err != nil {
				return nil, fmt.Errorf("units[%d].statements[%d]: %w", i, j, err)
			}
			stmts[j] = st
		}
		out[i] = stmts
	}
	return out, nil
}

// strictArity resolves the StrictArity default.
func (s *Scenario) strictArity() bool {
	return s.StrictArity == nil || *s.StrictArity
}

// unitName returns the display name of unit i.
func (s *Scenario) unitName(i int) string {
	if s.Units[i].Name != "" {
		return s.Units[i].Name
	}
	return fmt.Sprintf("%s#%d", s.Name, i)
}

// normalizeYAML converts yaml.v3 generic values into the shapes the
// structured decoder accepts.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeYAML(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeYAML(e)
		}
		return out
	default:
		return v
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Units) == 0 {
		return fmt.Errorf("units list is required and must be non-empty")
	}

	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}

	for i, u := range s.Units {
		if len(u.Statements) == 0 {
			return fmt.Errorf("units[%d]: statements list is required and must be non-empty", i)
		}
	}

	// Decode statements now so a malformed scenario fails at load time
	if _, err := s.Programs(); err != nil {
		return err
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAnswerContains:
		if len(a.Query) == 0 {
			return fmt.Errorf("assertions[%d]: query is required for answer_contains", index)
		}
		if len(a.Tuple) == 0 {
			return fmt.Errorf("assertions[%d]: tuple is required for answer_contains", index)
		}
	case AssertAnswerCount:
		if len(a.Query) == 0 {
			return fmt.Errorf("assertions[%d]: query is required for answer_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for answer_count", index)
		}
	case AssertTraceOrder:
		if len(a.Statements) == 0 {
			return fmt.Errorf("assertions[%d]: statements list is required for trace_order", index)
		}
	case AssertFactCount:
		if a.Predicate == "" {
			return fmt.Errorf("assertions[%d]: predicate is required for fact_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fact_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if len(a.Query) > 0 {
		if _, err := ir.DecodeLiteral(normalizeYAML(a.Query)); err != nil {
			return fmt.Errorf("assertions[%d]: query: %w", index, err)
		}
	}

	return nil
}
