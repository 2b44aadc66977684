package harness

import "github.com/roach88/deduce/internal/engine"

// Trace event types besides the statement kinds.
const (
	EventError = "error"
)

// TraceEvent is one step of a scenario run: an effective mutation, an ask,
// or the error that stopped a unit.
type TraceEvent struct {
	Unit      int    `json:"unit"`
	Type      string `json:"type"` // statement kind or "error"
	Statement string `json:"statement"`
	Seq       int64  `json:"seq"`

	// Answered and Tuples are set for asks only. Answered is false when the
	// query had no answer.
	Answered bool       `json:"answered,omitempty"`
	Tuples   [][]string `json:"tuples,omitempty"`

	// Mismatch describes a failed ask expectation.
	Mismatch string `json:"mismatch,omitempty"`

	// Code is the error code of an error event.
	Code string `json:"code,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall test success.
	// True if all expectations and assertions hold.
	Pass bool `json:"pass"`

	// Trace contains effective mutations, asks and unit errors in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Stats is the engine's size after the last unit.
	Stats engine.Stats `json:"stats"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a trace event.
func (r *Result) AddEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
