package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/deduce/internal/ir"
)

// Program is a compiled program file: one or more definition units that run
// in order on the same engine.
type Program struct {
	Name string

	// MaxIterations overrides the engine's per-query budget when > 0.
	MaxIterations int

	// StrictArity is nil when the file does not set strict_arity.
	StrictArity *bool

	Units []Unit
}

// Unit is one definition unit of a program file.
type Unit struct {
	Name       string
	Statements []ir.Statement

	// Field is the path of the unit's statement list in the source file,
	// "program" or "units[i].program". Empty for units built in code.
	Field string

	// Pos holds the source position of each statement.
	Pos []token.Pos
}

// Statements returns every statement of every unit, in order.
func (p *Program) Statements() []ir.Statement {
	var out []ir.Statement
	for _, u := range p.Units {
		out = append(out, u.Statements...)
	}
	return out
}

// CompileFile reads and compiles a CUE program file.
func CompileFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	return CompileProgram(v)
}

// CompileProgram compiles a CUE value holding a program file.
//
// The value has an optional name, max_iterations and strict_arity, a
// program list (the first unit), and an optional units list of
// {name, program} structs that run after it:
//
//	name: "ancestors"
//	program: [
//		{assert: ["parent", "alice", "bob"]},
//		{rule: {head: ["anc", "X", "Y"], body: [["parent", "X", "Y"]]}},
//		{ask: ["anc", "alice", "Y"], expect: [["alice", "bob"]]},
//	]
func CompileProgram(v cue.Value) (*Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Program{}

	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Name = name
	}

	if maxVal := v.LookupPath(cue.ParsePath("max_iterations")); maxVal.Exists() {
		n, err := maxVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.MaxIterations = int(n)
	}

	if strictVal := v.LookupPath(cue.ParsePath("strict_arity")); strictVal.Exists() {
		b, err := strictVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.StrictArity = &b
	}

	if progVal := v.LookupPath(cue.ParsePath("program")); progVal.Exists() {
		unit, err := compileUnit(progVal, "program")
		if err != nil {
			return nil, err
		}
		unit.Name = p.Name
		p.Units = append(p.Units, unit)
	}

	if unitsVal := v.LookupPath(cue.ParsePath("units")); unitsVal.Exists() {
		iter, err := unitsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			uv := iter.Value()
			field := fmt.Sprintf("units[%d]", i)
			progVal := uv.LookupPath(cue.ParsePath("program"))
			if !progVal.Exists() {
				return nil, &CompileError{Field: field, Message: "program is required", Pos: uv.Pos()}
			}
			unit, err := compileUnit(progVal, field+".program")
			if err != nil {
				return nil, err
			}
			if nameVal := uv.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
				if unit.Name, err = nameVal.String(); err != nil {
					return nil, formatCUEError(err)
				}
			}
			if unit.Name == "" {
				unit.Name = fmt.Sprintf("%s#%d", p.Name, len(p.Units))
			}
			p.Units = append(p.Units, unit)
		}
	}

	if len(p.Units) == 0 {
		return nil, &CompileError{
			Field:   "program",
			Message: "a program list or units list is required",
			Pos:     v.Pos(),
		}
	}
	return p, nil
}

// compileUnit decodes a list of structured statements.
func compileUnit(v cue.Value, field string) (Unit, error) {
	iter, err := v.List()
	if err != nil {
		return Unit{}, formatCUEError(err)
	}

	u := Unit{Field: field}
	for i := 0; iter.Next(); i++ {
		sv := iter.Value()
		st, err := CompileStatement(sv)
		if err != nil {
			return Unit{}, &CompileError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: err.Error(),
				Pos:     sv.Pos(),
				Err:     err,
			}
		}
		u.Statements = append(u.Statements, st)
		u.Pos = append(u.Pos, sv.Pos())
	}
	return u, nil
}

// CompileStatement decodes one structured statement from CUE.
// The value is exported as JSON so numbers keep their exact form.
func CompileStatement(v cue.Value) (ir.Statement, error) {
	if err := v.Err(); err != nil {
		return ir.Statement{}, formatCUEError(err)
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return ir.Statement{}, formatCUEError(err)
	}
	return ir.UnmarshalStatementJSON(data)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	// Err is the underlying decode error, if any.
	Err error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
