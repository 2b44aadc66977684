package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeNonGroundFact indicates an assert or retract given a literal with a variable.
	CodeNonGroundFact ErrorCode = "NON_GROUND_FACT"

	// CodeNestedLiteral indicates a literal constructed with a literal argument.
	CodeNestedLiteral ErrorCode = "NESTED_LITERAL"

	// CodeArityMismatch indicates a predicate name used with different arities.
	CodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// CodeUnboundVariable indicates a constraint or rule head evaluated before
	// its variables were bound.
	CodeUnboundVariable ErrorCode = "UNBOUND_VARIABLE"

	// CodeTypeMismatch indicates an ordering or arithmetic constraint applied
	// to non-numeric constants.
	CodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// CodeAlreadyExecuted indicates a program definition unit run twice.
	CodeAlreadyExecuted ErrorCode = "ALREADY_EXECUTED"

	// CodeInvalidTerm indicates a value that has no canonical constant form.
	CodeInvalidTerm ErrorCode = "INVALID_TERM"

	// CodeUnsafeRule indicates a rule whose head variables are not all
	// mentioned in its body, or a rule with an empty body.
	CodeUnsafeRule ErrorCode = "UNSAFE_RULE"

	// CodeArithmetic indicates an arithmetic failure such as division by zero.
	CodeArithmetic ErrorCode = "ARITHMETIC"

	// CodeIterationLimit indicates a query exceeded its evaluation budget.
	CodeIterationLimit ErrorCode = "ITERATION_LIMIT"
)

// Error is the single error type reported by the engine and its stores.
//
// Errors compare with errors.Is by Code, so callers match against the
// sentinel values below regardless of message or subject:
//
//	if errors.Is(err, ir.ErrNonGroundFact) { ... }
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject names the offending predicate, rule or statement, if any.
	Subject string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, msg, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel errors for errors.Is matching.
var (
	ErrNonGroundFact   = &Error{Code: CodeNonGroundFact}
	ErrNestedLiteral   = &Error{Code: CodeNestedLiteral}
	ErrArityMismatch   = &Error{Code: CodeArityMismatch}
	ErrUnboundVariable = &Error{Code: CodeUnboundVariable}
	ErrTypeMismatch    = &Error{Code: CodeTypeMismatch}
	ErrAlreadyExecuted = &Error{Code: CodeAlreadyExecuted}
	ErrInvalidTerm     = &Error{Code: CodeInvalidTerm}
	ErrUnsafeRule      = &Error{Code: CodeUnsafeRule}
	ErrArithmetic      = &Error{Code: CodeArithmetic}
	ErrIterationLimit  = &Error{Code: CodeIterationLimit}
)

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, subject, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Subject: subject,
	}
}

// CodeOf extracts the error code from err.
// Uses errors.As to handle wrapped errors; returns "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
