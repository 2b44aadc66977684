package ir

import (
	"fmt"
	"strconv"
)

// Structured form
//
// Front ends (CUE program files, YAML scenarios, JSON on the command line)
// and the journal all share one structured representation built from plain
// lists, maps and scalars:
//
//	literal     ["p", "a", "X"]                  predicate first, then arguments
//	variable    "X", "_Tmp", "_"                 leading upper-case letter or underscore
//	constant    "a", 1, 2.5, true, {const: "A"}  {const: ...} forces a constant
//	constraint  ["==", "X", ["-", "Y", 1]]       comparison operator first
//	arithmetic  ["-", "Y", 1]                    only inside constraints
//	statement   {assert: lit} {retract: lit} {ask: lit, expect: [[...]]}
//	            {rule: {head: lit, body: [...]}} {retract_rule: {...}}
//
// A list appearing as a literal argument is rejected with ErrNestedLiteral.
// Each bare "_" decodes to a fresh anonymous variable.

// decoder carries the anonymous-variable counter for one statement.
type decoder struct {
	anon int
}

// DecodeLiteral decodes a structured literal.
func DecodeLiteral(raw any) (Literal, error) {
	d := &decoder{}
	return d.literal(raw)
}

// DecodeBodyTerm decodes a structured goal or constraint.
func DecodeBodyTerm(raw any) (BodyTerm, error) {
	d := &decoder{}
	return d.bodyTerm(raw)
}

// DecodeRule decodes a structured rule: {head: lit, body: [...]}.
func DecodeRule(raw any) (Rule, error) {
	d := &decoder{}
	return d.rule(raw)
}

// DecodeStatement decodes a structured statement.
func DecodeStatement(raw any) (Statement, error) {
	d := &decoder{}
	m, ok := raw.(map[string]any)
	if !ok {
		return Statement{}, invalidf("statement must be a map, got %T", raw)
	}

	var kinds []StatementKind
	for k := range m {
		if ValidStatementKinds[StatementKind(k)] {
			kinds = append(kinds, StatementKind(k))
		} else if k != "expect" {
			return Statement{}, invalidf("unknown statement field %q", k)
		}
	}
	if len(kinds) != 1 {
		return Statement{}, invalidf("statement must have exactly one of assert, retract, rule, retract_rule, ask")
	}
	kind := kinds[0]
	if _, ok := m["expect"]; ok && kind != StmtAsk {
		return Statement{}, invalidf("expect is only allowed on ask statements")
	}

	switch kind {
	case StmtAssert, StmtRetract:
		l, err := d.literal(m[string(kind)])
		if err != nil {
			return Statement{}, fmt.Errorf("%s: %w", kind, err)
		}
		return Statement{Kind: kind, Literal: l}, nil
	case StmtRule, StmtRetractRule:
		r, err := d.rule(m[string(kind)])
		if err != nil {
			return Statement{}, fmt.Errorf("%s: %w", kind, err)
		}
		return Statement{Kind: kind, Literal: r.Head, Body: r.Body}, nil
	default:
		l, err := d.literal(m[string(StmtAsk)])
		if err != nil {
			return Statement{}, fmt.Errorf("ask: %w", err)
		}
		st := Statement{Kind: StmtAsk, Literal: l}
		if rawExpect, ok := m["expect"]; ok {
			exp, err := decodeExpectation(rawExpect, l.Arity())
			if err != nil {
				return Statement{}, fmt.Errorf("ask %s: %w", l, err)
			}
			st.Expect = exp
		}
		return st, nil
	}
}

func (d *decoder) rule(raw any) (Rule, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Rule{}, invalidf("rule must be a map with head and body, got %T", raw)
	}
	for k := range m {
		if k != "head" && k != "body" {
			return Rule{}, invalidf("unknown rule field %q", k)
		}
	}
	head, err := d.literal(m["head"])
	if err != nil {
		return Rule{}, fmt.Errorf("head: %w", err)
	}
	rawBody, ok := m["body"].([]any)
	if !ok {
		return Rule{}, invalidf("rule %s: body must be a list", head)
	}
	body := make([]BodyTerm, len(rawBody))
	for i, rb := range rawBody {
		bt, err := d.bodyTerm(rb)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s: body[%d]: %w", head, i, err)
		}
		body[i] = bt
	}
	return NewRule(head, body...)
}

func (d *decoder) literal(raw any) (Literal, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return Literal{}, invalidf("literal must be a non-empty list, got %T", raw)
	}
	pred, ok := list[0].(string)
	if !ok || pred == "" {
		return Literal{}, invalidf("literal predicate must be a non-empty string, got %v", list[0])
	}
	args := make([]Term, len(list)-1)
	for i, a := range list[1:] {
		t, err := d.term(a)
		if err != nil {
			return Literal{}, fmt.Errorf("%s argument %d: %w", pred, i, err)
		}
		args[i] = t
	}
	return Literal{Predicate: pred, Args: args}, nil
}

func (d *decoder) term(raw any) (Term, error) {
	switch v := raw.(type) {
	case []any:
		return Term{}, &Error{Code: CodeNestedLiteral, Message: fmt.Sprintf("nested list %v cannot be used as an argument", v)}
	case map[string]any:
		c, ok := v["const"]
		if !ok || len(v) != 1 {
			return Term{}, invalidf("term map must be {const: value}")
		}
		return Normalize(c)
	case string:
		if v == "_" {
			d.anon++
			return Var("_" + strconv.Itoa(d.anon)), nil
		}
		if LooksLikeVariable(v) {
			return Var(v), nil
		}
		return Normalize(v)
	default:
		return Normalize(raw)
	}
}

func (d *decoder) bodyTerm(raw any) (BodyTerm, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, invalidf("body element must be a non-empty list, got %T", raw)
	}
	if head, ok := list[0].(string); ok && ValidCompareOps[CompareOp(head)] {
		if len(list) != 3 {
			return nil, invalidf("constraint %s needs exactly two operands", head)
		}
		left, err := d.expr(list[1])
		if err != nil {
			return nil, err
		}
		right, err := d.expr(list[2])
		if err != nil {
			return nil, err
		}
		return Constraint{Op: CompareOp(head), Left: left, Right: right}, nil
	}
	return d.literal(raw)
}

func (d *decoder) expr(raw any) (Expr, error) {
	list, ok := raw.([]any)
	if !ok {
		return d.term(raw)
	}
	if len(list) != 3 {
		return nil, invalidf("arithmetic expression must be [op, left, right]")
	}
	op, ok := list[0].(string)
	if !ok || !ValidArithOps[ArithOp(op)] {
		return nil, invalidf("unknown arithmetic operator %v", list[0])
	}
	left, err := d.expr(list[1])
	if err != nil {
		return nil, err
	}
	right, err := d.expr(list[2])
	if err != nil {
		return nil, err
	}
	return Arith{Op: ArithOp(op), Left: left, Right: right}, nil
}

func decodeExpectation(raw any, arity int) (*Expectation, error) {
	if raw == nil {
		return &Expectation{}, nil
	}
	rows, ok := raw.([]any)
	if !ok {
		return nil, invalidf("expect must be a list of tuples")
	}
	exp := &Expectation{Tuples: make([]Tuple, 0, len(rows))}
	for i, row := range rows {
		vals, ok := row.([]any)
		if !ok || len(vals) != arity {
			return nil, invalidf("expect[%d] must be a list of %d values", i, arity)
		}
		t := make(Tuple, len(vals))
		for j, v := range vals {
			if m, ok := v.(map[string]any); ok {
				v = m["const"]
			}
			term, err := Normalize(v)
			if err != nil {
				return nil, fmt.Errorf("expect[%d][%d]: %w", i, j, err)
			}
			t[j] = term.Value()
		}
		exp.Tuples = append(exp.Tuples, t)
	}
	return exp, nil
}

// EncodeTerm returns the structured form of a term.
func EncodeTerm(t Term) any {
	if t.variable {
		return t.value
	}
	if t.value == "_" || LooksLikeVariable(t.value) {
		return map[string]any{"const": t.value}
	}
	return t.value
}

// EncodeLiteral returns the structured form of a literal.
func EncodeLiteral(l Literal) []any {
	out := make([]any, 0, len(l.Args)+1)
	out = append(out, l.Predicate)
	for _, a := range l.Args {
		out = append(out, EncodeTerm(a))
	}
	return out
}

// EncodeExpr returns the structured form of an expression.
func EncodeExpr(e Expr) any {
	switch v := e.(type) {
	case Term:
		return EncodeTerm(v)
	case Arith:
		return []any{string(v.Op), EncodeExpr(v.Left), EncodeExpr(v.Right)}
	default:
		return nil
	}
}

// EncodeBodyTerm returns the structured form of a goal or constraint.
func EncodeBodyTerm(bt BodyTerm) any {
	switch v := bt.(type) {
	case Literal:
		return EncodeLiteral(v)
	case Constraint:
		return []any{string(v.Op), EncodeExpr(v.Left), EncodeExpr(v.Right)}
	default:
		return nil
	}
}

// EncodeRule returns the structured form of a rule.
func EncodeRule(r Rule) map[string]any {
	body := make([]any, len(r.Body))
	for i, bt := range r.Body {
		body[i] = EncodeBodyTerm(bt)
	}
	return map[string]any{
		"head": EncodeLiteral(r.Head),
		"body": body,
	}
}

// EncodeStatement returns the structured form of a statement.
func EncodeStatement(s Statement) map[string]any {
	switch s.Kind {
	case StmtRule, StmtRetractRule:
		return map[string]any{string(s.Kind): EncodeRule(s.Rule())}
	case StmtAsk:
		m := map[string]any{string(StmtAsk): EncodeLiteral(s.Literal)}
		if s.Expect != nil {
			rows := make([]any, len(s.Expect.Tuples))
			for i, t := range s.Expect.Tuples {
				row := make([]any, len(t))
				for j, v := range t {
					row[j] = EncodeTerm(Term{value: v})
				}
				rows[i] = row
			}
			m["expect"] = rows
		}
		return m
	default:
		return map[string]any{string(s.Kind): EncodeLiteral(s.Literal)}
	}
}

// UnmarshalStatementJSON decodes a JSON-encoded structured statement.
// Numbers are kept exact via json.Number.
func UnmarshalStatementJSON(data []byte) (Statement, error) {
	raw, err := unmarshalStructured(data)
	if err != nil {
		return Statement{}, err
	}
	return DecodeStatement(raw)
}

// UnmarshalLiteralJSON decodes a JSON-encoded structured literal.
func UnmarshalLiteralJSON(data []byte) (Literal, error) {
	raw, err := unmarshalStructured(data)
	if err != nil {
		return Literal{}, err
	}
	return DecodeLiteral(raw)
}

func unmarshalStructured(data []byte) (any, error) {
	var raw any
	if err := jsonDecoder(data).Decode(&raw); err != nil {
		return nil, invalidf("invalid JSON: %v", err)
	}
	return raw, nil
}

func invalidf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidTerm, Message: fmt.Sprintf(format, args...)}
}
