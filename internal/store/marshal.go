package store

import (
	"fmt"

	"github.com/roach88/deduce/internal/ir"
)

// row is the column form of one journaled statement.
type row struct {
	kind      string
	predicate string
	arity     int
	payload   string
	hash      string
}

// marshalStatement converts a mutation to its column form.
// Payload is canonical JSON; hash is ir.StatementID over the same bytes.
func marshalStatement(st ir.Statement) (row, error) {
	if !st.IsMutation() {
		return row{}, fmt.Errorf("only mutations are journaled, got %s", st.Kind)
	}
	payload, err := ir.MarshalCanonical(ir.EncodeStatement(st))
	if err != nil {
		return row{}, fmt.Errorf("marshal statement: %w", err)
	}
	hash, err := ir.StatementID(st)
	if err != nil {
		return row{}, err
	}
	sig := st.Literal.Signature()
	return row{
		kind:      string(st.Kind),
		predicate: sig.Predicate,
		arity:     sig.Arity,
		payload:   string(payload),
		hash:      hash,
	}, nil
}

// unmarshalStatement decodes a payload and checks it against the stored
// kind and hash.
func unmarshalStatement(r row) (ir.Statement, error) {
	st, err := ir.UnmarshalStatementJSON([]byte(r.payload))
	if err != nil {
		return ir.Statement{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if string(st.Kind) != r.kind {
		return ir.Statement{}, fmt.Errorf("payload kind %q does not match column kind %q", st.Kind, r.kind)
	}
	hash, err := ir.StatementID(st)
	if err != nil {
		return ir.Statement{}, err
	}
	if hash != r.hash {
		return ir.Statement{}, fmt.Errorf("statement hash mismatch: stored %s, computed %s", r.hash, hash)
	}
	return st, nil
}
