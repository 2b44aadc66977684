package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/deduce/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	x = ir.Var("X")
	y = ir.Var("Y")
	z = ir.Var("Z")
	l = ir.MustLiteral
)

// ancestorRule is ancestor(X, Z) :- parent(X, Y), ancestor(Y, Z).
func ancestorRule() ir.Rule {
	return ir.MustRule(l("ancestor", x, z), l("parent", x, y), l("ancestor", y, z))
}
