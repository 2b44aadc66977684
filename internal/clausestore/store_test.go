package clausestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deduce/internal/ir"
)

var (
	x = ir.Var("X")
	y = ir.Var("Y")
	z = ir.Var("Z")
)

func TestAddRuleKeepsDeclarationOrder(t *testing.T) {
	s := New()
	r1 := ir.MustRule(ir.MustLiteral("ancestor", x, y), ir.MustLiteral("parent", x, y))
	r2 := ir.MustRule(ir.MustLiteral("ancestor", x, y), ir.MustLiteral("parent", x, z), ir.MustLiteral("ancestor", z, y))

	for _, r := range []ir.Rule{r1, r2} {
		added, err := s.AddRule(r)
		require.NoError(t, err)
		assert.True(t, added)
	}

	rules := s.RulesFor(ir.Signature{Predicate: "ancestor", Arity: 2})
	require.Len(t, rules, 2)
	assert.True(t, rules[0].Equal(r1))
	assert.True(t, rules[1].Equal(r2))
}

func TestAddRuleDeduplicates(t *testing.T) {
	s := New()
	r := ir.MustRule(ir.MustLiteral("q", x), ir.MustLiteral("p", x))

	_, err := s.AddRule(r)
	require.NoError(t, err)
	added, err := s.AddRule(ir.MustRule(ir.MustLiteral("q", x), ir.MustLiteral("p", x)))
	require.NoError(t, err)

	assert.False(t, added)
	assert.Equal(t, 1, s.Len())
}

func TestAddRuleRejectsUnsafe(t *testing.T) {
	s := New()

	_, err := s.AddRule(ir.Rule{Head: ir.MustLiteral("q", x, y), Body: []ir.BodyTerm{ir.MustLiteral("p", x)}})
	assert.ErrorIs(t, err, ir.ErrUnsafeRule)
	assert.Equal(t, 0, s.Len())
}

func TestRemoveRule(t *testing.T) {
	s := New()
	r1 := ir.MustRule(ir.MustLiteral("q", x), ir.MustLiteral("p", x))
	r2 := ir.MustRule(ir.MustLiteral("q", x), ir.MustLiteral("r", x))
	_, _ = s.AddRule(r1)
	_, _ = s.AddRule(r2)

	assert.True(t, s.RemoveRule(r1))
	assert.False(t, s.RemoveRule(r1), "already removed")

	sig := ir.Signature{Predicate: "q", Arity: 1}
	rules := s.RulesFor(sig)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Equal(r2))

	assert.True(t, s.RemoveRule(r2))
	assert.False(t, s.HasRules(sig))
	assert.Empty(t, s.RulesFor(sig))
}

func TestRulesForIsACopy(t *testing.T) {
	s := New()
	_, _ = s.AddRule(ir.MustRule(ir.MustLiteral("q", x), ir.MustLiteral("p", x)))
	sig := ir.Signature{Predicate: "q", Arity: 1}

	rules := s.RulesFor(sig)
	rules[0] = ir.Rule{}

	assert.Equal(t, "q", s.RulesFor(sig)[0].Head.Predicate)
}

func TestAllIsSortedBySignature(t *testing.T) {
	s := New()
	_, _ = s.AddRule(ir.MustRule(ir.MustLiteral("z", x), ir.MustLiteral("p", x)))
	_, _ = s.AddRule(ir.MustRule(ir.MustLiteral("a", x), ir.MustLiteral("p", x)))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Head.Predicate)
	assert.Equal(t, "z", all[1].Head.Predicate)
}

func TestContains(t *testing.T) {
	s := New()
	r := ir.MustRule(ir.MustLiteral("q", x), ir.MustLiteral("p", x))

	assert.False(t, s.Contains(r))
	_, _ = s.AddRule(r)
	assert.True(t, s.Contains(ir.MustRule(ir.MustLiteral("q", x), ir.MustLiteral("p", x))))
}
