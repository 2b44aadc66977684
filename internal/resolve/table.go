package resolve

import (
	"strconv"
	"strings"

	"github.com/roach88/deduce/internal/ir"
)

// callKey identifies a call pattern: constants by value, variables by the
// index of their first occurrence. edge(X, Y) and edge(A, B) share a table;
// edge(X, X) does not.
func callKey(l ir.Literal) string {
	var b strings.Builder
	b.WriteString(l.Signature().String())
	vars := make(map[string]int)
	for _, a := range l.Args {
		b.WriteByte('|')
		if a.IsConstant() {
			b.WriteByte('c')
			b.WriteString(strconv.Itoa(len(a.Value())))
			b.WriteByte(':')
			b.WriteString(a.Value())
			continue
		}
		idx, ok := vars[a.Value()]
		if !ok {
			idx = len(vars)
			vars[a.Value()] = idx
		}
		b.WriteByte('v')
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}

// table holds the answers derived so far for one call pattern.
type table struct {
	id      int
	call    ir.Literal
	answers []ir.Tuple
	seen    map[string]struct{}

	// consumers are rule bodies suspended on this table's answers.
	consumers []*consumer

	queued  bool
	started bool
}

func newTable(id int, call ir.Literal) *table {
	return &table{
		id:   id,
		call: call,
		seen: make(map[string]struct{}),
	}
}

// add inserts an answer if absent.
func (t *table) add(tuple ir.Tuple) bool {
	key := tuple.Key()
	if _, ok := t.seen[key]; ok {
		return false
	}
	t.seen[key] = struct{}{}
	t.answers = append(t.answers, tuple)
	return true
}

// pending reports whether some consumer has not seen every answer.
func (t *table) pending() bool {
	for _, c := range t.consumers {
		if c.next < len(t.answers) {
			return true
		}
	}
	return false
}

// consumer is a rule body waiting on a goal. It resumes once per answer of
// the goal's table; next is the index of the first answer not yet delivered.
type consumer struct {
	owner *table
	rule  ir.Rule
	goal  ir.Literal
	subst ir.Subst
	rest  []int
	next  int
}

// arena owns the tables of one query and the worklist that drives them.
// Presence in the arena is what marks a call pattern as in progress.
type arena struct {
	tables     map[string]*table
	order      []*table
	queue      []*table
	active     *table
	deliveries int
}

func newArena() *arena {
	return &arena{tables: make(map[string]*table)}
}

// lookup returns the table for a call pattern, creating and scheduling it
// when it is new.
func (a *arena) lookup(call ir.Literal) (*table, bool) {
	key := callKey(call)
	if t, ok := a.tables[key]; ok {
		return t, false
	}
	t := newTable(len(a.order), call)
	a.tables[key] = t
	a.order = append(a.order, t)
	a.enqueue(t)
	return t, true
}

func (a *arena) enqueue(t *table) {
	if t.queued {
		return
	}
	t.queued = true
	a.queue = append(a.queue, t)
}

func (a *arena) dequeue() (*table, bool) {
	if len(a.queue) == 0 {
		return nil, false
	}
	t := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	t.queued = false
	return t, true
}

func (a *arena) answerCount() int {
	n := 0
	for _, t := range a.order {
		n += len(t.answers)
	}
	return n
}
