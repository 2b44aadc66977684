package resolve

// DefaultMaxIterations bounds the number of table evaluations per query.
const DefaultMaxIterations = 100_000

// budget counts table evaluations for one query and enforces the limit.
type budget struct {
	limit   int
	current int
}

// check increments the evaluation counter and validates it against the
// limit. A limit of zero or less disables the check.
func (b *budget) check() bool {
	b.current++
	return b.limit <= 0 || b.current <= b.limit
}
