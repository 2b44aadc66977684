package engine

import "sync/atomic"

// Clock hands out journal sequence numbers.
//
// Live mutations take the next seq before touching a store. Replay feeds
// each journaled seq back through Observe, so after a replay Next continues
// above the highest seq the engine has seen, even when records arrive out
// of order or with gaps.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next reserves and returns the next seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Last returns the highest seq issued or observed, 0 for a fresh engine.
func (c *Clock) Last() int64 {
	return c.seq.Load()
}

// Observe raises the clock to seq. Lower values are ignored.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
