package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Last())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Last(), "Last does not reserve a seq")
}

func TestClock_ObserveOnlyRaises(t *testing.T) {
	c := NewClock()
	c.Observe(7)
	c.Observe(3)
	assert.Equal(t, int64(7), c.Last())
	assert.Equal(t, int64(8), c.Next())

	c.Observe(8)
	assert.Equal(t, int64(9), c.Next())
}

func TestClock_ConcurrentSeqsAreUnique(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const calls = 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				seqs <- c.Next()
				c.Observe(int64(j))
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d generated twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*calls)
}
