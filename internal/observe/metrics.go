package observe

import (
	"runtime"
	"sync/atomic"
)

// shardPadding keeps each shard's hot counters on its own cache line
// so concurrent increments from different goroutines don't false-share,
// matching the "sharded/cache-padded atomic counters" pattern common in
// the retrieval pack's high-throughput paths.
type counterShard struct {
	value int64
	_     [7]int64 // pad to 64 bytes alongside the int64 value
}

// ShardedCounter is a striped atomic counter: Add picks a shard by
// goroutine-local hash (approximated here by a fast, lock-free
// round-robin index) and Sum totals every shard.
type ShardedCounter struct {
	shards []counterShard
	next   int64
}

// NewShardedCounter allocates one shard per runtime.GOMAXPROCS(0).
func NewShardedCounter() *ShardedCounter {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return &ShardedCounter{shards: make([]counterShard, n)}
}

// Add increments the counter by delta.
func (c *ShardedCounter) Add(delta int64) {
	idx := atomic.AddInt64(&c.next, 1) % int64(len(c.shards))
	atomic.AddInt64(&c.shards[idx].value, delta)
}

// Sum returns the counter's current total across all shards.
func (c *ShardedCounter) Sum() int64 {
	var total int64
	for i := range c.shards {
		total += atomic.LoadInt64(&c.shards[i].value)
	}
	return total
}
