package reflow

import "testing"

func TestCacheInvalidatesOnLayoutSignatureChange(t *testing.T) {
	c := NewCache()
	c.SetLogicalLines([]LogicalLine{{}}, 111)
	c.Store(CacheKey{Cols: 80}, []WrapPlan{{}})
	if _, ok := c.Lookup(CacheKey{Cols: 80}); !ok {
		t.Fatalf("expected a cache hit before signature change")
	}

	c.SetLogicalLines([]LogicalLine{{}}, 222)
	if _, ok := c.Lookup(CacheKey{Cols: 80}); ok {
		t.Fatalf("expected the cache to invalidate after a content mutation")
	}
}

func TestCacheEvictsLeastRecentlyUsedBeyondCapacity(t *testing.T) {
	c := NewCache()
	c.SetLogicalLines(nil, 1)
	for i := 0; i < maxWrapTables+2; i++ {
		c.Store(CacheKey{Cols: i}, []WrapPlan{{}})
	}
	if c.Size() > maxWrapTables {
		t.Fatalf("cache exceeded its %d-table capacity: %d", maxWrapTables, c.Size())
	}
	if _, ok := c.Lookup(CacheKey{Cols: 0}); ok {
		t.Fatalf("expected the least-recently-used entry to have been evicted")
	}
}

func TestCacheDPIInvalidationKeepsLogicalLines(t *testing.T) {
	c := NewCache()
	lines := []LogicalLine{{Cells: nil}}
	c.SetLogicalLines(lines, 1)
	c.Store(CacheKey{Cols: 80, DPI: 1.0}, []WrapPlan{{}})

	c.InvalidateDPI()
	if c.Size() != 0 {
		t.Fatalf("expected wrap tables cleared after DPI invalidation")
	}
	if got := c.LogicalLines(); len(got) != 1 {
		t.Fatalf("expected the logical-line cache to survive DPI invalidation")
	}
}
