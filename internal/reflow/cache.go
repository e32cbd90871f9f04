package reflow

import "sync"

// maxWrapTables is the cache's LRU capacity (spec §4.2: "up to 6 wrap
// tables").
const maxWrapTables = 6

// WrapTable holds one (physical_cols, dpi) wrap plan set: the break
// offsets computed for every logical line under that layout.
type WrapTable struct {
	Key             CacheKey
	LayoutSignature uint64
	Plans           []WrapPlan
}

// Cache holds the shared logical-line vector plus up to maxWrapTables
// wrap tables (LRU eviction), keyed by (physical_cols, dpi) and
// invalidated by layout signature, per spec §4.2.
type Cache struct {
	mu sync.Mutex

	logicalLines    []LogicalLine
	layoutSignature uint64

	// order holds keys from least- to most-recently used; tables holds
	// the table for each key.
	order  []CacheKey
	tables map[CacheKey]*WrapTable
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{tables: make(map[CacheKey]*WrapTable)}
}

// SetLogicalLines replaces the cached logical-line vector and
// invalidates every wrap table whose layout signature no longer
// matches (spec §4.2: "Any content mutation invalidates the cache
// entry").
func (c *Cache) SetLogicalLines(lines []LogicalLine, signature uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logicalLines = lines
	if signature != c.layoutSignature {
		c.layoutSignature = signature
		c.tables = make(map[CacheKey]*WrapTable)
		c.order = nil
	}
}

// LogicalLines returns the cached logical-line vector.
func (c *Cache) LogicalLines() []LogicalLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logicalLines
}

// Lookup returns the wrap table for key if present and current,
// marking it most-recently-used.
func (c *Cache) Lookup(key CacheKey) (*WrapTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[key]
	if !ok || t.LayoutSignature != c.layoutSignature {
		return nil, false
	}
	c.touch(key)
	return t, true
}

// Store inserts or replaces the wrap table for key, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *Cache) Store(key CacheKey, plans []WrapPlan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[key] = &WrapTable{Key: key, LayoutSignature: c.layoutSignature, Plans: plans}
	c.touch(key)
	for len(c.order) > maxWrapTables {
		evict := c.order[0]
		c.order = c.order[1:]
		delete(c.tables, evict)
	}
}

// InvalidateDPI drops every wrap table but keeps the logical-line
// cache, per spec §4.2 "DPI change clears wrap tables but keeps the
// logical line cache."
func (c *Cache) InvalidateDPI() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[CacheKey]*WrapTable)
	c.order = nil
}

func (c *Cache) touch(key CacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

// Size reports the current number of cached wrap tables, for tests and
// health snapshots.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables)
}
