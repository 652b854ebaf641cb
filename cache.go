package pergola

import "sync"

// TreeCache memoizes built option trees per hierarchy root. It is safe for
// concurrent readers and writers, but assumes the admin hierarchy itself is
// immutable after startup: nothing invalidates entries at runtime, so a
// reloaded hierarchy is only picked up after Invalidate (or process restart).
//
// The enclosing service owns the cache and decides its scope; one
// process-wide cache keyed by root identity is the expected shape.
type TreeCache struct {
	mu    sync.RWMutex
	trees map[AdminGroup][]Option
}

// NewTreeCache creates an empty option-tree cache.
func NewTreeCache() *TreeCache {
	return &TreeCache{
		trees: make(map[AdminGroup][]Option),
	}
}

// Options returns the memoized option tree for root, building it on first
// access. Two calls with an unchanged hierarchy return the same slice, so
// callers rendering per subject must filter through FilterOptions (which
// copies) rather than mutate the cached tree.
func (c *TreeCache) Options(root AdminGroup) []Option {
	c.mu.RLock()
	tree, ok := c.trees[root]
	c.mu.RUnlock()
	if ok {
		return tree
	}

	tree = AdminActionOptions(root)

	c.mu.Lock()
	// Another goroutine may have built the same root concurrently; keep the
	// first stored tree so repeated lookups stay structurally identical.
	if stored, ok := c.trees[root]; ok {
		tree = stored
	} else {
		c.trees[root] = tree
	}
	c.mu.Unlock()
	return tree
}

// Invalidate drops the memoized tree for root. Hook for future
// hierarchy-reload support; nothing in this package calls it.
func (c *TreeCache) Invalidate(root AdminGroup) {
	c.mu.Lock()
	delete(c.trees, root)
	c.mu.Unlock()
}

// InvalidateAll drops every memoized tree.
func (c *TreeCache) InvalidateAll() {
	c.mu.Lock()
	c.trees = make(map[AdminGroup][]Option)
	c.mu.Unlock()
}

// Size returns the number of memoized roots.
func (c *TreeCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.trees)
}
