// Package skipindex caches each segment's loaded skip index, keyed by the
// segment's data-file path, using github.com/hashicorp/golang-lru/v2 —
// the same cache library this cluster's other services reach for
// whenever they need a bounded in-memory cache in front of disk I/O.
package skipindex

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Leadrive/eventql/internal/record"
	"github.com/Leadrive/eventql/internal/segment"
)

// DefaultCacheSize is how many segment indexes stay resident before LRU
// eviction kicks in.
const DefaultCacheSize = 4096

// Cache wraps an LRU of loaded segment indexes.
type Cache struct {
	inner *lru.Cache[string, *segment.Index]
}

func New(size int) (*Cache, error) {
	c, err := lru.New[string, *segment.Index](size)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: c}, nil
}

// Lookup loads (or reuses) the index for the segment whose data file is at
// path and merges its per-ID max versions into versions, the same
// monotonic update segment.Index.Lookup performs directly. The cache is
// keyed on the data path (what callers already have on hand from a
// segment descriptor); the backing .idx file is derived from it.
func (c *Cache) Lookup(path string, versions map[record.ID]record.Version) error {
	idx, ok := c.inner.Get(path)
	if !ok {
		loaded, err := segment.ReadIndex(indexPathFor(path))
		if err != nil {
			return err
		}
		c.inner.Add(path, loaded)
		idx = loaded
	}
	idx.Lookup(versions)
	return nil
}

// indexPathFor derives a segment's .idx path from its .cst data path.
func indexPathFor(dataPath string) string {
	return strings.TrimSuffix(dataPath, segment.DataExt) + segment.IndexExt
}

// Flush evicts path's cached index, e.g. after compaction has deleted it.
func (c *Cache) Flush(path string) { c.inner.Remove(path) }

// Len reports how many segment indexes are currently cached.
func (c *Cache) Len() int { return c.inner.Len() }
