package pipeline

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
)

// QueryCache memoizes query results for one dataset snapshot. Entries are
// keyed by the query kind and a structural hash of its parameters; a new
// dataset fingerprint drops every entry. Safe for concurrent use.
type QueryCache struct {
	mu          sync.Mutex
	maxSize     int
	fingerprint string
	items       map[string]*list.Element
	lru         *list.List
	hits        int64
	misses      int64
}

type cacheEntry struct {
	key  string
	data any
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// NewQueryCache creates a cache holding at most maxSize results.
func NewQueryCache(maxSize int) *QueryCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &QueryCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Key builds the cache key for a query. asOf is truncated to the day since
// the maturity rule has day resolution.
func Key(kind string, f Filter, asOf time.Time, extra ...any) (string, error) {
	h, err := hashstructure.Hash(struct {
		Filter Filter
		AsOf   string
		Extra  []any
	}{f, asOf.Format("2006-01-02"), extra}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%016x", kind, h), nil
}

// Cached returns the memoized value for key under the given dataset
// fingerprint, computing and storing it on a miss. Callers must not mutate
// the returned value.
func Cached[T any](c *QueryCache, fingerprint, key string, compute func() T) T {
	if c == nil || key == "" {
		return compute()
	}
	if v, ok := c.get(fingerprint, key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	v := compute()
	c.set(fingerprint, key, v)
	return v
}

// Query is the memoized form of the package-level Query.
func (c *QueryCache) Query(records []model.LoanRecord, fingerprint string, f Filter, asOf time.Time, dim model.Dimension) []model.VintageRow {
	key, err := Key("vintages", f, asOf, string(dim))
	if err != nil {
		return Query(records, f, asOf, dim)
	}
	return Cached(c, fingerprint, key, func() []model.VintageRow {
		return Query(records, f, asOf, dim)
	})
}

func (c *QueryCache) get(fingerprint, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetIfStale(fingerprint)
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.hits++
	return elem.Value.(*cacheEntry).data, true
}

func (c *QueryCache) set(fingerprint, key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetIfStale(fingerprint)
	if elem, ok := c.items[key]; ok {
		elem.Value.(*cacheEntry).data = data
		c.lru.MoveToFront(elem)
		return
	}
	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, data: data})
	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// resetIfStale must be called with mu held.
func (c *QueryCache) resetIfStale(fingerprint string) {
	if fingerprint == c.fingerprint {
		return
	}
	c.fingerprint = fingerprint
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

// Stats returns the current size and hit counters.
func (c *QueryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: c.lru.Len(), Hits: c.hits, Misses: c.misses}
}
