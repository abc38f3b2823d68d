package engine

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/observability"
)

// CachedCoverage wraps a Coverage with an in-memory LRU cache.
type CachedCoverage struct {
	inner   domain.Coverage
	cache   *lruCache[bool]
	metrics *observability.Metrics
}

// NewCachedCoverage creates a cache decorator around a coverage lookup.
func NewCachedCoverage(inner domain.Coverage, maxEntries int, metrics *observability.Metrics) *CachedCoverage {
	return &CachedCoverage{
		inner:   inner,
		cache:   newLRUCache[bool](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedCoverage) HasImage(ctx context.Context, collection string, date time.Time) (bool, error) {
	key := collection + "|" + date.Format(time.DateOnly)
	if _, ok := c.cache.get(key); ok {
		c.metrics.CoverageCache.WithLabelValues("hit").Inc()
		return true, nil
	}
	c.metrics.CoverageCache.WithLabelValues("miss").Inc()

	has, err := c.inner.HasImage(ctx, collection, date)
	if err != nil {
		return false, err
	}
	// Only positive answers are cached; recent dates gain images once published.
	if has {
		c.cache.put(key, true)
	}
	return has, nil
}

// lruCache is a thread-safe LRU cache keyed by string.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type lruEntry[V any] struct {
	key   string
	value V
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry[V]).key)
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
