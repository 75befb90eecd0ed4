// Package cache memoizes assessments by the fingerprint of their site.
package cache

import (
	"container/list"
	"log/slog"
	"sync"

	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/couchcryptid/vent-capacity-service/internal/observability"
)

// CachedAssessor wraps an Assessor with an in-memory LRU keyed by site
// fingerprint. The engine is deterministic, so a hit returns exactly what a
// fresh assessment would, apart from AssessedAt which keeps the original stamp.
type CachedAssessor struct {
	inner   domain.Assessor
	cache   *lruCache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedAssessor creates a cache decorator holding at most maxEntries
// assessments.
func NewCachedAssessor(inner domain.Assessor, maxEntries int, metrics *observability.Metrics, logger *slog.Logger) *CachedAssessor {
	return &CachedAssessor{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedAssessor) Assess(site domain.Site) (domain.Assessment, error) {
	key, err := domain.Fingerprint(site)
	if err != nil {
		return domain.Assessment{}, err
	}
	if a, ok := c.cache.get(key); ok {
		c.metrics.AssessmentCache.WithLabelValues("hit").Inc()
		c.logger.Debug("assessment cache hit", "assessment_id", key)
		return a, nil
	}
	c.metrics.AssessmentCache.WithLabelValues("miss").Inc()

	a, err := c.inner.Assess(site)
	if err != nil {
		// Configuration errors are cheap to recompute and never cached.
		return a, err
	}
	c.cache.put(key, a)
	return a, nil
}

// Len reports the number of cached assessments.
func (c *CachedAssessor) Len() int {
	return c.cache.len()
}

// lruCache is a thread-safe LRU of assessments. The front of order is the
// most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[string]*list.Element
}

type entry struct {
	key   string
	value domain.Assessment
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.Assessment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Assessment{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value domain.Assessment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
