package noaa

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

// ObservationSource retrieves one station's daily observations.
type ObservationSource interface {
	DailyObservations(ctx context.Context, stationID string, r domain.DateRange) ([]domain.DailyObservation, error)
}

// CachedObservationSource wraps an ObservationSource with an in-memory LRU
// cache keyed by (station, date range). A restarted aggregation run re-reads
// already-retrieved stations from memory instead of the provider, which is
// what makes resumption idempotent from the provider's point of view.
type CachedObservationSource struct {
	inner   ObservationSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedObservationSource creates a cache decorator around a source.
func NewCachedObservationSource(inner ObservationSource, maxEntries int, metrics *observability.Metrics) *CachedObservationSource {
	return &CachedObservationSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedObservationSource) DailyObservations(ctx context.Context, stationID string, r domain.DateRange) ([]domain.DailyObservation, error) {
	key := fmt.Sprintf("%s|%s|%s", stationID, r.Start, r.End)
	if obs, ok := c.cache.get(key); ok {
		c.metrics.ObsCacheLookups.WithLabelValues("hit").Inc()
		return obs, nil
	}
	c.metrics.ObsCacheLookups.WithLabelValues("miss").Inc()

	obs, err := c.inner.DailyObservations(ctx, stationID, r)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a station that reported nothing can be
	// retried on a later run.
	if len(obs) > 0 {
		c.cache.put(key, obs)
	}
	return obs, nil
}

var _ ObservationSource = (*CachedObservationSource)(nil)

// lruCache is a small thread-safe LRU of observation slices.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.DailyObservation
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.DailyObservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.DailyObservation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
