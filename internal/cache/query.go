package cache

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"detcover/pkg/models"
)

const (
	defaultTTL        = 5 * time.Minute
	defaultMaxEntries = 1024
)

// QueryFunc produces the detections for a cache miss.
type QueryFunc func(ctx context.Context) ([]models.Detection, error)

// QueryCache memoizes successful source queries for a short TTL so that
// repeated analyses of the same operation do not hammer the backends.
// Failed queries are never cached; a transient backend error must not
// poison subsequent analyses.
type QueryCache struct {
	entries *expirable.LRU[string, []models.Detection]

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewQueryCache creates a TTL query cache. Non-positive ttl or maxEntries
// fall back to defaults.
func NewQueryCache(ttl time.Duration, maxEntries int) *QueryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &QueryCache{
		entries: expirable.NewLRU[string, []models.Detection](maxEntries, nil, ttl),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Key builds a canonical cache key. Technique ids are sorted so that the
// same set always maps to the same key regardless of input ordering.
func Key(source string, techniqueIDs []string, start, end time.Time) string {
	ids := make([]string, len(techniqueIDs))
	copy(ids, techniqueIDs)
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(source)
	b.WriteString("|")
	b.WriteString(strings.Join(ids, ","))
	b.WriteString("|")
	b.WriteString(strconv.FormatInt(start.UTC().Unix(), 10))
	b.WriteString("|")
	b.WriteString(strconv.FormatInt(end.UTC().Unix(), 10))
	return b.String()
}

// Fetch returns the cached detections for key, or runs fn and caches its
// result. Concurrent fetches for the same key serialize on a per-key lock
// with a second lookup under the lock, so fn runs at most once per miss.
// The returned bool reports whether the result came from the cache.
func (c *QueryCache) Fetch(ctx context.Context, key string, fn QueryFunc) ([]models.Detection, bool, error) {
	if events, ok := c.entries.Get(key); ok {
		return events, true, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if events, ok := c.entries.Get(key); ok {
		return events, true, nil
	}

	events, err := fn(ctx)
	if err != nil {
		return nil, false, err
	}
	c.entries.Add(key, events)
	return events, false, nil
}

// Purge drops every cached entry.
func (c *QueryCache) Purge() {
	c.entries.Purge()
}

// Len reports the number of live entries.
func (c *QueryCache) Len() int {
	return c.entries.Len()
}

func (c *QueryCache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}
