package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SubjectSource lists subjects and counts their questions (e.g., the SQL question store).
type SubjectSource interface {
	CustomSubjects(ctx context.Context) []string
	Count(ctx context.Context, subject string) int
}

// CountCache caches question counts per subject with TTL to avoid repeated COUNT(*) queries.
type CountCache struct {
	SubjectSource
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedCount
}

type cachedCount struct {
	count     int
	expiresAt time.Time
}

func NewCountCache(source SubjectSource, ttl time.Duration) *CountCache {
	return &CountCache{
		SubjectSource: source,
		ttl:           ttl,
		clock:         time.Now,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:         make(map[string]cachedCount),
	}
}

func (c *CountCache) Count(ctx context.Context, subject string) int {
	if n, ok := c.lookup(subject); ok {
		return n
	}

	result, _, _ := c.sf.Do(subject, func() (interface{}, error) {
		// Re-check in case another caller just filled it.
		if n, ok := c.lookup(subject); ok {
			return n, nil
		}
		n := c.SubjectSource.Count(ctx, subject)
		c.mu.Lock()
		c.cache[subject] = cachedCount{count: n, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return n, nil
	})
	return result.(int)
}

// Invalidate drops every cached count.
func (c *CountCache) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]cachedCount)
	c.mu.Unlock()
}

func (c *CountCache) lookup(subject string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[subject]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return 0, false
	}
	return entry.count, true
}

func (c *CountCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
