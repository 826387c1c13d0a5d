package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SubjectSource lists subjects and counts their questions (e.g., the SQL question store).
type SubjectSource interface {
	CustomSubjects(ctx context.Context) []string
	Count(ctx context.Context, subject string) int
}

// CountCache caches question counts in Redis so every instance shares them.
// Counts are stored as: SET quiz:count:{subject} {n} EX ttl (subject "*" is the whole pool).
type CountCache struct {
	SubjectSource
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewCountCache(client *redis.Client, source SubjectSource, ttl time.Duration) *CountCache {
	return &CountCache{
		SubjectSource: source,
		client:        client,
		ttl:           ttl,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CountCache) Count(ctx context.Context, subject string) int {
	key := c.key(subject)
	if n, err := c.client.Get(ctx, key).Int(); err == nil {
		return n
	}

	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if n, err := c.client.Get(ctx, key).Int(); err == nil {
			return n, nil
		}
		n := c.SubjectSource.Count(ctx, subject)
		_ = c.client.Set(ctx, key, strconv.Itoa(n), c.ttlWithJitter()).Err()
		return n, nil
	})
	return result.(int)
}

// Invalidate drops the cached count for subject.
func (c *CountCache) Invalidate(ctx context.Context, subject string) error {
	return c.client.Del(ctx, c.key(subject)).Err()
}

func (c *CountCache) key(subject string) string {
	if subject == "" {
		subject = "*"
	}
	return "quiz:count:" + subject
}

func (c *CountCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
