package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCountCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	source := &countingSource{counts: map[string]int{"math": 3, "": 7}}
	cache := NewCountCache(newClient(mr), source, time.Minute)

	if n := cache.Count(context.Background(), "math"); n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}

	// Second call should hit cache, source not incremented.
	_ = cache.Count(context.Background(), "math")
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
	if got, _ := mr.Get("quiz:count:math"); got != "3" {
		t.Fatalf("expected cached value 3, got %q", got)
	}
	if ttl := mr.TTL("quiz:count:math"); ttl < time.Minute {
		t.Fatalf("expected ttl of at least a minute, got %v", ttl)
	}

	if n := cache.Count(context.Background(), ""); n != 7 || !mr.Exists("quiz:count:*") {
		t.Fatalf("expected whole-pool count cached, got %d", n)
	}

	if err := cache.Invalidate(context.Background(), "math"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_ = cache.Count(context.Background(), "math")
	if source.calls != 3 {
		t.Fatalf("expected reload after invalidate, source calls=%d", source.calls)
	}
}

type countingSource struct {
	counts map[string]int
	calls  int
}

func (s *countingSource) Count(_ context.Context, subject string) int {
	s.calls++
	return s.counts[subject]
}

func (s *countingSource) CustomSubjects(context.Context) []string { return nil }

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
