package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCountCacheCaches(t *testing.T) {
	source := &countingSource{counts: map[string]int{"math": 3}}
	cache := NewCountCache(source, time.Minute)

	if n := cache.Count(context.Background(), "math"); n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	if n := cache.Count(context.Background(), "math"); n != 3 {
		t.Fatalf("expected 3 on second call, got %d", n)
	}
	if source.callCount() != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.callCount())
	}

	source.set("math", 4)
	cache.Invalidate()
	if n := cache.Count(context.Background(), "math"); n != 4 {
		t.Fatalf("expected refreshed count 4, got %d", n)
	}
}

func TestCountCacheExpires(t *testing.T) {
	source := &countingSource{counts: map[string]int{"": 10}}
	cache := NewCountCache(source, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	cache.clock = func() time.Time { return now }

	cache.Count(context.Background(), "")
	now = now.Add(2 * time.Minute)
	cache.Count(context.Background(), "")
	if source.callCount() != 2 {
		t.Fatalf("expected reload after ttl, source calls %d", source.callCount())
	}
}

func TestCountCachePassesSubjectsThrough(t *testing.T) {
	source := &countingSource{subjects: []string{"history"}}
	cache := NewCountCache(source, time.Minute)
	if got := cache.CustomSubjects(context.Background()); len(got) != 1 || got[0] != "history" {
		t.Fatalf("unexpected subjects %v", got)
	}
}

type countingSource struct {
	mu       sync.Mutex
	counts   map[string]int
	subjects []string
	calls    int
}

func (s *countingSource) Count(_ context.Context, subject string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.counts[subject]
}

func (s *countingSource) CustomSubjects(context.Context) []string {
	return s.subjects
}

func (s *countingSource) set(subject string, n int) {
	s.mu.Lock()
	s.counts[subject] = n
	s.mu.Unlock()
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
