package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute, zaptest.NewLogger(t))

	session := app.NewSession(42, -100, nil, 15*time.Second)
	if err := store.Register(session); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !mr.Exists("quiz:session:-100") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:session:-100"); ttl != time.Minute {
		t.Fatalf("expected mirror ttl of a minute, got %v", ttl)
	}
	if id, ok := store.LiveSessionID(context.Background(), -100); !ok || id != 42 {
		t.Fatalf("expected mirrored session 42, got %d %v", id, ok)
	}

	if err := store.Register(app.NewSession(43, -100, nil, 15*time.Second)); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("expected already running, got %v", err)
	}

	store.Remove(session)
	if mr.Exists("quiz:session:-100") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get(-100); ok {
		t.Fatalf("expected session removed locally")
	}
}

func TestSessionStoreLogsMirrorFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	core, logs := observer.New(zap.WarnLevel)
	store := NewSessionStore(client, time.Minute, zap.New(core))

	session := app.NewSession(42, -100, nil, 15*time.Second)
	if err := store.Register(session); err != nil {
		t.Fatalf("mirror failure must not block a start: %v", err)
	}
	if _, ok := store.Get(-100); !ok {
		t.Fatalf("expected session registered locally")
	}
	store.Remove(session)

	if n := logs.FilterMessage("mirror live session").Len(); n != 1 {
		t.Fatalf("expected one set warning, got %d", n)
	}
	if n := logs.FilterMessage("clear live session mirror").Len(); n != 1 {
		t.Fatalf("expected one del warning, got %d", n)
	}
}
