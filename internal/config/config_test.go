package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
server:
  port: "9090"
telegram:
  token: file-token
  admins: [1]
storage:
  postgres:
    url: postgres://file
    driver: pgx
  sqlite:
    path: data/quiz.db
quiz:
  max_limit: 40
  grace: 3s
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ADMIN_ID", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Storage.Postgres.Driver != "pgx" || cfg.Storage.SQLite.Path != "data/quiz.db" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Storage.Postgres.URL != "postgres://env" {
		t.Fatalf("expected env override, got %q", cfg.Storage.Postgres.URL)
	}
	if cfg.Telegram.Token != "file-token" {
		t.Fatalf("empty env must not override, got %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.Admins) != 2 || cfg.Telegram.Admins[1] != 42 {
		t.Fatalf("unexpected admins %v", cfg.Telegram.Admins)
	}
	if cfg.Quiz.MaxLimit != 40 || TTLDuration(cfg.Quiz.Grace, time.Second) != 3*time.Second {
		t.Fatalf("unexpected quiz section %+v", cfg.Quiz)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("SQLITE_PATH", "/tmp/q.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Storage.SQLite.Path != "/tmp/q.db" {
		t.Fatalf("unexpected sqlite path %q", cfg.Storage.SQLite.Path)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid value, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	if OrDefault(0, 20) != 20 || OrDefault(5, 20) != 5 {
		t.Fatalf("unexpected OrDefault")
	}
}
