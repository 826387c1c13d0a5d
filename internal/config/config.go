package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Telegram struct {
		Token  string  `yaml:"token"`
		Debug  bool    `yaml:"debug"`
		Admins []int64 `yaml:"admins"`
	} `yaml:"telegram"`
	Storage struct {
		Postgres struct {
			URL    string `yaml:"url"`
			Driver string `yaml:"driver"`
		} `yaml:"postgres"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Quiz struct {
		DefaultLimit   int    `yaml:"default_limit"`
		MaxLimit       int    `yaml:"max_limit"`
		DefaultSeconds int    `yaml:"default_seconds"`
		MinSeconds     int    `yaml:"min_seconds"`
		MaxSeconds     int    `yaml:"max_seconds"`
		Grace          string `yaml:"grace"`
		ImagePause     string `yaml:"image_pause"`
		RetryPause     string `yaml:"retry_pause"`
		CountTTL       string `yaml:"count_ttl"`
	} `yaml:"quiz"`
	Images struct {
		S3 struct {
			Region          string `yaml:"region"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			Endpoint        string `yaml:"endpoint"`
			PresignTTL      string `yaml:"presign_ttl"`
		} `yaml:"s3"`
	} `yaml:"images"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file is not an error; the service can run from the environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.Postgres.URL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ADMIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.Admins = append(cfg.Telegram.Admins, id)
		}
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// OrDefault returns v unless it is zero.
func OrDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
