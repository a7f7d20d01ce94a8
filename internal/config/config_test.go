package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dialect", func(c *Config) { c.Scan.Dialect = "oracle" }},
		{"encoding", func(c *Config) { c.Scan.Encoding = "no-such-charset" }},
		{"connections", func(c *Config) { c.Ledger.MaxConnections = 0 }},
		{"listen addr", func(c *Config) { c.API.ListenAddr = "" }},
		{"schedule", func(c *Config) { c.Sync.Schedule = "every tuesday" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Scan.Dialect = "postgres"
	cfg.Ledger.URL = "postgres://localhost:5432/ledger"
	cfg.Ledger.ConnectTimeout = 3 * time.Second
	cfg.Sync.Paths = []string{"migrations", "s3://bucket/schema.sql"}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.File() != path {
		t.Errorf("file = %q", loaded.File())
	}
	if loaded.Scan.Dialect != "postgres" {
		t.Errorf("dialect = %q", loaded.Scan.Dialect)
	}
	if loaded.Ledger.URL != cfg.Ledger.URL {
		t.Errorf("ledger url = %q", loaded.Ledger.URL)
	}
	if loaded.Ledger.ConnectTimeout != 3*time.Second {
		t.Errorf("connect timeout = %v", loaded.Ledger.ConnectTimeout)
	}
	if len(loaded.Sync.Paths) != 2 || loaded.Sync.Paths[1] != "s3://bucket/schema.sql" {
		t.Errorf("sync paths = %v", loaded.Sync.Paths)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLEXTRAS_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := Set(path, "ledger.max_connections", "8"); err != nil {
		t.Fatal(err)
	}
	if err := Set(path, "sync.paths", "a.sql, b.sql"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ledger.MaxConnections != 8 {
		t.Errorf("max connections = %d", cfg.Ledger.MaxConnections)
	}
	if len(cfg.Sync.Paths) != 2 || cfg.Sync.Paths[0] != "a.sql" {
		t.Errorf("sync paths = %v", cfg.Sync.Paths)
	}

	if err := Set(path, "no.such.key", "x"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown key, got %v", err)
	}
	if err := Set(path, "scan.dialect", "oracle"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for bad dialect, got %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("SQLEXTRAS_TEST_ONLY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SQLEXTRAS_TEST_ONLY", "")
	os.Unsetenv("SQLEXTRAS_TEST_ONLY")

	if err := loadEnvFile(envPath); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("SQLEXTRAS_TEST_ONLY"); got != "from-dotenv" {
		t.Errorf("SQLEXTRAS_TEST_ONLY = %q", got)
	}
	if err := loadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.URL = "postgres://app:hunter2@db:5432/ledger"
	cfg.API.JWTSecret = "signing-key"

	got := cfg.Redacted()
	if got["ledger.url"] != "postgres://app:xxxxx@db:5432/ledger" {
		t.Errorf("ledger.url = %v", got["ledger.url"])
	}
	if got["api.jwt_secret"] != "****" {
		t.Errorf("api.jwt_secret = %v", got["api.jwt_secret"])
	}
	if got["source.s3_secret_key"] != "" {
		t.Errorf("empty secret should stay empty, got %v", got["source.s3_secret_key"])
	}
	if got["ledger.connect_timeout"] != "10s" {
		t.Errorf("ledger.connect_timeout = %v", got["ledger.connect_timeout"])
	}
}

func TestRedactURLWithoutPassword(t *testing.T) {
	for _, raw := range []string{"", "postgres://db/ledger", "postgres://app@db/ledger"} {
		if got := RedactURL(raw); got != raw {
			t.Errorf("RedactURL(%q) = %q", raw, got)
		}
	}
}

func TestRedactURLMasksPassword(t *testing.T) {
	got := RedactURL("postgres://app:p%40ss@db:5432/ledger?sslmode=disable")
	if got != "postgres://app:xxxxx@db:5432/ledger?sslmode=disable" {
		t.Errorf("RedactURL = %q", got)
	}
}
