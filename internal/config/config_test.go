package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.News.Language != "en" {
		t.Errorf("expected language 'en', got %q", cfg.News.Language)
	}
	if cfg.News.CacheTTL != 5*time.Minute {
		t.Errorf("expected cache_ttl 5m, got %s", cfg.News.CacheTTL)
	}
	if cfg.Images.CacheTTL != time.Hour {
		t.Errorf("expected image cache_ttl 1h, got %s", cfg.Images.CacheTTL)
	}
	if cfg.Images.Timeout != 5*time.Second {
		t.Errorf("expected image timeout 5s, got %s", cfg.Images.Timeout)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected port 5000, got %d", cfg.Server.Port)
	}
	if !cfg.Server.RequireLogin {
		t.Error("expected require_login to default to true")
	}
	if cfg.News.CacheMaxEntries != 500 {
		t.Errorf("expected news cache_max_entries 500, got %d", cfg.News.CacheMaxEntries)
	}
	if cfg.Images.CacheMaxEntries != 200 {
		t.Errorf("expected image cache_max_entries 200, got %d", cfg.Images.CacheMaxEntries)
	}
	if cfg.Images.AllowPrivateNetworks {
		t.Error("expected allow_private_networks to default to false")
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
news:
  timeout: 3s
server:
  port: 9000
  require_login: false
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.News.Timeout != 3*time.Second {
		t.Errorf("expected timeout 3s, got %s", cfg.News.Timeout)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequireLogin {
		t.Error("expected require_login false")
	}
	// Defaults should still be set for unspecified fields
	if cfg.News.BaseURL != "https://newsapi.org/v2" {
		t.Errorf("expected default base_url, got %q", cfg.News.BaseURL)
	}
	if cfg.Server.SessionSecretEnv != "SECRET_KEY" {
		t.Errorf("expected default session_secret_env, got %q", cfg.Server.SessionSecretEnv)
	}
}

func TestParseRejectsBadPort(t *testing.T) {
	if _, err := parse([]byte("server:\n  port: 70000\n")); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestParseRejectsNegativeCacheCap(t *testing.T) {
	if _, err := parse([]byte("images:\n  cache_max_entries: -1\n")); err == nil {
		t.Error("expected error for negative images.cache_max_entries")
	}
	if _, err := parse([]byte("news:\n  cache_max_entries: -5\n")); err == nil {
		t.Error("expected error for negative news.cache_max_entries")
	}
}

func TestPortEnvOverride(t *testing.T) {
	t.Setenv("PORT", "8123")
	cfg, err := parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("expected port 8123 from env, got %d", cfg.Server.Port)
	}
	if cfg.Addr() != "127.0.0.1:8123" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}

func TestSecretsFromEnv(t *testing.T) {
	t.Setenv("NEWSAPI_KEY", "k-123")
	t.Setenv("SECRET_KEY", "s-456")
	cfg, err := parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey() != "k-123" {
		t.Errorf("expected api key from env, got %q", cfg.APIKey())
	}
	if cfg.SessionSecret() != "s-456" {
		t.Errorf("expected session secret from env, got %q", cfg.SessionSecret())
	}
}

func TestDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, _ := parse(nil)
	cfg.Output.DataDir = "/data"
	if got := cfg.DatabaseURL(); got != filepath.Join("/data", "newsportal.db") {
		t.Errorf("unexpected default database url %q", got)
	}

	cfg.Database.Path = "/tmp/users.db"
	if got := cfg.DatabaseURL(); got != "/tmp/users.db" {
		t.Errorf("expected configured path, got %q", got)
	}

	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	got := cfg.DatabaseURL()
	if !IsPostgres(got) {
		t.Errorf("expected postgres url, got %q", got)
	}
	if IsPostgres("sqlite:///tmp/x.db") {
		t.Error("sqlite url must not be treated as postgres")
	}
	if SQLitePath("sqlite:///tmp/x.db") != "/tmp/x.db" {
		t.Errorf("unexpected sqlite path %q", SQLitePath("sqlite:///tmp/x.db"))
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.News.APIKeyEnv != "NEWSAPI_KEY" {
		t.Errorf("expected api_key_env from file, got %q", cfg.News.APIKeyEnv)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.News.CacheTTL != 5*time.Minute {
		t.Errorf("expected default cache ttl, got %s", cfg.News.CacheTTL)
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
