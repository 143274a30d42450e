package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "" {
		t.Errorf("expected empty database url, got %q", cfg.Database.URL)
	}
	if cfg.Redis.CacheTTL.Duration != 30*time.Second {
		t.Errorf("expected default cache_ttl 30s, got %s", cfg.Redis.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	path := writeTOML(t, `
log_level = "debug"

[server]
port = 9000
shutdown_timeout = "15s"

[database]
url = "postgres://localhost/paribet"
pool_max_conns = 4

[redis]
addr = "localhost:6379"
cache_ttl = "1m"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration != 15*time.Second {
		t.Errorf("shutdown_timeout = %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.URL != "postgres://localhost/paribet" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Database.PoolMinConns != 2 {
		t.Errorf("pool_min_conns default lost, got %d", cfg.Database.PoolMinConns)
	}
	if cfg.Redis.CacheTTL.Duration != time.Minute {
		t.Errorf("cache_ttl = %s", cfg.Redis.CacheTTL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesTOML(t *testing.T) {
	path := writeTOML(t, `
[server]
port = 9000
`)
	t.Setenv("PARIBET_SERVER_PORT", "9999")
	t.Setenv("PARIBET_DATABASE_URL", "postgres://env/override")
	t.Setenv("PARIBET_REDIS_CACHE_TTL", "2m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("env override lost, port = %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://env/override" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Redis.CacheTTL.Duration != 2*time.Minute {
		t.Errorf("cache_ttl = %s", cfg.Redis.CacheTTL)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.Database.PoolMaxConns = 0
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"port", "pool_max_conns", "log_level"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestValidate_RedisTTLOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = ""
	cfg.Redis.CacheTTL.Duration = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("ttl should not matter with redis disabled: %v", err)
	}

	cfg.Redis.Addr = "localhost:6379"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero ttl with redis enabled")
	}
}
