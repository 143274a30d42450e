package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is empty
// or the file is missing), merges it on top of the built-in defaults,
// applies PARIBET_* environment variable overrides, and returns the final
// Config. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PARIBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject connection strings at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "PARIBET_SERVER_PORT")
	setDuration(&cfg.Server.ReadTimeout, "PARIBET_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "PARIBET_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "PARIBET_SERVER_SHUTDOWN_TIMEOUT")

	setStr(&cfg.Database.URL, "PARIBET_DATABASE_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL") // deploy platform convention
	setInt(&cfg.Database.PoolMaxConns, "PARIBET_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "PARIBET_DATABASE_POOL_MIN_CONNS")

	setStr(&cfg.Redis.Addr, "PARIBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PARIBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PARIBET_REDIS_DB")
	setDuration(&cfg.Redis.CacheTTL, "PARIBET_REDIS_CACHE_TTL")

	setStr(&cfg.LogLevel, "PARIBET_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
