// Package config loads and validates Cortex service configuration via Viper:
// environment-first loading with an optional file overlay, defaults set
// before the file/env pass, and a Validate step enforcing invariants the
// rest of the service assumes hold.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every environment-configurable knob for the service.
type Config struct {
	SocketPath   string             `mapstructure:"socket_path"`
	DataDir      string             `mapstructure:"data_dir"`
	MaxNodes     int                `mapstructure:"max_nodes"`
	TimeoutMs    int                `mapstructure:"timeout_ms"`
	HTTPPort     int                `mapstructure:"http_port"` // 0 disables the REST mirror
	ChromiumPath string             `mapstructure:"chromium_path"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Fetch        FetchConfig        `mapstructure:"fetch"`
	Render       RenderConfig       `mapstructure:"render"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Attemptstore AttemptStoreConfig `mapstructure:"attemptstore"`
	Storage      StorageConfig      `mapstructure:"storage"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FetchConfig governs the HTTP Fetcher and Discovery.
type FetchConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	PerHostConcurrency int    `mapstructure:"per_host_concurrency"`
	PerHostQPS         float64 `mapstructure:"per_host_qps"`
	GlobalConcurrency  int    `mapstructure:"global_concurrency"`
	RespectRobots      bool   `mapstructure:"respect_robots"`
	MaxRedirects       int    `mapstructure:"max_redirects"`
}

// RenderConfig governs the Browser Fallback pool.
type RenderConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	PoolSize           int  `mapstructure:"pool_size"`
	PageTimeoutSeconds int  `mapstructure:"page_timeout_seconds"`
	MaxLifetimeMinutes int  `mapstructure:"max_lifetime_minutes"`
	IdleKillMinutes    int  `mapstructure:"idle_kill_minutes"`
	RecyclePages       int  `mapstructure:"recycle_pages"`
	CompletenessThresh float64 `mapstructure:"completeness_threshold"`
}

// CacheConfig bounds the Map Cache.
type CacheConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// AttemptStoreConfig selects the mapping-attempt ledger backend.
type AttemptStoreConfig struct {
	Backend string `mapstructure:"backend"` // "memory" | "sqlite" | "postgres"
	DSN     string `mapstructure:"dsn"`
}

// StorageConfig selects the optional raw-HTML blob store backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // "memory" | "local" | "gcs"
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// Load builds a Config from an optional file path plus CORTEX_-prefixed
// environment variables, using Viper's env-prefix + AutomaticEnv pattern.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("socket_path", "/tmp/cortex.sock")
	v.SetDefault("data_dir", "~/.cortex")
	v.SetDefault("max_nodes", 50000)
	v.SetDefault("timeout_ms", 30000)
	v.SetDefault("http_port", 0)
	v.SetDefault("logging.development", false)

	v.SetDefault("fetch.user_agent", "CortexMapper/1.0 (+https://cortexmap.dev/bot)")
	v.SetDefault("fetch.per_host_concurrency", 5)
	v.SetDefault("fetch.per_host_qps", 4)
	v.SetDefault("fetch.global_concurrency", 64)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.max_redirects", 10)

	v.SetDefault("render.enabled", true)
	v.SetDefault("render.pool_size", 8)
	v.SetDefault("render.page_timeout_seconds", 20)
	v.SetDefault("render.max_lifetime_minutes", 30)
	v.SetDefault("render.idle_kill_minutes", 5)
	v.SetDefault("render.recycle_pages", 50)
	v.SetDefault("render.completeness_threshold", 0.20)

	v.SetDefault("cache.max_bytes", 200*1024*1024)

	v.SetDefault("attemptstore.backend", "sqlite")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "~/.cortex/blobs")
}

// Validate enforces the invariants the rest of the service assumes hold.
func (c Config) Validate() error {
	if c.MaxNodes <= 0 {
		return fmt.Errorf("max_nodes must be > 0")
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be > 0")
	}
	if c.Fetch.PerHostConcurrency <= 0 {
		return fmt.Errorf("fetch.per_host_concurrency must be > 0")
	}
	if c.Fetch.GlobalConcurrency <= 0 {
		return fmt.Errorf("fetch.global_concurrency must be > 0")
	}
	if c.Render.Enabled && c.Render.PoolSize <= 0 {
		return fmt.Errorf("render.pool_size must be > 0 when render is enabled")
	}
	if c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache.max_bytes must be > 0")
	}
	switch c.Attemptstore.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("attemptstore.backend must be one of memory|sqlite|postgres")
	}
	switch c.Storage.Backend {
	case "memory", "local", "gcs":
	default:
		return fmt.Errorf("storage.backend must be one of memory|local|gcs")
	}
	return nil
}

// Deadline converts TimeoutMs into a time.Duration for context.WithTimeout.
func (c Config) Deadline() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
