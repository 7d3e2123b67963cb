package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
socket_path: /tmp/custom.sock
max_nodes: 1000
timeout_ms: 9000
fetch:
  user_agent: custom-agent
  per_host_concurrency: 3
  respect_robots: false
render:
  enabled: true
  pool_size: 2
cache:
  max_bytes: 1048576
attemptstore:
  backend: memory
storage:
  backend: local
  local_dir: /tmp/blobs
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SocketPath != "/tmp/custom.sock" {
		t.Fatalf("expected overridden socket path, got %q", cfg.SocketPath)
	}
	if cfg.MaxNodes != 1000 {
		t.Fatalf("expected max_nodes 1000, got %d", cfg.MaxNodes)
	}
	if cfg.Fetch.UserAgent != "custom-agent" || cfg.Fetch.RespectRobots {
		t.Fatalf("expected fetch overrides to apply, got %+v", cfg.Fetch)
	}
	if cfg.Render.PoolSize != 2 {
		t.Fatalf("expected render pool size override, got %d", cfg.Render.PoolSize)
	}
	if cfg.Attemptstore.Backend != "memory" {
		t.Fatalf("expected memory attemptstore backend, got %q", cfg.Attemptstore.Backend)
	}
	if got := cfg.Deadline(); got != 9*time.Second {
		t.Fatalf("expected deadline 9s, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		MaxNodes:     100,
		TimeoutMs:    1000,
		Fetch:        FetchConfig{PerHostConcurrency: 1, GlobalConcurrency: 1},
		Cache:        CacheConfig{MaxBytes: 1024},
		Attemptstore: AttemptStoreConfig{Backend: "memory"},
		Storage:      StorageConfig{Backend: "memory"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid max_nodes",
			cfg: func() Config {
				c := base
				c.MaxNodes = 0
				return c
			}(),
			want: "max_nodes",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.TimeoutMs = 0
				return c
			}(),
			want: "timeout_ms",
		},
		{
			name: "render enabled without pool size",
			cfg: func() Config {
				c := base
				c.Render.Enabled = true
				c.Render.PoolSize = 0
				return c
			}(),
			want: "render.pool_size",
		},
		{
			name: "unknown attemptstore backend",
			cfg: func() Config {
				c := base
				c.Attemptstore.Backend = "bogus"
				return c
			}(),
			want: "attemptstore.backend",
		},
		{
			name: "unknown storage backend",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "bogus"
				return c
			}(),
			want: "storage.backend",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
