package attemptstore

import (
	"context"
	"fmt"

	"github.com/cortexmap/cortex/internal/config"
)

// Open constructs the configured Store backend from a config-driven
// provider switch.
func Open(ctx context.Context, cfg config.AttemptStoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("attemptstore: unknown backend %q", cfg.Backend)
	}
}
