// Package blobstore persists the sealed Map bytes of each successful
// mapping attempt under maps/<domain>.ctx (never required to serve a
// query, which reads the in-memory Map Cache) behind a single interface with local filesystem,
// in-memory, and Google Cloud Storage backends, unified on an
// io.Reader-based PutObject signature so all three implementations share
// one consistent contract.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/cortexmap/cortex/internal/config"
)

// Store persists a blob under path and returns a URI identifying it.
type Store interface {
	PutObject(ctx context.Context, path, contentType string, data io.Reader) (string, error)
	Close() error
}

// Open constructs the configured Store backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "local":
		return NewLocal(cfg.LocalDir)
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("blobstore: create gcs client: %w", err)
		}
		return NewGCS(client, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("blobstore: unknown backend %q", cfg.Backend)
	}
}
