package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes blobs to a directory on the local filesystem.
type Local struct {
	baseDir string
}

// NewLocal creates a filesystem-backed Store rooted at baseDir, creating
// it if necessary.
func NewLocal(baseDir string) (*Local, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("blobstore: local base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("blobstore: create base directory: %w", err)
	}
	return &Local{baseDir: filepath.Clean(baseDir)}, nil
}

// PutObject writes data under path inside baseDir and returns a file:// URI.
func (s *Local) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("blobstore: path is required")
	}

	fullPath := filepath.Clean(filepath.Join(s.baseDir, path))
	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("blobstore: path %q escapes base directory", path)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("blobstore: create parent directories: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("blobstore: create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("blobstore: write file: %w", err)
	}

	return "file://" + fullPath, nil
}

// Close is a no-op for Local.
func (s *Local) Close() error { return nil }
