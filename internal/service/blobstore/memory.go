package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory stores blob content in-process; the default backend and what
// every test in this package runs against.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// PutObject persists the content and returns a memory:// URI.
func (s *Memory) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read blob data: %w", err)
	}
	s.mu.Lock()
	s.data[path] = b
	s.mu.Unlock()
	return "memory://" + path, nil
}

// Get returns the stored content for path, for tests.
func (s *Memory) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[path]
	return b, ok
}

// Close is a no-op for Memory.
func (s *Memory) Close() error { return nil }
