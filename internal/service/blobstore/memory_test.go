package blobstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_PutObjectRoundTrip(t *testing.T) {
	s := NewMemory()
	uri, err := s.PutObject(context.Background(), "example.com/raw.html", "text/html", bytes.NewReader([]byte("<html></html>")))
	require.NoError(t, err)
	require.Equal(t, "memory://example.com/raw.html", uri)

	got, ok := s.Get("example.com/raw.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html></html>"), got)
}

func TestMemory_GetMissingPathReturnsFalse(t *testing.T) {
	s := NewMemory()
	_, ok := s.Get("nope")
	require.False(t, ok)
}
