package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCS writes blobs to a configured Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a GCS-backed Store.
func NewGCS(client *storage.Client, bucket string) (*GCS, error) {
	if client == nil {
		return nil, fmt.Errorf("blobstore: gcs client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("blobstore: gcs bucket is required")
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *GCS) PutObject(ctx context.Context, path, contentType string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("blobstore: path is required")
	}
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("blobstore: upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("blobstore: close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Close releases the underlying GCS client.
func (s *GCS) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("blobstore: close gcs client: %w", err)
	}
	return nil
}
