// Package objectstore persists uploaded lab documents under their
// content-addressed keys. The production backend is Google Cloud Storage;
// an in-memory store backs tests and local development.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"flomentum/domain/core"
	"flomentum/ports"
)

// GCSStore implements ObjectStore on a Google Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore opens a GCS-backed store. Credentials come from the ambient
// environment (ADC).
func NewGCSStore(ctx context.Context, bucket string) (ports.ObjectStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Put writes an object. Content-addressed keys make re-writes idempotent.
func (s *GCSStore) Put(ctx context.Context, key string, contentType string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("%w: write %s: %v", core.ErrExternalStore, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: finalize %s: %v", core.ErrExternalStore, key, err)
	}
	return nil
}

// Get opens an object for reading
func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, core.NewNotFoundError("object", key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrExternalStore, key, err)
	}
	return r, nil
}

// Delete removes an object; a missing key is not an error
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: delete %s: %v", core.ErrExternalStore, key, err)
	}
	return nil
}
