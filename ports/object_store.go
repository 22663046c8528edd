package ports

import (
	"context"
	"io"
)

// ObjectStore persists uploaded files under content-addressed keys
type ObjectStore interface {
	// Put stores an object; writing the same key twice is idempotent
	Put(ctx context.Context, key string, contentType string, r io.Reader) error

	// Get opens an object for reading; callers close the returned reader
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
