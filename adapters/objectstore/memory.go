package objectstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"flomentum/domain/core"
	"flomentum/ports"
)

// MemoryStore is an in-process ObjectStore for tests and local development
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

var _ ports.ObjectStore = (*MemoryStore)(nil)

// Put stores an object, replacing any previous content under the key
func (s *MemoryStore) Put(ctx context.Context, key string, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

// Get opens a stored object for reading
func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, core.NewNotFoundError("object", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes an object; a missing key is not an error
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Len reports how many objects are stored, for test assertions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
