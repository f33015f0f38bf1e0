package blobstore

import (
	"context"
	"sync"
)

// Memory is an in-memory Store for tests and local development.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemory creates an empty in-memory object store
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Get downloads an object
func (m *Memory) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[objectKey(bucket, key)]
	if !ok {
		return nil, ErrObjectNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put uploads an object
func (m *Memory) Put(ctx context.Context, bucket, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[objectKey(bucket, key)] = stored
	return nil
}

// Delete removes an object; absent keys are not an error
func (m *Memory) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, objectKey(bucket, key))
	return nil
}

// Len reports how many objects are stored (test helper)
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}
