package mock

import (
	"context"
	"sync"

	"github.com/jeni5888/mayalens/internal/storage"
)

var _ storage.ObjectStore = (*ObjectStore)(nil)

// ObjectStore is an in-memory test double for storage.ObjectStore.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutFn    func(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteFn func(ctx context.Context, key string) error

	PutCalls    []string
	DeleteCalls []string
}

// NewObjectStore creates a new in-memory object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

func (m *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	m.PutCalls = append(m.PutCalls, key)
	m.mu.Unlock()
	if m.PutFn != nil {
		return m.PutFn(ctx, key, data, contentType)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return "http://storage.test/generated-assets/" + key, nil
}

func (m *ObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, key)
	delete(m.objects, key)
	m.mu.Unlock()
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}
	return nil
}

func (m *ObjectStore) Bucket() string {
	return "generated-assets"
}

// Has reports whether an object exists (for test assertions).
func (m *ObjectStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
