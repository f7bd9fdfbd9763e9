package storage

import (
	"context"
	"fmt"
	"sync"
)

// MockObjectStore is an in-memory ObjectStore for testing.
type MockObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutFunc  func(ctx context.Context, key string, data []byte, contentType string) error
	PutCalls int
	GetCalls int
}

var _ ObjectStore = (*MockObjectStore)(nil)

// NewMockObjectStore creates an empty in-memory store.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: make(map[string][]byte)}
}

// Put stores data under key, or delegates to PutFunc when set.
func (m *MockObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, data, contentType)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = stored
	return nil
}

// Get returns the data stored under key.
func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	data, ok := m.objects[key]
	if !ok {
		return nil, &StoreError{Op: "get", Key: key, Cause: fmt.Errorf("key not found")}
	}
	return data, nil
}

// Keys returns the stored keys, for assertions.
func (m *MockObjectStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// Reset clears stored objects and call counters.
func (m *MockObjectStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = make(map[string][]byte)
	m.PutFunc = nil
	m.PutCalls = 0
	m.GetCalls = 0
}
