package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/example/ec-shop/internal/infrastructure/store"
)

// MockReadStore wraps the in-memory read store, recording writes and
// optionally failing them.
type MockReadStore struct {
	inner *store.ReadStore

	mu          sync.Mutex
	SetCalls    []SetCall
	DeleteCalls []DeleteCall
	SetErr      error
}

type SetCall struct {
	Collection string
	ID         string
	Data       any
}

type DeleteCall struct {
	Collection string
	ID         string
}

var _ store.ReadStoreInterface = (*MockReadStore)(nil)

func NewMockReadStore() *MockReadStore {
	return &MockReadStore{inner: store.NewReadStore()}
}

func (m *MockReadStore) Set(ctx context.Context, collection, id string, data any) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, SetCall{Collection: collection, ID: id, Data: data})
	err := m.SetErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.Set(ctx, collection, id, data)
}

func (m *MockReadStore) Get(ctx context.Context, collection, id string, dest any) (bool, error) {
	return m.inner.Get(ctx, collection, id, dest)
}

func (m *MockReadStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return m.inner.List(ctx, collection)
}

func (m *MockReadStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, DeleteCall{Collection: collection, ID: id})
	m.mu.Unlock()
	return m.inner.Delete(ctx, collection, id)
}

// Count is the number of documents currently in collection.
func (m *MockReadStore) Count(collection string) int {
	docs, _ := m.inner.List(context.Background(), collection)
	return len(docs)
}
