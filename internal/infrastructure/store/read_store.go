package store

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
)

type collection map[string]json.RawMessage

// ReadStore keeps projected documents in memory, one collection per read
// model. Documents are stored encoded so callers never share memory with it.
type ReadStore struct {
	mu          sync.RWMutex
	collections map[string]collection
}

func NewReadStore() *ReadStore {
	return &ReadStore{collections: make(map[string]collection)}
}

func (rs *ReadStore) Set(_ context.Context, name, id string, data any) error {
	doc, err := json.Marshal(data)
	if err != nil {
		return err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	c, ok := rs.collections[name]
	if !ok {
		c = make(collection)
		rs.collections[name] = c
	}
	c[id] = doc
	return nil
}

func (rs *ReadStore) Get(_ context.Context, name, id string, dest any) (bool, error) {
	rs.mu.RLock()
	doc, ok := rs.collections[name][id]
	rs.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(doc, dest)
}

// List returns the documents of a collection in id order.
func (rs *ReadStore) List(_ context.Context, name string) ([]json.RawMessage, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	c := rs.collections[name]
	docs := make([]json.RawMessage, 0, len(c))
	for _, id := range slices.Sorted(maps.Keys(c)) {
		docs = append(docs, c[id])
	}
	return docs, nil
}

func (rs *ReadStore) Delete(_ context.Context, name, id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.collections[name], id)
	return nil
}
