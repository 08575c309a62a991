package store

import (
	"context"
	"encoding/json"
)

// ReadStoreInterface stores JSON read models grouped by collection.
type ReadStoreInterface interface {
	// Set stores a read model, replacing any existing one
	Set(ctx context.Context, collection, id string, data any) error

	// Get decodes the read model into dest; false when absent
	Get(ctx context.Context, collection, id string, dest any) (bool, error)

	// List returns every document in a collection
	List(ctx context.Context, collection string) ([]json.RawMessage, error)

	// Delete removes a read model; absent ids are not an error
	Delete(ctx context.Context, collection, id string) error
}
