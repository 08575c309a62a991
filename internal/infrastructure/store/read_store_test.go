package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

func TestReadStore_SetGetDelete(t *testing.T) {
	rs := NewReadStore()
	ctx := context.Background()

	var got doc
	found, err := rs.Get(ctx, "orders", "o1", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, rs.Set(ctx, "orders", "o1", doc{ID: "o1", Total: 115}))

	found, err = rs.Get(ctx, "orders", "o1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc{ID: "o1", Total: 115}, got)

	require.NoError(t, rs.Delete(ctx, "orders", "o1"))
	found, _ = rs.Get(ctx, "orders", "o1", &got)
	assert.False(t, found)

	// deleting again is fine
	assert.NoError(t, rs.Delete(ctx, "orders", "o1"))
}

func TestReadStore_List_SortedByID(t *testing.T) {
	rs := NewReadStore()
	ctx := context.Background()
	require.NoError(t, rs.Set(ctx, "orders", "b", doc{ID: "b"}))
	require.NoError(t, rs.Set(ctx, "orders", "a", doc{ID: "a"}))
	require.NoError(t, rs.Set(ctx, "other", "c", doc{ID: "c"}))

	docs, err := rs.List(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var first doc
	require.NoError(t, json.Unmarshal(docs[0], &first))
	assert.Equal(t, "a", first.ID)

	empty, err := rs.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReadStore_StoresCopies(t *testing.T) {
	rs := NewReadStore()
	ctx := context.Background()

	d := doc{ID: "o1", Total: 1}
	require.NoError(t, rs.Set(ctx, "orders", "o1", &d))
	d.Total = 99

	var got doc
	_, err := rs.Get(ctx, "orders", "o1", &got)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Total)
}
