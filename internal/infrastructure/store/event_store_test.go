package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-shop/internal/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(Event))
	return p.err
}

// ============================================
// Append Tests
// ============================================

func TestEventStore_Append_AssignsVersionsAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	es := NewEventStore(pub, logger.Discard())
	ctx := context.Background()

	e1, err := es.Append(ctx, "order-1", "Order", "OrderPlaced", 0, map[string]string{"a": "b"})
	require.NoError(t, err)
	e2, err := es.Append(ctx, "order-1", "Order", "OrderStatusUpdated", 1, map[string]string{"status": "paid"})
	require.NoError(t, err)

	assert.Equal(t, 1, e1.Version)
	assert.Equal(t, 2, e2.Version)
	assert.NotEmpty(t, e1.ID)
	assert.JSONEq(t, `{"a":"b"}`, string(e1.Data))

	require.Len(t, pub.events, 2)
	assert.Equal(t, []string{"order-1", "order-1"}, pub.keys)
}

func TestEventStore_Append_VersionConflict(t *testing.T) {
	es := NewEventStore(nil, logger.Discard())
	ctx := context.Background()

	_, err := es.Append(ctx, "order-1", "Order", "OrderPlaced", 0, struct{}{})
	require.NoError(t, err)

	_, err = es.Append(ctx, "order-1", "Order", "OrderPlaced", 0, struct{}{})
	assert.ErrorIs(t, err, ErrVersionConflict)

	events, err := es.GetEvents(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventStore_Append_ConcurrentCreatesOnlyOneWins(t *testing.T) {
	es := NewEventStore(nil, logger.Discard())
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := es.Append(ctx, "order-x", "Order", "OrderPlaced", 0, struct{}{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestEventStore_Append_PublishesInVersionOrder(t *testing.T) {
	pub := &recordingPublisher{}
	es := NewEventStore(pub, logger.Discard())
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 25; {
				events, _ := es.GetEvents(ctx, "order-1")
				if _, err := es.Append(ctx, "order-1", "Order", "E", len(events), struct{}{}); err == nil {
					n++
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, pub.events, 200)
	for i, e := range pub.events {
		assert.Equal(t, i+1, e.Version)
	}
}

func TestEventStore_Append_PublishFailureStillStores(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	es := NewEventStore(pub, logger.Discard())
	ctx := context.Background()

	event, err := es.Append(ctx, "order-1", "Order", "OrderPlaced", 0, struct{}{})
	require.NoError(t, err)
	assert.NotNil(t, event)

	events, _ := es.GetEvents(ctx, "order-1")
	assert.Len(t, events, 1)
}

// ============================================
// Query Tests
// ============================================

func TestEventStore_GetEventsFromVersion(t *testing.T) {
	es := NewEventStore(nil, logger.Discard())
	ctx := context.Background()
	for v := 0; v < 4; v++ {
		_, err := es.Append(ctx, "order-1", "Order", "E", v, struct{}{})
		require.NoError(t, err)
	}

	events, err := es.GetEventsFromVersion(ctx, "order-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 3, events[0].Version)
	assert.Equal(t, 4, events[1].Version)
}

func TestEventStore_GetEventsByType(t *testing.T) {
	es := NewEventStore(nil, logger.Discard())
	ctx := context.Background()
	_, _ = es.Append(ctx, "order-1", "Order", "OrderPlaced", 0, struct{}{})
	_, _ = es.Append(ctx, "other-1", "Other", "Created", 0, struct{}{})

	events, err := es.GetEventsByType(ctx, "Order")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order-1", events[0].AggregateID)

	all, err := es.GetAllEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEventStore_GetAllEvents_AppendOrder(t *testing.T) {
	es := NewEventStore(nil, logger.Discard())
	ctx := context.Background()
	_, _ = es.Append(ctx, "b", "Order", "OrderPlaced", 0, struct{}{})
	_, _ = es.Append(ctx, "a", "Order", "OrderPlaced", 0, struct{}{})
	_, _ = es.Append(ctx, "b", "Order", "OrderStatusUpdated", 1, struct{}{})

	all, err := es.GetAllEvents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "b"}, []string{all[0].AggregateID, all[1].AggregateID, all[2].AggregateID})

	tail, err := es.GetEventsFromVersion(ctx, "b", 5)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func TestEventStore_GetEvents_ReturnsCopy(t *testing.T) {
	es := NewEventStore(nil, logger.Discard())
	ctx := context.Background()
	_, _ = es.Append(ctx, "order-1", "Order", "OrderPlaced", 0, struct{}{})

	events, _ := es.GetEvents(ctx, "order-1")
	events[0].EventType = "mutated"

	again, _ := es.GetEvents(ctx, "order-1")
	assert.Equal(t, "OrderPlaced", again[0].EventType)
}

// ============================================
// Snapshot Tests
// ============================================

func TestEventStore_Snapshots(t *testing.T) {
	es := NewEventStore(nil, logger.Discard())
	ctx := context.Background()

	snap, err := es.GetSnapshot(ctx, "order-1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, es.SaveSnapshot(ctx, &Snapshot{
		AggregateID:   "order-1",
		AggregateType: "Order",
		Version:       10,
		State:         []byte(`{"id":"order-1"}`),
	}))

	snap, err = es.GetSnapshot(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 10, snap.Version)
	assert.JSONEq(t, `{"id":"order-1"}`, string(snap.State))
}
