package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-shop/internal/infrastructure/store"
	"github.com/example/ec-shop/internal/logger"
)

// MockEventStore wraps the in-memory event store with call recording and
// injectable failures.
type MockEventStore struct {
	inner *store.EventStore

	mu                sync.Mutex
	AppendCalls       []AppendCall
	SaveSnapshotCalls []store.Snapshot
	AppendErr         error
	GetEventsErr      error
	// AppendCallback, when set, replaces the append itself. It may call
	// Append again after clearing itself.
	AppendCallback func(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*store.Event, error)
}

type AppendCall struct {
	AggregateID     string
	AggregateType   string
	EventType       string
	ExpectedVersion int
	Data            any
}

var _ store.EventStoreInterface = (*MockEventStore)(nil)

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{inner: store.NewEventStore(nil, logger.Discard())}
}

func (m *MockEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*store.Event, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{
		AggregateID:     aggregateID,
		AggregateType:   aggregateType,
		EventType:       eventType,
		ExpectedVersion: expectedVersion,
		Data:            data,
	})
	callback, failure := m.AppendCallback, m.AppendErr
	m.mu.Unlock()

	switch {
	case callback != nil:
		return callback(ctx, aggregateID, aggregateType, eventType, expectedVersion, data)
	case failure != nil:
		return nil, failure
	}
	return m.inner.Append(ctx, aggregateID, aggregateType, eventType, expectedVersion, data)
}

func (m *MockEventStore) readErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetEventsErr
}

func (m *MockEventStore) GetEvents(ctx context.Context, aggregateID string) ([]store.Event, error) {
	if err := m.readErr(); err != nil {
		return nil, err
	}
	return m.inner.GetEvents(ctx, aggregateID)
}

func (m *MockEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, version int) ([]store.Event, error) {
	if err := m.readErr(); err != nil {
		return nil, err
	}
	return m.inner.GetEventsFromVersion(ctx, aggregateID, version)
}

func (m *MockEventStore) GetEventsByType(ctx context.Context, aggregateType string) ([]store.Event, error) {
	return m.inner.GetEventsByType(ctx, aggregateType)
}

func (m *MockEventStore) GetAllEvents(ctx context.Context) ([]store.Event, error) {
	return m.inner.GetAllEvents(ctx)
}

func (m *MockEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*store.Snapshot, error) {
	return m.inner.GetSnapshot(ctx, aggregateID)
}

func (m *MockEventStore) SaveSnapshot(ctx context.Context, snapshot *store.Snapshot) error {
	m.mu.Lock()
	m.SaveSnapshotCalls = append(m.SaveSnapshotCalls, *snapshot)
	m.mu.Unlock()
	return m.inner.SaveSnapshot(ctx, snapshot)
}

// AddEvent appends an event at the next version without recording a call.
func (m *MockEventStore) AddEvent(aggregateID, aggregateType, eventType string, data any) error {
	ctx := context.Background()
	existing, err := m.inner.GetEvents(ctx, aggregateID)
	if err != nil {
		return err
	}
	_, err = m.inner.Append(ctx, aggregateID, aggregateType, eventType, len(existing), data)
	return err
}
