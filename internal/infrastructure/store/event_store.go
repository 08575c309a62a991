package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

func newEvent(aggregateID, aggregateType, eventType string, version int, data any) (Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     time.Now().UTC(),
		Version:       version,
	}, nil
}

// publish hands the event to the publisher. The event is already durable at
// this point, so failures are logged rather than returned.
func publish(ctx context.Context, p Publisher, logger *slog.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event.AggregateID, event); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", err.Error()),
		)
	}
}

// EventStore keeps events in memory and publishes them after append. log
// holds every event in append order; streams indexes it per aggregate.
// publishMu serialises publication so subscribers see append order.
type EventStore struct {
	mu        sync.RWMutex
	publishMu sync.Mutex
	log       []Event
	streams   map[string][]int
	snapshots map[string]Snapshot
	publisher Publisher
	logger    *slog.Logger
}

func NewEventStore(publisher Publisher, logger *slog.Logger) *EventStore {
	return &EventStore{
		streams:   make(map[string][]int),
		snapshots: make(map[string]Snapshot),
		publisher: publisher,
		logger:    logger,
	}
}

// Append stores the event and publishes it. Publication order matches append
// order: the publish lock is taken before the store lock is released.
func (es *EventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*Event, error) {
	es.mu.Lock()
	if len(es.streams[aggregateID]) != expectedVersion {
		es.mu.Unlock()
		return nil, ErrVersionConflict
	}
	event, err := newEvent(aggregateID, aggregateType, eventType, expectedVersion+1, data)
	if err != nil {
		es.mu.Unlock()
		return nil, err
	}
	es.streams[aggregateID] = append(es.streams[aggregateID], len(es.log))
	es.log = append(es.log, event)

	es.publishMu.Lock()
	es.mu.Unlock()
	defer es.publishMu.Unlock()

	publish(ctx, es.publisher, es.logger, event)
	return &event, nil
}

func (es *EventStore) GetEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	return es.GetEventsFromVersion(ctx, aggregateID, 0)
}

func (es *EventStore) GetEventsFromVersion(_ context.Context, aggregateID string, version int) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	idx := es.streams[aggregateID]
	if version >= len(idx) {
		return nil, nil
	}
	out := make([]Event, 0, len(idx)-version)
	for _, i := range idx[max(version, 0):] {
		out = append(out, es.log[i])
	}
	return out, nil
}

func (es *EventStore) GetEventsByType(_ context.Context, aggregateType string) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	var out []Event
	for _, e := range es.log {
		if e.AggregateType == aggregateType {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAllEvents returns every event in append order.
func (es *EventStore) GetAllEvents(_ context.Context) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return slices.Clone(es.log), nil
}

func (es *EventStore) GetSnapshot(_ context.Context, aggregateID string) (*Snapshot, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	s, ok := es.snapshots[aggregateID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (es *EventStore) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.snapshots[snapshot.AggregateID] = *snapshot
	return nil
}
