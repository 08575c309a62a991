// Package aggregate rebuilds event-sourced state from a store.EventStoreInterface.
package aggregate

import (
	"context"
	"fmt"

	"github.com/example/ec-shop/internal/infrastructure/store"
)

// Root is an aggregate whose state is the fold of its events.
type Root interface {
	GetID() string
	GetVersion() int
	ApplyEvent(store.Event) error
}

// Load rebuilds the aggregate id. It starts from the latest snapshot when one
// exists and decodes cleanly, otherwise from an empty value built by fresh.
// The bool is false when the stream has neither snapshot nor events.
func Load[T Root](ctx context.Context, es store.EventStoreInterface, id string, fresh func() T) (T, bool, error) {
	var zero T

	snap, err := es.GetSnapshot(ctx, id)
	if err != nil {
		return zero, false, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	root, from := fresh(), 0
	if snap != nil {
		if err := snap.Decode(root); err == nil {
			from = snap.Version
		} else {
			// unreadable snapshot: fall back to a full replay
			root = fresh()
		}
	}

	var events []store.Event
	if from > 0 {
		events, err = es.GetEventsFromVersion(ctx, id, from)
	} else {
		events, err = es.GetEvents(ctx, id)
	}
	if err != nil {
		return zero, false, fmt.Errorf("load events %s: %w", id, err)
	}

	for _, e := range events {
		if err := root.ApplyEvent(e); err != nil {
			return zero, false, fmt.Errorf("replay %s v%d: %w", id, e.Version, err)
		}
	}
	return root, from > 0 || len(events) > 0, nil
}

// Checkpoint stores a snapshot of root when its version is due for one.
func Checkpoint(ctx context.Context, es store.EventStoreInterface, root Root, aggregateType string) error {
	if !store.SnapshotDue(root.GetVersion()) {
		return nil
	}
	snap, err := store.NewSnapshot(root.GetID(), aggregateType, root.GetVersion(), root)
	if err != nil {
		return err
	}
	if err := es.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot %s: %w", root.GetID(), err)
	}
	return nil
}
