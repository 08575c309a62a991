// Package projection keeps the order read model in step with the event stream.
package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/infrastructure/store"
)

// OrdersCollection is the read-store collection holding one document per order.
const OrdersCollection = "orders"

// ErrVersionGap means an event arrived before one or more of its predecessors.
var ErrVersionGap = errors.New("order stream has a version gap")

// EventSource is where missing events are fetched from when a gap is seen.
type EventSource interface {
	GetEventsFromVersion(ctx context.Context, aggregateID string, version int) ([]store.Event, error)
}

type Projector struct {
	readStore store.ReadStoreInterface
	source    EventSource
	logger    *slog.Logger
}

func NewProjector(readStore store.ReadStoreInterface, logger *slog.Logger) *Projector {
	return &Projector{
		readStore: readStore,
		logger:    logger.With(slog.String("component", "projector")),
	}
}

// WithSource lets the projector fill version gaps from src instead of
// failing the event. Call it before events start flowing.
func (p *Projector) WithSource(src EventSource) *Projector {
	p.source = src
	return p
}

// HandleEvent decodes a message from the event topic and applies it.
func (p *Projector) HandleEvent(ctx context.Context, _, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return p.Apply(ctx, event)
}

// Apply folds one event into the read model. Events at or below the stored
// version are skipped, so redelivery is harmless. Deleted orders stay as
// tombstones so a late OrderPlaced cannot bring them back. An event more than
// one version ahead is a gap: it is filled from the source when one is set
// and reported as ErrVersionGap otherwise.
func (p *Projector) Apply(ctx context.Context, event store.Event) error {
	if event.AggregateType != order.AggregateType {
		return nil
	}

	var view order.Order
	if _, err := p.readStore.Get(ctx, OrdersCollection, event.AggregateID, &view); err != nil {
		return fmt.Errorf("load order view: %w", err)
	}

	switch {
	case event.Version <= view.Version:
		p.logger.DebugContext(ctx, "event already projected",
			slog.String("order_id", event.AggregateID),
			slog.Int("version", event.Version),
		)
		return nil
	case event.Version == view.Version+1:
		if err := view.ApplyEvent(event); err != nil {
			return err
		}
	default:
		if err := p.fillGap(ctx, &view, event); err != nil {
			return err
		}
	}
	return p.save(ctx, event, &view)
}

func (p *Projector) fillGap(ctx context.Context, view *order.Order, event store.Event) error {
	gap := fmt.Errorf("%w: order %s at v%d, received v%d", ErrVersionGap, event.AggregateID, view.Version, event.Version)
	if p.source == nil {
		p.logger.WarnContext(ctx, "order event out of sequence",
			slog.String("order_id", event.AggregateID),
			slog.Int("projected", view.Version),
			slog.Int("received", event.Version),
		)
		return gap
	}

	missing, err := p.source.GetEventsFromVersion(ctx, event.AggregateID, view.Version)
	if err != nil {
		return fmt.Errorf("backfill order %s: %w", event.AggregateID, err)
	}
	for _, e := range missing {
		if e.Version != view.Version+1 {
			return gap
		}
		if err := view.ApplyEvent(e); err != nil {
			return err
		}
	}
	if view.Version < event.Version {
		return gap
	}
	p.logger.InfoContext(ctx, "order stream backfilled",
		slog.String("order_id", event.AggregateID),
		slog.Int("events", len(missing)),
	)
	return nil
}

func (p *Projector) save(ctx context.Context, event store.Event, view *order.Order) error {
	if err := p.readStore.Set(ctx, OrdersCollection, event.AggregateID, view); err != nil {
		return fmt.Errorf("save order view: %w", err)
	}
	p.logger.DebugContext(ctx, "order projected",
		slog.String("order_id", event.AggregateID),
		slog.String("event_type", event.EventType),
		slog.String("status", string(view.Status)),
		slog.Bool("deleted", view.Deleted),
	)
	return nil
}

// Publisher feeds events straight into the projector, for deployments that
// run without a broker.
func (p *Projector) Publisher() store.Publisher {
	return store.PublisherFunc(func(ctx context.Context, _ string, event any) error {
		e, ok := event.(store.Event)
		if !ok {
			return fmt.Errorf("unexpected event type %T", event)
		}
		return p.Apply(ctx, e)
	})
}
