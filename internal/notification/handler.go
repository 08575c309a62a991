// Package notification sends customer emails in reaction to order events.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/email"
	"github.com/example/ec-shop/internal/infrastructure/store"
)

type Mailer interface {
	SendOrderConfirmation(to string, c email.OrderConfirmation) error
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	logger *slog.Logger
}

func NewHandler(mailer Mailer, logger *slog.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, _, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	// Only process OrderPlaced events
	if event.EventType != order.EventOrderPlaced {
		return nil
	}
	return h.handleOrderPlaced(ctx, event)
}

func (h *Handler) handleOrderPlaced(ctx context.Context, event store.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return fmt.Errorf("decode %s: %w", event.EventType, err)
	}
	logger := h.logger.With(slog.String("order_id", e.OrderID), slog.String("user_id", e.UserID))

	if e.Email == "" {
		logger.WarnContext(ctx, "order has no contact email, skipping confirmation")
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		}
		if !item.Variant.IsZero() {
			items[i].Variant = item.Variant.Name + ": " + item.Variant.Option
		}
	}

	err := h.mailer.SendOrderConfirmation(e.Email, email.OrderConfirmation{
		OrderID:       e.OrderID,
		Items:         items,
		ItemsPrice:    e.Prices.ItemsPrice,
		TaxPrice:      e.Prices.TaxPrice,
		ShippingPrice: e.Prices.ShippingPrice,
		TotalPrice:    e.Prices.TotalPrice,
		Paid:          e.Paid,
	})
	if err != nil {
		return fmt.Errorf("send confirmation to %s: %w", e.Email, err)
	}

	logger.InfoContext(ctx, "order confirmation sent")
	return nil
}
