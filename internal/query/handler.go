// Package query serves order listings from the projected read model.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/infrastructure/store"
	"github.com/example/ec-shop/internal/projection"
)

type Handler struct {
	readStore store.ReadStoreInterface
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore}
}

// ListOrdersByUser returns the user's orders, newest first.
func (h *Handler) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return h.listOrders(ctx, func(o *order.Order) bool { return o.UserID == userID })
}

// ListOrders returns every order, newest first.
func (h *Handler) ListOrders(ctx context.Context) ([]order.Order, error) {
	return h.listOrders(ctx, func(*order.Order) bool { return true })
}

// listOrders skips deleted-order tombstones.
func (h *Handler) listOrders(ctx context.Context, keep func(*order.Order) bool) ([]order.Order, error) {
	docs, err := h.readStore.List(ctx, projection.OrdersCollection)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]order.Order, 0, len(docs))
	for _, doc := range docs {
		var o order.Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, fmt.Errorf("decode order view: %w", err)
		}
		if !o.Deleted && keep(&o) {
			orders = append(orders, o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}
