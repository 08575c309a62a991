package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/query"
)

// OrderHandlers serves order writes from the event-sourced aggregate and
// order listings from the projected read model.
type OrderHandlers struct {
	orders  *order.Service
	queries *query.Handler
	logger  *slog.Logger
}

func NewOrderHandlers(orders *order.Service, queries *query.Handler, logger *slog.Logger) *OrderHandlers {
	return &OrderHandlers{orders: orders, queries: queries, logger: logger}
}

// PlaceOrder handles POST /orders
func (h *OrderHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req order.DirectOrderInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	o, err := h.orders.PlaceDirect(r.Context(), user.UserID, user.Email, req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// MyOrders handles GET /orders/myorders
func (h *OrderHandlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	orders, err := h.queries.ListOrdersByUser(r.Context(), user.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// ListOrders handles GET /orders (admin)
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queries.ListOrders(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrder handles GET /orders/{id}. Only the owner or an admin may read it.
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if o.UserID != user.UserID && !user.IsAdmin() {
		respondError(w, r, h.logger, apperror.Forbidden("not authorized to view this order"))
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// UpdateStatus handles PUT /orders/{id} (admin)
func (h *OrderHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req order.UpdateStatusInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// DeleteOrder handles DELETE /orders/{id} (admin)
func (h *OrderHandlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMessage(w, "order removed")
}
