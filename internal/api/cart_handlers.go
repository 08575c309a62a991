package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-shop/internal/domain/cart"
)

// CartHandlers serves the caller's cart.
type CartHandlers struct {
	engine *cart.Engine
	logger *slog.Logger
}

func NewCartHandlers(engine *cart.Engine, logger *slog.Logger) *CartHandlers {
	return &CartHandlers{engine: engine, logger: logger}
}

// GetCart handles GET /cart
func (h *CartHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c, err := h.engine.GetCart(r.Context(), user.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// AddItem handles POST /cart
func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req cart.AddItemInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c, err := h.engine.AddItem(r.Context(), user.UserID, req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// UpdateItem handles PUT /cart/{lineId}
func (h *CartHandlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req cart.UpdateItemInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c, err := h.engine.UpdateItem(r.Context(), user.UserID, chi.URLParam(r, "lineId"), req.Quantity)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// RemoveItem handles DELETE /cart/{lineId}
func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c, err := h.engine.RemoveItem(r.Context(), user.UserID, chi.URLParam(r, "lineId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// ClearCart handles DELETE /cart
func (h *CartHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	c, err := h.engine.ClearCart(r.Context(), user.UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
