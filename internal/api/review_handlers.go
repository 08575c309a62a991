package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-shop/internal/auth"
	"github.com/example/ec-shop/internal/domain/review"
)

type ReviewHandlers struct {
	reviews *review.Service
	logger  *slog.Logger
}

func NewReviewHandlers(svc *review.Service, logger *slog.Logger) *ReviewHandlers {
	return &ReviewHandlers{reviews: svc, logger: logger}
}

func actorFrom(claims *auth.Claims) review.Actor {
	return review.Actor{UserID: claims.UserID, Name: claims.Name, Admin: claims.IsAdmin()}
}

// ListForProduct handles GET /reviews/product/{productId}
func (h *ReviewHandlers) ListForProduct(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListForProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

// ListReviews handles GET /reviews (admin)
func (h *ReviewHandlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.List(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}

// GetReview handles GET /reviews/{id}
func (h *ReviewHandlers) GetReview(w http.ResponseWriter, r *http.Request) {
	rv, err := h.reviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rv)
}

// CreateReview handles POST /reviews
func (h *ReviewHandlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req review.CreateInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	rv, err := h.reviews.Create(r.Context(), actorFrom(user), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, rv)
}

// UpdateReview handles PUT /reviews/{id}
func (h *ReviewHandlers) UpdateReview(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req review.UpdateInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	rv, err := h.reviews.Update(r.Context(), actorFrom(user), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rv)
}

// DeleteReview handles DELETE /reviews/{id}
func (h *ReviewHandlers) DeleteReview(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.reviews.Delete(r.Context(), actorFrom(user), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMessage(w, "review removed")
}
