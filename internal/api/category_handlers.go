package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-shop/internal/domain/catalog"
)

// CategoryHandlers serves /api/categories. Reads are public, writes admin only.
type CategoryHandlers struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewCategoryHandlers(svc *catalog.Service, logger *slog.Logger) *CategoryHandlers {
	return &CategoryHandlers{catalog: svc, logger: logger}
}

func (h *CategoryHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ListCategories(r.Context())
	respond(w, r, h.logger, http.StatusOK, list, err)
}

func (h *CategoryHandlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.GetCategory(r.Context(), chi.URLParam(r, "id"))
	respond(w, r, h.logger, http.StatusOK, c, err)
}

func (h *CategoryHandlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := h.input(w, r)
	if !ok {
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), in)
	respond(w, r, h.logger, http.StatusCreated, c, err)
}

func (h *CategoryHandlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := h.input(w, r)
	if !ok {
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	respond(w, r, h.logger, http.StatusOK, c, err)
}

func (h *CategoryHandlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMessage(w, "category removed")
}

func (h *CategoryHandlers) input(w http.ResponseWriter, r *http.Request) (catalog.CategoryInput, bool) {
	var in catalog.CategoryInput
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, r, h.logger, err)
		return in, false
	}
	return in, true
}
