package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/catalog"
)

// ProductHandlers serves the product catalog.
type ProductHandlers struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewProductHandlers(svc *catalog.Service, logger *slog.Logger) *ProductHandlers {
	return &ProductHandlers{catalog: svc, logger: logger}
}

func parsePrice(r *http.Request, key string) (*decimal.Decimal, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, apperror.Validation(key + " must be a number")
	}
	return &d, nil
}

// ListProducts handles GET /products?page&limit&category&minPrice&maxPrice&sort
func (h *ProductHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	minPrice, err := parsePrice(r, "minPrice")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	maxPrice, err := parsePrice(r, "maxPrice")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	page, err := h.catalog.ListProducts(r.Context(), catalog.ProductFilter{
		CategoryID: q.Get("category"),
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Sort:       q.Get("sort"),
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 0),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetProduct handles GET /products/{id}
func (h *ProductHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /products (admin)
func (h *ProductHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.ProductInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// UpdateProduct handles PUT /products/{id} (admin)
func (h *ProductHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.ProductInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /products/{id} (admin)
func (h *ProductHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMessage(w, "product removed")
}
