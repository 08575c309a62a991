package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/catalog"
)

// CatalogStore is an in-memory catalog.ProductStore and catalog.CategoryStore.
// A single mutex makes every stock operation atomic.
type CatalogStore struct {
	mu         sync.RWMutex
	products   map[string]catalog.Product
	categories map[string]catalog.Category
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		products:   make(map[string]catalog.Product),
		categories: make(map[string]catalog.Category),
	}
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Images = append([]string(nil), p.Images...)
	variants := make([]catalog.Variant, len(p.Variants))
	for i, v := range p.Variants {
		variants[i] = catalog.Variant{Name: v.Name, Options: append([]catalog.Option(nil), v.Options...)}
	}
	p.Variants = variants
	return p
}

func (s *CatalogStore) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperror.NotFound("product", id)
	}
	c := cloneProduct(p)
	return &c, nil
}

func (s *CatalogStore) ListProducts(_ context.Context, f catalog.ProductFilter) ([]catalog.Product, int, error) {
	s.mu.RLock()
	var matched []catalog.Product
	for _, p := range s.products {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}
	s.mu.RUnlock()

	sortProducts(matched, f.Sort)

	total := len(matched)
	start := min(max(f.Offset(), 0), total)
	end := total
	if f.Limit > 0 && start+f.Limit < total {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func sortProducts(ps []catalog.Product, key string) {
	desc := strings.HasPrefix(key, "-")
	field := strings.TrimPrefix(key, "-")

	less := func(a, b catalog.Product) bool {
		switch field {
		case "price":
			return a.Price.LessThan(b.Price)
		case "name":
			return a.Name < b.Name
		case "rating":
			return a.Rating.LessThan(b.Rating)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if desc {
			return less(ps[j], ps[i])
		}
		return less(ps[i], ps[j])
	})
}

func (s *CatalogStore) CreateProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = cloneProduct(*p)
	return nil
}

func (s *CatalogStore) UpdateProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return apperror.NotFound("product", p.ID)
	}
	s.products[p.ID] = cloneProduct(*p)
	return nil
}

func (s *CatalogStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return apperror.NotFound("product", id)
	}
	delete(s.products, id)
	return nil
}

func (s *CatalogStore) DecrementStock(_ context.Context, productID string, sel *catalog.VariantSelector, qty int) error {
	return s.adjustStock(productID, sel, -qty)
}

func (s *CatalogStore) RestoreStock(_ context.Context, productID string, sel *catalog.VariantSelector, qty int) error {
	return s.adjustStock(productID, sel, qty)
}

func (s *CatalogStore) adjustStock(productID string, sel *catalog.VariantSelector, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return apperror.NotFound("product", productID)
	}
	if opt, ok := p.FindOption(sel); ok {
		if opt.Stock+delta < 0 {
			return catalog.ErrOutOfStock
		}
		opt.Stock += delta
	} else {
		if p.Stock+delta < 0 {
			return catalog.ErrOutOfStock
		}
		p.Stock += delta
	}
	s.products[productID] = p
	return nil
}

func (s *CatalogStore) UpdateRating(_ context.Context, productID string, rating decimal.Decimal, numReviews int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return apperror.NotFound("product", productID)
	}
	p.Rating = rating
	p.NumReviews = numReviews
	s.products[productID] = p
	return nil
}

// ============================================
// Categories
// ============================================

func (s *CatalogStore) GetCategory(_ context.Context, id string) (*catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, apperror.NotFound("category", id)
	}
	return &c, nil
}

func (s *CatalogStore) ListCategories(_ context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CatalogStore) CreateCategory(_ context.Context, c *catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(c.Name, "") {
		return apperror.Conflict("category name already exists: " + c.Name)
	}
	s.categories[c.ID] = *c
	return nil
}

func (s *CatalogStore) UpdateCategory(_ context.Context, c *catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return apperror.NotFound("category", c.ID)
	}
	if s.nameTaken(c.Name, c.ID) {
		return apperror.Conflict("category name already exists: " + c.Name)
	}
	s.categories[c.ID] = *c
	return nil
}

func (s *CatalogStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return apperror.NotFound("category", id)
	}
	delete(s.categories, id)
	return nil
}

func (s *CatalogStore) nameTaken(name, exceptID string) bool {
	for id, c := range s.categories {
		if id != exceptID && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}
