package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/validator"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	// maxPage keeps the row offset far from overflow.
	maxPage = 100_000
)

// Sort keys accepted by ListProducts.
var productSorts = map[string]bool{
	"price": true, "-price": true, "name": true, "-name": true,
	"createdAt": true, "-createdAt": true, "rating": true, "-rating": true,
}

// ProductInput is the writable part of a product.
type ProductInput struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Description   string           `json:"description" validate:"max=5000"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Stock         int              `json:"stock" validate:"gte=0"`
	CategoryID    string           `json:"category"`
	Brand         string           `json:"brand"`
	Images        []string         `json:"images" validate:"omitempty,dive,url"`
	Variants      []Variant        `json:"variants" validate:"omitempty,dive"`
	Featured      bool             `json:"featured"`
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=500"`
}

type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}

type Service struct {
	products   ProductStore
	categories CategoryStore
	logger     *slog.Logger
}

func NewService(products ProductStore, categories CategoryStore, logger *slog.Logger) *Service {
	return &Service{
		products:   products,
		categories: categories,
		logger:     logger.With(slog.String("component", "catalog")),
	}
}

// Products exposes the underlying store to collaborators that need the raw
// stock operations (cart, checkout, orders).
func (s *Service) Products() ProductStore {
	return s.products
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) (*ProductPage, error) {
	filter.Page = min(max(filter.Page, 1), maxPage)
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	if filter.Sort == "" {
		filter.Sort = "-createdAt"
	}
	if !productSorts[filter.Sort] {
		return nil, apperror.Validation("unsupported sort: " + filter.Sort)
	}

	products, total, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}

	pages := (total + filter.Limit - 1) / filter.Limit
	return &ProductPage{Products: products, Total: total, Page: filter.Page, Pages: pages}, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := s.validateProduct(ctx, in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Product{
		ID:        uuid.New().String(),
		Rating:    decimal.Zero,
		CreatedAt: now,
	}
	in.apply(p, now)

	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product created", slog.String("product_id", p.ID))
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateProduct(ctx, in); err != nil {
		return nil, err
	}

	in.apply(p, time.Now().UTC())
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// RecalculateRating stores the average of ratings, rounded to one decimal,
// and the review count on the product.
func (s *Service) RecalculateRating(ctx context.Context, productID string, ratings []int) error {
	avg := decimal.Zero
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		avg = decimal.NewFromInt(int64(sum)).
			Div(decimal.NewFromInt(int64(len(ratings)))).
			Round(1)
	}
	return s.products.UpdateRating(ctx, productID, avg, len(ratings))
}

func (s *Service) validateProduct(ctx context.Context, in ProductInput) error {
	if err := validator.Validate(in); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return apperror.Validation("price must be greater than 0")
	}
	if in.DiscountPrice != nil && (in.DiscountPrice.IsNegative() || in.DiscountPrice.GreaterThan(in.Price)) {
		return apperror.Validation("discountPrice must be between 0 and price")
	}
	if in.CategoryID != "" {
		if _, err := s.categories.GetCategory(ctx, in.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

func (in ProductInput) apply(p *Product, now time.Time) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.DiscountPrice = in.DiscountPrice
	p.Stock = in.Stock
	p.CategoryID = in.CategoryID
	p.Brand = in.Brand
	p.Images = in.Images
	if p.Images == nil {
		p.Images = []string{}
	}
	p.Variants = in.Variants
	if p.Variants == nil {
		p.Variants = []Variant{}
	}
	p.Featured = in.Featured
	p.UpdatedAt = now
}

// ============================================
// Categories
// ============================================

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []Category{}
	}
	return cats, nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	return s.categories.GetCategory(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	c := &Category{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Slug:        Slugify(in.Name),
		Description: in.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	c, err := s.categories.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Slug = Slugify(in.Name)
	c.Description = in.Description
	if err := s.categories.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.categories.DeleteCategory(ctx, id)
}
