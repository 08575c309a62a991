package catalog

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money is rendered as JSON numbers, e.g. 115 or 19.99.
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrOutOfStock is returned by a conditional stock decrement that found
// fewer units than requested.
var ErrOutOfStock = errors.New("stock exhausted")

// Option is one purchasable choice of a Variant, e.g. size "L".
type Option struct {
	Name  string           `json:"name" validate:"required"`
	Stock int              `json:"stock" validate:"gte=0"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// Variant groups options under a dimension such as "size" or "color".
type Variant struct {
	Name    string   `json:"name" validate:"required"`
	Options []Option `json:"options" validate:"required,min=1,dive"`
}

// VariantSelector picks one option of one variant.
type VariantSelector struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

// IsZero reports whether the selector does not name a complete variant/option pair.
func (s *VariantSelector) IsZero() bool {
	return s == nil || s.Name == "" || s.Option == ""
}

// Equal compares two selectors, treating nil and incomplete selectors alike.
func (s *VariantSelector) Equal(o *VariantSelector) bool {
	if s.IsZero() || o.IsZero() {
		return s.IsZero() && o.IsZero()
	}
	return s.Name == o.Name && s.Option == o.Option
}

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Stock         int              `json:"stock"`
	CategoryID    string           `json:"category,omitempty"`
	Brand         string           `json:"brand,omitempty"`
	Images        []string         `json:"images"`
	Variants      []Variant        `json:"variants"`
	Featured      bool             `json:"featured"`
	Rating        decimal.Decimal  `json:"rating"`
	NumReviews    int              `json:"numReviews"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// UnitPrice is the price captured into carts and orders: the discount price
// when one is set, otherwise the list price.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}

// FindOption resolves sel against the product's variants.
func (p *Product) FindOption(sel *VariantSelector) (*Option, bool) {
	if sel.IsZero() {
		return nil, false
	}
	for vi := range p.Variants {
		if p.Variants[vi].Name != sel.Name {
			continue
		}
		for oi := range p.Variants[vi].Options {
			if p.Variants[vi].Options[oi].Name == sel.Option {
				return &p.Variants[vi].Options[oi], true
			}
		}
	}
	return nil, false
}

// AvailableStock returns the option stock when sel resolves to an existing
// option and the product-level stock otherwise.
func (p *Product) AvailableStock(sel *VariantSelector) int {
	if opt, ok := p.FindOption(sel); ok {
		return opt.Stock
	}
	return p.Stock
}

// FirstImage returns the first image URL or "".
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductFilter drives product listing with offset/limit pagination.
type ProductFilter struct {
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
	Page       int
	Limit      int
}

// Offset converts Page/Limit to a row offset. It saturates at math.MaxInt
// instead of overflowing.
func (f ProductFilter) Offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

// ProductStore is the Catalog Store contract.
//
// DecrementStock must be atomic and conditional: it either removes qty units
// or leaves stock untouched and returns ErrOutOfStock. A product that does
// not exist yields an apperror NotFound.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, productID string, sel *VariantSelector, qty int) error
	RestoreStock(ctx context.Context, productID string, sel *VariantSelector, qty int) error
	UpdateRating(ctx context.Context, productID string, rating decimal.Decimal, numReviews int) error
}
