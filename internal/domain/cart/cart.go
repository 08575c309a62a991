package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/domain/catalog"
)

// Line is one product/variant selection. Price is captured when the line is
// first added and is not refreshed from the catalog afterwards.
type Line struct {
	ID        string                   `json:"id"`
	ProductID string                   `json:"productId"`
	Name      string                   `json:"name"`
	Image     string                   `json:"image,omitempty"`
	Price     decimal.Decimal          `json:"price"`
	Quantity  int                      `json:"quantity"`
	Variant   *catalog.VariantSelector `json:"variant,omitempty"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Matches reports whether lineID addresses this line, either by line id or
// by product id.
func (l Line) Matches(lineID string) bool {
	return l.ID == lineID || l.ProductID == lineID
}

type Cart struct {
	UserID    string          `json:"userId"`
	Items     []Line          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, Items: []Line{}, Total: decimal.Zero}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Recalculate sets Total to the sum of price times quantity over all lines.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, l := range c.Items {
		total = total.Add(l.Subtotal())
	}
	c.Total = total
}

func (c *Cart) indexOf(productID string, sel *catalog.VariantSelector) int {
	for i, l := range c.Items {
		if l.ProductID == productID && l.Variant.Equal(sel) {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfLine(lineID string) int {
	for i, l := range c.Items {
		if l.Matches(lineID) {
			return i
		}
	}
	return -1
}

// Store persists carts keyed by user id. Get returns an apperror NotFound
// when the user has no cart.
type Store interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, userID string) error
}

// ProductLookup is the read side of the Catalog Store used by the cart.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}
