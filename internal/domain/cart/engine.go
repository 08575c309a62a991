package cart

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/catalog"
)

type AddItemInput struct {
	ProductID string                   `json:"productId" validate:"required"`
	Quantity  int                      `json:"quantity" validate:"required,gte=1"`
	Variant   *catalog.VariantSelector `json:"variant,omitempty"`
}

type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// Engine owns each identity's in-progress cart. Stock checks here are
// advisory; nothing is reserved until payment confirmation.
type Engine struct {
	store    Store
	products ProductLookup
	logger   *slog.Logger
}

func NewEngine(store Store, products ProductLookup, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		products: products,
		logger:   logger.With(slog.String("component", "cart")),
	}
}

// GetCart returns the user's cart, or a new empty one.
func (e *Engine) GetCart(ctx context.Context, userID string) (*Cart, error) {
	c, err := e.store.Get(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return New(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) AddItem(ctx context.Context, userID string, in AddItemInput) (*Cart, error) {
	if in.Quantity < 1 {
		return nil, apperror.Validation("quantity must be at least 1")
	}
	if in.Variant.IsZero() {
		in.Variant = nil
	}

	product, err := e.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if available := product.AvailableStock(in.Variant); in.Quantity > available {
		return nil, apperror.InsufficientStock(product.Name, in.Quantity, available)
	}

	c, err := e.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The check above covers only this request's quantity, not what the
	// line already holds.
	if i := c.indexOf(in.ProductID, in.Variant); i >= 0 {
		c.Items[i].Quantity += in.Quantity
	} else {
		c.Items = append(c.Items, Line{
			ID:        uuid.New().String(),
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.FirstImage(),
			Price:     product.UnitPrice(),
			Quantity:  in.Quantity,
			Variant:   in.Variant,
		})
	}

	if err := e.save(ctx, c); err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "cart item added",
		slog.String("user_id", userID),
		slog.String("product_id", in.ProductID),
		slog.Int("quantity", in.Quantity),
	)
	return c, nil
}

// UpdateItem sets the quantity of the line addressed by lineID.
func (e *Engine) UpdateItem(ctx context.Context, userID, lineID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, apperror.Validation("quantity must be at least 1")
	}

	c, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.indexOfLine(lineID)
	if i < 0 {
		return nil, apperror.NotFound("cart item", lineID)
	}

	line := c.Items[i]
	product, err := e.products.GetProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if available := product.AvailableStock(line.Variant); quantity > available {
		return nil, apperror.InsufficientStock(product.Name, quantity, available)
	}

	c.Items[i].Quantity = quantity
	if err := e.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem drops every line addressed by lineID. Unknown ids leave the
// cart unchanged.
func (e *Engine) RemoveItem(ctx context.Context, userID, lineID string) (*Cart, error) {
	c, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	for _, l := range c.Items {
		if !l.Matches(lineID) {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(c.Items) {
		return c, nil
	}
	c.Items = kept

	if err := e.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) ClearCart(ctx context.Context, userID string) (*Cart, error) {
	if err := e.store.Delete(ctx, userID); err != nil {
		return nil, err
	}
	return New(userID), nil
}

func (e *Engine) save(ctx context.Context, c *Cart) error {
	c.Recalculate()
	c.UpdatedAt = time.Now().UTC()
	return e.store.Save(ctx, c)
}
