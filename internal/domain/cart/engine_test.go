package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/infrastructure/memory"
	"github.com/example/ec-shop/internal/logger"
)

const userID = "user-123"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestEngine(t *testing.T) (*cart.Engine, *memory.CatalogStore) {
	t.Helper()
	products := memory.NewCatalogStore()
	ctx := context.Background()

	require.NoError(t, products.CreateProduct(ctx, &catalog.Product{ID: "P1", Name: "Mug", Price: dec("50"), Stock: 10, Images: []string{"https://img/mug.png"}}))
	require.NoError(t, products.CreateProduct(ctx, &catalog.Product{ID: "P2", Name: "Poster", Price: dec("20"), Stock: 3}))
	discount := dec("15")
	require.NoError(t, products.CreateProduct(ctx, &catalog.Product{
		ID: "P3", Name: "Shirt", Price: dec("25"), DiscountPrice: &discount, Stock: 100,
		Variants: []catalog.Variant{{Name: "size", Options: []catalog.Option{{Name: "M", Stock: 2}, {Name: "L", Stock: 5}}}},
	}))

	engine := cart.NewEngine(memory.NewCartStore(time.Hour), products, logger.Discard())
	return engine, products
}

func size(option string) *catalog.VariantSelector {
	return &catalog.VariantSelector{Name: "size", Option: option}
}

// ============================================
// GetCart Tests
// ============================================

func TestEngine_GetCart_EmptyOnFirstAccess(t *testing.T) {
	engine, _ := newTestEngine(t)

	c, err := engine.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, c.UserID)
	assert.Empty(t, c.Items)
	assert.True(t, c.Total.IsZero())
}

// ============================================
// AddItem Tests
// ============================================

func TestEngine_AddItem_SnapshotsPriceAndTotals(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	c, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	line := c.Items[0]
	assert.NotEmpty(t, line.ID)
	assert.Equal(t, "Mug", line.Name)
	assert.Equal(t, "https://img/mug.png", line.Image)
	assert.True(t, line.Price.Equal(dec("50")))
	assert.True(t, c.Total.Equal(dec("100")))
}

func TestEngine_AddItem_UsesDiscountPrice(t *testing.T) {
	engine, _ := newTestEngine(t)

	c, err := engine.AddItem(context.Background(), userID, cart.AddItemInput{ProductID: "P3", Quantity: 1, Variant: size("L")})
	require.NoError(t, err)
	assert.True(t, c.Items[0].Price.Equal(dec("15")))
}

func TestEngine_AddItem_SamePairMergesIntoOneLine(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, q := range []int{1, 2, 3} {
		_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: q})
		require.NoError(t, err)
	}

	c, err := engine.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 6, c.Items[0].Quantity)
	assert.True(t, c.Total.Equal(dec("300")))
}

func TestEngine_AddItem_DifferentVariantsAreSeparateLines(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 1, Variant: size("M")})
	require.NoError(t, err)
	_, err = engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 1, Variant: size("L")})
	require.NoError(t, err)
	c, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 1})
	require.NoError(t, err)

	assert.Len(t, c.Items, 3)
	assert.True(t, c.Total.Equal(dec("45")))
}

func TestEngine_AddItem_InsufficientStockLeavesCartUnchanged(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)
	before, _ := engine.GetCart(ctx, userID)

	_, err = engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P2", Quantity: 5})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Contains(t, apperror.Message(err), "Poster")

	after, _ := engine.GetCart(ctx, userID)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, before.Total.Equal(after.Total))
}

func TestEngine_AddItem_VariantStockIsAuthoritative(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// product has 100 units but size M only 2
	_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 3, Variant: size("M")})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	// unknown option falls back to product stock
	_, err = engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 3, Variant: size("XXL")})
	assert.NoError(t, err)
}

func TestEngine_AddItem_UnknownProduct(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.AddItem(context.Background(), userID, cart.AddItemInput{ProductID: "nope", Quantity: 1})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestEngine_AddItem_InvalidQuantity(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.AddItem(context.Background(), userID, cart.AddItemInput{ProductID: "P1", Quantity: 0})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestEngine_AddItem_PriceNotRefetched(t *testing.T) {
	engine, products := newTestEngine(t)
	ctx := context.Background()
	_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)

	p, _ := products.GetProduct(ctx, "P1")
	p.Price = dec("99")
	require.NoError(t, products.UpdateProduct(ctx, p))

	c, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)
	assert.True(t, c.Items[0].Price.Equal(dec("50")))
	assert.True(t, c.Total.Equal(dec("100")))
}

// ============================================
// UpdateItem Tests
// ============================================

func TestEngine_UpdateItem_SetsQuantity(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	c, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 5})
	require.NoError(t, err)

	c, err = engine.UpdateItem(ctx, userID, c.Items[0].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, c.Total.Equal(dec("100")))
}

func TestEngine_UpdateItem_ByProductID(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)

	c, err := engine.UpdateItem(ctx, userID, "P1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Items[0].Quantity)
}

func TestEngine_UpdateItem_ChecksVariantStock(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	c, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 1, Variant: size("M")})
	require.NoError(t, err)

	_, err = engine.UpdateItem(ctx, userID, c.Items[0].ID, 3)
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)

	c, _ = engine.GetCart(ctx, userID)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestEngine_UpdateItem_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.UpdateItem(ctx, userID, "line-1", 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "no cart yet")

	_, err = engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)
	_, err = engine.UpdateItem(ctx, userID, "line-1", 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "no such line")
}

// ============================================
// RemoveItem / ClearCart Tests
// ============================================

func TestEngine_RemoveItem(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)
	c, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P2", Quantity: 2})
	require.NoError(t, err)

	c, err = engine.RemoveItem(ctx, userID, c.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "P2", c.Items[0].ProductID)
	assert.True(t, c.Total.Equal(dec("40")))
}

func TestEngine_RemoveItem_ByProductIDRemovesAllVariants(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	_, _ = engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 1, Variant: size("M")})
	_, _ = engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P3", Quantity: 1, Variant: size("L")})
	_, _ = engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})

	c, err := engine.RemoveItem(ctx, userID, "P3")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "P1", c.Items[0].ProductID)
}

func TestEngine_RemoveItem_UnknownLineIsNoop(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	before, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	after, err := engine.RemoveItem(ctx, userID, "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, before.Total.Equal(after.Total))
}

func TestEngine_RemoveItem_NoCart(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.RemoveItem(context.Background(), userID, "P1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestEngine_ClearCart_Idempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := engine.AddItem(ctx, userID, cart.AddItemInput{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		c, err := engine.ClearCart(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, c.Items)
		assert.True(t, c.Total.IsZero())
	}

	c, _ := engine.GetCart(ctx, userID)
	assert.Empty(t, c.Items)
}

func TestCart_RecalculateMatchesLineSum(t *testing.T) {
	c := cart.New(userID)
	c.Items = []cart.Line{
		{ProductID: "a", Price: dec("19.99"), Quantity: 3},
		{ProductID: "b", Price: dec("0.01"), Quantity: 1},
	}
	c.Recalculate()
	assert.True(t, c.Total.Equal(dec("59.98")), c.Total.String())
}
