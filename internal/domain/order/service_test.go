package order_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/pricing"
	"github.com/example/ec-shop/internal/infrastructure/memory"
	"github.com/example/ec-shop/internal/infrastructure/store"
	"github.com/example/ec-shop/internal/infrastructure/store/mocks"
	"github.com/example/ec-shop/internal/logger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

var testAddress = order.Address{Street: "Calle 1", City: "Madrid", ZipCode: "28001", Country: "ES"}

func newTestOrderService(t *testing.T) (*order.Service, *mocks.MockEventStore, *memory.CatalogStore) {
	t.Helper()
	eventStore := mocks.NewMockEventStore()
	catalogStore := memory.NewCatalogStore()
	ctx := context.Background()

	require.NoError(t, catalogStore.CreateProduct(ctx, &catalog.Product{ID: "P1", Name: "Mug", Price: dec("50"), Stock: 10}))
	require.NoError(t, catalogStore.CreateProduct(ctx, &catalog.Product{ID: "P2", Name: "Poster", Price: dec("20"), Stock: 3}))
	discount := dec("15")
	require.NoError(t, catalogStore.CreateProduct(ctx, &catalog.Product{
		ID: "P3", Name: "Shirt", Price: dec("25"), DiscountPrice: &discount, Stock: 100,
		Variants: []catalog.Variant{{Name: "size", Options: []catalog.Option{{Name: "M", Stock: 2}}}},
	}))

	return order.NewService(eventStore, catalogStore, logger.Discard()), eventStore, catalogStore
}

func placeParams() order.PlaceParams {
	return order.PlaceParams{
		UserID:          "user-123",
		Email:           "user@example.com",
		Items:           []order.Item{{ProductID: "P1", Name: "Mug", Quantity: 2, Price: dec("50")}},
		ShippingAddress: testAddress,
		PaymentMethod:   order.PaymentCreditCard,
		Prices:          pricing.Compute(dec("100")),
	}
}

func stockOf(t *testing.T, cs *memory.CatalogStore, id string, sel *catalog.VariantSelector) int {
	t.Helper()
	p, err := cs.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.AvailableStock(sel)
}

// ============================================
// Place Tests
// ============================================

func TestService_Place_Success(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)

	o, err := service.Place(context.Background(), placeParams())

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "user-123", o.UserID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.False(t, o.IsPaid)
	assert.Nil(t, o.PaidAt)
	assert.True(t, o.TotalPrice.Equal(dec("115")))
	assert.Equal(t, 1, o.Version)

	require.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, order.EventOrderPlaced, eventStore.AppendCalls[0].EventType)
	assert.Equal(t, order.AggregateType, eventStore.AppendCalls[0].AggregateType)
	assert.Equal(t, 0, eventStore.AppendCalls[0].ExpectedVersion)
}

func TestService_Place_Paid(t *testing.T) {
	service, _, _ := newTestOrderService(t)
	params := placeParams()
	params.Paid = true

	o, err := service.Place(context.Background(), params)

	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, o.Status)
	assert.True(t, o.IsPaid)
	require.NotNil(t, o.PaidAt)
}

func TestService_Place_EmptyItems(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)
	params := placeParams()
	params.Items = nil

	o, err := service.Place(context.Background(), params)

	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Nil(t, o)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_Place_PresetIDIsIdempotent(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)
	ctx := context.Background()
	params := placeParams()
	params.OrderID = "order-fixed"

	first, err := service.Place(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, "order-fixed", first.ID)

	_, err = service.Place(ctx, params)
	assert.ErrorIs(t, err, order.ErrOrderExists)

	events, err := eventStore.GetEvents(ctx, "order-fixed")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestService_Place_StoreError(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)
	eventStore.AppendErr = errors.New("database down")

	_, err := service.Place(context.Background(), placeParams())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database down")
}

// ============================================
// Get / Delete Tests
// ============================================

func TestService_Get_RoundTrip(t *testing.T) {
	service, _, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	got, err := service.Get(ctx, placed.ID)

	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)
	assert.Equal(t, testAddress, got.ShippingAddress)
	assert.Equal(t, order.PaymentCreditCard, got.PaymentMethod)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(dec("50")))
	assert.True(t, got.TaxPrice.Equal(dec("15")))
	assert.True(t, got.ShippingPrice.IsZero())
}

func TestService_Get_NotFound(t *testing.T) {
	service, _, _ := newTestOrderService(t)

	_, err := service.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, placed.ID))

	_, err = service.Get(ctx, placed.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, order.EventOrderDeleted, eventStore.AppendCalls[len(eventStore.AppendCalls)-1].EventType)

	err = service.Delete(ctx, placed.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// ============================================
// UpdateStatus Tests
// ============================================

func TestService_UpdateStatus_PaidSetsPaidAtOnce(t *testing.T) {
	service, _, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	first, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusPaid})
	require.NoError(t, err)
	assert.True(t, first.IsPaid)
	require.NotNil(t, first.PaidAt)
	paidAt := *first.PaidAt

	second, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusPaid})
	require.NoError(t, err)
	require.NotNil(t, second.PaidAt)
	assert.True(t, paidAt.Equal(*second.PaidAt))

	reloaded, err := service.Get(ctx, placed.ID)
	require.NoError(t, err)
	assert.True(t, paidAt.Equal(*reloaded.PaidAt))
}

func TestService_UpdateStatus_ShippedSetsDeliveredAtOnce(t *testing.T) {
	service, _, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	first, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusShipped})
	require.NoError(t, err)
	assert.True(t, first.IsDelivered)
	require.NotNil(t, first.DeliveredAt)
	assert.False(t, first.IsPaid, "shipping does not imply payment")

	second, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusShipped})
	require.NoError(t, err)
	assert.True(t, first.DeliveredAt.Equal(*second.DeliveredAt))
}

func TestService_UpdateStatus_AnyTransitionAllowed(t *testing.T) {
	service, _, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	for _, status := range []order.Status{order.StatusDelivered, order.StatusPending, order.StatusCancelled, order.StatusProcessing} {
		o, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: status})
		require.NoError(t, err)
		assert.Equal(t, status, o.Status)
	}
}

func TestService_UpdateStatus_TrackingNumberOverwrites(t *testing.T) {
	service, _, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	o, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusShipped, TrackingNumber: strPtr("TRK-1")})
	require.NoError(t, err)
	assert.Equal(t, "TRK-1", o.TrackingNumber)

	o, err = service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{TrackingNumber: strPtr("TRK-2")})
	require.NoError(t, err)
	assert.Equal(t, "TRK-2", o.TrackingNumber)
	assert.Equal(t, order.StatusShipped, o.Status, "status is kept when only tracking is sent")

	o, err = service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, "TRK-2", o.TrackingNumber)
}

func TestService_UpdateStatus_Validation(t *testing.T) {
	service, _, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	_, err = service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: "lost"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestService_UpdateStatus_NotFound(t *testing.T) {
	service, _, _ := newTestOrderService(t)

	_, err := service.UpdateStatus(context.Background(), "missing", order.UpdateStatusInput{Status: order.StatusPaid})

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestService_UpdateStatus_UsesLoadedVersion(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	_, err = service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusProcessing})
	require.NoError(t, err)

	last := eventStore.AppendCalls[len(eventStore.AppendCalls)-1]
	assert.Equal(t, order.EventOrderStatusUpdated, last.EventType)
	assert.Equal(t, 1, last.ExpectedVersion)
}

func TestService_UpdateStatus_RetriesOnVersionConflict(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	// A concurrent writer lands an event between our load and append.
	raced := false
	eventStore.AppendCallback = func(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*store.Event, error) {
		if !raced {
			raced = true
			require.NoError(t, eventStore.AddEvent(aggregateID, aggregateType, order.EventOrderStatusUpdated,
				order.OrderStatusUpdated{OrderID: aggregateID, Status: order.StatusProcessing}))
			return nil, store.ErrVersionConflict
		}
		eventStore.AppendCallback = nil
		return eventStore.Append(ctx, aggregateID, aggregateType, eventType, expectedVersion, data)
	}

	o, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusShipped})

	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, o.Status)
	assert.Equal(t, 3, o.Version)
}

func TestService_UpdateStatus_CreatesSnapshotAtThreshold(t *testing.T) {
	service, eventStore, _ := newTestOrderService(t)
	ctx := context.Background()
	placed, err := service.Place(ctx, placeParams())
	require.NoError(t, err)

	for i := 0; i < store.SnapshotEvery-1; i++ {
		_, err := service.UpdateStatus(ctx, placed.ID, order.UpdateStatusInput{Status: order.StatusProcessing})
		require.NoError(t, err)
	}

	require.Len(t, eventStore.SaveSnapshotCalls, 1)
	assert.Equal(t, store.SnapshotEvery, eventStore.SaveSnapshotCalls[0].Version)

	o, err := service.Get(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SnapshotEvery, o.Version)
	assert.Equal(t, order.StatusProcessing, o.Status)
}

// ============================================
// PlaceDirect Tests
// ============================================

func TestService_PlaceDirect_PricesFromCatalog(t *testing.T) {
	service, _, catalogStore := newTestOrderService(t)
	ctx := context.Background()

	o, err := service.PlaceDirect(ctx, "user-123", "user@example.com", order.DirectOrderInput{
		Items: []order.DirectItem{
			{ProductID: "P1", Quantity: 1},
			{ProductID: "P3", Quantity: 2, Variant: &catalog.VariantSelector{Name: "size", Option: "M"}},
		},
		ShippingAddress: testAddress,
		PaymentMethod:   order.PaymentPayPal,
	})

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.False(t, o.IsPaid)
	require.Len(t, o.Items, 2)
	assert.True(t, o.Items[1].Price.Equal(dec("15")))
	// 50 + 2*15 = 80: below the free shipping threshold.
	assert.True(t, o.ItemsPrice.Equal(dec("80")))
	assert.True(t, o.TaxPrice.Equal(dec("12")))
	assert.True(t, o.ShippingPrice.Equal(dec("10")))
	assert.True(t, o.TotalPrice.Equal(dec("102")))

	assert.Equal(t, 9, stockOf(t, catalogStore, "P1", nil))
	assert.Equal(t, 0, stockOf(t, catalogStore, "P3", &catalog.VariantSelector{Name: "size", Option: "M"}))
	assert.Equal(t, 100, stockOf(t, catalogStore, "P3", nil))
}

func TestService_PlaceDirect_InsufficientStock(t *testing.T) {
	service, eventStore, catalogStore := newTestOrderService(t)

	_, err := service.PlaceDirect(context.Background(), "user-123", "", order.DirectOrderInput{
		Items:           []order.DirectItem{{ProductID: "P1", Quantity: 1}, {ProductID: "P2", Quantity: 5}},
		ShippingAddress: testAddress,
		PaymentMethod:   order.PaymentCreditCard,
	})

	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Empty(t, eventStore.AppendCalls)
	assert.Equal(t, 10, stockOf(t, catalogStore, "P1", nil))
}

func TestService_PlaceDirect_UnknownProduct(t *testing.T) {
	service, _, _ := newTestOrderService(t)

	_, err := service.PlaceDirect(context.Background(), "user-123", "", order.DirectOrderInput{
		Items:           []order.DirectItem{{ProductID: "nope", Quantity: 1}},
		ShippingAddress: testAddress,
		PaymentMethod:   order.PaymentCreditCard,
	})

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestService_PlaceDirect_InvalidPaymentMethod(t *testing.T) {
	service, _, _ := newTestOrderService(t)

	_, err := service.PlaceDirect(context.Background(), "user-123", "", order.DirectOrderInput{
		Items:           []order.DirectItem{{ProductID: "P1", Quantity: 1}},
		ShippingAddress: testAddress,
		PaymentMethod:   "bitcoin",
	})

	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// racingInventory runs out of a product between the availability check and
// the decrement.
type racingInventory struct {
	*memory.CatalogStore
	exhausted string
}

func (r *racingInventory) DecrementStock(ctx context.Context, productID string, sel *catalog.VariantSelector, qty int) error {
	if productID == r.exhausted {
		return catalog.ErrOutOfStock
	}
	return r.CatalogStore.DecrementStock(ctx, productID, sel, qty)
}

func TestService_PlaceDirect_RestoresStockWhenDecrementFails(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	catalogStore := memory.NewCatalogStore()
	ctx := context.Background()
	require.NoError(t, catalogStore.CreateProduct(ctx, &catalog.Product{ID: "P1", Name: "Mug", Price: dec("50"), Stock: 10}))
	require.NoError(t, catalogStore.CreateProduct(ctx, &catalog.Product{ID: "P2", Name: "Poster", Price: dec("20"), Stock: 3}))
	service := order.NewService(eventStore, &racingInventory{CatalogStore: catalogStore, exhausted: "P2"}, logger.Discard())

	_, err := service.PlaceDirect(ctx, "user-123", "", order.DirectOrderInput{
		Items:           []order.DirectItem{{ProductID: "P1", Quantity: 4}, {ProductID: "P2", Quantity: 1}},
		ShippingAddress: testAddress,
		PaymentMethod:   order.PaymentCreditCard,
	})

	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Empty(t, eventStore.AppendCalls)
	assert.Equal(t, 10, stockOf(t, catalogStore, "P1", nil))
}

func TestService_PlaceDirect_RestoresStockWhenAppendFails(t *testing.T) {
	service, eventStore, catalogStore := newTestOrderService(t)
	eventStore.AppendErr = errors.New("database down")

	_, err := service.PlaceDirect(context.Background(), "user-123", "", order.DirectOrderInput{
		Items:           []order.DirectItem{{ProductID: "P1", Quantity: 4}},
		ShippingAddress: testAddress,
		PaymentMethod:   order.PaymentCreditCard,
	})

	require.Error(t, err)
	assert.Equal(t, 10, stockOf(t, catalogStore, "P1", nil))
}
