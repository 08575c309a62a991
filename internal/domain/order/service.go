package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/aggregate"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/domain/pricing"
	"github.com/example/ec-shop/internal/infrastructure/store"
	"github.com/example/ec-shop/internal/metrics"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyOrder    = errors.New("order must have at least one item")
	ErrOrderExists   = errors.New("order already exists")
)

// maxAppendAttempts bounds the optimistic-concurrency retries of a status update.
const maxAppendAttempts = 3

// Inventory is the part of the Catalog Store the direct-order path needs.
type Inventory interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	DecrementStock(ctx context.Context, productID string, sel *catalog.VariantSelector, qty int) error
	RestoreStock(ctx context.Context, productID string, sel *catalog.VariantSelector, qty int) error
}

// PlaceParams describes a fully priced order. OrderID may be preset to make
// placement idempotent; otherwise a random id is generated.
type PlaceParams struct {
	OrderID           string
	UserID            string
	Email             string
	Items             []Item
	ShippingAddress   Address
	PaymentMethod     PaymentMethod
	Prices            pricing.Breakdown
	Notes             string
	CheckoutSessionID string
	PaymentResult     *PaymentResult
	Paid              bool
}

type UpdateStatusInput struct {
	Status         Status  `json:"status" validate:"omitempty,oneof=pending paid processing shipped delivered cancelled"`
	TrackingNumber *string `json:"trackingNumber,omitempty"`
}

type DirectItem struct {
	ProductID string                   `json:"productId" validate:"required"`
	Quantity  int                      `json:"quantity" validate:"required,gte=1"`
	Variant   *catalog.VariantSelector `json:"variant,omitempty"`
}

// DirectOrderInput is the body of a direct order. Any price fields a client
// sends are ignored; prices come from the catalog.
type DirectOrderInput struct {
	Items           []DirectItem  `json:"items" validate:"required,min=1,dive"`
	ShippingAddress Address       `json:"shippingAddress" validate:"required"`
	PaymentMethod   PaymentMethod `json:"paymentMethod" validate:"required,oneof=creditCard paypal transferencia contraentrega"`
	Notes           string        `json:"notes,omitempty" validate:"max=500"`
}

type Service struct {
	eventStore store.EventStoreInterface
	inventory  Inventory
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(es store.EventStoreInterface, inventory Inventory, logger *slog.Logger) *Service {
	return &Service{
		eventStore: es,
		inventory:  inventory,
		logger:     logger.With(slog.String("component", "order")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) loadOrder(ctx context.Context, orderID string) (*Order, error) {
	o, found, err := aggregate.Load(ctx, s.eventStore, orderID, func() *Order {
		return &Order{}
	})
	if err != nil {
		return nil, err
	}
	if !found || o.Deleted {
		return nil, apperror.NotFound("order", orderID)
	}
	return o, nil
}

func (s *Service) snapshot(ctx context.Context, o *Order) {
	if err := aggregate.Checkpoint(ctx, s.eventStore, o, AggregateType); err != nil {
		s.logger.WarnContext(ctx, "snapshot failed", slog.String("order_id", o.ID), slog.Any("error", err))
	}
}

// Get loads an order from its events. Deleted orders are reported as not found.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.loadOrder(ctx, orderID)
}

// Place records a new order. With a preset OrderID that already exists it
// returns ErrOrderExists and records nothing.
func (s *Service) Place(ctx context.Context, p PlaceParams) (*Order, error) {
	if len(p.Items) == 0 {
		return nil, apperror.Validation(ErrEmptyOrder.Error())
	}

	orderID := p.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	event := OrderPlaced{
		OrderID:           orderID,
		UserID:            p.UserID,
		Email:             p.Email,
		Items:             p.Items,
		ShippingAddress:   p.ShippingAddress,
		PaymentMethod:     p.PaymentMethod,
		Prices:            p.Prices,
		Notes:             p.Notes,
		CheckoutSessionID: p.CheckoutSessionID,
		PaymentResult:     p.PaymentResult,
		Paid:              p.Paid,
		PlacedAt:          s.now(),
	}

	stored, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderPlaced, 0, event)
	if errors.Is(err, store.ErrVersionConflict) {
		return nil, fmt.Errorf("%w: %s", ErrOrderExists, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("append %s: %w", EventOrderPlaced, err)
	}

	o := &Order{}
	if err := o.ApplyEvent(*stored); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", o.ID),
		slog.String("user_id", o.UserID),
		slog.String("status", string(o.Status)),
		slog.String("total", o.TotalPrice.String()),
	)
	return o, nil
}

// UpdateStatus applies an administrative status change. Any status may follow
// any other; paid and shipped stamp paidAt and deliveredAt the first time only.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, in UpdateStatusInput) (*Order, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid order status: %s", in.Status))
	}
	if in.Status == "" && in.TrackingNumber == nil {
		return nil, apperror.Validation("status or trackingNumber is required")
	}

	for attempt := 1; ; attempt++ {
		o, err := s.loadOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		event := OrderStatusUpdated{
			OrderID:        orderID,
			Status:         in.Status,
			TrackingNumber: in.TrackingNumber,
			UpdatedAt:      s.now(),
		}
		stored, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderStatusUpdated, o.Version, event)
		if errors.Is(err, store.ErrVersionConflict) && attempt < maxAppendAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("append %s: %w", EventOrderStatusUpdated, err)
		}

		if err := o.ApplyEvent(*stored); err != nil {
			return nil, err
		}
		s.snapshot(ctx, o)
		return o, nil
	}
}

func (s *Service) Delete(ctx context.Context, orderID string) error {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	event := OrderDeleted{OrderID: orderID, DeletedAt: s.now()}
	if _, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderDeleted, o.Version, event); err != nil {
		return fmt.Errorf("append %s: %w", EventOrderDeleted, err)
	}
	return nil
}

type reserved struct {
	productID string
	variant   *catalog.VariantSelector
	qty       int
}

// PlaceDirect creates a pending order straight from the request, bypassing
// the cart. Line prices and the breakdown are computed here from catalog
// data. Stock is taken line by line and handed back if any line fails.
func (s *Service) PlaceDirect(ctx context.Context, userID, email string, in DirectOrderInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, apperror.Validation(ErrEmptyOrder.Error())
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid payment method: %s", in.PaymentMethod))
	}

	items := make([]Item, 0, len(in.Items))
	itemsPrice := decimal.Zero
	for _, di := range in.Items {
		if di.Quantity < 1 {
			return nil, apperror.Validation("quantity must be at least 1")
		}
		if di.Variant.IsZero() {
			di.Variant = nil
		}
		p, err := s.inventory.GetProduct(ctx, di.ProductID)
		if err != nil {
			return nil, err
		}
		if available := p.AvailableStock(di.Variant); available < di.Quantity {
			return nil, apperror.InsufficientStock(p.Name, di.Quantity, available)
		}
		item := Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  di.Quantity,
			Price:     p.UnitPrice(),
			Variant:   di.Variant,
			Image:     p.FirstImage(),
		}
		items = append(items, item)
		itemsPrice = itemsPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	taken := make([]reserved, 0, len(items))
	for _, item := range items {
		err := s.inventory.DecrementStock(ctx, item.ProductID, item.Variant, item.Quantity)
		if err != nil {
			s.restore(ctx, taken)
			if errors.Is(err, catalog.ErrOutOfStock) {
				available := 0
				if p, gerr := s.inventory.GetProduct(ctx, item.ProductID); gerr == nil {
					available = p.AvailableStock(item.Variant)
				}
				return nil, apperror.InsufficientStock(item.Name, item.Quantity, available)
			}
			return nil, err
		}
		taken = append(taken, reserved{productID: item.ProductID, variant: item.Variant, qty: item.Quantity})
	}

	o, err := s.Place(ctx, PlaceParams{
		UserID:          userID,
		Email:           email,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Prices:          pricing.Compute(itemsPrice),
		Notes:           in.Notes,
	})
	if err != nil {
		s.restore(ctx, taken)
		return nil, err
	}
	metrics.OrdersCreated.WithLabelValues("direct").Inc()
	return o, nil
}

func (s *Service) restore(ctx context.Context, taken []reserved) {
	for _, r := range taken {
		if err := s.inventory.RestoreStock(ctx, r.productID, r.variant, r.qty); err != nil {
			s.logger.ErrorContext(ctx, "stock restore failed",
				slog.String("product_id", r.productID),
				slog.Int("quantity", r.qty),
				slog.Any("error", err),
			)
		}
	}
}
