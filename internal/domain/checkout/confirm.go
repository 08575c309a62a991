package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/metrics"
)

// claimTTL bounds how long a crashed confirmation can block a retry.
const claimTTL = 30 * time.Second

var orderNamespace = uuid.MustParse("6f1c2a4e-8d3b-4c7a-9e51-2b7d0f4a9c13")

// OrderIDForSession derives the order id from the session id, so a session
// can only ever produce one order.
func OrderIDForSession(sessionID string) string {
	return uuid.NewSHA1(orderNamespace, []byte(sessionID)).String()
}

type Orders interface {
	Place(ctx context.Context, p order.PlaceParams) (*order.Order, error)
	Get(ctx context.Context, orderID string) (*order.Order, error)
}

type Stock interface {
	DecrementStock(ctx context.Context, productID string, sel *catalog.VariantSelector, qty int) error
}

const (
	ReasonProductMissing = "product_missing"
	ReasonOutOfStock     = "out_of_stock"
	ReasonStockError     = "error"
)

// UnfulfilledLine is an order line whose stock could not be taken.
type UnfulfilledLine struct {
	ProductID string                   `json:"productId"`
	Name      string                   `json:"name"`
	Quantity  int                      `json:"quantity"`
	Variant   *catalog.VariantSelector `json:"variant,omitempty"`
	Reason    string                   `json:"reason"`
}

type ConfirmResult struct {
	OrderID          string            `json:"orderId,omitempty"`
	TotalPrice       decimal.Decimal   `json:"totalPrice"`
	Session          *Session          `json:"session"`
	Unfulfilled      []UnfulfilledLine `json:"unfulfilled,omitempty"`
	AlreadyConfirmed bool              `json:"alreadyConfirmed,omitempty"`
}

// Confirmer finalizes paid sessions. Confirmation is idempotent per session:
// whichever of the polling call or the webhook gets there first creates the
// order, the other sees a paid session.
type Confirmer struct {
	sessions SessionStore
	orders   Orders
	stock    Stock
	carts    Carts
	logger   *slog.Logger
	now      func() time.Time
}

func NewConfirmer(sessions SessionStore, orders Orders, stock Stock, carts Carts, logger *slog.Logger) *Confirmer {
	return &Confirmer{
		sessions: sessions,
		orders:   orders,
		stock:    stock,
		carts:    carts,
		logger:   logger.With(slog.String("component", "checkout")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func paidResult(sess *Session) *ConfirmResult {
	return &ConfirmResult{
		OrderID:          sess.OrderID,
		TotalPrice:       sess.TotalPrice,
		Session:          sess,
		AlreadyConfirmed: true,
	}
}

func (c *Confirmer) load(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := c.sessions.Get(ctx, userID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if err == nil && sess.ID == sessionID {
		return sess, nil
	}
	return c.settled(ctx, userID, sessionID)
}

// settled rebuilds a paid session that is no longer stored, because it
// expired or a newer checkout replaced it. The session-derived order is the
// lasting record of its payment.
func (c *Confirmer) settled(ctx context.Context, userID, sessionID string) (*Session, error) {
	missing := apperror.NotFound("checkout session", sessionID)
	o, err := c.orders.Get(ctx, OrderIDForSession(sessionID))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, missing
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != userID || o.CheckoutSessionID != sessionID {
		return nil, missing
	}
	return &Session{
		ID:         sessionID,
		UserID:     userID,
		Email:      o.Email,
		Status:     StatusPaid,
		TotalPrice: o.TotalPrice,
		OrderID:    o.ID,
		CreatedAt:  o.CreatedAt,
		PaidAt:     o.PaidAt,
	}, nil
}

// ConfirmSession reports the session unchanged when confirmed is false.
// Otherwise it creates the paid order, takes stock for each line, marks the
// session paid and clears the cart. Lines whose stock cannot be taken are
// still part of the order and are listed in Unfulfilled.
func (c *Confirmer) ConfirmSession(ctx context.Context, userID, sessionID string, confirmed bool) (*ConfirmResult, error) {
	sess, err := c.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return &ConfirmResult{OrderID: sess.OrderID, TotalPrice: sess.TotalPrice, Session: sess}, nil
	}
	if sess.IsPaid() {
		return paidResult(sess), nil
	}

	won, err := c.sessions.Claim(ctx, sessionID, claimTTL)
	if err != nil {
		return nil, fmt.Errorf("claim checkout session: %w", err)
	}
	if !won {
		sess, err = c.load(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		if sess.IsPaid() {
			return paidResult(sess), nil
		}
		return nil, apperror.Conflict("checkout session is already being confirmed")
	}
	defer func() {
		if err := c.sessions.Release(context.WithoutCancel(ctx), sessionID); err != nil {
			c.logger.WarnContext(ctx, "release checkout claim failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}()

	// Another confirmation may have finished between the first read and the claim.
	sess, err = c.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsPaid() {
		return paidResult(sess), nil
	}
	if sess.Snapshot == nil {
		return nil, apperror.Internal(fmt.Errorf("checkout session %s has no snapshot", sessionID))
	}

	o, created, err := c.placeOrder(ctx, sess)
	if err != nil {
		return nil, err
	}

	var unfulfilled []UnfulfilledLine
	if created {
		unfulfilled = c.takeStock(ctx, o)
		metrics.OrdersCreated.WithLabelValues("checkout").Inc()
	}

	paidAt := c.now()
	sess.Status = StatusPaid
	sess.OrderID = o.ID
	sess.PaidAt = &paidAt
	sess.Snapshot = nil
	if err := c.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}

	if _, err := c.carts.ClearCart(ctx, userID); err != nil {
		c.logger.WarnContext(ctx, "clear cart after checkout failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	c.logger.InfoContext(ctx, "checkout confirmed",
		slog.String("session_id", sessionID),
		slog.String("order_id", o.ID),
		slog.Int("unfulfilled", len(unfulfilled)),
	)
	return &ConfirmResult{
		OrderID:     o.ID,
		TotalPrice:  o.TotalPrice,
		Session:     sess,
		Unfulfilled: unfulfilled,
	}, nil
}

// placeOrder creates the order under the session-derived id. If the order
// already exists it is returned with created=false.
func (c *Confirmer) placeOrder(ctx context.Context, sess *Session) (*order.Order, bool, error) {
	snap := sess.Snapshot
	items := make([]order.Item, len(snap.Items))
	for i, l := range snap.Items {
		items[i] = order.Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.Price,
			Variant:   l.Variant,
			Image:     l.Image,
		}
	}

	orderID := OrderIDForSession(sess.ID)
	o, err := c.orders.Place(ctx, order.PlaceParams{
		OrderID:           orderID,
		UserID:            sess.UserID,
		Email:             sess.Email,
		Items:             items,
		ShippingAddress:   snap.ShippingAddress,
		PaymentMethod:     snap.PaymentMethod,
		Prices:            snap.Prices,
		CheckoutSessionID: sess.ID,
		PaymentResult: &order.PaymentResult{
			ID:         sess.ID,
			Status:     string(StatusPaid),
			UpdateTime: c.now().Format(time.RFC3339),
			Email:      sess.Email,
		},
		Paid: true,
	})
	if errors.Is(err, order.ErrOrderExists) {
		c.logger.WarnContext(ctx, "order for session already exists", slog.String("session_id", sess.ID), slog.String("order_id", orderID))
		existing, err := c.orders.Get(ctx, orderID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

func (c *Confirmer) takeStock(ctx context.Context, o *order.Order) []UnfulfilledLine {
	var unfulfilled []UnfulfilledLine
	for _, item := range o.Items {
		err := c.stock.DecrementStock(ctx, item.ProductID, item.Variant, item.Quantity)
		if err == nil {
			continue
		}

		var reason string
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			reason = ReasonProductMissing
		case errors.Is(err, catalog.ErrOutOfStock):
			reason = ReasonOutOfStock
		default:
			c.logger.ErrorContext(ctx, "stock decrement failed",
				slog.String("order_id", o.ID),
				slog.String("product_id", item.ProductID),
				slog.Any("error", err),
			)
			reason = ReasonStockError
		}
		metrics.StockDecrementFailures.WithLabelValues(reason).Inc()
		c.logger.WarnContext(ctx, "order line not fulfilled from stock",
			slog.String("order_id", o.ID),
			slog.String("product_id", item.ProductID),
			slog.Int("quantity", item.Quantity),
			slog.String("reason", reason),
		)
		unfulfilled = append(unfulfilled, UnfulfilledLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Variant:   item.Variant,
			Reason:    reason,
		})
	}
	return unfulfilled
}

var _ Carts = (*cart.Engine)(nil)
