package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/pricing"
	"github.com/example/ec-shop/internal/metrics"
)

const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultRedirectURL = "https://example.com/checkout/success"
)

// Carts is the slice of the Cart Engine checkout depends on.
type Carts interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) (*cart.Cart, error)
}

type StartInput struct {
	ShippingAddress order.Address       `json:"shippingAddress" validate:"required"`
	PaymentMethod   order.PaymentMethod `json:"paymentMethod" validate:"required,oneof=creditCard paypal transferencia contraentrega"`
}

type StartResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type Options struct {
	SessionTTL  time.Duration
	RedirectURL string
}

// Orchestrator turns a cart into a priced, expiring checkout session. It
// never talks to a payment network; the redirect URL is where a payment
// provider would take over.
type Orchestrator struct {
	carts    Carts
	products cart.ProductLookup
	sessions SessionStore
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(carts Carts, products cart.ProductLookup, sessions SessionStore, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.RedirectURL == "" {
		opts.RedirectURL = DefaultRedirectURL
	}
	return &Orchestrator{
		carts:    carts,
		products: products,
		sessions: sessions,
		opts:     opts,
		logger:   logger.With(slog.String("component", "checkout")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StartCheckout re-checks every cart line against current stock, prices the
// cart and stores an unpaid session. Any failing line aborts the checkout.
func (o *Orchestrator) StartCheckout(ctx context.Context, userID, email string, in StartInput) (*StartResult, error) {
	if !in.PaymentMethod.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("invalid payment method: %s", in.PaymentMethod))
	}

	c, err := o.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, apperror.EmptyCart()
	}

	for _, line := range c.Items {
		p, err := o.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if available := p.AvailableStock(line.Variant); available < line.Quantity {
			return nil, apperror.InsufficientStock(p.Name, line.Quantity, available)
		}
	}

	c.Recalculate()
	prices := pricing.Compute(c.Total)

	now := o.now()
	id, err := NewSessionID(now)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	sess := &Session{
		ID:     id,
		UserID: userID,
		Email:  email,
		Status: StatusUnpaid,
		Snapshot: &Snapshot{
			Items:           c.Items,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			Prices:          prices,
		},
		TotalPrice: prices.TotalPrice,
		URL:        o.redirectURL(id),
		CreatedAt:  now,
		ExpiresAt:  now.Add(o.opts.SessionTTL),
	}
	if err := o.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}

	metrics.CheckoutSessionsStarted.Inc()
	o.logger.InfoContext(ctx, "checkout started",
		slog.String("session_id", id),
		slog.String("user_id", userID),
		slog.String("total", prices.TotalPrice.String()),
	)
	return &StartResult{SessionID: id, URL: sess.URL}, nil
}

func (o *Orchestrator) redirectURL(sessionID string) string {
	u, err := url.Parse(o.opts.RedirectURL)
	if err != nil {
		return o.opts.RedirectURL
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}
