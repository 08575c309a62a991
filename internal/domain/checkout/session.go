package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/pricing"
)

type SessionStatus string

const (
	StatusUnpaid SessionStatus = "unpaid"
	StatusPaid   SessionStatus = "paid"
)

// Snapshot freezes the checkout inputs. It is dropped once the session is paid.
type Snapshot struct {
	Items           []cart.Line         `json:"items"`
	ShippingAddress order.Address       `json:"shippingAddress"`
	PaymentMethod   order.PaymentMethod `json:"paymentMethod"`
	Prices          pricing.Breakdown   `json:"prices"`
}

// Session is a pending (or completed) payment for one identity. A user has at
// most one session; starting a new checkout replaces the previous one.
type Session struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Email      string          `json:"email,omitempty"`
	Status     SessionStatus   `json:"status"`
	Snapshot   *Snapshot       `json:"snapshot,omitempty"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	OrderID    string          `json:"orderId,omitempty"`
	URL        string          `json:"url"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	PaidAt     *time.Time      `json:"paidAt,omitempty"`
}

func (s *Session) IsPaid() bool {
	return s.Status == StatusPaid
}

// TTL is the remaining lifetime of the session at now, never below one second
// so that stores do not treat it as "no expiry".
func (s *Session) TTL(now time.Time) time.Duration {
	ttl := s.ExpiresAt.Sub(now)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// SessionStore persists sessions keyed by user id.
//
// Get returns an apperror NotFound when there is no session or it expired.
// Claim takes an exclusive, expiring lock on a session id and reports
// whether the caller won it.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID string) error
	Claim(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

// NewSessionID returns "sess_<unix millis>_<8 hex chars>".
func NewSessionID(now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	return fmt.Sprintf("sess_%d_%s", now.UnixMilli(), hex.EncodeToString(b[:])), nil
}
