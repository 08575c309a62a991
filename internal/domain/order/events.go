package order

import (
	"time"

	"github.com/example/ec-shop/internal/domain/pricing"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusUpdated = "OrderStatusUpdated"
	EventOrderDeleted       = "OrderDeleted"
)

type OrderPlaced struct {
	OrderID           string            `json:"order_id"`
	UserID            string            `json:"user_id"`
	Email             string            `json:"email,omitempty"`
	Items             []Item            `json:"items"`
	ShippingAddress   Address           `json:"shipping_address"`
	PaymentMethod     PaymentMethod     `json:"payment_method"`
	Prices            pricing.Breakdown `json:"prices"`
	Notes             string            `json:"notes,omitempty"`
	CheckoutSessionID string            `json:"checkout_session_id,omitempty"`
	PaymentResult     *PaymentResult    `json:"payment_result,omitempty"`
	Paid              bool              `json:"paid"`
	PlacedAt          time.Time         `json:"placed_at"`
}

// OrderStatusUpdated carries the requested status and, when supplied, the
// tracking number. A nil TrackingNumber leaves the current one in place.
type OrderStatusUpdated struct {
	OrderID        string    `json:"order_id"`
	Status         Status    `json:"status"`
	TrackingNumber *string   `json:"tracking_number,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type OrderDeleted struct {
	OrderID   string    `json:"order_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
