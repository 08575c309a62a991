package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/domain/pricing"
	"github.com/example/ec-shop/internal/infrastructure/store"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "creditCard"
	PaymentPayPal         PaymentMethod = "paypal"
	PaymentBankTransfer   PaymentMethod = "transferencia"
	PaymentCashOnDelivery PaymentMethod = "contraentrega"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentPayPal, PaymentBankTransfer, PaymentCashOnDelivery:
		return true
	}
	return false
}

type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
	Phone   string `json:"phone,omitempty"`
}

// Item is an order line. Everything on it is copied at creation and never
// changes afterwards.
type Item struct {
	ProductID string                   `json:"productId"`
	Name      string                   `json:"name"`
	Quantity  int                      `json:"quantity"`
	Price     decimal.Decimal          `json:"price"`
	Variant   *catalog.VariantSelector `json:"variant,omitempty"`
	Image     string                   `json:"image,omitempty"`
}

type PaymentResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"updateTime"`
	Email      string `json:"email,omitempty"`
}

type Order struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	Email             string            `json:"email,omitempty"`
	Items             []Item            `json:"items"`
	ShippingAddress   Address           `json:"shippingAddress"`
	PaymentMethod     PaymentMethod     `json:"paymentMethod"`
	PaymentResult     *PaymentResult    `json:"paymentResult,omitempty"`
	ItemsPrice        decimal.Decimal   `json:"itemsPrice"`
	TaxPrice          decimal.Decimal   `json:"taxPrice"`
	ShippingPrice     decimal.Decimal   `json:"shippingPrice"`
	TotalPrice        decimal.Decimal   `json:"totalPrice"`
	Status            Status            `json:"status"`
	IsPaid            bool              `json:"isPaid"`
	PaidAt            *time.Time        `json:"paidAt,omitempty"`
	IsDelivered       bool              `json:"isDelivered"`
	DeliveredAt       *time.Time        `json:"deliveredAt,omitempty"`
	TrackingNumber    string            `json:"trackingNumber,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	CheckoutSessionID string            `json:"checkoutSessionId,omitempty"`
	Deleted           bool              `json:"deleted,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	Version           int               `json:"version"`
}

func (o *Order) GetID() string   { return o.ID }
func (o *Order) GetVersion() int { return o.Version }

// Prices returns the stored price breakdown.
func (o *Order) Prices() pricing.Breakdown {
	return pricing.Breakdown{
		ItemsPrice:    o.ItemsPrice,
		TaxPrice:      o.TaxPrice,
		ShippingPrice: o.ShippingPrice,
		TotalPrice:    o.TotalPrice,
	}
}

// ApplyEvent folds one event into the order state.
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		o.ID = data.OrderID
		o.UserID = data.UserID
		o.Email = data.Email
		o.Items = data.Items
		o.ShippingAddress = data.ShippingAddress
		o.PaymentMethod = data.PaymentMethod
		o.PaymentResult = data.PaymentResult
		o.ItemsPrice = data.Prices.ItemsPrice
		o.TaxPrice = data.Prices.TaxPrice
		o.ShippingPrice = data.Prices.ShippingPrice
		o.TotalPrice = data.Prices.TotalPrice
		o.Notes = data.Notes
		o.CheckoutSessionID = data.CheckoutSessionID
		o.Status = StatusPending
		if data.Paid {
			o.Status = StatusPaid
			o.markPaid(data.PlacedAt)
		}
		o.CreatedAt = data.PlacedAt
		o.UpdatedAt = data.PlacedAt
	case EventOrderStatusUpdated:
		var data OrderStatusUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		if data.Status != "" {
			o.Status = data.Status
		}
		switch data.Status {
		case StatusPaid:
			o.markPaid(data.UpdatedAt)
		case StatusShipped:
			o.markDelivered(data.UpdatedAt)
		}
		if data.TrackingNumber != nil {
			o.TrackingNumber = *data.TrackingNumber
		}
		o.UpdatedAt = data.UpdatedAt
	case EventOrderDeleted:
		var data OrderDeleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}
		o.Deleted = true
		o.UpdatedAt = data.DeletedAt
	}
	o.Version = event.Version
	return nil
}

// markPaid and markDelivered only ever set their timestamp once.
func (o *Order) markPaid(at time.Time) {
	if o.IsPaid {
		return
	}
	o.IsPaid = true
	o.PaidAt = &at
}

func (o *Order) markDelivered(at time.Time) {
	if o.IsDelivered {
		return
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
}
