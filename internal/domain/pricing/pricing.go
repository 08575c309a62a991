// Package pricing holds the checkout price rules shared by the checkout
// flow and direct orders.
package pricing

import "github.com/shopspring/decimal"

var (
	TaxRate               = decimal.RequireFromString("0.15")
	FreeShippingThreshold = decimal.NewFromInt(100)
	FlatShipping          = decimal.NewFromInt(10)
)

type Breakdown struct {
	ItemsPrice    decimal.Decimal `json:"itemsPrice"`
	TaxPrice      decimal.Decimal `json:"taxPrice"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// Compute derives tax, shipping and total from the items price. Shipping is
// free from FreeShippingThreshold upwards. Tax is rounded to cents.
func Compute(itemsPrice decimal.Decimal) Breakdown {
	tax := itemsPrice.Mul(TaxRate).Round(2)

	shipping := FlatShipping
	if itemsPrice.GreaterThanOrEqual(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Breakdown{
		ItemsPrice:    itemsPrice,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    itemsPrice.Add(tax).Add(shipping),
	}
}
