package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		items    string
		tax      string
		shipping string
		total    string
	}{
		{"threshold is free shipping", "100", "15", "0", "115"},
		{"above threshold", "250", "37.5", "0", "287.5"},
		{"below threshold pays flat fee", "99.99", "15", "10", "124.99"},
		{"small order", "20", "3", "10", "33"},
		{"empty", "0", "0", "10", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Compute(decimal.RequireFromString(tt.items))
			assert.True(t, b.ItemsPrice.Equal(decimal.RequireFromString(tt.items)))
			assert.True(t, b.TaxPrice.Equal(decimal.RequireFromString(tt.tax)), "tax %s", b.TaxPrice)
			assert.True(t, b.ShippingPrice.Equal(decimal.RequireFromString(tt.shipping)), "shipping %s", b.ShippingPrice)
			assert.True(t, b.TotalPrice.Equal(decimal.RequireFromString(tt.total)), "total %s", b.TotalPrice)
		})
	}
}

func TestCompute_TotalIsSumOfParts(t *testing.T) {
	b := Compute(decimal.RequireFromString("42.42"))
	assert.True(t, b.TotalPrice.Equal(b.ItemsPrice.Add(b.TaxPrice).Add(b.ShippingPrice)))
}
