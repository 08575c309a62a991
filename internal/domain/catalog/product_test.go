package catalog

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func shirt() *Product {
	return &Product{
		ID:    "p1",
		Name:  "Shirt",
		Price: dec("50"),
		Stock: 10,
		Variants: []Variant{
			{Name: "size", Options: []Option{{Name: "M", Stock: 2}, {Name: "L", Stock: 0}}},
		},
	}
}

func TestProduct_UnitPrice(t *testing.T) {
	p := shirt()
	assert.True(t, p.UnitPrice().Equal(dec("50")))

	discount := dec("39.99")
	p.DiscountPrice = &discount
	assert.True(t, p.UnitPrice().Equal(dec("39.99")))

	zero := decimal.Zero
	p.DiscountPrice = &zero
	assert.True(t, p.UnitPrice().Equal(dec("50")))
}

func TestProduct_AvailableStock(t *testing.T) {
	p := shirt()

	assert.Equal(t, 10, p.AvailableStock(nil))
	assert.Equal(t, 2, p.AvailableStock(&VariantSelector{Name: "size", Option: "M"}))
	assert.Equal(t, 0, p.AvailableStock(&VariantSelector{Name: "size", Option: "L"}))

	// unknown variant or option falls back to product stock
	assert.Equal(t, 10, p.AvailableStock(&VariantSelector{Name: "size", Option: "XXL"}))
	assert.Equal(t, 10, p.AvailableStock(&VariantSelector{Name: "color", Option: "M"}))
	// incomplete selector is ignored
	assert.Equal(t, 10, p.AvailableStock(&VariantSelector{Name: "size"}))
}

func TestVariantSelector_Equal(t *testing.T) {
	var none *VariantSelector
	m := &VariantSelector{Name: "size", Option: "M"}

	assert.True(t, none.Equal(nil))
	assert.True(t, none.Equal(&VariantSelector{}))
	assert.True(t, m.Equal(&VariantSelector{Name: "size", Option: "M"}))
	assert.False(t, m.Equal(&VariantSelector{Name: "size", Option: "L"}))
	assert.False(t, m.Equal(nil))
}

func TestProduct_JSONMoneyIsNumeric(t *testing.T) {
	p := shirt()
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(50), raw["price"])
}

func TestProductFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, ProductFilter{Page: 0, Limit: 10}.Offset())
	assert.Equal(t, 0, ProductFilter{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, ProductFilter{Page: 3, Limit: 10}.Offset())
	assert.Equal(t, math.MaxInt, ProductFilter{Page: math.MaxInt, Limit: 100}.Offset())
	assert.Equal(t, math.MaxInt, ProductFilter{Page: 100000000000000000, Limit: 100}.Offset())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "ropa-de-mujer", Slugify("Ropa de Mujer"))
	assert.Equal(t, "electronica", Slugify("  Electrónica! "))
	assert.Equal(t, "a-b", Slugify("a -- b"))
}
