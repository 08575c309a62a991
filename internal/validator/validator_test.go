package validator

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-shop/internal/apperror"
)

type addItemBody struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Method    string `json:"paymentMethod" validate:"omitempty,oneof=creditCard paypal"`
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(addItemBody{ProductID: "p1", Quantity: 2}))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(addItemBody{Quantity: 0, Method: "cash"})
	require.Error(t, err)

	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 400, apperror.HTTPStatus(err))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	fields := ve.Fields()
	assert.Equal(t, "is required", fields["productId"])
	assert.Contains(t, fields, "quantity")
	assert.Equal(t, "must be one of: creditCard paypal", fields["paymentMethod"])
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/cart", strings.NewReader("{not json"))

	var body addItemBody
	err := DecodeAndValidate(req, &body)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, apperror.Message(err), "invalid request body")
}

func TestDecodeAndValidate_Valid(t *testing.T) {
	req := httptest.NewRequest("POST", "/cart", strings.NewReader(`{"productId":"p1","quantity":3}`))

	var body addItemBody
	require.NoError(t, DecodeAndValidate(req, &body))
	assert.Equal(t, "p1", body.ProductID)
	assert.Equal(t, 3, body.Quantity)
}
