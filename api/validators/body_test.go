package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
)

type lineItem struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type checkout struct {
	Items         []lineItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string     `json:"paymentMethod" validate:"required,oneof=online cash"`
	OTP           string     `json:"otp,omitempty" validate:"omitempty,otp"`
}

func decode(t *testing.T, body string) (checkout, *pkgerrors.Error) {
	t.Helper()
	var dest checkout
	err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(body)), &dest)
	if err == nil {
		return dest, nil
	}
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	return dest, typed
}

func TestDecodeJSONBodyAcceptsValidCheckout(t *testing.T) {
	got, err := decode(t, `{"items":[{"productId":"5f0c7d3e-8a41-4a7e-9d53-1f1b2c3d4e5f","quantity":2}],"paymentMethod":"cash","otp":"0427"}`)
	require.Nil(t, err)
	require.Equal(t, 2, got.Items[0].Quantity)
	require.Equal(t, "0427", got.OTP)
}

func TestDecodeJSONBodyReportsNestedFieldPaths(t *testing.T) {
	_, err := decode(t, `{"items":[{"productId":"5f0c7d3e-8a41-4a7e-9d53-1f1b2c3d4e5f","quantity":1},{"productId":"x","quantity":0}],"paymentMethod":"barter"}`)
	require.NotNil(t, err)
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a uuid", details["items[1].productId"])
	require.Equal(t, "is required", details["items[1].quantity"])
	require.Equal(t, "must be one of online, cash", details["paymentMethod"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"items":[],"paymentMethod":"cash","coupon":"FREE"}`,
		"trailing data": `{"items":[],"paymentMethod":"cash"} {"again":true}`,
		"wrong type":    `{"items":"none","paymentMethod":"cash"}`,
		"short otp":     `{"items":[{"productId":"5f0c7d3e-8a41-4a7e-9d53-1f1b2c3d4e5f","quantity":1}],"paymentMethod":"cash","otp":"123"}`,
		"oversized":     `{"paymentMethod":"` + strings.Repeat("a", MaxJSONBody) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, body)
			require.NotNil(t, err)
		})
	}
}
