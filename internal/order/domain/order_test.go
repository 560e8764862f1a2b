package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(sku string, qty int, price string) LineItem {
	return LineItem{SKU: sku, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestAdmissionRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  AdmissionRequest
		ok   bool
	}{
		{"empty", AdmissionRequest{}, false},
		{"zero quantity", AdmissionRequest{LineItems: []LineItem{item("X", 0, "1")}}, false},
		{"negative quantity", AdmissionRequest{LineItems: []LineItem{item("X", -1, "1")}}, false},
		{"missing sku", AdmissionRequest{LineItems: []LineItem{item("", 1, "1")}}, false},
		{"negative price", AdmissionRequest{LineItems: []LineItem{item("X", 1, "-0.01")}}, false},
		{"free item", AdmissionRequest{LineItems: []LineItem{item("X", 1, "0")}}, true},
		{"valid", AdmissionRequest{LineItems: []LineItem{item("X", 2, "9.99"), item("Y", 1, "1")}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestAdmissionRequestSKUs(t *testing.T) {
	req := AdmissionRequest{LineItems: []LineItem{item("B", 1, "1"), item("A", 1, "1"), item("B", 3, "1")}}
	assert.Equal(t, []string{"B", "A"}, req.SKUs())
}

func TestNewOrder(t *testing.T) {
	req := AdmissionRequest{
		IdempotencyKey: "k-1",
		LineItems:      []LineItem{item("X", 2, "9.99"), item("Y", 3, "0.10")},
	}
	o := NewOrder(req)
	require.NotEmpty(t, o.ID)
	assert.Equal(t, "k-1", o.IdempotencyKey)
	assert.True(t, decimal.RequireFromString("20.28").Equal(o.Total), o.Total.String())
	assert.Equal(t, req.LineItems, o.LineItems)

	req.LineItems[0].Quantity = 50
	assert.Equal(t, 2, o.LineItems[0].Quantity)

	assert.NotEqual(t, o.ID, NewOrder(req).ID)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "admitted", Admitted("x").Outcome.String())
	assert.Equal(t, "rejected", Rejected([]string{"Y"}).Outcome.String())
	assert.Equal(t, "indeterminate", Indeterminate("down").Outcome.String())
	assert.Equal(t, "invalid_request", InvalidRequest("bad").Outcome.String())
	assert.True(t, Replayed("x").Replayed)
}
