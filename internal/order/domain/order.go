package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("invalid admission request")

// LineItem is one SKU and quantity of an order. Immutable once attached.
type LineItem struct {
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// AdmissionRequest is a candidate order. It lives only for one admission
// attempt and is never persisted.
type AdmissionRequest struct {
	LineItems      []LineItem
	IdempotencyKey string
}

func (r AdmissionRequest) Validate() error {
	if len(r.LineItems) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidRequest)
	}
	for i, li := range r.LineItems {
		if li.SKU == "" {
			return fmt.Errorf("%w: line item %d has no sku", ErrInvalidRequest, i)
		}
		if li.Quantity <= 0 {
			return fmt.Errorf("%w: line item %d quantity must be positive", ErrInvalidRequest, i)
		}
		if li.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line item %d unit price is negative", ErrInvalidRequest, i)
		}
	}
	return nil
}

// SKUs returns the SKUs of the request in line item order, without duplicates.
func (r AdmissionRequest) SKUs() []string {
	seen := make(map[string]struct{}, len(r.LineItems))
	out := make([]string, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		if _, ok := seen[li.SKU]; ok {
			continue
		}
		seen[li.SKU] = struct{}{}
		out = append(out, li.SKU)
	}
	return out
}

type Order struct {
	ID             string
	IdempotencyKey string
	LineItems      []LineItem
	Total          decimal.Decimal
	CreatedAt      time.Time
}

// NewOrder assigns a random id before anything is persisted so the id can be
// returned once the write is confirmed.
func NewOrder(req AdmissionRequest) Order {
	items := make([]LineItem, len(req.LineItems))
	copy(items, req.LineItems)

	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Subtotal())
	}
	return Order{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		LineItems:      items,
		Total:          total,
		CreatedAt:      time.Now().UTC(),
	}
}
