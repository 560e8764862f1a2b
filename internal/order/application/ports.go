package application

import (
	"context"

	"github.com/dmehra2102/order-admission/internal/order/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks

// OrderLedger is the append-only store of admitted orders.
//
// Append returns ErrDuplicateKey when the order id already exists,
// ErrIdempotencyConflict when another order already carries the same
// idempotency key, and ErrStorageFault when the write could not be confirmed.
type OrderLedger interface {
	Append(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error
	FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
}

// InventoryClient answers availability for a set of SKUs in one round trip.
// Failures are wrapped in ErrTransientUnavailable.
type InventoryClient interface {
	CheckAvailabilityBatch(ctx context.Context, skus []string) (map[string]bool, error)
}
