package application

import (
	"context"

	"github.com/dmehra2102/order-admission/internal/inventory/domain"
)

// StockLedger is the durable per-SKU quantity store. Get returns
// domain.ErrUnknownSKU when no entry exists; GetMany omits unknown SKUs from
// its result instead of failing.
type StockLedger interface {
	Get(ctx context.Context, sku string) (domain.StockEntry, error)
	GetMany(ctx context.Context, skus []string) (map[string]domain.StockEntry, error)
	Adjust(ctx context.Context, sku string, delta int64) (domain.StockEntry, error)
}
