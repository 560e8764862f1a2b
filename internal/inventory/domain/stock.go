package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxAdjustment bounds the magnitude of a single stock change.
const MaxAdjustment int64 = 1 << 40

var (
	ErrUnknownSKU         = errors.New("unknown sku")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidAdjustment  = errors.New("invalid stock adjustment")
	ErrNegativeStockLevel = errors.New("stock quantity cannot be negative")
)

type Availability int

const (
	Unavailable Availability = iota
	Available
)

func (a Availability) String() string {
	if a == Available {
		return "available"
	}
	return "unavailable"
}

// StockEntry is the per-SKU quantity record held by the stock ledger.
// Quantity is never negative.
type StockEntry struct {
	SKU       string
	Quantity  int64
	UpdatedAt time.Time
}

func NewStockEntry(sku string, quantity int64) (StockEntry, error) {
	if sku == "" {
		return StockEntry{}, fmt.Errorf("%w: empty sku", ErrInvalidAdjustment)
	}
	if quantity < 0 {
		return StockEntry{}, ErrNegativeStockLevel
	}
	return StockEntry{SKU: sku, Quantity: quantity, UpdatedAt: time.Now().UTC()}, nil
}

func (e StockEntry) Availability() Availability {
	if e.Quantity > 0 {
		return Available
	}
	return Unavailable
}

// Apply returns the entry after a signed quantity change. A change that
// would take the quantity below zero is rejected, never clamped.
func (e StockEntry) Apply(delta int64) (StockEntry, error) {
	if delta > 0 && e.Quantity > math.MaxInt64-delta {
		return e, fmt.Errorf("%w: sku %s has %d, change %d overflows", ErrInvalidAdjustment, e.SKU, e.Quantity, delta)
	}
	next := e.Quantity + delta
	if next < 0 {
		return e, fmt.Errorf("%w: sku %s has %d, change %d", ErrInsufficientStock, e.SKU, e.Quantity, delta)
	}
	e.Quantity = next
	e.UpdatedAt = time.Now().UTC()
	return e, nil
}

// Adjustment is a confirmed external stock change (restock, shrinkage,
// fulfilment) delivered to the inventory service.
type Adjustment struct {
	SKU    string `json:"sku"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (a Adjustment) Validate() error {
	if a.SKU == "" {
		return fmt.Errorf("%w: empty sku", ErrInvalidAdjustment)
	}
	if a.Delta == 0 {
		return fmt.Errorf("%w: zero delta for sku %s", ErrInvalidAdjustment, a.SKU)
	}
	if a.Delta > MaxAdjustment || a.Delta < -MaxAdjustment {
		return fmt.Errorf("%w: delta %d for sku %s exceeds %d", ErrInvalidAdjustment, a.Delta, a.SKU, MaxAdjustment)
	}
	return nil
}
