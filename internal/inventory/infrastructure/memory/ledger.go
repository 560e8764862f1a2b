// Package memory holds a process-local stock ledger used by tests and
// local runs where no Postgres is available.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/order-admission/internal/inventory/domain"
)

type Ledger struct {
	mu      sync.RWMutex
	entries map[string]domain.StockEntry
	fault   error
	delay   time.Duration
	reads   int
}

func NewLedger(entries ...domain.StockEntry) *Ledger {
	l := &Ledger{entries: make(map[string]domain.StockEntry, len(entries))}
	for _, e := range entries {
		l.entries[e.SKU] = e
	}
	return l
}

// SetFault makes every subsequent call fail with err until cleared with nil.
func (l *Ledger) SetFault(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fault = err
}

// SetDelay makes reads block for d or until the context is done.
func (l *Ledger) SetDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = d
}

// Reads returns how many ledger round trips have been served.
func (l *Ledger) Reads() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reads
}

func (l *Ledger) Get(ctx context.Context, sku string) (domain.StockEntry, error) {
	if err := l.begin(ctx); err != nil {
		return domain.StockEntry{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[sku]
	if !ok {
		return domain.StockEntry{}, domain.ErrUnknownSKU
	}
	return e, nil
}

func (l *Ledger) GetMany(ctx context.Context, skus []string) (map[string]domain.StockEntry, error) {
	if err := l.begin(ctx); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]domain.StockEntry, len(skus))
	for _, sku := range skus {
		if e, ok := l.entries[sku]; ok {
			out[sku] = e
		}
	}
	return out, nil
}

func (l *Ledger) Adjust(ctx context.Context, sku string, delta int64) (domain.StockEntry, error) {
	if err := l.begin(ctx); err != nil {
		return domain.StockEntry{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[sku]
	if !ok {
		return domain.StockEntry{}, domain.ErrUnknownSKU
	}
	next, err := e.Apply(delta)
	if err != nil {
		return domain.StockEntry{}, err
	}
	l.entries[sku] = next
	return next, nil
}

func (l *Ledger) begin(ctx context.Context) error {
	l.mu.Lock()
	l.reads++
	fault, delay := l.fault, l.delay
	l.mu.Unlock()

	if fault != nil {
		return fault
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return ctx.Err()
}
