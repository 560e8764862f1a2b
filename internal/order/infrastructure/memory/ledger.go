// Package memory is an in-process order ledger with the same uniqueness
// guarantees as the Postgres one.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/dmehra2102/order-admission/internal/order/application"
	"github.com/dmehra2102/order-admission/internal/order/domain"
)

type Event struct {
	Type        string
	AggregateID string
	Payload     []byte
	Headers     map[string]string
	Traceparent string
}

type Ledger struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	byKey  map[string]string
	events []Event
	fault  error
}

func NewLedger() *Ledger {
	return &Ledger{
		orders: make(map[string]domain.Order),
		byKey:  make(map[string]string),
	}
}

// SetFault makes Append fail with err, wrapped in ErrStorageFault, until
// cleared with nil.
func (l *Ledger) SetFault(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fault = err
}

func (l *Ledger) Append(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(application.ErrStorageFault, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fault != nil {
		return errors.Join(application.ErrStorageFault, l.fault)
	}
	if _, ok := l.orders[o.ID]; ok {
		return application.ErrDuplicateKey
	}
	if o.IdempotencyKey != "" {
		if _, ok := l.byKey[o.IdempotencyKey]; ok {
			return application.ErrIdempotencyConflict
		}
		l.byKey[o.IdempotencyKey] = o.ID
	}
	l.orders[o.ID] = o
	l.events = append(l.events, Event{
		Type:        eventType,
		AggregateID: o.ID,
		Payload:     payload,
		Headers:     headers,
		Traceparent: traceparent,
	})
	return nil
}

func (l *Ledger) FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byKey[key]
	if !ok {
		return domain.Order{}, application.ErrNotFound
	}
	return l.orders[id], nil
}

func (l *Ledger) Get(ctx context.Context, id string) (domain.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, application.ErrNotFound
	}
	return o, nil
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

// Events returns the outbox events written alongside orders.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
