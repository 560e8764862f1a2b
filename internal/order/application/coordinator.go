package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-admission/internal/order/domain"
	"github.com/dmehra2102/order-admission/pkg/tracing"
)

const (
	DefaultCheckTimeout  = 2 * time.Second
	DefaultCommitTimeout = 3 * time.Second
)

// Coordinator runs the admission protocol: validate, check availability once
// for every SKU, decide, and append the order only when admitted.
type Coordinator struct {
	log           *slog.Logger
	ledger        OrderLedger
	inv           InventoryClient
	checkTimeout  time.Duration
	commitTimeout time.Duration
	tracer        trace.Tracer
}

type Option func(*Coordinator)

func WithCheckTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.checkTimeout = d
		}
	}
}

func WithCommitTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.commitTimeout = d
		}
	}
}

func NewCoordinator(log *slog.Logger, ledger OrderLedger, inv InventoryClient, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:           log,
		ledger:        ledger,
		inv:           inv,
		checkTimeout:  DefaultCheckTimeout,
		commitTimeout: DefaultCommitTimeout,
		tracer:        otel.Tracer("order-admission"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Admit always returns one of the four terminal decisions. Faults below the
// coordinator never surface as Admitted or Rejected.
func (c *Coordinator) Admit(ctx context.Context, req domain.AdmissionRequest) domain.Decision {
	ctx, span := c.tracer.Start(ctx, "Admit", trace.WithAttributes(attribute.Int("line_items", len(req.LineItems))))
	defer span.End()

	d := c.admit(ctx, req)
	span.SetAttributes(attribute.String("outcome", d.Outcome.String()))
	if d.Outcome == domain.OutcomeIndeterminate {
		span.SetStatus(codes.Error, d.Reason)
	}
	return d
}

func (c *Coordinator) admit(ctx context.Context, req domain.AdmissionRequest) domain.Decision {
	if err := req.Validate(); err != nil {
		return domain.InvalidRequest(err.Error())
	}

	if req.IdempotencyKey != "" {
		prior, err := c.lookup(ctx, req.IdempotencyKey)
		switch {
		case err == nil:
			c.log.Info("admission replayed", "order_id", prior.ID, "idempotency_key", req.IdempotencyKey)
			return domain.Replayed(prior.ID)
		case !errors.Is(err, ErrNotFound):
			c.log.Warn("idempotency lookup failed", "idempotency_key", req.IdempotencyKey, "err", err)
			return domain.Indeterminate("order ledger unavailable")
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.Indeterminate("request cancelled before availability check")
	}

	skus := req.SKUs()
	unavailable, err := c.check(ctx, skus)
	if err != nil {
		c.log.Warn("availability check failed", "skus", len(skus), "err", err)
		return domain.Indeterminate("inventory authority unavailable")
	}
	if len(unavailable) > 0 {
		c.log.Info("admission rejected", "unavailable_skus", unavailable)
		return domain.Rejected(unavailable)
	}

	return c.commit(ctx, req)
}

// lookup reads a prior order for key under the ledger timeout.
func (c *Coordinator) lookup(ctx context.Context, key string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, c.commitTimeout)
	defer cancel()
	return c.ledger.FindByIdempotencyKey(ctx, key)
}

// check returns the unavailable SKUs in request order. A response missing any
// requested SKU is treated as a failed check.
func (c *Coordinator) check(ctx context.Context, skus []string) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "CheckAvailability", trace.WithAttributes(attribute.Int("skus", len(skus))))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	avail, err := c.inv.CheckAvailabilityBatch(ctx, skus)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var unavailable []string
	for _, sku := range skus {
		ok, present := avail[sku]
		if !present {
			return nil, errors.Join(ErrTransientUnavailable, errors.New("incomplete availability response for sku "+sku))
		}
		if !ok {
			unavailable = append(unavailable, sku)
		}
	}
	return unavailable, nil
}

// commit is detached from caller cancellation: once the decision is final the
// single ledger transaction either lands or it does not.
func (c *Coordinator) commit(ctx context.Context, req domain.AdmissionRequest) domain.Decision {
	o := domain.NewOrder(req)
	payload, err := json.Marshal(domain.NewOrderAdmitted(o))
	if err != nil {
		c.log.Error("encode order event", "order_id", o.ID, "err", err)
		return domain.Indeterminate("order event encoding failed")
	}

	ctx, span := c.tracer.Start(ctx, "Commit", trace.WithAttributes(attribute.String("order_id", o.ID)))
	defer span.End()

	traceparent := tracing.Traceparent(ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()

	headers := map[string]string{"source": "order-service"}
	err = c.ledger.Append(ctx, o, domain.EventOrderAdmitted, payload, headers, traceparent)
	switch {
	case err == nil:
		c.log.Info("order admitted", "order_id", o.ID, "line_items", len(o.LineItems), "total", o.Total.String())
		return domain.Admitted(o.ID)
	case errors.Is(err, ErrIdempotencyConflict):
		prior, ferr := c.ledger.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if ferr != nil {
			c.log.Warn("re-read after idempotency conflict failed", "idempotency_key", req.IdempotencyKey, "err", ferr)
			return domain.Indeterminate("order ledger unavailable")
		}
		c.log.Info("admission replayed after concurrent attempt", "order_id", prior.ID, "idempotency_key", req.IdempotencyKey)
		return domain.Replayed(prior.ID)
	case errors.Is(err, ErrDuplicateKey):
		c.log.Error("order id collision", "order_id", o.ID, "err", err)
		return domain.Indeterminate("order id collision")
	default:
		c.log.Warn("order ledger append failed", "order_id", o.ID, "err", err)
		return domain.Indeterminate("order ledger write not confirmed")
	}
}

func (c *Coordinator) Order(ctx context.Context, id string) (domain.Order, error) {
	return c.ledger.Get(ctx, id)
}
