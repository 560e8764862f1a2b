package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-admission/internal/inventory/domain"
)

var (
	ErrTransientUnavailable = errors.New("stock ledger unavailable")
	ErrEmptyBatch           = errors.New("empty sku batch")
	ErrEmptySKU             = errors.New("empty sku")
)

const DefaultLedgerTimeout = time.Second

type Service struct {
	log     *slog.Logger
	ledger  StockLedger
	timeout time.Duration
	tracer  trace.Tracer
}

func NewService(log *slog.Logger, ledger StockLedger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultLedgerTimeout
	}
	return &Service{
		log:     log,
		ledger:  ledger,
		timeout: timeout,
		tracer:  otel.Tracer("inventory-service"),
	}
}

// CheckAvailability reports whether sku has a positive quantity. An unknown
// SKU is Unavailable, not an error.
func (s *Service) CheckAvailability(ctx context.Context, sku string) (domain.Availability, error) {
	if sku == "" {
		return domain.Unavailable, ErrEmptySKU
	}

	ctx, span := s.tracer.Start(ctx, "CheckAvailability", trace.WithAttributes(attribute.String("sku", sku)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, err := s.ledger.Get(ctx, sku)
	switch {
	case errors.Is(err, domain.ErrUnknownSKU):
		return domain.Unavailable, nil
	case err != nil:
		span.RecordError(err)
		return domain.Unavailable, fmt.Errorf("%w: %w", ErrTransientUnavailable, err)
	}
	return entry.Availability(), nil
}

// CheckAvailabilityBatch answers for every distinct SKU in skus with a single
// ledger round trip. The result has exactly one entry per distinct SKU. An
// empty SKU anywhere in the batch fails it, as it fails the single check.
func (s *Service) CheckAvailabilityBatch(ctx context.Context, skus []string) (map[string]domain.Availability, error) {
	for _, sku := range skus {
		if sku == "" {
			return nil, ErrEmptySKU
		}
	}
	unique := Distinct(skus)
	if len(unique) == 0 {
		return nil, ErrEmptyBatch
	}

	ctx, span := s.tracer.Start(ctx, "CheckAvailabilityBatch", trace.WithAttributes(attribute.Int("skus", len(unique))))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.ledger.GetMany(ctx, unique)
	if err != nil {
		span.RecordError(err)
		s.log.Warn("stock ledger batch read failed", "skus", len(unique), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrTransientUnavailable, err)
	}

	result := make(map[string]domain.Availability, len(unique))
	for _, sku := range unique {
		result[sku] = entries[sku].Availability()
	}
	return result, nil
}

// ApplyAdjustment applies a confirmed external stock change.
func (s *Service) ApplyAdjustment(ctx context.Context, adj domain.Adjustment) (domain.StockEntry, error) {
	if err := adj.Validate(); err != nil {
		return domain.StockEntry{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, err := s.ledger.Adjust(ctx, adj.SKU, adj.Delta)
	switch {
	case errors.Is(err, domain.ErrUnknownSKU), errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidAdjustment):
		return domain.StockEntry{}, err
	case err != nil:
		return domain.StockEntry{}, fmt.Errorf("%w: %w", ErrTransientUnavailable, err)
	}
	s.log.Info("stock adjusted", "sku", entry.SKU, "delta", adj.Delta, "quantity", entry.Quantity, "reason", adj.Reason)
	return entry, nil
}

// Distinct returns the non-empty SKUs of skus in first-seen order.
func Distinct(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}
