package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dmehra2102/order-admission/internal/inventory/application"
	"github.com/dmehra2102/order-admission/internal/inventory/domain"
	"github.com/dmehra2102/order-admission/internal/inventory/infrastructure/memory"
)

func newService(entries ...domain.StockEntry) (*application.Service, *memory.Ledger) {
	ledger := memory.NewLedger(entries...)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewService(log, ledger, 50*time.Millisecond), ledger
}

func TestCheckAvailability(t *testing.T) {
	svc, _ := newService(
		domain.StockEntry{SKU: "X", Quantity: 5},
		domain.StockEntry{SKU: "empty", Quantity: 0},
	)
	ctx := context.Background()

	a, err := svc.CheckAvailability(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, domain.Available, a)

	a, err = svc.CheckAvailability(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, domain.Unavailable, a)

	a, err = svc.CheckAvailability(ctx, "unknown")
	require.NoError(t, err, "an unknown sku is a business outcome, not a fault")
	assert.Equal(t, domain.Unavailable, a)
}

func TestCheckAvailabilityBatch(t *testing.T) {
	svc, ledger := newService(domain.StockEntry{SKU: "X", Quantity: 5})

	res, err := svc.CheckAvailabilityBatch(context.Background(), []string{"X", "Y", "X"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Availability{"X": domain.Available, "Y": domain.Unavailable}, res)
	assert.Equal(t, 1, ledger.Reads(), "batch must be a single ledger round trip")
}

func TestCheckAvailabilityBatchEmpty(t *testing.T) {
	svc, ledger := newService()

	_, err := svc.CheckAvailabilityBatch(context.Background(), nil)
	assert.ErrorIs(t, err, application.ErrEmptyBatch)
	assert.Zero(t, ledger.Reads())
}

func TestEmptySKURejectedBySingleAndBatch(t *testing.T) {
	svc, ledger := newService(domain.StockEntry{SKU: "X", Quantity: 5})
	ctx := context.Background()

	_, err := svc.CheckAvailability(ctx, "")
	assert.ErrorIs(t, err, application.ErrEmptySKU)

	_, err = svc.CheckAvailabilityBatch(ctx, []string{""})
	assert.ErrorIs(t, err, application.ErrEmptySKU)

	_, err = svc.CheckAvailabilityBatch(ctx, []string{"X", ""})
	assert.ErrorIs(t, err, application.ErrEmptySKU)
	assert.Zero(t, ledger.Reads())
}

func TestCheckAvailabilityLedgerDown(t *testing.T) {
	svc, ledger := newService(domain.StockEntry{SKU: "X", Quantity: 5})
	ledger.SetFault(errors.New("connection refused"))

	_, err := svc.CheckAvailability(context.Background(), "X")
	assert.ErrorIs(t, err, application.ErrTransientUnavailable)

	_, err = svc.CheckAvailabilityBatch(context.Background(), []string{"X"})
	assert.ErrorIs(t, err, application.ErrTransientUnavailable)
}

func TestCheckAvailabilityBatchTimeout(t *testing.T) {
	svc, ledger := newService(domain.StockEntry{SKU: "X", Quantity: 5})
	ledger.SetDelay(time.Second)

	start := time.Now()
	_, err := svc.CheckAvailabilityBatch(context.Background(), []string{"X"})
	assert.ErrorIs(t, err, application.ErrTransientUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestApplyAdjustment(t *testing.T) {
	svc, ledger := newService(domain.StockEntry{SKU: "X", Quantity: 5})
	ctx := context.Background()

	e, err := svc.ApplyAdjustment(ctx, domain.Adjustment{SKU: "X", Delta: -5, Reason: "sold"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.Quantity)

	_, err = svc.ApplyAdjustment(ctx, domain.Adjustment{SKU: "X", Delta: -1})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = svc.ApplyAdjustment(ctx, domain.Adjustment{SKU: "Y", Delta: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownSKU)

	_, err = svc.ApplyAdjustment(ctx, domain.Adjustment{SKU: "X"})
	assert.ErrorIs(t, err, domain.ErrInvalidAdjustment)

	ledger.SetFault(errors.New("down"))
	_, err = svc.ApplyAdjustment(ctx, domain.Adjustment{SKU: "X", Delta: 1})
	assert.ErrorIs(t, err, application.ErrTransientUnavailable)
}

func TestApplyAdjustmentOutOfRangeIsNotTransient(t *testing.T) {
	svc, ledger := newService(domain.StockEntry{SKU: "X", Quantity: math.MaxInt64 - 1})
	ctx := context.Background()

	_, err := svc.ApplyAdjustment(ctx, domain.Adjustment{SKU: "X", Delta: 2})
	require.ErrorIs(t, err, domain.ErrInvalidAdjustment)
	assert.NotErrorIs(t, err, application.ErrTransientUnavailable)

	reads := ledger.Reads()
	_, err = svc.ApplyAdjustment(ctx, domain.Adjustment{SKU: "X", Delta: domain.MaxAdjustment + 1})
	require.ErrorIs(t, err, domain.ErrInvalidAdjustment)
	assert.Equal(t, reads, ledger.Reads())
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, application.Distinct([]string{"b", "", "a", "b"}))
	assert.Empty(t, application.Distinct(nil))
}

func TestBatchMatchesSingleChecks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		skuGen := rapid.SampledFrom([]string{"a", "b", "c", "d", "e", "f"})
		stock := rapid.MapOf(skuGen, rapid.Int64Range(0, 3)).Draw(t, "stock")
		query := rapid.SliceOfN(skuGen, 1, 10).Draw(t, "query")

		entries := make([]domain.StockEntry, 0, len(stock))
		for sku, qty := range stock {
			entries = append(entries, domain.StockEntry{SKU: sku, Quantity: qty})
		}
		svc, _ := newService(entries...)
		ctx := context.Background()

		batch, err := svc.CheckAvailabilityBatch(ctx, query)
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		if len(batch) != len(application.Distinct(query)) {
			t.Fatalf("batch has %d results for %d distinct skus", len(batch), len(application.Distinct(query)))
		}
		for _, sku := range query {
			single, err := svc.CheckAvailability(ctx, sku)
			if err != nil {
				t.Fatalf("single %s: %v", sku, err)
			}
			if batch[sku] != single {
				t.Fatalf("sku %s: batch %v, single %v", sku, batch[sku], single)
			}
		}
	})
}
