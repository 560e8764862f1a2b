package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/order-admission/internal/order/application"
	"github.com/dmehra2102/order-admission/internal/order/domain"
)

type stubAdmitter struct {
	decision domain.Decision
	got      domain.AdmissionRequest
	orders   map[string]domain.Order
	orderErr error
}

func (s *stubAdmitter) Admit(_ context.Context, req domain.AdmissionRequest) domain.Decision {
	s.got = req
	return s.decision
}

func (s *stubAdmitter) Order(_ context.Context, id string) (domain.Order, error) {
	if s.orderErr != nil {
		return domain.Order{}, s.orderErr
	}
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, application.ErrNotFound
	}
	return o, nil
}

func serve(t *testing.T, a Admitter, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), a)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const validBody = `{"line_items":[{"sku":"X","quantity":2,"unit_price":"9.99"},{"sku":"Y","quantity":1,"unit_price":"1"}]}`

func TestAdmitOrderCreated(t *testing.T) {
	a := &stubAdmitter{decision: domain.Admitted("o-1")}
	rec := serve(t, a, http.MethodPost, "/orders", validBody, map[string]string{IdempotencyKeyHeader: "k-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "o-1", decode(t, rec)["order_id"])
	assert.Equal(t, "/orders/o-1", rec.Header().Get("Location"))

	assert.Equal(t, "k-1", a.got.IdempotencyKey)
	require.Len(t, a.got.LineItems, 2)
	assert.Equal(t, "X", a.got.LineItems[0].SKU)
	assert.Equal(t, 2, a.got.LineItems[0].Quantity)
	assert.True(t, decimal.RequireFromString("9.99").Equal(a.got.LineItems[0].UnitPrice))
}

func TestAdmitOrderReplayed(t *testing.T) {
	rec := serve(t, &stubAdmitter{decision: domain.Replayed("o-1")}, http.MethodPost, "/orders", validBody, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o-1", decode(t, rec)["order_id"])
}

func TestAdmitOrderRejected(t *testing.T) {
	rec := serve(t, &stubAdmitter{decision: domain.Rejected([]string{"Y"})}, http.MethodPost, "/orders", validBody, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []any{"Y"}, decode(t, rec)["unavailable_skus"])
}

func TestAdmitOrderInvalid(t *testing.T) {
	rec := serve(t, &stubAdmitter{decision: domain.InvalidRequest("no line items")}, http.MethodPost, "/orders", `{"line_items":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no line items", decode(t, rec)["error"])
}

func TestAdmitOrderMalformedBody(t *testing.T) {
	a := &stubAdmitter{}
	for _, body := range []string{`{`, `{"items":[]}`, `{"line_items":[{"sku":"X","quantity":"two"}]}`} {
		rec := serve(t, a, http.MethodPost, "/orders", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, a.got.LineItems)
}

func TestAdmitOrderIndeterminate(t *testing.T) {
	rec := serve(t, &stubAdmitter{decision: domain.Indeterminate("inventory authority unavailable")}, http.MethodPost, "/orders", validBody, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "inventory authority unavailable", decode(t, rec)["reason"])
}

func TestGetOrder(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &stubAdmitter{orders: map[string]domain.Order{
		"o-1": {
			ID:        "o-1",
			LineItems: []domain.LineItem{{SKU: "X", Quantity: 2, UnitPrice: decimal.RequireFromString("1.5")}},
			Total:     decimal.RequireFromString("3"),
			CreatedAt: created,
		},
	}}

	rec := serve(t, a, http.MethodGet, "/orders/o-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "o-1", body["order_id"])
	assert.Equal(t, "3", body["total"])
	assert.Len(t, body["line_items"], 1)

	rec = serve(t, a, http.MethodGet, "/orders/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderLedgerDown(t *testing.T) {
	rec := serve(t, &stubAdmitter{orderErr: application.ErrStorageFault}, http.MethodGet, "/orders/o-1", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := serve(t, &stubAdmitter{}, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
