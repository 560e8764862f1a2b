package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-admission/internal/order/application"
	"github.com/dmehra2102/order-admission/internal/order/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type Admitter interface {
	Admit(ctx context.Context, req domain.AdmissionRequest) domain.Decision
	Order(ctx context.Context, id string) (domain.Order, error)
}

type Handler struct {
	log     *slog.Logger
	service Admitter
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service Admitter) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

type lineItemReq struct {
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type admitOrderReq struct {
	LineItems []lineItemReq `json:"line_items"`
}

type orderResp struct {
	OrderID   string            `json:"order_id"`
	LineItems []domain.LineItem `json:"line_items"`
	Total     decimal.Decimal   `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/orders", h.admitOrder)
	r.Get("/orders/{id}", h.getOrder)
	return r
}

func (h *Handler) admitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "AdmitOrder")
	defer span.End()

	var body admitOrderReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}

	req := domain.AdmissionRequest{
		LineItems:      make([]domain.LineItem, 0, len(body.LineItems)),
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	}
	for _, li := range body.LineItems {
		req.LineItems = append(req.LineItems, domain.LineItem(li))
	}

	d := h.service.Admit(ctx, req)
	switch d.Outcome {
	case domain.OutcomeAdmitted:
		code := http.StatusCreated
		if d.Replayed {
			code = http.StatusOK
		}
		w.Header().Set("Location", "/orders/"+d.OrderID)
		writeJSON(w, code, map[string]string{"order_id": d.OrderID})
	case domain.OutcomeRejected:
		writeJSON(w, http.StatusUnprocessableEntity, map[string][]string{"unavailable_skus": d.UnavailableSKUs})
	case domain.OutcomeInvalidRequest:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": d.Reason})
	default:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"reason": d.Reason})
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.Order(ctx, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, application.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	case err != nil:
		h.log.Error("get order failed", "order_id", chi.URLParam(r, "id"), "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "order ledger unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, orderResp{
		OrderID:   o.ID,
		LineItems: o.LineItems,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
