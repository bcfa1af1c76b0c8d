package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-recon/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

const (
	// IdempotencyHeader carries the client key that deduplicates batch updates.
	IdempotencyHeader = "Idempotency-Key"
	// ActorHeader names the operator recorded in the audit trail.
	ActorHeader = "X-Actor"
)

const batchIdempotencyModule = "reconciliation.batch"

// IdempotencyGuard records processed request keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes the reconciliation service over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	idem      IdempotencyGuard
	validator *validator.Validate
}

// NewHandler builds Handler instance. idem may be nil to disable
// Idempotency-Key handling.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyGuard) *Handler {
	return &Handler{logger: logger, service: service, idem: idem, validator: validator.New()}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(requester)
		r.Get("/details", h.getOrderDetails)
		r.Get("/summary", h.getFinanceSummary)
		r.Get("/filter-options", h.getFilterOptions)
		r.Post("/", h.createOrder)
		r.Post("/payments/batch", h.batchUpdatePayments)
		r.Delete("/{id}", h.deleteOrder)
		r.Get("/{id}/payments", h.getPaymentHistory)
		r.Post("/{id}/confirm-payment", h.confirmFullPayment)
		r.Post("/{id}/payment", h.updatePayment)
	})
}

// requester stamps the context with the caller so mutations can audit it.
func requester(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.ContextWithRequester(r.Context(), shared.Requester{
			Actor:     r.Header.Get(ActorHeader),
			RequestID: middleware.GetReqID(r.Context()),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) getOrderDetails(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		h.fail(w, r, "get order details", err)
		return
	}
	page, err := h.service.GetOrderDetails(r.Context(), criteria)
	if err != nil {
		h.fail(w, r, "get order details", err)
		return
	}
	h.respond(w, Succeeded("order details loaded", len(page.Items), page))
}

func (h *Handler) getFinanceSummary(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		h.fail(w, r, "get finance summary", err)
		return
	}
	summary, err := h.service.GetFinanceSummary(r.Context(), criteria)
	if err != nil {
		h.fail(w, r, "get finance summary", err)
		return
	}
	h.respond(w, Succeeded("finance summary loaded", 0, summary))
}

func (h *Handler) getFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.GetFilterOptions(r.Context())
	if err != nil {
		h.fail(w, r, "get filter options", err)
		return
	}
	h.respond(w, Succeeded("filter options loaded", 0, opts))
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "create order", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.fail(w, r, "create order", err)
		return
	}
	order, items, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.fail(w, r, "create order", err)
		return
	}
	h.respond(w, Succeeded("order "+order.OrderNumber+" created", 1, newOrderResponse(order, items)))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.fail(w, r, "delete order", err)
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.fail(w, r, "delete order", err)
		return
	}
	h.respond(w, Succeeded("order deleted", 1, nil))
}

func (h *Handler) getPaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.fail(w, r, "get payment history", err)
		return
	}
	history, err := h.service.GetPaymentHistory(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get payment history", err)
		return
	}
	h.respond(w, Succeeded("payment history loaded", len(history), history))
}

func (h *Handler) confirmFullPayment(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.fail(w, r, "confirm full payment", err)
		return
	}
	var req confirmPaymentRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			h.fail(w, r, "confirm full payment", err)
			return
		}
	}
	var date time.Time
	if req.PaymentDate != nil {
		if date, err = time.Parse(dayLayout, *req.PaymentDate); err != nil {
			h.fail(w, r, "confirm full payment", fmt.Errorf("%w: paymentDate: %v", shared.ErrValidation, err))
			return
		}
	}
	rec, err := h.service.ConfirmFullPayment(r.Context(), id, date)
	if err != nil {
		h.fail(w, r, "confirm full payment", err)
		return
	}
	h.respond(w, Succeeded("payment confirmed", 1, rec))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.fail(w, r, "update payment", err)
		return
	}
	var req paymentUpdateRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "update payment", err)
		return
	}
	update, err := req.toUpdate(id)
	if err != nil {
		h.fail(w, r, "update payment", err)
		return
	}
	rec, err := h.service.UpdatePaymentInfo(r.Context(), update)
	if err != nil {
		h.fail(w, r, "update payment", err)
		return
	}
	h.respond(w, Succeeded("payment updated", 1, rec))
}

func (h *Handler) batchUpdatePayments(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "batch update payments", err)
		return
	}
	updates := make([]PaymentUpdate, 0, len(req.Items))
	for i, item := range req.Items {
		u, err := item.toUpdate(item.OrderID)
		if err != nil {
			h.fail(w, r, "batch update payments", fmt.Errorf("item %d: %w", i, err))
			return
		}
		updates = append(updates, u)
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, batchIdempotencyModule); err != nil {
			h.fail(w, r, "batch update payments", err)
			return
		}
	}

	res := h.service.BatchUpdatePaymentInfo(r.Context(), updates)
	if key != "" && h.idem != nil && res.AffectedCount == 0 && len(res.Errors) > 0 {
		if err := h.idem.Delete(r.Context(), key); err != nil {
			h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}
	h.respond(w, BatchOperationResult(res))
}

func (h *Handler) decode(r *http.Request, dest any) error {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", shared.ErrValidation, err)
	}
	if err := h.validator.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %s", shared.ErrValidation, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, result OperationResult) {
	httpx.JSON(w, result.Status.HTTPStatus(), result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	result := Failed(err)
	if result.Status == ClassInternalError {
		h.logger.Error(operation,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
	}
	h.respond(w, result)
}

func orderIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid order id", shared.ErrValidation)
	}
	return id, nil
}
