package sales

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/rbac"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler wires HTTP endpoints for the sales module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermSaleView))
		r.Get("/transactions", h.handleList)
		r.Get("/transactions/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSaleCreate))
		r.Post("/transactions", h.handleCreate)
		r.Post("/transactions/{id}/complete", h.handleComplete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSaleVoid))
		r.Post("/transactions/{id}/void", h.handleVoid)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSaleRefund))
		r.Post("/transactions/{id}/refund", h.handleRefund)
	})
}

type createLineRequest struct {
	Type           string  `json:"type" validate:"required,oneof=PRODUCT COMBO"`
	ProductID      int64   `json:"product_id" validate:"min=0"`
	VariantID      int64   `json:"variant_id" validate:"min=0"`
	ComboID        int64   `json:"combo_id" validate:"min=0"`
	Quantity       int64   `json:"quantity" validate:"required,min=1"`
	DiscountAmount float64 `json:"discount_amount" validate:"min=0"`
	TaxAmount      float64 `json:"tax_amount" validate:"min=0"`
}

type createTransactionRequest struct {
	UUID                string              `json:"uuid" validate:"omitempty,uuid4"`
	CustomerID          int64               `json:"customer_id" validate:"min=0"`
	DiscountAmount      float64             `json:"discount_amount" validate:"min=0"`
	TaxAmount           float64             `json:"tax_amount" validate:"min=0"`
	ServiceChargeAmount float64             `json:"service_charge_amount" validate:"min=0"`
	PaidAmount          float64             `json:"paid_amount" validate:"min=0"`
	Lines               []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

type paymentRequest struct {
	PaidAmount float64 `json:"paid_amount" validate:"required,gt=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateInput{
		UUID:                req.UUID,
		CashierID:           actor.UserID,
		CustomerID:          req.CustomerID,
		OutletID:            actor.OutletID,
		DiscountAmount:      req.DiscountAmount,
		TaxAmount:           req.TaxAmount,
		ServiceChargeAmount: req.ServiceChargeAmount,
		PaidAmount:          req.PaidAmount,
	}
	for _, line := range req.Lines {
		li := LineInput{
			Type:           ItemType(line.Type),
			ComboID:        line.ComboID,
			Quantity:       line.Quantity,
			DiscountAmount: line.DiscountAmount,
			TaxAmount:      line.TaxAmount,
		}
		if line.VariantID > 0 {
			li.Target = ledger.VariantTarget(line.VariantID)
		} else if line.ProductID > 0 {
			li.Target = ledger.ProductTarget(line.ProductID)
		}
		input.Lines = append(input.Lines, li)
	}

	txn, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	txn, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		filter.Status = Status(v)
	}
	if v := q.Get("cashier_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.CashierID = id
		}
	}
	if v := q.Get("from"); v != "" {
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = ts
		}
	}
	if v := q.Get("to"); v != "" {
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = ts.Add(24 * time.Hour)
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		filter.OutletID = actor.OutletID
	}

	txns, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": txns, "total": total})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	txn, err := h.service.Complete(r.Context(), id, req.PaidAmount, actor.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	h.handleReversal(w, r, h.service.Void)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	h.handleReversal(w, r, h.service.Refund)
}

func (h *Handler) handleReversal(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, string, int64) (Transaction, error)) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "transaction id must be numeric")
		return
	}
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	txn, err := fn(r.Context(), id, req.Reason, actor.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txn)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidState):
		httpx.RespondError(w, httpx.ErrInvalidState)
	case errors.Is(err, ErrInsufficientStock):
		httpx.RespondError(w, httpx.ErrInsufficientStock)
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvoiceSequenceExhausted):
		httpx.Problem(w, http.StatusConflict, "Invoice Sequence Exhausted", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, httpx.ErrDuplicate)
	default:
		h.logger.Error("sales request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
