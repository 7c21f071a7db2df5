package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/rbac"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermStockView))
		r.Get("/stock-movements", h.handleList)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermStockAdjust))
		r.Post("/stock-adjustments", h.handleAdjustment)
	})
}

type adjustmentRequest struct {
	Type      string `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	ProductID int64  `json:"product_id" validate:"min=0"`
	VariantID int64  `json:"variant_id" validate:"min=0"`
	Quantity  int64  `json:"quantity"`
	Note      string `json:"note" validate:"max=255"`
	RefKey    string `json:"ref_key" validate:"max=100"`
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := MovementInput{
		Type:     MovementType(req.Type),
		Quantity: req.Quantity,
		ActorID:  actor.UserID,
		OutletID: actor.OutletID,
		Note:     req.Note,
		RefKey:   req.RefKey,
	}
	if req.VariantID > 0 {
		input.Target = VariantTarget(req.VariantID)
	} else if req.ProductID > 0 {
		input.Target = ProductTarget(req.ProductID)
	}

	movement, err := h.service.CreateMovement(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{}
	q := r.URL.Query()
	if v := q.Get("product_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			t := ProductTarget(id)
			filter.Target = &t
		}
	}
	if v := q.Get("variant_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			t := VariantTarget(id)
			filter.Target = &t
		}
	}
	if v := q.Get("transaction_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.TransactionID = id
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
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		filter.OutletID = actor.OutletID
	}

	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": movements})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStockHolderNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNegativeStock):
		httpx.RespondError(w, httpx.ErrInsufficientStock)
	case errors.Is(err, ErrInvalidQuantity) || errors.Is(err, ErrInvalidType) || errors.Is(err, ErrInvalidTarget):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, httpx.ErrDuplicate)
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
