package combo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/rbac"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler wires HTTP endpoints for combos.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	cache    *AvailabilityCache
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the combo handler. cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, cache *AvailabilityCache, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		cache:    cache,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

// MountRoutes registers combo routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermComboView))
		r.Get("/combos", h.handleList)
		r.Get("/combos/{id}", h.handleGet)
		r.Get("/combos/{id}/availability", h.handleAvailability)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermComboManage))
		r.Post("/combos", h.handleCreate)
		r.Patch("/combos/{id}/active", h.handleSetActive)
	})
}

type comboItemRequest struct {
	ProductID int64 `json:"product_id" validate:"min=0"`
	VariantID int64 `json:"variant_id" validate:"min=0"`
	Qty       int64 `json:"qty" validate:"required,min=1"`
}

type createComboRequest struct {
	Name  string             `json:"name" validate:"required,min=2,max=150"`
	Price float64            `json:"price" validate:"required,gt=0"`
	Items []comboItemRequest `json:"items" validate:"required,min=1,dive"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createComboRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{Name: req.Name, Price: req.Price, OutletID: actor.OutletID}
	for _, item := range req.Items {
		ii := ItemInput{Qty: item.Qty}
		if item.VariantID > 0 {
			ii.Target = ledger.VariantTarget(item.VariantID)
		} else if item.ProductID > 0 {
			ii.Target = ledger.ProductTarget(item.ProductID)
		}
		input.Items = append(input.Items, ii)
	}
	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var outletID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		outletID = actor.OutletID
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	combos, err := h.service.List(r.Context(), outletID, activeOnly)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": combos})
}

// handleAvailability reports how many units of a combo can currently be sold.
// The value is served from the cache when fresh; the sale path always
// recomputes against live stock, so a stale read here only affects display.
func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	qty, err := h.cache.MaxQuantity(r.Context(), id, func(ctx context.Context) (int64, error) {
		return h.service.MaxQuantity(ctx, id)
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"combo_id": id, "max_quantity": qty})
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetActive(r.Context(), id, *req.Active); err != nil {
		h.respondError(w, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.Invalidate(r.Context(), id)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "active": *req.Active})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "combo id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrValidation) || errors.Is(err, ErrDuplicateItem):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("combo request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
