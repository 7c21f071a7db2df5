package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/rbac"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs the products handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		rbac:     rbacMW,
	}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermProductView))
		r.Get("/products", h.handleList)
		r.Get("/products/{id}", h.handleGet)
		r.Get("/products/{id}/variants", h.handleListVariants)
		r.Get("/products/low-stock", h.handleLowStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermProductManage))
		r.Post("/products", h.handleCreate)
		r.Post("/products/{id}/variants", h.handleCreateVariant)
		r.Put("/products/{id}", h.handleUpdate)
		r.Delete("/products/{id}", h.handleDelete)
	})
}

type productRequest struct {
	Code           string  `json:"code" validate:"required,min=2,max=50"`
	Name           string  `json:"name" validate:"required,min=2,max=150"`
	Price          float64 `json:"price" validate:"required,gt=0"`
	Cost           float64 `json:"cost" validate:"min=0"`
	StockQty       int64   `json:"stock_qty" validate:"min=0"`
	AlertThreshold int64   `json:"alert_threshold" validate:"min=0"`
}

type variantRequest struct {
	Name           string  `json:"name" validate:"required,min=1,max=150"`
	SKU            string  `json:"sku" validate:"required,min=2,max=64"`
	Price          float64 `json:"price" validate:"required,gt=0"`
	Cost           float64 `json:"cost" validate:"min=0"`
	StockQty       int64   `json:"stock_qty" validate:"min=0"`
	AlertThreshold int64   `json:"alert_threshold" validate:"min=0"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{}
	q := r.URL.Query()
	filters.Search = q.Get("search")
	if v := q.Get("active"); v != "" {
		active := v == "true"
		filters.IsActive = &active
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Limit = n
		}
	}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		filters.OutletID = actor.OutletID
	}

	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "total": total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleListVariants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	variants, err := h.service.ListVariants(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": variants})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	var outletID int64
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		outletID = actor.OutletID
	}
	items, err := h.service.ListLowStock(r.Context(), outletID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.Create(r.Context(), Product{
		Code:           req.Code,
		Name:           req.Name,
		Price:          req.Price,
		Cost:           req.Cost,
		StockQty:       req.StockQty,
		AlertThreshold: req.AlertThreshold,
		IsActive:       true,
		OutletID:       actor.OutletID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req variantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	variant, err := h.service.CreateVariant(r.Context(), Variant{
		ProductID:      productID,
		Name:           req.Name,
		SKU:            req.SKU,
		Price:          req.Price,
		Cost:           req.Cost,
		StockQty:       req.StockQty,
		AlertThreshold: req.AlertThreshold,
		IsActive:       true,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, variant)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.Update(r.Context(), id, Product{
		Code:           req.Code,
		Name:           req.Name,
		Price:          req.Price,
		Cost:           req.Cost,
		AlertThreshold: req.AlertThreshold,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error("products request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
