package delivery

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/importpro/importpro/internal/observability"
	"github.com/importpro/importpro/internal/platform/httpx"
	"github.com/importpro/importpro/internal/rbac"
	"github.com/importpro/importpro/internal/shared"
)

// Handler exposes the dispatch endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers delivery routes guarded by RBAC permissions.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Route("/deliveries", func(r chi.Router) {
		r.With(mw.RequireAny(shared.PermDeliveryView)).Get("/pending", h.handlePending)
		r.With(mw.RequireAny(shared.PermDeliveryView)).Get("/history", h.handleHistory)
		r.With(mw.RequireAny(shared.PermDeliveryView)).Get("/{id}/slip", h.handleSlip)
		r.With(mw.RequireAny(shared.PermDeliveryProcess)).Post("/{id}/process", h.handleProcess)
	})
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.service.ListPending(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.service.ListHistory(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}

func (h *Handler) handleSlip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	slip, err := h.service.Slip(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req ProcessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	req.OrderID = id
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	d, err := h.service.Process(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.metrics.DeliveryProcessed()
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDriverRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotDeliverable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("delivery handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
