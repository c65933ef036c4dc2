package finance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/importpro/importpro/internal/platform/httpx"
	"github.com/importpro/importpro/internal/rbac"
	"github.com/importpro/importpro/internal/shared"
)

// Warmer triggers an asynchronous summary rebuild.
type Warmer func(ctx context.Context, reason string) error

// Handler exposes the finance read model. All routes sit behind the
// finance capability, which only ADMIN carries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	warmer    Warmer
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. warmer may be nil when no job
// queue is available.
func NewHandler(logger *slog.Logger, service *Service, warmer Warmer) *Handler {
	return &Handler{logger: logger, service: service, warmer: warmer, validator: validator.New()}
}

// MountRoutes registers finance routes guarded by RBAC permissions.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Route("/finance", func(r chi.Router) {
		r.Use(mw.RequireAny(shared.PermFinanceView))
		r.Get("/summary", h.handleSummary)
		r.Post("/summary/refresh", h.handleRefresh)
		r.Get("/ledger", h.handleLedger)
		r.Post("/ledger", h.handleAppend)
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.warmer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue not configured")
		return
	}
	if err := h.warmer(r.Context(), "manual"); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	filter := LedgerFilter{
		Type:     EntryType(q.Get("type")),
		Category: Category(q.Get("category")),
	}

	entries, total, err := h.service.ListLedger(r.Context(), filter, page)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total, "page": page})
}

type appendRequest struct {
	Type        EntryType `json:"type" validate:"required"`
	Category    Category  `json:"category" validate:"required"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Description string    `json:"description" validate:"required"`
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.AppendEntry(r.Context(), Entry{
		Type:        req.Type,
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidEntry):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("finance handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
