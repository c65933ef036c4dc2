package groupage

import (
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

// Handler exposes groupage, product and purchase endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers groupage routes guarded by RBAC permissions.
func (h *Handler) MountRoutes(r chi.Router, mw rbac.Middleware) {
	r.Route("/groupages", func(r chi.Router) {
		r.With(mw.RequireAny(shared.PermGroupageView)).Get("/", h.handleList)
		r.With(mw.RequireAny(shared.PermGroupageView)).Get("/{id}", h.handleGet)
		r.With(mw.RequireAny(shared.PermGroupageCreate)).Post("/", h.handleCreate)
		r.With(mw.RequireAny(shared.PermGroupageEdit)).Patch("/{id}", h.handleUpdate)
		r.With(mw.RequireAny(shared.PermGroupageEdit)).Put("/{id}/status", h.handleStatus)
		r.With(mw.RequireAny(shared.PermGroupageDelete)).Delete("/{id}", h.handleDelete)
		r.With(mw.RequireAny(shared.PermGroupageEdit)).Post("/{id}/products", h.handleAddProduct)
	})
	r.Route("/products/{productID}", func(r chi.Router) {
		r.With(mw.RequireAny(shared.PermGroupageView)).Get("/", h.handleGetProduct)
		r.With(mw.RequireAny(shared.PermGroupageEdit)).Post("/options", h.handleAddOption)
		r.With(mw.RequireAny(shared.PermGroupageEdit)).Delete("/options/{optionID}", h.handleRemoveOption)
		r.With(mw.RequireAny(shared.PermGroupageEdit)).Put("/options/{optionID}/default", h.handleSetDefaultOption)
	})
	r.With(mw.RequireAny(shared.PermPurchaseCreate)).Post("/purchases", h.handleRecordPurchase)
}

// groupageView decorates a groupage with its computed profit for responses.
type groupageView struct {
	Groupage
	EstimatedProfit float64 `json:"estimated_profit"`
}

func newGroupageView(g Groupage) groupageView {
	return groupageView{Groupage: g, EstimatedProfit: g.EstimatedProfit()}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	groupages, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]groupageView, 0, len(groupages))
	for _, g := range groupages {
		views = append(views, newGroupageView(g))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groupages": views})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	g, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newGroupageView(*g))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	g, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateGroupageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	g, err := h.service.UpdateMeta(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

type statusRequest struct {
	Status Status `json:"status" validate:"required"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.UpdateStatus(r.Context(), id, req.Status); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var draft ProductDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	p, err := h.service.AddProduct(r.Context(), id, draft)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleAddOption(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var draft SellingOptionDraft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	p, err := h.service.AddOption(r.Context(), id, draft)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleRemoveOption(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	optionID, ok := pathID(w, r, "optionID")
	if !ok {
		return
	}
	p, err := h.service.RemoveOption(r.Context(), productID, optionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleSetDefaultOption(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	optionID, ok := pathID(w, r, "optionID")
	if !ok {
		return
	}
	p, err := h.service.SetDefaultOption(r.Context(), productID, optionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req RecordPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.RecordPurchase(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidDraft), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrLastOption):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("groupage handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}
