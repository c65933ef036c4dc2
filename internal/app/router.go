package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/importpro/importpro/internal/auth"
	"github.com/importpro/importpro/internal/catalog"
	"github.com/importpro/importpro/internal/clients"
	"github.com/importpro/importpro/internal/delivery"
	"github.com/importpro/importpro/internal/finance"
	"github.com/importpro/importpro/internal/groupage"
	"github.com/importpro/importpro/internal/observability"
	"github.com/importpro/importpro/internal/rbac"
	"github.com/importpro/importpro/internal/sales"
	"github.com/importpro/importpro/internal/shared"
	"github.com/importpro/importpro/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthHandler     *auth.Handler
	CatalogHandler  *catalog.Handler
	GroupageHandler *groupage.Handler
	ClientsHandler  *clients.Handler
	SalesHandler    *sales.Handler
	DeliveryHandler *delivery.Handler
	FinanceHandler  *finance.Handler
	JobHandler      *jobs.Handler
	RBACMiddleware  rbac.Middleware
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Import Pro defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.CatalogHandler.MountRoutes(r, params.RBACMiddleware)
		params.GroupageHandler.MountRoutes(r, params.RBACMiddleware)
		params.ClientsHandler.MountRoutes(r, params.RBACMiddleware)
		params.SalesHandler.MountRoutes(r, params.RBACMiddleware)
		params.DeliveryHandler.MountRoutes(r, params.RBACMiddleware)
		params.FinanceHandler.MountRoutes(r, params.RBACMiddleware)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
