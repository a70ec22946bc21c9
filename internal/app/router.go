package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/skolar-erp/skolar/internal/audit/http"
	"github.com/skolar-erp/skolar/internal/auth"
	"github.com/skolar-erp/skolar/internal/observability"
	"github.com/skolar-erp/skolar/internal/rbac"
	"github.com/skolar-erp/skolar/internal/schools"
	"github.com/skolar-erp/skolar/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Identity       Identity
	AuthHandler    *auth.Handler
	RBACHandler    *rbac.Handler
	RBACMiddleware rbac.Middleware
	AuditHandler   *audithttp.Handler
	SchoolsHandler *schools.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Skolar defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Identity:       params.Identity,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		if params.RBACHandler != nil {
			params.RBACHandler.MountRoutes(r, params.RBACMiddleware)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r, params.RBACMiddleware)
		}
		if params.SchoolsHandler != nil {
			params.SchoolsHandler.MountRoutes(r, params.RBACMiddleware)
		}
	})

	return r
}
