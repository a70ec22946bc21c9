package audithttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skolar-erp/skolar/internal/shared"
)

// Authorizer gates routes on a permission.
type Authorizer interface {
	RequirePermission(module, action string) func(http.Handler) http.Handler
}

// MountRoutes attaches the audit read surface under the given router.
func (h *Handler) MountRoutes(r chi.Router, authz Authorizer) {
	r.Route("/audit", func(r chi.Router) {
		r.With(authz.RequirePermission(shared.ModuleAudit, shared.ActionRead)).
			Get("/", h.handleList)
		r.With(authz.RequirePermission(shared.ModuleAudit, shared.ActionExport)).
			Get("/export", h.handleExport)
	})
}
