package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/skolar-erp/skolar/internal/platform/httpx"
	"github.com/skolar-erp/skolar/internal/shared"
)

// DenialRecorder logs authorization denials on the application-level audit
// path.
type DenialRecorder interface {
	LogSystemEvent(ctx context.Context, resource, description string, success bool)
}

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Service  *Service
	Recorder DenialRecorder
	Logger   *slog.Logger
}

type denialResponse struct {
	Title  string   `json:"title"`
	Status int      `json:"status"`
	Module string   `json:"module"`
	Action string   `json:"action"`
	Roles  []string `json:"roles"`
}

// RequirePermission ensures the current actor may perform (module, action) in
// the request's school scope. Denials are audited; store failures fail
// closed.
func (m Middleware) RequirePermission(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := shared.RequestInfoFromContext(r.Context())
			if info.ActorID == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			allowed, err := m.Service.HasPermission(r.Context(), info.ActorID, module, action, info.SchoolID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require permission", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			roles, rolesErr := m.Service.RoleNames(r.Context(), info.ActorID)
			if rolesErr != nil {
				roles = nil
			}
			if m.Recorder != nil {
				m.Recorder.LogSystemEvent(r.Context(), "authorization",
					fmt.Sprintf("ACCESS_DENIED: %s.%s", module, action), false)
			}
			if roles == nil {
				roles = []string{}
			}
			httpx.JSON(w, http.StatusForbidden, denialResponse{
				Title:  "Forbidden",
				Status: http.StatusForbidden,
				Module: module,
				Action: action,
				Roles:  roles,
			})
		})
	}
}

// RequireRole ensures the current actor holds at least one of the named
// roles.
func (m Middleware) RequireRole(roleNames ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := shared.RequestInfoFromContext(r.Context())
			if info.ActorID == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			ok, err := m.Service.HasRole(r.Context(), info.ActorID, roleNames...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require role", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
