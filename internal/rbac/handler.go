package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/skolar-erp/skolar/internal/audit"
	"github.com/skolar-erp/skolar/internal/platform/httpx"
	"github.com/skolar-erp/skolar/internal/shared"
)

// AuditWrapper times grant mutations and records the attempt, success or
// failure, on the application-level audit path.
type AuditWrapper interface {
	ExecuteWithAudit(ctx context.Context, op audit.Operation, fn func(context.Context) error) error
}

// Handler exposes role and grant administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	auditor  AuditWrapper
	validate *validator.Validate
}

// NewHandler constructs an RBAC handler.
func NewHandler(logger *slog.Logger, service *Service, auditor AuditWrapper) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		auditor:  auditor,
		validate: validator.New(),
	}
}

// MountRoutes attaches RBAC administration routes.
func (h *Handler) MountRoutes(r chi.Router, mw Middleware) {
	r.Route("/rbac", func(r chi.Router) {
		r.With(mw.RequirePermission(shared.ModuleRoles, shared.ActionRead)).
			Get("/roles", h.handleListRoles)
		r.With(mw.RequirePermission(shared.ModuleRoles, shared.ActionRead)).
			Get("/users/{userID}/permissions", h.handleResolvePermissions)
		r.With(mw.RequirePermission(shared.ModuleRoles, shared.ActionManage)).
			Post("/grants", h.handleGrant)
		r.With(mw.RequirePermission(shared.ModuleRoles, shared.ActionManage)).
			Delete("/grants", h.handleRevoke)
	})
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type roleResponse struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		IsSystem    bool   `json:"isSystem"`
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse{ID: role.ID, Name: role.Name, Description: role.Description, IsSystem: role.IsSystem})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleResolvePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	perms, err := h.service.ResolvePermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []EffectivePermission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

type grantRequest struct {
	UserID    int64  `json:"userId" validate:"required,gt=0"`
	RoleID    int64  `json:"roleId" validate:"required,gt=0"`
	SchoolID  int64  `json:"schoolId" validate:"gte=0"`
	ExpiresAt string `json:"expiresAt" validate:"omitempty"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var expiresAt time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiresAt must be RFC3339")
			return
		}
		expiresAt = t
	}

	info := shared.RequestInfoFromContext(r.Context())
	op := audit.Operation{
		Action:   audit.OpGrantRole,
		Resource: "user_roles",
		RecordID: strconv.FormatInt(req.UserID, 10),
	}
	err := h.auditor.ExecuteWithAudit(r.Context(), op, func(ctx context.Context) error {
		return h.service.GrantRole(ctx, GrantRoleParams{
			UserID:     req.UserID,
			RoleID:     req.RoleID,
			SchoolID:   req.SchoolID,
			AssignedBy: info.ActorID,
			ExpiresAt:  expiresAt,
		})
	})
	if err != nil {
		h.logger.Error("grant role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type revokeRequest struct {
	UserID   int64 `json:"userId" validate:"required,gt=0"`
	RoleID   int64 `json:"roleId" validate:"required,gt=0"`
	SchoolID int64 `json:"schoolId" validate:"gte=0"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	op := audit.Operation{
		Action:   audit.OpRevokeRole,
		Resource: "user_roles",
		RecordID: strconv.FormatInt(req.UserID, 10),
	}
	err := h.auditor.ExecuteWithAudit(r.Context(), op, func(ctx context.Context) error {
		return h.service.RevokeRole(ctx, req.UserID, req.RoleID, req.SchoolID)
	})
	if err != nil {
		h.logger.Error("revoke role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
