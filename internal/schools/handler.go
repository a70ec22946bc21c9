package schools

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/skolar-erp/skolar/internal/platform/httpx"
	"github.com/skolar-erp/skolar/internal/shared"
)

// Authorizer gates routes on a permission.
type Authorizer interface {
	RequirePermission(module, action string) func(http.Handler) http.Handler
}

// Handler exposes school CRUD. It exists as the reference consumer of the
// storage-level audit path; the wider CRUD surface follows the same shape.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	validate *validator.Validate
}

// NewHandler constructs a schools handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes attaches school routes.
func (h *Handler) MountRoutes(r chi.Router, authz Authorizer) {
	r.Route("/schools", func(r chi.Router) {
		r.With(authz.RequirePermission(shared.ModuleSchools, shared.ActionRead)).
			Get("/", h.handleList)
		r.With(authz.RequirePermission(shared.ModuleSchools, shared.ActionCreate)).
			Post("/", h.handleCreate)
		r.With(authz.RequirePermission(shared.ModuleSchools, shared.ActionUpdate)).
			Put("/{schoolID}", h.handleUpdate)
		r.With(authz.RequirePermission(shared.ModuleSchools, shared.ActionDelete)).
			Delete("/{schoolID}", h.handleDelete)
	})
}

type schoolRequest struct {
	Name         string `json:"name" validate:"required"`
	Code         string `json:"code" validate:"required,alphanum"`
	Address      string `json:"address"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone string `json:"contactPhone"`
	IsActive     *bool  `json:"isActive"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	schools, err := h.repo.ListSchools(r.Context())
	if err != nil {
		h.logger.Error("list schools", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if schools == nil {
		schools = []School{}
	}
	httpx.JSON(w, http.StatusOK, schools)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.repo.CreateSchool(r.Context(), School{
		Name:         req.Name,
		Code:         req.Code,
		Address:      req.Address,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		if err == ErrDuplicateCode {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("create school", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "schoolID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid school id")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	updated, err := h.repo.UpdateSchool(r.Context(), School{
		ID:           id,
		Name:         req.Name,
		Code:         req.Code,
		Address:      req.Address,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		IsActive:     active,
	})
	if err != nil {
		h.logger.Error("update school", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "schoolID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid school id")
		return
	}
	if err := h.repo.DeleteSchool(r.Context(), id); err != nil {
		h.logger.Error("delete school", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (schoolRequest, bool) {
	var req schoolRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}
