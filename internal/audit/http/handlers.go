package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/skolar-erp/skolar/internal/audit"
	"github.com/skolar-erp/skolar/internal/platform/httpx"
)

// QueryService defines the business contract for audit reads.
type QueryService interface {
	List(ctx context.Context, f audit.Filters) (audit.Result, error)
	Export(ctx context.Context, f audit.Filters) ([]audit.Entry, error)
}

// AccessRecorder notes bulk reads on the application-level audit path.
type AccessRecorder interface {
	LogDataAccess(ctx context.Context, resource, recordID, description string)
}

// Handler serves the audit log read surface.
type Handler struct {
	logger   *slog.Logger
	service  QueryService
	recorder AccessRecorder
}

// NewHandler constructs an audit handler.
func NewHandler(logger *slog.Logger, service QueryService, recorder AccessRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, recorder: recorder}
}

type listResponse struct {
	Entries []audit.Entry `json:"entries"`
	Page    int           `json:"page"`
	Size    int           `json:"pageSize"`
	HasNext bool          `json:"hasNext"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list audit entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	entries := result.Entries
	if entries == nil {
		entries = []audit.Entry{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Entries: entries,
		Page:    result.Paging.Page,
		Size:    result.Paging.PageSize,
		HasNext: result.Paging.HasNext,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	entries, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if h.recorder != nil {
		h.recorder.LogDataAccess(r.Context(), "audit_logs", "",
			"exported "+strconv.Itoa(len(entries))+" audit entries as "+formatName(format))
	}

	switch format {
	case "csv":
		data, err := audit.WriteCSV(entries)
		if err != nil {
			h.logger.Error("render audit csv", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit_log.csv"`)
		_, _ = w.Write(data)
	default:
		data, err := audit.WriteJSON(entries)
		if err != nil {
			h.logger.Error("render audit json", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}
}

func parseFilters(r *http.Request) audit.Filters {
	q := r.URL.Query()
	filters := audit.Filters{
		Action:   q.Get("action"),
		Resource: q.Get("resource"),
		Search:   q.Get("q"),
	}
	// "module" is an alias accepted for reporting tools; resource wins when
	// both are present.
	if filters.Resource == "" {
		filters.Resource = q.Get("module")
	}
	if v := q.Get("actor"); v != "" {
		filters.ActorID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("school"); v != "" {
		filters.SchoolID, _ = strconv.ParseInt(v, 10, 64)
	}
	if t, ok := parseTime(q.Get("from")); ok {
		filters.From = t
	}
	if t, ok := parseTime(q.Get("to")); ok {
		filters.To = t
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		filters.PageSize = v
	}
	return filters
}

func parseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func formatName(format string) string {
	if format == "csv" {
		return "csv"
	}
	return "json"
}
