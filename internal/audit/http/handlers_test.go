package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skolar-erp/skolar/internal/audit"
	"github.com/skolar-erp/skolar/internal/shared"
)

type stubQueryService struct {
	entries     []audit.Entry
	lastFilters audit.Filters
}

func (s *stubQueryService) List(ctx context.Context, f audit.Filters) (audit.Result, error) {
	s.lastFilters = f
	return audit.Result{
		Entries: s.entries,
		Paging:  shared.NewPagination(f.Page, f.PageSize, false),
	}, nil
}

func (s *stubQueryService) Export(ctx context.Context, f audit.Filters) ([]audit.Entry, error) {
	s.lastFilters = f
	return s.entries, nil
}

type stubAccessRecorder struct {
	accesses []string
}

func (s *stubAccessRecorder) LogDataAccess(ctx context.Context, resource, recordID, description string) {
	s.accesses = append(s.accesses, resource+": "+description)
}

func TestHandleListParsesFilters(t *testing.T) {
	svc := &stubQueryService{}
	h := NewHandler(nil, svc, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/audit?action=UPDATE&module=schools&actor=7&school=10&from=2026-01-01&to=2026-03-01T12:00:00Z&page=2&pageSize=50", nil)
	res := httptest.NewRecorder()
	h.handleList(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	f := svc.lastFilters
	assert.Equal(t, "UPDATE", f.Action)
	assert.Equal(t, "schools", f.Resource, "module is accepted as a resource alias")
	assert.Equal(t, int64(7), f.ActorID)
	assert.Equal(t, int64(10), f.SchoolID)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), f.To)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 50, f.PageSize)

	var body struct {
		Entries []audit.Entry `json:"entries"`
		Page    int           `json:"page"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.NotNil(t, body.Entries, "empty result renders as [], not null")
	assert.Equal(t, 2, body.Page)
}

func TestHandleExportCSV(t *testing.T) {
	svc := &stubQueryService{entries: []audit.Entry{
		{ID: 1, Action: audit.OpCreate, Resource: "schools", Success: true, CreatedAt: time.Now()},
	}}
	recorder := &stubAccessRecorder{}
	h := NewHandler(nil, svc, recorder)

	req := httptest.NewRequest(http.MethodGet, "/audit/export?format=csv", nil)
	res := httptest.NewRecorder()
	h.handleExport(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, res.Header().Get("Content-Disposition"), "audit_log.csv")
	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	assert.Len(t, lines, 2, "header plus one row")

	require.Len(t, recorder.accesses, 1)
	assert.Contains(t, recorder.accesses[0], "exported 1 audit entries as csv")
}

func TestHandleExportDefaultsToJSON(t *testing.T) {
	svc := &stubQueryService{}
	h := NewHandler(nil, svc, &stubAccessRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/audit/export", nil)
	res := httptest.NewRecorder()
	h.handleExport(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
	assert.Equal(t, "[]", res.Body.String())
}
