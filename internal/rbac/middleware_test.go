package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skolar-erp/skolar/internal/shared"
)

type stubDenialRecorder struct {
	denials []string
}

func (s *stubDenialRecorder) LogSystemEvent(ctx context.Context, resource, description string, success bool) {
	s.denials = append(s.denials, description)
}

func requirePermission(t *testing.T, store *mockStore, recorder *stubDenialRecorder, info shared.RequestInfo) *httptest.ResponseRecorder {
	t.Helper()
	svc := newTestService(store, &fakeClock{at: time.Now()})
	mw := Middleware{Service: svc, Recorder: recorder}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/schools", nil)
	req = req.WithContext(shared.ContextWithRequestInfo(req.Context(), info))
	res := httptest.NewRecorder()
	mw.RequirePermission("schools", "read")(next).ServeHTTP(res, req)
	return res
}

func TestRequirePermissionUnauthenticated(t *testing.T) {
	res := requirePermission(t, newMockStore(), &stubDenialRecorder{}, shared.RequestInfo{})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequirePermissionAllowed(t *testing.T) {
	store := newMockStore()
	store.grantPerms[7] = []GrantPermission{
		{Module: "schools", Action: "read", SchoolID: 10, RoleName: "registrar"},
	}
	res := requirePermission(t, store, &stubDenialRecorder{}, shared.RequestInfo{ActorID: 7, SchoolID: 10})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequirePermissionDeniedIsAudited(t *testing.T) {
	store := newMockStore()
	store.grants[7] = []RoleGrant{{RoleName: "registrar", SchoolID: 20}}
	store.grantPerms[7] = []GrantPermission{
		{Module: "schools", Action: "read", SchoolID: 20, RoleName: "registrar"},
	}
	recorder := &stubDenialRecorder{}

	res := requirePermission(t, store, recorder, shared.RequestInfo{ActorID: 7, SchoolID: 10})
	assert.Equal(t, http.StatusForbidden, res.Code)

	require.Len(t, recorder.denials, 1)
	assert.Equal(t, "ACCESS_DENIED: schools.read", recorder.denials[0])

	var body struct {
		Module string   `json:"module"`
		Action string   `json:"action"`
		Roles  []string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "schools", body.Module)
	assert.Equal(t, "read", body.Action)
	assert.Equal(t, []string{"registrar"}, body.Roles)
}

func TestRequirePermissionFailsClosed(t *testing.T) {
	store := newMockStore()
	store.listGrantsError = errors.New("connection refused")
	recorder := &stubDenialRecorder{}

	res := requirePermission(t, store, recorder, shared.RequestInfo{ActorID: 7})
	assert.Equal(t, http.StatusInternalServerError, res.Code,
		"store failure must never authorize")
	assert.Empty(t, recorder.denials)
}
