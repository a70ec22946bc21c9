package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skolar-erp/skolar/internal/shared"
)

type mockEntryStore struct {
	entries     []Entry
	insertError error
}

func (m *mockEntryStore) Insert(ctx context.Context, e Entry) error {
	if m.insertError != nil {
		return m.insertError
	}
	m.entries = append(m.entries, e)
	return nil
}

func testRegistry(t *testing.T, configs ...Config) *Registry {
	t.Helper()
	reg := NewRegistry(staticConfigStore(configs))
	require.NoError(t, reg.Reload(context.Background()))
	return reg
}

type staticConfigStore []Config

func (s staticConfigStore) ListConfigs(ctx context.Context) ([]Config, error) {
	return s, nil
}

func actorContext() context.Context {
	return shared.ContextWithRequestInfo(context.Background(), shared.RequestInfo{
		ActorID:    7,
		ActorEmail: "principal@northside.example",
		SchoolID:   10,
		IP:         "192.0.2.1",
		RequestID:  "req-1",
	})
}

func TestLogAuthEvent(t *testing.T) {
	store := &mockEntryStore{}
	rec := NewRecorder(store, nil, RecorderConfig{})

	rec.LogAuthEvent(actorContext(), OpLogin, false, "invalid credentials")

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, OpLogin, e.Action)
	assert.Equal(t, "auth", e.Resource)
	assert.Equal(t, int64(7), e.ActorID)
	assert.False(t, e.Success)
	assert.Equal(t, "invalid credentials", e.ErrorMessage)
}

func TestLogDataAccessRespectsTracking(t *testing.T) {
	store := &mockEntryStore{}
	reg := testRegistry(t,
		Config{Resource: "audit_logs", TrackRead: true},
		Config{Resource: "schools", TrackRead: false},
	)
	rec := NewRecorder(store, reg, RecorderConfig{})
	ctx := actorContext()

	rec.LogDataAccess(ctx, "schools", "", "list")
	assert.Empty(t, store.entries, "read tracking is opt-in")

	rec.LogDataAccess(ctx, "students", "", "list")
	assert.Empty(t, store.entries, "unconfigured resources are never audited")

	rec.LogDataAccess(ctx, "audit_logs", "", "export csv")
	require.Len(t, store.entries, 1)
	assert.Equal(t, OpAccess, store.entries[0].Action)
	assert.True(t, store.entries[0].Success)
}

func TestExecuteWithAuditSuccess(t *testing.T) {
	store := &mockEntryStore{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		at = at.Add(25 * time.Millisecond)
		return at
	}
	rec := NewRecorder(store, nil, RecorderConfig{Now: clock})

	err := rec.ExecuteWithAudit(actorContext(), Operation{
		Action: OpGrantRole, Resource: "user_roles", RecordID: "1",
	}, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.True(t, e.Success)
	assert.Equal(t, OpGrantRole, e.Action)
	require.NotNil(t, e.DurationMs)
	assert.Equal(t, int64(25), *e.DurationMs)
}

func TestExecuteWithAuditFailure(t *testing.T) {
	store := &mockEntryStore{}
	rec := NewRecorder(store, nil, RecorderConfig{})
	boom := errors.New("role 99 does not exist")

	err := rec.ExecuteWithAudit(actorContext(), Operation{
		Action: OpGrantRole, Resource: "user_roles",
	}, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom, "original error passes through unchanged")

	require.Len(t, store.entries, 1)
	assert.False(t, store.entries[0].Success)
	assert.Equal(t, boom.Error(), store.entries[0].ErrorMessage)
}

func TestExecuteWithAuditPanic(t *testing.T) {
	store := &mockEntryStore{}
	rec := NewRecorder(store, nil, RecorderConfig{})

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = rec.ExecuteWithAudit(context.Background(), Operation{
			Action: OpRevokeRole, Resource: "user_roles",
		}, func(ctx context.Context) error {
			panic("kaboom")
		})
	})

	require.Len(t, store.entries, 1)
	assert.False(t, store.entries[0].Success)
	assert.Equal(t, "kaboom", store.entries[0].ErrorMessage)
}

func TestRecorderWriteIsBestEffort(t *testing.T) {
	store := &mockEntryStore{insertError: errors.New("audit store down")}
	rec := NewRecorder(store, nil, RecorderConfig{})

	err := rec.ExecuteWithAudit(context.Background(), Operation{
		Action: OpGrantRole, Resource: "user_roles",
	}, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err, "audit write failure must not fail the operation")
}

func TestRecorderWriteSurvivesCancelledContext(t *testing.T) {
	store := &mockEntryStore{}
	rec := NewRecorder(store, nil, RecorderConfig{})

	ctx, cancel := context.WithCancel(actorContext())
	cancel()
	rec.LogAuthEvent(ctx, OpLogout, true, "")

	require.Len(t, store.entries, 1, "cancelled request context must not lose the entry")
}
