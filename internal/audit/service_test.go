package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skolar-erp/skolar/internal/shared"
)

type mockQueryStore struct {
	entries   []Entry
	lastList  Filters
	listCalls int
	listError error
}

func (m *mockQueryStore) List(ctx context.Context, f Filters) ([]Entry, bool, error) {
	m.lastList = f
	m.listCalls++
	if m.listError != nil {
		return nil, false, m.listError
	}
	start := (f.Page - 1) * f.PageSize
	if start >= len(m.entries) {
		return nil, false, nil
	}
	end := start + f.PageSize
	hasNext := end < len(m.entries)
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[start:end], hasNext, nil
}

func (m *mockQueryStore) ListAll(ctx context.Context, f Filters) ([]Entry, error) {
	m.lastList = f
	m.listCalls++
	return m.entries, m.listError
}

type mockRoleChecker struct {
	systemWide bool
	err        error
}

func (m mockRoleChecker) HasRole(ctx context.Context, userID int64, roleNames ...string) (bool, error) {
	return m.systemWide, m.err
}

func TestListScopesToActorSchool(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewService(store, mockRoleChecker{systemWide: false})

	ctx := shared.ContextWithRequestInfo(context.Background(), shared.RequestInfo{
		ActorID: 7, SchoolID: 10,
	})
	_, err := svc.List(ctx, Filters{SchoolID: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(10), store.lastList.SchoolID,
		"non-privileged actors cannot query other schools")
}

func TestListRejectsActorWithoutSchoolScope(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewService(store, mockRoleChecker{systemWide: false})

	// No X-School-ID header and no session school leaves SchoolID zero; that
	// must not degrade into an unfiltered cross-school query.
	ctx := shared.ContextWithRequestInfo(context.Background(), shared.RequestInfo{ActorID: 7})

	_, err := svc.List(ctx, Filters{SchoolID: 20})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Export(ctx, Filters{})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	assert.Zero(t, store.listCalls, "the store must never see an unscoped query")
}

func TestListSystemWideActorKeepsFilter(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewService(store, mockRoleChecker{systemWide: true})

	ctx := shared.ContextWithRequestInfo(context.Background(), shared.RequestInfo{
		ActorID: 1, SchoolID: 10,
	})
	_, err := svc.List(ctx, Filters{SchoolID: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(20), store.lastList.SchoolID)
}

func TestListPaging(t *testing.T) {
	store := &mockQueryStore{entries: make([]Entry, 45)}
	svc := NewService(store, mockRoleChecker{systemWide: true})

	res, err := svc.List(context.Background(), Filters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 20)
	assert.True(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.NextPage)

	res, err = svc.List(context.Background(), Filters{Page: 3, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 5)
	assert.False(t, res.Paging.HasNext)
}

func TestListClampsPageSize(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewService(store, mockRoleChecker{systemWide: true})

	_, err := svc.List(context.Background(), Filters{PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 100, store.lastList.PageSize)

	_, err = svc.List(context.Background(), Filters{})
	require.NoError(t, err)
	assert.Equal(t, 20, store.lastList.PageSize)
	assert.Equal(t, 1, store.lastList.Page)
}

func TestListFailsClosedOnRoleCheckError(t *testing.T) {
	store := &mockQueryStore{}
	svc := NewService(store, mockRoleChecker{err: errors.New("store down")})

	ctx := shared.ContextWithRequestInfo(context.Background(), shared.RequestInfo{ActorID: 7})
	_, err := svc.List(ctx, Filters{})
	assert.Error(t, err)
}

func TestExportScopesToActorSchool(t *testing.T) {
	store := &mockQueryStore{entries: []Entry{{ID: 1, Action: OpCreate, Resource: "schools"}}}
	svc := NewService(store, mockRoleChecker{systemWide: false})

	ctx := shared.ContextWithRequestInfo(context.Background(), shared.RequestInfo{
		ActorID: 7, SchoolID: 10,
	})
	entries, err := svc.Export(ctx, Filters{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(10), store.lastList.SchoolID)
}
