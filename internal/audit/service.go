package audit

import (
	"context"
	"fmt"

	"github.com/skolar-erp/skolar/internal/shared"
)

// QueryStore is the read-side persistence contract.
type QueryStore interface {
	List(ctx context.Context, f Filters) ([]Entry, bool, error)
	ListAll(ctx context.Context, f Filters) ([]Entry, error)
}

// RoleChecker answers whether an actor holds a system-wide role.
type RoleChecker interface {
	HasRole(ctx context.Context, userID int64, roleNames ...string) (bool, error)
}

// Result wraps one page of entries with paging metadata.
type Result struct {
	Entries []Entry
	Paging  shared.Pagination
}

// Service coordinates audit log reads. Non-privileged actors are implicitly
// restricted to their own school's entries.
type Service struct {
	store QueryStore
	rbac  RoleChecker
}

// NewService constructs the audit query service.
func NewService(store QueryStore, rbac RoleChecker) *Service {
	return &Service{store: store, rbac: rbac}
}

// List returns one page of entries visible to the acting user.
func (s *Service) List(ctx context.Context, f Filters) (Result, error) {
	if s.store == nil {
		return Result{}, fmt.Errorf("audit: store not configured")
	}
	f, err := s.scopeFilters(ctx, f)
	if err != nil {
		return Result{}, err
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	entries, hasNext, err := s.store.List(ctx, f)
	if err != nil {
		return Result{}, err
	}
	return Result{Entries: entries, Paging: shared.NewPagination(f.Page, f.PageSize, hasNext)}, nil
}

// Export returns every matching entry visible to the acting user.
func (s *Service) Export(ctx context.Context, f Filters) ([]Entry, error) {
	if s.store == nil {
		return nil, fmt.Errorf("audit: store not configured")
	}
	f, err := s.scopeFilters(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.store.ListAll(ctx, f)
}

// scopeFilters forces the actor's own school filter unless the actor holds
// the system-wide role. A non-privileged actor with no school scope at all is
// rejected outright; a zero SchoolID would otherwise read as "no filter".
func (s *Service) scopeFilters(ctx context.Context, f Filters) (Filters, error) {
	if s.rbac == nil {
		return f, nil
	}
	info := shared.RequestInfoFromContext(ctx)
	if info.ActorID == 0 {
		return f, nil
	}
	systemWide, err := s.rbac.HasRole(ctx, info.ActorID, shared.RoleSuperAdmin)
	if err != nil {
		return Filters{}, fmt.Errorf("audit: scope filters: %w", err)
	}
	if systemWide {
		return f, nil
	}
	if info.SchoolID == 0 {
		return Filters{}, fmt.Errorf("audit: no school scope: %w", shared.ErrForbidden)
	}
	f.SchoolID = info.SchoolID
	return f, nil
}
