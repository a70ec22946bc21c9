package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skolar-erp/skolar/internal/observability"
	"github.com/skolar-erp/skolar/internal/shared"
)

// Store is the persistence contract the resolution engine depends on.
type Store interface {
	ListRoles(ctx context.Context) ([]Role, error)
	RoleExists(ctx context.Context, id int64) (bool, error)
	ListActiveGrants(ctx context.Context, userID int64) ([]RoleGrant, error)
	ListGrantPermissions(ctx context.Context, userID int64) ([]GrantPermission, error)
	UpsertGrant(ctx context.Context, userID, roleID, schoolID, assignedBy int64, expiresAt time.Time) error
	DeactivateGrant(ctx context.Context, userID, roleID, schoolID int64) error
}

// UserDirectory answers actor existence checks.
type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// SchoolDirectory answers tenant existence checks.
type SchoolDirectory interface {
	SchoolExists(ctx context.Context, id int64) (bool, error)
}

// Service is the permission resolution engine. It owns the TTL cache and is
// the only writer of its invalidation events. Store failures propagate as
// errors: authorization fails closed, never silently grants.
type Service struct {
	store   Store
	users   UserDirectory
	schools SchoolDirectory
	cache   *PermissionCache
	group   singleflight.Group
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// ServiceConfig collects optional dependencies for NewService.
type ServiceConfig struct {
	CacheTTL time.Duration
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Now      func() time.Time
}

// NewService constructs the resolution engine.
func NewService(store Store, users UserDirectory, schools SchoolDirectory, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:   store,
		users:   users,
		schools: schools,
		cache:   NewPermissionCache(cfg.CacheTTL, cfg.Now),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

type resolved struct {
	perms []EffectivePermission
	roles []string
}

// ResolvePermissions computes the effective permission set for a user. Cache
// hits are served without touching the store; concurrent misses for the same
// user share one load.
func (s *Service) ResolvePermissions(ctx context.Context, userID int64) ([]EffectivePermission, error) {
	res, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return res.perms, nil
}

func (s *Service) resolve(ctx context.Context, userID int64) (resolved, error) {
	if perms, roles, ok := s.cache.Get(userID); ok {
		s.metrics.PermissionCacheHit()
		return resolved{perms: perms, roles: roles}, nil
	}
	s.metrics.PermissionCacheMiss()

	value, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return s.load(ctx, userID)
	})
	if err != nil {
		return resolved{}, fmt.Errorf("rbac: resolve permissions for user %d: %w", userID, err)
	}
	return value.(resolved), nil
}

func (s *Service) load(ctx context.Context, userID int64) (resolved, error) {
	grants, err := s.store.ListActiveGrants(ctx, userID)
	if err != nil {
		return resolved{}, err
	}
	grantPerms, err := s.store.ListGrantPermissions(ctx, userID)
	if err != nil {
		return resolved{}, err
	}

	at := s.now()
	perms := make([]EffectivePermission, 0, len(grantPerms))
	for _, gp := range grantPerms {
		if !gp.ExpiresAt.IsZero() && !gp.ExpiresAt.After(at) {
			continue
		}
		perms = append(perms, EffectivePermission{
			Module:   gp.Module,
			Action:   gp.Action,
			SchoolID: gp.SchoolID,
			RoleName: gp.RoleName,
		})
	}

	roleSet := make(map[string]struct{}, len(grants))
	roles := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.Expired(at) {
			continue
		}
		if _, seen := roleSet[g.RoleName]; seen {
			continue
		}
		roleSet[g.RoleName] = struct{}{}
		roles = append(roles, g.RoleName)
	}

	res := resolved{perms: perms, roles: roles}
	s.cache.Set(userID, perms, roles)
	return res, nil
}

// HasPermission reports whether the user may perform (module, action) in the
// given school. A zero schoolID means "any school". An unscoped grant
// authorizes every school; a scoped grant only its own.
func (s *Service) HasPermission(ctx context.Context, userID int64, module, action string, schoolID int64) (bool, error) {
	perms, err := s.ResolvePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Module != module || p.Action != action {
			continue
		}
		if schoolID == 0 || p.SchoolID == 0 || p.SchoolID == schoolID {
			return true, nil
		}
	}
	return false, nil
}

// HasRole reports whether the user currently holds any of the named roles.
// Validity comes from the grants themselves: a role with an empty permission
// set still counts while its grant is active and unexpired.
func (s *Service) HasRole(ctx context.Context, userID int64, roleNames ...string) (bool, error) {
	res, err := s.resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, held := range res.roles {
		for _, want := range roleNames {
			if held == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// RoleNames returns the distinct roles currently held by the user.
func (s *Service) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	res, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return res.roles, nil
}

// GrantRoleParams describes one grant mutation.
type GrantRoleParams struct {
	UserID     int64
	RoleID     int64
	SchoolID   int64
	AssignedBy int64
	ExpiresAt  time.Time
}

// GrantRole assigns a role, reactivating an identical deactivated grant
// instead of inserting a duplicate. The user's cache entry is evicted before
// returning, so subsequent resolutions in this process see the new grant.
func (s *Service) GrantRole(ctx context.Context, p GrantRoleParams) error {
	if err := s.validateGrantRefs(ctx, p.UserID, p.RoleID, p.SchoolID); err != nil {
		return err
	}
	if !p.ExpiresAt.IsZero() && !p.ExpiresAt.After(s.now()) {
		return fmt.Errorf("%w: expiry is in the past", shared.ErrInvalidGrant)
	}
	if err := s.store.UpsertGrant(ctx, p.UserID, p.RoleID, p.SchoolID, p.AssignedBy, p.ExpiresAt); err != nil {
		return fmt.Errorf("rbac: grant role: %w", err)
	}
	s.cache.Invalidate(p.UserID)
	return nil
}

// RevokeRole deactivates a grant and evicts the user's cache entry.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID, schoolID int64) error {
	if err := s.store.DeactivateGrant(ctx, userID, roleID, schoolID); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// ListRoles returns all defined roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// InvalidateUser evicts a user's cached permissions. Exposed for collaborators
// that mutate grants outside this service (seeding, admin tooling).
func (s *Service) InvalidateUser(userID int64) {
	s.cache.Invalidate(userID)
}

func (s *Service) validateGrantRefs(ctx context.Context, userID, roleID, schoolID int64) error {
	ok, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("rbac: check user: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %d does not exist", shared.ErrInvalidGrant, userID)
	}
	ok, err = s.store.RoleExists(ctx, roleID)
	if err != nil {
		return fmt.Errorf("rbac: check role: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: role %d does not exist", shared.ErrInvalidGrant, roleID)
	}
	if schoolID != 0 {
		ok, err = s.schools.SchoolExists(ctx, schoolID)
		if err != nil {
			return fmt.Errorf("rbac: check school: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: school %d does not exist", shared.ErrInvalidGrant, schoolID)
		}
	}
	return nil
}
