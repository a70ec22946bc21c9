package rbac

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long resolved permissions may be served without
// consulting the store. Cross-process staleness after a grant change is
// bounded by this window; in-process invalidation is immediate.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	perms    []EffectivePermission
	roles    []string
	cachedAt time.Time
}

// PermissionCache is an in-process store of resolved permission sets keyed by
// user ID. Entries older than the TTL are treated as absent.
type PermissionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]cacheEntry
}

// NewPermissionCache constructs a cache. A non-positive ttl falls back to
// DefaultCacheTTL; a nil clock falls back to time.Now.
func NewPermissionCache(ttl time.Duration, now func() time.Time) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &PermissionCache{ttl: ttl, now: now, entries: make(map[int64]cacheEntry)}
}

// Get returns the cached permissions and role names for a user, or ok=false
// when the entry is missing or expired.
func (c *PermissionCache) Get(userID int64) (perms []EffectivePermission, roles []string, ok bool) {
	c.mu.RLock()
	entry, found := c.entries[userID]
	c.mu.RUnlock()
	if !found || c.now().Sub(entry.cachedAt) >= c.ttl {
		return nil, nil, false
	}
	return entry.perms, entry.roles, true
}

// Set stores the resolved permission set for a user.
func (c *PermissionCache) Set(userID int64, perms []EffectivePermission, roles []string) {
	c.mu.Lock()
	c.entries[userID] = cacheEntry{perms: perms, roles: roles, cachedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate evicts a single user's entry. Grant mutations call this after
// the store write commits so stale permissions are never served past a
// mutation within this process.
func (c *PermissionCache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *PermissionCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[int64]cacheEntry)
	c.mu.Unlock()
}
