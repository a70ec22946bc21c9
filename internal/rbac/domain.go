package rbac

import "time"

// Role is a named bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is the atomic unit of authorization, unique on (module, action).
type Permission struct {
	ID     int64
	Module string
	Action string
}

// RoleGrant ties a user to a role, optionally scoped to one school.
// SchoolID zero means the grant is unscoped and authorizes every school.
// A zero ExpiresAt means the grant never expires.
type RoleGrant struct {
	ID         int64
	UserID     int64
	RoleID     int64
	RoleName   string
	SchoolID   int64
	AssignedBy int64
	AssignedAt time.Time
	ExpiresAt  time.Time
	IsActive   bool
}

// Expired reports whether the grant has lapsed at the given instant.
func (g RoleGrant) Expired(at time.Time) bool {
	return !g.ExpiresAt.IsZero() && !g.ExpiresAt.After(at)
}

// EffectivePermission is one resolved permission tagged with the scope and
// role it came from.
type EffectivePermission struct {
	Module   string `json:"module"`
	Action   string `json:"action"`
	SchoolID int64  `json:"schoolId,omitempty"`
	RoleName string `json:"roleName"`
}

// GrantPermission is a flattened store row: one permission contributed by one
// active grant, still carrying the grant's expiry so the engine can filter.
type GrantPermission struct {
	Module    string
	Action    string
	SchoolID  int64
	RoleName  string
	ExpiresAt time.Time
}
