package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skolar-erp/skolar/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles and grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, is_system, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// RoleExists reports whether a role with the given ID exists.
func (r *Repository) RoleExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// ListActiveGrants returns the user's active grants with role names joined.
// Expiry is not filtered here; the resolution engine applies its own clock.
func (r *Repository) ListActiveGrants(ctx context.Context, userID int64) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.user_id, g.role_id, r.name, COALESCE(g.school_id, 0),
		       COALESCE(g.assigned_by, 0), g.assigned_at, g.expires_at, g.is_active
		FROM user_roles g
		JOIN roles r ON r.id = g.role_id
		WHERE g.user_id = $1 AND g.is_active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		var expires pgtype.Timestamptz
		if err := rows.Scan(&g.ID, &g.UserID, &g.RoleID, &g.RoleName, &g.SchoolID, &g.AssignedBy, &g.AssignedAt, &expires, &g.IsActive); err != nil {
			return nil, err
		}
		if expires.Valid {
			g.ExpiresAt = expires.Time
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ListGrantPermissions returns every permission contributed by the user's
// active grants, tagged with the grant scope, role name and expiry.
func (r *Repository) ListGrantPermissions(ctx context.Context, userID int64) ([]GrantPermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.module, p.action, COALESCE(g.school_id, 0), r.name, g.expires_at
		FROM user_roles g
		JOIN roles r ON r.id = g.role_id
		JOIN role_permissions rp ON rp.role_id = g.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE g.user_id = $1 AND g.is_active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []GrantPermission
	for rows.Next() {
		var gp GrantPermission
		var expires pgtype.Timestamptz
		if err := rows.Scan(&gp.Module, &gp.Action, &gp.SchoolID, &gp.RoleName, &expires); err != nil {
			return nil, err
		}
		if expires.Valid {
			gp.ExpiresAt = expires.Time
		}
		perms = append(perms, gp)
	}
	return perms, rows.Err()
}

// UpsertGrant inserts a grant or reactivates the existing row for the same
// (user, role, school). Reactivation resets the assignment metadata and
// clears the expiry, so revoke-then-regrant never leaves duplicates.
func (r *Repository) UpsertGrant(ctx context.Context, userID, roleID, schoolID, assignedBy int64, expiresAt time.Time) error {
	var school pgtype.Int8
	if schoolID != 0 {
		school = pgtype.Int8{Int64: schoolID, Valid: true}
	}
	var assigner pgtype.Int8
	if assignedBy != 0 {
		assigner = pgtype.Int8{Int64: assignedBy, Valid: true}
	}
	var expires pgtype.Timestamptz
	if !expiresAt.IsZero() {
		expires = pgtype.Timestamptz{Time: expiresAt, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, school_id, assigned_by, assigned_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, NOW(), $5, TRUE)
		ON CONFLICT (user_id, role_id, school_key) DO UPDATE SET
			assigned_by = EXCLUDED.assigned_by,
			assigned_at = NOW(),
			expires_at  = EXCLUDED.expires_at,
			is_active   = TRUE`,
		userID, roleID, school, assigner, expires)
	if err != nil {
		return grantWriteError(err)
	}
	return nil
}

// grantWriteError maps foreign key violations to shared.ErrInvalidGrant. The
// service validates references up front; this backstops rows deleted between
// the check and the insert.
func grantWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return shared.ErrInvalidGrant
	}
	return err
}

// DeactivateGrant soft-deletes a grant. Returns shared.ErrNotFound when no
// active row matches.
func (r *Repository) DeactivateGrant(ctx context.Context, userID, roleID, schoolID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_roles SET is_active = FALSE
		WHERE user_id = $1 AND role_id = $2 AND COALESCE(school_id, 0) = $3 AND is_active`,
		userID, roleID, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
