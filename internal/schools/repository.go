package schools

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skolar-erp/skolar/internal/audit"
	"github.com/skolar-erp/skolar/internal/platform/db"
	"github.com/skolar-erp/skolar/internal/shared"
)

// ErrDuplicateCode indicates a school code collision.
var ErrDuplicateCode = errors.New("schools: duplicate code")

const resourceName = "schools"

// Repository persists schools. Mutations run inside one transaction together
// with their storage-level audit capture, so the row and its audit entry
// commit or roll back as a unit.
type Repository struct {
	pool    *pgxpool.Pool
	capture *audit.Capture
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, capture *audit.Capture) *Repository {
	return &Repository{pool: pool, capture: capture}
}

const schoolColumns = `id, name, code, address, contact_email, contact_phone, is_active, created_at, updated_at`

// SchoolExists reports whether an active school with the given ID exists.
func (r *Repository) SchoolExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schools WHERE id = $1 AND is_active)`, id).Scan(&exists)
	return exists, err
}

// GetSchool fetches a school by ID.
func (r *Repository) GetSchool(ctx context.Context, id int64) (School, error) {
	var s School
	err := r.pool.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id).Scan(
		&s.ID, &s.Name, &s.Code, &s.Address, &s.ContactEmail, &s.ContactPhone, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return School{}, shared.ErrNotFound
		}
		return School{}, err
	}
	return s, nil
}

// ListSchools returns all schools ordered by name.
func (r *Repository) ListSchools(ctx context.Context) ([]School, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+schoolColumns+` FROM schools ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var schools []School
	for rows.Next() {
		var s School
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.Address, &s.ContactEmail, &s.ContactPhone, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		schools = append(schools, s)
	}
	return schools, rows.Err()
}

// CreateSchool inserts a school and captures the CREATE audit entry in the
// same transaction.
func (r *Repository) CreateSchool(ctx context.Context, s School) (School, error) {
	var created School
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO schools (name, code, address, contact_email, contact_phone, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING `+schoolColumns,
			s.Name, s.Code, s.Address, s.ContactEmail, s.ContactPhone).Scan(
			&created.ID, &created.Name, &created.Code, &created.Address, &created.ContactEmail,
			&created.ContactPhone, &created.IsActive, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return schoolWriteError(err)
		}
		return r.capture.RecordCreate(ctx, tx, resourceName, strconv.FormatInt(created.ID, 10), created)
	})
	if err != nil {
		return School{}, err
	}
	return created, nil
}

// UpdateSchool updates a school and captures the UPDATE entry with full
// before and after snapshots.
func (r *Repository) UpdateSchool(ctx context.Context, s School) (School, error) {
	var updated School
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		old, err := lockSchool(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE schools
			SET name = $2, code = $3, address = $4, contact_email = $5, contact_phone = $6,
			    is_active = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING `+schoolColumns,
			s.ID, s.Name, s.Code, s.Address, s.ContactEmail, s.ContactPhone, s.IsActive).Scan(
			&updated.ID, &updated.Name, &updated.Code, &updated.Address, &updated.ContactEmail,
			&updated.ContactPhone, &updated.IsActive, &updated.CreatedAt, &updated.UpdatedAt)
		if err != nil {
			return schoolWriteError(err)
		}
		return r.capture.RecordUpdate(ctx, tx, resourceName, strconv.FormatInt(s.ID, 10), old, updated)
	})
	if err != nil {
		return School{}, err
	}
	return updated, nil
}

// DeleteSchool removes a school and captures the DELETE entry with the row
// as it existed.
func (r *Repository) DeleteSchool(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		old, err := lockSchool(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schools WHERE id = $1`, id); err != nil {
			return err
		}
		return r.capture.RecordDelete(ctx, tx, resourceName, strconv.FormatInt(id, 10), old)
	})
}

// schoolWriteError maps a code collision to ErrDuplicateCode.
func schoolWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_schools_code" {
		return ErrDuplicateCode
	}
	return err
}

func lockSchool(ctx context.Context, tx pgx.Tx, id int64) (School, error) {
	var s School
	err := tx.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1 FOR UPDATE`, id).Scan(
		&s.ID, &s.Name, &s.Code, &s.Address, &s.ContactEmail, &s.ContactPhone, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return School{}, shared.ErrNotFound
		}
		return School{}, err
	}
	return s, nil
}
