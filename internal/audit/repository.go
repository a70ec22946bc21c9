package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the audit log and
// the per-resource audit policies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertEntrySQL = `
	INSERT INTO audit_logs (
		action, resource, record_id, actor_id, actor_email, actor_role,
		school_id, school_name, ip, user_agent, request_id, description,
		old_values, new_values, changed_fields, success, error_message,
		duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, COALESCE($19, NOW()))`

// Insert writes one entry using the pool. Used by the application-level path.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	return insertEntry(ctx, r.pool, e)
}

// InsertTx writes one entry inside the caller's transaction. Used by the
// storage-level path so the audit row commits or rolls back with the
// business mutation.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, e Entry) error {
	return insertEntry(ctx, tx, e)
}

func insertEntry(ctx context.Context, db execer, e Entry) error {
	oldJSON, err := marshalValues(e.OldValues)
	if err != nil {
		return fmt.Errorf("audit: marshal old values: %w", err)
	}
	newJSON, err := marshalValues(e.NewValues)
	if err != nil {
		return fmt.Errorf("audit: marshal new values: %w", err)
	}
	var createdAt pgtype.Timestamptz
	if !e.CreatedAt.IsZero() {
		createdAt = pgtype.Timestamptz{Time: e.CreatedAt, Valid: true}
	}
	_, err = db.Exec(ctx, insertEntrySQL,
		e.Action, e.Resource, nullText(e.RecordID), nullInt(e.ActorID),
		nullText(e.ActorEmail), nullText(e.ActorRole), nullInt(e.SchoolID),
		nullText(e.SchoolName), nullText(e.IP), nullText(e.UserAgent),
		nullText(e.RequestID), nullText(e.Description), oldJSON, newJSON,
		e.ChangedFields, e.Success, nullText(e.ErrorMessage), e.DurationMs,
		createdAt)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// List returns one page of entries in reverse-chronological order, ties
// broken by id. hasNext reports whether a further page exists.
func (r *Repository) List(ctx context.Context, f Filters) ([]Entry, bool, error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	where, args := buildFilterClause(f)
	query := selectEntrySQL + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) +
		` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, pageSize+1, (page-1)*pageSize)

	entries, err := r.queryEntries(ctx, query, args)
	if err != nil {
		return nil, false, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return entries, hasNext, nil
}

// ListAll returns every matching entry without paging, for exports.
func (r *Repository) ListAll(ctx context.Context, f Filters) ([]Entry, error) {
	where, args := buildFilterClause(f)
	query := selectEntrySQL + where + ` ORDER BY created_at DESC, id DESC`
	return r.queryEntries(ctx, query, args)
}

// DeleteExpired removes entries for one resource created before the cutoff,
// never touching the protected actions.
func (r *Repository) DeleteExpired(ctx context.Context, resource string, cutoff time.Time, protected []string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM audit_logs
		WHERE resource = $1
		  AND created_at < $2
		  AND action <> ALL($3)`,
		resource, cutoff, protected)
	if err != nil {
		return 0, fmt.Errorf("audit: delete expired for %s: %w", resource, err)
	}
	return tag.RowsAffected(), nil
}

// ListConfigs loads every per-resource audit policy.
func (r *Repository) ListConfigs(ctx context.Context) ([]Config, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT resource, track_create, track_update, track_delete, track_read,
		       COALESCE(sensitive_fields, '{}'), COALESCE(excluded_fields, '{}'), retention_days
		FROM audit_configs ORDER BY resource`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var configs []Config
	for rows.Next() {
		var cfg Config
		if err := rows.Scan(&cfg.Resource, &cfg.TrackCreate, &cfg.TrackUpdate, &cfg.TrackDelete, &cfg.TrackRead,
			&cfg.SensitiveFields, &cfg.ExcludedFields, &cfg.RetentionDays); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

const selectEntrySQL = `
	SELECT id, action, resource, COALESCE(record_id, ''), COALESCE(actor_id, 0),
	       COALESCE(actor_email, ''), COALESCE(actor_role, ''), COALESCE(school_id, 0),
	       COALESCE(school_name, ''), COALESCE(ip, ''), COALESCE(user_agent, ''),
	       COALESCE(request_id, ''), COALESCE(description, ''), old_values, new_values,
	       COALESCE(changed_fields, '{}'), success, COALESCE(error_message, ''),
	       duration_ms, created_at
	FROM audit_logs`

func buildFilterClause(f Filters) (string, []any) {
	where := ` WHERE TRUE`
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}
	if f.Action != "" {
		add(` AND action = $%d`, f.Action)
	}
	if f.Resource != "" {
		add(` AND resource = $%d`, f.Resource)
	}
	if f.ActorID != 0 {
		add(` AND actor_id = $%d`, f.ActorID)
	}
	if f.SchoolID != 0 {
		add(` AND school_id = $%d`, f.SchoolID)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (description ILIKE $` + n + ` OR actor_email ILIKE $` + n + `)`
	}
	if !f.From.IsZero() {
		add(` AND created_at >= $%d`, f.From)
	}
	if !f.To.IsZero() {
		add(` AND created_at <= $%d`, f.To)
	}
	return where, args
}

func (r *Repository) queryEntries(ctx context.Context, query string, args []any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var oldJSON, newJSON []byte
		var durationMs pgtype.Int8
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Action, &e.Resource, &e.RecordID, &e.ActorID,
			&e.ActorEmail, &e.ActorRole, &e.SchoolID, &e.SchoolName, &e.IP, &e.UserAgent,
			&e.RequestID, &e.Description, &oldJSON, &newJSON, &e.ChangedFields,
			&e.Success, &e.ErrorMessage, &durationMs, &createdAt); err != nil {
			return nil, err
		}
		if len(oldJSON) > 0 {
			if err := json.Unmarshal(oldJSON, &e.OldValues); err != nil {
				return nil, fmt.Errorf("audit: decode old values: %w", err)
			}
		}
		if len(newJSON) > 0 {
			if err := json.Unmarshal(newJSON, &e.NewValues); err != nil {
				return nil, fmt.Errorf("audit: decode new values: %w", err)
			}
		}
		if durationMs.Valid {
			e.DurationMs = &durationMs.Int64
		}
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func nullInt(v int64) pgtype.Int8 {
	if v == 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}
