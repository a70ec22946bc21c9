package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skolar-erp/skolar/internal/observability"
	"github.com/skolar-erp/skolar/internal/shared"
)

// DefaultWriteTimeout bounds best-effort audit writes so a slow audit store
// can never make the guarded business operation appear to fail.
const DefaultWriteTimeout = 3 * time.Second

// EntryStore writes entries outside any business transaction.
type EntryStore interface {
	Insert(ctx context.Context, e Entry) error
}

// Recorder is the application-level audit path: direct event logging for
// actions with no backing row (login, denials, bulk access) and a generic
// wrapper that records attempts including failed ones. Writes are best
// effort: failures are degraded to operational logging, never propagated.
type Recorder struct {
	store    EntryStore
	registry *Registry
	logger   *slog.Logger
	metrics  *observability.Metrics
	timeout  time.Duration
	now      func() time.Time
}

// RecorderConfig collects optional dependencies for NewRecorder.
type RecorderConfig struct {
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	WriteTimeout time.Duration
	Now          func() time.Time
}

// NewRecorder constructs the application-level audit path.
func NewRecorder(store EntryStore, registry *Registry, cfg RecorderConfig) *Recorder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Recorder{
		store:    store,
		registry: registry,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		timeout:  cfg.WriteTimeout,
		now:      cfg.Now,
	}
}

// LogAuthEvent records a LOGIN or LOGOUT attempt.
func (r *Recorder) LogAuthEvent(ctx context.Context, op string, success bool, errorMessage string) {
	info := shared.RequestInfoFromContext(ctx)
	r.write(ctx, Entry{
		Action:       op,
		Resource:     "auth",
		ActorID:      info.ActorID,
		ActorEmail:   info.ActorEmail,
		ActorRole:    info.ActorRole,
		SchoolID:     info.SchoolID,
		SchoolName:   info.SchoolName,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		RequestID:    info.RequestID,
		Success:      success,
		ErrorMessage: errorMessage,
	})
}

// LogSystemEvent records an operational event such as a permission denial or
// a retention sweep summary.
func (r *Recorder) LogSystemEvent(ctx context.Context, resource, description string, success bool) {
	info := shared.RequestInfoFromContext(ctx)
	r.write(ctx, Entry{
		Action:      OpAccess,
		Resource:    resource,
		Description: description,
		ActorID:     info.ActorID,
		ActorEmail:  info.ActorEmail,
		ActorRole:   info.ActorRole,
		SchoolID:    info.SchoolID,
		SchoolName:  info.SchoolName,
		IP:          info.IP,
		UserAgent:   info.UserAgent,
		RequestID:   info.RequestID,
		Success:     success,
	})
}

// LogDataAccess records a bulk read or export against a resource. Read
// tracking is opt-in per resource; untracked resources are a no-op.
func (r *Recorder) LogDataAccess(ctx context.Context, resource, recordID, description string) {
	if r.registry != nil {
		if cfg, ok := r.registry.Get(resource); !ok || !cfg.Tracks(OpAccess) {
			return
		}
	}
	info := shared.RequestInfoFromContext(ctx)
	r.write(ctx, Entry{
		Action:      OpAccess,
		Resource:    resource,
		RecordID:    recordID,
		Description: description,
		ActorID:     info.ActorID,
		ActorEmail:  info.ActorEmail,
		ActorRole:   info.ActorRole,
		SchoolID:    info.SchoolID,
		SchoolName:  info.SchoolName,
		IP:          info.IP,
		UserAgent:   info.UserAgent,
		RequestID:   info.RequestID,
		Success:     true,
	})
}

// Operation names an arbitrary unit of work guarded by ExecuteWithAudit.
type Operation struct {
	Action   string
	Resource string
	RecordID string
}

// ExecuteWithAudit times fn and records one entry on every exit path: success
// with the elapsed duration on normal return, failure with the error message
// otherwise. The original error (or panic) is passed through unchanged. This
// path records attempts, which the storage-level path structurally cannot:
// a rolled-back mutation leaves nothing for in-transaction capture.
func (r *Recorder) ExecuteWithAudit(ctx context.Context, op Operation, fn func(context.Context) error) (err error) {
	start := r.now()
	defer func() {
		elapsed := r.now().Sub(start).Milliseconds()
		info := shared.RequestInfoFromContext(ctx)
		entry := Entry{
			Action:     op.Action,
			Resource:   op.Resource,
			RecordID:   op.RecordID,
			ActorID:    info.ActorID,
			ActorEmail: info.ActorEmail,
			ActorRole:  info.ActorRole,
			SchoolID:   info.SchoolID,
			SchoolName: info.SchoolName,
			IP:         info.IP,
			UserAgent:  info.UserAgent,
			RequestID:  info.RequestID,
			Success:    err == nil,
			DurationMs: &elapsed,
		}
		if p := recover(); p != nil {
			entry.Success = false
			entry.ErrorMessage = fmt.Sprint(p)
			r.write(ctx, entry)
			panic(p)
		}
		if err != nil {
			entry.ErrorMessage = err.Error()
		}
		r.write(ctx, entry)
	}()
	return fn(ctx)
}

// write persists one entry best effort. The write runs on a detached context
// with a bounded timeout: cancellation of the request must not lose the
// entry, and a slow store must not stall the caller's response for long.
func (r *Recorder) write(ctx context.Context, e Entry) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.store.Insert(wctx, e); err != nil {
		r.metrics.AuditWriteFailure()
		r.logger.Error("audit write failed",
			slog.String("action", e.Action),
			slog.String("resource", e.Resource),
			slog.Any("error", err))
		return
	}
	r.metrics.AuditWrite("application")
}
