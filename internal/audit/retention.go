package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionStore deletes entries created before the cutoff, skipping the
// protected actions.
type RetentionStore interface {
	DeleteExpired(ctx context.Context, resource string, cutoff time.Time, protected []string) (int64, error)
}

// Sweeper prunes audit entries past their per-resource retention window.
// DELETE, LOGIN and LOGOUT records are retained indefinitely. Each resource's
// sweep is independent: one failure is logged and recorded, the rest continue.
type Sweeper struct {
	registry *Registry
	store    RetentionStore
	recorder *Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper constructs a retention sweeper.
func NewSweeper(registry *Registry, store RetentionStore, recorder *Recorder, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{registry: registry, store: store, recorder: recorder, logger: logger, now: time.Now}
}

// Run sweeps every configured resource once.
func (s *Sweeper) Run(ctx context.Context) error {
	var failed int
	for _, cfg := range s.registry.All() {
		if cfg.RetentionDays <= 0 {
			continue
		}
		cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)
		removed, err := s.store.DeleteExpired(ctx, cfg.Resource, cutoff, protectedOps)
		if err != nil {
			failed++
			s.logger.Error("retention sweep failed",
				slog.String("resource", cfg.Resource),
				slog.Any("error", err))
			s.recorder.LogSystemEvent(ctx, cfg.Resource,
				fmt.Sprintf("retention sweep failed: %v", err), false)
			continue
		}
		s.logger.Info("retention sweep",
			slog.String("resource", cfg.Resource),
			slog.Int("days", cfg.RetentionDays),
			slog.Int64("removed", removed))
		s.recorder.LogSystemEvent(ctx, cfg.Resource,
			fmt.Sprintf("retention sweep removed %d entries older than %d days", removed, cfg.RetentionDays), true)
	}
	if failed > 0 {
		return fmt.Errorf("audit: retention sweep: %d resource(s) failed", failed)
	}
	return nil
}
