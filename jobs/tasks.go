package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes audit entries past their retention window.
	TaskAuditRetention = "audit:retention"
)

// NewAuditRetentionTask constructs the retention sweep task. The sweep is
// driven entirely by the stored per-resource policies, so there is no
// payload.
func NewAuditRetentionTask() *asynq.Task {
	return asynq.NewTask(TaskAuditRetention, nil)
}

// RetentionRunner sweeps aged audit entries per configured resource.
type RetentionRunner interface {
	Run(ctx context.Context) error
}

// NewAuditRetentionHandler builds the asynq handler for TaskAuditRetention.
// Policies are reloaded first so administrative changes apply without a
// worker restart.
func NewAuditRetentionHandler(reloader interface {
	Reload(ctx context.Context) error
}, sweeper RetentionRunner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := reloader.Reload(ctx); err != nil {
			logger.Error("reload audit configs", slog.Any("error", err))
			return err
		}
		if err := sweeper.Run(ctx); err != nil {
			logger.Error("audit retention sweep", slog.Any("error", err))
			return err
		}
		return nil
	}
}
