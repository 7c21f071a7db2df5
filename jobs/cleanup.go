package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lokapos/lokapos/internal/shared"
)

// CleanupJob prunes stale idempotency keys on a schedule.
type CleanupJob struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewCleanupJob constructs the job.
func NewCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if err := j.store.Cleanup(ctx, retention); err != nil {
		return err
	}
	j.logger.Info("idempotency keys pruned", slog.Duration("retention", retention))
	return nil
}
