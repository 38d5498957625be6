package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/farm-calendar/internal/repository"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

// ReminderLogCleanupWorker purges reminder log rows older than the retention
// period. A row is only consulted while its event can still be selected, which
// is at most a window's length after it was sent, so any period longer than the
// widest window is safe.
type ReminderLogCleanupWorker struct {
	repo            repository.ReminderLogRepository
	retention       time.Duration
	cleanupInterval time.Duration
	log             *logger.Logger
	now             func() time.Time
}

func NewReminderLogCleanupWorker(repo repository.ReminderLogRepository, retention, cleanupInterval time.Duration, log *logger.Logger) *ReminderLogCleanupWorker {
	return &ReminderLogCleanupWorker{
		repo:            repo,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		log:             log,
		now:             time.Now,
	}
}

func (w *ReminderLogCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	w.log.Info("Starting reminder log cleanup", "retention", w.retention.String(), "interval", w.cleanupInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Shutting down reminder log cleanup")
			return
		case <-ticker.C:
			if _, err := w.cleanup(ctx); err != nil {
				// Log error but continue
				w.log.Error(err, "Reminder log cleanup failed")
			}
		}
	}
}

func (w *ReminderLogCleanupWorker) cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().Add(-w.retention)

	rows, err := w.repo.DeleteRemindersBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup reminder log: %w", err)
	}

	w.log.Info("Cleaned up reminder log", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
