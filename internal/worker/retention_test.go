package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/farm-calendar/internal/model"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

type fakeLogRepo struct {
	mu      sync.Mutex
	err     error
	cutoffs []time.Time
}

func (f *fakeLogRepo) ListReminderLog(context.Context, uuid.UUID) ([]*model.ReminderLog, error) {
	return nil, nil
}

func (f *fakeLogRepo) DeleteRemindersBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func (f *fakeLogRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestReminderLogCleanupWorker_Cleanup(t *testing.T) {
	repo := &fakeLogRepo{}
	w := NewReminderLogCleanupWorker(repo, 30*24*time.Hour, time.Hour, logger.Nop())
	w.now = func() time.Time { return time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC) }

	rows, err := w.cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	require.Len(t, repo.cutoffs, 1)
	assert.Equal(t, time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC), repo.cutoffs[0])
}

func TestReminderLogCleanupWorker_CleanupError(t *testing.T) {
	repo := &fakeLogRepo{err: errors.New("db down")}
	w := NewReminderLogCleanupWorker(repo, time.Hour, time.Hour, logger.Nop())

	_, err := w.cleanup(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestReminderLogCleanupWorker_StartStops(t *testing.T) {
	repo := &fakeLogRepo{}
	w := NewReminderLogCleanupWorker(repo, time.Hour, 10*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return repo.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
