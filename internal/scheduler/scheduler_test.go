package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/farm-calendar/internal/service/reminder"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

type fakeRunner struct {
	mu       sync.Mutex
	err      error
	calls    int
	triggers []string
}

func (f *fakeRunner) RunPass(ctx context.Context) (*reminder.PassReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.triggers = append(f.triggers, reminder.TriggerFrom(ctx))
	if f.err != nil {
		return nil, f.err
	}
	return &reminder.PassReport{}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a schedule", time.UTC, &fakeRunner{}, logger.Nop())
	assert.Error(t, err)
}

func TestScheduler_NextRunInLocation(t *testing.T) {
	loc := time.FixedZone("GMT+3", 3*60*60)
	s, err := New("0 8 * * *", loc, &fakeRunner{}, logger.Nop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	next := s.Next().In(loc)
	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
	assert.True(t, next.Before(time.Now().Add(25*time.Hour)))
}

func TestScheduler_FiresWithCronTrigger(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New("@every 1s", time.UTC, runner, logger.Nop())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return runner.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, reminder.TriggerCron, runner.triggers[0])
}

func TestScheduler_RunToleratesErrors(t *testing.T) {
	for _, err := range []error{
		apperrors.PassInProgress(),
		errors.New("store unavailable"),
	} {
		runner := &fakeRunner{err: err}
		s, newErr := New("@daily", time.UTC, runner, logger.Nop())
		require.NoError(t, newErr)

		assert.NotPanics(t, s.run)
		assert.Equal(t, 1, runner.count())
	}
}
