package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Trigger names what started a pass.
const (
	TriggerCron    = "cron"
	TriggerManual  = "manual"
	TriggerStartup = "startup"
)

type triggerKey struct{}

// WithTrigger labels the pass started with ctx.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

// TriggerFrom returns the trigger label carried by ctx, defaulting to manual.
func TriggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}

// PassReport summarizes one reminder pass.
type PassReport struct {
	ID         uuid.UUID     `json:"id"`
	Trigger    string        `json:"trigger"`
	PassDate   string        `json:"pass_date"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`

	Subscriptions int `json:"subscriptions"`
	Due           int `json:"due"`
	Sent          int `json:"sent"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
	MarkFailures  int `json:"mark_failures"`
}

// tally accumulates per-subscription outcomes from the worker pool.
type tally struct {
	mu                                       sync.Mutex
	due, sent, failed, skipped, markFailures int
}

func (t *tally) add(field *int) {
	t.mu.Lock()
	*field++
	t.mu.Unlock()
}

func (t *tally) into(r *PassReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.Due = t.due
	r.Sent = t.sent
	r.Failed = t.failed
	r.Skipped = t.skipped
	r.MarkFailures = t.markFailures
}

func (r *PassReport) finish(at time.Time, err error) {
	r.FinishedAt = at.In(r.StartedAt.Location())
	r.Duration = at.Sub(r.StartedAt)
	if err != nil {
		r.Error = err.Error()
	}
}
