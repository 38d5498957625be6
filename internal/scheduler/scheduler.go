package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/farm-calendar/internal/service/reminder"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

// Runner is what the scheduler triggers.
type Runner interface {
	RunPass(ctx context.Context) (*reminder.PassReport, error)
}

// Scheduler fires a reminder pass on a cron schedule in a fixed time zone.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *logger.Logger
	entry  cron.EntryID
}

// cronLogger keeps cron's per-tick chatter at debug level.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(err, "cron: "+msg, keysAndValues...)
}

// New registers the pass under spec, a standard five-field cron expression
// (or a descriptor such as "@daily") evaluated in loc.
func New(spec string, loc *time.Location, runner Runner, log *logger.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, runner: runner, log: log}
	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) run() {
	ctx := reminder.WithTrigger(context.Background(), reminder.TriggerCron)
	report, err := s.runner.RunPass(ctx)
	switch {
	case reminder.IsPassInProgress(err):
		s.log.Warn("Scheduled pass skipped, another pass is running")
	case err != nil:
		s.log.Error(err, "Scheduled reminder pass failed")
	default:
		s.log.Info("Scheduled reminder pass finished", "sent", report.Sent, "failed", report.Failed)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", "next_run", s.Next().Format(time.RFC3339))
}

// Stop prevents new passes and waits for a running one, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Next is the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}
