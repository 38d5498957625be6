package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/delivery"
	"github.com/jwalitptl/farm-calendar/internal/model"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
	"github.com/jwalitptl/farm-calendar/pkg/metrics"
)

// Store is the part of the subscription store a pass needs.
type Store interface {
	ListActiveSubscriptions(ctx context.Context) ([]*model.Subscription, error)
	MarkNotified(ctx context.Context, subscriptionID uuid.UUID, event model.LifecycleEvent, at time.Time) error
}

// Deliverer sends one reminder body to a subscription's destinations.
type Deliverer interface {
	Deliver(ctx context.Context, dests []delivery.Destination, body string) ([]string, error)
}

type Config struct {
	Workers  int
	Windows  calendar.Windows
	Location *time.Location
	// RecentSentTTL bounds how long a delivered reminder is remembered in
	// memory when recording it in the store failed.
	RecentSentTTL time.Duration
}

// Skip reasons reported in metrics and logs.
const (
	skipMissingContact = "missing_contact"
	skipInvalidCrop    = "invalid_crop_profile"
)

type Service struct {
	store     Store
	deliverer Deliverer
	cfg       Config
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	// recent holds subscription/event keys delivered in this process.
	recent *cache.Cache

	running    sync.Mutex
	inProgress atomic.Bool

	mu   sync.RWMutex
	last *PassReport
}

type Option func(*Service)

// WithClock replaces time.Now. Tests pin the pass date with it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, deliverer Deliverer, cfg Config, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Windows == nil {
		cfg.Windows = calendar.DefaultWindows()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RecentSentTTL <= 0 {
		cfg.RecentSentTTL = 36 * time.Hour
	}

	s := &Service{
		store:     store,
		deliverer: deliverer,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		now:       time.Now,
		recent:    cache.New(cfg.RecentSentTTL, time.Hour),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunPass runs one full reminder pass. Only one pass runs at a time per
// Service; a call made while another is running returns PassInProgress
// immediately. Only a failure to list subscriptions fails the pass.
func (s *Service) RunPass(ctx context.Context) (*PassReport, error) {
	if !s.running.TryLock() {
		s.metrics.PassRejected.Inc()
		return nil, apperrors.PassInProgress()
	}
	defer s.running.Unlock()

	s.inProgress.Store(true)
	s.metrics.PassInProgress.Set(1)
	defer func() {
		s.inProgress.Store(false)
		s.metrics.PassInProgress.Set(0)
	}()

	timer := prometheus.NewTimer(s.metrics.PassDuration)
	defer timer.ObserveDuration()

	now := s.now().In(s.cfg.Location)
	report := &PassReport{
		ID:        uuid.New(),
		Trigger:   TriggerFrom(ctx),
		StartedAt: now,
		PassDate:  now.Format(calendar.DateLayout),
	}
	log := s.log.WithFields(map[string]interface{}{
		"pass_id": report.ID.String(),
		"trigger": report.Trigger,
	})
	log.Info("Starting reminder pass", "pass_date", report.PassDate)

	subs, err := s.store.ListActiveSubscriptions(ctx)
	if err != nil {
		report.finish(s.now(), err)
		s.metrics.PassesTotal.WithLabelValues("failed").Inc()
		s.remember(report)
		log.Error(err, "Failed to list active subscriptions")
		return report, fmt.Errorf("list active subscriptions: %w", err)
	}
	report.Subscriptions = len(subs)

	t := &tally{}
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			s.processSubscription(ctx, log, sub, now, t)
			return nil
		})
	}
	_ = g.Wait()

	t.into(report)
	report.finish(s.now(), nil)
	s.metrics.PassesTotal.WithLabelValues("completed").Inc()
	s.metrics.LastPassTimestamp.Set(float64(report.FinishedAt.Unix()))
	s.remember(report)

	log.Info("Reminder pass completed",
		"subscriptions", report.Subscriptions,
		"due", report.Due,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"mark_failures", report.MarkFailures,
		"duration", report.Duration.String(),
	)
	return report, nil
}

func (s *Service) processSubscription(ctx context.Context, log *logger.Logger, sub *model.Subscription, now time.Time, t *tally) {
	if sub == nil {
		return
	}
	log = log.WithFields(map[string]interface{}{"subscription_id": sub.ID.String()})

	dests, err := delivery.Destinations(sub)
	if err != nil {
		t.add(&t.skipped)
		s.metrics.SubscriptionsSkipped.WithLabelValues(skipMissingContact).Inc()
		log.Warn("Skipping subscription without usable contact", "error", err.Error())
		return
	}

	events, err := calendar.DeriveEvents(sub.PlantingDate, sub.Crop)
	if err != nil {
		t.add(&t.skipped)
		s.metrics.SubscriptionsSkipped.WithLabelValues(skipInvalidCrop).Inc()
		log.Error(err, "Skipping subscription with invalid crop profile", "crop", sub.Crop.Name)
		return
	}

	notified := calendar.NotifiedSet(sub.Notified)
	for _, e := range events {
		if _, ok := s.recent.Get(recentKey(sub.ID, e)); ok {
			notified[e.Key()] = struct{}{}
		}
	}

	for _, r := range calendar.SelectUnnotified(events, now, s.cfg.Windows, notified) {
		t.add(&t.due)
		body := calendar.ComposeMessage(r.Kind, sub, sub.Crop, r.Due, now)

		channels, err := s.deliverer.Deliver(ctx, dests, body)
		if err != nil {
			t.add(&t.failed)
			s.metrics.RemindersFailed.WithLabelValues(string(r.Kind)).Inc()
			log.Error(err, "Reminder delivery failed", "kind", string(r.Kind), "due", r.Due.Format(calendar.DateLayout))
			continue
		}

		t.add(&t.sent)
		s.metrics.RemindersSent.WithLabelValues(string(r.Kind)).Inc()
		s.recent.SetDefault(recentKey(sub.ID, r.LifecycleEvent), true)
		log.Info("Reminder sent",
			"kind", string(r.Kind),
			"due", r.Due.Format(calendar.DateLayout),
			"days_until", r.DaysUntil,
			"channels", channels,
		)

		if err := s.store.MarkNotified(ctx, sub.ID, r.LifecycleEvent, s.now().UTC()); err != nil {
			t.add(&t.markFailures)
			s.metrics.DatabaseOperations.WithLabelValues("mark_notified_from_pass", "error").Inc()
			log.Error(err, "Failed to record sent reminder", "kind", string(r.Kind))
		}
	}
}

func recentKey(id uuid.UUID, e model.LifecycleEvent) string {
	return id.String() + "/" + e.Key()
}

func (s *Service) remember(r *PassReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
}

// Running reports whether a pass is in progress.
func (s *Service) Running() bool {
	return s.inProgress.Load()
}

// LastReport returns the most recent finished pass, or nil.
func (s *Service) LastReport() *PassReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// Timeline derives a subscription's calendar as of the service clock.
func (s *Service) Timeline(sub *model.Subscription) ([]calendar.TimelineEntry, error) {
	events, err := calendar.DeriveEvents(sub.PlantingDate, sub.Crop)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.cfg.Location)
	return calendar.BuildTimeline(events, now, s.cfg.Windows, calendar.NotifiedSet(sub.Notified)), nil
}

// IsPassInProgress reports whether err is a rejected concurrent trigger.
func IsPassInProgress(err error) bool {
	return errors.Is(err, apperrors.ErrCodePassInProgress)
}
