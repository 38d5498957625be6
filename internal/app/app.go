// Package app assembles the reminder pipeline from configuration. Both the
// long-running worker and the one-shot remind command start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/farm-calendar/config"
	"github.com/jwalitptl/farm-calendar/internal/delivery"
	"github.com/jwalitptl/farm-calendar/internal/repository"
	"github.com/jwalitptl/farm-calendar/internal/repository/postgres"
	"github.com/jwalitptl/farm-calendar/internal/repository/sqlite"
	"github.com/jwalitptl/farm-calendar/internal/service/reminder"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
	"github.com/jwalitptl/farm-calendar/pkg/messaging/redis"
	"github.com/jwalitptl/farm-calendar/pkg/metrics"
)

const metricsNamespace = "farm_calendar"

type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    repository.Store
	Reminder *reminder.Service

	closers []func() error
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.JSON,
	})
}

// Build opens the store, picks the senders and constructs the reminder service.
// Close must be called on the returned App, also when a later step fails.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  metrics.New(metricsNamespace, "reminder", reg),
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	dispatcher, err := a.dispatcher(ctx)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	windows, err := cfg.Scheduler.NotificationWindows()
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Reminder = reminder.NewService(store, dispatcher, reminder.Config{
		Workers:       cfg.Scheduler.Workers,
		Windows:       windows,
		Location:      loc,
		RecentSentTTL: cfg.Scheduler.RecentSentTTL,
	}, log, a.Metrics)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	dbCfg := a.Config.Database

	switch dbCfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(dbCfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.Log.Info("Opened sqlite store", "path", dbCfg.SQLitePath)
		return sqlite.NewStore(db, a.Metrics), nil
	default:
		db, err := postgres.NewDB(ctx, dbCfg, a.Log)
		if err != nil {
			return nil, err
		}
		if dbCfg.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
			a.Log.Info("Applied database schema")
		}
		return postgres.NewStore(postgres.NewBaseRepository(db, a.Metrics)), nil
	}
}

// dispatcher wires the SMS and email senders. Missing gateway credentials
// fall back to logging the message instead of sending it.
func (a *App) dispatcher(ctx context.Context) (*delivery.Dispatcher, error) {
	dc := a.Config.Delivery

	var sms delivery.Sender
	switch dc.SMSProvider {
	case "twilio":
		if !dc.Twilio.Configured() {
			a.Log.Warn("Twilio credentials not set, SMS reminders will only be logged")
			sms = delivery.NewLogSender(delivery.ChannelSMS, a.Log)
			break
		}
		sms = delivery.NewTwilioSender(delivery.TwilioConfig{
			AccountSID: dc.Twilio.AccountSID,
			AuthToken:  dc.Twilio.AuthToken,
			From:       dc.Twilio.FromNumber,
			BaseURL:    dc.Twilio.BaseURL,
			Timeout:    dc.Twilio.Timeout,
			RatePerSec: dc.Twilio.RatePerSec,
			Burst:      dc.Twilio.Burst,
		}, a.Log)
	case "queue":
		broker, err := redis.NewListBroker(ctx, a.Config.Redis.ToBrokerConfig(), &a.Log.ZL)
		if err != nil {
			return nil, fmt.Errorf("sms queue: %w", err)
		}
		a.closers = append(a.closers, broker.Close)
		if backlog, err := broker.Len(ctx, dc.QueueName); err == nil && backlog > 0 {
			a.Log.Warn("SMS queue has undelivered messages", "queue", dc.QueueName, "backlog", backlog)
		}
		sms = delivery.NewQueueSender(broker, dc.QueueName)
	default:
		sms = delivery.NewLogSender(delivery.ChannelSMS, a.Log)
	}

	var email delivery.Sender
	if dc.SMTP.Configured() {
		email = delivery.NewEmailSender(dc.SMTP.Host, dc.SMTP.Port, dc.SMTP.Username, dc.SMTP.Password, dc.SMTP.From)
	} else {
		email = delivery.NewLogSender(delivery.ChannelEmail, a.Log)
	}

	a.Log.Info("Delivery configured", "sms_provider", dc.SMSProvider, "smtp", dc.SMTP.Configured())
	return delivery.NewDispatcher(sms, email, a.Log), nil
}

// Close releases everything Build opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
