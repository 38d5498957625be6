package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/farm-calendar/config"
	"github.com/jwalitptl/farm-calendar/internal/app"
	"github.com/jwalitptl/farm-calendar/internal/handler/health"
	reminderHandler "github.com/jwalitptl/farm-calendar/internal/handler/reminder"
	subscriptionHandler "github.com/jwalitptl/farm-calendar/internal/handler/subscription"
	"github.com/jwalitptl/farm-calendar/internal/middleware"
	"github.com/jwalitptl/farm-calendar/internal/router"
	"github.com/jwalitptl/farm-calendar/internal/scheduler"
	"github.com/jwalitptl/farm-calendar/internal/service/reminder"
	"github.com/jwalitptl/farm-calendar/internal/worker"
	"github.com/jwalitptl/farm-calendar/pkg/auth"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)
	log.Logger = logger.ZL

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to initialize reminder pipeline")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error(err, "failed to close resources")
		}
	}()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		logger.Fatal(err, "invalid scheduler timezone")
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler.Cron, loc, a.Reminder, logger)
		if err != nil {
			logger.Fatal(err, "failed to create scheduler")
		}
		sched.Start()
	} else {
		logger.Warn("Scheduler disabled, passes run only when triggered")
	}

	var wg sync.WaitGroup

	if cfg.Scheduler.RunOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := a.Reminder.RunPass(reminder.WithTrigger(ctx, reminder.TriggerStartup))
			if err != nil {
				logger.Error(err, "Startup reminder pass failed")
				return
			}
			logger.Info("Startup reminder pass finished", "sent", report.Sent, "failed", report.Failed)
		}()
	}

	if cfg.Retention.Enabled {
		cleanup := worker.NewReminderLogCleanupWorker(a.Store, cfg.Retention.Period, cfg.Retention.Interval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			cleanup.Start(ctx)
		}()
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, "farm-calendar")
	runLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
		Burst: cfg.RateLimit.Burst,
	})
	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtService),
		health.NewHandler(a.Store),
		logger,
		router.RouterConfig{
			MetricsPath: cfg.Monitoring.MetricsPath,
			Registerer:  a.Registry,
			Gatherer:    a.Registry,
		},
		reminderHandler.NewHandler(a.Reminder, logger, runLimiter.RateLimit()),
		subscriptionHandler.NewHandler(a.Store, a.Reminder),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Admin server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "admin server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error(err, "scheduler did not stop in time")
		}
	}
	wg.Wait()

	logger.Info("Worker exited properly")
}
