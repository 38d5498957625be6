// Command remind runs a single reminder pass and exits. The exit status is
// non-zero when the pass could not run at all; individual delivery failures
// are reported in the summary and retried by the next pass.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/farm-calendar/config"
	"github.com/jwalitptl/farm-calendar/internal/app"
	"github.com/jwalitptl/farm-calendar/internal/service/reminder"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return 1
	}

	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error(err, "failed to initialize reminder pipeline")
		return 1
	}
	defer a.Close()

	report, err := a.Reminder.RunPass(reminder.WithTrigger(ctx, reminder.TriggerManual))
	if err != nil {
		logger.Error(err, "reminder pass failed")
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error(err, "failed to print pass report")
	}
	return 0
}
