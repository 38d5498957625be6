package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/farm-calendar/internal/model"
)

// All repository interfaces in one file
type (
	// SubscriptionRepository is the source of active plantings and the sink
	// for delivered reminders.
	SubscriptionRepository interface {
		// ListActiveSubscriptions returns active subscriptions with farmer,
		// crop and already notified events loaded.
		ListActiveSubscriptions(ctx context.Context) ([]*model.Subscription, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error)
		Deactivate(ctx context.Context, id uuid.UUID) error
		// MarkNotified records a delivered reminder and stamps the
		// subscription's last notification time in one transaction.
		MarkNotified(ctx context.Context, subscriptionID uuid.UUID, event model.LifecycleEvent, at time.Time) error
	}

	ReminderLogRepository interface {
		ListReminderLog(ctx context.Context, subscriptionID uuid.UUID) ([]*model.ReminderLog, error)
		// DeleteRemindersBefore purges log rows sent before the cutoff and
		// reports how many were removed.
		DeleteRemindersBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// CatalogRepository seeds reference data and enrollments. Used by local
	// runs and tests; the farmer-facing surfaces own these records in production.
	CatalogRepository interface {
		CreateCrop(ctx context.Context, crop *model.CropProfile) error
		CreateFarmer(ctx context.Context, farmer *model.Farmer) error
		CreateSubscription(ctx context.Context, sub *model.Subscription) error
	}

	Store interface {
		SubscriptionRepository
		ReminderLogRepository
		CatalogRepository
		Ping(ctx context.Context) error
		Close() error
	}
)
