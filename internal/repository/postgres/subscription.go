package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/model"
	"github.com/jwalitptl/farm-calendar/internal/repository"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
)

const subscriptionColumns = `
	s.id, s.farmer_id, s.crop_id, s.planting_date, COALESCE(s.location, '') AS location,
	s.notification_preference, s.active, s.last_notification_sent, s.created_at, s.updated_at,
	f.id AS "farmer.id", f.name AS "farmer.name",
	COALESCE(f.phone, '') AS "farmer.phone", COALESCE(f.email, '') AS "farmer.email",
	f.created_at AS "farmer.created_at", f.updated_at AS "farmer.updated_at",
	c.id AS "crop.id", c.name AS "crop.name", COALESCE(c.scientific_name, '') AS "crop.scientific_name",
	c.growing_period_days AS "crop.growing_period_days", c.watering_interval_days AS "crop.watering_interval_days",
	c.created_at AS "crop.created_at", c.updated_at AS "crop.updated_at"
	FROM subscriptions s
	JOIN farmers f ON f.id = s.farmer_id
	JOIN crops c ON c.id = s.crop_id`

type store struct {
	*BaseRepository
}

// NewStore returns the Postgres implementation of repository.Store.
func NewStore(base *BaseRepository) repository.Store {
	return &store{BaseRepository: base}
}

func (r *store) ListActiveSubscriptions(ctx context.Context) (subs []*model.Subscription, err error) {
	defer func(start time.Time) { r.observe("list_active_subscriptions", start, err) }(time.Now())

	query := `SELECT ` + subscriptionColumns + ` WHERE s.active = TRUE ORDER BY s.created_at, s.id`
	if err = r.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, apperrors.StoreFailure("list active subscriptions", err)
	}

	if err = r.loadNotified(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *store) Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription
	query := `SELECT ` + subscriptionColumns + ` WHERE s.id = $1`
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("subscription", err)
		}
		return nil, apperrors.StoreFailure("get subscription", err)
	}

	if err := r.loadNotified(ctx, []*model.Subscription{&sub}); err != nil {
		return nil, err
	}
	return &sub, nil
}

// loadNotified fills Notified for every subscription with one query.
func (r *store) loadNotified(ctx context.Context, subs []*model.Subscription) error {
	if len(subs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(subs))
	byID := make(map[uuid.UUID]*model.Subscription, len(subs))
	for _, s := range subs {
		s.PlantingDate = calendar.Day(s.PlantingDate)
		ids = append(ids, s.ID.String())
		byID[s.ID] = s
	}

	var rows []model.ReminderLog
	query := `SELECT subscription_id, kind, due_date FROM reminder_log WHERE subscription_id = ANY($1::uuid[])`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return apperrors.StoreFailure("load reminder log", err)
	}

	for _, row := range rows {
		if s, ok := byID[row.SubscriptionID]; ok {
			s.Notified = append(s.Notified, model.LifecycleEvent{Kind: row.Kind, Due: calendar.Day(row.DueDate)})
		}
	}
	return nil
}

func (r *store) MarkNotified(ctx context.Context, subscriptionID uuid.UUID, event model.LifecycleEvent, at time.Time) (err error) {
	defer func(start time.Time) { r.observe("mark_notified", start, err) }(time.Now())

	err = r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET last_notification_sent = $1, updated_at = $1 WHERE id = $2`,
			at, subscriptionID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NotFound("subscription", nil)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reminder_log (id, subscription_id, kind, due_date, sent_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (subscription_id, kind, due_date) DO NOTHING`,
			uuid.New(), subscriptionID, event.Kind, calendar.Day(event.Due).Format(calendar.DateLayout), at,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCodeNotFound) {
			return err
		}
		return apperrors.StoreFailure("mark notified", err)
	}
	return nil
}

func (r *store) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = FALSE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return apperrors.StoreFailure("deactivate subscription", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("subscription", nil)
	}
	return nil
}

func (r *store) ListReminderLog(ctx context.Context, subscriptionID uuid.UUID) ([]*model.ReminderLog, error) {
	var logs []*model.ReminderLog
	query := `SELECT id, subscription_id, kind, due_date, sent_at FROM reminder_log WHERE subscription_id = $1 ORDER BY due_date, kind`
	if err := r.db.SelectContext(ctx, &logs, query, subscriptionID); err != nil {
		return nil, apperrors.StoreFailure("list reminder log", err)
	}
	for _, l := range logs {
		l.DueDate = calendar.Day(l.DueDate)
	}
	return logs, nil
}

func (r *store) DeleteRemindersBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminder_log WHERE sent_at < $1`, before)
	if err != nil {
		return 0, apperrors.StoreFailure("delete reminder log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted reminders: %w", err)
	}
	return n, nil
}

func (r *store) CreateCrop(ctx context.Context, crop *model.CropProfile) error {
	stampBase(&crop.Base)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO crops (id, name, scientific_name, growing_period_days, watering_interval_days, created_at, updated_at)
		VALUES (:id, :name, :scientific_name, :growing_period_days, :watering_interval_days, :created_at, :updated_at)`,
		crop,
	)
	if err != nil {
		return fmt.Errorf("failed to create crop: %w", err)
	}
	return nil
}

func (r *store) CreateFarmer(ctx context.Context, farmer *model.Farmer) error {
	stampBase(&farmer.Base)
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO farmers (id, name, phone, email, created_at, updated_at)
		VALUES (:id, :name, NULLIF(:phone, ''), NULLIF(:email, ''), :created_at, :updated_at)`,
		farmer,
	)
	if err != nil {
		return fmt.Errorf("failed to create farmer: %w", err)
	}
	return nil
}

func (r *store) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	stampBase(&sub.Base)
	if sub.NotificationPreference == "" {
		sub.NotificationPreference = model.PreferenceSMS
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, farmer_id, crop_id, planting_date, location,
			notification_preference, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID,
		sub.FarmerID,
		sub.CropID,
		calendar.Day(sub.PlantingDate).Format(calendar.DateLayout),
		sub.Location,
		sub.NotificationPreference,
		sub.Active,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *store) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *store) Close() error {
	return r.db.Close()
}

func stampBase(b *model.Base) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
}
