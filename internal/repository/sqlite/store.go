package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	glebarez "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/model"
	"github.com/jwalitptl/farm-calendar/internal/repository"
	apperrors "github.com/jwalitptl/farm-calendar/pkg/errors"
	"github.com/jwalitptl/farm-calendar/pkg/metrics"
)

// Open opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway store.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(glebarez.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: writes serialize and ":memory:" stays a single database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&cropRow{},
		&farmerRow{},
		&subscriptionRow{},
		&reminderRow{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return db, nil
}

type store struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

// NewStore returns the sqlite implementation of repository.Store. m may be nil.
func NewStore(db *gorm.DB, m *metrics.Metrics) repository.Store {
	return &store{db: db, metrics: m}
}

func (s *store) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
	s.metrics.DatabaseLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *store) subscriptions(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Farmer").Preload("Crop")
}

func (s *store) ListActiveSubscriptions(ctx context.Context) (subs []*model.Subscription, err error) {
	defer func(start time.Time) { s.observe("list_active_subscriptions", start, err) }(time.Now())

	var rows []subscriptionRow
	if err = s.subscriptions(ctx).Where("active = ?", true).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, apperrors.StoreFailure("list active subscriptions", err)
	}

	subs, err = s.hydrate(ctx, rows)
	return subs, err
}

func (s *store) Get(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var row subscriptionRow
	if err := s.subscriptions(ctx).Where("id = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("subscription", err)
		}
		return nil, apperrors.StoreFailure("get subscription", err)
	}

	subs, err := s.hydrate(ctx, []subscriptionRow{row})
	if err != nil {
		return nil, err
	}
	return subs[0], nil
}

// hydrate converts rows and attaches each subscription's reminder log.
func (s *store) hydrate(ctx context.Context, rows []subscriptionRow) ([]*model.Subscription, error) {
	subs := make([]*model.Subscription, 0, len(rows))
	byID := make(map[string]*model.Subscription, len(rows))
	ids := make([]string, 0, len(rows))

	for _, row := range rows {
		sub, err := row.toModel()
		if err != nil {
			return nil, apperrors.StoreFailure("decode subscription "+row.ID, err)
		}
		subs = append(subs, sub)
		byID[row.ID] = sub
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return subs, nil
	}

	var logs []reminderRow
	if err := s.db.WithContext(ctx).Where("subscription_id IN ?", ids).Find(&logs).Error; err != nil {
		return nil, apperrors.StoreFailure("load reminder log", err)
	}
	for _, l := range logs {
		due, err := calendar.ParseDate(l.DueDate)
		if err != nil {
			continue
		}
		if sub, ok := byID[l.SubscriptionID]; ok {
			sub.Notified = append(sub.Notified, model.LifecycleEvent{Kind: model.EventKind(l.Kind), Due: due})
		}
	}
	return subs, nil
}

func (s *store) MarkNotified(ctx context.Context, subscriptionID uuid.UUID, event model.LifecycleEvent, at time.Time) (err error) {
	defer func(start time.Time) { s.observe("mark_notified", start, err) }(time.Now())

	at = at.UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&subscriptionRow{}).
			Where("id = ?", subscriptionID.String()).
			Updates(map[string]interface{}{"last_notification_sent": at, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("subscription", nil)
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reminderRow{
			ID:             uuid.NewString(),
			SubscriptionID: subscriptionID.String(),
			Kind:           string(event.Kind),
			DueDate:        calendar.Day(event.Due).Format(calendar.DateLayout),
			SentAt:         at,
		}).Error
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrCodeNotFound) {
			return err
		}
		return apperrors.StoreFailure("mark notified", err)
	}
	return nil
}

func (s *store) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&subscriptionRow{}).
		Where("id = ?", id.String()).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return apperrors.StoreFailure("deactivate subscription", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("subscription", nil)
	}
	return nil
}

func (s *store) ListReminderLog(ctx context.Context, subscriptionID uuid.UUID) ([]*model.ReminderLog, error) {
	var rows []reminderRow
	if err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID.String()).
		Order("due_date, kind").
		Find(&rows).Error; err != nil {
		return nil, apperrors.StoreFailure("list reminder log", err)
	}

	logs := make([]*model.ReminderLog, 0, len(rows))
	for _, row := range rows {
		l, err := row.toModel()
		if err != nil {
			return nil, apperrors.StoreFailure("decode reminder log", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (s *store) DeleteRemindersBefore(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("sent_at < ?", before.UTC()).Delete(&reminderRow{})
	if res.Error != nil {
		return 0, apperrors.StoreFailure("delete reminder log", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *store) CreateCrop(ctx context.Context, crop *model.CropProfile) error {
	stampBase(&crop.Base)
	row := cropRow{
		ID:                   crop.ID.String(),
		Name:                 crop.Name,
		ScientificName:       crop.ScientificName,
		GrowingPeriodDays:    crop.GrowingPeriodDays,
		WateringIntervalDays: crop.WateringIntervalDays,
		CreatedAt:            crop.CreatedAt,
		UpdatedAt:            crop.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create crop: %w", err)
	}
	return nil
}

func (s *store) CreateFarmer(ctx context.Context, farmer *model.Farmer) error {
	stampBase(&farmer.Base)
	row := farmerRow{
		ID:        farmer.ID.String(),
		Name:      farmer.Name,
		Phone:     farmer.Phone,
		Email:     farmer.Email,
		CreatedAt: farmer.CreatedAt,
		UpdatedAt: farmer.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create farmer: %w", err)
	}
	return nil
}

func (s *store) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	stampBase(&sub.Base)
	if sub.NotificationPreference == "" {
		sub.NotificationPreference = model.PreferenceSMS
	}
	row := subscriptionRow{
		ID:                     sub.ID.String(),
		FarmerID:               sub.FarmerID.String(),
		CropID:                 sub.CropID.String(),
		PlantingDate:           calendar.Day(sub.PlantingDate).Format(calendar.DateLayout),
		Location:               sub.Location,
		NotificationPreference: string(sub.NotificationPreference),
		Active:                 sub.Active,
		CreatedAt:              sub.CreatedAt,
		UpdatedAt:              sub.UpdatedAt,
	}
	// Omit associations so gorm does not upsert empty farmer and crop rows.
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (s *store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func stampBase(b *model.Base) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
}
