package sqlite

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/farm-calendar/internal/calendar"
	"github.com/jwalitptl/farm-calendar/internal/model"
)

// Row types mirror the Postgres schema. Dates are stored as YYYY-MM-DD text.

type cropRow struct {
	ID                   string `gorm:"primaryKey"`
	Name                 string `gorm:"uniqueIndex;not null"`
	ScientificName       string
	GrowingPeriodDays    int `gorm:"not null"`
	WateringIntervalDays int `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (cropRow) TableName() string { return "crops" }

type farmerRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Phone     string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (farmerRow) TableName() string { return "farmers" }

type subscriptionRow struct {
	ID                     string `gorm:"primaryKey"`
	FarmerID               string `gorm:"index;not null"`
	CropID                 string `gorm:"index;not null"`
	PlantingDate           string `gorm:"not null"`
	Location               string
	NotificationPreference string `gorm:"not null"`
	Active                 bool   `gorm:"index"`
	LastNotificationSent   *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time

	Farmer farmerRow `gorm:"foreignKey:FarmerID"`
	Crop   cropRow   `gorm:"foreignKey:CropID"`
}

func (subscriptionRow) TableName() string { return "subscriptions" }

type reminderRow struct {
	ID             string    `gorm:"primaryKey"`
	SubscriptionID string    `gorm:"uniqueIndex:idx_reminder_once;not null"`
	Kind           string    `gorm:"uniqueIndex:idx_reminder_once;not null"`
	DueDate        string    `gorm:"uniqueIndex:idx_reminder_once;not null"`
	SentAt         time.Time `gorm:"index;not null"`
}

func (reminderRow) TableName() string { return "reminder_log" }

func base(id string, created, updated time.Time) model.Base {
	parsed, _ := uuid.Parse(id)
	return model.Base{ID: parsed, CreatedAt: created, UpdatedAt: updated}
}

func (r cropRow) toModel() model.CropProfile {
	return model.CropProfile{
		Base:                 base(r.ID, r.CreatedAt, r.UpdatedAt),
		Name:                 r.Name,
		ScientificName:       r.ScientificName,
		GrowingPeriodDays:    r.GrowingPeriodDays,
		WateringIntervalDays: r.WateringIntervalDays,
	}
}

func (r farmerRow) toModel() model.Farmer {
	return model.Farmer{
		Base:  base(r.ID, r.CreatedAt, r.UpdatedAt),
		Name:  r.Name,
		Phone: r.Phone,
		Email: r.Email,
	}
}

func (r subscriptionRow) toModel() (*model.Subscription, error) {
	planted, err := calendar.ParseDate(r.PlantingDate)
	if err != nil {
		return nil, err
	}
	sub := &model.Subscription{
		Base:                   base(r.ID, r.CreatedAt, r.UpdatedAt),
		PlantingDate:           planted,
		Location:               r.Location,
		NotificationPreference: model.NotificationPreference(r.NotificationPreference),
		Active:                 r.Active,
		LastNotificationSent:   r.LastNotificationSent,
		Farmer:                 r.Farmer.toModel(),
		Crop:                   r.Crop.toModel(),
	}
	sub.FarmerID, _ = uuid.Parse(r.FarmerID)
	sub.CropID, _ = uuid.Parse(r.CropID)
	return sub, nil
}

func (r reminderRow) toModel() (*model.ReminderLog, error) {
	due, err := calendar.ParseDate(r.DueDate)
	if err != nil {
		return nil, err
	}
	id, _ := uuid.Parse(r.ID)
	subID, _ := uuid.Parse(r.SubscriptionID)
	return &model.ReminderLog{
		ID:             id,
		SubscriptionID: subID,
		Kind:           model.EventKind(r.Kind),
		DueDate:        due,
		SentAt:         r.SentAt,
	}, nil
}
