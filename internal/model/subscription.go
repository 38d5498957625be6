package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationPreference string

const (
	PreferenceSMS   NotificationPreference = "sms"
	PreferenceEmail NotificationPreference = "email"
	PreferenceBoth  NotificationPreference = "both"
)

// Subscription is a farmer's enrollment of one crop planting.
type Subscription struct {
	Base
	FarmerID               uuid.UUID              `json:"farmer_id" db:"farmer_id"`
	CropID                 uuid.UUID              `json:"crop_id" db:"crop_id"`
	PlantingDate           time.Time              `json:"planting_date" db:"planting_date"`
	Location               string                 `json:"location,omitempty" db:"location"`
	NotificationPreference NotificationPreference `json:"notification_preference" db:"notification_preference"`
	Active                 bool                   `json:"active" db:"active"`
	LastNotificationSent   *time.Time             `json:"last_notification_sent,omitempty" db:"last_notification_sent"`

	Farmer Farmer      `json:"farmer" db:"farmer"`
	Crop   CropProfile `json:"crop" db:"crop"`

	// Notified lists the events already delivered for this planting.
	Notified []LifecycleEvent `json:"-" db:"-"`
}

// Preference returns the notification preference, defaulting to SMS.
func (s *Subscription) Preference() NotificationPreference {
	switch s.NotificationPreference {
	case PreferenceEmail, PreferenceBoth:
		return s.NotificationPreference
	default:
		return PreferenceSMS
	}
}
