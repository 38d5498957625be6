package model

import (
	"time"

	"github.com/google/uuid"
)

// ReminderLog records one delivered reminder. (subscription, kind, due date) is unique.
type ReminderLog struct {
	ID             uuid.UUID `json:"id" db:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id" db:"subscription_id"`
	Kind           EventKind `json:"kind" db:"kind"`
	DueDate        time.Time `json:"due_date" db:"due_date"`
	SentAt         time.Time `json:"sent_at" db:"sent_at"`
}

func (r ReminderLog) Event() LifecycleEvent {
	return LifecycleEvent{Kind: r.Kind, Due: r.DueDate}
}
